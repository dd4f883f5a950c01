package crypto

import (
	"errors"
	"math/big"
	"strings"
	"testing"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/solvernet/intentbot/internal/domain"
)

func signedQuote(t *testing.T) (domain.Quote, string) {
	t.Helper()
	key, err := ethcrypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	q := domain.Quote{
		ID:        "q1",
		SolverID:  "solver-1",
		IntentID:  "intent-1",
		AmountOut: big.NewInt(2_500_000),
		Fee:       big.NewInt(1_200),
		ExpiresAt: time.Now().Add(time.Minute).Truncate(time.Second),
	}
	sig, err := ethcrypto.Sign(QuoteDigest(q), key)
	if err != nil {
		t.Fatalf("sign digest: %v", err)
	}
	q.Signature = sig
	addr := ethcrypto.PubkeyToAddress(key.PublicKey).Hex()
	return q, addr
}

func TestVerifyQuote(t *testing.T) {
	q, addr := signedQuote(t)
	if err := VerifyQuote(q, addr); err != nil {
		t.Fatalf("VerifyQuote with matching address = %v", err)
	}
	// Address comparison is case-insensitive: accept both checksummed and
	// lowercased registrations.
	if err := VerifyQuote(q, strings.ToLower(addr)); err != nil {
		t.Errorf("VerifyQuote with lowercased address = %v", err)
	}
}

func TestVerifyQuoteLegacyRecoveryID(t *testing.T) {
	q, addr := signedQuote(t)
	q.Signature[64] += 27 // wallet-style 27/28 recovery id
	if err := VerifyQuote(q, addr); err != nil {
		t.Fatalf("VerifyQuote with 27/28 recovery id = %v", err)
	}
}

func TestVerifyQuoteRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(q *domain.Quote, addr *string)
	}{
		{"wrong address", func(q *domain.Quote, addr *string) {
			*addr = "0x0000000000000000000000000000000000000001"
		}},
		{"short signature", func(q *domain.Quote, addr *string) {
			q.Signature = q.Signature[:64]
		}},
		{"empty signature", func(q *domain.Quote, addr *string) {
			q.Signature = nil
		}},
		{"tampered amount", func(q *domain.Quote, addr *string) {
			q.AmountOut = big.NewInt(9_999_999)
		}},
		{"tampered intent id", func(q *domain.Quote, addr *string) {
			q.IntentID = "intent-2"
		}},
		{"tampered expiry", func(q *domain.Quote, addr *string) {
			q.ExpiresAt = q.ExpiresAt.Add(time.Hour)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, addr := signedQuote(t)
			tt.mutate(&q, &addr)
			err := VerifyQuote(q, addr)
			if !errors.Is(err, domain.ErrInvalidSignature) {
				t.Errorf("VerifyQuote = %v, want ErrInvalidSignature", err)
			}
		})
	}
}

func TestQuoteDigestStable(t *testing.T) {
	q := domain.Quote{
		IntentID:  "intent-1",
		SolverID:  "solver-1",
		AmountOut: big.NewInt(10),
		Fee:       big.NewInt(1),
		ExpiresAt: time.Unix(1_700_000_000, 0),
	}
	d1 := QuoteDigest(q)
	d2 := QuoteDigest(q)
	if len(d1) != 32 {
		t.Fatalf("digest length = %d", len(d1))
	}
	if string(d1) != string(d2) {
		t.Error("digest not deterministic")
	}

	q.Fee = big.NewInt(2)
	if string(QuoteDigest(q)) == string(d1) {
		t.Error("digest unchanged after fee mutation")
	}

	// Nil amounts hash as zero rather than panicking.
	q.AmountOut, q.Fee = nil, nil
	zeroed := q
	zeroed.AmountOut, zeroed.Fee = new(big.Int), new(big.Int)
	if string(QuoteDigest(q)) != string(QuoteDigest(zeroed)) {
		t.Error("nil amounts should digest identically to zero amounts")
	}
}
