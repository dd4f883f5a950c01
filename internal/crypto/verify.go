// Package crypto verifies solver quote signatures. Quotes are signed over
// a keccak256 digest of their canonical fields with the solver's secp256k1
// key; verification recovers the signing address and compares it against
// the solver's registered address.
package crypto

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/solvernet/intentbot/internal/domain"
)

// quoteTypeHash is the pre-computed keccak256 of the canonical quote type
// string, mixed into every digest so signatures cannot be replayed across
// message kinds.
var quoteTypeHash = ethcrypto.Keccak256(
	[]byte("Quote(string intentId,string solverId,uint256 amountOut,uint256 fee,uint256 expiresAt)"),
)

// QuoteDigest computes the signing digest for a quote.
func QuoteDigest(q domain.Quote) []byte {
	amountOut := q.AmountOut
	if amountOut == nil {
		amountOut = new(big.Int)
	}
	fee := q.Fee
	if fee == nil {
		fee = new(big.Int)
	}
	return ethcrypto.Keccak256(
		quoteTypeHash,
		ethcrypto.Keccak256([]byte(q.IntentID)),
		ethcrypto.Keccak256([]byte(q.SolverID)),
		common.LeftPadBytes(amountOut.Bytes(), 32),
		common.LeftPadBytes(fee.Bytes(), 32),
		common.LeftPadBytes(big.NewInt(q.ExpiresAt.Unix()).Bytes(), 32),
	)
}

// VerifyQuote checks that the quote's signature recovers to the solver's
// registered address.
func VerifyQuote(q domain.Quote, solverAddress string) error {
	if len(q.Signature) != 65 {
		return fmt.Errorf("crypto: signature length %d: %w", len(q.Signature), domain.ErrInvalidSignature)
	}
	sig := make([]byte, 65)
	copy(sig, q.Signature)
	// Normalize the recovery id: wallets emit 27/28, Ecrecover wants 0/1.
	if sig[64] >= 27 {
		sig[64] -= 27
	}

	pub, err := ethcrypto.SigToPub(QuoteDigest(q), sig)
	if err != nil {
		return fmt.Errorf("crypto: recover: %w", domain.ErrInvalidSignature)
	}
	recovered := ethcrypto.PubkeyToAddress(*pub)
	if !strings.EqualFold(recovered.Hex(), solverAddress) {
		return fmt.Errorf("crypto: signer %s != solver %s: %w",
			recovered.Hex(), solverAddress, domain.ErrInvalidSignature)
	}
	return nil
}
