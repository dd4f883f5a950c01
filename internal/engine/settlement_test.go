package engine

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/solvernet/intentbot/internal/domain"
)

func TestSimulatedSettlementHop(t *testing.T) {
	s := NewSimulatedSettlement(testVenues(), testMarket())

	res, err := s.ExecuteHop(context.Background(), "uni", "ETH", "USDC", big.NewInt(1_000_000))
	if err != nil {
		t.Fatalf("ExecuteHop = %v", err)
	}
	// 1_000_000 at 2.5 less the venue's 0.3% fee.
	if want := big.NewInt(2_492_500); res.AmountOut.Cmp(want) != 0 {
		t.Errorf("amount out = %s, want %s", res.AmountOut, want)
	}
	if want := big.NewInt(50_000); res.GasUsed.Cmp(want) != 0 {
		t.Errorf("gas used = %s, want %s", res.GasUsed, want)
	}
}

func TestSimulatedSettlementFailures(t *testing.T) {
	market := testMarket()
	market.Prices["DUST/USDC"] = 0.0000001
	venues := testVenues()
	venues.Upsert(context.Background(), domain.Venue{
		ID: "thin", FeeRate: 0.003, Pairs: []string{"ETH/USDT", "DUST/USDC"},
	})
	s := NewSimulatedSettlement(venues, market)
	ctx := context.Background()

	if _, err := s.ExecuteHop(ctx, "ghost", "ETH", "USDC", big.NewInt(1000)); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("unknown venue = %v, want ErrNotFound", err)
	}

	// Venue does not trade the pair.
	_, err := s.ExecuteHop(ctx, "thin", "ETH", "USDC", big.NewInt(1000))
	if code := domain.ClassifyHopError(err); code != domain.CodeInsufficientLiquidity {
		t.Errorf("unsupported pair code = %s, want %s", code, domain.CodeInsufficientLiquidity)
	}

	// Pair is listed but no live price exists for it.
	_, err = s.ExecuteHop(ctx, "thin", "ETH", "USDT", big.NewInt(1000))
	if code := domain.ClassifyHopError(err); code != domain.CodeInsufficientLiquidity {
		t.Errorf("missing price code = %s, want %s", code, domain.CodeInsufficientLiquidity)
	}

	// Output rounds to zero at a dust price.
	_, err = s.ExecuteHop(ctx, "thin", "DUST", "USDC", big.NewInt(100))
	if code := domain.ClassifyHopError(err); code != domain.CodeSlippageExceeded {
		t.Errorf("dust output code = %s, want %s", code, domain.CodeSlippageExceeded)
	}
}
