package engine

import (
	"context"
	"fmt"
	"math/big"

	"github.com/solvernet/intentbot/internal/domain"
)

// SimulatedSettlement is a HopExecutor that settles hops against live
// market prices without touching any venue. It backs dry-run mode and is
// the default settlement layer until venue adapters are wired in.
type SimulatedSettlement struct {
	venues domain.VenueRegistry
	market domain.MarketDataProvider

	// GasPerHop is charged per settled hop, in gas units.
	GasPerHop int64
}

// NewSimulatedSettlement creates a simulator over the venue registry and
// market data provider.
func NewSimulatedSettlement(venues domain.VenueRegistry, market domain.MarketDataProvider) *SimulatedSettlement {
	return &SimulatedSettlement{venues: venues, market: market, GasPerHop: 50_000}
}

// ExecuteHop settles one conversion at the venue's current price less its
// fee. Missing prices surface as coded liquidity failures so the engine
// classifies them as recoverable.
func (s *SimulatedSettlement) ExecuteHop(ctx context.Context, venueID, assetIn, assetOut string, amount *big.Int) (domain.HopResult, error) {
	venue, err := s.venues.Get(ctx, venueID)
	if err != nil {
		return domain.HopResult{}, fmt.Errorf("settlement: venue %s: %w", venueID, err)
	}
	pair := domain.MakePair(assetIn, assetOut)
	if !venue.SupportsPair(pair) {
		return domain.HopResult{}, &domain.HopError{
			Code:    domain.CodeInsufficientLiquidity,
			Message: fmt.Sprintf("venue %s does not trade %s", venueID, pair),
		}
	}

	price, err := s.market.Price(ctx, pair)
	if err != nil {
		return domain.HopResult{}, &domain.HopError{
			Code:    domain.CodeInsufficientLiquidity,
			Message: fmt.Sprintf("no live price for %s: %v", pair, err),
		}
	}

	out := domain.MulRatio(amount, price*(1-venue.FeeRate))
	if out.Sign() <= 0 {
		return domain.HopResult{}, &domain.HopError{
			Code:    domain.CodeSlippageExceeded,
			Message: fmt.Sprintf("settled output for %s rounded to zero", pair),
		}
	}
	return domain.HopResult{
		AmountOut: out,
		GasUsed:   big.NewInt(s.GasPerHop),
	}, nil
}
