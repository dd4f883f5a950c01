package marketdata

import (
	"context"
	"fmt"

	"github.com/solvernet/intentbot/internal/domain"
)

// Static is a fixture provider serving fixed numbers per pair. It backs
// dry-run mode and test harnesses where no live feed is attached.
type Static struct {
	Prices       map[string]float64
	Liquidity    map[string]float64
	Volatilities map[string]float64
}

// Price returns the fixed rate for the pair.
func (s *Static) Price(ctx context.Context, pair string) (float64, error) {
	v, ok := s.Prices[pair]
	if !ok {
		return 0, fmt.Errorf("marketdata: price %s: %w", pair, domain.ErrNotFound)
	}
	return v, nil
}

// LiquidityScore returns the fixed liquidity estimate, defaulting to 0.5
// for known-priced pairs with no explicit entry.
func (s *Static) LiquidityScore(ctx context.Context, pair string) (float64, error) {
	if v, ok := s.Liquidity[pair]; ok {
		return v, nil
	}
	if _, ok := s.Prices[pair]; ok {
		return 0.5, nil
	}
	return 0, fmt.Errorf("marketdata: liquidity %s: %w", pair, domain.ErrNotFound)
}

// Volatility returns the fixed volatility estimate, defaulting to 0.2 for
// known-priced pairs with no explicit entry.
func (s *Static) Volatility(ctx context.Context, pair string) (float64, error) {
	if v, ok := s.Volatilities[pair]; ok {
		return v, nil
	}
	if _, ok := s.Prices[pair]; ok {
		return 0.2, nil
	}
	return 0, fmt.Errorf("marketdata: volatility %s: %w", pair, domain.ErrNotFound)
}
