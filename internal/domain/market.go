package domain

import "context"

// MakePair builds the canonical "BASE/QUOTE" pair identifier.
func MakePair(assetIn, assetOut string) string {
	return assetIn + "/" + assetOut
}

// MarketDataProvider is the black-box source of live market numbers. All
// three calls fail with an error (typically wrapping ErrNotFound) on pairs
// the provider does not know.
type MarketDataProvider interface {
	// Price returns the spot conversion rate for the pair.
	Price(ctx context.Context, pair string) (float64, error)
	// LiquidityScore returns a liquidity estimate in [0,1].
	LiquidityScore(ctx context.Context, pair string) (float64, error)
	// Volatility returns a normalized volatility estimate in [0,1].
	Volatility(ctx context.Context, pair string) (float64, error)
}

// MarketState is a snapshot of market conditions consumed by the strategy
// planner when deciding execution timing.
type MarketState struct {
	Pair       string
	Price      float64
	Liquidity  float64
	Volatility float64
}
