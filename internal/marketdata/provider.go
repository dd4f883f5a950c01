// Package marketdata implements the market-data provider contract on top of
// the shared market cache. The upstream feed (an external relay) writes
// prices into the cache; this package only reads.
package marketdata

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/solvernet/intentbot/internal/domain"
)

// maxPriceAge is how stale a cached price may be before the provider
// refuses to serve it.
const maxPriceAge = 2 * time.Minute

// CachedProvider implements domain.MarketDataProvider backed by a
// domain.MarketCache (Redis in production).
type CachedProvider struct {
	cache  domain.MarketCache
	logger *slog.Logger
}

// NewCachedProvider creates a provider reading through the given cache.
func NewCachedProvider(cache domain.MarketCache, logger *slog.Logger) *CachedProvider {
	return &CachedProvider{
		cache:  cache,
		logger: logger.With(slog.String("component", "marketdata")),
	}
}

// Price returns the latest cached spot rate for the pair. Stale or missing
// entries fail with an error wrapping domain.ErrNotFound.
func (p *CachedProvider) Price(ctx context.Context, pair string) (float64, error) {
	price, ts, err := p.cache.GetPrice(ctx, pair)
	if err != nil {
		return 0, fmt.Errorf("marketdata: price %s: %w", pair, err)
	}
	if time.Since(ts) > maxPriceAge {
		p.logger.WarnContext(ctx, "stale price entry",
			slog.String("pair", pair),
			slog.Time("cached_at", ts),
		)
		return 0, fmt.Errorf("marketdata: price %s stale: %w", pair, domain.ErrNotFound)
	}
	return price, nil
}

// LiquidityScore returns the cached liquidity estimate for the pair.
func (p *CachedProvider) LiquidityScore(ctx context.Context, pair string) (float64, error) {
	score, err := p.cache.GetLiquidity(ctx, pair)
	if err != nil {
		return 0, fmt.Errorf("marketdata: liquidity %s: %w", pair, err)
	}
	return score, nil
}

// Volatility returns the cached volatility estimate for the pair.
func (p *CachedProvider) Volatility(ctx context.Context, pair string) (float64, error) {
	vol, err := p.cache.GetVolatility(ctx, pair)
	if err != nil {
		return 0, fmt.Errorf("marketdata: volatility %s: %w", pair, err)
	}
	return vol, nil
}
