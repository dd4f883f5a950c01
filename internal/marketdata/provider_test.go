package marketdata

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/solvernet/intentbot/internal/domain"
)

type fakeCache struct {
	prices    map[string]float64
	timestamp map[string]time.Time
	liquidity map[string]float64
}

func (c *fakeCache) SetPrice(_ context.Context, pair string, price float64, ts time.Time) error {
	c.prices[pair] = price
	c.timestamp[pair] = ts
	return nil
}

func (c *fakeCache) GetPrice(_ context.Context, pair string) (float64, time.Time, error) {
	p, ok := c.prices[pair]
	if !ok {
		return 0, time.Time{}, domain.ErrNotFound
	}
	return p, c.timestamp[pair], nil
}

func (c *fakeCache) SetLiquidity(_ context.Context, pair string, score float64) error {
	c.liquidity[pair] = score
	return nil
}

func (c *fakeCache) GetLiquidity(_ context.Context, pair string) (float64, error) {
	s, ok := c.liquidity[pair]
	if !ok {
		return 0, domain.ErrNotFound
	}
	return s, nil
}

func (c *fakeCache) SetVolatility(context.Context, string, float64) error { return nil }

func (c *fakeCache) GetVolatility(context.Context, string) (float64, error) {
	return 0, domain.ErrNotFound
}

func TestCachedProviderPrice(t *testing.T) {
	cache := &fakeCache{
		prices:    map[string]float64{"ETH/USDC": 2500},
		timestamp: map[string]time.Time{"ETH/USDC": time.Now()},
		liquidity: map[string]float64{"ETH/USDC": 0.8},
	}
	p := NewCachedProvider(cache, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx := context.Background()

	price, err := p.Price(ctx, "ETH/USDC")
	if err != nil {
		t.Fatalf("Price = %v", err)
	}
	if price != 2500 {
		t.Errorf("price = %v", price)
	}

	if _, err := p.Price(ctx, "XX/YY"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("missing pair = %v, want ErrNotFound", err)
	}

	// Entries older than the staleness window are refused.
	cache.timestamp["ETH/USDC"] = time.Now().Add(-3 * time.Minute)
	if _, err := p.Price(ctx, "ETH/USDC"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("stale price = %v, want ErrNotFound", err)
	}

	if liq, err := p.LiquidityScore(ctx, "ETH/USDC"); err != nil || liq != 0.8 {
		t.Errorf("LiquidityScore = (%v, %v)", liq, err)
	}
	if _, err := p.Volatility(ctx, "ETH/USDC"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Volatility = %v, want ErrNotFound passthrough", err)
	}
}
