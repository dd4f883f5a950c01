package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/solvernet/intentbot/internal/domain"
)

// MarketCache implements domain.MarketCache using Redis. Prices live in a
// hash at "market:price:{pair}" with fields "price" and "ts" (Unix
// nanoseconds); liquidity and volatility are plain string keys so scores
// can be set independently of prices.
type MarketCache struct {
	rdb *redis.Client
}

// NewMarketCache creates a MarketCache backed by the given Client.
func NewMarketCache(c *Client) *MarketCache {
	return &MarketCache{rdb: c.Underlying()}
}

func priceKey(pair string) string      { return "market:price:" + pair }
func liquidityKey(pair string) string  { return "market:liquidity:" + pair }
func volatilityKey(pair string) string { return "market:volatility:" + pair }

// SetPrice stores the latest price and its observation time for a pair.
func (mc *MarketCache) SetPrice(ctx context.Context, pair string, price float64, ts time.Time) error {
	fields := map[string]interface{}{
		"price": strconv.FormatFloat(price, 'f', -1, 64),
		"ts":    strconv.FormatInt(ts.UnixNano(), 10),
	}
	if err := mc.rdb.HSet(ctx, priceKey(pair), fields).Err(); err != nil {
		return fmt.Errorf("redis: set price %s: %w", pair, err)
	}
	return nil
}

// GetPrice retrieves the latest price and timestamp for a pair. It returns
// domain.ErrNotFound when the pair has never been priced.
func (mc *MarketCache) GetPrice(ctx context.Context, pair string) (float64, time.Time, error) {
	vals, err := mc.rdb.HGetAll(ctx, priceKey(pair)).Result()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis: get price %s: %w", pair, err)
	}
	if len(vals) == 0 {
		return 0, time.Time{}, domain.ErrNotFound
	}
	price, err := strconv.ParseFloat(vals["price"], 64)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis: parse price %s: %w", pair, err)
	}
	nanos, err := strconv.ParseInt(vals["ts"], 10, 64)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis: parse price ts %s: %w", pair, err)
	}
	return price, time.Unix(0, nanos), nil
}

// SetLiquidity stores the liquidity score for a pair.
func (mc *MarketCache) SetLiquidity(ctx context.Context, pair string, score float64) error {
	return mc.setScore(ctx, liquidityKey(pair), score)
}

// GetLiquidity retrieves the liquidity score for a pair.
func (mc *MarketCache) GetLiquidity(ctx context.Context, pair string) (float64, error) {
	return mc.getScore(ctx, liquidityKey(pair))
}

// SetVolatility stores the volatility estimate for a pair.
func (mc *MarketCache) SetVolatility(ctx context.Context, pair string, vol float64) error {
	return mc.setScore(ctx, volatilityKey(pair), vol)
}

// GetVolatility retrieves the volatility estimate for a pair.
func (mc *MarketCache) GetVolatility(ctx context.Context, pair string) (float64, error) {
	return mc.getScore(ctx, volatilityKey(pair))
}

func (mc *MarketCache) setScore(ctx context.Context, key string, v float64) error {
	if err := mc.rdb.Set(ctx, key, strconv.FormatFloat(v, 'f', -1, 64), 0).Err(); err != nil {
		return fmt.Errorf("redis: set %s: %w", key, err)
	}
	return nil
}

func (mc *MarketCache) getScore(ctx context.Context, key string) (float64, error) {
	raw, err := mc.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return 0, domain.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("redis: get %s: %w", key, err)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("redis: parse %s: %w", key, err)
	}
	return v, nil
}
