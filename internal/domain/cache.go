package domain

import (
	"context"
	"time"
)

// MarketCache provides fast access to the latest market numbers. Backed by
// Redis in production; the market-data provider reads through it.
type MarketCache interface {
	SetPrice(ctx context.Context, pair string, price float64, ts time.Time) error
	GetPrice(ctx context.Context, pair string) (float64, time.Time, error)
	SetLiquidity(ctx context.Context, pair string, score float64) error
	GetLiquidity(ctx context.Context, pair string) (float64, error)
	SetVolatility(ctx context.Context, pair string, vol float64) error
	GetVolatility(ctx context.Context, pair string) (float64, error)
}

// SignalBus provides pub/sub messaging. It is the redundant second channel
// for intent publication and the fan-in path for quotes delivered by
// out-of-process relays.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// LockManager provides distributed locking, used to serialize execution
// attempts for the same intent across processes.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// RateLimiter bounds request rates per key. Used by the HTTP API middleware.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
