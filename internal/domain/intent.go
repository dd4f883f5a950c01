// Package domain holds the core types shared across the intent engine:
// intents, venues, routes, quotes, executions, and the store/cache
// interfaces implemented by the infrastructure layers.
package domain

import (
	"math/big"
	"time"
)

// IntentStatus is the lifecycle state of an intent.
type IntentStatus string

const (
	IntentPending    IntentStatus = "pending"
	IntentInProgress IntentStatus = "in_progress"
	IntentCompleted  IntentStatus = "completed"
	IntentExpired    IntentStatus = "expired"
)

// Intent is a signed request to convert AmountIn of AssetIn into at least
// AmountOutMin of AssetOut before ExpiresAt. Immutable once signed; the
// engine never mutates an intent, it only reads it.
type Intent struct {
	ID           string
	User         string
	AssetIn      string
	AmountIn     *big.Int
	AssetOut     string
	AmountOutMin *big.Int
	Nonce        uint64
	Status       IntentStatus
	CreatedAt    time.Time
	ExpiresAt    time.Time
}

// Expired reports whether the intent deadline has passed at t.
func (i Intent) Expired(t time.Time) bool {
	return !i.ExpiresAt.IsZero() && t.After(i.ExpiresAt)
}

// Pair returns the canonical pair identifier for the intent's conversion.
func (i Intent) Pair() string {
	return MakePair(i.AssetIn, i.AssetOut)
}

// Validate performs the synchronous input checks that must pass before any
// network or computation cost is spent on the intent.
func (i Intent) Validate(now time.Time) error {
	if i.ID == "" || i.User == "" {
		return ErrInvalidIntent
	}
	if i.AssetIn == "" || i.AssetOut == "" || i.AssetIn == i.AssetOut {
		return ErrUnsupportedAsset
	}
	if i.AmountIn == nil || i.AmountIn.Sign() <= 0 {
		return ErrInvalidIntent
	}
	if i.AmountOutMin == nil || i.AmountOutMin.Sign() < 0 {
		return ErrInvalidIntent
	}
	if i.Expired(now) {
		return ErrIntentExpired
	}
	return nil
}
