package domain

import (
	"math/big"
	"time"
)

// ArbComplexity is a coarse tier for how hard an opportunity is to capture,
// derived from the venues' average execution times.
type ArbComplexity string

const (
	ArbComplexityLow    ArbComplexity = "low"
	ArbComplexityMedium ArbComplexity = "medium"
	ArbComplexityHigh   ArbComplexity = "high"
)

// ArbitrageOpportunity is a detected cross-venue price discrepancy for a
// single pair. Derived per scan; not persisted beyond the call unless an
// OpportunityStore is attached.
type ArbitrageOpportunity struct {
	ID              string
	Pair            string
	BuyVenue        string
	SellVenue       string
	BuyPrice        float64 // fee-adjusted
	SellPrice       float64 // fee-adjusted
	ProfitPct       float64 // fraction, (sell-buy)/buy
	ProfitAmount    *big.Int
	RequiredCapital *big.Int
	Complexity      ArbComplexity
	TimeSensitivity time.Duration
	Confidence      float64
	DetectedAt      time.Time
}
