package domain

import "time"

// Venue is a trading facility (DEX) known to the registry.
type Venue struct {
	ID             string
	Name           string
	FeeRate        float64 // taker fee as a fraction, e.g. 0.003
	Reputation     float64 // [0,1]
	LiquidityScore float64 // [0,1]
	GasMultiplier  float64 // relative gas cost vs. baseline
	AvgExecTime    time.Duration
	Pairs          []string // supported pair identifiers
}

// SupportsPair reports whether the venue lists the exact pair.
func (v Venue) SupportsPair(pair string) bool {
	for _, p := range v.Pairs {
		if p == pair {
			return true
		}
	}
	return false
}
