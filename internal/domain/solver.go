package domain

import (
	"math/big"
	"time"
)

// Solver is an independent agent registered on the solver network. The
// reputation score is the ratio of successful to total fills, updated on
// settlement outcome.
type Solver struct {
	ID              string
	Address         string // on-chain address that signs quotes
	Reputation      float64
	TotalFills      int64
	SuccessfulFills int64
	Stake           *big.Int
	Active          bool
	LastSeen        time.Time
}

// SuccessRate returns the solver's fill success ratio, or 1.0 when the
// solver has no history yet (newly registered solvers start at full score,
// as on the settlement contract).
func (s Solver) SuccessRate() float64 {
	if s.TotalFills == 0 {
		return 1.0
	}
	return float64(s.SuccessfulFills) / float64(s.TotalFills)
}
