package domain

import (
	"math/big"
	"time"
)

// Quote is a solver's signed proposal to fulfill an intent. Quotes arrive
// over the solver network and are untrusted until validated (expiry,
// min-output compliance, solver activity, signature).
type Quote struct {
	ID          string
	SolverID    string
	IntentID    string
	AmountOut   *big.Int
	Fee         *big.Int
	GasEstimate *big.Int
	ExecTime    time.Duration
	Confidence  float64 // solver-reported, [0,1]
	Signature   []byte
	ExpiresAt   time.Time
	ReceivedAt  time.Time
}

// Expired reports whether the quote's own deadline has passed at t.
func (q Quote) Expired(t time.Time) bool {
	return !q.ExpiresAt.IsZero() && t.After(q.ExpiresAt)
}

// QuoteRisk is a coarse risk tier derived during analysis.
type QuoteRisk string

const (
	QuoteRiskLow    QuoteRisk = "low"
	QuoteRiskMedium QuoteRisk = "medium"
	QuoteRiskHigh   QuoteRisk = "high"
)

// Recommendation is the final verdict on a quote.
type Recommendation string

const (
	RecommendAccept   Recommendation = "accept"
	RecommendConsider Recommendation = "consider"
	RecommendReject   Recommendation = "reject"
)

// QuoteAnalysis pairs a quote with its derived score and verdict. Derived
// per quote at evaluation time; not persisted.
type QuoteAnalysis struct {
	Quote          Quote
	Score          float64
	Positives      []string
	Negatives      []string
	Risk           QuoteRisk
	Recommendation Recommendation
}

// QuotePriority is the caller's secondary sort among surviving quotes.
type QuotePriority string

const (
	PriorityAmount     QuotePriority = "amount"
	PriorityFee        QuotePriority = "fee"
	PrioritySpeed      QuotePriority = "speed"
	PriorityReputation QuotePriority = "reputation"
	PriorityBalanced   QuotePriority = "balanced"
)

// QuoteCriteria are the caller-supplied selection constraints applied on
// top of the base quote score. Zero values mean "no constraint".
type QuoteCriteria struct {
	MaxSlippage      float64
	MaxFeePct        float64 // fee as a fraction of input amount
	MaxExecTime      time.Duration
	MinConfidence    float64
	PreferredSolvers []string
	Prioritize       QuotePriority
}
