package domain

import (
	"math/big"
	"time"
)

// Objective selects the scoring function used to rank routes.
type Objective string

const (
	ObjectiveSpeed    Objective = "speed"
	ObjectiveCost     Objective = "cost"
	ObjectiveSecurity Objective = "security"
	ObjectiveBalanced Objective = "balanced"
)

// FeeBreakdown itemizes the estimated cost of a route. All amounts are in
// the output asset's smallest unit.
type FeeBreakdown struct {
	ProtocolFee  *big.Int
	GasFee       *big.Int
	SlippageCost *big.Int
	Total        *big.Int
}

// ExecutionRoute is one candidate way to realize a conversion: an ordered
// asset path and the venue used for each hop. Routes are created by
// discovery and read-only downstream; retries produce a new route object,
// never a mutation.
type ExecutionRoute struct {
	ID               string
	Path             []string // len(Path) == len(Venues)+1 always
	Venues           []string
	AmountIn         *big.Int
	EstimatedOut     *big.Int
	Fees             FeeBreakdown
	ExpectedSlippage float64 // fraction, e.g. 0.01
	EstimatedTime    time.Duration
	Confidence       float64 // [0,1]
}

// Hops returns the number of hops in the route.
func (r ExecutionRoute) Hops() int {
	return len(r.Venues)
}

// Direct reports whether the route is a single-hop conversion.
func (r ExecutionRoute) Direct() bool {
	return len(r.Venues) == 1
}

// Validate checks the structural route invariants.
func (r ExecutionRoute) Validate() error {
	if len(r.Path) < 2 || len(r.Path)-1 != len(r.Venues) {
		return ErrInvalidRoute
	}
	if r.AmountIn == nil || r.AmountIn.Sign() <= 0 {
		return ErrInvalidRoute
	}
	if r.EstimatedOut == nil || r.EstimatedOut.Sign() <= 0 {
		return ErrInvalidRoute
	}
	return nil
}

// RouteConstraints are caller-supplied hard limits. A route violating any
// set limit is dropped entirely during ranking.
type RouteConstraints struct {
	MaxSlippage  float64       // 0 means unconstrained
	MaxExecTime  time.Duration // 0 means unconstrained
	MinAmountOut *big.Int      // nil means unconstrained
}

// RankedRoute pairs a route with the score it earned under an objective.
type RankedRoute struct {
	Route     ExecutionRoute
	Score     float64 // [0,1]
	Objective Objective
}
