package domain

import (
	"math/big"
	"time"
)

// ExecutionState is the engine's state machine position for one attempt.
type ExecutionState string

const (
	ExecStatePending      ExecutionState = "pending"
	ExecStateValidating   ExecutionState = "validating"
	ExecStateRiskChecking ExecutionState = "risk_checking"
	ExecStateExecuting    ExecutionState = "executing"
	ExecStateCompleted    ExecutionState = "completed"
	ExecStateFailed       ExecutionState = "failed"
	ExecStateCancelled    ExecutionState = "cancelled"
)

// Terminal reports whether the state is one of the three end states.
func (s ExecutionState) Terminal() bool {
	return s == ExecStateCompleted || s == ExecStateFailed || s == ExecStateCancelled
}

// ExecutionTiming is the planner's timing decision.
type ExecutionTiming string

const (
	TimingImmediate ExecutionTiming = "immediate"
	TimingDelayed   ExecutionTiming = "delayed"
	TimingSplit     ExecutionTiming = "split"
)

// ConditionType classifies an execution precondition.
type ConditionType string

const (
	ConditionPrice      ConditionType = "price"
	ConditionTime       ConditionType = "time"
	ConditionLiquidity  ConditionType = "liquidity"
	ConditionVolatility ConditionType = "volatility"
)

// ConditionOp is the comparison applied between the live value and the
// condition threshold.
type ConditionOp string

const (
	OpGTE ConditionOp = "gte"
	OpLTE ConditionOp = "lte"
	OpGT  ConditionOp = "gt"
	OpLT  ConditionOp = "lt"
)

// ExecutionCondition is a typed predicate evaluated against live market
// state at check time.
type ExecutionCondition struct {
	Type      ConditionType
	Op        ConditionOp
	Threshold float64
	Pair      string
}

// SplitOrder is one time-staggered child of a split execution. Owned by the
// planner; consumed one-way by the engine.
type SplitOrder struct {
	ID         string
	Amount     *big.Int
	Delay      time.Duration // offset from the plan's base time
	Route      ExecutionRoute
	Conditions []ExecutionCondition
}

// ExecutionStrategy is the planner's full output for one route: the timing
// decision plus any split children and gating conditions.
type ExecutionStrategy struct {
	Timing     ExecutionTiming
	Route      ExecutionRoute
	Children   []SplitOrder         // set when Timing == TimingSplit
	Conditions []ExecutionCondition // gate for TimingDelayed
	IntentID   string
	SolverID   string // winning quote's solver; empty without a quote round
	Reason     string
}

// ExecutionError is one structured error captured during an attempt. Errors
// accumulate on the status; they never replace prior entries.
type ExecutionError struct {
	Code        string
	Message     string
	Step        string
	Recoverable bool
	At          time.Time
}

// ExecutionStatus is the engine's observable record for one attempt. Owned
// exclusively by the engine while the attempt is live; retained in history
// once terminal (except cancelled attempts, which are dropped).
type ExecutionStatus struct {
	ID          string
	IntentID    string
	SolverID    string
	State       ExecutionState
	Progress    float64 // [0,100], monotonically non-decreasing while executing
	Step        string
	GasUsed     *big.Int
	RealizedOut *big.Int
	Errors      []ExecutionError
	StartedAt   time.Time
	CompletedAt *time.Time
}

// PerformanceMetrics are computed after an attempt reaches a terminal state.
type PerformanceMetrics struct {
	GasEfficiency    float64 // expected/actual, capped at 1.0
	RealizedSlippage float64 // |actual-expected| / expected
	PriceImpact      float64 // equal to realized slippage in this design
}

// HopResult is what the settlement layer reports for one executed hop.
type HopResult struct {
	AmountOut *big.Int
	GasUsed   *big.Int
}
