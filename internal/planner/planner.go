// Package planner decides execution timing for a selected route: run it
// immediately, delay it behind market preconditions, or split it into
// time-staggered child orders. Planning is a pure decision: the same route
// and market state always produce the same strategy, and nothing here has
// side effects.
package planner

import (
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/solvernet/intentbot/internal/domain"
)

// Config holds the planner thresholds.
type Config struct {
	SplitSlippageThreshold float64       // split when expected slippage exceeds this
	SplitNotionalCeiling   float64       // or when notional size exceeds this
	MaxSplits              int           // at most 5 child orders
	SplitDelay             time.Duration // stagger between children
	VolatilityThreshold    float64       // delay behind a volatility gate above this
	LiquidityFloor         float64       // liquidity precondition on split children
}

// Planner produces execution strategies.
type Planner struct {
	cfg Config
}

// New creates a Planner.
func New(cfg Config) *Planner {
	return &Planner{cfg: cfg}
}

// Plan decides the timing for the route under the given market state.
//
// Split wins over plain delay: a large or high-slippage order is split even
// in calm markets. High volatility additionally attaches a
// volatility-below-threshold precondition, to the children when splitting
// and as a delayed-execution gate otherwise.
func (p *Planner) Plan(route domain.ExecutionRoute, market domain.MarketState) (domain.ExecutionStrategy, error) {
	if err := route.Validate(); err != nil {
		return domain.ExecutionStrategy{}, fmt.Errorf("planner: %w", err)
	}

	volatile := market.Volatility > p.cfg.VolatilityThreshold
	var volGate []domain.ExecutionCondition
	if volatile {
		volGate = []domain.ExecutionCondition{{
			Type:      domain.ConditionVolatility,
			Op:        domain.OpLT,
			Threshold: p.cfg.VolatilityThreshold,
			Pair:      market.Pair,
		}}
	}

	if p.shouldSplit(route) {
		children := p.split(route, volGate)
		return domain.ExecutionStrategy{
			Timing:   domain.TimingSplit,
			Route:    route,
			Children: children,
			Reason:   fmt.Sprintf("slippage %.4f / notional above split thresholds", route.ExpectedSlippage),
		}, nil
	}

	if volatile {
		return domain.ExecutionStrategy{
			Timing:     domain.TimingDelayed,
			Route:      route,
			Conditions: volGate,
			Reason:     fmt.Sprintf("volatility %.3f above %.3f", market.Volatility, p.cfg.VolatilityThreshold),
		}, nil
	}

	return domain.ExecutionStrategy{
		Timing: domain.TimingImmediate,
		Route:  route,
		Reason: "within slippage and size limits",
	}, nil
}

func (p *Planner) shouldSplit(route domain.ExecutionRoute) bool {
	if route.ExpectedSlippage > p.cfg.SplitSlippageThreshold {
		return true
	}
	notional, _ := new(big.Float).SetInt(route.AmountIn).Float64()
	return p.cfg.SplitNotionalCeiling > 0 && notional > p.cfg.SplitNotionalCeiling
}

// split builds up to MaxSplits equal-sized children, staggered by the
// configured delay. Every child carries a liquidity precondition; extra
// gates (the volatility condition) are appended to each child.
func (p *Planner) split(route domain.ExecutionRoute, extra []domain.ExecutionCondition) []domain.SplitOrder {
	n := p.cfg.MaxSplits
	if n > 5 {
		n = 5
	}
	if n < 2 {
		n = 2
	}
	pair := domain.MakePair(route.Path[0], route.Path[len(route.Path)-1])
	parts := domain.SplitAmount(route.AmountIn, n)
	children := make([]domain.SplitOrder, n)
	for i, part := range parts {
		conds := []domain.ExecutionCondition{{
			Type:      domain.ConditionLiquidity,
			Op:        domain.OpGTE,
			Threshold: p.cfg.LiquidityFloor,
			Pair:      pair,
		}}
		conds = append(conds, extra...)
		children[i] = domain.SplitOrder{
			ID:         uuid.NewString(),
			Amount:     part,
			Delay:      time.Duration(i) * p.cfg.SplitDelay,
			Route:      route,
			Conditions: conds,
		}
	}
	return children
}
