package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/solvernet/intentbot/internal/domain"
)

// evalCondition resolves one typed precondition against live market state.
// Time conditions compare against the Unix clock; the rest read the market
// data provider for the condition's pair.
func (e *Engine) evalCondition(ctx context.Context, cond domain.ExecutionCondition) (bool, error) {
	var value float64
	switch cond.Type {
	case domain.ConditionTime:
		value = float64(time.Now().Unix())
	case domain.ConditionPrice:
		v, err := e.market.Price(ctx, cond.Pair)
		if err != nil {
			return false, fmt.Errorf("price condition for %s: %w", cond.Pair, err)
		}
		value = v
	case domain.ConditionLiquidity:
		v, err := e.market.LiquidityScore(ctx, cond.Pair)
		if err != nil {
			return false, fmt.Errorf("liquidity condition for %s: %w", cond.Pair, err)
		}
		value = v
	case domain.ConditionVolatility:
		v, err := e.market.Volatility(ctx, cond.Pair)
		if err != nil {
			return false, fmt.Errorf("volatility condition for %s: %w", cond.Pair, err)
		}
		value = v
	default:
		return false, fmt.Errorf("unknown condition type %q", cond.Type)
	}
	return compare(value, cond.Op, cond.Threshold), nil
}

// checkConditions evaluates all conditions once; all must hold.
func (e *Engine) checkConditions(ctx context.Context, conds []domain.ExecutionCondition) (bool, error) {
	for _, cond := range conds {
		ok, err := e.evalCondition(ctx, cond)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// waitForConditions polls the conditions at the configured interval until
// they all hold, the wait window elapses, or the context ends. Evaluation
// errors are tolerated during polling; only the deadline fails the wait.
func (e *Engine) waitForConditions(ctx context.Context, ex *execution, conds []domain.ExecutionCondition) error {
	if len(conds) == 0 {
		return nil
	}
	met, err := e.checkConditions(ctx, conds)
	if err == nil && met {
		return nil
	}

	deadline := time.NewTimer(e.cfg.ConditionMaxWait)
	defer deadline.Stop()
	tick := time.NewTicker(e.cfg.ConditionPoll)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("condition wait: %w", domain.ErrContextDone)
		case <-deadline.C:
			return fmt.Errorf("conditions unmet after %s: %w", e.cfg.ConditionMaxWait, domain.ErrConditionTimeout)
		case <-tick.C:
			if ex.isCancelled() {
				return nil
			}
			met, err := e.checkConditions(ctx, conds)
			if err == nil && met {
				return nil
			}
		}
	}
}

func compare(value float64, op domain.ConditionOp, threshold float64) bool {
	switch op {
	case domain.OpGTE:
		return value >= threshold
	case domain.OpLTE:
		return value <= threshold
	case domain.OpGT:
		return value > threshold
	case domain.OpLT:
		return value < threshold
	default:
		return false
	}
}
