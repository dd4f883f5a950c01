package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/solvernet/intentbot/internal/domain"
)

// executeImmediate runs a route's hops in order, feeding each hop's output
// into the next. Progress advances proportionally from pstart toward pend.
// Any hop failure aborts the remaining hops of this attempt.
func (e *Engine) executeImmediate(ctx context.Context, ex *execution, route domain.ExecutionRoute, amount *big.Int, pstart, pend float64) *domain.ExecutionError {
	current := new(big.Int).Set(amount)
	span := pend - pstart
	hops := route.Hops()

	for i := 0; i < hops; i++ {
		if ex.isCancelled() {
			return nil
		}
		select {
		case <-ctx.Done():
			return &domain.ExecutionError{
				Code: domain.CodeNetworkCongestion, Message: ctx.Err().Error(),
				Step: hopStep(i, hops), Recoverable: true, At: time.Now(),
			}
		default:
		}

		venue, assetIn, assetOut := route.Venues[i], route.Path[i], route.Path[i+1]
		ex.setStep(hopStep(i, hops))

		res, err := e.hops.ExecuteHop(ctx, venue, assetIn, assetOut, current)
		if err != nil {
			code := domain.ClassifyHopError(err)
			return &domain.ExecutionError{
				Code:        code,
				Message:     fmt.Sprintf("hop %d/%d on %s: %v", i+1, hops, venue, err),
				Step:        hopStep(i, hops),
				Recoverable: domain.RecoverableCode(code),
				At:          time.Now(),
			}
		}

		gas := res.GasUsed
		if i == hops-1 {
			// Only the final hop's output is realized output of the route.
			ex.addRealized(gas, res.AmountOut)
		} else {
			ex.addRealized(gas, nil)
		}
		current = res.AmountOut
		ex.setProgress(pstart + span*float64(i+1)/float64(hops))

		e.logger.DebugContext(ctx, "hop settled",
			slog.String("execution_id", ex.snapshot().ID),
			slog.String("venue", venue),
			slog.String("pair", domain.MakePair(assetIn, assetOut)),
			slog.String("amount_out", res.AmountOut.String()),
		)

		if i < hops-1 && e.cfg.HopPause > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(e.cfg.HopPause):
			}
		}
	}
	return nil
}

// executeSplit runs each split child in order, honoring its delay offset and
// checking its preconditions once at activation time. A child with unmet
// preconditions is skipped, recorded as a recoverable error, and never
// retried. Strict majority success completes the attempt; otherwise the
// whole attempt fails.
func (e *Engine) executeSplit(ctx context.Context, ex *execution) *domain.ExecutionError {
	children := ex.plan.Children
	if len(children) == 0 {
		return &domain.ExecutionError{
			Code: domain.CodeValidationFailed, Message: "split strategy with no children",
			Step: "split", At: time.Now(),
		}
	}

	base := time.Now()
	span := float64(progressExecuted - progressRiskChecked)
	succeeded := 0

	for i, child := range children {
		if ex.isCancelled() {
			return nil
		}
		if wait := time.Until(base.Add(child.Delay)); wait > 0 {
			select {
			case <-ctx.Done():
				return &domain.ExecutionError{
					Code: domain.CodeNetworkCongestion, Message: ctx.Err().Error(),
					Step: splitStep(i, len(children)), Recoverable: true, At: time.Now(),
				}
			case <-time.After(wait):
			}
		}
		if ex.isCancelled() {
			return nil
		}

		met, err := e.checkConditions(ctx, child.Conditions)
		if err != nil || !met {
			msg := "preconditions unmet at activation"
			if err != nil {
				msg = fmt.Sprintf("precondition check: %v", err)
			}
			ex.appendError(domain.ExecutionError{
				Code:        domain.CodeConditionUnmet,
				Message:     fmt.Sprintf("child %d/%d skipped: %s", i+1, len(children), msg),
				Step:        splitStep(i, len(children)),
				Recoverable: true,
				At:          time.Now(),
			})
			continue
		}

		pstart := float64(progressRiskChecked) + span*float64(i)/float64(len(children))
		pend := float64(progressRiskChecked) + span*float64(i+1)/float64(len(children))
		if hopErr := e.executeImmediate(ctx, ex, child.Route, child.Amount, pstart, pend); hopErr != nil {
			// A failed child is recorded but does not abort the remaining
			// children; the majority rule decides the attempt's fate.
			ex.appendError(*hopErr)
			continue
		}
		succeeded++
	}
	if ex.isCancelled() {
		return nil
	}

	if succeeded*2 <= len(children) {
		return &domain.ExecutionError{
			Code:    domain.CodeMajorityFailed,
			Message: fmt.Sprintf("only %d of %d split children succeeded", succeeded, len(children)),
			Step:    "split",
			At:      time.Now(),
		}
	}
	return nil
}

// executeDelayed polls the strategy's gating conditions until they hold,
// then runs the route immediately. Conditions that never hold within the
// configured window fail the attempt with a condition timeout.
func (e *Engine) executeDelayed(ctx context.Context, ex *execution) *domain.ExecutionError {
	ex.setStep("awaiting conditions")
	if err := e.waitForConditions(ctx, ex, ex.plan.Conditions); err != nil {
		return &domain.ExecutionError{
			Code:        domain.CodeConditionTimeout,
			Message:     err.Error(),
			Step:        "awaiting conditions",
			Recoverable: true,
			At:          time.Now(),
		}
	}
	if ex.isCancelled() {
		return nil
	}
	return e.executeImmediate(ctx, ex, ex.plan.Route, ex.plan.Route.AmountIn, progressRiskChecked, progressExecuted)
}

func hopStep(i, total int) string {
	return fmt.Sprintf("hop %d/%d", i+1, total)
}

func splitStep(i, total int) string {
	return fmt.Sprintf("split child %d/%d", i+1, total)
}
