package notify

import (
	"context"
	"fmt"

	"github.com/solvernet/intentbot/internal/domain"
)

// Event types recognised by the notifier filter.
const (
	EventExecutionCompleted = "execution_completed"
	EventExecutionFailed    = "execution_failed"
	EventOpportunityFound   = "opportunity_found"
	EventRiskWarning        = "risk_warning"
)

// ExecutionFinished formats and dispatches a terminal-execution alert.
func (n *Notifier) ExecutionFinished(ctx context.Context, status domain.ExecutionStatus) error {
	switch status.State {
	case domain.ExecStateCompleted:
		return n.Notify(ctx, EventExecutionCompleted,
			"Execution completed",
			fmt.Sprintf("Execution %s completed. Realized output: %s, gas used: %s.",
				status.ID, status.RealizedOut, status.GasUsed))
	case domain.ExecStateFailed:
		reason := "unknown"
		if len(status.Errors) > 0 {
			last := status.Errors[len(status.Errors)-1]
			reason = fmt.Sprintf("%s (%s)", last.Message, last.Code)
		}
		return n.Notify(ctx, EventExecutionFailed,
			"Execution failed",
			fmt.Sprintf("Execution %s failed at %q: %s", status.ID, status.Step, reason))
	default:
		return nil
	}
}

// OpportunityFound formats and dispatches an arbitrage alert.
func (n *Notifier) OpportunityFound(ctx context.Context, opp domain.ArbitrageOpportunity) error {
	return n.Notify(ctx, EventOpportunityFound,
		"Arbitrage opportunity",
		fmt.Sprintf("%s: buy on %s at %.6f, sell on %s at %.6f (%.2f%% profit, %s complexity)",
			opp.Pair, opp.BuyVenue, opp.BuyPrice, opp.SellVenue, opp.SellPrice,
			opp.ProfitPct*100, opp.Complexity))
}
