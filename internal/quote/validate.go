package quote

import (
	"fmt"
	"time"

	"github.com/solvernet/intentbot/internal/crypto"
	"github.com/solvernet/intentbot/internal/domain"
)

// validateQuote applies the per-quote acceptance rules. Quotes are
// untrusted solver input; any failure here removes the quote from
// consideration entirely, regardless of how well it would have scored.
func (m *Manager) validateQuote(q domain.Quote, intent domain.Intent, solver domain.Solver, haveSolver bool, now time.Time) error {
	if q.IntentID != intent.ID {
		return fmt.Errorf("quote %s: intent id mismatch (%s != %s)", q.ID, q.IntentID, intent.ID)
	}
	if q.Expired(now) {
		return fmt.Errorf("quote %s: expired at %s", q.ID, q.ExpiresAt.Format(time.RFC3339))
	}
	if q.AmountOut == nil || q.AmountOut.Cmp(intent.AmountOutMin) < 0 {
		return fmt.Errorf("quote %s: output below intent minimum", q.ID)
	}
	if !haveSolver || !solver.Active {
		return fmt.Errorf("quote %s: %w", q.ID, domain.ErrSolverInactive)
	}
	if m.cfg.VerifySigs && solver.Address != "" {
		if err := crypto.VerifyQuote(q, solver.Address); err != nil {
			return fmt.Errorf("quote %s: %w", q.ID, err)
		}
	}
	return nil
}
