// Package quote collects, validates, scores, and selects solver quotes for
// an intent. Collection is a bounded wait: every call path that awaits
// quotes carries a timeout, and an empty window is a distinct timeout
// failure rather than an empty success.
package quote

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/solvernet/intentbot/internal/domain"
)

// Publisher announces an intent to the solver network over one transport.
// The WebSocket client and the HTTP client both implement it; the manager
// publishes through both so either can fail independently.
type Publisher interface {
	PublishIntent(ctx context.Context, intent domain.Intent) error
}

// QuoteFetcher is the pull path for quotes. The HTTP transport implements
// it; the manager polls it while the book is empty so a dead WebSocket
// channel cannot starve collection.
type QuoteFetcher interface {
	FetchQuotes(ctx context.Context, intentID string) ([]domain.Quote, error)
}

// Unsubscriber ends an intent's quote stream once collection is over. The
// WebSocket transport implements it.
type Unsubscriber interface {
	Unsubscribe(ctx context.Context, intentID string) error
}

// Config holds quote collection and scoring parameters.
type Config struct {
	PollInterval   time.Duration
	DefaultTimeout time.Duration
	AcceptScore    float64
	RejectScore    float64
	VerifySigs     bool

	SurplusPoints    float64
	FeePoints        float64
	SpeedPoints      float64
	ReputationPoints float64
	ConfidencePoints float64
	PreferredBonus   float64
}

// Manager runs the quote lifecycle per intent:
// published -> awaiting-quotes -> (quotes-received | timed-out).
type Manager struct {
	ws      Publisher
	httpAPI Publisher
	book    domain.QuoteBook
	solvers domain.SolverStore
	cfg     Config
	logger  *slog.Logger
}

// NewManager creates a Manager. Both publish channels are explicit
// dependencies; pass the same value twice to run single-channel (tests).
func NewManager(ws, httpAPI Publisher, book domain.QuoteBook, solvers domain.SolverStore, cfg Config, logger *slog.Logger) *Manager {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 100 * time.Millisecond
	}
	return &Manager{
		ws:      ws,
		httpAPI: httpAPI,
		book:    book,
		solvers: solvers,
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "quote_manager")),
	}
}

// RequestQuotes publishes the intent, waits up to timeout for quotes to
// accumulate, then validates and scores what arrived. The returned
// analyses are sorted best-first: accepts before considers before rejects,
// with the caller's prioritization as the secondary order.
func (m *Manager) RequestQuotes(ctx context.Context, intent domain.Intent, timeout time.Duration, criteria domain.QuoteCriteria) ([]domain.QuoteAnalysis, error) {
	now := time.Now()
	if err := intent.Validate(now); err != nil {
		return nil, fmt.Errorf("quote: request: %w", err)
	}
	if timeout <= 0 {
		timeout = m.cfg.DefaultTimeout
	}

	if err := m.publish(ctx, intent); err != nil {
		return nil, err
	}

	quotes, err := m.waitForQuotes(ctx, intent.ID, timeout)
	m.endCollection(ctx, intent.ID)
	if err != nil {
		return nil, err
	}

	analyses := m.Evaluate(ctx, quotes, intent, criteria)
	m.sortAnalyses(ctx, analyses, criteria)
	return analyses, nil
}

// publish sends the intent over both channels; it fails only when both
// transports fail.
func (m *Manager) publish(ctx context.Context, intent domain.Intent) error {
	wsErr := m.ws.PublishIntent(ctx, intent)
	if wsErr != nil {
		m.logger.WarnContext(ctx, "ws publish failed, relying on http channel",
			slog.String("intent_id", intent.ID),
			slog.String("error", wsErr.Error()),
		)
	}
	httpErr := m.httpAPI.PublishIntent(ctx, intent)
	if httpErr != nil && wsErr != nil {
		return fmt.Errorf("quote: publish intent %s on both channels: ws: %v; http: %w", intent.ID, wsErr, httpErr)
	}
	return nil
}

// waitForQuotes polls the quote book at the configured interval until at
// least one quote arrives or the timeout elapses. While the book stays
// empty, any transport that supports pulling is polled too, so quotes still
// arrive when the push channel is down.
func (m *Manager) waitForQuotes(ctx context.Context, intentID string, timeout time.Duration) ([]domain.Quote, error) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	tick := time.NewTicker(m.cfg.PollInterval)
	defer tick.Stop()

	fetcher, canFetch := m.httpAPI.(QuoteFetcher)
	pulled := make(map[string]struct{})

	for {
		quotes, err := m.book.ForIntent(ctx, intentID)
		if err != nil {
			return nil, fmt.Errorf("quote: poll book: %w", err)
		}
		if len(quotes) > 0 {
			return quotes, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return nil, fmt.Errorf("quote: intent %s: %w", intentID, domain.ErrQuoteTimeout)
		case <-tick.C:
			if canFetch {
				m.pullQuotes(ctx, fetcher, intentID, pulled)
			}
		}
	}
}

// pullQuotes merges HTTP-fetched quotes into the book. The network returns
// its full accumulation on every call; ids already pulled are skipped so
// repeated polls never duplicate entries.
func (m *Manager) pullQuotes(ctx context.Context, fetcher QuoteFetcher, intentID string, pulled map[string]struct{}) {
	fetched, err := fetcher.FetchQuotes(ctx, intentID)
	if err != nil {
		m.logger.DebugContext(ctx, "quote pull failed",
			slog.String("intent_id", intentID),
			slog.String("error", err.Error()),
		)
		return
	}
	for _, q := range fetched {
		if _, ok := pulled[q.ID]; ok {
			continue
		}
		pulled[q.ID] = struct{}{}
		if err := m.book.Append(ctx, q); err != nil {
			m.logger.WarnContext(ctx, "quote pull: append",
				slog.String("quote_id", q.ID),
				slog.String("error", err.Error()),
			)
		}
	}
}

// endCollection drops the intent's book entry and ends its quote stream.
// Without this, per-intent entries and subscriptions accumulate for the
// life of the process.
func (m *Manager) endCollection(ctx context.Context, intentID string) {
	if err := m.book.Drop(ctx, intentID); err != nil {
		m.logger.WarnContext(ctx, "drop quote book entry",
			slog.String("intent_id", intentID),
			slog.String("error", err.Error()),
		)
	}
	if unsub, ok := m.ws.(Unsubscriber); ok {
		if err := unsub.Unsubscribe(ctx, intentID); err != nil {
			m.logger.DebugContext(ctx, "unsubscribe intent",
				slog.String("intent_id", intentID),
				slog.String("error", err.Error()),
			)
		}
	}
}

// Evaluate validates and scores a batch of quotes. Invalid quotes are
// logged and skipped; they produce no analysis at all.
func (m *Manager) Evaluate(ctx context.Context, quotes []domain.Quote, intent domain.Intent, criteria domain.QuoteCriteria) []domain.QuoteAnalysis {
	now := time.Now()
	analyses := make([]domain.QuoteAnalysis, 0, len(quotes))
	for _, q := range quotes {
		solver, err := m.solvers.GetByID(ctx, q.SolverID)
		haveSolver := err == nil
		if err := m.validateQuote(q, intent, solver, haveSolver, now); err != nil {
			m.logger.DebugContext(ctx, "quote rejected in validation",
				slog.String("quote_id", q.ID),
				slog.String("solver_id", q.SolverID),
				slog.String("reason", err.Error()),
			)
			continue
		}
		analyses = append(analyses, m.scoreQuote(q, intent, solver, criteria))
	}
	return analyses
}

// Select picks the best quote: accepts first, considers as fallback, none
// when everything is rejected.
func (m *Manager) Select(ctx context.Context, analyses []domain.QuoteAnalysis, criteria domain.QuoteCriteria) (domain.QuoteAnalysis, bool) {
	var pool []domain.QuoteAnalysis
	for _, a := range analyses {
		if a.Recommendation == domain.RecommendAccept {
			pool = append(pool, a)
		}
	}
	if len(pool) == 0 {
		for _, a := range analyses {
			if a.Recommendation == domain.RecommendConsider {
				pool = append(pool, a)
			}
		}
	}
	if len(pool) == 0 {
		return domain.QuoteAnalysis{}, false
	}
	m.sortAnalyses(ctx, pool, criteria)
	return pool[0], true
}

// recClass orders recommendations: accept < consider < reject.
func recClass(r domain.Recommendation) int {
	switch r {
	case domain.RecommendAccept:
		return 0
	case domain.RecommendConsider:
		return 1
	default:
		return 2
	}
}

// sortAnalyses orders analyses by recommendation class, then by the
// caller's prioritization, stably so equal quotes keep arrival order.
func (m *Manager) sortAnalyses(ctx context.Context, analyses []domain.QuoteAnalysis, criteria domain.QuoteCriteria) {
	reps := make(map[string]float64)
	if criteria.Prioritize == domain.PriorityReputation {
		for _, a := range analyses {
			if _, ok := reps[a.Quote.SolverID]; ok {
				continue
			}
			if s, err := m.solvers.GetByID(ctx, a.Quote.SolverID); err == nil {
				reps[a.Quote.SolverID] = s.Reputation
			}
		}
	}

	sort.SliceStable(analyses, func(i, j int) bool {
		ci, cj := recClass(analyses[i].Recommendation), recClass(analyses[j].Recommendation)
		if ci != cj {
			return ci < cj
		}
		qi, qj := analyses[i].Quote, analyses[j].Quote
		switch criteria.Prioritize {
		case domain.PriorityAmount:
			return qi.AmountOut.Cmp(qj.AmountOut) > 0
		case domain.PriorityFee:
			return qi.Fee.Cmp(qj.Fee) < 0
		case domain.PrioritySpeed:
			return qi.ExecTime < qj.ExecTime
		case domain.PriorityReputation:
			return reps[qi.SolverID] > reps[qj.SolverID]
		default: // balanced
			return analyses[i].Score > analyses[j].Score
		}
	})
}
