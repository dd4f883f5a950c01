package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
}

// VenueRegistry is the injected catalog of trading venues. Implementations
// must be safe for concurrent reads.
type VenueRegistry interface {
	Get(ctx context.Context, id string) (Venue, error)
	List(ctx context.Context) ([]Venue, error)
	ForPair(ctx context.Context, pair string) ([]Venue, error)
	Assets(ctx context.Context) []string
	Upsert(ctx context.Context, v Venue) error
}

// ExecutionHistoryStore retains terminal execution attempts, write-once per
// id. Cancelled attempts are never inserted.
type ExecutionHistoryStore interface {
	Insert(ctx context.Context, status ExecutionStatus) error
	GetByID(ctx context.Context, id string) (ExecutionStatus, error)
	ListRecent(ctx context.Context, limit int) ([]ExecutionStatus, error)
}

// SolverStore persists solver registrations and reputation counters.
type SolverStore interface {
	Upsert(ctx context.Context, s Solver) error
	GetByID(ctx context.Context, id string) (Solver, error)
	ListActive(ctx context.Context) ([]Solver, error)
	// RecordResult bumps the fill counters and recomputes reputation.
	RecordResult(ctx context.Context, id string, success bool) error
}

// OpportunityStore persists detected arbitrage opportunities for later
// analysis.
type OpportunityStore interface {
	Insert(ctx context.Context, opp ArbitrageOpportunity) error
	ListRecent(ctx context.Context, limit int) ([]ArbitrageOpportunity, error)
}

// QuoteBook is the injected quote-by-intent registry fed by the solver
// network. Quotes accumulate append-only and are keyed by intent id, so
// concurrent executions for different intents never cross-talk.
type QuoteBook interface {
	Append(ctx context.Context, q Quote) error
	ForIntent(ctx context.Context, intentID string) ([]Quote, error)
	Drop(ctx context.Context, intentID string) error
}
