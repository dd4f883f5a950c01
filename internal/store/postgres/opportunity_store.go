package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/solvernet/intentbot/internal/domain"
)

// OpportunityStore implements domain.OpportunityStore using PostgreSQL.
// Time sensitivity persists as nanoseconds.
type OpportunityStore struct {
	pool *pgxpool.Pool
}

// NewOpportunityStore creates an OpportunityStore backed by the given pool.
func NewOpportunityStore(pool *pgxpool.Pool) *OpportunityStore {
	return &OpportunityStore{pool: pool}
}

// Insert records a detected opportunity.
func (s *OpportunityStore) Insert(ctx context.Context, opp domain.ArbitrageOpportunity) error {
	const query = `
		INSERT INTO arb_opportunities (
			id, pair, buy_venue, sell_venue, buy_price, sell_price,
			profit_pct, profit_amount, required_capital,
			complexity, time_sensitivity, confidence, detected_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8::numeric, $9::numeric, $10, $11, $12, $13)
		ON CONFLICT (id) DO NOTHING`
	_, err := s.pool.Exec(ctx, query,
		opp.ID, opp.Pair, opp.BuyVenue, opp.SellVenue,
		opp.BuyPrice, opp.SellPrice, opp.ProfitPct,
		bigText(opp.ProfitAmount), bigText(opp.RequiredCapital),
		string(opp.Complexity), opp.TimeSensitivity.Nanoseconds(),
		opp.Confidence, opp.DetectedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert opportunity %s: %w", opp.ID, err)
	}
	return nil
}

// ListRecent returns up to limit opportunities, newest first.
func (s *OpportunityStore) ListRecent(ctx context.Context, limit int) ([]domain.ArbitrageOpportunity, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `
		SELECT id, pair, buy_venue, sell_venue, buy_price, sell_price,
			profit_pct, profit_amount::text, required_capital::text,
			complexity, time_sensitivity, confidence, detected_at
		FROM arb_opportunities ORDER BY detected_at DESC LIMIT $1`
	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list opportunities: %w", err)
	}
	defer rows.Close()

	var out []domain.ArbitrageOpportunity
	for rows.Next() {
		var (
			opp                     domain.ArbitrageOpportunity
			profitText, capitalText string
			complexity              string
			sensitivityNanos        int64
		)
		if err := rows.Scan(
			&opp.ID, &opp.Pair, &opp.BuyVenue, &opp.SellVenue,
			&opp.BuyPrice, &opp.SellPrice, &opp.ProfitPct,
			&profitText, &capitalText, &complexity,
			&sensitivityNanos, &opp.Confidence, &opp.DetectedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan opportunity: %w", err)
		}
		opp.ProfitAmount = parseBig(profitText)
		opp.RequiredCapital = parseBig(capitalText)
		opp.Complexity = domain.ArbComplexity(complexity)
		opp.TimeSensitivity = time.Duration(sensitivityNanos)
		out = append(out, opp)
	}
	return out, rows.Err()
}
