package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/solvernet/intentbot/internal/domain"
)

// SolverStore implements domain.SolverStore using PostgreSQL.
type SolverStore struct {
	pool *pgxpool.Pool
}

// NewSolverStore creates a SolverStore backed by the given pool.
func NewSolverStore(pool *pgxpool.Pool) *SolverStore {
	return &SolverStore{pool: pool}
}

const solverSelectCols = `id, address, reputation, total_fills,
	successful_fills, stake::text, active, last_seen`

// Upsert inserts or replaces a solver registration.
func (s *SolverStore) Upsert(ctx context.Context, solver domain.Solver) error {
	const query = `
		INSERT INTO solvers (
			id, address, reputation, total_fills, successful_fills,
			stake, active, last_seen
		) VALUES ($1, $2, $3, $4, $5, $6::numeric, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			address = EXCLUDED.address,
			reputation = EXCLUDED.reputation,
			total_fills = EXCLUDED.total_fills,
			successful_fills = EXCLUDED.successful_fills,
			stake = EXCLUDED.stake,
			active = EXCLUDED.active,
			last_seen = EXCLUDED.last_seen`
	lastSeen := solver.LastSeen
	if lastSeen.IsZero() {
		lastSeen = time.Now()
	}
	_, err := s.pool.Exec(ctx, query,
		solver.ID, solver.Address, solver.Reputation,
		solver.TotalFills, solver.SuccessfulFills,
		bigText(solver.Stake), solver.Active, lastSeen,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert solver %s: %w", solver.ID, err)
	}
	return nil
}

// GetByID fetches one solver.
func (s *SolverStore) GetByID(ctx context.Context, id string) (domain.Solver, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+solverSelectCols+` FROM solvers WHERE id = $1`, id)
	solver, err := scanSolver(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Solver{}, fmt.Errorf("postgres: solver %s: %w", id, domain.ErrNotFound)
		}
		return domain.Solver{}, fmt.Errorf("postgres: get solver %s: %w", id, err)
	}
	return solver, nil
}

// ListActive returns all active solvers, most reputable first.
func (s *SolverStore) ListActive(ctx context.Context) ([]domain.Solver, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+solverSelectCols+` FROM solvers
		 WHERE active ORDER BY reputation DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list active solvers: %w", err)
	}
	defer rows.Close()

	var out []domain.Solver
	for rows.Next() {
		solver, err := scanSolver(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan solver: %w", err)
		}
		out = append(out, solver)
	}
	return out, rows.Err()
}

// RecordResult bumps the fill counters in one statement and recomputes the
// reputation as the success ratio.
func (s *SolverStore) RecordResult(ctx context.Context, id string, success bool) error {
	const query = `
		UPDATE solvers SET
			total_fills = total_fills + 1,
			successful_fills = successful_fills + CASE WHEN $2 THEN 1 ELSE 0 END,
			reputation = (successful_fills + CASE WHEN $2 THEN 1 ELSE 0 END)::float
				/ (total_fills + 1),
			last_seen = NOW()
		WHERE id = $1`
	tag, err := s.pool.Exec(ctx, query, id, success)
	if err != nil {
		return fmt.Errorf("postgres: record solver result %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: solver %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

func scanSolver(row pgx.Row) (domain.Solver, error) {
	var (
		solver    domain.Solver
		stakeText string
	)
	if err := row.Scan(
		&solver.ID, &solver.Address, &solver.Reputation,
		&solver.TotalFills, &solver.SuccessfulFills,
		&stakeText, &solver.Active, &solver.LastSeen,
	); err != nil {
		return domain.Solver{}, err
	}
	solver.Stake = parseBig(stakeText)
	return solver, nil
}
