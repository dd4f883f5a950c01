package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/solvernet/intentbot/internal/domain"
)

// ExecutionStore implements domain.ExecutionHistoryStore using PostgreSQL.
// Amounts are stored as NUMERIC and travel as decimal strings; the errors
// slice is serialized to JSONB.
type ExecutionStore struct {
	pool *pgxpool.Pool
}

// NewExecutionStore creates an ExecutionStore backed by the given pool.
func NewExecutionStore(pool *pgxpool.Pool) *ExecutionStore {
	return &ExecutionStore{pool: pool}
}

const executionSelectCols = `id, intent_id, solver_id, state, progress, step,
	gas_used::text, realized_out::text, errors, started_at, completed_at`

// Insert records a terminal attempt. The history is write-once per id;
// a duplicate insert is an error.
func (s *ExecutionStore) Insert(ctx context.Context, status domain.ExecutionStatus) error {
	errsJSON, err := json.Marshal(status.Errors)
	if err != nil {
		return fmt.Errorf("postgres: marshal execution errors: %w", err)
	}
	const query = `
		INSERT INTO executions (
			id, intent_id, solver_id, state, progress, step,
			gas_used, realized_out, errors, started_at, completed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, $8::numeric, $9, $10, $11)`
	_, err = s.pool.Exec(ctx, query,
		status.ID, status.IntentID, status.SolverID, string(status.State), status.Progress, status.Step,
		bigText(status.GasUsed), bigText(status.RealizedOut),
		errsJSON, status.StartedAt, status.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert execution %s: %w", status.ID, err)
	}
	return nil
}

// GetByID fetches one retained attempt.
func (s *ExecutionStore) GetByID(ctx context.Context, id string) (domain.ExecutionStatus, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+executionSelectCols+` FROM executions WHERE id = $1`, id)
	status, err := scanExecution(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ExecutionStatus{}, fmt.Errorf("postgres: execution %s: %w", id, domain.ErrNotFound)
		}
		return domain.ExecutionStatus{}, fmt.Errorf("postgres: get execution %s: %w", id, err)
	}
	return status, nil
}

// ListRecent returns up to limit attempts, newest completion first.
func (s *ExecutionStore) ListRecent(ctx context.Context, limit int) ([]domain.ExecutionStatus, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+executionSelectCols+` FROM executions
		 ORDER BY completed_at DESC NULLS LAST LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list executions: %w", err)
	}
	defer rows.Close()

	var out []domain.ExecutionStatus
	for rows.Next() {
		status, err := scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan execution: %w", err)
		}
		out = append(out, status)
	}
	return out, rows.Err()
}

func scanExecution(row pgx.Row) (domain.ExecutionStatus, error) {
	var (
		status           domain.ExecutionStatus
		state            string
		gasText, outText string
		errsJSON         []byte
		completedAt      *time.Time
	)
	if err := row.Scan(
		&status.ID, &status.IntentID, &status.SolverID, &state, &status.Progress, &status.Step,
		&gasText, &outText, &errsJSON, &status.StartedAt, &completedAt,
	); err != nil {
		return domain.ExecutionStatus{}, err
	}
	status.State = domain.ExecutionState(state)
	status.GasUsed = parseBig(gasText)
	status.RealizedOut = parseBig(outText)
	status.CompletedAt = completedAt
	if len(errsJSON) > 0 {
		if err := json.Unmarshal(errsJSON, &status.Errors); err != nil {
			return domain.ExecutionStatus{}, fmt.Errorf("unmarshal errors: %w", err)
		}
	}
	return status, nil
}

func bigText(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func parseBig(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return new(big.Int)
	}
	return v
}
