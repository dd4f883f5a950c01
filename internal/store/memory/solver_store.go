package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/solvernet/intentbot/internal/domain"
)

// SolverStore is an in-memory solver registry with reputation counters.
type SolverStore struct {
	mu      sync.RWMutex
	byID    map[string]domain.Solver
	ordered []string
}

func NewSolverStore() *SolverStore {
	return &SolverStore{byID: make(map[string]domain.Solver)}
}

func (s *SolverStore) Upsert(_ context.Context, solver domain.Solver) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[solver.ID]; !ok {
		s.ordered = append(s.ordered, solver.ID)
	}
	s.byID[solver.ID] = solver
	return nil
}

func (s *SolverStore) GetByID(_ context.Context, id string) (domain.Solver, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	solver, ok := s.byID[id]
	if !ok {
		return domain.Solver{}, fmt.Errorf("solver %s: %w", id, domain.ErrNotFound)
	}
	return solver, nil
}

func (s *SolverStore) ListActive(_ context.Context) ([]domain.Solver, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Solver, 0, len(s.byID))
	for _, id := range s.ordered {
		if solver := s.byID[id]; solver.Active {
			out = append(out, solver)
		}
	}
	return out, nil
}

// RecordResult bumps the fill counters and recomputes reputation as the
// success ratio.
func (s *SolverStore) RecordResult(_ context.Context, id string, success bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	solver, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("solver %s: %w", id, domain.ErrNotFound)
	}
	solver.TotalFills++
	if success {
		solver.SuccessfulFills++
	}
	solver.Reputation = solver.SuccessRate()
	solver.LastSeen = time.Now()
	s.byID[id] = solver
	return nil
}
