// Package memory provides in-process store implementations. They back tests
// and standalone runs where Postgres is not configured; the wiring swaps
// them for the postgres package transparently.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/solvernet/intentbot/internal/domain"
)

// ExecutionHistory is an in-memory, write-once-per-id history of terminal
// execution attempts.
type ExecutionHistory struct {
	mu      sync.RWMutex
	byID    map[string]domain.ExecutionStatus
	ordered []string
}

func NewExecutionHistory() *ExecutionHistory {
	return &ExecutionHistory{byID: make(map[string]domain.ExecutionStatus)}
}

func (h *ExecutionHistory) Insert(_ context.Context, status domain.ExecutionStatus) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.byID[status.ID]; ok {
		return fmt.Errorf("execution %s already recorded", status.ID)
	}
	h.byID[status.ID] = status
	h.ordered = append(h.ordered, status.ID)
	return nil
}

func (h *ExecutionHistory) GetByID(_ context.Context, id string) (domain.ExecutionStatus, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	status, ok := h.byID[id]
	if !ok {
		return domain.ExecutionStatus{}, fmt.Errorf("execution %s: %w", id, domain.ErrNotFound)
	}
	return status, nil
}

// ListRecent returns up to limit terminal attempts, newest first by
// completion time.
func (h *ExecutionHistory) ListRecent(_ context.Context, limit int) ([]domain.ExecutionStatus, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]domain.ExecutionStatus, 0, len(h.byID))
	for _, id := range h.ordered {
		out = append(out, h.byID[id])
	}
	sort.SliceStable(out, func(i, j int) bool {
		ti, tj := out[i].CompletedAt, out[j].CompletedAt
		if ti == nil || tj == nil {
			return tj == nil && ti != nil
		}
		return ti.After(*tj)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
