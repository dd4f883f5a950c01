package memory

import (
	"context"
	"sync"

	"github.com/solvernet/intentbot/internal/domain"
)

// OpportunityStore keeps detected arbitrage opportunities in a bounded
// ring so long-running scan loops do not grow without limit.
type OpportunityStore struct {
	mu   sync.RWMutex
	opps []domain.ArbitrageOpportunity
	cap  int
}

func NewOpportunityStore(capacity int) *OpportunityStore {
	if capacity <= 0 {
		capacity = 1024
	}
	return &OpportunityStore{cap: capacity}
}

func (s *OpportunityStore) Insert(_ context.Context, opp domain.ArbitrageOpportunity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opps = append(s.opps, opp)
	if len(s.opps) > s.cap {
		s.opps = s.opps[len(s.opps)-s.cap:]
	}
	return nil
}

func (s *OpportunityStore) ListRecent(_ context.Context, limit int) ([]domain.ArbitrageOpportunity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := len(s.opps)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]domain.ArbitrageOpportunity, n)
	for i := 0; i < n; i++ {
		out[i] = s.opps[len(s.opps)-1-i]
	}
	return out, nil
}
