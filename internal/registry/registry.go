// Package registry provides the in-memory venue registry. The catalog is
// seeded from configuration at startup and may be updated at runtime; all
// reads return copies so callers never share mutable venue state.
package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/solvernet/intentbot/internal/domain"
)

// Registry implements domain.VenueRegistry.
type Registry struct {
	mu     sync.RWMutex
	venues map[string]domain.Venue
	order  []string // insertion order, for deterministic List
}

// New creates a Registry seeded with the given venues.
func New(seed []domain.Venue) *Registry {
	r := &Registry{venues: make(map[string]domain.Venue, len(seed))}
	for _, v := range seed {
		if _, ok := r.venues[v.ID]; !ok {
			r.order = append(r.order, v.ID)
		}
		r.venues[v.ID] = v
	}
	return r
}

// Get returns the venue with the given id.
func (r *Registry) Get(ctx context.Context, id string) (domain.Venue, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.venues[id]
	if !ok {
		return domain.Venue{}, fmt.Errorf("registry: venue %s: %w", id, domain.ErrNotFound)
	}
	return v, nil
}

// List returns all venues in insertion order.
func (r *Registry) List(ctx context.Context) ([]domain.Venue, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Venue, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.venues[id])
	}
	return out, nil
}

// ForPair returns the venues listing the exact pair, in insertion order.
func (r *Registry) ForPair(ctx context.Context, pair string) ([]domain.Venue, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.Venue
	for _, id := range r.order {
		if v := r.venues[id]; v.SupportsPair(pair) {
			out = append(out, v)
		}
	}
	return out, nil
}

// Upsert inserts or replaces a venue.
func (r *Registry) Upsert(ctx context.Context, v domain.Venue) error {
	if v.ID == "" {
		return fmt.Errorf("registry: upsert: empty venue id")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.venues[v.ID]; !ok {
		r.order = append(r.order, v.ID)
	}
	r.venues[v.ID] = v
	return nil
}

// Assets returns the distinct assets appearing in any listed pair, sorted.
// Used by discovery to bound the multi-hop template walk.
func (r *Registry) Assets(ctx context.Context) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[string]bool)
	for _, v := range r.venues {
		for _, p := range v.Pairs {
			for i := 0; i < len(p); i++ {
				if p[i] == '/' {
					seen[p[:i]] = true
					seen[p[i+1:]] = true
					break
				}
			}
		}
	}
	out := make([]string, 0, len(seen))
	for a := range seen {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

// Pairs returns the distinct pairs listed across all venues, sorted.
// Used by the scanner loop to enumerate what is worth watching.
func (r *Registry) Pairs(ctx context.Context) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[string]bool)
	for _, v := range r.venues {
		for _, p := range v.Pairs {
			seen[p] = true
		}
	}
	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
