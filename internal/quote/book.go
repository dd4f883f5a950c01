package quote

import (
	"context"
	"sync"

	"github.com/solvernet/intentbot/internal/domain"
)

// Book is the in-memory quote registry. Quotes accumulate append-only per
// intent id; concurrent collection for different intents never interferes.
type Book struct {
	mu     sync.RWMutex
	quotes map[string][]domain.Quote
}

// NewBook creates an empty Book.
func NewBook() *Book {
	return &Book{quotes: make(map[string][]domain.Quote)}
}

// Append records a quote under its intent id.
func (b *Book) Append(ctx context.Context, q domain.Quote) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.quotes[q.IntentID] = append(b.quotes[q.IntentID], q)
	return nil
}

// ForIntent returns a copy of the quotes accumulated for the intent.
func (b *Book) ForIntent(ctx context.Context, intentID string) ([]domain.Quote, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	src := b.quotes[intentID]
	out := make([]domain.Quote, len(src))
	copy(out, src)
	return out, nil
}

// Drop removes all quotes for an intent once selection is done.
func (b *Book) Drop(ctx context.Context, intentID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.quotes, intentID)
	return nil
}
