package ledger

import (
	"context"
	"sync"
)

// MemoryStore keeps totals in process memory.
type MemoryStore struct {
	mu     sync.Mutex
	totals map[string]float64
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{totals: make(map[string]float64)}
}

// Add increments the total for day.
func (s *MemoryStore) Add(ctx context.Context, day string, amount float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.totals[day] += amount
	s.mu.Unlock()
	return nil
}

// Total returns the total for day.
func (s *MemoryStore) Total(ctx context.Context, day string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totals[day], nil
}

var _ Store = (*MemoryStore)(nil)
