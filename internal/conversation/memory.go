package conversation

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps conversations in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	turns map[string][]Turn
	now   func() time.Time
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{turns: make(map[string][]Turn), now: time.Now}
}

func (s *MemoryStore) Append(ctx context.Context, id string, turns ...Turn) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if id == "" {
		return ErrInvalidID
	}
	now := s.now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range turns {
		if t.CreatedAt.IsZero() {
			t.CreatedAt = now
		}
		s.turns[id] = append(s.turns[id], t)
	}
	return nil
}

func (s *MemoryStore) List(ctx context.Context, id string) ([]Turn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Turn, len(s.turns[id]))
	copy(out, s.turns[id])
	return out, nil
}

var _ Store = (*MemoryStore)(nil)
