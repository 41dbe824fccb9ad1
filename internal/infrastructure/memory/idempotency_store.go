package memory

import (
	"context"
	"strings"
	"sync"

	"staffsync/internal/domain/idempotency"
)

// IdempotencyStore is a process-local key -> resource id map.
// Entries are never evicted.
type IdempotencyStore struct {
	mu   sync.RWMutex
	keys map[string]int64
}

var _ idempotency.Store = (*IdempotencyStore)(nil)

func NewIdempotencyStore() *IdempotencyStore {
	return &IdempotencyStore{keys: make(map[string]int64)}
}

func (s *IdempotencyStore) Lookup(_ context.Context, key string) (int64, bool, error) {
	if strings.TrimSpace(key) == "" {
		return 0, false, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.keys[key]
	return id, ok, nil
}

func (s *IdempotencyStore) Remember(_ context.Context, key string, resourceID int64) error {
	if strings.TrimSpace(key) == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.keys[key]; !ok {
		s.keys[key] = resourceID
	}
	return nil
}

func (s *IdempotencyStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.keys)
}
