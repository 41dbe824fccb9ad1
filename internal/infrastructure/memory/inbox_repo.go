package memory

import (
	"context"
	"sync"

	"staffsync/internal/domain/inbox"
)

type inboxKey struct{ consumer, eventID string }

type InboxRepository struct {
	mu   sync.Mutex
	seen map[inboxKey]inbox.Event
}

var _ inbox.Repository = (*InboxRepository)(nil)

func NewInboxRepository() *InboxRepository {
	return &InboxRepository{seen: make(map[inboxKey]inbox.Event)}
}

func (r *InboxRepository) SaveIfNotExists(_ context.Context, e *inbox.Event) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := inboxKey{e.Consumer, e.EventID}
	if _, ok := r.seen[k]; ok {
		return false, nil
	}
	r.seen[k] = *e
	return true, nil
}
