package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"staffsync/internal/domain/outbox"
)

// OutboxStore keeps outbox events in process memory. ClaimDue holds the
// store lock for the whole select-and-lease step so overlapping passes never
// receive the same event.
type OutboxStore struct {
	mu     sync.Mutex
	events map[string]*outbox.Event
}

var _ outbox.Store = (*OutboxStore)(nil)

func NewOutboxStore() *OutboxStore {
	return &OutboxStore{events: make(map[string]*outbox.Event)}
}

func (s *OutboxStore) Enqueue(_ context.Context, e *outbox.Event) error {
	if e == nil || e.ID == "" {
		return fmt.Errorf("enqueue outbox event: id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.events[e.ID]; ok {
		return fmt.Errorf("enqueue outbox event %s: already exists", e.ID)
	}
	s.events[e.ID] = clone(e)
	return nil
}

func (s *OutboxStore) ClaimDue(_ context.Context, now time.Time, limit int, lease time.Duration) ([]*outbox.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	due := make([]*outbox.Event, 0)
	for _, e := range s.events {
		if e.IsDue(now) {
			due = append(due, e)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].CreatedAt.Before(due[j].CreatedAt) })
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}

	token := uuid.NewString()
	claimed := make([]*outbox.Event, 0, len(due))
	for _, e := range due {
		e.ClaimToken = token
		// Returned before leasing so callers see the schedule they claimed against.
		claimed = append(claimed, clone(e))
		if lease > 0 {
			until := now.Add(lease)
			e.NextAttemptAt = &until
		}
	}
	return claimed, nil
}

func (s *OutboxStore) ExtendClaim(_ context.Context, id, claimToken string, until time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.owned(id, claimToken)
	if err != nil {
		return fmt.Errorf("extend claim %s: %w", id, err)
	}
	e.NextAttemptAt = &until
	return nil
}

func (s *OutboxStore) MarkSent(_ context.Context, id, claimToken string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.owned(id, claimToken)
	if err != nil {
		return fmt.Errorf("mark sent %s: %w", id, err)
	}
	e.Status = outbox.StatusSent
	e.LastAttemptAt = &at
	e.NextAttemptAt = nil
	e.LastError = ""
	e.ClaimToken = ""
	return nil
}

func (s *OutboxStore) MarkFailed(_ context.Context, id, claimToken string, attemptCount int, at, next time.Time, lastErr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.owned(id, claimToken)
	if err != nil {
		return fmt.Errorf("mark failed %s: %w", id, err)
	}
	e.Status = outbox.StatusFailed
	e.AttemptCount = attemptCount
	e.LastAttemptAt = &at
	e.NextAttemptAt = &next
	e.LastError = lastErr
	e.ClaimToken = ""
	return nil
}

// owned must be called with mu held.
func (s *OutboxStore) owned(id, claimToken string) (*outbox.Event, error) {
	e, ok := s.events[id]
	if !ok {
		return nil, outbox.ErrEventNotFound
	}
	if e.Status == outbox.StatusSent || claimToken == "" || e.ClaimToken != claimToken {
		return nil, outbox.ErrClaimLost
	}
	return e, nil
}

func (s *OutboxStore) Get(_ context.Context, id string) (*outbox.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.events[id]
	if !ok {
		return nil, fmt.Errorf("get %s: %w", id, outbox.ErrEventNotFound)
	}
	return clone(e), nil
}

func (s *OutboxStore) List(_ context.Context, limit int) ([]*outbox.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*outbox.Event, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, clone(e))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func clone(e *outbox.Event) *outbox.Event {
	c := *e
	c.Payload = append([]byte(nil), e.Payload...)
	if e.LastAttemptAt != nil {
		t := *e.LastAttemptAt
		c.LastAttemptAt = &t
	}
	if e.NextAttemptAt != nil {
		t := *e.NextAttemptAt
		c.NextAttemptAt = &t
	}
	return &c
}
