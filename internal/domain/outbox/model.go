package outbox

import (
	"context"
	"errors"
	"time"
)

type Status string

const (
	StatusPending Status = "PENDING"
	StatusSent    Status = "SENT"
	StatusFailed  Status = "FAILED"
)

// DefaultMaxBackoff caps the retry delay of a failing event.
const DefaultMaxBackoff = 60 * time.Second

var (
	ErrEventNotFound = errors.New("outbox event not found")
	// ErrClaimLost is returned when another claim has taken the event over
	// or it is already SENT; the caller must not record an outcome for it.
	ErrClaimLost = errors.New("outbox claim lost")
)

// Event is a domain change waiting to be relayed to every subscriber.
// Payload is opaque to the relay. HTTP subscribers post it unchanged; the
// Kafka envelope embeds JSON as is and base64-encodes anything else.
type Event struct {
	ID            string     `json:"id"`
	Type          string     `json:"type"`
	AggregateID   string     `json:"aggregate_id"`
	Payload       []byte     `json:"payload"`
	Status        Status     `json:"status"`
	AttemptCount  int        `json:"attempt_count"`
	LastAttemptAt *time.Time `json:"last_attempt_at,omitempty"`
	NextAttemptAt *time.Time `json:"next_attempt_at,omitempty"`
	LastError     string     `json:"last_error,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	// ClaimToken is set by ClaimDue and fences every later write of that claim.
	ClaimToken string `json:"claim_token,omitempty"`
}

func NewEvent(id, eventType, aggregateID string, payload []byte, now time.Time) *Event {
	return &Event{
		ID:          id,
		Type:        eventType,
		AggregateID: aggregateID,
		Payload:     payload,
		Status:      StatusPending,
		CreatedAt:   now,
	}
}

// IsDue reports whether the relay may attempt the event at now.
func (e *Event) IsDue(now time.Time) bool {
	if e.Status != StatusPending && e.Status != StatusFailed {
		return false
	}
	return e.NextAttemptAt == nil || !e.NextAttemptAt.After(now)
}

// Backoff returns min(ceiling, 2^attempt seconds).
func Backoff(attempt int, ceiling time.Duration) time.Duration {
	if ceiling <= 0 {
		ceiling = DefaultMaxBackoff
	}
	if attempt < 0 {
		attempt = 0
	}
	// 2^62s overflows time.Duration long before the shift does.
	if attempt >= 32 {
		return ceiling
	}
	d := time.Duration(int64(1)<<attempt) * time.Second
	if d > ceiling || d <= 0 {
		return ceiling
	}
	return d
}

// Store is the durable queue the write path enqueues into and the relay drains.
//
// A claim is a lease plus a token. ExtendClaim, MarkSent and MarkFailed only
// apply while the row still carries the token they were given and is not SENT;
// otherwise they return ErrClaimLost and change nothing.
type Store interface {
	Enqueue(ctx context.Context, event *Event) error
	// ClaimDue returns up to limit due events, stamps them with a fresh
	// ClaimToken and pushes their next attempt forward by lease so no
	// overlapping pass can select them again until the lease runs out.
	ClaimDue(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]*Event, error)
	ExtendClaim(ctx context.Context, id, claimToken string, until time.Time) error
	MarkSent(ctx context.Context, id, claimToken string, at time.Time) error
	MarkFailed(ctx context.Context, id, claimToken string, attemptCount int, at, next time.Time, lastErr string) error
	Get(ctx context.Context, id string) (*Event, error)
	List(ctx context.Context, limit int) ([]*Event, error)
}
