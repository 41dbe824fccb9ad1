package inbox

import (
	"context"
	"time"
)

// Event is a consumer-side record of an outbox event already applied.
// Relays deliver at least once, so every consumer dedupes on (consumer, event id).
type Event struct {
	Consumer   string    `json:"consumer"`
	EventID    string    `json:"event_id"`
	EventType  string    `json:"event_type"`
	ReceivedAt time.Time `json:"received_at"`
}

type Repository interface {
	// SaveIfNotExists returns true if the event was saved (is new), false if it already existed.
	SaveIfNotExists(ctx context.Context, e *Event) (bool, error)
}
