package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"staffsync/internal/domain/outbox"
)

// DeleteGuard protects a delete of a parent that other services may reference.
type DeleteGuard interface {
	Check(ctx context.Context, parentID int64) error
}

// LinkGuard confirms a remote entity before a local row points at it.
type LinkGuard interface {
	Check(ctx context.Context, id int64) error
}

func newOutboxEvent(eventType, aggregateID string, body any, now time.Time) (*outbox.Event, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return outbox.NewEvent(uuid.New().String(), eventType, aggregateID, payload, now), nil
}
