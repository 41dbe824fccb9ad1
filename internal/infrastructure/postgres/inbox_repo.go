package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"staffsync/internal/domain/inbox"
)

type InboxRepository struct {
	pool *pgxpool.Pool
}

var _ inbox.Repository = (*InboxRepository)(nil)

func NewInboxRepository(pool *pgxpool.Pool) *InboxRepository {
	return &InboxRepository{pool: pool}
}

// SaveIfNotExists returns true if the event was saved (is new), false if it already existed.
// Called inside the transaction that applies the event.
func (r *InboxRepository) SaveIfNotExists(ctx context.Context, e *inbox.Event) (bool, error) {
	const query = `
		INSERT INTO inbox_events (consumer, event_id, event_type, received_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (consumer, event_id) DO NOTHING
	`

	tag, err := executor(ctx, r.pool).Exec(ctx, query, e.Consumer, e.EventID, e.EventType, e.ReceivedAt)
	if err != nil {
		return false, fmt.Errorf("insert inbox event: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}
