package postgres

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"staffsync/internal/domain/outbox"
)

const outboxColumns = `id, event_type, aggregate_id, payload, status, attempt_count,
	last_attempt_at, next_attempt_at, COALESCE(last_error, ''), created_at, COALESCE(claim_token, '')`

type OutboxRepository struct {
	pool *pgxpool.Pool
}

var _ outbox.Store = (*OutboxRepository)(nil)

func NewOutboxRepository(pool *pgxpool.Pool) *OutboxRepository {
	return &OutboxRepository{pool: pool}
}

// Enqueue joins the transaction carried by ctx, so the event commits or rolls
// back together with the entity change.
func (r *OutboxRepository) Enqueue(ctx context.Context, e *outbox.Event) error {
	const sql = `
		INSERT INTO outbox_events (id, event_type, aggregate_id, payload, status, attempt_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := executor(ctx, r.pool).Exec(ctx, sql,
		e.ID, e.Type, e.AggregateID, e.Payload, e.Status, e.AttemptCount, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}

	return nil
}

// ClaimDue leases due rows by moving next_attempt_at forward and stamping a
// fresh claim_token. Rows locked by a concurrent claimer are skipped rather
// than waited on.
func (r *OutboxRepository) ClaimDue(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]*outbox.Event, error) {
	const sql = `
		WITH due AS (
			SELECT id, next_attempt_at AS prev_next_attempt_at
			FROM outbox_events
			WHERE status IN ('PENDING', 'FAILED')
			  AND (next_attempt_at IS NULL OR next_attempt_at <= $1)
			ORDER BY created_at ASC
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		UPDATE outbox_events o
		SET next_attempt_at = $3, claim_token = $4
		FROM due
		WHERE o.id = due.id
		RETURNING o.id, o.event_type, o.aggregate_id, o.payload, o.status, o.attempt_count,
			o.last_attempt_at, due.prev_next_attempt_at, COALESCE(o.last_error, ''), o.created_at, o.claim_token
	`

	rows, err := r.pool.Query(ctx, sql, now, limit, now.Add(lease), uuid.NewString())
	if err != nil {
		return nil, fmt.Errorf("claim outbox events: %w", err)
	}

	events, err := scanEvents(rows)
	if err != nil {
		return nil, err
	}
	sort.Slice(events, func(i, j int) bool { return events[i].CreatedAt.Before(events[j].CreatedAt) })
	return events, nil
}

func (r *OutboxRepository) ExtendClaim(ctx context.Context, id, claimToken string, until time.Time) error {
	const sql = `
		UPDATE outbox_events
		SET next_attempt_at = $3
		WHERE id = $1 AND claim_token = $2 AND status <> 'SENT'
	`

	tag, err := r.pool.Exec(ctx, sql, id, claimToken, until)
	if err != nil {
		return fmt.Errorf("extend claim: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return r.claimLost(ctx, id)
	}
	return nil
}

func (r *OutboxRepository) MarkSent(ctx context.Context, id, claimToken string, at time.Time) error {
	const sql = `
		UPDATE outbox_events
		SET status = 'SENT', last_attempt_at = $3, next_attempt_at = NULL, last_error = NULL, claim_token = NULL
		WHERE id = $1 AND claim_token = $2 AND status <> 'SENT'
	`

	tag, err := r.pool.Exec(ctx, sql, id, claimToken, at)
	if err != nil {
		return fmt.Errorf("mark sent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return r.claimLost(ctx, id)
	}
	return nil
}

func (r *OutboxRepository) MarkFailed(ctx context.Context, id, claimToken string, attemptCount int, at, next time.Time, lastErr string) error {
	const sql = `
		UPDATE outbox_events
		SET status = 'FAILED', attempt_count = $3, last_attempt_at = $4, next_attempt_at = $5,
			last_error = $6, claim_token = NULL
		WHERE id = $1 AND claim_token = $2 AND status <> 'SENT'
	`

	tag, err := r.pool.Exec(ctx, sql, id, claimToken, attemptCount, at, next, nullIfEmptyText(lastErr))
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return r.claimLost(ctx, id)
	}
	return nil
}

func (r *OutboxRepository) Get(ctx context.Context, id string) (*outbox.Event, error) {
	sql := `SELECT ` + outboxColumns + ` FROM outbox_events WHERE id = $1`

	e, err := scanEvent(r.pool.QueryRow(ctx, sql, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("get %s: %w", id, outbox.ErrEventNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get outbox event: %w", err)
	}
	return e, nil
}

func (r *OutboxRepository) List(ctx context.Context, limit int) ([]*outbox.Event, error) {
	sql := `SELECT ` + outboxColumns + ` FROM outbox_events ORDER BY created_at ASC LIMIT $1`

	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, sql, limit)
	if err != nil {
		return nil, fmt.Errorf("query outbox: %w", err)
	}
	return scanEvents(rows)
}

// claimLost tells a missing row apart from one that is SENT or held by another claim.
func (r *OutboxRepository) claimLost(ctx context.Context, id string) error {
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM outbox_events WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("check outbox event: %w", err)
	}
	if !exists {
		return fmt.Errorf("update %s: %w", id, outbox.ErrEventNotFound)
	}
	return fmt.Errorf("update %s: %w", id, outbox.ErrClaimLost)
}

func scanEvent(row pgx.Row) (*outbox.Event, error) {
	e := &outbox.Event{}
	err := row.Scan(&e.ID, &e.Type, &e.AggregateID, &e.Payload, &e.Status, &e.AttemptCount,
		&e.LastAttemptAt, &e.NextAttemptAt, &e.LastError, &e.CreatedAt, &e.ClaimToken)
	if err != nil {
		return nil, err
	}
	return e, nil
}

func scanEvents(rows pgx.Rows) ([]*outbox.Event, error) {
	defer rows.Close()

	var events []*outbox.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan outbox event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox events: %w", err)
	}
	return events, nil
}
