package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"staffsync/internal/domain/idempotency"
)

type IdempotencyRepository struct {
	pool *pgxpool.Pool
}

var _ idempotency.Store = (*IdempotencyRepository)(nil)

func NewIdempotencyRepository(pool *pgxpool.Pool) *IdempotencyRepository {
	return &IdempotencyRepository{pool: pool}
}

func (r *IdempotencyRepository) Lookup(ctx context.Context, key string) (int64, bool, error) {
	if strings.TrimSpace(key) == "" {
		return 0, false, nil
	}

	var id int64
	err := executor(ctx, r.pool).QueryRow(ctx, `SELECT resource_id FROM idempotency_records WHERE key = $1`, key).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("idempotency lookup: %w", err)
	}
	return id, true, nil
}

// Remember keeps the first binding; a later conflicting insert is dropped.
func (r *IdempotencyRepository) Remember(ctx context.Context, key string, resourceID int64) error {
	if strings.TrimSpace(key) == "" {
		return nil
	}

	const sql = `
		INSERT INTO idempotency_records (key, resource_id, created_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO NOTHING
	`
	if _, err := executor(ctx, r.pool).Exec(ctx, sql, key, resourceID); err != nil {
		return fmt.Errorf("idempotency remember: %w", err)
	}
	return nil
}
