package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"

	"staffsync/internal/domain/idempotency"
)

const keyPrefix = "idempotency:"

// IdempotencyStore binds keys with SETNX and no expiry, so the first writer
// wins across every replica sharing the Redis instance.
type IdempotencyStore struct {
	client redis.Cmdable
}

var _ idempotency.Store = (*IdempotencyStore)(nil)

func NewIdempotencyStore(client redis.Cmdable) *IdempotencyStore {
	return &IdempotencyStore{client: client}
}

func (s *IdempotencyStore) Lookup(ctx context.Context, key string) (int64, bool, error) {
	if strings.TrimSpace(key) == "" {
		return 0, false, nil
	}

	val, err := s.client.Get(ctx, keyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("idempotency lookup: %w", err)
	}

	id, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("idempotency lookup: corrupt value for key %q: %w", key, err)
	}
	return id, true, nil
}

func (s *IdempotencyStore) Remember(ctx context.Context, key string, resourceID int64) error {
	if strings.TrimSpace(key) == "" {
		return nil
	}

	// A false result means another writer got there first; that is not an error.
	if _, err := s.client.SetNX(ctx, keyPrefix+key, strconv.FormatInt(resourceID, 10), 0).Result(); err != nil {
		return fmt.Errorf("idempotency remember: %w", err)
	}
	return nil
}
