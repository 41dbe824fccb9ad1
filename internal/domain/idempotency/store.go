package idempotency

import "context"

// Record binds a client-supplied key to the resource created for it.
type Record struct {
	Key        string `json:"key"`
	ResourceID int64  `json:"resource_id"`
}

// Store deduplicates creation commands by idempotency key.
//
// Remember is first-writer-wins: once a key is bound, later calls with the
// same key are ignored without error. Records never expire.
type Store interface {
	Lookup(ctx context.Context, key string) (resourceID int64, found bool, err error)
	Remember(ctx context.Context, key string, resourceID int64) error
}
