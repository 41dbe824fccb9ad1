package memory

import "context"

// Transactor runs fn directly. Memory stores apply each write immediately, so
// a failing fn does not undo earlier writes.
type Transactor struct{}

func (Transactor) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
