package memory

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdempotencyStore_FirstWriterWins(t *testing.T) {
	ctx := context.Background()
	store := NewIdempotencyStore()

	_, found, err := store.Lookup(ctx, "abc")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, store.Remember(ctx, "abc", 1))
	require.NoError(t, store.Remember(ctx, "abc", 2))

	id, found, err := store.Lookup(ctx, "abc")
	require.NoError(t, err)
	assert.True(t, found)
	assert.EqualValues(t, 1, id)
}

func TestIdempotencyStore_BlankKeyIgnored(t *testing.T) {
	ctx := context.Background()
	store := NewIdempotencyStore()

	require.NoError(t, store.Remember(ctx, "  ", 7))
	assert.Equal(t, 0, store.Len())

	_, found, err := store.Lookup(ctx, "")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestIdempotencyStore_ConcurrentRemember(t *testing.T) {
	ctx := context.Background()
	store := NewIdempotencyStore()

	var wg sync.WaitGroup
	for i := int64(1); i <= 50; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			_ = store.Remember(ctx, "race", id)
		}(i)
	}
	wg.Wait()

	first, found, err := store.Lookup(ctx, "race")
	require.NoError(t, err)
	require.True(t, found)

	for i := 0; i < 10; i++ {
		id, _, _ := store.Lookup(ctx, "race")
		assert.Equal(t, first, id, "binding must never change once set")
	}
}
