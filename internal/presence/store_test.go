package presence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, ok, err := store.Get(ctx, "alice")
	assert.NoError(t, err)
	assert.False(t, ok)

	first := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	assert.NoError(t, store.Record(ctx, "alice", first))

	lastSeenAt, ok, err := store.Get(ctx, "alice")
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, first, lastSeenAt)

	second := first.Add(time.Hour)
	assert.NoError(t, store.Record(ctx, "alice", second))

	lastSeenAt, ok, err = store.Get(ctx, "alice")
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, second, lastSeenAt)
}
