package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(time.Hour)

	_, err := store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound, "expected unknown id to be not found")

	data := Data{UserId: 1, Username: "alice"}
	require.NoError(t, store.Put(ctx, "abc", data))

	got, err := store.Get(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, data, got)

	require.NoError(t, store.Delete(ctx, "abc"))
	_, err = store.Get(ctx, "abc")
	assert.ErrorIs(t, err, ErrNotFound, "expected deleted id to be not found")

	assert.NoError(t, store.Delete(ctx, "abc"), "expected delete to be idempotent")
}

func TestMemoryStore_Expiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	store := NewMemoryStore(time.Minute)
	store.now = func() time.Time { return now }

	require.NoError(t, store.Put(ctx, "a", Data{UserId: 1}))
	require.NoError(t, store.Put(ctx, "b", Data{UserId: 2}))

	now = now.Add(30 * time.Second)
	_, err := store.Get(ctx, "a")
	assert.NoError(t, err, "expected session to be alive before ttl")

	// a Put refreshes the expiry
	require.NoError(t, store.Put(ctx, "b", Data{UserId: 2}))

	now = now.Add(45 * time.Second)
	_, err = store.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrNotFound, "expected session to expire after ttl")

	_, err = store.Get(ctx, "b")
	assert.NoError(t, err, "expected refreshed session to be alive")

	now = now.Add(time.Minute)
	assert.Equal(t, 1, store.Sweep(), "expected sweep to remove the remaining expired entry")
	assert.Empty(t, store.entries)
}
