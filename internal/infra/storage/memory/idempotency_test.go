package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staybook/internal/app/middleware"
)

func TestIdempotencyStoreExpiresAfterRetentionWindow(t *testing.T) {
	store := NewIdempotencyStore(time.Hour)
	current := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return current }
	ctx := context.Background()

	rec := middleware.IdempotencyRecord{Key: "cmd-1", Payload: []byte(`{"status":"CONFIRMED"}`), OccurredAt: current}
	require.NoError(t, store.Save(ctx, rec))

	got, ok, err := store.Get(ctx, "cmd-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, rec.Payload, got.Payload)

	current = current.Add(time.Hour + time.Minute)
	_, ok, err = store.Get(ctx, "cmd-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIdempotencyStoreZeroTTLKeepsForever(t *testing.T) {
	store := NewIdempotencyStore(0)
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, middleware.IdempotencyRecord{Key: "cmd-1"}))
	_, ok, err := store.Get(ctx, "cmd-1")
	require.NoError(t, err)
	assert.True(t, ok)
}
