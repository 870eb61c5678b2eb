package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chemfalcon/chembot/core"
)

func TestInMemoryStoreRoundTrip(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	sess := core.NewSession("s1", "token-1")
	sess.SetDetail("quantity", "500")
	require.NoError(t, store.Save(ctx, sess))

	got, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "s1", got.ID)
	assert.Equal(t, "500", got.Detail("quantity"))
	assert.Equal(t, core.StageProductRequest, got.Stage)
}

func TestInMemoryStoreUnknownID(t *testing.T) {
	store := NewInMemoryStore()

	_, err := store.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInMemoryStoreReturnsClones(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	sess := core.NewSession("s1", "token-1")
	require.NoError(t, store.Save(ctx, sess))

	first, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	first.SetDetail("unit", "KG")

	second, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, second.Detail("unit"))
}

func TestInMemoryStoreExpiresInactiveSessions(t *testing.T) {
	store := NewInMemoryStoreTTL(time.Hour)
	ctx := context.Background()

	sess := core.NewSession("stale", "token-1")
	sess.LastUpdated = time.Now().UTC().Add(-2 * time.Hour)
	require.NoError(t, store.Save(ctx, sess))

	_, err := store.Get(ctx, "stale")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 0, store.Len())
}

func TestInMemoryStoreSweep(t *testing.T) {
	store := NewInMemoryStoreTTL(time.Hour)
	ctx := context.Background()

	fresh := core.NewSession("fresh", "token-1")
	require.NoError(t, store.Save(ctx, fresh))

	stale := core.NewSession("stale", "token-2")
	stale.LastUpdated = time.Now().UTC().Add(-25 * time.Hour)
	require.NoError(t, store.Save(ctx, stale))

	assert.Equal(t, 1, store.Sweep())
	assert.Equal(t, 1, store.Len())

	_, err := store.Get(ctx, "fresh")
	assert.NoError(t, err)
}

func TestInMemoryStoreDelete(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, core.NewSession("s1", "token-1")))
	require.NoError(t, store.Delete(ctx, "s1"))

	_, err := store.Get(ctx, "s1")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.NoError(t, store.Delete(ctx, "never-existed"))
}
