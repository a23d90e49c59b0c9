package storage

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cuemby/relay/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *BoltStore {
	t.Helper()
	store, err := NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestBoltStoreCreateAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	created, err := store.CreateContent(ctx, types.NewContent{
		OwnerID:  "u1",
		MediaURL: "/cdn/2024/a.mp4",
		Caption:  "first",
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), created.ID)
	assert.Equal(t, int64(0), created.Likes)
	assert.False(t, created.CreatedAt.IsZero())

	got, err := store.GetContent(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.OwnerID, got.OwnerID)
	assert.Equal(t, created.MediaURL, got.MediaURL)
	assert.Equal(t, "first", got.Caption)

	_, err = store.GetContent(ctx, 99)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBoltStoreListLatestNewestFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := store.CreateContent(ctx, types.NewContent{OwnerID: "u1", MediaURL: "/cdn/x.mp4"})
		require.NoError(t, err)
	}

	latest, err := store.ListLatest(ctx, 3)
	require.NoError(t, err)
	require.Len(t, latest, 3)
	assert.Equal(t, uint64(5), latest[0].ID)
	assert.Equal(t, uint64(4), latest[1].ID)
	assert.Equal(t, uint64(3), latest[2].ID)

	all, err := store.ListLatest(ctx, 20)
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

func TestBoltStoreIncrementLikesConcurrent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	created, err := store.CreateContent(ctx, types.NewContent{OwnerID: "u1", MediaURL: "/cdn/x.mp4"})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.IncrementLikes(ctx, created.ID)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := store.GetContent(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(50), got.Likes)
}

func TestBoltStoreIncrementLikesMissing(t *testing.T) {
	store := newTestStore(t)

	_, err := store.IncrementLikes(context.Background(), 42)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBoltStoreCancelledContext(t *testing.T) {
	store := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.CreateContent(ctx, types.NewContent{OwnerID: "u1", MediaURL: "/cdn/x.mp4"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, store.Ping(ctx), context.Canceled)
	assert.NoError(t, store.Ping(context.Background()))
}

func TestBoltStoreSingleProcess(t *testing.T) {
	prev := openTimeout
	openTimeout = 100 * time.Millisecond
	t.Cleanup(func() { openTimeout = prev })

	dir := t.TempDir()
	first, err := NewBoltStore(dir)
	require.NoError(t, err)

	_, err = NewBoltStore(dir)
	assert.ErrorIs(t, err, ErrLocked)

	require.NoError(t, first.Close())
	second, err := NewBoltStore(dir)
	require.NoError(t, err)
	require.NoError(t, second.Close())
}
