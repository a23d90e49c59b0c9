package cache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// backends runs each subtest against the in-memory and the Redis cache
func backends(t *testing.T) map[string]func(t *testing.T) (Cache, func(time.Duration)) {
	return map[string]func(t *testing.T) (Cache, func(time.Duration)){
		"memory": func(t *testing.T) (Cache, func(time.Duration)) {
			m := NewMemory()
			now := time.Now()
			m.now = func() time.Time { return now }
			return m, func(d time.Duration) { now = now.Add(d) }
		},
		"redis": func(t *testing.T) (Cache, func(time.Duration)) {
			mr := miniredis.RunT(t)
			client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			t.Cleanup(func() { _ = client.Close() })
			return NewRedis(client, 10), mr.FastForward
		},
	}
}

func TestCacheGetSetDelete(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			c, _ := open(t)
			ctx := context.Background()

			_, ok, err := c.Get(ctx, ItemKey(1))
			require.NoError(t, err)
			assert.False(t, ok)

			stored, err := c.SetIfAbsent(ctx, ItemKey(1), []byte(`{"id":1}`), time.Minute)
			require.NoError(t, err)
			assert.True(t, stored)

			val, ok, err := c.Get(ctx, ItemKey(1))
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, `{"id":1}`, string(val))

			require.NoError(t, c.Delete(ctx, ItemKey(1), "missing"))
			_, ok, err = c.Get(ctx, ItemKey(1))
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestCacheSetIfAbsentKeepsFirstValue(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			c, _ := open(t)
			ctx := context.Background()

			stored, err := c.SetIfAbsent(ctx, ListLatestKey, []byte("fast"), time.Minute)
			require.NoError(t, err)
			assert.True(t, stored)

			stored, err = c.SetIfAbsent(ctx, ListLatestKey, []byte("slow"), time.Minute)
			require.NoError(t, err)
			assert.False(t, stored)

			val, _, err := c.Get(ctx, ListLatestKey)
			require.NoError(t, err)
			assert.Equal(t, "fast", string(val))
		})
	}
}

func TestCacheSetIfAbsentConcurrent(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			c, _ := open(t)
			ctx := context.Background()

			var wins atomic.Int32
			var wg sync.WaitGroup
			for i := 0; i < 20; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					stored, err := c.SetIfAbsent(ctx, ItemKey(9), []byte(fmt.Sprint(i)), time.Minute)
					assert.NoError(t, err)
					if stored {
						wins.Add(1)
					}
				}(i)
			}
			wg.Wait()

			assert.Equal(t, int32(1), wins.Load())
		})
	}
}

func TestCacheEntriesExpire(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			c, advance := open(t)
			ctx := context.Background()

			_, err := c.SetIfAbsent(ctx, ItemKey(2), []byte("v"), time.Second)
			require.NoError(t, err)

			advance(2 * time.Second)

			_, ok, err := c.Get(ctx, ItemKey(2))
			require.NoError(t, err)
			assert.False(t, ok)

			stored, err := c.SetIfAbsent(ctx, ItemKey(2), []byte("v2"), time.Second)
			require.NoError(t, err)
			assert.True(t, stored)
		})
	}
}

func TestCacheDeleteMatching(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			c, _ := open(t)
			ctx := context.Background()

			// More keys than the scan batch size
			for i := uint64(1); i <= 25; i++ {
				_, err := c.SetIfAbsent(ctx, ItemKey(i), []byte("v"), time.Minute)
				require.NoError(t, err)
			}
			_, err := c.SetIfAbsent(ctx, ListLatestKey, []byte("list"), time.Minute)
			require.NoError(t, err)

			pattern, err := PurgePattern("item", "")
			require.NoError(t, err)

			n, err := c.DeleteMatching(ctx, pattern)
			require.NoError(t, err)
			assert.Equal(t, 25, n)

			_, ok, err := c.Get(ctx, ListLatestKey)
			require.NoError(t, err)
			assert.True(t, ok, "purge must not touch other namespaces")

			n, err = c.DeleteMatching(ctx, pattern)
			require.NoError(t, err)
			assert.Equal(t, 0, n)
		})
	}
}

func TestRedisDeleteMatchingRemovesEveryBatch(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	c := NewRedis(client, 7)
	ctx := context.Background()

	for i := uint64(1); i <= 103; i++ {
		require.NoError(t, mr.Set(ItemKey(i), "v"))
	}
	for i := 0; i < 40; i++ {
		require.NoError(t, mr.Set(fmt.Sprintf("other:%d", i), "v"))
	}

	n, err := c.DeleteMatching(ctx, itemPrefix+"*")
	require.NoError(t, err)
	assert.Equal(t, 103, n)
	assert.Len(t, mr.Keys(), 40)
}

func TestPurgePattern(t *testing.T) {
	tests := []struct {
		name      string
		namespace string
		suffix    string
		want      string
		wantErr   error
	}{
		{name: "whole item namespace", namespace: "item", want: "content:item:*"},
		{name: "item glob", namespace: "item", suffix: "1?", want: "content:item:1?"},
		{name: "list namespace", namespace: "list", suffix: "latest", want: "content:list:latest"},
		{name: "unknown namespace", namespace: "resize", wantErr: ErrUnknownNamespace},
		{name: "bad glob", namespace: "item", suffix: "[", wantErr: ErrBadPattern},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := PurgePattern(tt.namespace, tt.suffix)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRedisUnavailableReturnsErrors(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	c := NewRedis(client, 0)
	mr.Close()

	ctx := context.Background()
	_, _, err := c.Get(ctx, ItemKey(1))
	assert.Error(t, err)
	assert.Error(t, c.Delete(ctx, ItemKey(1)))
}

func TestOpen(t *testing.T) {
	conn, err := Open(Config{Driver: DriverNone})
	require.NoError(t, err)
	_, ok, err := conn.Get(context.Background(), ItemKey(1))
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, conn.Close())

	_, err = Open(Config{Driver: "memcached"})
	assert.Error(t, err)
}
