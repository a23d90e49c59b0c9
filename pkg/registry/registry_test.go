package registry

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	mu     sync.Mutex
	frames [][]byte
	closed atomic.Bool
}

func (s *fakeSender) Send(frame []byte) bool {
	if s.closed.Load() {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, frame)
	return true
}

func (s *fakeSender) Close(error) { s.closed.Store(true) }

func newConn(id string) Connection {
	return Connection{ID: id, ShardID: "shard-1", ConnectedAt: time.Now(), Sender: &fakeSender{}}
}

func TestAddAndGet(t *testing.T) {
	r := New()

	require.NoError(t, r.Add(newConn("c1")))
	assert.ErrorIs(t, r.Add(newConn("c1")), ErrDuplicate)
	assert.Equal(t, 1, r.Len())

	c, ok := r.Get("c1")
	require.True(t, ok)
	assert.Equal(t, "shard-1", c.ShardID)

	_, ok = r.Get("missing")
	assert.False(t, ok)
}

func TestAssociateUser(t *testing.T) {
	r := New()
	require.NoError(t, r.Add(newConn("c1")))

	assert.True(t, r.AssociateUser("c1", "u1"))
	c, _ := r.Get("c1")
	assert.Equal(t, "u1", c.UserID)

	_, ok := r.Remove("c1")
	require.True(t, ok)
	assert.False(t, r.AssociateUser("c1", "u2"), "association after removal is a no-op")
}

func TestAssociateUserSetsOnce(t *testing.T) {
	r := New()
	require.NoError(t, r.Add(newConn("c1")))

	preset := newConn("c2")
	preset.UserID = "u9"
	require.NoError(t, r.Add(preset))

	require.True(t, r.AssociateUser("c1", "u1"))
	assert.False(t, r.AssociateUser("c1", "u2"))
	assert.False(t, r.AssociateUser("c1", "u1"))
	c, _ := r.Get("c1")
	assert.Equal(t, "u1", c.UserID)

	assert.False(t, r.AssociateUser("c2", "u3"))
	c, _ = r.Get("c2")
	assert.Equal(t, "u9", c.UserID)
}

func TestRemoveIsIdempotent(t *testing.T) {
	r := New()
	conn := newConn("c1")
	conn.UserID = "u1"
	require.NoError(t, r.Add(conn))

	removed, ok := r.Remove("c1")
	require.True(t, ok)
	assert.Equal(t, "u1", removed.UserID)

	_, ok = r.Remove("c1")
	assert.False(t, ok)
	assert.Equal(t, 0, r.Len())
}

func TestForEachPredicates(t *testing.T) {
	r := New()
	for i := 0; i < 5; i++ {
		require.NoError(t, r.Add(newConn(fmt.Sprintf("c%d", i))))
	}
	r.AssociateUser("c1", "u1")
	r.AssociateUser("c3", "u1")
	r.AssociateUser("c4", "u2")

	var seen []string
	n := r.ForEach(ByUser("u1"), func(c Connection) { seen = append(seen, c.ID) })
	assert.Equal(t, 2, n)
	assert.ElementsMatch(t, []string{"c1", "c3"}, seen)

	assert.Equal(t, 5, r.ForEach(All(), func(Connection) {}))
	assert.Equal(t, 5, r.ForEach(nil, func(Connection) {}))
	assert.Equal(t, 0, r.ForEach(ByUser("nobody"), func(Connection) {}))
}

func TestForEachNeverVisitsRemoved(t *testing.T) {
	r := New()
	senders := make(map[string]*fakeSender)
	for i := 0; i < 100; i++ {
		conn := newConn(fmt.Sprintf("c%d", i))
		senders[conn.ID] = conn.Sender.(*fakeSender)
		require.NoError(t, r.Add(conn))
	}

	var wg sync.WaitGroup
	var misuse atomic.Int64

	// Removers close the sender after Remove returns, as a session does
	for id, s := range senders {
		wg.Add(1)
		go func(id string, s *fakeSender) {
			defer wg.Done()
			if _, ok := r.Remove(id); ok {
				s.Close(nil)
			}
		}(id, s)
	}

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.ForEach(All(), func(c Connection) {
				if !c.Sender.Send([]byte("x")) {
					misuse.Add(1)
				}
			})
		}()
	}

	wg.Wait()
	assert.Equal(t, int64(0), misuse.Load(), "a closed sender was used by ForEach")
	assert.Equal(t, 0, r.Len())
}

func TestConcurrentAddRemove(t *testing.T) {
	r := New()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("c%d", i)
			assert.NoError(t, r.Add(newConn(id)))
			r.AssociateUser(id, "u1")
			r.ForEach(ByUser("u1"), func(Connection) {})
			if i%2 == 0 {
				r.Remove(id)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 25, r.Len())
}
