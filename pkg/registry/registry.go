package registry

import (
	"errors"
	"sync"
	"time"
)

// ErrDuplicate is returned when a connection id is already registered
var ErrDuplicate = errors.New("connection already registered")

// Sender is the transport handle of a live connection. Send must not block:
// it reports false when the frame was dropped.
type Sender interface {
	Send(frame []byte) bool
	Close(reason error)
}

// Connection is a live client session owned by exactly one shard.
type Connection struct {
	ID          string
	UserID      string
	ShardID     string
	ConnectedAt time.Time
	Sender      Sender
}

// Predicate selects connections during ForEach
type Predicate func(c Connection) bool

// All matches every connection
func All() Predicate {
	return func(Connection) bool { return true }
}

// ByUser matches connections associated with userID
func ByUser(userID string) Predicate {
	return func(c Connection) bool { return c.UserID == userID }
}

// Registry is the per-shard set of live connections. Mutations take the
// write lock and ForEach holds the read lock for the whole walk, so an
// entry is never visited once Remove has returned.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]*Connection
}

// New creates an empty registry
func New() *Registry {
	return &Registry{conns: make(map[string]*Connection)}
}

// Add registers conn
func (r *Registry) Add(conn Connection) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.conns[conn.ID]; exists {
		return ErrDuplicate
	}
	c := conn
	r.conns[conn.ID] = &c
	return nil
}

// AssociateUser sets the user of connection id. A user is set at most once:
// it reports false when the connection is no longer registered or already
// carries a user.
func (r *Registry) AssociateUser(id, userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conns[id]
	if !ok || c.UserID != "" {
		return false
	}
	c.UserID = userID
	return true
}

// Remove unregisters id and returns the removed entry. Removing an unknown
// id is a no-op.
func (r *Registry) Remove(id string) (Connection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conns[id]
	if !ok {
		return Connection{}, false
	}
	delete(r.conns, id)
	return *c, true
}

// Get returns a snapshot of connection id
func (r *Registry) Get(id string) (Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.conns[id]
	if !ok {
		return Connection{}, false
	}
	return *c, true
}

// Len returns the number of registered connections
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// ForEach calls action for every connection matching pred and returns how
// many were visited. action runs under the read lock: it must not block and
// must not call back into the registry.
func (r *Registry) ForEach(pred Predicate, action func(c Connection)) int {
	if pred == nil {
		pred = All()
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	visited := 0
	for _, c := range r.conns {
		if !pred(*c) {
			continue
		}
		action(*c)
		visited++
	}
	return visited
}
