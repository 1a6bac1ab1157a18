// Package presence tracks which users currently hold a live connection.
//
// A Registry is built once in main and injected wherever presence lookups
// are needed. It keeps one connection per user: a second registration for the
// same user replaces and closes the first.
package presence

import (
	"sync"

	"github.com/google/uuid"
)

// Conn is a live connection that frames can be pushed to.
// Send must not block for long; implementations queue the payload and write
// it from their own goroutine.
type Conn interface {
	Send(payload []byte) error
	Close() error
}

// Gauge receives the online-user count after each change.
// *metrics.Metrics satisfies it.
type Gauge interface {
	SetOnline(n int)
}

// Registry maps user ids to their live connection. It is safe for concurrent
// use; every operation takes the lock once, so each is linearizable per key.
type Registry struct {
	mu    sync.RWMutex
	conns map[uuid.UUID]Conn
	gauge Gauge
}

// New returns an empty Registry. gauge may be nil.
func New(gauge Gauge) *Registry {
	return &Registry{conns: make(map[uuid.UUID]Conn), gauge: gauge}
}

// Register stores c as userID's connection. A previous connection for the
// same user is closed after it has been replaced.
func (r *Registry) Register(userID uuid.UUID, c Conn) {
	r.mu.Lock()
	prev := r.conns[userID]
	r.conns[userID] = c
	n := len(r.conns)
	r.mu.Unlock()

	r.report(n)
	if prev != nil && prev != c {
		_ = prev.Close()
	}
}

// Unregister removes userID's entry whatever connection it holds.
func (r *Registry) Unregister(userID uuid.UUID) {
	r.mu.Lock()
	delete(r.conns, userID)
	n := len(r.conns)
	r.mu.Unlock()
	r.report(n)
}

// UnregisterConn removes userID's entry only if it still holds c, and reports
// whether it did. A connection that was already replaced uses this on
// shutdown so it cannot evict its successor.
func (r *Registry) UnregisterConn(userID uuid.UUID, c Conn) bool {
	r.mu.Lock()
	cur, ok := r.conns[userID]
	if !ok || cur != c {
		r.mu.Unlock()
		return false
	}
	delete(r.conns, userID)
	n := len(r.conns)
	r.mu.Unlock()
	r.report(n)
	return true
}

// IsOnline reports whether userID has a registered connection.
func (r *Registry) IsOnline(userID uuid.UUID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.conns[userID]
	return ok
}

// ConnectionFor returns userID's connection, or false when they are offline.
func (r *Registry) ConnectionFor(userID uuid.UUID) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[userID]
	return c, ok
}

// Online returns the subset of ids that are currently connected, in the
// order given.
func (r *Registry) Online(ids []uuid.UUID) []uuid.UUID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := r.conns[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

// Len returns the number of connected users.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// Clear empties the registry. Connections are left open; their owners shut
// them down.
func (r *Registry) Clear() {
	r.mu.Lock()
	r.conns = make(map[uuid.UUID]Conn)
	r.mu.Unlock()
	r.report(0)
}

func (r *Registry) report(n int) {
	if r.gauge != nil {
		r.gauge.SetOnline(n)
	}
}
