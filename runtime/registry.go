package runtime

import (
	"sync"

	"chat-relay/contract"
	"chat-relay/domain"
)

// Registry maps logged-in users to their local connection. It is the only
// shared mutable in-process state; a single mutex guards the forward map and
// the reverse index. The lock is held for map operations only, never across
// a send or a store/bus call.
type Registry struct {
	mu       sync.Mutex
	sessions map[domain.UserID]contract.Sender
	byConn   map[contract.Sender]domain.UserID
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[domain.UserID]contract.Sender),
		byConn:   make(map[contract.Sender]domain.UserID),
	}
}

// Add inserts or replaces the session of a user and reports whether a prior
// session existed. Callers reject duplicate logins first, so a replacement
// is a bug signal rather than a normal event.
func (r *Registry) Add(id domain.UserID, conn contract.Sender) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	prior, existed := r.sessions[id]
	if existed {
		delete(r.byConn, prior)
	}
	r.sessions[id] = conn
	r.byConn[conn] = id
	return existed
}

func (r *Registry) Remove(id domain.UserID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if conn, ok := r.sessions[id]; ok {
		delete(r.byConn, conn)
		delete(r.sessions, id)
	}
}

func (r *Registry) Lookup(id domain.UserID) (contract.Sender, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.sessions[id]
	return conn, ok
}

// RemoveByConnection handles the transport-close path, where only the
// connection is known. The reverse index makes this O(1) instead of a scan
// over every session.
func (r *Registry) RemoveByConnection(conn contract.Sender) (domain.UserID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.byConn[conn]
	if !ok {
		return 0, false
	}
	delete(r.byConn, conn)
	delete(r.sessions, id)
	return id, true
}

// Len reports the number of live sessions on this instance.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
