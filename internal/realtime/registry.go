package realtime

import (
	"sync"

	"github.com/gorilla/websocket"
)

// Registry is the process-wide map from user identity to live connections.
// It is the only shared mutable state in the realtime core: register and
// unregister are short critical sections that never perform I/O under the
// lock. The registry is never persisted; after a restart clients reconnect
// and re-register.
type Registry struct {
	mu          sync.RWMutex
	connections map[string]map[uint64]*Conn
	nextID      uint64
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		connections: make(map[string]map[uint64]*Conn),
	}
}

// NewConn wraps an upgraded socket for the given authenticated identity and
// assigns it a registry-unique id.
func (r *Registry) NewConn(userID string, socket *websocket.Conn, buffer int) *Conn {
	return newConn(r.nextSequence(), userID, socket, buffer)
}

// Register adds the connection to its user's set. Registering the same
// connection twice is a no-op.
func (r *Registry) Register(conn *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.connections[conn.userID]; !ok {
		r.connections[conn.userID] = make(map[uint64]*Conn)
	}
	r.connections[conn.userID][conn.id] = conn
}

// Unregister removes the connection from the set its stored identity names.
// Unknown connections are a benign no-op, which guards double-close races.
func (r *Registry) Unregister(conn *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set := r.connections[conn.userID]
	if set == nil {
		return
	}
	delete(set, conn.id)
	if len(set) == 0 {
		delete(r.connections, conn.userID)
	}
}

// ConnectionsFor returns a snapshot of the user's live connections. The
// returned slice is safe to range over while the registry mutates.
func (r *Registry) ConnectionsFor(userID string) []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := r.connections[userID]
	if len(set) == 0 {
		return nil
	}
	snapshot := make([]*Conn, 0, len(set))
	for _, conn := range set {
		snapshot = append(snapshot, conn)
	}
	return snapshot
}

func (r *Registry) nextSequence() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	return r.nextID
}
