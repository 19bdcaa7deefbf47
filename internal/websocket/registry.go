package websocket

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Connection is one live subscriber channel.
//
// Send must deliver msg completely or return an error; a partially written
// message counts as a failure. Implementations must honour ctx's deadline.
type Connection interface {
	ID() string
	Send(ctx context.Context, msg []byte) error
	Close() error
}

// Member is a registered connection together with the id the registry knows it by.
type Member struct {
	ID   string
	Conn Connection
}

type entry struct {
	conn Connection
	seq  uint64
}

// Registry owns the set of live subscriber connections.
//
// Register, Unregister and Snapshot are serialized by mu. Delivery never
// happens under mu: dispatch works on a Snapshot taken beforehand.
type Registry struct {
	mu      sync.RWMutex
	members map[string]entry
	nextSeq uint64
}

func NewRegistry() *Registry {
	return &Registry{members: make(map[string]entry)}
}

// Register adds conn and returns its id. A connection without an id gets a
// fresh uuid. Registering an id that is already present replaces the old
// connection, which is closed.
func (r *Registry) Register(conn Connection) string {
	id := conn.ID()
	if id == "" {
		id = uuid.NewString()
	}

	r.mu.Lock()
	prev, replaced := r.members[id]
	r.nextSeq++
	r.members[id] = entry{conn: conn, seq: r.nextSeq}
	r.mu.Unlock()

	if replaced && prev.conn != conn {
		_ = prev.conn.Close()
	}
	return id
}

// Unregister removes id. It reports whether the id was present; removing an
// absent id is not an error.
func (r *Registry) Unregister(id string) bool {
	r.mu.Lock()
	_, ok := r.members[id]
	delete(r.members, id)
	r.mu.Unlock()
	return ok
}

// unregisterConn removes id only while it still maps to conn, so a stale
// eviction cannot drop a newer connection registered under the same id.
func (r *Registry) unregisterConn(id string, conn Connection) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.members[id]
	if !ok || e.conn != conn {
		return false
	}
	delete(r.members, id)
	return true
}

// Snapshot returns a point-in-time copy of the membership in registration order.
func (r *Registry) Snapshot() []Member {
	type ranked struct {
		Member
		seq uint64
	}

	r.mu.RLock()
	entries := make([]ranked, 0, len(r.members))
	for id, e := range r.members {
		entries = append(entries, ranked{Member{ID: id, Conn: e.conn}, e.seq})
	}
	r.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })

	out := make([]Member, len(entries))
	for i, e := range entries {
		out[i] = e.Member
	}
	return out
}

// Count returns the number of registered connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

// CloseAll closes and removes every connection. Used on shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	members := r.members
	r.members = make(map[string]entry)
	r.mu.Unlock()

	for _, e := range members {
		_ = e.conn.Close()
	}
}
