// Package realtime implements the websocket side of the game server: a
// registry of live connections and their bound usernames, the message
// protocol, and the engine fanning board updates out to every connection.
package realtime

import (
	"sort"
	"sync"
)

// Conn is a live client connection as seen by the registry and engine.
// Send must not block; it fails when the connection is closed or its
// outbound queue is full.
type Conn interface {
	ID() string
	Send(text string) error
	Close(code int, reason string) error
}

// PresenceFunc receives the bound identities after every change in presence.
// It is called outside the registry lock.
type PresenceFunc func(identities []string)

// Peer is one entry of a registry snapshot.
type Peer struct {
	Conn     Conn
	Identity string
}

type entry struct {
	conn     Conn
	identity string
	seq      uint64
}

// Registry tracks open connections in registration order.
type Registry struct {
	mu         sync.RWMutex
	entries    map[string]*entry
	nextSeq    uint64
	onPresence PresenceFunc
}

func NewRegistry(onPresence PresenceFunc) *Registry {
	return &Registry{
		entries:    make(map[string]*entry),
		onPresence: onPresence,
	}
}

// Register adds conn unbound. Registering a known connection is a no-op.
func (r *Registry) Register(conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[conn.ID()]; ok {
		return
	}
	r.nextSeq++
	r.entries[conn.ID()] = &entry{conn: conn, seq: r.nextSeq}
}

// Bind sets the identity of a registered connection, replacing any previous
// one. It reports false if conn is not registered.
func (r *Registry) Bind(conn Conn, identity string) bool {
	r.mu.Lock()
	e, ok := r.entries[conn.ID()]
	if ok {
		e.identity = identity
	}
	identities := r.identitiesLocked()
	r.mu.Unlock()

	if ok {
		r.presenceChanged(identities)
	}
	return ok
}

// Unregister removes conn. It reports whether conn was present.
func (r *Registry) Unregister(conn Conn) bool {
	r.mu.Lock()
	e, ok := r.entries[conn.ID()]
	if ok {
		delete(r.entries, conn.ID())
	}
	bound := ok && e.identity != ""
	identities := r.identitiesLocked()
	r.mu.Unlock()

	if bound {
		r.presenceChanged(identities)
	}
	return ok
}

// Identity returns the identity bound to conn, or "" if it has none.
func (r *Registry) Identity(conn Conn) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if e, ok := r.entries[conn.ID()]; ok {
		return e.identity
	}
	return ""
}

// Snapshot copies the registry in registration order. The copy can be
// iterated while connections come and go.
func (r *Registry) Snapshot() []Peer {
	r.mu.RLock()
	ordered := r.orderedLocked()
	r.mu.RUnlock()

	peers := make([]Peer, len(ordered))
	for i, e := range ordered {
		peers[i] = Peer{Conn: e.conn, Identity: e.identity}
	}
	return peers
}

// Identities lists bound identities in registration order. A user logged in
// from several connections appears once.
func (r *Registry) Identities() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.identitiesLocked()
}

// Len is the number of registered connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

func (r *Registry) orderedLocked() []entry {
	out := make([]entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}

func (r *Registry) identitiesLocked() []string {
	seen := make(map[string]struct{})
	ids := []string{}
	for _, e := range r.orderedLocked() {
		if e.identity == "" {
			continue
		}
		if _, dup := seen[e.identity]; dup {
			continue
		}
		seen[e.identity] = struct{}{}
		ids = append(ids, e.identity)
	}
	return ids
}

func (r *Registry) presenceChanged(identities []string) {
	if r.onPresence != nil {
		r.onPresence(identities)
	}
}
