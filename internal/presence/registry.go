// Package presence tracks which users are reachable over live connections and
// fans domain events out to every connection of every addressed user.
package presence

import (
	"sync"

	"github.com/samber/lo"

	"github.com/Tyrowin/pairchat/internal/model"
)

// Handle is the server-side end of one live connection.
type Handle interface {
	// ID is unique among open connections.
	ID() string
	// Send queues payload without blocking and reports whether it was accepted.
	Send(payload []byte) bool
}

type handleSet map[string]Handle

// Registry maps identities to their open handles.
// An identity is present only while it has at least one handle.
type Registry struct {
	mu       sync.RWMutex
	byUser   map[model.UserID]handleSet
	byHandle map[string]model.UserID
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		byUser:   make(map[model.UserID]handleSet),
		byHandle: make(map[string]model.UserID),
	}
}

// Register adds handle to identity's set. Registering the same pair twice is a no-op.
// A handle bound to another identity is moved so it never belongs to two sets.
func (r *Registry) Register(identity model.UserID, h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := h.ID()
	if prev, ok := r.byHandle[id]; ok && prev != identity {
		r.removeLocked(prev, id)
	}

	set, ok := r.byUser[identity]
	if !ok {
		set = make(handleSet)
		r.byUser[identity] = set
	}
	set[id] = h
	r.byHandle[id] = identity
}

// Unregister removes handle from whichever set holds it. It returns the identity it was
// bound to and whether that was the identity's last handle. Unknown handles are ignored.
func (r *Registry) Unregister(h Handle) (identity model.UserID, last bool, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := h.ID()
	identity, ok = r.byHandle[id]
	if !ok {
		return model.UserID{}, false, false
	}
	last = r.removeLocked(identity, id)
	return identity, last, true
}

// removeLocked drops the handle and, with it, an emptied identity entry.
func (r *Registry) removeLocked(identity model.UserID, handleID string) bool {
	delete(r.byHandle, handleID)
	set, ok := r.byUser[identity]
	if !ok {
		return false
	}
	delete(set, handleID)
	if len(set) == 0 {
		delete(r.byUser, identity)
		return true
	}
	return false
}

// HandlesFor returns a snapshot of identity's handles. The slice is owned by the caller.
func (r *Registry) HandlesFor(identity model.UserID) []Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.byUser[identity]
	if len(set) == 0 {
		return nil
	}
	return lo.Values(set)
}

// IdentityOf returns the identity a handle is registered to.
func (r *Registry) IdentityOf(h Handle) (model.UserID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	identity, ok := r.byHandle[h.ID()]
	return identity, ok
}

// IsOnline reports whether identity has at least one live handle.
func (r *Registry) IsOnline(identity model.UserID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.byUser[identity]
	return ok
}

// Online returns the identities that currently have a live handle.
func (r *Registry) Online() []model.UserID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return lo.Keys(r.byUser)
}

// Len returns the number of online identities.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.byUser)
}

// HandleCount returns the number of registered handles across all identities.
func (r *Registry) HandleCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.byHandle)
}
