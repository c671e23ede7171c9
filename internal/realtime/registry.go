package realtime

import (
	"sort"
	"sync"

	"github.com/google/uuid"
)

// ConnectionHandle identifies one live transport session.
type ConnectionHandle string

// NewHandle returns a fresh server-assigned handle.
func NewHandle() ConnectionHandle {
	return ConnectionHandle(uuid.NewString())
}

// Registry is the presence table: user id -> the user's current connection.
// One connection per user, last register wins. The Hub is its only writer;
// reads are safe from any goroutine.
type Registry struct {
	mu       sync.RWMutex
	byUser   map[string]ConnectionHandle
	byHandle map[ConnectionHandle]string
}

func NewRegistry() *Registry {
	return &Registry{
		byUser:   make(map[string]ConnectionHandle),
		byHandle: make(map[ConnectionHandle]string),
	}
}

// Register binds userID to handle, overwriting any previous binding, and
// reports whether the set of online users changed.
func (r *Registry) Register(userID string, handle ConnectionHandle) (changed bool) {
	if userID == "" || handle == "" {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.byUser[userID]; ok {
		if prev == handle {
			return false
		}
		// The old handle is now stale; its later unregister must not evict userID.
		delete(r.byHandle, prev)
	} else {
		changed = true
	}

	// A handle belongs to exactly one user.
	if other, ok := r.byHandle[handle]; ok && other != userID && r.byUser[other] == handle {
		delete(r.byUser, other)
		changed = true
	}

	r.byUser[userID] = handle
	r.byHandle[handle] = userID
	return changed
}

// Unregister removes the user bound to handle, but only while handle is still
// that user's current binding. Stale or unknown handles are ignored.
func (r *Registry) Unregister(handle ConnectionHandle) (userID string, removed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID, ok := r.byHandle[handle]
	if !ok {
		return "", false
	}
	delete(r.byHandle, handle)
	if r.byUser[userID] != handle {
		return userID, false
	}
	delete(r.byUser, userID)
	return userID, true
}

// Resolve returns the live handle of userID, if any.
func (r *Registry) Resolve(userID string) (ConnectionHandle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.byUser[userID]
	return h, ok
}

// Online returns the online user ids, sorted.
func (r *Registry) Online() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.byUser))
	for u := range r.byUser {
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of online users.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser)
}

// Clear drops every entry. Called on shutdown.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byUser = make(map[string]ConnectionHandle)
	r.byHandle = make(map[ConnectionHandle]string)
}
