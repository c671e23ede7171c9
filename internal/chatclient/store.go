package chatclient

import (
	"sync"
)

// Listener is called after every dispatched action with the resulting state.
type Listener func(Action, State)

// Store serializes all client state updates through Dispatch.
type Store struct {
	mu        sync.Mutex
	s         *state
	listeners []Listener
}

// NewStore creates an empty store for the authenticated user self.
func NewStore(self string) *Store {
	return &Store{s: newState(self)}
}

// Self returns the authenticated user's id.
func (st *Store) Self() string {
	return st.s.self
}

// Subscribe registers fn for every later dispatch. Listeners run outside the lock.
func (st *Store) Subscribe(fn Listener) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.listeners = append(st.listeners, fn)
}

// Dispatch applies a to the state.
func (st *Store) Dispatch(a Action) {
	st.mu.Lock()
	reduce(st.s, a)
	var (
		snap      State
		listeners = st.listeners
	)
	if len(listeners) > 0 {
		snap = st.s.snapshot()
	}
	st.mu.Unlock()

	for _, fn := range listeners {
		fn(a, snap)
	}
}

// Snapshot returns a deep copy of the current state.
func (st *Store) Snapshot() State {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.s.snapshot()
}

// Loaded reports whether partner's history has been fetched this session.
func (st *Store) Loaded(partner string) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	b, ok := st.s.buckets.Get(partner)
	return ok && b.Loaded
}
