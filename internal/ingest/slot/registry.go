// Package slot provides keyed, non-blocking execution permits so that at most
// one sync run is active per branch.
package slot

import (
	"sync"
)

// State describes a key's permit as seen by status queries.
type State string

const (
	// StateClear means the key has never been referenced since startup.
	StateClear State = "Clear"
	// StatePending means a run currently holds the permit.
	StatePending State = "Pending"
	// StateDone means the key has been used and the permit is free.
	StateDone State = "Done"
)

// permit is a one-slot semaphore.
type permit chan struct{}

// Registry maps keys to permits. Permits are created on first reference and
// live for the lifetime of the registry; the key space (one per branch) is
// small and bounded.
//
// The zero value is not usable; use NewRegistry.
type Registry struct {
	mu      sync.Mutex
	permits map[string]permit
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{permits: make(map[string]permit)}
}

// get returns the permit for key, creating it if needed.
func (r *Registry) get(key string) (p permit, created bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, exists := r.permits[key]
	if !exists {
		p = make(permit, 1)
		r.permits[key] = p
	}
	return p, !exists
}

// TryAcquire takes the permit for key without waiting. When ok is false the
// permit is held by someone else and release is nil. release must be called
// exactly once; further calls are no-ops.
func (r *Registry) TryAcquire(key string) (release func(), ok bool) {
	p, _ := r.get(key)

	select {
	case p <- struct{}{}:
	default:
		return nil, false
	}

	var once sync.Once
	return func() {
		once.Do(func() { <-p })
	}, true
}

// Held reports whether the permit for key is currently taken.
func (r *Registry) Held(key string) bool {
	r.mu.Lock()
	p, exists := r.permits[key]
	r.mu.Unlock()
	return exists && len(p) == 1
}

// State reports the permit state for key without creating it.
func (r *Registry) State(key string) State {
	r.mu.Lock()
	p, exists := r.permits[key]
	r.mu.Unlock()

	switch {
	case !exists:
		return StateClear
	case len(p) == 1:
		return StatePending
	default:
		return StateDone
	}
}

// Keys returns every key referenced so far.
func (r *Registry) Keys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	keys := make([]string, 0, len(r.permits))
	for k := range r.permits {
		keys = append(keys, k)
	}
	return keys
}
