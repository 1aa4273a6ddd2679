package interaction

import (
	"sync"
	"time"
)

// Registry is the in-memory table of pending interactions. The orchestrator
// inserts concurrently with the correlator taking entries, so all access is
// mutex-guarded. Entries are process-lifetime state; a restart loses in-flight
// correlations.
type Registry struct {
	mu      sync.Mutex
	pending map[string]Pending
}

func NewRegistry() *Registry {
	return &Registry{pending: make(map[string]Pending)}
}

// Put registers a pending interaction under its correlation id.
func (r *Registry) Put(p Pending) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending[p.ID] = p
}

// Get looks up a pending interaction by correlation id.
func (r *Registry) Get(id string) (Pending, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pending[id]
	return p, ok
}

// Take removes and returns the entry for the correlation id. Lookup and
// removal are a single step, so concurrent deliveries of the same response
// consume the entry at most once.
func (r *Registry) Take(id string) (Pending, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pending[id]
	if ok {
		delete(r.pending, id)
	}
	return p, ok
}

// Delete removes the entry for the correlation id, if present.
func (r *Registry) Delete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.pending, id)
}

// Len returns the number of pending interactions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// SweepOlderThan drops entries created before the cutoff and returns how many
// were removed. Responses never arrive for some requests (a user dismisses the
// signing prompt); without sweeping those entries live forever.
func (r *Registry) SweepOlderThan(cutoff time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for id, p := range r.pending {
		if p.CreatedAt.Before(cutoff) {
			delete(r.pending, id)
			removed++
		}
	}
	return removed
}
