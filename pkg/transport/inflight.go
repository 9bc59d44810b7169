package transport

import (
	"context"
	"sync"
)

// InFlightRegistry tracks running completions by request ID so a single
// request, or every request at shutdown, can be cancelled. Clients may
// reuse a request ID; each tracked call is kept separately.
//
// All methods are safe for concurrent access.
type InFlightRegistry struct {
	mu      sync.Mutex
	next    uint64
	entries map[uint64]inFlight
}

type inFlight struct {
	id     string
	cancel context.CancelFunc
}

// NewInFlightRegistry creates an empty registry.
func NewInFlightRegistry() *InFlightRegistry {
	return &InFlightRegistry{entries: make(map[uint64]inFlight)}
}

// Track derives a cancellable context for the request id and registers it.
// The returned release func unregisters the request and cancels its
// context; call it once the request is done.
func (r *InFlightRegistry) Track(ctx context.Context, id string) (context.Context, func()) {
	ctx, cancel := context.WithCancel(ctx)

	r.mu.Lock()
	key := r.next
	r.next++
	r.entries[key] = inFlight{id: id, cancel: cancel}
	r.mu.Unlock()

	var once sync.Once
	return ctx, func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.entries, key)
			r.mu.Unlock()
			cancel()
		})
	}
}

// Cancel cancels every tracked call with the given request ID and reports
// whether there was one.
func (r *InFlightRegistry) Cancel(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	found := false
	for key, e := range r.entries {
		if e.id == id {
			e.cancel()
			delete(r.entries, key)
			found = true
		}
	}
	return found
}

// CancelAll cancels every tracked call and returns how many there were.
func (r *InFlightRegistry) CancelAll() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(r.entries)
	for key, e := range r.entries {
		e.cancel()
		delete(r.entries, key)
	}
	return n
}

// Len returns the number of tracked calls.
func (r *InFlightRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
