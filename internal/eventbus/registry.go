package eventbus

import (
	"sync"
	"sync/atomic"
)

// binding is immutable once created
type binding struct {
	id      string
	owner   *Subscriber
	handler Handler
}

func (b *binding) live() bool {
	return b.owner.Alive()
}

// registry is a copy-on-write list of bindings in insertion order. Readers
// load the current slice without locking; writers serialise on mu and swap
// in a fresh slice, so a snapshot is never modified after it is published.
type registry struct {
	mu       sync.Mutex
	bindings atomic.Pointer[[]*binding]
}

func newRegistry() *registry {
	r := &registry{}
	r.store(nil)
	return r
}

func (r *registry) snapshot() []*binding {
	return *r.bindings.Load()
}

func (r *registry) store(next []*binding) {
	r.bindings.Store(&next)
}

// appendLocked requires r.mu
func (r *registry) appendLocked(added []*binding) {
	current := r.snapshot()
	next := make([]*binding, 0, len(current)+len(added))
	next = append(next, current...)
	next = append(next, added...)
	r.store(next)
}

// removeLocked drops every binding matched by drop and returns how many were
// removed. Requires r.mu.
func (r *registry) removeLocked(drop func(*binding) bool) int {
	current := r.snapshot()
	next := make([]*binding, 0, len(current))
	for _, b := range current {
		if drop(b) {
			continue
		}
		next = append(next, b)
	}

	removed := len(current) - len(next)
	if removed > 0 {
		r.store(next)
	}
	return removed
}

func (r *registry) owns(sub *Subscriber) bool {
	for _, b := range r.snapshot() {
		if b.owner == sub && b.live() {
			return true
		}
	}
	return false
}
