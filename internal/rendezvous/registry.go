// Package rendezvous gives a blocking RPC caller a one-shot synchronous
// hand-off of the result an independent HTTP submission produces for the
// same task. It knows nothing about tasks, config, or HTTP; it is a pure
// synchronization primitive, generic over the payload type.
package rendezvous

import (
	"context"
	"sync"
)

// Outcome tags why Wait returned.
type Outcome int

const (
	// Delivered means the slot was filled by Deliver.
	Delivered Outcome = iota
	// TimedOut means the overall deadline elapsed before delivery.
	TimedOut
	// Cancelled means Cancel was called, typically during shutdown.
	Cancelled
)

// Slot is the handle returned by Register and consumed by exactly one Wait.
type Slot[T any] struct {
	id string
	ch chan *T
}

// Registry manages one slot per task identifier. A slot is consumed once:
// after Wait returns, the registry forgets the identifier.
type Registry[T any] struct {
	mu      sync.Mutex
	waiters map[string]chan *T
}

// New creates an empty Registry.
func New[T any]() *Registry[T] {
	return &Registry[T]{waiters: make(map[string]chan *T)}
}

// Register creates a fresh, empty slot for id. Calling Register again for an
// id that already has a live slot replaces it — each RPC call registers at
// most once in its own lifetime, so this only guards against misuse.
func (r *Registry[T]) Register(id string) Slot[T] {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch := make(chan *T, 1)
	r.waiters[id] = ch
	return Slot[T]{id: id, ch: ch}
}

// Wait blocks until the slot is filled by Deliver, ctx is done, or Cancel is
// called for this id — whichever happens first. The slot is forgotten by the
// registry before Wait returns, regardless of outcome.
func (r *Registry[T]) Wait(ctx context.Context, slot Slot[T]) (*T, Outcome) {
	defer r.forget(slot.id)
	select {
	case v := <-slot.ch:
		if v == nil {
			return nil, Cancelled
		}
		return v, Delivered
	case <-ctx.Done():
		return nil, TimedOut
	}
}

// Deliver fills the slot for id with payload, if it still exists and is
// still empty. Delivering to an unknown or already-filled slot is a silent
// no-op — the canonical case being the auto-resubmit scheduler racing a human
// submission for the same task; whichever writes first wins, the other does
// nothing.
func (r *Registry[T]) Deliver(id string, payload *T) bool {
	r.mu.Lock()
	ch, ok := r.waiters[id]
	r.mu.Unlock()
	if !ok {
		return false
	}
	select {
	case ch <- payload:
		return true
	default:
		return false
	}
}

// Cancel wakes the waiter for id, if any, with a cancellation outcome. Used
// when the process is shutting down with RPCs still blocked in Wait.
func (r *Registry[T]) Cancel(id string) {
	r.Deliver(id, nil)
}

// CancelAll wakes every outstanding waiter with a cancellation outcome. Used
// on process shutdown.
func (r *Registry[T]) CancelAll() {
	r.mu.Lock()
	ids := make([]string, 0, len(r.waiters))
	for id := range r.waiters {
		ids = append(ids, id)
	}
	r.mu.Unlock()
	for _, id := range ids {
		r.Cancel(id)
	}
}

func (r *Registry[T]) forget(id string) {
	r.mu.Lock()
	delete(r.waiters, id)
	r.mu.Unlock()
}
