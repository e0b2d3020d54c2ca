// Package notify implements the subscriber registry behind the monitor's
// change and alert streams.
package notify

import (
	"sync"
	"sync/atomic"
)

// Hub fans values out to registered callbacks. Callbacks run synchronously
// on the publishing goroutine, in registration order; a consumer that needs
// to hop to its own goroutine or event loop does so inside its callback.
type Hub[T any] struct {
	mu     sync.RWMutex
	nextID uint64
	subs   []subscriber[T]
	count  atomic.Int64
}

type subscriber[T any] struct {
	id uint64
	fn func(T)
}

// Subscribe registers fn and returns a function that removes it again.
// The returned function is safe to call more than once.
func (h *Hub[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	h.mu.Lock()
	h.nextID++
	id := h.nextID
	h.subs = append(h.subs, subscriber[T]{id: id, fn: fn})
	h.count.Add(1)
	h.mu.Unlock()

	var once sync.Once

	return func() {
		once.Do(func() { h.remove(id) })
	}
}

func (h *Hub[T]) remove(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for i, s := range h.subs {
		if s.id == id {
			// copy so a Publish iterating the old slice is unaffected
			subs := make([]subscriber[T], 0, len(h.subs)-1)
			subs = append(subs, h.subs[:i]...)
			subs = append(subs, h.subs[i+1:]...)
			h.subs = subs
			h.count.Add(-1)

			return
		}
	}
}

// Publish delivers v to every current subscriber.
func (h *Hub[T]) Publish(v T) {
	h.mu.RLock()
	subs := h.subs
	h.mu.RUnlock()

	for _, s := range subs {
		s.fn(v)
	}
}

// Len returns the number of current subscribers.
func (h *Hub[T]) Len() int {
	return int(h.count.Load())
}

// Chan adapts a subscription to a buffered channel. Values that do not fit
// in the buffer are dropped rather than blocking the publisher. The channel
// is never closed; stop receiving after calling unsubscribe.
func Chan[T any](subscribe func(func(T)) func(), buffer int) (<-chan T, func()) {
	ch := make(chan T, buffer)
	unsubscribe := subscribe(func(v T) {
		select {
		case ch <- v:
		default:
		}
	})

	return ch, unsubscribe
}
