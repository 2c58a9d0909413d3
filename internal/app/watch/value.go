// Package watch provides a thread-safe broadcast value holder.
//
// A Value behaves like a state holder, not an event queue: late subscribers
// immediately observe the value as-of subscription time, and a subscriber
// that falls behind sees the newest value rather than every intermediate one.
package watch

import (
	"sync"

	"github.com/google/uuid"
)

// subscriberBuffer is the per-subscriber channel capacity. When it is
// exhausted the oldest buffered value is dropped in favor of the newest.
const subscriberBuffer = 16

// Value holds a current value of type T and broadcasts updates.
type Value[T any] struct {
	mu      sync.RWMutex
	current T
	subs    map[string]chan T
	closed  bool
}

// NewValue creates a value holder with the given initial value.
func NewValue[T any](initial T) *Value[T] {
	return &Value[T]{
		current: initial,
		subs:    make(map[string]chan T),
	}
}

// Get returns the current value.
func (v *Value[T]) Get() T {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.current
}

// Set replaces the current value and notifies all subscribers.
func (v *Value[T]) Set(val T) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed {
		return
	}
	v.current = val
	for _, ch := range v.subs {
		send(ch, val)
	}
}

// Update applies fn to the current value under the lock and broadcasts the
// result. fn must not call back into the Value.
func (v *Value[T]) Update(fn func(T) T) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed {
		return
	}
	v.current = fn(v.current)
	for _, ch := range v.subs {
		send(ch, v.current)
	}
}

// Subscribe registers a new subscriber and returns its ID and channel.
// The current value is delivered immediately.
func (v *Value[T]) Subscribe() (string, <-chan T) {
	v.mu.Lock()
	defer v.mu.Unlock()

	id := uuid.New().String()
	ch := make(chan T, subscriberBuffer)
	if v.closed {
		close(ch)
		return id, ch
	}
	ch <- v.current
	v.subs[id] = ch
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (v *Value[T]) Unsubscribe(id string) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if ch, ok := v.subs[id]; ok {
		delete(v.subs, id)
		close(ch)
	}
}

// Close removes all subscribers and closes their channels. Further Set calls
// are ignored.
func (v *Value[T]) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed {
		return
	}
	v.closed = true
	for id, ch := range v.subs {
		delete(v.subs, id)
		close(ch)
	}
}

// SubscriberCount returns the number of active subscribers.
func (v *Value[T]) SubscriberCount() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.subs)
}

// send delivers val without blocking. On a full buffer the oldest entry is
// discarded so the subscriber converges on the newest value.
func send[T any](ch chan T, val T) {
	for {
		select {
		case ch <- val:
			return
		default:
			select {
			case <-ch:
			default:
			}
		}
	}
}
