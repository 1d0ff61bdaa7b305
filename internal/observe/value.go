// Package observe provides an observable value: a synchronous snapshot plus
// subscribe/unsubscribe channels that always carry the latest state.
package observe

import "sync"

// Value holds a current value and broadcasts every change to subscribers.
// Each subscriber channel has a buffer of one and keeps only the newest value,
// so slow readers never block Store and never see stale intermediate states.
type Value[T any] struct {
	mu        sync.RWMutex
	current   T
	listeners map[chan T]struct{}
}

// NewValue creates a Value holding initial.
func NewValue[T any](initial T) *Value[T] {
	return &Value[T]{
		current:   initial,
		listeners: make(map[chan T]struct{}),
	}
}

// Load returns the current value.
func (v *Value[T]) Load() T {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.current
}

// Store replaces the current value and notifies subscribers.
func (v *Value[T]) Store(next T) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.current = next
	v.broadcast(next)
}

// Update applies fn to the current value under the lock and notifies
// subscribers with the result.
func (v *Value[T]) Update(fn func(T) T) T {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.current = fn(v.current)
	v.broadcast(v.current)
	return v.current
}

// broadcast must be called with the write lock held.
func (v *Value[T]) broadcast(next T) {
	for ch := range v.listeners {
		// Drop a value the listener has not read yet; the newer one replaces it.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- next:
		default:
		}
	}
}

// Subscribe returns a channel receiving subsequent values.
// The caller must call Unsubscribe when done.
func (v *Value[T]) Subscribe() chan T {
	ch := make(chan T, 1)
	v.mu.Lock()
	v.listeners[ch] = struct{}{}
	v.mu.Unlock()
	return ch
}

// Unsubscribe removes a listener channel and closes it.
func (v *Value[T]) Unsubscribe(ch chan T) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.listeners[ch]; !ok {
		return
	}
	delete(v.listeners, ch)
	close(ch)
}
