package event

import (
	"fmt"
	"sync"
)

// Disposable releases a subscription or other resource. Dispose must be
// safe to call more than once.
type Disposable interface {
	Dispose()
}

type disposeFunc struct {
	once sync.Once
	fn   func()
}

func (d *disposeFunc) Dispose() {
	d.once.Do(d.fn)
}

// OnDispose wraps fn in a Disposable that runs it at most once.
func OnDispose(fn func()) Disposable {
	return &disposeFunc{fn: fn}
}

// DisposableCollection disposes a group of handles together.
type DisposableCollection struct {
	mu       sync.Mutex
	items    []Disposable
	disposed bool
}

// NewDisposableCollection creates a collection holding the given handles.
func NewDisposableCollection(items ...Disposable) *DisposableCollection {
	return &DisposableCollection{items: items}
}

// Push adds handles to the collection. Handles pushed after Dispose are
// disposed immediately.
func (c *DisposableCollection) Push(items ...Disposable) {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		for _, d := range items {
			d.Dispose()
		}
		return
	}
	c.items = append(c.items, items...)
	c.mu.Unlock()
}

// Dispose disposes every handle in registration order. Idempotent.
func (c *DisposableCollection) Dispose() {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return
	}
	c.disposed = true
	items := c.items
	c.items = nil
	c.mu.Unlock()

	for _, d := range items {
		d.Dispose()
	}
}

// Disposed reports whether Dispose has been called.
func (c *DisposableCollection) Disposed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disposed
}

type listener[T any] struct {
	id      uint64
	handler func(T)
}

// Emitter is a typed observer list. The zero value is ready to use.
type Emitter[T any] struct {
	mu        sync.RWMutex
	listeners []listener[T]
	nextID    uint64
}

// Subscribe registers handler and returns a handle that removes it.
func (e *Emitter[T]) Subscribe(handler func(T)) Disposable {
	e.mu.Lock()
	e.nextID++
	id := e.nextID
	e.listeners = append(e.listeners, listener[T]{id: id, handler: handler})
	e.mu.Unlock()

	return OnDispose(func() { e.remove(id) })
}

func (e *Emitter[T]) remove(id uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, l := range e.listeners {
		if l.id == id {
			e.listeners = append(e.listeners[:i:i], e.listeners[i+1:]...)
			return
		}
	}
}

// Fire delivers v to every listener registered at the time of the call, in
// registration order. Panicking listeners are recovered and logged.
func (e *Emitter[T]) Fire(v T) {
	e.mu.RLock()
	listeners := make([]listener[T], len(e.listeners))
	copy(listeners, e.listeners)
	e.mu.RUnlock()

	for _, l := range listeners {
		safeCall(fmt.Sprintf("%T", v), func() { l.handler(v) })
	}
}

// Len returns the number of registered listeners.
func (e *Emitter[T]) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.listeners)
}

// Clear removes all listeners.
func (e *Emitter[T]) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = nil
}
