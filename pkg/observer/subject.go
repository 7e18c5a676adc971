// Package observer provides a typed fan-out of events to registered observers.
package observer

import (
	"context"
	"sync"
	"sync/atomic"
)

// Observer receives published events of type T.
type Observer[T any] interface {
	Notify(context.Context, T) error
}

// ObserverFunc adapts a plain function to Observer.
//
//revive:disable-next-line:exported
type ObserverFunc[T any] func(context.Context, T) error

// Notify calls f. A nil f is a no-op.
func (f ObserverFunc[T]) Notify(ctx context.Context, evt T) error {
	if f == nil {
		return nil
	}
	return f(ctx, evt)
}

// Publisher publishes events to downstream observers.
type Publisher[T any] interface {
	Publish(context.Context, T)
}

// Subject delivers every published event to its observers in registration
// order. The observer list is copy-on-write, so Publish never blocks Attach.
type Subject[T any] struct {
	mu        sync.Mutex // serializes writers
	observers atomic.Pointer[[]Observer[T]]
	onError   atomic.Pointer[func(error)]
}

// NewSubject returns a Subject with the given initial observers.
func NewSubject[T any](observers ...Observer[T]) *Subject[T] {
	s := &Subject[T]{}
	s.Attach(observers...)
	return s
}

// Publish notifies every observer synchronously. Observer errors go to the
// error handler, if any, and do not stop delivery.
func (s *Subject[T]) Publish(ctx context.Context, evt T) {
	if s == nil {
		return
	}
	list := s.observers.Load()
	if list == nil {
		return
	}
	onError := s.onError.Load()
	for _, obs := range *list {
		if err := obs.Notify(ctx, evt); err != nil && onError != nil {
			(*onError)(err)
		}
	}
}

// Attach appends observers. Nil entries are ignored.
func (s *Subject[T]) Attach(observers ...Observer[T]) {
	if s == nil || len(observers) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var next []Observer[T]
	if cur := s.observers.Load(); cur != nil {
		next = append(next, *cur...)
	}
	for _, obs := range observers {
		if obs != nil {
			next = append(next, obs)
		}
	}
	s.observers.Store(&next)
}

// Len reports the number of attached observers.
func (s *Subject[T]) Len() int {
	if s == nil {
		return 0
	}
	if list := s.observers.Load(); list != nil {
		return len(*list)
	}
	return 0
}

// SetErrorHandler sets the callback for observer failures; nil clears it.
func (s *Subject[T]) SetErrorHandler(fn func(error)) {
	if s == nil {
		return
	}
	if fn == nil {
		s.onError.Store(nil)
		return
	}
	s.onError.Store(&fn)
}
