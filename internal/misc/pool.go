package misc

import "sync"

// Resetter is implemented by values that can be cleared for reuse.
type Resetter interface {
	Reset()
}

// Pool is a typed sync.Pool that resets values on Put.
type Pool[T Resetter] struct {
	p    sync.Pool
	keep func(T) bool
}

// NewPool returns a Pool that allocates with newFn.
func NewPool[T Resetter](newFn func() T) *Pool[T] {
	pl := &Pool[T]{}
	pl.p.New = func() any { return newFn() }
	return pl
}

// Keep installs a predicate checked on Put; values it rejects are dropped
// instead of pooled. Use it to avoid retaining oversized buffers.
func (pl *Pool[T]) Keep(fn func(T) bool) *Pool[T] {
	pl.keep = fn
	return pl
}

// Get returns a pooled or freshly allocated value.
func (pl *Pool[T]) Get() T {
	v, _ := pl.p.Get().(T)
	return v
}

// Put resets v and returns it to the pool.
func (pl *Pool[T]) Put(v T) {
	if pl.keep != nil && !pl.keep(v) {
		return
	}
	v.Reset()
	pl.p.Put(v)
}
