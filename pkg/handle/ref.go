package handle

import (
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Ref is a counted reference to a component. The component is released
// (io.Closer.Close, when implemented) exactly once, synchronously, by the
// caller that drops the last reference.
type Ref[T any] struct {
	value    T
	refs     atomic.Int64
	release  sync.Once
	released atomic.Bool
}

func newRef[T any](value T) *Ref[T] {
	r := &Ref[T]{value: value}
	r.refs.Store(1)
	return r
}

// Value returns the referenced component.
func (r *Ref[T]) Value() T {
	return r.value
}

// Released reports whether the component has already been destroyed.
func (r *Ref[T]) Released() bool {
	return r.released.Load()
}

// tryAcquire adds a reference unless the count already reached zero.
func (r *Ref[T]) tryAcquire() bool {
	for {
		n := r.refs.Load()
		if n <= 0 {
			return false
		}
		if r.refs.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

// Release drops one reference. The last Release destroys the component.
func (r *Ref[T]) Release() {
	n := r.refs.Add(-1)
	if n > 0 {
		return
	}
	if n < 0 {
		slog.Warn("handle reference released more times than acquired")
		return
	}
	r.release.Do(func() {
		r.released.Store(true)
		if c, ok := any(r.value).(io.Closer); ok {
			if err := c.Close(); err != nil {
				slog.Warn("Component close failed", slog.String("error", err.Error()))
			}
		}
	})
}
