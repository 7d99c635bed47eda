package spx

import (
	"sync"
	"sync/atomic"
)

// CancelToken is a cooperative cancellation flag. Producers check it at
// well-defined checkpoints; Cancel never interrupts in-flight work.
type CancelToken struct {
	canceled atomic.Bool
	once     sync.Once
	done     chan struct{}
	initOnce sync.Once
}

// NewCancelToken returns a token that has not been canceled.
func NewCancelToken() *CancelToken {
	t := &CancelToken{}
	t.init()
	return t
}

func (t *CancelToken) init() {
	t.initOnce.Do(func() {
		t.done = make(chan struct{})
	})
}

// Cancel sets the flag and closes Done. It is idempotent.
func (t *CancelToken) Cancel() {
	t.init()
	t.once.Do(func() {
		t.canceled.Store(true)
		close(t.done)
	})
}

// Canceled reports whether Cancel has been called.
func (t *CancelToken) Canceled() bool {
	return t.canceled.Load()
}

// Done returns a channel closed on Cancel, for interruptible waits.
func (t *CancelToken) Done() <-chan struct{} {
	t.init()
	return t.done
}
