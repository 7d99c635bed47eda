// Package handle maps opaque handles to shared-ownership component instances.
// Each Table serves one component type; slots are keyed by {index, generation}
// so a stale handle fails with spx.ErrNotFound in O(1) and a live identifier
// is never reused.
package handle

import (
	"fmt"
	"sync"

	"github.com/chriscow/speech-sdk-go/pkg/spx"
)

// Handle is an opaque identifier: low 32 bits slot index, high 32 bits slot
// generation. The zero Handle is never issued.
type Handle uint64

// Invalid is the zero Handle.
const Invalid Handle = 0

func makeHandle(index, generation uint32) Handle {
	return Handle(uint64(generation)<<32 | uint64(index))
}

func (h Handle) index() uint32      { return uint32(h) }
func (h Handle) generation() uint32 { return uint32(h >> 32) }

func (h Handle) String() string {
	return fmt.Sprintf("0x%016x", uint64(h))
}

type slot[T any] struct {
	generation uint32
	ref        *Ref[T] // nil when the slot is free
}

// Table owns one counted reference per live handle.
type Table[T any] struct {
	mu    sync.RWMutex
	name  string
	slots []slot[T]
	free  []uint32
	live  int
}

// NewTable creates an empty table. name is used in error messages.
func NewTable[T any](name string) *Table[T] {
	return &Table[T]{name: name}
}

// Create tracks component and returns its new handle.
func (t *Table[T]) Create(component T) Handle {
	ref := newRef(component)

	t.mu.Lock()
	defer t.mu.Unlock()

	var idx uint32
	if n := len(t.free); n > 0 {
		idx = t.free[n-1]
		t.free = t.free[:n-1]
	} else {
		t.slots = append(t.slots, slot[T]{})
		idx = uint32(len(t.slots) - 1)
	}

	s := &t.slots[idx]
	// Generations start at 1 so that the zero Handle never resolves.
	s.generation++
	if s.generation == 0 {
		s.generation = 1
	}
	s.ref = ref
	t.live++

	return makeHandle(idx, s.generation)
}

// lookup must be called with t.mu held.
func (t *Table[T]) lookup(h Handle) (*slot[T], error) {
	idx := h.index()
	if h == Invalid || int(idx) >= len(t.slots) {
		return nil, spx.Errorf(spx.ErrNotFound, t.name+".Get", "invalid handle %s", h)
	}
	s := &t.slots[idx]
	if s.ref == nil || s.generation != h.generation() {
		return nil, spx.Errorf(spx.ErrNotFound, t.name+".Get", "stale or closed handle %s", h)
	}
	return s, nil
}

// Get returns the component behind h without taking a reference.
func (t *Table[T]) Get(h Handle) (T, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s, err := t.lookup(h)
	if err != nil {
		var zero T
		return zero, err
	}
	return s.ref.Value(), nil
}

// Acquire returns an additional counted reference to the component behind h.
// The caller must Release it; the component outlives Close until then.
func (t *Table[T]) Acquire(h Handle) (*Ref[T], error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s, err := t.lookup(h)
	if err != nil {
		return nil, err
	}
	if !s.ref.tryAcquire() {
		return nil, spx.Errorf(spx.ErrNotFound, t.name+".Acquire", "handle %s is being released", h)
	}
	return s.ref, nil
}

// IsValid reports whether h currently resolves.
func (t *Table[T]) IsValid(h Handle) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, err := t.lookup(h)
	return err == nil
}

// Close releases the table's reference. Closing an already closed handle
// returns spx.ErrNotFound.
func (t *Table[T]) Close(h Handle) error {
	t.mu.Lock()
	s, err := t.lookup(h)
	if err != nil {
		t.mu.Unlock()
		return err
	}
	ref := s.ref
	s.ref = nil
	t.free = append(t.free, h.index())
	t.live--
	t.mu.Unlock()

	// Destruction may run component code; never under the table lock.
	ref.Release()
	return nil
}

// Len returns the number of live handles.
func (t *Table[T]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.live
}
