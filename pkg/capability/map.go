package capability

import (
	"fmt"
	"sync/atomic"
)

// Binding ties one capability id to its implementation.
type Binding struct {
	id   ID
	impl any
}

// Entry declares that impl provides capability T. The type parameter makes
// the compiler check that impl really implements the contract.
func Entry[T any](impl T) Binding {
	return Binding{id: IDOf[T](), impl: impl}
}

// ID returns the bound capability.
func (b Binding) ID() ID { return b.id }

// Map is the declared capability set of one component. Components embed a
// *Map (or hold one) and expose it through QueryCapability.
type Map struct {
	entries  []Binding
	index    map[ID]int
	delegate atomic.Pointer[delegateBox]
}

type delegateBox struct {
	q Queryable
}

// NewMap builds an immutable capability map. Declaring the same capability
// twice is a programming error and panics.
func NewMap(entries ...Binding) *Map {
	m := &Map{
		entries: make([]Binding, 0, len(entries)),
		index:   make(map[ID]int, len(entries)),
	}
	for _, e := range entries {
		if e.impl == nil {
			panic(fmt.Sprintf("capability %s declared with nil implementation", e.id))
		}
		if _, dup := m.index[e.id]; dup {
			panic(fmt.Sprintf("capability %s declared twice", e.id))
		}
		m.index[e.id] = len(m.entries)
		m.entries = append(m.entries, e)
	}
	return m
}

// QueryCapability returns the declared implementation for id, falling back
// to the delegate, or nil.
func (m *Map) QueryCapability(id ID) any {
	if m == nil {
		return nil
	}
	if i, ok := m.index[id]; ok {
		return m.entries[i].impl
	}
	if d := m.delegate.Load(); d != nil && d.q != nil {
		return d.q.QueryCapability(id)
	}
	return nil
}

// IDs returns the declared capabilities in declaration order.
func (m *Map) IDs() []ID {
	ids := make([]ID, len(m.entries))
	for i, e := range m.entries {
		ids[i] = e.id
	}
	return ids
}

// SetDelegate installs the inner component that receives queries the map
// does not declare. Declared answers never change; only previously absent
// capabilities may start resolving through the delegate.
func (m *Map) SetDelegate(q Queryable) {
	m.delegate.Store(&delegateBox{q: q})
}

// Delegate returns the current delegate, or nil.
func (m *Map) Delegate() Queryable {
	if d := m.delegate.Load(); d != nil {
		return d.q
	}
	return nil
}
