package handle

import (
	"reflect"
	"sync"
)

// Manager lazily creates one Table per component type.
type Manager struct {
	mu     sync.Mutex
	tables map[reflect.Type]any
}

// NewManager returns an empty manager.
func NewManager() *Manager {
	return &Manager{tables: make(map[reflect.Type]any)}
}

var defaultManager = NewManager()

// Default returns the process-wide manager backing the exported boundary.
func Default() *Manager {
	return defaultManager
}

// TableFor returns the table for T, creating it on first use.
func TableFor[T any](m *Manager) *Table[T] {
	key := reflect.TypeFor[T]()

	m.mu.Lock()
	defer m.mu.Unlock()

	if t, ok := m.tables[key]; ok {
		return t.(*Table[T])
	}
	t := NewTable[T](key.String())
	m.tables[key] = t
	return t
}
