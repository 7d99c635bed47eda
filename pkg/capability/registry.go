package capability

import (
	"fmt"
	"sort"
	"sync"

	"github.com/chriscow/speech-sdk-go/pkg/spx"
)

// Factory creates a new, not yet sited, component instance.
type Factory func() Queryable

// Class describes a registered component class.
type Class struct {
	Name         string  // class name, e.g. "AudioPump"
	Factory      Factory // creates instances
	Capabilities []ID    // declared capabilities, in order
	Description  string  // human-readable description
}

// Registry maps class names to factories and their declared capabilities.
type Registry struct {
	mu      sync.RWMutex
	classes map[string]*Class
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{classes: make(map[string]*Class)}
}

// Register adds a class with the given factory and declared capabilities.
// Panics if the name is empty, the factory is nil, or the class is already
// registered.
func (r *Registry) Register(name string, factory Factory, caps ...ID) {
	r.RegisterWithMetadata(&Class{
		Name:         name,
		Factory:      factory,
		Capabilities: caps,
	})
}

// RegisterWithMetadata adds a fully described class.
// Panics on malformed or duplicate registrations.
func (r *Registry) RegisterWithMetadata(class *Class) {
	if class.Name == "" {
		panic("class name cannot be empty")
	}
	if class.Factory == nil {
		panic("class factory cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.classes[class.Name]; exists {
		panic(fmt.Sprintf("class %s already registered", class.Name))
	}
	r.classes[class.Name] = class
}

// Lookup returns the class registered under name.
func (r *Registry) Lookup(name string) (*Class, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	class, ok := r.classes[name]
	return class, ok
}

// Create instantiates the named class.
func (r *Registry) Create(name string) (Queryable, error) {
	class, ok := r.Lookup(name)
	if !ok {
		return nil, spx.Errorf(spx.ErrNotFound, "registry.Create", "class %q is not registered", name)
	}
	obj := class.Factory()
	if obj == nil {
		return nil, spx.Errorf(spx.ErrUnexpected, "registry.Create", "factory for %q returned nil", name)
	}
	return obj, nil
}

// List returns all registered classes sorted by name.
func (r *Registry) List() []*Class {
	r.mu.RLock()
	defer r.mu.RUnlock()

	classes := make([]*Class, 0, len(r.classes))
	for _, c := range r.classes {
		classes = append(classes, c)
	}
	sort.Slice(classes, func(i, j int) bool {
		return classes[i].Name < classes[j].Name
	})
	return classes
}

// Clear removes every class. Intended for tests.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.classes = make(map[string]*Class)
}
