package engine

import (
	"fmt"
	"sort"
	"sync"

	"github.com/chriscow/speech-sdk-go/pkg/properties"
	"github.com/chriscow/speech-sdk-go/pkg/spx"
)

// Factory creates an engine configured from props.
type Factory func(props *properties.Bag) (Engine, error)

// Info describes a registered engine.
type Info struct {
	Name        string
	Factory     Factory
	Description string
}

var (
	mu      sync.RWMutex
	engines = make(map[string]*Info)
)

// Register adds an engine. It is typically called from init() functions in
// engine packages. Panics on an empty name, a nil factory or a duplicate.
func Register(name, description string, factory Factory) {
	if name == "" {
		panic("engine name cannot be empty")
	}
	if factory == nil {
		panic("engine factory cannot be nil")
	}

	mu.Lock()
	defer mu.Unlock()
	if _, exists := engines[name]; exists {
		panic(fmt.Sprintf("engine %s already registered", name))
	}
	engines[name] = &Info{Name: name, Factory: factory, Description: description}
}

// New creates the engine registered under name.
func New(name string, props *properties.Bag) (Engine, error) {
	mu.RLock()
	info, ok := engines[name]
	mu.RUnlock()
	if !ok {
		return nil, spx.Errorf(spx.ErrNotFound, "engine.New", "engine %q is not registered", name)
	}
	if props == nil {
		props = properties.New()
	}
	return info.Factory(props)
}

// List returns the registered engines sorted by name.
func List() []*Info {
	mu.RLock()
	defer mu.RUnlock()

	list := make([]*Info, 0, len(engines))
	for _, info := range engines {
		list = append(list, info)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list
}
