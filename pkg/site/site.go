// Package site implements the service locator every component is bound to.
//
// A Site is just a capability.Queryable. Components that need context
// (properties, the class registry, a logger) declare ObjectWithSite and are
// handed a site after construction; services are then resolved by walking
// from the component's site up through its parents.
package site

import (
	"io"
	"log/slog"
	"sync"

	"github.com/chriscow/speech-sdk-go/pkg/capability"
	"github.com/chriscow/speech-sdk-go/pkg/properties"
	"github.com/chriscow/speech-sdk-go/pkg/spx"
)

// Site is the context a component is bound to.
type Site = capability.Queryable

// ObjectWithSite is implemented by components that accept a site.
type ObjectWithSite interface {
	SetSite(s Site) error
	Site() Site
}

// Parent is implemented by sites that are nested inside another site.
type Parent interface {
	ParentSite() Site
}

// PropertyService exposes the property bag of a scope.
type PropertyService interface {
	Properties() *properties.Bag
}

// ClassService exposes the class registry used to construct components.
type ClassService interface {
	Classes() *capability.Registry
}

// LoggerService exposes the structured logger of a scope.
type LoggerService interface {
	Logger() *slog.Logger
}

// QueryService resolves capability T on s, then on each parent in turn.
func QueryService[T any](s Site) (T, bool) {
	for s != nil {
		if v, ok := capability.Query[T](s); ok {
			return v, true
		}
		p, ok := capability.Query[Parent](s)
		if !ok {
			break
		}
		s = p.ParentSite()
	}
	var zero T
	return zero, false
}

// PropertiesOf returns the nearest property bag visible from s. A detached
// empty bag is returned when none exists, so reads fall back to defaults.
func PropertiesOf(s Site) *properties.Bag {
	if ps, ok := QueryService[PropertyService](s); ok {
		if b := ps.Properties(); b != nil {
			return b
		}
	}
	return properties.New()
}

// LoggerOf returns the nearest logger visible from s, or slog.Default().
func LoggerOf(s Site) *slog.Logger {
	if ls, ok := QueryService[LoggerService](s); ok {
		if l := ls.Logger(); l != nil {
			return l
		}
	}
	return slog.Default()
}

// CreateWithSite constructs the named class from the registry visible from
// s, binds it to s and returns its T capability.
func CreateWithSite[T any](s Site, class string) (T, error) {
	var zero T

	cs, ok := QueryService[ClassService](s)
	if !ok {
		return zero, spx.Errorf(spx.ErrUninitialized, "site.Create", "no class registry available for %q", class)
	}

	obj, err := cs.Classes().Create(class)
	if err != nil {
		return zero, err
	}

	if ows, ok := capability.Query[ObjectWithSite](obj); ok {
		if err := ows.SetSite(s); err != nil {
			closeObject(obj)
			return zero, err
		}
	}

	impl, ok := capability.Query[T](obj)
	if !ok {
		closeObject(obj)
		return zero, spx.Errorf(spx.ErrInvalidArgument, "site.Create", "class %q does not provide %s", class, capability.IDOf[T]())
	}
	return impl, nil
}

func closeObject(obj any) {
	if c, ok := obj.(io.Closer); ok {
		_ = c.Close()
	}
}

// Holder is embedded by components to implement ObjectWithSite. The site
// reference is non-owning.
type Holder struct {
	mu   sync.RWMutex
	site Site
}

// SetSite binds h to s. Passing nil detaches the component.
func (h *Holder) SetSite(s Site) error {
	h.mu.Lock()
	h.site = s
	h.mu.Unlock()
	return nil
}

// Site returns the bound site, or nil.
func (h *Holder) Site() Site {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.site
}
