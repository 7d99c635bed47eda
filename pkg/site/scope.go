package site

import (
	"log/slog"

	"github.com/chriscow/speech-sdk-go/pkg/capability"
	"github.com/chriscow/speech-sdk-go/pkg/properties"
)

// Scope is the concrete site used by factories and recognizers. It bundles
// a property bag, an optional class registry and logger, extra services,
// and an optional parent scope.
type Scope struct {
	caps     *capability.Map
	bag      *properties.Bag
	registry *capability.Registry
	logger   *slog.Logger
	parent   Site
}

type scopeConfig struct {
	bag      *properties.Bag
	registry *capability.Registry
	logger   *slog.Logger
	parent   Site
	services []capability.Binding
}

// Option configures a Scope.
type Option func(*scopeConfig)

// WithProperties uses bag instead of a fresh one.
func WithProperties(bag *properties.Bag) Option {
	return func(c *scopeConfig) { c.bag = bag }
}

// WithRegistry makes r the class registry of the scope.
func WithRegistry(r *capability.Registry) Option {
	return func(c *scopeConfig) { c.registry = r }
}

// WithLogger sets the scope's logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *scopeConfig) { c.logger = l }
}

// WithParent nests the scope inside parent. Unless WithProperties is also
// given, the scope's bag chains to the parent's bag.
func WithParent(parent Site) Option {
	return func(c *scopeConfig) { c.parent = parent }
}

// Provide declares an additional service on the scope.
func Provide[T any](impl T) Option {
	return func(c *scopeConfig) {
		c.services = append(c.services, capability.Entry[T](impl))
	}
}

// NewScope builds a scope from opts.
func NewScope(opts ...Option) *Scope {
	var cfg scopeConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	s := &Scope{
		bag:      cfg.bag,
		registry: cfg.registry,
		logger:   cfg.logger,
		parent:   cfg.parent,
	}
	if s.bag == nil {
		if ps, ok := QueryService[PropertyService](cfg.parent); ok && ps.Properties() != nil {
			s.bag = properties.NewChild(ps.Properties())
		} else {
			s.bag = properties.New()
		}
	}

	bindings := []capability.Binding{capability.Entry[PropertyService](s)}
	if s.registry != nil {
		bindings = append(bindings, capability.Entry[ClassService](s))
	}
	if s.logger != nil {
		bindings = append(bindings, capability.Entry[LoggerService](s))
	}
	if s.parent != nil {
		bindings = append(bindings, capability.Entry[Parent](s))
	}
	bindings = append(bindings, cfg.services...)
	s.caps = capability.NewMap(bindings...)
	return s
}

// QueryCapability implements capability.Queryable.
func (s *Scope) QueryCapability(id capability.ID) any { return s.caps.QueryCapability(id) }

// Properties returns the scope's own bag.
func (s *Scope) Properties() *properties.Bag { return s.bag }

// Classes returns the scope's registry, nil when it inherits one.
func (s *Scope) Classes() *capability.Registry { return s.registry }

// Logger returns the scope's logger, nil when it inherits one.
func (s *Scope) Logger() *slog.Logger { return s.logger }

// ParentSite returns the enclosing site.
func (s *Scope) ParentSite() Site { return s.parent }
