// Package capability lets a component advertise, and be queried for, the
// contracts it implements. Each component declares an ordered, immutable set
// of capabilities when it is constructed; composition is done by delegating
// unhandled queries to an inner component instead of by subclassing.
package capability

import (
	"reflect"
)

// ID names a capability. IDs are derived from the Go interface type that
// describes the contract.
type ID string

// IDOf returns the capability identity of T.
func IDOf[T any]() ID {
	t := reflect.TypeFor[T]()
	if t.PkgPath() == "" {
		return ID(t.String())
	}
	return ID(t.PkgPath() + "." + t.Name())
}

// Queryable is implemented by every component taking part in the framework.
// QueryCapability returns the implementation of id, or nil when absent.
// Absence is a normal outcome and must never panic.
type Queryable interface {
	QueryCapability(id ID) any
}

// Query asks c for capability T. It returns false when c is nil, is not
// Queryable, or does not declare T.
func Query[T any](c any) (T, bool) {
	var zero T
	q, ok := c.(Queryable)
	if !ok || q == nil {
		return zero, false
	}
	v := q.QueryCapability(IDOf[T]())
	if v == nil {
		return zero, false
	}
	impl, ok := v.(T)
	if !ok {
		return zero, false
	}
	return impl, true
}

// Has reports whether c declares capability T.
func Has[T any](c any) bool {
	_, ok := Query[T](c)
	return ok
}
