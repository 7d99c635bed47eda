// Package properties implements the per-scope typed property bag used as the
// runtime configuration surface of every component.
package properties

import (
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/chriscow/speech-sdk-go/pkg/spx"
)

// Kind is the type of a stored value.
type Kind int

const (
	KindString Kind = iota
	KindNumber
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Value is one typed property value.
type Value struct {
	Kind   Kind
	String string
	Number int64
	Bool   bool
}

// StringValue, NumberValue and BoolValue build typed values.
func StringValue(s string) Value { return Value{Kind: KindString, String: s} }
func NumberValue(n int64) Value  { return Value{Kind: KindNumber, Number: n} }
func BoolValue(b bool) Value     { return Value{Kind: KindBool, Bool: b} }

// Text renders the value for display regardless of kind.
func (v Value) Text() string {
	switch v.Kind {
	case KindNumber:
		return strconv.FormatInt(v.Number, 10)
	case KindBool:
		return strconv.FormatBool(v.Bool)
	default:
		return v.String
	}
}

// Bag is a concurrency-safe key/value store. Reads fall through to the
// parent bag when a key is absent locally; writes always stay local.
type Bag struct {
	mu     sync.RWMutex
	values map[string]Value
	parent *Bag
}

// New creates an empty bag with no parent.
func New() *Bag {
	return &Bag{values: make(map[string]Value)}
}

// NewChild creates an empty bag that falls back to parent.
func NewChild(parent *Bag) *Bag {
	b := New()
	b.parent = parent
	return b
}

// Parent returns the fallback bag, or nil.
func (b *Bag) Parent() *Bag {
	return b.parent
}

// Lookup returns the value stored under key in this bag or its ancestors.
func (b *Bag) Lookup(key string) (Value, error) {
	for bag := b; bag != nil; bag = bag.parent {
		bag.mu.RLock()
		v, ok := bag.values[key]
		bag.mu.RUnlock()
		if ok {
			return v, nil
		}
	}
	return Value{}, spx.Errorf(spx.ErrNotFound, "properties.Lookup", "property %q is not set", key)
}

// Has reports whether key resolves in this bag or its ancestors.
func (b *Bag) Has(key string) bool {
	_, err := b.Lookup(key)
	return err == nil
}

// GetString returns the string stored under key, or def when the key is
// absent or holds another kind.
func (b *Bag) GetString(key, def string) string {
	v, err := b.Lookup(key)
	if err != nil || v.Kind != KindString {
		return def
	}
	return v.String
}

// GetNumber returns the number stored under key, or def.
func (b *Bag) GetNumber(key string, def int64) int64 {
	v, err := b.Lookup(key)
	if err != nil || v.Kind != KindNumber {
		return def
	}
	return v.Number
}

// GetBool returns the bool stored under key, or def.
func (b *Bag) GetBool(key string, def bool) bool {
	v, err := b.Lookup(key)
	if err != nil || v.Kind != KindBool {
		return def
	}
	return v.Bool
}

// GetStringValue, GetNumberValue and GetBooleanValue are the names used by
// the exported boundary.
func (b *Bag) GetStringValue(key, def string) string      { return b.GetString(key, def) }
func (b *Bag) GetNumberValue(key string, def int64) int64 { return b.GetNumber(key, def) }
func (b *Bag) GetBooleanValue(key string, def bool) bool  { return b.GetBool(key, def) }

// SetValue upserts a typed value.
func (b *Bag) SetValue(key string, v Value) error {
	if key == "" {
		return spx.Errorf(spx.ErrInvalidArgument, "properties.Set", "empty property name")
	}
	b.mu.Lock()
	b.values[key] = v
	b.mu.Unlock()
	return nil
}

// SetProperty upserts a string, integer or bool value.
func (b *Bag) SetProperty(key string, value any) error {
	switch v := value.(type) {
	case string:
		return b.SetValue(key, StringValue(v))
	case bool:
		return b.SetValue(key, BoolValue(v))
	case int:
		return b.SetValue(key, NumberValue(int64(v)))
	case int32:
		return b.SetValue(key, NumberValue(int64(v)))
	case int64:
		return b.SetValue(key, NumberValue(v))
	case uint8:
		return b.SetValue(key, NumberValue(int64(v)))
	case Value:
		return b.SetValue(key, v)
	default:
		return spx.Errorf(spx.ErrInvalidArgument, "properties.Set", "unsupported value type %T for %q", value, key)
	}
}

// SetString, SetNumber and SetBool are typed shorthands for SetProperty.
func (b *Bag) SetString(key, v string) error       { return b.SetValue(key, StringValue(v)) }
func (b *Bag) SetNumber(key string, v int64) error { return b.SetValue(key, NumberValue(v)) }
func (b *Bag) SetBool(key string, v bool) error    { return b.SetValue(key, BoolValue(v)) }

// Delete removes key from this bag only.
func (b *Bag) Delete(key string) {
	b.mu.Lock()
	delete(b.values, key)
	b.mu.Unlock()
}

// Keys returns the locally stored keys in sorted order.
func (b *Bag) Keys() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	keys := make([]string, 0, len(b.values))
	for k := range b.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
