package capability

import (
	"errors"
	"testing"

	"github.com/chriscow/speech-sdk-go/pkg/spx"
	"github.com/matryer/is"
)

type reader interface{ Read() string }
type realTime interface{ SetRealTimePercentage(p int) }
type seeker interface{ Rewind() }

type fileReader struct {
	caps *Map
	pct  int
}

func newFileReader() *fileReader {
	r := &fileReader{}
	r.caps = NewMap(Entry[reader](r), Entry[realTime](r))
	return r
}

func (r *fileReader) QueryCapability(id ID) any { return r.caps.QueryCapability(id) }
func (r *fileReader) Read() string              { return "file" }
func (r *fileReader) SetRealTimePercentage(p int) {
	r.pct = p
}

// decorator declares only reader and forwards everything else.
type decorator struct {
	caps  *Map
	inner *fileReader
}

func newDecorator(inner *fileReader) *decorator {
	d := &decorator{inner: inner}
	d.caps = NewMap(Entry[reader](d))
	d.caps.SetDelegate(inner)
	return d
}

func (d *decorator) QueryCapability(id ID) any { return d.caps.QueryCapability(id) }
func (d *decorator) Read() string              { return "decorated " + d.inner.Read() }

func TestQuery_DeclaredAndAbsent(t *testing.T) {
	is := is.New(t)
	r := newFileReader()

	got, ok := Query[reader](r)
	is.True(ok)
	is.Equal(got.Read(), "file")

	_, ok = Query[seeker](r)
	is.True(!ok) // absence is a normal outcome

	is.True(Has[realTime](r))
	is.True(!Has[reader](nil))              // nil never panics
	is.True(!Has[reader]("not queryable")) // non components are simply absent
}

func TestQuery_IsStable(t *testing.T) {
	is := is.New(t)
	r := newFileReader()

	a, _ := Query[realTime](r)
	b, _ := Query[realTime](r)
	is.Equal(a, b) // same answer for the same instance
}

func TestQuery_DelegateForwardsUnhandled(t *testing.T) {
	is := is.New(t)
	inner := newFileReader()
	d := newDecorator(inner)

	rd, ok := Query[reader](d)
	is.True(ok)
	is.Equal(rd.Read(), "decorated file") // declared capability wins

	rt, ok := Query[realTime](d)
	is.True(ok) // forwarded to the delegate
	rt.SetRealTimePercentage(200)
	is.Equal(inner.pct, 200)

	is.Equal(d.caps.Delegate(), Queryable(inner))
}

func TestMap_IDsKeepDeclarationOrder(t *testing.T) {
	is := is.New(t)
	r := newFileReader()
	is.Equal(r.caps.IDs(), []ID{IDOf[reader](), IDOf[realTime]()})
}

func TestMap_DuplicateDeclarationPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Expected panic for duplicate capability")
		}
	}()
	r := &fileReader{}
	NewMap(Entry[reader](r), Entry[reader](r))
}

func TestIDOf_DistinguishesTypes(t *testing.T) {
	is := is.New(t)
	is.True(IDOf[reader]() != IDOf[seeker]())
	is.Equal(IDOf[reader](), IDOf[reader]())
}

func TestRegistry(t *testing.T) {
	is := is.New(t)
	r := NewRegistry()

	r.Register("FileReader", func() Queryable { return newFileReader() }, IDOf[reader](), IDOf[realTime]())
	r.RegisterWithMetadata(&Class{
		Name:        "Decorator",
		Factory:     func() Queryable { return newDecorator(newFileReader()) },
		Description: "decorates a file reader",
	})

	obj, err := r.Create("FileReader")
	is.NoErr(err)
	is.True(Has[reader](obj))

	_, err = r.Create("Missing")
	is.True(errors.Is(err, spx.ErrNotFound))

	classes := r.List()
	is.Equal(len(classes), 2)
	is.Equal(classes[0].Name, "Decorator") // sorted by name
	is.Equal(classes[1].Capabilities, []ID{IDOf[reader](), IDOf[realTime]()})

	r.Clear()
	is.Equal(len(r.List()), 0)
}

func TestRegistry_Panics(t *testing.T) {
	tests := []struct {
		name string
		fn   func(r *Registry)
	}{
		{"empty name", func(r *Registry) { r.Register("", func() Queryable { return nil }) }},
		{"nil factory", func(r *Registry) { r.Register("X", nil) }},
		{"duplicate", func(r *Registry) {
			r.Register("X", func() Queryable { return newFileReader() })
			r.Register("X", func() Queryable { return newFileReader() })
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Errorf("Expected panic for %s", tt.name)
				}
			}()
			tt.fn(NewRegistry())
		})
	}
}
