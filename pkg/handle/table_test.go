package handle

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/chriscow/speech-sdk-go/pkg/spx"
	"github.com/matryer/is"
)

type widget struct {
	name   string
	closed atomic.Int32
}

func (w *widget) Close() error {
	w.closed.Add(1)
	return nil
}

func TestTable_CreateGetClose(t *testing.T) {
	is := is.New(t)
	table := NewTable[*widget]("widgets")

	w := &widget{name: "a"}
	h := table.Create(w)
	is.True(h != Invalid) // zero handle never issued

	got, err := table.Get(h)
	is.NoErr(err)
	is.Equal(got, w) // same component until close

	is.NoErr(table.Close(h))
	is.Equal(w.closed.Load(), int32(1)) // destroyed on last release

	_, err = table.Get(h)
	is.True(errors.Is(err, spx.ErrNotFound)) // closed handle never resolves

	err = table.Close(h)
	is.True(errors.Is(err, spx.ErrNotFound)) // second close reports, does not crash
	is.Equal(w.closed.Load(), int32(1))      // and does not destroy again
}

func TestTable_StaleHandleAfterSlotReuse(t *testing.T) {
	is := is.New(t)
	table := NewTable[*widget]("widgets")

	h1 := table.Create(&widget{name: "first"})
	is.NoErr(table.Close(h1))

	h2 := table.Create(&widget{name: "second"})
	is.Equal(h1.index(), h2.index()) // slot reused
	is.True(h1 != h2)                // but identifier differs

	_, err := table.Get(h1)
	is.True(errors.Is(err, spx.ErrNotFound)) // stale generation

	got, err := table.Get(h2)
	is.NoErr(err)
	is.Equal(got.name, "second")
}

func TestTable_InvalidHandles(t *testing.T) {
	is := is.New(t)
	table := NewTable[*widget]("widgets")

	_, err := table.Get(Invalid)
	is.True(errors.Is(err, spx.ErrNotFound))

	_, err = table.Get(makeHandle(42, 1))
	is.True(errors.Is(err, spx.ErrNotFound))
	is.True(!table.IsValid(makeHandle(42, 1)))
}

func TestTable_AcquireOutlivesClose(t *testing.T) {
	is := is.New(t)
	table := NewTable[*widget]("widgets")

	w := &widget{}
	h := table.Create(w)

	ref, err := table.Acquire(h)
	is.NoErr(err)

	is.NoErr(table.Close(h))
	is.Equal(w.closed.Load(), int32(0)) // still referenced by ref
	is.True(!ref.Released())
	is.Equal(ref.Value(), w)

	ref.Release()
	is.Equal(w.closed.Load(), int32(1)) // last reference destroys
	is.True(ref.Released())
}

func TestTable_Len(t *testing.T) {
	is := is.New(t)
	table := NewTable[string]("strings")

	a := table.Create("a")
	table.Create("b")
	is.Equal(table.Len(), 2)

	is.NoErr(table.Close(a))
	is.Equal(table.Len(), 1)
}

func TestTable_ConcurrentAccess(t *testing.T) {
	table := NewTable[*widget]("widgets")

	const workers = 8
	const perWorker = 200

	var wg sync.WaitGroup
	seen := sync.Map{}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				w := &widget{}
				h := table.Create(w)
				if _, dup := seen.LoadOrStore(h, true); dup {
					t.Errorf("handle %s issued twice", h)
				}
				if got, err := table.Get(h); err != nil || got != w {
					t.Errorf("Get(%s) = %v, %v", h, got, err)
				}
				if err := table.Close(h); err != nil {
					t.Errorf("Close(%s) error = %v", h, err)
				}
				if w.closed.Load() != 1 {
					t.Errorf("component behind %s not destroyed exactly once", h)
				}
			}
		}()
	}

	// A reader racing with the closers never sees a torn state.
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < workers*perWorker; i++ {
			_, _ = table.Get(makeHandle(uint32(i%16), 1))
		}
	}()

	wg.Wait()

	if table.Len() != 0 {
		t.Errorf("Len() = %d, want 0", table.Len())
	}
}

func TestManager_TableForIsLazyAndStable(t *testing.T) {
	is := is.New(t)
	m := NewManager()

	var wg sync.WaitGroup
	tables := make([]*Table[*widget], 16)
	for i := range tables {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tables[i] = TableFor[*widget](m)
		}(i)
	}
	wg.Wait()

	for _, tbl := range tables {
		is.Equal(tbl, tables[0]) // one table per type
	}

	strTable := TableFor[string](m)
	h := strTable.Create("x")
	_, err := TableFor[*widget](m).Get(h)
	is.True(errors.Is(err, spx.ErrNotFound)) // tables are independent per type
}
