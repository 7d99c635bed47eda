package event

import (
	"sync"
	"testing"

	"github.com/matryer/is"
)

func TestSignal_OrderAndDisconnect(t *testing.T) {
	is := is.New(t)
	var s Signal[string]
	var got []string

	a := s.Connect(func(v string) { got = append(got, "a:"+v) })
	s.Connect(func(v string) { got = append(got, "b:"+v) })
	is.True(s.IsConnected())
	is.Equal(s.Len(), 2)

	s.Fire("1")
	is.Equal(got, []string{"a:1", "b:1"}) // subscription order

	is.True(s.Disconnect(a))
	is.True(!s.Disconnect(a)) // already gone
	s.Fire("2")
	is.Equal(got, []string{"a:1", "b:1", "b:2"})

	s.DisconnectAll()
	is.True(!s.IsConnected())
	s.Fire("3")
	is.Equal(len(got), 3)
}

func TestSignal_DisconnectDuringFanOut(t *testing.T) {
	is := is.New(t)
	var s Signal[int]
	var calls []string
	var second Subscription

	s.Connect(func(int) {
		calls = append(calls, "first")
		s.Disconnect(second) // not yet dispatched for this event
	})
	second = s.Connect(func(int) { calls = append(calls, "second") })
	third := s.Connect(func(int) { calls = append(calls, "third") })

	s.Fire(1)
	is.Equal(calls, []string{"first", "third"})

	// A subscriber removing itself still completes the current call.
	s.Disconnect(third)
	var self Subscription
	self = s.Connect(func(int) {
		calls = append(calls, "self")
		s.Disconnect(self)
	})
	s.Fire(2)
	s.Fire(3)
	is.Equal(calls, []string{"first", "third", "first", "self", "first"})
}

func TestSignal_PanickingSubscriber(t *testing.T) {
	is := is.New(t)
	s := Signal[int]{Name: "test"}
	var reached bool

	s.Connect(func(int) { panic("bad handler") })
	s.Connect(func(int) { reached = true })

	s.Fire(1) // must not propagate the panic
	is.True(reached)
}

func TestSignal_ConcurrentUse(t *testing.T) {
	var s Signal[int]
	var mu sync.Mutex
	total := 0

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := s.Connect(func(v int) {
				mu.Lock()
				total += v
				mu.Unlock()
			})
			s.Fire(1)
			s.Disconnect(id)
		}()
	}
	wg.Wait()

	if s.Len() != 0 {
		t.Errorf("Len() = %d, want 0", s.Len())
	}
	if total < 8 {
		t.Errorf("total = %d, want at least 8", total)
	}
}
