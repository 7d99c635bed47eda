// Package event provides a typed multicast signal. Subscribers run
// synchronously on the goroutine that fires the event, in the order they
// connected.
package event

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

// Subscription identifies one connected callback.
type Subscription uint64

type subscriber[T any] struct {
	id        Subscription
	fn        func(T)
	connected atomic.Bool
}

// Signal fans a value of type T out to its subscribers.
// The zero value is ready to use.
type Signal[T any] struct {
	Name string // used in log messages

	mu     sync.Mutex
	subs   []*subscriber[T]
	nextID Subscription
}

// Connect adds fn and returns its subscription.
func (s *Signal[T]) Connect(fn func(T)) Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	sub := &subscriber[T]{id: s.nextID, fn: fn}
	sub.connected.Store(true)
	s.subs = append(s.subs, sub)
	return sub.id
}

// Disconnect removes the subscription. It reports false when it was not
// connected.
func (s *Signal[T]) Disconnect(id Subscription) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, sub := range s.subs {
		if sub.id == id {
			sub.connected.Store(false)
			s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
			return true
		}
	}
	return false
}

// DisconnectAll removes every subscriber.
func (s *Signal[T]) DisconnectAll() {
	s.mu.Lock()
	for _, sub := range s.subs {
		sub.connected.Store(false)
	}
	s.subs = nil
	s.mu.Unlock()
}

// IsConnected reports whether the signal has any subscriber.
func (s *Signal[T]) IsConnected() bool {
	return s.Len() > 0
}

// Len returns the number of subscribers.
func (s *Signal[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// Fire invokes every subscriber with v. A subscriber disconnected while
// the fan-out is in progress is skipped if it has not run yet. Panicking
// subscribers are logged and do not stop the fan-out.
func (s *Signal[T]) Fire(v T) {
	s.mu.Lock()
	subs := s.subs
	s.mu.Unlock()

	for _, sub := range subs {
		if !sub.connected.Load() {
			continue
		}
		s.invoke(sub, v)
	}
}

func (s *Signal[T]) invoke(sub *subscriber[T], v T) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("event subscriber panicked",
				slog.String("event", s.Name),
				slog.Uint64("subscription", uint64(sub.id)),
				slog.Any("panic", r))
		}
	}()
	sub.fn(v)
}
