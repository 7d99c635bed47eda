package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/chriscow/speech-sdk-go/pkg/properties"
	"github.com/chriscow/speech-sdk-go/pkg/spx"
	"github.com/matryer/is"
)

func TestRetryConfig_Delay(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
		{5, 10 * time.Second},
		{12, 10 * time.Second},
	}

	for _, tt := range tests {
		if got := DefaultRetryConfig.Delay(tt.attempt); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestRetryConfig_Exhausted(t *testing.T) {
	is := is.New(t)
	is.True(!DefaultRetryConfig.Exhausted(100)) // unlimited
	c := RetryConfig{MaxRetries: 2}
	is.True(!c.Exhausted(2))
	is.True(c.Exhausted(3))
}

func TestErrorClassification(t *testing.T) {
	is := is.New(t)
	cause := errors.New("connection reset")

	rec := NewRecoverableError(cause, "stream dropped")
	is.True(IsRecoverable(rec))
	is.True(!IsFatal(rec))
	is.True(errors.Is(rec, cause))
	is.Equal(rec.Error(), "stream dropped: connection reset")

	fatal := NewFatalError(nil, "invalid key")
	is.True(IsFatal(fatal))
	is.Equal(fatal.Error(), "invalid key")
}

type nopEngine struct{}

func (nopEngine) NewStream(context.Context, StreamConfig) (Stream, error) { return nil, nil }
func (nopEngine) Capabilities() Capabilities                              { return Capabilities{} }

func TestRegistry(t *testing.T) {
	is := is.New(t)

	Register("test-nop", "does nothing", func(*properties.Bag) (Engine, error) { return nopEngine{}, nil })
	e, err := New("test-nop", nil)
	is.NoErr(err)
	is.Equal(e, Engine(nopEngine{}))

	_, err = New("test-missing", nil)
	is.True(errors.Is(err, spx.ErrNotFound))

	found := false
	for _, info := range List() {
		if info.Name == "test-nop" {
			found = true
		}
	}
	is.True(found)

	defer func() {
		if recover() == nil {
			t.Error("Expected panic for duplicate engine")
		}
	}()
	Register("test-nop", "", func(*properties.Bag) (Engine, error) { return nopEngine{}, nil })
}

func TestEventType_String(t *testing.T) {
	is := is.New(t)
	is.Equal(Phrase.String(), "phrase")
	is.Equal(EventType(42).String(), "EventType(42)")
}
