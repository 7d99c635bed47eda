package engine

import (
	"errors"
	"time"
)

// Common error types used by engines
var (
	// ErrRecoverable indicates a temporary failure that may succeed if the
	// stream is reopened. Examples: dropped connection, service busy.
	ErrRecoverable = errors.New("recoverable engine error")

	// ErrFatal indicates a permanent failure. Examples: invalid key,
	// unsupported format, malformed request.
	ErrFatal = errors.New("fatal engine error")

	// ErrStreamClosed is returned by Push once the stream has finished.
	ErrStreamClosed = errors.New("stream is closed")
)

// RetryConfig configures reconnection after recoverable errors.
type RetryConfig struct {
	MaxRetries    int           // 0 means retry until stopped
	InitialDelay  time.Duration // delay before the first retry
	MaxDelay      time.Duration // cap on the delay
	BackoffFactor float64       // multiplier per attempt
}

// DefaultRetryConfig doubles from 1s up to 10s.
var DefaultRetryConfig = RetryConfig{
	InitialDelay:  time.Second,
	MaxDelay:      10 * time.Second,
	BackoffFactor: 2.0,
}

// Delay returns the wait before retry number attempt (starting at 1).
func (c RetryConfig) Delay(attempt int) time.Duration {
	d := c.InitialDelay
	for i := 1; i < attempt; i++ {
		d = time.Duration(float64(d) * c.BackoffFactor)
		if d >= c.MaxDelay {
			return c.MaxDelay
		}
	}
	return min(d, c.MaxDelay)
}

// Exhausted reports whether attempt exceeds MaxRetries.
func (c RetryConfig) Exhausted(attempt int) bool {
	return c.MaxRetries > 0 && attempt > c.MaxRetries
}

// IsRecoverable checks if an error is recoverable and should be retried
func IsRecoverable(err error) bool {
	return errors.Is(err, ErrRecoverable)
}

// IsFatal checks if an error is fatal and should not be retried
func IsFatal(err error) bool {
	return errors.Is(err, ErrFatal)
}

// ClassifiedError wraps an underlying error with retry classification
type ClassifiedError struct {
	Underlying error
	Retryable  bool
	Message    string
}

func (e *ClassifiedError) Error() string {
	switch {
	case e.Message != "" && e.Underlying != nil:
		return e.Message + ": " + e.Underlying.Error()
	case e.Message != "":
		return e.Message
	case e.Underlying != nil:
		return e.Underlying.Error()
	default:
		return "engine error"
	}
}

func (e *ClassifiedError) Unwrap() []error {
	kind := ErrFatal
	if e.Retryable {
		kind = ErrRecoverable
	}
	if e.Underlying == nil {
		return []error{kind}
	}
	return []error{kind, e.Underlying}
}

// NewRecoverableError creates a recoverable error with context
func NewRecoverableError(underlying error, message string) error {
	return &ClassifiedError{Underlying: underlying, Retryable: true, Message: message}
}

// NewFatalError creates a fatal error with context
func NewFatalError(underlying error, message string) error {
	return &ClassifiedError{Underlying: underlying, Retryable: false, Message: message}
}
