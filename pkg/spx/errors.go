// Package spx provides the error taxonomy and status codes shared by every
// component of the speech SDK runtime. Errors inside the runtime are plain Go
// errors classified with errors.Is; at the exported boundary they are
// translated into Status values.
package spx

import (
	"errors"
	"fmt"
)

// Common error types used across the runtime
var (
	// ErrInvalidArgument indicates a nil/zero-capacity buffer, a malformed
	// value or an invalid handle passed by the caller.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrUninitialized indicates an operation attempted before the required
	// site or source binding took place.
	ErrUninitialized = errors.New("uninitialized")

	// ErrAlreadyInitialized indicates a double start of a singleton-like
	// resource (pump already running, attempt already in flight).
	ErrAlreadyInitialized = errors.New("already initialized")

	// ErrNotFound indicates a handle, class or property that does not exist.
	ErrNotFound = errors.New("not found")

	// ErrCanceled indicates a recognition attempt that ended because of an
	// unrecoverable upstream condition.
	ErrCanceled = errors.New("canceled")

	// ErrTimeout indicates a wait that ended before the operation did.
	ErrTimeout = errors.New("timeout")

	// ErrUnexpected is used for panics and failures that fit no other class.
	ErrUnexpected = errors.New("unexpected error")
)

// Error wraps an underlying error with the operation that failed and a
// classification sentinel.
type Error struct {
	Kind error  // one of the Err* sentinels
	Op   string // operation, e.g. "pump.Start"
	Err  error  // optional underlying cause
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil && e.Op != "":
		return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	case e.Err != nil:
		return fmt.Sprintf("%v: %v", e.Kind, e.Err)
	default:
		return e.Kind.Error()
	}
}

// Unwrap exposes both the classification and the cause to errors.Is/As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Errorf builds an *Error of the given kind whose cause is formatted from
// format and args.
func Errorf(kind error, op, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// Wrap classifies err as kind for operation op. A nil err yields a bare
// classified error.
func Wrap(kind error, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// IsNotFound reports whether err is classified as ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsCanceled reports whether err is classified as ErrCanceled.
func IsCanceled(err error) bool {
	return errors.Is(err, ErrCanceled)
}
