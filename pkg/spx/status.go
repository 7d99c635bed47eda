package spx

import (
	"errors"
	"fmt"
)

// Status is the result code returned by every verb of the exported boundary.
type Status uint32

const (
	StatusOK                 Status = 0x000
	StatusInvalidArgument    Status = 0x005
	StatusUninitialized      Status = 0x001
	StatusAlreadyInitialized Status = 0x002
	StatusTimeout            Status = 0x006
	StatusNotFound           Status = 0x00a
	StatusCanceled           Status = 0x00b
	StatusUnexpected         Status = 0xfff
)

var statusNames = map[Status]string{
	StatusOK:                 "OK",
	StatusInvalidArgument:    "INVALID_ARG",
	StatusUninitialized:      "UNINITIALIZED",
	StatusAlreadyInitialized: "ALREADY_INITIALIZED",
	StatusTimeout:            "TIMEOUT",
	StatusNotFound:           "NOT_FOUND",
	StatusCanceled:           "CANCELED",
	StatusUnexpected:         "UNEXPECTED",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("STATUS(0x%03x)", uint32(s))
}

// Failed reports whether s is anything other than StatusOK.
func (s Status) Failed() bool {
	return s != StatusOK
}

// Err converts s back into a classified error, nil for StatusOK.
func (s Status) Err() error {
	switch s {
	case StatusOK:
		return nil
	case StatusInvalidArgument:
		return ErrInvalidArgument
	case StatusUninitialized:
		return ErrUninitialized
	case StatusAlreadyInitialized:
		return ErrAlreadyInitialized
	case StatusNotFound:
		return ErrNotFound
	case StatusCanceled:
		return ErrCanceled
	case StatusTimeout:
		return ErrTimeout
	default:
		return ErrUnexpected
	}
}

// StatusOf maps an error onto the boundary status space.
func StatusOf(err error) Status {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, ErrInvalidArgument):
		return StatusInvalidArgument
	case errors.Is(err, ErrUninitialized):
		return StatusUninitialized
	case errors.Is(err, ErrAlreadyInitialized):
		return StatusAlreadyInitialized
	case errors.Is(err, ErrNotFound):
		return StatusNotFound
	case errors.Is(err, ErrCanceled):
		return StatusCanceled
	case errors.Is(err, ErrTimeout):
		return StatusTimeout
	default:
		return StatusUnexpected
	}
}
