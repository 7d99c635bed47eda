// Package abi is the handle-based surface of the runtime. Every verb takes
// and returns opaque handles, reports failures as spx.Status and never lets
// a panic escape.
package abi

import (
	"fmt"
	"log/slog"

	"github.com/chriscow/speech-sdk-go/pkg/handle"
	"github.com/chriscow/speech-sdk-go/pkg/properties"
	"github.com/chriscow/speech-sdk-go/pkg/recognizer"
	"github.com/chriscow/speech-sdk-go/pkg/spx"
)

// Handle is an opaque reference to a runtime object.
type Handle = handle.Handle

// InvalidHandle never resolves.
const InvalidHandle = handle.Invalid

func factories() *handle.Table[*recognizer.Factory] {
	return handle.TableFor[*recognizer.Factory](handle.Default())
}

func recognizers() *handle.Table[*recognizer.Recognizer] {
	return handle.TableFor[*recognizer.Recognizer](handle.Default())
}

func results() *handle.Table[*recognizer.Result] {
	return handle.TableFor[*recognizer.Result](handle.Default())
}

func bags() *handle.Table[*properties.Bag] {
	return handle.TableFor[*properties.Bag](handle.Default())
}

func asyncs() *handle.Table[*asyncRecognition] {
	return handle.TableFor[*asyncRecognition](handle.Default())
}

// guard runs fn and converts its error or panic into a status.
func guard(op string, fn func() error) (status spx.Status) {
	defer func() {
		if p := recover(); p != nil {
			slog.Error("panic in exported verb",
				slog.String("op", op),
				slog.String("panic", fmt.Sprint(p)),
			)
			status = spx.StatusUnexpected
		}
	}()

	err := fn()
	if err != nil {
		slog.Debug("exported verb failed", slog.String("op", op), slog.String("error", err.Error()))
	}
	return spx.StatusOf(err)
}

// copyString writes s into buf as a NUL-terminated string, truncating it
// when buf is too small.
func copyString(buf []byte, s string) error {
	if len(buf) == 0 {
		return spx.Errorf(spx.ErrInvalidArgument, "abi.copyString", "zero capacity buffer")
	}
	n := copy(buf[:len(buf)-1], s)
	buf[n] = 0
	return nil
}

func invalidArg(op, format string, args ...any) error {
	return spx.Errorf(spx.ErrInvalidArgument, op, format, args...)
}

// outHandle stores h in out, rejecting a nil destination.
func outHandle(op string, out *Handle, h func() (Handle, error)) error {
	if out == nil {
		return invalidArg(op, "nil handle output")
	}
	*out = InvalidHandle
	v, err := h()
	if err != nil {
		return err
	}
	*out = v
	return nil
}
