package abi

import (
	"github.com/chriscow/speech-sdk-go/pkg/recognizer"
	"github.com/chriscow/speech-sdk-go/pkg/spx"
)

func Result_Handle_IsValid(h Handle) bool {
	return results().IsValid(h)
}

func Result_Handle_Close(h Handle) spx.Status {
	return guard("Result_Handle_Close", func() error {
		return results().Close(h)
	})
}

func withResult(h Handle, fn func(r *recognizer.Result) error) error {
	r, err := results().Get(h)
	if err != nil {
		return err
	}
	return fn(r)
}

// Result_GetResultID copies the result id into buf.
func Result_GetResultID(h Handle, buf []byte) spx.Status {
	return guard("Result_GetResultID", func() error {
		return withResult(h, func(r *recognizer.Result) error {
			return copyString(buf, r.ID)
		})
	})
}

// Result_GetText copies the recognized text into buf.
func Result_GetText(h Handle, buf []byte) spx.Status {
	return guard("Result_GetText", func() error {
		return withResult(h, func(r *recognizer.Result) error {
			return copyString(buf, r.Text)
		})
	})
}

// Result_GetErrorDetails copies the cancellation details into buf. It is
// empty unless the reason is Canceled.
func Result_GetErrorDetails(h Handle, buf []byte) spx.Status {
	return guard("Result_GetErrorDetails", func() error {
		return withResult(h, func(r *recognizer.Result) error {
			return copyString(buf, r.ErrorDetails)
		})
	})
}

func Result_GetReason(h Handle, reason *recognizer.Reason) spx.Status {
	return guard("Result_GetReason", func() error {
		if reason == nil {
			return invalidArg("Result_GetReason", "nil output")
		}
		return withResult(h, func(r *recognizer.Result) error {
			*reason = r.Reason
			return nil
		})
	})
}

// Result_GetOffset returns the offset in 100ns ticks.
func Result_GetOffset(h Handle, offset *uint64) spx.Status {
	return guard("Result_GetOffset", func() error {
		if offset == nil {
			return invalidArg("Result_GetOffset", "nil output")
		}
		return withResult(h, func(r *recognizer.Result) error {
			*offset = ticks(r.Offset)
			return nil
		})
	})
}

// Result_GetDuration returns the duration in 100ns ticks.
func Result_GetDuration(h Handle, duration *uint64) spx.Status {
	return guard("Result_GetDuration", func() error {
		if duration == nil {
			return invalidArg("Result_GetDuration", "nil output")
		}
		return withResult(h, func(r *recognizer.Result) error {
			*duration = ticks(r.Duration)
			return nil
		})
	})
}

func Result_GetPropertyBag(h Handle, out *Handle) spx.Status {
	return guard("Result_GetPropertyBag", func() error {
		return outHandle("Result_GetPropertyBag", out, func() (Handle, error) {
			r, err := results().Get(h)
			if err != nil {
				return InvalidHandle, err
			}
			return bags().Create(r.Properties), nil
		})
	})
}
