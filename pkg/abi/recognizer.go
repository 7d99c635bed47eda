package abi

import (
	"context"
	"sync"
	"time"

	"github.com/chriscow/speech-sdk-go/pkg/keyword"
	"github.com/chriscow/speech-sdk-go/pkg/recognizer"
	"github.com/chriscow/speech-sdk-go/pkg/spx"
)

func Recognizer_Handle_IsValid(h Handle) bool {
	return recognizers().IsValid(h)
}

// Recognizer_Handle_Close releases the recognizer. It is closed once no
// verb holds it any more.
func Recognizer_Handle_Close(h Handle) spx.Status {
	return guard("Recognizer_Handle_Close", func() error {
		if err := recognizers().Close(h); err != nil {
			return err
		}
		forgetBindings(h)
		return nil
	})
}

// withRecognizer runs fn with a counted reference to the recognizer behind h.
func withRecognizer(h Handle, fn func(r *recognizer.Recognizer) error) error {
	ref, err := recognizers().Acquire(h)
	if err != nil {
		return err
	}
	defer ref.Release()
	return fn(ref.Value())
}

func Recognizer_Enable(h Handle) spx.Status {
	return guard("Recognizer_Enable", func() error {
		return withRecognizer(h, func(r *recognizer.Recognizer) error {
			r.Enable()
			return nil
		})
	})
}

func Recognizer_Disable(h Handle) spx.Status {
	return guard("Recognizer_Disable", func() error {
		return withRecognizer(h, func(r *recognizer.Recognizer) error {
			r.Disable()
			return nil
		})
	})
}

func Recognizer_IsEnabled(h Handle, enabled *bool) spx.Status {
	return guard("Recognizer_IsEnabled", func() error {
		if enabled == nil {
			return invalidArg("Recognizer_IsEnabled", "nil output")
		}
		return withRecognizer(h, func(r *recognizer.Recognizer) error {
			*enabled = r.IsEnabled()
			return nil
		})
	})
}

// Recognizer_GetPropertyBag returns a handle to the recognizer's bag.
func Recognizer_GetPropertyBag(h Handle, out *Handle) spx.Status {
	return guard("Recognizer_GetPropertyBag", func() error {
		return outHandle("Recognizer_GetPropertyBag", out, func() (Handle, error) {
			r, err := recognizers().Get(h)
			if err != nil {
				return InvalidHandle, err
			}
			return bags().Create(r.Properties()), nil
		})
	})
}

// asyncRecognition is the pending outcome behind an async handle.
type asyncRecognition struct {
	ch <-chan recognizer.Outcome

	mu      sync.Mutex
	done    bool
	outcome recognizer.Outcome
}

func (a *asyncRecognition) wait(timeout time.Duration) (recognizer.Outcome, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.done {
		return a.outcome, nil
	}

	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case o := <-a.ch:
		a.done, a.outcome = true, o
		return o, nil
	case <-t.C:
		return recognizer.Outcome{}, spx.Errorf(spx.ErrTimeout, "Recognizer_RecognizeAsync_WaitFor", "no result after %s", timeout)
	}
}

// Recognizer_RecognizeAsync starts a single-shot recognition and returns an
// async handle to wait on.
func Recognizer_RecognizeAsync(h Handle, out *Handle) spx.Status {
	return guard("Recognizer_RecognizeAsync", func() error {
		return outHandle("Recognizer_RecognizeAsync", out, func() (Handle, error) {
			var a *asyncRecognition
			err := withRecognizer(h, func(r *recognizer.Recognizer) error {
				a = &asyncRecognition{ch: r.RecognizeOnceAsync(context.Background())}
				return nil
			})
			if err != nil {
				return InvalidHandle, err
			}
			return asyncs().Create(a), nil
		})
	})
}

// Recognizer_RecognizeAsync_WaitFor waits up to milliseconds for the
// outcome and returns a result handle.
func Recognizer_RecognizeAsync_WaitFor(async Handle, milliseconds uint32, out *Handle) spx.Status {
	return guard("Recognizer_RecognizeAsync_WaitFor", func() error {
		return outHandle("Recognizer_RecognizeAsync_WaitFor", out, func() (Handle, error) {
			a, err := asyncs().Get(async)
			if err != nil {
				return InvalidHandle, err
			}
			o, err := a.wait(time.Duration(milliseconds) * time.Millisecond)
			if err != nil {
				return InvalidHandle, err
			}
			if o.Err != nil {
				return InvalidHandle, o.Err
			}
			return results().Create(o.Result), nil
		})
	})
}

func Recognizer_AsyncHandle_Close(async Handle) spx.Status {
	return guard("Recognizer_AsyncHandle_Close", func() error {
		return asyncs().Close(async)
	})
}

func Recognizer_StartContinuousRecognition(h Handle) spx.Status {
	return guard("Recognizer_StartContinuousRecognition", func() error {
		return withRecognizer(h, func(r *recognizer.Recognizer) error {
			return <-r.StartContinuousRecognitionAsync(context.Background())
		})
	})
}

func Recognizer_StopContinuousRecognition(h Handle) spx.Status {
	return guard("Recognizer_StopContinuousRecognition", func() error {
		return withRecognizer(h, func(r *recognizer.Recognizer) error {
			return <-r.StopContinuousRecognitionAsync()
		})
	})
}

// Recognizer_StartKeywordRecognition loads the model at modelPath and starts
// keyword recognition.
func Recognizer_StartKeywordRecognition(h Handle, modelPath string) spx.Status {
	return guard("Recognizer_StartKeywordRecognition", func() error {
		model, err := keyword.FromFile(modelPath)
		if err != nil {
			return err
		}
		return withRecognizer(h, func(r *recognizer.Recognizer) error {
			return <-r.StartKeywordRecognitionAsync(context.Background(), model)
		})
	})
}

func Recognizer_StopKeywordRecognition(h Handle) spx.Status {
	return guard("Recognizer_StopKeywordRecognition", func() error {
		return withRecognizer(h, func(r *recognizer.Recognizer) error {
			return <-r.StopKeywordRecognitionAsync()
		})
	})
}
