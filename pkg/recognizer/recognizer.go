// Package recognizer implements the speech recognizer session: a state
// machine that runs one recognition attempt at a time over an audio pump
// and a recognition engine, and fans the results out to subscribers.
package recognizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/chriscow/speech-sdk-go/pkg/engine"
	"github.com/chriscow/speech-sdk-go/pkg/event"
	"github.com/chriscow/speech-sdk-go/pkg/keyword"
	"github.com/chriscow/speech-sdk-go/pkg/properties"
	"github.com/chriscow/speech-sdk-go/pkg/site"
	"github.com/chriscow/speech-sdk-go/pkg/spx"
)

var (
	// ErrBusy is returned when an attempt is requested while another one
	// is in flight.
	ErrBusy = fmt.Errorf("recognizer busy: %w", spx.ErrAlreadyInitialized)

	// ErrDisabled is returned by operations on a disabled recognizer.
	ErrDisabled = fmt.Errorf("recognizer disabled: %w", spx.ErrUninitialized)

	// ErrClosed is returned by operations on a closed recognizer.
	ErrClosed = fmt.Errorf("recognizer closed: %w", spx.ErrUninitialized)
)

// Mode is the kind of attempt a recognizer is running.
type Mode int

const (
	ModeNone Mode = iota
	ModeSingleShot
	ModeContinuous
	ModeKeyword
)

func (m Mode) String() string {
	switch m {
	case ModeNone:
		return "none"
	case ModeSingleShot:
		return "single-shot"
	case ModeContinuous:
		return "continuous"
	case ModeKeyword:
		return "keyword"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Recognizer runs recognition attempts. Its events are delivered
// synchronously on the goroutine that produced them.
type Recognizer struct {
	SessionStarted      event.Signal[SessionEvent]
	SessionStopped      event.Signal[SessionEvent]
	SpeechStartDetected event.Signal[SpeechEvent]
	SpeechEndDetected   event.Signal[SpeechEvent]
	IntermediateResult  event.Signal[RecognitionEvent]
	FinalResult         event.Signal[RecognitionEvent]
	Canceled            event.Signal[RecognitionEvent]
	KeywordDetected     event.Signal[KeywordEvent]

	scope    *site.Scope
	logger   *slog.Logger
	spotters keyword.Factory
	retry    engine.RetryConfig

	mu      sync.Mutex
	enabled bool
	closed  bool
	engine  engine.Engine
	active  *attempt

	opsMu      sync.RWMutex
	ops        chan func()
	workerDone chan struct{}
	closeOnce  sync.Once
}

type recognizerConfig struct {
	scope    *site.Scope
	logger   *slog.Logger
	engine   engine.Engine
	spotters keyword.Factory
	retry    engine.RetryConfig
}

func newRecognizer(cfg recognizerConfig) *Recognizer {
	r := &Recognizer{
		scope:      cfg.scope,
		logger:     cfg.logger,
		engine:     cfg.engine,
		spotters:   cfg.spotters,
		retry:      cfg.retry,
		enabled:    true,
		ops:        make(chan func(), 16),
		workerDone: make(chan struct{}),
	}
	r.SessionStarted.Name = "SessionStarted"
	r.SessionStopped.Name = "SessionStopped"
	r.SpeechStartDetected.Name = "SpeechStartDetected"
	r.SpeechEndDetected.Name = "SpeechEndDetected"
	r.IntermediateResult.Name = "IntermediateResult"
	r.FinalResult.Name = "FinalResult"
	r.Canceled.Name = "Canceled"
	r.KeywordDetected.Name = "KeywordDetected"

	go r.worker(r.ops)
	return r
}

// Properties returns the recognizer's bag. It falls back to the factory's.
func (r *Recognizer) Properties() *properties.Bag { return r.scope.Properties() }

// Site returns the recognizer's scope.
func (r *Recognizer) Site() site.Site { return r.scope }

// Enable allows new attempts to start.
func (r *Recognizer) Enable() {
	r.mu.Lock()
	r.enabled = true
	r.mu.Unlock()
}

// Disable rejects new attempts. An attempt already running is not stopped.
func (r *Recognizer) Disable() {
	r.mu.Lock()
	r.enabled = false
	r.mu.Unlock()
}

func (r *Recognizer) IsEnabled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.enabled
}

// Mode returns the kind of attempt in flight.
func (r *Recognizer) Mode() Mode {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active == nil {
		return ModeNone
	}
	return r.active.mode
}

// RecognizeOnceAsync recognizes a single utterance. The returned channel
// receives exactly one Outcome.
func (r *Recognizer) RecognizeOnceAsync(ctx context.Context) <-chan Outcome {
	out := make(chan Outcome, 1)
	a, err := r.reserve(ctx, ModeSingleShot)
	if err != nil {
		out <- Outcome{Err: err}
		return out
	}

	ok := r.submit(func() {
		res, err := r.run(a)
		r.release(a, err)
		if err != nil && res == nil {
			out <- Outcome{Err: err}
			return
		}
		out <- Outcome{Result: res}
	})
	if !ok {
		r.release(a, ErrClosed)
		out <- Outcome{Err: ErrClosed}
	}
	return out
}

// StartContinuousRecognitionAsync starts recognizing utterances until
// StopContinuousRecognitionAsync is called.
func (r *Recognizer) StartContinuousRecognitionAsync(ctx context.Context) <-chan error {
	return r.startBackground(ctx, ModeContinuous, nil)
}

// StopContinuousRecognitionAsync stops continuous recognition. Stopping a
// recognizer that is not running continuously succeeds without effect.
func (r *Recognizer) StopContinuousRecognitionAsync() <-chan error {
	return r.stopBackground(ModeContinuous)
}

// StartKeywordRecognitionAsync listens for the keyword of model and
// recognizes the utterance following each detection.
func (r *Recognizer) StartKeywordRecognitionAsync(ctx context.Context, model keyword.Model) <-chan error {
	spotter, err := r.newSpotter(model)
	if err != nil {
		out := make(chan error, 1)
		out <- err
		return out
	}
	return r.startBackground(ctx, ModeKeyword, spotter)
}

// StopKeywordRecognitionAsync stops keyword recognition.
func (r *Recognizer) StopKeywordRecognitionAsync() <-chan error {
	return r.stopBackground(ModeKeyword)
}

func (r *Recognizer) newSpotter(model keyword.Model) (keyword.Spotter, error) {
	factory := r.spotters
	if factory == nil {
		if !r.Properties().GetBool(properties.MockKeywordEngine, false) {
			return nil, spx.Errorf(spx.ErrUninitialized, "recognizer.StartKeyword", "no keyword spotter configured")
		}
		factory = keyword.FakeFactory(DefaultKeywordFrames)
	}
	spotter, err := factory(model)
	if err != nil {
		return nil, spx.Wrap(spx.ErrInvalidArgument, "recognizer.StartKeyword", err)
	}
	return spotter, nil
}

func (r *Recognizer) startBackground(ctx context.Context, mode Mode, spotter keyword.Spotter) <-chan error {
	out := make(chan error, 1)
	a, err := r.reserve(ctx, mode)
	if err != nil {
		out <- err
		return out
	}
	a.spotter = spotter

	ok := r.submit(func() {
		go func() {
			_, err := r.run(a)
			r.release(a, err)
		}()
		out <- nil
	})
	if !ok {
		r.release(a, ErrClosed)
		out <- ErrClosed
	}
	return out
}

func (r *Recognizer) stopBackground(mode Mode) <-chan error {
	out := make(chan error, 1)
	ok := r.submit(func() {
		r.mu.Lock()
		a := r.active
		r.mu.Unlock()
		if a == nil || a.mode != mode {
			out <- nil
			return
		}
		a.stop.Cancel()
		<-a.done
		out <- nil
	})
	if !ok {
		out <- nil
	}
	return out
}

// reserve claims the recognizer for one attempt.
func (r *Recognizer) reserve(ctx context.Context, mode Mode) (*attempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch {
	case r.closed:
		return nil, ErrClosed
	case !r.enabled:
		return nil, ErrDisabled
	case r.active != nil:
		return nil, ErrBusy
	}
	if ctx == nil {
		ctx = context.Background()
	}
	a := newAttempt(ctx, mode)
	r.active = a
	return a, nil
}

func (r *Recognizer) release(a *attempt, err error) {
	r.mu.Lock()
	if r.active == a {
		r.active = nil
	}
	r.mu.Unlock()
	a.finish(err)
}

// submit queues op on the session worker. It reports false after Close.
func (r *Recognizer) submit(op func()) bool {
	r.opsMu.RLock()
	defer r.opsMu.RUnlock()
	if r.ops == nil {
		return false
	}
	r.ops <- op
	return true
}

func (r *Recognizer) worker(ops <-chan func()) {
	defer close(r.workerDone)
	for op := range ops {
		r.safely(op)
	}
}

func (r *Recognizer) safely(op func()) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("recognizer operation panicked", slog.Any("panic", p))
		}
	}()
	op()
}

// engineFor resolves the recognition engine on first use so that the
// engine name and its settings can still be changed after construction.
func (r *Recognizer) engineFor() (engine.Engine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.engine != nil {
		return r.engine, nil
	}
	props := r.Properties()
	name := props.GetString(properties.EngineName, DefaultEngine)
	e, err := engine.New(name, props)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("recognition engine created", slog.String("engine", name))
	r.engine = e
	return e, nil
}

// Close stops any attempt, waits for it and disconnects every subscriber.
func (r *Recognizer) Close() error {
	r.closeOnce.Do(func() {
		r.mu.Lock()
		r.closed = true
		a := r.active
		r.mu.Unlock()
		if a != nil {
			a.stop.Cancel()
		}

		r.opsMu.Lock()
		close(r.ops)
		r.ops = nil
		r.opsMu.Unlock()
		<-r.workerDone

		if a != nil {
			<-a.done
		}

		r.SessionStarted.DisconnectAll()
		r.SessionStopped.DisconnectAll()
		r.SpeechStartDetected.DisconnectAll()
		r.SpeechEndDetected.DisconnectAll()
		r.IntermediateResult.DisconnectAll()
		r.FinalResult.DisconnectAll()
		r.Canceled.DisconnectAll()
		r.KeywordDetected.DisconnectAll()
	})
	return nil
}

// attempt is one recognition session from SessionStarted to
// SessionStopped.
type attempt struct {
	mode      Mode
	ctx       context.Context
	sessionID string
	stop      *spx.CancelToken
	spotter   keyword.Spotter

	done chan struct{}
	err  error
}

func newAttempt(ctx context.Context, mode Mode) *attempt {
	return &attempt{
		mode:      mode,
		ctx:       ctx,
		sessionID: uuid.NewString(),
		stop:      spx.NewCancelToken(),
		done:      make(chan struct{}),
	}
}

func (a *attempt) finish(err error) {
	a.err = err
	close(a.done)
}

func (a *attempt) stopped() bool {
	return a.stop.Canceled() || a.ctx.Err() != nil
}

func isStop(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, spx.ErrCanceled)
}
