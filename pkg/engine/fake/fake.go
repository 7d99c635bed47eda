// Package fake provides a scripted recognition engine for tests and for
// running the SDK without a service.
package fake

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/chriscow/speech-sdk-go/pkg/audio"
	"github.com/chriscow/speech-sdk-go/pkg/engine"
	"github.com/chriscow/speech-sdk-go/pkg/properties"
)

const (
	// DefaultTranscript is used when no transcript is provided
	DefaultTranscript = "This is a fake transcript from the fake recognition engine."
	// DefaultPhraseFrames is the number of frames making up one utterance.
	DefaultPhraseFrames = 10
	// DefaultInterimEvery controls how often hypotheses are sent.
	DefaultInterimEvery = 2
)

// ErrInjected is the cause of failures configured with FailAfter.
var ErrInjected = errors.New("injected engine failure")

// Config scripts the engine.
type Config struct {
	Transcripts  []string // phrases, used in turn; "" produces NoMatch
	PhraseFrames int      // frames per utterance
	InterimEvery int      // frames between hypotheses, 0 disables them
	FailAfter    int      // fail the stream after this many frames, 0 never
	FailFatal    bool     // injected failures are fatal instead of recoverable
	MaxFailures  int      // stop injecting after this many failures, 0 always fail
}

// Engine is a fake engine implementation for testing.
type Engine struct {
	mu        sync.Mutex
	cfg       Config
	next      int // index of the next transcript
	failures  int
	streams   int
	lastSetup engine.StreamConfig
}

// New creates a fake engine.
func New(cfg Config) *Engine {
	if len(cfg.Transcripts) == 0 {
		cfg.Transcripts = []string{DefaultTranscript}
	}
	if cfg.PhraseFrames <= 0 {
		cfg.PhraseFrames = DefaultPhraseFrames
	}
	return &Engine{cfg: cfg}
}

// NewFromProperties reads the SPX-INTERNAL-FakeEngine* keys.
func NewFromProperties(props *properties.Bag) (engine.Engine, error) {
	cfg := Config{
		PhraseFrames: int(props.GetNumber(properties.FakeEnginePhraseFrames, DefaultPhraseFrames)),
		InterimEvery: int(props.GetNumber(properties.FakeEngineInterimEvery, DefaultInterimEvery)),
		FailAfter:    int(props.GetNumber(properties.FakeEngineFailAfter, 0)),
		FailFatal:    props.GetBool(properties.FakeEngineFailFatal, false),
	}
	if t := props.GetString(properties.FakeEngineTranscript, ""); t != "" {
		cfg.Transcripts = strings.Split(t, "|")
	}
	return New(cfg), nil
}

func init() {
	engine.Register("fake", "Scripted engine for tests and offline use", NewFromProperties)
}

// NewStream creates a new fake recognition stream.
func (e *Engine) NewStream(ctx context.Context, cfg engine.StreamConfig) (engine.Stream, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.streams++
	e.lastSetup = cfg
	return &Stream{
		engine:     e,
		ctx:        ctx,
		continuous: cfg.Continuous,
		events:     make(chan engine.Event, 64),
	}, nil
}

// Capabilities returns the fake engine capabilities.
func (e *Engine) Capabilities() engine.Capabilities {
	return engine.Capabilities{
		Streaming:      true,
		InterimResults: e.cfg.InterimEvery > 0,
		SampleRates:    []int{8000, 16000, 48000},
	}
}

// Streams returns the number of streams opened so far.
func (e *Engine) Streams() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.streams
}

// LastConfig returns the configuration of the most recent stream.
func (e *Engine) LastConfig() engine.StreamConfig {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastSetup
}

func (e *Engine) nextTranscript() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	t := e.cfg.Transcripts[e.next%len(e.cfg.Transcripts)]
	e.next++
	return t
}

func (e *Engine) shouldFail(frames int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cfg.FailAfter <= 0 || frames < e.cfg.FailAfter {
		return false
	}
	if e.cfg.MaxFailures > 0 && e.failures >= e.cfg.MaxFailures {
		return false
	}
	e.failures++
	return true
}

// Stream is a fake recognition stream. An utterance starts with the first
// frame, produces hypotheses every InterimEvery frames and a phrase after
// PhraseFrames frames.
type Stream struct {
	engine     *Engine
	ctx        context.Context
	continuous bool

	mu          sync.Mutex
	events      chan engine.Event
	closed      bool
	frames      int // total frames pushed
	inSpeech    bool
	utterFrames int
	transcript  string
	start       time.Duration
	position    time.Duration
}

// Push processes an audio frame.
func (s *Stream) Push(frame audio.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return engine.ErrStreamClosed
	}
	s.frames++
	cfg := s.engine.cfg

	if s.engine.shouldFail(s.frames) {
		var err error
		if cfg.FailFatal {
			err = engine.NewFatalError(ErrInjected, "fake engine failure")
		} else {
			err = engine.NewRecoverableError(ErrInjected, "fake engine failure")
		}
		s.send(engine.Event{Type: engine.Error, Err: err})
		s.finish()
		return nil
	}

	if !s.inSpeech {
		s.inSpeech = true
		s.utterFrames = 0
		s.start = s.position
		s.transcript = s.engine.nextTranscript()
		s.send(engine.Event{Type: engine.SpeechStart, Offset: s.start})
	}
	s.utterFrames++
	s.position += frame.Duration()

	if s.utterFrames >= cfg.PhraseFrames {
		s.endUtterance()
		if !s.continuous {
			s.finish()
		}
		return nil
	}

	if cfg.InterimEvery > 0 && s.utterFrames%cfg.InterimEvery == 0 && s.transcript != "" {
		words := strings.Fields(s.transcript)
		n := max(1, len(words)*s.utterFrames/cfg.PhraseFrames)
		s.send(engine.Event{
			Type:     engine.Hypothesis,
			Text:     strings.Join(words[:min(n, len(words))], " "),
			Offset:   s.start,
			Duration: s.position - s.start,
		})
	}
	return nil
}

// Events returns the events channel.
func (s *Stream) Events() <-chan engine.Event {
	return s.events
}

// CloseSend finishes any utterance in progress and closes the stream. A
// stream that received no audio reports NoMatch.
func (s *Stream) CloseSend() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	switch {
	case s.inSpeech:
		s.endUtterance()
	case s.frames == 0 && !s.continuous:
		s.send(engine.Event{Type: engine.NoMatch})
	}
	s.finish()
	return s.ctx.Err()
}

func (s *Stream) endUtterance() {
	s.inSpeech = false
	d := s.position - s.start
	s.send(engine.Event{Type: engine.SpeechEnd, Offset: s.position})
	if s.transcript == "" {
		s.send(engine.Event{Type: engine.NoMatch, Offset: s.start, Duration: d})
		return
	}
	s.send(engine.Event{
		Type:     engine.Phrase,
		Text:     s.transcript,
		Offset:   s.start,
		Duration: d,
		Language: "en-US",
	})
}

func (s *Stream) send(ev engine.Event) {
	select {
	case s.events <- ev:
	case <-s.ctx.Done():
	}
}

func (s *Stream) finish() {
	if !s.closed {
		s.closed = true
		close(s.events)
	}
}
