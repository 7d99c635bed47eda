// Package openai provides a recognition engine backed by OpenAI's Whisper
// transcription API. Whisper is not a streaming service, so audio is
// buffered into segments and each segment is transcribed as one phrase.
package openai

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/chriscow/speech-sdk-go/pkg/audio"
	"github.com/chriscow/speech-sdk-go/pkg/audio/wav"
	"github.com/chriscow/speech-sdk-go/pkg/engine"
	"github.com/chriscow/speech-sdk-go/pkg/properties"
)

const (
	// DefaultSegmentDuration is the amount of audio per transcription request.
	DefaultSegmentDuration = 3 * time.Second
	// minSegmentDuration is the shortest audio Whisper accepts.
	minSegmentDuration = 100 * time.Millisecond
)

// Config holds configuration for the Whisper engine.
type Config struct {
	APIKey          string        `json:"api_key"`
	Model           string        `json:"model"`    // Default: whisper-1
	Language        string        `json:"language"` // Default: auto-detect (empty)
	BaseURL         string        `json:"base_url"` // Default: the public OpenAI API
	SegmentDuration time.Duration `json:"segment_duration"`
	Logger          *slog.Logger  `json:"-"`
}

// Engine implements engine.Engine using OpenAI's Whisper API.
type Engine struct {
	client  *openai.Client
	cfg     Config
	segment time.Duration
}

// New creates a new Whisper engine.
func New(cfg Config) (*Engine, error) {
	if cfg.APIKey == "" {
		return nil, engine.NewFatalError(nil, "OpenAI API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = openai.Whisper1
	}
	if cfg.SegmentDuration <= 0 {
		cfg.SegmentDuration = DefaultSegmentDuration
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &Engine{
		client:  openai.NewClientWithConfig(clientCfg),
		cfg:     cfg,
		segment: cfg.SegmentDuration,
	}, nil
}

// NewFromProperties reads the key from props or OPENAI_API_KEY.
func NewFromProperties(props *properties.Bag) (engine.Engine, error) {
	key := props.GetString(properties.SubscriptionKey, "")
	if key == "" {
		key = os.Getenv("OPENAI_API_KEY")
	}
	if key == "" {
		return nil, engine.NewFatalError(nil, "OpenAI API key is required (set OPENAI_API_KEY or the subscription key property)")
	}
	return New(Config{
		APIKey:   key,
		Language: props.GetString(properties.RecognitionLanguage, ""),
		BaseURL:  props.GetString(properties.Endpoint, ""),
	})
}

func init() {
	engine.Register("openai", "OpenAI Whisper speech-to-text service", NewFromProperties)
}

// Capabilities returns the engine capabilities.
func (e *Engine) Capabilities() engine.Capabilities {
	return engine.Capabilities{
		Streaming:      false,
		InterimResults: false, // Whisper doesn't support interim results
		SampleRates:    []int{16000, 22050, 44100, 48000},
	}
}

// NewStream starts a buffered transcription session.
func (e *Engine) NewStream(ctx context.Context, cfg engine.StreamConfig) (engine.Stream, error) {
	if err := cfg.Format.Validate(); err != nil {
		return nil, engine.NewFatalError(err, "invalid audio format")
	}
	language := cfg.Language
	if e.cfg.Language != "" {
		language = e.cfg.Language
	}

	s := &stream{
		engine:     e,
		ctx:        ctx,
		format:     cfg.Format,
		language:   whisperLanguage(language),
		continuous: cfg.Continuous,
		segments:   make(chan segment, 4),
		events:     make(chan engine.Event, 16),
	}
	go s.processLoop()
	return s, nil
}

type segment struct {
	data   []byte
	offset time.Duration
}

type stream struct {
	engine     *Engine
	ctx        context.Context
	format     audio.Format
	language   string
	continuous bool
	segments   chan segment
	events     chan engine.Event

	mu       sync.Mutex
	buffer   []byte
	start    time.Duration
	position time.Duration
	closed   bool
	finished bool // set by processLoop once a single-shot phrase is out
}

// Push buffers a frame and queues a segment once enough audio is buffered.
func (s *stream) Push(frame audio.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.finished {
		return engine.ErrStreamClosed
	}
	if len(s.buffer) == 0 {
		s.start = s.position
	}
	s.buffer = append(s.buffer, frame.Data...)
	s.position += frame.Duration()

	if s.format.DurationOf(len(s.buffer)) >= s.engine.segment {
		s.flushLocked()
		if !s.continuous {
			s.closeLocked()
		}
	}
	return nil
}

func (s *stream) Events() <-chan engine.Event {
	return s.events
}

// CloseSend queues the remaining audio and ends the session.
func (s *stream) CloseSend() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.flushLocked()
	s.closeLocked()
	return nil
}

func (s *stream) flushLocked() {
	if len(s.buffer) == 0 {
		return
	}
	seg := segment{data: s.buffer, offset: s.start}
	s.buffer = nil
	select {
	case s.segments <- seg:
	case <-s.ctx.Done():
	}
}

func (s *stream) closeLocked() {
	if !s.closed {
		s.closed = true
		close(s.segments)
	}
}

// processLoop transcribes queued segments in order.
func (s *stream) processLoop() {
	defer close(s.events)

	sent := false
	for seg := range s.segments {
		if s.ctx.Err() != nil {
			return
		}
		d := s.format.DurationOf(len(seg.data))
		s.emit(engine.Event{Type: engine.SpeechStart, Offset: seg.offset})

		if d < minSegmentDuration {
			s.emit(engine.Event{Type: engine.SpeechEnd, Offset: seg.offset + d})
			s.emit(engine.Event{Type: engine.NoMatch, Offset: seg.offset, Duration: d})
			sent = true
			continue
		}

		resp, err := s.transcribe(wav.Encode(s.format, seg.data))
		if err != nil {
			s.engine.cfg.Logger.Error("Whisper transcription failed", slog.String("error", err.Error()))
			s.emit(engine.Event{Type: engine.Error, Err: err})
			return
		}

		s.emit(engine.Event{Type: engine.SpeechEnd, Offset: seg.offset + d})
		if resp.Text == "" {
			s.emit(engine.Event{Type: engine.NoMatch, Offset: seg.offset, Duration: d})
		} else {
			s.emit(engine.Event{
				Type:     engine.Phrase,
				Text:     resp.Text,
				Offset:   seg.offset,
				Duration: d,
				Language: resp.Language,
			})
		}
		sent = true

		if !s.continuous {
			s.mu.Lock()
			s.finished = true
			s.mu.Unlock()
			return
		}
	}

	if !sent && !s.continuous && s.ctx.Err() == nil {
		s.emit(engine.Event{Type: engine.NoMatch})
	}
}

// transcribe calls the OpenAI Whisper API.
func (s *stream) transcribe(wavData []byte) (openai.AudioResponse, error) {
	req := openai.AudioRequest{
		Model:    s.engine.cfg.Model,
		Language: s.language,
		Format:   openai.AudioResponseFormatJSON,
		Reader:   bytes.NewReader(wavData),
		FilePath: "audio.wav",
	}

	resp, err := s.engine.client.CreateTranscription(s.ctx, req)
	if err != nil {
		return resp, classify(err)
	}
	s.engine.cfg.Logger.Debug("Whisper transcription result", slog.String("text", resp.Text))
	return resp, nil
}

func (s *stream) emit(ev engine.Event) {
	select {
	case s.events <- ev:
	case <-s.ctx.Done():
	}
}

// classify maps API failures onto the engine's retry classes.
func classify(err error) error {
	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}

	switch {
	case status == http.StatusTooManyRequests || status >= 500 || status == 0:
		return engine.NewRecoverableError(err, "transcription failed")
	default:
		return engine.NewFatalError(err, fmt.Sprintf("transcription rejected with status %d", status))
	}
}

// whisperLanguage reduces a locale such as en-US to the ISO-639-1 code
// Whisper expects.
func whisperLanguage(locale string) string {
	if len(locale) > 2 && (locale[2] == '-' || locale[2] == '_') {
		return locale[:2]
	}
	return locale
}
