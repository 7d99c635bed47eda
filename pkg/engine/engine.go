// Package engine defines the contract between a recognizer session and the
// recognition service that turns audio into text. Engines stream audio in
// through Push and report progress on the Events channel.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/chriscow/speech-sdk-go/pkg/audio"
)

// StreamConfig contains configuration for recognition streams.
type StreamConfig struct {
	Format     audio.Format
	Language   string
	SessionID  string
	Continuous bool // keep recognizing phrases until CloseSend
}

// EventType represents the type of recognition event.
type EventType int

const (
	// SpeechStart marks the beginning of detected speech.
	SpeechStart EventType = iota
	// SpeechEnd marks the end of detected speech.
	SpeechEnd
	// Hypothesis carries partial text that may still change.
	Hypothesis
	// Phrase carries the final text of one utterance.
	Phrase
	// NoMatch reports an utterance whose speech could not be recognized.
	NoMatch
	// Error reports a failure; Err is classified with ErrRecoverable or ErrFatal.
	Error
)

func (t EventType) String() string {
	switch t {
	case SpeechStart:
		return "speech_start"
	case SpeechEnd:
		return "speech_end"
	case Hypothesis:
		return "hypothesis"
	case Phrase:
		return "phrase"
	case NoMatch:
		return "no_match"
	case Error:
		return "error"
	default:
		return fmt.Sprintf("EventType(%d)", int(t))
	}
}

// Event is one message from the engine.
type Event struct {
	Type     EventType
	Text     string
	Offset   time.Duration // from the start of the stream
	Duration time.Duration
	Language string
	JSON     string // raw service payload, when available
	Err      error
}

// Capabilities describes what an engine supports.
type Capabilities struct {
	Streaming      bool
	InterimResults bool
	SampleRates    []int
}

// Engine creates recognition streams.
type Engine interface {
	// NewStream opens a recognition session.
	NewStream(ctx context.Context, cfg StreamConfig) (Stream, error)

	// Capabilities returns the engine's capabilities.
	Capabilities() Capabilities
}

// Stream is an active recognition session.
type Stream interface {
	// Push sends an audio frame for recognition.
	Push(frame audio.Frame) error

	// Events returns the event channel. It is closed after the final event
	// following CloseSend, or when the stream fails.
	Events() <-chan Event

	// CloseSend signals that no more audio will be sent.
	CloseSend() error
}
