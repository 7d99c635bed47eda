// Package pump delivers PCM frames from an audio source to a processor on
// a dedicated goroutine, with real-time pacing and looping policies.
package pump

import (
	"errors"
	"fmt"

	"github.com/chriscow/speech-sdk-go/pkg/audio"
	"github.com/chriscow/speech-sdk-go/pkg/capability"
)

// ErrStopRequested may be returned by Processor.ProcessAudio to stop the
// pump from inside a callback. The pump finishes normally and Err stays nil.
var ErrStopRequested = errors.New("stop requested by processor")

// Reader is a pull source of PCM audio. Read returns io.EOF at the end of
// the source.
type Reader interface {
	Format() audio.Format
	Read(p []byte) (int, error)
	Close() error
}

// Seeker is implemented by sources that can restart from the first frame.
type Seeker interface {
	Rewind() error
}

// ClipAdvancer is implemented by sources holding several logical clips.
// NextClip moves to the next clip and reports false when there was none,
// in which case the source is left at its end.
type ClipAdvancer interface {
	NextClip() (bool, error)
}

// LiveSource marks sources that pace themselves, such as capture devices.
// The pump never sleeps between frames of a live source.
type LiveSource interface {
	Live() bool
}

// Processor consumes pumped audio. SetFormat is called once before the
// first frame; EndOfStream after the last.
type Processor interface {
	SetFormat(format audio.Format) error
	ProcessAudio(frame audio.Frame) error
	EndOfStream() error
}

// ClipObserver is an optional processor capability notified whenever an
// iterative loop crosses into the next clip.
type ClipObserver interface {
	ClipBoundary()
}

// AudioPump is the capability recognizers use to drive audio.
type AudioPump interface {
	Format() (audio.Format, error)
	StartPump(p Processor) error
	StopPump() error
	PausePump() error
	ResumePump() error
	State() State
	Done() <-chan struct{}
	Err() error
}

// ReaderInit binds the source of a pump.
type ReaderInit interface {
	SetReader(r Reader) error
}

// RealTime controls pacing. Percentages are clamped to 0..400; 0 disables
// pacing.
type RealTime interface {
	SetRealTimePercentage(pct int)
}

// Looping controls what happens at the end of the source.
type Looping interface {
	SetContinuousLoop(on bool)
	SetIterativeLoop(on bool)
}

// AudioFile is the capability of pumps that play a WAV file.
type AudioFile interface {
	Open(path string) error
	RealTime
	Looping
}

// State is the lifecycle of a pump.
type State int

const (
	Idle State = iota
	Running
	Paused
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Paused:
		return "paused"
	case Stopped:
		return "stopped"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// lookup resolves optional contracts through the capability framework
// first, then by plain type assertion.
func lookup[T any](v any) (T, bool) {
	if impl, ok := capability.Query[T](v); ok {
		return impl, true
	}
	impl, ok := v.(T)
	return impl, ok
}

func isLive(r Reader) bool {
	l, ok := lookup[LiveSource](r)
	return ok && l.Live()
}

func clampPercentage(pct int) int {
	return min(max(pct, 0), 400)
}
