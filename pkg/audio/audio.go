// Package audio defines the PCM format and frame types exchanged between
// audio sources, the pump and audio processors.
package audio

import (
	"fmt"
	"time"
)

// Format describes interleaved little-endian PCM.
type Format struct {
	Channels      int // 1 or 2
	SampleRate    int // samples per second per channel
	BitsPerSample int // 8, 16, 24 or 32
}

// DefaultFormat is 16 kHz, 16-bit mono, the format recognition engines expect.
var DefaultFormat = Format{Channels: 1, SampleRate: 16000, BitsPerSample: 16}

// BlockAlign is the size in bytes of one sample across all channels.
func (f Format) BlockAlign() int {
	return f.BitsPerSample / 8 * f.Channels
}

// AvgBytesPerSec is the byte rate of the format.
func (f Format) AvgBytesPerSec() int {
	return f.BlockAlign() * f.SampleRate
}

// Validate rejects formats that cannot describe PCM audio.
func (f Format) Validate() error {
	if f.Channels < 1 {
		return fmt.Errorf("invalid channel count %d", f.Channels)
	}
	if f.SampleRate <= 0 {
		return fmt.Errorf("invalid sample rate %d", f.SampleRate)
	}
	switch f.BitsPerSample {
	case 8, 16, 24, 32:
	default:
		return fmt.Errorf("unsupported bits per sample %d", f.BitsPerSample)
	}
	return nil
}

// BytesFor returns the buffer size holding d of audio, rounded down to a
// whole block.
func (f Format) BytesFor(d time.Duration) int {
	n := int(int64(f.AvgBytesPerSec()) * int64(d) / int64(time.Second))
	if ba := f.BlockAlign(); ba > 0 {
		n -= n % ba
	}
	return n
}

// DurationOf returns the nominal playback time of n bytes.
func (f Format) DurationOf(n int) time.Duration {
	rate := f.AvgBytesPerSec()
	if rate <= 0 {
		return 0
	}
	return time.Duration(int64(n) * int64(time.Second) / int64(rate))
}

func (f Format) String() string {
	return fmt.Sprintf("%dHz/%dbit/%dch", f.SampleRate, f.BitsPerSample, f.Channels)
}

// Frame is one buffer of PCM audio. Offset is the position of the first
// byte relative to the start of the stream.
type Frame struct {
	Data   []byte
	Format Format
	Offset time.Duration
}

// NewFrame creates a frame, checking that data holds whole blocks.
func NewFrame(data []byte, format Format, offset time.Duration) (Frame, error) {
	if ba := format.BlockAlign(); ba <= 0 || len(data)%ba != 0 {
		return Frame{}, fmt.Errorf("frame length %d is not a multiple of block align for %s", len(data), format)
	}
	return Frame{Data: data, Format: format, Offset: offset}, nil
}

// Duration returns the nominal duration of the frame.
func (f Frame) Duration() time.Duration {
	return f.Format.DurationOf(len(f.Data))
}

// Clone returns a deep copy of the frame.
func (f Frame) Clone() Frame {
	data := make([]byte, len(f.Data))
	copy(data, f.Data)
	f.Data = data
	return f
}
