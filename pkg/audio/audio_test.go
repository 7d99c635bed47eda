package audio

import (
	"testing"
	"time"

	"github.com/matryer/is"
)

func TestFormat_Derived(t *testing.T) {
	tests := []struct {
		name      string
		format    Format
		align     int
		bytesPerS int
	}{
		{"16k mono 16bit", Format{Channels: 1, SampleRate: 16000, BitsPerSample: 16}, 2, 32000},
		{"48k stereo 16bit", Format{Channels: 2, SampleRate: 48000, BitsPerSample: 16}, 4, 192000},
		{"8k mono 8bit", Format{Channels: 1, SampleRate: 8000, BitsPerSample: 8}, 1, 8000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.format.BlockAlign(); got != tt.align {
				t.Errorf("BlockAlign() = %d, want %d", got, tt.align)
			}
			if got := tt.format.AvgBytesPerSec(); got != tt.bytesPerS {
				t.Errorf("AvgBytesPerSec() = %d, want %d", got, tt.bytesPerS)
			}
			if err := tt.format.Validate(); err != nil {
				t.Errorf("Validate() unexpected error: %v", err)
			}
		})
	}
}

func TestFormat_Validate(t *testing.T) {
	bad := []Format{
		{Channels: 0, SampleRate: 16000, BitsPerSample: 16},
		{Channels: 1, SampleRate: 0, BitsPerSample: 16},
		{Channels: 1, SampleRate: 16000, BitsPerSample: 12},
	}
	for _, f := range bad {
		if err := f.Validate(); err == nil {
			t.Errorf("Validate(%+v) should have failed", f)
		}
	}
}

func TestFrame_Duration(t *testing.T) {
	is := is.New(t)

	n := DefaultFormat.BytesFor(100 * time.Millisecond)
	is.Equal(n, 3200)

	f, err := NewFrame(make([]byte, n), DefaultFormat, 0)
	is.NoErr(err)
	is.Equal(f.Duration(), 100*time.Millisecond)

	_, err = NewFrame(make([]byte, 3), DefaultFormat, 0)
	is.True(err != nil) // half a sample
}

func TestFrame_Clone(t *testing.T) {
	is := is.New(t)
	f := Frame{Data: []byte{1, 2}, Format: DefaultFormat}
	c := f.Clone()
	c.Data[0] = 9
	is.Equal(f.Data[0], byte(1))
	is.Equal(c.Format, f.Format)
}
