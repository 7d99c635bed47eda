package pump

import (
	"encoding/binary"
	"io"
	"math"
	"sync"
	"time"

	"github.com/chriscow/speech-sdk-go/pkg/audio"
	"github.com/chriscow/speech-sdk-go/pkg/capability"
	"github.com/chriscow/speech-sdk-go/pkg/properties"
	"github.com/chriscow/speech-sdk-go/pkg/site"
)

// MockReaderConfig describes the synthetic audio of a MockReader.
type MockReaderConfig struct {
	Format        audio.Format
	FrameDuration time.Duration // length of one frame, default 100ms
	Frames        int           // frames per clip, 0 means endless
	Clips         int           // logical clips, default 1
	ToneHz        float64       // 0 produces silence
}

// MockReader synthesizes silence or a sine tone. It can rewind and, when
// configured with several clips, advance between them.
type MockReader struct {
	site.Holder
	caps *capability.Map

	mu       sync.Mutex
	cfg      MockReaderConfig
	clip     int
	position int // bytes produced in the current clip
	sample   int // running sample index for the tone
	closed   bool
}

// NewMockReader creates a reader with cfg, filling in defaults.
func NewMockReader(cfg MockReaderConfig) *MockReader {
	if cfg.Format == (audio.Format{}) {
		cfg.Format = audio.DefaultFormat
	}
	if cfg.FrameDuration <= 0 {
		cfg.FrameDuration = DefaultFrameDuration
	}
	if cfg.Clips <= 0 {
		cfg.Clips = 1
	}

	r := &MockReader{cfg: cfg}
	r.caps = capability.NewMap(
		capability.Entry[Reader](r),
		capability.Entry[Seeker](r),
		capability.Entry[ClipAdvancer](r),
		capability.Entry[site.ObjectWithSite](r),
	)
	return r
}

// QueryCapability implements capability.Queryable.
func (r *MockReader) QueryCapability(id capability.ID) any { return r.caps.QueryCapability(id) }

// SetSite binds the reader and picks up SPX-INTERNAL-MockFrameCount.
func (r *MockReader) SetSite(s site.Site) error {
	if err := r.Holder.SetSite(s); err != nil {
		return err
	}
	if s == nil {
		return nil
	}
	frames := site.PropertiesOf(s).GetNumber(properties.MockFrameCount, int64(r.cfg.Frames))
	r.mu.Lock()
	r.cfg.Frames = int(frames)
	r.mu.Unlock()
	return nil
}

func (r *MockReader) Format() audio.Format {
	return r.cfg.Format
}

// Read fills p with synthetic PCM.
func (r *MockReader) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return 0, io.ErrClosedPipe
	}
	n := len(p)
	if r.cfg.Frames > 0 {
		remaining := r.clipSize() - r.position
		if remaining <= 0 {
			return 0, io.EOF
		}
		n = min(n, remaining)
	}
	ba := r.cfg.Format.BlockAlign()
	n -= n % ba
	if n == 0 && len(p) > 0 {
		return 0, io.ErrShortBuffer
	}

	r.fill(p[:n])
	r.position += n
	return n, nil
}

func (r *MockReader) clipSize() int {
	return r.cfg.Format.BytesFor(r.cfg.FrameDuration) * r.cfg.Frames
}

func (r *MockReader) fill(p []byte) {
	if r.cfg.ToneHz == 0 || r.cfg.Format.BitsPerSample != 16 {
		clear(p)
		return
	}
	ba := r.cfg.Format.BlockAlign()
	for i := 0; i+ba <= len(p); i += ba {
		t := float64(r.sample) / float64(r.cfg.Format.SampleRate)
		v := uint16(int16(math.Sin(2*math.Pi*r.cfg.ToneHz*t) * 32767 * 0.5))
		for ch := 0; ch < r.cfg.Format.Channels; ch++ {
			binary.LittleEndian.PutUint16(p[i+ch*2:], v)
		}
		r.sample++
	}
}

// Rewind restarts from the first frame of the first clip.
func (r *MockReader) Rewind() error {
	r.mu.Lock()
	r.clip = 0
	r.position = 0
	r.sample = 0
	r.mu.Unlock()
	return nil
}

// NextClip moves to the start of the next clip.
func (r *MockReader) NextClip() (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.clip+1 >= r.cfg.Clips {
		return false, nil
	}
	r.clip++
	r.position = 0
	return true, nil
}

// Clip returns the index of the clip being read.
func (r *MockReader) Clip() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.clip
}

func (r *MockReader) Close() error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	return nil
}
