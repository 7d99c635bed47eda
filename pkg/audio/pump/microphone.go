package pump

import (
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/chriscow/speech-sdk-go/pkg/audio"
	"github.com/chriscow/speech-sdk-go/pkg/capability"
	"github.com/chriscow/speech-sdk-go/pkg/properties"
	"github.com/chriscow/speech-sdk-go/pkg/site"
	"github.com/chriscow/speech-sdk-go/pkg/spx"
)

// Class names registered by Register.
const (
	ClassAudioPump      = "AudioPump"
	ClassWavFilePump    = "WavFilePump"
	ClassMockReader     = "MockAudioReader"
	ClassMockMicrophone = "MockMicrophone"
)

// MockMicrophone stands in for an interactive microphone. The real pump is
// chosen lazily from the site's properties on first use: a WAV file pump
// when SPX-INTERNAL-MockWavFile is set, otherwise a pump over a MockReader.
// Every pump operation is then delegated to it.
type MockMicrophone struct {
	site.Holder
	caps *capability.Map

	mu       sync.Mutex
	delegate AudioPump
}

// NewMockMicrophone creates an unbound microphone.
func NewMockMicrophone() *MockMicrophone {
	m := &MockMicrophone{}
	m.caps = capability.NewMap(
		capability.Entry[AudioPump](m),
		capability.Entry[site.ObjectWithSite](m),
	)
	return m
}

// QueryCapability implements capability.Queryable.
func (m *MockMicrophone) QueryCapability(id capability.ID) any { return m.caps.QueryCapability(id) }

func (m *MockMicrophone) Format() (audio.Format, error) {
	p, err := m.ensurePump()
	if err != nil {
		return audio.Format{}, err
	}
	return p.Format()
}

func (m *MockMicrophone) StartPump(proc Processor) error {
	p, err := m.ensurePump()
	if err != nil {
		return err
	}
	return p.StartPump(proc)
}

func (m *MockMicrophone) StopPump() error {
	if p := m.current(); p != nil {
		return p.StopPump()
	}
	return nil
}

func (m *MockMicrophone) PausePump() error {
	if p := m.current(); p != nil {
		return p.PausePump()
	}
	return spx.Wrap(spx.ErrUninitialized, "microphone.Pause", errors.New("not started"))
}

func (m *MockMicrophone) ResumePump() error {
	if p := m.current(); p != nil {
		return p.ResumePump()
	}
	return spx.Wrap(spx.ErrUninitialized, "microphone.Resume", errors.New("not started"))
}

func (m *MockMicrophone) State() State {
	if p := m.current(); p != nil {
		return p.State()
	}
	return Idle
}

// Done is nil until the inner pump exists.
func (m *MockMicrophone) Done() <-chan struct{} {
	if p := m.current(); p != nil {
		return p.Done()
	}
	return nil
}

func (m *MockMicrophone) Err() error {
	if p := m.current(); p != nil {
		return p.Err()
	}
	return nil
}

// Close stops and releases the inner pump.
func (m *MockMicrophone) Close() error {
	m.mu.Lock()
	p := m.delegate
	m.delegate = nil
	m.mu.Unlock()

	if c, ok := p.(io.Closer); ok {
		return c.Close()
	}
	if p != nil {
		return p.StopPump()
	}
	return nil
}

func (m *MockMicrophone) current() AudioPump {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.delegate
}

func (m *MockMicrophone) ensurePump() (AudioPump, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.delegate != nil {
		return m.delegate, nil
	}
	s := m.Site()
	if s == nil {
		return nil, spx.Wrap(spx.ErrUninitialized, "microphone.Start", errors.New("no site"))
	}

	var (
		p   AudioPump
		err error
	)
	if path := site.PropertiesOf(s).GetString(properties.MockWavFile, ""); path != "" {
		p, err = initWavFilePump(s, path)
	} else {
		p, err = initMockPump(s)
	}
	if err != nil {
		return nil, err
	}
	m.delegate = p
	return p, nil
}

func initMockPump(s site.Site) (AudioPump, error) {
	reader, err := site.CreateWithSite[Reader](s, ClassMockReader)
	if err != nil {
		return nil, err
	}
	readerInit, err := site.CreateWithSite[ReaderInit](s, ClassAudioPump)
	if err != nil {
		reader.Close()
		return nil, err
	}
	if err := readerInit.SetReader(reader); err != nil {
		reader.Close()
		return nil, err
	}

	configure(s, readerInit)
	site.LoggerOf(s).Debug("mock microphone using synthetic audio")

	p, ok := capability.Query[AudioPump](readerInit)
	if !ok {
		return nil, spx.Errorf(spx.ErrUnexpected, "microphone.Start", "%s lacks AudioPump", ClassAudioPump)
	}
	return p, nil
}

func initWavFilePump(s site.Site, path string) (AudioPump, error) {
	file, err := site.CreateWithSite[AudioFile](s, ClassWavFilePump)
	if err != nil {
		return nil, err
	}
	if err := file.Open(path); err != nil {
		if c, ok := file.(io.Closer); ok {
			c.Close()
		}
		return nil, err
	}

	configure(s, file)
	site.LoggerOf(s).Debug("mock microphone using audio file", slog.String("path", path))

	p, ok := capability.Query[AudioPump](file)
	if !ok {
		return nil, spx.Errorf(spx.ErrUnexpected, "microphone.Start", "%s lacks AudioPump", ClassWavFilePump)
	}
	return p, nil
}

// configure applies the pacing and looping properties visible from s.
func configure(s site.Site, target any) {
	props := site.PropertiesOf(s)
	if rt, ok := lookup[RealTime](target); ok {
		rt.SetRealTimePercentage(int(props.GetNumber(properties.MockRealTimePercentage, 100)))
	}
	if l, ok := lookup[Looping](target); ok {
		l.SetContinuousLoop(props.GetBool(properties.MockContinuousAudio, false))
		l.SetIterativeLoop(props.GetBool(properties.MockIterativeAudio, false))
	}
}
