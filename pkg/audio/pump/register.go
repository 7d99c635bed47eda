package pump

import (
	"github.com/chriscow/speech-sdk-go/pkg/capability"
	"github.com/chriscow/speech-sdk-go/pkg/properties"
	"github.com/chriscow/speech-sdk-go/pkg/site"
)

// Register adds the audio classes of this package to reg.
func Register(reg *capability.Registry) {
	reg.RegisterWithMetadata(&capability.Class{
		Name:    ClassAudioPump,
		Factory: func() capability.Queryable { return New() },
		Capabilities: []capability.ID{
			capability.IDOf[AudioPump](),
			capability.IDOf[ReaderInit](),
			capability.IDOf[RealTime](),
			capability.IDOf[Looping](),
			capability.IDOf[site.ObjectWithSite](),
		},
		Description: "Paced frame delivery from a reader to a processor",
	})
	reg.RegisterWithMetadata(&capability.Class{
		Name:         ClassWavFilePump,
		Factory:      func() capability.Queryable { return NewFilePump() },
		Capabilities: []capability.ID{capability.IDOf[AudioFile]()},
		Description:  "Audio pump playing a WAV file",
	})
	reg.RegisterWithMetadata(&capability.Class{
		Name:    ClassMockReader,
		Factory: func() capability.Queryable { return NewMockReader(MockReaderConfig{}) },
		Capabilities: []capability.ID{
			capability.IDOf[Reader](),
			capability.IDOf[Seeker](),
			capability.IDOf[ClipAdvancer](),
			capability.IDOf[site.ObjectWithSite](),
		},
		Description: "Synthetic silence source",
	})
	reg.RegisterWithMetadata(&capability.Class{
		Name:    ClassMockMicrophone,
		Factory: func() capability.Queryable { return NewMockMicrophone() },
		Capabilities: []capability.ID{
			capability.IDOf[AudioPump](),
			capability.IDOf[site.ObjectWithSite](),
		},
		Description: "Interactive microphone backed by a mock or file pump",
	})
}

// NewFromProperties creates the audio source for a recognizer bound to s.
// No capture device is available in this runtime, so the mock microphone
// is always used; SPX-INTERNAL-MockWavFile selects file playback.
func NewFromProperties(s site.Site) (AudioPump, error) {
	props := site.PropertiesOf(s)
	if !props.GetBool(properties.MockMicrophone, false) && props.GetString(properties.MockWavFile, "") == "" {
		site.LoggerOf(s).Warn("no audio input configured, using mock microphone")
	}
	return site.CreateWithSite[AudioPump](s, ClassMockMicrophone)
}
