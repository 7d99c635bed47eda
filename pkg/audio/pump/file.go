package pump

import (
	"log/slog"

	"github.com/chriscow/speech-sdk-go/pkg/audio/wav"
	"github.com/chriscow/speech-sdk-go/pkg/capability"
	"github.com/chriscow/speech-sdk-go/pkg/site"
)

// FilePump plays a WAV file through an inner Pump. Pump operations not
// declared here are answered by the inner pump.
type FilePump struct {
	*Pump
	caps *capability.Map
	path string
}

// NewFilePump creates a file pump with no file opened.
func NewFilePump() *FilePump {
	f := &FilePump{Pump: New()}
	f.caps = capability.NewMap(capability.Entry[AudioFile](f))
	f.caps.SetDelegate(f.Pump)
	return f
}

// QueryCapability implements capability.Queryable.
func (f *FilePump) QueryCapability(id capability.ID) any { return f.caps.QueryCapability(id) }

// Open binds the WAV file at path as the pump's source.
func (f *FilePump) Open(path string) error {
	r, err := wav.Open(path)
	if err != nil {
		return err
	}
	if err := f.SetReader(r); err != nil {
		r.Close()
		return err
	}
	f.path = path

	site.LoggerOf(f.Site()).Debug("opened audio file",
		slog.String("path", path),
		slog.String("format", r.Format().String()),
		slog.Duration("duration", r.Duration()))
	return nil
}

// Path returns the opened file, or "".
func (f *FilePump) Path() string {
	return f.path
}
