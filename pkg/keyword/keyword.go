// Package keyword defines keyword spotting models and spotters. A spotter
// watches audio for a single keyword and reports where it was heard.
package keyword

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/chriscow/speech-sdk-go/pkg/audio"
	"github.com/chriscow/speech-sdk-go/pkg/spx"
)

// Model identifies a keyword model file and the keyword it detects.
type Model struct {
	Path    string
	Keyword string
}

// FromFile loads the model description at path. The keyword defaults to the
// file name without extension.
func FromFile(path string) (Model, error) {
	if path == "" {
		return Model{}, spx.Errorf(spx.ErrInvalidArgument, "keyword.FromFile", "empty model path")
	}
	info, err := os.Stat(path)
	if err != nil {
		return Model{}, spx.Wrap(spx.ErrNotFound, "keyword.FromFile", err)
	}
	if info.IsDir() {
		return Model{}, spx.Errorf(spx.ErrInvalidArgument, "keyword.FromFile", "%s is a directory", path)
	}
	base := filepath.Base(path)
	return Model{Path: path, Keyword: strings.TrimSuffix(base, filepath.Ext(base))}, nil
}

// Detection reports one spotted keyword.
type Detection struct {
	Keyword  string
	Offset   time.Duration
	Duration time.Duration
}

// Spotter consumes audio until it detects the keyword.
type Spotter interface {
	// Process inspects frame and returns a detection, or nil.
	Process(frame audio.Frame) (*Detection, error)

	// Reset discards state so that spotting starts over.
	Reset()
}

// Factory creates a spotter for a model.
type Factory func(m Model) (Spotter, error)

// FakeSpotter detects its keyword after a fixed number of frames.
type FakeSpotter struct {
	model Model
	after int

	mu     sync.Mutex
	frames int
	start  time.Duration
}

// NewFakeSpotter creates a spotter that fires on every after-th frame.
func NewFakeSpotter(m Model, after int) *FakeSpotter {
	return &FakeSpotter{model: m, after: max(after, 1)}
}

// FakeFactory returns a Factory building FakeSpotters.
func FakeFactory(after int) Factory {
	return func(m Model) (Spotter, error) {
		if m.Keyword == "" {
			return nil, fmt.Errorf("keyword model %q has no keyword", m.Path)
		}
		return NewFakeSpotter(m, after), nil
	}
}

func (s *FakeSpotter) Process(frame audio.Frame) (*Detection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.frames == 0 {
		s.start = frame.Offset
	}
	s.frames++
	if s.frames < s.after {
		return nil, nil
	}
	d := &Detection{
		Keyword:  s.model.Keyword,
		Offset:   s.start,
		Duration: frame.Offset + frame.Duration() - s.start,
	}
	s.frames = 0
	return d, nil
}

func (s *FakeSpotter) Reset() {
	s.mu.Lock()
	s.frames = 0
	s.mu.Unlock()
}
