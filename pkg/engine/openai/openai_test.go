package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/matryer/is"

	"github.com/chriscow/speech-sdk-go/pkg/audio"
	"github.com/chriscow/speech-sdk-go/pkg/engine"
	"github.com/chriscow/speech-sdk-go/pkg/properties"
)

// whisperServer mimics the transcription endpoint.
type whisperServer struct {
	mu        sync.Mutex
	requests  int
	languages []string
	status    int
	text      string
}

func (w *whisperServer) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/v1/audio/transcriptions" {
		http.NotFound(rw, r)
		return
	}
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		http.Error(rw, err.Error(), http.StatusBadRequest)
		return
	}

	w.mu.Lock()
	w.requests++
	w.languages = append(w.languages, r.FormValue("language"))
	status, text := w.status, w.text
	w.mu.Unlock()

	rw.Header().Set("Content-Type", "application/json")
	if status != 0 {
		rw.WriteHeader(status)
		json.NewEncoder(rw).Encode(map[string]any{
			"error": map[string]any{"message": "rejected", "type": "invalid_request_error"},
		})
		return
	}
	json.NewEncoder(rw).Encode(map[string]any{"text": text, "language": "english"})
}

func newTestEngine(t *testing.T, srv *httptest.Server, segment time.Duration) *Engine {
	t.Helper()
	e, err := New(Config{APIKey: "test-key", BaseURL: srv.URL + "/v1", SegmentDuration: segment})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return e
}

func pushAudio(t *testing.T, s engine.Stream, frames int) {
	t.Helper()
	f := audio.Frame{Data: make([]byte, audio.DefaultFormat.BytesFor(100*time.Millisecond)), Format: audio.DefaultFormat}
	for i := 0; i < frames; i++ {
		if err := s.Push(f); err != nil {
			t.Fatalf("Push() error: %v", err)
		}
	}
}

func drain(s engine.Stream) []engine.Event {
	var events []engine.Event
	for ev := range s.Events() {
		events = append(events, ev)
	}
	return events
}

func TestNew_Configuration(t *testing.T) {
	is := is.New(t)

	_, err := New(Config{})
	is.True(engine.IsFatal(err)) // missing API key

	e, err := New(Config{APIKey: "test-key", Language: "en"})
	is.NoErr(err)
	is.Equal(e.cfg.Model, "whisper-1")
	is.Equal(e.segment, DefaultSegmentDuration)
	is.True(!e.Capabilities().InterimResults)
}

func TestStream_SingleShotTranscribesOneSegment(t *testing.T) {
	is := is.New(t)
	svc := &whisperServer{text: "hello world"}
	srv := httptest.NewServer(svc)
	defer srv.Close()

	e := newTestEngine(t, srv, 500*time.Millisecond)
	s, err := e.NewStream(context.Background(), engine.StreamConfig{Format: audio.DefaultFormat, Language: "en-US"})
	is.NoErr(err)

	pushAudio(t, s, 5) // reaches the segment length and ends the session
	events := drain(s)

	is.Equal(len(events), 3)
	is.Equal(events[0].Type, engine.SpeechStart)
	is.Equal(events[1].Type, engine.SpeechEnd)
	is.Equal(events[2].Type, engine.Phrase)
	is.Equal(events[2].Text, "hello world")
	is.Equal(events[2].Duration, 500*time.Millisecond)
	is.NoErr(s.CloseSend())

	svc.mu.Lock()
	defer svc.mu.Unlock()
	is.Equal(svc.requests, 1)
	is.Equal(svc.languages, []string{"en"}) // locale reduced for Whisper
}

func TestStream_ContinuousSegments(t *testing.T) {
	is := is.New(t)
	svc := &whisperServer{text: "again"}
	srv := httptest.NewServer(svc)
	defer srv.Close()

	e := newTestEngine(t, srv, 300*time.Millisecond)
	s, err := e.NewStream(context.Background(), engine.StreamConfig{Format: audio.DefaultFormat, Continuous: true})
	is.NoErr(err)

	pushAudio(t, s, 7) // two full segments plus a 100ms tail
	is.NoErr(s.CloseSend())

	var offsets []time.Duration
	for _, ev := range drain(s) {
		if ev.Type == engine.Phrase {
			offsets = append(offsets, ev.Offset)
		}
	}
	is.Equal(offsets, []time.Duration{0, 300 * time.Millisecond, 600 * time.Millisecond})
}

func TestStream_NoAudioIsNoMatch(t *testing.T) {
	is := is.New(t)
	srv := httptest.NewServer(&whisperServer{})
	defer srv.Close()

	s, err := newTestEngine(t, srv, 0).NewStream(context.Background(), engine.StreamConfig{Format: audio.DefaultFormat})
	is.NoErr(err)
	is.NoErr(s.CloseSend())

	events := drain(s)
	is.Equal(len(events), 1)
	is.Equal(events[0].Type, engine.NoMatch)
}

func TestStream_ErrorClassification(t *testing.T) {
	tests := []struct {
		status      int
		recoverable bool
	}{
		{http.StatusUnauthorized, false},
		{http.StatusTooManyRequests, true},
		{http.StatusInternalServerError, true},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			is := is.New(t)
			srv := httptest.NewServer(&whisperServer{status: tt.status})
			defer srv.Close()

			s, err := newTestEngine(t, srv, 200*time.Millisecond).NewStream(context.Background(), engine.StreamConfig{Format: audio.DefaultFormat})
			is.NoErr(err)
			pushAudio(t, s, 2)

			events := drain(s)
			last := events[len(events)-1]
			is.Equal(last.Type, engine.Error)
			is.Equal(engine.IsRecoverable(last.Err), tt.recoverable)
		})
	}
}

func TestNewFromProperties(t *testing.T) {
	is := is.New(t)
	t.Setenv("OPENAI_API_KEY", "")

	_, err := NewFromProperties(properties.New())
	is.True(engine.IsFatal(err))

	props := properties.New()
	is.NoErr(props.SetString(properties.SubscriptionKey, "k"))
	is.NoErr(props.SetString(properties.RecognitionLanguage, "de-DE"))
	e, err := engine.New("openai", props)
	is.NoErr(err)
	is.Equal(e.(*Engine).cfg.Language, "de-DE")
}

func TestWhisperLanguage(t *testing.T) {
	is := is.New(t)
	is.Equal(whisperLanguage("en-US"), "en")
	is.Equal(whisperLanguage("pt_BR"), "pt")
	is.Equal(whisperLanguage("fr"), "fr")
	is.Equal(whisperLanguage(""), "")
}
