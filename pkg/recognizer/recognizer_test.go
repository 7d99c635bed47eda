package recognizer

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/matryer/is"

	"github.com/chriscow/speech-sdk-go/pkg/engine"
	"github.com/chriscow/speech-sdk-go/pkg/engine/fake"
	"github.com/chriscow/speech-sdk-go/pkg/keyword"
	"github.com/chriscow/speech-sdk-go/pkg/properties"
	"github.com/chriscow/speech-sdk-go/pkg/spx"
)

var quietLogger = slog.New(slog.DiscardHandler)

var fastRetry = engine.RetryConfig{
	InitialDelay:  5 * time.Millisecond,
	MaxDelay:      20 * time.Millisecond,
	BackoffFactor: 2,
}

// testSetup builds a recognizer over the mock microphone and a fake engine.
// realTime is the pacing percentage, frames the length of the synthetic
// source (0 is endless).
func testSetup(t *testing.T, cfg fake.Config, realTime, frames int, opts ...FactoryOption) (*Recognizer, *fake.Engine) {
	t.Helper()
	props := properties.New()
	props.SetBool(properties.MockMicrophone, true)
	props.SetNumber(properties.MockRealTimePercentage, int64(realTime))
	props.SetNumber(properties.MockFrameCount, int64(frames))

	eng := fake.New(cfg)
	opts = append([]FactoryOption{
		WithProperties(props),
		WithEngine(eng),
		WithLogger(quietLogger),
		WithRetry(fastRetry),
	}, opts...)

	r, err := NewFactory(opts...).NewSpeechRecognizer()
	if err != nil {
		t.Fatalf("NewSpeechRecognizer() error: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r, eng
}

// recorder collects event names in delivery order.
type recorder struct {
	mu      sync.Mutex
	names   []string
	results []*Result
	stopped chan struct{}
	final   chan *Result
}

func record(r *Recognizer) *recorder {
	rec := &recorder{stopped: make(chan struct{}, 4), final: make(chan *Result, 32)}
	r.SessionStarted.Connect(func(SessionEvent) { rec.add("SessionStarted", nil) })
	r.SpeechStartDetected.Connect(func(SpeechEvent) { rec.add("SpeechStartDetected", nil) })
	r.SpeechEndDetected.Connect(func(SpeechEvent) { rec.add("SpeechEndDetected", nil) })
	r.IntermediateResult.Connect(func(e RecognitionEvent) { rec.add("IntermediateResult", e.Result) })
	r.FinalResult.Connect(func(e RecognitionEvent) {
		rec.add("FinalResult", e.Result)
		rec.final <- e.Result
	})
	r.Canceled.Connect(func(e RecognitionEvent) { rec.add("Canceled", e.Result) })
	r.KeywordDetected.Connect(func(KeywordEvent) { rec.add("KeywordDetected", nil) })
	r.SessionStopped.Connect(func(SessionEvent) {
		rec.add("SessionStopped", nil)
		rec.stopped <- struct{}{}
	})
	return rec
}

func (rec *recorder) add(name string, res *Result) {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.names = append(rec.names, name)
	if res != nil {
		rec.results = append(rec.results, res)
	}
}

func (rec *recorder) events() []string {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return append([]string(nil), rec.names...)
}

func (rec *recorder) count(name string) int {
	n := 0
	for _, e := range rec.events() {
		if e == name {
			n++
		}
	}
	return n
}

func (rec *recorder) waitStopped(t *testing.T) {
	t.Helper()
	select {
	case <-rec.stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for SessionStopped")
	}
}

func awaitOutcome(t *testing.T, ch <-chan Outcome) Outcome {
	t.Helper()
	select {
	case o := <-ch:
		return o
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for outcome")
		return Outcome{}
	}
}

func awaitErr(t *testing.T, ch <-chan error) error {
	t.Helper()
	select {
	case err := <-ch:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for operation")
		return nil
	}
}

func TestRecognizeOnce_Recognized(t *testing.T) {
	is := is.New(t)
	r, _ := testSetup(t, fake.Config{
		Transcripts:  []string{"hello big world"},
		PhraseFrames: 4,
		InterimEvery: 2,
	}, 0, 0)
	rec := record(r)

	o := awaitOutcome(t, r.RecognizeOnceAsync(context.Background()))
	is.NoErr(o.Err)
	is.Equal(o.Result.Reason, ReasonRecognized)
	is.Equal(o.Result.Text, "hello big world")
	is.Equal(o.Result.Duration, 400*time.Millisecond)
	is.True(o.Result.ID != "")
	is.Equal(o.Result.ErrorDetails, "")

	is.Equal(rec.events(), []string{
		"SessionStarted",
		"SpeechStartDetected",
		"IntermediateResult",
		"SpeechEndDetected",
		"FinalResult",
		"SessionStopped",
	})
	is.Equal(rec.results[0].Text, "hello") // hypothesis covers half the frames
	is.Equal(r.Mode(), ModeNone)
}

func TestRecognizeOnce_MutualExclusion(t *testing.T) {
	is := is.New(t)
	r, _ := testSetup(t, fake.Config{PhraseFrames: 3}, 100, 0)

	first := r.RecognizeOnceAsync(context.Background())

	o := awaitOutcome(t, r.RecognizeOnceAsync(context.Background()))
	is.True(errors.Is(o.Err, ErrBusy))
	is.True(errors.Is(o.Err, spx.ErrAlreadyInitialized))
	is.True(errors.Is(awaitErr(t, r.StartContinuousRecognitionAsync(context.Background())), ErrBusy))

	o = awaitOutcome(t, first)
	is.NoErr(o.Err)
	is.Equal(o.Result.Reason, ReasonRecognized)

	// the recognizer is free again once the first attempt resolved
	o = awaitOutcome(t, r.RecognizeOnceAsync(context.Background()))
	is.NoErr(o.Err)
}

func TestRecognizeOnce_Disabled(t *testing.T) {
	is := is.New(t)
	r, _ := testSetup(t, fake.Config{PhraseFrames: 2}, 0, 0)

	is.True(r.IsEnabled())
	r.Disable()
	is.True(!r.IsEnabled())
	o := awaitOutcome(t, r.RecognizeOnceAsync(context.Background()))
	is.True(errors.Is(o.Err, ErrDisabled))
	is.True(errors.Is(awaitErr(t, r.StartContinuousRecognitionAsync(context.Background())), ErrDisabled))

	r.Enable()
	o = awaitOutcome(t, r.RecognizeOnceAsync(context.Background()))
	is.NoErr(o.Err)
}

func TestRecognizeOnce_NoMatch(t *testing.T) {
	is := is.New(t)
	r, _ := testSetup(t, fake.Config{Transcripts: []string{""}, PhraseFrames: 2}, 0, 0)

	o := awaitOutcome(t, r.RecognizeOnceAsync(context.Background()))
	is.NoErr(o.Err)
	is.Equal(o.Result.Reason, ReasonNoMatch)
	is.Equal(o.Result.Text, "")
}

func TestRecognizeOnce_FatalErrorResolvesCanceled(t *testing.T) {
	is := is.New(t)
	r, _ := testSetup(t, fake.Config{PhraseFrames: 5, FailAfter: 2, FailFatal: true}, 0, 0)
	rec := record(r)

	o := awaitOutcome(t, r.RecognizeOnceAsync(context.Background()))
	is.NoErr(o.Err)
	is.Equal(o.Result.Reason, ReasonCanceled)
	is.True(strings.Contains(o.Result.ErrorDetails, fake.ErrInjected.Error()))
	is.Equal(o.Result.Properties.GetString(properties.JSONErrorDetails, ""), o.Result.ErrorDetails)

	events := rec.events()
	is.Equal(events[len(events)-2], "Canceled")
	is.Equal(events[len(events)-1], "SessionStopped")
	is.Equal(rec.count("FinalResult"), 0)
}

func TestRecognizeOnce_ContextCanceled(t *testing.T) {
	is := is.New(t)
	r, _ := testSetup(t, fake.Config{PhraseFrames: 100}, 100, 0)

	ctx, cancel := context.WithCancel(context.Background())
	ch := r.RecognizeOnceAsync(ctx)
	time.Sleep(150 * time.Millisecond)
	cancel()

	o := awaitOutcome(t, ch)
	is.NoErr(o.Err)
	is.Equal(o.Result.Reason, ReasonCanceled)
}

func TestContinuous_UtterancesUntilSourceEnds(t *testing.T) {
	is := is.New(t)
	r, eng := testSetup(t, fake.Config{
		Transcripts:  []string{"one", "two", "three"},
		PhraseFrames: 3,
	}, 0, 9)
	rec := record(r)

	is.NoErr(awaitErr(t, r.StartContinuousRecognitionAsync(context.Background())))
	rec.waitStopped(t)

	var texts []string
	for _, res := range rec.results {
		if res.Reason == ReasonRecognized {
			texts = append(texts, res.Text)
		}
	}
	is.Equal(texts, []string{"one", "two", "three"})
	is.True(eng.LastConfig().Continuous)

	events := rec.events()
	is.Equal(events[0], "SessionStarted")
	is.Equal(events[len(events)-1], "SessionStopped")

	// stopping after the session ended is a no-op
	is.NoErr(awaitErr(t, r.StopContinuousRecognitionAsync()))
}

func TestContinuous_Stop(t *testing.T) {
	is := is.New(t)
	r, _ := testSetup(t, fake.Config{PhraseFrames: 2}, 100, 0)
	rec := record(r)

	is.NoErr(awaitErr(t, r.StartContinuousRecognitionAsync(context.Background())))
	is.Equal(r.Mode(), ModeContinuous)

	select {
	case <-rec.final:
	case <-time.After(5 * time.Second):
		t.Fatal("no final result before stop")
	}
	is.NoErr(awaitErr(t, r.StopContinuousRecognitionAsync()))

	events := rec.events()
	is.Equal(events[len(events)-1], "SessionStopped")
	is.Equal(rec.count("SessionStopped"), 1)
	is.Equal(rec.count("Canceled"), 0)
	is.Equal(r.Mode(), ModeNone)
}

func TestStop_WhenNeverStarted(t *testing.T) {
	is := is.New(t)
	r, _ := testSetup(t, fake.Config{}, 0, 0)
	rec := record(r)

	is.NoErr(awaitErr(t, r.StopContinuousRecognitionAsync()))
	is.NoErr(awaitErr(t, r.StopKeywordRecognitionAsync()))
	is.Equal(len(rec.events()), 0)
}

func TestContinuous_ReconnectsAfterRecoverableError(t *testing.T) {
	is := is.New(t)
	r, eng := testSetup(t, fake.Config{
		PhraseFrames: 3,
		FailAfter:    2,
		MaxFailures:  1,
	}, 0, 6)
	rec := record(r)

	is.NoErr(awaitErr(t, r.StartContinuousRecognitionAsync(context.Background())))
	rec.waitStopped(t)

	is.Equal(eng.Streams(), 2)
	is.Equal(rec.count("Canceled"), 0)
	is.Equal(rec.count("FinalResult"), 2)
	is.Equal(rec.count("SessionStarted"), 1)
}

func TestContinuous_FatalErrorCancels(t *testing.T) {
	is := is.New(t)
	r, eng := testSetup(t, fake.Config{PhraseFrames: 3, FailAfter: 2, FailFatal: true}, 0, 0)
	rec := record(r)

	is.NoErr(awaitErr(t, r.StartContinuousRecognitionAsync(context.Background())))
	rec.waitStopped(t)

	is.Equal(eng.Streams(), 1)
	is.Equal(rec.count("Canceled"), 1)
	res := rec.results[len(rec.results)-1]
	is.Equal(res.Reason, ReasonCanceled)
	is.True(strings.Contains(res.ErrorDetails, "fake engine failure"))

	events := rec.events()
	is.Equal(events[len(events)-2], "Canceled")
	is.Equal(events[len(events)-1], "SessionStopped")
}

func TestKeyword_RecognizesAfterEachDetection(t *testing.T) {
	is := is.New(t)
	r, _ := testSetup(t, fake.Config{
		Transcripts:  []string{"turn on the lights"},
		PhraseFrames: 3,
	}, 0, 10, WithKeywordSpotters(keyword.FakeFactory(2)))
	rec := record(r)

	is.NoErr(awaitErr(t, r.StartKeywordRecognitionAsync(context.Background(), keyword.Model{Keyword: "computer"})))
	rec.waitStopped(t)

	is.Equal(rec.count("KeywordDetected"), 2)
	is.Equal(rec.count("FinalResult"), 2)
	is.Equal(rec.results[0].Text, "turn on the lights")

	events := rec.events()
	is.Equal(events[1], "KeywordDetected")
	is.Equal(events[2], "SpeechStartDetected")
}

func TestKeyword_RequiresSpotter(t *testing.T) {
	is := is.New(t)
	r, _ := testSetup(t, fake.Config{}, 0, 0)

	err := awaitErr(t, r.StartKeywordRecognitionAsync(context.Background(), keyword.Model{Keyword: "computer"}))
	is.True(errors.Is(err, spx.ErrUninitialized))

	r.Properties().SetBool(properties.MockKeywordEngine, true)
	err = awaitErr(t, r.StartKeywordRecognitionAsync(context.Background(), keyword.Model{Keyword: "computer"}))
	is.NoErr(err)
	is.Equal(r.Mode(), ModeKeyword)
	is.NoErr(awaitErr(t, r.StopKeywordRecognitionAsync()))
}

func TestClose_StopsAndDisconnects(t *testing.T) {
	is := is.New(t)
	r, _ := testSetup(t, fake.Config{PhraseFrames: 2}, 100, 0)
	rec := record(r)

	is.NoErr(awaitErr(t, r.StartContinuousRecognitionAsync(context.Background())))
	is.NoErr(r.Close())

	is.Equal(rec.count("SessionStopped"), 1)
	is.True(!r.FinalResult.IsConnected())
	is.True(!r.SessionStopped.IsConnected())

	o := awaitOutcome(t, r.RecognizeOnceAsync(context.Background()))
	is.True(errors.Is(o.Err, ErrClosed))
	is.NoErr(r.Close()) // idempotent
}

func TestFactory_EngineFromProperties(t *testing.T) {
	is := is.New(t)
	props := properties.New()
	props.SetNumber(properties.MockRealTimePercentage, 0)
	props.SetString(properties.EngineName, "fake")
	props.SetString(properties.FakeEngineTranscript, "configured by name")
	props.SetNumber(properties.FakeEnginePhraseFrames, 2)

	f := NewFactory(WithProperties(props), WithLogger(quietLogger))
	r, err := f.NewSpeechRecognizerWithLanguage("de-DE")
	is.NoErr(err)
	defer r.Close()
	is.Equal(r.Properties().GetString(properties.RecognitionLanguage, ""), "de-DE")
	is.Equal(f.Properties().GetString(properties.RecognitionLanguage, ""), "") // child bag only

	o := awaitOutcome(t, r.RecognizeOnceAsync(context.Background()))
	is.NoErr(o.Err)
	is.Equal(o.Result.Text, "configured by name")
	is.True(r.Properties().GetString(properties.SessionID, "") != "")
}

func TestFactory_UnknownEngineCancels(t *testing.T) {
	is := is.New(t)
	props := properties.New()
	props.SetString(properties.EngineName, "nope")

	r, err := NewFactory(WithProperties(props), WithLogger(quietLogger)).NewSpeechRecognizer()
	is.NoErr(err)
	defer r.Close()

	o := awaitOutcome(t, r.RecognizeOnceAsync(context.Background()))
	is.NoErr(o.Err)
	is.Equal(o.Result.Reason, ReasonCanceled)
	is.True(strings.Contains(o.Result.ErrorDetails, `"nope"`))
}

func TestReason_StableValues(t *testing.T) {
	is := is.New(t)
	is.Equal(int(ReasonRecognized), 0)
	is.Equal(int(ReasonNoMatch), 2)
	is.Equal(int(ReasonCanceled), 5)
	is.Equal(ReasonInitialBabbleTimeout.String(), "InitialBabbleTimeout")
}

func TestLanguageUnderstandingModel(t *testing.T) {
	is := is.New(t)
	is.True(FromEndpoint("https://example.com/luis").Valid())
	is.True(FromSubscription("host", "key", "app").Valid())
	is.True(!FromSubscription("host", "", "app").Valid())
}
