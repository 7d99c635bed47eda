package recognizer

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/chriscow/speech-sdk-go/pkg/properties"
)

// Reason explains why a result was produced. The numeric values are part
// of the exported boundary and must not change.
type Reason int

const (
	ReasonRecognized            Reason = 0
	ReasonIntermediateResult    Reason = 1
	ReasonNoMatch               Reason = 2
	ReasonInitialSilenceTimeout Reason = 3
	ReasonInitialBabbleTimeout  Reason = 4
	ReasonCanceled              Reason = 5
)

func (r Reason) String() string {
	switch r {
	case ReasonRecognized:
		return "Recognized"
	case ReasonIntermediateResult:
		return "IntermediateResult"
	case ReasonNoMatch:
		return "NoMatch"
	case ReasonInitialSilenceTimeout:
		return "InitialSilenceTimeout"
	case ReasonInitialBabbleTimeout:
		return "InitialBabbleTimeout"
	case ReasonCanceled:
		return "Canceled"
	default:
		return fmt.Sprintf("Reason(%d)", int(r))
	}
}

// Result is the outcome of one recognized utterance.
type Result struct {
	ID       string
	Reason   Reason
	Text     string
	Offset   time.Duration
	Duration time.Duration

	// ErrorDetails is set only when Reason is ReasonCanceled.
	ErrorDetails string

	// Properties holds per-result values such as the raw service JSON.
	Properties *properties.Bag
}

func newResult(reason Reason, text string, offset, duration time.Duration) *Result {
	return &Result{
		ID:         uuid.NewString(),
		Reason:     reason,
		Text:       text,
		Offset:     offset,
		Duration:   duration,
		Properties: properties.New(),
	}
}

func canceledResult(err error) *Result {
	r := newResult(ReasonCanceled, "", 0, 0)
	if err != nil {
		r.ErrorDetails = err.Error()
		r.Properties.SetString(properties.JSONErrorDetails, r.ErrorDetails)
	}
	return r
}

func (r *Result) String() string {
	return fmt.Sprintf("Result{id=%s reason=%s text=%q}", r.ID, r.Reason, r.Text)
}

// Outcome resolves a RecognizeOnceAsync call. Exactly one of Result and Err
// is set.
type Outcome struct {
	Result *Result
	Err    error
}

// SessionEvent is delivered by SessionStarted and SessionStopped.
type SessionEvent struct {
	SessionID string
}

// RecognitionEvent carries a result together with its session.
type RecognitionEvent struct {
	SessionID string
	Result    *Result
}

// SpeechEvent is delivered when the engine detects the start or end of
// speech.
type SpeechEvent struct {
	SessionID string
	Offset    time.Duration
}

// KeywordEvent is delivered when the keyword spotter fires.
type KeywordEvent struct {
	SessionID string
	Keyword   string
	Offset    time.Duration
	Duration  time.Duration
}

// LanguageUnderstandingModel describes an intent model. The runtime only
// carries the configuration; it does not evaluate intents.
type LanguageUnderstandingModel struct {
	Endpoint        string
	Hostname        string
	SubscriptionKey string
	AppID           string
}

// FromEndpoint describes a model reached through a full endpoint URL.
func FromEndpoint(endpoint string) LanguageUnderstandingModel {
	return LanguageUnderstandingModel{Endpoint: endpoint}
}

// FromSubscription describes a model reached by host, key and app id.
func FromSubscription(hostname, key, appID string) LanguageUnderstandingModel {
	return LanguageUnderstandingModel{Hostname: hostname, SubscriptionKey: key, AppID: appID}
}

// Valid reports whether the model can be addressed.
func (m LanguageUnderstandingModel) Valid() bool {
	return m.Endpoint != "" || (m.Hostname != "" && m.SubscriptionKey != "" && m.AppID != "")
}
