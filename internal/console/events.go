package console

import (
	"fmt"

	"github.com/chriscow/speech-sdk-go/pkg/event"
	"github.com/chriscow/speech-sdk-go/pkg/recognizer"
)

type watch struct {
	connect       func() event.Subscription
	disconnect    func(event.Subscription) bool
	disconnectAll func()
}

// watchSignal prints every value fired on s, prefixed with the signal name.
func watchSignal[T any](c *Console, s *event.Signal[T], format func(T) string) watch {
	return watch{
		connect: func() event.Subscription {
			return s.Connect(func(v T) {
				c.Printf("%s: %s\n", s.Name, format(v))
			})
		},
		disconnect:    s.Disconnect,
		disconnectAll: s.DisconnectAll,
	}
}

func formatSession(e recognizer.SessionEvent) string {
	return "SessionId=" + e.SessionID
}

func formatSpeech(e recognizer.SpeechEvent) string {
	return fmt.Sprintf("SessionId=%s Offset=%s", e.SessionID, e.Offset)
}

func formatRecognition(e recognizer.RecognitionEvent) string {
	return fmt.Sprintf("SessionId=%s %s", e.SessionID, formatResult(e.Result))
}

func formatKeyword(e recognizer.KeywordEvent) string {
	return fmt.Sprintf("SessionId=%s Keyword=%q Offset=%s Duration=%s", e.SessionID, e.Keyword, e.Offset, e.Duration)
}

func formatResult(r *recognizer.Result) string {
	if r == nil {
		return "<nil>"
	}
	if r.Reason == recognizer.ReasonCanceled {
		return fmt.Sprintf("Reason=%s ErrorDetails=%q", r.Reason, r.ErrorDetails)
	}
	return fmt.Sprintf("Reason=%s Text=%q", r.Reason, r.Text)
}
