package abi

import (
	"strings"
	"sync"
	"time"

	"github.com/chriscow/speech-sdk-go/pkg/event"
	"github.com/chriscow/speech-sdk-go/pkg/recognizer"
	"github.com/chriscow/speech-sdk-go/pkg/spx"
)

// Event verbs accepted by Recognizer_Event.
const (
	VerbConnect       = "connect"
	VerbDisconnect    = "disconnect"
	VerbDisconnectAll = "disconnectall"
)

// EventArgs describes one event delivered through the boundary. Result is
// only valid for the duration of the callback.
type EventArgs struct {
	Name      string
	SessionID string
	Offset    uint64 // 100ns ticks
	Result    Handle
}

// EventCallback receives the recognizer handle and the event.
type EventCallback func(reco Handle, args EventArgs)

type binder struct {
	connect       func(r *recognizer.Recognizer, h Handle, name string, cb EventCallback) event.Subscription
	disconnect    func(r *recognizer.Recognizer, sub event.Subscription) bool
	disconnectAll func(r *recognizer.Recognizer)
}

func bind[T any](signal func(*recognizer.Recognizer) *event.Signal[T], convert func(T) (EventArgs, *recognizer.Result)) binder {
	return binder{
		connect: func(r *recognizer.Recognizer, h Handle, name string, cb EventCallback) event.Subscription {
			return signal(r).Connect(func(v T) {
				args, res := convert(v)
				args.Name = name
				if res != nil {
					rh := results().Create(res)
					defer results().Close(rh)
					args.Result = rh
				}
				cb(h, args)
			})
		},
		disconnect: func(r *recognizer.Recognizer, sub event.Subscription) bool {
			return signal(r).Disconnect(sub)
		},
		disconnectAll: func(r *recognizer.Recognizer) {
			signal(r).DisconnectAll()
		},
	}
}

func ticks(d time.Duration) uint64 {
	return uint64(d / 100)
}

func sessionArgs(e recognizer.SessionEvent) (EventArgs, *recognizer.Result) {
	return EventArgs{SessionID: e.SessionID}, nil
}

func speechArgs(e recognizer.SpeechEvent) (EventArgs, *recognizer.Result) {
	return EventArgs{SessionID: e.SessionID, Offset: ticks(e.Offset)}, nil
}

func resultArgs(e recognizer.RecognitionEvent) (EventArgs, *recognizer.Result) {
	return EventArgs{SessionID: e.SessionID, Offset: ticks(e.Result.Offset)}, e.Result
}

func keywordArgs(e recognizer.KeywordEvent) (EventArgs, *recognizer.Result) {
	return EventArgs{SessionID: e.SessionID, Offset: ticks(e.Offset)}, nil
}

var binders = map[string]binder{
	"sessionstarted": bind(func(r *recognizer.Recognizer) *event.Signal[recognizer.SessionEvent] {
		return &r.SessionStarted
	}, sessionArgs),
	"sessionstopped": bind(func(r *recognizer.Recognizer) *event.Signal[recognizer.SessionEvent] {
		return &r.SessionStopped
	}, sessionArgs),
	"speechstartdetected": bind(func(r *recognizer.Recognizer) *event.Signal[recognizer.SpeechEvent] {
		return &r.SpeechStartDetected
	}, speechArgs),
	"speechenddetected": bind(func(r *recognizer.Recognizer) *event.Signal[recognizer.SpeechEvent] {
		return &r.SpeechEndDetected
	}, speechArgs),
	"intermediateresult": bind(func(r *recognizer.Recognizer) *event.Signal[recognizer.RecognitionEvent] {
		return &r.IntermediateResult
	}, resultArgs),
	"finalresult": bind(func(r *recognizer.Recognizer) *event.Signal[recognizer.RecognitionEvent] {
		return &r.FinalResult
	}, resultArgs),
	"canceled": bind(func(r *recognizer.Recognizer) *event.Signal[recognizer.RecognitionEvent] {
		return &r.Canceled
	}, resultArgs),
	"keyworddetected": bind(func(r *recognizer.Recognizer) *event.Signal[recognizer.KeywordEvent] {
		return &r.KeywordDetected
	}, keywordArgs),
}

// EventNames returns the names accepted by Recognizer_Event.
func EventNames() []string {
	return []string{
		"sessionstarted", "sessionstopped", "speechstartdetected", "speechenddetected",
		"intermediateresult", "finalresult", "canceled", "keyworddetected",
	}
}

type bindingKey struct {
	reco Handle
	name string
}

// The boundary keeps one callback per recognizer and event name, the way
// a C caller sets and clears a callback pointer.
var bindings = struct {
	sync.Mutex
	subs map[bindingKey]event.Subscription
}{subs: make(map[bindingKey]event.Subscription)}

func forgetBindings(h Handle) {
	bindings.Lock()
	defer bindings.Unlock()
	for k := range bindings.subs {
		if k.reco == h {
			delete(bindings.subs, k)
		}
	}
}

// Recognizer_Event connects or disconnects the boundary callback for the
// event name. Connecting replaces a previous callback; disconnectall also
// removes subscribers attached in-process.
func Recognizer_Event(h Handle, name, verb string, cb EventCallback) spx.Status {
	return guard("Recognizer_Event", func() error {
		name = strings.ToLower(name)
		b, ok := binders[name]
		if !ok {
			return spx.Errorf(spx.ErrNotFound, "Recognizer_Event", "unknown event %q", name)
		}
		return withRecognizer(h, func(r *recognizer.Recognizer) error {
			key := bindingKey{reco: h, name: name}
			bindings.Lock()
			defer bindings.Unlock()

			switch strings.ToLower(verb) {
			case VerbConnect:
				if cb == nil {
					return invalidArg("Recognizer_Event", "nil callback")
				}
				if old, ok := bindings.subs[key]; ok {
					b.disconnect(r, old)
				}
				bindings.subs[key] = b.connect(r, h, name, cb)
			case VerbDisconnect:
				sub, ok := bindings.subs[key]
				if !ok {
					return nil
				}
				b.disconnect(r, sub)
				delete(bindings.subs, key)
			case VerbDisconnectAll:
				b.disconnectAll(r)
				delete(bindings.subs, key)
			default:
				return invalidArg("Recognizer_Event", "unknown verb %q", verb)
			}
			return nil
		})
	})
}
