// Package websocket implements a streaming recognition engine over a
// WebSocket connection: PCM goes up as binary messages, recognition events
// come down as JSON text messages.
package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/chriscow/speech-sdk-go/pkg/audio"
	"github.com/chriscow/speech-sdk-go/pkg/engine"
	"github.com/chriscow/speech-sdk-go/pkg/properties"
)

// Message types exchanged with the service.
const (
	TypeSpeechConfig   = "speech.config"
	TypeAudioEnd       = "audio.end"
	TypeStartDetected  = "speech.startDetected"
	TypeEndDetected    = "speech.endDetected"
	TypeHypothesis     = "speech.hypothesis"
	TypePhrase         = "speech.phrase"
	TypeTurnEnd        = "turn.end"
	TypeError          = "error"
	StatusSuccess      = "Success"
	StatusNoMatch      = "NoMatch"
	ticksPerSecond     = 10_000_000
	defaultHandshake   = 10 * time.Second
	defaultWriteWindow = 5 * time.Second
)

// Command is sent to the service as a text message.
type Command struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data,omitempty"`
}

// Message is received from the service. Offsets and durations are in
// 100-nanosecond ticks.
type Message struct {
	Type      string `json:"type"`
	Text      string `json:"text,omitempty"`
	Status    string `json:"status,omitempty"`
	Offset    int64  `json:"offset,omitempty"`
	Duration  int64  `json:"duration,omitempty"`
	Language  string `json:"language,omitempty"`
	Code      string `json:"code,omitempty"`
	Message   string `json:"message,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

// Config holds configuration for the WebSocket engine.
type Config struct {
	Endpoint         string // ws:// or wss:// URL
	SubscriptionKey  string
	HandshakeTimeout time.Duration
	Logger           *slog.Logger
}

// Engine dials one connection per stream.
type Engine struct {
	cfg Config
}

// New creates an engine for cfg.
func New(cfg Config) (*Engine, error) {
	if cfg.Endpoint == "" {
		return nil, engine.NewFatalError(nil, "websocket engine requires an endpoint")
	}
	if _, err := url.Parse(cfg.Endpoint); err != nil {
		return nil, engine.NewFatalError(err, "invalid endpoint")
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = defaultHandshake
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Engine{cfg: cfg}, nil
}

// NewFromProperties reads the endpoint and key from props.
func NewFromProperties(props *properties.Bag) (engine.Engine, error) {
	return New(Config{
		Endpoint:        props.GetString(properties.Endpoint, ""),
		SubscriptionKey: props.GetString(properties.SubscriptionKey, ""),
	})
}

func init() {
	engine.Register("websocket", "Streaming recognition over WebSocket", NewFromProperties)
}

// Capabilities returns the engine's capabilities.
func (e *Engine) Capabilities() engine.Capabilities {
	return engine.Capabilities{
		Streaming:      true,
		InterimResults: true,
		SampleRates:    []int{16000},
	}
}

// NewStream connects and sends the speech configuration.
func (e *Engine) NewStream(ctx context.Context, cfg engine.StreamConfig) (engine.Stream, error) {
	u, err := url.Parse(e.cfg.Endpoint)
	if err != nil {
		return nil, engine.NewFatalError(err, "invalid endpoint")
	}
	q := u.Query()
	if cfg.Language != "" {
		q.Set("language", cfg.Language)
	}
	u.RawQuery = q.Encode()

	header := http.Header{}
	if e.cfg.SubscriptionKey != "" {
		header.Set("Authorization", "Bearer "+e.cfg.SubscriptionKey)
	}
	if cfg.SessionID != "" {
		header.Set("X-Session-Id", cfg.SessionID)
	}

	e.cfg.Logger.Debug("Connecting to recognition service", slog.String("url", u.String()))

	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = e.cfg.HandshakeTimeout

	conn, resp, err := dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return nil, engine.NewFatalError(err, fmt.Sprintf("connection rejected with status %d", resp.StatusCode))
		}
		return nil, engine.NewRecoverableError(err, "failed to connect")
	}

	s := &stream{
		conn:   conn,
		logger: e.cfg.Logger,
		events: make(chan engine.Event, 64),
		done:   make(chan struct{}),
	}

	err = s.writeCommand(&Command{
		Type: TypeSpeechConfig,
		Data: map[string]any{
			"sampleRate":    cfg.Format.SampleRate,
			"channels":      cfg.Format.Channels,
			"bitsPerSample": cfg.Format.BitsPerSample,
			"language":      cfg.Language,
			"continuous":    cfg.Continuous,
			"sessionId":     cfg.SessionID,
		},
	})
	if err != nil {
		conn.Close()
		return nil, engine.NewRecoverableError(err, "failed to send speech config")
	}

	e.cfg.Logger.Info("Recognition stream connected", slog.String("session_id", cfg.SessionID))
	go s.readLoop(ctx)
	return s, nil
}

type stream struct {
	conn   *websocket.Conn
	logger *slog.Logger
	events chan engine.Event
	done   chan struct{} // closed when readLoop exits

	writeMu  sync.Mutex
	sendDone bool
}

func (s *stream) Push(frame audio.Frame) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.sendDone {
		return engine.ErrStreamClosed
	}
	select {
	case <-s.done:
		return engine.ErrStreamClosed
	default:
	}

	s.conn.SetWriteDeadline(time.Now().Add(defaultWriteWindow))
	if err := s.conn.WriteMessage(websocket.BinaryMessage, frame.Data); err != nil {
		return engine.NewRecoverableError(err, "failed to send audio")
	}
	return nil
}

func (s *stream) Events() <-chan engine.Event {
	return s.events
}

func (s *stream) CloseSend() error {
	s.writeMu.Lock()
	if s.sendDone {
		s.writeMu.Unlock()
		return nil
	}
	s.sendDone = true
	s.writeMu.Unlock()

	select {
	case <-s.done:
		return nil
	default:
	}
	return s.writeCommand(&Command{Type: TypeAudioEnd})
}

func (s *stream) writeCommand(cmd *Command) error {
	s.logger.Debug("Sending command", slog.String("type", cmd.Type))

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(defaultWriteWindow))
	if err := s.conn.WriteJSON(cmd); err != nil {
		return fmt.Errorf("failed to write command: %w", err)
	}
	return nil
}

// readLoop translates service messages into events until turn.end, an
// error, or ctx is done.
func (s *stream) readLoop(ctx context.Context) {
	defer func() {
		s.conn.Close()
		close(s.done)
		close(s.events)
	}()

	stop := context.AfterFunc(ctx, func() { s.conn.Close() })
	defer stop()

	for {
		var msg Message
		if err := s.conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil {
				return
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				s.emit(ctx, engine.Event{Type: engine.Error, Err: engine.NewRecoverableError(err, "service closed the stream before the turn ended")})
				return
			}
			var syntax *json.SyntaxError
			if errors.As(err, &syntax) {
				s.emit(ctx, engine.Event{Type: engine.Error, Err: engine.NewFatalError(err, "malformed service message")})
				return
			}
			s.emit(ctx, engine.Event{Type: engine.Error, Err: engine.NewRecoverableError(err, "connection lost")})
			return
		}

		s.logger.Debug("Received message", slog.String("type", msg.Type))
		ev, ok, last := translate(msg)
		if ok {
			s.emit(ctx, ev)
		}
		if last {
			return
		}
	}
}

func (s *stream) emit(ctx context.Context, ev engine.Event) {
	select {
	case s.events <- ev:
	case <-ctx.Done():
	}
}

// translate maps a service message to an event. last reports that the
// turn is over.
func translate(msg Message) (ev engine.Event, ok, last bool) {
	ev = engine.Event{
		Offset:   ticks(msg.Offset),
		Duration: ticks(msg.Duration),
		Text:     msg.Text,
		Language: msg.Language,
	}
	switch msg.Type {
	case TypeStartDetected:
		ev.Type = engine.SpeechStart
	case TypeEndDetected:
		ev.Type = engine.SpeechEnd
	case TypeHypothesis:
		ev.Type = engine.Hypothesis
	case TypePhrase:
		ev.Type = engine.Phrase
		if msg.Status == StatusNoMatch {
			ev.Type = engine.NoMatch
		}
		if raw, err := json.Marshal(msg); err == nil {
			ev.JSON = string(raw)
		}
	case TypeError:
		ev.Type = engine.Error
		cause := fmt.Errorf("%s: %s", msg.Code, msg.Message)
		if msg.Retryable {
			ev.Err = engine.NewRecoverableError(cause, "service error")
		} else {
			ev.Err = engine.NewFatalError(cause, "service error")
		}
		return ev, true, true
	case TypeTurnEnd:
		return ev, false, true
	default:
		return ev, false, false
	}
	return ev, true, false
}

func ticks(n int64) time.Duration {
	return time.Duration(n) * (time.Second / ticksPerSecond)
}
