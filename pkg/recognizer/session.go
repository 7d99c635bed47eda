package recognizer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/chriscow/speech-sdk-go/pkg/audio"
	"github.com/chriscow/speech-sdk-go/pkg/audio/pump"
	"github.com/chriscow/speech-sdk-go/pkg/engine"
	"github.com/chriscow/speech-sdk-go/pkg/keyword"
	"github.com/chriscow/speech-sdk-go/pkg/properties"
	"github.com/chriscow/speech-sdk-go/pkg/spx"
)

// DefaultLanguage is used when SpeechServiceConnection_RecoLanguage is not
// set.
const DefaultLanguage = "en-US"

var errStopped = spx.Errorf(spx.ErrCanceled, "recognizer", "recognition stopped before a result")

// run drives attempt a from SessionStarted to SessionStopped. Single-shot
// attempts return the result they resolved with, which is a Canceled
// result when the attempt failed.
func (r *Recognizer) run(a *attempt) (*Result, error) {
	logger := r.logger.With(
		slog.String("session", a.sessionID),
		slog.String("mode", a.mode.String()),
	)
	r.Properties().SetString(properties.SessionID, a.sessionID)

	r.SessionStarted.Fire(SessionEvent{SessionID: a.sessionID})
	defer r.SessionStopped.Fire(SessionEvent{SessionID: a.sessionID})
	logger.Info("recognition session started")

	var (
		final   *Result
		retries int
	)
	for {
		res, err := r.runStream(a, logger)
		if res != nil {
			final = res
			retries = 0
		}

		switch {
		case err == nil:
		case a.stopped() && (isStop(err) || engine.IsRecoverable(err)):
			logger.Debug("session ended by stop request", slog.String("error", err.Error()))
			err = nil
		case a.mode != ModeSingleShot && engine.IsRecoverable(err) && !r.retry.Exhausted(retries+1):
			retries++
			delay := r.retry.Delay(retries)
			logger.Warn("recognition stream failed, reconnecting",
				slog.String("error", err.Error()),
				slog.Int("attempt", retries),
				slog.Duration("delay", delay),
			)
			if r.waitRetry(a, delay) {
				continue
			}
			err = nil
		default:
			logger.Error("recognition canceled", slog.String("error", err.Error()))
			final = canceledResult(err)
			r.Canceled.Fire(RecognitionEvent{SessionID: a.sessionID, Result: final})
			return final, err
		}

		if a.mode == ModeSingleShot && final == nil {
			final = r.unresolved(a)
		}
		logger.Info("recognition session stopped")
		return final, nil
	}
}

// unresolved settles a single-shot attempt whose stream ended without a
// final result.
func (r *Recognizer) unresolved(a *attempt) *Result {
	if a.stopped() {
		res := canceledResult(errStopped)
		r.Canceled.Fire(RecognitionEvent{SessionID: a.sessionID, Result: res})
		return res
	}
	res := newResult(ReasonNoMatch, "", 0, 0)
	r.FinalResult.Fire(RecognitionEvent{SessionID: a.sessionID, Result: res})
	return res
}

func (r *Recognizer) waitRetry(a *attempt, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return !a.stopped()
	case <-a.stop.Done():
		return false
	case <-a.ctx.Done():
		return false
	}
}

// runStream pumps a fresh audio source into the engine until the stream
// ends. A pump stops for good, so every stream gets its own source.
func (r *Recognizer) runStream(a *attempt, logger *slog.Logger) (*Result, error) {
	if a.stopped() {
		return nil, spx.Wrap(spx.ErrCanceled, "recognizer", context.Canceled)
	}
	eng, err := r.engineFor()
	if err != nil {
		return nil, err
	}

	src, err := pump.NewFromProperties(r.scope)
	if err != nil {
		return nil, err
	}
	defer closeSource(src)

	format, err := src.Format()
	if err != nil {
		return nil, err
	}
	logger.Debug("audio source ready", slog.String("format", format.String()))

	if a.mode == ModeKeyword {
		return r.runKeyword(a, eng, src, format)
	}

	g, ctx := errgroup.WithContext(a.ctx)
	stream, err := eng.NewStream(ctx, r.streamConfig(a, format, a.mode == ModeContinuous))
	if err != nil {
		return nil, err
	}
	if err := src.StartPump(&streamProcessor{stream: stream}); err != nil {
		stream.CloseSend()
		return nil, err
	}

	var final *Result
	eventsDone := make(chan struct{})
	g.Go(func() error {
		return watchPump(ctx, a, src, eventsDone)
	})
	g.Go(func() error {
		defer close(eventsDone)
		res, err := r.consume(ctx, a, stream)
		final = res
		return err
	})
	err = g.Wait()
	return final, err
}

func (r *Recognizer) streamConfig(a *attempt, format audio.Format, continuous bool) engine.StreamConfig {
	return engine.StreamConfig{
		Format:     format,
		Language:   r.Properties().GetString(properties.RecognitionLanguage, DefaultLanguage),
		SessionID:  a.sessionID,
		Continuous: continuous,
	}
}

// watchPump stops src once the attempt is stopped, the events are done or
// the group fails. It returns the pump's error when the pump ends first.
func watchPump(ctx context.Context, a *attempt, src pump.AudioPump, eventsDone <-chan struct{}) error {
	select {
	case <-src.Done():
		return src.Err()
	case <-a.stop.Done():
	case <-ctx.Done():
	case <-eventsDone:
	}
	if err := src.StopPump(); err != nil {
		return err
	}
	return src.Err()
}

// consume dispatches stream events until the stream closes. Only
// continuous attempts keep listening after the first final result.
func (r *Recognizer) consume(ctx context.Context, a *attempt, stream engine.Stream) (*Result, error) {
	var final *Result
	for {
		select {
		case <-ctx.Done():
			return final, ctx.Err()
		case ev, ok := <-stream.Events():
			if !ok {
				return final, nil
			}
			res, err := r.dispatch(a, ev)
			if err != nil {
				return final, err
			}
			if res != nil {
				final = res
				if a.mode != ModeContinuous {
					return final, nil
				}
			}
		}
	}
}

// dispatch turns one engine event into recognizer events. It returns the
// result of final events.
func (r *Recognizer) dispatch(a *attempt, ev engine.Event) (*Result, error) {
	switch ev.Type {
	case engine.SpeechStart:
		r.SpeechStartDetected.Fire(SpeechEvent{SessionID: a.sessionID, Offset: ev.Offset})
	case engine.SpeechEnd:
		r.SpeechEndDetected.Fire(SpeechEvent{SessionID: a.sessionID, Offset: ev.Offset})
	case engine.Hypothesis:
		res := resultFrom(ReasonIntermediateResult, ev)
		r.IntermediateResult.Fire(RecognitionEvent{SessionID: a.sessionID, Result: res})
	case engine.Phrase:
		res := resultFrom(ReasonRecognized, ev)
		r.FinalResult.Fire(RecognitionEvent{SessionID: a.sessionID, Result: res})
		return res, nil
	case engine.NoMatch:
		res := resultFrom(ReasonNoMatch, ev)
		r.FinalResult.Fire(RecognitionEvent{SessionID: a.sessionID, Result: res})
		return res, nil
	case engine.Error:
		if ev.Err == nil {
			return nil, spx.Errorf(spx.ErrUnexpected, "recognizer", "engine reported an error without details")
		}
		return nil, ev.Err
	}
	return nil, nil
}

func resultFrom(reason Reason, ev engine.Event) *Result {
	res := newResult(reason, ev.Text, ev.Offset, ev.Duration)
	if ev.JSON != "" {
		res.Properties.SetString(properties.JSONResult, ev.JSON)
	}
	return res
}

func closeSource(src pump.AudioPump) {
	if c, ok := src.(io.Closer); ok {
		c.Close()
	}
}

// streamProcessor forwards pumped audio to an engine stream.
type streamProcessor struct {
	stream engine.Stream
}

func (p *streamProcessor) SetFormat(audio.Format) error { return nil }

func (p *streamProcessor) ProcessAudio(frame audio.Frame) error {
	err := p.stream.Push(frame)
	if errors.Is(err, engine.ErrStreamClosed) {
		return pump.ErrStopRequested
	}
	return err
}

func (p *streamProcessor) EndOfStream() error {
	return p.stream.CloseSend()
}

// runKeyword feeds the source to the spotter and opens a single-shot engine
// stream after every detection.
func (r *Recognizer) runKeyword(a *attempt, eng engine.Engine, src pump.AudioPump, format audio.Format) (*Result, error) {
	g, ctx := errgroup.WithContext(a.ctx)
	proc := &keywordProcessor{
		r:       r,
		a:       a,
		ctx:     ctx,
		g:       g,
		engine:  eng,
		format:  format,
		spotter: a.spotter,
	}
	a.spotter.Reset()
	if err := src.StartPump(proc); err != nil {
		return nil, err
	}
	g.Go(func() error {
		return watchPump(ctx, a, src, nil)
	})
	err := g.Wait()
	return proc.result(), err
}

// keywordProcessor runs on the pump goroutine. It alternates between
// spotting and forwarding the utterance that follows a detection.
type keywordProcessor struct {
	r       *Recognizer
	a       *attempt
	ctx     context.Context
	g       *errgroup.Group
	engine  engine.Engine
	format  audio.Format
	spotter keyword.Spotter

	stream     engine.Stream
	streamDone chan struct{}

	mu   sync.Mutex
	last *Result
}

func (p *keywordProcessor) SetFormat(f audio.Format) error {
	p.format = f
	return nil
}

func (p *keywordProcessor) ProcessAudio(frame audio.Frame) error {
	if p.stream != nil {
		select {
		case <-p.streamDone:
			p.endUtterance()
		default:
			err := p.stream.Push(frame)
			if !errors.Is(err, engine.ErrStreamClosed) {
				return err
			}
			// the utterance is over; this frame goes back to the spotter
			p.endUtterance()
		}
	}

	det, err := p.spotter.Process(frame)
	if err != nil || det == nil {
		return err
	}
	p.r.KeywordDetected.Fire(KeywordEvent{
		SessionID: p.a.sessionID,
		Keyword:   det.Keyword,
		Offset:    det.Offset,
		Duration:  det.Duration,
	})

	stream, err := p.engine.NewStream(p.ctx, p.r.streamConfig(p.a, p.format, false))
	if err != nil {
		return err
	}
	done := make(chan struct{})
	p.stream, p.streamDone = stream, done
	p.g.Go(func() error {
		defer close(done)
		res, err := p.r.consume(p.ctx, p.a, stream)
		if res != nil {
			p.mu.Lock()
			p.last = res
			p.mu.Unlock()
		}
		return err
	})
	return nil
}

func (p *keywordProcessor) endUtterance() {
	p.stream.CloseSend()
	p.stream, p.streamDone = nil, nil
	p.spotter.Reset()
}

func (p *keywordProcessor) EndOfStream() error {
	if p.stream == nil {
		return nil
	}
	return p.stream.CloseSend()
}

func (p *keywordProcessor) result() *Result {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}
