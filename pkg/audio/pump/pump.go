package pump

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/chriscow/speech-sdk-go/pkg/audio"
	"github.com/chriscow/speech-sdk-go/pkg/capability"
	"github.com/chriscow/speech-sdk-go/pkg/site"
	"github.com/chriscow/speech-sdk-go/pkg/spx"
)

// DefaultFrameDuration is the amount of audio delivered per callback.
const DefaultFrameDuration = 100 * time.Millisecond

// Pump moves frames from a Reader to a Processor on its own goroutine.
//
// Frames are paced at P percent of real time: a frame of duration d is
// followed by a sleep of d*100/P before delivery. At the end of the source
// the pump either rewinds (continuous loop), advances to the next clip
// (iterative loop) or signals end of stream and stops.
type Pump struct {
	site.Holder
	caps *capability.Map

	mu            sync.Mutex
	reader        Reader
	state         State
	realTime      int
	continuous    bool
	iterative     bool
	frameDuration time.Duration
	resume        chan struct{} // closed by ResumePump
	stop          *spx.CancelToken
	done          chan struct{}
	err           error
}

// New creates an idle pump without a reader. Pacing is off until
// SetRealTimePercentage is called.
func New() *Pump {
	p := &Pump{
		frameDuration: DefaultFrameDuration,
		done:          make(chan struct{}),
	}
	p.caps = capability.NewMap(
		capability.Entry[AudioPump](p),
		capability.Entry[ReaderInit](p),
		capability.Entry[RealTime](p),
		capability.Entry[Looping](p),
		capability.Entry[site.ObjectWithSite](p),
	)
	return p
}

// QueryCapability implements capability.Queryable.
func (p *Pump) QueryCapability(id capability.ID) any { return p.caps.QueryCapability(id) }

// SetReader binds the source. It may only be called while idle.
func (p *Pump) SetReader(r Reader) error {
	if r == nil {
		return spx.Errorf(spx.ErrInvalidArgument, "pump.SetReader", "nil reader")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != Idle {
		return spx.Wrap(spx.ErrAlreadyInitialized, "pump.SetReader", fmt.Errorf("pump is %s", p.state))
	}
	p.reader = r
	return nil
}

// Format returns the format of the bound reader.
func (p *Pump) Format() (audio.Format, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.reader == nil {
		return audio.Format{}, spx.Wrap(spx.ErrUninitialized, "pump.Format", errors.New("no reader"))
	}
	return p.reader.Format(), nil
}

func (p *Pump) SetRealTimePercentage(pct int) {
	p.mu.Lock()
	p.realTime = clampPercentage(pct)
	p.mu.Unlock()
}

func (p *Pump) SetContinuousLoop(on bool) {
	p.mu.Lock()
	p.continuous = on
	p.mu.Unlock()
}

func (p *Pump) SetIterativeLoop(on bool) {
	p.mu.Lock()
	p.iterative = on
	p.mu.Unlock()
}

// SetFrameDuration sets the amount of audio per delivered frame.
func (p *Pump) SetFrameDuration(d time.Duration) {
	if d <= 0 {
		d = DefaultFrameDuration
	}
	p.mu.Lock()
	p.frameDuration = d
	p.mu.Unlock()
}

// State returns the current lifecycle state.
func (p *Pump) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Done is closed when the delivery loop has exited.
func (p *Pump) Done() <-chan struct{} {
	return p.done
}

// Err returns the error that ended the delivery loop, if any.
func (p *Pump) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// StartPump starts delivering to proc on a new goroutine.
func (p *Pump) StartPump(proc Processor) error {
	if proc == nil {
		return spx.Errorf(spx.ErrInvalidArgument, "pump.Start", "nil processor")
	}

	p.mu.Lock()
	if p.reader == nil {
		p.mu.Unlock()
		return spx.Wrap(spx.ErrUninitialized, "pump.Start", errors.New("no reader bound"))
	}
	if p.state != Idle {
		state := p.state
		p.mu.Unlock()
		return spx.Wrap(spx.ErrAlreadyInitialized, "pump.Start", fmt.Errorf("pump is %s", state))
	}
	format := p.reader.Format()
	p.mu.Unlock()

	// The processor may query the pump from SetFormat.
	if err := proc.SetFormat(format); err != nil {
		return fmt.Errorf("processor rejected format %s: %w", format, err)
	}

	p.mu.Lock()
	if p.state != Idle {
		state := p.state
		p.mu.Unlock()
		return spx.Wrap(spx.ErrAlreadyInitialized, "pump.Start", fmt.Errorf("pump is %s", state))
	}
	p.state = Running
	p.stop = spx.NewCancelToken()
	p.mu.Unlock()

	site.LoggerOf(p.Site()).Debug("audio pump started",
		slog.String("format", format.String()),
		slog.Int("real_time_pct", p.percentage()))

	go p.run(proc, p.stop)
	return nil
}

// StopPump requests the loop to stop and waits for it to exit. After it
// returns no processor callback runs. Stopping an idle or stopped pump is a
// no-op. It must not be called from a processor callback; return
// ErrStopRequested from ProcessAudio instead.
func (p *Pump) StopPump() error {
	p.mu.Lock()
	switch p.state {
	case Idle, Stopped:
		p.mu.Unlock()
		return nil
	}
	stop := p.stop
	p.mu.Unlock()

	stop.Cancel()
	<-p.done
	return nil
}

// PausePump holds delivery between frames until ResumePump.
func (p *Pump) PausePump() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch p.state {
	case Paused:
		return nil
	case Running:
		p.state = Paused
		p.resume = make(chan struct{})
		return nil
	default:
		return spx.Wrap(spx.ErrUninitialized, "pump.Pause", fmt.Errorf("pump is %s", p.state))
	}
}

// ResumePump continues a paused pump from where it left off.
func (p *Pump) ResumePump() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch p.state {
	case Running:
		return nil
	case Paused:
		p.state = Running
		close(p.resume)
		p.resume = nil
		return nil
	default:
		return spx.Wrap(spx.ErrUninitialized, "pump.Resume", fmt.Errorf("pump is %s", p.state))
	}
}

// Close stops the pump and closes its reader.
func (p *Pump) Close() error {
	_ = p.StopPump()

	p.mu.Lock()
	r := p.reader
	p.reader = nil
	if p.state == Idle {
		p.state = Stopped
		close(p.done)
	}
	p.mu.Unlock()

	if r != nil {
		return r.Close()
	}
	return nil
}

type loopConfig struct {
	reader     Reader
	realTime   int
	continuous bool
	iterative  bool
	frameSize  int
}

func (p *Pump) snapshot() loopConfig {
	p.mu.Lock()
	defer p.mu.Unlock()

	format := p.reader.Format()
	size := format.BytesFor(p.frameDuration)
	if size <= 0 {
		size = max(format.BlockAlign(), 1)
	}
	return loopConfig{
		reader:     p.reader,
		realTime:   p.realTime,
		continuous: p.continuous,
		iterative:  p.iterative,
		frameSize:  size,
	}
}

func (p *Pump) percentage() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.realTime
}

func (p *Pump) run(proc Processor, stop *spx.CancelToken) {
	logger := site.LoggerOf(p.Site())
	var err error
	defer func() {
		if r := recover(); r != nil {
			logger.Error("audio pump panicked", slog.Any("panic", r))
			err = spx.Errorf(spx.ErrUnexpected, "pump.run", "panic: %v", r)
		}
		p.finish(err)
	}()

	err = p.deliver(proc, stop, logger)
}

// deliver is the frame loop. It returns nil when the source ended or stop
// was requested, and the failure otherwise.
func (p *Pump) deliver(proc Processor, stop *spx.CancelToken, logger *slog.Logger) error {
	cfg := p.snapshot()
	format := cfg.reader.Format()
	live := isLive(cfg.reader)
	observer, _ := lookup[ClipObserver](proc)

	var offset time.Duration
	buf := make([]byte, cfg.frameSize)
	for {
		if !p.waitWhilePaused(stop) {
			return proc.EndOfStream()
		}

		n, readErr := cfg.reader.Read(buf)
		if n > 0 {
			frame := audio.Frame{Data: append([]byte(nil), buf[:n]...), Format: format, Offset: offset}
			d := frame.Duration()

			if cfg.realTime > 0 && !live {
				if !sleep(d*100/time.Duration(cfg.realTime), stop) {
					return proc.EndOfStream()
				}
			}
			if stop.Canceled() {
				return proc.EndOfStream()
			}

			if err := proc.ProcessAudio(frame); err != nil {
				if errors.Is(err, ErrStopRequested) {
					return proc.EndOfStream()
				}
				return fmt.Errorf("processor failed: %w", err)
			}
			offset += d
		}

		switch {
		case readErr == nil:
			continue
		case !errors.Is(readErr, io.EOF):
			return fmt.Errorf("failed to read audio: %w", readErr)
		}

		looped, err := p.endOfSource(cfg, observer, logger)
		if err != nil {
			return err
		}
		if !looped {
			return proc.EndOfStream()
		}
	}
}

// endOfSource applies the looping policy. It reports whether delivery
// should continue.
func (p *Pump) endOfSource(cfg loopConfig, observer ClipObserver, logger *slog.Logger) (bool, error) {
	switch {
	case cfg.continuous:
		seeker, ok := lookup[Seeker](cfg.reader)
		if !ok {
			logger.Warn("continuous loop requested on a source that cannot rewind")
			return false, nil
		}
		if err := seeker.Rewind(); err != nil {
			return false, fmt.Errorf("failed to rewind source: %w", err)
		}
		return true, nil

	case cfg.iterative:
		advanced := false
		if adv, ok := lookup[ClipAdvancer](cfg.reader); ok {
			more, err := adv.NextClip()
			if err != nil {
				return false, fmt.Errorf("failed to advance clip: %w", err)
			}
			advanced = more
		}
		if !advanced {
			seeker, ok := lookup[Seeker](cfg.reader)
			if !ok {
				logger.Warn("iterative loop requested on a source without clips")
				return false, nil
			}
			if err := seeker.Rewind(); err != nil {
				return false, fmt.Errorf("failed to rewind source: %w", err)
			}
		}
		if observer != nil {
			observer.ClipBoundary()
		}
		return true, nil
	}
	return false, nil
}

// waitWhilePaused blocks while paused. It returns false once stop is
// requested.
func (p *Pump) waitWhilePaused(stop *spx.CancelToken) bool {
	for {
		p.mu.Lock()
		resume := p.resume
		paused := p.state == Paused
		p.mu.Unlock()

		if !paused {
			return !stop.Canceled()
		}
		select {
		case <-resume:
		case <-stop.Done():
			return false
		}
	}
}

func (p *Pump) finish(err error) {
	p.mu.Lock()
	p.state = Stopped
	p.err = err
	p.resume = nil
	p.mu.Unlock()

	if err != nil {
		site.LoggerOf(p.Site()).Error("audio pump stopped", slog.String("error", err.Error()))
	} else {
		site.LoggerOf(p.Site()).Debug("audio pump stopped")
	}
	close(p.done)
}

// sleep waits for d or until stop. It reports whether the full wait elapsed.
func sleep(d time.Duration, stop *spx.CancelToken) bool {
	if d <= 0 {
		return !stop.Canceled()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-stop.Done():
		return false
	}
}
