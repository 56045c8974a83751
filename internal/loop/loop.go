// Package loop is a reference engine loop for driving a host.
//
// The loop owns the dispatch goroutine: every driver callback, and every
// function handed to Submit, runs on the goroutine that calls Step or Run.
package loop

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/tickcore/internal/diag"
	"github.com/roach88/tickcore/internal/host"
)

// Defaults match a 60 fps frame rate with a 50 Hz fixed step.
const (
	DefaultFrameInterval = time.Second / 60
	DefaultFixedStep     = 20 * time.Millisecond
	DefaultMaxFixedSteps = 5
)

// Target supplies the driver for each callback. It is asked again before
// every callback, so a host destroyed mid-frame stops receiving them.
type Target interface {
	Driver() (host.Driver, bool)
}

// TimeSource reads wall-clock time for frame deltas.
type TimeSource interface {
	Now() time.Time
}

type realTime struct{}

func (realTime) Now() time.Time { return time.Now() }

// Config holds loop timing.
type Config struct {
	// FrameInterval is the pacing of Run. Default: DefaultFrameInterval.
	FrameInterval time.Duration

	// FixedStep is the simulated time consumed by one OnFixedTick.
	FixedStep time.Duration

	// MaxFixedSteps caps OnFixedTick calls per frame. Accumulated time
	// beyond the cap is dropped.
	MaxFixedSteps int

	// MaxFrames stops Run after this many frames. Zero means no limit.
	MaxFrames uint64
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	if c.FrameInterval <= 0 {
		return fmt.Errorf("frame interval must be positive, got %s", c.FrameInterval)
	}
	if c.FixedStep <= 0 {
		return fmt.Errorf("fixed step must be positive, got %s", c.FixedStep)
	}
	if c.MaxFixedSteps < 1 {
		return fmt.Errorf("max fixed steps must be at least 1, got %d", c.MaxFixedSteps)
	}
	return nil
}

func (c Config) withDefaults() Config {
	if c.FrameInterval <= 0 {
		c.FrameInterval = DefaultFrameInterval
	}
	if c.FixedStep <= 0 {
		c.FixedStep = DefaultFixedStep
	}
	if c.MaxFixedSteps < 1 {
		c.MaxFixedSteps = DefaultMaxFixedSteps
	}
	return c
}

// FrameStats describes one frame.
type FrameStats struct {
	Frame      uint64
	Delta      time.Duration
	FixedSteps int
	Dropped    time.Duration // accumulator discarded by the step cap
	Driven     bool          // a live driver received OnTick
	Submitted  int           // ingress functions run before the frame
}

// Loop drives a Target frame by frame.
type Loop struct {
	target Target
	cfg    Config
	now    TimeSource
	logger *slog.Logger

	ingress     *ingressQueue
	accumulator time.Duration
	frames      uint64
	last        time.Time
}

// Option configures a Loop.
type Option func(*Loop)

// WithTimeSource sets the wall clock. Default: time.Now.
func WithTimeSource(ts TimeSource) Option {
	return func(l *Loop) {
		l.now = ts
	}
}

// WithLogger sets the loop logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loop) {
		l.logger = logger
	}
}

// New creates a loop. Zero Config fields take their defaults.
func New(target Target, cfg Config, opts ...Option) *Loop {
	l := &Loop{
		target:  target,
		cfg:     cfg.withDefaults(),
		ingress: newIngressQueue(),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.now == nil {
		l.now = realTime{}
	}
	if l.logger == nil {
		l.logger = slog.Default()
	}
	return l
}

// Config returns the effective configuration.
func (l *Loop) Config() Config { return l.cfg }

// Frames returns the number of frames stepped so far.
func (l *Loop) Frames() uint64 { return l.frames }

// Submit queues fn to run on the loop goroutine before the next frame.
// Safe to call from any goroutine. Returns false once the loop has stopped,
// either through Stop or because Run returned.
func (l *Loop) Submit(fn func()) bool {
	if fn == nil {
		return false
	}
	return l.ingress.Enqueue(fn)
}

// Pending returns the number of submitted functions not yet run.
func (l *Loop) Pending() int { return l.ingress.Len() }

// Stop makes Run return after the current frame. Safe to call from any
// goroutine, more than once.
func (l *Loop) Stop() {
	l.ingress.Close()
}

// Step runs one frame of delta dt: pending submissions, then fixed steps,
// then OnTick and OnPostTick.
func (l *Loop) Step(dt time.Duration) FrameStats {
	if dt < 0 {
		dt = 0
	}
	l.frames++
	stats := FrameStats{Frame: l.frames, Delta: dt}
	stats.Submitted = l.drain()

	l.accumulator += dt
	for l.accumulator >= l.cfg.FixedStep && stats.FixedSteps < l.cfg.MaxFixedSteps {
		l.accumulator -= l.cfg.FixedStep
		stats.FixedSteps++
		if d, ok := l.target.Driver(); ok {
			d.OnFixedTick(l.cfg.FixedStep)
		}
	}
	if l.accumulator >= l.cfg.FixedStep {
		stats.Dropped = l.accumulator - l.accumulator%l.cfg.FixedStep
		l.accumulator %= l.cfg.FixedStep
		l.logger.Warn("fixed steps capped",
			"frame", l.frames,
			"max_fixed_steps", l.cfg.MaxFixedSteps,
			"dropped", stats.Dropped,
		)
	}

	if d, ok := l.target.Driver(); ok {
		d.OnTick(dt)
		stats.Driven = true
	}
	if d, ok := l.target.Driver(); ok {
		d.OnPostTick()
	}

	diag.Debug(l.logger, "frame",
		"frame", stats.Frame,
		"delta", dt,
		"fixed_steps", stats.FixedSteps,
		"driven", stats.Driven,
	)
	return stats
}

// Run paces frames every FrameInterval until ctx is done, Stop is called,
// or MaxFrames frames have run. Returns ctx.Err() on cancellation and nil
// otherwise.
//
// A Loop runs once. Run stops the loop on return, so later Submit calls
// return false and a second Run returns nil without stepping a frame. Build
// a new Loop to run again; Step keeps working for manual driving.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.cfg.FrameInterval)
	defer ticker.Stop()
	defer l.ingress.Close()

	l.last = l.now.Now()
	l.logger.Info("loop started",
		"frame_interval", l.cfg.FrameInterval,
		"fixed_step", l.cfg.FixedStep,
		"max_frames", l.cfg.MaxFrames,
	)

	wake := l.ingress.Wait()
	for {
		if l.cfg.MaxFrames > 0 && l.frames >= l.cfg.MaxFrames {
			l.logger.Info("loop finished", "frames", l.frames)
			return nil
		}

		select {
		case <-ctx.Done():
			l.drain()
			l.logger.Info("loop cancelled", "frames", l.frames)
			return ctx.Err()
		case _, open := <-wake:
			if !open {
				l.drain()
				l.logger.Info("loop stopped", "frames", l.frames)
				return nil
			}
			// Run submissions promptly instead of waiting for the frame.
			l.drain()
		case <-ticker.C:
			now := l.now.Now()
			l.Step(now.Sub(l.last))
			l.last = now
		}
	}
}

// drain runs every queued submission, including ones queued by earlier
// submissions.
func (l *Loop) drain() int {
	n := 0
	for {
		fn, ok := l.ingress.TryDequeue()
		if !ok {
			return n
		}
		fn()
		n++
	}
}
