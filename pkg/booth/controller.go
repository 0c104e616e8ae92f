// Package booth runs capture sessions: countdown, flash and capture for each
// shot, then composition and delivery of the strip.
package booth

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-photobooth/pkg/camera"
	"github.com/teslashibe/go-photobooth/pkg/compose"
	"github.com/teslashibe/go-photobooth/pkg/delivery"
	"github.com/teslashibe/go-photobooth/pkg/frame"
)

// Compositor builds a strip from captured frames.
type Compositor interface {
	Compose(frames []frame.Frame) (*compose.Composite, error)
}

// Deliverer turns a strip into a delivery artifact. It never fails.
type Deliverer interface {
	Deliver(ctx context.Context, c *compose.Composite) delivery.Artifact
}

// Snapshot is a consistent copy of the controller state.
type Snapshot struct {
	State     State
	SessionID string
	StartedAt time.Time
	Shots     []frame.Frame
	Composite *compose.Composite
	Artifact  *delivery.Artifact
}

// Observer receives every snapshot after a state change.
// Observers run on the goroutine that made the change and must not block.
type Observer func(Snapshot)

// session is the data owned by one run.
type session struct {
	id        string
	startedAt time.Time
	shots     []frame.Frame
	composite *compose.Composite
	artifact  *delivery.Artifact
}

// Controller owns at most one session at a time.
type Controller struct {
	dev     camera.Device
	comp    Compositor
	deliver Deliverer

	ratio     frame.Ratio
	shotOpts  []int
	timing    Timing
	sleep     Sleeper
	now       func() time.Time
	newID     func() string
	logger    *slog.Logger
	observers []Observer

	mu        sync.Mutex
	state     State
	sess      *session
	starting  bool
	cancelled bool
	closed    bool
	stop      context.CancelFunc
	done      chan struct{}
}

// Option configures a Controller.
type Option func(*Controller)

// WithTiming sets the session pacing.
func WithTiming(t Timing) Option {
	return func(c *Controller) { c.timing = t }
}

// WithShotOptions sets the shot counts Start accepts.
func WithShotOptions(opts ...int) Option {
	return func(c *Controller) { c.shotOpts = slices.Clone(opts) }
}

// WithRatio sets the frame aspect ratio.
func WithRatio(r frame.Ratio) Option {
	return func(c *Controller) { c.ratio = r }
}

// WithSleeper replaces the wall-clock sleeper.
func WithSleeper(s Sleeper) Option {
	return func(c *Controller) { c.sleep = s }
}

// WithClock sets the time source used for flash timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithIDGenerator sets how session IDs are made.
func WithIDGenerator(f func() string) Option {
	return func(c *Controller) { c.newID = f }
}

// WithObserver registers an observer.
func WithObserver(o Observer) Option {
	return func(c *Controller) { c.observers = append(c.observers, o) }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// New creates an idle controller.
func New(dev camera.Device, comp Compositor, deliver Deliverer, opts ...Option) *Controller {
	c := &Controller{
		dev:      dev,
		comp:     comp,
		deliver:  deliver,
		ratio:    frame.FourThree,
		shotOpts: []int{1, 2, 3, 4},
		timing:   DefaultTiming(),
		sleep:    Sleep,
		now:      time.Now,
		newID:    uuid.NewString,
		logger:   slog.Default().With("component", "booth"),
		state:    State{Phase: PhaseIdle},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Subscribe adds an observer after construction.
func (c *Controller) Subscribe(o Observer) {
	c.mu.Lock()
	c.observers = append(c.observers, o)
	c.mu.Unlock()
}

// ShotOptions returns the accepted shot counts.
func (c *Controller) ShotOptions() []int {
	return slices.Clone(c.shotOpts)
}

// Timing returns the session pacing.
func (c *Controller) Timing() Timing {
	return c.timing
}

// Start acquires the camera and begins a session of target shots.
// ctx bounds only opening the camera; the session itself runs until it
// finishes, is cancelled, or the controller is closed.
func (c *Controller) Start(ctx context.Context, target int) (string, error) {
	if !slices.Contains(c.shotOpts, target) {
		return "", fmt.Errorf("%w: %d", ErrInvalidShotCount, target)
	}

	c.mu.Lock()
	switch {
	case c.closed:
		c.mu.Unlock()
		return "", ErrClosed
	case c.starting || !c.state.IsIdle():
		c.mu.Unlock()
		return "", ErrSessionActive
	}
	c.starting = true
	c.mu.Unlock()

	lease, err := camera.Acquire(ctx, c.dev)

	c.mu.Lock()
	c.starting = false
	if err != nil {
		c.mu.Unlock()
		c.logger.Warn("camera unavailable", "error", err)
		return "", err
	}
	if c.closed {
		c.mu.Unlock()
		lease.Release()
		return "", ErrClosed
	}

	next, err := Transition(c.state, Start{Target: target, Countdown: c.timing.countdown(0)})
	if err != nil {
		c.mu.Unlock()
		lease.Release()
		return "", err
	}

	sess := &session{id: c.newID(), startedAt: c.now()}
	runCtx, stop := context.WithCancel(context.Background())
	done := make(chan struct{})

	c.state = next
	c.sess = sess
	c.cancelled = false
	c.stop = stop
	c.done = done
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.logger.Info("session started", "session_id", sess.id, "shots", target)
	c.notify(snap)

	go c.run(runCtx, sess, lease, done)
	return sess.id, nil
}

// Cancel abandons the running session. The camera is released and held
// frames are discarded before Cancel returns. Cancelling while idle is a
// no-op; cancelling during delivery returns ErrNotCancellable.
func (c *Controller) Cancel() error {
	c.mu.Lock()
	next, err := Transition(c.state, Cancel{})
	if err != nil {
		c.mu.Unlock()
		return err
	}
	if c.sess == nil {
		c.mu.Unlock()
		return nil
	}
	c.cancelled = true
	stop, done, id := c.stop, c.done, c.sess.id
	c.mu.Unlock()

	stop()
	<-done

	c.mu.Lock()
	c.state = next
	c.sess = nil
	c.cancelled = false
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.logger.Info("session cancelled", "session_id", id)
	c.notify(snap)
	return nil
}

// Reset returns a finished session to Idle, dropping its frames and result.
func (c *Controller) Reset() error {
	c.mu.Lock()
	next, err := Transition(c.state, Reset{})
	if err != nil {
		c.mu.Unlock()
		return err
	}
	done := c.done
	c.state = next
	c.sess = nil
	snap := c.snapshotLocked()
	c.mu.Unlock()

	if done != nil {
		<-done
	}
	c.notify(snap)
	return nil
}

// Wait blocks until the current run ends or ctx is done.
func (c *Controller) Wait(ctx context.Context) error {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Close stops any running session and releases the camera. Start fails
// with ErrClosed afterwards.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.cancelled = true
	stop, done := c.stop, c.done
	c.mu.Unlock()

	if stop != nil {
		stop()
	}
	if done != nil {
		<-done
	}
	return nil
}

func (c *Controller) snapshotLocked() Snapshot {
	snap := Snapshot{State: c.state}
	if s := c.sess; s != nil {
		snap.SessionID = s.id
		snap.StartedAt = s.startedAt
		snap.Shots = slices.Clone(s.shots)
		snap.Composite = s.composite
		snap.Artifact = s.artifact
	}
	return snap
}

func (c *Controller) notify(snap Snapshot) {
	c.mu.Lock()
	observers := c.observers
	c.mu.Unlock()
	for _, o := range observers {
		o(snap)
	}
}

// apply runs e through Transition and, when accepted, mutate on the session.
// It reports false once the session has been cancelled or the event is
// rejected, which ends the run.
func (c *Controller) apply(ctx context.Context, sess *session, e Event, mutate func(*session)) bool {
	c.mu.Lock()
	if c.cancelled || c.sess != sess || ctx.Err() != nil {
		c.mu.Unlock()
		return false
	}
	next, err := Transition(c.state, e)
	if err != nil {
		c.mu.Unlock()
		c.logger.Error("transition rejected", "session_id", sess.id, "error", err)
		return false
	}
	if mutate != nil {
		mutate(sess)
	}
	c.state = next
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.notify(snap)
	return true
}

func (c *Controller) phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Phase
}

func (c *Controller) run(ctx context.Context, sess *session, lease *camera.Lease, done chan struct{}) {
	defer close(done)
	defer lease.Release()

	logger := c.logger.With("session_id", sess.id)

	for shot := 0; ; shot++ {
		for c.phase() == PhaseCountdown {
			if err := c.sleep(ctx, c.timing.Tick); err != nil {
				return
			}
			if !c.apply(ctx, sess, Tick{At: c.now()}, nil) {
				return
			}
		}

		if err := c.sleep(ctx, c.timing.CaptureDelay); err != nil {
			return
		}
		f, err := c.capture(lease, shot)
		if err != nil {
			logger.Warn("shot skipped", "shot", shot, "error", err)
			if !c.apply(ctx, sess, Skipped{}, nil) {
				return
			}
		} else {
			if !c.apply(ctx, sess, Captured{}, func(s *session) { s.shots = append(s.shots, f) }) {
				return
			}
		}

		if err := c.sleep(ctx, c.timing.CapturePause); err != nil {
			return
		}
		if !c.apply(ctx, sess, Advance{Next: c.timing.countdown(shot + 1)}, nil) {
			return
		}

		p := c.phase()
		if p == PhaseFailed {
			logger.Warn("session failed", "reason", ReasonCaptureFailure)
			return
		}
		if p != PhaseCountdown {
			break
		}
	}

	// Capture is over; the camera goes back before the slow part.
	if err := lease.Release(); err != nil {
		logger.Warn("camera release failed", "error", err)
	}

	c.mu.Lock()
	shots := slices.Clone(sess.shots)
	c.mu.Unlock()

	composite, err := c.comp.Compose(shots)
	if err != nil {
		logger.Error("composition failed", "error", err)
		c.apply(ctx, sess, Fail{Err: err}, func(s *session) { s.shots = nil })
		return
	}
	if !c.apply(ctx, sess, Composed{}, func(s *session) { s.composite = composite }) {
		return
	}

	// Delivery outlives cancellation; the pipeline bounds it with its own timeout.
	art := c.deliver.Deliver(context.WithoutCancel(ctx), composite)
	c.apply(context.WithoutCancel(ctx), sess, Delivered{}, func(s *session) { s.artifact = &art })

	logger.Info("session complete",
		"delivery", art.Kind,
		"frames", composite.Frames,
		"bytes", len(composite.Bytes),
	)
}

func (c *Controller) capture(lease *camera.Lease, shot int) (frame.Frame, error) {
	raw, err := lease.ReadFrame()
	if err != nil {
		return frame.Frame{}, fmt.Errorf("%w: %v", frame.ErrCaptureFailure, err)
	}
	return frame.Capture(raw, c.ratio, shot)
}
