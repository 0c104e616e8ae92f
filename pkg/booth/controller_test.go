package booth_test

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"sync"
	"testing"
	"time"

	"github.com/teslashibe/go-photobooth/internal/log"
	"github.com/teslashibe/go-photobooth/pkg/booth"
	"github.com/teslashibe/go-photobooth/pkg/camera"
	"github.com/teslashibe/go-photobooth/pkg/compose"
	"github.com/teslashibe/go-photobooth/pkg/delivery"
	"github.com/teslashibe/go-photobooth/pkg/frame"
)

// The camera lease is process-wide, so these tests run sequentially and
// every controller is closed before the next test starts.

func instant(ctx context.Context, d time.Duration) error { return ctx.Err() }

// blockAfterTicks sleeps instantly until more than n countdown ticks have
// passed, then signals entered and blocks until cancelled.
func blockAfterTicks(n int, entered chan<- struct{}) booth.Sleeper {
	ticks := 0
	return func(ctx context.Context, d time.Duration) error {
		if d == time.Second {
			ticks++
			if ticks > n {
				entered <- struct{}{}
				<-ctx.Done()
				return ctx.Err()
			}
		}
		return ctx.Err()
	}
}

type recorder struct {
	mu    sync.Mutex
	snaps []booth.Snapshot
}

func (r *recorder) observe(s booth.Snapshot) {
	r.mu.Lock()
	r.snaps = append(r.snaps, s)
	r.mu.Unlock()
}

func (r *recorder) countdowns() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []int
	for _, s := range r.snaps {
		if s.State.Phase == booth.PhaseCountdown {
			out = append(out, s.State.Remaining)
		}
	}
	return out
}

type fakeCompositor struct {
	err   error
	calls int
}

func (f *fakeCompositor) Compose(frames []frame.Frame) (*compose.Composite, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &compose.Composite{Width: 84, Height: 100, Bytes: []byte{0xFF, 0xD8, 0xFF, 0xD9}, Frames: len(frames)}, nil
}

func newCompositor(t *testing.T) *compose.Compositor {
	t.Helper()
	c, err := compose.New(compose.WithLogger(log.Discard()))
	if err != nil {
		t.Fatalf("compose.New: %v", err)
	}
	return c
}

func newPipeline(tr delivery.Transport) *delivery.Pipeline {
	return delivery.NewPipeline(tr, delivery.WithLogger(log.Discard()))
}

func newController(t *testing.T, dev camera.Device, comp booth.Compositor, d booth.Deliverer, opts ...booth.Option) *booth.Controller {
	t.Helper()
	base := []booth.Option{
		booth.WithSleeper(instant),
		booth.WithLogger(log.Discard()),
	}
	c := booth.New(dev, comp, d, append(base, opts...)...)
	t.Cleanup(func() { c.Close() })
	return c
}

func wait(t *testing.T, c *booth.Controller) booth.Snapshot {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Wait(ctx); err != nil {
		t.Fatalf("session did not finish: %v", err)
	}
	return c.Snapshot()
}

func TestController_CompleteRemote(t *testing.T) {
	dev := camera.Sequence(64, 48, nil, nil)
	rec := &recorder{}
	c := newController(t, dev, newCompositor(t),
		newPipeline(delivery.SucceedingTransport("https://example/strip.jpg")),
		booth.WithObserver(rec.observe))

	id, err := c.Start(context.Background(), 3)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	snap := wait(t, c)

	if snap.State.Phase != booth.PhaseComplete {
		t.Fatalf("phase = %s (%s)", snap.State.Phase, snap.State.Reason)
	}
	if snap.SessionID != id || id == "" {
		t.Errorf("session id = %q, Start returned %q", snap.SessionID, id)
	}
	if len(snap.Shots) != 3 {
		t.Fatalf("shots = %d, want 3", len(snap.Shots))
	}
	for i, f := range snap.Shots {
		if f.Index() != i {
			t.Errorf("shot %d has index %d", i, f.Index())
		}
	}

	want := compose.Size(3, 64, 48, 10, 120)
	if snap.Composite == nil || snap.Composite.Width != want.X || snap.Composite.Height != want.Y {
		t.Fatalf("composite = %+v, want %v", snap.Composite, want)
	}
	if snap.Artifact == nil || !snap.Artifact.IsRemote() || snap.Artifact.Remote.URL != "https://example/strip.jpg" {
		t.Errorf("artifact = %+v", snap.Artifact)
	}

	if got, want := fmt.Sprint(rec.countdowns()), "[5 4 3 2 1 3 2 1 3 2 1]"; got != want {
		t.Errorf("countdown = %s, want %s", got, want)
	}
	if dev.CallCount("Open") != 1 || dev.CallCount("Close") != 1 {
		t.Errorf("Open=%d Close=%d, want 1 each", dev.CallCount("Open"), dev.CallCount("Close"))
	}
}

func TestController_CompleteLocalFallback(t *testing.T) {
	dev := camera.Sequence(64, 48, nil, nil)
	c := newController(t, dev, newCompositor(t),
		newPipeline(delivery.FailingTransport(errors.New("offline"))))

	if _, err := c.Start(context.Background(), 1); err != nil {
		t.Fatalf("Start: %v", err)
	}
	snap := wait(t, c)

	if snap.State.Phase != booth.PhaseComplete {
		t.Fatalf("phase = %s", snap.State.Phase)
	}
	if snap.Artifact == nil || snap.Artifact.Kind != delivery.KindLocal {
		t.Fatalf("artifact = %+v", snap.Artifact)
	}
	if len(snap.Artifact.Local.Bytes) != len(snap.Composite.Bytes) {
		t.Error("local artifact does not carry the composite bytes")
	}
}

func TestController_SkippedShot(t *testing.T) {
	red := color.RGBA{R: 0xFF, A: 0xFF}
	dev := camera.Sequence(64, 48, []color.RGBA{red}, map[int]bool{0: true})
	c := newController(t, dev, newCompositor(t), newPipeline(delivery.Disabled{}))

	if _, err := c.Start(context.Background(), 3); err != nil {
		t.Fatalf("Start: %v", err)
	}
	snap := wait(t, c)

	if snap.State.Phase != booth.PhaseComplete {
		t.Fatalf("phase = %s", snap.State.Phase)
	}
	if len(snap.Shots) != 2 || snap.State.Skipped != 1 {
		t.Fatalf("shots = %d skipped = %d, want 2 and 1", len(snap.Shots), snap.State.Skipped)
	}
	if snap.Shots[0].Index() != 1 || snap.Shots[1].Index() != 2 {
		t.Errorf("indices = %d,%d, want 1,2", snap.Shots[0].Index(), snap.Shots[1].Index())
	}
	if snap.Composite.Frames != 2 {
		t.Errorf("composite frames = %d", snap.Composite.Frames)
	}
	if dev.CallCount("ReadFrame") != 3 {
		t.Errorf("ReadFrame = %d, failed captures must not be retried", dev.CallCount("ReadFrame"))
	}
}

func TestController_AllCapturesFail(t *testing.T) {
	dev := camera.Sequence(64, 48, nil, map[int]bool{0: true, 1: true})
	comp := &fakeCompositor{}
	c := newController(t, dev, comp, newPipeline(delivery.NewMockTransport()))

	if _, err := c.Start(context.Background(), 2); err != nil {
		t.Fatalf("Start: %v", err)
	}
	snap := wait(t, c)

	if snap.State.Phase != booth.PhaseFailed || snap.State.Reason != booth.ReasonCaptureFailure {
		t.Fatalf("state = %+v", snap.State)
	}
	if comp.calls != 0 {
		t.Error("compositor should not run without frames")
	}
	if dev.CallCount("Close") != 1 {
		t.Errorf("Close = %d, want 1", dev.CallCount("Close"))
	}
}

func TestController_CompositionFailure(t *testing.T) {
	dev := camera.Sequence(64, 48, nil, nil)
	comp := &fakeCompositor{err: fmt.Errorf("%w: out of memory", compose.ErrCompositionFailure)}
	transport := delivery.NewMockTransport()
	c := newController(t, dev, comp, newPipeline(transport))

	if _, err := c.Start(context.Background(), 2); err != nil {
		t.Fatalf("Start: %v", err)
	}
	snap := wait(t, c)

	if snap.State.Phase != booth.PhaseFailed || snap.State.Reason != booth.ReasonCompositionFailure {
		t.Fatalf("state = %+v", snap.State)
	}
	if len(snap.Shots) != 0 {
		t.Errorf("failed session still holds %d frames", len(snap.Shots))
	}
	if transport.CallCount() != 0 {
		t.Error("nothing should be uploaded after a composition failure")
	}
}

func TestController_CancelDuringCountdown(t *testing.T) {
	dev := camera.Sequence(64, 48, nil, nil)
	entered := make(chan struct{}, 1)
	rec := &recorder{}
	c := newController(t, dev, &fakeCompositor{}, newPipeline(delivery.NewMockTransport()),
		booth.WithSleeper(blockAfterTicks(0, entered)),
		booth.WithObserver(rec.observe))

	if _, err := c.Start(context.Background(), 3); err != nil {
		t.Fatalf("Start: %v", err)
	}
	<-entered

	if err := c.Cancel(); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	snap := c.Snapshot()
	if !snap.State.IsIdle() || snap.SessionID != "" || len(snap.Shots) != 0 {
		t.Errorf("after cancel: %+v", snap)
	}
	if dev.CallCount("Close") != 1 {
		t.Errorf("Close = %d, want exactly 1", dev.CallCount("Close"))
	}
	if dev.CallCount("ReadFrame") != 0 {
		t.Error("camera was read during countdown")
	}

	// The camera is free again.
	if _, err := c.Start(context.Background(), 1); err != nil {
		t.Fatalf("restart after cancel: %v", err)
	}
	c.Close()
	if dev.CallCount("Close") != 2 {
		t.Errorf("Close = %d after second session, want 2", dev.CallCount("Close"))
	}
}

func TestController_CancelDiscardsCapturedFrames(t *testing.T) {
	dev := camera.Sequence(64, 48, nil, nil)
	entered := make(chan struct{}, 1)
	c := newController(t, dev, &fakeCompositor{}, newPipeline(delivery.NewMockTransport()),
		booth.WithSleeper(blockAfterTicks(5, entered)))

	if _, err := c.Start(context.Background(), 3); err != nil {
		t.Fatalf("Start: %v", err)
	}
	<-entered

	before := c.Snapshot()
	if before.State.Phase != booth.PhaseCountdown || before.State.Shot != 1 || len(before.Shots) != 1 {
		t.Fatalf("before cancel: state %+v with %d shots", before.State, len(before.Shots))
	}

	if err := c.Cancel(); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if after := c.Snapshot(); len(after.Shots) != 0 || !after.State.IsIdle() {
		t.Errorf("after cancel: state %+v with %d shots", after.State, len(after.Shots))
	}
	if dev.CallCount("Close") != 1 {
		t.Errorf("Close = %d, want 1", dev.CallCount("Close"))
	}
}

func TestController_CancelDuringDelivery(t *testing.T) {
	uploading := make(chan struct{})
	release := make(chan struct{})
	transport := &delivery.MockTransport{UploadFunc: func(ctx context.Context, u delivery.Upload) (*delivery.UploadResult, error) {
		close(uploading)
		<-release
		return &delivery.UploadResult{Status: delivery.StatusSuccess, URL: "https://example/late.jpg"}, nil
	}}
	c := newController(t, camera.Sequence(64, 48, nil, nil), &fakeCompositor{}, newPipeline(transport))

	if _, err := c.Start(context.Background(), 1); err != nil {
		t.Fatalf("Start: %v", err)
	}
	<-uploading

	if err := c.Cancel(); !errors.Is(err, booth.ErrNotCancellable) {
		t.Errorf("Cancel during delivery = %v, want ErrNotCancellable", err)
	}
	close(release)

	snap := wait(t, c)
	if snap.State.Phase != booth.PhaseComplete || !snap.Artifact.IsRemote() {
		t.Errorf("delivery did not finish: %+v", snap.State)
	}
}

func TestController_StartErrors(t *testing.T) {
	t.Run("invalid shot count", func(t *testing.T) {
		dev := camera.NewMock()
		c := newController(t, dev, &fakeCompositor{}, newPipeline(delivery.NewMockTransport()))

		for _, n := range []int{0, 5, -1} {
			if _, err := c.Start(context.Background(), n); !errors.Is(err, booth.ErrInvalidShotCount) {
				t.Errorf("Start(%d) = %v, want ErrInvalidShotCount", n, err)
			}
		}
		if dev.CallCount("Open") != 0 {
			t.Error("camera opened for an invalid request")
		}
	})

	t.Run("device unavailable", func(t *testing.T) {
		c := newController(t, camera.Unavailable(), &fakeCompositor{}, newPipeline(delivery.NewMockTransport()))

		_, err := c.Start(context.Background(), 1)
		if !errors.Is(err, camera.ErrDeviceUnavailable) {
			t.Fatalf("Start = %v, want ErrDeviceUnavailable", err)
		}
		if !c.Snapshot().State.IsIdle() {
			t.Error("controller left Idle after a failed start")
		}
	})

	t.Run("session active", func(t *testing.T) {
		entered := make(chan struct{}, 1)
		c := newController(t, camera.NewMock(), &fakeCompositor{}, newPipeline(delivery.NewMockTransport()),
			booth.WithSleeper(blockAfterTicks(0, entered)))

		if _, err := c.Start(context.Background(), 2); err != nil {
			t.Fatalf("Start: %v", err)
		}
		<-entered
		if _, err := c.Start(context.Background(), 2); !errors.Is(err, booth.ErrSessionActive) {
			t.Errorf("second Start = %v, want ErrSessionActive", err)
		}
	})

	t.Run("closed", func(t *testing.T) {
		c := newController(t, camera.NewMock(), &fakeCompositor{}, newPipeline(delivery.NewMockTransport()))
		c.Close()
		if _, err := c.Start(context.Background(), 1); !errors.Is(err, booth.ErrClosed) {
			t.Errorf("Start after Close = %v, want ErrClosed", err)
		}
	})
}

func TestController_Reset(t *testing.T) {
	c := newController(t, camera.Sequence(64, 48, nil, nil), &fakeCompositor{}, newPipeline(delivery.NewMockTransport()))

	if err := c.Reset(); !errors.Is(err, booth.ErrInvalidTransition) {
		t.Errorf("Reset while idle = %v, want ErrInvalidTransition", err)
	}

	if _, err := c.Start(context.Background(), 2); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if snap := wait(t, c); snap.State.Phase != booth.PhaseComplete {
		t.Fatalf("phase = %s", snap.State.Phase)
	}
	if err := c.Cancel(); !errors.Is(err, booth.ErrInvalidTransition) {
		t.Errorf("Cancel after completion = %v, want ErrInvalidTransition", err)
	}

	if err := c.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	snap := c.Snapshot()
	if !snap.State.IsIdle() || snap.Composite != nil || snap.Artifact != nil || len(snap.Shots) != 0 {
		t.Errorf("after reset: %+v", snap)
	}
}

func TestController_CloseReleasesCamera(t *testing.T) {
	dev := camera.NewMock()
	entered := make(chan struct{}, 1)
	c := booth.New(dev, &fakeCompositor{}, newPipeline(delivery.NewMockTransport()),
		booth.WithSleeper(blockAfterTicks(0, entered)),
		booth.WithLogger(log.Discard()))

	if _, err := c.Start(context.Background(), 4); err != nil {
		t.Fatalf("Start: %v", err)
	}
	<-entered
	c.Close()
	c.Close()

	if dev.CallCount("Close") != 1 {
		t.Errorf("Close = %d, want 1", dev.CallCount("Close"))
	}
}
