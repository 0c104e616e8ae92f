package booth

import (
	"context"
	"time"

	"github.com/teslashibe/go-photobooth/internal/config"
)

// Timing holds the session pacing.
type Timing struct {
	CountdownFirst      int           // ticks before the first shot
	CountdownSubsequent int           // ticks before every later shot
	Tick                time.Duration // length of one countdown tick
	Flash               time.Duration // how long clients show the flash overlay
	CaptureDelay        time.Duration // pause between entering Flash and reading the camera
	CapturePause        time.Duration // hold after each capture before moving on
}

// DefaultTiming is the kiosk pacing: 5 seconds, then 3 per later shot.
func DefaultTiming() Timing {
	return Timing{
		CountdownFirst:      5,
		CountdownSubsequent: 3,
		Tick:                time.Second,
		Flash:               300 * time.Millisecond,
		CaptureDelay:        50 * time.Millisecond,
		CapturePause:        500 * time.Millisecond,
	}
}

// TimingFromConfig converts session configuration.
func TimingFromConfig(s config.Session) Timing {
	t := DefaultTiming()
	t.CountdownFirst = s.CountdownFirst
	t.CountdownSubsequent = s.CountdownSubsequent
	t.Flash = s.Flash
	t.CaptureDelay = s.CaptureDelay
	t.CapturePause = s.CapturePause
	return t
}

// countdown returns the tick count before shot i.
func (t Timing) countdown(i int) int {
	if i == 0 {
		return t.CountdownFirst
	}
	return t.CountdownSubsequent
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Sleep is the wall-clock Sleeper.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
