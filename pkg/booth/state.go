package booth

import (
	"fmt"
	"time"
)

// Phase is the coarse position of a session in its lifecycle.
type Phase string

// Session phases.
const (
	PhaseIdle       Phase = "idle"
	PhaseCountdown  Phase = "countdown"
	PhaseFlash      Phase = "flash"
	PhaseComposing  Phase = "composing"
	PhaseDelivering Phase = "delivering"
	PhaseComplete   Phase = "complete"
	PhaseFailed     Phase = "failed"
)

// Active reports whether a session is running in this phase.
func (p Phase) Active() bool {
	switch p {
	case PhaseCountdown, PhaseFlash, PhaseComposing, PhaseDelivering:
		return true
	}
	return false
}

// Terminal reports whether the phase only leaves through Reset.
func (p Phase) Terminal() bool {
	return p == PhaseComplete || p == PhaseFailed
}

// State is the full machine state. The zero value is Idle.
type State struct {
	Phase     Phase     `json:"phase"`
	Target    int       `json:"target,omitempty"`
	Shot      int       `json:"shot"`                // index of the shot being counted down or taken
	Remaining int       `json:"remaining,omitempty"` // countdown seconds left
	Shots     int       `json:"shots"`               // frames held
	Skipped   int       `json:"skipped,omitempty"`   // attempts that produced no frame
	FlashAt   time.Time `json:"flash_at,omitempty"`
	Reason    string    `json:"reason,omitempty"` // why the session failed
}

// IsIdle reports whether s is the initial state.
func (s State) IsIdle() bool {
	return s.Phase == "" || s.Phase == PhaseIdle
}

// Event drives Transition.
type Event interface {
	event() string
}

// Start begins a session of Target shots whose first countdown lasts
// Countdown ticks.
type Start struct {
	Target    int
	Countdown int
}

// Tick is one elapsed countdown second.
type Tick struct {
	At time.Time
}

// Captured records a frame taken during Flash.
type Captured struct{}

// Skipped records a capture attempt that produced no frame.
type Skipped struct{}

// Advance leaves Flash. Next is the countdown length for the following
// shot, if there is one.
type Advance struct {
	Next int
}

// Composed reports a finished strip.
type Composed struct{}

// Delivered reports a delivery artifact, remote or local.
type Delivered struct{}

// Fail moves an active session to Failed.
type Fail struct {
	Err error
}

// Cancel abandons a session before delivery.
type Cancel struct{}

// Reset clears a finished session.
type Reset struct{}

func (Start) event() string     { return "start" }
func (Tick) event() string      { return "tick" }
func (Captured) event() string  { return "captured" }
func (Skipped) event() string   { return "skipped" }
func (Advance) event() string   { return "advance" }
func (Composed) event() string  { return "composed" }
func (Delivered) event() string { return "delivered" }
func (Fail) event() string      { return "fail" }
func (Cancel) event() string    { return "cancel" }
func (Reset) event() string     { return "reset" }

// Transition is the session state machine. It is pure: the same state and
// event always give the same result, and s is never modified.
func Transition(s State, e Event) (State, error) {
	phase := s.Phase
	if phase == "" {
		phase = PhaseIdle
	}
	invalid := func() (State, error) {
		return s, fmt.Errorf("%w: %s in %s", ErrInvalidTransition, e.event(), phase)
	}

	switch ev := e.(type) {
	case Start:
		if phase != PhaseIdle {
			return invalid()
		}
		if ev.Target < 1 || ev.Countdown < 1 {
			return s, fmt.Errorf("%w: start needs a positive target and countdown", ErrInvalidTransition)
		}
		return State{Phase: PhaseCountdown, Target: ev.Target, Remaining: ev.Countdown}, nil

	case Tick:
		if phase != PhaseCountdown {
			return invalid()
		}
		next := s
		next.Remaining--
		if next.Remaining <= 0 {
			next.Phase = PhaseFlash
			next.Remaining = 0
			next.FlashAt = ev.At
		}
		return next, nil

	case Captured:
		if phase != PhaseFlash {
			return invalid()
		}
		next := s
		next.Shots++
		return next, nil

	case Skipped:
		if phase != PhaseFlash {
			return invalid()
		}
		next := s
		next.Skipped++
		return next, nil

	case Advance:
		if phase != PhaseFlash {
			return invalid()
		}
		next := s
		next.FlashAt = time.Time{}
		switch {
		case s.Shot+1 < s.Target:
			if ev.Next < 1 {
				return s, fmt.Errorf("%w: advance needs a positive countdown", ErrInvalidTransition)
			}
			next.Phase = PhaseCountdown
			next.Shot = s.Shot + 1
			next.Remaining = ev.Next
		case s.Shots > 0:
			next.Phase = PhaseComposing
		default:
			next.Phase = PhaseFailed
			next.Reason = ReasonCaptureFailure
		}
		return next, nil

	case Composed:
		if phase != PhaseComposing {
			return invalid()
		}
		next := s
		next.Phase = PhaseDelivering
		return next, nil

	case Delivered:
		if phase != PhaseDelivering {
			return invalid()
		}
		next := s
		next.Phase = PhaseComplete
		return next, nil

	case Fail:
		if !phase.Active() {
			return invalid()
		}
		next := s
		next.Phase = PhaseFailed
		next.Remaining = 0
		next.FlashAt = time.Time{}
		next.Reason = reasonFor(ev.Err)
		return next, nil

	case Cancel:
		switch phase {
		case PhaseIdle:
			return State{Phase: PhaseIdle}, nil
		case PhaseCountdown, PhaseFlash, PhaseComposing:
			return State{Phase: PhaseIdle}, nil
		case PhaseDelivering:
			return s, ErrNotCancellable
		}
		return invalid()

	case Reset:
		if !phase.Terminal() {
			return invalid()
		}
		return State{Phase: PhaseIdle}, nil
	}

	return s, fmt.Errorf("%w: unknown event %T", ErrInvalidTransition, e)
}
