package booth

import (
	"errors"

	"github.com/teslashibe/go-photobooth/pkg/camera"
	"github.com/teslashibe/go-photobooth/pkg/compose"
	"github.com/teslashibe/go-photobooth/pkg/frame"
)

// Common errors
var (
	ErrInvalidShotCount  = errors.New("booth: shot count not offered")
	ErrSessionActive     = errors.New("booth: session already active")
	ErrNotCancellable    = errors.New("booth: session is delivering and cannot be cancelled")
	ErrInvalidTransition = errors.New("booth: invalid transition")
	ErrClosed            = errors.New("booth: controller closed")
)

// Failure reasons reported in State.Reason.
const (
	ReasonCaptureFailure     = "capture_failure"
	ReasonCompositionFailure = "composition_failure"
	ReasonDeviceUnavailable  = "device_unavailable"
	ReasonUnknown            = "unknown"
)

func reasonFor(err error) string {
	switch {
	case errors.Is(err, frame.ErrCaptureFailure):
		return ReasonCaptureFailure
	case errors.Is(err, compose.ErrCompositionFailure):
		return ReasonCompositionFailure
	case errors.Is(err, camera.ErrDeviceUnavailable):
		return ReasonDeviceUnavailable
	}
	return ReasonUnknown
}
