package camera

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
)

// Sentinel errors for device access.
var (
	// ErrDeviceUnavailable is returned when the camera cannot be opened.
	// It is user-recoverable: the kiosk should offer a retry.
	ErrDeviceUnavailable = errors.New("camera: device unavailable")

	// ErrDeviceBusy is returned when another consumer holds the lease.
	ErrDeviceBusy = errors.New("camera: device busy")

	// ErrNotReady is returned by ReadFrame when no frame is available yet.
	ErrNotReady = errors.New("camera: no frame available")
)

// Stream is an open video stream handle.
type Stream interface {
	// ID identifies the stream in logs.
	ID() string
}

// Device is the capture capability handed to the booth.
type Device interface {
	// Open starts a video stream.
	Open(ctx context.Context) (Stream, error)

	// ReadFrame returns the latest frame of an open stream.
	ReadFrame(s Stream) (image.Image, error)

	// Close stops a stream opened by Open.
	Close(s Stream) error
}

// leaseSlot is the process-wide claim on the camera. One physical camera,
// one holder.
var leaseSlot = make(chan struct{}, 1)

// Lease is an exclusive claim on an open camera stream.
// Release is idempotent and closes the stream exactly once.
type Lease struct {
	dev    Device
	stream Stream

	once sync.Once
	err  error
}

// Acquire claims the process-wide camera slot and opens dev.
// It fails fast with ErrDeviceBusy instead of waiting for another holder.
// Open failures are reported as ErrDeviceUnavailable.
func Acquire(ctx context.Context, dev Device) (*Lease, error) {
	select {
	case leaseSlot <- struct{}{}:
	default:
		return nil, ErrDeviceBusy
	}

	stream, err := dev.Open(ctx)
	if err != nil {
		<-leaseSlot
		if errors.Is(err, ErrDeviceUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	if stream == nil {
		<-leaseSlot
		return nil, ErrDeviceUnavailable
	}

	return &Lease{dev: dev, stream: stream}, nil
}

// Stream returns the leased stream.
func (l *Lease) Stream() Stream {
	return l.stream
}

// ReadFrame reads the current frame from the leased stream.
func (l *Lease) ReadFrame() (image.Image, error) {
	return l.dev.ReadFrame(l.stream)
}

// Release closes the stream and frees the slot. Later calls return the
// result of the first.
func (l *Lease) Release() error {
	l.once.Do(func() {
		l.err = l.dev.Close(l.stream)
		<-leaseSlot
	})
	return l.err
}
