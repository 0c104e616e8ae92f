package camera

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"sync"

	"gocv.io/x/gocv"
)

// GoCV captures from a local webcam through OpenCV.
type GoCV struct {
	cfg    Config
	logger *slog.Logger
}

// NewGoCV creates an OpenCV-backed device. Nothing is opened until Open.
func NewGoCV(cfg Config, logger *slog.Logger) *GoCV {
	if logger == nil {
		logger = slog.Default()
	}
	return &GoCV{cfg: cfg, logger: logger.With("component", "camera.gocv")}
}

type gocvStream struct {
	id string
	mu sync.Mutex
	vc *gocv.VideoCapture
}

func (s *gocvStream) ID() string { return s.id }

// Open opens the configured device and requests the configured size.
// The camera may choose a different size; the booth crops whatever arrives.
func (g *GoCV) Open(ctx context.Context) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vc, err := gocv.OpenVideoCapture(g.cfg.Device)
	if err != nil {
		return nil, fmt.Errorf("%w: open device %d: %v", ErrDeviceUnavailable, g.cfg.Device, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("%w: device %d not opened", ErrDeviceUnavailable, g.cfg.Device)
	}

	vc.Set(gocv.VideoCaptureFrameWidth, float64(g.cfg.Width))
	vc.Set(gocv.VideoCaptureFrameHeight, float64(g.cfg.Height))
	vc.Set(gocv.VideoCaptureFPS, float64(g.cfg.Framerate))

	s := &gocvStream{id: fmt.Sprintf("gocv:%d", g.cfg.Device), vc: vc}
	g.logger.Info("camera opened",
		"stream", s.id,
		"width", int(vc.Get(gocv.VideoCaptureFrameWidth)),
		"height", int(vc.Get(gocv.VideoCaptureFrameHeight)),
	)
	return s, nil
}

// ReadFrame grabs the next frame and converts it to an image.Image.
func (g *GoCV) ReadFrame(s Stream) (image.Image, error) {
	gs, ok := s.(*gocvStream)
	if !ok {
		return nil, fmt.Errorf("camera: foreign stream %T", s)
	}

	gs.mu.Lock()
	defer gs.mu.Unlock()
	if gs.vc == nil {
		return nil, ErrNotReady
	}

	mat := gocv.NewMat()
	defer mat.Close()
	if ok := gs.vc.Read(&mat); !ok || mat.Empty() {
		return nil, ErrNotReady
	}

	img, err := mat.ToImage()
	if err != nil {
		return nil, fmt.Errorf("camera: convert frame: %w", err)
	}
	return img, nil
}

// Close releases the OpenCV capture.
func (g *GoCV) Close(s Stream) error {
	gs, ok := s.(*gocvStream)
	if !ok {
		return fmt.Errorf("camera: foreign stream %T", s)
	}

	gs.mu.Lock()
	defer gs.mu.Unlock()
	if gs.vc == nil {
		return nil
	}
	err := gs.vc.Close()
	gs.vc = nil
	g.logger.Info("camera closed", "stream", gs.id)
	return err
}

var _ Device = (*GoCV)(nil)
