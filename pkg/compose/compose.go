// Package compose lays captured frames out as a bordered vertical strip with
// a caption footer and encodes the result as JPEG.
package compose

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"time"

	"golang.org/x/image/font"

	"github.com/teslashibe/go-photobooth/pkg/frame"
)

// ErrCompositionFailure is returned when a strip cannot be built.
// It is fatal for the session.
var ErrCompositionFailure = errors.New("compose: composition failure")

// MimeType of every encoded composite.
const MimeType = "image/jpeg"

// Composite is a finished strip.
type Composite struct {
	Pixels  *image.RGBA
	Width   int
	Height  int
	Bytes   []byte
	Quality int
	Frames  int
}

// MimeType returns the encoding of Bytes.
func (c *Composite) MimeType() string { return MimeType }

// Size returns the composite dimensions for n frames of w x h.
//
//	width  = w + 2*border
//	height = n*h + (n+1)*border + footer
func Size(n, w, h, border, footer int) image.Point {
	return image.Pt(w+2*border, n*h+(n+1)*border+footer)
}

// Compositor builds strips with a fixed layout.
type Compositor struct {
	opts  Options
	title font.Face
	date  font.Face
}

// New creates a compositor, loading caption faces once.
func New(opts ...Option) (*Compositor, error) {
	cfg := DefaultOptions()
	cfg.Apply(opts...)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	title, date, err := loadFaces(cfg)
	if err != nil {
		return nil, err
	}

	return &Compositor{opts: *cfg, title: title, date: date}, nil
}

// Options returns the compositor's layout.
func (c *Compositor) Options() Options { return c.opts }

// Compose lays frames out top to bottom in slice order and encodes the
// strip. All frames must share the dimensions of the first.
func (c *Compositor) Compose(frames []frame.Frame) (*Composite, error) {
	start := time.Now()

	if len(frames) == 0 {
		return nil, fmt.Errorf("%w: no frames", ErrCompositionFailure)
	}
	fw, fh := frames[0].Width(), frames[0].Height()
	for i, f := range frames {
		if f.Empty() {
			return nil, fmt.Errorf("%w: frame %d has no pixels", ErrCompositionFailure, i)
		}
		if f.Width() != fw || f.Height() != fh {
			return nil, fmt.Errorf("%w: frame %d is %dx%d, expected %dx%d",
				ErrCompositionFailure, i, f.Width(), f.Height(), fw, fh)
		}
	}

	border, footer := c.opts.Border, c.opts.FooterHeight
	size := Size(len(frames), fw, fh, border, footer)
	canvas := image.NewRGBA(image.Rect(0, 0, size.X, size.Y))

	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(c.opts.Background), image.Point{}, draw.Src)

	y := border
	for _, f := range frames {
		dst := image.Rect(border, y, border+fw, y+fh)
		draw.Draw(canvas, dst, f.Image(), f.Image().Bounds().Min, draw.Src)
		y += fh + border
	}

	if footer > 0 {
		// y is now the top of the footer band.
		c.drawCaption(canvas, image.Rect(0, y, size.X, size.Y))
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, canvas, &jpeg.Options{Quality: c.opts.Quality}); err != nil {
		return nil, fmt.Errorf("%w: encode: %v", ErrCompositionFailure, err)
	}

	c.opts.Logger.Debug("strip composed",
		"frames", len(frames),
		"width", size.X,
		"height", size.Y,
		"bytes", buf.Len(),
		"elapsed", time.Since(start),
	)

	return &Composite{
		Pixels:  canvas,
		Width:   size.X,
		Height:  size.Y,
		Bytes:   buf.Bytes(),
		Quality: c.opts.Quality,
		Frames:  len(frames),
	}, nil
}

// Background is the strip fill color.
var Background = color.RGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF}

// Ink is the caption color.
var Ink = color.RGBA{A: 0xFF}
