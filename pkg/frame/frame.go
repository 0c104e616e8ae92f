// Package frame turns raw camera images into cropped, immutable frames.
package frame

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
)

// ErrCaptureFailure is returned when no usable frame could be read.
var ErrCaptureFailure = errors.New("frame: capture failure")

// Ratio is a target aspect ratio expressed as width:height terms.
type Ratio struct {
	W int
	H int
}

// FourThree is the booth's native aspect ratio.
var FourThree = Ratio{W: 4, H: 3}

// Float returns the ratio as width / height.
func (r Ratio) Float() float64 {
	return float64(r.W) / float64(r.H)
}

// String implements fmt.Stringer.
func (r Ratio) String() string {
	return fmt.Sprintf("%d:%d", r.W, r.H)
}

// Valid reports whether both terms are positive.
func (r Ratio) Valid() bool {
	return r.W > 0 && r.H > 0
}

// Frame is one captured, cropped shot. The pixel buffer is private and
// never written after Capture returns, so a Frame can be shared freely.
type Frame struct {
	index int
	img   *image.RGBA
}

// Index is the capture order position of the shot within its session.
func (f Frame) Index() int { return f.index }

// Width returns the frame width in pixels.
func (f Frame) Width() int {
	if f.img == nil {
		return 0
	}
	return f.img.Bounds().Dx()
}

// Height returns the frame height in pixels.
func (f Frame) Height() int {
	if f.img == nil {
		return 0
	}
	return f.img.Bounds().Dy()
}

// Empty reports whether the frame carries no pixels.
func (f Frame) Empty() bool {
	return f.Width() == 0 || f.Height() == 0
}

// Image exposes the pixels for reading. Callers must not draw into it.
func (f Frame) Image() image.Image {
	if f.img == nil {
		return image.Rectangle{}
	}
	return f.img
}

// EncodeJPEG encodes the frame for previews.
func (f Frame) EncodeJPEG(quality int) ([]byte, error) {
	if f.Empty() {
		return nil, fmt.Errorf("frame %d: %w", f.index, ErrCaptureFailure)
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, f.img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode frame %d: %w", f.index, err)
	}
	return buf.Bytes(), nil
}

// CropRect returns the centered crop of a w x h source at ratio r.
//
// Sources wider than r lose columns on both sides; everything else
// (portrait, square, and landscape narrower than r) loses rows top and
// bottom. The rectangle never exceeds the source, and a source already at
// r is returned whole.
func CropRect(w, h int, r Ratio) image.Rectangle {
	if w <= 0 || h <= 0 || !r.Valid() {
		return image.Rectangle{}
	}
	if w*r.H > h*r.W {
		cw := h * r.W / r.H
		x := (w - cw) / 2
		return image.Rect(x, 0, x+cw, h)
	}
	ch := w * r.H / r.W
	y := (h - ch) / 2
	return image.Rect(0, y, w, y+ch)
}

// Capture center-crops a raw camera image to r and wraps it as the
// index-th frame of a session.
func Capture(raw image.Image, r Ratio, index int) (Frame, error) {
	if raw == nil {
		return Frame{}, fmt.Errorf("shot %d: no image: %w", index, ErrCaptureFailure)
	}
	b := raw.Bounds()
	if b.Empty() {
		return Frame{}, fmt.Errorf("shot %d: empty image: %w", index, ErrCaptureFailure)
	}
	crop := CropRect(b.Dx(), b.Dy(), r)
	if crop.Empty() {
		return Frame{}, fmt.Errorf("shot %d: %dx%d cannot be cropped to %s: %w",
			index, b.Dx(), b.Dy(), r, ErrCaptureFailure)
	}

	dst := image.NewRGBA(image.Rect(0, 0, crop.Dx(), crop.Dy()))
	draw.Draw(dst, dst.Bounds(), raw, b.Min.Add(crop.Min), draw.Src)

	return Frame{index: index, img: dst}, nil
}
