// Package layout sizes the booth screen for a viewport: the live video box
// on the left and a column of shot previews on the right.
package layout

import (
	"math"

	"github.com/teslashibe/go-photobooth/pkg/frame"
)

// Box is a width x height in CSS pixels.
type Box struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Record is the computed screen layout.
type Record struct {
	Viewport Box `json:"viewport"`
	Video    Box `json:"video"`
	Preview  Box `json:"preview"`
	Shots    int `json:"shots"`
	Gap      int `json:"gap"` // space between preview tiles
}

// Params are the fixed proportions of the screen.
type Params struct {
	Ratio        frame.Ratio
	VideoShare   float64 // fraction of the width given to the video column
	ChromeHeight int     // vertical space reserved for controls under the video
	ColumnGap    int     // gap between the two columns
	PreviewGap   int     // gap between preview tiles
}

// DefaultParams matches the kiosk screen: 70/30 columns, 150px of controls,
// previews separated by twice the preview border.
func DefaultParams(previewBorder int) Params {
	return Params{
		Ratio:        frame.FourThree,
		VideoShare:   0.7,
		ChromeHeight: 150,
		ColumnGap:    8,
		PreviewGap:   2 * previewBorder,
	}
}

// Compute lays out a viewport for shotCount previews with DefaultParams(2).
func Compute(viewportW, viewportH, shotCount int) Record {
	return DefaultParams(2).Compute(viewportW, viewportH, shotCount)
}

// Compute is pure; call it again whenever the viewport changes.
func (p Params) Compute(viewportW, viewportH, shotCount int) Record {
	if shotCount < 1 {
		shotCount = 1
	}
	w, h := float64(max(viewportW, 0)), float64(max(viewportH, 0))

	videoW := w * p.VideoShare
	videoH := h - float64(p.ChromeHeight)

	previewW := w*(1-p.VideoShare) - float64(p.ColumnGap)
	previewH := h/float64(shotCount) - float64((shotCount+1)*p.PreviewGap)

	return Record{
		Viewport: Box{Width: viewportW, Height: viewportH},
		Video:    fit(videoW, videoH, p.Ratio),
		Preview:  fit(previewW, previewH, p.Ratio),
		Shots:    shotCount,
		Gap:      p.PreviewGap,
	}
}

// fit returns the largest box of ratio r inside w x h.
func fit(w, h float64, r frame.Ratio) Box {
	if w <= 0 || h <= 0 || !r.Valid() {
		return Box{}
	}
	ratio := r.Float()
	if w/h > ratio {
		w = h * ratio
	} else {
		h = w / ratio
	}
	return Box{Width: int(math.Floor(w)), Height: int(math.Floor(h))}
}
