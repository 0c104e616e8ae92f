package compose

import (
	"fmt"
	"image"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// lineSpacing is the gap between the caption lines.
const lineSpacing = 6

func loadFaces(o *Options) (title, date font.Face, err error) {
	ttf := o.FontTTF
	if ttf == nil {
		ttf = goregular.TTF
	}
	f, err := opentype.Parse(ttf)
	if err != nil {
		return nil, nil, fmt.Errorf("compose: parse font: %w", err)
	}

	title, err = opentype.NewFace(f, &opentype.FaceOptions{Size: o.TitleSize, DPI: 72, Hinting: font.HintingFull})
	if err != nil {
		return nil, nil, fmt.Errorf("compose: title face: %w", err)
	}
	date, err = opentype.NewFace(f, &opentype.FaceOptions{Size: o.DateSize, DPI: 72, Hinting: font.HintingFull})
	if err != nil {
		return nil, nil, fmt.Errorf("compose: date face: %w", err)
	}
	return title, date, nil
}

type captionLine struct {
	text string
	face font.Face
}

// drawCaption centers the title and date lines, as one block, inside band.
func (c *Compositor) drawCaption(dst draw.Image, band image.Rectangle) {
	var lines []captionLine
	for _, l := range []captionLine{{c.opts.Title, c.title}, {c.opts.DateLine(), c.date}} {
		if l.text != "" {
			lines = append(lines, l)
		}
	}
	if len(lines) == 0 {
		return
	}

	var block fixed.Int26_6
	for i, l := range lines {
		m := l.face.Metrics()
		block += m.Ascent + m.Descent
		if i > 0 {
			block += fixed.I(lineSpacing)
		}
	}

	y := fixed.I(band.Min.Y) + (fixed.I(band.Dy())-block)/2
	d := &font.Drawer{Dst: dst, Src: image.NewUniform(Ink)}
	for _, l := range lines {
		m := l.face.Metrics()
		d.Face = l.face
		adv := d.MeasureString(l.text)
		d.Dot = fixed.Point26_6{
			X: fixed.I(band.Min.X) + (fixed.I(band.Dx())-adv)/2,
			Y: y + m.Ascent,
		}
		d.DrawString(l.text)
		y += m.Ascent + m.Descent + fixed.I(lineSpacing)
	}
}
