package compose

import (
	"fmt"
	"image/color"
	"log/slog"
	"time"
)

// Options holds the strip layout.
// Use functional options (WithXxx) to set these values.
type Options struct {
	// Geometry
	Border       int
	FooterHeight int
	Background   color.Color

	// Caption
	Title      string
	Date       string // fixed date line; empty means Now formatted with DateFormat
	DateFormat string
	TitleSize  float64
	DateSize   float64
	FontTTF    []byte // nil selects Go Regular
	Now        func() time.Time

	// Encoding
	Quality int

	// Observability
	Logger *slog.Logger
}

// Option is a functional option for configuring a Compositor.
type Option func(*Options)

// WithBorder sets the white border around and between frames.
func WithBorder(px int) Option {
	return func(o *Options) {
		o.Border = px
	}
}

// WithFooterHeight sets the height of the caption band.
func WithFooterHeight(px int) Option {
	return func(o *Options) {
		o.FooterHeight = px
	}
}

// WithCaption sets the two caption lines. An empty date prints the
// composition day.
func WithCaption(title, date string) Option {
	return func(o *Options) {
		o.Title = title
		o.Date = date
	}
}

// WithFontSizes sets the caption font sizes in pixels.
func WithFontSizes(title, date float64) Option {
	return func(o *Options) {
		o.TitleSize = title
		o.DateSize = date
	}
}

// WithFont replaces Go Regular with a TrueType or OpenType font.
func WithFont(ttf []byte) Option {
	return func(o *Options) {
		o.FontTTF = ttf
	}
}

// WithQuality sets the JPEG quality (1-100).
func WithQuality(q int) Option {
	return func(o *Options) {
		o.Quality = q
	}
}

// WithClock sets the clock used for the default date line.
func WithClock(now func() time.Time) Option {
	return func(o *Options) {
		o.Now = now
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// DefaultOptions returns the booth's stock layout.
func DefaultOptions() *Options {
	return &Options{
		Border:       10,
		FooterHeight: 120,
		Background:   Background,
		Title:        "Photo Booth",
		DateFormat:   "02.01.2006",
		TitleSize:    40,
		DateSize:     30,
		Now:          time.Now,
		Quality:      90,
		Logger:       slog.Default(),
	}
}

// Apply applies functional options.
func (o *Options) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(o)
	}
}

// Validate checks the layout.
func (o *Options) Validate() error {
	if o.Border < 0 {
		return fmt.Errorf("compose: border must not be negative, got %d", o.Border)
	}
	if o.FooterHeight < 0 {
		return fmt.Errorf("compose: footer height must not be negative, got %d", o.FooterHeight)
	}
	if o.Quality < 1 || o.Quality > 100 {
		return fmt.Errorf("compose: quality must be between 1 and 100, got %d", o.Quality)
	}
	if o.TitleSize <= 0 || o.DateSize <= 0 {
		return fmt.Errorf("compose: font sizes must be positive")
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Background == nil {
		o.Background = Background
	}
	return nil
}

// DateLine returns the second caption line.
func (o *Options) DateLine() string {
	if o.Date != "" {
		return o.Date
	}
	return o.Now().Format(o.DateFormat)
}
