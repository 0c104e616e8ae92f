// Package camera provides the booth's capture device and its exclusive lease.
package camera

import "fmt"

// Config holds the capture device parameters.
type Config struct {
	Device    int `json:"device"`    // OS device index (0 = first webcam)
	Width     int `json:"width"`     // Requested frame width in pixels
	Height    int `json:"height"`    // Requested frame height in pixels
	Framerate int `json:"framerate"` // Requested FPS
}

// Practical limits for USB webcams used in kiosks.
const (
	MaxWidth     = 4096
	MaxHeight    = 3072
	MaxFramerate = 60
)

// DefaultConfig requests a 4:3 stream so the center crop discards nothing
// on cameras that honour it.
func DefaultConfig() Config {
	return Config{
		Device:    0,
		Width:     1280,
		Height:    960,
		Framerate: 30,
	}
}

// LegacyConfig returns a 640x480 configuration for older webcams.
func LegacyConfig() Config {
	cfg := DefaultConfig()
	cfg.Width = 640
	cfg.Height = 480
	return cfg
}

// HD720Config requests 1280x720. The strip will be cropped to 960x720.
func HD720Config() Config {
	cfg := DefaultConfig()
	cfg.Width = 1280
	cfg.Height = 720
	return cfg
}

// Validate checks if the config values are within valid ranges.
// Returns a list of validation errors, or nil if valid.
func (c *Config) Validate() []string {
	var errors []string

	if c.Device < 0 {
		errors = append(errors, "device must not be negative")
	}
	if c.Width < 160 || c.Width > MaxWidth {
		errors = append(errors, fmt.Sprintf("width must be between 160 and %d", MaxWidth))
	}
	if c.Height < 120 || c.Height > MaxHeight {
		errors = append(errors, fmt.Sprintf("height must be between 120 and %d", MaxHeight))
	}
	if c.Framerate < 1 || c.Framerate > MaxFramerate {
		errors = append(errors, fmt.Sprintf("framerate must be between 1 and %d", MaxFramerate))
	}

	return errors
}
