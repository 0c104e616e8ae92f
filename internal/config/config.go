// Package config loads the booth configuration.
//
// Values come from three layers, later layers winning: built-in defaults,
// an optional YAML file, then BOOTH_* environment variables. Command line
// flags are applied on top in cmd/booth. The resulting Booth value is
// read-only once the process has started.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Transport names accepted in Delivery.Transport.
const (
	TransportAppsScript = "appsscript"
	TransportDrive      = "drive"
	TransportDisabled   = "disabled"
)

// Booth is the complete process configuration.
type Booth struct {
	Listen   string `yaml:"listen"`
	LogLevel string `yaml:"log_level"`

	Camera   Camera   `yaml:"camera"`
	Session  Session  `yaml:"session"`
	Layout   Layout   `yaml:"layout"`
	Delivery Delivery `yaml:"delivery"`
	Archive  Archive  `yaml:"archive"`
}

// Camera selects and sizes the capture device.
type Camera struct {
	Device    int `yaml:"device"`
	Width     int `yaml:"width"`
	Height    int `yaml:"height"`
	Framerate int `yaml:"framerate"`
}

// Session holds the shot options and the countdown timing contract.
type Session struct {
	ShotOptions         []int         `yaml:"shot_options"`
	DefaultShots        int           `yaml:"default_shots"`
	CountdownFirst      int           `yaml:"countdown_first"`
	CountdownSubsequent int           `yaml:"countdown_subsequent"`
	Flash               time.Duration `yaml:"flash"`
	CaptureDelay        time.Duration `yaml:"capture_delay"`
	CapturePause        time.Duration `yaml:"capture_pause"`
}

// Layout holds the strip geometry and caption.
type Layout struct {
	AspectWidth   int     `yaml:"aspect_width"`
	AspectHeight  int     `yaml:"aspect_height"`
	Border        int     `yaml:"border"`
	PreviewBorder int     `yaml:"preview_border"`
	FooterHeight  int     `yaml:"footer_height"`
	Title         string  `yaml:"title"`
	Date          string  `yaml:"date"` // empty: the day the strip is composed
	TitleSize     float64 `yaml:"title_size"`
	DateSize      float64 `yaml:"date_size"`
	FontPath      string  `yaml:"font_path"`
	Quality       int     `yaml:"quality"`
}

// Delivery configures the upload transport and retrieval code.
type Delivery struct {
	Transport       string        `yaml:"transport"`
	Endpoint        string        `yaml:"endpoint"`
	CredentialsFile string        `yaml:"credentials_file"`
	DriveFolderID   string        `yaml:"drive_folder_id"`
	FilenamePrefix  string        `yaml:"filename_prefix"`
	CodeLevel       string        `yaml:"code_level"`
	CodeSize        int           `yaml:"code_size"`
	Timeout         time.Duration `yaml:"timeout"`
}

// Archive configures the outcome log and local save directory.
type Archive struct {
	DBPath  string `yaml:"db_path"`
	SaveDir string `yaml:"save_dir"`
}

// Default returns the configuration the booth ships with.
func Default() Booth {
	return Booth{
		Listen:   ":8080",
		LogLevel: "info",
		Camera: Camera{
			Device:    0,
			Width:     1280,
			Height:    960,
			Framerate: 30,
		},
		Session: Session{
			ShotOptions:         []int{1, 2, 3, 4},
			DefaultShots:        3,
			CountdownFirst:      5,
			CountdownSubsequent: 3,
			Flash:               300 * time.Millisecond,
			CaptureDelay:        50 * time.Millisecond,
			CapturePause:        500 * time.Millisecond,
		},
		Layout: Layout{
			AspectWidth:   4,
			AspectHeight:  3,
			Border:        10,
			PreviewBorder: 2,
			FooterHeight:  120,
			Title:         "Photo Booth",
			TitleSize:     40,
			DateSize:      30,
			Quality:       90,
		},
		Delivery: Delivery{
			Transport:      TransportDisabled,
			FilenamePrefix: "photobooth-",
			CodeLevel:      "high",
			CodeSize:       256,
			Timeout:        45 * time.Second,
		},
		Archive: Archive{
			DBPath:  "data/booth.db",
			SaveDir: "data/strips",
		},
	}
}

// Load reads a YAML file over the defaults. An empty path skips the file.
func Load(path string) (Booth, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from BOOTH_* environment variables.
func (c *Booth) ApplyEnv() {
	c.Listen = envStr("BOOTH_LISTEN", c.Listen)
	c.LogLevel = envStr("LOG_LEVEL", c.LogLevel)
	c.Camera.Device = envInt("BOOTH_CAMERA_DEVICE", c.Camera.Device)
	c.Layout.Title = envStr("BOOTH_CAPTION_TITLE", c.Layout.Title)
	c.Layout.Date = envStr("BOOTH_CAPTION_DATE", c.Layout.Date)
	c.Delivery.Transport = envStr("BOOTH_TRANSPORT", c.Delivery.Transport)
	c.Delivery.Endpoint = envStr("BOOTH_UPLOAD_ENDPOINT", c.Delivery.Endpoint)
	c.Delivery.CredentialsFile = envStr("BOOTH_DRIVE_CREDENTIALS", c.Delivery.CredentialsFile)
	c.Delivery.DriveFolderID = envStr("BOOTH_DRIVE_FOLDER", c.Delivery.DriveFolderID)
	c.Archive.DBPath = envStr("BOOTH_DB_PATH", c.Archive.DBPath)
	c.Archive.SaveDir = envStr("BOOTH_SAVE_DIR", c.Archive.SaveDir)
}

// Validate checks if the config values are within valid ranges.
// Returns a list of validation errors, or nil if valid.
func (c *Booth) Validate() []string {
	var errs []string

	if len(c.Session.ShotOptions) == 0 {
		errs = append(errs, "session.shot_options must not be empty")
	}
	defaultListed := false
	for _, n := range c.Session.ShotOptions {
		if n < 1 || n > 4 {
			errs = append(errs, "session.shot_options entries must be between 1 and 4")
			break
		}
		if n == c.Session.DefaultShots {
			defaultListed = true
		}
	}
	if !defaultListed {
		errs = append(errs, "session.default_shots must be one of session.shot_options")
	}
	if c.Session.CountdownFirst < 1 || c.Session.CountdownSubsequent < 1 {
		errs = append(errs, "session countdowns must be at least 1 second")
	}
	if c.Session.Flash < 0 || c.Session.CaptureDelay < 0 || c.Session.CapturePause < 0 {
		errs = append(errs, "session delays must not be negative")
	}

	if c.Layout.AspectWidth < 1 || c.Layout.AspectHeight < 1 {
		errs = append(errs, "layout aspect ratio terms must be positive")
	}
	if c.Layout.Border < 0 || c.Layout.PreviewBorder < 0 {
		errs = append(errs, "layout borders must not be negative")
	}
	if c.Layout.FooterHeight < 0 {
		errs = append(errs, "layout.footer_height must not be negative")
	}
	if c.Layout.Quality < 1 || c.Layout.Quality > 100 {
		errs = append(errs, "layout.quality must be between 1 and 100")
	}

	switch c.Delivery.Transport {
	case TransportAppsScript:
		if c.Delivery.Endpoint == "" {
			errs = append(errs, "delivery.endpoint is required for the appsscript transport")
		}
	case TransportDrive:
		if c.Delivery.CredentialsFile == "" {
			errs = append(errs, "delivery.credentials_file is required for the drive transport")
		}
	case TransportDisabled:
	default:
		errs = append(errs, "delivery.transport must be appsscript, drive, or disabled")
	}
	switch c.Delivery.CodeLevel {
	case "low", "medium", "quartile", "high":
	default:
		errs = append(errs, "delivery.code_level must be low, medium, quartile, or high")
	}
	if c.Delivery.CodeSize < 64 {
		errs = append(errs, "delivery.code_size must be at least 64")
	}

	return errs
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
