// booth: kiosk photo booth server
// Drives capture sessions from the browser and serves the finished strips.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/teslashibe/go-photobooth/internal/config"
	"github.com/teslashibe/go-photobooth/internal/httpc"
	"github.com/teslashibe/go-photobooth/internal/log"
	"github.com/teslashibe/go-photobooth/pkg/archive"
	"github.com/teslashibe/go-photobooth/pkg/booth"
	"github.com/teslashibe/go-photobooth/pkg/camera"
	"github.com/teslashibe/go-photobooth/pkg/compose"
	"github.com/teslashibe/go-photobooth/pkg/delivery"
	"github.com/teslashibe/go-photobooth/pkg/frame"
	"github.com/teslashibe/go-photobooth/pkg/layout"
	"github.com/teslashibe/go-photobooth/pkg/web"
)

var (
	configPath = flag.String("config", "", "YAML config file")
	listen     = flag.String("listen", "", "HTTP listen address (overrides config)")
	logLevel   = flag.String("log-level", "", "Log level: debug, info, warn, error")
	transport  = flag.String("transport", "", "Upload transport: appsscript, drive, disabled")
	preset     = flag.String("camera-preset", "", "Camera preset: "+strings.Join(camera.PresetNames(), ", "))
	staticDir  = flag.String("static", "", "Directory with the kiosk front end (optional)")
	mockCamera = flag.Bool("mock-camera", false, "Use a synthetic camera instead of a real device")
)

func main() {
	flag.Parse()

	if err := run(); err != nil {
		slog.Error("booth stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log.Init(cfg.LogLevel)
	logger := log.Component("main")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Camera
	var dev camera.Device
	if *mockCamera {
		logger.Warn("using synthetic camera")
		dev = camera.NewMock()
	} else {
		camCfg := camera.Config{
			Device:    cfg.Camera.Device,
			Width:     cfg.Camera.Width,
			Height:    cfg.Camera.Height,
			Framerate: cfg.Camera.Framerate,
		}
		if errs := camCfg.Validate(); len(errs) > 0 {
			return errors.New("invalid camera config: " + strings.Join(errs, "; "))
		}
		dev = camera.NewGoCV(camCfg, log.Component("camera"))
	}

	// Compositor
	compOpts := []compose.Option{
		compose.WithBorder(cfg.Layout.Border),
		compose.WithFooterHeight(cfg.Layout.FooterHeight),
		compose.WithCaption(cfg.Layout.Title, cfg.Layout.Date),
		compose.WithFontSizes(cfg.Layout.TitleSize, cfg.Layout.DateSize),
		compose.WithQuality(cfg.Layout.Quality),
		compose.WithLogger(log.Component("compose")),
	}
	if cfg.Layout.FontPath != "" {
		ttf, err := os.ReadFile(cfg.Layout.FontPath)
		if err != nil {
			return fmt.Errorf("read font: %w", err)
		}
		compOpts = append(compOpts, compose.WithFont(ttf))
	}
	comp, err := compose.New(compOpts...)
	if err != nil {
		return fmt.Errorf("compositor: %w", err)
	}

	// Delivery
	tr, err := buildTransport(ctx, cfg.Delivery)
	if err != nil {
		return err
	}
	level, err := delivery.ParseLevel(cfg.Delivery.CodeLevel)
	if err != nil {
		return err
	}
	pipeline := delivery.NewPipeline(tr,
		delivery.WithCodeGenerator(delivery.NewQRGenerator(cfg.Delivery.CodeSize)),
		delivery.WithLevel(level),
		delivery.WithFilenamePrefix(cfg.Delivery.FilenamePrefix),
		delivery.WithTimeout(cfg.Delivery.Timeout),
		delivery.WithLogger(log.Component("delivery")),
	)

	// Archive
	store, err := archive.Open(cfg.Archive.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()
	recorder := archive.NewRecorder(store, &archive.Dir{Path: cfg.Archive.SaveDir}, log.L())

	// Session controller
	ratio := frame.Ratio{W: cfg.Layout.AspectWidth, H: cfg.Layout.AspectHeight}
	ctrl := booth.New(dev, comp, pipeline,
		booth.WithRatio(ratio),
		booth.WithShotOptions(cfg.Session.ShotOptions...),
		booth.WithTiming(booth.TimingFromConfig(cfg.Session)),
		booth.WithLogger(log.Component("booth")),
		booth.WithObserver(recorder.Observe),
	)
	defer ctrl.Close()

	// Web
	params := layout.DefaultParams(cfg.Layout.PreviewBorder)
	params.Ratio = ratio
	srv := web.NewServer(ctrl,
		web.WithHistory(store),
		web.WithLayout(params),
		web.WithDefaultShots(cfg.Session.DefaultShots),
		web.WithStatic(*staticDir),
		web.WithLogger(log.L()),
	)
	ctrl.Subscribe(srv.Observe)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Listen(cfg.Listen) }()

	logger.Info("booth ready",
		"listen", cfg.Listen,
		"transport", cfg.Delivery.Transport,
		"shots", cfg.Session.ShotOptions,
	)

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("web server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("web shutdown", "error", err)
	}
	return nil
}

// loadConfig layers defaults, the YAML file, environment and flags.
func loadConfig() (config.Booth, error) {
	cfg, err := config.Load(*configPath)
	if err != nil {
		return cfg, err
	}
	cfg.ApplyEnv()

	if *listen != "" {
		cfg.Listen = *listen
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if *transport != "" {
		cfg.Delivery.Transport = *transport
	}
	if *preset != "" {
		p := camera.GetPreset(*preset)
		if p == nil {
			return cfg, fmt.Errorf("unknown camera preset %q", *preset)
		}
		cfg.Camera.Width, cfg.Camera.Height, cfg.Camera.Framerate = p.Width, p.Height, p.Framerate
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return cfg, errors.New("invalid config: " + strings.Join(errs, "; "))
	}
	return cfg, nil
}

func buildTransport(ctx context.Context, d config.Delivery) (delivery.Transport, error) {
	switch d.Transport {
	case config.TransportAppsScript:
		return delivery.NewAppsScript(d.Endpoint, httpc.NewClient(httpc.UploadTimeout)), nil
	case config.TransportDrive:
		creds, err := os.ReadFile(d.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read drive credentials: %w", err)
		}
		return delivery.NewDrive(ctx, creds, d.DriveFolderID)
	case config.TransportDisabled, "":
		return delivery.Disabled{}, nil
	}
	return nil, fmt.Errorf("unknown transport %q", d.Transport)
}
