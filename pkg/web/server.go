// Package web serves the booth screen: a JSON API for driving sessions and
// websocket feeds for live status and shot previews.
package web

import (
	"context"
	"log/slog"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-photobooth/pkg/archive"
	"github.com/teslashibe/go-photobooth/pkg/booth"
	"github.com/teslashibe/go-photobooth/pkg/hub"
	"github.com/teslashibe/go-photobooth/pkg/layout"
)

// Booth is the session controller as seen by the API.
type Booth interface {
	Start(ctx context.Context, shots int) (string, error)
	Cancel() error
	Reset() error
	Snapshot() booth.Snapshot
	ShotOptions() []int
	Timing() booth.Timing
}

// History lists finished sessions.
type History interface {
	Recent(ctx context.Context, limit int) ([]archive.Record, error)
}

// Server is the booth web server
type Server struct {
	app    *fiber.App
	booth  Booth
	logger *slog.Logger

	history      History
	layout       layout.Params
	defaultShots int
	previewQ     int
	staticDir    string

	// Hubs for websocket broadcast
	statusHub *hub.Hub
	shotsHub  *hub.Hub

	// Shots already pushed to the preview feed for the current session
	mu        sync.Mutex
	sessionID string
	sent      int
}

// Option configures a Server.
type Option func(*Server)

// WithHistory enables GET /api/sessions.
func WithHistory(h History) Option {
	return func(s *Server) { s.history = h }
}

// WithLayout sets the screen proportions used by GET /api/layout.
func WithLayout(p layout.Params) Option {
	return func(s *Server) { s.layout = p }
}

// WithDefaultShots sets the shot count used when a start request omits it.
func WithDefaultShots(n int) Option {
	return func(s *Server) { s.defaultShots = n }
}

// WithStatic serves the kiosk front end from dir.
func WithStatic(dir string) Option {
	return func(s *Server) { s.staticDir = dir }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// NewServer creates the web server. Register Observe with the controller
// to feed the websocket hubs.
func NewServer(b Booth, opts ...Option) *Server {
	s := &Server{
		booth:        b,
		logger:       slog.Default(),
		layout:       layout.DefaultParams(2),
		defaultShots: 3,
		previewQ:     80,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "web")
	s.statusHub = hub.New("status", hub.WithLogger(s.logger), hub.WithRetainLast())
	s.shotsHub = hub.New("shots", hub.WithLogger(s.logger))

	app := fiber.New(fiber.Config{
		AppName:               "Photo Booth",
		DisableStartupMessage: true,
		BodyLimit:             64 * 1024,
	})

	// CORS for local development
	app.Use(cors.New())

	if s.staticDir != "" {
		app.Static("/", s.staticDir)
	}

	// API routes
	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/options", s.handleOptions)
	api.Post("/session", s.handleStart)
	api.Post("/session/cancel", s.handleCancel)
	api.Post("/session/reset", s.handleReset)
	api.Get("/shots/:index", s.handleShot)
	api.Get("/result/image", s.handleResultImage)
	api.Get("/result/code", s.handleResultCode)
	api.Get("/result/download", s.handleResultDownload)
	api.Get("/layout", s.handleLayout)
	api.Get("/sessions", s.handleSessions)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	// WebSocket routes
	app.Get("/ws/status", websocket.New(s.handleStatusWS))
	app.Get("/ws/shots", websocket.New(s.handleShotsWS))

	s.app = app
	return s
}

// App exposes the fiber app, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen runs the hubs and serves on addr until Shutdown.
func (s *Server) Listen(addr string) error {
	go s.statusHub.Run()
	go s.shotsHub.Run()

	s.statusHub.BroadcastJSON(statusOf(s.booth.Snapshot()))
	s.logger.Info("web server listening", "addr", addr)
	return s.app.Listen(addr)
}

// Shutdown stops the hubs and the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.statusHub.Stop()
	s.shotsHub.Stop()
	return s.app.ShutdownWithContext(ctx)
}

// Observe is a booth.Observer. It publishes every snapshot on the status
// feed and each newly captured shot on the preview feed.
func (s *Server) Observe(snap booth.Snapshot) {
	if err := s.statusHub.BroadcastJSON(statusOf(snap)); err != nil {
		s.logger.Warn("status not broadcast", "error", err)
	}

	s.mu.Lock()
	if snap.SessionID != s.sessionID {
		s.sessionID = snap.SessionID
		s.sent = 0
	}
	fresh := snap.Shots[min(s.sent, len(snap.Shots)):]
	s.sent = len(snap.Shots)
	s.mu.Unlock()

	for _, f := range fresh {
		data, err := f.EncodeJPEG(s.previewQ)
		if err != nil {
			s.logger.Warn("preview not encoded", "shot", f.Index(), "error", err)
			continue
		}
		s.shotsHub.BroadcastBinary(data)
	}
}

// handleStatusWS streams status snapshots
func (s *Server) handleStatusWS(c *websocket.Conn) {
	if client := hub.NewClient(s.statusHub, c); client != nil {
		client.Run()
	}
}

// handleShotsWS streams JPEG previews as shots are taken
func (s *Server) handleShotsWS(c *websocket.Conn) {
	if client := hub.NewClient(s.shotsHub, c); client != nil {
		client.Run()
	}
}
