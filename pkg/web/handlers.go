package web

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/teslashibe/go-photobooth/pkg/booth"
	"github.com/teslashibe/go-photobooth/pkg/camera"
	"github.com/teslashibe/go-photobooth/pkg/compose"
	"github.com/teslashibe/go-photobooth/pkg/delivery"
)

// Status is the JSON view of a snapshot
type Status struct {
	State     booth.State `json:"state"`
	SessionID string      `json:"session_id,omitempty"`
	Result    *Result     `json:"result,omitempty"`
}

// Result describes a finished strip
type Result struct {
	Kind     delivery.Kind `json:"kind"`
	URL      string        `json:"url,omitempty"`
	Filename string        `json:"filename,omitempty"`
	Reason   string        `json:"reason,omitempty"`
	Width    int           `json:"width"`
	Height   int           `json:"height"`
}

func statusOf(snap booth.Snapshot) Status {
	st := Status{State: snap.State, SessionID: snap.SessionID}
	if art := snap.Artifact; art != nil && snap.Composite != nil {
		r := &Result{Kind: art.Kind, Width: snap.Composite.Width, Height: snap.Composite.Height}
		switch {
		case art.Remote != nil:
			r.URL = art.Remote.URL
		case art.Local != nil:
			r.Filename = art.Local.Filename
			r.Reason = art.Local.Reason
		}
		st.Result = r
	}
	return st
}

// Options is the response of GET /api/options
type Options struct {
	ShotOptions         []int  `json:"shot_options"`
	DefaultShots        int    `json:"default_shots"`
	CountdownFirst      int    `json:"countdown_first"`
	CountdownSubsequent int    `json:"countdown_subsequent"`
	FlashMillis         int64  `json:"flash_ms"`
	Aspect              string `json:"aspect"`
}

// StartRequest is the body of POST /api/session
type StartRequest struct {
	Shots int `json:"shots"`
}

func apiError(c *fiber.Ctx, status int, err error) error {
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

// statusFor maps booth errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, booth.ErrInvalidShotCount):
		return fiber.StatusBadRequest
	case errors.Is(err, booth.ErrSessionActive),
		errors.Is(err, booth.ErrNotCancellable),
		errors.Is(err, booth.ErrInvalidTransition),
		errors.Is(err, camera.ErrDeviceBusy):
		return fiber.StatusConflict
	case errors.Is(err, camera.ErrDeviceUnavailable),
		errors.Is(err, booth.ErrClosed):
		return fiber.StatusServiceUnavailable
	}
	return fiber.StatusInternalServerError
}

// handleStatus returns the current snapshot
func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(statusOf(s.booth.Snapshot()))
}

// handleOptions returns what the start screen offers
func (s *Server) handleOptions(c *fiber.Ctx) error {
	t := s.booth.Timing()
	return c.JSON(Options{
		ShotOptions:         s.booth.ShotOptions(),
		DefaultShots:        s.defaultShots,
		CountdownFirst:      t.CountdownFirst,
		CountdownSubsequent: t.CountdownSubsequent,
		FlashMillis:         t.Flash.Milliseconds(),
		Aspect:              s.layout.Ratio.String(),
	})
}

// handleStart begins a session
func (s *Server) handleStart(c *fiber.Ctx) error {
	var req StartRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apiError(c, fiber.StatusBadRequest, fmt.Errorf("invalid body: %w", err))
		}
	}
	if req.Shots == 0 {
		req.Shots = s.defaultShots
	}

	id, err := s.booth.Start(c.UserContext(), req.Shots)
	if err != nil {
		s.logger.Warn("session not started", "shots", req.Shots, "error", err)
		return apiError(c, statusFor(err), err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"session_id": id})
}

// handleCancel abandons the running session
func (s *Server) handleCancel(c *fiber.Ctx) error {
	if err := s.booth.Cancel(); err != nil {
		return apiError(c, statusFor(err), err)
	}
	return c.JSON(statusOf(s.booth.Snapshot()))
}

// handleReset clears a finished session
func (s *Server) handleReset(c *fiber.Ctx) error {
	if err := s.booth.Reset(); err != nil {
		return apiError(c, statusFor(err), err)
	}
	return c.JSON(statusOf(s.booth.Snapshot()))
}

// handleShot returns one captured shot as JPEG
func (s *Server) handleShot(c *fiber.Ctx) error {
	i, err := strconv.Atoi(c.Params("index"))
	if err != nil {
		return apiError(c, fiber.StatusBadRequest, fmt.Errorf("invalid shot index %q", c.Params("index")))
	}
	shots := s.booth.Snapshot().Shots
	if i < 0 || i >= len(shots) {
		return apiError(c, fiber.StatusNotFound, fmt.Errorf("no shot %d", i))
	}

	data, err := shots[i].EncodeJPEG(s.previewQ)
	if err != nil {
		return apiError(c, fiber.StatusInternalServerError, err)
	}
	c.Set(fiber.HeaderContentType, compose.MimeType)
	return c.Send(data)
}

// handleResultImage returns the finished strip
func (s *Server) handleResultImage(c *fiber.Ctx) error {
	comp := s.booth.Snapshot().Composite
	if comp == nil {
		return apiError(c, fiber.StatusNotFound, errors.New("no strip yet"))
	}
	c.Set(fiber.HeaderContentType, comp.MimeType())
	return c.Send(comp.Bytes)
}

// handleResultCode returns the retrieval code of an uploaded strip
func (s *Server) handleResultCode(c *fiber.Ctx) error {
	art := s.booth.Snapshot().Artifact
	if art == nil || art.Remote == nil {
		return apiError(c, fiber.StatusNotFound, errors.New("strip was not uploaded"))
	}
	c.Set(fiber.HeaderContentType, "image/png")
	return c.Send(art.Remote.Code)
}

// handleResultDownload serves a locally delivered strip as an attachment
func (s *Server) handleResultDownload(c *fiber.Ctx) error {
	art := s.booth.Snapshot().Artifact
	if art == nil || art.Local == nil {
		return apiError(c, fiber.StatusNotFound, errors.New("no local strip"))
	}
	c.Set(fiber.HeaderContentType, compose.MimeType)
	c.Attachment(art.Local.Filename)
	return c.Send(art.Local.Bytes)
}

// handleLayout computes the screen layout for a viewport
func (s *Server) handleLayout(c *fiber.Ctx) error {
	var vals [3]int
	for i, key := range []string{"width", "height", "shots"} {
		raw := c.Query(key)
		if raw == "" && key == "shots" {
			vals[i] = s.defaultShots
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return apiError(c, fiber.StatusBadRequest, fmt.Errorf("invalid %s %q", key, raw))
		}
		vals[i] = n
	}
	return c.JSON(s.layout.Compute(vals[0], vals[1], vals[2]))
}

// handleSessions lists recent sessions
func (s *Server) handleSessions(c *fiber.Ctx) error {
	if s.history == nil {
		return c.JSON([]any{})
	}
	recs, err := s.history.Recent(c.UserContext(), c.QueryInt("limit", 20))
	if err != nil {
		s.logger.Error("history query failed", "error", err)
		return apiError(c, fiber.StatusInternalServerError, err)
	}
	if recs == nil {
		return c.JSON([]any{})
	}
	return c.JSON(recs)
}
