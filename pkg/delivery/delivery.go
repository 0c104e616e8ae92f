// Package delivery hands a finished strip to the guest.
//
// A Pipeline makes exactly one upload attempt. Success yields a Remote
// artifact carrying the file URL and a QR code for it; any failure yields a
// Local artifact carrying the same JPEG bytes for the kiosk to save.
// Falling back is a normal outcome, so Deliver returns a value, not an error.
package delivery

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/teslashibe/go-photobooth/pkg/compose"
)

// Upload is the request handed to a Transport.
type Upload struct {
	Filename string
	MimeType string
	Payload  []byte
}

// Status is the outcome reported by a Transport.
type Status string

// Upload statuses.
const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// UploadResult is a transport's answer.
type UploadResult struct {
	Status  Status
	URL     string
	Message string
}

// Transport stores a file somewhere reachable by URL.
type Transport interface {
	Upload(ctx context.Context, u Upload) (*UploadResult, error)
}

// Kind tags an Artifact.
type Kind string

// Artifact kinds.
const (
	KindRemote Kind = "remote"
	KindLocal  Kind = "local"
)

// Remote is a successfully uploaded strip.
type Remote struct {
	URL  string `json:"url"`
	Code []byte `json:"-"` // PNG retrieval code encoding URL
}

// Local is a strip the kiosk must keep itself.
type Local struct {
	Bytes    []byte `json:"-"`
	Filename string `json:"filename"`
	Reason   string `json:"reason"`
}

// Artifact is the result of delivery. Exactly one of Remote and Local is
// set, matching Kind.
type Artifact struct {
	Kind   Kind    `json:"kind"`
	Remote *Remote `json:"remote,omitempty"`
	Local  *Local  `json:"local,omitempty"`
}

// IsRemote reports whether the upload succeeded.
func (a Artifact) IsRemote() bool { return a.Kind == KindRemote }

// Pipeline performs single-attempt delivery with local fallback.
type Pipeline struct {
	transport Transport
	codes     CodeGenerator
	level     Level
	prefix    string
	timeout   time.Duration
	now       func() time.Time
	logger    *slog.Logger
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithCodeGenerator replaces the default 256px QR generator.
func WithCodeGenerator(g CodeGenerator) PipelineOption {
	return func(p *Pipeline) {
		p.codes = g
	}
}

// WithLevel sets the retrieval code error-correction level.
func WithLevel(l Level) PipelineOption {
	return func(p *Pipeline) {
		p.level = l
	}
}

// WithFilenamePrefix sets the prefix of generated filenames.
func WithFilenamePrefix(prefix string) PipelineOption {
	return func(p *Pipeline) {
		p.prefix = prefix
	}
}

// WithTimeout bounds the upload attempt.
func WithTimeout(d time.Duration) PipelineOption {
	return func(p *Pipeline) {
		p.timeout = d
	}
}

// WithClock sets the clock used for filenames.
func WithClock(now func() time.Time) PipelineOption {
	return func(p *Pipeline) {
		p.now = now
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) PipelineOption {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// NewPipeline creates a pipeline over t.
func NewPipeline(t Transport, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		transport: t,
		codes:     NewQRGenerator(256),
		level:     LevelHigh,
		prefix:    "photobooth-",
		timeout:   45 * time.Second,
		now:       time.Now,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With("component", "delivery")
	return p
}

// Filename returns the upload name for a strip delivered at t.
func (p *Pipeline) Filename(t time.Time) string {
	return p.prefix + t.UTC().Format("2006-01-02T15-04-05.000Z") + ".jpg"
}

// Deliver uploads c once. It always returns an artifact.
func (p *Pipeline) Deliver(ctx context.Context, c *compose.Composite) (art Artifact) {
	filename := p.Filename(p.now())
	var payload []byte
	if c != nil {
		payload = c.Bytes
	}

	fallback := func(err error) Artifact {
		p.logger.Warn("upload failed, keeping strip locally", "filename", filename, "error", err)
		return Artifact{
			Kind:  KindLocal,
			Local: &Local{Bytes: payload, Filename: filename, Reason: err.Error()},
		}
	}

	// A misbehaving transport must not take the session down with it.
	defer func() {
		if r := recover(); r != nil {
			art = fallback(fmt.Errorf("%w: transport panic: %v", ErrDeliveryFailure, r))
		}
	}()

	if len(payload) == 0 {
		return fallback(fmt.Errorf("%w: empty composite", ErrDeliveryFailure))
	}
	if p.transport == nil {
		return fallback(fmt.Errorf("%w: %v", ErrDeliveryFailure, ErrTransportDisabled))
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	start := time.Now()
	res, err := p.transport.Upload(ctx, Upload{
		Filename: filename,
		MimeType: compose.MimeType,
		Payload:  payload,
	})
	if err != nil {
		return fallback(fmt.Errorf("%w: %v", ErrDeliveryFailure, err))
	}
	if res == nil {
		return fallback(fmt.Errorf("%w: empty response", ErrDeliveryFailure))
	}
	if res.Status != StatusSuccess {
		msg := res.Message
		if msg == "" {
			msg = "transport reported failure"
		}
		return fallback(fmt.Errorf("%w: %s", ErrDeliveryFailure, msg))
	}
	if err := checkURL(res.URL); err != nil {
		return fallback(fmt.Errorf("%w: %v", ErrDeliveryFailure, err))
	}

	code, err := p.codes.Encode(res.URL, p.level)
	if err != nil {
		return fallback(fmt.Errorf("%w: %v", ErrDeliveryFailure, err))
	}

	p.logger.Info("strip uploaded",
		"filename", filename,
		"url", res.URL,
		"bytes", len(payload),
		"elapsed", time.Since(start),
	)
	return Artifact{Kind: KindRemote, Remote: &Remote{URL: res.URL, Code: code}}
}

func checkURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrBadURL, raw)
	}
	return nil
}
