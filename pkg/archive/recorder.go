package archive

import (
	"context"
	"log/slog"
	"time"

	"github.com/teslashibe/go-photobooth/pkg/booth"
	"github.com/teslashibe/go-photobooth/pkg/delivery"
)

// Recorder logs every session that reaches Complete or Failed and keeps a
// copy of strips that were delivered locally.
type Recorder struct {
	store  *Store
	dir    *Dir
	now    func() time.Time
	logger *slog.Logger
}

// NewRecorder creates a recorder. dir may be nil to skip local copies.
func NewRecorder(store *Store, dir *Dir, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		store:  store,
		dir:    dir,
		now:    time.Now,
		logger: logger.With("component", "archive"),
	}
}

// Observe is a booth.Observer.
func (r *Recorder) Observe(snap booth.Snapshot) {
	if !snap.State.Phase.Terminal() || snap.SessionID == "" {
		return
	}

	rec := Record{
		SessionID:  snap.SessionID,
		StartedAt:  snap.StartedAt,
		FinishedAt: r.now(),
		Target:     snap.State.Target,
		Shots:      snap.State.Shots,
		Skipped:    snap.State.Skipped,
		Outcome:    string(snap.State.Phase),
		Reason:     snap.State.Reason,
	}
	if snap.Composite != nil {
		rec.Bytes = len(snap.Composite.Bytes)
	}

	if art := snap.Artifact; art != nil {
		rec.Delivery = string(art.Kind)
		switch art.Kind {
		case delivery.KindRemote:
			rec.URL = art.Remote.URL
		case delivery.KindLocal:
			rec.Reason = art.Local.Reason
			if r.dir != nil {
				path, err := r.dir.Save(art.Local.Filename, art.Local.Bytes)
				if err != nil {
					r.logger.Error("local copy failed", "session_id", snap.SessionID, "error", err)
				} else {
					rec.LocalPath = path
				}
			}
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.store.Save(ctx, rec); err != nil {
		r.logger.Error("session not archived", "session_id", snap.SessionID, "error", err)
		return
	}
	r.logger.Debug("session archived", "session_id", snap.SessionID, "outcome", rec.Outcome)
}
