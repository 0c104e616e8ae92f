package archive

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/teslashibe/go-photobooth/internal/log"
	"github.com/teslashibe/go-photobooth/pkg/booth"
	"github.com/teslashibe/go-photobooth/pkg/compose"
	"github.com/teslashibe/go-photobooth/pkg/delivery"
)

func openMemory(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_SaveAndRecent(t *testing.T) {
	s := openMemory(t)
	ctx := context.Background()
	base := time.Date(2026, 6, 6, 18, 0, 0, 0, time.UTC)

	for i, outcome := range []string{"complete", "failed", "complete"} {
		err := s.Save(ctx, Record{
			SessionID:  string(rune('a' + i)),
			StartedAt:  base.Add(time.Duration(i) * time.Minute),
			FinishedAt: base.Add(time.Duration(i)*time.Minute + 20*time.Second),
			Target:     3,
			Shots:      3 - i,
			Outcome:    outcome,
		})
		if err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	recent, err := s.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 2 || recent[0].SessionID != "c" || recent[1].SessionID != "b" {
		t.Fatalf("recent = %+v", recent)
	}
	if !recent[0].FinishedAt.Equal(base.Add(2*time.Minute + 20*time.Second)) {
		t.Errorf("FinishedAt = %v", recent[0].FinishedAt)
	}

	counts, err := s.Counts(ctx)
	if err != nil {
		t.Fatalf("Counts: %v", err)
	}
	if counts["complete"] != 2 || counts["failed"] != 1 {
		t.Errorf("counts = %v", counts)
	}
}

func TestStore_SaveReplaces(t *testing.T) {
	s := openMemory(t)
	ctx := context.Background()

	s.Save(ctx, Record{SessionID: "x", Outcome: "failed"})
	s.Save(ctx, Record{SessionID: "x", Outcome: "complete"})

	recent, _ := s.Recent(ctx, 10)
	if len(recent) != 1 || recent[0].Outcome != "complete" {
		t.Errorf("recent = %+v", recent)
	}
}

func TestOpen_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "booth.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); err != nil {
		t.Errorf("database file not created: %v", err)
	}
}

func TestDir_Save(t *testing.T) {
	d := Dir{Path: filepath.Join(t.TempDir(), "strips")}

	path, err := d.Save("../photobooth-1.jpg", []byte{1, 2, 3})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if filepath.Dir(path) != d.Path {
		t.Errorf("file escaped the directory: %s", path)
	}
	got, _ := os.ReadFile(path)
	if !bytes.Equal(got, []byte{1, 2, 3}) {
		t.Errorf("contents = %v", got)
	}

	if _, err := d.Save("x.jpg", nil); !errors.Is(err, ErrEmptyStrip) {
		t.Errorf("empty save = %v, want ErrEmptyStrip", err)
	}
	if _, err := d.Save("  ", []byte{1}); err == nil {
		t.Error("expected error for blank name")
	}
}

func TestRecorder_Observe(t *testing.T) {
	s := openMemory(t)
	dir := &Dir{Path: t.TempDir()}
	r := NewRecorder(s, dir, log.Discard())
	r.now = func() time.Time { return time.Date(2026, 6, 6, 18, 1, 0, 0, time.UTC) }

	strip := &compose.Composite{Bytes: []byte{0xFF, 0xD8, 0xFF, 0xD9}}

	r.Observe(booth.Snapshot{State: booth.State{Phase: booth.PhaseCountdown, Target: 2}, SessionID: "ignored"})
	r.Observe(booth.Snapshot{
		State:     booth.State{Phase: booth.PhaseComplete, Target: 2, Shots: 2},
		SessionID: "remote",
		Composite: strip,
		Artifact:  &delivery.Artifact{Kind: delivery.KindRemote, Remote: &delivery.Remote{URL: "https://example/r.jpg"}},
	})
	r.Observe(booth.Snapshot{
		State:     booth.State{Phase: booth.PhaseComplete, Target: 1, Shots: 1},
		SessionID: "local",
		Composite: strip,
		Artifact: &delivery.Artifact{Kind: delivery.KindLocal, Local: &delivery.Local{
			Bytes: strip.Bytes, Filename: "photobooth-x.jpg", Reason: "offline",
		}},
	})
	r.Observe(booth.Snapshot{
		State:     booth.State{Phase: booth.PhaseFailed, Target: 2, Reason: booth.ReasonCaptureFailure, Skipped: 2},
		SessionID: "failed",
	})

	recent, err := s.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	byID := make(map[string]Record)
	for _, rec := range recent {
		byID[rec.SessionID] = rec
	}

	if len(byID) != 3 {
		t.Fatalf("archived %d sessions, want 3: %+v", len(byID), recent)
	}
	if rec := byID["remote"]; rec.Delivery != "remote" || rec.URL != "https://example/r.jpg" || rec.Bytes != 4 {
		t.Errorf("remote record = %+v", rec)
	}
	rec := byID["local"]
	if rec.Delivery != "local" || rec.Reason != "offline" || rec.LocalPath == "" {
		t.Errorf("local record = %+v", rec)
	}
	if data, err := os.ReadFile(rec.LocalPath); err != nil || !bytes.Equal(data, strip.Bytes) {
		t.Errorf("local copy = %v, %v", data, err)
	}
	if rec := byID["failed"]; rec.Outcome != "failed" || rec.Reason != booth.ReasonCaptureFailure || rec.Skipped != 2 {
		t.Errorf("failed record = %+v", rec)
	}
}
