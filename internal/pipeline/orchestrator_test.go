package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"transcribecore/internal/database"
	"transcribecore/internal/jobstore"
	"transcribecore/internal/models"
	"transcribecore/internal/repository"
	"transcribecore/internal/stageerr"
)

func newTestOrchestrator(t *testing.T) (*Orchestrator, *jobstore.Store) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "jobs.db")
	if err := database.Initialize(dbPath); err != nil {
		t.Fatalf("database.Initialize: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	repo := repository.NewJobRepository(database.DB)
	bus := jobstore.NewEventBus()
	t.Cleanup(bus.Close)
	store := jobstore.NewStore(repo, bus)

	o := &Orchestrator{store: store, cfg: Config{WorkspaceRoot: t.TempDir()}}
	return o, store
}

func TestWriteArtifact_ProducesMIDIAndSidecar(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	workspaceDir := t.TempDir()

	notes := []models.Note{
		{Pitch: 60, Onset: 0.0, Offset: 0.5, Velocity: 90, Confidence: 0.9},
		{Pitch: 64, Onset: 0.5, Offset: 1.0, Velocity: 80, Confidence: 0.8},
	}

	ref, err := o.writeArtifact(workspaceDir, "piano", notes)
	if err != nil {
		t.Fatalf("writeArtifact error: %v", err)
	}

	if _, err := os.Stat(ref.MIDIPath); err != nil {
		t.Fatalf("expected MIDI file to exist: %v", err)
	}
	if _, err := os.Stat(ref.ConfidencePath); err != nil {
		t.Fatalf("expected confidence sidecar to exist: %v", err)
	}

	data, err := os.ReadFile(ref.MIDIPath)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) == 0 || string(data[:4]) != "MThd" {
		t.Fatalf("expected a valid SMF header, got %q", data[:min(4, len(data))])
	}
}

func TestFail_RecordsStageKindAndMessage(t *testing.T) {
	o, store := newTestOrchestrator(t)
	ctx := context.Background()

	rec, err := store.Create(ctx, "job-fail-1", models.SourceUpload, "/tmp/x.wav", models.JobOptions{Instruments: []string{"piano"}})
	if err != nil {
		t.Fatal(err)
	}
	running := models.StatusRunning
	if _, err := store.Update(ctx, rec.JobID, repository.Patch{Status: &running}); err != nil {
		t.Fatal(err)
	}

	o.fail(ctx, rec.JobID, stageerr.Wrap("separation", errors.New("gpu out of memory")))

	updated, err := store.Get(ctx, rec.JobID)
	if err != nil {
		t.Fatal(err)
	}
	if updated.Status != models.StatusFailed {
		t.Fatalf("expected status failed, got %s", updated.Status)
	}
	if updated.Error == nil {
		t.Fatal("expected error to be recorded")
	}
	if updated.Error.Stage != "separation" {
		t.Fatalf("expected stage separation, got %s", updated.Error.Stage)
	}
	if updated.Error.Message != "gpu out of memory" {
		t.Fatalf("expected message to round-trip, got %q", updated.Error.Message)
	}
}

func TestStageOf_DefaultsToInternalForPlainErrors(t *testing.T) {
	if got := stageOf(errors.New("boom")); got != "internal" {
		t.Fatalf("expected internal, got %s", got)
	}
	if got := stageOf(stageerr.Wrap("audio", errors.New("boom"))); got != "audio" {
		t.Fatalf("expected audio, got %s", got)
	}
}

func TestPublishProgress_UpdatesRecordAndPublishesEvent(t *testing.T) {
	o, store := newTestOrchestrator(t)
	ctx := context.Background()

	rec, err := store.Create(ctx, "job-progress-1", models.SourceUpload, "/tmp/x.wav", models.JobOptions{Instruments: []string{"piano"}})
	if err != nil {
		t.Fatal(err)
	}

	events := store.Subscribe(rec.JobID)
	defer store.Unsubscribe(rec.JobID, events)

	o.publishProgress(rec.JobID, 25, "separation")

	updated, err := store.Get(ctx, rec.JobID)
	if err != nil {
		t.Fatal(err)
	}
	if updated.Progress != 25 || updated.CurrentStage != "separation" {
		t.Fatalf("expected progress=25 stage=separation, got progress=%d stage=%s", updated.Progress, updated.CurrentStage)
	}

	select {
	case ev := <-events:
		if ev.Progress != 25 || ev.Stage != "separation" {
			t.Fatalf("unexpected event: %+v", ev)
		}
	default:
		t.Fatal("expected a published progress event")
	}
}
