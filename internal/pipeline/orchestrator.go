// Package pipeline implements C7: the stage machine that drives a job
// from queued through its terminal state, composing C2 through C6 and
// streaming progress to the Job Store, per spec.md §4.7.
package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"transcribecore/internal/audio"
	"transcribecore/internal/ensemble"
	"transcribecore/internal/jobstore"
	"transcribecore/internal/metadata"
	"transcribecore/internal/midi"
	"transcribecore/internal/models"
	"transcribecore/internal/refiner"
	"transcribecore/internal/repository"
	"transcribecore/internal/separator"
	"transcribecore/internal/stageerr"
	"transcribecore/internal/transcribe"
	"transcribecore/internal/tta"
	"transcribecore/pkg/logger"
)

// Config holds the orchestrator's tunables, threaded down into C4/C5/C6.
type Config struct {
	WorkspaceRoot string

	WeightA            float64
	WeightBPiano       float64
	VoteThreshold      float64
	VoteToleranceSec   float64
	TTAToleranceSec    float64
	TTAMinVotes        int
	DurationCeilingSec float64
	EnergyFloor        float64
}

// Orchestrator is C7. Its transcriber/refiner/separator dependencies wrap
// shared, lazily-started model engines reused across jobs, per spec.md
// §5's "Shared resources" clause.
type Orchestrator struct {
	store      *jobstore.Store
	acquirer   *audio.Acquirer
	separator  *separator.Separator
	generalist transcribe.Transcriber
	piano      transcribe.Transcriber
	refiner    *refiner.Refiner
	cfg        Config
}

// New wires C7 over its constructed collaborators.
func New(store *jobstore.Store, acquirer *audio.Acquirer, sep *separator.Separator, generalist, piano transcribe.Transcriber, ref *refiner.Refiner, cfg Config) *Orchestrator {
	return &Orchestrator{
		store:      store,
		acquirer:   acquirer,
		separator:  sep,
		generalist: generalist,
		piano:      piano,
		refiner:    ref,
		cfg:        cfg,
	}
}

// Process drives one job to completion or failure. It is meant to be
// invoked by a single worker at a time, per spec.md §5's single-worker
// scheduling model.
func (o *Orchestrator) Process(ctx context.Context, jobID string) {
	rec, err := o.store.Get(ctx, jobID)
	if err != nil {
		logger.Error("pipeline: job vanished before processing", "job_id", jobID, "error", err)
		return
	}

	start := time.Now()
	now := time.Now().Unix()
	running := models.StatusRunning
	if _, err := o.store.Update(ctx, jobID, repository.Patch{Status: &running, StartedAt: &now, Progress: intPtr(0), CurrentStage: strPtr("starting")}); err != nil {
		logger.Error("pipeline: failed to transition job to running", "job_id", jobID, "error", err)
		return
	}
	o.store.Publish(jobID, jobstore.Event{Type: jobstore.EventProgress, Progress: 0, Stage: "starting"})
	logger.JobStarted(jobID, string(rec.SourceKind), rec.Options.Instruments)

	artifactCount, err := o.run(ctx, jobID, rec)
	if err != nil {
		o.fail(ctx, jobID, err)
		logger.JobFailed(jobID, time.Since(start), stageOf(err), err)
		return
	}

	finishedAt := time.Now().Unix()
	completed := models.StatusCompleted
	if _, err := o.store.Update(ctx, jobID, repository.Patch{Status: &completed, FinishedAt: &finishedAt, Progress: intPtr(100), CurrentStage: strPtr("completed")}); err != nil {
		logger.Error("pipeline: failed to transition job to completed", "job_id", jobID, "error", err)
		return
	}
	o.store.Publish(jobID, jobstore.Event{Type: jobstore.EventCompleted})
	logger.JobCompleted(jobID, time.Since(start), artifactCount)
}

// run executes steps 2-6 of spec.md §4.7 and returns the number of
// artifacts produced. Any returned error carries a *stageerr.StageError
// the caller uses to fail the job.
func (o *Orchestrator) run(ctx context.Context, jobID string, rec *jobstore.Record) (int, error) {
	workspaceDir := filepath.Join(o.cfg.WorkspaceRoot, jobID)
	if err := os.MkdirAll(workspaceDir, 0o755); err != nil {
		return 0, stageerr.Wrap("audio", err)
	}

	sourcePath, err := o.acquirer.Acquire(ctx, rec.SourceKind, rec.SourceValue, workspaceDir)
	if err != nil {
		return 0, stageerr.Wrap("audio", err)
	}
	info := audio.Probe(ctx, sourcePath)
	if err := audio.CheckDuration(info, o.cfg.DurationCeilingSec); err != nil {
		return 0, stageerr.Wrap("audio", err)
	}
	o.publishProgress(jobID, 10, "audio")

	sepResult, err := o.separator.Separate(ctx, sourcePath, workspaceDir, rec.Options.Instruments)
	if err != nil {
		return 0, stageerr.Wrap("separation", err)
	}
	o.publishProgress(jobID, 25, "separation")

	if len(sepResult.Warnings) > 0 {
		warning := strings.Join(sepResult.Warnings, "; ")
		if _, err := o.store.Update(ctx, jobID, repository.Patch{AppendWarning: &warning}); err != nil {
			logger.Warn("pipeline: failed to record separation warnings", "job_id", jobID, "error", err)
		}
	}

	tags := sepResult.OrderedTags()
	total := len(tags)
	artifacts := map[string]models.ArtifactRef{}
	var allNotes []models.Note

	for i, tag := range tags {
		stem := sepResult.Stems[tag]
		stage := "ensemble/" + tag

		notes, err := o.processStem(ctx, workspaceDir, tag, stem, rec.Options)
		if err != nil {
			return 0, stageerr.Wrap(stage, err)
		}
		allNotes = append(allNotes, notes...)

		ref, err := o.writeArtifact(workspaceDir, tag, notes)
		if err != nil {
			return 0, stageerr.Wrap(stage, err)
		}
		artifacts[tag] = ref

		progress := 25 + int(70*float64(i+1)/float64(total))
		o.publishProgress(jobID, progress, stage)
	}

	// Collect: artifacts are only recorded on the job once every stem has
	// succeeded, per spec.md §4.7 step 5's atomicity requirement.
	if _, err := o.store.Update(ctx, jobID, repository.Patch{Artifacts: &artifacts}); err != nil {
		return 0, stageerr.Wrap("collection", err)
	}

	detected := metadata.Detect(allNotes)
	jobMetadata := models.JobMetadata{Tempo: detected.TempoBPM, Key: detected.Key, TimeSignature: detected.TimeSignature}
	if _, err := o.store.Update(ctx, jobID, repository.Patch{Metadata: &jobMetadata}); err != nil {
		return 0, stageerr.Wrap("metadata", err)
	}

	return len(artifacts), nil
}

// processStem runs C3+C4, then optionally C5 and C6, for one stem, per
// spec.md §4.7 step 4.
func (o *Orchestrator) processStem(ctx context.Context, workspaceDir, tag string, stem models.Stem, opts models.JobOptions) ([]models.Note, error) {
	stemDir := filepath.Join(workspaceDir, "transcriptions", tag)
	if err := os.MkdirAll(stemDir, 0o755); err != nil {
		return nil, err
	}

	isPiano := tag == models.InstrumentPiano
	weightA, weightB := o.cfg.WeightA, o.cfg.WeightBPiano
	if !isPiano {
		weightA, weightB = 1.0, 0
	}
	voteCfg := ensemble.Config{WeightA: weightA, WeightB: weightB, Threshold: o.cfg.VoteThreshold, ToleranceSec: o.cfg.VoteToleranceSec}

	outA, err := o.generalist.Transcribe(ctx, stem.AudioPath, stemDir)
	if err != nil {
		return nil, err
	}

	var notesB []models.Note
	if isPiano {
		outB, err := o.piano.Transcribe(ctx, stem.AudioPath, stemDir)
		if err != nil {
			return nil, err
		}
		notesB = outB.Notes
	}

	merged := ensemble.Vote(outA.Notes, notesB, weightA, weightB, voteCfg)

	if opts.EnableTTA {
		var pianoTranscriber transcribe.Transcriber
		if isPiano {
			pianoTranscriber = o.piano
		}
		aggregator := tta.NewAggregator(o.generalist, pianoTranscriber, weightA, weightB, voteCfg, stem.SampleRate)
		ttaCfg := tta.Config{ToleranceSec: o.cfg.TTAToleranceSec, MinTotalConfidence: o.cfg.VoteThreshold, MinVotes: o.cfg.TTAMinVotes}
		ttaNotes, err := aggregator.Run(ctx, stem.AudioPath, stemDir, tta.DefaultVariants(), ttaCfg)
		if err != nil {
			return nil, err
		}
		merged = ttaNotes
	}

	if opts.EnableRefiner {
		refined, err := o.refiner.Refine(ctx, merged, stem.DurationSeconds, refiner.DefaultThreshold)
		if err != nil {
			// best-effort: fall back to the pre-refinement ensemble output
			// without failing the job, per spec.md §4.6/§7.
			logger.Warn("refiner failed, falling back to ensemble output", "stem", tag, "error", err)
		} else {
			merged = refined
		}
	}

	return merged, nil
}

// writeArtifact renders notes to a MIDI file plus confidence sidecar under
// the job's artifacts directory.
func (o *Orchestrator) writeArtifact(workspaceDir, tag string, notes []models.Note) (models.ArtifactRef, error) {
	artifactsDir := filepath.Join(workspaceDir, "artifacts")
	if err := os.MkdirAll(artifactsDir, 0o755); err != nil {
		return models.ArtifactRef{}, err
	}

	midiPath := filepath.Join(artifactsDir, tag+".mid")
	smf := midi.WriteSingleInstrumentSMF(tag, notes, midi.DefaultTempoBPM, "4/4")
	if err := os.WriteFile(midiPath, smf, 0o644); err != nil {
		return models.ArtifactRef{}, err
	}

	sidecarPath := filepath.Join(artifactsDir, tag+"_confidence.json")
	entries := midi.BuildSidecar(notes)
	encoded, err := midi.EncodeSidecar(entries)
	if err != nil {
		return models.ArtifactRef{}, err
	}
	if err := os.WriteFile(sidecarPath, encoded, 0o644); err != nil {
		return models.ArtifactRef{}, err
	}

	return models.ArtifactRef{MIDIPath: midiPath, ConfidencePath: sidecarPath}, nil
}

func (o *Orchestrator) publishProgress(jobID string, progress int, stage string) {
	if _, err := o.store.Update(context.Background(), jobID, repository.Patch{Progress: intPtr(progress), CurrentStage: strPtr(stage)}); err != nil {
		logger.Warn("pipeline: failed to record progress", "job_id", jobID, "stage", stage, "error", err)
	}
	o.store.Publish(jobID, jobstore.Event{Type: jobstore.EventProgress, Progress: progress, Stage: stage})
}

// fail transitions the job to failed and records the {kind, stage,
// message} triple, per spec.md §4.7's "on any uncaught exception" clause.
func (o *Orchestrator) fail(ctx context.Context, jobID string, err error) {
	se, ok := err.(*stageerr.StageError)
	if !ok {
		se = stageerr.Wrap("internal", err)
	}
	jobErr := se.ToJobError()

	finishedAt := time.Now().Unix()
	failed := models.StatusFailed
	if _, uerr := o.store.Update(ctx, jobID, repository.Patch{Status: &failed, FinishedAt: &finishedAt, Error: &jobErr, CurrentStage: &jobErr.Stage}); uerr != nil {
		logger.Error("pipeline: failed to transition job to failed", "job_id", jobID, "error", uerr)
	}
	o.store.Publish(jobID, jobstore.Event{Type: jobstore.EventError, Error: jobErr})
}

func stageOf(err error) string {
	if se, ok := err.(*stageerr.StageError); ok {
		return se.Stage
	}
	return "internal"
}

func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }
