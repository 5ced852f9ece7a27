package transcribe

import (
	"context"

	"transcribecore/internal/models"
	"transcribecore/internal/modelengine"
)

// Generalist is Transcriber A: a multi-instrument polyphonic note
// predictor with no native confidence signal, per spec.md §4.3.1.
type Generalist struct {
	engine *modelengine.Manager
}

// NewGeneralist builds Transcriber A over its model engine.
func NewGeneralist(engine *modelengine.Manager) *Generalist {
	return &Generalist{engine: engine}
}

func (g *Generalist) Name() string { return "A" }

type transcribeParams struct {
	AudioPath    string `json:"audio_path"`
	WorkspaceDir string `json:"workspace_dir"`
}

type generalistResult struct {
	Notes []engineNote `json:"notes"`
}

// Transcribe ingests the full stem audio and emits notes with a fixed
// default confidence of 1.0 on every note, so the voter can treat A
// uniformly against B's real per-note confidence.
func (g *Generalist) Transcribe(ctx context.Context, stemAudioPath, workspaceDir string) (*Output, error) {
	var res generalistResult
	if err := g.engine.Call(ctx, "transcribe", transcribeParams{AudioPath: stemAudioPath, WorkspaceDir: workspaceDir}, &res); err != nil {
		return nil, wrapModelError(g.Name(), err)
	}

	notes := make([]models.Note, 0, len(res.Notes))
	for _, n := range res.Notes {
		notes = append(notes, models.Note{
			Pitch:      n.Pitch,
			Onset:      n.Onset,
			Offset:     n.Offset,
			Velocity:   n.Velocity,
			Confidence: 1.0,
		})
	}
	notes = dropBelowDurationFloor(notes)
	notes = dedupeOnsetBucket(notes, models.Duration128th)
	return &Output{Notes: notes}, nil
}
