// Package refiner implements C6: passing the ensemble's note roll through
// a learned smoothing model and re-extracting notes from its output, per
// spec.md §4.6.
package refiner

import (
	"context"
	"fmt"

	"transcribecore/internal/models"
	"transcribecore/internal/modelengine"
)

// MaxChunkFrames bounds each model invocation to spec.md §4.6 step 2's
// "non-overlapping windows of at most 10,000 frames (~100s)".
const MaxChunkFrames = 10000

// DefaultThreshold is spec.md §4.6 step 5's roll-extraction threshold.
const DefaultThreshold = 0.5

// VelocityToleranceSec bounds how far from a refined note's onset the
// nearest ensemble note of the same pitch may sit and still donate its
// velocity, per spec.md §4.6 step 5.
const VelocityToleranceSec = 0.05

// DefaultVelocity is used when no ensemble note falls within tolerance.
const DefaultVelocity = 80

// Refiner wraps the refinement model engine.
type Refiner struct {
	engine *modelengine.Manager
}

// NewRefiner builds C6 over its model engine.
func NewRefiner(engine *modelengine.Manager) *Refiner {
	return &Refiner{engine: engine}
}

type chunkParams struct {
	Roll [][]float64 `json:"roll"`
}

type chunkResult struct {
	Roll [][]float64 `json:"roll"`
}

// Refine rasterizes ensembleNotes to a note roll spanning durationSeconds,
// chunks it, runs each chunk through the model, concatenates the result,
// and re-extracts notes at threshold. Per spec.md §4.6's failure
// semantics, the caller is expected to fall back to ensembleNotes
// unmodified on any returned error; Refine never partially applies.
func (r *Refiner) Refine(ctx context.Context, ensembleNotes []models.Note, durationSeconds float64, threshold float64) ([]models.Note, error) {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	roll := rasterize(ensembleNotes, durationSeconds)
	refined, err := r.runChunked(ctx, roll)
	if err != nil {
		return nil, fmt.Errorf("refine: %w", err)
	}

	notes := extractNotes(refined, threshold)
	assignVelocities(notes, ensembleNotes)
	return notes, nil
}

// rasterize converts notes into a (T, 88) activation roll at 100Hz,
// marking every frame within [onset, offset) active at probability 1.0.
func rasterize(notes []models.Note, durationSeconds float64) *models.NoteRoll {
	roll := models.NewNoteRoll(durationSeconds)
	for _, n := range notes {
		if n.Pitch < models.RollPitchLo || n.Pitch > models.RollPitchHi {
			continue
		}
		pitchIdx := n.Pitch - models.RollPitchLo
		startFrame := int(n.Onset * roll.FrameRateHz)
		endFrame := int(n.Offset * roll.FrameRateHz)
		for f := startFrame; f < endFrame && f < len(roll.Frames); f++ {
			if f < 0 {
				continue
			}
			roll.Frames[f][pitchIdx] = 1.0
		}
	}
	return roll
}

// runChunked splits roll into at-most-MaxChunkFrames windows, runs each
// independently through the model engine, and concatenates the results
// back into a single roll of the original shape.
func (r *Refiner) runChunked(ctx context.Context, roll *models.NoteRoll) (*models.NoteRoll, error) {
	out := &models.NoteRoll{FrameRateHz: roll.FrameRateHz, Frames: make([][]float64, 0, len(roll.Frames))}

	for start := 0; start < len(roll.Frames); start += MaxChunkFrames {
		end := start + MaxChunkFrames
		if end > len(roll.Frames) {
			end = len(roll.Frames)
		}
		chunk := roll.Frames[start:end]

		var res chunkResult
		if err := r.engine.Call(ctx, "refine", chunkParams{Roll: chunk}, &res); err != nil {
			return nil, err
		}
		if len(res.Roll) != len(chunk) {
			return nil, fmt.Errorf("refiner engine returned %d frames for a %d-frame chunk", len(res.Roll), len(chunk))
		}
		out.Frames = append(out.Frames, res.Roll...)
	}
	return out, nil
}

// extractNotes thresholds roll and, for each pitch, turns runs of frames
// at-or-above threshold into notes, per spec.md §4.6 step 5.
func extractNotes(roll *models.NoteRoll, threshold float64) []models.Note {
	if roll == nil || len(roll.Frames) == 0 {
		return nil
	}
	period := 1.0 / roll.FrameRateHz

	var notes []models.Note
	for pitchIdx := 0; pitchIdx < models.RollWidth; pitchIdx++ {
		runStart := -1
		for f := 0; f <= len(roll.Frames); f++ {
			active := f < len(roll.Frames) && roll.Frames[f][pitchIdx] >= threshold
			switch {
			case active && runStart < 0:
				runStart = f
			case !active && runStart >= 0:
				notes = append(notes, models.Note{
					Pitch:  pitchIdx + models.RollPitchLo,
					Onset:  float64(runStart) * period,
					Offset: float64(f) * period,
				})
				runStart = -1
			}
		}
	}
	return notes
}

// assignVelocities copies each refined note's velocity from the nearest
// ensemble note of the same pitch within VelocityToleranceSec, defaulting
// to DefaultVelocity otherwise, per spec.md §4.6 step 5.
func assignVelocities(notes []models.Note, ensembleNotes []models.Note) {
	byPitch := map[int][]models.Note{}
	for _, n := range ensembleNotes {
		byPitch[n.Pitch] = append(byPitch[n.Pitch], n)
	}

	for i := range notes {
		notes[i].Velocity = DefaultVelocity
		best := -1.0
		bestVelocity := -1
		for _, candidate := range byPitch[notes[i].Pitch] {
			diff := candidate.Onset - notes[i].Onset
			if diff < 0 {
				diff = -diff
			}
			if diff > VelocityToleranceSec {
				continue
			}
			if bestVelocity < 0 || diff < best {
				best = diff
				bestVelocity = candidate.Velocity
			}
		}
		if bestVelocity >= 0 {
			notes[i].Velocity = bestVelocity
		}
	}
}
