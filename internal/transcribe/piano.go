package transcribe

import (
	"context"
	"math"

	"transcribecore/internal/models"
	"transcribecore/internal/modelengine"
)

// PianoSpecialist is Transcriber B: a piano-specialized model that exposes
// onset/offset probability rolls alongside its decoded notes, per
// spec.md §4.3.2. It is only ever invoked on the piano stem.
type PianoSpecialist struct {
	engine *modelengine.Manager
}

// NewPianoSpecialist builds Transcriber B over its model engine.
func NewPianoSpecialist(engine *modelengine.Manager) *PianoSpecialist {
	return &PianoSpecialist{engine: engine}
}

func (p *PianoSpecialist) Name() string { return "B" }

type pianoResult struct {
	Notes       []engineNote  `json:"notes"`
	OnsetRoll   [][]float64   `json:"onset_roll"`  // [frame][pitchIndex 0..87]
	OffsetRoll  [][]float64   `json:"offset_roll"` // same shape
	FrameRateHz float64       `json:"frame_rate_hz"`
}

// confidenceFloor keeps the geometric-mean confidence strictly positive, per
// spec.md §4.3.2's "clamped to (0,1]".
const confidenceFloor = 1e-6

// Transcribe runs the piano model, then for each decoded note looks up a
// +-2 frame window around onset/offset in the respective roll and combines
// the two maxima by geometric mean.
func (p *PianoSpecialist) Transcribe(ctx context.Context, stemAudioPath, workspaceDir string) (*Output, error) {
	var res pianoResult
	if err := p.engine.Call(ctx, "transcribe", transcribeParams{AudioPath: stemAudioPath, WorkspaceDir: workspaceDir}, &res); err != nil {
		return nil, wrapModelError(p.Name(), err)
	}

	frameRate := res.FrameRateHz
	if frameRate <= 0 {
		frameRate = models.RollHz
	}

	var notes []models.Note
	for _, n := range res.Notes {
		if n.Pitch < models.RollPitchLo || n.Pitch > models.RollPitchHi {
			continue // B retains only the piano range, per spec.md §4.3
		}
		pitchIdx := n.Pitch - models.RollPitchLo

		onsetConf := windowMax(res.OnsetRoll, pitchIdx, n.Onset, frameRate)
		offsetConf := windowMax(res.OffsetRoll, pitchIdx, n.Offset, frameRate)
		confidence := math.Sqrt(onsetConf * offsetConf)
		if confidence < confidenceFloor {
			confidence = confidenceFloor
		}
		if confidence > 1.0 {
			confidence = 1.0
		}

		notes = append(notes, models.Note{
			Pitch:      n.Pitch,
			Onset:      n.Onset,
			Offset:     n.Offset,
			Velocity:   n.Velocity,
			Confidence: confidence,
		})
	}

	notes = dropBelowDurationFloor(notes)
	notes = dedupeOnsetBucket(notes, models.Duration128th)
	return &Output{Notes: notes}, nil
}

// windowMax returns the maximum probability within +-2 frames of timeSec
// at pitchIdx in roll, 0 if the roll is empty or the index falls outside it.
func windowMax(roll [][]float64, pitchIdx int, timeSec float64, frameRateHz float64) float64 {
	if len(roll) == 0 || pitchIdx < 0 {
		return 0
	}
	center := int(timeSec*frameRateHz + 0.5)
	lo, hi := center-2, center+2

	max := 0.0
	for f := lo; f <= hi; f++ {
		if f < 0 || f >= len(roll) {
			continue
		}
		row := roll[f]
		if pitchIdx >= len(row) {
			continue
		}
		if row[pitchIdx] > max {
			max = row[pitchIdx]
		}
	}
	return max
}
