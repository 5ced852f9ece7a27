// Package separator implements C2: splitting a mixed recording into
// per-instrument stems and deciding which stems are worth transcribing.
package separator

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"

	"transcribecore/internal/models"
	"transcribecore/internal/modelengine"
	"transcribecore/internal/stageerr"
	"transcribecore/pkg/logger"
)

// fourStemSet is the stem set the pre-trained separation model's base
// variant natively emits, per spec.md §4.2 ("drums, bass, vocals, other --
// or a 6-stem variant including piano and guitar"). isFourStemVariant uses
// it to tell which variant actually ran, for logging only.
var fourStemSet = map[string]bool{
	models.InstrumentVocals: true,
	models.InstrumentDrums:  true,
	models.InstrumentBass:   true,
	models.InstrumentOther:  true,
}

// Separator drives the separation model engine and applies the routing/
// energy-floor policy of spec.md §4.2.
type Separator struct {
	engine      *modelengine.Manager
	energyFloor float64
}

// NewSeparator constructs a Separator bound to its model engine and an
// energy-fraction drop floor (default 0.01 per spec.md §4.2).
func NewSeparator(engine *modelengine.Manager, energyFloor float64) *Separator {
	if energyFloor <= 0 {
		energyFloor = 0.01
	}
	return &Separator{engine: engine, energyFloor: energyFloor}
}

type engineStem struct {
	Path            string  `json:"path"`
	SampleRate      int     `json:"sample_rate"`
	DurationSeconds float64 `json:"duration_seconds"`
	EnergyFraction  float64 `json:"energy_fraction"`
}

type separateParams struct {
	AudioPath    string `json:"audio_path"`
	WorkspaceDir string `json:"workspace_dir"`
}

type separateResult struct {
	Stems map[string]engineStem `json:"stems"`
}

// Result is what the orchestrator receives back from Separate: the emitted
// stems plus any routing warnings (unrecognized tags, dropped instruments).
type Result struct {
	Stems    map[string]models.Stem
	Warnings []string
}

// Separate runs the separation model on audioPath and returns one stem per
// requested, natively-producible (or residually-derivable) instrument tag
// that clears the energy floor.
func (s *Separator) Separate(ctx context.Context, audioPath, workspaceDir string, requestedInstruments []string) (*Result, error) {
	stemsDir := filepath.Join(workspaceDir, "stems")

	var out separateResult
	err := s.engine.Call(ctx, "separate", separateParams{AudioPath: audioPath, WorkspaceDir: stemsDir}, &out)
	if err != nil {
		return nil, fmt.Errorf("%w: separation model failed: %v", stageerr.ErrModelError, err)
	}
	if len(out.Stems) == 0 {
		return nil, fmt.Errorf("%w: separation model returned no stems", stageerr.ErrModelError)
	}
	if isFourStemVariant(out.Stems) {
		logger.Debug("separation model ran 4-stem variant", "stems", len(out.Stems))
	} else {
		logger.Debug("separation model ran 6-stem variant", "stems", len(out.Stems))
	}

	result := &Result{Stems: map[string]models.Stem{}}

	for _, tag := range requestedInstruments {
		if !models.RecognizedInstruments[tag] {
			result.Warnings = append(result.Warnings, fmt.Sprintf("unrecognized instrument tag %q ignored", tag))
			continue
		}

		native, ok := out.Stems[tag]
		if !ok && tag == models.InstrumentPiano {
			// 4-stem model: "other" already is the residual instrumental
			// track (mix minus vocals/bass/drums), so it stands in for piano.
			if other, hasOther := out.Stems[models.InstrumentOther]; hasOther {
				native = other
				ok = true
				logger.Debug("deriving piano stem from residual 'other' stem")
			}
		}
		if !ok {
			result.Warnings = append(result.Warnings, fmt.Sprintf("instrument %q not produced by separation model", tag))
			continue
		}

		if native.EnergyFraction < s.energyFloor {
			result.Warnings = append(result.Warnings, fmt.Sprintf("instrument %q not present (energy fraction %.4f below floor %.4f)", tag, native.EnergyFraction, s.energyFloor))
			continue
		}

		result.Stems[tag] = models.Stem{
			InstrumentTag:   tag,
			AudioPath:       native.Path,
			SampleRate:      native.SampleRate,
			DurationSeconds: native.DurationSeconds,
			EnergyFraction:  native.EnergyFraction,
		}
	}

	if len(result.Stems) == 0 {
		return result, fmt.Errorf("%w: every requested instrument fell below the energy floor or was unavailable", stageerr.ErrNoAudioContent)
	}

	return result, nil
}

// isFourStemVariant reports whether stems contains only tags the base
// 4-stem model emits (no native piano/guitar separation).
func isFourStemVariant(stems map[string]engineStem) bool {
	for tag := range stems {
		if !fourStemSet[tag] {
			return false
		}
	}
	return true
}

// OrderedTags returns the stems of r sorted by instrument tag, giving the
// orchestrator a deterministic per-stem processing order.
func (r *Result) OrderedTags() []string {
	tags := make([]string, 0, len(r.Stems))
	for tag := range r.Stems {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}
