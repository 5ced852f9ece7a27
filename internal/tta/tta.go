// Package tta implements C5: re-running the ensemble on augmented copies
// of a stem and aggregating predictions back to the original frame by
// confidence-sum, per spec.md §4.5.
package tta

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"transcribecore/internal/audio"
	"transcribecore/internal/ensemble"
	"transcribecore/internal/models"
	"transcribecore/internal/transcribe"

	"golang.org/x/sync/errgroup"
)

// VariantKind distinguishes the augmentation ffmpeg invocation a variant
// needs, per spec.md §4.5.
type VariantKind int

const (
	KindIdentity VariantKind = iota
	KindPitchShift
	KindTimeStretch
)

// Variant is one augmented pass over the stem audio.
type Variant struct {
	Name      string
	Weight    float64
	Kind      VariantKind
	Semitones int     // only for KindPitchShift
	Factor    float64 // only for KindTimeStretch
}

// DefaultVariants returns spec.md §4.5's five default variants.
func DefaultVariants() []Variant {
	return []Variant{
		{Name: "original", Weight: 1.0, Kind: KindIdentity},
		{Name: "pitch_shift_up1", Weight: 0.7, Kind: KindPitchShift, Semitones: 1},
		{Name: "pitch_shift_down1", Weight: 0.7, Kind: KindPitchShift, Semitones: -1},
		{Name: "time_stretch_1.05", Weight: 0.5, Kind: KindTimeStretch, Factor: 1.05},
		{Name: "time_stretch_0.95", Weight: 0.5, Kind: KindTimeStretch, Factor: 0.95},
	}
}

// Config holds the aggregator's tunables, per spec.md §4.5/§9.
type Config struct {
	ToleranceSec       float64 // default 0.1 (100ms), wider than C4's
	MinTotalConfidence float64 // default equal to C4's threshold, 0.25
	MinVotes           int     // safety rail, default 0 (off) per spec.md §9
}

// DefaultConfig returns spec.md §4.5's production defaults.
func DefaultConfig() Config {
	return Config{ToleranceSec: 0.1, MinTotalConfidence: 0.25, MinVotes: 0}
}

// Aggregator runs C3+C4 on each configured variant and fuses the results.
type Aggregator struct {
	transcriberA transcribe.Transcriber
	transcriberB transcribe.Transcriber // nil for non-piano stems
	weightA      float64
	weightB      float64
	voteCfg      ensemble.Config
	sampleRate   int
}

// NewAggregator builds C5 over an already-constructed C3 pair and C4
// config, mirroring the weighting the orchestrator uses for the base
// ensemble pass.
func NewAggregator(transcriberA, transcriberB transcribe.Transcriber, weightA, weightB float64, voteCfg ensemble.Config, sampleRate int) *Aggregator {
	return &Aggregator{
		transcriberA: transcriberA,
		transcriberB: transcriberB,
		weightA:      weightA,
		weightB:      weightB,
		voteCfg:      voteCfg,
		sampleRate:   sampleRate,
	}
}

type variantResult struct {
	name   string
	weight float64
	notes  []models.Note
}

// Run executes every variant concurrently (independent, per spec.md §5),
// reverses each variant's augmentation, and aggregates by confidence-sum.
func (a *Aggregator) Run(ctx context.Context, stemAudioPath, workspaceDir string, variants []Variant, cfg Config) ([]models.Note, error) {
	results := make([]variantResult, len(variants))

	g, ctx := errgroup.WithContext(ctx)
	for i, v := range variants {
		i, v := i, v
		g.Go(func() error {
			notes, err := a.runVariant(ctx, stemAudioPath, workspaceDir, v)
			if err != nil {
				return fmt.Errorf("tta variant %s: %w", v.Name, err)
			}
			results[i] = variantResult{name: v.Name, weight: v.Weight, notes: notes}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return aggregate(results, cfg), nil
}

func (a *Aggregator) runVariant(ctx context.Context, stemAudioPath, workspaceDir string, v Variant) ([]models.Note, error) {
	variantDir := filepath.Join(workspaceDir, "tta", v.Name)
	if err := os.MkdirAll(variantDir, 0o755); err != nil {
		return nil, fmt.Errorf("create variant workspace: %w", err)
	}

	audioPath := stemAudioPath
	switch v.Kind {
	case KindPitchShift:
		shifted, err := audio.PitchShift(ctx, stemAudioPath, variantDir, v.Semitones, a.sampleRate)
		if err != nil {
			return nil, err
		}
		audioPath = shifted
	case KindTimeStretch:
		// Factor scales the timeline (0.95 puts a note at 1.000s at 0.950s),
		// so the tempo passed to ffmpeg is its reciprocal; reverseAugmentation
		// then divides by Factor to project back.
		stretched, err := audio.TimeStretch(ctx, stemAudioPath, variantDir, 1.0/v.Factor)
		if err != nil {
			return nil, err
		}
		audioPath = stretched
	}

	outA, err := a.transcriberA.Transcribe(ctx, audioPath, variantDir)
	if err != nil {
		return nil, err
	}

	var notesB []models.Note
	if a.transcriberB != nil {
		outB, err := a.transcriberB.Transcribe(ctx, audioPath, variantDir)
		if err != nil {
			return nil, err
		}
		notesB = outB.Notes
	}

	merged := ensemble.Vote(outA.Notes, notesB, a.weightA, a.weightB, a.voteCfg)
	return reverseAugmentation(merged, v), nil
}

// reverseAugmentation projects a variant's predictions back onto the
// original stem's pitch/time frame, per spec.md §4.5 step 2.
func reverseAugmentation(notes []models.Note, v Variant) []models.Note {
	out := make([]models.Note, len(notes))
	for i, n := range notes {
		switch v.Kind {
		case KindPitchShift:
			n.Pitch -= v.Semitones
		case KindTimeStretch:
			n.Onset /= v.Factor
			n.Offset /= v.Factor
		}
		out[i] = n
	}
	return out
}

// aggregate groups reversed per-variant notes by (pitch, onset-bucket) in
// the original frame and combines each group by confidence-sum, per
// spec.md §4.5 steps 3-6. Groups are represented as models.VoteMember, the
// same per-contributor type C4's ensemble.Vote groups use.
func aggregate(results []variantResult, cfg Config) []models.Note {
	byPitch := map[int][]models.VoteMember{}
	empty := true
	for _, r := range results {
		for _, n := range r.notes {
			empty = false
			byPitch[n.Pitch] = append(byPitch[n.Pitch], models.VoteMember{
				SourceLabel: r.name,
				Weight:      r.weight,
				Confidence:  n.Confidence,
				Onset:       n.Onset,
				Offset:      n.Offset,
				Velocity:    n.Velocity,
			})
		}
	}
	if empty {
		return nil
	}

	var merged []models.Note
	for pitch, candidates := range byPitch {
		sort.Slice(candidates, func(i, j int) bool { return candidates[i].Onset < candidates[j].Onset })

		var group []models.VoteMember
		var lastOnset float64
		flush := func() {
			if n, ok := emitGroup(pitch, group, cfg); ok {
				merged = append(merged, n)
			}
		}
		for _, c := range candidates {
			if len(group) == 0 || c.Onset-lastOnset <= cfg.ToleranceSec {
				group = append(group, c)
				lastOnset = c.Onset
				continue
			}
			flush()
			group = []models.VoteMember{c}
			lastOnset = c.Onset
		}
		flush()
	}

	sort.Slice(merged, func(i, j int) bool {
		if merged[i].Onset != merged[j].Onset {
			return merged[i].Onset < merged[j].Onset
		}
		return merged[i].Pitch < merged[j].Pitch
	})
	return merged
}

func emitGroup(pitch int, group []models.VoteMember, cfg Config) (models.Note, bool) {
	if len(group) == 0 {
		return models.Note{}, false
	}
	if cfg.MinVotes > 0 && len(group) < cfg.MinVotes {
		return models.Note{}, false
	}

	total := 0.0
	for _, m := range group {
		total += m.Weight * m.Confidence
	}
	if total < cfg.MinTotalConfidence {
		return models.Note{}, false
	}

	var wOnset, wOffset, wVel, wSum float64
	for _, m := range group {
		w := m.Weight * m.Confidence
		wSum += w
		wOnset += w * m.Onset
		wOffset += w * m.Offset
		wVel += w * float64(m.Velocity)
	}
	if wSum == 0 {
		n := float64(len(group))
		for _, m := range group {
			wOnset += m.Onset / n
			wOffset += m.Offset / n
			wVel += float64(m.Velocity) / n
		}
		wSum = 1
	}

	confidence := total
	if confidence > 1.0 {
		confidence = 1.0
	}

	velocity := int(wVel/wSum + 0.5)
	if velocity < 1 {
		velocity = 1
	}
	if velocity > 127 {
		velocity = 127
	}

	return models.Note{
		Pitch:      pitch,
		Onset:      wOnset / wSum,
		Offset:     wOffset / wSum,
		Velocity:   velocity,
		Confidence: confidence,
	}, true
}
