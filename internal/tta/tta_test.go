package tta

import (
	"testing"

	"transcribecore/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestAggregate_UnStretch mirrors spec.md §8 scenario 10.
func TestAggregate_UnStretch(t *testing.T) {
	identity := variantResult{
		weight: 1.0,
		notes:  []models.Note{{Pitch: 60, Onset: 1.000, Offset: 1.2, Velocity: 80, Confidence: 0.8}},
	}
	stretched := variantResult{
		weight: 0.5,
		// already reverse-projected: 0.950 / 0.95 = 1.000
		notes: []models.Note{{Pitch: 60, Onset: 1.000, Offset: 1.2, Velocity: 80, Confidence: 0.8}},
	}

	merged := aggregate([]variantResult{identity, stretched}, DefaultConfig())
	require.Len(t, merged, 1)
	assert.Equal(t, 60, merged[0].Pitch)
	assert.InDelta(t, 1.0, merged[0].Confidence, 1e-9)
	assert.InDelta(t, 1.000, merged[0].Onset, 1e-9)
}

func TestReverseAugmentation_TimeStretch(t *testing.T) {
	notes := []models.Note{{Pitch: 60, Onset: 0.950, Offset: 1.140}}
	out := reverseAugmentation(notes, Variant{Kind: KindTimeStretch, Factor: 0.95})
	assert.InDelta(t, 1.000, out[0].Onset, 1e-9)
	assert.InDelta(t, 1.2, out[0].Offset, 1e-9)
}

func TestReverseAugmentation_PitchShift(t *testing.T) {
	notes := []models.Note{{Pitch: 61, Onset: 1.0, Offset: 1.2}}
	out := reverseAugmentation(notes, Variant{Kind: KindPitchShift, Semitones: 1})
	assert.Equal(t, 60, out[0].Pitch)
}

// TestAggregate_IdentityOnlyMatchesEnsemble covers spec.md §8 property 5:
// a single identity variant at weight 1.0 reproduces C4's output (modulo
// confidence bookkeeping, which is unchanged here since weight==1.0).
func TestAggregate_IdentityOnlyMatchesEnsemble(t *testing.T) {
	ensembleOutput := []models.Note{
		{Pitch: 60, Onset: 1.0127, Offset: 1.5, Velocity: 80, Confidence: 0.94},
		{Pitch: 64, Onset: 2.00, Offset: 2.5, Velocity: 80, Confidence: 0.52},
	}
	merged := aggregate([]variantResult{{weight: 1.0, notes: ensembleOutput}}, Config{
		ToleranceSec:       0.1,
		MinTotalConfidence: 0.25,
	})
	require.Len(t, merged, 2)
	for i, n := range ensembleOutput {
		assert.Equal(t, n.Pitch, merged[i].Pitch)
		assert.InDelta(t, n.Onset, merged[i].Onset, 1e-9)
		assert.InDelta(t, n.Confidence, merged[i].Confidence, 1e-9)
	}
}

func TestAggregate_MinVotesSafetyRailDropsSingleVariantNotes(t *testing.T) {
	only := variantResult{weight: 1.0, notes: []models.Note{{Pitch: 60, Onset: 1.0, Offset: 1.2, Confidence: 0.9}}}
	merged := aggregate([]variantResult{only}, Config{ToleranceSec: 0.1, MinTotalConfidence: 0.25, MinVotes: 2})
	assert.Empty(t, merged)
}
