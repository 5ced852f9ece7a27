package ensemble

import (
	"testing"

	"transcribecore/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestVote_PianoEnsembleOneSureOneUnsure mirrors spec.md §8 scenario 8.
func TestVote_PianoEnsembleOneSureOneUnsure(t *testing.T) {
	notesA := []models.Note{
		{Pitch: 60, Onset: 1.00, Offset: 1.5, Velocity: 80, Confidence: 1.0},
		{Pitch: 64, Onset: 2.00, Offset: 2.5, Velocity: 80, Confidence: 1.0},
	}
	notesB := []models.Note{
		{Pitch: 60, Onset: 1.02, Offset: 1.5, Velocity: 80, Confidence: 0.9},
		{Pitch: 64, Onset: 2.00, Offset: 2.5, Velocity: 80, Confidence: 0.2},
	}

	merged := Vote(notesA, notesB, 0.4, 0.6, Config{Threshold: 0.25, ToleranceSec: 0.05})
	require.Len(t, merged, 2)

	assert.Equal(t, 60, merged[0].Pitch)
	assert.InDelta(t, 0.94, merged[0].Confidence, 1e-9)
	assert.InDelta(t, 1.0127, merged[0].Onset, 1e-4)

	assert.Equal(t, 64, merged[1].Pitch)
	assert.InDelta(t, 0.52, merged[1].Confidence, 1e-9)
}

// TestVote_DropsBelowThreshold mirrors spec.md §8 scenario 9 with B's
// weight at 0.2: pitch 60 scores 0.1*1.0 + 0.2*0.9 = 0.28 >= 0.25 and is
// kept, pitch 64 scores 0.1*1.0 + 0.2*0.2 = 0.14 < 0.25 and is dropped.
// (With B at 0.1 pitch 60 would score 0.19 and be dropped as well.)
func TestVote_DropsBelowThreshold(t *testing.T) {
	notesA := []models.Note{
		{Pitch: 60, Onset: 1.00, Offset: 1.5, Velocity: 80, Confidence: 1.0},
		{Pitch: 64, Onset: 2.00, Offset: 2.5, Velocity: 80, Confidence: 1.0},
	}
	notesB := []models.Note{
		{Pitch: 60, Onset: 1.02, Offset: 1.5, Velocity: 80, Confidence: 0.9},
		{Pitch: 64, Onset: 2.00, Offset: 2.5, Velocity: 80, Confidence: 0.2},
	}

	merged := Vote(notesA, notesB, 0.1, 0.2, Config{Threshold: 0.25, ToleranceSec: 0.05})
	require.Len(t, merged, 1)
	assert.Equal(t, 60, merged[0].Pitch)
}

// TestVote_CollapsesToAWhenBMissing covers spec.md §4.7 step 4's degenerate
// single-transcriber case for non-piano stems (weightB == 0, notesB == nil).
func TestVote_CollapsesToAWhenBMissing(t *testing.T) {
	notesA := []models.Note{
		{Pitch: 40, Onset: 0.5, Offset: 1.0, Velocity: 90, Confidence: 1.0},
	}
	merged := Vote(notesA, nil, 1.0, 0, DefaultConfig())
	require.Len(t, merged, 1)
	assert.Equal(t, 40, merged[0].Pitch)
	assert.InDelta(t, 1.0, merged[0].Confidence, 1e-9)
}

func TestVote_EmptyInputsYieldNoNotes(t *testing.T) {
	assert.Empty(t, Vote(nil, nil, 1.0, 0, DefaultConfig()))
}
