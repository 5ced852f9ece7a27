package refiner

import (
	"testing"

	"transcribecore/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestExtractNotes_ZeroRollYieldsNoNotes covers spec.md §8 property 6:
// refining an empty (all-zero) roll yields an empty MIDI.
func TestExtractNotes_ZeroRollYieldsNoNotes(t *testing.T) {
	roll := models.NewNoteRoll(2.0)
	notes := extractNotes(roll, DefaultThreshold)
	assert.Empty(t, notes)
}

// TestExtractNotes_IsolatedSpikeBelowThresholdDropped mirrors spec.md §8
// scenario 11's post-smoothing outcome: a roll where the learned model's
// output has already fallen below threshold at the formerly-active frame
// yields zero notes for that pitch.
func TestExtractNotes_IsolatedSpikeBelowThresholdDropped(t *testing.T) {
	roll := models.NewNoteRoll(2.0)
	pitchIdx := 72 - models.RollPitchLo
	roll.Frames[100][pitchIdx] = 0.3 // below threshold after smoothing
	notes := extractNotes(roll, DefaultThreshold)
	assert.Empty(t, notes)
}

func TestExtractNotes_SingleRunYieldsOneNote(t *testing.T) {
	roll := models.NewNoteRoll(2.0)
	pitchIdx := 60 - models.RollPitchLo
	for f := 100; f < 110; f++ {
		roll.Frames[f][pitchIdx] = 1.0
	}
	notes := extractNotes(roll, DefaultThreshold)
	require.Len(t, notes, 1)
	assert.Equal(t, 60, notes[0].Pitch)
	assert.InDelta(t, 1.0, notes[0].Onset, 1e-9)
	assert.InDelta(t, 1.10, notes[0].Offset, 1e-9)
}

func TestAssignVelocities_UsesNearestEnsembleNoteWithinTolerance(t *testing.T) {
	notes := []models.Note{{Pitch: 60, Onset: 1.001}}
	ensembleNotes := []models.Note{
		{Pitch: 60, Onset: 1.0, Velocity: 100},
		{Pitch: 60, Onset: 5.0, Velocity: 30},
	}
	assignVelocities(notes, ensembleNotes)
	assert.Equal(t, 100, notes[0].Velocity)
}

func TestAssignVelocities_DefaultsWhenNoneWithinTolerance(t *testing.T) {
	notes := []models.Note{{Pitch: 60, Onset: 1.0}}
	ensembleNotes := []models.Note{{Pitch: 60, Onset: 5.0, Velocity: 30}}
	assignVelocities(notes, ensembleNotes)
	assert.Equal(t, DefaultVelocity, notes[0].Velocity)
}

func TestRasterize_MarksOnsetToOffsetFrames(t *testing.T) {
	notes := []models.Note{{Pitch: 60, Onset: 0.0, Offset: 0.05}}
	roll := rasterize(notes, 1.0)
	pitchIdx := 60 - models.RollPitchLo
	assert.Equal(t, 1.0, roll.Frames[0][pitchIdx])
	assert.Equal(t, 1.0, roll.Frames[4][pitchIdx])
	assert.Equal(t, 0.0, roll.Frames[5][pitchIdx])
}
