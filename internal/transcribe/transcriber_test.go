package transcribe

import (
	"testing"

	"transcribecore/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestWindowMax_FindsPeakWithinWindow(t *testing.T) {
	roll := make([][]float64, 10)
	for i := range roll {
		roll[i] = make([]float64, models.RollWidth)
	}
	roll[5][10] = 0.87

	got := windowMax(roll, 10, 0.05, 100) // frame 5 at 100Hz
	assert.InDelta(t, 0.87, got, 1e-9)
}

func TestWindowMax_OutOfRangeReturnsZero(t *testing.T) {
	roll := [][]float64{{0.5}}
	assert.Equal(t, 0.0, windowMax(roll, 5, 10.0, 100))
	assert.Equal(t, 0.0, windowMax(nil, 0, 0, 100))
}

func TestDedupeOnsetBucket_KeepsHighestConfidence(t *testing.T) {
	notes := []models.Note{
		{Pitch: 60, Onset: 1.00, Offset: 1.2, Confidence: 0.4},
		{Pitch: 60, Onset: 1.01, Offset: 1.2, Confidence: 0.9},
		{Pitch: 64, Onset: 2.00, Offset: 2.2, Confidence: 0.5},
	}
	out := dedupeOnsetBucket(notes, models.Duration128th*2)
	assert.Len(t, out, 2)
	assert.Equal(t, 0.9, out[0].Confidence)
}

func TestDropBelowDurationFloor_DropsSubFloorNotes(t *testing.T) {
	notes := []models.Note{
		{Pitch: 60, Onset: 1.0, Offset: 1.0},                            // zero duration: dropped
		{Pitch: 62, Onset: 2.0, Offset: 2.0 + models.Duration128th},     // exactly at floor: kept
		{Pitch: 64, Onset: 3.0, Offset: 3.0 + models.Duration128th*10},  // well above floor: kept
	}
	out := dropBelowDurationFloor(notes)
	assert.Len(t, out, 2)
	assert.Equal(t, 62, out[0].Pitch)
	assert.Equal(t, 64, out[1].Pitch)
}
