package metadata

import (
	"testing"

	"transcribecore/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestDetect_TooFewNotesReturnsDefaults(t *testing.T) {
	got := Detect([]models.Note{{Pitch: 60, Onset: 0, Offset: 0.5}})
	assert.Equal(t, DefaultTempoBPM, got.TempoBPM)
	assert.Equal(t, DefaultTimeSignature, got.TimeSignature)
}

func TestDetectTempo_SteadyQuarterNotesAt120BPM(t *testing.T) {
	var notes []models.Note
	for i := 0; i < 16; i++ {
		onset := float64(i) * 0.5 // 120 BPM quarter notes
		notes = append(notes, models.Note{Pitch: 60, Onset: onset, Offset: onset + 0.4})
	}
	tempo := detectTempo(notes)
	assert.InDelta(t, 120.0, tempo, 2.0)
}

func TestDetectKey_CMajorScaleFavorsCMajor(t *testing.T) {
	cMajorPitches := []int{60, 62, 64, 65, 67, 69, 71, 72}
	var notes []models.Note
	for i, p := range cMajorPitches {
		onset := float64(i) * 0.5
		notes = append(notes, models.Note{Pitch: p, Onset: onset, Offset: onset + 0.45})
	}
	key := detectKey(notes)
	assert.Equal(t, "C major", key)
}

func TestRotate_PreservesTonicAtZero(t *testing.T) {
	profile := rotate(krumhanslMajor, 0)
	assert.Equal(t, krumhanslMajor, profile)
}
