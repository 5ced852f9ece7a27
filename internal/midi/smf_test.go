package midi

import (
	"testing"

	"transcribecore/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteSMF_RoundTrip(t *testing.T) {
	notes := []models.Note{
		{Pitch: 60, Onset: 1.0, Offset: 1.5, Velocity: 100, Confidence: 0.9},
		{Pitch: 64, Onset: 2.0, Offset: 2.25, Velocity: 80, Confidence: 0.5},
	}

	data := WriteSingleInstrumentSMF("piano", notes, 120, "4/4")
	require.NotEmpty(t, data)

	parsed, err := ReadSMF(data)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(parsed.Tracks), 1)

	instrumentTrack := parsed.Tracks[len(parsed.Tracks)-1]
	require.Len(t, instrumentTrack, 2)

	SortByOnsetPitch(instrumentTrack)
	assert.Equal(t, 60, instrumentTrack[0].Pitch)
	assert.InDelta(t, 1.0, instrumentTrack[0].Onset, 0.01)
	assert.Equal(t, 64, instrumentTrack[1].Pitch)
	assert.InDelta(t, 2.0, instrumentTrack[1].Onset, 0.01)
}

func TestWriteSMF_EmptyNotesYieldsZeroNoteTrack(t *testing.T) {
	data := WriteSingleInstrumentSMF("drums", nil, 120, "4/4")
	parsed, err := ReadSMF(data)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(parsed.Tracks), 1)
	assert.Empty(t, parsed.Tracks[len(parsed.Tracks)-1])
}

func TestSidecar_OrderingMatchesMIDI(t *testing.T) {
	notes := []models.Note{
		{Pitch: 64, Onset: 2.0, Offset: 2.25, Velocity: 80, Confidence: 0.52},
		{Pitch: 60, Onset: 1.0, Offset: 1.5, Velocity: 100, Confidence: 0.94},
	}

	entries := BuildSidecar(notes)
	require.Len(t, entries, 2)
	assert.Equal(t, 60, entries[0].Pitch)
	assert.Equal(t, 64, entries[1].Pitch)

	raw, err := EncodeSidecar(entries)
	require.NoError(t, err)

	decoded, err := DecodeSidecar(raw)
	require.NoError(t, err)
	assert.Equal(t, entries, decoded)
}

func TestParseTimeSignature(t *testing.T) {
	num, pow := parseTimeSignature("3/4")
	assert.Equal(t, byte(3), num)
	assert.Equal(t, byte(2), pow)

	num, pow = parseTimeSignature("")
	assert.Equal(t, byte(4), num)
	assert.Equal(t, byte(2), pow)
}
