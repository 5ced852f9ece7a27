package midi

import (
	"encoding/json"
	"sort"

	"transcribecore/internal/models"
)

// BuildSidecar produces the confidence sidecar entries for a note set,
// sorted by (onset, pitch) to match the MIDI note-on ordering, per
// spec.md §6 and §9.
func BuildSidecar(notes []models.Note) []models.ConfidenceEntry {
	sorted := make([]models.Note, len(notes))
	copy(sorted, notes)
	sortNotesByOnsetPitch(sorted)

	entries := make([]models.ConfidenceEntry, len(sorted))
	for i, n := range sorted {
		entries[i] = models.ConfidenceEntry{Pitch: n.Pitch, Onset: n.Onset, Confidence: n.Confidence}
	}
	return entries
}

// EncodeSidecar marshals confidence entries to the JSON array format
// specified in spec.md §6.
func EncodeSidecar(entries []models.ConfidenceEntry) ([]byte, error) {
	return json.Marshal(entries)
}

// DecodeSidecar parses a sidecar JSON array and re-sorts it by (onset,
// pitch) so it can be paired positionally with a MIDI file's notes, per
// spec.md §9 ("reading it back must re-sort in the same order").
func DecodeSidecar(data []byte) ([]models.ConfidenceEntry, error) {
	var entries []models.ConfidenceEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Onset != entries[j].Onset {
			return entries[i].Onset < entries[j].Onset
		}
		return entries[i].Pitch < entries[j].Pitch
	})
	return entries, nil
}

func sortNotesByOnsetPitch(notes []models.Note) {
	sort.Slice(notes, func(i, j int) bool {
		if notes[i].Onset != notes[j].Onset {
			return notes[i].Onset < notes[j].Onset
		}
		return notes[i].Pitch < notes[j].Pitch
	})
}

// SortByOnsetPitch sorts notes in place by (onset, pitch), the canonical
// ordering used throughout this package and by C4/C5's grouping output.
func SortByOnsetPitch(notes []models.Note) {
	sortNotesByOnsetPitch(notes)
}
