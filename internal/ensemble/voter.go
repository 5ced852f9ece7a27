// Package ensemble implements C4: fusing Transcriber A and Transcriber B's
// note sets per stem using confidence-weighted voting, per spec.md §4.4.
package ensemble

import (
	"math"
	"sort"

	"transcribecore/internal/models"
)

// Config holds the voter's tunables, all overridable per spec.md §9.
type Config struct {
	WeightA      float64 // default 1.0 for non-piano stems, 0.4 for piano
	WeightB      float64 // default 0.6, only used when B contributed
	Threshold    float64 // default 0.25
	ToleranceSec float64 // default 0.05 (50ms)
}

// DefaultConfig returns spec.md §4.4's production defaults for a non-piano
// stem, where only A runs (WeightA 1.0, WeightB 0). Piano stems use
// WeightA 0.4 and WeightB 0.6 instead.
func DefaultConfig() Config {
	return Config{WeightA: 1.0, WeightB: 0, Threshold: 0.25, ToleranceSec: 0.05}
}

// candidate is one source's note before it has been grouped, carrying just
// enough to bucket by pitch/onset and dedupe by source; once grouped it is
// converted to a models.VoteMember for scoring.
type candidate struct {
	source string
	weight float64
	note   models.Note
}

// Vote fuses notesA (always present) and notesB (only for the piano stem,
// may be empty) into a single merged note set with recomputed confidence.
// When notesB is empty this collapses to "emit A's notes with a uniform
// confidence after the threshold filter", per spec.md §4.7 step 4.
func Vote(notesA, notesB []models.Note, weightA, weightB float64, cfg Config) []models.Note {
	var tagged []candidate
	for _, n := range notesA {
		tagged = append(tagged, candidate{source: "A", weight: weightA, note: n})
	}
	for _, n := range notesB {
		tagged = append(tagged, candidate{source: "B", weight: weightB, note: n})
	}
	if len(tagged) == 0 {
		return nil
	}

	groups := groupByPitchAndOnset(tagged, cfg.ToleranceSec)
	merged := scoreGroups(groups, cfg.Threshold)
	merged = resolveOverlaps(merged, cfg.ToleranceSec)

	sort.Slice(merged, func(i, j int) bool {
		if merged[i].Onset != merged[j].Onset {
			return merged[i].Onset < merged[j].Onset
		}
		return merged[i].Pitch < merged[j].Pitch
	})
	return merged
}

// group is an Ensemble Vote Group (spec.md §3): a pitch plus the
// contributing models' candidates, represented as models.VoteMember once
// per-source deduplication has settled which candidate from each source
// survives.
type group struct {
	pitch   int
	members []models.VoteMember
}

// groupByPitchAndOnset clusters same-pitch candidates into
// (pitch, onset-bucket) equivalence classes: within one pitch, notes are
// sorted by onset and chained into the same group while the gap to the
// most recently admitted member stays within tolerance. At most one
// candidate per source is admitted per group; when a source would
// contribute two candidates to the same group, only the highest-confidence
// one is kept, per spec.md §3's grouping invariant.
func groupByPitchAndOnset(tagged []candidate, tolerance float64) []group {
	byPitch := map[int][]candidate{}
	for _, t := range tagged {
		byPitch[t.note.Pitch] = append(byPitch[t.note.Pitch], t)
	}

	var groups []group
	for pitch, candidates := range byPitch {
		sort.Slice(candidates, func(i, j int) bool { return candidates[i].note.Onset < candidates[j].note.Onset })

		var current []candidate
		var lastOnset float64
		flush := func() {
			if len(current) > 0 {
				groups = append(groups, group{pitch: pitch, members: dedupeBySource(current)})
			}
		}

		for _, c := range candidates {
			if len(current) == 0 || c.note.Onset-lastOnset <= tolerance {
				current = append(current, c)
				lastOnset = c.note.Onset
				continue
			}
			flush()
			current = []candidate{c}
			lastOnset = c.note.Onset
		}
		flush()
	}
	return groups
}

// dedupeBySource keeps, per source, only the candidate with the highest
// confidence, per spec.md §3: "at most one member per source may populate
// a group... the highest-confidence one wins." Survivors are converted to
// models.VoteMember, the type C4/C5 groups share.
func dedupeBySource(candidates []candidate) []models.VoteMember {
	best := map[string]candidate{}
	for _, c := range candidates {
		if existing, ok := best[c.source]; !ok || c.note.Confidence > existing.note.Confidence {
			best[c.source] = c
		}
	}
	sources := make([]string, 0, len(best))
	for source := range best {
		sources = append(sources, source)
	}
	sort.Strings(sources)

	out := make([]models.VoteMember, 0, len(best))
	for _, source := range sources {
		c := best[source]
		out = append(out, models.VoteMember{
			SourceLabel: c.source,
			Weight:      c.weight,
			Confidence:  c.note.Confidence,
			Onset:       c.note.Onset,
			Offset:      c.note.Offset,
			Velocity:    c.note.Velocity,
		})
	}
	return out
}

// scoreGroups computes score = sum(weight*confidence) per group and emits
// a score-weighted-averaged merged note for groups clearing the threshold.
func scoreGroups(groups []group, threshold float64) []models.Note {
	var merged []models.Note
	for _, g := range groups {
		score := 0.0
		for _, m := range g.members {
			score += m.Weight * m.Confidence
		}
		if score < threshold {
			continue
		}

		var wOnset, wOffset, wVel, wSum float64
		for _, m := range g.members {
			w := m.Weight * m.Confidence
			wSum += w
			wOnset += w * m.Onset
			wOffset += w * m.Offset
			wVel += w * float64(m.Velocity)
		}
		if wSum == 0 {
			// every member contributed zero weight*confidence but still
			// cleared the threshold (degenerate, threshold<=0); average
			// unweighted rather than divide by zero.
			n := float64(len(g.members))
			for _, m := range g.members {
				wOnset += m.Onset / n
				wOffset += m.Offset / n
				wVel += float64(m.Velocity) / n
			}
			wSum = 1
		}

		merged = append(merged, models.Note{
			Pitch:      g.pitch,
			Onset:      wOnset / wSum,
			Offset:     wOffset / wSum,
			Velocity:   clampVelocity(wVel / wSum),
			Confidence: clampConfidence(score),
		})
	}
	return merged
}

// resolveOverlaps applies spec.md §4.4's tie-break: when two merged notes
// share a pitch and their onsets fall within tolerance of each other
// (possible because tolerance buckets don't partition time), the
// lower-score (lower-confidence, since confidence==score here) one is
// discarded.
func resolveOverlaps(notes []models.Note, tolerance float64) []models.Note {
	sort.Slice(notes, func(i, j int) bool {
		if notes[i].Pitch != notes[j].Pitch {
			return notes[i].Pitch < notes[j].Pitch
		}
		return notes[i].Onset < notes[j].Onset
	})

	keep := make([]bool, len(notes))
	for i := range notes {
		keep[i] = true
	}
	for i := 0; i < len(notes); i++ {
		if !keep[i] {
			continue
		}
		for j := i + 1; j < len(notes); j++ {
			if notes[j].Pitch != notes[i].Pitch {
				break
			}
			if notes[j].Onset-notes[i].Onset > tolerance {
				break
			}
			if !keep[j] {
				continue
			}
			if notes[j].Confidence > notes[i].Confidence {
				keep[i] = false
				break
			}
			keep[j] = false
		}
	}

	out := make([]models.Note, 0, len(notes))
	for i, n := range notes {
		if keep[i] {
			out = append(out, n)
		}
	}
	return out
}

func clampVelocity(v float64) int {
	iv := int(math.Round(v))
	if iv < 1 {
		return 1
	}
	if iv > 127 {
		return 127
	}
	return iv
}

func clampConfidence(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
