// Package metadata detects tempo, key, and time signature from a
// transcribed note set, per spec.md §4.7 step 6.
package metadata

import (
	"math"
	"sort"

	"transcribecore/internal/models"
)

// krumhanslMajor and krumhanslMinor are the classic Krumhansl-Schmuckler
// key-profile weights over the 12 pitch classes starting at the tonic.
var krumhanslMajor = [12]float64{6.35, 2.23, 3.48, 2.33, 4.38, 4.09, 2.52, 5.19, 2.39, 3.66, 2.29, 2.88}
var krumhanslMinor = [12]float64{6.33, 2.68, 3.52, 5.38, 2.60, 3.53, 2.54, 4.75, 3.98, 2.69, 3.34, 3.17}

var pitchClassNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// Detected is the `{tempo, key, time_signature}` triple spec.md §4.7
// records on the job.
type Detected struct {
	TempoBPM      float64
	Key           string
	TimeSignature string
}

// DefaultTempoBPM and DefaultTimeSignature are returned when too few notes
// exist to estimate anything meaningfully.
const (
	DefaultTempoBPM      = 120.0
	DefaultTimeSignature = "4/4"
	DefaultKey           = "C major"
)

// Detect runs tempo, key, and time-signature estimation over the
// concatenated note set of all stems.
func Detect(notes []models.Note) Detected {
	if len(notes) < 2 {
		return Detected{TempoBPM: DefaultTempoBPM, Key: DefaultKey, TimeSignature: DefaultTimeSignature}
	}

	tempo := detectTempo(notes)
	return Detected{
		TempoBPM:      tempo,
		Key:           detectKey(notes),
		TimeSignature: detectTimeSignature(notes, tempo),
	}
}

// detectTempo builds a histogram of inter-onset intervals (rounded to
// 10ms buckets) and picks the modal interval, converting it to BPM under
// the assumption that the modal IOI approximates one beat.
func detectTempo(notes []models.Note) float64 {
	onsets := onsetTimes(notes)
	if len(onsets) < 2 {
		return DefaultTempoBPM
	}

	const bucketSec = 0.01
	histogram := map[int]int{}
	for i := 1; i < len(onsets); i++ {
		ioi := onsets[i] - onsets[i-1]
		if ioi <= 0 {
			continue
		}
		// fold doubled/halved intervals toward a plausible beat range
		// (40-200 BPM, i.e. 0.3s-1.5s per beat) before bucketing.
		for ioi > 1.5 {
			ioi /= 2
		}
		for ioi < 0.3 {
			ioi *= 2
		}
		bucket := int(ioi/bucketSec + 0.5)
		histogram[bucket]++
	}
	if len(histogram) == 0 {
		return DefaultTempoBPM
	}

	modalBucket, modalCount := 0, -1
	for bucket, count := range histogram {
		if count > modalCount || (count == modalCount && bucket < modalBucket) {
			modalBucket, modalCount = bucket, count
		}
	}

	modalIOI := float64(modalBucket) * bucketSec
	if modalIOI <= 0 {
		return DefaultTempoBPM
	}
	return 60.0 / modalIOI
}

// detectKey correlates the note set's pitch-class duration histogram
// against all 24 major/minor Krumhansl-Schmuckler profiles and returns
// the best-matching tonic and mode.
func detectKey(notes []models.Note) string {
	var durations [12]float64
	for _, n := range notes {
		pc := ((n.Pitch % 12) + 12) % 12
		d := n.Offset - n.Onset
		if d <= 0 {
			d = models.Duration128th
		}
		durations[pc] += d
	}
	if sum(durations[:]) == 0 {
		return DefaultKey
	}

	bestScore := math.Inf(-1)
	bestTonic := 0
	bestMajor := true
	for tonic := 0; tonic < 12; tonic++ {
		majorScore := correlate(durations[:], rotate(krumhanslMajor, tonic))
		if majorScore > bestScore {
			bestScore, bestTonic, bestMajor = majorScore, tonic, true
		}
		minorScore := correlate(durations[:], rotate(krumhanslMinor, tonic))
		if minorScore > bestScore {
			bestScore, bestTonic, bestMajor = minorScore, tonic, false
		}
	}

	mode := "major"
	if !bestMajor {
		mode = "minor"
	}
	return pitchClassNames[bestTonic] + " " + mode
}

// detectTimeSignature buckets onsets into beat-length windows (derived
// from tempo) and picks a numerator from how many beats elapse between
// the note set's strongest recurring accents; falls back to 4/4.
func detectTimeSignature(notes []models.Note, tempoBPM float64) string {
	if tempoBPM <= 0 {
		return DefaultTimeSignature
	}
	beatSec := 60.0 / tempoBPM

	onsets := onsetTimes(notes)
	if len(onsets) < 4 {
		return DefaultTimeSignature
	}

	// Count onsets landing near each beat-subdivision phase modulo
	// candidate bar lengths of 2, 3, and 4 beats; the candidate with the
	// sharpest phase-0 concentration wins.
	candidates := []int{2, 3, 4}
	bestNumerator := 4
	bestConcentration := -1.0
	for _, numerator := range candidates {
		barSec := beatSec * float64(numerator)
		phaseZero := 0
		for _, t := range onsets {
			phase := math.Mod(t, barSec)
			if phase < beatSec*0.15 || phase > barSec-beatSec*0.15 {
				phaseZero++
			}
		}
		concentration := float64(phaseZero) / float64(len(onsets))
		if concentration > bestConcentration {
			bestConcentration, bestNumerator = concentration, numerator
		}
	}
	switch bestNumerator {
	case 2:
		return "2/4"
	case 3:
		return "3/4"
	default:
		return "4/4"
	}
}

func onsetTimes(notes []models.Note) []float64 {
	onsets := make([]float64, len(notes))
	for i, n := range notes {
		onsets[i] = n.Onset
	}
	sort.Float64s(onsets)
	return onsets
}

func rotate(profile [12]float64, steps int) [12]float64 {
	var out [12]float64
	for i := 0; i < 12; i++ {
		out[i] = profile[((i-steps)%12+12)%12]
	}
	return out
}

func correlate(a []float64, b [12]float64) float64 {
	n := len(a)
	meanA, meanB := mean(a), mean(b[:])
	var num, denomA, denomB float64
	for i := 0; i < n; i++ {
		da, db := a[i]-meanA, b[i]-meanB
		num += da * db
		denomA += da * da
		denomB += db * db
	}
	if denomA == 0 || denomB == 0 {
		return 0
	}
	return num / math.Sqrt(denomA*denomB)
}

func mean(xs []float64) float64 {
	return sum(xs) / float64(len(xs))
}

func sum(xs []float64) float64 {
	total := 0.0
	for _, x := range xs {
		total += x
	}
	return total
}
