package audio

import (
	"context"
	"fmt"
	"math"
	"os/exec"
	"path/filepath"

	"transcribecore/internal/stageerr"
)

// ConvertToWAV resamples/downmixes src to mono PCM16 WAV at the given
// sample rate, the same ffmpeg invocation shape the teacher's
// AudioFormatPreprocessor uses ahead of model inference.
func ConvertToWAV(ctx context.Context, src, destDir string, sampleRate int) (string, error) {
	dest := filepath.Join(destDir, "converted.wav")
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-i", src,
		"-ar", fmt.Sprintf("%d", sampleRate),
		"-ac", "1",
		"-c:a", "pcm_s16le",
		"-y", dest,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("%w: ffmpeg convert failed: %v: %s", stageerr.ErrModelError, err, string(out))
	}
	return dest, nil
}

// PitchShift renders a copy of src shifted by semitones (positive or
// negative) using ffmpeg's asetrate+atempo chain, which changes pitch
// while correcting for the resulting tempo change, for C5's augmented
// variant generation.
func PitchShift(ctx context.Context, src, destDir string, semitones int, sampleRate int) (string, error) {
	ratio := semitoneRatio(semitones)
	dest := filepath.Join(destDir, fmt.Sprintf("pitch_%+d.wav", semitones))
	newRate := int(float64(sampleRate) * ratio)
	filter := fmt.Sprintf("asetrate=%d,aresample=%d,atempo=%f", newRate, sampleRate, 1.0/ratio)

	cmd := exec.CommandContext(ctx, "ffmpeg", "-i", src, "-filter:a", filter, "-y", dest)
	if out, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("%w: ffmpeg pitch-shift failed: %v: %s", stageerr.ErrModelError, err, string(out))
	}
	return dest, nil
}

// TimeStretch renders a copy of src at the given tempo factor (>1.0 faster,
// <1.0 slower) without altering pitch, via ffmpeg's atempo filter.
func TimeStretch(ctx context.Context, src, destDir string, factor float64) (string, error) {
	dest := filepath.Join(destDir, fmt.Sprintf("stretch_%.2f.wav", factor))
	cmd := exec.CommandContext(ctx, "ffmpeg", "-i", src, "-filter:a", fmt.Sprintf("atempo=%f", factor), "-y", dest)
	if out, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("%w: ffmpeg time-stretch failed: %v: %s", stageerr.ErrModelError, err, string(out))
	}
	return dest, nil
}

func semitoneRatio(semitones int) float64 {
	return math.Pow(2, float64(semitones)/12.0)
}
