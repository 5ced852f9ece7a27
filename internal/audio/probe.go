package audio

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"transcribecore/internal/stageerr"
	"transcribecore/pkg/logger"
)

// Info is the subset of ffprobe's output the pipeline cares about.
type Info struct {
	SampleRate      int
	Channels        int
	DurationSeconds float64
}

type ffprobeFormat struct {
	Duration string `json:"duration"`
}

type ffprobeStream struct {
	CodecType  string `json:"codec_type"`
	SampleRate string `json:"sample_rate"`
	Channels   int    `json:"channels"`
}

type ffprobeOutput struct {
	Format  ffprobeFormat   `json:"format"`
	Streams []ffprobeStream `json:"streams"`
}

// Probe shells out to ffprobe to determine sample rate, channel count, and
// duration, falling back to conservative defaults if ffprobe is
// unavailable or the file is malformed — mirroring the teacher's
// createAudioInput fallback behavior.
func Probe(ctx context.Context, path string) Info {
	fallback := Info{SampleRate: 44100, Channels: 2, DurationSeconds: estimateDurationFromSize(path)}

	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		logger.Warn("ffprobe failed, using estimated audio info", "path", path, "error", err)
		return fallback
	}

	var parsed ffprobeOutput
	if err := json.Unmarshal(out, &parsed); err != nil {
		logger.Warn("ffprobe output unparsable, using estimated audio info", "path", path, "error", err)
		return fallback
	}

	info := fallback
	if d, err := strconv.ParseFloat(strings.TrimSpace(parsed.Format.Duration), 64); err == nil && d > 0 {
		info.DurationSeconds = d
	}
	for _, s := range parsed.Streams {
		if s.CodecType != "audio" {
			continue
		}
		if sr, err := strconv.Atoi(s.SampleRate); err == nil && sr > 0 {
			info.SampleRate = sr
		}
		if s.Channels > 0 {
			info.Channels = s.Channels
		}
		break
	}
	return info
}

// estimateDurationFromSize gives a crude duration estimate (assuming 16-bit
// stereo PCM at 44.1kHz) when ffprobe itself is unavailable.
func estimateDurationFromSize(path string) float64 {
	fi, err := os.Stat(path)
	if err != nil {
		return 0
	}
	const bytesPerSecond = 44100 * 2 * 2
	return float64(fi.Size()) / bytesPerSecond
}

// ErrDurationExceedsCeiling is returned by CheckDuration.
var ErrDurationExceedsCeiling = fmt.Errorf("%w: duration exceeds configured ceiling", stageerr.ErrSourceTooLong)

// CheckDuration fails with source-too-long if the audio exceeds ceilingSeconds.
func CheckDuration(info Info, ceilingSeconds float64) error {
	if ceilingSeconds > 0 && info.DurationSeconds > ceilingSeconds {
		return fmt.Errorf("%w: %.1fs > %.1fs", ErrDurationExceedsCeiling, info.DurationSeconds, ceilingSeconds)
	}
	return nil
}
