// Package media wraps the local ffmpeg/ffprobe toolchain and the external
// vocal separator. Commands run through an injectable runner so tests can
// capture arguments without invoking binaries.
package media

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"redub/internal/services"
)

// Toolchain executes ffmpeg and ffprobe.
type Toolchain struct {
	ffmpeg  string
	ffprobe string
	runner  func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// NewToolchain builds a toolchain around the given binary names.
func NewToolchain(ffmpeg, ffprobe string) *Toolchain {
	if ffmpeg == "" {
		ffmpeg = "ffmpeg"
	}
	if ffprobe == "" {
		ffprobe = "ffprobe"
	}
	return &Toolchain{ffmpeg: ffmpeg, ffprobe: ffprobe}
}

// WithRunner sets a custom command runner (for testing).
func (t *Toolchain) WithRunner(runner func(ctx context.Context, name string, args ...string) ([]byte, error)) *Toolchain {
	t.runner = runner
	return t
}

func (t *Toolchain) run(ctx context.Context, name string, args ...string) ([]byte, error) {
	if t.runner != nil {
		return t.runner(ctx, name, args...)
	}
	cmd := exec.CommandContext(ctx, name, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return output, fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return output, nil
}

// FFmpeg runs ffmpeg with -y prepended.
func (t *Toolchain) FFmpeg(ctx context.Context, args ...string) error {
	full := append([]string{"-y"}, args...)
	if _, err := t.run(ctx, t.ffmpeg, full...); err != nil {
		return services.Wrap(services.ErrExternalTool, "", "ffmpeg", strings.Join(args, " "), err)
	}
	return nil
}

// DurationMs probes the duration of an audio or video file.
func (t *Toolchain) DurationMs(ctx context.Context, path string) (int, error) {
	output, err := t.run(ctx, t.ffprobe,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	if err != nil {
		return 0, services.Wrap(services.ErrExternalTool, "", "ffprobe", path, err)
	}
	raw := strings.TrimSpace(string(output))
	if raw == "" || raw == "N/A" {
		return 0, nil
	}
	seconds, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("parse ffprobe duration %q: %w", raw, err)
	}
	return int(seconds * 1000), nil
}

// ExtractAudio demuxes the video's audio track into a mono PCM WAV.
func (t *Toolchain) ExtractAudio(ctx context.Context, video, wav string, sampleRate int) error {
	return t.FFmpeg(ctx,
		"-i", video,
		"-vn",
		"-acodec", "pcm_s16le",
		"-ar", strconv.Itoa(sampleRate),
		"-ac", "1",
		wav,
	)
}

// Burn muxes the dubbed audio track under the video and burns the subtitle
// file into the picture.
func (t *Toolchain) Burn(ctx context.Context, video, audio, srt, out string) error {
	return t.FFmpeg(ctx,
		"-i", video,
		"-i", audio,
		"-vf", "subtitles="+ffmpegEscapePath(srt),
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-c:v", "libx264",
		"-c:a", "aac",
		"-shortest",
		out,
	)
}

// ffmpegEscapePath quotes a path for use inside a filter description.
func ffmpegEscapePath(path string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `'`, `\'`, `:`, `\:`)
	return "'" + replacer.Replace(path) + "'"
}
