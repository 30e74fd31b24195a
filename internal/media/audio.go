package media

import (
	"context"
	"fmt"
	"strconv"
)

// PCMToWav wraps raw 16-bit mono PCM into a WAV container.
func (t *Toolchain) PCMToWav(ctx context.Context, pcm, wav string, sampleRate int) error {
	return t.FFmpeg(ctx,
		"-f", "s16le",
		"-ar", strconv.Itoa(sampleRate),
		"-ac", "1",
		"-i", pcm,
		"-acodec", "pcm_s16le",
		wav,
	)
}

// TrimSilence removes leading and trailing silence from a segment.
func (t *Toolchain) TrimSilence(ctx context.Context, in, out string) error {
	const edgeTrim = "silenceremove=start_periods=1:start_threshold=-50dB:start_silence=0.05"
	return t.FFmpeg(ctx,
		"-i", in,
		"-af", edgeTrim+",areverse,"+edgeTrim+",areverse",
		out,
	)
}

// PadTo pads audio with silence to exactly targetMs.
func (t *Toolchain) PadTo(ctx context.Context, in, out string, targetMs int) error {
	target := float64(targetMs) / 1000.0
	return t.FFmpeg(ctx,
		"-i", in,
		"-af", fmt.Sprintf("apad=whole_dur=%.3f", target),
		"-t", fmt.Sprintf("%.3f", target),
		out,
	)
}

// CompressTo applies pitch-preserving time compression at rate and pads or
// truncates to exactly targetMs.
func (t *Toolchain) CompressTo(ctx context.Context, in, out string, rate float64, targetMs int) error {
	target := float64(targetMs) / 1000.0
	return t.FFmpeg(ctx,
		"-i", in,
		"-af", fmt.Sprintf("%s,apad=whole_dur=%.3f", atempoChain(rate), target),
		"-t", fmt.Sprintf("%.3f", target),
		out,
	)
}

// Silence writes a silent mono segment of durationMs.
func (t *Toolchain) Silence(ctx context.Context, out string, durationMs, sampleRate int) error {
	return t.FFmpeg(ctx,
		"-f", "lavfi",
		"-i", fmt.Sprintf("anullsrc=r=%d:cl=mono", sampleRate),
		"-t", fmt.Sprintf("%.3f", float64(durationMs)/1000.0),
		"-acodec", "pcm_s16le",
		out,
	)
}

// atempoChain composes atempo filters; each stage accepts [0.5, 2.0].
func atempoChain(rate float64) string {
	if rate <= 0 {
		rate = 1.0
	}
	chain := ""
	for rate > 2.0 {
		chain += "atempo=2.0,"
		rate /= 2.0
	}
	for rate < 0.5 {
		chain += "atempo=0.5,"
		rate /= 0.5
	}
	return chain + fmt.Sprintf("atempo=%.6g", rate)
}
