// Package mix places synthesized segments on an absolute timeline over the
// accompaniment track. Segments are never globally stretched: each is
// delayed to its utterance's start, truncated to its permitted window, and
// mixed with sidechain ducking, then the whole track is padded or trimmed
// to exactly the source duration and loudness-normalized.
package mix

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"redub/internal/dub"
	"redub/internal/logging"
	"redub/internal/media"
	"redub/internal/tts"
)

// OverflowAllowanceMs is how far past its budget a compressed segment may
// run before the mixer truncates it.
const OverflowAllowanceMs = 200

// Config holds mixing and loudness parameters.
type Config struct {
	TargetLUFS          float64
	TruePeak            float64
	AccompanimentVolume float64
	SpeechVolume        float64
	DuckThreshold       float64
	DuckRatio           float64
	DuckAttackMs        float64
	DuckReleaseMs       float64
	SampleRate          int
}

// DefaultConfig mirrors the pipeline defaults.
func DefaultConfig() Config {
	return Config{
		TargetLUFS:          -16.0,
		TruePeak:            -1.5,
		AccompanimentVolume: 0.8,
		SpeechVolume:        1.0,
		DuckThreshold:       0.05,
		DuckRatio:           10.0,
		DuckAttackMs:        20.0,
		DuckReleaseMs:       400.0,
		SampleRate:          24000,
	}
}

// Mixer renders the final dubbed audio track.
type Mixer struct {
	tools  *media.Toolchain
	cfg    Config
	logger *slog.Logger
}

// New builds a mixer.
func New(tools *media.Toolchain, cfg Config, logger *slog.Logger) *Mixer {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 24000
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Mixer{tools: tools, cfg: cfg, logger: logger}
}

// placement is one segment's slot on the timeline.
type placement struct {
	path    string
	startMs int
	limitMs int
}

// Mix renders the dub track. workspaceDir resolves the segment index's
// relative paths; accompanimentPath may be empty or missing, in which case
// speech is mixed over silence.
func (m *Mixer) Mix(ctx context.Context, model *dub.Model, index tts.Index, workspaceDir, accompanimentPath, outPath string) error {
	placements := m.placements(model, index, workspaceDir)

	hasAccomp := false
	if accompanimentPath != "" {
		if _, err := os.Stat(accompanimentPath); err == nil {
			hasAccomp = true
		}
	}

	if len(placements) == 0 && !hasAccomp {
		// Nothing to place: the output is a silent canvas of the source
		// duration.
		staging := stagingPath(outPath)
		defer os.Remove(staging)
		if err := m.tools.Silence(ctx, staging, model.AudioDurationMs, m.cfg.SampleRate); err != nil {
			return err
		}
		return os.Rename(staging, outPath)
	}

	args, err := m.buildArgs(placements, hasAccomp, accompanimentPath, model.AudioDurationMs, outPath)
	if err != nil {
		return err
	}

	staging := stagingPath(outPath)
	defer os.Remove(staging)
	args[len(args)-1] = staging
	if err := m.tools.FFmpeg(ctx, args...); err != nil {
		return err
	}
	return os.Rename(staging, outPath)
}

// placements computes each utterance's delay and truncation window. The
// window never extends past the overflow allowance nor into the next
// utterance's start.
func (m *Mixer) placements(model *dub.Model, index tts.Index, workspaceDir string) []placement {
	utts := make([]dub.Utterance, len(model.Utterances))
	copy(utts, model.Utterances)
	sort.SliceStable(utts, func(i, j int) bool { return utts[i].StartMs < utts[j].StartMs })

	var out []placement
	for i, u := range utts {
		seg, ok := index[u.UttID]
		if !ok {
			m.logger.Warn("no segment for utterance", logging.String("utt_id", u.UttID))
			continue
		}
		path := filepath.Join(workspaceDir, filepath.FromSlash(seg.WavPath))
		if _, err := os.Stat(path); err != nil {
			m.logger.Warn("segment file missing", logging.String("utt_id", u.UttID), logging.Error(err))
			continue
		}

		limit := u.BudgetMs + OverflowAllowanceMs
		if i+1 < len(utts) {
			if gap := utts[i+1].StartMs - u.StartMs; gap < limit {
				limit = gap
			}
		}
		if limit <= 0 {
			continue
		}
		out = append(out, placement{path: path, startMs: u.StartMs, limitMs: limit})
	}
	return out
}

// buildArgs assembles the full ffmpeg invocation; the final element is a
// placeholder for the output path.
func (m *Mixer) buildArgs(placements []placement, hasAccomp bool, accompanimentPath string, durationMs int, outPath string) ([]string, error) {
	var args []string
	for _, p := range placements {
		args = append(args, "-i", p.path)
	}
	if hasAccomp {
		args = append(args, "-i", accompanimentPath)
	}

	filter, err := m.filterGraph(placements, hasAccomp, durationMs)
	if err != nil {
		return nil, err
	}

	args = append(args,
		"-filter_complex", filter,
		"-map", "[final]",
		"-acodec", "pcm_s16le",
		"-ar", strconv.Itoa(m.cfg.SampleRate),
		"-ac", "1",
		outPath,
	)
	return args, nil
}

// filterGraph builds the timeline filter description.
func (m *Mixer) filterGraph(placements []placement, hasAccomp bool, durationMs int) (string, error) {
	if durationMs <= 0 {
		return "", fmt.Errorf("mix: non-positive target duration %d", durationMs)
	}
	var parts []string
	var speechLabels []string

	for i, p := range placements {
		label := fmt.Sprintf("s%d", i)
		parts = append(parts, fmt.Sprintf(
			"[%d:a]volume=%s,atrim=duration=%s,adelay=%d|%d[%s]",
			i,
			trimFloat(m.cfg.SpeechVolume),
			msToSec(p.limitMs),
			p.startMs, p.startMs,
			label,
		))
		speechLabels = append(speechLabels, "["+label+"]")
	}

	switch len(speechLabels) {
	case 0:
		parts = append(parts, fmt.Sprintf("anullsrc=r=%d:cl=mono,atrim=duration=%s[speech]",
			m.cfg.SampleRate, msToSec(durationMs)))
	case 1:
		parts = append(parts, speechLabels[0]+"anull[speech]")
	default:
		parts = append(parts, fmt.Sprintf("%samix=inputs=%d:duration=longest:normalize=0[speech]",
			strings.Join(speechLabels, ""), len(speechLabels)))
	}

	if hasAccomp {
		accompIdx := len(placements)
		parts = append(parts, fmt.Sprintf("[%d:a]volume=%s[bg]", accompIdx, trimFloat(m.cfg.AccompanimentVolume)))
		parts = append(parts, "[speech]asplit=2[sc][speech_mix]")
		parts = append(parts, fmt.Sprintf(
			"[bg][sc]sidechaincompress=threshold=%s:ratio=%s:attack=%s:release=%s:detection=peak:link=maximum[bg_duck]",
			trimFloat(m.cfg.DuckThreshold),
			trimFloat(m.cfg.DuckRatio),
			trimFloat(m.cfg.DuckAttackMs),
			trimFloat(m.cfg.DuckReleaseMs),
		))
		parts = append(parts, "[bg_duck][speech_mix]amix=inputs=2:duration=longest:weights=1 3:normalize=0[mix_raw]")
	} else {
		parts = append(parts, "[speech]anull[mix_raw]")
	}

	parts = append(parts, fmt.Sprintf("[mix_raw]apad=whole_dur=%s,atrim=duration=%s[mix_dur]",
		msToSec(durationMs), msToSec(durationMs)))
	parts = append(parts, fmt.Sprintf("[mix_dur]loudnorm=I=%s:TP=%s:LRA=11:linear=true[final]",
		trimFloat(m.cfg.TargetLUFS), trimFloat(m.cfg.TruePeak)))

	return strings.Join(parts, ";"), nil
}

func stagingPath(outPath string) string {
	dir := filepath.Dir(outPath)
	base := filepath.Base(outPath)
	return filepath.Join(dir, "."+base+".tmp"+filepath.Ext(base))
}

func msToSec(ms int) string {
	return strconv.FormatFloat(float64(ms)/1000.0, 'f', 3, 64)
}

func trimFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
