package phases

import (
	"context"

	"redub/internal/config"
	"redub/internal/dub"
	"redub/internal/fileutil"
	"redub/internal/media"
	"redub/internal/mix"
	"redub/internal/pipeline"
	"redub/internal/services"
	"redub/internal/tts"
)

// Mix places synthesized segments on the absolute timeline over the
// accompaniment and produces the final dub audio track.
type Mix struct {
	Cfg        config.Mix
	Tools      *media.Toolchain
	SampleRate int
}

func (p *Mix) Name() string { return "mix" }
func (p *Mix) Version() int { return 1 }

func (p *Mix) Requires() []string {
	return []string{KeyDubModel, KeySegmentIndex, KeySegmentsDir, KeyAccompaniment}
}

func (p *Mix) Provides() map[string]string {
	return map[string]string{KeyMixAudio: PathMixAudio}
}

func (p *Mix) ConfigValue() any {
	return map[string]any{
		"target_lufs":          p.Cfg.TargetLUFS,
		"true_peak":            p.Cfg.TruePeak,
		"accompaniment_volume": p.Cfg.AccompanimentVolume,
		"speech_volume":        p.Cfg.SpeechVolume,
		"duck_threshold":       p.Cfg.DuckThreshold,
		"duck_ratio":           p.Cfg.DuckRatio,
	}
}

func (p *Mix) Run(ctx context.Context, pc *pipeline.Context) error {
	var model dub.Model
	if err := fileutil.ReadJSON(pc.Inputs[KeyDubModel], &model); err != nil {
		return services.Wrap(services.ErrValidation, p.Name(), "read dub model", KeyDubModel, err)
	}
	if model.AudioDurationMs <= 0 {
		return services.Wrap(services.ErrValidation, p.Name(), "read dub model", "non-positive audio duration", nil)
	}
	index, err := tts.LoadIndex(pc.Inputs[KeySegmentIndex])
	if err != nil {
		return services.Wrap(services.ErrValidation, p.Name(), "read segment index", KeySegmentIndex, err)
	}

	mixer := mix.New(p.Tools, mix.Config{
		TargetLUFS:          p.Cfg.TargetLUFS,
		TruePeak:            p.Cfg.TruePeak,
		AccompanimentVolume: p.Cfg.AccompanimentVolume,
		SpeechVolume:        p.Cfg.SpeechVolume,
		DuckThreshold:       p.Cfg.DuckThreshold,
		DuckRatio:           p.Cfg.DuckRatio,
		DuckAttackMs:        p.Cfg.DuckAttackMs,
		DuckReleaseMs:       p.Cfg.DuckReleaseMs,
		SampleRate:          p.SampleRate,
	}, pc.Logger)

	return mixer.Mix(ctx, &model, index, pc.Workspace.Dir, pc.Inputs[KeyAccompaniment], pc.Outputs[KeyMixAudio])
}
