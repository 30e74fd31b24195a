package phases

import (
	"context"
	"fmt"

	"redub/internal/align"
	"redub/internal/config"
	"redub/internal/fileutil"
	"redub/internal/logging"
	"redub/internal/pipeline"
	"redub/internal/services"
	"redub/internal/subtitle"
)

// Align derives the dub model from the subtitle model and translations,
// and renders the target-language subtitle file.
type Align struct {
	Cfg       config.Align
	TargetCPS float64
}

func (p *Align) Name() string { return "align" }
func (p *Align) Version() int { return 1 }

func (p *Align) Requires() []string {
	return []string{KeySubtitleModel, KeyMTOutput}
}

func (p *Align) Provides() map[string]string {
	return map[string]string{
		KeyDubModel:      PathDubModel,
		KeySubtitleAlign: PathSubtitleAlign,
		KeyEnSRT:         PathEnSRT,
	}
}

func (p *Align) ConfigValue() any {
	return map[string]any{
		"max_extend_ms": p.Cfg.MaxExtendMs,
		"safety_gap_ms": p.Cfg.SafetyGapMs,
		"cue_chars":     p.Cfg.CueChars,
		"max_rate":      p.Cfg.MaxRate,
	}
}

func (p *Align) Run(ctx context.Context, pc *pipeline.Context) error {
	var model subtitle.Model
	if err := fileutil.ReadJSON(pc.Inputs[KeySubtitleModel], &model); err != nil {
		return services.Wrap(services.ErrValidation, p.Name(), "read subtitle model", KeySubtitleModel, err)
	}
	if model.Schema.Name != subtitle.SchemaName {
		return services.Wrap(services.ErrValidation, p.Name(), "read subtitle model",
			fmt.Sprintf("unexpected schema %q", model.Schema.Name), nil)
	}

	translations, err := ReadResults(pc.Inputs[KeyMTOutput])
	if err != nil {
		return services.Wrap(services.ErrValidation, p.Name(), "read translations", KeyMTOutput, err)
	}
	if len(translations) == 0 {
		return services.Wrap(services.ErrValidation, p.Name(), "read translations", "no translations found", nil)
	}

	out := align.Align(&model, translations, align.Config{
		MaxExtendMs: p.Cfg.MaxExtendMs,
		SafetyGapMs: p.Cfg.SafetyGapMs,
		CueChars:    p.Cfg.CueChars,
		MaxRate:     p.Cfg.MaxRate,
		TargetCPS:   p.TargetCPS,
	}, pc.Logger)

	if len(out.Dub.Utterances) == 0 {
		return services.Wrap(services.ErrValidation, p.Name(), "build dub model", "no dubbed utterances", nil)
	}

	if err := fileutil.WriteJSONAtomic(pc.Outputs[KeyDubModel], out.Dub); err != nil {
		return err
	}
	if err := fileutil.WriteJSONAtomic(pc.Outputs[KeySubtitleAlign], out.Aligned); err != nil {
		return err
	}
	if err := subtitle.RenderSRT(pc.Outputs[KeyEnSRT], subtitle.ModelCues(out.Aligned)); err != nil {
		return err
	}

	pc.Logger.Info("alignment complete",
		logging.Int("utterances", len(out.Dub.Utterances)),
		logging.Int("missing_translations", len(out.MissingTranslations)))
	return nil
}
