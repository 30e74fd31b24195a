package phases

import (
	"context"
	"os"

	"redub/internal/asr"
	"redub/internal/config"
	"redub/internal/fileutil"
	"redub/internal/language"
	"redub/internal/logging"
	"redub/internal/pipeline"
	"redub/internal/services"
	"redub/internal/subtitle"
	"redub/internal/voice"
)

// Subtitle normalizes the word stream into utterances and builds the
// subtitle model, the first authoritative document. It also registers this
// episode's speakers in the show-level speaker_to_role registry.
type Subtitle struct {
	Cfg config.Subtitle
}

func (p *Subtitle) Name() string       { return "subtitle" }
func (p *Subtitle) Version() int       { return 1 }
func (p *Subtitle) Requires() []string { return []string{KeyRecognitionRaw} }

func (p *Subtitle) Provides() map[string]string {
	return map[string]string{
		KeySubtitleModel: PathSubtitleModel,
		KeyZhSRT:         PathZhSRT,
	}
}

func (p *Subtitle) ConfigValue() any {
	return map[string]any{
		"silence_gap_ms":   p.Cfg.SilenceGapMs,
		"max_utterance_ms": p.Cfg.MaxUtteranceMs,
		"source_language":  p.Cfg.SourceLanguage,
	}
}

func (p *Subtitle) Run(ctx context.Context, pc *pipeline.Context) error {
	raw, err := os.ReadFile(pc.Inputs[KeyRecognitionRaw])
	if err != nil {
		return services.Wrap(services.ErrValidation, p.Name(), "read recognition", KeyRecognitionRaw, err)
	}
	parsed, err := asr.Parse(raw)
	if err != nil {
		return services.Wrap(services.ErrValidation, p.Name(), "parse recognition", KeyRecognitionRaw, err)
	}

	normalized := subtitle.Normalize(parsed.Words, parsed.Utterances, parsed.SpeakerGender, subtitle.NormalizeConfig{
		SilenceGapMs:   p.Cfg.SilenceGapMs,
		MaxUtteranceMs: p.Cfg.MaxUtteranceMs,
	})
	if len(normalized) == 0 {
		return services.Wrap(services.ErrValidation, p.Name(), "normalize", "recognition produced no words", nil)
	}

	lang := language.Base(p.Cfg.SourceLanguage)
	model := subtitle.Build(normalized, parsed.Utterances, lang, parsed.DurationMs)

	if err := fileutil.WriteJSONAtomic(pc.Outputs[KeySubtitleModel], model); err != nil {
		return err
	}
	if err := subtitle.RenderSRT(pc.Outputs[KeyZhSRT], subtitle.ModelCues(model)); err != nil {
		return err
	}

	// Registry update happens under the workspace lock the runner's caller
	// holds; new speakers get empty assignments for a human to fill in.
	speakers := model.Speakers()
	if err := voice.UpdateSpeakerToRole(pc.Workspace.SpeakerToRolePath(), pc.Workspace.Episode, speakers); err != nil {
		return err
	}
	pc.Logger.Info("subtitle model built",
		logging.Int("utterances", len(model.Utterances)),
		logging.Int("speakers", len(speakers)))
	return nil
}
