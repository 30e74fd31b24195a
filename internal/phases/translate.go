package phases

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"redub/internal/config"
	"redub/internal/fileutil"
	"redub/internal/logging"
	"redub/internal/pipeline"
	"redub/internal/services"
	"redub/internal/subtitle"
	"redub/internal/translate"
)

// Translate renders each utterance of the subtitle model into the target
// language, writing the translation exchange as JSONL artifacts.
type Translate struct {
	Cfg config.Translate

	// Completer overrides the service client (for testing).
	Completer translate.Completer
}

func (p *Translate) Name() string       { return "translate" }
func (p *Translate) Version() int       { return 1 }
func (p *Translate) Requires() []string { return []string{KeySubtitleModel} }

func (p *Translate) Provides() map[string]string {
	return map[string]string{
		KeyMTInput:  PathMTInput,
		KeyMTOutput: PathMTOutput,
	}
}

func (p *Translate) ConfigValue() any {
	return map[string]any{
		"model":           p.Cfg.Model,
		"target_language": p.Cfg.TargetLanguage,
		"episode_context": p.Cfg.EpisodeContext,
		"domain_hint":     p.Cfg.DomainHint,
		"domain_triggers": p.Cfg.DomainTriggers,
		"max_retries":     p.Cfg.MaxRetries,
		"target_cps":      p.Cfg.TargetCPS,
	}
}

type mtInputLine struct {
	UttID    string `json:"utt_id"`
	Source   string `json:"source"`
	BudgetMs int    `json:"budget_ms"`
}

func (p *Translate) Run(ctx context.Context, pc *pipeline.Context) error {
	var model subtitle.Model
	if err := fileutil.ReadJSON(pc.Inputs[KeySubtitleModel], &model); err != nil {
		return services.Wrap(services.ErrValidation, p.Name(), "read subtitle model", KeySubtitleModel, err)
	}
	if model.Schema.Name != subtitle.SchemaName {
		return services.Wrap(services.ErrValidation, p.Name(), "read subtitle model",
			fmt.Sprintf("unexpected schema %q", model.Schema.Name), nil)
	}
	if len(model.Utterances) == 0 {
		return services.Wrap(services.ErrValidation, p.Name(), "read subtitle model", "no utterances", nil)
	}

	glossary, err := translate.LoadGlossary(pc.Workspace.GlossaryPath())
	if err != nil {
		return err
	}

	episodeContext := ""
	if p.Cfg.EpisodeContext {
		var texts []string
		for _, u := range model.Utterances {
			texts = append(texts, u.Text)
		}
		episodeContext = translate.TruncateContext(strings.Join(texts, "\n"), p.Cfg.ContextMaxChars)
	}

	completer := p.Completer
	if completer == nil {
		completer = translate.NewClient(translate.ClientConfig{
			APIKey:      pc.Credentials.MTAPIKey,
			BaseURL:     p.Cfg.BaseURL,
			Model:       p.Cfg.Model,
			Temperature: p.Cfg.Temperature,
			Timeout:     time.Duration(p.Cfg.TimeoutSeconds) * time.Second,
		})
	}

	translator := translate.New(completer, glossary, translate.Options{
		TargetLanguage: p.Cfg.TargetLanguage,
		TargetCPS:      p.Cfg.TargetCPS,
		MaxRetries:     p.Cfg.MaxRetries,
		DomainHint:     p.Cfg.DomainHint,
		DomainTriggers: p.Cfg.DomainTriggers,
		EpisodeContext: episodeContext,
	}, pc.Logger)

	var inputBuf, outputBuf bytes.Buffer
	inputEnc := json.NewEncoder(&inputBuf)
	outputEnc := json.NewEncoder(&outputBuf)

	for _, u := range model.Utterances {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := inputEnc.Encode(mtInputLine{UttID: u.UttID, Source: u.Text, BudgetMs: u.EndMs - u.StartMs}); err != nil {
			return err
		}
		result, err := translator.TranslateUtterance(ctx, u)
		if err != nil {
			return err
		}
		if err := outputEnc.Encode(result); err != nil {
			return err
		}
	}

	if err := fileutil.WriteAtomic(pc.Outputs[KeyMTInput], inputBuf.Bytes(), 0o644); err != nil {
		return err
	}
	if err := fileutil.WriteAtomic(pc.Outputs[KeyMTOutput], outputBuf.Bytes(), 0o644); err != nil {
		return err
	}
	pc.Logger.Info("translation complete", logging.Int("utterances", len(model.Utterances)))
	return nil
}

// ReadResults parses an mt/output.jsonl file into a map keyed by
// utterance id.
func ReadResults(path string) (map[string]translate.Result, error) {
	data, err := fileutil.ReadLines(path)
	if err != nil {
		return nil, err
	}
	out := map[string]translate.Result{}
	for _, line := range data {
		if strings.TrimSpace(line) == "" {
			continue
		}
		var r translate.Result
		if err := json.Unmarshal([]byte(line), &r); err != nil {
			return nil, fmt.Errorf("parse translation line: %w", err)
		}
		out[r.UttID] = r
	}
	return out, nil
}
