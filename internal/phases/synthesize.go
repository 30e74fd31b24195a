package phases

import (
	"context"
	"time"

	"redub/internal/config"
	"redub/internal/dub"
	"redub/internal/fileutil"
	"redub/internal/logging"
	"redub/internal/media"
	"redub/internal/pipeline"
	"redub/internal/services"
	"redub/internal/tts"
	"redub/internal/voice"
)

// Synthesize voices each dub-model utterance, fits it to its budget, and
// writes the segment index, the synthesis report, and the voice
// resolution snapshot.
type Synthesize struct {
	Cfg   config.Synthesize
	Tools *media.Toolchain

	// Client overrides the service client (for testing).
	Client tts.Client
}

func (p *Synthesize) Name() string       { return "synthesize" }
func (p *Synthesize) Version() int       { return 1 }
func (p *Synthesize) Requires() []string { return []string{KeyDubModel} }

func (p *Synthesize) Provides() map[string]string {
	return map[string]string{
		KeySegmentsDir:   PathSegmentsDir,
		KeySegmentIndex:  PathSegmentIndex,
		KeyTTSReport:     PathTTSReport,
		KeyVoiceSnapshot: PathVoiceSnapshot,
	}
}

func (p *Synthesize) ConfigValue() any {
	return map[string]any{
		"resource_id": p.Cfg.ResourceID,
		"format":      p.Cfg.Format,
		"sample_rate": p.Cfg.SampleRate,
		"workers":     p.Cfg.Workers,
		"version":     tts.Version,
	}
}

func (p *Synthesize) Run(ctx context.Context, pc *pipeline.Context) error {
	var model dub.Model
	if err := fileutil.ReadJSON(pc.Inputs[KeyDubModel], &model); err != nil {
		return services.Wrap(services.ErrValidation, p.Name(), "read dub model", KeyDubModel, err)
	}
	if len(model.Utterances) == 0 {
		return services.Wrap(services.ErrValidation, p.Name(), "read dub model", "no utterances", nil)
	}

	genders := map[string]string{}
	for _, u := range model.Utterances {
		if _, seen := genders[u.SpeakerID]; !seen {
			genders[u.SpeakerID] = u.Gender
		}
	}

	snapshot, err := voice.Resolve(
		pc.Workspace.SpeakerToRolePath(),
		pc.Workspace.RoleCastPath(),
		pc.Workspace.Episode,
		genders,
	)
	if err != nil {
		return err
	}
	if err := snapshot.Save(pc.Outputs[KeyVoiceSnapshot]); err != nil {
		return err
	}
	if len(snapshot.Unresolved) > 0 {
		pc.Logger.Warn("speakers without voices; their utterances will be silent",
			logging.Any("speakers", snapshot.Unresolved))
	}

	client := p.Client
	if client == nil {
		client = tts.NewHTTPClient(tts.ClientConfig{
			AppID:      pc.Credentials.TTSAppID,
			Token:      pc.Credentials.TTSToken,
			BaseURL:    p.Cfg.BaseURL,
			ResourceID: p.Cfg.ResourceID,
			Format:     p.Cfg.Format,
			SampleRate: p.Cfg.SampleRate,
			Timeout:    time.Duration(p.Cfg.TimeoutSeconds) * time.Second,
		})
	}

	engine := tts.NewEngine(client, p.Tools, pc.Workspace.CacheDir(),
		p.Cfg.SampleRate, p.Cfg.Format, p.Cfg.Workers, pc.Logger)

	index, report, err := engine.Run(ctx, &model, snapshot, pc.Outputs[KeySegmentsDir])
	if err != nil {
		return err
	}
	if err := tts.SaveIndex(pc.Outputs[KeySegmentIndex], index); err != nil {
		return err
	}
	if err := tts.SaveReport(pc.Outputs[KeyTTSReport], report); err != nil {
		return err
	}

	pc.Logger.Info("synthesis complete",
		logging.Int("segments", report.Total),
		logging.Int("failed", report.Failed),
		logging.Int("cache_hits", report.CacheHits))
	return nil
}
