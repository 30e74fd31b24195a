package phases

import (
	"context"
	"time"

	"redub/internal/asr"
	"redub/internal/config"
	"redub/internal/fileutil"
	"redub/internal/logging"
	"redub/internal/pipeline"
	"redub/internal/services"
)

// Recognize submits the source audio to the speech recognition service and
// persists the provider's response verbatim as the raw recognition
// artifact.
type Recognize struct {
	Cfg config.Recognize

	// Client overrides the service client (for testing).
	Client interface {
		Recognize(ctx context.Context, audioURL string) ([]byte, error)
	}
	// Uploader overrides the audio uploader (for testing).
	Uploader asr.Uploader
}

func (p *Recognize) Name() string       { return "recognize" }
func (p *Recognize) Version() int       { return 1 }
func (p *Recognize) Requires() []string { return []string{KeySourceAudio} }

func (p *Recognize) Provides() map[string]string {
	return map[string]string{KeyRecognitionRaw: PathRecognitionRaw}
}

func (p *Recognize) ConfigValue() any {
	return map[string]any{
		"preset":    p.Cfg.Preset,
		"language":  p.Cfg.Language,
		"hotwords":  p.Cfg.Hotwords,
		"audio_url": p.Cfg.AudioURL,
	}
}

func (p *Recognize) Run(ctx context.Context, pc *pipeline.Context) error {
	audioURL := p.Cfg.AudioURL
	if audioURL == "" {
		uploader := p.Uploader
		if uploader == nil {
			uploader = &asr.HTTPUploader{
				Endpoint: p.Cfg.UploadEndpoint,
				KeyID:    pc.Credentials.StoreKeyID,
				Secret:   pc.Credentials.StoreSecret,
			}
		}
		uploaded, err := uploader.Upload(ctx, pc.Inputs[KeySourceAudio])
		if err != nil {
			return err
		}
		audioURL = uploaded
		pc.Logger.Info("audio uploaded for recognition", logging.String("url", audioURL))
	}

	client := p.Client
	if client == nil {
		client = asr.NewClient(asr.Config{
			AppID:        pc.Credentials.ASRAppID,
			Token:        pc.Credentials.ASRToken,
			BaseURL:      p.Cfg.BaseURL,
			Preset:       p.Cfg.Preset,
			Language:     p.Cfg.Language,
			Hotwords:     p.Cfg.Hotwords,
			PollInterval: time.Duration(p.Cfg.PollIntervalSecs) * time.Second,
			PollDeadline: time.Duration(p.Cfg.PollDeadlineSecs) * time.Second,
			Timeout:      time.Duration(p.Cfg.RequestTimeoutSecs) * time.Second,
		})
	}

	raw, err := client.Recognize(ctx, audioURL)
	if err != nil {
		return err
	}

	// Validate the fields the normalizer needs before committing; the raw
	// bytes themselves are stored unmodified.
	if _, err := asr.Parse(raw); err != nil {
		return services.Wrap(services.ErrValidation, p.Name(), "parse response", KeyRecognitionRaw, err)
	}
	return fileutil.WriteAtomic(pc.Outputs[KeyRecognitionRaw], raw, 0o644)
}
