package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable. Credential checks live in
// credentials.go because they read the environment, not the TOML file.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateSubtitle(); err != nil {
		return err
	}
	if err := c.validateTranslate(); err != nil {
		return err
	}
	if err := c.validateAlign(); err != nil {
		return err
	}
	if err := c.validateSynthesize(); err != nil {
		return err
	}
	if err := c.validateRecognize(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	// An empty workspace root is valid: workspaces then live next to each
	// video under a "dub" directory.
	return nil
}

func (c *Config) validateSubtitle() error {
	if c.Subtitle.SilenceGapMs <= 0 {
		return errors.New("subtitle.silence_gap_ms must be positive")
	}
	if c.Subtitle.MaxUtteranceMs <= c.Subtitle.SilenceGapMs {
		return errors.New("subtitle.max_utterance_ms must exceed subtitle.silence_gap_ms")
	}
	return nil
}

func (c *Config) validateTranslate() error {
	if c.Translate.Model == "" {
		return errors.New("translate.model must be set")
	}
	if c.Translate.MaxRetries < 1 {
		return errors.New("translate.max_retries must be at least 1")
	}
	if c.Translate.TargetCPS <= 0 {
		return errors.New("translate.target_cps must be positive")
	}
	return nil
}

func (c *Config) validateAlign() error {
	if c.Align.MaxExtendMs < 0 {
		return errors.New("align.max_extend_ms must not be negative")
	}
	if c.Align.MaxExtendMs > 200 {
		return errors.New("align.max_extend_ms must not exceed 200")
	}
	if c.Align.CueChars <= 0 {
		return errors.New("align.cue_chars must be positive")
	}
	if c.Align.MaxRate < 1.0 || c.Align.MaxRate > 1.5 {
		return fmt.Errorf("align.max_rate must be within [1.0, 1.5], got %.2f", c.Align.MaxRate)
	}
	return nil
}

func (c *Config) validateSynthesize() error {
	if c.Synthesize.Workers < 1 {
		return errors.New("synthesize.workers must be at least 1")
	}
	if c.Synthesize.SampleRate <= 0 {
		return errors.New("synthesize.sample_rate must be positive")
	}
	switch c.Synthesize.Format {
	case "pcm", "mp3", "ogg_opus":
	default:
		return fmt.Errorf("synthesize.format must be pcm, mp3, or ogg_opus, got %q", c.Synthesize.Format)
	}
	return nil
}

func (c *Config) validateRecognize() error {
	if c.Recognize.Preset == "" {
		return errors.New("recognize.preset must be set")
	}
	if c.Recognize.PollDeadlineSecs <= 0 {
		return errors.New("recognize.poll_deadline_seconds must be positive")
	}
	if c.Recognize.PollIntervalSecs <= 0 {
		return errors.New("recognize.poll_interval_seconds must be positive")
	}
	return nil
}
