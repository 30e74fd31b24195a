package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	WorkspaceRoot string `toml:"workspace_root"`
	LogDir        string `toml:"log_dir"`
}

// Recognize contains configuration for the speech recognition phase.
type Recognize struct {
	Preset             string   `toml:"preset"`
	Language           string   `toml:"language"`
	Hotwords           []string `toml:"hotwords"`
	AudioURL           string   `toml:"audio_url"`
	UploadEndpoint     string   `toml:"upload_endpoint"`
	PollIntervalSecs   int      `toml:"poll_interval_seconds"`
	PollDeadlineSecs   int      `toml:"poll_deadline_seconds"`
	RequestTimeoutSecs int      `toml:"request_timeout_seconds"`
	BaseURL            string   `toml:"base_url"`
}

// Subtitle contains configuration for utterance normalization and the
// subtitle model builder.
type Subtitle struct {
	SilenceGapMs   int    `toml:"silence_gap_ms"`
	MaxUtteranceMs int    `toml:"max_utterance_ms"`
	SourceLanguage string `toml:"source_language"`
}

// Translate contains configuration for the machine translation phase.
type Translate struct {
	Model           string   `toml:"model"`
	BaseURL         string   `toml:"base_url"`
	Temperature     float64  `toml:"temperature"`
	TargetLanguage  string   `toml:"target_language"`
	EpisodeContext  bool     `toml:"episode_context"`
	DomainHint      string   `toml:"domain_hint"`
	DomainTriggers  []string `toml:"domain_triggers"`
	MaxRetries      int      `toml:"max_retries"`
	TimeoutSeconds  int      `toml:"timeout_seconds"`
	TargetCPS       float64  `toml:"target_cps"`
	ContextMaxChars int      `toml:"context_max_chars"`
}

// Align contains configuration for budget assignment and cue rebuilding.
type Align struct {
	MaxExtendMs int     `toml:"max_extend_ms"`
	SafetyGapMs int     `toml:"safety_gap_ms"`
	CueChars    int     `toml:"cue_chars"`
	MaxRate     float64 `toml:"max_rate"`
}

// Synthesize contains configuration for per-utterance speech synthesis.
type Synthesize struct {
	BaseURL        string `toml:"base_url"`
	ResourceID     string `toml:"resource_id"`
	Format         string `toml:"format"`
	SampleRate     int    `toml:"sample_rate"`
	Workers        int    `toml:"workers"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Mix contains configuration for timeline mixing and loudness.
type Mix struct {
	TargetLUFS          float64 `toml:"target_lufs"`
	TruePeak            float64 `toml:"true_peak"`
	AccompanimentVolume float64 `toml:"accompaniment_volume"`
	SpeechVolume        float64 `toml:"speech_volume"`
	DuckThreshold       float64 `toml:"duck_threshold"`
	DuckRatio           float64 `toml:"duck_ratio"`
	DuckAttackMs        float64 `toml:"duck_attack_ms"`
	DuckReleaseMs       float64 `toml:"duck_release_ms"`
}

// Separate contains configuration for vocal separation.
type Separate struct {
	Binary string `toml:"binary"`
	Model  string `toml:"model"`
	Device string `toml:"device"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for redub.
//
// Configuration sections by subsystem:
//   - Paths: workspace root and log directory
//   - Recognize: ASR preset, polling, hotwords
//   - Subtitle: utterance normalization thresholds
//   - Translate: MT model and prompting controls
//   - Align: budget extension and cue splitting
//   - Synthesize: TTS transport and worker pool
//   - Mix: ducking and loudness targets
//   - Separate: vocal separation tool
//   - Logging: log format and level
type Config struct {
	Paths      Paths      `toml:"paths"`
	Recognize  Recognize  `toml:"recognize"`
	Subtitle   Subtitle   `toml:"subtitle"`
	Translate  Translate  `toml:"translate"`
	Align      Align      `toml:"align"`
	Synthesize Synthesize `toml:"synthesize"`
	Mix        Mix        `toml:"mix"`
	Separate   Separate   `toml:"separate"`
	Logging    Logging    `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/redub/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("redub.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

func (c *Config) normalize() error {
	var err error
	if c.Paths.WorkspaceRoot, err = expandPath(c.Paths.WorkspaceRoot); err != nil {
		return err
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return err
	}
	c.Recognize.Preset = strings.TrimSpace(c.Recognize.Preset)
	c.Recognize.Language = strings.TrimSpace(c.Recognize.Language)
	c.Translate.Model = strings.TrimSpace(c.Translate.Model)
	c.Translate.TargetLanguage = strings.TrimSpace(c.Translate.TargetLanguage)
	c.Subtitle.SourceLanguage = strings.TrimSpace(c.Subtitle.SourceLanguage)
	c.Synthesize.Format = strings.ToLower(strings.TrimSpace(c.Synthesize.Format))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	return nil
}

// EnsureDirectories creates required directories for pipeline operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.WorkspaceRoot, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// FFmpegBinary returns the ffmpeg executable name used for media operations.
func (c *Config) FFmpegBinary() string {
	return "ffmpeg"
}

// FFprobeBinary returns the ffprobe executable name used for media inspection.
func (c *Config) FFprobeBinary() string {
	return "ffprobe"
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
