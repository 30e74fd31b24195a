package config

const (
	// An empty workspace root places each episode's workspace next to its
	// video, which keeps authoritative files where humans edit content.
	defaultWorkspaceRoot  = ""
	defaultLogDir         = "~/.local/share/redub/logs"
	defaultLogFormat      = "console"
	defaultLogLevel       = "info"
	defaultASRPreset      = "asr_spk_semantic"
	defaultASRBaseURL     = "https://openspeech.bytedance.com/api/v3/auc"
	defaultPollInterval   = 2
	defaultPollDeadline   = 3600
	defaultRequestTimeout = 30

	defaultSilenceGapMs   = 450
	defaultMaxUtteranceMs = 8000

	defaultMTModel          = "gpt-4o-mini"
	defaultMTTemperature    = 0.3
	defaultMTMaxRetries     = 3
	defaultMTTimeoutSecs    = 60
	defaultTargetCPS        = 14.0
	defaultContextMaxChars  = 5000
	defaultSourceLanguage   = "zh"
	defaultTargetLanguage   = "en"

	defaultMaxExtendMs = 200
	defaultSafetyGapMs = 60
	defaultCueChars    = 42
	defaultMaxRate     = 1.3

	defaultTTSBaseURL    = "https://openspeech.bytedance.com/api/v3/tts"
	defaultTTSResourceID = "seed-tts-1.0"
	defaultTTSFormat     = "pcm"
	defaultTTSSampleRate = 24000
	defaultTTSWorkers    = 4
	defaultTTSTimeout    = 60

	defaultTargetLUFS          = -16.0
	defaultTruePeak            = -1.5
	defaultAccompanimentVolume = 0.8
	defaultSpeechVolume        = 1.0
	defaultDuckThreshold       = 0.05
	defaultDuckRatio           = 10.0
	defaultDuckAttackMs        = 20.0
	defaultDuckReleaseMs       = 400.0

	defaultSeparateBinary = "demucs"
	defaultSeparateModel  = "htdemucs"
	defaultSeparateDevice = "cpu"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkspaceRoot: defaultWorkspaceRoot,
			LogDir:        defaultLogDir,
		},
		Recognize: Recognize{
			Preset:             defaultASRPreset,
			Language:           "zh-CN",
			BaseURL:            defaultASRBaseURL,
			PollIntervalSecs:   defaultPollInterval,
			PollDeadlineSecs:   defaultPollDeadline,
			RequestTimeoutSecs: defaultRequestTimeout,
		},
		Subtitle: Subtitle{
			SilenceGapMs:   defaultSilenceGapMs,
			MaxUtteranceMs: defaultMaxUtteranceMs,
			SourceLanguage: defaultSourceLanguage,
		},
		Translate: Translate{
			Model:           defaultMTModel,
			Temperature:     defaultMTTemperature,
			TargetLanguage:  defaultTargetLanguage,
			EpisodeContext:  true,
			MaxRetries:      defaultMTMaxRetries,
			TimeoutSeconds:  defaultMTTimeoutSecs,
			TargetCPS:       defaultTargetCPS,
			ContextMaxChars: defaultContextMaxChars,
		},
		Align: Align{
			MaxExtendMs: defaultMaxExtendMs,
			SafetyGapMs: defaultSafetyGapMs,
			CueChars:    defaultCueChars,
			MaxRate:     defaultMaxRate,
		},
		Synthesize: Synthesize{
			BaseURL:        defaultTTSBaseURL,
			ResourceID:     defaultTTSResourceID,
			Format:         defaultTTSFormat,
			SampleRate:     defaultTTSSampleRate,
			Workers:        defaultTTSWorkers,
			TimeoutSeconds: defaultTTSTimeout,
		},
		Mix: Mix{
			TargetLUFS:          defaultTargetLUFS,
			TruePeak:            defaultTruePeak,
			AccompanimentVolume: defaultAccompanimentVolume,
			SpeechVolume:        defaultSpeechVolume,
			DuckThreshold:       defaultDuckThreshold,
			DuckRatio:           defaultDuckRatio,
			DuckAttackMs:        defaultDuckAttackMs,
			DuckReleaseMs:       defaultDuckReleaseMs,
		},
		Separate: Separate{
			Binary: defaultSeparateBinary,
			Model:  defaultSeparateModel,
			Device: defaultSeparateDevice,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
