package phases

import (
	"redub/internal/config"
	"redub/internal/media"
	"redub/internal/pipeline"
)

// All returns the nine phases in execution order, wired against the given
// configuration and toolchain.
func All(cfg *config.Config) []pipeline.Phase {
	tools := media.NewToolchain(cfg.FFmpegBinary(), cfg.FFprobeBinary())
	separator := media.NewSeparator(cfg.Separate.Binary, cfg.Separate.Model, cfg.Separate.Device)
	return Build(cfg, tools, separator)
}

// Build assembles the phase list from explicit dependencies so tests can
// substitute the toolchain and separator.
func Build(cfg *config.Config, tools *media.Toolchain, separator *media.Separator) []pipeline.Phase {
	return []pipeline.Phase{
		&Demux{Tools: tools, SampleRate: cfg.Synthesize.SampleRate},
		&Separate{Separator: separator},
		&Recognize{Cfg: cfg.Recognize},
		&Subtitle{Cfg: cfg.Subtitle},
		&Translate{Cfg: cfg.Translate},
		&Align{Cfg: cfg.Align, TargetCPS: cfg.Translate.TargetCPS},
		&Synthesize{Cfg: cfg.Synthesize, Tools: tools},
		&Mix{Cfg: cfg.Mix, Tools: tools, SampleRate: cfg.Synthesize.SampleRate},
		&Burn{Tools: tools},
	}
}

// Names returns the canonical phase names in order.
func Names() []string {
	return []string{"demux", "separate", "recognize", "subtitle", "translate", "align", "synthesize", "mix", "burn"}
}

// NeedsCredentials reports which external credentials a run up to the
// given phase may require. Any phase before the stop point can be
// invalidated and rerun, so the whole prefix counts.
func NeedsCredentials(to string) (needASR, needMT, needTTS bool) {
	names := Names()
	end := len(names) - 1
	for i, n := range names {
		if n == to {
			end = i
		}
	}
	for i := 0; i <= end && i < len(names); i++ {
		switch names[i] {
		case "recognize":
			needASR = true
		case "translate":
			needMT = true
		case "synthesize":
			needTTS = true
		}
	}
	return needASR, needMT, needTTS
}
