package phases

import (
	"context"
	"os"

	"redub/internal/media"
	"redub/internal/pipeline"
	"redub/internal/services"
)

// Demux extracts the source audio track from the video.
type Demux struct {
	Tools      *media.Toolchain
	SampleRate int
}

func (p *Demux) Name() string       { return "demux" }
func (p *Demux) Version() int       { return 1 }
func (p *Demux) Requires() []string { return []string{KeyVideo} }

func (p *Demux) Provides() map[string]string {
	return map[string]string{KeySourceAudio: PathSourceAudio}
}

func (p *Demux) ConfigValue() any {
	return map[string]any{"sample_rate": p.SampleRate}
}

func (p *Demux) Run(ctx context.Context, pc *pipeline.Context) error {
	video := pc.Inputs[KeyVideo]
	out := pc.Outputs[KeySourceAudio]

	staging := out + ".tmp.wav"
	defer os.Remove(staging)
	if err := p.Tools.ExtractAudio(ctx, video, staging, p.SampleRate); err != nil {
		return services.Wrap(services.ErrExternalTool, p.Name(), "extract audio", KeySourceAudio, err)
	}
	return os.Rename(staging, out)
}
