package phases

import (
	"context"
	"os"

	"redub/internal/media"
	"redub/internal/pipeline"
	"redub/internal/services"
)

// Burn muxes the mixed audio under the source video and burns the
// target-language subtitles into the picture.
type Burn struct {
	Tools *media.Toolchain
}

func (p *Burn) Name() string { return "burn" }
func (p *Burn) Version() int { return 1 }

func (p *Burn) Requires() []string {
	return []string{KeyVideo, KeyMixAudio, KeyEnSRT}
}

func (p *Burn) Provides() map[string]string {
	return map[string]string{KeyDubbedVideo: PathDubbedVideo}
}

func (p *Burn) ConfigValue() any {
	return map[string]any{}
}

func (p *Burn) Run(ctx context.Context, pc *pipeline.Context) error {
	out := pc.Outputs[KeyDubbedVideo]
	staging := out + ".tmp.mp4"
	defer os.Remove(staging)

	err := p.Tools.Burn(ctx,
		pc.Inputs[KeyVideo],
		pc.Inputs[KeyMixAudio],
		pc.Inputs[KeyEnSRT],
		staging,
	)
	if err != nil {
		return services.Wrap(services.ErrExternalTool, p.Name(), "burn subtitles", KeyDubbedVideo, err)
	}
	return os.Rename(staging, out)
}
