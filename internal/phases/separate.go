package phases

import (
	"context"

	"redub/internal/media"
	"redub/internal/pipeline"
)

// Separate splits the source audio into vocals and accompaniment using the
// external separation tool.
type Separate struct {
	Separator *media.Separator
}

func (p *Separate) Name() string       { return "separate" }
func (p *Separate) Version() int       { return 1 }
func (p *Separate) Requires() []string { return []string{KeySourceAudio} }

func (p *Separate) Provides() map[string]string {
	return map[string]string{
		KeyVocals:        PathVocals,
		KeyAccompaniment: PathAccompaniment,
	}
}

func (p *Separate) ConfigValue() any {
	return map[string]any{
		"binary": p.Separator.Binary,
		"model":  p.Separator.Model,
		"device": p.Separator.Device,
	}
}

func (p *Separate) Run(ctx context.Context, pc *pipeline.Context) error {
	return p.Separator.Separate(ctx,
		pc.Inputs[KeySourceAudio],
		pc.Outputs[KeyVocals],
		pc.Outputs[KeyAccompaniment],
	)
}
