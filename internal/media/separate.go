package media

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"redub/internal/fileutil"
	"redub/internal/services"
)

// Separator invokes the vocal separation tool as an opaque external
// process and collects its two-stem output.
type Separator struct {
	Binary string
	Model  string
	Device string

	runner func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// NewSeparator builds a separator around the configured binary.
func NewSeparator(binary, model, device string) *Separator {
	if binary == "" {
		binary = "demucs"
	}
	if model == "" {
		model = "htdemucs"
	}
	return &Separator{Binary: binary, Model: model, Device: device}
}

// WithRunner sets a custom command runner (for testing).
func (s *Separator) WithRunner(runner func(ctx context.Context, name string, args ...string) ([]byte, error)) *Separator {
	s.runner = runner
	return s
}

// Separate splits audio into vocals and accompaniment, writing the stems to
// the given target paths.
func (s *Separator) Separate(ctx context.Context, audio, vocalsOut, accompanimentOut string) error {
	workDir, err := os.MkdirTemp(filepath.Dir(vocalsOut), ".sep-*")
	if err != nil {
		return fmt.Errorf("create separation dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	args := []string{
		"--two-stems", "vocals",
		"-n", s.Model,
		"-o", workDir,
	}
	if s.Device != "" {
		args = append(args, "-d", s.Device)
	}
	args = append(args, audio)

	if _, err := s.run(ctx, s.Binary, args...); err != nil {
		return services.Wrap(services.ErrExternalTool, "separate", s.Binary, audio, err)
	}

	stem := strings.TrimSuffix(filepath.Base(audio), filepath.Ext(audio))
	produced := filepath.Join(workDir, s.Model, stem)
	if err := fileutil.CopyFileAtomic(filepath.Join(produced, "vocals.wav"), vocalsOut); err != nil {
		return services.Wrap(services.ErrExternalTool, "separate", "collect vocals", produced, err)
	}
	if err := fileutil.CopyFileAtomic(filepath.Join(produced, "no_vocals.wav"), accompanimentOut); err != nil {
		return services.Wrap(services.ErrExternalTool, "separate", "collect accompaniment", produced, err)
	}
	return nil
}

func (s *Separator) run(ctx context.Context, name string, args ...string) ([]byte, error) {
	if s.runner != nil {
		return s.runner(ctx, name, args...)
	}
	cmd := exec.CommandContext(ctx, name, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return output, fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return output, nil
}
