package pipeline

import (
	"context"
	"log/slog"

	"redub/internal/config"
	"redub/internal/workspace"
)

// Context carries everything a phase needs to execute: resolved input and
// output paths, configuration, credentials, and a logger already annotated
// with the phase name.
type Context struct {
	Workspace   *workspace.Workspace
	Config      *config.Config
	Credentials config.Credentials
	Logger      *slog.Logger

	// Inputs maps required artifact keys to absolute paths.
	Inputs map[string]string
	// Outputs maps provided artifact keys to absolute paths. Phases must
	// write every declared output atomically before returning nil.
	Outputs map[string]string
}

// Phase is one node in the pipeline. Phases declare what they consume and
// produce; the runner owns path resolution, fingerprinting, and manifest
// commits.
type Phase interface {
	// Name is the stable phase identifier used in the manifest.
	Name() string
	// Version is bumped whenever the phase's logic changes in a way that
	// invalidates previously produced outputs.
	Version() int
	// Requires lists the artifact keys this phase reads.
	Requires() []string
	// Provides maps produced artifact keys to workspace-relative paths.
	Provides() map[string]string
	// ConfigValue returns the phase's effective configuration. The runner
	// fingerprints its canonical serialization for invalidation.
	ConfigValue() any
	// Run executes the phase.
	Run(ctx context.Context, pc *Context) error
}
