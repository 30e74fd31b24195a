package testsupport

import (
	"path/filepath"
	"testing"

	"redub/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.LogDir = filepath.Join(base, "logs")

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithWorkspaceRoot overrides the workspace root on the test config.
func WithWorkspaceRoot(root string) ConfigOption {
	return func(c *config.Config) {
		c.Paths.WorkspaceRoot = root
	}
}

// WithSilenceGap overrides the normalizer silence gap on the test config.
func WithSilenceGap(ms int) ConfigOption {
	return func(c *config.Config) {
		c.Subtitle.SilenceGapMs = ms
	}
}
