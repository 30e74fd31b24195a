package main

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"redub/internal/config"
	"redub/internal/logging"
	"redub/internal/manifest"
	"redub/internal/workspace"
)

// commandContext lazily resolves the configuration and logger shared by
// every subcommand.
type commandContext struct {
	configFlag *string

	cfg    *config.Config
	logger *slog.Logger
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}
	path := ""
	if c.configFlag != nil {
		path = *c.configFlag
	}
	cfg, _, _, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	c.cfg = cfg
	return cfg, nil
}

func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	if c.logger != nil {
		return c.logger, nil
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	outputs := []string{"stdout"}
	if cfg.Paths.LogDir != "" {
		outputs = append(outputs, filepath.Join(cfg.Paths.LogDir, "redub.log"))
	}
	logger, err := logging.New(logging.Options{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: outputs,
	})
	if err != nil {
		return nil, err
	}
	c.logger = logger
	return logger, nil
}

// openWorkspace resolves and lock-protects the workspace for a video.
// The returned release function always runs, failure or not.
func (c *commandContext) openWorkspace(video string) (*workspace.Workspace, *manifest.Manifest, func(), error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, nil, nil, err
	}
	ws, err := workspace.ForVideo(video, cfg.Paths.WorkspaceRoot)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := ws.Lock(); err != nil {
		return nil, nil, nil, err
	}
	if err := ws.EnsureLayout(); err != nil {
		ws.Unlock()
		return nil, nil, nil, err
	}
	m, err := manifest.Load(ws.ManifestPath())
	if err != nil {
		ws.Unlock()
		return nil, nil, nil, fmt.Errorf("load manifest: %w", err)
	}
	return ws, m, ws.Unlock, nil
}
