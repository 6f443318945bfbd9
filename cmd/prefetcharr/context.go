package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/vmunix/prefetcharr/internal/config"
	"github.com/vmunix/prefetcharr/internal/logging"
)

// commandContext carries the root flags to subcommands.
type commandContext struct {
	configFlag string
	legacy     config.Legacy
}

// loadConfig returns the configuration and where it came from. Legacy
// flags win over any config file.
func (c *commandContext) loadConfig() (*config.Config, string, error) {
	if c.legacy.Set() {
		cfg, err := c.legacy.Config()
		return cfg, "flags", err
	}

	path, err := c.configPath()
	if err != nil {
		return nil, "", err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, path, err
	}
	return cfg, path, nil
}

// configPath resolves --config or falls back to discovery.
func (c *commandContext) configPath() (string, error) {
	if c.configFlag != "" {
		return c.configFlag, nil
	}
	path, err := config.Discover()
	if err != nil {
		return "", fmt.Errorf("%w (use --config or run 'prefetcharr config init')", err)
	}
	return path, nil
}

func newLogger(cfg *config.Config, out io.Writer) (*slog.Logger, io.Closer, error) {
	logger, closer, err := logging.New(logging.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Dir:    cfg.LogDir,
		Output: out,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return logger, closer, nil
}
