// Package app wires the pipeline together: configuration, rule registry,
// analysis modules and the commands the CLI exposes.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/vk/annogrid/internal/config"
	"github.com/vk/annogrid/internal/ctxlog"
	"github.com/vk/annogrid/internal/registry"
)

// Config holds everything an App instance needs to start.
type Config struct {
	// ConfigPath is the corpus configuration file.
	ConfigPath string
	// ModulesPath is the directory holding rule manifests.
	ModulesPath string
	LogFormat   string
	LogLevel    string
	Workers     int
}

// App encapsulates one pipeline invocation's dependencies and lifecycle.
// Each instance carries its own isolated logger.
type App struct {
	outW     io.Writer
	logger   *slog.Logger
	eff      *config.Effective
	registry *registry.Registry
	workers  int
}

// New constructs a fully initialized App: corpus config loaded, manifests
// parsed, module handlers registered and the registry validated. A nil
// modules list selects the built-in analysis modules.
func New(outW io.Writer, cfg *Config, modules ...registry.Module) (*App, error) {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	eff, err := config.Load(cfg.ConfigPath)
	if err != nil {
		return nil, err
	}
	logger.Debug("Corpus configuration loaded.", "path", cfg.ConfigPath)

	reg := registry.New()
	if len(modules) == 0 {
		modules = coreModules
	}
	for _, mod := range modules {
		mod.Register(reg)
	}
	logger.Debug("All Go modules registered.", "count", len(modules))

	if err := reg.LoadManifests(ctx, cfg.ModulesPath); err != nil {
		return nil, err
	}
	if err := reg.AddCustomRules(ctx, eff.Custom()); err != nil {
		return nil, fmt.Errorf("invalid custom annotations: %w", err)
	}
	if err := reg.Validate(ctx); err != nil {
		return nil, err
	}
	logger.Debug("Registry validation passed.")

	return &App{
		outW:     outW,
		logger:   logger,
		eff:      eff,
		registry: reg,
		workers:  cfg.Workers,
	}, nil
}

// Registry returns the application's registry. Primarily for testing.
func (a *App) Registry() *registry.Registry {
	return a.registry
}

// Config returns the effective corpus configuration.
func (a *App) Config() *config.Effective {
	return a.eff
}
