package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/specialistvlad/gridbench/internal/engine"
	"github.com/specialistvlad/gridbench/internal/registry"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	ctx        context.Context
	outW       io.Writer
	logger     *slog.Logger
	registry   *registry.Registry
	config     *Config
	progress   *engine.Progress
	httpServer *http.Server
}

// NewApp is the constructor for the main application. Reports and progress go
// to outW, logs to logW. Without modules the core modules are registered.
func NewApp(outW, logW io.Writer, cfg *Config, modules ...registry.Module) *App {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, logW)
	logger.Debug("Logger configured successfully.")

	if len(modules) == 0 {
		modules = coreModules
	}
	reg := registry.New(modules...)
	logger.Debug("All Go modules registered.", "count", len(modules), "models", reg.Models(), "discretizers", reg.Discretizers())

	return &App{
		ctx:      context.Background(),
		outW:     outW,
		logger:   logger,
		registry: reg,
		config:   cfg,
		progress: engine.NewProgress(),
	}
}

// Registry returns the application's registry. This is primarily for testing.
func (a *App) Registry() *registry.Registry {
	return a.registry
}

// Progress returns the progress of the current run.
func (a *App) Progress() *engine.Progress {
	return a.progress
}
