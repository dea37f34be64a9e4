package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/specialistvlad/gridbench/internal/config"
	"github.com/specialistvlad/gridbench/internal/ctxlog"
	"github.com/specialistvlad/gridbench/internal/dataset"
	"github.com/specialistvlad/gridbench/internal/engine"
	"github.com/specialistvlad/gridbench/internal/experiment"
	"github.com/specialistvlad/gridbench/internal/griddata"
	"github.com/specialistvlad/gridbench/internal/report"
	"github.com/specialistvlad/gridbench/internal/results"
	"github.com/specialistvlad/gridbench/internal/search"
	"github.com/specialistvlad/gridbench/internal/transport/sockio"
)

// Run executes the configured command.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.ctx = ctx
	a.logger.Debug("App.Run method started.", "command", a.config.Command)

	if a.config.HealthcheckPort > 0 {
		a.healthCheckServer()
		defer a.closeHealthCheckServer()
	}

	if a.config.Command == CommandWorker {
		return a.runWorker(ctx)
	}

	platform, err := config.LoadPlatform(ctx, a.config.PlatformFile)
	if err != nil {
		return err
	}
	switch a.config.Command {
	case CommandDump:
		return a.dump(platform)
	case CommandReport:
		return a.report(platform)
	case CommandCompute:
		return a.compute(ctx, platform)
	case CommandExperiment:
		return a.experiment(ctx, platform)
	}
	return fmt.Errorf("%w: unknown command %q", config.ErrInvalid, a.config.Command)
}

func (a *App) dump(p config.Platform) error {
	grid, err := griddata.Load(results.InputPath(p.GridDir, a.config.Model))
	if err != nil {
		return err
	}
	return report.Dump(a.outW, grid)
}

func (a *App) report(p config.Platform) error {
	out, err := results.LoadOutput(results.OutputPath(p.GridDir, a.config.Model))
	if errors.Is(err, fs.ErrNotExist) {
		_, err = fmt.Fprintln(a.outW, report.NoResults)
		return err
	}
	if err != nil {
		return err
	}
	return report.Results(a.outW, out, a.config.Format)
}

// gridConfig merges the command line over the platform and validates it.
func (a *App) gridConfig(p config.Platform) (config.Grid, error) {
	cfg := a.config.Overrides.Apply(p.Grid(a.config.Model))
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	if !a.registry.HasModel(cfg.Model) {
		return cfg, fmt.Errorf("%w: unknown model %q, expected one of %v", config.ErrInvalid, cfg.Model, a.registry.Models())
	}
	return cfg, nil
}

// catalog opens the datasets of a run.
func (a *App) catalog(ctx context.Context, cfg config.Grid) (*dataset.DirCatalog, error) {
	return dataset.NewDirCatalog(ctx, cfg.SourceData, dataset.Options{
		Discretize: cfg.Discretize,
		Algo:       cfg.DiscretizeAlgo,
		Registry:   a.registry,
	})
}

// build recreates the strategy of a broadcast plan on a worker.
func (a *App) build(ctx context.Context, plan *engine.Plan) (engine.Strategy, error) {
	catalog, err := a.catalog(ctx, plan.Config)
	if err != nil {
		return nil, err
	}
	switch plan.Kind {
	case engine.KindSearch:
		return search.FromPlan(plan, catalog, a.registry)
	case engine.KindExperiment:
		return experiment.FromPlan(plan, catalog, a.registry)
	}
	return nil, fmt.Errorf("unknown plan kind %q", plan.Kind)
}

func (a *App) compute(ctx context.Context, p config.Platform) error {
	cfg, err := a.gridConfig(p)
	if err != nil {
		return err
	}
	grid, err := griddata.Load(results.InputPath(cfg.GridDir, cfg.Model))
	if err != nil {
		return err
	}
	catalog, err := a.catalog(ctx, cfg)
	if err != nil {
		return err
	}
	strategy, err := search.New(cfg, catalog, a.registry, grid)
	if err != nil {
		return err
	}
	if err := a.runManager(ctx, cfg, strategy); err != nil {
		return err
	}

	out, err := results.LoadOutput(results.OutputPath(cfg.GridDir, cfg.Model))
	if err != nil {
		return err
	}
	return report.Results(a.outW, out, report.FormatText)
}

func (a *App) experiment(ctx context.Context, p config.Platform) error {
	cfg, err := a.gridConfig(p)
	if err != nil {
		return err
	}
	catalog, err := a.catalog(ctx, cfg)
	if err != nil {
		return err
	}
	strategy, err := experiment.New(cfg, catalog, a.registry, experiment.Options{
		Datasets: a.config.Datasets,
		Source: &experiment.Source{
			JSON:     a.config.Hyperparameters,
			File:     a.config.HyperFile,
			Best:     a.config.HyperBest,
			BestPath: results.OutputPath(cfg.GridDir, cfg.Model),
			Default:  p.ExperimentHyperparameters,
		},
	})
	if err != nil {
		return err
	}
	if err := a.runManager(ctx, cfg, strategy); err != nil {
		return err
	}

	out, err := results.LoadExperiment(results.ExperimentPath(cfg.GridDir, cfg.Model))
	if err != nil {
		return err
	}
	return report.Experiment(a.outW, out, report.FormatText)
}

// runManager runs strategy either with every rank in this process or as the
// manager of remote workers.
func (a *App) runManager(ctx context.Context, cfg config.Grid, strategy engine.Strategy) error {
	runID := uuid.NewString()
	ctx = ctxlog.With(ctx, "run_id", runID)
	logger := ctxlog.FromContext(ctx)

	d := &engine.Driver{
		Config:   cfg,
		RunID:    runID,
		Strategy: strategy,
		Build:    a.build,
		Out:      a.outW,
		Progress: a.progress,
	}

	start := time.Now()
	if a.config.Listen == "" {
		logger.Info("🚀 Starting local run...", "kind", strategy.Kind(), "model", cfg.Model, "procs", a.config.Local)
		if err := engine.RunLocal(ctx, d, a.config.Local); err != nil {
			return err
		}
	} else if err := a.serveWorkers(ctx, d); err != nil {
		return err
	}
	logger.Info("🏁 Run finished.", "elapsed", results.FormatDuration(time.Since(start)))
	return nil
}

// serveWorkers accepts socket.io workers on the listen address and runs the
// manager rank.
func (a *App) serveWorkers(ctx context.Context, d *engine.Driver) error {
	logger := ctxlog.FromContext(ctx)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	mgr := sockio.NewManager(ctx, a.config.Procs-1)
	defer mgr.Close()

	ln, err := net.Listen("tcp", a.config.Listen)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", a.config.Listen, err)
	}
	mux := http.NewServeMux()
	mux.Handle(sockio.Path, mgr.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Info("🛰️ Manager waiting for workers", "address", ln.Addr().String(), "workers", a.config.Procs-1)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Manager server failed unexpectedly", "error", err)
			cancel()
		}
	}()
	defer func() {
		shutdownCtx, stop := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer stop()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Manager server shutdown failed", "error", err)
		}
	}()

	return d.Go(ctx, config.Topology{Rank: 0, NProcs: a.config.Procs}, mgr, nil)
}

// runWorker joins a manager as one worker rank.
func (a *App) runWorker(ctx context.Context) error {
	ctx = ctxlog.With(ctx, "rank", a.config.Rank)
	logger := ctxlog.FromContext(ctx)

	w, err := sockio.Dial(ctx, a.config.ManagerURL, a.config.Rank)
	if err != nil {
		return err
	}
	defer w.Close()

	logger.Info("🚀 Worker joining run...", "manager", a.config.ManagerURL)
	d := &engine.Driver{Build: a.build}
	if err := d.RunWorker(ctx, w); err != nil {
		return err
	}
	logger.Info("🏁 Worker finished.")
	return nil
}
