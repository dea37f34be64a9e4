package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/specialistvlad/gridbench/internal/config"
	"github.com/specialistvlad/gridbench/internal/ctxlog"
	"github.com/specialistvlad/gridbench/internal/executor"
	"github.com/specialistvlad/gridbench/internal/protocol"
	"github.com/specialistvlad/gridbench/internal/report"
	"github.com/specialistvlad/gridbench/internal/scheduler"
	"github.com/specialistvlad/gridbench/internal/task"
	"github.com/specialistvlad/gridbench/internal/transport"
)

// Driver runs one rank of a grid run.
type Driver struct {
	// Config is the manager's run configuration. Workers take theirs from
	// the plan.
	Config config.Grid
	RunID  string
	// Strategy is used on the manager.
	Strategy Strategy
	// Build creates the strategy on a worker.
	Build Builder
	// Out receives the progress bar and the summary. Nil discards them.
	Out io.Writer
	// Progress, if set, is updated as results arrive.
	Progress *Progress
}

func (d *Driver) out() io.Writer {
	if d.Out == nil {
		return io.Discard
	}
	return d.Out
}

// Go runs the rank described by topo. The manager rank uses mgr, every
// other rank uses worker; the endpoint of the other role may be nil.
func (d *Driver) Go(ctx context.Context, topo config.Topology, mgr transport.ManagerEndpoint, worker transport.WorkerEndpoint) error {
	if err := topo.Validate(); err != nil {
		return err
	}
	ctx = ctxlog.With(ctx, "rank", topo.Rank)
	if topo.IsManager() {
		if mgr == nil {
			return errors.New("manager rank has no manager endpoint")
		}
		if mgr.Workers() != topo.Workers() {
			return fmt.Errorf("manager endpoint has %d workers, topology expects %d", mgr.Workers(), topo.Workers())
		}
		return d.RunManager(ctx, mgr)
	}
	if worker == nil {
		return fmt.Errorf("rank %d has no worker endpoint", topo.Rank)
	}
	if worker.Rank() != topo.Rank {
		return fmt.Errorf("worker endpoint has rank %d, topology expects %d", worker.Rank(), topo.Rank)
	}
	return d.RunWorker(ctx, worker)
}

// RunManager builds and broadcasts the plan, feeds the workers and compiles
// the results.
func (d *Driver) RunManager(ctx context.Context, ep transport.ManagerEndpoint) error {
	logger := ctxlog.FromContext(ctx)
	if d.Strategy == nil {
		return errors.New("manager has no strategy")
	}
	start := time.Now()
	out := d.out()

	tasks, grid, err := d.Strategy.BuildTasks(ctx)
	if err != nil {
		return fmt.Errorf("failed to build tasks: %w", err)
	}
	plan := Plan{
		Kind:   d.Strategy.Kind(),
		RunID:  d.RunID,
		Config: d.Config,
		Grid:   grid,
		Tasks:  tasks.Shuffle(),
	}
	logger.Info("Tasks built.", "tasks", len(plan.Tasks), "datasets", len(plan.Tasks.Datasets()), "workers", ep.Workers())

	if err := task.WriteHeader(out, len(plan.Tasks)); err != nil {
		return err
	}
	data, err := plan.Encode()
	if err != nil {
		return err
	}
	if err := ep.Broadcast(ctx, data); err != nil {
		return fmt.Errorf("failed to broadcast plan: %w", err)
	}

	if d.Progress != nil {
		d.Progress.Start(len(plan.Tasks))
	}
	r := lipgloss.NewRenderer(out)
	styles := make(map[int]lipgloss.Style)
	producer := &scheduler.Producer{
		Endpoint: ep,
		OnResult: func(rec scheduler.Record) {
			st, ok := styles[rec.Worker]
			if !ok {
				st = report.RankStyle(r, rec.Worker)
				styles[rec.Worker] = st
			}
			fmt.Fprint(out, st.Render("*"))
			if d.Progress != nil {
				d.Progress.Add(rec.Worker)
			}
		},
	}
	collected, err := producer.Run(ctx, len(plan.Tasks))
	if err != nil {
		return err
	}
	fmt.Fprintln(out, task.Separator)
	logger.Info("All tasks done.", "results", len(collected.Records), "elapsed", time.Since(start))

	if err := d.Strategy.CompileResults(ctx, &plan, collected, time.Since(start)); err != nil {
		return fmt.Errorf("failed to compile results: %w", err)
	}
	if !plan.Config.Quiet {
		// Results are saved by now.
		if err := report.Summary(out, plan.Tasks, collected, time.Since(start)); err != nil {
			logger.Warn("Failed to print the summary.", "error", err)
		}
	}
	return nil
}

// RunWorker receives the plan and consumes tasks until END.
func (d *Driver) RunWorker(ctx context.Context, ep transport.WorkerEndpoint) error {
	logger := ctxlog.FromContext(ctx)

	data, err := ep.ReceiveBroadcast(ctx)
	if err != nil {
		return fmt.Errorf("worker %d failed to receive plan: %w", ep.Rank(), err)
	}
	plan, err := DecodePlan(data)
	if err != nil {
		return fmt.Errorf("worker %d: %w", ep.Rank(), err)
	}
	if d.Build == nil {
		return fmt.Errorf("worker %d has no strategy builder", ep.Rank())
	}
	strategy, err := d.Build(ctx, plan)
	if err != nil {
		return fmt.Errorf("worker %d failed to prepare %s: %w", ep.Rank(), plan.Kind, err)
	}
	logger.Debug("Plan received.", "kind", plan.Kind, "tasks", len(plan.Tasks), "run_id", plan.RunID)

	consumer := &executor.Consumer{
		Endpoint: ep,
		Run: func(ctx context.Context, n int) (protocol.TaskResult, []string, error) {
			if _, err := plan.Task(n); err != nil {
				return protocol.TaskResult{}, nil, err
			}
			return strategy.ConsumeTask(ctx, plan, n)
		},
	}
	done, err := consumer.Execute(ctx)
	logger.Debug("Worker done.", "tasks", done)
	return err
}
