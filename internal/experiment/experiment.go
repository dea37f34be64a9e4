// Package experiment implements the fixed-hyperparameter strategy: the same
// manager/worker run as a grid search, but every task fits its dataset once
// with the hyperparameters it carries and scores the outer test partition.
package experiment

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/specialistvlad/gridbench/internal/config"
	"github.com/specialistvlad/gridbench/internal/ctxlog"
	"github.com/specialistvlad/gridbench/internal/dataset"
	"github.com/specialistvlad/gridbench/internal/engine"
	"github.com/specialistvlad/gridbench/internal/folding"
	"github.com/specialistvlad/gridbench/internal/hyper"
	"github.com/specialistvlad/gridbench/internal/protocol"
	"github.com/specialistvlad/gridbench/internal/registry"
	"github.com/specialistvlad/gridbench/internal/results"
	"github.com/specialistvlad/gridbench/internal/scheduler"
	"github.com/specialistvlad/gridbench/internal/task"
)

// AllDatasets selects every dataset of the catalog.
const AllDatasets = "all"

// Options select what an experiment runs on the manager.
type Options struct {
	// Datasets to run; empty or AllDatasets means the whole catalog.
	Datasets []string
	// Hyperparameters per dataset. Datasets without an entry run with an
	// empty set.
	Hyperparameters hyper.PerDataset
	// Source, if set, resolves Hyperparameters for the selected datasets
	// when the tasks are built.
	Source *Source
}

// Experiment is the fixed-hyperparameter strategy.
type Experiment struct {
	cfg       config.Grid
	opts      Options
	catalog   dataset.Catalog
	registry  *registry.Registry
	smoothing registry.Smoothing
	// Now stamps the persisted results.
	Now func() time.Time
}

var _ engine.Strategy = (*Experiment)(nil)

// New creates an experiment of cfg.Model over catalog.
func New(cfg config.Grid, catalog dataset.Catalog, reg *registry.Registry, opts Options) (*Experiment, error) {
	if !reg.HasModel(cfg.Model) {
		return nil, fmt.Errorf("%w: %s", registry.ErrUnknownModel, cfg.Model)
	}
	smoothing, err := registry.ParseSmoothing(cfg.SmoothStrategy)
	if err != nil {
		return nil, err
	}
	return &Experiment{cfg: cfg, opts: opts, catalog: catalog, registry: reg, smoothing: smoothing, Now: time.Now}, nil
}

// FromPlan rebuilds the experiment on a worker. Hyperparameters travel in
// the tasks.
func FromPlan(plan *engine.Plan, catalog dataset.Catalog, reg *registry.Registry) (*Experiment, error) {
	return New(plan.Config, catalog, reg, Options{})
}

// Kind implements engine.Strategy.
func (e *Experiment) Kind() string { return engine.KindExperiment }

// SelectDatasets resolves the requested dataset names against the catalog.
func (e *Experiment) SelectDatasets() ([]string, error) {
	all := e.catalog.Names()
	if len(e.opts.Datasets) == 0 || slices.Equal(e.opts.Datasets, []string{AllDatasets}) {
		return all, nil
	}
	for _, name := range e.opts.Datasets {
		if !slices.Contains(all, name) {
			return nil, fmt.Errorf("%w: %s", dataset.ErrUnknownDataset, name)
		}
	}
	return slices.Clone(e.opts.Datasets), nil
}

// BuildTasks implements engine.Strategy. Every task carries the
// hyperparameters of its dataset.
func (e *Experiment) BuildTasks(ctx context.Context) (task.List, json.RawMessage, error) {
	names, err := e.SelectDatasets()
	if err != nil {
		return nil, nil, err
	}
	resolved := e.opts.Hyperparameters
	if e.opts.Source != nil {
		if resolved, err = e.opts.Source.Resolve(ctx, names); err != nil {
			return nil, nil, err
		}
	}
	params := make(hyper.PerDataset, len(names))
	for _, name := range names {
		set := resolved[name]
		if set == nil {
			set = hyper.Set{}
		}
		params[name] = set
	}
	ctxlog.FromContext(ctx).Debug("Datasets selected.", "datasets", names)
	return task.Build(names, e.cfg.Seeds, e.cfg.NFolds, params), nil, nil
}

// ConsumeTask implements engine.Strategy.
func (e *Experiment) ConsumeTask(ctx context.Context, plan *engine.Plan, n int) (protocol.TaskResult, []string, error) {
	start := time.Now()
	t, err := plan.Task(n)
	if err != nil {
		return protocol.TaskResult{}, nil, err
	}
	ds, err := e.catalog.Get(ctx, t.Dataset)
	if err != nil {
		return protocol.TaskResult{}, nil, err
	}
	fold, err := folding.New(e.cfg.Stratified, e.cfg.NFolds, ds.Labels(), t.Seed)
	if err != nil {
		return protocol.TaskResult{}, nil, fmt.Errorf("%s: %w", t, err)
	}
	train, test, err := fold.Fold(t.Fold)
	if err != nil {
		return protocol.TaskResult{}, nil, fmt.Errorf("%s: %w", t, err)
	}
	split, err := ds.TrainTest(train, test)
	if err != nil {
		return protocol.TaskResult{}, nil, err
	}

	clf, err := e.registry.CreateModel(e.cfg.Model)
	if err != nil {
		return protocol.TaskResult{}, nil, err
	}
	if err := t.Hyperparameters.Check(clf.ValidHyperparameters()); err != nil {
		return protocol.TaskResult{}, nil, fmt.Errorf("%s: %w", t, err)
	}
	if err := clf.SetHyperparameters(t.Hyperparameters); err != nil {
		return protocol.TaskResult{}, nil, fmt.Errorf("%s: %w", t, err)
	}
	if err := clf.Fit(split.Train(), e.smoothing); err != nil {
		return protocol.TaskResult{}, nil, fmt.Errorf("%s: %w", t, err)
	}
	score, err := clf.Score(split.XTest, split.YTest)
	if err != nil {
		return protocol.TaskResult{}, nil, fmt.Errorf("%s: %w", t, err)
	}
	return protocol.TaskResult{
		DatasetIndex: uint32(t.DatasetIndex),
		Fold:         int32(t.Fold),
		Score:        score,
		Time:         time.Since(start).Seconds(),
		Nodes:        float64(clf.NumberOfNodes()),
		Leaves:       float64(clf.NumberOfEdges()),
		Depth:        float64(clf.NumberOfStates()),
	}, clf.Notes(), nil
}

// Aggregate reduces the records of every dataset. Records are ordered by task
// index first, so the per-task scores do not depend on arrival order.
func Aggregate(tasks task.List, records []scheduler.Record) (map[string]results.ExperimentEntry, error) {
	sorted := slices.Clone(records)
	slices.SortFunc(sorted, func(a, b scheduler.Record) int { return int(a.Result.Task) - int(b.Result.Task) })

	out := make(map[string]results.ExperimentEntry)
	times := make(map[string]float64)
	for _, rec := range sorted {
		idx := int(rec.Result.Task)
		if idx < 0 || idx >= len(tasks) {
			return nil, fmt.Errorf("result for unknown task %d", idx)
		}
		t := tasks[idx]
		e := out[t.Dataset]
		e.Scores = append(e.Scores, rec.Result.Score)
		e.Nodes += rec.Result.Nodes
		e.Leaves += rec.Result.Leaves
		e.Depth += rec.Result.Depth
		e.Hyperparameters = t.Hyperparameters
		for _, note := range rec.Notes {
			if !slices.Contains(e.Notes, note) {
				e.Notes = append(e.Notes, note)
			}
		}
		out[t.Dataset] = e
		times[t.Dataset] += rec.Result.Time
	}
	for name, e := range out {
		n := float64(len(e.Scores))
		var sum float64
		for _, s := range e.Scores {
			sum += s
		}
		e.Score = sum / n
		var sq float64
		for _, s := range e.Scores {
			sq += (s - e.Score) * (s - e.Score)
		}
		e.ScoreStd = math.Sqrt(sq / n)
		e.Nodes /= n
		e.Leaves /= n
		e.Depth /= n
		e.Duration = results.FormatDuration(time.Duration(times[name] * float64(time.Second)))
		if e.Hyperparameters == nil {
			e.Hyperparameters = hyper.Set{}
		}
		out[name] = e
	}
	return out, nil
}

// CompileResults implements engine.Strategy.
func (e *Experiment) CompileResults(ctx context.Context, plan *engine.Plan, c scheduler.Collected, elapsed time.Duration) error {
	entries, err := Aggregate(plan.Tasks, c.Records)
	if err != nil {
		return err
	}
	now := e.Now()
	for name, entry := range entries {
		entry.Date = now.Format(results.DateLayout)
		entries[name] = entry
	}
	out := results.Experiment{
		Metadata: results.NewMetadata(e.cfg, plan.RunID, elapsed, now),
		Results:  entries,
	}
	path := results.ExperimentPath(e.cfg.GridDir, e.cfg.Model)
	if err := results.Save(path, out); err != nil {
		return err
	}
	ctxlog.FromContext(ctx).Info("Experiment saved.", "path", path, "datasets", len(entries))
	return nil
}
