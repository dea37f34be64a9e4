package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/specialistvlad/gridbench/internal/config"
	"github.com/specialistvlad/gridbench/internal/ctxlog"
	"github.com/specialistvlad/gridbench/internal/dataset"
	"github.com/specialistvlad/gridbench/internal/engine"
	"github.com/specialistvlad/gridbench/internal/folding"
	"github.com/specialistvlad/gridbench/internal/griddata"
	"github.com/specialistvlad/gridbench/internal/hyper"
	"github.com/specialistvlad/gridbench/internal/protocol"
	"github.com/specialistvlad/gridbench/internal/registry"
	"github.com/specialistvlad/gridbench/internal/results"
	"github.com/specialistvlad/gridbench/internal/scheduler"
	"github.com/specialistvlad/gridbench/internal/task"
)

// Search is the grid search strategy.
type Search struct {
	cfg       config.Grid
	catalog   dataset.Catalog
	registry  *registry.Registry
	grid      *griddata.GridData
	smoothing registry.Smoothing
	// Now stamps the persisted results.
	Now func() time.Time
}

var _ engine.Strategy = (*Search)(nil)

// New creates a grid search of cfg.Model over the datasets of catalog.
func New(cfg config.Grid, catalog dataset.Catalog, reg *registry.Registry, grid *griddata.GridData) (*Search, error) {
	if !reg.HasModel(cfg.Model) {
		return nil, fmt.Errorf("%w: %s", registry.ErrUnknownModel, cfg.Model)
	}
	smoothing, err := registry.ParseSmoothing(cfg.SmoothStrategy)
	if err != nil {
		return nil, err
	}
	return &Search{cfg: cfg, catalog: catalog, registry: reg, grid: grid, smoothing: smoothing, Now: time.Now}, nil
}

// Kind implements engine.Strategy.
func (s *Search) Kind() string { return engine.KindSearch }

// BuildTasks implements engine.Strategy. One task is built per dataset, seed
// and outer fold; combinations are searched inside each task.
func (s *Search) BuildTasks(ctx context.Context) (task.List, json.RawMessage, error) {
	names, err := FilterDatasets(s.catalog.Names(), s.cfg)
	if err != nil {
		return nil, nil, err
	}
	for _, name := range names {
		n, err := s.grid.NumCombinations(name)
		if err != nil {
			return nil, nil, err
		}
		if n == 0 {
			return nil, nil, fmt.Errorf("%w: dataset %s has an empty grid", griddata.ErrNoGrid, name)
		}
	}
	ctxlog.FromContext(ctx).Debug("Datasets selected.", "datasets", names)
	return task.Build(names, s.cfg.Seeds, s.cfg.NFolds, nil), s.grid.Raw(), nil
}

// Partition is one inner split, as positions within the outer training
// partition.
type Partition struct {
	Train, Validation []int
}

// nestedPartitions splits the outer training partition, whose labels are
// yTrain, into the inner folds used for model selection.
func (s *Search) nestedPartitions(yTrain []int, seed int) ([]Partition, error) {
	fold, err := folding.New(s.cfg.Stratified, s.cfg.Nested, yTrain, seed)
	if err != nil {
		return nil, fmt.Errorf("nested folds: %w", err)
	}
	parts := make([]Partition, fold.K())
	for i := range parts {
		train, validation, err := fold.Fold(i)
		if err != nil {
			return nil, err
		}
		parts[i] = Partition{Train: train, Validation: validation}
	}
	return parts, nil
}

func (s *Search) classifier(params hyper.Set) (registry.Classifier, error) {
	clf, err := s.registry.CreateModel(s.cfg.Model)
	if err != nil {
		return nil, err
	}
	if err := params.Check(clf.ValidHyperparameters()); err != nil {
		return nil, err
	}
	if err := clf.SetHyperparameters(params); err != nil {
		return nil, err
	}
	return clf, nil
}

// innerScore is the mean validation score of params over parts.
func (s *Search) innerScore(split dataset.Split, parts []Partition, params hyper.Set) (float64, error) {
	var total float64
	for _, p := range parts {
		clf, err := s.classifier(params)
		if err != nil {
			return 0, err
		}
		if err := clf.Fit(split.TrainRows(p.Train), s.smoothing); err != nil {
			return 0, err
		}
		X, y := dataset.Rows(split.XTrain, split.YTrain, p.Validation)
		score, err := clf.Score(X, y)
		if err != nil {
			return 0, err
		}
		total += score
	}
	return total / float64(len(parts)), nil
}

// ConsumeTask implements engine.Strategy.
func (s *Search) ConsumeTask(ctx context.Context, plan *engine.Plan, n int) (protocol.TaskResult, []string, error) {
	start := time.Now()
	t, err := plan.Task(n)
	if err != nil {
		return protocol.TaskResult{}, nil, err
	}
	logger := ctxlog.FromContext(ctx).With("task", t.String())

	ds, err := s.catalog.Get(ctx, t.Dataset)
	if err != nil {
		return protocol.TaskResult{}, nil, err
	}
	combinations, err := s.grid.Grid(t.Dataset)
	if err != nil {
		return protocol.TaskResult{}, nil, err
	}
	outer, err := folding.New(s.cfg.Stratified, s.cfg.NFolds, ds.Labels(), t.Seed)
	if err != nil {
		return protocol.TaskResult{}, nil, fmt.Errorf("%s: %w", t, err)
	}
	train, test, err := outer.Fold(t.Fold)
	if err != nil {
		return protocol.TaskResult{}, nil, fmt.Errorf("%s: %w", t, err)
	}
	split, err := ds.TrainTest(train, test)
	if err != nil {
		return protocol.TaskResult{}, nil, err
	}
	parts, err := s.nestedPartitions(split.YTrain, t.Seed)
	if err != nil {
		return protocol.TaskResult{}, nil, fmt.Errorf("%s: %w", t, err)
	}

	best, bestIdx := math.Inf(-1), -1
	for i, params := range combinations {
		score, err := s.innerScore(split, parts, params)
		if err != nil {
			return protocol.TaskResult{}, nil, fmt.Errorf("%s: combination %s: %w", t, params, err)
		}
		if math.IsNaN(score) {
			score = math.Inf(-1)
		}
		if bestIdx < 0 || score > best {
			best, bestIdx = score, i
		}
	}
	if bestIdx < 0 {
		return protocol.TaskResult{}, nil, fmt.Errorf("%s: %w", t, griddata.ErrNoGrid)
	}
	logger.Debug("Combination selected.", "combination", combinations[bestIdx].String(), "inner_score", best)

	clf, err := s.classifier(combinations[bestIdx])
	if err != nil {
		return protocol.TaskResult{}, nil, err
	}
	if err := clf.Fit(split.Train(), s.smoothing); err != nil {
		return protocol.TaskResult{}, nil, fmt.Errorf("%s: %w", t, err)
	}
	score, err := clf.Score(split.XTest, split.YTest)
	if err != nil {
		return protocol.TaskResult{}, nil, fmt.Errorf("%s: %w", t, err)
	}

	return protocol.TaskResult{
		DatasetIndex:     uint32(t.DatasetIndex),
		CombinationIndex: int32(bestIdx),
		Fold:             int32(t.Fold),
		Score:            score,
		Time:             time.Since(start).Seconds(),
		Nodes:            float64(clf.NumberOfNodes()),
		Leaves:           float64(clf.NumberOfEdges()),
		Depth:            float64(clf.NumberOfStates()),
	}, clf.Notes(), nil
}

// InitializeResults returns the results a continued run merges into. A fresh
// run, a missing file or an unreadable one all start from nothing.
func (s *Search) InitializeResults(ctx context.Context) map[string]results.Entry {
	logger := ctxlog.FromContext(ctx)
	out := make(map[string]results.Entry)
	if !s.cfg.Continuing() {
		return out
	}
	path := results.OutputPath(s.cfg.GridDir, s.cfg.Model)
	logger.Info("Loading previous results.", "path", path)
	prev, err := results.LoadOutput(path)
	if err != nil {
		logger.Warn("There were no previous results, initializing new results.", "error", err)
		return out
	}
	return prev.Results
}

// SelectBest keeps, per dataset, the record with the highest score. Records
// are visited in order and a later record must be strictly better to win.
func SelectBest(records []scheduler.Record, names map[int]string) (map[string]scheduler.Record, error) {
	best := make(map[string]scheduler.Record)
	for _, rec := range records {
		name, ok := names[int(rec.Result.DatasetIndex)]
		if !ok {
			return nil, fmt.Errorf("%w: index %d", ErrUnknownDataset, rec.Result.DatasetIndex)
		}
		cur, seen := best[name]
		if !seen || rec.Result.Score > cur.Result.Score {
			best[name] = rec
		}
	}
	return best, nil
}

func datasetNames(tasks task.List) map[int]string {
	names := make(map[int]string)
	for _, t := range tasks {
		names[t.DatasetIndex] = t.Dataset
	}
	return names
}

// CompileResults implements engine.Strategy.
func (s *Search) CompileResults(ctx context.Context, plan *engine.Plan, c scheduler.Collected, elapsed time.Duration) error {
	best, err := SelectBest(c.Records, datasetNames(plan.Tasks))
	if err != nil {
		return err
	}
	now := s.Now()
	out := results.Output{
		Metadata: results.NewMetadata(s.cfg, plan.RunID, elapsed, now),
		Results:  s.InitializeResults(ctx),
	}
	for name, rec := range best {
		entry, err := s.entry(name, rec, now)
		if err != nil {
			return err
		}
		out.Results[name] = entry
	}
	path := results.OutputPath(s.cfg.GridDir, s.cfg.Model)
	if err := results.Save(path, out); err != nil {
		return err
	}
	ctxlog.FromContext(ctx).Info("Results saved.", "path", path, "datasets", len(best))
	return nil
}

func (s *Search) entry(name string, rec scheduler.Record, now time.Time) (results.Entry, error) {
	combinations, err := s.grid.Grid(name)
	if err != nil {
		return results.Entry{}, err
	}
	idx := int(rec.Result.CombinationIndex)
	if idx < 0 || idx >= len(combinations) {
		return results.Entry{}, fmt.Errorf("%s: combination %d out of range [0, %d)", name, idx, len(combinations))
	}
	lines, err := s.grid.InputGrid(name)
	if err != nil {
		return results.Entry{}, err
	}
	raw, err := json.Marshal(lines)
	if err != nil {
		return results.Entry{}, err
	}
	return results.Entry{
		Score:           rec.Result.Score,
		Hyperparameters: combinations[idx],
		Date:            now.Format(results.DateLayout),
		Grid:            raw,
		Duration:        results.FormatDuration(time.Duration(rec.Result.Time * float64(time.Second))),
		Notes:           slices.Compact(slices.Clone(rec.Notes)),
	}, nil
}

// FromPlan rebuilds the search on a worker from the broadcast plan.
func FromPlan(plan *engine.Plan, catalog dataset.Catalog, reg *registry.Registry) (*Search, error) {
	if len(plan.Grid) == 0 {
		return nil, errors.New("plan carries no grid")
	}
	grid, err := griddata.Parse(bytes.NewReader(plan.Grid))
	if err != nil {
		return nil, err
	}
	return New(plan.Config, catalog, reg, grid)
}
