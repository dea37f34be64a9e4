package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/specialistvlad/gridbench/internal/config"
	"github.com/specialistvlad/gridbench/internal/ctxlog"
	"github.com/specialistvlad/gridbench/internal/hyper"
	"github.com/specialistvlad/gridbench/internal/protocol"
	"github.com/specialistvlad/gridbench/internal/scheduler"
	"github.com/specialistvlad/gridbench/internal/task"
	"github.com/specialistvlad/gridbench/internal/testutil"
	"github.com/specialistvlad/gridbench/internal/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type fakeStrategy struct {
	buildErr   error
	consumeErr error
	collected  scheduler.Collected
	plan       *Plan
}

func (f *fakeStrategy) Kind() string { return "fake" }

func (f *fakeStrategy) BuildTasks(context.Context) (task.List, json.RawMessage, error) {
	if f.buildErr != nil {
		return nil, nil, f.buildErr
	}
	return task.Build([]string{"a", "b"}, []int{1, 2}, 3, nil), json.RawMessage(`{"x":1}`), nil
}

func (f *fakeStrategy) ConsumeTask(_ context.Context, plan *Plan, n int) (protocol.TaskResult, []string, error) {
	if f.consumeErr != nil {
		return protocol.TaskResult{}, nil, f.consumeErr
	}
	t := plan.Tasks[n]
	return protocol.TaskResult{DatasetIndex: uint32(t.DatasetIndex), Fold: int32(t.Fold), Score: float64(t.Seed)}, []string{t.String()}, nil
}

func (f *fakeStrategy) CompileResults(_ context.Context, plan *Plan, c scheduler.Collected, _ time.Duration) error {
	f.plan = plan
	f.collected = c
	return nil
}

func newDriver(manager *fakeStrategy, worker func() *fakeStrategy, out *bytes.Buffer) *Driver {
	return &Driver{
		Config:   config.Grid{Model: "m"},
		RunID:    "run",
		Strategy: manager,
		Build: func(_ context.Context, plan *Plan) (Strategy, error) {
			if string(plan.Grid) != `{"x":1}` {
				return nil, errors.New("grid payload lost")
			}
			return worker(), nil
		},
		Out:      out,
		Progress: NewProgress(),
	}
}

func TestRunLocal(t *testing.T) {
	defer goleak.VerifyNone(t)

	manager := &fakeStrategy{}
	var out bytes.Buffer
	d := newDriver(manager, func() *fakeStrategy { return &fakeStrategy{} }, &out)

	require.NoError(t, RunLocal(context.Background(), d, 4))

	require.NotNil(t, manager.plan)
	assert.Equal(t, "fake", manager.plan.Kind)
	assert.Equal(t, "run", manager.plan.RunID)
	require.Len(t, manager.plan.Tasks, 12)
	assert.Equal(t, task.Build([]string{"a", "b"}, []int{1, 2}, 3, nil).Shuffle(), manager.plan.Tasks)

	require.Len(t, manager.collected.Records, 12)
	seen := make(map[int32]bool)
	for _, rec := range manager.collected.Records {
		assert.False(t, seen[rec.Result.Task], "task %d returned twice", rec.Result.Task)
		seen[rec.Result.Task] = true
		tk := manager.plan.Tasks[rec.Result.Task]
		assert.Equal(t, float64(tk.Seed), rec.Result.Score)
		assert.Equal(t, []string{tk.String()}, rec.Notes)
		assert.Equal(t, int32(rec.Worker), rec.Result.Process)
	}

	s := out.String()
	assert.True(t, strings.HasPrefix(s, "* Number of tasks: 12\n"))
	assert.Equal(t, 12, strings.Count(s, "*")-1, "one star per result")
	assert.Contains(t, s, "Summary of tasks per worker")

	snap := d.Progress.Snapshot()
	assert.Equal(t, 12, snap.Total)
	assert.Equal(t, 12, snap.Done)
}

func TestRunLocal_QuietSkipsSummary(t *testing.T) {
	defer goleak.VerifyNone(t)

	var out bytes.Buffer
	d := newDriver(&fakeStrategy{}, func() *fakeStrategy { return &fakeStrategy{} }, &out)
	d.Config.Quiet = true
	require.NoError(t, RunLocal(context.Background(), d, 2))
	assert.NotContains(t, out.String(), "Summary")
}

func TestRunLocal_Failures(t *testing.T) {
	boom := errors.New("boom")

	t.Run("build tasks", func(t *testing.T) {
		defer goleak.VerifyNone(t)
		d := newDriver(&fakeStrategy{buildErr: boom}, func() *fakeStrategy { return &fakeStrategy{} }, nil)
		require.ErrorIs(t, RunLocal(context.Background(), d, 3), boom)
	})

	t.Run("task", func(t *testing.T) {
		defer goleak.VerifyNone(t)
		d := newDriver(&fakeStrategy{}, func() *fakeStrategy { return &fakeStrategy{consumeErr: boom} }, nil)
		require.ErrorIs(t, RunLocal(context.Background(), d, 3), boom)
	})

	t.Run("worker build", func(t *testing.T) {
		defer goleak.VerifyNone(t)
		d := newDriver(&fakeStrategy{}, nil, nil)
		d.Build = func(context.Context, *Plan) (Strategy, error) { return nil, boom }
		require.ErrorIs(t, RunLocal(context.Background(), d, 2), boom)
	})

	t.Run("single process", func(t *testing.T) {
		d := newDriver(&fakeStrategy{}, nil, nil)
		require.ErrorIs(t, RunLocal(context.Background(), d, 1), config.ErrInvalid)
	})
}

func TestDriver_GoChecksEndpoints(t *testing.T) {
	defer goleak.VerifyNone(t)
	ctx := context.Background()
	d := newDriver(&fakeStrategy{}, nil, nil)

	mgr, workers := transport.NewLocal(2)
	defer mgr.Close()

	require.Error(t, d.Go(ctx, config.Topology{Rank: 0, NProcs: 2}, mgr, nil))
	require.Error(t, d.Go(ctx, config.Topology{Rank: 0, NProcs: 3}, nil, nil))
	require.Error(t, d.Go(ctx, config.Topology{Rank: 2, NProcs: 3}, nil, workers[0]))
	require.Error(t, d.Go(ctx, config.Topology{Rank: 1, NProcs: 3}, nil, nil))
}

func TestPlan_Task(t *testing.T) {
	p := &Plan{Tasks: task.Build([]string{"a"}, []int{1}, 2, nil)}
	got, err := p.Task(1)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Fold)
	_, err = p.Task(2)
	require.Error(t, err)
	_, err = p.Task(-1)
	require.Error(t, err)
}

func TestPlan_EncodeDecode(t *testing.T) {
	set, err := hyper.Parse(`{"b":1,"a":"x"}`)
	require.NoError(t, err)
	plan := &Plan{
		Kind:   KindExperiment,
		RunID:  "run",
		Config: config.Grid{Model: "m", Seeds: []int{271}},
		Grid:   json.RawMessage(`{"all":[{"q":[1]}]}`),
		Tasks: task.List{
			{Dataset: "iris", DatasetIndex: 0, Seed: 271, Fold: 2},
			{Dataset: "wine", DatasetIndex: 1, Seed: 42, Fold: 0, Hyperparameters: set},
		},
	}

	data, err := plan.Encode()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"idx_dataset":1`)
	assert.Contains(t, string(data), `"hyperparameters":{"b":1,"a":"x"}`)

	back, err := DecodePlan(data)
	require.NoError(t, err)
	assert.Equal(t, plan.Tasks, back.Tasks)
	assert.Equal(t, plan.RunID, back.RunID)
	assert.JSONEq(t, string(plan.Grid), string(back.Grid))
	assert.Empty(t, back.Tasks[0].Hyperparameters)

	_, err = DecodePlan([]byte(`[1,2]`))
	assert.Error(t, err)
	_, err = DecodePlan([]byte(`{"tasks":[]}`))
	assert.ErrorContains(t, err, "missing kind")
}

// summaryFailWriter accepts the progress output and fails the summary.
type summaryFailWriter struct{ bytes.Buffer }

func (w *summaryFailWriter) Write(p []byte) (int, error) {
	if bytes.Contains(p, []byte("Summary of tasks")) {
		return 0, errors.New("stdout closed")
	}
	return w.Buffer.Write(p)
}

func TestRunLocal_SummaryFailureIsLogged(t *testing.T) {
	defer goleak.VerifyNone(t)

	var logs testutil.SafeBuffer
	ctx := ctxlog.WithLogger(context.Background(), slog.New(slog.NewTextHandler(&logs, nil)))
	manager := &fakeStrategy{}
	d := newDriver(manager, func() *fakeStrategy { return &fakeStrategy{} }, nil)
	d.Out = &summaryFailWriter{}

	require.NoError(t, RunLocal(ctx, d, 3))
	assert.Len(t, manager.collected.Records, 12, "results compiled before the summary")
	assert.Contains(t, logs.String(), "Failed to print the summary.")
	assert.Contains(t, logs.String(), "stdout closed")
}

func TestProgress(t *testing.T) {
	p := NewProgress()
	p.Start(3)
	p.Add(1)
	p.Add(2)
	p.Add(1)
	snap := p.Snapshot()
	assert.Equal(t, Snapshot{Total: 3, Done: 3, PerWorker: map[int]int{1: 2, 2: 1}}, snap)

	p.Start(5)
	assert.Equal(t, Snapshot{Total: 5, PerWorker: map[int]int{}}, p.Snapshot())
}
