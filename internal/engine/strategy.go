package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/specialistvlad/gridbench/internal/config"
	"github.com/specialistvlad/gridbench/internal/protocol"
	"github.com/specialistvlad/gridbench/internal/scheduler"
	"github.com/specialistvlad/gridbench/internal/task"
)

// Strategy kinds carried in a Plan.
const (
	KindSearch     = "search"
	KindExperiment = "experiment"
)

// Plan is what the manager broadcasts to every worker before any task is
// assigned. It is read-only once received.
type Plan struct {
	Kind   string      `json:"kind"`
	RunID  string      `json:"run_id"`
	Config config.Grid `json:"config"`
	// Grid is the raw grid input document, when the strategy needs one.
	Grid  json.RawMessage `json:"grid,omitempty"`
	Tasks task.List       `json:"tasks"`
}

// Task returns task n of the plan.
func (p *Plan) Task(n int) (task.Task, error) {
	if n < 0 || n >= len(p.Tasks) {
		return task.Task{}, fmt.Errorf("task %d out of range [0, %d)", n, len(p.Tasks))
	}
	return p.Tasks[n], nil
}

// Encode serializes the plan for the broadcast.
func (p *Plan) Encode() ([]byte, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to encode plan: %w", err)
	}
	return data, nil
}

// DecodePlan parses a broadcast plan.
func DecodePlan(data []byte) (*Plan, error) {
	var p Plan
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to decode plan: %w", err)
	}
	if p.Kind == "" {
		return nil, errors.New("failed to decode plan: missing kind")
	}
	return &p, nil
}

// Strategy is the part of a grid run that differs between a search and an
// experiment.
type Strategy interface {
	Kind() string
	// BuildTasks runs on the manager. It selects the datasets and returns the
	// task list in build order, plus the grid document workers need.
	BuildTasks(ctx context.Context) (task.List, json.RawMessage, error)
	// ConsumeTask runs on a worker and computes task n of the plan.
	ConsumeTask(ctx context.Context, plan *Plan, n int) (protocol.TaskResult, []string, error)
	// CompileResults runs on the manager once every task is done. It reduces
	// the collected results and persists them.
	CompileResults(ctx context.Context, plan *Plan, c scheduler.Collected, elapsed time.Duration) error
}

// Builder creates a worker's strategy from the received plan.
type Builder func(ctx context.Context, plan *Plan) (Strategy, error)
