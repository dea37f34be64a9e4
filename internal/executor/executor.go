// Package executor runs the worker side of the work loop.
package executor

import (
	"context"

	"github.com/specialistvlad/gridbench/internal/protocol"
)

// RunFunc executes the task with the given index and returns its result
// record and any notes produced while fitting.
type RunFunc func(ctx context.Context, task int) (protocol.TaskResult, []string, error)

// Executor processes tasks until the producer says there is nothing left.
type Executor interface {
	Execute(ctx context.Context) (int, error)
}
