package executor

import (
	"context"
	"fmt"

	"github.com/specialistvlad/gridbench/internal/ctxlog"
	"github.com/specialistvlad/gridbench/internal/protocol"
	"github.com/specialistvlad/gridbench/internal/transport"
)

// Consumer asks for work, runs it and reports back until it receives END.
type Consumer struct {
	Endpoint transport.WorkerEndpoint
	Run      RunFunc
}

var _ Executor = (*Consumer)(nil)

// Execute sends QUERY, then alternates between running the assigned task and
// sending its RESULT. It returns the number of tasks processed.
func (c *Consumer) Execute(ctx context.Context) (int, error) {
	rank := c.Endpoint.Rank()
	logger := ctxlog.FromContext(ctx).With("rank", rank)
	logger.Debug("Worker started.")

	if err := c.Endpoint.Send(ctx, protocol.Query()); err != nil {
		return 0, fmt.Errorf("worker %d failed to send query: %w", rank, err)
	}

	done := 0
	for {
		msg, err := c.Endpoint.Recv(ctx)
		if err != nil {
			return done, fmt.Errorf("worker %d failed to receive: %w", rank, err)
		}
		switch msg.Kind {
		case protocol.KindEnd:
			logger.Debug("Worker finished.", "tasks", done)
			return done, nil
		case protocol.KindTask:
		default:
			return done, fmt.Errorf("worker %d got unexpected %s message: %w", rank, msg.Kind, protocol.ErrUnknownKind)
		}

		taskLogger := logger.With("task", msg.Task)
		taskLogger.Debug("Worker picked up task.")
		result, notes, err := c.Run(ctx, msg.Task)
		if err != nil {
			taskLogger.Error("Task failed.", "error", err)
			return done, fmt.Errorf("task %d failed on worker %d: %w", msg.Task, rank, err)
		}
		result.Process = int32(rank)
		result.Task = int32(msg.Task)
		if err := c.Endpoint.Send(ctx, protocol.Reply(result, notes)); err != nil {
			return done, fmt.Errorf("worker %d failed to send result: %w", rank, err)
		}
		done++
		taskLogger.Debug("Task succeeded.", "score", result.Score)
	}
}
