package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/specialistvlad/gridbench/internal/ctxlog"
	"github.com/specialistvlad/gridbench/internal/protocol"
	"github.com/specialistvlad/gridbench/internal/transport"
)

// Record is a single result received from a worker.
type Record struct {
	Worker   int
	Result   protocol.TaskResult
	Notes    []string
	Received time.Time
}

// Collected holds every record in arrival order.
type Collected struct {
	Records []Record
}

// ByWorker groups the records per worker rank, keeping arrival order.
func (c Collected) ByWorker() map[int][]Record {
	out := make(map[int][]Record)
	for _, r := range c.Records {
		out[r.Worker] = append(out[r.Worker], r)
	}
	return out
}

// Producer drives the manager side of the work loop.
type Producer struct {
	Endpoint transport.ManagerEndpoint
	// OnResult, if set, is called for every result as it arrives.
	OnResult func(Record)
}

// Run assigns tasks 0..n-1 to whichever worker asks next, then answers the
// last message of every worker with END. Each worker has at most one
// outstanding message, so the drain phase receives exactly one message per
// worker.
func (p *Producer) Run(ctx context.Context, n int) (Collected, error) {
	logger := ctxlog.FromContext(ctx)
	var out Collected

	for i := 0; i < n; i++ {
		env, err := p.receive(ctx, &out)
		if err != nil {
			return out, err
		}
		if err := p.Endpoint.Send(ctx, env.From, protocol.Assign(i)); err != nil {
			return out, fmt.Errorf("failed to send task %d to worker %d: %w", i, env.From, err)
		}
		logger.Debug("Task assigned.", "task", i, "worker", env.From)
	}

	for range p.Endpoint.Workers() {
		env, err := p.receive(ctx, &out)
		if err != nil {
			return out, err
		}
		if err := p.Endpoint.Send(ctx, env.From, protocol.End()); err != nil {
			return out, fmt.Errorf("failed to send end to worker %d: %w", env.From, err)
		}
		logger.Debug("Worker released.", "worker", env.From)
	}
	return out, nil
}

func (p *Producer) receive(ctx context.Context, out *Collected) (transport.Envelope, error) {
	env, err := p.Endpoint.Recv(ctx)
	if err != nil {
		return env, fmt.Errorf("failed to receive from workers: %w", err)
	}
	switch env.Msg.Kind {
	case protocol.KindQuery:
	case protocol.KindResult:
		rec := Record{Worker: env.From, Result: env.Msg.Result, Notes: env.Msg.Notes, Received: time.Now()}
		out.Records = append(out.Records, rec)
		if p.OnResult != nil {
			p.OnResult(rec)
		}
	default:
		return env, fmt.Errorf("unexpected %s message from worker %d: %w", env.Msg.Kind, env.From, protocol.ErrUnknownKind)
	}
	return env, nil
}
