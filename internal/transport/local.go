package transport

import (
	"context"
	"fmt"
	"sync"

	"github.com/specialistvlad/gridbench/internal/protocol"
)

// Local connects a manager and its workers inside one process. Every worker
// owns an inbound channel; all workers share the manager's inbox.
type Local struct {
	inbox     chan Envelope
	outboxes  []chan protocol.Message
	broadcast []chan []byte

	done      chan struct{}
	closeOnce sync.Once
}

// NewLocal creates a manager endpoint and nWorkers worker endpoints with
// ranks 1..nWorkers.
func NewLocal(nWorkers int) (*Local, []*LocalWorker) {
	l := &Local{
		inbox:     make(chan Envelope, nWorkers),
		outboxes:  make([]chan protocol.Message, nWorkers),
		broadcast: make([]chan []byte, nWorkers),
		done:      make(chan struct{}),
	}
	workers := make([]*LocalWorker, nWorkers)
	for i := range nWorkers {
		l.outboxes[i] = make(chan protocol.Message, 1)
		l.broadcast[i] = make(chan []byte, 1)
		workers[i] = &LocalWorker{rank: i + 1, hub: l}
	}
	return l, workers
}

// Workers implements ManagerEndpoint.
func (l *Local) Workers() int { return len(l.outboxes) }

// Broadcast implements ManagerEndpoint. The payload is framed the same way as
// on the network so both transports share the frame checks.
func (l *Local) Broadcast(ctx context.Context, payload []byte) error {
	frame := protocol.EncodeFrame(payload)
	for _, ch := range l.broadcast {
		select {
		case ch <- frame:
		case <-ctx.Done():
			return ctx.Err()
		case <-l.done:
			return ErrClosed
		}
	}
	return nil
}

// Recv implements ManagerEndpoint.
func (l *Local) Recv(ctx context.Context) (Envelope, error) {
	select {
	case env := <-l.inbox:
		return env, nil
	case <-ctx.Done():
		return Envelope{}, ctx.Err()
	case <-l.done:
		return Envelope{}, ErrClosed
	}
}

// Send implements ManagerEndpoint.
func (l *Local) Send(ctx context.Context, to int, msg protocol.Message) error {
	if to < 1 || to > len(l.outboxes) {
		return fmt.Errorf("send to unknown worker rank %d", to)
	}
	select {
	case l.outboxes[to-1] <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		return ErrClosed
	}
}

// Close implements ManagerEndpoint. It unblocks every endpoint of the group.
func (l *Local) Close() error {
	l.closeOnce.Do(func() { close(l.done) })
	return nil
}

// LocalWorker is the worker side of a Local group.
type LocalWorker struct {
	rank int
	hub  *Local
}

// Rank implements WorkerEndpoint.
func (w *LocalWorker) Rank() int { return w.rank }

// ReceiveBroadcast implements WorkerEndpoint.
func (w *LocalWorker) ReceiveBroadcast(ctx context.Context) ([]byte, error) {
	select {
	case frame := <-w.hub.broadcast[w.rank-1]:
		return protocol.DecodeFrame(frame)
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-w.hub.done:
		return nil, ErrClosed
	}
}

// Send implements WorkerEndpoint.
func (w *LocalWorker) Send(ctx context.Context, msg protocol.Message) error {
	select {
	case w.hub.inbox <- Envelope{From: w.rank, Msg: msg}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-w.hub.done:
		return ErrClosed
	}
}

// Recv implements WorkerEndpoint.
func (w *LocalWorker) Recv(ctx context.Context) (protocol.Message, error) {
	select {
	case msg := <-w.hub.outboxes[w.rank-1]:
		return msg, nil
	case <-ctx.Done():
		return protocol.Message{}, ctx.Err()
	case <-w.hub.done:
		return protocol.Message{}, ErrClosed
	}
}

// Close implements WorkerEndpoint. Workers do not own the channels.
func (w *LocalWorker) Close() error { return nil }

var (
	_ ManagerEndpoint = (*Local)(nil)
	_ WorkerEndpoint  = (*LocalWorker)(nil)
)
