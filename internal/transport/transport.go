// Package transport moves protocol messages between the manager rank and the
// worker ranks of a grid run.
//
// The manager side sees every worker through one ManagerEndpoint: it receives
// from any worker and sends to a specific one. Each worker sees only the
// manager. Ranks are numbered from 1 on the worker side; rank 0 is the manager.
//
// Two implementations exist: Local, which connects goroutines of one process
// through per-worker channels, and the sockio subpackage, which connects
// separate processes over socket.io.
package transport

import (
	"context"
	"errors"

	"github.com/specialistvlad/gridbench/internal/protocol"
)

// ErrClosed is returned by operations on a closed endpoint.
var ErrClosed = errors.New("transport closed")

// Envelope is a message received by the manager together with its sender.
type Envelope struct {
	From int
	Msg  protocol.Message
}

// ManagerEndpoint is the manager's view of the process group.
type ManagerEndpoint interface {
	// Workers is the number of worker ranks.
	Workers() int
	// Broadcast delivers payload to every worker.
	Broadcast(ctx context.Context, payload []byte) error
	// Recv blocks until a message from any worker arrives.
	Recv(ctx context.Context) (Envelope, error)
	// Send delivers msg to the worker with rank to.
	Send(ctx context.Context, to int, msg protocol.Message) error
	Close() error
}

// WorkerEndpoint is a worker's view of the process group.
type WorkerEndpoint interface {
	Rank() int
	// ReceiveBroadcast blocks until the manager's broadcast arrives.
	ReceiveBroadcast(ctx context.Context) ([]byte, error)
	Send(ctx context.Context, msg protocol.Message) error
	Recv(ctx context.Context) (protocol.Message, error)
	Close() error
}
