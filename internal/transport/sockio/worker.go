package sockio

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/specialistvlad/gridbench/internal/ctxlog"
	"github.com/specialistvlad/gridbench/internal/protocol"
	"github.com/specialistvlad/gridbench/internal/transport"
	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"
)

// Worker is the worker endpoint of a multi-process run.
type Worker struct {
	rank   int
	client *socket.Socket

	plans    chan []byte
	inbox    chan protocol.Message
	failures chan error

	mu    sync.Mutex
	ended bool

	done      chan struct{}
	closeOnce sync.Once
}

// Dial connects to the manager at url as the worker with the given rank. The
// connection is established in the background; failures surface on the first
// blocking call.
func Dial(ctx context.Context, url string, rank int) (*Worker, error) {
	logger := ctxlog.FromContext(ctx).With("rank", rank)

	opts := socket.DefaultOptions()
	opts.SetAuth(map[string]any{"rank": rank})
	opts.SetTransports(types.NewSet(transports.WebSocket))
	opts.SetReconnection(false)
	opts.SetForceNew(true)
	opts.SetAutoConnect(false)

	client, err := socket.Connect(url, opts)
	if err != nil {
		return nil, fmt.Errorf("connect to manager %s: %w", url, err)
	}

	w := &Worker{
		rank:     rank,
		client:   client,
		plans:    make(chan []byte, 1),
		inbox:    make(chan protocol.Message, 1),
		failures: make(chan error, 1),
		done:     make(chan struct{}),
	}

	client.On("connect", func(...any) {
		logger.Info("Connected to manager.", "url", url)
	})
	client.On("connect_error", func(args ...any) {
		w.fail(fmt.Errorf("connect to manager %s: %v", url, args))
	})
	client.On("disconnect", func(args ...any) {
		w.mu.Lock()
		ended := w.ended
		w.mu.Unlock()
		if !ended {
			w.fail(fmt.Errorf("manager connection lost: %v", args))
		}
	})
	client.On(eventPlan, func(args ...any) {
		if len(args) == 0 {
			w.fail(errors.New("empty plan event"))
			return
		}
		frame, err := bytesOf(args[0])
		if err != nil {
			w.fail(err)
			return
		}
		select {
		case w.plans <- frame:
		case <-w.done:
		}
	})
	client.On(eventMsg, func(args ...any) {
		var msg protocol.Message
		if err := decodeArg(args, &msg); err != nil {
			w.fail(err)
			return
		}
		if msg.Kind == protocol.KindEnd {
			w.mu.Lock()
			w.ended = true
			w.mu.Unlock()
		}
		select {
		case w.inbox <- msg:
		case <-w.done:
		}
	})

	client.Connect()
	return w, nil
}

func (w *Worker) fail(err error) {
	select {
	case w.failures <- err:
	default:
	}
}

// Rank implements transport.WorkerEndpoint.
func (w *Worker) Rank() int { return w.rank }

// ReceiveBroadcast implements transport.WorkerEndpoint.
func (w *Worker) ReceiveBroadcast(ctx context.Context) ([]byte, error) {
	select {
	case frame := <-w.plans:
		return protocol.DecodeFrame(frame)
	case err := <-w.failures:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-w.done:
		return nil, transport.ErrClosed
	}
}

// Send implements transport.WorkerEndpoint.
func (w *Worker) Send(_ context.Context, msg protocol.Message) error {
	data, err := msg.MarshalBinary()
	if err != nil {
		return err
	}
	return w.client.Emit(eventMsg, data)
}

// Recv implements transport.WorkerEndpoint.
func (w *Worker) Recv(ctx context.Context) (protocol.Message, error) {
	select {
	case msg := <-w.inbox:
		return msg, nil
	case err := <-w.failures:
		return protocol.Message{}, err
	case <-ctx.Done():
		return protocol.Message{}, ctx.Err()
	case <-w.done:
		return protocol.Message{}, transport.ErrClosed
	}
}

// Close implements transport.WorkerEndpoint.
func (w *Worker) Close() error {
	w.closeOnce.Do(func() {
		w.mu.Lock()
		w.ended = true
		w.mu.Unlock()
		close(w.done)
		w.client.Disconnect()
	})
	return nil
}

var _ transport.WorkerEndpoint = (*Worker)(nil)
