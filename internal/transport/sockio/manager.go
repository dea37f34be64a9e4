// Package sockio connects the ranks of a grid run running in separate
// processes over socket.io.
//
// The manager serves the socket.io endpoint; each worker dials it and
// identifies itself with its rank in the handshake auth payload. Three events
// are used: "plan" carries the broadcast frame, "msg" carries an encoded
// protocol.Message in either direction. A worker that disconnects before it
// was sent END fails the run.
package sockio

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/specialistvlad/gridbench/internal/ctxlog"
	"github.com/specialistvlad/gridbench/internal/protocol"
	"github.com/specialistvlad/gridbench/internal/transport"
	"github.com/zishang520/socket.io/v2/socket"
)

const (
	// Path is where the socket.io handler is mounted.
	Path = "/socket.io/"

	eventPlan = "plan"
	eventMsg  = "msg"
)

// ErrWorkerLost is returned when a worker disconnects before END.
var ErrWorkerLost = errors.New("worker disconnected before the end of the run")

// Manager is the manager endpoint of a multi-process run.
type Manager struct {
	ctx     context.Context
	io      *socket.Server
	workers int

	mu      sync.Mutex
	sockets map[int]*socket.Socket
	ended   map[int]bool

	ready     chan struct{}
	inbox     chan transport.Envelope
	failures  chan error
	done      chan struct{}
	closeOnce sync.Once
}

// NewManager creates a manager endpoint expecting workers ranks 1..workers.
// Mount Handler on an HTTP server to accept them.
func NewManager(ctx context.Context, workers int) *Manager {
	m := &Manager{
		ctx:      ctx,
		io:       socket.NewServer(nil, nil),
		workers:  workers,
		sockets:  make(map[int]*socket.Socket, workers),
		ended:    make(map[int]bool, workers),
		ready:    make(chan struct{}),
		inbox:    make(chan transport.Envelope, workers),
		failures: make(chan error, workers),
		done:     make(chan struct{}),
	}
	m.io.On("connection", func(clients ...any) {
		if s, ok := clients[0].(*socket.Socket); ok {
			m.onConnection(s)
		}
	})
	return m
}

// Handler returns the socket.io HTTP handler.
func (m *Manager) Handler() http.Handler {
	return m.io.ServeHandler(nil)
}

func (m *Manager) onConnection(s *socket.Socket) {
	logger := ctxlog.FromContext(m.ctx)

	rank, err := rankFromAuth(s.Handshake().Auth)
	if err == nil && (rank < 1 || rank > m.workers) {
		err = fmt.Errorf("rank %d out of range [1, %d]", rank, m.workers)
	}
	m.mu.Lock()
	if _, dup := m.sockets[rank]; err == nil && dup {
		err = fmt.Errorf("rank %d already connected", rank)
	}
	if err != nil {
		m.mu.Unlock()
		logger.Warn("Rejecting worker connection.", "socket", s.Id(), "error", err)
		s.Disconnect(true)
		return
	}
	m.sockets[rank] = s
	complete := len(m.sockets) == m.workers
	m.mu.Unlock()

	logger.Info("Worker connected.", "rank", rank, "socket", s.Id())

	s.On(eventMsg, func(args ...any) {
		var msg protocol.Message
		if err := decodeArg(args, &msg); err != nil {
			m.fail(fmt.Errorf("worker %d: %w", rank, err))
			return
		}
		select {
		case m.inbox <- transport.Envelope{From: rank, Msg: msg}:
		case <-m.done:
		}
	})
	s.On("disconnect", func(args ...any) {
		m.mu.Lock()
		ended := m.ended[rank]
		m.mu.Unlock()
		if ended {
			logger.Debug("Worker disconnected after END.", "rank", rank)
			return
		}
		m.fail(fmt.Errorf("%w: rank %d (%v)", ErrWorkerLost, rank, args))
	})

	if complete {
		close(m.ready)
	}
}

func (m *Manager) fail(err error) {
	select {
	case m.failures <- err:
	default:
	}
}

// WaitForWorkers blocks until every worker rank has connected.
func (m *Manager) WaitForWorkers(ctx context.Context) error {
	select {
	case <-m.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-m.done:
		return transport.ErrClosed
	}
}

// Workers implements transport.ManagerEndpoint.
func (m *Manager) Workers() int { return m.workers }

// Broadcast implements transport.ManagerEndpoint. It waits for every worker
// to connect first.
func (m *Manager) Broadcast(ctx context.Context, payload []byte) error {
	if err := m.WaitForWorkers(ctx); err != nil {
		return err
	}
	frame := protocol.EncodeFrame(payload)
	for rank := 1; rank <= m.workers; rank++ {
		if err := m.socket(rank).Emit(eventPlan, frame); err != nil {
			return fmt.Errorf("broadcast to worker %d: %w", rank, err)
		}
	}
	return nil
}

// Recv implements transport.ManagerEndpoint.
func (m *Manager) Recv(ctx context.Context) (transport.Envelope, error) {
	select {
	case env := <-m.inbox:
		return env, nil
	case err := <-m.failures:
		return transport.Envelope{}, err
	case <-ctx.Done():
		return transport.Envelope{}, ctx.Err()
	case <-m.done:
		return transport.Envelope{}, transport.ErrClosed
	}
}

// Send implements transport.ManagerEndpoint.
func (m *Manager) Send(_ context.Context, to int, msg protocol.Message) error {
	s := m.socket(to)
	if s == nil {
		return fmt.Errorf("send to unknown worker rank %d", to)
	}
	data, err := msg.MarshalBinary()
	if err != nil {
		return err
	}
	if msg.Kind == protocol.KindEnd {
		m.mu.Lock()
		m.ended[to] = true
		m.mu.Unlock()
	}
	return s.Emit(eventMsg, data)
}

func (m *Manager) socket(rank int) *socket.Socket {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sockets[rank]
}

// Close implements transport.ManagerEndpoint.
func (m *Manager) Close() error {
	m.closeOnce.Do(func() {
		close(m.done)
		m.io.Close(nil)
	})
	return nil
}

func rankFromAuth(auth any) (int, error) {
	fields, ok := auth.(map[string]any)
	if !ok {
		return 0, errors.New("missing auth payload")
	}
	switch v := fields["rank"].(type) {
	case float64:
		return int(v), nil
	case int:
		return v, nil
	default:
		return 0, fmt.Errorf("invalid rank %v", fields["rank"])
	}
}

// decodeArg decodes the first event argument, which socket.io delivers as a
// buffer for binary payloads.
func decodeArg(args []any, v interface{ UnmarshalBinary([]byte) error }) error {
	if len(args) == 0 {
		return errors.New("empty event")
	}
	data, err := bytesOf(args[0])
	if err != nil {
		return err
	}
	return v.UnmarshalBinary(data)
}

func bytesOf(arg any) ([]byte, error) {
	switch b := arg.(type) {
	case []byte:
		return b, nil
	case interface{ Bytes() []byte }:
		return b.Bytes(), nil
	default:
		return nil, fmt.Errorf("unexpected payload type %T", arg)
	}
}

var _ transport.ManagerEndpoint = (*Manager)(nil)
