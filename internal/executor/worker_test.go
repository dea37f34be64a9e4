package executor

import (
	"context"
	"errors"
	"testing"

	"github.com/specialistvlad/gridbench/internal/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scripted replays a fixed list of manager messages and records what the
// worker sends.
type scripted struct {
	rank   int
	script []protocol.Message
	sent   []protocol.Message
}

func (s *scripted) Rank() int { return s.rank }

func (s *scripted) ReceiveBroadcast(context.Context) ([]byte, error) { return nil, nil }

func (s *scripted) Send(_ context.Context, msg protocol.Message) error {
	s.sent = append(s.sent, msg)
	return nil
}

func (s *scripted) Recv(context.Context) (protocol.Message, error) {
	if len(s.script) == 0 {
		return protocol.Message{}, errors.New("script exhausted")
	}
	msg := s.script[0]
	s.script = s.script[1:]
	return msg, nil
}

func (s *scripted) Close() error { return nil }

func TestConsumer_Execute(t *testing.T) {
	t.Run("runs tasks until end", func(t *testing.T) {
		ep := &scripted{rank: 2, script: []protocol.Message{protocol.Assign(4), protocol.Assign(1), protocol.End()}}
		c := &Consumer{
			Endpoint: ep,
			Run: func(_ context.Context, task int) (protocol.TaskResult, []string, error) {
				return protocol.TaskResult{Score: 0.5}, []string{"note"}, nil
			},
		}

		n, err := c.Execute(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		require.Len(t, ep.sent, 3)
		assert.Equal(t, protocol.KindQuery, ep.sent[0].Kind)
		for i, task := range []int32{4, 1} {
			msg := ep.sent[i+1]
			assert.Equal(t, protocol.KindResult, msg.Kind)
			assert.Equal(t, task, msg.Result.Task)
			assert.Equal(t, int32(2), msg.Result.Process)
			assert.Equal(t, []string{"note"}, msg.Notes)
		}
	})

	t.Run("immediate end", func(t *testing.T) {
		ep := &scripted{rank: 1, script: []protocol.Message{protocol.End()}}
		c := &Consumer{Endpoint: ep, Run: func(context.Context, int) (protocol.TaskResult, []string, error) {
			t.Fatal("no task expected")
			return protocol.TaskResult{}, nil, nil
		}}
		n, err := c.Execute(context.Background())
		require.NoError(t, err)
		assert.Zero(t, n)
		assert.Len(t, ep.sent, 1)
	})

	t.Run("task failure stops the worker", func(t *testing.T) {
		boom := errors.New("boom")
		ep := &scripted{rank: 1, script: []protocol.Message{protocol.Assign(0)}}
		c := &Consumer{Endpoint: ep, Run: func(context.Context, int) (protocol.TaskResult, []string, error) {
			return protocol.TaskResult{}, nil, boom
		}}
		_, err := c.Execute(context.Background())
		require.ErrorIs(t, err, boom)
	})

	t.Run("unexpected message", func(t *testing.T) {
		ep := &scripted{rank: 1, script: []protocol.Message{protocol.Query()}}
		c := &Consumer{Endpoint: ep}
		_, err := c.Execute(context.Background())
		require.ErrorIs(t, err, protocol.ErrUnknownKind)
	})
}
