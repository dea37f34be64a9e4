// Package protocol defines the messages exchanged between the manager and the
// workers of a grid run and their wire encodings.
//
// A worker announces itself with a Query, the manager answers with a Task
// holding a task index, the worker replies with a Result and the manager
// eventually answers the last message of every worker with End. The task list
// itself travels once, before the loop, as a length-prefixed broadcast frame.
package protocol

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// Kind tags a Message.
type Kind uint8

const (
	KindQuery  Kind = 1
	KindResult Kind = 2
	KindTask   Kind = 3
	KindEnd    Kind = 4
)

func (k Kind) String() string {
	switch k {
	case KindQuery:
		return "QUERY"
	case KindResult:
		return "RESULT"
	case KindTask:
		return "TASK"
	case KindEnd:
		return "END"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

var (
	// ErrVersion is returned when a record was written by an unknown codec version.
	ErrVersion = errors.New("unsupported record version")
	// ErrShortRecord is returned when a buffer is too small for its content.
	ErrShortRecord = errors.New("short record")
	// ErrUnknownKind is returned for an unknown message tag.
	ErrUnknownKind = errors.New("unknown message kind")
	// ErrFrame is returned when a broadcast frame is malformed.
	ErrFrame = errors.New("malformed broadcast frame")
)

// RecordVersion is the current TaskResult layout version.
const RecordVersion = 1

// RecordSize is the encoded size of a TaskResult.
const RecordSize = 64

// TaskResult is the fixed-width outcome of one task. Nodes, Leaves and Depth
// carry the classifier's node, edge and state counts under the names used in
// result files.
type TaskResult struct {
	DatasetIndex     uint32
	CombinationIndex int32
	Fold             int32
	Process          int32
	Task             int32
	Score            float64
	Time             float64
	Nodes            float64
	Leaves           float64
	Depth            float64
}

// MarshalBinary encodes the record as:
//
//	0  version   u8 (+3 zero bytes)
//	4  idx_dataset u32
//	8  idx_combination i32
//	12 n_fold i32
//	16 process i32
//	20 task i32
//	24 score, time, nodes, leaves, depth f64
//
// All fields are little endian.
func (r TaskResult) MarshalBinary() ([]byte, error) {
	buf := make([]byte, RecordSize)
	r.put(buf)
	return buf, nil
}

func (r TaskResult) put(buf []byte) {
	le := binary.LittleEndian
	buf[0] = RecordVersion
	le.PutUint32(buf[4:], r.DatasetIndex)
	le.PutUint32(buf[8:], uint32(r.CombinationIndex))
	le.PutUint32(buf[12:], uint32(r.Fold))
	le.PutUint32(buf[16:], uint32(r.Process))
	le.PutUint32(buf[20:], uint32(r.Task))
	for i, f := range []float64{r.Score, r.Time, r.Nodes, r.Leaves, r.Depth} {
		le.PutUint64(buf[24+8*i:], math.Float64bits(f))
	}
}

// UnmarshalBinary decodes a record written by MarshalBinary.
func (r *TaskResult) UnmarshalBinary(data []byte) error {
	if len(data) < RecordSize {
		return fmt.Errorf("%w: task result needs %d bytes, got %d", ErrShortRecord, RecordSize, len(data))
	}
	if data[0] != RecordVersion {
		return fmt.Errorf("%w: %d", ErrVersion, data[0])
	}
	le := binary.LittleEndian
	r.DatasetIndex = le.Uint32(data[4:])
	r.CombinationIndex = int32(le.Uint32(data[8:]))
	r.Fold = int32(le.Uint32(data[12:]))
	r.Process = int32(le.Uint32(data[16:]))
	r.Task = int32(le.Uint32(data[20:]))
	fields := []*float64{&r.Score, &r.Time, &r.Nodes, &r.Leaves, &r.Depth}
	for i, f := range fields {
		*f = math.Float64frombits(le.Uint64(data[24+8*i:]))
	}
	return nil
}

// Message is the tagged union carried between manager and workers. Task is
// meaningful for KindTask, Result and Notes for KindResult.
type Message struct {
	Kind   Kind
	Task   int
	Result TaskResult
	Notes  []string
}

// Query, Assign, Reply and End build the four message kinds.
func Query() Message { return Message{Kind: KindQuery} }

func Assign(task int) Message { return Message{Kind: KindTask, Task: task} }

func Reply(r TaskResult, notes []string) Message {
	return Message{Kind: KindResult, Result: r, Notes: notes}
}

func End() Message { return Message{Kind: KindEnd} }

const headerSize = 8

// MarshalBinary encodes the message as an 8-byte header (kind, three zero
// bytes, task index), followed for results by the fixed-width record and the
// notes as a JSON array.
func (m Message) MarshalBinary() ([]byte, error) {
	if m.Kind < KindQuery || m.Kind > KindEnd {
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, m.Kind)
	}
	buf := make([]byte, headerSize, headerSize+RecordSize)
	buf[0] = byte(m.Kind)
	binary.LittleEndian.PutUint32(buf[4:], uint32(int32(m.Task)))
	if m.Kind != KindResult {
		return buf, nil
	}
	buf = buf[:headerSize+RecordSize]
	m.Result.put(buf[headerSize:])
	if len(m.Notes) > 0 {
		notes, err := json.Marshal(m.Notes)
		if err != nil {
			return nil, err
		}
		buf = append(buf, notes...)
	}
	return buf, nil
}

// UnmarshalBinary decodes a message written by MarshalBinary.
func (m *Message) UnmarshalBinary(data []byte) error {
	if len(data) < headerSize {
		return fmt.Errorf("%w: message header needs %d bytes, got %d", ErrShortRecord, headerSize, len(data))
	}
	kind := Kind(data[0])
	if kind < KindQuery || kind > KindEnd {
		return fmt.Errorf("%w: %d", ErrUnknownKind, data[0])
	}
	*m = Message{Kind: kind, Task: int(int32(binary.LittleEndian.Uint32(data[4:])))}
	if kind != KindResult {
		return nil
	}
	if err := m.Result.UnmarshalBinary(data[headerSize:]); err != nil {
		return err
	}
	if rest := data[headerSize+RecordSize:]; len(rest) > 0 {
		if err := json.Unmarshal(rest, &m.Notes); err != nil {
			return fmt.Errorf("decode notes: %w", err)
		}
	}
	return nil
}

// FrameHeaderSize is the size of the length prefix of a broadcast frame.
const FrameHeaderSize = 8

// EncodeFrame prefixes payload with its length so the receiver can size its
// buffer before the bytes arrive.
func EncodeFrame(payload []byte) []byte {
	frame := make([]byte, FrameHeaderSize+len(payload))
	binary.LittleEndian.PutUint64(frame, uint64(len(payload)))
	copy(frame[FrameHeaderSize:], payload)
	return frame
}

// DecodeFrame returns the payload of a frame, rejecting frames whose declared
// length does not match.
func DecodeFrame(frame []byte) ([]byte, error) {
	if len(frame) < FrameHeaderSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrame, len(frame))
	}
	declared := binary.LittleEndian.Uint64(frame)
	if declared != uint64(len(frame)-FrameHeaderSize) {
		return nil, fmt.Errorf("%w: declared %d bytes, got %d", ErrFrame, declared, len(frame)-FrameHeaderSize)
	}
	return frame[FrameHeaderSize:], nil
}
