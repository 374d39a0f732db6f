package harness

import (
	"errors"
	"fmt"
	"time"

	"github.com/beeker1121/goque"
	"github.com/fxamacker/cbor/v2"
)

// TrafficRecorder persists observed frames to an on-disk FIFO so a session's
// traffic survives the harness process for post-mortem inspection or replay.
// The in-memory bus log stays session-scoped; the recorder is a separate,
// optional sink.
type TrafficRecorder struct {
	q   *goque.Queue
	dir string
}

type recordedFrame struct {
	Source      uint8     `cbor:"1,keyasint"`
	Destination uint8     `cbor:"2,keyasint"`
	Opcode      uint8     `cbor:"3,keyasint"`
	Params      []byte    `cbor:"4,keyasint,omitempty"`
	At          time.Time `cbor:"5,keyasint"`
}

func OpenRecorder(dir string) (*TrafficRecorder, error) {
	q, err := goque.OpenQueue(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open traffic record queue: %w", err)
	}
	return &TrafficRecorder{q: q, dir: dir}, nil
}

func (r *TrafficRecorder) Record(m Message) error {
	data, err := cbor.Marshal(recordedFrame{
		Source:      uint8(m.Source),
		Destination: uint8(m.Destination),
		Opcode:      uint8(m.Opcode),
		Params:      m.Params,
		At:          m.At,
	})
	if err != nil {
		return fmt.Errorf("failed to encode frame: %w", err)
	}
	if _, err := r.q.Enqueue(data); err != nil {
		return fmt.Errorf("failed to enqueue frame: %w", err)
	}
	return nil
}

// Replay dequeues every recorded frame in arrival order, passing each to fn.
// Frames are consumed; a second Replay over the same queue yields nothing.
func (r *TrafficRecorder) Replay(fn func(Message) error) error {
	for {
		item, err := r.q.Dequeue()
		if errors.Is(err, goque.ErrEmpty) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to dequeue frame: %w", err)
		}

		var rec recordedFrame
		if err := cbor.Unmarshal(item.Value, &rec); err != nil {
			return fmt.Errorf("failed to decode recorded frame: %w", err)
		}
		m := Message{
			Source:      LogicalAddress(rec.Source),
			Destination: LogicalAddress(rec.Destination),
			Opcode:      Opcode(rec.Opcode),
			Params:      rec.Params,
			At:          rec.At,
		}
		if err := fn(m); err != nil {
			return err
		}
	}
}

// Drain collects all recorded frames, consuming them.
func (r *TrafficRecorder) Drain() ([]Message, error) {
	var frames []Message
	err := r.Replay(func(m Message) error {
		frames = append(frames, m)
		return nil
	})
	return frames, err
}

func (r *TrafficRecorder) Dir() string { return r.dir }

func (r *TrafficRecorder) Close() error {
	return r.q.Close()
}
