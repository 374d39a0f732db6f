package harness

import (
	"bufio"
	"io"
	"log/slog"
	"sync"
	"time"
)

// busLog is the append-only record of every frame observed on the bus during
// one session. The monitor is its only writer; matchers read snapshots and
// block on the updated channel, which is closed and replaced on each append
// so no wakeup is ever missed.
type busLog struct {
	mu        sync.Mutex
	frames    []Message
	updated   chan struct{}
	malformed int
}

func newBusLog() *busLog {
	return &busLog{updated: make(chan struct{})}
}

func (l *busLog) append(m Message) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.frames = append(l.frames, m)
	close(l.updated)
	l.updated = make(chan struct{})
}

func (l *busLog) countMalformed() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.malformed++
}

// from returns a copy of the frames at or past cursor, plus the channel that
// closes on the next append.
func (l *busLog) from(cursor int) ([]Message, <-chan struct{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if cursor > len(l.frames) {
		cursor = len(l.frames)
	}
	tail := make([]Message, len(l.frames)-cursor)
	copy(tail, l.frames[cursor:])
	return tail, l.updated
}

func (l *busLog) stats() (frames, malformed int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.frames), l.malformed
}

// BusMonitor drains the adapter's output stream on its own goroutine,
// decoding each line and appending frames to the bus log in arrival order.
// Exactly one monitor runs per session.
type BusMonitor struct {
	log    *busLog
	stream io.ReadCloser
	sink   RecordSink

	done      chan struct{}
	closeOnce sync.Once
}

// NewBusMonitor starts the read loop immediately. sink may be nil.
func NewBusMonitor(stream io.ReadCloser, codec *Codec, sink RecordSink) *BusMonitor {
	m := &BusMonitor{
		log:    newBusLog(),
		stream: stream,
		sink:   sink,
		done:   make(chan struct{}),
	}
	go m.run(codec)
	return m
}

func (m *BusMonitor) run(codec *Codec) {
	defer close(m.done)
	scanner := bufio.NewScanner(m.stream)
	for scanner.Scan() {
		line := scanner.Text()
		msg, err := codec.Decode(line)
		if err != nil {
			// Adapter noise is expected; count it and move on.
			m.log.countMalformed()
			slog.Debug("Skipping unparseable adapter line", "line", line)
			continue
		}
		msg.At = time.Now()
		// Record before publishing: once a frame is visible in the log, the
		// sink has already seen it.
		if m.sink != nil {
			if err := m.sink.Record(msg); err != nil {
				slog.Warn("Failed to record frame", "error", err)
			}
		}
		m.log.append(msg)
		slog.Debug("Frame observed", "frame", msg.String())
	}
	if err := scanner.Err(); err != nil {
		slog.Debug("Adapter stream closed", "error", err)
	}
}

// Snapshot returns the frames observed so far without blocking.
func (m *BusMonitor) Snapshot() []Message {
	frames, _ := m.log.from(0)
	return frames
}

// MalformedLines reports how many adapter lines were skipped as noise.
func (m *BusMonitor) MalformedLines() int {
	_, malformed := m.log.stats()
	return malformed
}

// Close releases the stream and waits for the read loop to finish. It does
// not stop the adapter process; that belongs to the adapter's owner.
func (m *BusMonitor) Close() error {
	var err error
	m.closeOnce.Do(func() {
		err = m.stream.Close()
		<-m.done
	})
	return err
}
