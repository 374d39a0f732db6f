// Package harness drives a CEC adapter bound to a device under test,
// observing and injecting bus traffic so compliance tests can block until an
// expected message appears.
package harness

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// State tracks the session lifecycle. Terminated is absorbing: a finished
// harness is never restarted, a new test builds a new one.
type State int

const (
	StateUninitialized State = iota
	StateRunning
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateRunning:
		return "running"
	case StateTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// CecTestHarness owns one adapter session: the adapter bound to a logical
// and physical address, the monitor draining it, and the optional traffic
// recorder. One harness per test execution; session state never leaks
// between tests.
type CecTestHarness struct {
	cfg      *Config
	codec    *Codec
	adapter  Adapter
	logical  LogicalAddress
	physical PhysicalAddress

	mu       sync.Mutex
	state    State
	monitor  *BusMonitor
	recorder *TrafficRecorder
}

// NewHarness builds a harness for the given bound addresses using the
// adapter backend named in the configuration.
func NewHarness(cfg *Config, logical LogicalAddress, physical PhysicalAddress) (*CecTestHarness, error) {
	codec, err := NewCodec(cfg.TrafficPattern)
	if err != nil {
		return nil, err
	}

	var adapter Adapter
	switch cfg.Backend {
	case BackendLibcec:
		adapter = NewLibcecAdapter(cfg.AdapterDevice, cfg.DeviceName)
	case BackendCecClient, "":
		adapter = NewAdapterProcess(cfg, logical, physical)
	default:
		return nil, fmt.Errorf("unknown adapter backend %q", cfg.Backend)
	}

	return newHarnessWithAdapter(cfg, codec, adapter, logical, physical), nil
}

// NewHarnessWithAdapter wires an explicit adapter, used by tests and by
// callers that manage their own backend.
func NewHarnessWithAdapter(cfg *Config, adapter Adapter, logical LogicalAddress, physical PhysicalAddress) (*CecTestHarness, error) {
	codec, err := NewCodec(cfg.TrafficPattern)
	if err != nil {
		return nil, err
	}
	return newHarnessWithAdapter(cfg, codec, adapter, logical, physical), nil
}

func newHarnessWithAdapter(cfg *Config, codec *Codec, adapter Adapter, logical LogicalAddress, physical PhysicalAddress) *CecTestHarness {
	return &CecTestHarness{
		cfg:      cfg,
		codec:    codec,
		adapter:  adapter,
		logical:  logical,
		physical: physical,
	}
}

// Init starts the adapter and the bus monitor. Calling Init on a running or
// terminated harness fails with ErrAlreadyRunning / ErrNotRunning.
func (h *CecTestHarness) Init(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	switch h.state {
	case StateRunning:
		return ErrAlreadyRunning
	case StateTerminated:
		return ErrNotRunning
	}

	stream, err := h.adapter.Start(ctx)
	if err != nil {
		return err
	}

	var sink RecordSink
	if h.cfg.RecordDir != "" {
		rec, err := OpenRecorder(h.cfg.RecordDir)
		if err != nil {
			// Recording is diagnostics, not a session requirement.
			slog.Warn("Traffic recording disabled", "dir", h.cfg.RecordDir, "error", err)
		} else {
			h.recorder = rec
			sink = rec
		}
	}

	h.monitor = NewBusMonitor(stream, h.codec, sink)
	h.state = StateRunning
	slog.Info("CEC harness session started", "logical", h.logical, "physical", h.physical.String())
	return nil
}

// SendMessage encodes a frame and writes it to the adapter, simulating a
// peer device on the bus.
func (h *CecTestHarness) SendMessage(m Message) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state != StateRunning {
		return ErrNotRunning
	}
	return h.adapter.SendRaw(h.codec.Encode(m))
}

// CheckExpectedOutput blocks until a frame with the given opcode is observed
// on the bus, scanning from the start of the session first. timeout <= 0
// uses the configured default. On timeout the returned error is a
// *TimeoutError.
func (h *CecTestHarness) CheckExpectedOutput(ctx context.Context, op Opcode, timeout time.Duration) (Message, error) {
	return h.Expect(ctx, OpcodePredicate(op), op.String(), timeout)
}

// Expect is the predicate-level form of CheckExpectedOutput, for checks that
// also constrain parameters.
func (h *CecTestHarness) Expect(ctx context.Context, pred Predicate, want string, timeout time.Duration) (Message, error) {
	h.mu.Lock()
	if h.state != StateRunning {
		h.mu.Unlock()
		return Message{}, ErrNotRunning
	}
	log := h.monitor.log
	if timeout <= 0 {
		timeout = h.cfg.DefaultTimeout
	}
	h.mu.Unlock()

	// Fresh matcher per check, cursor at start of session: sequential checks
	// may match frames in any arrival order relative to the calls.
	return newMatcher(log, 0).Await(ctx, pred, want, timeout)
}

// Follow streams every observed frame to fn in arrival order, starting from
// the beginning of the session, until ctx is done. Used for interactive
// monitoring; compliance checks go through Expect.
func (h *CecTestHarness) Follow(ctx context.Context, fn func(Message)) error {
	h.mu.Lock()
	if h.state != StateRunning {
		h.mu.Unlock()
		return ErrNotRunning
	}
	log := h.monitor.log
	h.mu.Unlock()

	cursor := 0
	for {
		frames, updated := log.from(cursor)
		for _, m := range frames {
			fn(m)
		}
		cursor += len(frames)
		select {
		case <-updated:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// SourceFromMessage extracts the claimed sender address of an observed frame.
func (h *CecTestHarness) SourceFromMessage(m Message) LogicalAddress {
	return m.Source
}

// Snapshot returns all frames observed so far, or nil before Init.
func (h *CecTestHarness) Snapshot() []Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.monitor == nil {
		return nil
	}
	return h.monitor.Snapshot()
}

// KillCecProcess tears the session down: monitor first, then the adapter,
// then the recorder. Safe after partial initialization, safe to call twice,
// and never fails; teardown problems are logged. The caller must sequence
// this after any pending Expect has returned.
func (h *CecTestHarness) KillCecProcess() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state == StateTerminated {
		return
	}
	h.state = StateTerminated

	if h.monitor != nil {
		if err := h.monitor.Close(); err != nil {
			slog.Warn("Failed to close bus monitor", "error", err)
		}
		h.monitor = nil
	}
	if err := h.adapter.Stop(); err != nil {
		slog.Warn("Failed to stop adapter", "error", err)
	}
	if h.recorder != nil {
		if err := h.recorder.Close(); err != nil {
			slog.Warn("Failed to close traffic recorder", "error", err)
		}
		h.recorder = nil
	}
	slog.Info("CEC harness session terminated")
}

// State reports the current session state.
func (h *CecTestHarness) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}
