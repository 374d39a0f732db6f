package harness

import (
	"context"
	"io"
	"time"
)

// Adapter abstracts the CEC adapter backend so tests can substitute a fake.
// Start exposes the adapter's traffic output as a line stream; SendRaw takes
// a frame in the codec's wire form. Stop must be idempotent.
type Adapter interface {
	Start(ctx context.Context) (io.ReadCloser, error)
	SendRaw(frame string) error
	Stop() error
}

// RecordSink receives every frame the monitor appends. Sink failures are
// logged, never propagated into the monitor loop.
type RecordSink interface {
	Record(m Message) error
}

// DeviceController abstracts control of the device under test. The harness
// never issues device commands itself; tests drive stimuli through this and
// the harness only consumes readiness.
type DeviceController interface {
	Reboot(ctx context.Context) error
	WaitForReady(ctx context.Context, timeout time.Duration) error
	SendKeyEvent(ctx context.Context, keycode int) error
	HasHdmiCec(ctx context.Context) (bool, error)
}
