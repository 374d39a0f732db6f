package harness

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"syscall"
	"testing"
)

// writeFakeClient drops a stand-in cec-client that emits canned traffic and
// then sits on stdin like the real binary's interactive console.
func writeFakeClient(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cec-client")
	script := "#!/bin/sh\n" + body + "\ncat >/dev/null\n"
	if err := os.WriteFile(path, []byte(script), 0755); err != nil {
		t.Fatalf("Failed to write fake cec-client: %v", err)
	}
	return path
}

func TestAdapterProcess_StartAndObserve(t *testing.T) {
	binary := writeFakeClient(t, `echo "TRAFFIC: [   100]	>> 4f:84:10:00:04"`)
	cfg := &Config{ClientBinary: binary}
	p := NewAdapterProcess(cfg, AddrPlayback1, PhysicalAddress(0x1000))
	defer p.Stop()

	stream, err := p.Start(context.Background())
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	m := NewBusMonitor(stream, mustCodec(t), nil)
	defer m.Close()

	frames := waitForFrames(t, m, 1)
	if frames[0].Opcode != OpReportPhysicalAddress {
		t.Errorf("Expected REPORT_PHYSICAL_ADDRESS from fake client, got %s", frames[0].Opcode)
	}
	if frames[0].Source != AddrPlayback1 {
		t.Errorf("Expected source %s, got %s", AddrPlayback1, frames[0].Source)
	}
}

func TestAdapterProcess_StartBinaryMissing(t *testing.T) {
	cfg := &Config{ClientBinary: filepath.Join(t.TempDir(), "no-such-binary")}
	p := NewAdapterProcess(cfg, AddrPlayback1, PhysicalAddress(0x1000))

	_, err := p.Start(context.Background())
	var startErr *StartError
	if !errors.As(err, &startErr) {
		t.Fatalf("Expected *StartError, got %v", err)
	}
	if startErr.Failure != StartBinaryMissing {
		t.Errorf("Expected StartBinaryMissing, got %v", startErr.Failure)
	}
}

func TestAdapterProcess_StartPermissionDenied(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cec-client")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}
	cfg := &Config{ClientBinary: path}
	p := NewAdapterProcess(cfg, AddrPlayback1, PhysicalAddress(0x1000))

	_, err := p.Start(context.Background())
	var startErr *StartError
	if !errors.As(err, &startErr) {
		t.Fatalf("Expected *StartError, got %v", err)
	}
	if startErr.Failure != StartPermissionDenied {
		t.Errorf("Expected StartPermissionDenied, got %v", startErr.Failure)
	}
}

func TestAdapterProcess_SendBeforeStart(t *testing.T) {
	cfg := &Config{ClientBinary: "cec-client"}
	p := NewAdapterProcess(cfg, AddrPlayback1, PhysicalAddress(0x1000))

	err := p.SendRaw("40:04")
	var sendErr *SendError
	if !errors.As(err, &sendErr) {
		t.Fatalf("Expected *SendError, got %v", err)
	}
	if !errors.Is(err, ErrAdapterStopped) {
		t.Errorf("Expected ErrAdapterStopped cause, got %v", sendErr.Err)
	}
}

func TestAdapterProcess_SendRaw(t *testing.T) {
	binary := writeFakeClient(t, "")
	cfg := &Config{ClientBinary: binary}
	p := NewAdapterProcess(cfg, AddrPlayback1, PhysicalAddress(0x1000))
	defer p.Stop()

	stream, err := p.Start(context.Background())
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer stream.Close()

	if err := p.SendRaw("40:8f"); err != nil {
		t.Errorf("SendRaw failed: %v", err)
	}
}

func TestAdapterProcess_StopIdempotent(t *testing.T) {
	binary := writeFakeClient(t, "")
	cfg := &Config{ClientBinary: binary}
	p := NewAdapterProcess(cfg, AddrPlayback1, PhysicalAddress(0x1000))

	// Stop before start is a no-op.
	if err := p.Stop(); err != nil {
		t.Errorf("Stop before start returned error: %v", err)
	}

	if _, err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := p.Stop(); err != nil {
		t.Errorf("Stop returned error: %v", err)
	}
	if err := p.Stop(); err != nil {
		t.Errorf("Second Stop returned error: %v", err)
	}

	// The session is over; further sends must fail cleanly.
	if err := p.SendRaw("40:04"); !errors.Is(err, ErrAdapterStopped) {
		t.Errorf("Expected ErrAdapterStopped after Stop, got %v", err)
	}
}

func TestAdapterProcess_StartTwice(t *testing.T) {
	binary := writeFakeClient(t, "")
	cfg := &Config{ClientBinary: binary}
	p := NewAdapterProcess(cfg, AddrPlayback1, PhysicalAddress(0x1000))
	defer p.Stop()

	if _, err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if _, err := p.Start(context.Background()); err == nil {
		t.Error("Expected error on second Start")
	}
}

func TestClassifyStartError_PortBusy(t *testing.T) {
	err := &os.PathError{Op: "open", Path: "/dev/ttyACM0", Err: syscall.EBUSY}
	if got := classifyStartError(err); got != StartPortBusy {
		t.Errorf("Expected StartPortBusy, got %v", got)
	}
}
