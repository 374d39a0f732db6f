package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os/exec"
	"strconv"
	"sync"
	"syscall"
)

// AdapterProcess drives an external cec-client bound to one logical and one
// physical address. The read side of the process belongs to whoever consumes
// the stream returned by Start (the monitor); the write side stays here.
type AdapterProcess struct {
	binary   string
	device   string
	logical  LogicalAddress
	physical PhysicalAddress

	mu      sync.Mutex
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	stopped bool
}

func NewAdapterProcess(cfg *Config, logical LogicalAddress, physical PhysicalAddress) *AdapterProcess {
	return &AdapterProcess{
		binary:   cfg.ClientBinary,
		device:   cfg.AdapterDevice,
		logical:  logical,
		physical: physical,
	}
}

// Start spawns the adapter and returns its traffic output stream. The
// returned error is always a *StartError.
func (p *AdapterProcess) Start(ctx context.Context) (io.ReadCloser, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cmd != nil {
		return nil, &StartError{Failure: StartUnknown, Binary: p.binary, Err: fmt.Errorf("already started")}
	}

	args := []string{
		"-t", p.logical.DeviceTypeFlag(),
		"-p", strconv.Itoa(p.physical.Port()),
		"-d", "8", // traffic-level logging, required for frame observation
	}
	if p.device != "" {
		args = append(args, p.device)
	}

	cmd := exec.CommandContext(ctx, p.binary, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, &StartError{Failure: StartUnknown, Binary: p.binary, Err: err}
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &StartError{Failure: StartUnknown, Binary: p.binary, Err: err}
	}
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		return nil, &StartError{Failure: classifyStartError(err), Binary: p.binary, Err: err}
	}

	p.cmd = cmd
	p.stdin = stdin
	p.stopped = false
	slog.Info("CEC adapter started",
		"binary", p.binary,
		"logical", p.logical,
		"physical", p.physical.String(),
		"pid", cmd.Process.Pid)
	return stdout, nil
}

func classifyStartError(err error) StartFailure {
	switch {
	case errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist):
		return StartBinaryMissing
	case errors.Is(err, fs.ErrPermission):
		return StartPermissionDenied
	case errors.Is(err, syscall.EBUSY):
		return StartPortBusy
	default:
		return StartUnknown
	}
}

// SendRaw writes an encoded frame to the adapter's console as a transmit
// command.
func (p *AdapterProcess) SendRaw(frame string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stdin == nil || p.stopped {
		return &SendError{Frame: frame, Err: ErrAdapterStopped}
	}
	if _, err := fmt.Fprintf(p.stdin, "tx %s\n", frame); err != nil {
		return &SendError{Frame: frame, Err: err}
	}
	slog.Debug("Frame sent to adapter", "frame", frame)
	return nil
}

// Stop terminates the adapter process. Safe to call twice; the second call
// is a no-op.
func (p *AdapterProcess) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cmd == nil || p.stopped {
		return nil
	}
	p.stopped = true

	p.stdin.Close()
	if err := p.cmd.Process.Kill(); err != nil {
		slog.Warn("Failed to kill adapter process", "error", err)
	}
	// Reap the child; the exit status of a killed adapter is not an error.
	if err := p.cmd.Wait(); err != nil {
		slog.Debug("Adapter process exited", "error", err)
	}
	slog.Info("CEC adapter stopped", "binary", p.binary)
	return nil
}
