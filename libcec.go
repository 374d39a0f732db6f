package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/claes/cec"
)

// LibcecAdapter talks to the bus through the libcec binding instead of a
// cec-client subprocess, for hosts where the binding is available. Raw
// traffic lines from the library's message channel are bridged onto a pipe
// so the monitor consumes both backends identically.
type LibcecAdapter struct {
	device string
	name   string
	opener func(string, string) (*cec.Connection, error)

	mu      sync.Mutex
	conn    *cec.Connection
	pw      *io.PipeWriter
	stopped bool
}

func NewLibcecAdapter(device, name string) *LibcecAdapter {
	return &LibcecAdapter{device: device, name: name, opener: cec.Open}
}

func (a *LibcecAdapter) Start(ctx context.Context) (io.ReadCloser, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.conn != nil {
		return nil, &StartError{Failure: StartUnknown, Binary: "libcec", Err: fmt.Errorf("already started")}
	}

	conn, err := a.opener(a.device, a.name)
	if err != nil {
		return nil, &StartError{Failure: StartUnknown, Binary: "libcec", Err: err}
	}

	messages := make(chan string, 64)
	conn.Messages = messages

	pr, pw := io.Pipe()
	go func() {
		for {
			select {
			case line, ok := <-messages:
				if !ok {
					pw.Close()
					return
				}
				if _, err := fmt.Fprintln(pw, line); err != nil {
					// Reader side is gone; drop the rest.
					return
				}
			case <-ctx.Done():
				pw.Close()
				return
			}
		}
	}()

	a.conn = conn
	a.pw = pw
	a.stopped = false
	slog.Info("libcec adapter opened", "device", a.device, "name", a.name)
	return pr, nil
}

func (a *LibcecAdapter) SendRaw(frame string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.conn == nil || a.stopped {
		return &SendError{Frame: frame, Err: ErrAdapterStopped}
	}
	a.conn.Transmit(frame)
	slog.Debug("Frame sent via libcec", "frame", frame)
	return nil
}

func (a *LibcecAdapter) Stop() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.conn == nil || a.stopped {
		return nil
	}
	a.stopped = true
	a.conn.Close()
	a.pw.Close()
	slog.Info("libcec adapter closed", "device", a.device)
	return nil
}
