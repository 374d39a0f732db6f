package harness

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrAlreadyRunning is returned by Init on a harness that is already running.
	ErrAlreadyRunning = errors.New("harness already running")
	// ErrNotRunning is returned when a bus operation is attempted outside the
	// Running state.
	ErrNotRunning = errors.New("harness not running")
	// ErrAdapterStopped is returned when writing to an adapter that has been
	// stopped.
	ErrAdapterStopped = errors.New("adapter stopped")
)

// StartFailure classifies why the adapter could not be started.
type StartFailure int

const (
	StartUnknown StartFailure = iota
	StartBinaryMissing
	StartPortBusy
	StartPermissionDenied
)

func (f StartFailure) String() string {
	switch f {
	case StartBinaryMissing:
		return "adapter binary missing"
	case StartPortBusy:
		return "adapter port busy"
	case StartPermissionDenied:
		return "permission denied"
	default:
		return "adapter start failed"
	}
}

// StartError is fatal to the session: the adapter never came up.
type StartError struct {
	Failure StartFailure
	Binary  string
	Err     error
}

func (e *StartError) Error() string {
	return fmt.Sprintf("%s (%s): %v", e.Failure, e.Binary, e.Err)
}

func (e *StartError) Unwrap() error { return e.Err }

// DecodeError marks an adapter output line that carried no parseable frame.
// The monitor logs and skips these; they are never fatal.
type DecodeError struct {
	Line   string
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("malformed cec line %q: %s", e.Line, e.Reason)
}

// SendError reports a failed write to the adapter. The session stays usable.
type SendError struct {
	Frame string
	Err   error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("failed to send frame %q: %v", e.Frame, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

// TimeoutError is the primary compliance failure signal: the expected frame
// never showed up. FramesSeen counts the frames examined during the wait so
// a failure report can tell a silent bus from a busy one.
type TimeoutError struct {
	Want       string
	Timeout    time.Duration
	FramesSeen int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("no %s frame within %v (%d frames observed)", e.Want, e.Timeout, e.FramesSeen)
}
