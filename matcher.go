package harness

import (
	"context"
	"time"
)

// Predicate decides whether an observed frame satisfies an expectation.
type Predicate func(Message) bool

// OpcodePredicate matches any frame carrying the given opcode.
func OpcodePredicate(op Opcode) Predicate {
	return func(m Message) bool { return m.Opcode == op }
}

// ExpectationMatcher is a single-use wait over the bus log: it scans the
// frames already recorded past its cursor, then blocks until the monitor
// appends a match or the deadline passes. Construct a fresh matcher per
// check; matchers never share state.
type ExpectationMatcher struct {
	log    *busLog
	cursor int
}

func newMatcher(log *busLog, cursor int) *ExpectationMatcher {
	return &ExpectationMatcher{log: log, cursor: cursor}
}

// Await returns the first frame at or past the cursor satisfying pred,
// in exact arrival order. On deadline it returns a *TimeoutError carrying
// the number of frames examined; want labels the expectation in that error.
func (x *ExpectationMatcher) Await(ctx context.Context, pred Predicate, want string, timeout time.Duration) (Message, error) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	cursor := x.cursor
	seen := 0
	for {
		frames, updated := x.log.from(cursor)
		for _, m := range frames {
			seen++
			if pred(m) {
				return m, nil
			}
		}
		cursor += len(frames)

		select {
		case <-updated:
		case <-deadline.C:
			return Message{}, &TimeoutError{Want: want, Timeout: timeout, FramesSeen: seen}
		case <-ctx.Done():
			return Message{}, ctx.Err()
		}
	}
}
