package eventloop

import (
	"fmt"
)

// logCritical reports a panic escaping a callback on the loop goroutine.
// The logger itself may panic; that must not mask the original failure.
func (l *Loop) logCritical(msg string, err error) {
	if l.logger == nil {
		return
	}
	defer func() { _ = recover() }()
	l.logger.Crit().
		Uint64("loop_id", l.id).
		Err(err).
		Log(msg)
}

// logError reports an op that panicked, or whose failure was discarded by
// Close.
func (l *Loop) logError(msg string, err error) {
	if l.logger == nil {
		return
	}
	defer func() { _ = recover() }()
	l.logger.Err().
		Uint64("loop_id", l.id).
		Err(err).
		Log(msg)
}

func (l *Loop) logDebug(msg string) {
	if l.logger == nil {
		return
	}
	l.logger.Debug().
		Uint64("loop_id", l.id).
		Int("timers", len(l.timers)).
		Int("pending", l.pending).
		Log(msg)
}

func (l *Loop) logTimer(msg string, t *Timer) {
	if l.logger == nil {
		return
	}
	l.logger.Trace().
		Uint64("loop_id", l.id).
		Uint64("timer_id", t.id).
		Dur("timeout", t.timeout).
		Dur("repeat", t.repeat).
		Log(msg)
}

// panicValueError converts a recovered value into an error, for logging.
func panicValueError(r any) error {
	if err, ok := r.(error); ok {
		return err
	}
	return fmt.Errorf("%v", r)
}
