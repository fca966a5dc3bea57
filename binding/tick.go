package binding

import (
	"errors"

	"github.com/dop251/goja"
)

// TickQueue is the FIFO of deferred callbacks scheduled during script
// execution.
type TickQueue struct {
	q []func()
}

// Enqueue schedules fn to run on the next drain.
func (q *TickQueue) Enqueue(fn func()) {
	if fn == nil {
		return
	}
	q.q = append(q.q, fn)
}

// Len returns the number of queued callbacks.
func (q *TickQueue) Len() int {
	return len(q.q)
}

// RunSnapshot runs the callbacks queued at the time of the call, and
// reports whether more were queued while they ran.
func (q *TickQueue) RunSnapshot() bool {
	snapshot := q.q
	q.q = nil
	for i, fn := range snapshot {
		snapshot[i] = nil
		fn()
	}
	return len(q.q) > 0
}

// Drain runs callbacks until the queue is empty, including callbacks
// queued by the callbacks themselves.
func (q *TickQueue) Drain() {
	for q.RunSnapshot() {
	}
}

// NextTick queues fn to be called with args on the next drain. The bridge
// holds its own references until then. An exception from fn is reported to
// the uncaught handler.
func (b *Bridge) NextTick(fn *Value, args ...*Value) {
	if !fn.IsFunction() {
		precondition("NextTick", "callback is %s, not a function", fn.Type())
	}
	fn = fn.Dup()
	held := make([]*Value, len(args))
	for i, arg := range args {
		held[i] = arg.Dup()
	}
	b.ticks.Enqueue(func() {
		defer func() {
			fn.Release()
			for _, arg := range held {
				arg.Release()
			}
		}()
		if b.fatal != nil {
			return
		}
		res, err := fn.Call(nil, held...)
		if err != nil {
			b.ReportUncaught(err)
			return
		}
		res.Release()
	})
}

// MakeCallback calls fn with the given receiver and arguments, then drains
// the deferred queue before returning, whether or not fn threw. It is the
// only entry point loop callbacks use to run script code.
//
// Once the runtime has been interrupted (see [Bridge.Fatal]), MakeCallback
// does nothing and returns the interrupt.
func (b *Bridge) MakeCallback(fn *Value, this *Value, args ...*Value) (*Value, error) {
	if b.fatal != nil {
		return nil, b.fatal
	}
	res, err := fn.Call(this, args...)
	if err != nil && b.setFatal(err) {
		return nil, err
	}
	b.ticks.Drain()
	if b.fatal != nil {
		if res != nil {
			res.Release()
		}
		return nil, b.fatal
	}
	return res, err
}

// SetUncaughtHandler replaces the handler for exceptions escaping
// callbacks. A nil handler makes any such exception fatal.
func (b *Bridge) SetUncaughtHandler(fn func(err error)) {
	b.uncaught = fn
}

// ReportUncaught routes an exception that escaped a callback to the
// uncaught handler. Interrupts are recorded as fatal instead.
func (b *Bridge) ReportUncaught(err error) {
	if err == nil || b.setFatal(err) {
		return
	}
	if b.logger != nil {
		b.logger.Warning().
			Err(err).
			Log("binding: uncaught exception")
	}
	if b.uncaught == nil {
		b.fatal = err
		return
	}
	b.uncaught(err)
}

// Fatal returns the error that stopped the runtime: an interrupt (for
// example from process exit), or an exception no handler accepted.
func (b *Bridge) Fatal() error {
	return b.fatal
}

// ClearFatal resets the fatal error, for reuse of the runtime.
func (b *Bridge) ClearFatal() {
	b.fatal = nil
}

func (b *Bridge) setFatal(err error) bool {
	var interrupted *goja.InterruptedError
	if !errors.As(err, &interrupted) {
		return false
	}
	if b.fatal == nil {
		b.fatal = err
	}
	return true
}
