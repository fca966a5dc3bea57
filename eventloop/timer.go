package eventloop

import (
	"container/heap"
	"time"
)

// Timer is a durable timer handle, owned by a [Loop]. It may be started,
// stopped, and restarted any number of times, until closed.
type Timer struct {
	loop    *Loop
	cb      func()
	when    time.Time
	timeout time.Duration
	repeat  time.Duration
	id      uint64
	seq     uint64
	index   int
	state   TimerState
}

// NewTimer creates a new idle timer on the loop.
func (l *Loop) NewTimer() *Timer {
	l.timerID++
	return &Timer{
		loop:  l,
		id:    l.timerID,
		index: -1,
	}
}

// Start arms the timer to call cb after timeout, then every repeat if repeat
// is non-zero. Starting an armed timer reschedules it.
//
// A timeout of zero fires on the next RunOnce.
func (t *Timer) Start(timeout, repeat time.Duration, cb func()) error {
	switch {
	case t.state == TimerClosed:
		return ErrTimerClosed
	case t.loop.closed():
		return ErrLoopTerminated
	case cb == nil:
		return ErrNilCallback
	case timeout < 0 || repeat < 0:
		return &RangeError{Message: "eventloop: timer durations must not be negative"}
	}

	l := t.loop
	if t.index >= 0 {
		l.removeTimer(t)
	}
	t.cb = cb
	t.timeout = timeout
	t.repeat = repeat
	t.when = l.now().Add(timeout)
	l.pushTimer(t)
	l.logTimer("timer started", t)
	return nil
}

// Stop disarms the timer. Stopping an idle or closed timer is a no-op.
func (t *Timer) Stop() error {
	if t.index >= 0 {
		t.loop.removeTimer(t)
		t.loop.logTimer("timer stopped", t)
	}
	if t.state == TimerArmed {
		t.state = TimerIdle
	}
	return nil
}

// Close stops the timer and releases its callback. Closing is idempotent.
func (t *Timer) Close() {
	_ = t.Stop()
	t.cb = nil
	t.state = TimerClosed
}

// Active reports whether the timer is armed.
func (t *Timer) Active() bool {
	return t.state == TimerArmed
}

// State returns the arm state of the timer.
func (t *Timer) State() TimerState {
	return t.state
}

// Repeat returns the repeat interval the timer was last started with.
func (t *Timer) Repeat() time.Duration {
	return t.repeat
}

func (l *Loop) pushTimer(t *Timer) {
	l.seq++
	t.seq = l.seq
	t.state = TimerArmed
	heap.Push(&l.timers, t)
}

func (l *Loop) removeTimer(t *Timer) {
	if t.index < 0 {
		return
	}
	heap.Remove(&l.timers, t.index)
	if t.state == TimerArmed {
		t.state = TimerIdle
	}
}

// timerHeap is a min-heap of timers ordered by deadline, then start order.
type timerHeap []*Timer

func (h timerHeap) Len() int { return len(h) }

func (h timerHeap) Less(i, j int) bool {
	if h[i].when.Equal(h[j].when) {
		return h[i].seq < h[j].seq
	}
	return h[i].when.Before(h[j].when)
}

func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timerHeap) Push(x any) {
	t := x.(*Timer)
	t.index = len(*h)
	*h = append(*h, t)
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}
