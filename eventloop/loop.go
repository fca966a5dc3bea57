package eventloop

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joeycumines/logiface"
)

// loopIDCounter is used to generate unique loop IDs.
var loopIDCounter atomic.Uint64

// completion is the result of a submitted op, waiting to be dispatched on the
// loop goroutine.
type completion struct {
	done func(err error)
	err  error
}

// Loop is a single-goroutine event loop, see the package documentation.
type Loop struct {
	logger *logiface.Logger[logiface.Event]
	now    func() time.Time

	// sem bounds the number of ops running concurrently
	sem chan struct{}
	// wake is signalled (non-blocking) whenever ready grows
	wake chan struct{}

	timers timerHeap

	mu    sync.Mutex
	ready []completion

	wg sync.WaitGroup

	state atomic.Uint64

	id      uint64
	seq     uint64
	timerID uint64
	pending int

	dispatching bool
}

// New creates a new event loop with the given options.
func New(opts ...LoopOption) (*Loop, error) {
	cfg, err := resolveLoopOptions(opts)
	if err != nil {
		return nil, err
	}
	l := &Loop{
		logger: cfg.logger,
		now:    cfg.now,
		sem:    make(chan struct{}, cfg.workers),
		wake:   make(chan struct{}, 1),
		id:     loopIDCounter.Add(1),
	}
	l.state.Store(uint64(StateAwake))
	return l, nil
}

// ID returns a process-unique identifier for the loop, as used in log output.
func (l *Loop) ID() uint64 {
	return l.id
}

// State returns the current state of the loop. Safe to call from any
// goroutine.
func (l *Loop) State() LoopState {
	return LoopState(l.state.Load())
}

// Alive reports whether the loop has any armed timers or pending requests.
func (l *Loop) Alive() bool {
	return len(l.timers) > 0 || l.pending > 0
}

// Pending returns the number of submitted requests whose completion has not
// yet been dispatched.
func (l *Loop) Pending() int {
	return l.pending
}

func (l *Loop) closed() bool {
	s := l.State()
	return s == StateTerminating || s == StateTerminated
}

// Submit runs op on the worker pool, then calls done with its result on the
// loop goroutine, during a subsequent RunOnce. A panicking op is reported to
// done as a [PanicError].
//
// If Submit returns an error, neither op nor done will be called.
func (l *Loop) Submit(op func() error, done func(err error)) error {
	if op == nil || done == nil {
		return ErrNilCallback
	}
	if l.closed() {
		return ErrLoopTerminated
	}
	l.pending++
	l.wg.Add(1)
	go l.worker(op, done)
	return nil
}

func (l *Loop) worker(op func() error, done func(err error)) {
	defer l.wg.Done()
	l.sem <- struct{}{}
	err := runOp(op)
	<-l.sem
	l.mu.Lock()
	l.ready = append(l.ready, completion{done: done, err: err})
	l.mu.Unlock()
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

func runOp(op func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = PanicError{Value: r}
		}
	}()
	return op()
}

// RunOnce runs a single iteration of the loop, blocking if there is nothing
// ready but the loop is still alive. It returns [Loop.Alive], or false if the
// loop has been closed.
//
// RunOnce panics with [ErrReentrantRun] if called from a loop callback.
func (l *Loop) RunOnce() bool {
	return l.runOnce(context.Background())
}

// RunOnceContext is RunOnce, but stops waiting once ctx is done.
func (l *Loop) RunOnceContext(ctx context.Context) bool {
	return l.runOnce(ctx)
}

// Run calls RunOnce until the loop is no longer alive, or ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	if l.dispatching {
		return ErrReentrantRun
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !l.runOnce(ctx) {
			if l.closed() {
				return ErrLoopTerminated
			}
			return nil
		}
	}
}

func (l *Loop) runOnce(ctx context.Context) bool {
	if l.closed() {
		return false
	}
	if l.dispatching {
		panic(ErrReentrantRun)
	}
	l.dispatching = true
	l.state.Store(uint64(StateRunning))
	defer func() {
		l.dispatching = false
		l.state.CompareAndSwap(uint64(StateRunning), uint64(StateAwake))
	}()

	ran := l.runTimers()
	ran += l.runCompletions()
	if ran == 0 && l.Alive() && !l.closed() {
		l.sleep(ctx)
		if l.closed() {
			return false
		}
		l.runTimers()
		l.runCompletions()
	}

	if l.closed() {
		return false
	}
	return l.Alive()
}

// sleep blocks until the next timer is due, a completion arrives, or ctx is
// done.
func (l *Loop) sleep(ctx context.Context) {
	l.mu.Lock()
	hasReady := len(l.ready) > 0
	l.mu.Unlock()
	if hasReady {
		return
	}

	l.state.Store(uint64(StateSleeping))
	defer l.state.CompareAndSwap(uint64(StateSleeping), uint64(StateRunning))

	l.logDebug("sleeping")

	var timeout <-chan time.Time
	if len(l.timers) > 0 {
		d := l.timers[0].when.Sub(l.now())
		if d <= 0 {
			return
		}
		t := time.NewTimer(d)
		defer t.Stop()
		timeout = t.C
	}

	select {
	case <-l.wake:
	case <-timeout:
	case <-ctx.Done():
	}
}

// runTimers fires every due timer. Timers (re)started by a callback during
// this pass are not fired until the next pass.
func (l *Loop) runTimers() int {
	var (
		now   = l.now()
		limit = l.seq
		ran   int
	)
	for len(l.timers) > 0 && !l.closed() {
		t := l.timers[0]
		if t.when.After(now) || t.seq > limit {
			break
		}
		l.removeTimer(t)
		if t.repeat > 0 {
			t.when = now.Add(t.repeat)
			l.pushTimer(t)
		}
		l.logTimer("timer fired", t)
		ran++
		l.safeExecute(t.cb)
	}
	return ran
}

func (l *Loop) runCompletions() int {
	l.mu.Lock()
	ready := l.ready
	l.ready = nil
	l.mu.Unlock()

	for i, c := range ready {
		if l.closed() {
			// dropped, Close already zeroed pending
			return i
		}
		l.pending--
		var panicErr PanicError
		if errors.As(c.err, &panicErr) {
			l.logError("eventloop: op panicked", c.err)
		}
		l.safeExecute(func() { c.done(c.err) })
	}
	return len(ready)
}

// safeExecute runs fn, logging any panic before propagating it. A panic on
// the loop goroutine is fatal.
func (l *Loop) safeExecute(fn func()) {
	if fn == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			l.logCritical("eventloop: callback panicked", panicValueError(r))
			panic(r)
		}
	}()
	fn()
}

// Close disarms every timer, waits for in-flight ops to finish, and discards
// their completions. Subsequent calls return [ErrLoopTerminated].
func (l *Loop) Close() error {
	if !l.state.CompareAndSwap(uint64(StateAwake), uint64(StateTerminating)) &&
		!l.state.CompareAndSwap(uint64(StateRunning), uint64(StateTerminating)) &&
		!l.state.CompareAndSwap(uint64(StateSleeping), uint64(StateTerminating)) {
		return ErrLoopTerminated
	}

	for len(l.timers) > 0 {
		t := l.timers[0]
		l.removeTimer(t)
		t.state = TimerIdle
	}

	l.wg.Wait()

	l.mu.Lock()
	if n := len(l.ready); n != 0 {
		l.logDebug("discarding completions")
	}
	for _, c := range l.ready {
		if c.err != nil {
			l.logError("eventloop: discarded failed op", c.err)
		}
	}
	l.ready = nil
	l.mu.Unlock()
	l.pending = 0

	l.state.Store(uint64(StateTerminated))
	return nil
}
