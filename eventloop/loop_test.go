package eventloop

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLoop(t *testing.T, opts ...LoopOption) *Loop {
	t.Helper()
	loop, err := New(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = loop.Close() })
	return loop
}

func TestNew_InvalidWorkers(t *testing.T) {
	_, err := New(WithWorkers(0))
	var rangeErr *RangeError
	require.ErrorAs(t, err, &rangeErr)
}

func TestNew_NilOptionSkipped(t *testing.T) {
	loop, err := New(nil, WithWorkers(1))
	require.NoError(t, err)
	assert.Equal(t, StateAwake, loop.State())
	require.NoError(t, loop.Close())
}

func TestLoop_RunOnce_NotAliveReturnsImmediately(t *testing.T) {
	loop := newTestLoop(t)
	assert.False(t, loop.Alive())
	assert.False(t, loop.RunOnce())
}

func TestLoop_Submit_CompletionRunsOnLoop(t *testing.T) {
	loop := newTestLoop(t)
	sentinel := errors.New("boom")

	var (
		opRan   atomic.Bool
		results []error
	)
	require.NoError(t, loop.Submit(func() error {
		opRan.Store(true)
		return sentinel
	}, func(err error) {
		results = append(results, err)
	}))
	assert.True(t, loop.Alive())
	assert.Equal(t, 1, loop.Pending())

	require.NoError(t, loop.Run(context.Background()))

	assert.True(t, opRan.Load())
	require.Len(t, results, 1)
	assert.ErrorIs(t, results[0], sentinel)
	assert.Equal(t, 0, loop.Pending())
	assert.False(t, loop.Alive())
}

func TestLoop_Submit_PanicBecomesPanicError(t *testing.T) {
	loop := newTestLoop(t)
	var got error
	require.NoError(t, loop.Submit(func() error {
		panic("op exploded")
	}, func(err error) {
		got = err
	}))
	require.NoError(t, loop.Run(context.Background()))

	var panicErr PanicError
	require.ErrorAs(t, got, &panicErr)
	assert.Equal(t, "op exploded", panicErr.Value)
	assert.Nil(t, panicErr.Unwrap())
}

func TestLoop_Submit_NilCallbacks(t *testing.T) {
	loop := newTestLoop(t)
	assert.ErrorIs(t, loop.Submit(nil, func(error) {}), ErrNilCallback)
	assert.ErrorIs(t, loop.Submit(func() error { return nil }, nil), ErrNilCallback)
	assert.Equal(t, 0, loop.Pending())
}

func TestLoop_Submit_AfterClose(t *testing.T) {
	loop, err := New()
	require.NoError(t, err)
	require.NoError(t, loop.Close())
	assert.ErrorIs(t, loop.Submit(func() error { return nil }, func(error) {}), ErrLoopTerminated)
	assert.ErrorIs(t, loop.Close(), ErrLoopTerminated)
	assert.Equal(t, StateTerminated, loop.State())
	assert.False(t, loop.RunOnce())
}

func TestLoop_Submit_BoundedConcurrency(t *testing.T) {
	loop := newTestLoop(t, WithWorkers(2))

	var (
		running atomic.Int32
		peak    atomic.Int32
		done    int
	)
	for range 8 {
		require.NoError(t, loop.Submit(func() error {
			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			running.Add(-1)
			return nil
		}, func(error) {
			done++
		}))
	}

	require.NoError(t, loop.Run(context.Background()))
	assert.Equal(t, 8, done)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestLoop_Submit_FromCompletion(t *testing.T) {
	loop := newTestLoop(t)
	var order []string
	require.NoError(t, loop.Submit(func() error { return nil }, func(error) {
		order = append(order, "first")
		require.NoError(t, loop.Submit(func() error { return nil }, func(error) {
			order = append(order, "second")
		}))
	}))
	require.NoError(t, loop.Run(context.Background()))
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestLoop_Run_ContextCancelled(t *testing.T) {
	loop := newTestLoop(t)
	timer := loop.NewTimer()
	require.NoError(t, timer.Start(time.Hour, 0, func() {}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := loop.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, timer.Active())
}

func TestLoop_RunOnceContext_StopsWaiting(t *testing.T) {
	loop := newTestLoop(t)
	timer := loop.NewTimer()
	require.NoError(t, timer.Start(time.Hour, 0, func() {}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	assert.True(t, loop.RunOnceContext(ctx))
	assert.Less(t, time.Since(start), time.Minute)
	assert.True(t, timer.Active())
}

func TestLoop_Run_Reentrant(t *testing.T) {
	loop := newTestLoop(t)
	var (
		runErr    error
		recovered any
	)
	timer := loop.NewTimer()
	require.NoError(t, timer.Start(0, 0, func() {
		runErr = loop.Run(context.Background())
		func() {
			defer func() { recovered = recover() }()
			loop.RunOnce()
		}()
	}))
	require.NoError(t, loop.Run(context.Background()))
	assert.ErrorIs(t, runErr, ErrReentrantRun)
	assert.Equal(t, ErrReentrantRun, recovered)
}

func TestLoop_Close_DiscardsCompletions(t *testing.T) {
	loop, err := New()
	require.NoError(t, err)

	called := false
	require.NoError(t, loop.Submit(func() error { return nil }, func(error) { called = true }))
	timer := loop.NewTimer()
	require.NoError(t, timer.Start(time.Hour, 0, func() {}))

	require.NoError(t, loop.Close())
	assert.False(t, called)
	assert.False(t, timer.Active())
	assert.False(t, loop.Alive())
	assert.False(t, loop.RunOnce())
}

func TestLoop_CallbackPanicPropagates(t *testing.T) {
	loop := newTestLoop(t)
	timer := loop.NewTimer()
	require.NoError(t, timer.Start(0, 0, func() { panic("fatal") }))
	assert.PanicsWithValue(t, "fatal", func() { loop.RunOnce() })
}

func TestLoop_IDsUnique(t *testing.T) {
	a := newTestLoop(t)
	b := newTestLoop(t)
	assert.NotEqual(t, a.ID(), b.ID())
}

func TestLoopState_String(t *testing.T) {
	for state, want := range map[LoopState]string{
		StateAwake:       "Awake",
		StateRunning:     "Running",
		StateSleeping:    "Sleeping",
		StateTerminating: "Terminating",
		StateTerminated:  "Terminated",
		LoopState(99):    "Unknown",
	} {
		assert.Equal(t, want, state.String())
	}
}

func TestWrapError(t *testing.T) {
	cause := errors.New("cause")
	err := WrapError("context", cause)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "context: cause", err.Error())
}
