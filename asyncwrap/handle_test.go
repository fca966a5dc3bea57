package asyncwrap

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dop251/goja"
	"github.com/joeycumines/goja-nativecore/binding"
	"github.com/joeycumines/goja-nativecore/eventloop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	t       *testing.T
	bridge  *binding.Bridge
	loop    *eventloop.Loop
	tracker *Tracker
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	bridge, err := binding.NewBridge(goja.New())
	require.NoError(t, err)
	loop, err := eventloop.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = loop.Close() })
	return &harness{t: t, bridge: bridge, loop: loop, tracker: NewTracker()}
}

func (h *harness) eval(src string) *binding.Value {
	h.t.Helper()
	v, err := h.bridge.Runtime().RunString(src)
	require.NoError(h.t, err)
	return h.bridge.Wrap(v, binding.Strong)
}

func (h *harness) run() {
	h.t.Helper()
	require.NoError(h.t, h.loop.Run(context.Background()))
}

// timerResource adapts an eventloop.Timer to Resource, counting closes.
type timerResource struct {
	*eventloop.Timer
	closed int
}

func (r *timerResource) Close() {
	r.closed++
	r.Timer.Close()
}

func (h *harness) newTimerWrap(owner *binding.Value) (*HandleWrap, *timerResource) {
	res := &timerResource{Timer: h.loop.NewTimer()}
	return NewHandleWrap(h.tracker, h.bridge, owner, binding.KindTimer, res), res
}

func (h *harness) start(w *HandleWrap, res *timerResource, cb *binding.Value, timeout, repeat time.Duration) {
	h.t.Helper()
	require.NoError(h.t, w.Start(cb, repeat > 0, func(fire func()) error {
		return res.Start(timeout, repeat, fire)
	}))
}

func TestHandleWrap_ZeroTimeoutFiresOnceThenIdle(t *testing.T) {
	h := newHarness(t)
	owner := h.eval(`({calls: 0})`)
	defer owner.Release()
	cb := h.eval(`(function() { this.calls++; })`)
	defer cb.Release()

	w, res := h.newTimerWrap(owner)
	assert.Same(t, w, FromOwner(owner, binding.KindTimer))
	h.start(w, res, cb, 0, 0)
	assert.Equal(t, Armed, w.State())

	h.loop.RunOnce()

	calls := owner.Get("calls")
	assert.Equal(t, int32(1), calls.Int32())
	calls.Release()
	assert.Equal(t, Idle, w.State())
	assert.False(t, h.loop.Alive())
	w.Close()
}

func TestHandleWrap_StopThenNoCallbacks(t *testing.T) {
	h := newHarness(t)
	cb := h.eval(`var calls = 0; (function() { calls++; })`)
	defer cb.Release()

	var wraps []*HandleWrap
	for i := range 5 {
		obj := h.eval(`({})`)
		w, res := h.newTimerWrap(obj)
		obj.Release()
		h.start(w, res, cb, time.Duration(i)*time.Millisecond, time.Millisecond)
		wraps = append(wraps, w)
	}
	for _, w := range wraps {
		require.NoError(t, w.Stop())
		assert.Equal(t, Idle, w.State())
	}

	h.run()
	calls := h.eval(`calls`)
	assert.Equal(t, int32(0), calls.Int32())
	calls.Release()

	for _, w := range wraps {
		w.Close()
	}
	assert.Equal(t, int64(0), h.tracker.Live())
	assert.Equal(t, int64(1), h.bridge.Stats().Live)
}

func TestHandleWrap_RepeatingStaysArmedUntilStopped(t *testing.T) {
	h := newHarness(t)
	owner := h.eval(`({})`)
	defer owner.Release()

	w, res := h.newTimerWrap(owner)

	stopFn := h.bridge.NewFunction("stop", func(c *binding.CallContext) error {
		return FromOwner(c.This(), binding.KindTimer).Stop()
	})
	owner.Set("stop", stopFn)
	stopFn.Release()

	cb := h.eval(`var n = 0; (function() { if (++n === 3) this.stop(); })`)
	defer cb.Release()
	h.start(w, res, cb, time.Millisecond, time.Millisecond)

	h.run()
	n := h.eval(`n`)
	assert.Equal(t, int32(3), n.Int32())
	n.Release()
	assert.Equal(t, Idle, w.State())
	w.Close()
}

func TestHandleWrap_CloseReleasesEverything(t *testing.T) {
	h := newHarness(t)
	owner := h.eval(`({})`)
	cb := h.eval(`(function() {})`)
	before := h.bridge.Stats().Live

	w, res := h.newTimerWrap(owner)
	h.start(w, res, cb, time.Hour, 0)
	assert.Equal(t, Counts{Allocated: 1}, h.tracker.Counts(binding.KindTimer))

	w.Close()
	w.Close()
	assert.Equal(t, Closed, w.State())
	assert.Equal(t, 1, res.closed)
	assert.False(t, res.Active())
	assert.False(t, owner.HasNative(binding.KindTimer))
	assert.Nil(t, w.Owner())
	assert.Equal(t, before, h.bridge.Stats().Live)
	assert.Equal(t, Counts{Allocated: 1, Freed: 1}, h.tracker.Counts(binding.KindTimer))

	assert.ErrorIs(t, w.Start(cb, false, func(func()) error { return nil }), ErrHandleClosed)
	assert.NoError(t, w.Stop())

	owner.Release()
	cb.Release()
	assert.Equal(t, int64(0), h.bridge.Stats().Live)
}

func TestHandleWrap_CloseFromCallback(t *testing.T) {
	h := newHarness(t)
	owner := h.eval(`({})`)
	defer owner.Release()
	w, res := h.newTimerWrap(owner)

	closeFn := h.bridge.NewFunction("close", func(c *binding.CallContext) error {
		FromOwner(c.This(), binding.KindTimer).Close()
		return nil
	})
	owner.Set("close", closeFn)
	closeFn.Release()

	cb := h.eval(`(function() { this.close(); })`)
	defer cb.Release()
	h.start(w, res, cb, 0, time.Millisecond)
	h.run()

	assert.Equal(t, Closed, w.State())
	assert.Equal(t, int64(0), h.tracker.Live())
}

func TestHandleWrap_StartArmFailureLeavesState(t *testing.T) {
	h := newHarness(t)
	owner := h.eval(`({})`)
	defer owner.Release()
	cb := h.eval(`(function() {})`)
	defer cb.Release()
	w, _ := h.newTimerWrap(owner)
	defer w.Close()

	sentinel := errors.New("arm failed")
	assert.ErrorIs(t, w.Start(cb, false, func(func()) error { return sentinel }), sentinel)
	assert.Equal(t, Idle, w.State())
	// firing an idle handle does nothing
	w.Fire()
}

func TestHandleWrap_CallbackExceptionIsUncaught(t *testing.T) {
	h := newHarness(t)
	var uncaught []error
	h.bridge.SetUncaughtHandler(func(err error) { uncaught = append(uncaught, err) })

	owner := h.eval(`({})`)
	defer owner.Release()
	cb := h.eval(`(function() { throw new Error("timer cb"); })`)
	defer cb.Release()
	w, res := h.newTimerWrap(owner)
	defer w.Close()
	h.start(w, res, cb, 0, 0)
	h.run()

	require.Len(t, uncaught, 1)
	assert.Contains(t, uncaught[0].Error(), "timer cb")
}

func TestFromOwner_Missing(t *testing.T) {
	h := newHarness(t)
	owner := h.eval(`({})`)
	defer owner.Release()
	assert.Panics(t, func() { FromOwner(owner, binding.KindTimer) })
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "Idle", Idle.String())
	assert.Equal(t, "Armed", Armed.String())
	assert.Equal(t, "Closed", Closed.String())
	assert.Equal(t, "Unknown", State(9).String())
}
