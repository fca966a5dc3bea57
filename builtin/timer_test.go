package builtin

import (
	"testing"
	"time"

	"github.com/joeycumines/goja-nativecore/asyncwrap"
	"github.com/joeycumines/goja-nativecore/binding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimer_ZeroTimeoutFiresOnceThenIdle(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, int64(0), h.eval(`
		var Timer = process.binding(process.binding.timer).Timer;
		var calls = 0, self;
		var t = new Timer();
		t.start(0, 0, function() { calls++; self = this; })
	`).Export())

	w := asyncwrap.FromOwner(h.owner("t"), binding.KindTimer)
	assert.Equal(t, asyncwrap.Armed, w.State())

	assert.False(t, h.loop.RunOnce())
	assert.Equal(t, int64(1), h.eval(`calls`).Export())
	assert.Equal(t, true, h.eval(`self === t`).Export())
	assert.Equal(t, asyncwrap.Idle, w.State())

	assert.False(t, h.loop.RunOnce())
	assert.Equal(t, int64(1), h.eval(`calls`).Export())
}

func TestTimer_RepeatUntilStopped(t *testing.T) {
	h := newHarness(t)
	h.eval(`
		var Timer = process.binding(process.binding.timer).Timer;
		var calls = 0;
		var t = new Timer();
		t.start(0, 1, function() {
			if (++calls === 3) {
				t.stop();
			}
		});
	`)
	h.run()
	assert.Equal(t, int64(3), h.eval(`calls`).Export())
	assert.Equal(t, asyncwrap.Idle, asyncwrap.FromOwner(h.owner("t"), binding.KindTimer).State())
}

func TestTimer_StopPreventsCallback(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, int64(0), h.eval(`
		var Timer = process.binding(process.binding.timer).Timer;
		var calls = 0;
		var t = new Timer();
		t.start(10, 0, function() { calls++; });
		t.stop()
	`).Export())
	assert.False(t, h.loop.Alive())
	h.run()
	assert.Equal(t, int64(0), h.eval(`calls`).Export())
}

func TestTimer_Restart(t *testing.T) {
	h := newHarness(t)
	start := time.Now()
	h.eval(`
		var Timer = process.binding(process.binding.timer).Timer;
		var which = [];
		var t = new Timer();
		t.start(1000, 0, function() { which.push('first'); });
		t.start(1, 0, function() { which.push('second'); });
	`)
	h.run()
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, "second", h.eval(`which.join()`).Export())
}

func TestTimer_Arguments(t *testing.T) {
	h := newHarness(t)
	h.eval(`
		var Timer = process.binding(process.binding.timer).Timer;
		var t = new Timer();
		function attempt(fn) {
			try { fn(); return 'no error'; } catch (e) { return String(e); }
		}
	`)
	for _, tc := range []struct {
		src  string
		want string
	}{
		{`attempt(function() { t.start(); })`, "TypeError: timeout required"},
		{`attempt(function() { t.start(0, 0); })`, "TypeError: callback required"},
		{`attempt(function() { t.start('1', 0, function() {}); })`, "TypeError: timeout must be a number"},
		{`attempt(function() { t.start(0, 0, 1); })`, "TypeError: callback must be a function"},
		{`attempt(function() { t.start(-1, 0, function() {}); })`, "RangeError: timeout out of range"},
		{`attempt(function() { t.start(0, NaN, function() {}); })`, "RangeError: repeat out of range"},
	} {
		assert.Equal(t, tc.want, h.eval(tc.src).Export(), tc.src)
	}
	assert.False(t, h.loop.Alive())
}

func TestTimer_Close(t *testing.T) {
	h := newHarness(t)
	h.eval(`
		var Timer = process.binding(process.binding.timer).Timer;
		var calls = 0;
		var t = new Timer();
		t.start(0, 0, function() { calls++; });
		t.close();
	`)
	assert.False(t, h.loop.Alive())
	h.run()
	assert.Equal(t, int64(0), h.eval(`calls`).Export())
	assert.Equal(t, asyncwrap.Counts{Allocated: 1, Freed: 1}, h.registry.Tracker().Counts(binding.KindTimer))

	requirePrecondition(t, func() {
		_, _ = h.rt.RunString(`try { t.start(0, 0, function() {}); } catch (e) {}`)
	})
}

func TestTimer_CloseInsideCallback(t *testing.T) {
	h := newHarness(t)
	h.eval(`
		var Timer = process.binding(process.binding.timer).Timer;
		var calls = 0;
		var t = new Timer();
		t.start(0, 1, function() { calls++; t.close(); });
	`)
	h.run()
	assert.Equal(t, int64(1), h.eval(`calls`).Export())
	require.Equal(t, int64(0), h.registry.Tracker().Live())
}
