package builtin

import (
	"math"
	"time"

	"github.com/joeycumines/goja-nativecore/asyncwrap"
	"github.com/joeycumines/goja-nativecore/binding"
	"github.com/joeycumines/goja-nativecore/eventloop"
)

// newTimerModule builds the timer module: a Timer constructor whose
// instances wrap an [eventloop.Timer].
//
//	var t = new Timer();
//	t.start(timeout, repeat, callback); // milliseconds
//	t.stop();
//	t.close();
func (r *Registry) newTimerModule() *binding.Value {
	b := r.bridge
	ctor := b.NewConstructor("Timer", func(c *binding.CallContext) error {
		h := asyncwrap.NewHandleWrap(r.tracker, b, c.This(), binding.KindTimer, r.loop.NewTimer())
		r.handles[h] = struct{}{}
		return nil
	})
	defer ctor.Release()

	proto := ctor.Get("prototype")
	defer proto.Release()
	proto.SetMethod("start", r.timerStart)
	proto.SetMethod("stop", r.timerStop)
	proto.SetMethod("close", r.timerClose)

	exports := b.NewObject()
	exports.Set("Timer", ctor)
	return exports
}

func (r *Registry) timerStart(c *binding.CallContext) error {
	if err := c.CheckArgs(
		arg("timeout", binding.ArgNumber),
		arg("repeat", binding.ArgNumber),
		arg("callback", binding.ArgFunction),
	); err != nil {
		return err
	}
	timeout, ok := millis(c.Arg(0).Float64())
	if !ok {
		return c.Throw(binding.KindRangeError, "timeout out of range")
	}
	repeat, ok := millis(c.Arg(1).Float64())
	if !ok {
		return c.Throw(binding.KindRangeError, "repeat out of range")
	}

	h := asyncwrap.FromOwner(c.This(), binding.KindTimer)
	timer := h.Resource().(*eventloop.Timer)
	err := h.Start(c.Arg(2), repeat > 0, func(fire func()) error {
		return timer.Start(timeout, repeat, fire)
	})
	if err != nil {
		return c.Throw(binding.KindError, err.Error())
	}
	return result(c, c.Bridge().Int32(0))
}

func (r *Registry) timerStop(c *binding.CallContext) error {
	h := asyncwrap.FromOwner(c.This(), binding.KindTimer)
	if err := h.Stop(); err != nil {
		return c.Throw(binding.KindError, err.Error())
	}
	return result(c, c.Bridge().Int32(0))
}

func (r *Registry) timerClose(c *binding.CallContext) error {
	h := asyncwrap.FromOwner(c.This(), binding.KindTimer)
	delete(r.handles, h)
	h.Close()
	return nil
}

// millis converts a script duration, in milliseconds, rejecting negative
// and non-finite values.
func millis(ms float64) (time.Duration, bool) {
	if ms < 0 || math.IsNaN(ms) || ms > float64(math.MaxInt64/int64(time.Millisecond)) {
		return 0, false
	}
	return time.Duration(ms * float64(time.Millisecond)), true
}
