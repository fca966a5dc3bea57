package builtin

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/joeycumines/goja-nativecore/binding"
)

// newProcessModule builds the native half of the process object:
// binding(kind), whose properties name each module kind, nextTick and
// _onNextTick, the default _onUncaughtException, and doExit.
func (r *Registry) newProcessModule() *binding.Value {
	b := r.bridge
	process := b.NewObject()

	kinds := b.NewFunction("binding", r.processBinding)
	for _, kind := range ModuleKinds() {
		put(kinds, kind.String(), b.Int32(int32(kind)))
	}
	put(process, "binding", kinds)

	process.SetMethod("nextTick", r.processNextTick)
	process.SetMethod("_onNextTick", r.processOnNextTick)
	process.SetMethod("_onUncaughtException", r.processOnUncaughtException)
	process.SetMethod("doExit", r.processDoExit)
	put(process, "platform", b.String(runtime.GOOS))
	put(process, "arch", b.String(runtime.GOARCH))
	return process
}

func (r *Registry) processBinding(c *binding.CallContext) error {
	if err := c.CheckArgs(arg("kind", binding.ArgInt)); err != nil {
		return err
	}
	kind := ModuleKind(c.Arg(0).Int32())
	m, err := r.Get(kind)
	switch {
	case errors.Is(err, ErrUnknownModule):
		return c.Throwf(binding.KindRangeError, "unknown module kind %d", kind)
	case err != nil:
		return err
	}
	return result(c, m)
}

func (r *Registry) processNextTick(c *binding.CallContext) error {
	if err := c.CheckArgs(arg("callback", binding.ArgFunction)); err != nil {
		return err
	}
	args := make([]*binding.Value, 0, c.Len()-1)
	for i := 1; i < c.Len(); i++ {
		args = append(args, c.Arg(i))
	}
	r.bridge.NextTick(c.Arg(0), args...)
	return nil
}

// processOnNextTick runs the callbacks queued so far, returning whether
// more were queued meanwhile.
func (r *Registry) processOnNextTick(c *binding.CallContext) error {
	more := r.bridge.Ticks().RunSnapshot()
	return result(c, c.Bridge().Bool(more))
}

func (r *Registry) processOnUncaughtException(c *binding.CallContext) error {
	_, _ = fmt.Fprintf(r.stderr, "uncaughtException: %s\n", c.Arg(0).ToString())
	r.doExit(1)
	return nil
}

func (r *Registry) processDoExit(c *binding.CallContext) error {
	var code int32
	if v := c.Arg(0); v.IsNumber() {
		code = v.Int32()
	}
	r.doExit(int(code))
	return nil
}

// doExit records the exit, and interrupts the runtime. The interrupt takes
// effect as soon as control returns to script.
func (r *Registry) doExit(code int) {
	if r.exit == nil {
		r.exit = &ExitError{Code: code}
	}
	if r.logger != nil {
		r.logger.Debug().
			Int("code", r.exit.Code).
			Log("builtin: process exit")
	}
	r.bridge.Runtime().Interrupt(r.exit)
}
