package builtin

import (
	"errors"
	"fmt"
	"io"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/console"
	"github.com/joeycumines/goja-nativecore/binding"
)

var errRequireDisabled = errors.New("builtin: console module needs require enabled on the runtime")

// consolePrinter writes console output, one line per call.
type consolePrinter struct {
	stdout io.Writer
	stderr io.Writer
}

func (p consolePrinter) Log(s string)   { _, _ = fmt.Fprintln(p.stdout, s) }
func (p consolePrinter) Warn(s string)  { _, _ = fmt.Fprintln(p.stderr, s) }
func (p consolePrinter) Error(s string) { _, _ = fmt.Fprintln(p.stderr, s) }

// newConsoleModule builds a console object with goja_nodejs' formatting,
// bound to the registry's writers. Formatting is delegated to the util
// module, so require must be enabled on the runtime.
func (r *Registry) newConsoleModule() (*binding.Value, error) {
	rt := r.bridge.Runtime()
	if _, ok := goja.AssertFunction(rt.Get("require")); !ok {
		return nil, errRequireDisabled
	}
	module := rt.NewObject()
	exports := rt.NewObject()
	if err := module.Set("exports", exports); err != nil {
		return nil, err
	}
	load := console.RequireWithPrinter(consolePrinter{stdout: r.stdout, stderr: r.stderr})
	if err := rt.Try(func() { load(rt, module) }); err != nil {
		return nil, err
	}
	return r.bridge.Wrap(module.Get("exports"), binding.Strong), nil
}
