package nativecore

import (
	"embed"
	"path"
	"strings"
	"sync"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/require"
	"github.com/joeycumines/goja-nativecore/binding"
)

//go:embed lib/*.js
var libFS embed.FS

// libModules are the script modules registered with require, by name.
// bootstrap is run directly, once per environment.
var libModules = [...]string{"buffer", "events", "fs", "timers"}

const bootstrapName = "bootstrap"

// libPrograms compiles every script in lib, wrapped as a function of
// (exports, require, module, process). Programs are shared by all runtimes.
var libPrograms = sync.OnceValue(func() map[string]*goja.Program {
	entries, err := libFS.ReadDir("lib")
	if err != nil {
		panic(err)
	}
	programs := make(map[string]*goja.Program, len(entries))
	for _, entry := range entries {
		src, err := libFS.ReadFile(path.Join("lib", entry.Name()))
		if err != nil {
			panic(err)
		}
		name := strings.TrimSuffix(entry.Name(), ".js")
		programs[name] = goja.MustCompile(
			"nativecore:"+name,
			"(function(exports, require, module, process) {"+string(src)+"\n})",
			false,
		)
	}
	return programs
})

// libLoader returns the loader of the named lib module.
func (e *Environment) libLoader(name string) require.ModuleLoader {
	return func(rt *goja.Runtime, module *goja.Object) {
		if err := e.runLib(name, module); err != nil {
			panic(err)
		}
	}
}

// runLib evaluates the named lib script with module as its module object.
func (e *Environment) runLib(name string, module *goja.Object) error {
	prg, ok := libPrograms()[name]
	if !ok {
		panic(&binding.PreconditionError{Op: "runLib", Message: "unknown lib script " + name})
	}
	v, err := e.rt.RunProgram(prg)
	if err != nil {
		return err
	}
	fn, _ := goja.AssertFunction(v)
	_, err = fn(goja.Undefined(), module.Get("exports"), e.rt.Get("require"), module, e.process.Goja())
	return err
}
