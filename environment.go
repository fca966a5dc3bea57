package nativecore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/require"
	"github.com/joeycumines/goja-nativecore/binding"
	"github.com/joeycumines/goja-nativecore/builtin"
	"github.com/joeycumines/goja-nativecore/eventloop"
	"github.com/joeycumines/logiface"
)

var (
	// ErrClosed is returned by methods of a closed Environment.
	ErrClosed = errors.New("nativecore: environment closed")

	// ErrEmptyModuleDir is returned by New for WithModuleDir("").
	ErrEmptyModuleDir = errors.New("nativecore: empty module directory")
)

// FailureExitCode is the exit code of a script whose uncaught exception
// handling itself failed.
const FailureExitCode = 7

// Environment is a script runtime wired to its event loop and native
// modules. It is confined to the goroutine that created it.
type Environment struct {
	rt       *goja.Runtime
	modules  *require.Registry
	bridge   *binding.Bridge
	loop     *eventloop.Loop
	builtins *builtin.Registry
	process  *binding.Value
	logger   *logiface.Logger[logiface.Event]
	// failure is an exception that escaped uncaught exception handling
	failure error
	closed  bool
}

// New creates an environment, and runs its bootstrap: the process object,
// console, Buffer and the timer globals are ready when New returns.
func New(opts ...Option) (*Environment, error) {
	cfg, err := resolveEnvOptions(opts)
	if err != nil {
		return nil, err
	}

	e := &Environment{
		rt:     goja.New(),
		logger: cfg.logger,
	}

	var requireOpts []require.Option
	if len(cfg.moduleDirs) != 0 {
		requireOpts = append(requireOpts, require.WithGlobalFolders(cfg.moduleDirs...))
	}
	e.modules = require.NewRegistry(requireOpts...)
	for _, name := range libModules {
		e.modules.RegisterNativeModule(name, e.libLoader(name))
	}
	e.modules.Enable(e.rt)

	e.bridge, err = binding.NewBridge(e.rt,
		binding.WithLogger(cfg.logger),
		binding.WithUncaughtHandler(e.onUncaught),
	)
	if err != nil {
		return nil, err
	}

	e.loop, err = eventloop.New(append([]eventloop.LoopOption{eventloop.WithLogger(cfg.logger)}, cfg.loopOpts...)...)
	if err != nil {
		return nil, err
	}

	e.builtins, err = builtin.NewRegistry(e.bridge, e.loop,
		builtin.WithLogger(cfg.logger),
		builtin.WithStdout(cfg.stdout),
		builtin.WithStderr(cfg.stderr),
	)
	if err != nil {
		_ = e.loop.Close()
		return nil, err
	}

	if err := e.bootstrap(); err != nil {
		e.Close()
		return nil, eventloop.WrapError("nativecore: bootstrap failed", err)
	}

	if e.logger != nil {
		e.logger.Debug().
			Uint64("loop", e.loop.ID()).
			Log("nativecore: environment created")
	}
	return e, nil
}

func (e *Environment) bootstrap() error {
	process, err := e.builtins.Get(builtin.ModuleProcess)
	if err != nil {
		return err
	}
	e.process = process
	if err := e.rt.Set("process", process.Goja()); err != nil {
		return err
	}
	module := e.rt.NewObject()
	if err := module.Set("exports", e.rt.NewObject()); err != nil {
		return err
	}
	return e.runLib(bootstrapName, module)
}

// Runtime returns the script runtime.
func (e *Environment) Runtime() *goja.Runtime {
	return e.rt
}

// Bridge returns the bridge native code is bound through.
func (e *Environment) Bridge() *binding.Bridge {
	return e.bridge
}

// Loop returns the event loop.
func (e *Environment) Loop() *eventloop.Loop {
	return e.loop
}

// Builtins returns the native module registry.
func (e *Environment) Builtins() *builtin.Registry {
	return e.builtins
}

// RunScript evaluates src as a top level script named name, then runs the
// callbacks it queued with process.nextTick. An exception thrown by the
// script is handled like any other uncaught exception, so the only errors
// returned are from compilation, or for a closed environment. Once the
// script has exited, RunScript does nothing.
func (e *Environment) RunScript(name, src string) error {
	if e.closed {
		return ErrClosed
	}
	if _, done, _ := e.result(); done {
		return nil
	}
	prg, err := goja.Compile(name, src, false)
	if err != nil {
		return fmt.Errorf("nativecore: compiling %s: %w", name, err)
	}
	if _, err := e.rt.RunProgram(prg); err != nil {
		e.bridge.ReportUncaught(err)
	}
	e.bridge.Ticks().Drain()
	return nil
}

// RunFile runs the script at path, see [Environment.RunScript]. Relative
// requires resolve against the directory of path. A leading #! line is
// ignored.
func (e *Environment) RunFile(path string) error {
	if e.closed {
		return ErrClosed
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	src, err := os.ReadFile(abs)
	if err != nil {
		return err
	}
	if bytes.HasPrefix(src, []byte("#!")) {
		// keep line numbers
		src = append([]byte("//"), src[2:]...)
	}
	return e.RunScript(abs, string(src))
}

// Run drives the event loop until the script exits, no work remains, or
// ctx is done. It returns the exit code: that of process.exit, or
// process.exitCode once the loop is drained and the 'exit' event has been
// emitted. The error is non-nil if the runtime was stopped by anything
// other than process.exit, or by ctx.
func (e *Environment) Run(ctx context.Context) (int, error) {
	if e.closed {
		return 0, ErrClosed
	}
	for {
		if code, done, err := e.result(); done {
			return e.exited(code, err)
		}
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		if !e.loop.RunOnceContext(ctx) {
			break
		}
	}

	if code, done, err := e.result(); done {
		return e.exited(code, err)
	}
	e.emitExit()
	if code, done, err := e.result(); done {
		return e.exited(code, err)
	}
	exitCode := e.process.Get("exitCode")
	defer exitCode.Release()
	return e.exited(int(exitCode.Int32()), nil)
}

// result reports whether the script has stopped, and how.
func (e *Environment) result() (code int, done bool, err error) {
	if e.failure != nil {
		return FailureExitCode, true, e.failure
	}
	if exit := e.builtins.Exit(); exit != nil {
		return exit.Code, true, nil
	}
	if err := e.bridge.Fatal(); err != nil {
		return 1, true, err
	}
	return 0, false, nil
}

func (e *Environment) exited(code int, err error) (int, error) {
	if e.logger != nil {
		b := e.logger.Debug().Int("code", code)
		if err != nil {
			b = b.Err(err)
		}
		b.Log("nativecore: script exited")
	}
	return code, err
}

// emitExit emits the process 'exit' event, at the natural end of the run.
func (e *Environment) emitExit() {
	fn := e.process.Get("emitExit")
	defer fn.Release()
	if !fn.IsFunction() {
		return
	}
	res, err := e.bridge.MakeCallback(fn, e.process)
	if err != nil {
		e.bridge.ReportUncaught(err)
		return
	}
	res.Release()
}

// onUncaught passes an exception that escaped a callback to
// process._onUncaughtException. If that throws too, the run fails.
func (e *Environment) onUncaught(err error) {
	if e.process == nil {
		e.fail(err)
		return
	}
	handler := e.process.Get("_onUncaughtException")
	defer handler.Release()
	if !handler.IsFunction() {
		e.fail(err)
		return
	}

	exc := e.bridge.Wrap(e.exceptionValue(err), binding.Strong)
	defer exc.Release()
	res, herr := handler.Call(e.process, exc)
	if herr != nil {
		var interrupted *goja.InterruptedError
		if errors.As(herr, &interrupted) {
			// process.exit, recorded as fatal
			e.bridge.ReportUncaught(herr)
			return
		}
		e.fail(herr)
		return
	}
	res.Release()
}

// fail records err as the outcome of the run, and stops the runtime.
func (e *Environment) fail(err error) {
	if e.failure != nil {
		return
	}
	e.failure = err
	if e.logger != nil {
		e.logger.Err().
			Err(err).
			Log("nativecore: uncaught exception handling failed")
	}
	e.rt.Interrupt(err)
}

func (e *Environment) exceptionValue(err error) goja.Value {
	var ex *goja.Exception
	if errors.As(err, &ex) {
		return ex.Value()
	}
	return e.rt.NewGoError(err)
}

// Close closes every handle, the loop, and the native modules. Closing
// twice is a no-op.
func (e *Environment) Close() {
	if e.closed {
		return
	}
	e.closed = true
	if e.process != nil {
		e.process.Release()
		e.process = nil
	}
	e.builtins.Close()
	_ = e.loop.Close()
	if e.logger != nil {
		e.logger.Debug().
			Uint64("loop", e.loop.ID()).
			Log("nativecore: environment closed")
	}
}
