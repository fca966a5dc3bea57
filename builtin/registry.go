package builtin

import (
	"fmt"
	"io"

	"github.com/joeycumines/goja-nativecore/asyncwrap"
	"github.com/joeycumines/goja-nativecore/binding"
	"github.com/joeycumines/goja-nativecore/eventloop"
	"github.com/joeycumines/logiface"
)

// ModuleKind identifies a native module. The numbering is visible to
// scripts, as the properties of process.binding.
type ModuleKind int32

const (
	ModuleBuffer ModuleKind = iota
	ModuleConsole
	ModuleFS
	ModuleHTTPParser
	ModuleProcess
	ModuleTimer
	numModules
)

var moduleNames = [numModules]string{
	ModuleBuffer:     "buffer",
	ModuleConsole:    "console",
	ModuleFS:         "fs",
	ModuleHTTPParser: "httpparser",
	ModuleProcess:    "process",
	ModuleTimer:      "timer",
}

func (k ModuleKind) String() string {
	if k >= 0 && k < numModules {
		return moduleNames[k]
	}
	return "unknown"
}

// ModuleKinds returns every module kind, in numeric order.
func ModuleKinds() []ModuleKind {
	kinds := make([]ModuleKind, numModules)
	for i := range kinds {
		kinds[i] = ModuleKind(i)
	}
	return kinds
}

// moduleTag marks a module instance, so it can be identified by kind.
type moduleTag ModuleKind

func (moduleTag) NativeKind() binding.NativeKind {
	return binding.KindModule
}

// ModuleKindOf reports which module v is an instance of, if any.
func ModuleKindOf(v *binding.Value) (ModuleKind, bool) {
	if !v.HasNative(binding.KindModule) {
		return 0, false
	}
	return ModuleKind(v.Native(binding.KindModule).(moduleTag)), true
}

// Registry constructs and caches the native modules of one runtime.
type Registry struct {
	bridge   *binding.Bridge
	loop     *eventloop.Loop
	tracker  *asyncwrap.Tracker
	logger   *logiface.Logger[logiface.Event]
	stdout   io.Writer
	stderr   io.Writer
	modules  [numModules]*binding.Value
	handles  map[*asyncwrap.HandleWrap]struct{}
	statCtor *binding.Value
	exit     *ExitError
	closed   bool
}

// NewRegistry returns an empty registry, whose modules will run script
// callbacks through bridge and schedule work on loop.
func NewRegistry(bridge *binding.Bridge, loop *eventloop.Loop, opts ...Option) (*Registry, error) {
	if bridge == nil || loop == nil {
		panic(&binding.PreconditionError{Op: "NewRegistry", Message: "bridge and loop are required"})
	}
	cfg, err := resolveRegistryOptions(opts)
	if err != nil {
		return nil, err
	}
	return &Registry{
		bridge:  bridge,
		loop:    loop,
		tracker: asyncwrap.NewTracker(),
		logger:  cfg.logger,
		stdout:  cfg.stdout,
		stderr:  cfg.stderr,
		handles: make(map[*asyncwrap.HandleWrap]struct{}),
	}, nil
}

// Bridge returns the bridge modules are bound through.
func (r *Registry) Bridge() *binding.Bridge {
	return r.bridge
}

// Tracker returns the allocation accounting of timer, fs request and
// parser bindings.
func (r *Registry) Tracker() *asyncwrap.Tracker {
	return r.tracker
}

// Exit returns the recorded process.doExit call, or nil.
func (r *Registry) Exit() *ExitError {
	return r.exit
}

// Get returns a strong reference to the instance of the given module,
// constructing it on first use.
func (r *Registry) Get(kind ModuleKind) (*binding.Value, error) {
	if r.closed {
		return nil, ErrRegistryClosed
	}
	if kind < 0 || kind >= numModules {
		return nil, fmt.Errorf("%w: %d", ErrUnknownModule, kind)
	}
	if m := r.modules[kind]; m != nil {
		return m.Dup(), nil
	}
	m, err := r.construct(kind)
	if err != nil {
		return nil, eventloop.WrapError("builtin: constructing "+kind.String()+" module", err)
	}
	m.SetNative(moduleTag(kind))
	r.modules[kind] = m
	r.logModule("module constructed", kind)
	return m.Dup(), nil
}

func (r *Registry) construct(kind ModuleKind) (*binding.Value, error) {
	switch kind {
	case ModuleBuffer:
		return r.newBufferModule(), nil
	case ModuleConsole:
		return r.newConsoleModule()
	case ModuleFS:
		return r.newFSModule(), nil
	case ModuleHTTPParser:
		return r.newHTTPParserModule(), nil
	case ModuleProcess:
		return r.newProcessModule(), nil
	default:
		return r.newTimerModule(), nil
	}
}

// Close closes every live handle, timers and parsers alike, then releases
// the cached modules. Closing twice is a no-op.
func (r *Registry) Close() {
	if r.closed {
		return
	}
	r.closed = true
	for h := range r.handles {
		h.Close()
	}
	clear(r.handles)
	for i, m := range r.modules {
		if m == nil {
			continue
		}
		m.ClearNative()
		m.Release()
		r.modules[i] = nil
	}
	if r.statCtor != nil {
		r.statCtor.Release()
		r.statCtor = nil
	}
	if r.logger != nil {
		r.logger.Debug().
			Int64("live", r.tracker.Live()).
			Log("builtin: registry closed")
	}
}

func (r *Registry) logModule(msg string, kind ModuleKind) {
	if r.logger == nil {
		return
	}
	r.logger.Debug().
		Str("module", kind.String()).
		Log("builtin: " + msg)
}

// put sets a property of obj to v, releasing v.
func put(obj *binding.Value, name string, v *binding.Value) {
	obj.Set(name, v)
	v.Release()
}

// result sets v as the result of the call, releasing v.
func result(c *binding.CallContext, v *binding.Value) error {
	c.Return(v)
	v.Release()
	return nil
}

func arg(name string, t binding.ArgType) binding.ArgSpec {
	return binding.ArgSpec{Name: name, Type: t}
}
