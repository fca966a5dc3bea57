package binding

import (
	"errors"
	"fmt"

	"github.com/dop251/goja"
)

// Handler implements a native function or constructor.
type Handler func(c *CallContext) error

// ErrorKind selects the constructor used by [CallContext.Throw].
type ErrorKind uint8

const (
	KindError ErrorKind = iota
	KindTypeError
	KindRangeError
	KindSyntaxError
	KindReferenceError
	KindEvalError
	KindURIError
)

// String returns the name of the global error constructor.
func (k ErrorKind) String() string {
	switch k {
	case KindTypeError:
		return "TypeError"
	case KindRangeError:
		return "RangeError"
	case KindSyntaxError:
		return "SyntaxError"
	case KindReferenceError:
		return "ReferenceError"
	case KindEvalError:
		return "EvalError"
	case KindURIError:
		return "URIError"
	default:
		return "Error"
	}
}

// CallContext exposes a single native invocation. It must not be retained
// after the handler returns.
type CallContext struct {
	b         *Bridge
	scope     *Scope
	fn        goja.Value
	this      goja.Value
	args      []goja.Value
	argv      []*Value
	newTarget *goja.Object
	ret       *Value
	exc       goja.Value
	thrown    bool
}

// Bridge returns the bridge the call was made through.
func (c *CallContext) Bridge() *Bridge {
	return c.b
}

// This returns the receiver, borrowed.
func (c *CallContext) This() *Value {
	return c.scope.Borrow(c.this)
}

// Function returns the function being invoked, borrowed.
func (c *CallContext) Function() *Value {
	return c.scope.Borrow(c.fn)
}

// IsConstructCall reports whether the function was invoked with new.
func (c *CallContext) IsConstructCall() bool {
	return c.newTarget != nil
}

// Len returns the number of arguments actually passed.
func (c *CallContext) Len() int {
	return len(c.args)
}

// Arg returns argument i, borrowed. Missing arguments are undefined.
func (c *CallContext) Arg(i int) *Value {
	if i < 0 {
		precondition("Arg", "negative index %d", i)
	}
	if c.argv == nil {
		c.argv = make([]*Value, len(c.args))
	}
	if i >= len(c.args) {
		return c.scope.Borrow(goja.Undefined())
	}
	if c.argv[i] == nil {
		c.argv[i] = c.scope.Borrow(c.args[i])
	}
	return c.argv[i]
}

// Return sets the result of the call, replacing any earlier result. The
// value is promoted to a strong reference held by the call.
func (c *CallContext) Return(v *Value) {
	if c.ret != nil {
		c.ret.Release()
	}
	c.ret = v.Dup()
}

// Throw constructs an error of the given kind and marks the call as
// thrown. The handler must return the result.
func (c *CallContext) Throw(kind ErrorKind, message string) error {
	e := c.b.NewError(kind, message)
	defer e.Release()
	return c.ThrowValue(e)
}

// Throwf is [CallContext.Throw] with a format string.
func (c *CallContext) Throwf(kind ErrorKind, format string, args ...any) error {
	return c.Throw(kind, fmt.Sprintf(format, args...))
}

// ThrowValue marks the call as thrown with an arbitrary value. The handler
// must return the result.
func (c *CallContext) ThrowValue(v *Value) error {
	c.exc = v.Goja()
	c.thrown = true
	return ErrThrown
}

// HasThrown reports whether the call has been marked as thrown.
func (c *CallContext) HasThrown() bool {
	return c.thrown
}

// Exception returns the thrown value, borrowed, or nil.
func (c *CallContext) Exception() *Value {
	if !c.thrown {
		return nil
	}
	return c.scope.Borrow(c.exc)
}

// ArgType is the expected type of an argument, see [CallContext.CheckArgs].
type ArgType uint8

const (
	ArgAny ArgType = iota
	ArgString
	ArgInt
	ArgNumber
	ArgBool
	ArgObject
	ArgFunction
	ArgBuffer
)

var argTypeNames = [...]string{
	ArgAny:      "a value",
	ArgString:   "a string",
	ArgInt:      "an int",
	ArgNumber:   "a number",
	ArgBool:     "a boolean",
	ArgObject:   "an object",
	ArgFunction: "a function",
	ArgBuffer:   "a Buffer",
}

// ArgSpec describes a required positional argument.
type ArgSpec struct {
	Name string
	Type ArgType
}

// CheckArgs validates required positional arguments. Presence of every
// argument is checked first, in order, then types, in order. The first
// failure throws a TypeError ("<name> required" or "<name> must be <type>").
func (c *CallContext) CheckArgs(specs ...ArgSpec) error {
	for i, spec := range specs {
		if i >= c.Len() {
			return c.Throw(KindTypeError, spec.Name+" required")
		}
	}
	for i, spec := range specs {
		if !c.Arg(i).is(spec.Type) {
			return c.Throw(KindTypeError, spec.Name+" must be "+argTypeNames[spec.Type])
		}
	}
	return nil
}

func (x *Value) is(t ArgType) bool {
	switch t {
	case ArgString:
		return x.IsString()
	case ArgInt, ArgNumber:
		return x.IsNumber()
	case ArgBool:
		return x.IsBool()
	case ArgObject:
		return x.IsObject()
	case ArgFunction:
		return x.IsFunction()
	case ArgBuffer:
		_, ok := x.Bytes()
		return ok
	default:
		return true
	}
}

// NewFunction adapts h into a script function.
func (b *Bridge) NewFunction(name string, h Handler) *Value {
	return b.acquire(b.newFunction(name, h))
}

func (b *Bridge) newFunction(name string, h Handler) *goja.Object {
	if h == nil {
		precondition("NewFunction", "nil handler for %q", name)
	}
	var fn *goja.Object
	fn = b.rt.ToValue(func(call goja.FunctionCall) goja.Value {
		return b.invoke(h, fn, call.This, call.Arguments, nil)
	}).(*goja.Object)
	b.setName(fn, name)
	return fn
}

// NewConstructor adapts h into a script constructor. Inside h, This is the
// newly allocated object, whose prototype is the constructor's "prototype"
// property. Returning an object replaces it.
func (b *Bridge) NewConstructor(name string, h Handler) *Value {
	if h == nil {
		precondition("NewConstructor", "nil handler for %q", name)
	}
	var fn *goja.Object
	fn = b.rt.ToValue(func(call goja.ConstructorCall) *goja.Object {
		newTarget := call.NewTarget
		if newTarget == nil {
			newTarget = fn
		}
		res := b.invoke(h, fn, call.This, call.Arguments, newTarget)
		if obj, ok := res.(*goja.Object); ok {
			return obj
		}
		return nil
	}).(*goja.Object)
	b.setName(fn, name)
	return b.acquire(fn)
}

func (b *Bridge) setName(fn *goja.Object, name string) {
	_ = fn.DefineDataProperty("name", b.rt.ToValue(name), goja.FLAG_FALSE, goja.FLAG_TRUE, goja.FLAG_FALSE)
}

// invoke runs h inside a fresh call context, then converts its outcome into
// a return value or a script exception.
func (b *Bridge) invoke(h Handler, fn *goja.Object, this goja.Value, args []goja.Value, newTarget *goja.Object) goja.Value {
	c := &CallContext{
		b:         b,
		fn:        fn,
		this:      this,
		args:      args,
		newTarget: newTarget,
	}
	result, exc := c.run(h)
	if exc != nil {
		panic(exc)
	}
	return result
}

func (c *CallContext) run(h Handler) (result goja.Value, exc any) {
	c.scope = c.b.OpenScope()
	defer c.scope.Close()

	err := h(c)

	result = goja.Undefined()
	if c.ret != nil {
		result = c.ret.v
		c.ret.Release()
		c.ret = nil
	}

	switch {
	case c.thrown:
		return nil, c.exc
	case err == nil:
		return result, nil
	}

	// errors from script calls made by the handler propagate unchanged
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		return nil, interrupted
	}
	var ex *goja.Exception
	if errors.As(err, &ex) {
		return nil, ex
	}
	return nil, c.b.rt.NewGoError(err)
}

// exception converts a thrown value into the error a script call would
// have returned.
func (b *Bridge) exception(v goja.Value) error {
	return b.rt.Try(func() { panic(v) })
}
