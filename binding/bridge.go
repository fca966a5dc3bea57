package binding

import (
	"errors"

	"github.com/dop251/goja"
	"github.com/joeycumines/logiface"
)

// Stats is a snapshot of a bridge's reference accounting.
type Stats struct {
	// Acquired is the total number of strong values ever acquired.
	Acquired int64
	// Released is the total number of strong values ever released.
	Released int64
	// Live is Acquired minus Released.
	Live int64
	// LiveStrings is the number of unreleased [StringBuffer] instances.
	LiveStrings int64
	// OpenScopes is the depth of the scope stack.
	OpenScopes int
}

// Bridge binds native code to a single goja runtime. It is not safe for
// concurrent use, and must only be used from the goroutine driving the
// runtime.
type Bridge struct {
	rt        *goja.Runtime
	logger    *logiface.Logger[logiface.Event]
	nativeSym *goja.Symbol
	uncaught  func(err error)
	fatal     error
	scopes    []*Scope
	ticks     TickQueue
	stats     Stats
}

// NewBridge creates a bridge for rt.
func NewBridge(rt *goja.Runtime, opts ...BridgeOption) (*Bridge, error) {
	if rt == nil {
		return nil, errors.New("binding: runtime must not be nil")
	}
	cfg, err := resolveBridgeOptions(opts)
	if err != nil {
		return nil, err
	}
	return &Bridge{
		rt:        rt,
		logger:    cfg.logger,
		nativeSym: goja.NewSymbol("native"),
		uncaught:  cfg.uncaught,
	}, nil
}

// Runtime returns the underlying goja runtime.
func (b *Bridge) Runtime() *goja.Runtime {
	return b.rt
}

// Ticks returns the deferred queue drained by [Bridge.MakeCallback].
func (b *Bridge) Ticks() *TickQueue {
	return &b.ticks
}

// Stats returns a snapshot of the reference accounting.
func (b *Bridge) Stats() Stats {
	s := b.stats
	s.Live = s.Acquired - s.Released
	s.OpenScopes = len(b.scopes)
	return s
}

// Wrap adopts an existing engine value. A strong wrap is counted, and must
// be released. A borrowed wrap is tied to the innermost open scope, and
// panics if there is none.
func (b *Bridge) Wrap(v goja.Value, own Ownership) *Value {
	if v == nil {
		v = goja.Undefined()
	}
	switch own {
	case Strong:
		return b.acquire(v)
	case Borrowed:
		if len(b.scopes) == 0 {
			precondition("Wrap", "borrowed value requires an open scope")
		}
		return b.scopes[len(b.scopes)-1].Borrow(v)
	default:
		precondition("Wrap", "invalid ownership %d", own)
		return nil
	}
}

func (b *Bridge) acquire(v goja.Value) *Value {
	b.stats.Acquired++
	return &Value{b: b, v: v, own: Strong}
}

// Undefined returns a strong undefined value.
func (b *Bridge) Undefined() *Value { return b.acquire(goja.Undefined()) }

// Null returns a strong null value.
func (b *Bridge) Null() *Value { return b.acquire(goja.Null()) }

// Bool returns a strong boolean value.
func (b *Bridge) Bool(v bool) *Value { return b.acquire(b.rt.ToValue(v)) }

// Int32 returns a strong number value.
func (b *Bridge) Int32(v int32) *Value { return b.acquire(b.rt.ToValue(int64(v))) }

// Int64 returns a strong number value.
func (b *Bridge) Int64(v int64) *Value { return b.acquire(b.rt.ToValue(v)) }

// Float32 returns a strong number value.
func (b *Bridge) Float32(v float32) *Value { return b.acquire(b.rt.ToValue(float64(v))) }

// Float64 returns a strong number value.
func (b *Bridge) Float64(v float64) *Value { return b.acquire(b.rt.ToValue(v)) }

// String returns a strong string value.
func (b *Bridge) String(v string) *Value { return b.acquire(b.rt.ToValue(v)) }

// NewObject returns a strong, empty object.
func (b *Bridge) NewObject() *Value { return b.acquire(b.rt.NewObject()) }

// NewArray returns a strong array holding items, in order. The items are
// not consumed.
func (b *Bridge) NewArray(items ...*Value) *Value {
	values := make([]any, len(items))
	for i, item := range items {
		values[i] = item.Goja()
	}
	return b.acquire(b.rt.NewArray(values...))
}

// NewError constructs a strong error object of the given kind.
func (b *Bridge) NewError(kind ErrorKind, message string) *Value {
	ctor, ok := b.rt.Get(kind.String()).(*goja.Object)
	if !ok {
		precondition("NewError", "no constructor for %s", kind)
	}
	obj, err := b.rt.New(ctor, b.rt.ToValue(message))
	if err != nil {
		panic(&PreconditionError{Op: "NewError", Message: "constructor failed", Cause: err})
	}
	return b.acquire(obj)
}

// Global returns a strong handle to the global object.
func (b *Bridge) Global() *Value {
	return b.acquire(b.rt.GlobalObject())
}

// OpenScope opens a scope for borrowed values. Scopes must be closed in
// reverse order of opening.
func (b *Bridge) OpenScope() *Scope {
	s := &Scope{b: b}
	b.scopes = append(b.scopes, s)
	return s
}

// Scoped runs fn inside a new scope.
func (b *Bridge) Scoped(fn func(s *Scope)) {
	s := b.OpenScope()
	defer s.Close()
	fn(s)
}

// Scope bounds the lifetime of borrowed values.
type Scope struct {
	b      *Bridge
	closed bool
}

// Borrow wraps v as a borrowed value, valid until the scope closes.
func (s *Scope) Borrow(v goja.Value) *Value {
	if s.closed {
		precondition("Borrow", "scope is closed")
	}
	if v == nil {
		v = goja.Undefined()
	}
	return &Value{b: s.b, v: v, own: Borrowed, scope: s}
}

// Close invalidates every value borrowed from the scope. Closing twice is a
// no-op.
func (s *Scope) Close() {
	if s.closed {
		return
	}
	scopes := s.b.scopes
	if len(scopes) == 0 || scopes[len(scopes)-1] != s {
		precondition("Scope.Close", "scope closed out of order")
	}
	s.closed = true
	scopes[len(scopes)-1] = nil
	s.b.scopes = scopes[:len(scopes)-1]
}
