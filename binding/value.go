package binding

import (
	"math"
	"reflect"

	"github.com/dop251/goja"
)

// Ownership is the lifetime discipline of a [Value].
type Ownership uint8

const (
	// Strong values are counted by the bridge and released explicitly.
	Strong Ownership = iota + 1
	// Borrowed values are valid until their scope closes.
	Borrowed
)

// String returns a human-readable representation of the ownership.
func (o Ownership) String() string {
	switch o {
	case Strong:
		return "strong"
	case Borrowed:
		return "borrowed"
	default:
		return "invalid"
	}
}

// Type is the tag of a script value.
type Type uint8

const (
	TypeUndefined Type = iota
	TypeNull
	TypeBool
	TypeNumber
	TypeString
	TypeObject
	TypeFunction
	// TypeOther covers symbols and bigints.
	TypeOther
)

var typeNames = [...]string{
	TypeUndefined: "undefined",
	TypeNull:      "null",
	TypeBool:      "boolean",
	TypeNumber:    "number",
	TypeString:    "string",
	TypeObject:    "object",
	TypeFunction:  "function",
	TypeOther:     "other",
}

func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return "unknown"
}

// Value is a handle to a script value, see the package documentation for
// the ownership rules.
type Value struct {
	b        *Bridge
	v        goja.Value
	scope    *Scope
	own      Ownership
	released bool
}

func (x *Value) check(op string) {
	if x == nil {
		precondition(op, "nil value")
	}
	if x.released {
		precondition(op, "value used after release")
	}
	if x.scope != nil && x.scope.closed {
		precondition(op, "borrowed value used after its scope closed")
	}
}

// Ownership returns the ownership of the handle.
func (x *Value) Ownership() Ownership {
	return x.own
}

// Valid reports whether the handle may still be used.
func (x *Value) Valid() bool {
	return x != nil && !x.released && (x.scope == nil || !x.scope.closed)
}

// Release drops a strong reference. Releasing a borrowed value, or a strong
// value more than once, panics.
func (x *Value) Release() {
	if x == nil {
		precondition("Release", "nil value")
	}
	if x.own != Strong {
		precondition("Release", "cannot release a %s value", x.own)
	}
	if x.released {
		precondition("Release", "double release")
	}
	x.released = true
	x.v = nil
	x.b.stats.Released++
}

// Dup returns a new strong reference to the same script value, regardless
// of the ownership of x.
func (x *Value) Dup() *Value {
	x.check("Dup")
	return x.b.acquire(x.v)
}

// Goja returns the underlying engine value.
func (x *Value) Goja() goja.Value {
	x.check("Goja")
	return x.v
}

// Bridge returns the bridge the value belongs to.
func (x *Value) Bridge() *Bridge {
	return x.b
}

// Type returns the tag of the value.
func (x *Value) Type() Type {
	x.check("Type")
	return typeOf(x.v)
}

func typeOf(v goja.Value) Type {
	switch {
	case v == nil || goja.IsUndefined(v):
		return TypeUndefined
	case goja.IsNull(v):
		return TypeNull
	}
	switch v := v.(type) {
	case *goja.Object:
		if _, ok := goja.AssertFunction(v); ok {
			return TypeFunction
		}
		return TypeObject
	case *goja.Symbol:
		return TypeOther
	}
	switch t := v.ExportType(); {
	case t == nil:
		return TypeOther
	case t.Kind() == reflect.Bool:
		return TypeBool
	case t.Kind() == reflect.Int64, t.Kind() == reflect.Float64:
		return TypeNumber
	case t.Kind() == reflect.String:
		return TypeString
	default:
		return TypeOther
	}
}

func (x *Value) IsUndefined() bool { return x.Type() == TypeUndefined }
func (x *Value) IsNull() bool      { return x.Type() == TypeNull }
func (x *Value) IsBool() bool      { return x.Type() == TypeBool }
func (x *Value) IsNumber() bool    { return x.Type() == TypeNumber }
func (x *Value) IsString() bool    { return x.Type() == TypeString }
func (x *Value) IsFunction() bool  { return x.Type() == TypeFunction }

// IsObject reports whether the value is an object, including functions.
func (x *Value) IsObject() bool {
	t := x.Type()
	return t == TypeObject || t == TypeFunction
}

// Bool converts the value using ECMAScript ToBoolean.
func (x *Value) Bool() bool {
	x.check("Bool")
	return x.v.ToBoolean()
}

// Float64 converts the value using ECMAScript ToNumber.
func (x *Value) Float64() float64 {
	x.check("Float64")
	return x.v.ToFloat()
}

// Float32 converts the value using ECMAScript ToNumber, narrowed to float32.
func (x *Value) Float32() float32 {
	return float32(x.Float64())
}

// Int32 converts the value the way the engine coerces numbers to int32
// (as in x|0): truncation toward zero, wrapping on overflow. NaN and
// infinities convert to 0.
func (x *Value) Int32() int32 {
	x.check("Int32")
	if i, ok := exportInt(x.v); ok {
		return int32(i)
	}
	return toInt32(x.v.ToFloat())
}

func exportInt(v goja.Value) (int64, bool) {
	if _, ok := v.(*goja.Object); ok || v == nil {
		return 0, false
	}
	i, ok := v.Export().(int64)
	return i, ok
}

func toInt32(f float64) int32 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return int32(int64(f))
}

// Int64 converts the value by truncation toward zero, saturating at the
// bounds of int64. NaN converts to 0.
func (x *Value) Int64() int64 {
	x.check("Int64")
	if i, ok := exportInt(x.v); ok {
		return i
	}
	return toInt64(x.v.ToFloat())
}

func toInt64(f float64) int64 {
	switch {
	case math.IsNaN(f):
		return 0
	case f >= math.MaxInt64:
		return math.MaxInt64
	case f <= math.MinInt64:
		return math.MinInt64
	default:
		return int64(f)
	}
}

// StringBuffer extracts the value, which must be a string, as UTF-8. The
// caller must release the buffer.
func (x *Value) StringBuffer() *StringBuffer {
	x.check("StringBuffer")
	if typeOf(x.v) != TypeString {
		precondition("StringBuffer", "value is %s, not a string", typeOf(x.v))
	}
	x.b.stats.LiveStrings++
	return &StringBuffer{b: x.b, data: []byte(x.v.String())}
}

// StringLength returns the UTF-8 length of the value, which must be a
// string.
func (x *Value) StringLength() int {
	x.check("StringLength")
	if typeOf(x.v) != TypeString {
		precondition("StringLength", "value is %s, not a string", typeOf(x.v))
	}
	return len(x.v.String())
}

// ToString converts the value using ECMAScript ToString.
func (x *Value) ToString() string {
	x.check("ToString")
	return x.v.String()
}

// Export returns the Go representation of the value, see [goja.Value.Export].
func (x *Value) Export() any {
	x.check("Export")
	return x.v.Export()
}

// Bytes returns the backing memory of a Uint8Array (or subclass). The slice
// aliases the script buffer.
func (x *Value) Bytes() ([]byte, bool) {
	x.check("Bytes")
	obj, ok := x.v.(*goja.Object)
	if !ok {
		return nil, false
	}
	b, ok := obj.Export().([]byte)
	return b, ok
}

// StrictEquals compares two values using ECMAScript ===.
func (x *Value) StrictEquals(other *Value) bool {
	x.check("StrictEquals")
	other.check("StrictEquals")
	return x.v.StrictEquals(other.v)
}

func (x *Value) object(op string) *goja.Object {
	x.check(op)
	obj, ok := x.v.(*goja.Object)
	if !ok {
		precondition(op, "value is %s, not an object", typeOf(x.v))
	}
	return obj
}

// Object returns the underlying engine object, panicking if the value is
// not an object.
func (x *Value) Object() *goja.Object {
	return x.object("Object")
}

// Get reads a property, returning a strong value.
func (x *Value) Get(name string) *Value {
	return x.b.acquire(x.object("Get").Get(name))
}

// Set writes a property. A non-writable property is a precondition
// violation.
func (x *Value) Set(name string, v *Value) {
	obj := x.object("Set")
	if err := obj.Set(name, v.Goja()); err != nil {
		panic(&PreconditionError{Op: "Set", Message: name, Cause: err})
	}
}

// SetMethod defines a native method on the object.
func (x *Value) SetMethod(name string, h Handler) {
	obj := x.object("SetMethod")
	fn := x.b.newFunction(name, h)
	if err := obj.Set(name, fn); err != nil {
		panic(&PreconditionError{Op: "SetMethod", Message: name, Cause: err})
	}
}

// Call invokes the value as a function. The result is strong. A script
// exception is returned as a [*goja.Exception].
func (x *Value) Call(this *Value, args ...*Value) (*Value, error) {
	x.check("Call")
	fn, ok := goja.AssertFunction(x.v)
	if !ok {
		precondition("Call", "value is %s, not a function", typeOf(x.v))
	}
	thisV := goja.Undefined()
	if this != nil {
		thisV = this.Goja()
	}
	res, err := fn(thisV, gojaValues(args)...)
	if err != nil {
		return nil, err
	}
	return x.b.acquire(res), nil
}

// CallMethod invokes the named method with the object as receiver. A
// missing method is reported as a script TypeError.
func (x *Value) CallMethod(name string, args ...*Value) (*Value, error) {
	method := x.Get(name)
	defer method.Release()
	if !method.IsFunction() {
		return nil, x.b.exception(x.b.rt.NewTypeError("%s is not a function", name))
	}
	return method.Call(x, args...)
}

// New invokes the value as a constructor, returning a strong object.
func (x *Value) New(args ...*Value) (*Value, error) {
	x.check("New")
	obj, err := x.b.rt.New(x.v, gojaValues(args)...)
	if err != nil {
		return nil, err
	}
	return x.b.acquire(obj), nil
}

func gojaValues(args []*Value) []goja.Value {
	values := make([]goja.Value, len(args))
	for i, arg := range args {
		if arg == nil {
			values[i] = goja.Undefined()
			continue
		}
		values[i] = arg.Goja()
	}
	return values
}

// StringBuffer is an owned UTF-8 copy of a script string.
type StringBuffer struct {
	b        *Bridge
	data     []byte
	released bool
}

// Bytes returns the contents. Valid until Release.
func (s *StringBuffer) Bytes() []byte {
	if s.released {
		precondition("StringBuffer.Bytes", "buffer used after release")
	}
	return s.data
}

// String returns the contents as a Go string.
func (s *StringBuffer) String() string {
	return string(s.Bytes())
}

// Len returns the length in bytes, including any NUL bytes.
func (s *StringBuffer) Len() int {
	return len(s.Bytes())
}

// Release frees the buffer. Releasing twice panics.
func (s *StringBuffer) Release() {
	if s.released {
		precondition("StringBuffer.Release", "double release")
	}
	s.released = true
	s.data = nil
	s.b.stats.LiveStrings--
}
