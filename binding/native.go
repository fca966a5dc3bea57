package binding

import (
	"github.com/dop251/goja"
)

// NativeKind tags the native state attached to a script object.
type NativeKind uint8

const (
	KindNone NativeKind = iota
	KindTimer
	KindFSReq
	KindHTTPParser
	KindModule
)

func (k NativeKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindTimer:
		return "timer"
	case KindFSReq:
		return "fsreq"
	case KindHTTPParser:
		return "httpparser"
	case KindModule:
		return "module"
	default:
		return "unknown"
	}
}

// Native is state attached to a script object, recovered by kind.
type Native interface {
	NativeKind() NativeKind
}

// nativeSlot is the engine-side holder for attached state. It records the
// object it was attached to, so a slot copied onto another object by
// script is rejected.
type nativeSlot struct {
	owner  *goja.Object
	native Native
}

// SetNative attaches n to the object, replacing any existing state.
func (x *Value) SetNative(n Native) {
	obj := x.object("SetNative")
	if n == nil {
		precondition("SetNative", "nil native")
	}
	slot := x.b.rt.ToValue(&nativeSlot{owner: obj, native: n})
	if err := obj.DefineDataPropertySymbol(x.b.nativeSym, slot, goja.FLAG_TRUE, goja.FLAG_TRUE, goja.FLAG_FALSE); err != nil {
		panic(&PreconditionError{Op: "SetNative", Message: "object is not extensible", Cause: err})
	}
}

// HasNative reports whether state of the given kind is attached.
func (x *Value) HasNative(kind NativeKind) bool {
	obj, ok := x.Goja().(*goja.Object)
	if !ok {
		return false
	}
	slot := x.b.slot(obj)
	return slot != nil && slot.native.NativeKind() == kind
}

// Native returns the attached state, which must exist and be of the given
// kind.
func (x *Value) Native(kind NativeKind) Native {
	obj := x.object("Native")
	slot := x.b.slot(obj)
	if slot == nil {
		precondition("Native", "no native data attached, want %s", kind)
	}
	if got := slot.native.NativeKind(); got != kind {
		precondition("Native", "native data is %s, want %s", got, kind)
	}
	return slot.native
}

// ClearNative detaches any attached state.
func (x *Value) ClearNative() {
	obj := x.object("ClearNative")
	_ = obj.DeleteSymbol(x.b.nativeSym)
}

func (b *Bridge) slot(obj *goja.Object) *nativeSlot {
	v := obj.GetSymbol(b.nativeSym)
	if v == nil {
		return nil
	}
	slot, ok := v.Export().(*nativeSlot)
	if !ok || slot == nil || slot.owner != obj {
		return nil
	}
	return slot
}
