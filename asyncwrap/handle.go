package asyncwrap

import (
	"errors"

	"github.com/joeycumines/goja-nativecore/binding"
)

// ErrHandleClosed is returned when starting a closed handle.
var ErrHandleClosed = errors.New("asyncwrap: handle has been closed")

// State is the arm state of a [HandleWrap].
type State uint8

const (
	Idle State = iota
	Armed
	Closed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Armed:
		return "Armed"
	case Closed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// Resource is the native side of a durable handle.
type Resource interface {
	// Stop disarms the resource. No callbacks may fire after it returns.
	Stop() error
	// Close releases the resource. It is called once, after Stop.
	Close()
}

// HandleWrap binds a durable resource to its owning script object.
type HandleWrap struct {
	tracker   *Tracker
	bridge    *binding.Bridge
	owner     *binding.Value
	callback  *binding.Value
	resource  Resource
	kind      binding.NativeKind
	state     State
	repeating bool
}

// NewHandleWrap attaches a new durable binding to owner's native slot. The
// wrap holds a strong reference to owner until closed.
func NewHandleWrap(tracker *Tracker, bridge *binding.Bridge, owner *binding.Value, kind binding.NativeKind, resource Resource) *HandleWrap {
	h := &HandleWrap{
		tracker:  tracker,
		bridge:   bridge,
		owner:    owner.Dup(),
		resource: resource,
		kind:     kind,
	}
	h.owner.SetNative(h)
	tracker.alloc(kind)
	return h
}

// FromOwner recovers the binding attached to owner. A missing or foreign
// binding is a fatal precondition violation.
func FromOwner(owner *binding.Value, kind binding.NativeKind) *HandleWrap {
	h, ok := owner.Native(kind).(*HandleWrap)
	if !ok {
		panic(&binding.PreconditionError{Op: "FromOwner", Message: "native data is not a handle"})
	}
	return h
}

// NativeKind implements [binding.Native].
func (h *HandleWrap) NativeKind() binding.NativeKind {
	return h.kind
}

// State returns the arm state.
func (h *HandleWrap) State() State {
	return h.state
}

// Owner returns the owning object, borrowed from the wrap. It is nil once
// closed.
func (h *HandleWrap) Owner() *binding.Value {
	return h.owner
}

// Resource returns the native resource.
func (h *HandleWrap) Resource() Resource {
	return h.resource
}

// Start records callback and arms the resource via arm, which receives the
// function the resource must call each time it fires. On error the handle
// is left as it was.
func (h *HandleWrap) Start(callback *binding.Value, repeating bool, arm func(fire func()) error) error {
	if h.state == Closed {
		return ErrHandleClosed
	}
	if !callback.IsFunction() {
		panic(&binding.PreconditionError{Op: "HandleWrap.Start", Message: "callback is not a function"})
	}
	if err := arm(h.Fire); err != nil {
		return err
	}
	if h.callback != nil {
		h.callback.Release()
	}
	h.callback = callback.Dup()
	h.repeating = repeating
	h.state = Armed
	return nil
}

// Stop disarms the resource. The callback is retained for a later Start.
func (h *HandleWrap) Stop() error {
	if h.state == Closed {
		return nil
	}
	err := h.resource.Stop()
	h.state = Idle
	return err
}

// Fire invokes the callback with the owner as receiver. A non-repeating
// handle transitions to Idle first. Firing a handle that is not armed is a
// no-op.
func (h *HandleWrap) Fire() {
	if h.state != Armed {
		return
	}
	if !h.repeating {
		h.state = Idle
	}
	// the callback may close the handle
	cb, owner := h.callback.Dup(), h.owner.Dup()
	defer cb.Release()
	defer owner.Release()
	res, err := h.bridge.MakeCallback(cb, owner)
	if err != nil {
		h.bridge.ReportUncaught(err)
		return
	}
	res.Release()
}

// Close stops the resource, releases it, detaches from the owner and drops
// all references. Closing twice is a no-op.
func (h *HandleWrap) Close() {
	if h.state == Closed {
		return
	}
	_ = h.resource.Stop()
	h.resource.Close()
	h.state = Closed
	h.owner.ClearNative()
	h.owner.Release()
	h.owner = nil
	if h.callback != nil {
		h.callback.Release()
		h.callback = nil
	}
	h.tracker.free(h.kind)
}
