package asyncwrap

import (
	"github.com/joeycumines/goja-nativecore/binding"
	"golang.org/x/sys/unix"
)

// Submitter runs op off the loop goroutine, then calls done on it. It is
// satisfied by [eventloop.Loop].
//
// [eventloop.Loop]: github.com/joeycumines/goja-nativecore/eventloop.Loop
type Submitter interface {
	Submit(op func() error, done func(err error)) error
}

// After converts the outcome of an op into callback arguments, on the loop
// goroutine. The returned values are owned by the caller of After.
type After func(err error) []*binding.Value

// ReqWrap binds a one-shot request to its completion callback.
type ReqWrap struct {
	tracker  *Tracker
	bridge   *binding.Bridge
	req      *binding.Value
	callback *binding.Value
	kind     binding.NativeKind
	done     bool
}

// NewReqWrap creates a one-shot binding for callback, which must be a
// function. The binding is attached to a fresh request object, from which
// it is recovered on completion.
func NewReqWrap(tracker *Tracker, bridge *binding.Bridge, kind binding.NativeKind, callback *binding.Value) *ReqWrap {
	if !callback.IsFunction() {
		panic(&binding.PreconditionError{Op: "NewReqWrap", Message: "callback is not a function"})
	}
	r := &ReqWrap{
		tracker:  tracker,
		bridge:   bridge,
		req:      bridge.NewObject(),
		callback: callback.Dup(),
		kind:     kind,
	}
	r.req.SetNative(r)
	tracker.alloc(kind)
	return r
}

// NativeKind implements [binding.Native].
func (r *ReqWrap) NativeKind() binding.NativeKind {
	return r.kind
}

// Request returns the request object the binding is attached to.
func (r *ReqWrap) Request() *binding.Value {
	return r.req
}

// Dispatch submits op, arranging for after and then the callback to run on
// completion. If s rejects the op, the completion runs inline with
// ECANCELED, through the same path.
func (r *ReqWrap) Dispatch(s Submitter, op func() error, after After) {
	req := r.req
	done := func(err error) {
		// locate the binding through the request object, as a foreign
		// completion would
		wrap, ok := req.Native(r.kind).(*ReqWrap)
		if !ok || wrap != r {
			panic(&binding.PreconditionError{Op: "ReqWrap.Dispatch", Message: "request object lost its binding"})
		}
		wrap.Complete(after(err)...)
	}
	if err := s.Submit(op, done); err != nil {
		done(unix.ECANCELED)
	}
}

// Complete invokes the callback with args (which it takes ownership of),
// with a null receiver, then releases the binding. Completing twice is a
// fatal precondition violation.
func (r *ReqWrap) Complete(args ...*binding.Value) {
	if r.done {
		panic(&binding.PreconditionError{Op: "ReqWrap.Complete", Message: "request completed twice"})
	}
	r.done = true

	null := r.bridge.Null()
	defer func() {
		null.Release()
		for _, arg := range args {
			if arg != nil {
				arg.Release()
			}
		}
		r.release()
	}()

	res, err := r.bridge.MakeCallback(r.callback, null, args...)
	if err != nil {
		r.bridge.ReportUncaught(err)
		return
	}
	res.Release()
}

// Done reports whether the request has completed.
func (r *ReqWrap) Done() bool {
	return r.done
}

func (r *ReqWrap) release() {
	r.req.ClearNative()
	r.req.Release()
	r.callback.Release()
	r.req, r.callback = nil, nil
	r.tracker.free(r.kind)
}
