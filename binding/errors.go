package binding

import (
	"errors"
	"fmt"
)

// ErrThrown is returned by [CallContext.Throw] and [CallContext.ThrowValue].
// Handlers return it to signal that the call context holds an exception.
var ErrThrown = errors.New("binding: exception thrown")

// PreconditionError reports a violated invariant in native code. It is
// always raised as a panic.
type PreconditionError struct {
	Cause   error
	Op      string
	Message string
}

// Error implements the error interface.
func (e *PreconditionError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "precondition violated"
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return "binding: " + msg
}

// Unwrap returns the underlying cause for use with [errors.Is] and [errors.As].
func (e *PreconditionError) Unwrap() error {
	return e.Cause
}

func precondition(op, format string, args ...any) {
	panic(&PreconditionError{Op: op, Message: fmt.Sprintf(format, args...)})
}
