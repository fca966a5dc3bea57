package eventloop

import (
	"errors"
	"fmt"
)

// Standard errors.
var (
	// ErrLoopTerminated is returned when operations are attempted on a closed loop.
	ErrLoopTerminated = errors.New("eventloop: loop has been terminated")

	// ErrReentrantRun is returned by Run (and panicked by RunOnce) when called
	// from within a callback already being dispatched by the loop.
	ErrReentrantRun = errors.New("eventloop: cannot run the loop from within the loop")

	// ErrTimerClosed is returned when starting a timer that has been closed.
	ErrTimerClosed = errors.New("eventloop: timer has been closed")

	// ErrNilCallback is returned when a nil callback is provided.
	ErrNilCallback = errors.New("eventloop: callback must not be nil")
)

// PanicError wraps a value recovered from a panicking op, see [Loop.Submit].
type PanicError struct {
	Value any
}

func (e PanicError) Error() string {
	return fmt.Sprintf("eventloop: op panicked: %v", e.Value)
}

// Unwrap returns the underlying error if the panic value is an error type.
// This enables use with [errors.Is] and [errors.As].
//
// If the panic Value is not an error (e.g., a string or other type),
// returns nil.
func (e PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// RangeError represents a range error, similar to JavaScript's RangeError.
// This is used when a duration or count is not within the expected range.
type RangeError struct {
	Cause   error
	Message string
}

// Error implements the error interface.
func (e *RangeError) Error() string {
	if e.Message == "" {
		return "range error"
	}
	return e.Message
}

// Unwrap returns the underlying cause for use with [errors.Is] and [errors.As].
func (e *RangeError) Unwrap() error {
	return e.Cause
}

// WrapError wraps an error with a message and optional cause chain.
//
// The result satisfies errors.Is(result, cause) == true.
func WrapError(message string, cause error) error {
	return fmt.Errorf("%s: %w", message, cause)
}
