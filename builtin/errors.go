package builtin

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

var (
	// ErrRegistryClosed is returned by [Registry.Get] after [Registry.Close].
	ErrRegistryClosed = errors.New("builtin: registry has been closed")

	// ErrUnknownModule is returned by [Registry.Get] for an undefined kind.
	ErrUnknownModule = errors.New("builtin: unknown module kind")
)

// ErrnoError is a failed system call, as surfaced to scripts.
type ErrnoError struct {
	Errno   unix.Errno
	Syscall string
	Path    string
}

// newErrnoError converts err, as returned by an op, into an ErrnoError.
// Errors not carrying an errno are reported as EIO.
func newErrnoError(err error, syscall, path string) *ErrnoError {
	var e *ErrnoError
	if errors.As(err, &e) {
		return e
	}
	var errno unix.Errno
	if !errors.As(err, &errno) {
		errno = unix.EIO
	}
	return &ErrnoError{Errno: errno, Syscall: syscall, Path: path}
}

// Code returns the symbolic name of the errno, e.g. "ENOENT".
func (e *ErrnoError) Code() string {
	if name := unix.ErrnoName(e.Errno); name != "" {
		return name
	}
	return "UNKNOWN"
}

func (e *ErrnoError) Error() string {
	msg := e.Code() + ": " + e.Errno.Error() + ", " + e.Syscall
	if e.Path != "" {
		msg += " '" + e.Path + "'"
	}
	return msg
}

func (e *ErrnoError) Unwrap() error {
	return e.Errno
}

// ExitError records a call to process.doExit. It is the value the runtime
// is interrupted with.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("builtin: process exited with code %d", e.Code)
}

// ParseError is an HTTP parse failure, as returned to scripts by the
// execute and finish methods of an HTTPParser.
type ParseError struct {
	Cause       error
	Code        string
	BytesParsed int
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("Parse Error: %s after %d bytes", e.Code, e.BytesParsed)
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}
