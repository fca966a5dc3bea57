package httpparser

import (
	"fmt"
)

// Errno identifies why a [Parser] stopped. The numbering and names follow the
// HPE_* constants of the widely deployed C http_parser, so they can be
// surfaced to scripts unchanged.
type Errno uint8

const (
	OK Errno = iota

	// Callback errors: a callback returned a non-nil error.
	CBMessageBegin
	CBURL
	CBHeaderField
	CBHeaderValue
	CBHeadersComplete
	CBBody
	CBMessageComplete
	CBStatus

	// Parsing errors.
	InvalidEOFState
	HeaderOverflow
	ClosedConnection
	InvalidVersion
	InvalidStatus
	InvalidMethod
	InvalidURL
	LFExpected
	InvalidHeaderToken
	InvalidContentLength
	UnexpectedContentLength
	InvalidChunkSize
	InvalidConstant
	InvalidInternalState

	// Paused is not a failure: the parser was paused by [Parser.Pause].
	Paused
	Unknown
)

var errnoInfo = [...]struct{ name, description string }{
	OK:                      {"HPE_OK", "success"},
	CBMessageBegin:          {"HPE_CB_message_begin", "the on_message_begin callback failed"},
	CBURL:                   {"HPE_CB_url", "the on_url callback failed"},
	CBHeaderField:           {"HPE_CB_header_field", "the on_header_field callback failed"},
	CBHeaderValue:           {"HPE_CB_header_value", "the on_header_value callback failed"},
	CBHeadersComplete:       {"HPE_CB_headers_complete", "the on_headers_complete callback failed"},
	CBBody:                  {"HPE_CB_body", "the on_body callback failed"},
	CBMessageComplete:       {"HPE_CB_message_complete", "the on_message_complete callback failed"},
	CBStatus:                {"HPE_CB_status", "the on_status callback failed"},
	InvalidEOFState:         {"HPE_INVALID_EOF_STATE", "stream ended at an unexpected time"},
	HeaderOverflow:          {"HPE_HEADER_OVERFLOW", "too many header bytes seen; overflow detected"},
	ClosedConnection:        {"HPE_CLOSED_CONNECTION", "data received after completed connection: close message"},
	InvalidVersion:          {"HPE_INVALID_VERSION", "invalid HTTP version"},
	InvalidStatus:           {"HPE_INVALID_STATUS", "invalid HTTP status code"},
	InvalidMethod:           {"HPE_INVALID_METHOD", "invalid HTTP method"},
	InvalidURL:              {"HPE_INVALID_URL", "invalid URL"},
	LFExpected:              {"HPE_LF_EXPECTED", "LF character expected"},
	InvalidHeaderToken:      {"HPE_INVALID_HEADER_TOKEN", "invalid character in header"},
	InvalidContentLength:    {"HPE_INVALID_CONTENT_LENGTH", "invalid character in content-length header"},
	UnexpectedContentLength: {"HPE_UNEXPECTED_CONTENT_LENGTH", "unexpected content-length header"},
	InvalidChunkSize:        {"HPE_INVALID_CHUNK_SIZE", "invalid character in chunk size header"},
	InvalidConstant:         {"HPE_INVALID_CONSTANT", "invalid constant string"},
	InvalidInternalState:    {"HPE_INVALID_INTERNAL_STATE", "encountered unexpected internal state"},
	Paused:                  {"HPE_PAUSED", "parser is paused"},
	Unknown:                 {"HPE_UNKNOWN", "an unknown error occurred"},
}

// String returns the HPE_* name.
func (e Errno) String() string {
	if int(e) < len(errnoInfo) {
		return errnoInfo[e].name
	}
	return errnoInfo[Unknown].name
}

// Description returns a human readable description.
func (e Errno) Description() string {
	if int(e) < len(errnoInfo) {
		return errnoInfo[e].description
	}
	return errnoInfo[Unknown].description
}

// Error is returned by [Parser.Err] and [Parser.Finish].
type Error struct {
	// Cause is the error returned by a callback, for the CB* errnos.
	Cause error
	Errno Errno
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("httpparser: %s: %v", e.Errno, e.Cause)
	}
	return fmt.Sprintf("httpparser: %s: %s", e.Errno, e.Errno.Description())
}

func (e *Error) Unwrap() error {
	return e.Cause
}
