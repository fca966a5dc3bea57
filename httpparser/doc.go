// Package httpparser implements a streaming, callback driven HTTP/1.x
// message parser.
//
// A [Parser] is fed arbitrary slices of a byte stream via [Parser.Execute]
// and reports what it finds through [Callbacks], in protocol order:
//
//	OnMessageBegin
//	OnURL (requests) or OnStatus (responses), possibly repeated
//	OnHeaderField / OnHeaderValue, interleaved, possibly repeated
//	OnHeadersComplete
//	OnBody, zero or more times
//	OnMessageComplete
//
// Data callbacks receive sub-slices of the input and never copies, so a
// value split across two Execute calls is delivered in two parts. Chunked
// transfer encoding is decoded (trailers are reported as header fields),
// Content-Length and read-until-EOF bodies are supported, as are
// keep-alive, pipelining, and protocol upgrades.
//
// Failures and codes mirror the C http_parser: an [Errno] with HPE_* names,
// and [Method] values numbered identically, so they can be exposed to
// scripts that expect them.
package httpparser
