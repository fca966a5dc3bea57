package httpparser

import (
	"bytes"
	"math"
	"strings"
)

// MaxHeaderSize bounds the bytes of a start line plus headers (or of a
// trailer section) that a single message may carry.
const MaxHeaderSize = 80 * 1024

// Type selects whether a [Parser] expects requests or responses.
type Type uint8

const (
	Request Type = iota
	Response
)

func (t Type) String() string {
	switch t {
	case Request:
		return "REQUEST"
	case Response:
		return "RESPONSE"
	default:
		return "UNKNOWN"
	}
}

// Callbacks receives parse events, in protocol order. The data callbacks
// receive sub-slices of the buffer passed to [Parser.Execute], valid only for
// the duration of the call; a single logical value may be delivered across
// several calls, if it spans several Execute buffers.
//
// A non-nil error stops the parser, with the corresponding CB* [Errno].
type Callbacks interface {
	OnMessageBegin() error
	OnURL(b []byte) error
	OnStatus(b []byte) error
	OnHeaderField(b []byte) error
	OnHeaderValue(b []byte) error
	// OnHeadersComplete may return skipBody to indicate the message has no
	// body regardless of its headers, e.g. the response to a HEAD request.
	OnHeadersComplete() (skipBody bool, err error)
	OnBody(b []byte) error
	OnMessageComplete() error
}

// NopCallbacks implements [Callbacks] by doing nothing. Embed it to
// implement a subset.
type NopCallbacks struct{}

func (NopCallbacks) OnMessageBegin() error { return nil }

func (NopCallbacks) OnURL([]byte) error { return nil }

func (NopCallbacks) OnStatus([]byte) error { return nil }

func (NopCallbacks) OnHeaderField([]byte) error { return nil }

func (NopCallbacks) OnHeaderValue([]byte) error { return nil }

func (NopCallbacks) OnHeadersComplete() (skipBody bool, err error) { return false, nil }

func (NopCallbacks) OnBody([]byte) error { return nil }

func (NopCallbacks) OnMessageComplete() error { return nil }

type state uint8

const (
	sDead state = iota
	sStartReq
	sStartRes

	// start line and headers, counted against MaxHeaderSize
	sReqMethod
	sReqSpacesBeforeURL
	sReqURL
	sReqHTTPStart
	sResHTTPStart
	sVersionMajor
	sVersionDot
	sVersionMinor
	sVersionEnd
	sResFirstStatus
	sResStatusCode
	sResStatusStart
	sResStatus
	sLineAlmostDone
	sHeaderFieldStart
	sHeaderField
	sHeaderValueStart
	sHeaderValue
	sHeaderValueAlmostDone
	sHeadersAlmostDone

	sChunkSizeStart
	sChunkSize
	sChunkParameters
	sChunkSizeAlmostDone
	sChunkData
	sChunkDataAlmostDone
	sChunkDataDone
	sBodyIdentity
	sBodyIdentityEOF
	sMessageDone
)

func (s state) inHead() bool {
	return s >= sReqMethod && s <= sHeadersAlmostDone
}

type flags uint8

const (
	fChunked flags = 1 << iota
	fConnectionKeepAlive
	fConnectionClose
	fConnectionUpgrade
	fTrailing
	fUpgrade
	fSkipBody
	fContentLength
)

type span uint8

const (
	spanNone span = iota
	spanURL
	spanStatus
	spanField
	spanValue
)

type headerKind uint8

const (
	hOther headerKind = iota
	hContentLength
	hTransferEncoding
	hConnection
	hUpgrade
)

// maxHeaderName bounds how much of a header name is retained to recognise
// the headers that affect framing. Longer names are never special.
const maxHeaderName = len("transfer-encoding")

// Parser is a streaming HTTP/1.x parser. It never buffers input: every
// byte is either consumed or reported as not consumed by [Parser.Execute].
// A Parser is not safe for concurrent use.
type Parser struct {
	cb    Callbacks
	err   error
	typ   Type
	state state
	errno Errno
	flags flags
	span  span
	mark  int

	method     Method
	statusCode int
	major      int
	minor      int
	upgrade    bool

	// contentLength is -1 when absent; remaining counts body or chunk
	// bytes still expected
	contentLength int64
	remaining     int64
	nread         int

	index     int
	methodBuf [maxMethodLen]byte
	methodLen int

	hkind  headerKind
	hname  [maxHeaderName]byte
	hlen   int
	hlong  bool
	hvalue []byte
	digits int
}

// New returns a parser for messages of type t.
func New(t Type, cb Callbacks) *Parser {
	p := &Parser{cb: cb}
	p.Reinitialize(t)
	return p
}

// Reinitialize resets the parser, discarding any partial message, to parse
// messages of type t.
func (p *Parser) Reinitialize(t Type) {
	cb, hvalue := p.cb, p.hvalue[:0]
	*p = Parser{cb: cb, typ: t, hvalue: hvalue, contentLength: -1}
	p.state = p.startState()
}

func (p *Parser) startState() state {
	if p.typ == Response {
		return sStartRes
	}
	return sStartReq
}

// Type returns the message type being parsed.
func (p *Parser) Type() Type { return p.typ }

// Method returns the request method of the current or last request.
func (p *Parser) Method() Method { return p.method }

// StatusCode returns the status code of the current or last response.
func (p *Parser) StatusCode() int { return p.statusCode }

// Major returns the major HTTP version.
func (p *Parser) Major() int { return p.major }

// Minor returns the minor HTTP version.
func (p *Parser) Minor() int { return p.minor }

// Upgrade reports whether the message asked to switch protocols (an
// Upgrade handshake, or CONNECT). It is set before OnHeadersComplete. Once
// such a message completes, Execute stops, leaving the remaining bytes
// unconsumed as they belong to the new protocol.
func (p *Parser) Upgrade() bool { return p.upgrade }

// Errno returns the reason the parser stopped, or OK.
func (p *Parser) Errno() Errno { return p.errno }

// Err returns the error the parser stopped with, if any. It is nil while
// paused.
func (p *Parser) Err() error {
	if p.errno == OK || p.errno == Paused {
		return nil
	}
	return &Error{Errno: p.errno, Cause: p.err}
}

// Paused reports whether the parser is paused.
func (p *Parser) Paused() bool { return p.errno == Paused }

// Pause pauses or resumes the parser. It may be called from a callback, in
// which case Execute returns after that callback. Only a parser that is
// running, or paused, changes state.
func (p *Parser) Pause(paused bool) {
	switch {
	case paused && p.errno == OK:
		p.errno = Paused
	case !paused && p.errno == Paused:
		p.errno = OK
	}
}

// ShouldKeepAlive reports whether the connection may carry another message
// after the current one.
func (p *Parser) ShouldKeepAlive() bool {
	if p.major > 0 && p.minor > 0 {
		if p.flags&fConnectionClose != 0 {
			return false
		}
	} else if p.flags&fConnectionKeepAlive == 0 {
		return false
	}
	return !p.needsEOF()
}

// BodyIsFinal reports whether the body being parsed is the last of a
// chunked message.
func (p *Parser) BodyIsFinal() bool {
	return p.state == sHeaderFieldStart && p.flags&fTrailing != 0
}

func (p *Parser) needsEOF() bool {
	if p.typ == Request {
		return false
	}
	if p.statusCode/100 == 1 || p.statusCode == 204 || p.statusCode == 304 || p.flags&fSkipBody != 0 {
		return false
	}
	if p.flags&fChunked != 0 || p.contentLength >= 0 {
		return false
	}
	return true
}

func (p *Parser) newMessageState() state {
	if p.ShouldKeepAlive() {
		return p.startState()
	}
	return sDead
}

// Finish signals the end of the stream. Only a response delimited by the
// end of the stream completes here; ending mid-message is an error.
func (p *Parser) Finish() error {
	if p.errno != OK {
		return p.Err()
	}
	switch p.state {
	case sBodyIdentityEOF, sMessageDone:
		p.completeMessage()
		return p.Err()
	case sDead, sStartReq, sStartRes:
		return nil
	default:
		p.errno = InvalidEOFState
		return p.Err()
	}
}

func (p *Parser) callbackFailed(e Errno, err error) {
	if err != nil {
		p.errno, p.err = e, err
	}
}

func (p *Parser) messageBegin() bool {
	p.flags = 0
	p.contentLength = -1
	p.remaining = 0
	p.upgrade = false
	p.statusCode = 0
	p.method = 0
	p.major, p.minor = 0, 0
	p.nread = 0
	p.callbackFailed(CBMessageBegin, p.cb.OnMessageBegin())
	return p.errno == OK
}

func (p *Parser) messageComplete() bool {
	p.callbackFailed(CBMessageComplete, p.cb.OnMessageComplete())
	return p.errno == OK
}

func (p *Parser) completeMessage() bool {
	p.state = p.newMessageState()
	return p.messageComplete()
}

func (p *Parser) emitSpan(b []byte) bool {
	kind := p.span
	p.span = spanNone
	switch kind {
	case spanURL:
		p.callbackFailed(CBURL, p.cb.OnURL(b))
	case spanStatus:
		p.callbackFailed(CBStatus, p.cb.OnStatus(b))
	case spanField:
		p.callbackFailed(CBHeaderField, p.cb.OnHeaderField(b))
	case spanValue:
		p.callbackFailed(CBHeaderValue, p.cb.OnHeaderValue(b))
	}
	return p.errno == OK
}

func (p *Parser) body(b []byte) bool {
	p.callbackFailed(CBBody, p.cb.OnBody(b))
	return p.errno == OK
}

// Execute parses data, returning the number of bytes consumed. Fewer than
// len(data) bytes are consumed when the parser fails (see [Parser.Errno]),
// is paused, or completes an upgrade. Execute on a stopped or paused parser
// returns 0.
func (p *Parser) Execute(data []byte) int {
	if p.errno != OK {
		return 0
	}
	// a body callback may have paused the parser just before completion
	if p.state == sMessageDone && !p.completeMessage() {
		return 0
	}
	if p.span != spanNone {
		p.mark = 0
	}

	i := 0
	for i < len(data) {
		if p.state.inHead() {
			p.nread++
			if p.nread > MaxHeaderSize {
				p.errno = HeaderOverflow
				return i
			}
		}

		switch p.state {
		case sBodyIdentity, sChunkData:
			n := int(min(p.remaining, int64(len(data)-i)))
			p.remaining -= int64(n)
			chunk := data[i : i+n]
			i += n
			if p.remaining == 0 {
				if p.state == sChunkData {
					p.state = sChunkDataAlmostDone
				} else {
					p.state = sMessageDone
				}
			}
			if !p.body(chunk) {
				return i
			}
			if p.state == sMessageDone && !p.completeMessage() {
				return i
			}
			continue

		case sBodyIdentityEOF:
			chunk := data[i:]
			i = len(data)
			if !p.body(chunk) {
				return i
			}
			continue
		}

		if n, stop := p.step(data, i); stop {
			return n
		}
		i++
	}

	if p.span != spanNone && p.mark < len(data) {
		kind := p.span
		p.emitSpan(data[p.mark:])
		p.span = kind
	}
	return len(data)
}

// step processes the single byte data[i]. If parsing must stop, it returns
// the number of bytes consumed and true.
func (p *Parser) step(data []byte, i int) (int, bool) {
	c := data[i]
	switch p.state {
	case sDead:
		if c == '\r' || c == '\n' {
			return 0, false
		}
		return p.fail(ClosedConnection, i)

	case sStartReq:
		if c == '\r' || c == '\n' {
			return 0, false
		}
		if !isUpper(c) {
			return p.fail(InvalidMethod, i)
		}
		p.methodBuf[0], p.methodLen = c, 1
		if !isMethodPrefix(p.methodBuf[:1]) {
			return p.fail(InvalidMethod, i)
		}
		p.state = sReqMethod
		if !p.messageBegin() {
			return i + 1, true
		}
		p.nread = 1

	case sStartRes:
		if c == '\r' || c == '\n' {
			return 0, false
		}
		if c != 'H' {
			return p.fail(InvalidConstant, i)
		}
		p.index = 1
		p.state = sResHTTPStart
		if !p.messageBegin() {
			return i + 1, true
		}
		p.nread = 1

	case sReqMethod:
		if c == ' ' {
			m, ok := lookupMethod(p.methodBuf[:p.methodLen])
			if !ok {
				return p.fail(InvalidMethod, i)
			}
			p.method = m
			p.state = sReqSpacesBeforeURL
			return 0, false
		}
		if (!isUpper(c) && c != '-') || p.methodLen == len(p.methodBuf) {
			return p.fail(InvalidMethod, i)
		}
		p.methodBuf[p.methodLen] = c
		p.methodLen++
		if !isMethodPrefix(p.methodBuf[:p.methodLen]) {
			return p.fail(InvalidMethod, i)
		}

	case sReqSpacesBeforeURL:
		if c == ' ' {
			return 0, false
		}
		if !isURLChar(c) {
			return p.fail(InvalidURL, i)
		}
		p.mark, p.span = i, spanURL
		p.state = sReqURL

	case sReqURL:
		if c == ' ' {
			p.state = sReqHTTPStart
			p.index = 0
			if !p.emitSpan(data[p.mark:i]) {
				return i + 1, true
			}
			return 0, false
		}
		if !isURLChar(c) {
			return p.fail(InvalidURL, i)
		}

	case sReqHTTPStart, sResHTTPStart:
		if c == ' ' && p.index == 0 {
			return 0, false
		}
		if c != "HTTP/"[p.index] {
			return p.fail(InvalidConstant, i)
		}
		p.index++
		if p.index == len("HTTP/") {
			p.state = sVersionMajor
		}

	case sVersionMajor:
		if !isDigit(c) {
			return p.fail(InvalidVersion, i)
		}
		p.major = int(c - '0')
		p.state = sVersionDot

	case sVersionDot:
		if c != '.' {
			return p.fail(InvalidVersion, i)
		}
		p.state = sVersionMinor

	case sVersionMinor:
		if !isDigit(c) {
			return p.fail(InvalidVersion, i)
		}
		p.minor = int(c - '0')
		p.state = sVersionEnd

	case sVersionEnd:
		switch {
		case p.typ == Response && c == ' ':
			p.state = sResFirstStatus
		case p.typ == Request && c == '\r':
			p.state = sLineAlmostDone
		case p.typ == Request && c == '\n':
			p.state = sHeaderFieldStart
		default:
			return p.fail(InvalidVersion, i)
		}

	case sResFirstStatus:
		if c == ' ' {
			return 0, false
		}
		if !isDigit(c) {
			return p.fail(InvalidStatus, i)
		}
		p.statusCode = int(c - '0')
		p.digits = 1
		p.state = sResStatusCode

	case sResStatusCode:
		switch {
		case isDigit(c):
			p.digits++
			if p.digits > 3 {
				return p.fail(InvalidStatus, i)
			}
			p.statusCode = p.statusCode*10 + int(c-'0')
		case c == ' ':
			p.state = sResStatusStart
		case c == '\r':
			p.state = sLineAlmostDone
		case c == '\n':
			p.state = sHeaderFieldStart
		default:
			return p.fail(InvalidStatus, i)
		}

	case sResStatusStart:
		switch c {
		case '\r':
			p.state = sLineAlmostDone
		case '\n':
			p.state = sHeaderFieldStart
		default:
			p.mark, p.span = i, spanStatus
			p.state = sResStatus
		}

	case sResStatus:
		if c != '\r' && c != '\n' {
			return 0, false
		}
		if c == '\r' {
			p.state = sLineAlmostDone
		} else {
			p.state = sHeaderFieldStart
		}
		if !p.emitSpan(data[p.mark:i]) {
			return i + 1, true
		}

	case sLineAlmostDone, sHeaderValueAlmostDone:
		if c != '\n' {
			return p.fail(LFExpected, i)
		}
		p.state = sHeaderFieldStart

	case sHeaderFieldStart:
		switch {
		case c == '\r':
			p.state = sHeadersAlmostDone
		case c == '\n':
			return p.headersDone(i)
		case isToken(c):
			p.mark, p.span = i, spanField
			p.hlen, p.hlong = 0, false
			p.appendName(c)
			p.state = sHeaderField
		default:
			return p.fail(InvalidHeaderToken, i)
		}

	case sHeaderField:
		switch {
		case isToken(c):
			p.appendName(c)
		case c == ':':
			p.classifyHeader()
			p.state = sHeaderValueStart
			if !p.emitSpan(data[p.mark:i]) {
				return i + 1, true
			}
		default:
			return p.fail(InvalidHeaderToken, i)
		}

	case sHeaderValueStart:
		switch {
		case c == ' ' || c == '\t':
		case c == '\r' || c == '\n':
			if c == '\r' {
				p.state = sHeaderValueAlmostDone
			} else {
				p.state = sHeaderFieldStart
			}
			p.span = spanValue
			if !p.emitSpan(data[i:i]) {
				return i + 1, true
			}
			if e := p.headerValueDone(); e != OK {
				return p.fail(e, i)
			}
		case isValueChar(c):
			p.mark, p.span = i, spanValue
			p.hvalue = append(p.hvalue[:0], c)
			p.state = sHeaderValue
		default:
			return p.fail(InvalidHeaderToken, i)
		}

	case sHeaderValue:
		switch {
		case c == '\r' || c == '\n':
			if c == '\r' {
				p.state = sHeaderValueAlmostDone
			} else {
				p.state = sHeaderFieldStart
			}
			if !p.emitSpan(data[p.mark:i]) {
				return i + 1, true
			}
			if e := p.headerValueDone(); e != OK {
				return p.fail(e, i)
			}
		case isValueChar(c):
			if p.hkind != hOther {
				p.hvalue = append(p.hvalue, c)
			}
		default:
			return p.fail(InvalidHeaderToken, i)
		}

	case sHeadersAlmostDone:
		if c != '\n' {
			return p.fail(LFExpected, i)
		}
		return p.headersDone(i)

	case sChunkSizeStart:
		v, ok := unhex(c)
		if !ok {
			return p.fail(InvalidChunkSize, i)
		}
		p.remaining = int64(v)
		p.state = sChunkSize

	case sChunkSize:
		if v, ok := unhex(c); ok {
			if p.remaining > (math.MaxInt64-15)/16 {
				return p.fail(InvalidChunkSize, i)
			}
			p.remaining = p.remaining*16 + int64(v)
			return 0, false
		}
		switch c {
		case '\r':
			p.state = sChunkSizeAlmostDone
		case '\n':
			p.chunkSizeDone()
		case ';', ' ', '\t':
			p.state = sChunkParameters
		default:
			return p.fail(InvalidChunkSize, i)
		}

	case sChunkParameters:
		switch c {
		case '\r':
			p.state = sChunkSizeAlmostDone
		case '\n':
			p.chunkSizeDone()
		}

	case sChunkSizeAlmostDone:
		if c != '\n' {
			return p.fail(LFExpected, i)
		}
		p.chunkSizeDone()

	case sChunkDataAlmostDone:
		switch c {
		case '\r':
			p.state = sChunkDataDone
		case '\n':
			p.state = sChunkSizeStart
		default:
			return p.fail(LFExpected, i)
		}

	case sChunkDataDone:
		if c != '\n' {
			return p.fail(LFExpected, i)
		}
		p.state = sChunkSizeStart

	default:
		return p.fail(InvalidInternalState, i)
	}
	return 0, false
}

func (p *Parser) fail(e Errno, i int) (int, bool) {
	p.errno = e
	return i, true
}

func (p *Parser) chunkSizeDone() {
	if p.remaining == 0 {
		p.flags |= fTrailing
		p.nread = 0
		p.state = sHeaderFieldStart
		return
	}
	p.state = sChunkData
}

// headersDone handles the blank line ending a header or trailer section.
func (p *Parser) headersDone(i int) (int, bool) {
	if p.flags&fTrailing != 0 {
		p.state = p.newMessageState()
		if !p.messageComplete() {
			return i + 1, true
		}
		return 0, false
	}

	if p.flags&fChunked != 0 && p.flags&fContentLength != 0 {
		return p.fail(UnexpectedContentLength, i)
	}

	if p.flags&fUpgrade != 0 && p.flags&fConnectionUpgrade != 0 {
		p.upgrade = p.typ == Request || p.statusCode == 101
	} else {
		p.upgrade = p.typ == Request && p.method == MethodConnect
	}

	skipBody, err := p.cb.OnHeadersComplete()
	if err != nil {
		p.callbackFailed(CBHeadersComplete, err)
		return i, true
	}
	if skipBody {
		p.flags |= fSkipBody
	}
	if p.errno != OK && p.errno != Paused {
		return i + 1, true
	}
	p.nread = 0

	// a pause from OnHeadersComplete takes effect after the body state is
	// chosen, so resuming continues with the body
	hasBody := p.flags&fChunked != 0 || p.contentLength > 0
	if p.upgrade && ((p.typ == Request && p.method == MethodConnect) || p.flags&fSkipBody != 0 || !hasBody) {
		// the rest of the stream belongs to another protocol
		p.state = p.newMessageState()
		p.messageComplete()
		return i + 1, true
	}

	switch {
	case p.flags&fSkipBody != 0:
		p.state = p.newMessageState()
	case p.flags&fChunked != 0:
		p.state = sChunkSizeStart
		return p.continueAfter(i)
	case p.contentLength > 0:
		p.remaining = p.contentLength
		p.state = sBodyIdentity
		return p.continueAfter(i)
	case p.contentLength == 0 || !p.needsEOF():
		p.state = p.newMessageState()
	default:
		p.state = sBodyIdentityEOF
		return p.continueAfter(i)
	}
	if p.errno == Paused {
		p.state = sMessageDone
		return i + 1, true
	}
	if !p.messageComplete() {
		return i + 1, true
	}
	return 0, false
}

// continueAfter stops after byte i if the parser is paused.
func (p *Parser) continueAfter(i int) (int, bool) {
	if p.errno == Paused {
		return i + 1, true
	}
	return 0, false
}

func (p *Parser) appendName(c byte) {
	if p.hlen == len(p.hname) {
		p.hlong = true
		return
	}
	p.hname[p.hlen] = lower(c)
	p.hlen++
}

func (p *Parser) classifyHeader() {
	p.hkind = hOther
	p.hvalue = p.hvalue[:0]
	if p.hlong || p.flags&fTrailing != 0 {
		return
	}
	switch string(p.hname[:p.hlen]) {
	case "content-length":
		p.hkind = hContentLength
	case "transfer-encoding":
		p.hkind = hTransferEncoding
	case "connection":
		p.hkind = hConnection
	case "upgrade":
		p.hkind = hUpgrade
	}
}

// headerValueDone interprets the value of a header affecting framing.
func (p *Parser) headerValueDone() Errno {
	kind := p.hkind
	p.hkind = hOther
	value := bytes.TrimRight(p.hvalue, " \t")
	switch kind {
	case hContentLength:
		if p.flags&fContentLength != 0 {
			return UnexpectedContentLength
		}
		if len(value) == 0 {
			return InvalidContentLength
		}
		var n int64
		for _, c := range value {
			if !isDigit(c) || n > (math.MaxInt64-9)/10 {
				return InvalidContentLength
			}
			n = n*10 + int64(c-'0')
		}
		p.contentLength = n
		p.flags |= fContentLength
	case hTransferEncoding:
		tokens := bytes.Split(value, []byte(","))
		if bytes.EqualFold(bytes.TrimSpace(tokens[len(tokens)-1]), []byte("chunked")) {
			p.flags |= fChunked
		} else {
			p.flags &^= fChunked
		}
	case hConnection:
		for _, token := range bytes.Split(value, []byte(",")) {
			token = bytes.TrimSpace(token)
			switch {
			case bytes.EqualFold(token, []byte("close")):
				p.flags |= fConnectionClose
			case bytes.EqualFold(token, []byte("keep-alive")):
				p.flags |= fConnectionKeepAlive
			case bytes.EqualFold(token, []byte("upgrade")):
				p.flags |= fConnectionUpgrade
			}
		}
	case hUpgrade:
		p.flags |= fUpgrade
	}
	return OK
}

func isUpper(c byte) bool { return c >= 'A' && c <= 'Z' }

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func lower(c byte) byte {
	if isUpper(c) {
		return c + ('a' - 'A')
	}
	return c
}

func isURLChar(c byte) bool { return c > ' ' && c != 0x7f }

func isValueChar(c byte) bool { return c == '\t' || (c >= ' ' && c != 0x7f) }

func isToken(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', isUpper(c), isDigit(c):
		return true
	}
	return strings.IndexByte("!#$%&'*+-.^_`|~", c) >= 0
}

func unhex(c byte) (byte, bool) {
	switch {
	case isDigit(c):
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}
