package builtin

import (
	"errors"

	"github.com/joeycumines/goja-nativecore/asyncwrap"
	"github.com/joeycumines/goja-nativecore/binding"
	"github.com/joeycumines/goja-nativecore/httpparser"
)

// HeaderMax is the number of complete header pairs an [HTTPParser]
// accumulates before flushing them to the OnHeaders callback.
const HeaderMax = 10

// errCallbackFailed stops the parser when a script callback returns null.
var errCallbackFailed = errors.New("builtin: callback returned null")

// segment accumulates a string reported by the parser in parts, possibly
// across Execute calls. While the parts are contiguous within the current
// input it is a range of that input. Otherwise it is copied into buf,
// which is kept across resets.
type segment struct {
	buf   []byte
	start int
	end   int
	owned bool
	set   bool
}

func (s *segment) reset() {
	s.buf = s.buf[:0]
	s.start, s.end = 0, 0
	s.owned, s.set = false, false
}

// update appends b, which must be a sub-slice of cur, and reports whether
// that required a copy.
func (s *segment) update(cur, b []byte) bool {
	off := cap(cur) - cap(b)
	switch {
	case !s.set:
		s.start, s.end, s.set = off, off+len(b), true
		return false
	case !s.owned && s.end == off:
		s.end += len(b)
		return false
	default:
		copied := s.save(cur)
		s.buf = append(s.buf, b...)
		return copied
	}
}

// save copies borrowed contents out of cur, reporting whether it did.
func (s *segment) save(cur []byte) bool {
	if !s.set || s.owned {
		return false
	}
	s.buf = append(s.buf[:0], cur[s.start:s.end]...)
	s.owned = true
	return true
}

func (s *segment) bytes(cur []byte) []byte {
	switch {
	case !s.set:
		return nil
	case s.owned:
		return s.buf
	default:
		return cur[s.start:s.end]
	}
}

// HTTPParser is the native state of a script HTTPParser object. It is a
// durable resource that is never armed: it lives until closed by script or
// by [Registry.Close].
type HTTPParser struct {
	r       *Registry
	wrap    *asyncwrap.HandleWrap
	parser  *httpparser.Parser
	buffer  *binding.Value
	cur     []byte
	url     segment
	status  segment
	fields  [HeaderMax]segment
	values  [HeaderMax]segment
	nFields int
	nValues int
	flushed bool
	running bool
	// err is the exception thrown by a script callback
	err    error
	copies int
}

// parserOf recovers the parser bound to owner. A closed parser is a fatal
// precondition violation.
func parserOf(owner *binding.Value) *HTTPParser {
	return asyncwrap.FromOwner(owner, binding.KindHTTPParser).Resource().(*HTTPParser)
}

// Parser returns the underlying protocol parser.
func (p *HTTPParser) Parser() *httpparser.Parser {
	return p.parser
}

// Copies returns the number of times a string had to be copied out of an
// input buffer, either because its parts were not contiguous or because it
// was still incomplete when Execute returned.
func (p *HTTPParser) Copies() int {
	return p.copies
}

// Flushed reports whether the headers of the current message have been
// flushed to OnHeaders at least once.
func (p *HTTPParser) Flushed() bool {
	return p.flushed
}

// Stop implements [asyncwrap.Resource]. A parser has nothing to disarm.
func (p *HTTPParser) Stop() error {
	return nil
}

// Close implements [asyncwrap.Resource].
func (p *HTTPParser) Close() {
	p.resetStrings()
	p.buffer, p.cur = nil, nil
	p.r = nil
}

func (p *HTTPParser) resetStrings() {
	p.url.reset()
	p.status.reset()
	for i := range p.fields {
		p.fields[i].reset()
		p.values[i].reset()
	}
	p.nFields, p.nValues = 0, 0
}

func (p *HTTPParser) update(s *segment, b []byte) {
	if s.update(p.cur, b) {
		p.copies++
	}
}

// save copies everything still borrowed from the current input, which is
// about to become invalid.
func (p *HTTPParser) save() {
	p.saveSegment(&p.url)
	p.saveSegment(&p.status)
	for i := 0; i < p.nFields; i++ {
		p.saveSegment(&p.fields[i])
	}
	for i := 0; i < p.nValues; i++ {
		p.saveSegment(&p.values[i])
	}
}

func (p *HTTPParser) saveSegment(s *segment) {
	if s.save(p.cur) {
		p.copies++
	}
}

func (p *HTTPParser) str(s *segment) *binding.Value {
	return p.r.bridge.String(string(s.bytes(p.cur)))
}

// headers returns the pending pairs as a flat [f0, v0, f1, v1, ...] array.
func (p *HTTPParser) headers() *binding.Value {
	b := p.r.bridge
	items := make([]*binding.Value, 0, 2*p.nFields)
	for i := 0; i < p.nFields; i++ {
		items = append(items, p.str(&p.fields[i]))
		if i < p.nValues {
			items = append(items, p.str(&p.values[i]))
		} else {
			items = append(items, b.String(""))
		}
	}
	defer func() {
		for _, v := range items {
			v.Release()
		}
	}()
	return b.NewArray(items...)
}

// flush passes the pending pairs and the URL to OnHeaders.
func (p *HTTPParser) flush() error {
	headers := p.headers()
	defer headers.Release()
	url := p.str(&p.url)
	defer url.Release()
	p.nFields, p.nValues = 0, 0
	p.flushed = true
	return p.notify("OnHeaders", headers, url)
}

// call invokes the named callback of the owner. A missing callback is
// skipped, and yields undefined. A thrown exception is recorded.
func (p *HTTPParser) call(name string, args ...*binding.Value) (*binding.Value, error) {
	owner := p.wrap.Owner()
	fn := owner.Get(name)
	defer fn.Release()
	if !fn.IsFunction() {
		return p.r.bridge.Undefined(), nil
	}
	res, err := fn.Call(owner, args...)
	if err != nil {
		p.err = err
		return nil, err
	}
	return res, nil
}

// notify invokes a callback for which a null result means failure.
func (p *HTTPParser) notify(name string, args ...*binding.Value) error {
	res, err := p.call(name, args...)
	if err != nil {
		return err
	}
	defer res.Release()
	if res.IsNull() {
		return errCallbackFailed
	}
	return nil
}

// parserCallbacks adapts an HTTPParser to [httpparser.Callbacks], without
// exporting the callbacks as methods of HTTPParser.
type parserCallbacks HTTPParser

func (cb *parserCallbacks) OnMessageBegin() error {
	p := (*HTTPParser)(cb)
	p.resetStrings()
	p.flushed = false
	return nil
}

func (cb *parserCallbacks) OnURL(b []byte) error {
	p := (*HTTPParser)(cb)
	p.update(&p.url, b)
	return nil
}

func (cb *parserCallbacks) OnStatus(b []byte) error {
	p := (*HTTPParser)(cb)
	p.update(&p.status, b)
	return nil
}

func (cb *parserCallbacks) OnHeaderField(b []byte) error {
	p := (*HTTPParser)(cb)
	if p.nFields == p.nValues {
		// a new pair
		if p.nFields == HeaderMax {
			if err := p.flush(); err != nil {
				return err
			}
		}
		p.nFields++
		p.fields[p.nFields-1].reset()
	}
	p.update(&p.fields[p.nFields-1], b)
	return nil
}

func (cb *parserCallbacks) OnHeaderValue(b []byte) error {
	p := (*HTTPParser)(cb)
	if p.nValues != p.nFields {
		p.nValues++
		p.values[p.nValues-1].reset()
	}
	p.update(&p.values[p.nValues-1], b)
	return nil
}

func (cb *parserCallbacks) OnHeadersComplete() (bool, error) {
	p := (*HTTPParser)(cb)
	b := p.r.bridge
	parser := p.parser

	info := b.NewObject()
	defer info.Release()
	put(info, "headers", p.headers())
	put(info, "url", p.str(&p.url))
	if parser.Type() == httpparser.Request {
		put(info, "method", b.Int32(int32(parser.Method())))
	} else {
		put(info, "status", b.Int32(int32(parser.StatusCode())))
		put(info, "status_msg", p.str(&p.status))
	}
	put(info, "versionMajor", b.Int32(int32(parser.Major())))
	put(info, "versionMinor", b.Int32(int32(parser.Minor())))
	put(info, "upgrade", b.Bool(parser.Upgrade()))
	put(info, "shouldkeepalive", b.Bool(parser.ShouldKeepAlive()))

	// anything after this point is a trailer
	p.resetStrings()

	res, err := p.call("OnHeadersComplete", info)
	if err != nil {
		return false, err
	}
	defer res.Release()
	return res.Bool(), nil
}

func (cb *parserCallbacks) OnBody(data []byte) error {
	p := (*HTTPParser)(cb)
	b := p.r.bridge
	offset := b.Int32(int32(cap(p.cur) - cap(data)))
	defer offset.Release()
	length := b.Int32(int32(len(data)))
	defer length.Release()
	return p.notify("OnBody", p.buffer, offset, length)
}

func (cb *parserCallbacks) OnMessageComplete() error {
	p := (*HTTPParser)(cb)
	if p.nFields > 0 {
		if err := p.flush(); err != nil {
			return err
		}
	}
	return p.notify("OnMessageComplete")
}

func (r *Registry) newHTTPParserModule() *binding.Value {
	b := r.bridge
	ctor := b.NewConstructor("HTTPParser", func(c *binding.CallContext) error {
		if err := c.CheckArgs(arg("type", binding.ArgInt)); err != nil {
			return err
		}
		t, ok := parserType(c.Arg(0))
		if !ok {
			return c.Throw(binding.KindRangeError, "invalid parser type")
		}
		p := &HTTPParser{r: r}
		p.parser = httpparser.New(t, (*parserCallbacks)(p))
		p.wrap = asyncwrap.NewHandleWrap(r.tracker, b, c.This(), binding.KindHTTPParser, p)
		r.handles[p.wrap] = struct{}{}
		return nil
	})
	defer ctor.Release()
	put(ctor, "REQUEST", b.Int32(int32(httpparser.Request)))
	put(ctor, "RESPONSE", b.Int32(int32(httpparser.Response)))

	proto := ctor.Get("prototype")
	defer proto.Release()
	proto.SetMethod("execute", r.parserExecute)
	proto.SetMethod("finish", r.parserFinish)
	proto.SetMethod("pause", r.parserPause)
	proto.SetMethod("resume", r.parserResume)
	proto.SetMethod("reinitialize", r.parserReinitialize)
	proto.SetMethod("close", r.parserClose)

	methods := make([]*binding.Value, 0, len(httpparser.Methods()))
	for _, m := range httpparser.Methods() {
		methods = append(methods, b.String(m.String()))
	}
	names := b.NewArray(methods...)
	for _, v := range methods {
		v.Release()
	}

	exports := b.NewObject()
	exports.Set("HTTPParser", ctor)
	put(exports, "methods", names)
	return exports
}

func parserType(v *binding.Value) (httpparser.Type, bool) {
	switch t := v.Int32(); t {
	case int32(httpparser.Request), int32(httpparser.Response):
		return httpparser.Type(t), true
	default:
		return 0, false
	}
}

func (r *Registry) parserExecute(c *binding.CallContext) error {
	p := parserOf(c.This())
	if err := c.CheckArgs(arg("buffer", binding.ArgBuffer)); err != nil {
		return err
	}
	if p.running {
		return c.Throw(binding.KindError, "parser is already executing")
	}
	if p.parser.Paused() {
		return c.Throw(binding.KindError, "parser is paused")
	}

	data, _ := c.Arg(0).Bytes()
	n := p.run(c.Arg(0), data, func() int {
		return p.parser.Execute(data)
	})
	if err := p.failure(c); err != nil {
		return err
	}
	errno := p.parser.Errno()
	if n != len(data) && errno != httpparser.Paused && !(errno == httpparser.OK && p.parser.Upgrade()) {
		return result(c, r.parseErrorValue(&ParseError{
			Cause:       p.parser.Err(),
			Code:        errno.String(),
			BytesParsed: n,
		}))
	}
	return result(c, c.Bridge().Int32(int32(n)))
}

func (r *Registry) parserFinish(c *binding.CallContext) error {
	p := parserOf(c.This())
	if p.running {
		return c.Throw(binding.KindError, "parser is already executing")
	}
	var err error
	p.run(nil, nil, func() int {
		err = p.parser.Finish()
		return 0
	})
	if err := p.failure(c); err != nil {
		return err
	}
	if err != nil {
		return result(c, r.parseErrorValue(&ParseError{
			Cause: err,
			Code:  p.parser.Errno().String(),
		}))
	}
	return nil
}

// run calls fn with buffer as the current input. Strings still borrowed
// from it are saved before run returns.
func (p *HTTPParser) run(buffer *binding.Value, data []byte, fn func() int) int {
	p.buffer, p.cur = buffer, data
	p.running = true
	p.err = nil
	defer func() {
		p.save()
		p.buffer, p.cur = nil, nil
		p.running = false
	}()
	return fn()
}

// failure returns the error to throw if a script callback failed during
// the last run.
func (p *HTTPParser) failure(c *binding.CallContext) error {
	if err := p.err; err != nil {
		p.err = nil
		return err
	}
	errno := p.parser.Errno()
	if errno < httpparser.CBMessageBegin || errno > httpparser.CBStatus {
		return nil
	}
	e := c.Bridge().NewError(binding.KindError, errno.Description())
	defer e.Release()
	put(e, "code", c.Bridge().String(errno.String()))
	return c.ThrowValue(e)
}

func (r *Registry) parseErrorValue(pe *ParseError) *binding.Value {
	b := r.bridge
	v := b.NewError(binding.KindError, "Parse Error")
	put(v, "bytesParsed", b.Int32(int32(pe.BytesParsed)))
	put(v, "code", b.String(pe.Code))
	return v
}

func (r *Registry) parserPause(c *binding.CallContext) error {
	parserOf(c.This()).parser.Pause(true)
	return nil
}

func (r *Registry) parserResume(c *binding.CallContext) error {
	parserOf(c.This()).parser.Pause(false)
	return nil
}

func (r *Registry) parserReinitialize(c *binding.CallContext) error {
	p := parserOf(c.This())
	if err := c.CheckArgs(arg("type", binding.ArgInt)); err != nil {
		return err
	}
	t, ok := parserType(c.Arg(0))
	if !ok {
		return c.Throw(binding.KindRangeError, "invalid parser type")
	}
	if p.running {
		return c.Throw(binding.KindError, "parser is executing")
	}
	p.parser.Reinitialize(t)
	p.resetStrings()
	p.flushed = false
	return nil
}

func (r *Registry) parserClose(c *binding.CallContext) error {
	p := parserOf(c.This())
	if p.running {
		return c.Throw(binding.KindError, "parser is executing")
	}
	delete(r.handles, p.wrap)
	p.wrap.Close()
	return nil
}
