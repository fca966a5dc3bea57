package builtin

import (
	"bytes"

	"github.com/joeycumines/goja-nativecore/binding"
)

// newBufferModule builds the byte-level helpers backing the script Buffer
// class. Buffers are Uint8Arrays, so indexing and slicing need no help.
func (r *Registry) newBufferModule() *binding.Value {
	exports := r.bridge.NewObject()
	exports.SetMethod("byteLength", bufferByteLength)
	exports.SetMethod("write", bufferWrite)
	exports.SetMethod("toString", bufferToString)
	exports.SetMethod("copy", bufferCopy)
	exports.SetMethod("compare", bufferCompare)
	exports.SetMethod("fill", bufferFill)
	return exports
}

// byteLength(string) returns the length of string in UTF-8.
func bufferByteLength(c *binding.CallContext) error {
	if err := c.CheckArgs(arg("string", binding.ArgString)); err != nil {
		return err
	}
	s := c.Arg(0).StringBuffer()
	defer s.Release()
	return result(c, c.Bridge().Int32(int32(s.Len())))
}

// write(buffer, string, offset, length) copies at most length bytes of
// string, as UTF-8, into buffer at offset, returning the count.
func bufferWrite(c *binding.CallContext) error {
	if err := c.CheckArgs(
		arg("buffer", binding.ArgBuffer),
		arg("string", binding.ArgString),
		arg("offset", binding.ArgInt),
		arg("length", binding.ArgInt),
	); err != nil {
		return err
	}
	buf, _ := c.Arg(0).Bytes()
	offset, length := c.Arg(2).Int64(), c.Arg(3).Int64()
	if offset < 0 || offset > int64(len(buf)) {
		return c.Throw(binding.KindRangeError, "offset out of bound")
	}
	if length < 0 {
		return c.Throw(binding.KindRangeError, "length out of bound")
	}
	s := c.Arg(1).StringBuffer()
	defer s.Release()
	dst := buf[offset:]
	if int64(len(dst)) > length {
		dst = dst[:length]
	}
	n := copy(dst, s.Bytes())
	return result(c, c.Bridge().Int32(int32(n)))
}

// toString(buffer, start, end) decodes buffer[start:end] as UTF-8.
func bufferToString(c *binding.CallContext) error {
	if err := c.CheckArgs(arg("buffer", binding.ArgBuffer)); err != nil {
		return err
	}
	buf, _ := c.Arg(0).Bytes()
	start, end, ok := bounds(c, 1, 2, len(buf))
	if !ok {
		return c.Throw(binding.KindRangeError, "index out of range")
	}
	return result(c, c.Bridge().String(string(buf[start:end])))
}

// copy(source, target, targetStart, sourceStart, sourceEnd) returns the
// number of bytes copied. The ranges may overlap.
func bufferCopy(c *binding.CallContext) error {
	if err := c.CheckArgs(
		arg("source", binding.ArgBuffer),
		arg("target", binding.ArgBuffer),
	); err != nil {
		return err
	}
	src, _ := c.Arg(0).Bytes()
	dst, _ := c.Arg(1).Bytes()
	targetStart, _, ok := bounds(c, 2, -1, len(dst))
	if !ok {
		return c.Throw(binding.KindRangeError, "targetStart out of range")
	}
	start, end, ok := bounds(c, 3, 4, len(src))
	if !ok {
		return c.Throw(binding.KindRangeError, "index out of range")
	}
	n := copy(dst[targetStart:], src[start:end])
	return result(c, c.Bridge().Int32(int32(n)))
}

// compare(a, b) orders two buffers bytewise, returning -1, 0 or 1.
func bufferCompare(c *binding.CallContext) error {
	if err := c.CheckArgs(
		arg("a", binding.ArgBuffer),
		arg("b", binding.ArgBuffer),
	); err != nil {
		return err
	}
	a, _ := c.Arg(0).Bytes()
	b, _ := c.Arg(1).Bytes()
	return result(c, c.Bridge().Int32(int32(bytes.Compare(a, b))))
}

// fill(buffer, value, start, end) sets buffer[start:end] to the low byte of
// value.
func bufferFill(c *binding.CallContext) error {
	if err := c.CheckArgs(
		arg("buffer", binding.ArgBuffer),
		arg("value", binding.ArgInt),
	); err != nil {
		return err
	}
	buf, _ := c.Arg(0).Bytes()
	start, end, ok := bounds(c, 2, 3, len(buf))
	if !ok {
		return c.Throw(binding.KindRangeError, "index out of range")
	}
	v := byte(c.Arg(1).Int32())
	for i := start; i < end; i++ {
		buf[i] = v
	}
	return nil
}

// bounds reads an optional [start, end) range from the arguments at
// startIndex and endIndex (ignored if negative), defaulting to [0, size).
func bounds(c *binding.CallContext, startIndex, endIndex, size int) (start, end int, ok bool) {
	start, end = 0, size
	if v := c.Arg(startIndex); v.IsNumber() {
		start = int(v.Int64())
	}
	if endIndex >= 0 {
		if v := c.Arg(endIndex); v.IsNumber() {
			end = int(v.Int64())
		}
	}
	if start < 0 || start > size || end < start || end > size {
		return 0, 0, false
	}
	return start, end, true
}
