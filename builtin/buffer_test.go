package builtin

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func newBufferHarness(t *testing.T) *harness {
	t.Helper()
	h := newHarness(t)
	h.eval(`
		var buffer = process.binding(process.binding.buffer);
		function attempt(fn) {
			try { return fn(); } catch (e) { return String(e); }
		}
	`)
	return h
}

func TestBuffer_ByteLength(t *testing.T) {
	h := newBufferHarness(t)
	assert.Equal(t, []any{int64(0), int64(5), int64(6), int64(4)}, h.eval(`
		[buffer.byteLength(''), buffer.byteLength('hello'), buffer.byteLength('héllo'), buffer.byteLength('😀')]
	`).Export())
}

func TestBuffer_WriteAndToString(t *testing.T) {
	h := newBufferHarness(t)
	assert.Equal(t, []any{int64(6), "héllo", int64(3), "..abc..", int64(2), "hé", "llo"}, h.eval(`
		var b = new Uint8Array(6);
		var n = buffer.write(b, 'héllo', 0, 6);
		var all = buffer.toString(b);

		var dots = buf('.......');
		var n2 = buffer.write(dots, 'abc', 2, 10);

		var short = new Uint8Array(4);
		var n3 = buffer.write(short, 'xyz', 2, 100);
		[n, all, n2, buffer.toString(dots), n3, buffer.toString(b, 0, 3), buffer.toString(b, 3)]
	`).Export())
	assert.Equal(t, "\x00\x00xy", h.eval(`buffer.toString(short)`).Export())
	assert.Equal(t, "x", h.eval(`var one = new Uint8Array(3); buffer.write(one, 'xyz', 1, 1); buffer.toString(one, 1, 2)`).Export())
}

func TestBuffer_Copy(t *testing.T) {
	h := newBufferHarness(t)
	assert.Equal(t, []any{int64(3), "__bcd__", int64(3), "ababcfg"}, h.eval(`
		var src = buf('abcde');
		var dst = buf('_______');
		var n = buffer.copy(src, dst, 2, 1, 4);
		// overlapping ranges
		var same = buf('abcdefg');
		var n2 = buffer.copy(same, same, 2, 0, 3);
		[n, str(dst), n2, str(same)]
	`).Export())
	assert.Equal(t, int64(2), h.eval(`buffer.copy(buf('abcdef'), new Uint8Array(2))`).Export())
}

func TestBuffer_Compare(t *testing.T) {
	h := newBufferHarness(t)
	assert.Equal(t, []any{int64(0), int64(-1), int64(1), int64(-1), int64(0)}, h.eval(`
		[
			buffer.compare(buf('abc'), buf('abc')),
			buffer.compare(buf('abc'), buf('abd')),
			buffer.compare(buf('b'), buf('abc')),
			buffer.compare(buf('ab'), buf('abc')),
			buffer.compare(new Uint8Array(0), new Uint8Array(0))
		]
	`).Export())
}

func TestBuffer_Fill(t *testing.T) {
	h := newBufferHarness(t)
	assert.Equal(t, []any{"zzzz", "zyyz", "zyyz"}, h.eval(`
		var b = new Uint8Array(4);
		buffer.fill(b, 122);
		var s1 = str(b);
		buffer.fill(b, 256 + 121, 1, 3);
		var s2 = str(b);
		buffer.fill(b, 120, 2, 2);
		[s1, s2, str(b)]
	`).Export())
}

func TestBuffer_Arguments(t *testing.T) {
	h := newBufferHarness(t)
	for _, tc := range []struct {
		src  string
		want string
	}{
		{`buffer.byteLength()`, "TypeError: string required"},
		{`buffer.byteLength(1)`, "TypeError: string must be a string"},
		{`buffer.write(buf('a'), 'a', 0)`, "TypeError: length required"},
		{`buffer.write('a', 'a', 0, 1)`, "TypeError: buffer must be a Buffer"},
		{`buffer.write(buf('a'), 'a', 2, 1)`, "RangeError: offset out of bound"},
		{`buffer.write(buf('a'), 'a', -1, 1)`, "RangeError: offset out of bound"},
		{`buffer.write(buf('a'), 'a', 0, -1)`, "RangeError: length out of bound"},
		{`buffer.toString(buf('abc'), 2, 1)`, "RangeError: index out of range"},
		{`buffer.toString(buf('abc'), 0, 4)`, "RangeError: index out of range"},
		{`buffer.copy(buf('abc'))`, "TypeError: target required"},
		{`buffer.copy(buf('abc'), buf('abc'), 4)`, "RangeError: targetStart out of range"},
		{`buffer.copy(buf('abc'), buf('abc'), 0, -1)`, "RangeError: index out of range"},
		{`buffer.compare(buf('a'), 'a')`, "TypeError: b must be a Buffer"},
		{`buffer.fill(buf('a'))`, "TypeError: value required"},
		{`buffer.fill(buf('a'), 0, 0, 2)`, "RangeError: index out of range"},
	} {
		assert.Equal(t, tc.want, h.eval(`attempt(function() { return `+tc.src+`; })`).Export(), tc.src)
	}
}
