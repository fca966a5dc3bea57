package builtin

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/joeycumines/goja-nativecore/asyncwrap"
	"github.com/joeycumines/goja-nativecore/binding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func newFSHarness(t *testing.T) (*harness, string) {
	t.Helper()
	h := newHarness(t)
	dir := t.TempDir()
	require.NoError(t, h.rt.Set("dir", dir))
	require.NoError(t, h.rt.Set("O_RDONLY", unix.O_RDONLY))
	require.NoError(t, h.rt.Set("O_RDWR", unix.O_RDWR))
	require.NoError(t, h.rt.Set("O_CREAT", unix.O_CREAT))
	h.eval(`
		var fs = process.binding(process.binding.fs);
		function attempt(fn) {
			try { fn(); return 'no error'; } catch (e) { return String(e); }
		}
	`)
	return h, dir
}

func TestFS_OpenMissingSync(t *testing.T) {
	h, dir := newFSHarness(t)
	path := filepath.Join(dir, "nofile")
	v := h.eval(`
		var e;
		try { fs.open(dir + '/nofile', O_RDONLY, 0); } catch (err) { e = err; }
		[e instanceof Error, e.message, e.code, e.errno, e.syscall, e.path]
	`).Export().([]any)
	assert.Equal(t, []any{
		true,
		"ENOENT: no such file or directory, open '" + path + "'",
		"ENOENT",
		-int64(unix.ENOENT),
		"open",
		path,
	}, v)
	assert.Equal(t, int64(0), h.registry.Tracker().Counts(binding.KindFSReq).Allocated)
}

func TestFS_OpenMissingAsync(t *testing.T) {
	h, _ := newFSHarness(t)
	assert.Nil(t, h.eval(`
		var calls = 0, got;
		fs.open(dir + '/nofile', O_RDONLY, 0, function(err, fd) {
			calls++;
			got = [err.code, err.errno, err.syscall, fd === undefined];
		})
	`).Export())
	assert.Equal(t, int64(0), h.eval(`calls`).Export())
	h.run()
	assert.Equal(t, int64(1), h.eval(`calls`).Export())
	assert.Equal(t, []any{"ENOENT", -int64(unix.ENOENT), "open", true}, h.eval(`got`).Export())
	assert.Equal(t, asyncwrap.Counts{Allocated: 1, Freed: 1}, h.registry.Tracker().Counts(binding.KindFSReq))
}

func TestFS_ExactlyOnceAcrossRepeatedRequests(t *testing.T) {
	h, dir := newFSHarness(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "file"), []byte("hello"), 0o644))

	const n = 25
	require.NoError(t, h.rt.Set("n", n))
	h.eval(`
		var opened = 0, stated = 0, closed = 0, failed = 0, sizes = 0;
		for (var i = 0; i < n; i++) {
			fs.open(dir + '/file', O_RDONLY, 0, function(err, fd) {
				if (err) { failed++; return; }
				opened++;
				fs.close(fd, function(err) {
					if (err) { failed++; return; }
					closed++;
				});
			});
			fs.stat(dir + '/file', function(err, st) {
				if (err) { failed++; return; }
				stated++;
				sizes += st.size;
			});
			fs.stat(dir + '/missing', function(err) {
				if (err) failed++;
			});
		}
	`)
	h.run()

	assert.Equal(t, []any{int64(n), int64(n), int64(n), int64(n), int64(5 * n)},
		h.eval(`[opened, stated, closed, failed, sizes]`).Export())
	counts := h.registry.Tracker().Counts(binding.KindFSReq)
	assert.Equal(t, int64(4*n), counts.Allocated)
	assert.Equal(t, counts.Allocated, counts.Freed)
	assert.Equal(t, 0, h.loop.Pending())
}

func TestFS_ReadWriteSync(t *testing.T) {
	h, dir := newFSHarness(t)
	assert.Equal(t, []any{int64(5), int64(6), int64(5), "hello", int64(3), "llo"}, h.eval(`
		var fd = fs.open(dir + '/rw', O_RDWR | O_CREAT, 420);
		var wrote = fs.writeString(fd, 'hello');
		var more = fs.writeBuffer(fd, buf('!world'), 0, 6, -1);
		var b = new Uint8Array(5);
		var read = fs.read(fd, b, 0, 5, 0);
		var part = new Uint8Array(8);
		var read2 = fs.read(fd, part, 2, 3, 2);
		fs.close(fd);
		[wrote, more, read, str(b), read2, str(part, 2, 3)]
	`).Export())

	data, err := os.ReadFile(filepath.Join(dir, "rw"))
	require.NoError(t, err)
	assert.Equal(t, "hello!world", string(data))
}

func TestFS_WriteStringPosition(t *testing.T) {
	h, dir := newFSHarness(t)
	h.eval(`
		var fd = fs.open(dir + '/pos', O_RDWR | O_CREAT, 420);
		fs.writeString(fd, 'abcdef');
		fs.writeString(fd, 'XY', 1);
		fs.writeString(fd, 'Z', null);
		fs.close(fd);
	`)
	data, err := os.ReadFile(filepath.Join(dir, "pos"))
	require.NoError(t, err)
	assert.Equal(t, "aXYdefZ", string(data))
}

func TestFS_ReadWriteAsync(t *testing.T) {
	h, dir := newFSHarness(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "in"), []byte("async data"), 0o644))
	h.eval(`
		var result;
		fs.open(dir + '/in', O_RDONLY, 0, function(err, fd) {
			var b = new Uint8Array(32);
			fs.read(fd, b, 0, 32, -1, function(err, n) {
				result = [err, n, str(b, 0, n)];
				fs.close(fd);
			});
		});
	`)
	h.run()
	assert.Equal(t, []any{nil, int64(10), "async data"}, h.eval(`result`).Export())
}

func TestFS_ReadBadFDAsync(t *testing.T) {
	h, _ := newFSHarness(t)
	h.eval(`
		var result;
		fs.read(-1, new Uint8Array(4), 0, 4, -1, function(err, n) {
			result = [err.code, err.syscall, err.path, n];
		});
	`)
	h.run()
	assert.Equal(t, []any{"EBADF", "read", nil, nil}, h.eval(`result`).Export())
}

func TestFS_Arguments(t *testing.T) {
	h, _ := newFSHarness(t)
	for _, tc := range []struct {
		src  string
		want string
	}{
		{`fs.open()`, "TypeError: path required"},
		{`fs.open('x')`, "TypeError: flags required"},
		{`fs.open('x', 0)`, "TypeError: mode required"},
		{`fs.open(1, 0, 0)`, "TypeError: path must be a string"},
		{`fs.open('x', '0', 0)`, "TypeError: flags must be an int"},
		{`fs.open('x', 0, {})`, "TypeError: mode must be an int"},
		{`fs.read()`, "TypeError: fd required"},
		{`fs.read(0)`, "TypeError: buffer required"},
		{`fs.read(0, buf('a'))`, "TypeError: offset required"},
		{`fs.read(0, buf('a'), 0)`, "TypeError: length required"},
		{`fs.read(0, buf('a'), 0, 1)`, "TypeError: position required"},
		{`fs.read('0', buf('a'), 0, 1, 0)`, "TypeError: fd must be an int"},
		{`fs.read(0, 'a', 0, 1, 0)`, "TypeError: buffer must be a Buffer"},
		{`fs.read(0, buf('a'), '0', 1, 0)`, "TypeError: offset must be an int"},
		{`fs.read(0, buf('a'), 0, '1', 0)`, "TypeError: length must be an int"},
		{`fs.read(0, buf('a'), 0, 1, 'x')`, "TypeError: position must be an int"},
		{`fs.read(0, buf('ab'), 2, 0, 0)`, "RangeError: offset out of bound"},
		{`fs.read(0, buf('ab'), -1, 0, 0)`, "RangeError: offset out of bound"},
		{`fs.writeBuffer(0, buf('ab'), 1, 2, 0)`, "RangeError: length out of bound"},
		{`fs.writeBuffer(0, buf('ab'), 0, -1, 0)`, "RangeError: length out of bound"},
		{`fs.writeString(0)`, "TypeError: string required"},
		{`fs.writeString(0, 1)`, "TypeError: string must be a string"},
		{`fs.stat()`, "TypeError: path required"},
		{`fs.close()`, "TypeError: fd required"},
		{`fs.setStatConstructor({})`, "TypeError: constructor must be a function"},
	} {
		assert.Equal(t, tc.want, h.eval(`attempt(function() { `+tc.src+`; })`).Export(), tc.src)
	}
	assert.Equal(t, int64(0), h.registry.Tracker().Counts(binding.KindFSReq).Allocated)
}

func TestFS_Stat(t *testing.T) {
	h, dir := newFSHarness(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "file"), []byte("12345678"), 0o600))

	plain := h.eval(`fs.stat(dir + '/file')`).Export().(map[string]any)
	for _, name := range statFields {
		assert.Contains(t, plain, name)
	}
	assert.Equal(t, int64(8), plain["size"])
	assert.Equal(t, int64(unix.S_IFREG|0o600), plain["mode"])

	assert.Equal(t, []any{true, int64(8), false, true}, h.eval(`
		function Stats(dev, mode, nlink, uid, gid, rdev, blksize, ino, size, blocks) {
			this.mode = mode;
			this.size = size;
		}
		Stats.prototype.isDirectory = function() {
			return (this.mode & 61440) === 16384;
		};
		fs.setStatConstructor(function(dev, mode, nlink, uid, gid, rdev, blksize, ino, size, blocks) {
			return new Stats(dev, mode, nlink, uid, gid, rdev, blksize, ino, size, blocks);
		});
		var st = fs.stat(dir + '/file');
		[st instanceof Stats, st.size, st.isDirectory(), fs.stat(dir).isDirectory()]
	`).Export())
}

func TestFS_StatConstructorThrows(t *testing.T) {
	h, dir := newFSHarness(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "file"), nil, 0o600))
	assert.Equal(t, "Error: no stats", h.eval(`
		fs.setStatConstructor(function() { throw new Error('no stats'); });
		attempt(function() { fs.stat(dir + '/file'); })
	`).Export())

	h.eval(`
		var got;
		fs.stat(dir + '/file', function(err, st) { got = [String(err), st]; });
	`)
	h.run()
	assert.Equal(t, []any{"Error: no stats", nil}, h.eval(`got`).Export())
}

func TestFS_OpenFlags(t *testing.T) {
	h, _ := newFSHarness(t)
	for _, f := range openFlags {
		assert.Equal(t, int64(f.value), h.eval(`fs.`+f.name).Export(), f.name)
	}
	assert.Equal(t, true, h.eval(`fs.O_CREAT === O_CREAT && fs.O_RDWR === O_RDWR`).Export())
}
