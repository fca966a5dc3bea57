package builtin

import (
	"errors"

	"github.com/dop251/goja"
	"github.com/joeycumines/goja-nativecore/asyncwrap"
	"github.com/joeycumines/goja-nativecore/binding"
	"golang.org/x/sys/unix"
)

// openFlags are exported by the fs module, so scripts can convert string
// flags like "w+" without knowing the platform's values.
var openFlags = [...]struct {
	name  string
	value int
}{
	{"O_RDONLY", unix.O_RDONLY},
	{"O_WRONLY", unix.O_WRONLY},
	{"O_RDWR", unix.O_RDWR},
	{"O_CREAT", unix.O_CREAT},
	{"O_EXCL", unix.O_EXCL},
	{"O_TRUNC", unix.O_TRUNC},
	{"O_APPEND", unix.O_APPEND},
}

// statFields are the numeric members of a stat result, in the order they
// are passed to the constructor registered by setStatConstructor.
var statFields = [...]string{"dev", "mode", "nlink", "uid", "gid", "rdev", "blksize", "ino", "size", "blocks"}

// newFSModule builds the fs module. Every operation takes an optional
// trailing callback: without one it runs synchronously, returning the
// result or throwing, with one it runs on the loop's worker pool and
// completes as callback(err) or callback(null, result).
func (r *Registry) newFSModule() *binding.Value {
	exports := r.bridge.NewObject()
	exports.SetMethod("open", r.fsOpen)
	exports.SetMethod("read", r.fsRead)
	exports.SetMethod("writeBuffer", r.fsWriteBuffer)
	exports.SetMethod("writeString", r.fsWriteString)
	exports.SetMethod("stat", r.fsStat)
	exports.SetMethod("close", r.fsClose)
	exports.SetMethod("setStatConstructor", r.fsSetStatConstructor)
	for _, f := range openFlags {
		put(exports, f.name, r.bridge.Int32(int32(f.value)))
	}
	return exports
}

// fsRequest is a single fs operation. op runs off the loop goroutine when
// dispatched asynchronously, so it must not touch script values.
type fsRequest struct {
	syscall string
	path    string
	op      func() error
	// value converts a successful outcome, on the loop goroutine.
	value func() (*binding.Value, error)
	// hold keeps script values referenced by op alive until completion.
	hold *binding.Value
}

// fsRun executes req in the mode selected by the argument at cbIndex.
func (r *Registry) fsRun(c *binding.CallContext, cbIndex int, req *fsRequest) error {
	cb := c.Arg(cbIndex)
	if !cb.IsFunction() {
		err := req.op()
		if err != nil {
			e := r.errnoValue(newErrnoError(err, req.syscall, req.path))
			defer e.Release()
			return c.ThrowValue(e)
		}
		v, err := req.value()
		if err != nil {
			return err
		}
		return result(c, v)
	}

	if req.hold != nil {
		req.hold = req.hold.Dup()
	}
	w := asyncwrap.NewReqWrap(r.tracker, r.bridge, binding.KindFSReq, cb)
	w.Dispatch(r.loop, req.op, func(err error) []*binding.Value {
		if req.hold != nil {
			req.hold.Release()
			req.hold = nil
		}
		if err != nil {
			return []*binding.Value{r.errnoValue(newErrnoError(err, req.syscall, req.path))}
		}
		v, err := req.value()
		if err != nil {
			return []*binding.Value{r.exceptionValue(err)}
		}
		return []*binding.Value{r.bridge.Null(), v}
	})
	return nil
}

func (r *Registry) fsOpen(c *binding.CallContext) error {
	if err := c.CheckArgs(
		arg("path", binding.ArgString),
		arg("flags", binding.ArgInt),
		arg("mode", binding.ArgInt),
	); err != nil {
		return err
	}
	var (
		path  = c.Arg(0).ToString()
		flags = int(c.Arg(1).Int32())
		mode  = uint32(c.Arg(2).Int32())
		fd    int
	)
	return r.fsRun(c, 3, &fsRequest{
		syscall: "open",
		path:    path,
		op: func() (err error) {
			fd, err = unix.Open(path, flags|unix.O_CLOEXEC, mode)
			return err
		},
		value: func() (*binding.Value, error) {
			return r.bridge.Int32(int32(fd)), nil
		},
	})
}

func (r *Registry) fsRead(c *binding.CallContext) error {
	return r.fsTransfer(c, "read", func(fd int, b []byte, pos int64) (int, error) {
		if pos < 0 {
			return unix.Read(fd, b)
		}
		return unix.Pread(fd, b, pos)
	})
}

func (r *Registry) fsWriteBuffer(c *binding.CallContext) error {
	return r.fsTransfer(c, "write", func(fd int, b []byte, pos int64) (int, error) {
		if pos < 0 {
			return unix.Write(fd, b)
		}
		return unix.Pwrite(fd, b, pos)
	})
}

// fsTransfer implements read and writeBuffer, which share the signature
// (fd, buffer, offset, length, position[, callback]).
func (r *Registry) fsTransfer(c *binding.CallContext, syscall string, transfer func(fd int, b []byte, pos int64) (int, error)) error {
	if err := c.CheckArgs(
		arg("fd", binding.ArgInt),
		arg("buffer", binding.ArgBuffer),
		arg("offset", binding.ArgInt),
		arg("length", binding.ArgInt),
		arg("position", binding.ArgAny),
	); err != nil {
		return err
	}
	pos, ok := position(c.Arg(4))
	if !ok {
		return c.Throw(binding.KindTypeError, "position must be an int")
	}
	buf, _ := c.Arg(1).Bytes()
	offset, length := c.Arg(2).Int64(), c.Arg(3).Int64()
	if offset < 0 || offset >= int64(len(buf)) {
		return c.Throw(binding.KindRangeError, "offset out of bound")
	}
	if length < 0 || offset+length > int64(len(buf)) {
		return c.Throw(binding.KindRangeError, "length out of bound")
	}
	var (
		fd   = int(c.Arg(0).Int32())
		data = buf[offset : offset+length]
		n    int
	)
	return r.fsRun(c, 5, &fsRequest{
		syscall: syscall,
		op: func() (err error) {
			n, err = transfer(fd, data, pos)
			return err
		},
		value: func() (*binding.Value, error) {
			return r.bridge.Int32(int32(n)), nil
		},
		hold: c.Arg(1),
	})
}

func (r *Registry) fsWriteString(c *binding.CallContext) error {
	if err := c.CheckArgs(
		arg("fd", binding.ArgInt),
		arg("string", binding.ArgString),
	); err != nil {
		return err
	}
	pos, ok := position(c.Arg(2))
	if !ok {
		// anything else, such as a callback in the position slot, means
		// the current position
		pos = -1
	}
	var (
		fd   = int(c.Arg(0).Int32())
		data = []byte(c.Arg(1).ToString())
		n    int
	)
	return r.fsRun(c, 3, &fsRequest{
		syscall: "write",
		op: func() (err error) {
			if pos < 0 {
				n, err = unix.Write(fd, data)
			} else {
				n, err = unix.Pwrite(fd, data, pos)
			}
			return err
		},
		value: func() (*binding.Value, error) {
			return r.bridge.Int32(int32(n)), nil
		},
	})
}

func (r *Registry) fsStat(c *binding.CallContext) error {
	if err := c.CheckArgs(arg("path", binding.ArgString)); err != nil {
		return err
	}
	var (
		path = c.Arg(0).ToString()
		st   unix.Stat_t
	)
	return r.fsRun(c, 1, &fsRequest{
		syscall: "stat",
		path:    path,
		op: func() error {
			return unix.Stat(path, &st)
		},
		value: func() (*binding.Value, error) {
			return r.statValue(&st)
		},
	})
}

func (r *Registry) fsClose(c *binding.CallContext) error {
	if err := c.CheckArgs(arg("fd", binding.ArgInt)); err != nil {
		return err
	}
	fd := int(c.Arg(0).Int32())
	return r.fsRun(c, 1, &fsRequest{
		syscall: "close",
		op: func() error {
			return unix.Close(fd)
		},
		value: func() (*binding.Value, error) {
			return r.bridge.Undefined(), nil
		},
	})
}

func (r *Registry) fsSetStatConstructor(c *binding.CallContext) error {
	if err := c.CheckArgs(arg("constructor", binding.ArgFunction)); err != nil {
		return err
	}
	if r.statCtor != nil {
		r.statCtor.Release()
	}
	r.statCtor = c.Arg(0).Dup()
	return nil
}

// statValue converts st using the registered stat constructor, or into a
// plain object if there is none.
func (r *Registry) statValue(st *unix.Stat_t) (*binding.Value, error) {
	b := r.bridge
	values := [len(statFields)]int64{
		int64(st.Dev),
		int64(st.Mode),
		int64(st.Nlink),
		int64(st.Uid),
		int64(st.Gid),
		int64(st.Rdev),
		int64(st.Blksize),
		int64(st.Ino),
		int64(st.Size),
		int64(st.Blocks),
	}
	args := make([]*binding.Value, len(values))
	for i, v := range values {
		args[i] = b.Int64(v)
	}
	defer func() {
		for _, v := range args {
			v.Release()
		}
	}()

	if r.statCtor != nil {
		// a factory, called without new
		return r.statCtor.Call(nil, args...)
	}
	obj := b.NewObject()
	for i, name := range statFields {
		obj.Set(name, args[i])
	}
	return obj, nil
}

// errnoValue converts e into a script Error carrying errno (negative),
// code, syscall and, if known, path.
func (r *Registry) errnoValue(e *ErrnoError) *binding.Value {
	b := r.bridge
	v := b.NewError(binding.KindError, e.Error())
	put(v, "errno", b.Int32(-int32(e.Errno)))
	put(v, "code", b.String(e.Code()))
	put(v, "syscall", b.String(e.Syscall))
	if e.Path != "" {
		put(v, "path", b.String(e.Path))
	}
	return v
}

// exceptionValue recovers the thrown value from an error returned by a
// script call.
func (r *Registry) exceptionValue(err error) *binding.Value {
	var ex *goja.Exception
	if errors.As(err, &ex) {
		return r.bridge.Wrap(ex.Value(), binding.Strong)
	}
	return r.bridge.NewError(binding.KindError, err.Error())
}

// position interprets an optional file position: a number is used as is,
// null or undefined mean the current position.
func position(v *binding.Value) (int64, bool) {
	switch {
	case v.IsNumber():
		return v.Int64(), true
	case v.IsUndefined(), v.IsNull():
		return -1, true
	default:
		return 0, false
	}
}
