package binding

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setGlobal(t *testing.T, b *Bridge, name string, v *Value) {
	t.Helper()
	global := b.Global()
	defer global.Release()
	global.Set(name, v)
	v.Release()
}

func TestBridge_NewFunction(t *testing.T) {
	b := newTestBridge(t)

	var gotLen int
	setGlobal(t, b, "add", b.NewFunction("add", func(c *CallContext) error {
		gotLen = c.Len()
		sum := b.Int64(c.Arg(0).Int64() + c.Arg(1).Int64())
		defer sum.Release()
		c.Return(sum)
		return nil
	}))

	res := eval(t, b, `add(40, 2) + ":" + add.name`)
	defer res.Release()
	assert.Equal(t, "42:add", res.ToString())
	assert.Equal(t, 2, gotLen)

	// scopes closed, only res is live
	assert.Equal(t, 0, b.Stats().OpenScopes)
	assert.Equal(t, int64(1), b.Stats().Live)
}

func TestCallContext_ReceiverAndMissingArgs(t *testing.T) {
	b := newTestBridge(t)
	setGlobal(t, b, "probe", b.NewFunction("probe", func(c *CallContext) error {
		name := c.This().Get("name")
		defer name.Release()
		assert.True(t, c.Arg(5).IsUndefined())
		assert.True(t, c.Function().IsFunction())
		assert.False(t, c.IsConstructCall())
		c.Return(name)
		return nil
	}))

	res := eval(t, b, `({name: "receiver", probe: probe}).probe()`)
	defer res.Release()
	assert.Equal(t, "receiver", res.ToString())
}

func TestCallContext_ReturnReplacesEarlier(t *testing.T) {
	b := newTestBridge(t)
	setGlobal(t, b, "twice", b.NewFunction("twice", func(c *CallContext) error {
		first, second := b.String("first"), b.String("second")
		defer first.Release()
		defer second.Release()
		c.Return(first)
		c.Return(second)
		return nil
	}))
	res := eval(t, b, `twice()`)
	defer res.Release()
	assert.Equal(t, "second", res.ToString())
	assert.Equal(t, int64(1), b.Stats().Live)
}

func TestCallContext_Throw(t *testing.T) {
	b := newTestBridge(t)
	for kind, name := range map[ErrorKind]string{
		KindError:          "Error",
		KindTypeError:      "TypeError",
		KindRangeError:     "RangeError",
		KindSyntaxError:    "SyntaxError",
		KindReferenceError: "ReferenceError",
		KindEvalError:      "EvalError",
		KindURIError:       "URIError",
	} {
		t.Run(name, func(t *testing.T) {
			setGlobal(t, b, "fail", b.NewFunction("fail", func(c *CallContext) error {
				err := c.Throw(kind, "bad thing")
				assert.True(t, c.HasThrown())
				assert.True(t, c.Exception().IsObject())
				return err
			}))
			res := eval(t, b, `try { fail(); "no" } catch (e) { (e instanceof `+name+`) + ":" + e.message }`)
			defer res.Release()
			assert.Equal(t, "true:bad thing", res.ToString())
		})
	}
}

func TestCallContext_ThrowValue(t *testing.T) {
	b := newTestBridge(t)
	setGlobal(t, b, "fail", b.NewFunction("fail", func(c *CallContext) error {
		return c.ThrowValue(c.Arg(0))
	}))
	res := eval(t, b, `try { fail(42); } catch (e) { e }`)
	defer res.Release()
	assert.Equal(t, int64(42), res.Int64())
}

func TestCallContext_GoErrorBecomesException(t *testing.T) {
	b := newTestBridge(t)
	sentinel := errors.New("disk on fire")
	setGlobal(t, b, "fail", b.NewFunction("fail", func(c *CallContext) error {
		return sentinel
	}))
	_, err := b.Runtime().RunString(`fail()`)
	require.Error(t, err)
	assert.ErrorIs(t, err, sentinel)
}

func TestCallContext_NestedScriptExceptionPropagates(t *testing.T) {
	b := newTestBridge(t)
	setGlobal(t, b, "invoke", b.NewFunction("invoke", func(c *CallContext) error {
		res, err := c.Arg(0).Call(nil)
		if err != nil {
			return err
		}
		res.Release()
		return nil
	}))
	res := eval(t, b, `
		var caught;
		try { invoke(function() { throw new TypeError("inner"); }); } catch (e) { caught = e; }
		(caught instanceof TypeError) + ":" + caught.message`)
	defer res.Release()
	assert.Equal(t, "true:inner", res.ToString())
}

func TestCallContext_BorrowedArgsDoNotEscape(t *testing.T) {
	b := newTestBridge(t)
	var escaped, kept *Value
	setGlobal(t, b, "keep", b.NewFunction("keep", func(c *CallContext) error {
		escaped = c.Arg(0)
		kept = c.Arg(0).Dup()
		return nil
	}))
	res := eval(t, b, `keep({v: 1})`)
	res.Release()

	requirePrecondition(t, func() { escaped.Get("v") })
	v := kept.Get("v")
	assert.Equal(t, int32(1), v.Int32())
	v.Release()
	kept.Release()
	assert.Equal(t, int64(0), b.Stats().Live)
}

func TestCallContext_PreconditionPanicsAreNotScriptErrors(t *testing.T) {
	b := newTestBridge(t)
	setGlobal(t, b, "broken", b.NewFunction("broken", func(c *CallContext) error {
		c.Arg(0).Native(KindTimer)
		return nil
	}))
	requirePrecondition(t, func() {
		_, _ = b.Runtime().RunString(`try { broken({}) } catch (e) {}`)
	})
	assert.Equal(t, 0, b.Stats().OpenScopes)
}

func TestBridge_NewConstructor(t *testing.T) {
	b := newTestBridge(t)
	ctor := b.NewConstructor("Counter", func(c *CallContext) error {
		assert.True(t, c.IsConstructCall())
		start := c.Arg(0)
		c.This().Set("count", start)
		return nil
	})
	proto := ctor.Get("prototype")
	proto.SetMethod("inc", func(c *CallContext) error {
		this := c.This()
		count := this.Get("count")
		next := b.Int64(count.Int64() + 1)
		count.Release()
		this.Set("count", next)
		c.Return(next)
		next.Release()
		return nil
	})
	proto.Release()
	setGlobal(t, b, "Counter", ctor)

	res := eval(t, b, `var c = new Counter(5); c.inc(); [c.inc(), c instanceof Counter, Counter.name].join()`)
	defer res.Release()
	assert.Equal(t, "7,true,Counter", res.ToString())
}

func TestCallContext_CheckArgs(t *testing.T) {
	b := newTestBridge(t)
	setGlobal(t, b, "open", b.NewFunction("open", func(c *CallContext) error {
		if err := c.CheckArgs(
			ArgSpec{"path", ArgString},
			ArgSpec{"flags", ArgInt},
			ArgSpec{"mode", ArgInt},
		); err != nil {
			return err
		}
		return nil
	}))

	for src, want := range map[string]string{
		`open()`:              "TypeError: path required",
		`open(1)`:             "TypeError: flags required",
		`open(1, 2)`:          "TypeError: mode required",
		`open(1, 2, 3)`:       "TypeError: path must be a string",
		`open("p", "f", 3)`:   "TypeError: flags must be an int",
		`open("p", 2, null)`:  "TypeError: mode must be an int",
		`open("p", 2, 3)`:     "ok",
		`open("p", 2, 3, {})`: "ok",
	} {
		res := eval(t, b, `try { `+src+`; "ok" } catch (e) { e.name + ": " + e.message }`)
		assert.Equal(t, want, res.ToString(), src)
		res.Release()
	}
}

func TestErrorKind_String(t *testing.T) {
	assert.Equal(t, "Error", ErrorKind(200).String())
	assert.Equal(t, "TypeError", KindTypeError.String())
}

func TestPreconditionError(t *testing.T) {
	cause := errors.New("cause")
	err := &PreconditionError{Op: "Get", Message: "value is string", Cause: cause}
	assert.Equal(t, "binding: Get: value is string: cause", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "binding: precondition violated", (&PreconditionError{}).Error())
}
