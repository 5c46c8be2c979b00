package runtime

import (
	"github.com/wippyai/mlbridge/errors"
	"github.com/wippyai/mlbridge/value"
)

func callable(f value.Value) error {
	if f.IsImmediate() {
		return errors.NotCallable("immediate value")
	}
	if t := f.Tag(); t != value.ClosureTag {
		return errors.NotCallable("block with tag " + t.String())
	}
	return nil
}

func (rt *Runtime) result(r value.Value) (value.Value, error) {
	if r.IsExceptionResult() {
		return value.Unit, errors.ForeignException(rt.Pin(r.ExceptionOf()))
	}
	return r, nil
}

// Call applies the closure f to arg. A raised exception is returned as a
// ForeignException pinned to the handle.
func (rt *Runtime) Call(f, arg value.Value) (value.Value, error) {
	rt.check()
	if err := callable(f); err != nil {
		return value.Unit, err
	}
	return rt.result(rt.abi.CallbackExn(f, arg))
}

// Call2 applies f to two arguments.
func (rt *Runtime) Call2(f, a1, a2 value.Value) (value.Value, error) {
	rt.check()
	if err := callable(f); err != nil {
		return value.Unit, err
	}
	return rt.result(rt.abi.Callback2Exn(f, a1, a2))
}

// Call3 applies f to three arguments.
func (rt *Runtime) Call3(f, a1, a2, a3 value.Value) (value.Value, error) {
	rt.check()
	if err := callable(f); err != nil {
		return value.Unit, err
	}
	return rt.result(rt.abi.Callback3Exn(f, a1, a2, a3))
}

// CallN applies f to args.
func (rt *Runtime) CallN(f value.Value, args ...value.Value) (value.Value, error) {
	rt.check()
	if err := callable(f); err != nil {
		return value.Unit, err
	}
	return rt.result(rt.abi.CallbackNExn(f, args))
}

// Named returns the value registered under name.
func (rt *Runtime) Named(name string) (value.Value, error) {
	cell := rt.ABI().NamedValue(name)
	if cell == nil {
		return value.Unit, errors.NotRegistered(name)
	}
	return *cell, nil
}

// HashVariant builds a polymorphic variant. Without an argument it is the
// immediate hash of name; with one it is a two-field block (hash, arg).
func HashVariant(tok AllocToken, name string, arg ...value.Value) value.Value {
	abi := tok.ABI()
	h := abi.HashVariant(name)
	if len(arg) == 0 {
		return h
	}
	top := abi.LocalsTop()
	slot := abi.PushLocal(arg[0])
	v := abi.AllocSmall(2, 0)
	v.StoreField(0, h)
	v.StoreField(1, abi.Local(slot))
	abi.PopLocals(top)
	return v
}

// DeepCloneOut copies v out of the collected heap. The copy never moves and
// lives as long as the foreign runtime.
func DeepCloneOut(tok AllocToken, v value.Value) value.Value {
	return tok.ABI().DeepCopyOut(v)
}

// DeepCloneIn copies a structure produced by DeepCloneOut back into the heap.
func DeepCloneIn(tok AllocToken, v value.Value) value.Value {
	return tok.ABI().DeepCopyIn(v)
}
