package runtime

import (
	"go.uber.org/zap"

	"github.com/wippyai/mlbridge"
	"github.com/wippyai/mlbridge/bridge"
	"github.com/wippyai/mlbridge/errors"
	"github.com/wippyai/mlbridge/value"
)

// Body runs fn as a native entry point. It enters a handle on abi, recovers
// Go panics and leaves the handle before raising any error on the foreign
// side through the bridge. Foreign exceptions raised by the engine while fn
// runs leave the handle and keep propagating.
func Body(abi mlbridge.ABI, fn func(rt *Runtime) (value.Value, error)) value.Value {
	rt := Enter(abi)
	res, err := run(rt, fn)
	rt.Leave()
	if err != nil {
		bridge.Raise(abi, err)
	}
	return res
}

func run(rt *Runtime, fn func(rt *Runtime) (value.Value, error)) (res value.Value, err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if sig, ok := r.(mlbridge.RaiseSignal); ok {
			rt.Leave()
			panic(sig)
		}
		msg := bridge.PanicMessage(r)
		Logger().Warn("recovered panic in native entry point", zap.String("message", msg))
		res, err = value.Unit, errors.Panic(msg)
	}()
	return fn(rt)
}

// ExportFunc is the body of an exported entry point.
type ExportFunc func(rt *Runtime, args Args) (value.Value, error)

// Export registers fn as an external named name taking arity arguments.
// Each call runs inside Body with the arguments rooted.
func Export(abi mlbridge.ABI, name string, arity int, fn ExportFunc) {
	abi.RegisterExternal(name, arity, func(raw []value.Value) value.Value {
		return Body(abi, func(rt *Runtime) (value.Value, error) {
			return fn(rt, rt.rootArgs(raw))
		})
	})
	Logger().Debug("export registered", zap.String("name", name), zap.Int("arity", arity))
}

// Args are the rooted arguments of an exported call.
type Args struct {
	abi  mlbridge.ABI
	base int
	n    int
}

func (rt *Runtime) rootArgs(raw []value.Value) Args {
	base := rt.abi.LocalsTop()
	for _, v := range raw {
		rt.abi.PushLocal(v)
	}
	return Args{abi: rt.abi, base: base, n: len(raw)}
}

// Len returns the number of arguments.
func (a Args) Len() int {
	return a.n
}

// Get returns the current value of argument i.
func (a Args) Get(i int) value.Value {
	if i < 0 || i >= a.n {
		panic(errors.ArrayBound(i, a.n))
	}
	return a.abi.Local(a.base + i)
}

// Root returns the root slot holding argument i.
func (a Args) Root(i int) Root {
	if i < 0 || i >= a.n {
		panic(errors.ArrayBound(i, a.n))
	}
	return Root{abi: a.abi, slot: a.base + i}
}
