package engine

import (
	"slices"

	"github.com/wippyai/mlbridge"
	"github.com/wippyai/mlbridge/value"
)

// Closure block layout.
const (
	closureCode  = 0
	closureArity = 1
	closureEnv   = 2
)

// papCode is the code index of partial applications. Its environment holds
// the applied closure followed by the captured arguments.
const papCode = 0

// Code is the body of a closure. Arguments and the closure itself are read
// through the call, which keeps them rooted while the body allocates.
type Code func(c *Call) value.Value

type codeEntry struct {
	name  string
	arity int
	fn    Code
}

type external struct {
	name  string
	arity int
	fn    mlbridge.External

	// code is the closure code index once ExternalClosure has defined it.
	code    int
	hasCode bool
}

// Call is the activation of a closure body.
type Call struct {
	h    *Heap
	base int
	n    int
}

// Heap returns the heap running the call.
func (c *Call) Heap() *Heap {
	return c.h
}

// Self returns the closure being applied.
func (c *Call) Self() value.Value {
	return c.h.locals[c.base]
}

// Env reads environment slot i of the closure.
func (c *Call) Env(i int) value.Value {
	return c.Self().Field(closureEnv + i)
}

// NArgs returns the number of arguments.
func (c *Call) NArgs() int {
	return c.n
}

// Arg reads argument i.
func (c *Call) Arg(i int) value.Value {
	return c.h.locals[c.base+1+i]
}

// Args copies the current argument values.
func (c *Call) Args() []value.Value {
	return slices.Clone(c.h.locals[c.base+1 : c.base+1+c.n])
}

func (h *Heap) initCodes() {
	h.codes = append(h.codes, codeEntry{name: "caml_curry", fn: applyPartial})
}

func applyPartial(c *Call) value.Value {
	self := c.Self()
	captured := self.Wosize() - closureEnv - 1
	args := make([]value.Value, 0, captured+c.NArgs())
	for i := 0; i < captured; i++ {
		args = append(args, c.Env(1+i))
	}
	args = append(args, c.Args()...)
	return c.h.apply(c.Env(0), args)
}

// DefineCode registers a closure body and returns its code index.
func (h *Heap) DefineCode(name string, arity int, fn Code) int {
	if arity < 1 {
		panic("engine: closure arity must be positive")
	}
	h.codes = append(h.codes, codeEntry{name: name, arity: arity, fn: fn})
	return len(h.codes) - 1
}

// CodeName returns the name of the code a closure runs.
func (h *Heap) CodeName(f value.Value) string {
	if !IsClosure(f) {
		return ""
	}
	i := int(f.Field(closureCode).IntVal())
	if i < 0 || i >= len(h.codes) {
		return ""
	}
	return h.codes[i].name
}

// AllocClosure allocates a closure over a defined code with env captured.
func (h *Heap) AllocClosure(code int, env ...value.Value) value.Value {
	if code <= papCode || code >= len(h.codes) {
		h.InvalidArgument("alloc_closure: unknown code")
	}
	return h.allocClosure(code, h.codes[code].arity, env)
}

func (h *Heap) allocClosure(code, arity int, env []value.Value) value.Value {
	top := h.LocalsTop()
	for _, e := range env {
		h.PushLocal(e)
	}
	f := h.Alloc(closureEnv+len(env), value.ClosureTag)
	f.StoreField(closureCode, value.Int(int64(code)))
	f.StoreField(closureArity, value.Int(int64(arity)))
	for i := range env {
		h.Initialize(f, closureEnv+i, h.Local(top+i))
	}
	h.PopLocals(top)
	return f
}

// NewClosure defines an anonymous code and allocates a closure over it.
func (h *Heap) NewClosure(arity int, fn Code, env ...value.Value) value.Value {
	return h.AllocClosure(h.DefineCode("", arity, fn), env...)
}

// IsClosure reports whether v is a closure block.
func IsClosure(v value.Value) bool {
	return v.IsBlock() && v.Tag() == value.ClosureTag && v.Wosize() >= closureEnv
}

// ClosureArity returns the number of arguments a closure still expects.
func ClosureArity(f value.Value) int {
	return int(f.Field(closureArity).IntVal())
}

// Apply applies f to args on the foreign side. Exceptions propagate.
func (h *Heap) Apply(f value.Value, args ...value.Value) value.Value {
	return h.apply(f, args)
}

func (h *Heap) apply(f value.Value, args []value.Value) value.Value {
	if !IsClosure(f) {
		h.InvalidArgument("apply: value is not a function")
	}
	if len(args) == 0 {
		return f
	}
	h.depth++
	defer func() { h.depth-- }()
	if h.depth > h.cfg.MaxCallDepth {
		h.RaiseStackOverflow()
	}
	for {
		arity := ClosureArity(f)
		switch {
		case len(args) == arity:
			return h.enter(f, args)
		case len(args) < arity:
			return h.allocClosure(papCode, arity-len(args), append([]value.Value{f}, args...))
		}
		top := h.LocalsTop()
		for _, a := range args[arity:] {
			h.PushLocal(a)
		}
		r := h.enter(f, args[:arity])
		rest := slices.Clone(h.locals[top:])
		h.PopLocals(top)
		if !IsClosure(r) {
			h.InvalidArgument("apply: too many arguments")
		}
		f, args = r, rest
	}
}

func (h *Heap) enter(f value.Value, args []value.Value) value.Value {
	code := h.codes[f.Field(closureCode).IntVal()]
	base := h.PushLocal(f)
	for _, a := range args {
		h.PushLocal(a)
	}
	r := code.fn(&Call{h: h, base: base, n: len(args)})
	h.PopLocals(base)
	return r
}

func (h *Heap) callbackExn(f value.Value, args []value.Value) value.Value {
	res, exn, raised := h.Try(func() value.Value {
		return h.apply(f, args)
	})
	if raised {
		return value.MakeExceptionResult(exn)
	}
	return res
}

// CallbackExn applies f to arg. A raised exception is returned marked.
func (h *Heap) CallbackExn(f, arg value.Value) value.Value {
	return h.callbackExn(f, []value.Value{arg})
}

// Callback2Exn applies f to two arguments.
func (h *Heap) Callback2Exn(f, a1, a2 value.Value) value.Value {
	return h.callbackExn(f, []value.Value{a1, a2})
}

// Callback3Exn applies f to three arguments.
func (h *Heap) Callback3Exn(f, a1, a2, a3 value.Value) value.Value {
	return h.callbackExn(f, []value.Value{a1, a2, a3})
}

// CallbackNExn applies f to args.
func (h *Heap) CallbackNExn(f value.Value, args []value.Value) value.Value {
	return h.callbackExn(f, slices.Clone(args))
}

// RegisterExternal makes fn reachable from foreign code under name.
func (h *Heap) RegisterExternal(name string, arity int, fn mlbridge.External) {
	h.externals[name] = &external{name: name, arity: arity, fn: fn}
}

// Externals returns the registered external names in sorted order.
func (h *Heap) Externals() []string {
	names := make([]string, 0, len(h.externals))
	for name := range h.externals {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// ExternalArity returns the declared arity of an external.
func (h *Heap) ExternalArity(name string) (int, bool) {
	ext, ok := h.externals[name]
	if !ok {
		return 0, false
	}
	return ext.arity, true
}

// CallExternal calls a registered external from the foreign side.
// Exceptions raised by it propagate.
func (h *Heap) CallExternal(name string, args ...value.Value) value.Value {
	ext, ok := h.externals[name]
	if !ok {
		h.Failwith("external not found: " + name)
	}
	if ext.arity != len(args) {
		h.InvalidArgument("external " + name + ": wrong number of arguments")
	}
	h.depth++
	defer func() { h.depth-- }()
	if h.depth > h.cfg.MaxCallDepth {
		h.RaiseStackOverflow()
	}
	return ext.fn(slices.Clone(args))
}

// Invoke calls an external the way a foreign caller wrapped in a handler
// would: exceptions are trapped and returned.
func (h *Heap) Invoke(name string, args ...value.Value) (res value.Value, exn value.Value, raised bool) {
	return h.Try(func() value.Value {
		return h.CallExternal(name, args...)
	})
}

// ExternalClosure returns a closure that calls the named external. The
// code is defined once per external.
func (h *Heap) ExternalClosure(name string) value.Value {
	ext, ok := h.externals[name]
	if !ok {
		h.Failwith("external not found: " + name)
	}
	if !ext.hasCode {
		arity := ext.arity
		ext.code = h.DefineCode(name, max(arity, 1), func(c *Call) value.Value {
			if arity == 0 {
				return c.h.CallExternal(name)
			}
			return c.h.CallExternal(name, c.Args()...)
		})
		ext.hasCode = true
	}
	return h.AllocClosure(ext.code)
}
