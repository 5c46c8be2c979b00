package engine

import (
	"go.uber.org/zap"

	"github.com/wippyai/mlbridge/value"
)

// Predefined exception names.
const (
	ExnOutOfMemory     = "Out_of_memory"
	ExnSysError        = "Sys_error"
	ExnFailure         = "Failure"
	ExnInvalidArgument = "Invalid_argument"
	ExnEndOfFile       = "End_of_file"
	ExnDivisionByZero  = "Division_by_zero"
	ExnNotFound        = "Not_found"
	ExnMatchFailure    = "Match_failure"
	ExnStackOverflow   = "Stack_overflow"
	ExnSysBlockedIO    = "Sys_blocked_io"
	ExnAssertFailure   = "Assert_failure"
)

type predefined struct {
	byName          map[string]value.Value
	outOfMemory     value.Value
	sysError        value.Value
	failure         value.Value
	invalidArgument value.Value
	endOfFile       value.Value
	divisionByZero  value.Value
	notFound        value.Value
	stackOverflow   value.Value
	sysBlockedIO    value.Value
}

// raiseSignal is the panic payload of a foreign raise. The exception itself
// stays in the heap's pending root until a trap collects it.
type raiseSignal struct {
	heap *Heap
}

func (*raiseSignal) ForeignRaise() {}

func (s *raiseSignal) String() string {
	return "uncaught foreign exception " + ExceptionName(s.heap.pending)
}

func (h *Heap) initExceptions() {
	h.exn.byName = make(map[string]value.Value)
	mk := func(id int64, name string) value.Value {
		ctor := h.allocException(id, name)
		h.exn.byName[name] = ctor
		return ctor
	}
	h.exn.outOfMemory = mk(-1, ExnOutOfMemory)
	h.exn.sysError = mk(-2, ExnSysError)
	h.exn.failure = mk(-3, ExnFailure)
	h.exn.invalidArgument = mk(-4, ExnInvalidArgument)
	h.exn.endOfFile = mk(-5, ExnEndOfFile)
	h.exn.divisionByZero = mk(-6, ExnDivisionByZero)
	h.exn.notFound = mk(-7, ExnNotFound)
	mk(-8, ExnMatchFailure)
	h.exn.stackOverflow = mk(-9, ExnStackOverflow)
	h.exn.sysBlockedIO = mk(-10, ExnSysBlockedIO)
	mk(-11, ExnAssertFailure)
}

func (h *Heap) allocException(id int64, name string) value.Value {
	ctor := h.AllocStatic(2, value.ObjectTag)
	ctor.StoreField(0, h.staticString(name))
	ctor.StoreField(1, value.Int(id))
	return ctor
}

// NewException creates an exception constructor. Constructors live outside
// the collected heap.
func (h *Heap) NewException(name string) value.Value {
	h.nextExnID++
	return h.allocException(h.nextExnID, name)
}

// RegisterException creates a constructor and publishes it as a named value.
func (h *Heap) RegisterException(name string) value.Value {
	ctor := h.NewException(name)
	h.RegisterNamedValue(name, ctor)
	return ctor
}

// Exception returns a predefined exception constructor by name.
func (h *Heap) Exception(name string) (value.Value, bool) {
	v, ok := h.exn.byName[name]
	return v, ok
}

// ExceptionName returns the constructor name of an exception value.
func ExceptionName(exn value.Value) string {
	ctor := exceptionCtor(exn)
	if ctor == 0 {
		return "<not an exception>"
	}
	return ctor.Field(0).StringVal()
}

// ExceptionArg returns the first argument of an exception, if any.
func ExceptionArg(exn value.Value) (value.Value, bool) {
	if exn.IsBlock() && exn.Tag() == 0 && exn.Wosize() >= 2 {
		return exn.Field(1), true
	}
	return 0, false
}

func exceptionCtor(exn value.Value) value.Value {
	if !exn.IsBlock() || exn.Wosize() == 0 {
		return 0
	}
	switch exn.Tag() {
	case value.ObjectTag:
		return exn
	case 0:
		ctor := exn.Field(0)
		if ctor.IsBlock() && ctor.Tag() == value.ObjectTag {
			return ctor
		}
	}
	return 0
}

// IsException reports whether exn is built from ctor.
func IsException(exn, ctor value.Value) bool {
	return exceptionCtor(exn) == ctor
}

// Try runs fn and traps a foreign raise. The returned exception is not rooted.
func (h *Heap) Try(fn func() value.Value) (res value.Value, exn value.Value, raised bool) {
	depth := h.depth
	top := h.LocalsTop()
	noAlloc := h.noAlloc
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		sig, ok := r.(*raiseSignal)
		if !ok || sig.heap != h {
			panic(r)
		}
		h.depth = depth
		h.noAlloc = noAlloc
		h.PopLocals(top)
		res, exn, raised = 0, h.pending, true
		h.pending = value.Unit
	}()
	return fn(), 0, false
}

// Raise raises exn. It never returns.
func (h *Heap) Raise(exn value.Value) {
	h.pending = exn
	panic(h.signal)
}

// RaiseWithArg raises an exception built from a constructor and one argument.
func (h *Heap) RaiseWithArg(ctor, arg value.Value) {
	top := h.LocalsTop()
	c := h.PushLocal(ctor)
	a := h.PushLocal(arg)
	b := h.AllocSmall(2, 0)
	b.StoreField(0, h.Local(c))
	b.StoreField(1, h.Local(a))
	h.PopLocals(top)
	h.Raise(b)
}

// RaiseWithString raises ctor with a string argument.
func (h *Heap) RaiseWithString(ctor value.Value, msg string) {
	top := h.LocalsTop()
	c := h.PushLocal(ctor)
	s := h.AllocString([]byte(msg))
	ctor = h.Local(c)
	h.PopLocals(top)
	h.RaiseWithArg(ctor, s)
}

// Failwith raises Failure msg.
func (h *Heap) Failwith(msg string) {
	h.RaiseWithString(h.exn.failure, msg)
}

// InvalidArgument raises Invalid_argument msg.
func (h *Heap) InvalidArgument(msg string) {
	h.RaiseWithString(h.exn.invalidArgument, msg)
}

// RaiseNotFound raises Not_found.
func (h *Heap) RaiseNotFound() {
	h.Raise(h.exn.notFound)
}

// RaiseOutOfMemory raises Out_of_memory without allocating.
func (h *Heap) RaiseOutOfMemory() {
	Logger().Warn("raising out of memory", zap.Int("major_words", h.majorWords))
	h.Raise(h.exn.outOfMemory)
}

// RaiseStackOverflow raises Stack_overflow without allocating.
func (h *Heap) RaiseStackOverflow() {
	Logger().Warn("raising stack overflow", zap.Int("depth", h.depth))
	h.Raise(h.exn.stackOverflow)
}

// RaiseSysError raises Sys_error msg.
func (h *Heap) RaiseSysError(msg string) {
	h.RaiseWithString(h.exn.sysError, msg)
}

// RaiseEndOfFile raises End_of_file.
func (h *Heap) RaiseEndOfFile() {
	h.Raise(h.exn.endOfFile)
}

// RaiseZeroDivide raises Division_by_zero.
func (h *Heap) RaiseZeroDivide() {
	h.Raise(h.exn.divisionByZero)
}

// ArrayBoundError raises Invalid_argument "index out of bounds".
func (h *Heap) ArrayBoundError() {
	h.InvalidArgument("index out of bounds")
}

// RaiseSysBlockedIO raises Sys_blocked_io.
func (h *Heap) RaiseSysBlockedIO() {
	h.Raise(h.exn.sysBlockedIO)
}
