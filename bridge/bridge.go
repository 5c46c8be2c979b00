package bridge

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/wippyai/mlbridge"
	"github.com/wippyai/mlbridge/errors"
	"github.com/wippyai/mlbridge/value"
)

// PanicException is the named exception raised for recovered Go panics.
const PanicException = "Go_exception"

// Raise raises err on the foreign side. It never returns.
func Raise(abi mlbridge.ABI, err error) {
	e := errors.As(err)
	if e == nil {
		abi.Failwith("nil error raised")
		return
	}
	Logger().Debug("raising error",
		zap.String("kind", string(e.Kind)),
		zap.String("phase", string(e.Phase)),
		zap.Bool("panicked", e.Panicked))

	if e.Panicked {
		RaisePanic(abi, e.Message())
		return
	}

	switch e.Kind {
	case errors.KindNotFound:
		abi.RaiseNotFound()
	case errors.KindFailure:
		abi.Failwith(e.Message())
	case errors.KindInvalidArgument:
		abi.InvalidArgument(e.Message())
	case errors.KindOutOfMemory:
		abi.RaiseOutOfMemory()
	case errors.KindStackOverflow:
		abi.RaiseStackOverflow()
	case errors.KindSysError:
		abi.RaiseSysError(e.Message())
	case errors.KindEndOfFile:
		abi.RaiseEndOfFile()
	case errors.KindZeroDivide:
		abi.RaiseZeroDivide()
	case errors.KindArrayBound:
		abi.ArrayBoundError()
	case errors.KindBlockedIO:
		abi.RaiseSysBlockedIO()
	case errors.KindForeignException:
		if e.Exn == nil {
			abi.Failwith(e.Error())
			return
		}
		abi.Raise(e.Exn.Get())
	case errors.KindForeignExceptionWithArg:
		if e.Exn == nil || e.Arg == nil {
			abi.Failwith(e.Error())
			return
		}
		abi.RaiseWithArg(e.Exn.Get(), e.Arg.Get())
	case errors.KindWrapped:
		abi.Failwith(e.Message())
	case errors.KindNotCallable:
		abi.Failwith("value is not callable")
	case errors.KindNotDoubleArray:
		abi.Failwith("invalid double array")
	default:
		abi.Failwith(e.Error())
	}
}

// RaisePanic raises msg through the registered panic exception, or as a
// Failure when PanicException is not registered.
func RaisePanic(abi mlbridge.ABI, msg string) {
	if cell := abi.NamedValue(PanicException); cell != nil {
		abi.RaiseWithString(*cell, msg)
		return
	}
	abi.Failwith(msg)
}

// RaiseNamed raises the exception registered under name with a string
// argument. A missing registration raises Failure describing it.
func RaiseNamed(abi mlbridge.ABI, name, msg string) {
	cell := abi.NamedValue(name)
	if cell == nil {
		abi.Failwith(errors.NotRegistered(name).Detail)
		return
	}
	abi.RaiseWithString(*cell, msg)
}

// PanicMessage extracts a message from a recovered panic payload.
func PanicMessage(r any) string {
	switch p := r.(type) {
	case string:
		return p
	case error:
		return p.Error()
	case fmt.Stringer:
		return p.String()
	}
	return fmt.Sprintf("%v", r)
}

// ExceptionName returns the constructor name of a foreign exception value,
// or "" when v does not have the shape of an exception.
func ExceptionName(v value.Value) string {
	ctor := exceptionCtor(v)
	if ctor == 0 {
		return ""
	}
	name := ctor.Field(0)
	if !name.IsBlock() || name.Tag() != value.StringTag {
		return ""
	}
	return name.StringVal()
}

// ExceptionMessage returns the string argument of an exception such as
// Failure or Invalid_argument, if it has one.
func ExceptionMessage(v value.Value) (string, bool) {
	if !v.IsBlock() || v.Tag() != 0 || v.Wosize() < 2 || exceptionCtor(v) == 0 {
		return "", false
	}
	arg := v.Field(1)
	if !arg.IsBlock() || arg.Tag() != value.StringTag {
		return "", false
	}
	return arg.StringVal(), true
}

// Describe renders an exception as Name or Name("message").
func Describe(v value.Value) string {
	name := ExceptionName(v)
	if name == "" {
		return "<unknown exception>"
	}
	if msg, ok := ExceptionMessage(v); ok {
		return fmt.Sprintf("%s(%q)", name, msg)
	}
	return name
}

func exceptionCtor(v value.Value) value.Value {
	if !v.IsBlock() || v.Wosize() == 0 {
		return 0
	}
	switch v.Tag() {
	case value.ObjectTag:
		return v
	case 0:
		ctor := v.Field(0)
		if ctor.IsBlock() && ctor.Tag() == value.ObjectTag && ctor.Wosize() > 0 {
			return ctor
		}
	}
	return 0
}
