package engine

import (
	"testing"

	"github.com/wippyai/mlbridge"
	"github.com/wippyai/mlbridge/value"
)

func TestPredefinedExceptions(t *testing.T) {
	h := newTestHeap(t, Config{})
	tests := []struct {
		name  string
		raise func()
		arg   string
	}{
		{ExnNotFound, h.RaiseNotFound, ""},
		{ExnOutOfMemory, h.RaiseOutOfMemory, ""},
		{ExnStackOverflow, h.RaiseStackOverflow, ""},
		{ExnEndOfFile, h.RaiseEndOfFile, ""},
		{ExnDivisionByZero, h.RaiseZeroDivide, ""},
		{ExnSysBlockedIO, h.RaiseSysBlockedIO, ""},
		{ExnFailure, func() { h.Failwith("boom") }, "boom"},
		{ExnInvalidArgument, func() { h.InvalidArgument("bad") }, "bad"},
		{ExnSysError, func() { h.RaiseSysError("io") }, "io"},
		{ExnInvalidArgument, h.ArrayBoundError, "index out of bounds"},
	}

	for _, tt := range tests {
		t.Run(tt.name+tt.arg, func(t *testing.T) {
			_, exn, raised := h.Try(func() value.Value {
				tt.raise()
				return value.Unit
			})
			if !raised {
				t.Fatal("did not raise")
			}
			if got := ExceptionName(exn); got != tt.name {
				t.Errorf("ExceptionName() = %q, want %q", got, tt.name)
			}
			arg, ok := ExceptionArg(exn)
			if ok != (tt.arg != "") {
				t.Fatalf("ExceptionArg() ok = %v", ok)
			}
			if ok && arg.StringVal() != tt.arg {
				t.Errorf("argument = %q, want %q", arg.StringVal(), tt.arg)
			}
		})
	}
}

func TestRaiseWithArg_UnderStress(t *testing.T) {
	h := newTestHeap(t, stressConfig())
	ctor := h.RegisterException("Custom_error")
	_, exn, raised := h.Try(func() value.Value {
		h.RaiseWithArg(ctor, h.AllocString([]byte("payload")))
		return value.Unit
	})
	if !raised || !IsException(exn, ctor) {
		t.Fatalf("raised=%v exn=%s", raised, h.Format(exn))
	}
	arg, _ := ExceptionArg(exn)
	if got := arg.StringVal(); got != "payload" {
		t.Errorf("argument = %q, want %q", got, "payload")
	}
}

func TestRegisterException(t *testing.T) {
	h := newTestHeap(t, Config{})
	ctor := h.RegisterException("My_error")
	cell := h.NamedValue("My_error")
	if cell == nil || *cell != ctor {
		t.Fatal("exception not published as a named value")
	}
	if ExceptionName(ctor) != "My_error" {
		t.Errorf("ExceptionName() = %q", ExceptionName(ctor))
	}
	other := h.NewException("My_error")
	if IsException(other, ctor) {
		t.Error("distinct constructors with the same name compare equal")
	}
	if _, ok := h.Exception(ExnFailure); !ok {
		t.Error("Exception(Failure) not found")
	}
	if _, ok := h.Exception("My_error"); ok {
		t.Error("user exceptions are not predefined")
	}
}

func TestTry_ForeignPanicsPropagate(t *testing.T) {
	h := newTestHeap(t, Config{})
	defer func() {
		if r := recover(); r != "other" {
			t.Errorf("recovered %v, want %q", r, "other")
		}
	}()
	h.Try(func() value.Value { panic("other") })
}

func TestRaiseSignal(t *testing.T) {
	h := newTestHeap(t, Config{})
	defer func() {
		r := recover()
		if _, ok := r.(mlbridge.RaiseSignal); !ok {
			t.Errorf("panic payload %T does not implement RaiseSignal", r)
		}
	}()
	h.RaiseNotFound()
}

func TestTry_Nested(t *testing.T) {
	h := newTestHeap(t, Config{})
	res, _, raised := h.Try(func() value.Value {
		_, exn, raised := h.Try(func() value.Value {
			h.Failwith("inner")
			return value.Unit
		})
		if !raised {
			t.Error("inner Try did not trap")
		}
		arg, _ := ExceptionArg(exn)
		return h.AllocString(arg.Bytes())
	})
	if raised {
		t.Fatal("outer Try trapped the inner exception")
	}
	if got := res.StringVal(); got != "inner" {
		t.Errorf("result = %q, want %q", got, "inner")
	}
}
