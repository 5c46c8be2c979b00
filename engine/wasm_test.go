package engine

import (
	"context"
	"strings"
	"testing"

	"github.com/wippyai/mlbridge/value"
)

// wordsModule exports functions over raw value words:
//
//	add1 (x) = x + 2        the tagged successor
//	add  (x, y) = x + y - 1 tagged addition
//	trap (x) = unreachable
var wordsModule = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
	// type section: (i64) -> i64, (i64, i64) -> i64
	0x01, 0x0c, 0x02,
	0x60, 0x01, 0x7e, 0x01, 0x7e,
	0x60, 0x02, 0x7e, 0x7e, 0x01, 0x7e,
	// function section
	0x03, 0x04, 0x03, 0x00, 0x01, 0x00,
	// export section
	0x07, 0x15, 0x03,
	0x04, 'a', 'd', 'd', '1', 0x00, 0x00,
	0x03, 'a', 'd', 'd', 0x00, 0x01,
	0x04, 't', 'r', 'a', 'p', 0x00, 0x02,
	// code section
	0x0a, 0x18, 0x03,
	0x07, 0x00, 0x20, 0x00, 0x42, 0x02, 0x7c, 0x0b,
	0x0a, 0x00, 0x20, 0x00, 0x20, 0x01, 0x7c, 0x42, 0x01, 0x7d, 0x0b,
	0x03, 0x00, 0x00, 0x0b,
}

func TestLoadWasm(t *testing.T) {
	h := newTestHeap(t, Config{})
	codes, err := h.LoadWasm(context.Background(), "words", wordsModule)
	if err != nil {
		t.Fatalf("LoadWasm() error = %v", err)
	}
	if len(codes) != 3 {
		t.Fatalf("LoadWasm() codes = %v, want 3 entries", codes)
	}

	add1 := h.AllocClosure(codes["add1"])
	if got := h.CallbackExn(add1, value.Int(41)); got != value.Int(42) {
		t.Errorf("add1 41 = %s, want 42", h.Format(got))
	}

	add := h.PushLocal(h.AllocClosure(codes["add"]))
	if got := h.Callback2Exn(h.Local(add), value.Int(20), value.Int(22)); got != value.Int(42) {
		t.Errorf("add 20 22 = %s, want 42", h.Format(got))
	}
	partial := h.CallbackExn(h.Local(add), value.Int(-3))
	if got := h.CallbackExn(partial, value.Int(3)); got != value.Int(0) {
		t.Errorf("(add -3) 3 = %s, want 0", h.Format(got))
	}
	if got := h.CodeName(h.Local(add)); got != "words.add" {
		t.Errorf("CodeName() = %q, want %q", got, "words.add")
	}
}

func TestLoadWasm_TrapRaisesFailure(t *testing.T) {
	h := newTestHeap(t, Config{})
	codes, err := h.LoadWasm(context.Background(), "words", wordsModule)
	if err != nil {
		t.Fatalf("LoadWasm() error = %v", err)
	}
	r := h.CallbackExn(h.AllocClosure(codes["trap"]), value.Unit)
	if !r.IsExceptionResult() {
		t.Fatal("trap did not raise")
	}
	exn := r.ExceptionOf()
	if ExceptionName(exn) != ExnFailure {
		t.Fatalf("raised %s, want Failure", ExceptionName(exn))
	}
	arg, _ := ExceptionArg(exn)
	if !strings.HasPrefix(arg.StringVal(), "wasm words.trap") {
		t.Errorf("message = %q", arg.StringVal())
	}
}

func TestLoadWasm_Invalid(t *testing.T) {
	h := newTestHeap(t, Config{})
	if _, err := h.LoadWasm(context.Background(), "bad", []byte{0x00, 0x61}); err == nil {
		t.Error("LoadWasm() accepted a truncated module")
	}
}
