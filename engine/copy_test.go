package engine

import (
	"testing"

	"github.com/wippyai/mlbridge/value"
)

func TestDeepCopy_RoundTrip(t *testing.T) {
	h := newTestHeap(t, poisonConfig())
	s := h.PushLocal(h.AllocString([]byte("leaf")))
	inner := h.AllocTuple(2)
	inner.StoreField(0, h.Local(s))
	inner.StoreField(1, h.Local(s))
	h.SetLocal(s, inner)
	outer := h.AllocTuple(3)
	outer.StoreField(0, value.Int(7))
	outer.StoreField(1, h.Local(s))
	outer.StoreField(2, h.AllocFloat(2.5))

	out := h.DeepCopyOut(outer)
	if h.InHeap(out) {
		t.Fatal("DeepCopyOut result is in the collected heap")
	}
	if out.Field(1).Field(0) != out.Field(1).Field(1) {
		t.Error("sharing lost in the static copy")
	}

	h.PopLocals(s)
	h.FullMajor()

	if got := h.Format(out); got != `0(7, 0("leaf", "leaf"), 2.5)` {
		t.Errorf("static copy after collection = %s", got)
	}

	back := h.DeepCopyIn(out)
	if !h.InHeap(back) {
		t.Fatal("DeepCopyIn result is not in the heap")
	}
	if !h.Equal(back, out) {
		t.Errorf("DeepCopyIn = %s, want %s", h.Format(back), h.Format(out))
	}
	if back.Field(1).Field(0) != back.Field(1).Field(1) {
		t.Error("sharing lost in the heap copy")
	}
}

func TestDeepCopyIn_UnderStress(t *testing.T) {
	h := newTestHeap(t, stressConfig())
	list := value.EmptyList
	for i := 3; i > 0; i-- {
		slot := h.PushLocal(list)
		cell := h.AllocTuple(2)
		cell.StoreField(0, value.Int(int64(i)))
		cell.StoreField(1, h.Local(slot))
		h.PopLocals(slot)
		list = cell
	}
	out := h.DeepCopyOut(list)
	back := h.DeepCopyIn(out)
	if got := h.Format(back); got != "0(1, 0(2, 0(3, 0)))" {
		t.Errorf("DeepCopyIn = %s", got)
	}
	if !h.Equal(out, back) {
		t.Errorf("DeepCopyIn = %s, want equal to %s", h.Format(back), h.Format(out))
	}
}

func TestDeepCopyOut_RejectsFinalizedBlocks(t *testing.T) {
	h := newTestHeap(t, Config{})
	v := h.AllocFinal(1, func(value.Value) {}, 0, 1)
	_, exn, raised := h.Try(func() value.Value {
		return h.DeepCopyOut(v)
	})
	if !raised || ExceptionName(exn) != ExnInvalidArgument {
		t.Errorf("raised=%v %s, want Invalid_argument", raised, h.Format(exn))
	}
}

func TestDeepCopy_Immediates(t *testing.T) {
	h := newTestHeap(t, Config{})
	if h.DeepCopyOut(value.Int(5)) != value.Int(5) || h.DeepCopyIn(value.Int(5)) != value.Int(5) {
		t.Error("immediates were not returned unchanged")
	}
}
