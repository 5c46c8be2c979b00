package engine

import (
	"testing"

	"github.com/wippyai/mlbridge/value"
)

func newTestHeap(t *testing.T, cfg Config) *Heap {
	t.Helper()
	h := New(cfg)
	t.Cleanup(func() { _ = h.Close() })
	return h
}

// stressConfig relocates every block on every allocation and poisons
// retired memory.
func stressConfig() Config {
	return Config{MinorHeapWords: 1024, MajorChunkWords: 256, GCStress: true, Poison: true}
}

func poisonConfig() Config {
	return Config{MinorHeapWords: 4096, MajorChunkWords: 1024, Poison: true}
}

func TestAllocString(t *testing.T) {
	tests := []struct {
		input  string
		wosize int
	}{
		{"", 1},
		{"a", 1},
		{"1234567", 1},
		{"12345678", 2},
		{"hello, world", 2},
	}

	h := newTestHeap(t, Config{})
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			v := h.AllocString([]byte(tt.input))
			if v.Tag() != value.StringTag {
				t.Errorf("Tag() = %v, want string", v.Tag())
			}
			if v.Wosize() != tt.wosize {
				t.Errorf("Wosize() = %d, want %d", v.Wosize(), tt.wosize)
			}
			if got := v.StringVal(); got != tt.input {
				t.Errorf("StringVal() = %q, want %q", got, tt.input)
			}
		})
	}
}

func TestAllocString_FromHeapBytes(t *testing.T) {
	h := newTestHeap(t, stressConfig())
	src := h.AllocString([]byte("aliased"))
	dup := h.AllocString(src.Bytes())
	if got := dup.StringVal(); got != "aliased" {
		t.Errorf("StringVal() = %q, want %q", got, "aliased")
	}
}

func TestAlloc_InitializesFields(t *testing.T) {
	h := newTestHeap(t, Config{})
	v := h.Alloc(3, 0)
	for i := 0; i < 3; i++ {
		if v.Field(i) != value.Unit {
			t.Errorf("Field(%d) = %#x, want Unit", i, v.Field(i))
		}
	}
	d := h.AllocDoubleArray(2)
	if d.Tag() != value.DoubleArrayTag || d.DoubleField(1) != 0 {
		t.Errorf("AllocDoubleArray(2) = tag %v, [1]=%v", d.Tag(), d.DoubleField(1))
	}
}

func TestAtoms(t *testing.T) {
	h := newTestHeap(t, Config{})
	for _, tag := range []value.Tag{0, 3, value.MaxVariantTag} {
		a := h.Alloc(0, tag)
		if a != h.Atom(tag) {
			t.Errorf("Alloc(0, %d) is not the atom", tag)
		}
		if a.Tag() != tag || a.Wosize() != 0 {
			t.Errorf("atom %d: tag=%d wosize=%d", tag, a.Tag(), a.Wosize())
		}
		if h.InHeap(a) {
			t.Errorf("atom %d reported in collected heap", tag)
		}
	}
	if h.AllocDoubleArray(0) != h.Atom(0) {
		t.Error("empty double array is not Atom(0)")
	}
}

func TestAllocSmall_TooLarge(t *testing.T) {
	h := newTestHeap(t, Config{})
	_, exn, raised := h.Try(func() value.Value {
		return h.AllocSmall(MaxYoungWosize+1, 0)
	})
	if !raised {
		t.Fatal("AllocSmall beyond MaxYoungWosize did not raise")
	}
	if name := ExceptionName(exn); name != ExnInvalidArgument {
		t.Errorf("raised %s, want %s", name, ExnInvalidArgument)
	}
}

func TestLargeBlocksGoToMajorHeap(t *testing.T) {
	h := newTestHeap(t, Config{})
	small := h.Alloc(4, 0)
	large := h.Alloc(MaxYoungWosize+1, 0)
	if !h.IsYoung(small) {
		t.Error("small block not young")
	}
	if h.IsYoung(large) || !h.InHeap(large) {
		t.Error("large block not in major heap")
	}
}

func TestLocals(t *testing.T) {
	h := newTestHeap(t, Config{})
	top := h.LocalsTop()
	a := h.PushLocal(value.Int(1))
	b := h.PushLocal(value.Int(2))
	h.SetLocal(a, value.Int(3))
	if h.Local(a) != value.Int(3) || h.Local(b) != value.Int(2) {
		t.Errorf("locals = %v, %v", h.Local(a), h.Local(b))
	}
	h.PopLocals(top)
	if h.LocalsTop() != top {
		t.Errorf("LocalsTop() = %d, want %d", h.LocalsTop(), top)
	}
	h.PopLocals(top + 10)
	if h.LocalsTop() != top {
		t.Errorf("PopLocals above top changed height to %d", h.LocalsTop())
	}
}

func TestNamedValue(t *testing.T) {
	h := newTestHeap(t, poisonConfig())
	if h.NamedValue("missing") != nil {
		t.Error("NamedValue(missing) != nil")
	}
	h.RegisterNamedValue("greeting", h.AllocString([]byte("hi")))
	h.FullMajor()
	cell := h.NamedValue("greeting")
	if cell == nil {
		t.Fatal("NamedValue(greeting) = nil")
	}
	if got := cell.StringVal(); got != "hi" {
		t.Errorf("named value = %q, want %q", got, "hi")
	}
	h.RegisterNamedValue("greeting", value.Int(7))
	if *h.NamedValue("greeting") != value.Int(7) {
		t.Error("re-registering did not update the cell")
	}
}

func TestClose(t *testing.T) {
	h := New(Config{})
	if err := h.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := h.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	defer func() {
		if recover() == nil {
			t.Error("allocation after Close did not panic")
		}
	}()
	h.AllocTuple(1)
}
