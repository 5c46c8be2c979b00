package engine

import (
	"math"
	"testing"

	"github.com/wippyai/mlbridge/value"
)

func TestCompare(t *testing.T) {
	h := newTestHeap(t, Config{})
	str := func(s string) value.Value { return h.AllocString([]byte(s)) }
	flt := func(f float64) value.Value { return h.AllocFloat(f) }
	tup := func(fields ...value.Value) value.Value {
		v := h.AllocTuple(len(fields))
		for i, f := range fields {
			v.StoreField(i, f)
		}
		return v
	}

	tests := []struct {
		name string
		a, b value.Value
		want int
	}{
		{"ints", value.Int(1), value.Int(2), -1},
		{"negative ints", value.Int(-5), value.Int(-5), 0},
		{"immediate before block", value.Int(100), str("a"), -1},
		{"block after immediate", str("a"), value.Int(100), 1},
		{"strings", str("abc"), str("abd"), -1},
		{"string prefix", str("ab"), str("abc"), -1},
		{"floats", flt(2.5), flt(1.5), 1},
		{"nan", flt(math.NaN()), flt(math.NaN()), 0},
		{"nan first", flt(math.NaN()), flt(0), -1},
		{"tuples", tup(value.Int(1), value.Int(2)), tup(value.Int(1), value.Int(3)), -1},
		{"tuple size", tup(value.Int(9)), tup(value.Int(1), value.Int(1)), -1},
		{"equal tuples", tup(value.Int(1), value.Int(2)), tup(value.Int(1), value.Int(2)), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := h.Compare(tt.a, tt.b); got != tt.want {
				t.Errorf("Compare(%s, %s) = %d, want %d", h.Format(tt.a), h.Format(tt.b), got, tt.want)
			}
		})
	}
}

func TestCompare_Functional(t *testing.T) {
	h := newTestHeap(t, Config{})
	f := h.NewClosure(1, func(c *Call) value.Value { return c.Arg(0) })
	_, exn, raised := h.Try(func() value.Value {
		return value.Int(int64(h.Compare(f, h.NewClosure(1, func(c *Call) value.Value { return c.Arg(0) }))))
	})
	if !raised {
		t.Fatal("comparing closures did not raise")
	}
	arg, _ := ExceptionArg(exn)
	if got := arg.StringVal(); got != "compare: functional value" {
		t.Errorf("message = %q", got)
	}
	if h.Compare(f, f) != 0 {
		t.Error("physically equal closures do not compare equal")
	}
}

func TestHash(t *testing.T) {
	h := newTestHeap(t, Config{})
	a := h.AllocString([]byte("hash me"))
	b := h.AllocString([]byte("hash me"))
	c := h.AllocString([]byte("hash you"))
	if h.Hash(a) != h.Hash(b) {
		t.Error("equal strings hash differently")
	}
	if h.Hash(a) == h.Hash(c) {
		t.Error("different strings collide")
	}
	for _, v := range []value.Value{value.Int(0), value.Int(-1), a, h.AllocFloat(1.5), h.AllocInt64(7)} {
		if got := h.Hash(v); got < 0 || got > 0x3FFFFFFF {
			t.Errorf("Hash(%s) = %d, out of range", h.Format(v), got)
		}
	}
	if h.Hash(h.AllocFloat(0)) != h.Hash(h.AllocFloat(math.Copysign(0, -1))) {
		t.Error("0.0 and -0.0 hash differently")
	}
}

func TestHashVariant(t *testing.T) {
	tests := []struct {
		name string
		want int64
	}{
		{"A", 65},
		{"Foo", 3505894},
		{"", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HashVariant(tt.name); got != value.Int(tt.want) {
				t.Errorf("HashVariant(%q) = %d, want %d", tt.name, got.IntVal(), tt.want)
			}
		})
	}

	for _, name := range []string{"Some_long_constructor_name", "zzzzzzzzzz"} {
		v := HashVariant(name).IntVal()
		if v < -(1<<30) || v >= 1<<30 {
			t.Errorf("HashVariant(%q) = %d, not a 31-bit value", name, v)
		}
	}
}
