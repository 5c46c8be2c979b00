package transcoder

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wippyai/mlbridge/errors"
	"github.com/wippyai/mlbridge/runtime"
	"github.com/wippyai/mlbridge/value"
)

type address struct {
	Street string
	Zip    uint16
}

type person struct {
	Name     string
	Age      int
	Email    *string
	Tags     []string
	Scores   []float64
	Home     address
	Previous []address `ml:"previous,list"`
	Secret   string    `ml:"-"`
	internal int
}

type node struct {
	Value int
	Next  *node
}

type celsius float64

// ToValue stores tenths of a degree as an immediate.
func (c celsius) ToValue(tok runtime.AllocToken) value.Value {
	return value.Int(int64(math.Round(float64(c) * 10)))
}

func (c *celsius) FromValue(_ *runtime.Runtime, v value.Value) error {
	if !v.IsImmediate() {
		return errors.TypeMismatch(errors.PhaseDecode, nil, "expected tenths of a degree")
	}
	*c = celsius(float64(v.IntVal()) / 10)
	return nil
}

type reading struct {
	Where string
	Temp  celsius
}

func marshalRoundTrip[T any](t *testing.T, rt *runtime.Runtime, x T, opts ...cmp.Option) {
	t.Helper()
	v, err := Marshal(rt.Token(), x)
	if err != nil {
		t.Fatalf("Marshal(%T): %v", x, err)
	}
	var got T
	if err := Unmarshal(rt, v, &got); err != nil {
		t.Fatalf("Unmarshal(%T): %v", x, err)
	}
	if diff := cmp.Diff(x, got, opts...); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	withRuntime(t, func(rt *runtime.Runtime) {
		email := "ada@example.com"
		marshalRoundTrip(t, rt, person{
			Name:     "Ada",
			Age:      36,
			Email:    &email,
			Tags:     []string{"math", "engines"},
			Scores:   []float64{9.5, 8},
			Home:     address{"St James's Square", 1234},
			Previous: []address{{"Marylebone", 1}, {"Ockham", 2}},
		}, cmp.AllowUnexported(person{}))
		marshalRoundTrip(t, rt, person{Tags: []string{}, Scores: []float64{}}, cmp.AllowUnexported(person{}))

		marshalRoundTrip(t, rt, true)
		marshalRoundTrip(t, rt, int8(-5))
		marshalRoundTrip(t, rt, uint32(math.MaxUint32))
		marshalRoundTrip(t, rt, float32(1.25))
		marshalRoundTrip(t, rt, "text")
		marshalRoundTrip(t, rt, []byte("bytes"))
		marshalRoundTrip(t, rt, [3]int{1, 2, 3})
		marshalRoundTrip(t, rt, [][]string{{"a"}, {}, {"b", "c"}})
		marshalRoundTrip(t, rt, struct{}{})
		marshalRoundTrip(t, rt, &node{Value: 1, Next: &node{Value: 2}})
		marshalRoundTrip(t, rt, reading{Where: "lab", Temp: 21.5})
	})
}

func TestMarshalLayout(t *testing.T) {
	withRuntime(t, func(rt *runtime.Runtime) {
		tok := rt.Token()

		v, err := Marshal(tok, address{"Main", 7})
		if err != nil {
			t.Fatal(err)
		}
		if v.Tag() != 0 || v.Wosize() != 2 || v.Field(1) != value.Int(7) {
			t.Errorf("record layout: tag=%d size=%d", v.Tag(), v.Wosize())
		}

		v, err = Marshal(tok, struct{ X, Y float64 }{1, 2})
		if err != nil {
			t.Fatal(err)
		}
		if !v.IsDoubleArray() || v.ArrayLen() != 2 || v.DoubleField(1) != 2 {
			t.Errorf("float record is not a double array: tag=%v", v.Tag())
		}

		v, err = Marshal(tok, (*int)(nil))
		if err != nil || v != value.None {
			t.Errorf("nil pointer = %#x, %v", v, err)
		}

		raw := value.Int(99)
		v, err = Marshal(tok, raw)
		if err != nil || v != raw {
			t.Errorf("raw value = %#x, %v", v, err)
		}

		v, err = Marshal(tok, reading{Temp: 1.5})
		if err != nil || v.Field(1) != value.Int(15) {
			t.Errorf("ToValue field = %#x, %v", v.Field(1), err)
		}
	})
}

func TestMarshalMatchesCodecs(t *testing.T) {
	withRuntime(t, func(rt *runtime.Runtime) {
		tok := rt.Token()
		f := rt.Frame()
		defer f.Close()

		viaMarshal, err := Marshal(tok, []address{{"a", 1}})
		if err != nil {
			t.Fatal(err)
		}
		m := f.Root(viaMarshal)
		ac := Record(
			RecordField("street", String, func(a *address) string { return a.Street }, func(a *address, s string) { a.Street = s }),
			RecordField("zip", Uint16, func(a *address) uint16 { return a.Zip }, func(a *address, z uint16) { a.Zip = z }),
		)
		viaCodec := Slice(ac).Encode(tok, []address{{"a", 1}})
		if rt.ABI().Compare(m.Get(), viaCodec) != 0 {
			t.Error("reflection and codec encodings differ")
		}
	})
}

func TestMarshalErrors(t *testing.T) {
	withRuntime(t, func(rt *runtime.Runtime) {
		tok := rt.Token()
		tests := []struct {
			name string
			in   any
			want error
		}{
			{"int beyond 63 bits", int64(math.MaxInt64), errors.ErrOverflow},
			{"uint beyond 63 bits", uint64(1 << 63), errors.ErrOverflow},
			{"map", map[string]int{}, errors.ErrTypeMismatch},
			{"channel in struct", struct{ C chan int }{}, errors.ErrTypeMismatch},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				if _, err := Marshal(tok, tt.in); !errors.Is(err, tt.want) {
					t.Errorf("err = %v, want %v", err, tt.want)
				}
			})
		}
	})
}

func TestUnmarshalErrors(t *testing.T) {
	withRuntime(t, func(rt *runtime.Runtime) {
		tok := rt.Token()

		var p person
		if err := Unmarshal(rt, value.Unit, p); !errors.Is(err, errors.ErrTypeMismatch) {
			t.Errorf("non-pointer target: %v", err)
		}

		v, err := Marshal(tok, struct {
			Street string
			Zip    int
		}{"x", 70000})
		if err != nil {
			t.Fatal(err)
		}
		var a address
		err = Unmarshal(rt, v, &a)
		if !errors.Is(err, errors.ErrOverflow) {
			t.Fatalf("err = %v, want overflow", err)
		}
		if diff := cmp.Diff([]string{"Zip"}, errors.As(err).Path); diff != "" {
			t.Errorf("path mismatch (-want +got):\n%s", diff)
		}

		v, err = Marshal(tok, []single{{1}, {2}})
		if err != nil {
			t.Fatal(err)
		}
		var wrong []address
		err = Unmarshal(rt, v, &wrong)
		if !errors.Is(err, errors.ErrTypeMismatch) {
			t.Fatalf("err = %v, want type mismatch", err)
		}
		if diff := cmp.Diff([]string{"[0]"}, errors.As(err).Path); diff != "" {
			t.Errorf("path mismatch (-want +got):\n%s", diff)
		}

		var fixed [2]int
		v, _ = Marshal(tok, []int{1, 2, 3})
		if err := Unmarshal(rt, v, &fixed); !errors.Is(err, errors.ErrTypeMismatch) {
			t.Errorf("array length mismatch: %v", err)
		}

		var r reading
		v, _ = Marshal(tok, struct {
			Where string
			Temp  string
		}{"x", "hot"})
		err = Unmarshal(rt, v, &r)
		if !errors.Is(err, errors.ErrTypeMismatch) {
			t.Fatalf("err = %v, want type mismatch", err)
		}
		if diff := cmp.Diff([]string{"Temp"}, errors.As(err).Path); diff != "" {
			t.Errorf("path mismatch (-want +got):\n%s", diff)
		}
	})
}

type single struct {
	N int
}
