package transcoder

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wippyai/mlbridge/engine"
	"github.com/wippyai/mlbridge/errors"
	"github.com/wippyai/mlbridge/runtime"
	"github.com/wippyai/mlbridge/value"
)

// withRuntime runs fn inside a handle on a heap that relocates every block on
// every allocation, so unrooted intermediates surface as poison.
func withRuntime(t *testing.T, fn func(rt *runtime.Runtime)) {
	t.Helper()
	h := engine.New(engine.Config{MinorHeapWords: 1024, MajorChunkWords: 256, GCStress: true, Poison: true})
	t.Cleanup(func() { _ = h.Close() })
	rt := runtime.Enter(h)
	defer rt.Leave()
	fn(rt)
}

func roundTrip[T any](t *testing.T, rt *runtime.Runtime, c Codec[T], x T) {
	t.Helper()
	v := c.Encode(rt.Token(), x)
	got, err := c.Decode(rt, v)
	if err != nil {
		t.Fatalf("decode %v: %v", x, err)
	}
	if diff := cmp.Diff(x, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestScalarRoundTrip(t *testing.T) {
	withRuntime(t, func(rt *runtime.Runtime) {
		roundTrip(t, rt, Unit, struct{}{})
		for _, b := range []bool{true, false} {
			roundTrip(t, rt, Bool, b)
		}
		for _, i := range []int{0, 1, -1, 1 << 40, -(1 << 62), 1<<62 - 1} {
			roundTrip(t, rt, Int, i)
		}
		roundTrip(t, rt, Int8, int8(math.MinInt8))
		roundTrip(t, rt, Int16, int16(math.MaxInt16))
		roundTrip(t, rt, Int32, int32(math.MinInt32))
		roundTrip(t, rt, Uint8, uint8(255))
		roundTrip(t, rt, Uint16, uint16(math.MaxUint16))
		roundTrip(t, rt, Uint32, uint32(math.MaxUint32))
		roundTrip(t, rt, Int32Box, int32(math.MinInt32))
		roundTrip(t, rt, Int64Box, int64(math.MaxInt64))
		roundTrip(t, rt, Nativeint, int64(math.MinInt64))
		for _, f := range []float64{0, -0.5, math.Pi, math.Inf(1), math.MaxFloat64} {
			roundTrip(t, rt, Float, f)
		}
		for _, s := range []string{"", "a", "seven b", "exactly8", "nine char", "héllo wörld"} {
			roundTrip(t, rt, String, s)
		}
		roundTrip(t, rt, Bytes, []byte{0, 1, 2, 0xff})
	})
}

func TestFloatNaN(t *testing.T) {
	withRuntime(t, func(rt *runtime.Runtime) {
		got, err := Float.Decode(rt, Float.Encode(rt.Token(), math.NaN()))
		if err != nil || !math.IsNaN(got) {
			t.Errorf("NaN round trip = %v, %v", got, err)
		}
	})
}

func TestEncodingLayout(t *testing.T) {
	withRuntime(t, func(rt *runtime.Runtime) {
		tok := rt.Token()

		if v := Int.Encode(tok, 5); v != value.Int(5) {
			t.Errorf("int 5 = %#x", v)
		}
		if v := Bool.Encode(tok, true); v != value.True {
			t.Errorf("true = %#x", v)
		}

		s := String.Encode(tok, "abc")
		if s.Tag() != value.StringTag || s.Wosize() != 1 || s.StringLen() != 3 {
			t.Errorf("string block tag=%v size=%d len=%d", s.Tag(), s.Wosize(), s.StringLen())
		}
		if last := s.Words()[0] >> 56; last != 4 {
			t.Errorf("padding byte = %d, want 4", last)
		}

		f := Float.Encode(tok, 1.5)
		if f.Tag() != value.DoubleTag || f.Wosize() != 1 || f.FloatVal() != 1.5 {
			t.Errorf("float block tag=%v size=%d", f.Tag(), f.Wosize())
		}

		arr := Slice(Float).Encode(tok, []float64{1, 2, 3})
		if !arr.IsDoubleArray() || arr.ArrayLen() != 3 {
			t.Errorf("float slice is not a double array: tag=%v", arr.Tag())
		}

		opt := Option(Int).Encode(tok, nil)
		if opt != value.None {
			t.Errorf("None = %#x", opt)
		}
	})
}

func TestOptionResultTuples(t *testing.T) {
	withRuntime(t, func(rt *runtime.Runtime) {
		seven := 7
		roundTrip(t, rt, Option(Int), &seven)
		roundTrip(t, rt, Option(Int), nil)
		name := "x"
		roundTrip(t, rt, Option(Option(String)), func() **string { p := &name; return &p }())

		rc := Result(String, Int)
		roundTrip(t, rt, rc, ResultValue[string, int]{Ok: "fine"})
		roundTrip(t, rt, rc, ResultValue[string, int]{Err: 3, IsErr: true})

		roundTrip(t, rt, Tuple2(String, Float), Pair[string, float64]{"pi", math.Pi})
		roundTrip(t, rt, Tuple3(Int, String, Slice(Int)), Triple[int, string, []int]{1, "two", []int{3, 4}})
	})
}

func TestSlicesAndLists(t *testing.T) {
	withRuntime(t, func(rt *runtime.Runtime) {
		roundTrip(t, rt, Slice(String), []string{"a", "bb", "ccc"})
		roundTrip(t, rt, Slice(String), []string{})
		roundTrip(t, rt, Slice(Float), []float64{1.5, -2, 0})
		roundTrip(t, rt, Slice(Slice(Int)), [][]int{{1}, {}, {2, 3}})
		roundTrip(t, rt, ListOf(Int), []int{1, 2, 3})
		roundTrip(t, rt, ListOf(Tuple2(Int, String)), []Pair[int, string]{{1, "a"}, {2, "b"}})

		tok := rt.Token()
		l := ListOf(Int).Encode(tok, []int{1, 2})
		if l.Field(0) != value.Int(1) || l.Field(1).Field(0) != value.Int(2) || l.Field(1).Field(1) != value.EmptyList {
			t.Errorf("list layout wrong")
		}
		if v := ListOf(Int).Encode(tok, nil); v != value.EmptyList {
			t.Errorf("empty list = %#x", v)
		}
		got, err := ListOf(Int).Decode(rt, value.EmptyList)
		if err != nil || len(got) != 0 {
			t.Errorf("decode empty list = %v, %v", got, err)
		}
	})
}

func TestFloatArrayAcceptsBoxedFloats(t *testing.T) {
	withRuntime(t, func(rt *runtime.Runtime) {
		boxed := Slice(Erase(Float)).Encode(rt.Token(), []any{1.0, 2.0})
		if boxed.IsDoubleArray() {
			t.Fatal("erased float codec produced a double array")
		}
		got, err := FloatArray.Decode(rt, boxed)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if diff := cmp.Diff([]float64{1, 2}, got); diff != "" {
			t.Errorf("mismatch (-want +got):\n%s", diff)
		}
	})
}

var shape3 = Variant(
	Case{Name: "Empty"},
	Case{Name: "Circle", Fields: []Codec[any]{Erase(Float)}},
	Case{Name: "Unit"},
	Case{Name: "Rect", Fields: []Codec[any]{Erase(Float), Erase(Float)}},
	Case{Name: "Named", Fields: []Codec[any]{Erase(String), Erase(Int), Erase(Slice(Int))}},
)

func TestVariant(t *testing.T) {
	withRuntime(t, func(rt *runtime.Runtime) {
		tok := rt.Token()
		tests := []struct {
			name    string
			in      VariantValue
			imm     bool
			wantTag int64
		}{
			{"constant first", VariantValue{Case: 0}, true, 0},
			{"one field", VariantValue{Case: 1, Fields: []any{2.5}}, false, 0},
			{"constant second", VariantValue{Case: 2}, true, 1},
			{"two fields", VariantValue{Case: 3, Fields: []any{1.0, 2.0}}, false, 1},
			{"three fields", VariantValue{Case: 4, Fields: []any{"n", 3, []int{1, 2}}}, false, 2},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				v := shape3.Encode(tok, tt.in)
				if tt.imm {
					if v != value.Int(tt.wantTag) {
						t.Errorf("encoded %#x, want immediate %d", v, tt.wantTag)
					}
				} else if int64(v.Tag()) != tt.wantTag || v.Wosize() != len(tt.in.Fields) {
					t.Errorf("encoded tag=%d size=%d, want tag %d", v.Tag(), v.Wosize(), tt.wantTag)
				}
				got, err := shape3.Decode(rt, v)
				if err != nil {
					t.Fatalf("decode: %v", err)
				}
				if diff := cmp.Diff(tt.in, got); diff != "" {
					t.Errorf("mismatch (-want +got):\n%s", diff)
				}
			})
		}
	})
}

func TestVariantDecodeErrors(t *testing.T) {
	withRuntime(t, func(rt *runtime.Runtime) {
		abi := rt.ABI()
		_, err := shape3.Decode(rt, value.Int(2))
		if !errors.Is(err, errors.ErrTypeMismatch) {
			t.Errorf("constant out of range: %v", err)
		}
		_, err = shape3.Decode(rt, abi.Alloc(1, 5))
		if !errors.Is(err, errors.ErrUnknownTag) {
			t.Errorf("unknown tag: %v", err)
		}
		_, err = shape3.Decode(rt, abi.Alloc(3, 1))
		if !errors.Is(err, errors.ErrTypeMismatch) {
			t.Errorf("wrong arity: %v", err)
		}
	})
}

func TestPolyVariant(t *testing.T) {
	withRuntime(t, func(rt *runtime.Runtime) {
		c := PolyVariant(
			PolyCase{Name: "Red"},
			PolyCase{Name: "Rgb", Arg: Erase(Tuple3(Int, Int, Int))},
		)
		roundTrip(t, rt, c, PolyValue{Name: "Red"})
		roundTrip(t, rt, c, PolyValue{Name: "Rgb", Arg: Triple[int, int, int]{1, 2, 3}})

		tok := rt.Token()
		if v := c.Encode(tok, PolyValue{Name: "Red"}); v != engine.HashVariant("Red") {
			t.Errorf("`Red = %#x", v)
		}
		if _, err := c.Decode(rt, engine.HashVariant("Blue")); !errors.Is(err, errors.ErrTypeMismatch) {
			t.Errorf("unknown hash: %v", err)
		}
	})
}

type point struct {
	Name string
	X, Y float64
}

type vec struct {
	X, Y float64
}

func TestRecord(t *testing.T) {
	withRuntime(t, func(rt *runtime.Runtime) {
		pc := Record(
			RecordField("name", String, func(p *point) string { return p.Name }, func(p *point, s string) { p.Name = s }),
			RecordField("x", Float, func(p *point) float64 { return p.X }, func(p *point, f float64) { p.X = f }),
			RecordField("y", Float, func(p *point) float64 { return p.Y }, func(p *point, f float64) { p.Y = f }),
		)
		roundTrip(t, rt, pc, point{"origin", 0, 0.5})

		vc := Record(
			RecordField("x", Float, func(v *vec) float64 { return v.X }, func(v *vec, f float64) { v.X = f }),
			RecordField("y", Float, func(v *vec) float64 { return v.Y }, func(v *vec, f float64) { v.Y = f }),
		)
		v := vc.Encode(rt.Token(), vec{1, 2})
		if !v.IsDoubleArray() {
			t.Errorf("float record tag = %v, want double array", v.Tag())
		}
		roundTrip(t, rt, vc, vec{3, -4})

		_, err := pc.Decode(rt, Tuple2(String, Float).Encode(rt.Token(), Pair[string, float64]{"a", 1}))
		if !errors.Is(err, errors.ErrTypeMismatch) {
			t.Errorf("short record: %v", err)
		}
	})
}

func TestDecodeShapeErrors(t *testing.T) {
	withRuntime(t, func(rt *runtime.Runtime) {
		tok := rt.Token()
		str := func() value.Value { return String.Encode(tok, "s") }
		tests := []struct {
			name   string
			decode func() error
			want   error
			path   []string
		}{
			{"string as int", func() error { _, err := Int.Decode(rt, str()); return err }, errors.ErrTypeMismatch, nil},
			{"int as string", func() error { _, err := String.Decode(rt, value.Int(1)); return err }, errors.ErrTypeMismatch, nil},
			{"int as float", func() error { _, err := Float.Decode(rt, value.Int(1)); return err }, errors.ErrTypeMismatch, nil},
			{"bool out of range", func() error { _, err := Bool.Decode(rt, value.Int(2)); return err }, errors.ErrTypeMismatch, nil},
			{"int8 overflow", func() error { _, err := Int8.Decode(rt, value.Int(300)); return err }, errors.ErrOverflow, nil},
			{"uint8 negative", func() error { _, err := Uint8.Decode(rt, value.Int(-1)); return err }, errors.ErrOverflow, nil},
			{"boxed int as int32 box", func() error {
				_, err := Int32Box.Decode(rt, Int64Box.Encode(tok, 1))
				return err
			}, errors.ErrTypeMismatch, nil},
			{"element path", func() error {
				v := Slice(Erase(Int)).Encode(tok, []any{1, 2})
				_, err := Slice(String).Decode(rt, v)
				return err
			}, errors.ErrTypeMismatch, []string{"[0]"}},
			{"nested path", func() error {
				v := Tuple2(Int, Slice(Int)).Encode(tok, Pair[int, []int]{1, []int{5, 6}})
				_, err := Tuple2(Int, Slice(Bool)).Decode(rt, v)
				return err
			}, errors.ErrTypeMismatch, []string{"[1]", "[0]"}},
			{"result tag", func() error {
				_, err := Result(Int, Int).Decode(rt, rt.ABI().Alloc(1, 2))
				return err
			}, errors.ErrUnknownTag, nil},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				err := tt.decode()
				if !errors.Is(err, tt.want) {
					t.Fatalf("err = %v, want %v", err, tt.want)
				}
				if tt.path != nil {
					if diff := cmp.Diff(tt.path, errors.As(err).Path); diff != "" {
						t.Errorf("path mismatch (-want +got):\n%s", diff)
					}
				}
			})
		}
	})
}

func TestCustomCodec(t *testing.T) {
	withRuntime(t, func(rt *runtime.Runtime) {
		celsius := New(
			func(tok runtime.AllocToken, c float64) value.Value { return Int.Encode(tok, int(c*10)) },
			func(rt *runtime.Runtime, v value.Value) (float64, error) {
				i, err := Int.Decode(rt, v)
				return float64(i) / 10, err
			})
		roundTrip(t, rt, celsius, 21.5)
	})
}
