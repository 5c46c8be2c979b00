package main

import (
	"cmp"
	"math"
	"strings"

	"github.com/wippyai/mlbridge/engine"
	"github.com/wippyai/mlbridge/errors"
	"github.com/wippyai/mlbridge/host"
	"github.com/wippyai/mlbridge/runtime"
	"github.com/wippyai/mlbridge/transcoder"
	"github.com/wippyai/mlbridge/types"
	"github.com/wippyai/mlbridge/types/bigarray"
	"github.com/wippyai/mlbridge/value"
)

// enum1 is Empty | First of int | Second of string array.
var enum1 = transcoder.Variant(
	transcoder.Case{Name: "Empty"},
	transcoder.Case{Name: "First", Fields: []transcoder.Codec[any]{transcoder.Erase(transcoder.Int)}},
	transcoder.Case{Name: "Second", Fields: []transcoder.Codec[any]{transcoder.Erase(transcoder.Slice(transcoder.String))}},
)

const (
	enum1Empty = iota
	enum1First
	enum1Second
)

type struct1 struct {
	A int
	B float64
	C *string
	D *[]string
}

var struct1Codec = transcoder.Record(
	transcoder.RecordField("a", transcoder.Int, func(s *struct1) int { return s.A }, func(s *struct1, x int) { s.A = x }),
	transcoder.RecordField("b", transcoder.Float, func(s *struct1) float64 { return s.B }, func(s *struct1, x float64) { s.B = x }),
	transcoder.RecordField("c", transcoder.Option(transcoder.String), func(s *struct1) *string { return s.C }, func(s *struct1, x *string) { s.C = x }),
	transcoder.RecordField("d", transcoder.Option(transcoder.Slice(transcoder.String)), func(s *struct1) *[]string { return s.D }, func(s *struct1, x *[]string) { s.D = x }),
)

var counterOps = &types.Ops[int]{
	Identifier: "mlrun.counter",
	Compare:    cmp.Compare[int],
	Hash:       func(n int) int64 { return int64(n) },
}

// demo groups the externals reached through reflection.
type demo struct{}

func (demo) Namespace() string { return "demo" }

func (demo) Greet(name string) string {
	return "hello, " + name
}

func (demo) Words(s string) []string {
	return strings.Fields(s)
}

func (demo) Mean(xs []float64) (float64, error) {
	if len(xs) == 0 {
		return 0, errors.InvalidArgument("mean of an empty list")
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs)), nil
}

func (demo) Lookup(keys []string, key string) (int, error) {
	for i, k := range keys {
		if k == key {
			return i, nil
		}
	}
	return 0, errors.NotFound()
}

// register installs every demo external on h.
func register(h *engine.Heap) error {
	reg := host.NewRegistry()
	if err := reg.RegisterHost(demo{}); err != nil {
		return err
	}
	if err := reg.RegisterFunc("panic_boom", func() { panic("boom") }); err != nil {
		return err
	}
	reg.Bind(h)

	runtime.Export(h, "apply1", 2, apply1)
	runtime.Export(h, "apply3", 2, apply3)
	runtime.Export(h, "apply_range", 3, applyRange)

	runtime.Export(h, "enum1_empty", 0, func(rt *runtime.Runtime, _ runtime.Args) (value.Value, error) {
		return enum1.Encode(rt.Token(), transcoder.VariantValue{Case: enum1Empty}), nil
	})
	runtime.Export(h, "enum1_first", 1, makeEnum1First)
	runtime.Export(h, "enum1_make_second", 1, enum1MakeSecond)
	runtime.Export(h, "enum1_get_second_value", 1, enum1GetSecondValue)
	runtime.Export(h, "enum1_is_empty", 1, func(rt *runtime.Runtime, args runtime.Args) (value.Value, error) {
		e, err := enum1.Decode(rt, args.Get(0))
		if err != nil {
			return value.Unit, err
		}
		return value.Bool(e.Case == enum1Empty), nil
	})

	runtime.Export(h, "struct1_empty", 0, func(rt *runtime.Runtime, _ runtime.Args) (value.Value, error) {
		return struct1Codec.Encode(rt.Token(), struct1{}), nil
	})
	runtime.Export(h, "struct1_get_c", 1, struct1GetC)
	runtime.Export(h, "struct1_get_d", 1, struct1GetD)
	runtime.Export(h, "struct1_set_c", 2, struct1SetC)
	runtime.Export(h, "make_struct1", 4, makeStruct1)

	runtime.Export(h, "direct_slice", 1, directSlice)
	runtime.Export(h, "array_get", 2, arrayGet)
	runtime.Export(h, "deep_clone", 1, func(rt *runtime.Runtime, args runtime.Args) (value.Value, error) {
		out := runtime.DeepCloneOut(rt.Token(), args.Get(0))
		return runtime.DeepCloneIn(rt.Token(), out), nil
	})
	runtime.Export(h, "list_rev", 1, listRev)

	runtime.Export(h, "counter_new", 1, counterNew)
	runtime.Export(h, "counter_incr", 1, counterIncr)
	runtime.Export(h, "counter_get", 1, counterGet)

	runtime.Export(h, "floats_make", 1, floatsMake)
	runtime.Export(h, "floats_sum", 1, floatsSum)
	return nil
}

func apply1(rt *runtime.Runtime, args runtime.Args) (value.Value, error) {
	return rt.Call(args.Get(0), args.Get(1))
}

func apply3(rt *runtime.Runtime, args runtime.Args) (value.Value, error) {
	f := rt.Frame()
	defer f.Close()
	x := f.Root(args.Get(1))
	for range 3 {
		r, err := rt.Call(args.Get(0), x.Get())
		if err != nil {
			return value.Unit, err
		}
		x.Set(r)
	}
	return x.Get(), nil
}

// applyRange calls f with the list [start; ...; stop-1].
func applyRange(rt *runtime.Runtime, args runtime.Args) (value.Value, error) {
	start, err := transcoder.Int.Decode(rt, args.Get(1))
	if err != nil {
		return value.Unit, err
	}
	stop, err := transcoder.Int.Decode(rt, args.Get(2))
	if err != nil {
		return value.Unit, err
	}
	l := types.EmptyList(rt, transcoder.Int)
	for i := stop - 1; i >= start; i-- {
		l = l.Add(rt.Token(), i)
	}
	return rt.Call(args.Get(0), l.Value())
}

func makeEnum1First(rt *runtime.Runtime, args runtime.Args) (value.Value, error) {
	n, err := transcoder.Int.Decode(rt, args.Get(0))
	if err != nil {
		return value.Unit, err
	}
	return enum1.Encode(rt.Token(), transcoder.VariantValue{Case: enum1First, Fields: []any{n}}), nil
}

func enum1MakeSecond(rt *runtime.Runtime, args runtime.Args) (value.Value, error) {
	s, err := transcoder.String.Decode(rt, args.Get(0))
	if err != nil {
		return value.Unit, err
	}
	return enum1.Encode(rt.Token(), transcoder.VariantValue{Case: enum1Second, Fields: []any{[]string{s}}}), nil
}

// enum1GetSecondValue returns Some of the array held by Second, sharing it.
func enum1GetSecondValue(rt *runtime.Runtime, args runtime.Args) (value.Value, error) {
	e, err := enum1.Decode(rt, args.Get(0))
	if err != nil {
		return value.Unit, err
	}
	if e.Case != enum1Second {
		return value.None, nil
	}
	abi := rt.ABI()
	some := abi.AllocSmall(1, 0)
	abi.Initialize(some, 0, args.Get(0).Field(0))
	return some, nil
}

func struct1GetC(rt *runtime.Runtime, args runtime.Args) (value.Value, error) {
	s, err := struct1Codec.Decode(rt, args.Get(0))
	if err != nil {
		return value.Unit, err
	}
	return transcoder.Option(transcoder.String).Encode(rt.Token(), s.C), nil
}

func struct1GetD(rt *runtime.Runtime, args runtime.Args) (value.Value, error) {
	s, err := struct1Codec.Decode(rt, args.Get(0))
	if err != nil {
		return value.Unit, err
	}
	return transcoder.Option(transcoder.Slice(transcoder.String)).Encode(rt.Token(), s.D), nil
}

// struct1SetC stores Some c in field c of the record in place.
func struct1SetC(rt *runtime.Runtime, args runtime.Args) (value.Value, error) {
	if _, err := struct1Codec.Decode(rt, args.Get(0)); err != nil {
		return value.Unit, err
	}
	c, err := transcoder.String.Decode(rt, args.Get(1))
	if err != nil {
		return value.Unit, err
	}
	opt := transcoder.Option(transcoder.String).Encode(rt.Token(), &c)
	rt.ABI().Modify(args.Get(0), 2, opt)
	return value.Unit, nil
}

func makeStruct1(rt *runtime.Runtime, args runtime.Args) (value.Value, error) {
	var s struct1
	var err error
	if s.A, err = transcoder.Int.Decode(rt, args.Get(0)); err != nil {
		return value.Unit, err
	}
	if s.B, err = transcoder.Float.Decode(rt, args.Get(1)); err != nil {
		return value.Unit, err
	}
	if s.C, err = transcoder.Option(transcoder.String).Decode(rt, args.Get(2)); err != nil {
		return value.Unit, err
	}
	if s.D, err = transcoder.Option(transcoder.Slice(transcoder.String)).Decode(rt, args.Get(3)); err != nil {
		return value.Unit, err
	}
	return struct1Codec.Encode(rt.Token(), s), nil
}

func directSlice(rt *runtime.Runtime, args runtime.Args) (value.Value, error) {
	a, err := types.ArrayOf(rt, transcoder.Int, args.Get(0))
	if err != nil {
		return value.Unit, err
	}
	sum := 0
	for i := range a.Len() {
		x, err := a.Get(i)
		if err != nil {
			return value.Unit, err
		}
		sum += x
	}
	return value.Int(int64(sum)), nil
}

func arrayGet(rt *runtime.Runtime, args runtime.Args) (value.Value, error) {
	i, err := transcoder.Int.Decode(rt, args.Get(1))
	if err != nil {
		return value.Unit, err
	}
	a, err := types.ArrayOf(rt, transcoder.Raw, args.Get(0))
	if err != nil {
		return value.Unit, err
	}
	if a.IsDoubleArray() {
		if i < 0 || i >= a.Len() {
			return value.Unit, errors.ArrayBound(i, a.Len())
		}
		return rt.ABI().AllocFloat(args.Get(0).DoubleField(i)), nil
	}
	return a.Get(i)
}

func listRev(rt *runtime.Runtime, args runtime.Args) (value.Value, error) {
	in, err := types.ListOf(rt, transcoder.Raw, args.Get(0))
	if err != nil {
		return value.Unit, err
	}
	out := types.EmptyList(rt, transcoder.Raw)
	for x, err := range in.Iter() {
		if err != nil {
			return value.Unit, err
		}
		out = out.Add(rt.Token(), x)
	}
	return out.Value(), nil
}

func counterNew(rt *runtime.Runtime, args runtime.Args) (value.Value, error) {
	n, err := transcoder.Int.Decode(rt, args.Get(0))
	if err != nil {
		return value.Unit, err
	}
	return types.AllocCustom(rt.Token(), counterOps, n).Value(), nil
}

func counterIncr(rt *runtime.Runtime, args runtime.Args) (value.Value, error) {
	p, err := types.PointerOf[int](rt, args.Get(0))
	if err != nil {
		return value.Unit, err
	}
	n, err := p.Get()
	if err != nil {
		return value.Unit, err
	}
	if err := p.Set(n + 1); err != nil {
		return value.Unit, err
	}
	return value.Unit, nil
}

func counterGet(rt *runtime.Runtime, args runtime.Args) (value.Value, error) {
	p, err := types.PointerOf[int](rt, args.Get(0))
	if err != nil {
		return value.Unit, err
	}
	n, err := p.Get()
	if err != nil {
		return value.Unit, err
	}
	return value.Int(int64(n)), nil
}

// floatsMake returns a float64 bigarray holding 0, 0.5, 1, ...
func floatsMake(rt *runtime.Runtime, args runtime.Args) (value.Value, error) {
	n, err := transcoder.Int.Decode(rt, args.Get(0))
	if err != nil {
		return value.Unit, err
	}
	if n < 0 {
		return value.Unit, errors.InvalidArgument("floats_make: negative length")
	}
	a := bigarray.Create[float64](rt.Token(), n)
	data := a.DataMut()
	for i := range data {
		data[i] = float64(i) / 2
	}
	return a.Value(), nil
}

func floatsSum(rt *runtime.Runtime, args runtime.Args) (value.Value, error) {
	a, err := bigarray.Array1Of[float64](rt, args.Get(0))
	if err != nil {
		return value.Unit, err
	}
	var sum float64
	for _, x := range a.Data() {
		sum += x
	}
	if math.IsNaN(sum) {
		return value.Unit, errors.Failure("floats_sum: NaN")
	}
	return rt.ABI().AllocFloat(sum), nil
}

// closures are the Go functions reachable as fn:name arguments.
var closures = map[string]struct {
	arity int
	code  engine.Code
}{
	"succ": {1, func(c *engine.Call) value.Value { return value.Int(c.Arg(0).IntVal() + 1) }},
	"double": {1, func(c *engine.Call) value.Value { return value.Int(c.Arg(0).IntVal() * 2) }},
	"add": {2, func(c *engine.Call) value.Value { return value.Int(c.Arg(0).IntVal() + c.Arg(1).IntVal()) }},
	"len": {1, func(c *engine.Call) value.Value {
		n := 0
		for v := c.Arg(0); v != value.EmptyList; v = v.Field(1) {
			n++
		}
		return value.Int(int64(n))
	}},
	"fail": {1, func(c *engine.Call) value.Value {
		c.Heap().Failwith("fail called")
		return value.Unit
	}},
}
