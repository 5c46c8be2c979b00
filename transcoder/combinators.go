package transcoder

import (
	"strconv"

	"github.com/wippyai/mlbridge/errors"
	"github.com/wippyai/mlbridge/runtime"
	"github.com/wippyai/mlbridge/value"
)

// Option encodes nil as None and a non-nil pointer as Some block.
func Option[T any](c Codec[T]) Codec[*T] {
	return New(
		func(tok runtime.AllocToken, x *T) value.Value {
			if x == nil {
				return value.None
			}
			return build(tok, 0, 1, func(int) value.Value { return c.Encode(tok, *x) })
		},
		func(rt *runtime.Runtime, v value.Value) (*T, error) {
			if v == value.None {
				return nil, nil
			}
			if !v.IsBlock() || v.Tag() != 0 || v.Wosize() != 1 {
				return nil, mismatch(v, "option")
			}
			x, err := c.Decode(rt, v.Field(0))
			if err != nil {
				return nil, at(err, "[some]")
			}
			return &x, nil
		})
}

// ResultValue is either Ok or, when IsErr is set, Err.
type ResultValue[T, E any] struct {
	Ok    T
	Err   E
	IsErr bool
}

// Result encodes Ok x as a tag 0 block and Error e as a tag 1 block.
func Result[T, E any](ok Codec[T], fail Codec[E]) Codec[ResultValue[T, E]] {
	return New(
		func(tok runtime.AllocToken, r ResultValue[T, E]) value.Value {
			if r.IsErr {
				return build(tok, 1, 1, func(int) value.Value { return fail.Encode(tok, r.Err) })
			}
			return build(tok, 0, 1, func(int) value.Value { return ok.Encode(tok, r.Ok) })
		},
		func(rt *runtime.Runtime, v value.Value) (ResultValue[T, E], error) {
			var r ResultValue[T, E]
			if !v.IsBlock() || v.Wosize() != 1 {
				return r, mismatch(v, "result")
			}
			var err error
			switch v.Tag() {
			case 0:
				r.Ok, err = ok.Decode(rt, v.Field(0))
				err = at(err, "[ok]")
			case 1:
				r.IsErr = true
				r.Err, err = fail.Decode(rt, v.Field(0))
				err = at(err, "[error]")
			default:
				return r, errors.UnknownTag(errors.PhaseDecode, nil, uint8(v.Tag()), 1)
			}
			return r, err
		})
}

// Pair is a two-element tuple.
type Pair[A, B any] struct {
	First  A
	Second B
}

// Triple is a three-element tuple.
type Triple[A, B, C any] struct {
	First  A
	Second B
	Third  C
}

func tuple(v value.Value, n int) error {
	if !v.IsBlock() || v.Tag() != 0 || v.Wosize() != n {
		return mismatch(v, "tuple of "+strconv.Itoa(n))
	}
	return nil
}

// Tuple2 encodes a Pair as a two-field block.
func Tuple2[A, B any](a Codec[A], b Codec[B]) Codec[Pair[A, B]] {
	return New(
		func(tok runtime.AllocToken, p Pair[A, B]) value.Value {
			return build(tok, 0, 2, func(i int) value.Value {
				if i == 0 {
					return a.Encode(tok, p.First)
				}
				return b.Encode(tok, p.Second)
			})
		},
		func(rt *runtime.Runtime, v value.Value) (Pair[A, B], error) {
			var p Pair[A, B]
			if err := tuple(v, 2); err != nil {
				return p, err
			}
			var err error
			if p.First, err = a.Decode(rt, v.Field(0)); err != nil {
				return p, at(err, index(0))
			}
			if p.Second, err = b.Decode(rt, v.Field(1)); err != nil {
				return p, at(err, index(1))
			}
			return p, nil
		})
}

// Tuple3 encodes a Triple as a three-field block.
func Tuple3[A, B, C any](a Codec[A], b Codec[B], c Codec[C]) Codec[Triple[A, B, C]] {
	return New(
		func(tok runtime.AllocToken, t Triple[A, B, C]) value.Value {
			return build(tok, 0, 3, func(i int) value.Value {
				switch i {
				case 0:
					return a.Encode(tok, t.First)
				case 1:
					return b.Encode(tok, t.Second)
				}
				return c.Encode(tok, t.Third)
			})
		},
		func(rt *runtime.Runtime, v value.Value) (Triple[A, B, C], error) {
			var t Triple[A, B, C]
			if err := tuple(v, 3); err != nil {
				return t, err
			}
			var err error
			if t.First, err = a.Decode(rt, v.Field(0)); err != nil {
				return t, at(err, index(0))
			}
			if t.Second, err = b.Decode(rt, v.Field(1)); err != nil {
				return t, at(err, index(1))
			}
			if t.Third, err = c.Decode(rt, v.Field(2)); err != nil {
				return t, at(err, index(2))
			}
			return t, nil
		})
}

// FloatArray encodes []float64 as an unboxed double array.
var FloatArray Codec[[]float64] = New(
	func(tok runtime.AllocToken, xs []float64) value.Value {
		return buildDoubles(tok, len(xs), func(i int) float64 { return xs[i] })
	},
	func(rt *runtime.Runtime, v value.Value) ([]float64, error) {
		if v.IsImmediate() {
			return nil, mismatch(v, "float array")
		}
		switch {
		case v.Tag() == value.DoubleArrayTag:
			out := make([]float64, v.ArrayLen())
			for i := range out {
				out[i] = v.DoubleField(i)
			}
			return out, nil
		case v.Tag() == 0:
			return decodeArray(rt, v, Float)
		}
		return nil, mismatch(v, "float array")
	})

// Slice encodes a Go slice as a foreign array. Slices of Float use the
// double array layout.
func Slice[T any](c Codec[T]) Codec[[]T] {
	if _, ok := any(c).(floatCodec); ok {
		return any(FloatArray).(Codec[[]T])
	}
	return New(
		func(tok runtime.AllocToken, xs []T) value.Value {
			return build(tok, 0, len(xs), func(i int) value.Value { return c.Encode(tok, xs[i]) })
		},
		func(rt *runtime.Runtime, v value.Value) ([]T, error) {
			if !v.IsBlock() || v.Tag() != 0 {
				return nil, mismatch(v, "array")
			}
			return decodeArray(rt, v, c)
		})
}

func decodeArray[T any](rt *runtime.Runtime, v value.Value, c Codec[T]) ([]T, error) {
	out := make([]T, v.Wosize())
	for i := range out {
		x, err := c.Decode(rt, v.Field(i))
		if err != nil {
			return nil, at(err, index(i))
		}
		out[i] = x
	}
	return out, nil
}

// ListOf encodes a Go slice as a foreign list, first element at the head.
func ListOf[T any](c Codec[T]) Codec[[]T] {
	return New(
		func(tok runtime.AllocToken, xs []T) value.Value {
			v, _ := buildList(tok, len(xs), func(i int) (value.Value, error) {
				return c.Encode(tok, xs[i]), nil
			})
			return v
		},
		func(rt *runtime.Runtime, v value.Value) ([]T, error) {
			var out []T
			err := walkList(v, func(_ int, head value.Value) error {
				x, err := c.Decode(rt, head)
				if err != nil {
					return err
				}
				out = append(out, x)
				return nil
			})
			if err != nil {
				return nil, err
			}
			return out, nil
		})
}

// Case describes one constructor of a variant type.
type Case struct {
	Name   string
	Fields []Codec[any]
}

// VariantValue is a decoded variant: the index of its case and its payload.
type VariantValue struct {
	Case   int
	Fields []any
}

// Variant encodes constructors the way the foreign compiler does: constant
// constructors are immediates numbered among themselves, the others are
// blocks whose tag numbers them among the non-constant ones.
func Variant(cases ...Case) Codec[VariantValue] {
	var constant, block []int
	tags := make([]int, len(cases))
	for i, c := range cases {
		if len(c.Fields) == 0 {
			tags[i] = len(constant)
			constant = append(constant, i)
		} else {
			tags[i] = len(block)
			block = append(block, i)
		}
	}
	return New(
		func(tok runtime.AllocToken, x VariantValue) value.Value {
			if x.Case < 0 || x.Case >= len(cases) {
				panic(errors.UnknownTag(errors.PhaseEncode, nil, uint8(x.Case), len(cases)-1)) //nolint:gosec // reported value only
			}
			c := cases[x.Case]
			if len(c.Fields) == 0 {
				return value.Int(int64(tags[x.Case]))
			}
			if len(x.Fields) != len(c.Fields) {
				panic(errors.TypeMismatch(errors.PhaseEncode, []string{c.Name}, "wrong number of fields"))
			}
			return build(tok, value.Tag(tags[x.Case]), len(c.Fields), func(i int) value.Value { //nolint:gosec // tags are below NoScan
				return c.Fields[i].Encode(tok, x.Fields[i])
			})
		},
		func(rt *runtime.Runtime, v value.Value) (VariantValue, error) {
			if v.IsImmediate() {
				n := v.IntVal()
				if n < 0 || n >= int64(len(constant)) {
					return VariantValue{}, errors.TypeMismatch(errors.PhaseDecode, nil,
						"constant constructor "+describe(v)+" out of range")
				}
				return VariantValue{Case: constant[n]}, nil
			}
			tag := int(v.Tag())
			if tag >= len(block) {
				return VariantValue{}, errors.UnknownTag(errors.PhaseDecode, nil, uint8(v.Tag()), len(block)-1)
			}
			c := cases[block[tag]]
			if v.Wosize() != len(c.Fields) {
				return VariantValue{}, at(mismatch(v, strconv.Itoa(len(c.Fields))+" fields"), c.Name)
			}
			out := VariantValue{Case: block[tag], Fields: make([]any, len(c.Fields))}
			for i, fc := range c.Fields {
				x, err := fc.Decode(rt, v.Field(i))
				if err != nil {
					return VariantValue{}, at(at(err, index(i)), c.Name)
				}
				out.Fields[i] = x
			}
			return out, nil
		})
}

// PolyCase is one constructor of a polymorphic variant. A nil Arg makes it
// constant.
type PolyCase struct {
	Name string
	Arg  Codec[any]
}

// PolyValue is a decoded polymorphic variant.
type PolyValue struct {
	Name string
	Arg  any
}

// PolyVariant encodes polymorphic variants: constant ones as the immediate
// hash of their name, the others as a (hash, arg) block.
func PolyVariant(cases ...PolyCase) Codec[PolyValue] {
	byName := make(map[string]PolyCase, len(cases))
	for _, c := range cases {
		byName[c.Name] = c
	}
	return New(
		func(tok runtime.AllocToken, x PolyValue) value.Value {
			c, ok := byName[x.Name]
			if !ok {
				panic(errors.TypeMismatch(errors.PhaseEncode, nil, "unknown polymorphic variant `"+x.Name))
			}
			if c.Arg == nil {
				return tok.ABI().HashVariant(c.Name)
			}
			f := tok.Runtime().Frame()
			defer f.Close()
			arg := f.Root(c.Arg.Encode(tok, x.Arg))
			return runtime.HashVariant(tok, c.Name, arg.Get())
		},
		func(rt *runtime.Runtime, v value.Value) (PolyValue, error) {
			abi := rt.ABI()
			hash := v
			if v.IsBlock() {
				if v.Tag() != 0 || v.Wosize() != 2 {
					return PolyValue{}, mismatch(v, "polymorphic variant")
				}
				hash = v.Field(0)
			}
			for _, c := range cases {
				if abi.HashVariant(c.Name) != hash {
					continue
				}
				if c.Arg == nil {
					if v.IsBlock() {
						return PolyValue{}, at(mismatch(v, "constant constructor"), c.Name)
					}
					return PolyValue{Name: c.Name}, nil
				}
				if v.IsImmediate() {
					return PolyValue{}, at(mismatch(v, "constructor with argument"), c.Name)
				}
				arg, err := c.Arg.Decode(rt, v.Field(1))
				if err != nil {
					return PolyValue{}, at(err, c.Name)
				}
				return PolyValue{Name: c.Name, Arg: arg}, nil
			}
			return PolyValue{}, errors.TypeMismatch(errors.PhaseDecode, nil, "unknown polymorphic variant hash "+describe(hash))
		})
}

// Field is one field of a record codec over T.
type Field[T any] struct {
	name  string
	float bool
	enc   func(tok runtime.AllocToken, x *T) value.Value
	dec   func(rt *runtime.Runtime, v value.Value, x *T) error
	get64 func(x *T) float64
	set64 func(x *T, f float64)
}

// RecordField describes a record field stored through c.
func RecordField[T, F any](name string, c Codec[F], get func(*T) F, set func(*T, F)) Field[T] {
	f := Field[T]{
		name: name,
		enc:  func(tok runtime.AllocToken, x *T) value.Value { return c.Encode(tok, get(x)) },
		dec: func(rt *runtime.Runtime, v value.Value, x *T) error {
			fv, err := c.Decode(rt, v)
			if err != nil {
				return err
			}
			set(x, fv)
			return nil
		},
	}
	if isFloat(c) {
		f.float = true
		f.get64 = func(x *T) float64 { return any(get(x)).(float64) }
		f.set64 = func(x *T, v float64) { set(x, any(v).(F)) }
	}
	return f
}

// Record encodes T as a block with one field per Field in order. Records
// whose fields are all Float use the double array layout.
func Record[T any](fields ...Field[T]) Codec[T] {
	flat := len(fields) > 0
	for _, f := range fields {
		flat = flat && f.float
	}
	return New(
		func(tok runtime.AllocToken, x T) value.Value {
			if flat {
				return buildDoubles(tok, len(fields), func(i int) float64 { return fields[i].get64(&x) })
			}
			return build(tok, 0, len(fields), func(i int) value.Value { return fields[i].enc(tok, &x) })
		},
		func(rt *runtime.Runtime, v value.Value) (T, error) {
			var x T
			if flat {
				if !v.IsBlock() || v.Tag() != value.DoubleArrayTag || v.ArrayLen() != len(fields) {
					return x, mismatch(v, "float record")
				}
				for i, f := range fields {
					f.set64(&x, v.DoubleField(i))
				}
				return x, nil
			}
			if !v.IsBlock() || v.Tag() != 0 || v.Wosize() != len(fields) {
				return x, mismatch(v, "record of "+strconv.Itoa(len(fields))+" fields")
			}
			for i, f := range fields {
				if err := f.dec(rt, v.Field(i), &x); err != nil {
					return x, at(err, f.name)
				}
			}
			return x, nil
		})
}
