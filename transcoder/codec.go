package transcoder

import (
	"fmt"

	"fortio.org/safecast"

	"github.com/wippyai/mlbridge"
	"github.com/wippyai/mlbridge/errors"
	"github.com/wippyai/mlbridge/runtime"
	"github.com/wippyai/mlbridge/value"
)

// ToValue is implemented by Go types that build their own foreign value.
// The result belongs to the foreign heap; implementations must not keep
// pointers into it.
type ToValue interface {
	ToValue(tok runtime.AllocToken) value.Value
}

// FromValue is implemented by Go types that read themselves from a foreign
// value. Decoding never allocates on the foreign heap.
type FromValue interface {
	FromValue(rt *runtime.Runtime, v value.Value) error
}

// Codec converts between T and its foreign encoding.
type Codec[T any] interface {
	Encode(tok runtime.AllocToken, x T) value.Value
	Decode(rt *runtime.Runtime, v value.Value) (T, error)
}

type funcCodec[T any] struct {
	enc func(tok runtime.AllocToken, x T) value.Value
	dec func(rt *runtime.Runtime, v value.Value) (T, error)
}

func (c funcCodec[T]) Encode(tok runtime.AllocToken, x T) value.Value {
	return c.enc(tok, x)
}

func (c funcCodec[T]) Decode(rt *runtime.Runtime, v value.Value) (T, error) {
	return c.dec(rt, v)
}

// New builds a codec from an encode and a decode function.
func New[T any](enc func(tok runtime.AllocToken, x T) value.Value, dec func(rt *runtime.Runtime, v value.Value) (T, error)) Codec[T] {
	return funcCodec[T]{enc: enc, dec: dec}
}

// Erase turns a typed codec into one over any, for heterogeneous payloads.
// Encoding a value of the wrong dynamic type panics.
func Erase[T any](c Codec[T]) Codec[any] {
	return erased[T]{c}
}

type erased[T any] struct {
	c Codec[T]
}

func (e erased[T]) Encode(tok runtime.AllocToken, x any) value.Value {
	t, ok := x.(T)
	if !ok {
		var zero T
		panic(fmt.Sprintf("transcoder: encode %T with codec for %T", x, zero))
	}
	return e.c.Encode(tok, t)
}

func (e erased[T]) Decode(rt *runtime.Runtime, v value.Value) (any, error) {
	return e.c.Decode(rt, v)
}

func (e erased[T]) unwrap() any {
	return e.c
}

// Unit encodes struct{} as the unit immediate.
var Unit Codec[struct{}] = New(
	func(runtime.AllocToken, struct{}) value.Value { return value.Unit },
	func(_ *runtime.Runtime, v value.Value) (struct{}, error) {
		if v != value.Unit {
			return struct{}{}, mismatch(v, "unit")
		}
		return struct{}{}, nil
	})

// Bool encodes bool as the immediates 0 and 1.
var Bool Codec[bool] = New(
	func(_ runtime.AllocToken, b bool) value.Value { return value.Bool(b) },
	func(_ *runtime.Runtime, v value.Value) (bool, error) {
		if v != value.True && v != value.False {
			return false, mismatch(v, "bool")
		}
		return v.BoolVal(), nil
	})

// Int encodes int as an immediate. Values outside the 63-bit range wrap, as
// they do in the foreign runtime.
var Int Codec[int] = New(
	func(_ runtime.AllocToken, i int) value.Value { return value.Int(int64(i)) },
	func(_ *runtime.Runtime, v value.Value) (int, error) {
		if !v.IsImmediate() {
			return 0, mismatch(v, "int")
		}
		return int(v.IntVal()), nil
	})

func small[T int8 | int16 | int32 | uint8 | uint16 | uint32](name string) Codec[T] {
	return New(
		func(_ runtime.AllocToken, i T) value.Value { return value.Int(int64(i)) },
		func(_ *runtime.Runtime, v value.Value) (T, error) {
			if !v.IsImmediate() {
				return 0, mismatch(v, name)
			}
			n, err := safecast.Conv[T](v.IntVal())
			if err != nil {
				return 0, errors.Overflow(errors.PhaseDecode, nil, v.IntVal(), name)
			}
			return n, nil
		})
}

// Narrow integers travel as immediates; decoding checks the range.
var (
	Int8   = small[int8]("int8")
	Int16  = small[int16]("int16")
	Int32  = small[int32]("int32")
	Uint8  = small[uint8]("uint8")
	Uint16 = small[uint16]("uint16")
	Uint32 = small[uint32]("uint32")
)

// Int32Box encodes int32 as a boxed Int32 custom block.
var Int32Box Codec[int32] = New(
	func(tok runtime.AllocToken, i int32) value.Value { return tok.ABI().AllocInt32(i) },
	func(rt *runtime.Runtime, v value.Value) (int32, error) {
		abi := rt.ABI()
		if !abi.IsCustom(v, mlbridge.Int32Ops) {
			return 0, mismatch(v, "int32 custom block")
		}
		return abi.Int32Val(v), nil
	})

// Int64Box encodes int64 as a boxed Int64 custom block.
var Int64Box Codec[int64] = New(
	func(tok runtime.AllocToken, i int64) value.Value { return tok.ABI().AllocInt64(i) },
	func(rt *runtime.Runtime, v value.Value) (int64, error) {
		abi := rt.ABI()
		if !abi.IsCustom(v, mlbridge.Int64Ops) {
			return 0, mismatch(v, "int64 custom block")
		}
		return abi.Int64Val(v), nil
	})

// Nativeint encodes int64 as a boxed native integer.
var Nativeint Codec[int64] = New(
	func(tok runtime.AllocToken, i int64) value.Value { return tok.ABI().AllocNativeint(i) },
	func(rt *runtime.Runtime, v value.Value) (int64, error) {
		abi := rt.ABI()
		if !abi.IsCustom(v, mlbridge.NativeintOps) {
			return 0, mismatch(v, "nativeint custom block")
		}
		return abi.NativeintVal(v), nil
	})

type floatCodec struct{}

func (floatCodec) Encode(tok runtime.AllocToken, f float64) value.Value {
	return tok.ABI().AllocFloat(f)
}

func (floatCodec) Decode(_ *runtime.Runtime, v value.Value) (float64, error) {
	if !v.IsBlock() || v.Tag() != value.DoubleTag {
		return 0, mismatch(v, "float")
	}
	return v.FloatVal(), nil
}

// Float encodes float64 as a boxed double. Slices and records made only of
// floats use the unboxed double array layout instead.
var Float Codec[float64] = floatCodec{}

func isFloat(c any) bool {
	if e, ok := c.(interface{ unwrap() any }); ok {
		c = e.unwrap()
	}
	_, ok := c.(floatCodec)
	return ok
}

// String encodes string as a string block.
var String Codec[string] = New(
	func(tok runtime.AllocToken, s string) value.Value { return tok.ABI().AllocString([]byte(s)) },
	func(_ *runtime.Runtime, v value.Value) (string, error) {
		if !v.IsBlock() || v.Tag() != value.StringTag {
			return "", mismatch(v, "string")
		}
		return v.StringVal(), nil
	})

// Bytes encodes a byte slice as a string block. Decoding copies.
var Bytes Codec[[]byte] = New(
	func(tok runtime.AllocToken, b []byte) value.Value { return tok.ABI().AllocString(b) },
	func(_ *runtime.Runtime, v value.Value) ([]byte, error) {
		if !v.IsBlock() || v.Tag() != value.StringTag {
			return nil, mismatch(v, "bytes")
		}
		return append([]byte(nil), v.Bytes()...), nil
	})

// Raw passes values through unchanged.
var Raw Codec[value.Value] = New(
	func(_ runtime.AllocToken, v value.Value) value.Value { return v },
	func(_ *runtime.Runtime, v value.Value) (value.Value, error) { return v, nil })
