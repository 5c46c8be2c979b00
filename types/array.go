package types

import (
	"github.com/wippyai/mlbridge/errors"
	"github.com/wippyai/mlbridge/runtime"
	"github.com/wippyai/mlbridge/transcoder"
	"github.com/wippyai/mlbridge/value"
)

// Array is a foreign array accessed in place. Elements are converted one at a
// time through the codec; the array itself is never copied.
type Array[T any] struct {
	rt    *runtime.Runtime
	codec transcoder.Codec[T]
	block *runtime.Pinned
}

// NewArray allocates an array of n elements, each set to the encoding of the
// zero T.
func NewArray[T any](tok runtime.AllocToken, c transcoder.Codec[T], n int) Array[T] {
	rt := tok.Runtime()
	abi := tok.ABI()
	var zero T
	if n == 0 {
		return Array[T]{rt: rt, codec: c, block: rt.Pin(abi.Alloc(0, 0))}
	}
	f := rt.Frame()
	defer f.Close()
	fill := f.Root(c.Encode(tok, zero))
	blk := abi.Alloc(n, 0)
	for i := 0; i < n; i++ {
		abi.Initialize(blk, i, fill.Get())
	}
	return Array[T]{rt: rt, codec: c, block: rt.Pin(blk)}
}

// NewDoubleArray allocates an unboxed array of n zero floats.
func NewDoubleArray(tok runtime.AllocToken, n int) Array[float64] {
	rt := tok.Runtime()
	return Array[float64]{rt: rt, codec: transcoder.Float, block: rt.Pin(tok.ABI().AllocDoubleArray(n))}
}

// ArrayOf wraps an existing foreign array. v must be a tag 0 block or a
// double array.
func ArrayOf[T any](rt *runtime.Runtime, c transcoder.Codec[T], v value.Value) (Array[T], error) {
	if !v.IsBlock() || (v.Tag() != 0 && v.Tag() != value.DoubleArrayTag) {
		return Array[T]{}, errors.TypeMismatch(errors.PhaseDecode, nil, "expected array, got "+v.Tag().String())
	}
	return Array[T]{rt: rt, codec: c, block: rt.Pin(v)}, nil
}

// Value returns the array block. It is current until the next allocation.
func (a Array[T]) Value() value.Value {
	return a.block.Get()
}

// ToValue makes an Array usable as a field of marshalled Go values.
func (a Array[T]) ToValue(runtime.AllocToken) value.Value {
	return a.block.Get()
}

// IsDoubleArray reports whether the elements are stored as unboxed doubles.
// Such arrays are accessed with GetDouble and SetDouble only.
func (a Array[T]) IsDoubleArray() bool {
	return a.block.Get().IsDoubleArray()
}

// Len returns the number of elements.
func (a Array[T]) Len() int {
	v := a.block.Get()
	if v.IsDoubleArray() {
		return v.ArrayLen()
	}
	return v.Wosize()
}

// IsEmpty reports whether the array has no elements.
func (a Array[T]) IsEmpty() bool {
	return a.Len() == 0
}

func (a Array[T]) check(i int, double bool) error {
	if n := a.Len(); i < 0 || i >= n {
		return errors.ArrayBound(i, n)
	}
	if a.IsDoubleArray() != double {
		if double {
			return errors.NotDoubleArray()
		}
		return errors.New(errors.PhaseAccess, errors.KindNotDoubleArray).
			Detail("boxed access to a double array").
			Build()
	}
	return nil
}

// Get decodes element i.
func (a Array[T]) Get(i int) (T, error) {
	if err := a.check(i, false); err != nil {
		var zero T
		return zero, err
	}
	return a.GetUnchecked(i)
}

// GetUnchecked decodes element i without checking bounds or layout. The
// caller guarantees 0 <= i < Len() and !IsDoubleArray().
func (a Array[T]) GetUnchecked(i int) (T, error) {
	return a.codec.Decode(a.rt, a.block.Get().Field(i))
}

// Set encodes x into element i.
func (a Array[T]) Set(tok runtime.AllocToken, i int, x T) error {
	if err := a.check(i, false); err != nil {
		return err
	}
	a.SetUnchecked(tok, i, x)
	return nil
}

// SetUnchecked encodes x into element i without checking bounds or layout.
func (a Array[T]) SetUnchecked(tok runtime.AllocToken, i int, x T) {
	v := a.codec.Encode(tok, x)
	tok.ABI().Modify(a.block.Get(), i, v)
}

// GetDouble reads element i of a double array.
func (a Array[T]) GetDouble(i int) (float64, error) {
	if err := a.check(i, true); err != nil {
		return 0, err
	}
	return a.GetDoubleUnchecked(i), nil
}

// GetDoubleUnchecked reads element i without checking bounds or layout.
func (a Array[T]) GetDoubleUnchecked(i int) float64 {
	return a.block.Get().DoubleField(i)
}

// SetDouble writes element i of a double array.
func (a Array[T]) SetDouble(i int, f float64) error {
	if err := a.check(i, true); err != nil {
		return err
	}
	a.SetDoubleUnchecked(i, f)
	return nil
}

// SetDoubleUnchecked writes element i without checking bounds or layout.
func (a Array[T]) SetDoubleUnchecked(i int, f float64) {
	a.block.Get().StoreDoubleField(i, f)
}

// Values returns a copy of the raw elements of a boxed array, or nil for a
// double array. The values are current until the next allocation.
func (a Array[T]) Values() []value.Value {
	v := a.block.Get()
	if v.IsDoubleArray() {
		return nil
	}
	return append([]value.Value(nil), v.Words()...)
}

// ToSlice decodes every element. Double arrays decode through float64.
func (a Array[T]) ToSlice() ([]T, error) {
	n := a.Len()
	out := make([]T, n)
	if a.IsDoubleArray() {
		for i := range out {
			f, ok := any(a.GetDoubleUnchecked(i)).(T)
			if !ok {
				return nil, errors.TypeMismatch(errors.PhaseDecode, []string{index(i)}, "double array element is not a float")
			}
			out[i] = f
		}
		return out, nil
	}
	for i := range out {
		x, err := a.GetUnchecked(i)
		if err != nil {
			return nil, at(err, i)
		}
		out[i] = x
	}
	return out, nil
}
