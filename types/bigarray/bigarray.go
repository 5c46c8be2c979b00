package bigarray

import (
	"unsafe"

	"github.com/wippyai/mlbridge"
	"github.com/wippyai/mlbridge/errors"
	"github.com/wippyai/mlbridge/runtime"
	"github.com/wippyai/mlbridge/value"
)

// Char is the element type of char bigarrays.
type Char byte

// Elem lists the Go element types with a bigarray kind.
type Elem interface {
	uint8 | int8 | uint16 | int16 | int32 | int64 | float32 | float64 | Char
}

// KindOf returns the bigarray kind storing T.
func KindOf[T Elem]() mlbridge.BigarrayKind {
	var zero T
	switch any(zero).(type) {
	case uint8:
		return mlbridge.BigarrayUint8
	case int8:
		return mlbridge.BigarraySint8
	case uint16:
		return mlbridge.BigarrayUint16
	case int16:
		return mlbridge.BigarraySint16
	case int32:
		return mlbridge.BigarrayInt32
	case int64:
		return mlbridge.BigarrayInt64
	case float32:
		return mlbridge.BigarrayFloat32
	case float64:
		return mlbridge.BigarrayFloat64
	}
	return mlbridge.BigarrayChar
}

func bytesOf[T Elem](data []T) []byte {
	if len(data) == 0 {
		return nil
	}
	var zero T
	return unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(data))), len(data)*int(unsafe.Sizeof(zero)))
}

// header is shared by every rank.
type header[T Elem] struct {
	rt    *runtime.Runtime
	block *runtime.Pinned
}

func alloc[T Elem](tok runtime.AllocToken, managed bool, data []T, dims ...int) header[T] {
	rt := tok.Runtime()
	v := tok.ABI().AllocBigarray(KindOf[T](), managed, bytesOf(data), dims)
	return header[T]{rt: rt, block: rt.Pin(v)}
}

func wrap[T Elem](rt *runtime.Runtime, v value.Value, rank int) (header[T], error) {
	ba, ok := rt.ABI().BigarrayOf(v)
	if !ok {
		return header[T]{}, errors.TypeMismatch(errors.PhaseDecode, nil, "expected bigarray")
	}
	if want := KindOf[T](); ba.Kind != want {
		return header[T]{}, errors.New(errors.PhaseDecode, errors.KindTypeMismatch).
			Detail("bigarray kind %d, want %d", ba.Kind, want).
			Build()
	}
	if len(ba.Dims) != rank {
		return header[T]{}, errors.New(errors.PhaseDecode, errors.KindTypeMismatch).
			Detail("bigarray of rank %d, want %d", len(ba.Dims), rank).
			Build()
	}
	return header[T]{rt: rt, block: rt.Pin(v)}, nil
}

func (h header[T]) describe() *mlbridge.Bigarray {
	ba, ok := h.rt.ABI().BigarrayOf(h.block.Get())
	if !ok {
		panic("bigarray: storage released while in use")
	}
	return ba
}

// Value returns the bigarray block. It is current until the next allocation.
func (h header[T]) Value() value.Value {
	return h.block.Get()
}

// ToValue makes a bigarray usable as a field of marshalled Go values.
func (h header[T]) ToValue(runtime.AllocToken) value.Value {
	return h.block.Get()
}

// Kind returns the element kind.
func (h header[T]) Kind() mlbridge.BigarrayKind {
	return h.describe().Kind
}

// Managed reports whether the engine owns the storage.
func (h header[T]) Managed() bool {
	return h.describe().Managed
}

// Len returns the element count across all dimensions.
func (h header[T]) Len() int {
	return h.describe().Len()
}

// IsEmpty reports whether the bigarray has no elements.
func (h header[T]) IsEmpty() bool {
	return h.Len() == 0
}

// Data returns the storage as a slice aliasing it. Storage never moves, so
// the slice stays valid across allocations while the bigarray is alive.
func (h header[T]) Data() []T {
	ba := h.describe()
	return unsafe.Slice((*T)(ba.Data), ba.Len())
}

// DataMut is Data for callers that write; writes are visible to foreign
// code immediately.
func (h header[T]) DataMut() []T {
	return h.Data()
}
