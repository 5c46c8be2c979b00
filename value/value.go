package value

import (
	"math"
	"unsafe"
)

// Only 64-bit words are supported.
const _ = uint64(unsafe.Sizeof(uintptr(0))) - 8

// WordSize is the size of a Value in bytes.
const WordSize = 8

// Value is a foreign runtime word: an immediate or a block pointer.
type Value uintptr

// Well-known immediates.
const (
	Unit      Value = 1 // ()
	False     Value = 1 // false
	True      Value = 3 // true
	None      Value = 1 // None
	EmptyList Value = 1 // []
)

// Int encodes i as an immediate. Values outside the 63-bit range wrap.
func Int(i int64) Value {
	return Value(uint64(i)<<1 | 1)
}

// Bool encodes b as an immediate.
func Bool(b bool) Value {
	if b {
		return True
	}
	return False
}

// IsImmediate reports whether v is an immediate integer.
func (v Value) IsImmediate() bool {
	return v&1 == 1
}

// IsBlock reports whether v is a pointer to a block.
func (v Value) IsBlock() bool {
	return v&1 == 0
}

// IntVal decodes an immediate.
func (v Value) IntVal() int64 {
	return int64(v) >> 1
}

// BoolVal decodes an immediate boolean.
func (v Value) BoolVal() bool {
	return v != False
}

// Addr returns the raw address of a block.
func (v Value) Addr() uintptr {
	return uintptr(v)
}

// Of returns the block whose first field lives at p.
func Of(p unsafe.Pointer) Value {
	return Value(uintptr(p))
}

func word(addr uintptr) *Value {
	return (*Value)(unsafe.Pointer(addr)) //nolint:govet // addresses point into pinned heap chunks
}

// Header returns the header word of a block.
func (v Value) Header() Header {
	return Header(*word(uintptr(v) - WordSize))
}

// SetHeader overwrites the header word of a block.
func (v Value) SetHeader(h Header) {
	*word(uintptr(v) - WordSize) = Value(h)
}

// Tag returns the tag of a block.
func (v Value) Tag() Tag {
	return v.Header().Tag()
}

// Wosize returns the size of a block in words.
func (v Value) Wosize() int {
	return int(v.Header().Wosize())
}

// Field reads word i of a block.
func (v Value) Field(i int) Value {
	return *word(uintptr(v) + uintptr(i)*WordSize)
}

// FieldAddr returns the address of word i of a block.
func (v Value) FieldAddr(i int) *Value {
	return word(uintptr(v) + uintptr(i)*WordSize)
}

// StoreField writes word i of a block without a write barrier.
func (v Value) StoreField(i int, x Value) {
	*word(uintptr(v) + uintptr(i)*WordSize) = x
}

// Words returns the fields of a block as a slice aliasing the heap.
func (v Value) Words() []Value {
	n := v.Wosize()
	if n == 0 {
		return nil
	}
	return unsafe.Slice(word(uintptr(v)), n)
}

// FloatVal reads a boxed float.
func (v Value) FloatVal() float64 {
	return math.Float64frombits(uint64(v.Field(0)))
}

// StoreFloat writes the payload of a boxed float.
func (v Value) StoreFloat(f float64) {
	v.StoreField(0, Value(math.Float64bits(f)))
}

// DoubleField reads element i of a double array.
func (v Value) DoubleField(i int) float64 {
	return math.Float64frombits(uint64(v.Field(i)))
}

// StoreDoubleField writes element i of a double array.
func (v Value) StoreDoubleField(i int, f float64) {
	v.StoreField(i, Value(math.Float64bits(f)))
}

// ArrayLen returns the element count of an array block.
// Double arrays hold one float per word on 64-bit targets.
func (v Value) ArrayLen() int {
	return v.Wosize()
}

// IsDoubleArray reports whether v is a block tagged DoubleArrayTag.
func (v Value) IsDoubleArray() bool {
	return v.IsBlock() && v.Tag() == DoubleArrayTag
}

// Ptr returns an unsafe pointer to word i of a block.
func (v Value) Ptr(i int) unsafe.Pointer {
	return unsafe.Pointer(word(uintptr(v) + uintptr(i)*WordSize))
}

// Exception results have bit 1 set; block pointers are word aligned.

// MakeExceptionResult marks v as the exception returned by an _exn callback.
func MakeExceptionResult(v Value) Value {
	return v | 2
}

// IsExceptionResult reports whether v carries an exception marker.
func (v Value) IsExceptionResult() bool {
	return v&3 == 2
}

// ExceptionOf strips the exception marker.
func (v Value) ExceptionOf() Value {
	return v &^ 3
}
