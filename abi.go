package mlbridge

import (
	"unsafe"

	"github.com/wippyai/mlbridge/resource"
	"github.com/wippyai/mlbridge/value"
)

// RaiseSignal is implemented by panic payloads that carry a foreign exception
// in flight. Boundary wrappers must let them propagate unchanged.
type RaiseSignal interface {
	ForeignRaise()
}

// Identifiers of the builtin custom operations shared with foreign code.
const (
	Int32Ops     = "_i"
	Int64Ops     = "_j"
	NativeintOps = "_n"
	BigarrayOps  = "_bigarr02"
	FinalOps     = "_final"
)

// External is a native function reachable from foreign code.
type External func(args []value.Value) value.Value

// CustomOps is the operations table of a custom block.
type CustomOps struct {
	// Identifier names the ops in serialized and printed form, e.g. "_j".
	Identifier string
	// Finalize runs exactly once when the block becomes unreachable. It must not allocate.
	Finalize func(v value.Value)
	// Compare participates in polymorphic comparison; nil means "not comparable".
	Compare func(a, b value.Value) int
	// Hash participates in polymorphic hashing; nil means "ignored by hash".
	Hash func(v value.Value) int64
}

// BigarrayKind is the element kind of a bigarray.
type BigarrayKind int

const (
	BigarrayFloat32 BigarrayKind = iota
	BigarrayFloat64
	BigarraySint8
	BigarrayUint8
	BigarraySint16
	BigarrayUint16
	BigarrayInt32
	BigarrayInt64
	BigarrayCamlInt
	BigarrayNativeInt
	BigarrayComplex32
	BigarrayComplex64
	BigarrayChar
)

var bigarrayElemSize = [...]int{4, 8, 1, 1, 2, 2, 4, 8, 8, 8, 8, 16, 1}

// ElemSize returns the size of one element in bytes.
func (k BigarrayKind) ElemSize() int {
	if k < 0 || int(k) >= len(bigarrayElemSize) {
		return 0
	}
	return bigarrayElemSize[k]
}

// Bigarray describes the out-of-heap storage of a bigarray block.
type Bigarray struct {
	Data    unsafe.Pointer
	Dims    []int
	Kind    BigarrayKind
	Managed bool
}

// Len returns the element count across all dimensions.
func (b *Bigarray) Len() int {
	n := 1
	for _, d := range b.Dims {
		n *= d
	}
	return n
}

// ABI is the foreign runtime surface consumed by the core. Allocation
// functions may run the collector and invalidate every unrooted block pointer.
// Raise functions never return.
type ABI interface {
	Alloc(wosize int, tag value.Tag) value.Value
	AllocSmall(wosize int, tag value.Tag) value.Value
	AllocTuple(n int) value.Value
	AllocString(data []byte) value.Value
	AllocFloat(f float64) value.Value
	AllocDoubleArray(n int) value.Value
	AllocInt32(i int32) value.Value
	AllocInt64(i int64) value.Value
	AllocNativeint(i int64) value.Value
	AllocFinal(words int, finalize func(value.Value), used, max int) value.Value
	AllocCustom(ops *CustomOps, words int, used, max int) value.Value
	AllocBigarray(kind BigarrayKind, managed bool, data []byte, dims []int) value.Value
	AllocStatic(wosize int, tag value.Tag) value.Value
	DeepCopyOut(v value.Value) value.Value
	DeepCopyIn(v value.Value) value.Value

	Int32Val(v value.Value) int32
	Int64Val(v value.Value) int64
	NativeintVal(v value.Value) int64
	BigarrayOf(v value.Value) (*Bigarray, bool)
	IsCustom(v value.Value, identifier string) bool

	RegisterGlobalRoot(p *value.Value)
	RemoveGlobalRoot(p *value.Value)
	PushLocal(v value.Value) int
	Local(i int) value.Value
	SetLocal(i int, v value.Value)
	LocalsTop() int
	PopLocals(top int)

	Modify(block value.Value, i int, v value.Value)
	Initialize(block value.Value, i int, v value.Value)

	CallbackExn(f, arg value.Value) value.Value
	Callback2Exn(f, a1, a2 value.Value) value.Value
	Callback3Exn(f, a1, a2, a3 value.Value) value.Value
	CallbackNExn(f value.Value, args []value.Value) value.Value

	NamedValue(name string) *value.Value
	HashVariant(name string) value.Value
	RegisterExternal(name string, arity int, fn External)
	Natives() *resource.Table

	Compare(a, b value.Value) int
	Hash(v value.Value) int64

	MinorCollection()
	FullMajor()

	Raise(exn value.Value)
	RaiseWithArg(exn, arg value.Value)
	RaiseWithString(exn value.Value, msg string)
	Failwith(msg string)
	InvalidArgument(msg string)
	RaiseNotFound()
	RaiseOutOfMemory()
	RaiseStackOverflow()
	RaiseSysError(msg string)
	RaiseEndOfFile()
	RaiseZeroDivide()
	ArrayBoundError()
	RaiseSysBlockedIO()
}
