package engine

import (
	"bytes"
	"cmp"
	"unsafe"

	"fortio.org/safecast"

	"github.com/wippyai/mlbridge"
	"github.com/wippyai/mlbridge/resource"
	"github.com/wippyai/mlbridge/value"
)

// Builtin custom operation identifiers.
const (
	Int32Ops     = mlbridge.Int32Ops
	Int64Ops     = mlbridge.Int64Ops
	NativeintOps = mlbridge.NativeintOps
	BigarrayOps  = mlbridge.BigarrayOps
	FinalOps     = mlbridge.FinalOps
)

// builtin ops slots, registered in this order by initBuiltinOps.
const (
	opsInt32 = iota
	opsInt64
	opsNativeint
	opsBigarray
)

type opsSlot struct {
	ops *mlbridge.CustomOps
	// owned slots belong to a single final block and are recycled after it dies.
	owned bool
}

func (h *Heap) initBuiltinOps() {
	boxed := func(id string) *mlbridge.CustomOps {
		return &mlbridge.CustomOps{
			Identifier: id,
			Compare: func(a, b value.Value) int {
				return cmp.Compare(int64(a.Field(1)), int64(b.Field(1)))
			},
			Hash: func(v value.Value) int64 {
				i := int64(v.Field(1))
				return i ^ i>>32
			},
		}
	}
	h.registerOps(boxed(Int32Ops))
	h.registerOps(boxed(Int64Ops))
	h.registerOps(boxed(NativeintOps))
	h.registerOps(&mlbridge.CustomOps{
		Identifier: BigarrayOps,
		Finalize:   h.finalizeBigarray,
		Compare:    h.compareBigarray,
	})
}

func (h *Heap) registerOps(ops *mlbridge.CustomOps) int {
	if id, ok := h.opsIndex[ops]; ok {
		return id
	}
	id := len(h.ops)
	h.ops = append(h.ops, opsSlot{ops: ops})
	h.opsIndex[ops] = id
	return id
}

func (h *Heap) ownedOps(ops *mlbridge.CustomOps) int {
	if n := len(h.freeOps); n > 0 {
		id := h.freeOps[n-1]
		h.freeOps = h.freeOps[:n-1]
		h.ops[id] = opsSlot{ops: ops, owned: true}
		return id
	}
	h.ops = append(h.ops, opsSlot{ops: ops, owned: true})
	return len(h.ops) - 1
}

func (h *Heap) releaseOps(id int) {
	h.ops[id] = opsSlot{}
	h.freeOps = append(h.freeOps, id)
}

// CustomOpsOf returns the operations of a custom block, or nil.
func (h *Heap) CustomOpsOf(v value.Value) *mlbridge.CustomOps {
	if !v.IsBlock() || v.Tag() != value.CustomTag || v.Wosize() == 0 {
		return nil
	}
	id := v.Field(0)
	if !id.IsImmediate() {
		return nil
	}
	i := int(id.IntVal())
	if i < 0 || i >= len(h.ops) {
		return nil
	}
	return h.ops[i].ops
}

// IsCustom reports whether v is a custom block with the given ops identifier.
func (h *Heap) IsCustom(v value.Value, identifier string) bool {
	ops := h.CustomOpsOf(v)
	return ops != nil && ops.Identifier == identifier
}

// CustomData returns a pointer to the first payload word of a custom block.
func CustomData(v value.Value) unsafe.Pointer {
	return v.Ptr(1)
}

// allocCustom allocates a custom block; the payload starts zeroed.
func (h *Heap) allocCustom(id int, words int, finalize bool) value.Value {
	v := h.allocBlock(1+words, value.CustomTag)
	v.StoreField(0, value.Int(int64(id)))
	if finalize {
		h.finals = append(h.finals, v)
	}
	return v
}

func (h *Heap) addPressure(used, maxUsed int) {
	if maxUsed <= 0 || used <= 0 {
		return
	}
	h.pressure += float64(used) / float64(maxUsed)
	if h.pressure >= 1 {
		h.compactRequested = true
	}
}

// AllocCustom allocates a custom block with words payload words. used/max
// add collection pressure; a full unit schedules a compaction.
func (h *Heap) AllocCustom(ops *mlbridge.CustomOps, words int, used, maxUsed int) value.Value {
	if ops == nil {
		h.InvalidArgument("alloc_custom: nil operations")
	}
	id := h.registerOps(ops)
	v := h.allocCustom(id, words, ops.Finalize != nil)
	h.addPressure(used, maxUsed)
	return v
}

// AllocFinal allocates a custom block whose finalizer runs exactly once after
// the collection that finds it unreachable.
func (h *Heap) AllocFinal(words int, finalize func(value.Value), used, maxUsed int) value.Value {
	v := h.allocBlock(1+words, value.CustomTag)
	ops := &mlbridge.CustomOps{Identifier: FinalOps, Finalize: finalize}
	id := h.ownedOps(ops)
	v.StoreField(0, value.Int(int64(id)))
	if finalize != nil {
		h.finals = append(h.finals, v)
	}
	h.addPressure(used, maxUsed)
	return v
}

// LiveFinalizers returns the number of blocks waiting for finalization.
func (h *Heap) LiveFinalizers() int {
	return len(h.finals)
}

// AllocInt32 boxes a 32-bit integer.
func (h *Heap) AllocInt32(i int32) value.Value {
	v := h.allocCustom(opsInt32, 1, false)
	v.StoreField(1, value.Value(int64(i)))
	return v
}

// AllocInt64 boxes a 64-bit integer.
func (h *Heap) AllocInt64(i int64) value.Value {
	v := h.allocCustom(opsInt64, 1, false)
	v.StoreField(1, value.Value(i))
	return v
}

// AllocNativeint boxes a native-width integer.
func (h *Heap) AllocNativeint(i int64) value.Value {
	v := h.allocCustom(opsNativeint, 1, false)
	v.StoreField(1, value.Value(i))
	return v
}

// Int32Val reads a boxed 32-bit integer.
func (h *Heap) Int32Val(v value.Value) int32 {
	return int32(int64(v.Field(1))) //nolint:gosec // payload was stored from an int32
}

// Int64Val reads a boxed 64-bit integer.
func (h *Heap) Int64Val(v value.Value) int64 {
	return int64(v.Field(1))
}

// NativeintVal reads a boxed native integer.
func (h *Heap) NativeintVal(v value.Value) int64 {
	return int64(v.Field(1))
}

// bigarray payload layout, in words after the ops id.
const (
	baHandle = 1 + iota
	baKind
	baFlags
	baNdims
	baDims
)

const baManaged = 1

type bigarrayStore struct {
	data unsafe.Pointer
	keep any
	size int
}

// AllocBigarray allocates a bigarray block. Managed arrays own zeroed (or
// copied) storage released by the finalizer; external arrays reference data,
// which must stay valid while the block is alive.
func (h *Heap) AllocBigarray(kind mlbridge.BigarrayKind, managed bool, data []byte, dims []int) value.Value {
	elem := kind.ElemSize()
	if elem == 0 {
		h.InvalidArgument("bigarray: invalid kind")
	}
	if len(dims) == 0 || len(dims) > 16 {
		h.InvalidArgument("bigarray: invalid number of dimensions")
	}
	n := 1
	for _, d := range dims {
		if _, err := safecast.Conv[uint32](d); err != nil {
			h.InvalidArgument("bigarray: invalid dimension")
		}
		if d != 0 && n > (1<<47)/d {
			h.InvalidArgument("bigarray: size overflow")
		}
		n *= d
	}
	size := n * elem
	if !managed && len(data) < size {
		h.InvalidArgument("bigarray: external data too short")
	}

	v := h.allocCustom(opsBigarray, 4+len(dims), true)

	store := &bigarrayStore{size: size}
	if managed {
		buf := make([]uint64, (size+value.WordSize-1)/value.WordSize)
		if len(buf) > 0 {
			copy(unsafe.Slice((*byte)(unsafe.Pointer(&buf[0])), size), data)
			store.data = unsafe.Pointer(&buf[0])
		}
		store.keep = buf
	} else {
		store.data = unsafe.Pointer(unsafe.SliceData(data))
		store.keep = data
	}
	handle := h.natives.Insert(resource.KindBuffer, store)

	flags := 0
	if managed {
		flags = baManaged
	}
	v.StoreField(baHandle, value.Int(int64(handle)))
	v.StoreField(baKind, value.Int(int64(kind)))
	v.StoreField(baFlags, value.Int(int64(flags)))
	v.StoreField(baNdims, value.Int(int64(len(dims))))
	for i, d := range dims {
		v.StoreField(baDims+i, value.Int(int64(d)))
	}
	return v
}

// BigarrayOf describes the storage of a bigarray block.
func (h *Heap) BigarrayOf(v value.Value) (*mlbridge.Bigarray, bool) {
	if !h.IsCustom(v, BigarrayOps) {
		return nil, false
	}
	handle, err := safecast.Conv[resource.Handle](v.Field(baHandle).IntVal())
	if err != nil {
		return nil, false
	}
	raw, ok := h.natives.GetKind(handle, resource.KindBuffer)
	if !ok {
		return nil, false
	}
	store := raw.(*bigarrayStore)
	ndims := int(v.Field(baNdims).IntVal())
	dims := make([]int, ndims)
	for i := range dims {
		dims[i] = int(v.Field(baDims + i).IntVal())
	}
	return &mlbridge.Bigarray{
		Data:    store.data,
		Dims:    dims,
		Kind:    mlbridge.BigarrayKind(v.Field(baKind).IntVal()),
		Managed: v.Field(baFlags).IntVal()&baManaged != 0,
	}, true
}

func (h *Heap) finalizeBigarray(v value.Value) {
	handle, err := safecast.Conv[resource.Handle](v.Field(baHandle).IntVal())
	if err != nil {
		return
	}
	h.natives.Remove(handle)
}

func (h *Heap) bigarrayBytes(v value.Value) []byte {
	handle, err := safecast.Conv[resource.Handle](v.Field(baHandle).IntVal())
	if err != nil {
		return nil
	}
	raw, ok := h.natives.GetKind(handle, resource.KindBuffer)
	if !ok {
		return nil
	}
	store := raw.(*bigarrayStore)
	if store.data == nil {
		return nil
	}
	return unsafe.Slice((*byte)(store.data), store.size)
}

// compareBigarray orders by kind, rank, dimensions, then raw contents.
func (h *Heap) compareBigarray(a, b value.Value) int {
	for _, f := range []int{baKind, baNdims} {
		if c := cmp.Compare(a.Field(f).IntVal(), b.Field(f).IntVal()); c != 0 {
			return c
		}
	}
	for i, n := 0, int(a.Field(baNdims).IntVal()); i < n; i++ {
		if c := cmp.Compare(a.Field(baDims+i).IntVal(), b.Field(baDims+i).IntVal()); c != 0 {
			return c
		}
	}
	return bytes.Compare(h.bigarrayBytes(a), h.bigarrayBytes(b))
}
