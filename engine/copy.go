package engine

import (
	"github.com/wippyai/mlbridge/value"
)

// DeepCopyOut copies v into static memory outside the collected heap. The
// copy never moves and is never collected. Sharing and cycles are preserved.
// Custom blocks with finalizers cannot be copied.
func (h *Heap) DeepCopyOut(v value.Value) value.Value {
	seen := make(map[value.Value]value.Value)
	var walk func(v value.Value) value.Value
	walk = func(v value.Value) value.Value {
		if v.IsImmediate() || !h.InHeap(v) {
			return v
		}
		if c, ok := seen[v]; ok {
			return c
		}
		tag := v.Tag()
		if tag == value.CustomTag {
			if ops := h.CustomOpsOf(v); ops == nil || ops.Finalize != nil {
				h.InvalidArgument("deep copy: finalized custom block")
			}
		}
		n := v.Wosize()
		c := h.AllocStatic(n, tag)
		seen[v] = c
		if tag.IsNoScan() {
			copy(c.Words(), v.Words())
			return c
		}
		for i := 0; i < n; i++ {
			c.StoreField(i, walk(v.Field(i)))
		}
		return c
	}
	return walk(v)
}

// DeepCopyIn copies a static structure produced by DeepCopyOut back into the
// collected heap. Blocks already in the heap are returned unchanged.
func (h *Heap) DeepCopyIn(v value.Value) value.Value {
	if v.IsImmediate() || h.InHeap(v) {
		return v
	}
	top := h.LocalsTop()
	seen := make(map[value.Value]int)
	var walk func(src value.Value) value.Value
	walk = func(src value.Value) value.Value {
		if src.IsImmediate() || h.InHeap(src) || src.Wosize() == 0 {
			return src
		}
		if slot, ok := seen[src]; ok {
			return h.Local(slot)
		}
		tag := src.Tag()
		n := src.Wosize()
		slot := h.PushLocal(h.Alloc(n, tag))
		seen[src] = slot
		if tag.IsNoScan() {
			copy(h.Local(slot).Words(), src.Words())
			return h.Local(slot)
		}
		for i := 0; i < n; i++ {
			child := walk(src.Field(i))
			h.Modify(h.Local(slot), i, child)
		}
		return h.Local(slot)
	}
	r := walk(v)
	h.PopLocals(top)
	return r
}
