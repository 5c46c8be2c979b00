// Package types wraps foreign containers without converting them to Go.
//
// Array, List and Pointer hold their block in a pinned root of the handle
// that created them, so a wrapper stays valid across allocations until the
// handle is left. Elements are converted on access through a
// transcoder.Codec.
//
// # Arrays
//
// A foreign array is either boxed (every field is an encoded element) or a
// double array (unboxed float64 words). The two layouts use different
// accessors:
//
//	a.Get(i) / a.Set(tok, i, x)       boxed arrays
//	a.GetDouble(i) / a.SetDouble(i, f) double arrays
//
// The wrong accessor fails with errors.ErrNotDoubleArray, and an index
// outside [0, Len) fails with errors.ErrArrayBound. The Unchecked variants
// skip both checks.
//
// # Lists
//
// Lists are immutable. Add conses one cell onto the receiver and returns the
// new list; Len walks the spine. Iter yields each element once:
//
//	for x, err := range l.Iter() {
//		...
//	}
//
// # Pointers
//
// Pointer stores a Go value in the engine's native table and keeps only the
// handle in the block:
//
//	AllocCustom    custom block with Ops; released by the collector
//	AllocFinal     block with a finalizer; released by the collector
//	AllocAbstract  abstract block; released by Drop only
package types
