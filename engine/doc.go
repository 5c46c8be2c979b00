// Package engine implements the foreign runtime that the bridge talks to.
//
// A Heap is a tagged, moving, generational heap with the value model of a
// garbage-collected functional language: immediates carry a low tag bit,
// blocks carry a header word with size, color and tag. Heap implements
// mlbridge.ABI, so everything above it only sees the raw primitive surface.
//
// # Memory Layout
//
//	minor heap    bump allocator, blocks up to MaxYoungWosize words
//	major heap    chunked bump allocator, promoted and large blocks
//	atoms         one zero-sized block per tag, never collected
//	statics       AllocStatic/DeepCopyOut blocks, never moved
//
// Block pointers are addresses of field 0 inside Go-allocated []uint64
// chunks. Go does not move heap objects, so the raw addresses stay valid
// for as long as the chunk is referenced by the Heap.
//
// # Collection
//
// A minor collection copies live young blocks into the major heap. Roots
// are the global roots, the local root stack, named values, the pending
// exception, fields of static blocks and the remembered set filled by
// Modify. A compaction copies every live block of both generations into a
// fresh chunk; it runs when the major budget is exceeded, on FullMajor, and
// before every allocation when GCStress is set.
//
// Any allocation may therefore move every block not reachable from a root:
//
//	v := h.AllocString([]byte("x"))
//	h.AllocTuple(2)          // v may now point at a forwarded or poisoned block
//
//	slot := h.PushLocal(v)
//	h.AllocTuple(2)
//	v = h.Local(slot)        // valid
//
// With Poison set, retired memory is overwritten with PoisonWord and kept
// until Close, which makes stale pointers observable in tests.
//
// # Exceptions
//
// Exception constructors are static Object_tag blocks holding a name and an
// id. Raising stores the exception in a root and panics with a private
// signal; Try, Invoke and the Callback*Exn primitives trap it. Callback
// results carry an exception as a marked word (see value.IsExceptionResult).
//
// # Closures
//
// A closure block holds a code index, its arity and the captured
// environment. Code is a Go function (DefineCode, NewClosure) or an export
// of a wasm module loaded with LoadWasm and run by wazero. Application
// supports partial and over-application.
//
// # Custom Blocks
//
// Custom blocks carry an operations id in field 0 and a payload. Builtin
// operations cover boxed Int32/Int64/Nativeint and bigarrays. Finalizers run
// exactly once, after the collection that finds the block dead, and must not
// allocate. Native Go values referenced by custom payloads live in the
// resource table returned by Natives, addressed by handle.
//
// # Thread Safety
//
// A Heap is not safe for concurrent use. The runtime package serializes
// access through its handle discipline.
package engine
