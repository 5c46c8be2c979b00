// Package value defines the raw word representation shared with the foreign runtime.
//
// A Value is one machine word. It is either an immediate (a 63-bit integer
// shifted left by one with the low bit set) or a pointer to the first field
// of a heap block. Every block is preceded by a header word:
//
//	 63                      10 9   8 7        0
//	┌──────────────────────────┬─────┬──────────┐
//	│ wosize (size in words)   │color│   tag    │
//	└──────────────────────────┴─────┴──────────┘
//
// # Tags
//
//	0 .. 245        tuples, records, variant constructors
//	246 LazyTag     lazy value
//	247 ClosureTag  closure (code, arity, environment)
//	248 ObjectTag   object / exception constructor
//	249 InfixTag    infix pointer inside a closure
//	250 ForwardTag  forwarded lazy value
//	251 AbstractTag no-scan: opaque words
//	252 StringTag   no-scan: bytes with trailing padding byte
//	253 DoubleTag   no-scan: one boxed float
//	254 DoubleArrayTag no-scan: unboxed float array
//	255 CustomTag   no-scan: custom operations + native payload
//
// # Safety
//
// Nothing in this package is checked. Field and StoreField require i < Wosize,
// Tag and Header require a block. A block pointer is only valid until the next
// allocation in the foreign heap unless it is registered as a root; this package
// cannot know which values are stale. Checked access lives in the types package.
//
// StoreField is a raw write without the collector's write barrier. It is only
// correct for blocks that were just allocated and are not yet reachable from
// the heap; everything else goes through the runtime's Modify primitive.
package value
