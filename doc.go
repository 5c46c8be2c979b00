// Package mlbridge lets Go code read, build and mutate values that live in the
// heap of a foreign runtime with a tagged, moving garbage collector, call back
// into foreign closures, and translate failures across the boundary.
//
// # Architecture Overview
//
//	mlbridge/            ABI interface the core calls into, custom ops, bigarray kinds
//	├── value/           Raw word representation: immediates, headers, field access
//	├── engine/          Pure Go foreign runtime implementing ABI (heap, GC, closures)
//	├── runtime/         Runtime handle, allocation token, roots, boundary wrapper
//	├── transcoder/      Go <-> foreign value conversion (codecs and reflection)
//	├── types/           Zero-copy Array, List and custom block wrappers
//	│   └── bigarray/    Numeric buffers with out-of-heap storage
//	├── bridge/          Error <-> foreign exception translation
//	├── errors/          Structured error taxonomy
//	└── resource/        Handle table for native values referenced from the heap
//
// # Quick Start
//
//	heap := engine.New(engine.DefaultConfig())
//	defer heap.Close()
//
//	runtime.Export(heap, "sum", 2, func(rt *runtime.Runtime, args runtime.Args) (value.Value, error) {
//	    return value.Int(args.Get(0).IntVal() + args.Get(1).IntVal()), nil
//	})
//
//	res, exn, raised := heap.Invoke("sum", value.Int(1), value.Int(2))
//
// # The Central Invariant
//
// A raw block pointer is valid only until the next allocation, unless it is
// rooted. Every function that may allocate takes a runtime.AllocToken; holding
// a bare value.Value across such a call is a bug unless the value was stored in
// a root (runtime.Frame, runtime.GlobalRoot or Runtime.Pin) and re-read after.
//
// # Thread Safety
//
// The foreign heap is single threaded. Only one runtime handle is active at a
// time; nested calls suspend the outer handle. None of the types in this module
// may be shared between goroutines while a handle is active.
package mlbridge
