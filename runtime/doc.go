// Package runtime provides the handle through which native code reads,
// allocates and mutates foreign heap values.
//
// # Quick Start
//
//	heap := engine.New(engine.DefaultConfig())
//	defer heap.Close()
//
//	runtime.Export(heap, "sum_pair", 1, func(rt *runtime.Runtime, args runtime.Args) (value.Value, error) {
//	    pair := args.Get(0)
//	    return value.Int(pair.Field(0).IntVal() + pair.Field(1).IntVal()), nil
//	})
//
//	res, exn, raised := heap.Invoke("sum_pair", pair)
//
// # Handles
//
// A Runtime is Active between Enter and Leave. Entering a second handle
// suspends the first until the second is left, so at most one handle is
// Active at any time:
//
//	Uninitialized ──Enter──► Active ◄──────┐
//	                           │  nested    │ inner Leave
//	                           ├──Enter──► Suspended
//	                           │
//	                           └──Leave──► Returned
//
// Using a handle that is not Active panics.
//
// # Allocation Tokens
//
// Every function that may allocate takes an AllocToken. Holding a token is
// the signal that the collector may run and move blocks: a raw value.Value
// obtained before a call taking a token is stale after it unless it was
// rooted.
//
// # Roots
//
//	Frame/Root    local roots, dropped on Frame.Close or Leave
//	GlobalRoot    independent of handles, dropped on Release
//	Pin           rooted until the handle is left
//
// Export roots the arguments of every call; read them through Args.Get after
// any allocation.
//
// # Errors
//
// Body is the boundary wrapper. A returned error or a recovered panic is
// raised on the foreign side through the bridge package once the handle has
// been left. Calls into foreign closures (Call, Call2, Call3, CallN) check
// the callee is a closure and return a raised exception as a ForeignException
// error, which re-raises the same exception value when returned from Body.
package runtime
