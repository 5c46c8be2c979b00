// Package resource stores Go values that foreign heap blocks refer to by handle.
//
// Go pointers may not live inside the foreign heap: the Go collector does not
// scan it. A custom, finalized or abstract block therefore stores a Handle in
// its payload, and the Go value itself lives in a Table owned by the engine.
//
//	┌─────────────── foreign heap ───────────────┐      ┌──── Table ────┐
//	│ hdr │ ops id │ handle=3 │ ...              │ ───▶ │ 3: *myStruct  │
//	└────────────────────────────────────────────┘      └───────────────┘
//
// # Lifecycle
//
//	Insert   - a block is allocated and takes exclusive ownership of the value
//	Replace  - the block's payload is overwritten in place
//	Remove   - the block's finalizer ran, or the owner dropped it explicitly
//
// Values implementing Dropper are notified once when removed. Handles are
// recycled after removal, so a handle read from a dead block is meaningless.
//
// # Kinds
//
// Each entry carries the Kind of block that owns it, so lookups can reject a
// handle read from the wrong kind of block:
//
//	value, ok := table.GetKind(h, resource.KindCustom)
//
// # Observers
//
// Observers see every insertion and removal, which tests use to assert that a
// finalizer ran exactly once:
//
//	table.Subscribe(obs)
package resource
