// Package bigarray wraps foreign bigarrays: typed numeric storage kept
// outside the collected heap.
//
// Managed bigarrays own their storage and release it when the block is
// collected. External bigarrays (OfSlice) reference Go memory the caller
// keeps alive; the engine never frees it.
//
//	Create / Create2      managed, zeroed
//	FromSlice / FromRows  managed copy
//	OfSlice               external, no copy
//
// Data exposes the storage as a Go slice. The block may move during a
// collection but the storage does not.
package bigarray
