// Package transcoder converts between Go values and foreign heap values.
//
// # Encoding
//
// Values follow the foreign compiler's own layout, so foreign code can read
// them without glue:
//
//	Go                       Foreign
//	───────────────────────────────────────────────────────────────
//	bool, ints               immediate
//	float64                  Double_tag block holding the raw bits
//	string, []byte           String_tag block, padded to a word
//	[]float64, float record  Double_array_tag block, unboxed
//	slice, array             tag 0 block, one field per element
//	*T                       None immediate, or Some: tag 0 block of 1
//	tuple, record            tag 0 block, fields in declaration order
//	variant                  constant cases: immediate index among constants
//	                         other cases: block tagged with index among them
//	polymorphic variant      hash immediate, or (hash, arg) block
//
// # Codecs
//
// Codec[T] is the typed path. Primitive codecs (Int, Float, String, ...) and
// combinators (Option, Result, Tuple2, Slice, ListOf, Variant, Record) compose:
//
//	pairs := transcoder.Slice(transcoder.Tuple2(transcoder.String, transcoder.Int))
//	v := pairs.Encode(tok, []transcoder.Pair[string, int]{{"a", 1}})
//	back, err := pairs.Decode(rt, v)
//
// Marshal and Unmarshal are the reflection path. Plans are compiled once per
// Go type and cached.
//
// # Allocation
//
// Encoding takes a runtime.AllocToken: it may run the collector. Intermediate
// blocks are kept in local roots while a composite is built, but values the
// caller holds across an encode must be rooted by the caller. Decoding takes
// a *runtime.Runtime and never allocates on the foreign heap.
//
// # Error Handling
//
// Decoding validates shape before reading any field. Errors carry the path
// to the offending value:
//
//	[decode] type_mismatch at Items.[2].Name: expected string, got immediate 3
//	[decode] unknown_tag: tag 4 out of range (max 1)
//	[decode] overflow at Port: value 70000 overflows uint16
package transcoder
