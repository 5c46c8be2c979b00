package main

import (
	"io"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/wippyai/mlbridge/engine"
	"github.com/wippyai/mlbridge/value"
)

const maxSnapshotDepth = 64

// snapshot is a heap value copied out for serialization. Kind is one of
// int, float, string, floats, block, closure, custom, abstract, exception
// and truncated.
type snapshot struct {
	Kind   string     `msgpack:"kind"`
	Int    int64      `msgpack:"int,omitempty"`
	Float  float64    `msgpack:"float,omitempty"`
	Text   string     `msgpack:"text,omitempty"`
	Tag    int        `msgpack:"tag,omitempty"`
	Floats []float64  `msgpack:"floats,omitempty"`
	Fields []snapshot `msgpack:"fields,omitempty"`
}

// takeSnapshot copies v without allocating on the heap.
func takeSnapshot(h *engine.Heap, v value.Value, depth int) snapshot {
	if v.IsImmediate() {
		return snapshot{Kind: "int", Int: v.IntVal()}
	}
	if depth >= maxSnapshotDepth {
		return snapshot{Kind: "truncated"}
	}
	switch tag := v.Tag(); tag {
	case value.StringTag:
		return snapshot{Kind: "string", Text: v.StringVal()}
	case value.DoubleTag:
		return snapshot{Kind: "float", Float: v.FloatVal()}
	case value.DoubleArrayTag:
		fs := make([]float64, v.ArrayLen())
		for i := range fs {
			fs[i] = v.DoubleField(i)
		}
		return snapshot{Kind: "floats", Floats: fs}
	case value.ClosureTag:
		return snapshot{Kind: "closure", Text: h.CodeName(v), Int: int64(engine.ClosureArity(v))}
	case value.CustomTag:
		s := snapshot{Kind: "custom"}
		if ops := h.CustomOpsOf(v); ops != nil {
			s.Text = ops.Identifier
		}
		return s
	case value.AbstractTag:
		return snapshot{Kind: "abstract"}
	case value.ObjectTag:
		return snapshot{Kind: "exception", Text: engine.ExceptionName(v)}
	default:
		s := snapshot{Kind: "block", Tag: int(tag), Fields: make([]snapshot, v.Wosize())}
		for i := range s.Fields {
			s.Fields[i] = takeSnapshot(h, v.Field(i), depth+1)
		}
		return s
	}
}

func writeSnapshot(w io.Writer, s snapshot) error {
	return msgpack.NewEncoder(w).Encode(s)
}
