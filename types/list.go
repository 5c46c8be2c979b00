package types

import (
	"iter"

	"github.com/wippyai/mlbridge/errors"
	"github.com/wippyai/mlbridge/runtime"
	"github.com/wippyai/mlbridge/transcoder"
	"github.com/wippyai/mlbridge/value"
)

// List is an immutable foreign list. Add returns a new list sharing the
// tail; the receiver is never modified.
type List[T any] struct {
	rt    *runtime.Runtime
	codec transcoder.Codec[T]
	cell  *runtime.Pinned
}

// EmptyList returns the empty list.
func EmptyList[T any](rt *runtime.Runtime, c transcoder.Codec[T]) List[T] {
	return List[T]{rt: rt, codec: c, cell: rt.Pin(value.EmptyList)}
}

// ListOf wraps an existing foreign list after checking every cell.
func ListOf[T any](rt *runtime.Runtime, c transcoder.Codec[T], v value.Value) (List[T], error) {
	for i, cur := 0, v; cur != value.EmptyList; i++ {
		if !cur.IsBlock() || cur.Tag() != 0 || cur.Wosize() != 2 {
			return List[T]{}, errors.TypeMismatch(errors.PhaseDecode, []string{index(i)}, "expected list cell")
		}
		cur = cur.Field(1)
	}
	return List[T]{rt: rt, codec: c, cell: rt.Pin(v)}, nil
}

// FromSlice builds a list holding xs in order.
func FromSlice[T any](tok runtime.AllocToken, c transcoder.Codec[T], xs []T) List[T] {
	l := EmptyList(tok.Runtime(), c)
	for i := len(xs) - 1; i >= 0; i-- {
		l = l.Add(tok, xs[i])
	}
	return l
}

// Value returns the first cell, or the empty list immediate.
func (l List[T]) Value() value.Value {
	return l.cell.Get()
}

// ToValue makes a List usable as a field of marshalled Go values.
func (l List[T]) ToValue(runtime.AllocToken) value.Value {
	return l.cell.Get()
}

// Add prepends x, allocating one cell.
func (l List[T]) Add(tok runtime.AllocToken, x T) List[T] {
	abi := tok.ABI()
	f := l.rt.Frame()
	defer f.Close()
	head := f.Root(l.codec.Encode(tok, x))
	cell := abi.AllocSmall(2, 0)
	abi.Initialize(cell, 0, head.Get())
	abi.Initialize(cell, 1, l.cell.Get())
	return List[T]{rt: l.rt, codec: l.codec, cell: l.rt.Pin(cell)}
}

// Len walks the list.
func (l List[T]) Len() int {
	n := 0
	for v := l.cell.Get(); v != value.EmptyList; v = v.Field(1) {
		n++
	}
	return n
}

// IsEmpty reports whether the list has no elements.
func (l List[T]) IsEmpty() bool {
	return l.cell.Get() == value.EmptyList
}

// Head decodes the first element. The empty list fails with Failure "hd".
func (l List[T]) Head() (T, error) {
	v := l.cell.Get()
	if v == value.EmptyList {
		var zero T
		return zero, errors.Failure("hd")
	}
	return l.codec.Decode(l.rt, v.Field(0))
}

// Tail returns the list without its first element. The tail of the empty
// list is empty.
func (l List[T]) Tail() List[T] {
	v := l.cell.Get()
	if v == value.EmptyList {
		return l
	}
	return List[T]{rt: l.rt, codec: l.codec, cell: l.rt.Pin(v.Field(1))}
}

// Iter returns a sequence over the elements. It can be ranged over once;
// later ranges yield nothing. The position survives allocations made by the
// loop body. Iteration stops at the first decoding error, which is yielded
// with the zero T.
func (l List[T]) Iter() iter.Seq2[T, error] {
	used := false
	return func(yield func(T, error) bool) {
		if used {
			return
		}
		used = true
		pos := runtime.NewGlobalRoot(l.rt, l.cell.Get())
		defer pos.Release()
		for i := 0; pos.Get() != value.EmptyList; i++ {
			cur := pos.Get()
			x, err := l.codec.Decode(l.rt, cur.Field(0))
			if err != nil {
				yield(x, at(err, i))
				return
			}
			pos.Set(cur.Field(1))
			if !yield(x, nil) {
				return
			}
		}
	}
}

// ToSlice decodes every element in order.
func (l List[T]) ToSlice() ([]T, error) {
	var out []T
	for x, err := range l.Iter() {
		if err != nil {
			return nil, err
		}
		out = append(out, x)
	}
	return out, nil
}
