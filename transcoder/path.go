package transcoder

import (
	"fmt"
	"strconv"

	"github.com/wippyai/mlbridge/errors"
	"github.com/wippyai/mlbridge/runtime"
	"github.com/wippyai/mlbridge/value"
)

// describe names the shape of v for error messages.
func describe(v value.Value) string {
	if v.IsImmediate() {
		return "immediate " + strconv.FormatInt(v.IntVal(), 10)
	}
	return fmt.Sprintf("block with tag %s and size %d", v.Tag(), v.Wosize())
}

func mismatch(v value.Value, want string) *errors.Error {
	return errors.TypeMismatch(errors.PhaseDecode, nil, "expected "+want+", got "+describe(v))
}

// at prefixes the path of a shape error with seg.
func at(err error, seg string) error {
	return within(err, []string{seg})
}

// within prefixes the path of a shape error with path.
func within(err error, path []string) error {
	e, ok := err.(*errors.Error)
	if !ok || len(path) == 0 {
		return err
	}
	switch e.Kind {
	case errors.KindTypeMismatch, errors.KindUnknownTag, errors.KindOverflow:
		e.Path = append(append([]string{}, path...), e.Path...)
	}
	return err
}

func index(i int) string {
	return "[" + strconv.Itoa(i) + "]"
}

// build allocates a block of n fields and fills field i with fill(i). The
// block is rooted while the fields are produced.
func build(tok runtime.AllocToken, tag value.Tag, n int, fill func(i int) value.Value) value.Value {
	v, _ := buildErr(tok, tag, n, func(i int) (value.Value, error) {
		return fill(i), nil
	})
	return v
}

func buildErr(tok runtime.AllocToken, tag value.Tag, n int, fill func(i int) (value.Value, error)) (value.Value, error) {
	abi := tok.ABI()
	if n == 0 {
		return abi.Alloc(0, tag), nil
	}
	f := tok.Runtime().Frame()
	defer f.Close()
	blk := f.Root(abi.Alloc(n, tag))
	for i := 0; i < n; i++ {
		x, err := fill(i)
		if err != nil {
			return value.Unit, err
		}
		abi.Modify(blk.Get(), i, x)
	}
	return blk.Get(), nil
}

// buildDoubles allocates a double array of n elements.
func buildDoubles(tok runtime.AllocToken, n int, get func(i int) float64) value.Value {
	v := tok.ABI().AllocDoubleArray(n)
	for i := 0; i < n; i++ {
		v.StoreDoubleField(i, get(i))
	}
	return v
}

// buildList conses elements n-1 down to 0 onto the empty list.
func buildList(tok runtime.AllocToken, n int, elem func(i int) (value.Value, error)) (value.Value, error) {
	abi := tok.ABI()
	f := tok.Runtime().Frame()
	defer f.Close()
	list := f.Root(value.EmptyList)
	head := f.Root(value.Unit)
	for i := n - 1; i >= 0; i-- {
		x, err := elem(i)
		if err != nil {
			return value.Unit, err
		}
		head.Set(x)
		cell := abi.AllocSmall(2, 0)
		abi.Initialize(cell, 0, head.Get())
		abi.Initialize(cell, 1, list.Get())
		list.Set(cell)
	}
	return list.Get(), nil
}

// walkList calls fn on each head of a foreign list.
func walkList(v value.Value, fn func(i int, head value.Value) error) error {
	for i := 0; v != value.EmptyList; i++ {
		if !v.IsBlock() || v.Tag() != 0 || v.Wosize() != 2 {
			return at(mismatch(v, "list cell"), index(i))
		}
		if err := fn(i, v.Field(0)); err != nil {
			return at(err, index(i))
		}
		v = v.Field(1)
	}
	return nil
}
