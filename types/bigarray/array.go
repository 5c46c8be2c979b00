package bigarray

import (
	"github.com/wippyai/mlbridge/errors"
	"github.com/wippyai/mlbridge/runtime"
	"github.com/wippyai/mlbridge/value"
)

// Array1 is a one-dimensional bigarray.
type Array1[T Elem] struct {
	header[T]
}

// Create allocates a managed, zeroed Array1 of n elements.
func Create[T Elem](tok runtime.AllocToken, n int) Array1[T] {
	return Array1[T]{alloc[T](tok, true, nil, n)}
}

// OfSlice wraps data without copying. data must stay alive and unmoved for
// as long as foreign code can reach the bigarray.
func OfSlice[T Elem](tok runtime.AllocToken, data []T) Array1[T] {
	return Array1[T]{alloc(tok, false, data, len(data))}
}

// FromSlice copies data into a managed Array1.
func FromSlice[T Elem](tok runtime.AllocToken, data []T) Array1[T] {
	return Array1[T]{alloc(tok, true, data, len(data))}
}

// FromVec copies data into a managed Array1. The caller may reuse data.
func FromVec[T Elem](tok runtime.AllocToken, data []T) Array1[T] {
	return FromSlice(tok, data)
}

// Array1Of wraps an existing one-dimensional bigarray of kind T.
func Array1Of[T Elem](rt *runtime.Runtime, v value.Value) (Array1[T], error) {
	h, err := wrap[T](rt, v, 1)
	if err != nil {
		return Array1[T]{}, err
	}
	return Array1[T]{h}, nil
}

// Array2 is a row-major two-dimensional bigarray.
type Array2[T Elem] struct {
	header[T]
}

// Create2 allocates a managed, zeroed rows x cols Array2.
func Create2[T Elem](tok runtime.AllocToken, rows, cols int) Array2[T] {
	return Array2[T]{alloc[T](tok, true, nil, rows, cols)}
}

// FromRows copies rows into a managed Array2. Every row must have the same
// length.
func FromRows[T Elem](tok runtime.AllocToken, rows [][]T) (Array2[T], error) {
	cols := 0
	if len(rows) > 0 {
		cols = len(rows[0])
	}
	flat := make([]T, 0, len(rows)*cols)
	for i, r := range rows {
		if len(r) != cols {
			return Array2[T]{}, errors.New(errors.PhaseEncode, errors.KindInvalidArgument).
				Detail("row %d has %d columns, want %d", i, len(r), cols).
				Build()
		}
		flat = append(flat, r...)
	}
	return Array2[T]{alloc(tok, true, flat, len(rows), cols)}, nil
}

// Array2Of wraps an existing two-dimensional bigarray of kind T.
func Array2Of[T Elem](rt *runtime.Runtime, v value.Value) (Array2[T], error) {
	h, err := wrap[T](rt, v, 2)
	if err != nil {
		return Array2[T]{}, err
	}
	return Array2[T]{h}, nil
}

// Shape returns the number of rows and columns.
func (a Array2[T]) Shape() (rows, cols int) {
	dims := a.describe().Dims
	return dims[0], dims[1]
}

func (a Array2[T]) offset(i, j int) (int, error) {
	rows, cols := a.Shape()
	if i < 0 || i >= rows {
		return 0, errors.ArrayBound(i, rows)
	}
	if j < 0 || j >= cols {
		return 0, errors.ArrayBound(j, cols)
	}
	return i*cols + j, nil
}

// At returns the element in row i, column j.
func (a Array2[T]) At(i, j int) (T, error) {
	k, err := a.offset(i, j)
	if err != nil {
		var zero T
		return zero, err
	}
	return a.Data()[k], nil
}

// Set stores x in row i, column j.
func (a Array2[T]) Set(i, j int, x T) error {
	k, err := a.offset(i, j)
	if err != nil {
		return err
	}
	a.Data()[k] = x
	return nil
}
