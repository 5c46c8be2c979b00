package types

import (
	"strconv"

	"github.com/wippyai/mlbridge/errors"
)

func index(i int) string {
	return "[" + strconv.Itoa(i) + "]"
}

// at prefixes the path of a decoding error with element i.
func at(err error, i int) error {
	e, ok := err.(*errors.Error)
	if !ok {
		return err
	}
	switch e.Kind {
	case errors.KindTypeMismatch, errors.KindUnknownTag, errors.KindOverflow:
		e.Path = append([]string{index(i)}, e.Path...)
	}
	return err
}
