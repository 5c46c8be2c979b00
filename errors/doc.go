// Package errors provides the structured error taxonomy shared by every layer
// that crosses the foreign runtime boundary.
//
// Errors are categorized by Phase (where the error occurred) and Kind. The
// Kind set mirrors the foreign runtime's predefined exceptions, so the bridge
// can raise each kind through its dedicated primitive and preserve exception
// identity for foreign handlers:
//
//	Kind                       Raised as
//	──────────────────────────────────────────────────────────
//	not_found                  Not_found
//	failure                    Failure msg
//	invalid_argument           Invalid_argument msg
//	out_of_memory              Out_of_memory
//	stack_overflow             Stack_overflow
//	sys_error                  Sys_error msg
//	end_of_file                End_of_file
//	zero_divide                Division_by_zero
//	array_bound                Invalid_argument "index out of bounds"
//	blocked_io                 Sys_blocked_io
//	foreign_exception          the caught exception, re-raised as is
//	foreign_exception_with_arg registered exception applied to an argument
//	wrapped                    Failure with the wrapped error text
//	not_callable               Failure "value is not callable"
//	not_double_array           Failure "invalid double array"
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseDecode, errors.KindTypeMismatch).
//		Path("user", "age").
//		Detail("expected immediate, got block with tag %d", tag).
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.ArrayBound(10, 5)
//	err := errors.Failure("bad input")
//
// Errors carrying a foreign exception hold it through a Pinned reference
// that stays valid across collections for the lifetime of the runtime handle
// that caught it.
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
