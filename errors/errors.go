package errors

import (
	"errors"
	"fmt"
	"strings"

	"github.com/wippyai/mlbridge/value"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseEncode   Phase = "encode"   // Go to foreign
	PhaseDecode   Phase = "decode"   // foreign to Go
	PhaseAccess   Phase = "access"   // container access
	PhaseCall     Phase = "call"     // closure callbacks
	PhaseRaise    Phase = "raise"    // explicit raise from native code
	PhaseBoundary Phase = "boundary" // entry point wrapper
	PhaseRuntime  Phase = "runtime"  // runtime operations
)

// Kind categorizes the error
type Kind string

const (
	KindNotFound                Kind = "not_found"
	KindFailure                 Kind = "failure"
	KindInvalidArgument         Kind = "invalid_argument"
	KindOutOfMemory             Kind = "out_of_memory"
	KindStackOverflow           Kind = "stack_overflow"
	KindSysError                Kind = "sys_error"
	KindEndOfFile               Kind = "end_of_file"
	KindZeroDivide              Kind = "zero_divide"
	KindArrayBound              Kind = "array_bound"
	KindBlockedIO               Kind = "blocked_io"
	KindForeignException        Kind = "foreign_exception"
	KindForeignExceptionWithArg Kind = "foreign_exception_with_arg"
	KindWrapped                 Kind = "wrapped"
	KindNotCallable             Kind = "not_callable"
	KindNotDoubleArray          Kind = "not_double_array"

	KindUnknownTag    Kind = "unknown_tag"
	KindTypeMismatch  Kind = "type_mismatch"
	KindOverflow      Kind = "overflow"
	KindNotRegistered Kind = "not_registered"
)

// Pinned is a foreign value kept alive and up to date across collections.
type Pinned interface {
	Get() value.Value
}

// Error is the structured error type used throughout the module
type Error struct {
	Value  any
	Cause  error
	Exn    Pinned
	Arg    Pinned
	Phase  Phase
	Kind   Kind
	Detail string
	Path   []string
	// Panicked marks a Failure produced from a recovered Go panic.
	Panicked bool
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Message returns the text carried to the foreign side by message-bearing kinds.
func (e *Error) Message() string {
	if e.Detail != "" {
		return e.Detail
	}
	if e.Cause != nil {
		return e.Cause.Error()
	}
	return string(e.Kind)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error.
// A target without a Phase matches any phase.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Phase != "" && t.Phase != e.Phase {
		return false
	}
	return e.Kind == t.Kind
}

// Sentinels for errors.Is.
var (
	ErrNotFound       = &Error{Kind: KindNotFound}
	ErrFailure        = &Error{Kind: KindFailure}
	ErrInvalidArg     = &Error{Kind: KindInvalidArgument}
	ErrArrayBound     = &Error{Kind: KindArrayBound}
	ErrNotCallable    = &Error{Kind: KindNotCallable}
	ErrNotDoubleArray = &Error{Kind: KindNotDoubleArray}
	ErrForeign        = &Error{Kind: KindForeignException}
	ErrTypeMismatch   = &Error{Kind: KindTypeMismatch}
	ErrUnknownTag     = &Error{Kind: KindUnknownTag}
	ErrOverflow       = &Error{Kind: KindOverflow}
)

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As returns err as *Error, wrapping foreign error types as KindWrapped.
func As(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err)
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the field path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Exception attaches a pinned foreign exception and optional argument
func (b *Builder) Exception(exn, arg Pinned) *Builder {
	b.err.Exn = exn
	b.err.Arg = arg
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}
