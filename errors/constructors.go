package errors

import "fmt"

// Constructors for the exception taxonomy. All of them use PhaseRaise since
// they describe an intent to raise rather than a failure inside this module.

// NotFound creates a Not_found error
func NotFound() *Error {
	return &Error{Phase: PhaseRaise, Kind: KindNotFound}
}

// Failure creates a Failure error carrying msg
func Failure(msg string) *Error {
	return &Error{Phase: PhaseRaise, Kind: KindFailure, Detail: msg}
}

// Failuref creates a Failure error with a formatted message
func Failuref(format string, args ...any) *Error {
	return Failure(fmt.Sprintf(format, args...))
}

// InvalidArgument creates an Invalid_argument error carrying msg
func InvalidArgument(msg string) *Error {
	return &Error{Phase: PhaseRaise, Kind: KindInvalidArgument, Detail: msg}
}

// OutOfMemory creates an Out_of_memory error
func OutOfMemory() *Error {
	return &Error{Phase: PhaseRaise, Kind: KindOutOfMemory}
}

// StackOverflow creates a Stack_overflow error
func StackOverflow() *Error {
	return &Error{Phase: PhaseRaise, Kind: KindStackOverflow}
}

// SysError creates a Sys_error error carrying msg
func SysError(msg string) *Error {
	return &Error{Phase: PhaseRaise, Kind: KindSysError, Detail: msg}
}

// EndOfFile creates an End_of_file error
func EndOfFile() *Error {
	return &Error{Phase: PhaseRaise, Kind: KindEndOfFile}
}

// ZeroDivide creates a Division_by_zero error
func ZeroDivide() *Error {
	return &Error{Phase: PhaseRaise, Kind: KindZeroDivide}
}

// BlockedIO creates a Sys_blocked_io error
func BlockedIO() *Error {
	return &Error{Phase: PhaseRaise, Kind: KindBlockedIO}
}

// ArrayBound creates an out of bounds error
func ArrayBound(index, length int) *Error {
	return &Error{
		Phase:  PhaseAccess,
		Kind:   KindArrayBound,
		Detail: fmt.Sprintf("index %d out of bounds (length %d)", index, length),
		Value:  index,
	}
}

// ForeignException wraps an exception raised by foreign code
func ForeignException(exn Pinned) *Error {
	return &Error{Phase: PhaseCall, Kind: KindForeignException, Exn: exn}
}

// ForeignExceptionWithArg creates an error raising exn applied to arg
func ForeignExceptionWithArg(exn, arg Pinned) *Error {
	return &Error{Phase: PhaseRaise, Kind: KindForeignExceptionWithArg, Exn: exn, Arg: arg}
}

// Wrap wraps an arbitrary Go error
func Wrap(cause error) *Error {
	return &Error{Phase: PhaseRaise, Kind: KindWrapped, Cause: cause}
}

// NotCallable creates an error for a callback on a non-closure value
func NotCallable(detail string) *Error {
	return &Error{Phase: PhaseCall, Kind: KindNotCallable, Detail: detail}
}

// NotDoubleArray creates an error for double access on a boxed array
func NotDoubleArray() *Error {
	return &Error{Phase: PhaseAccess, Kind: KindNotDoubleArray}
}

// UnknownTag creates an error for a block tag no decoder case accepts
func UnknownTag(phase Phase, path []string, tag uint8, maxValid int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnknownTag,
		Path:   path,
		Detail: fmt.Sprintf("tag %d out of range (max %d)", tag, maxValid),
		Value:  tag,
	}
}

// TypeMismatch creates a shape mismatch error
func TypeMismatch(phase Phase, path []string, detail string) *Error {
	return &Error{Phase: phase, Kind: KindTypeMismatch, Path: path, Detail: detail}
}

// Overflow creates an overflow error
func Overflow(phase Phase, path []string, v any, targetType string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOverflow,
		Path:   path,
		Detail: fmt.Sprintf("value %v overflows %s", v, targetType),
		Value:  v,
	}
}

// NotRegistered creates an error for a named value missing from the runtime
func NotRegistered(name string) *Error {
	return &Error{
		Phase:  PhaseRaise,
		Kind:   KindNotRegistered,
		Detail: fmt.Sprintf("value %q has not been registered with the foreign runtime", name),
	}
}

// Panic creates the Failure produced by a recovered Go panic
func Panic(msg string) *Error {
	return &Error{Phase: PhaseBoundary, Kind: KindFailure, Detail: msg, Panicked: true}
}
