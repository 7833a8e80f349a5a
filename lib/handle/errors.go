package handle

import (
	"errors"
	"fmt"
)

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess         RetCode = iota // 0: Operation executed successfully.
	RetCInvalidHandle                  // 1: Handle is unknown, closed or of the wrong kind.
	RetCInvalidArgument                // 2: Missing or malformed key, value, path or option.
	RetCDuplicateHandle                // 3: Handle already registered (internal invariant violation).
	RetCEngineError                    // 4: The engine reported a non-ok status.
	RetCUnknownProperty                // 5: The engine does not know the requested property.
	RetCDependentsOpen                 // 6: Database still has open iterators or snapshots.
)

func (c RetCode) String() string {
	switch c {
	case RetCSuccess:
		return "Success"
	case RetCInvalidHandle:
		return "InvalidHandle"
	case RetCInvalidArgument:
		return "InvalidArgument"
	case RetCDuplicateHandle:
		return "DuplicateHandle"
	case RetCEngineError:
		return "EngineError"
	case RetCUnknownProperty:
		return "UnknownProperty"
	case RetCDependentsOpen:
		return "DependentsOpen"
	default:
		return "Unknown"
	}
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is a custom error type that wraps a return code (of type RetCode),
// an error message and optionally the engine error that caused it.
type Error struct {
	Code  RetCode // The return code
	Msg   string  // The error message.
	Cause error   // The underlying engine error, if any.
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

// Unwrap returns the underlying engine error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error with the same code.
// This makes the sentinel errors below usable with errors.Is.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// NewError creates a new Error with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// Errorf creates a new Error with a formatted message.
func Errorf(code RetCode, format string, args ...interface{}) *Error {
	return NewError(code, fmt.Sprintf(format, args...))
}

// WrapError creates a new Error caused by err.
func WrapError(code RetCode, err error, msg string) *Error {
	return &Error{
		Code:  code,
		Msg:   msg,
		Cause: err,
	}
}

// CodeOf returns the RetCode carried by err, RetCSuccess for nil
// and RetCEngineError for errors that did not originate here.
func CodeOf(err error) RetCode {
	if err == nil {
		return RetCSuccess
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return RetCEngineError
}

// Sentinel errors for errors.Is
var (
	ErrInvalidHandle   = NewError(RetCInvalidHandle, "invalid handle")
	ErrInvalidArgument = NewError(RetCInvalidArgument, "invalid argument")
	ErrDuplicateHandle = NewError(RetCDuplicateHandle, "duplicate handle")
	ErrEngine          = NewError(RetCEngineError, "engine error")
	ErrUnknownProperty = NewError(RetCUnknownProperty, "unknown property")
	ErrDependentsOpen  = NewError(RetCDependentsOpen, "dependents open")
)
