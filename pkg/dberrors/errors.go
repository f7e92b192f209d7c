// Package dberrors implements the engine's closed error-code taxonomy
// (spec §6, §7). Where the teacher's pkg/errors had one exported type
// per failure case, this package has a single Error type with one
// constructor per case and a plain Error() string, and carries a
// machine-readable Code so callers can switch on it
// without a type assertion, and wraps cockroachdb/errors for stack
// capture instead of bare fmt.Errorf.
package dberrors

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Code is the closed set of error codes at the core surface (spec §6).
type Code string

const (
	CodeNotFound            Code = "NotFound"
	CodeWrongType            Code = "WrongType"
	CodeInvalidKey           Code = "InvalidKey"
	CodeInvalidPath          Code = "InvalidPath"
	CodeConstraintViolation  Code = "ConstraintViolation"
	CodeConflict             Code = "Conflict"
	CodeRunNotFound          Code = "RunNotFound"
	CodeRunClosed            Code = "RunClosed"
	CodeRunExists            Code = "RunExists"
	CodeHistoryTrimmed       Code = "HistoryTrimmed"
	CodeOverflow             Code = "Overflow"
	CodeDimensionMismatch    Code = "DimensionMismatch"
	CodeInternal             Code = "Internal"
)

// Reason codes carried by ConstraintViolation (spec §7).
const (
	ReasonValueTooLarge    = "value_too_large"
	ReasonNestingTooDeep   = "nesting_too_deep"
	ReasonKeyTooLong       = "key_too_long"
	ReasonVectorDimExceeds = "vector_dim_exceeded"
	ReasonReservedPrefix   = "reserved_prefix"
)

// Error is the concrete error type returned at the core surface. It
// carries a Code, a human-readable message, and an optional detail
// payload (expected/actual versions on Conflict, actual/limit on
// ConstraintViolation, requested/earliest-retained on HistoryTrimmed).
type Error struct {
	Code    Code
	Message string
	Detail  map[string]any
	cause   error
}

func (e *Error) Error() string {
	if e.Detail != nil {
		return fmt.Sprintf("%s: %s %v", e.Code, e.Message, e.Detail)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// CodeOf extracts the Code from err, or CodeInternal if err is not one
// of this package's Error values.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

func newErr(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, cause: errors.WithStack(errors.New(msg))}
}

func NotFound(msg string) *Error   { return newErr(CodeNotFound, msg) }
func WrongType(msg string) *Error  { return newErr(CodeWrongType, msg) }
func InvalidKey(msg string) *Error { return newErr(CodeInvalidKey, msg) }
func InvalidPath(msg string) *Error { return newErr(CodeInvalidPath, msg) }
func RunNotFound(msg string) *Error { return newErr(CodeRunNotFound, msg) }
func RunClosed(msg string) *Error   { return newErr(CodeRunClosed, msg) }
func RunExists(msg string) *Error   { return newErr(CodeRunExists, msg) }
func Overflow(msg string) *Error    { return newErr(CodeOverflow, msg) }

func DimensionMismatch(expected, actual int) *Error {
	return &Error{
		Code:    CodeDimensionMismatch,
		Message: fmt.Sprintf("expected dimension %d, got %d", expected, actual),
		Detail:  map[string]any{"expected": expected, "actual": actual},
		cause:   errors.WithStack(errors.New("dimension mismatch")),
	}
}

// ConstraintViolation carries a reason code plus actual/limit detail.
func ConstraintViolation(reason string, actual, limit int64) *Error {
	return &Error{
		Code:    CodeConstraintViolation,
		Message: reason,
		Detail:  map[string]any{"reason": reason, "actual": actual, "limit": limit},
		cause:   errors.WithStack(errors.New("constraint violation: " + reason)),
	}
}

// Conflict carries the expected/actual versions (or "absent") that
// caused transaction validation or CAS to fail.
func Conflict(msg string, expected, actual any) *Error {
	return &Error{
		Code:    CodeConflict,
		Message: msg,
		Detail:  map[string]any{"expected": expected, "actual": actual},
		cause:   errors.WithStack(errors.New(msg)),
	}
}

// HistoryTrimmed carries the requested version and the earliest version
// still retained by the chain.
func HistoryTrimmed(requested, earliestRetained uint64) *Error {
	return &Error{
		Code:    CodeHistoryTrimmed,
		Message: "requested version has been compacted away",
		Detail:  map[string]any{"requested": requested, "earliest_retained": earliestRetained},
		cause:   errors.WithStack(errors.New("history trimmed")),
	}
}

// Internal wraps an invariant violation or unrecoverable I/O failure.
// The caller should treat the engine as unusable and reopen it.
func Internal(msg string) *Error { return newErr(CodeInternal, msg) }

// Wrap attaches code to an underlying error, preserving it as the cause
// via cockroachdb/errors so callers can still errors.Is/As through it.
func Wrap(code Code, cause error, msg string) *Error {
	return &Error{Code: code, Message: msg, cause: errors.Wrap(cause, msg)}
}
