// Package kerrors defines the closed set of error kinds the kernel
// surfaces at its component boundaries.
package kerrors

import (
	"errors"
	"fmt"
)

// Kind is one of the seven error kinds the kernel ever returns.
type Kind string

const (
	NotFound    Kind = "NotFound"
	Conflict    Kind = "Conflict"
	Invalid     Kind = "Invalid"
	Unavailable Kind = "Unavailable"
	Transient   Kind = "Transient"
	Corruption  Kind = "Corruption"
	Fatal       Kind = "Fatal"
)

// Error wraps an underlying cause with a closed Kind and optional details,
// the shape every adapter and service boundary translates into before
// returning to a caller.
type Error struct {
	Kind    Kind
	Message string
	Details map[string]any
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an Error of the given kind around an existing cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// WithDetails attaches structured detail fields and returns the receiver,
// for fluent construction at call sites (`kerrors.New(...).WithDetails(...)`).
func (e *Error) WithDetails(details map[string]any) *Error {
	e.Details = details
	return e
}

// KindOf extracts the Kind from err, walking the unwrap chain. Errors that
// were never classified report Kind("") and ok=false.
func KindOf(err error) (Kind, bool) {
	var ke *Error
	if errors.As(err, &ke) {
		return ke.Kind, true
	}
	return "", false
}

// Is reports whether err is (or wraps) a kerrors.Error of the given kind.
func Is(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

// Composite builds a single Transient error naming both an original
// failure and a subsequent rollback failure, per the storage adapter's
// "rollback failure after a caller error MUST surface a composite error
// naming both" contract.
func Composite(original, rollback error) *Error {
	return &Error{
		Kind:    Transient,
		Message: "operation failed and rollback also failed",
		Details: map[string]any{
			"original_error": original.Error(),
			"rollback_error": rollback.Error(),
		},
		Cause: original,
	}
}
