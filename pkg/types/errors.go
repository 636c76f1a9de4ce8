// Package types defines the error kinds shared across the compiler. A
// UserError reports a source program that violates the supported subset; an
// InternalError reports a violated compiler invariant. The two are kept
// distinct so tooling can separate bad input from compiler defects.
package types

import (
	"errors"
	"fmt"
)

// UserError is a syntax or semantic error in the source program. Compilation
// of the enclosing unit aborts on the first one; no recovery is attempted.
type UserError struct {
	Message  string
	Location string // e.g. "line 12 in workflow 'main'"
}

// Error implements the error interface.
func (e *UserError) Error() string {
	if e.Location != "" {
		return fmt.Sprintf("error at %s: %s", e.Location, e.Message)
	}
	return e.Message
}

// NewUserError creates a UserError at the given location.
func NewUserError(location, format string, args ...interface{}) *UserError {
	return &UserError{Message: fmt.Sprintf(format, args...), Location: location}
}

// InternalError indicates a compiler invariant was violated. It should never
// occur on supported input and is reported with a distinct prefix.
type InternalError struct {
	Message string
}

// Error implements the error interface.
func (e *InternalError) Error() string {
	return "internal error: " + e.Message
}

// NewInternalError creates an InternalError.
func NewInternalError(format string, args ...interface{}) *InternalError {
	return &InternalError{Message: fmt.Sprintf(format, args...)}
}

// IsUserError reports whether err is (or wraps) a UserError.
func IsUserError(err error) bool {
	var ue *UserError
	return errors.As(err, &ue)
}

// IsInternalError reports whether err is (or wraps) an InternalError.
func IsInternalError(err error) bool {
	var ie *InternalError
	return errors.As(err, &ie)
}
