package escher

import "fmt"

// Error is implemented by every error this package returns.
type Error interface {
	// IsFatal returns true if the record graph can no longer be trusted.
	IsFatal() bool
	error
}

// InvalidDataError is returned when drawing data is malformed.
type InvalidDataError struct {
	msg string
}

func newInvalidDataError(format string, args ...any) *InvalidDataError {
	return &InvalidDataError{msg: fmt.Sprintf(format, args...)}
}

func (e *InvalidDataError) Error() string {
	return "invalid drawing data: " + e.msg
}

// IsFatal returns true if the error is fatal
func (e *InvalidDataError) IsFatal() bool {
	return true
}

// InternalError signals a broken invariant inside the record graph.
type InternalError struct {
	msg string
	err error
}

func newInternalError(format string, args ...any) *InternalError {
	return &InternalError{msg: fmt.Sprintf(format, args...)}
}

func wrapInternalError(err error) *InternalError {
	return &InternalError{msg: err.Error(), err: err}
}

func (e *InternalError) Error() string {
	return "internal error: " + e.msg
}

// IsFatal returns true if the error is fatal
func (e *InternalError) IsFatal() bool {
	return true
}

// Unwrap returns the wrapped err
func (e *InternalError) Unwrap() error {
	return e.err
}

// RangeError is returned when an arrange operation pushes a row or column
// past the sheet limits. Callers may clamp and retry.
type RangeError struct {
	What  string
	Value int
	Limit int
}

// NewRangeError constructs a RangeError
func NewRangeError(what string, value, limit int) *RangeError {
	return &RangeError{What: what, Value: value, Limit: limit}
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("%s %d is outside the allowed range (0-%d)", e.What, e.Value, e.Limit)
}

// IsFatal returns true if the error is fatal
func (e *RangeError) IsFatal() bool {
	return false
}

// DuplicateRoleError is returned when a cache already holds the singleton
// record a second record tries to register as.
type DuplicateRoleError struct {
	Role string
}

func (e *DuplicateRoleError) Error() string {
	return fmt.Sprintf("invalid drawing data: duplicate %s record", e.Role)
}

// IsFatal returns true if the error is fatal
func (e *DuplicateRoleError) IsFatal() bool {
	return true
}
