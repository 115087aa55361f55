package apperrors

import (
	"errors"
	"fmt"
)

// Kind classifies an engine error so transports can map it to their own status codes
type Kind int

const (
	// KindUnknown is the zero value and never set by a constructor
	KindUnknown Kind = iota
	// KindValidation is malformed or contradictory input the caller can correct
	KindValidation
	// KindPermissionDenied means the resolved capability does not allow the operation
	KindPermissionDenied
	// KindConflict is an optimistic concurrency version mismatch
	KindConflict
	// KindPeriodLocked means the affected work-date falls inside a closed accounting window
	KindPeriodLocked
	// KindNotEligible is a structural or completion rule failure in time accounting
	KindNotEligible
	// KindNotFound covers missing records and records outside the actor's tenant scope
	KindNotFound
)

// String returns a stable name for a Kind
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindPermissionDenied:
		return "permission_denied"
	case KindConflict:
		return "conflict"
	case KindPeriodLocked:
		return "period_locked"
	case KindNotEligible:
		return "not_eligible"
	case KindNotFound:
		return "not_found"
	}
	return "unknown"
}

// Error is a typed, terminal engine error
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap exposes the wrapped cause
func (e *Error) Unwrap() error {
	return e.Err
}

// New builds an Error of the given Kind
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an Error of the given Kind around a cause
func Wrap(err error, kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// NewValidation builds a validation error
func NewValidation(format string, args ...interface{}) *Error {
	return New(KindValidation, format, args...)
}

// NewPermissionDenied builds a permission error
func NewPermissionDenied(format string, args ...interface{}) *Error {
	return New(KindPermissionDenied, format, args...)
}

// NewConflict builds a version conflict error
func NewConflict(format string, args ...interface{}) *Error {
	return New(KindConflict, format, args...)
}

// NewPeriodLocked builds a period lock error
func NewPeriodLocked(format string, args ...interface{}) *Error {
	return New(KindPeriodLocked, format, args...)
}

// NewNotEligible builds a time accounting eligibility error
func NewNotEligible(format string, args ...interface{}) *Error {
	return New(KindNotEligible, format, args...)
}

// NewNotFound builds a not found error
func NewNotFound(format string, args ...interface{}) *Error {
	return New(KindNotFound, format, args...)
}

// KindOf extracts the Kind of an error, or KindUnknown for foreign errors
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries the given Kind
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
