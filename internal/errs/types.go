package errs

import (
	"errors"
	"fmt"
	"strings"
)

// Violation is a single field-level schema failure.
type Violation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError enumerates every violated field of a payload.
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, v.Field+": "+v.Message)
	}
	return "validation: " + strings.Join(parts, " | ")
}

// Add records a violation.
func (e *ValidationError) Add(field, format string, args ...any) {
	e.Violations = append(e.Violations, Violation{Field: field, Message: fmt.Sprintf(format, args...)})
}

// OrNil returns e when at least one violation was recorded.
func (e *ValidationError) OrNil() error {
	if len(e.Violations) == 0 {
		return nil
	}
	return e
}

// Invalid builds a ValidationError with a single violation.
func Invalid(field, format string, args ...any) error {
	ve := &ValidationError{}
	ve.Add(field, format, args...)
	return ve
}

// Domain rule codes.
const (
	CodeBHKRequired = "bhk_required"
	CodeBudgetOrder = "budget_order"
)

// DomainError is a cross-field business rule violation.
type DomainError struct {
	Code    string
	Message string
}

func (e *DomainError) Error() string {
	if e.Message == "" {
		return "domain: " + e.Code
	}
	return "domain: " + e.Code + ": " + e.Message
}

// Kind is the coarse classification of an error as seen by callers.
type Kind string

const (
	KindNone            Kind = ""
	KindValidation      Kind = "validation"
	KindDomain          Kind = "domain"
	KindUnauthenticated Kind = "unauthenticated"
	KindForbidden       Kind = "forbidden"
	KindConflict        Kind = "conflict"
	KindNotFound        Kind = "not_found"
	KindRateLimited     Kind = "rate_limited"
	KindAlreadyExists   Kind = "already_exists"
	KindStorage         Kind = "storage"
)

// KindOf classifies err. Anything unrecognised is treated as a storage failure.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	var ve *ValidationError
	var de *DomainError
	switch {
	case errors.As(err, &ve):
		return KindValidation
	case errors.As(err, &de):
		return KindDomain
	case errors.Is(err, ErrUnauthenticated):
		return KindUnauthenticated
	case errors.Is(err, ErrForbidden):
		return KindForbidden
	case errors.Is(err, ErrConflict):
		return KindConflict
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrRateLimited):
		return KindRateLimited
	case errors.Is(err, ErrAlreadyExists):
		return KindAlreadyExists
	default:
		return KindStorage
	}
}

// Recoverable reports whether the client can fix the failure by changing its request.
func Recoverable(err error) bool {
	k := KindOf(err)
	return k != KindNone && k != KindStorage
}
