package utils

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

var ErrorRecordNotFound = errors.New("record not found")

type ErrorKind string

const (
	KindUnauthorized      ErrorKind = "UNAUTHORIZED"
	KindForbidden         ErrorKind = "FORBIDDEN"
	KindNotFound          ErrorKind = "NOT_FOUND"
	KindInvalidTransition ErrorKind = "INVALID_TRANSITION"
	KindValidation        ErrorKind = "VALIDATION"
	KindConflict          ErrorKind = "CONFLICT"
)

// DomainError is a failure the caller can act on; anything else is treated as internal.
type DomainError struct {
	Kind    ErrorKind
	Message string
	Fields  map[string]string
}

func (e *DomainError) Error() string {
	return e.Message
}

// Is matches any DomainError of the same kind, so errors.Is(err, ErrNotFound("")) works.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func newDomainError(kind ErrorKind, format string, args ...any) *DomainError {
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	return &DomainError{Kind: kind, Message: msg}
}

func ErrUnauthorized(format string, args ...any) error {
	return newDomainError(KindUnauthorized, format, args...)
}

func ErrForbidden(format string, args ...any) error {
	return newDomainError(KindForbidden, format, args...)
}

func ErrNotFound(format string, args ...any) error {
	return newDomainError(KindNotFound, format, args...)
}

func ErrInvalidTransition(format string, args ...any) error {
	return newDomainError(KindInvalidTransition, format, args...)
}

func ErrValidation(format string, args ...any) error {
	return newDomainError(KindValidation, format, args...)
}

func ErrConflict(format string, args ...any) error {
	return newDomainError(KindConflict, format, args...)
}

// ErrValidationFields carries per-field messages (e.g. from validator).
func ErrValidationFields(message string, fields map[string]string) error {
	return &DomainError{Kind: KindValidation, Message: message, Fields: fields}
}

// KindOf returns the domain kind of err, or "" for internal errors.
// gorm's ErrRecordNotFound and ErrorRecordNotFound map to NOT_FOUND.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind
	}
	if errors.Is(err, gorm.ErrRecordNotFound) || errors.Is(err, ErrorRecordNotFound) {
		return KindNotFound
	}
	return ""
}
