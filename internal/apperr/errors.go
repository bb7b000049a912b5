// Package apperr classifies failures so the HTTP layer can map them to
// status codes in one place.
package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	// KindValidation: the request is malformed and was rejected before any mutation.
	KindValidation Kind = "validation"
	KindNotFound   Kind = "not_found"
	KindConflict   Kind = "conflict"
	// KindDependency: the store or another collaborator failed; callers may retry.
	KindDependency Kind = "dependency"
)

// Error is a classified error. Message is safe to show to operators verbatim.
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

func (e *Error) Unwrap() error {
	return e.Err
}

func newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Validation returns a KindValidation error
func Validation(format string, args ...interface{}) *Error {
	return newf(KindValidation, format, args...)
}

// NotFound returns a KindNotFound error
func NotFound(format string, args ...interface{}) *Error {
	return newf(KindNotFound, format, args...)
}

// Conflict returns a KindConflict error
func Conflict(format string, args ...interface{}) *Error {
	return newf(KindConflict, format, args...)
}

// Dependency wraps err as a retryable KindDependency error
func Dependency(err error, format string, args ...interface{}) *Error {
	e := newf(KindDependency, format, args...)
	e.Err = err
	return e
}

// KindOf returns the kind of the first classified error in err's chain,
// or "" when err is unclassified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// MessageOf returns the operator-facing message for err.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
