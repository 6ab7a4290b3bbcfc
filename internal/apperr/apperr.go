// Package apperr defines the error kinds shared by the repositories, services and handlers.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure for the caller.
type Kind string

const (
	KindValidation      Kind = "validation"
	KindUnauthenticated Kind = "unauthenticated"
	KindUnauthorized    Kind = "unauthorized"
	KindDuplicateEmail  Kind = "duplicate_email"
	KindNotFound        Kind = "not_found"
	KindStorage         Kind = "storage"
)

// Error is a classified failure. Field is set for validation errors.
type Error struct {
	Kind  Kind
	Op    string
	Field string
	Msg   string
	Err   error
}

func (e *Error) Error() string {
	msg := e.Msg
	if e.Field != "" {
		msg = e.Field + ": " + msg
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		if msg == "" {
			return e.Err.Error()
		}
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Validation reports malformed or missing caller input.
func Validation(field, msg string) *Error {
	return &Error{Kind: KindValidation, Field: field, Msg: msg}
}

// MissingField is the validation error for an absent required field.
func MissingField(field string) *Error {
	return Validation(field, "required field is missing")
}

// Unauthenticated reports that no valid session credential was presented.
func Unauthenticated() *Error {
	return &Error{Kind: KindUnauthenticated, Msg: "authentication required"}
}

// Unauthorized reports a valid principal whose role is not allowed.
func Unauthorized(msg string) *Error {
	if msg == "" {
		msg = "insufficient permissions"
	}
	return &Error{Kind: KindUnauthorized, Msg: msg}
}

// DuplicateEmail reports a unique-constraint violation on an email column.
func DuplicateEmail(op string, err error) *Error {
	return &Error{Kind: KindDuplicateEmail, Op: op, Msg: "email already exists", Err: err}
}

// NotFound reports a missing entity.
func NotFound(what string) *Error {
	return &Error{Kind: KindNotFound, Msg: what + " not found"}
}

// Storage wraps a persistence failure.
func Storage(op string, err error) *Error {
	return &Error{Kind: KindStorage, Op: op, Msg: "storage failure", Err: err}
}

// KindOf returns the kind of err, or KindStorage for unclassified errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindStorage
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// Public returns the message that is safe to show to the caller.
func Public(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return "internal error"
	}
	switch e.Kind {
	case KindStorage:
		return "internal error"
	case KindValidation:
		if e.Field != "" {
			return fmt.Sprintf("%s: %s", e.Field, e.Msg)
		}
		return e.Msg
	default:
		return e.Msg
	}
}
