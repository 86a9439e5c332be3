package store

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is a persistence error with an HTTP status code.
type Error struct {
	Code    int    // HTTP status code
	Message string // User-facing message
	Err     error  // Underlying error (optional)

	parent *Error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets a derived error match the sentinel it was derived from.
func (e *Error) Is(target error) bool {
	for p := e.parent; p != nil; p = p.parent {
		if p == target {
			return true
		}
	}
	return false
}

// HTTPCode returns the HTTP status code associated with this error.
func (e *Error) HTTPCode() int { return e.Code }

// WithMessage returns a derived error with a custom message.
func (e *Error) WithMessage(msg string) *Error {
	return &Error{Code: e.Code, Message: msg, Err: e.Err, parent: e}
}

// WithCause returns a derived error wrapping err.
func (e *Error) WithCause(err error) *Error {
	return &Error{Code: e.Code, Message: e.Message, Err: err, parent: e}
}

// Sentinel errors.
var (
	ErrNotFound = &Error{
		Code:    http.StatusNotFound,
		Message: "resource not found",
	}

	ErrAlreadyExists = &Error{
		Code:    http.StatusConflict,
		Message: "resource already exists",
	}

	ErrInvalidInput = &Error{
		Code:    http.StatusBadRequest,
		Message: "invalid input",
	}

	ErrUserNotFound    = ErrNotFound.WithMessage("user not found")
	ErrArticleNotFound = ErrNotFound.WithMessage("article not found")
	ErrEmailExists     = ErrAlreadyExists.WithMessage("email already in use")
)

// IndexConflictError reports a unique index collision.
type IndexConflictError struct {
	Index string
	Value string
}

func (e *IndexConflictError) Error() string {
	return fmt.Sprintf("index %s conflict on key %s", e.Index, e.Value)
}

func (e *IndexConflictError) Unwrap() error { return ErrAlreadyExists }

// IsIndexConflict reports whether err is a collision on the named unique index.
func IsIndexConflict(err error, index string) bool {
	var ic *IndexConflictError
	return errors.As(err, &ic) && ic.Index == index
}
