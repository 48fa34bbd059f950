// Package apperr defines the error taxonomy shared by the domain packages and
// the HTTP layer. Domain code returns *Error values; handlers map the Kind to a
// status code.
package apperr

import (
	"errors"
	"net/http"
)

// Kind classifies an error by how the caller should react to it.
type Kind int

const (
	// Internal is an unexpected failure. Details stay server side.
	Internal Kind = iota
	// Validation means the input was missing or malformed.
	Validation
	// Authentication means no valid identity could be established.
	Authentication
	// NotFound means the entity is absent or not owned by the caller.
	NotFound
)

func (k Kind) String() string {
	switch k {
	case Validation:
		return "validation"
	case Authentication:
		return "authentication"
	case NotFound:
		return "not_found"
	default:
		return "internal"
	}
}

// Status returns the HTTP status code for the kind.
func (k Kind) Status() int {
	switch k {
	case Validation:
		return http.StatusBadRequest
	case Authentication:
		return http.StatusUnauthorized
	case NotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Error is a classified error with a stable machine code and a client-safe message.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error with the same kind and code, so wrapped copies of a
// sentinel still compare equal to it.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Code == t.Code
}

// Wrap returns a copy of e carrying cause.
func (e *Error) Wrap(cause error) *Error {
	return &Error{Kind: e.Kind, Code: e.Code, Message: e.Message, Err: cause}
}

func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func NewValidation(code, message string) *Error {
	return New(Validation, code, message)
}

func NewAuthentication(code, message string) *Error {
	return New(Authentication, code, message)
}

func NewNotFound(code, message string) *Error {
	return New(NotFound, code, message)
}

// NewInternal wraps an unexpected failure behind a generic message.
func NewInternal(err error) *Error {
	return &Error{Kind: Internal, Code: "internal", Message: "internal server error", Err: err}
}

// As extracts the *Error from err's chain. Unclassified errors come back as Internal.
func As(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return NewInternal(err)
}

// KindOf returns the kind of err, Internal when err is unclassified.
func KindOf(err error) Kind {
	return As(err).Kind
}
