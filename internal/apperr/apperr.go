package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies failures independently of the transport.
type Kind string

const (
	KindInternal           Kind = "INTERNAL"
	KindNotFound           Kind = "NOT_FOUND"
	KindInvalidArgument    Kind = "INVALID_ARGUMENT"
	KindUnauthenticated    Kind = "UNAUTHENTICATED"
	KindForbidden          Kind = "FORBIDDEN"
	// KindUpstreamValidation is a token the provider no longer accepts.
	KindUpstreamValidation Kind = "UPSTREAM_VALIDATION"
	KindPersistence        Kind = "PERSISTENCE"
)

var statusByKind = map[Kind]int{
	KindInternal:           http.StatusInternalServerError,
	KindNotFound:           http.StatusNotFound,
	KindInvalidArgument:    http.StatusBadRequest,
	KindUnauthenticated:    http.StatusUnauthorized,
	KindForbidden:          http.StatusForbidden,
	KindUpstreamValidation: http.StatusForbidden,
	KindPersistence:        http.StatusInternalServerError,
}

// Error carries a Kind plus the machine-readable code returned to API callers.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s", e.Message, e.Err.Error())
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func Wrap(kind Kind, code, message string, err error) *Error {
	return &Error{Kind: kind, Code: code, Message: message, Err: err}
}

// KindOf returns the Kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}

// HTTPStatus maps a Kind to its HTTP status code.
func HTTPStatus(kind Kind) int {
	if s, ok := statusByKind[kind]; ok {
		return s
	}
	return http.StatusInternalServerError
}
