package domain

import (
	"errors"
	"fmt"
)

// ErrorKind es el conjunto cerrado de fallos esperados del subsistema de credenciales.
type ErrorKind string

const (
	KindConflict        ErrorKind = "conflict"
	KindUnauthorized    ErrorKind = "unauthorized"
	KindForbidden       ErrorKind = "forbidden"
	KindNotFound        ErrorKind = "not_found"
	KindBadRequest      ErrorKind = "bad_request"
	KindTooManyRequests ErrorKind = "too_many_requests"
	KindInternal        ErrorKind = "internal"
)

// Error acompaña un ErrorKind estable con un mensaje apto para el cliente.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is compara por Kind y Message, asi dos errores construidos por separado
// con el mismo contenido son equivalentes para errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Message == t.Message
}

func NewError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Conflict(message string) *Error     { return NewError(KindConflict, message) }
func Unauthorized(message string) *Error { return NewError(KindUnauthorized, message) }
func Forbidden(message string) *Error    { return NewError(KindForbidden, message) }
func NotFound(message string) *Error     { return NewError(KindNotFound, message) }
func BadRequest(message string) *Error   { return NewError(KindBadRequest, message) }

func TooManyRequests(message string) *Error {
	return NewError(KindTooManyRequests, message)
}

// KindOf devuelve el ErrorKind de err, o KindInternal si no es un *Error.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// MessageOf devuelve el mensaje público de err. Los errores internos no
// exponen detalle.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return "something went wrong"
}
