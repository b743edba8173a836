package services

import (
	"errors"
	"fmt"
)

type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindValidation
	KindAuth
	KindNotFound
	KindExternal
	KindPersistence
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation_error"
	case KindAuth:
		return "auth_error"
	case KindNotFound:
		return "not_found"
	case KindExternal:
		return "external_service_error"
	case KindPersistence:
		return "persistence_error"
	default:
		return "internal_error"
	}
}

// Error carries a kind so the HTTP layer can pick a status without string matching.
type Error struct {
	Kind    ErrorKind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil && e.Message != "":
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

var (
	ErrDuplicateOrder = errors.New("order already recorded for session")
	ErrLineNotFound   = errors.New("cart line not found")
)

func ValidationError(op, msg string) error {
	return &Error{Kind: KindValidation, Op: op, Message: msg}
}

func AuthError(op, msg string, err error) error {
	return &Error{Kind: KindAuth, Op: op, Message: msg, Err: err}
}

func NotFoundError(op, msg string, err error) error {
	return &Error{Kind: KindNotFound, Op: op, Message: msg, Err: err}
}

func ExternalServiceError(op string, err error) error {
	return &Error{Kind: KindExternal, Op: op, Message: "payment provider request failed", Err: err}
}

func PersistenceError(op string, err error) error {
	return &Error{Kind: KindPersistence, Op: op, Message: "store operation failed", Err: err}
}

// KindOf returns KindInternal for errors that were not classified.
func KindOf(err error) ErrorKind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindInternal
}

// MessageOf returns the client-facing message of a classified error.
func MessageOf(err error) string {
	var se *Error
	if errors.As(err, &se) && se.Message != "" {
		return se.Message
	}
	return "internal server error"
}
