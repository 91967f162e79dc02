package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailAlreadyExists = errors.New("email already exists")
	ErrNotAuthenticated   = errors.New("not authenticated")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrInvalidQuantity    = errors.New("invalid quantity")
	ErrInvalidTransition  = errors.New("invalid transition")

	ErrForbidden       = errors.New("forbidden")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrUnavailable     = errors.New("unavailable")
)

// Error attaches the failing operation and entity id to one of the sentinels above.
type Error struct {
	Op   string // e.g. "catalog.Update"
	Kind string // entity kind, e.g. "product"
	ID   string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.ID != "":
		return fmt.Sprintf("%s [%s %s]: %v", e.Op, e.Kind, e.ID, e.Err)
	case e.Kind != "":
		return fmt.Sprintf("%s [%s]: %v", e.Op, e.Kind, e.Err)
	default:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

func New(op, kind, id string, err error) *Error {
	return &Error{Op: op, Kind: kind, ID: id, Err: err}
}

// NotFound is shorthand for the most common wrap.
func NotFound(op, kind, id string) *Error {
	return New(op, kind, id, ErrNotFound)
}

func Invalid(op, format string, args ...any) error {
	return &Error{Op: op, Err: fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))}
}

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
