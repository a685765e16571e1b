// Package errs defines the failure kinds returned by the ledger services.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so the boundary can map it to a status class.
type Kind uint8

const (
	Unknown Kind = iota
	NotFound
	InvalidState
	InsufficientFunds
	Validation
	Persistence
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "not_found"
	case InvalidState:
		return "invalid_state"
	case InsufficientFunds:
		return "insufficient_funds"
	case Validation:
		return "validation"
	case Persistence:
		return "persistence"
	default:
		return "unknown"
	}
}

// Error is a typed ledger failure.
type Error struct {
	Kind Kind
	Op   string // operation that failed, e.g. "report.create"
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	if e.Op == "" {
		return msg
	}
	return e.Op + ": " + msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports a match when target is an *Error of the same kind with no op or message,
// which lets callers write errors.Is(err, errs.ErrNotFound).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Msg == "" && t.Err == nil
}

// Kind markers for errors.Is.
var (
	ErrNotFound          = &Error{Kind: NotFound}
	ErrInvalidState      = &Error{Kind: InvalidState}
	ErrInsufficientFunds = &Error{Kind: InsufficientFunds}
	ErrValidation        = &Error{Kind: Validation}
	ErrPersistence       = &Error{Kind: Persistence}
)

// E builds an error of the given kind.
func E(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind to an underlying error. Already typed errors keep their kind.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	var typed *Error
	if errors.As(err, &typed) {
		return err
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of err. Untyped errors count as persistence failures.
func KindOf(err error) Kind {
	if err == nil {
		return Unknown
	}
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Kind
	}
	return Persistence
}
