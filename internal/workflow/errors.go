package workflow

import (
	"errors"
	"fmt"
)

// Kind classifies workflow failures.
type Kind string

const (
	KindValidation   Kind = "validation"
	KindState        Kind = "state"
	KindUnavailable  Kind = "unavailable"
	KindNotFound     Kind = "not_found"
	KindCollaborator Kind = "collaborator"
)

// Error is a classified workflow failure.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
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

// KindOf returns the kind of the first classified error in the chain.
func KindOf(err error) (Kind, bool) {
	var wErr *Error
	if errors.As(err, &wErr) {
		return wErr.Kind, true
	}
	return "", false
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

// Validationf builds a local input error. No collaborator was contacted.
func Validationf(op, format string, args ...any) error {
	return &Error{Kind: KindValidation, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Statef builds an error for an operation illegal in the current state.
func Statef(op, format string, args ...any) error {
	return &Error{Kind: KindState, Op: op, Message: fmt.Sprintf(format, args...)}
}

// NotFound builds an error for a referenced entity that no longer exists.
func NotFound(op, format string, args ...any) error {
	return &Error{Kind: KindNotFound, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Unavailable wraps a transport failure of a collaborator.
func Unavailable(op string, err error) error {
	return &Error{Kind: KindUnavailable, Op: op, Message: "collaborator unavailable", Err: err}
}

// Collaborator wraps a rejection returned by a reachable collaborator.
func Collaborator(op string, err error) error {
	return &Error{Kind: KindCollaborator, Op: op, Err: err}
}
