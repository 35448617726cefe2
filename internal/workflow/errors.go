package workflow

import (
	"errors"
	"fmt"
)

// Kind classifies why an operation was refused. Callers branch on the kind,
// never on the message.
type Kind string

const (
	KindInvalidArgument    Kind = "invalid_argument"
	KindUnauthorized       Kind = "unauthorized"
	KindNotFound           Kind = "not_found"
	KindConflict           Kind = "conflict"
	KindPreconditionFailed Kind = "precondition_failed"
)

// Sentinels for errors.Is. Any *Error matches the sentinel of its kind.
var (
	ErrInvalidArgument    = &Error{Kind: KindInvalidArgument}
	ErrUnauthorized       = &Error{Kind: KindUnauthorized}
	ErrNotFound           = &Error{Kind: KindNotFound}
	ErrConflict           = &Error{Kind: KindConflict}
	ErrPreconditionFailed = &Error{Kind: KindPreconditionFailed}
)

// MsgDeliberationIncomplete is returned when Review is processed before the
// cost deliberation reached Agreed.
const MsgDeliberationIncomplete = "Cost deliberation must be completed"

// Error is a refused state transition.
type Error struct {
	Kind    Kind
	Op      string
	Message string
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Message
	}
	return e.Op + ": " + e.Message
}

// Is matches kind sentinels.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Op == "" && t.Kind == e.Kind
}

// KindOf returns the kind carried by err, or "" for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func newError(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...)}
}

func invalidArgument(op, format string, args ...any) error {
	return newError(KindInvalidArgument, op, format, args...)
}

func unauthorized(op, format string, args ...any) error {
	return newError(KindUnauthorized, op, format, args...)
}

func notFound(op, format string, args ...any) error {
	return newError(KindNotFound, op, format, args...)
}

func conflict(op, format string, args ...any) error {
	return newError(KindConflict, op, format, args...)
}

// NotFoundf builds a NotFound error for callers outside the engine, such as
// storage lookups performed before an operation.
func NotFoundf(op, format string, args ...any) error {
	return notFound(op, format, args...)
}

// Conflictf builds a Conflict error for callers outside the engine.
func Conflictf(op, format string, args ...any) error {
	return conflict(op, format, args...)
}

// InvalidArgumentf builds an InvalidArgument error for callers outside the engine.
func InvalidArgumentf(op, format string, args ...any) error {
	return invalidArgument(op, format, args...)
}

// Unauthorizedf builds an Unauthorized error for callers outside the engine.
func Unauthorizedf(op, format string, args ...any) error {
	return unauthorized(op, format, args...)
}

// PreconditionFailedf builds a PreconditionFailed error for callers outside
// the engine.
func PreconditionFailedf(op, format string, args ...any) error {
	return newError(KindPreconditionFailed, op, format, args...)
}
