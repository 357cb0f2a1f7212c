package services

import "fmt"

// ErrorKind classifies every failure a service operation can surface to its
// caller. Anything not wrapped in an Error is a store failure and propagates
// untouched.
type ErrorKind int

const (
	// KindNotFound means the room, user, or message does not exist
	KindNotFound ErrorKind = iota
	// KindForbidden means the requester is not allowed to act here
	KindForbidden
	// KindConflict means the operation contradicts current membership state
	KindConflict
	// KindValidation means the request itself is malformed
	KindValidation
	// KindIntegrity means a cross-entity invariant was found broken. These
	// are fatal to the operation and require operator attention.
	KindIntegrity
)

// Error is a classified service failure with a human-readable message
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string { return e.Message }

// Is matches two service errors by kind, so callers can test against the
// sentinel constructors with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

func errNotFound(format string, args ...interface{}) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func errForbidden(format string, args ...interface{}) *Error {
	return &Error{Kind: KindForbidden, Message: fmt.Sprintf(format, args...)}
}

func errConflict(format string, args ...interface{}) *Error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

func errValidation(format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func errIntegrity(format string, args ...interface{}) *Error {
	return &Error{Kind: KindIntegrity, Message: fmt.Sprintf(format, args...)}
}

// Sentinels for errors.Is checks by callers and tests
var (
	ErrNotFound   = &Error{Kind: KindNotFound}
	ErrForbidden  = &Error{Kind: KindForbidden}
	ErrConflict   = &Error{Kind: KindConflict}
	ErrValidation = &Error{Kind: KindValidation}
	ErrIntegrity  = &Error{Kind: KindIntegrity}
)
