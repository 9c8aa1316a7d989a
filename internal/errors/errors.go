// Package errors implements the error taxonomy shared by every dynproto
// package. Every error constructed here carries a Kind so that callers can
// test for a specific failure with errors.As, and every message is prefixed
// with "dynproto: " the way the rest of the ecosystem prefixes with "proto: ".
package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind classifies an Error so that callers can branch on failure category
// without string matching.
type Kind int

const (
	_ Kind = iota
	Descriptor
	TypeMismatch
	FieldNotFound
	WireTypeMismatch
	MalformedVarint
	InvalidTag
	TruncatedMessage
	InvalidUtf8
	MessageTooLarge
	RecursionLimitExceeded
	NameConflict
	UnknownType
	Validation
)

func (k Kind) String() string {
	switch k {
	case Descriptor:
		return "DescriptorError"
	case TypeMismatch:
		return "TypeMismatch"
	case FieldNotFound:
		return "FieldNotFound"
	case WireTypeMismatch:
		return "WireTypeMismatch"
	case MalformedVarint:
		return "MalformedVarint"
	case InvalidTag:
		return "InvalidTag"
	case TruncatedMessage:
		return "TruncatedMessage"
	case InvalidUtf8:
		return "InvalidUtf8"
	case MessageTooLarge:
		return "MessageTooLarge"
	case RecursionLimitExceeded:
		return "RecursionLimitExceeded"
	case NameConflict:
		return "NameConflict"
	case UnknownType:
		return "UnknownType"
	case Validation:
		return "ValidationError"
	default:
		return "Error"
	}
}

// Error is the concrete error type returned by every dynproto package.
type Error struct {
	Kind  Kind
	Field string // field name/number where known; empty otherwise
	msg   string
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("dynproto: %s: %s: %s", e.Kind, e.Field, e.msg)
	}
	return fmt.Sprintf("dynproto: %s: %s", e.Kind, e.msg)
}

// Is reports whether target is an *Error of the same Kind, enabling
// errors.Is(err, errors.New(SomeKind, "")) style checks against a sentinel.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// New constructs an Error of the given kind with no offending field name.
func New(k Kind, format string, args ...interface{}) error {
	return &Error{Kind: k, msg: fmt.Sprintf(format, args...)}
}

// WithField constructs an Error of the given kind naming the offending field.
func WithField(k Kind, field string, format string, args ...interface{}) error {
	return &Error{Kind: k, Field: field, msg: fmt.Sprintf(format, args...)}
}

// KindOf returns the Kind of err if it is (or wraps) a *Error, and false
// otherwise.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}
