package core

import "github.com/pkg/errors"

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		if len(err.Fields) > 0 {
			return err.Fields[0].Field + ": " + err.Fields[0].Error
		}
		return ""
	}
	return err.Err.Error()
}

func (err ValidationError) Unwrap() error {
	return err.Err
}

// ErrorKind classifies domain errors so transports can map them to status codes.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindNotFound
	KindForbidden
	KindConflict
	KindNotAvailable
	KindNotPublished
	KindDeadlinePassed
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindConflict:
		return "conflict"
	case KindNotAvailable:
		return "not_available"
	case KindNotPublished:
		return "not_published"
	case KindDeadlinePassed:
		return "deadline_passed"
	default:
		return "unknown"
	}
}

// Error is a domain error of a given Kind.
// Packages declare them once as sentinels and compare with errors.Is.
type Error struct {
	Kind    ErrorKind
	Message string
}

func NewError(kind ErrorKind, msg string) error {
	return &Error{Kind: kind, Message: msg}
}

func (err *Error) Error() string {
	return err.Message
}

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
