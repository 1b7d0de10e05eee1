package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for the boundary layer. Handlers map kinds to
// transport status codes; the services only ever deal in kinds.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindAuthorization
	KindNotFound
	KindConflict
	KindUpstream
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthorization:
		return "authorization"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindUpstream:
		return "upstream"
	default:
		return "unknown"
	}
}

type Error struct {
	Kind Kind
	Code string
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	return fmt.Sprintf("%s error", e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, code string, err error) *Error {
	return &Error{Kind: kind, Code: code, Err: err}
}

func Validation(code string, format string, args ...interface{}) *Error {
	return New(KindValidation, code, fmt.Errorf(format, args...))
}

func Authorization(code string, format string, args ...interface{}) *Error {
	return New(KindAuthorization, code, fmt.Errorf(format, args...))
}

func NotFound(code string, format string, args ...interface{}) *Error {
	return New(KindNotFound, code, fmt.Errorf(format, args...))
}

func Conflict(code string, format string, args ...interface{}) *Error {
	return New(KindConflict, code, fmt.Errorf(format, args...))
}

func Upstream(code string, err error) *Error {
	return New(KindUpstream, code, err)
}

// KindOf walks the error chain and returns the first classified kind.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
