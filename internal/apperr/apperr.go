package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a user-visible failure.
type Kind string

const (
	KindUnknown           Kind = ""
	KindUnsupportedFormat Kind = "unsupported_format"
	KindParse             Kind = "parse_error"
	KindNoData            Kind = "no_data"
	KindGenerationFailure Kind = "generation_failure"
	KindGenerationEmpty   Kind = "generation_empty"
	KindExportUnavailable Kind = "export_unavailable"
	KindEmptyDirective    Kind = "empty_directive"
	KindBusy              Kind = "busy"
)

// Error carries a Kind, a human-readable message and an optional cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		if e.Msg == "" {
			return e.Err.Error()
		}
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error with the same Kind, so sentinel comparisons like
// errors.Is(err, &Error{Kind: KindNoData}) work.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Msg == "" && t.Err == nil
}

// New returns an error of the given kind.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Newf formats msg and returns an error of the given kind.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to err. A nil err yields nil.
func Wrap(kind Kind, err error, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf returns the Kind of the outermost *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
