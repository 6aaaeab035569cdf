package feed

import (
	"errors"
	"strings"
)

// Kind classifies store errors so callers can render a precise message.
type Kind int

const (
	KindUnauthenticated Kind = iota + 1 // no resolved identity
	KindForbidden                       // authenticated but not the owner
	KindNotFound                        // record or comment absent
	KindValidation                      // bad input
	KindStorage                         // substrate read/write failed
)

func (k Kind) String() string {
	switch k {
	case KindUnauthenticated:
		return "unauthenticated"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not found"
	case KindValidation:
		return "validation failed"
	case KindStorage:
		return "storage failure"
	default:
		return "unknown error"
	}
}

// Sentinels for errors.Is. Any *Error of the same Kind matches.
var (
	ErrUnauthenticated = &Error{Kind: KindUnauthenticated}
	ErrForbidden       = &Error{Kind: KindForbidden}
	ErrNotFound        = &Error{Kind: KindNotFound}
	ErrValidation      = &Error{Kind: KindValidation}
	ErrStorage         = &Error{Kind: KindStorage}
)

// Error is the error type returned by Store operations.
type Error struct {
	Kind  Kind
	Op    string // operation name, e.g. "edit"
	ID    string // offending record or comment id
	Field string // offending input field for validation errors
	Err   error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.ID != "" {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(e.ID)
	}
	if b.Len() > 0 {
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.String())
	if e.Field != "" {
		b.WriteString(" (")
		b.WriteString(e.Field)
		b.WriteByte(')')
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// KindOf returns the Kind of the first *Error in err's chain, or 0.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// Outcome labels err for metrics: "ok", a kind name, or "error".
func Outcome(err error) string {
	if err == nil {
		return "ok"
	}
	switch KindOf(err) {
	case KindUnauthenticated:
		return "unauthenticated"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindValidation:
		return "invalid"
	case KindStorage:
		return "storage"
	default:
		return "error"
	}
}

func storageError(op, id string, err error) error {
	return &Error{Kind: KindStorage, Op: op, ID: id, Err: err}
}
