package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure in the translation pipeline
type Kind int

const (
	Other Kind = iota
	Clipboard
	Permission
	Network
	API
	Config
)

func (k Kind) String() string {
	switch k {
	case Clipboard:
		return "clipboard"
	case Permission:
		return "permission"
	case Network:
		return "network"
	case API:
		return "api"
	case Config:
		return "config"
	default:
		return "other"
	}
}

// Category is the metrics label recorded for a failed run
type Category string

const (
	CategoryNetwork    Category = "network"
	CategoryAPI        Category = "api"
	CategoryConfig     Category = "config"
	CategoryClipboard  Category = "clipboard"
	CategoryPermission Category = "permission"
	CategoryOther      Category = "other"
)

// Error is a pipeline error carrying its kind and a user facing message
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s error: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s error: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so errors.Is(err, apperr.New(apperr.Clipboard, "")) works
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Msg == "" || t.Msg == e.Msg)
}

// New creates an error of the given kind
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap creates an error of the given kind around a cause
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// Newf creates an error of the given kind with a formatted message
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of the first *Error in err's chain, or Other
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Other
}

// CategoryOf maps any error onto its metrics category. nil maps to "".
func CategoryOf(err error) Category {
	if err == nil {
		return ""
	}
	switch KindOf(err) {
	case Clipboard:
		return CategoryClipboard
	case Permission:
		return CategoryPermission
	case Network:
		return CategoryNetwork
	case API:
		return CategoryAPI
	case Config:
		return CategoryConfig
	default:
		return CategoryOther
	}
}

// Message returns the user facing message of err
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Msg
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
