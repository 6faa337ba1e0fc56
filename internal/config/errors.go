package config

import (
	"errors"
	"fmt"
)

var (
	ErrMultipleConfigFiles = errors.New("multiple config files")
	ErrInvalidConfig       = errors.New("invalid config")
	ErrAmbiguousOverride   = errors.New("ambiguous workspace override")
	ErrMissingCommand      = errors.New("missing command")
	ErrMissingBaseCommand  = errors.New("missing base command")
)

// Error is a configuration failure. Kind is one of the sentinel errors above;
// Detail, when set, is an extra hint for the operator.
type Error struct {
	Kind   error
	Msg    string
	Detail string
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Msg
	if msg == "" {
		msg = e.Kind.Error()
	}
	if e.Detail != "" {
		msg += "\n" + e.Detail
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Kind }

func errorf(kind error, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}
