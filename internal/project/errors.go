package project

import (
	"errors"
	"fmt"
)

var (
	ErrNoRootWorkspace    = errors.New("no root workspace")
	ErrDuplicateWorkspace = errors.New("duplicate workspace name")
	ErrUnknownWorkspace   = errors.New("unknown workspace")
	ErrNoPackageManager   = errors.New("no package manager")
	ErrInvalidManifest    = errors.New("invalid package manifest")
)

// Error is a workspace graph failure. Kind is one of the sentinel errors
// above.
type Error struct {
	Kind error
	Msg  string
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Msg == "" {
		return e.Kind.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Kind }

func errorf(kind error, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}
