package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"lazyweave/internal/config"
	"lazyweave/internal/core"
	"lazyweave/internal/dag"
	"lazyweave/internal/project"
)

const (
	ExitSuccess           = 0
	ExitTaskFailure       = 1
	ExitInvalidInvocation = 2
	ExitConfigError       = 3
	ExitInternalError     = 4
)

// Env is the process context captured once at the process boundary. Nothing
// below the CLI reads the working directory or environment of the process.
type Env struct {
	// WorkDir must be absolute.
	WorkDir string
	// Environ is the environment snapshot, as from os.Environ.
	Environ []string
	Stdin   io.Reader
	Stdout  io.Writer
	Stderr  io.Writer
}

// Lookup returns the value of name in the snapshot.
func (e Env) Lookup(name string) (string, bool) {
	for i := len(e.Environ) - 1; i >= 0; i-- {
		if k, v, ok := strings.Cut(e.Environ[i], "="); ok && k == name {
			return v, true
		}
	}
	return "", false
}

func (e Env) validate() error {
	if e.WorkDir == "" {
		return invalidInvocationf("working directory is required")
	}
	if !filepath.IsAbs(e.WorkDir) {
		return invalidInvocationf("working directory must be absolute (got %q)", e.WorkDir)
	}
	return nil
}

// InvocationError ends the process with ExitCode after printing Message,
// if any.
type InvocationError struct {
	ExitCode int
	Message  string
}

func (e *InvocationError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

func invalidInvocationf(format string, args ...any) error {
	return &InvocationError{ExitCode: ExitInvalidInvocation, Message: fmt.Sprintf(format, args...)}
}

// errTasksFailed reports a run in which at least one task failed. The task
// errors themselves have already been printed.
var errTasksFailed = errors.New("one or more tasks failed")

// ExitCode maps an error returned by Run to the process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var invErr *InvocationError
	if errors.As(err, &invErr) && invErr != nil {
		if invErr.ExitCode != 0 {
			return invErr.ExitCode
		}
		return ExitInvalidInvocation
	}

	var (
		cfgErr   *config.Error
		projErr  *project.Error
		graphErr *dag.GraphError
		taskErr  *core.TaskError
	)
	switch {
	case errors.Is(err, errTasksFailed), errors.As(err, &taskErr), errors.Is(err, context.Canceled):
		return ExitTaskFailure
	case errors.As(err, &cfgErr), errors.As(err, &projErr), errors.As(err, &graphErr):
		return ExitConfigError
	default:
		return ExitInternalError
	}
}
