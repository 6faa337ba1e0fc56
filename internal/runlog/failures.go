package runlog

import (
	"context"
	"errors"
	"io/fs"
	"strings"

	"lazyweave/internal/config"
	"lazyweave/internal/core"
	"lazyweave/internal/dag"
	"lazyweave/internal/project"
)

// Classify maps a terminal error onto the failure taxonomy:
//
//	config     invalid project or lazy config
//	graph      unknown workspace references, cycles, nothing to run
//	execution  a task command failed or could not start
//	io         reading or hashing inputs, writing state
//
// Errors outside the taxonomy are reported as io with code "Unknown".
func Classify(err error) Failure {
	if err == nil {
		return Failure{}
	}
	msg := err.Error()

	var te *core.TaskError
	if errors.As(err, &te) && te != nil {
		key := te.Key
		code := "NonZeroExit"
		if te.Err != nil {
			code = "ExecutionError"
		}
		return Failure{FailureClass: FailureClassExecution, TaskKey: &key, ErrorCode: code, ErrorMessage: msg}
	}

	var ge *dag.GraphError
	if errors.As(err, &ge) && ge != nil {
		return Failure{FailureClass: FailureClassGraph, ErrorCode: codeOf(ge.Kind), ErrorMessage: msg}
	}

	var pe *project.Error
	if errors.As(err, &pe) && pe != nil {
		class := FailureClassConfig
		if errors.Is(pe.Kind, project.ErrUnknownWorkspace) {
			class = FailureClassGraph
		}
		return Failure{FailureClass: class, ErrorCode: codeOf(pe.Kind), ErrorMessage: msg}
	}

	var ce *config.Error
	if errors.As(err, &ce) && ce != nil {
		return Failure{FailureClass: FailureClassConfig, ErrorCode: codeOf(ce.Kind), ErrorMessage: msg}
	}

	if errors.Is(err, context.Canceled) {
		return Failure{FailureClass: FailureClassExecution, ErrorCode: "Cancelled", ErrorMessage: msg}
	}

	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return Failure{FailureClass: FailureClassIO, ErrorCode: "PathError", ErrorMessage: msg}
	}
	return Failure{FailureClass: FailureClassIO, ErrorCode: "Unknown", ErrorMessage: msg}
}

// codeOf turns a sentinel such as "missing base command" into
// "MissingBaseCommand".
func codeOf(kind error) string {
	if kind == nil {
		return "Unknown"
	}
	var b strings.Builder
	for _, word := range strings.Fields(kind.Error()) {
		b.WriteString(strings.ToUpper(word[:1]))
		b.WriteString(word[1:])
	}
	if b.Len() == 0 {
		return "Unknown"
	}
	return b.String()
}
