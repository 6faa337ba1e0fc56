package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// ExecutionResult is the outcome of a command that ran to completion.
type ExecutionResult struct {
	// ExitCode is the process exit code; -1 when killed by a signal.
	ExitCode int
	Duration time.Duration
}

// Executor runs task commands.
type Executor struct {
	// RootDir is the project root, exported to commands as LAZY_ROOT_DIR.
	RootDir string
	// Env is the environment snapshot commands inherit.
	Env []string
	// Color asks child processes for coloured output via FORCE_COLOR.
	Color bool
	// Stdin is connected to the command when set; tasks run by the
	// scheduler get no input.
	Stdin io.Reader
}

// NewExecutor creates an Executor for the project at rootDir.
func NewExecutor(rootDir string, env []string, color bool) *Executor {
	return &Executor{RootDir: rootDir, Env: env, Color: color}
}

// Execute runs task.Command with sh in task.Dir, copying its output to
// stdout and stderr. A non-zero exit is reported through ExitCode; an error
// means the command could not be run or was cancelled.
//
// When ctx is cancelled the whole process group is killed.
func (e *Executor) Execute(ctx context.Context, task *Task, stdout, stderr io.Writer) (*ExecutionResult, error) {
	if task == nil {
		return nil, fmt.Errorf("task is nil")
	}
	if strings.TrimSpace(task.Command) == "" {
		return nil, fmt.Errorf("task %s has no command", task.Key)
	}

	cmd := exec.Command("sh", "-c", task.Command)
	cmd.Dir = task.Dir
	cmd.Env = e.environ(task)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.Stdin = e.Stdin
	setProcessGroup(cmd)

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start command: %w", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	var err error
	select {
	case <-ctx.Done():
		killProcessGroup(cmd)
		<-done
		return nil, fmt.Errorf("execution cancelled: %w", ctx.Err())
	case err = <-done:
	}

	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, fmt.Errorf("failed to execute command: %w", err)
		}
		exitCode = exitErr.ExitCode()
	}
	return &ExecutionResult{ExitCode: exitCode, Duration: time.Since(start)}, nil
}

// environ derives the command environment from the snapshot.
func (e *Executor) environ(task *Task) []string {
	env := make([]string, 0, len(e.Env)+4)
	path := ""
	for _, kv := range e.Env {
		name, value, _ := strings.Cut(kv, "=")
		switch name {
		case "PATH":
			path = value
			continue
		case "FORCE_COLOR", "npm_lifecycle_event", "LAZY_ROOT_DIR":
			continue
		}
		env = append(env, kv)
	}

	bins := []string{
		filepath.Join(task.Dir, "node_modules", ".bin"),
		filepath.Join(e.RootDir, "node_modules", ".bin"),
	}
	if path != "" {
		bins = append([]string{path}, bins...)
	}
	env = append(env,
		"PATH="+strings.Join(bins, string(filepath.ListSeparator)),
		"npm_lifecycle_event="+task.Name,
		"LAZY_ROOT_DIR="+e.RootDir,
	)
	if e.Color {
		env = append(env, "FORCE_COLOR=1")
	}
	return env
}
