package core

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"lazyweave/internal/logging"
	"lazyweave/internal/manifest"
)

// Reason explains why a task executed instead of being served from cache.
type Reason int

const (
	ReasonNone Reason = iota
	// ReasonNoPreviousManifest: the task never completed successfully.
	ReasonNoPreviousManifest
	// ReasonInputsChanged: the manifest differs from the previous one.
	ReasonInputsChanged
	// ReasonCacheDisabled: the task opted out of caching.
	ReasonCacheDisabled
	// ReasonForced: the run was started with --force.
	ReasonForced
)

func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonNoPreviousManifest:
		return "no-previous-manifest"
	case ReasonInputsChanged:
		return "inputs-changed"
	case ReasonCacheDisabled:
		return "cache-disabled"
	case ReasonForced:
		return "forced"
	default:
		return fmt.Sprintf("Reason(%d)", int(r))
	}
}

// Outcome describes how a task instance was satisfied.
type Outcome struct {
	Key string
	// Cached is true when the manifest was unchanged and nothing ran.
	Cached bool
	// Reason is set when the task executed.
	Reason Reason
	// Changes lists the manifest differences behind ReasonInputsChanged.
	Changes  []manifest.Change
	ExitCode int
	Duration time.Duration
}

// TaskError reports a task whose command failed or could not be started.
type TaskError struct {
	Key string
	Dir string
	// ExitCode is the command's exit code, or -1 when it never ran to
	// completion.
	ExitCode int
	Err      error
}

func (e *TaskError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("task %s in %s failed: %v", e.Key, e.Dir, e.Err)
	}
	return fmt.Sprintf("task %s in %s failed: command exited with code %d", e.Key, e.Dir, e.ExitCode)
}

func (e *TaskError) Unwrap() error { return e.Err }

// Runner applies the manifest protocol to task instances. A Runner is safe
// for concurrent use by tasks with distinct keys.
type Runner struct {
	Executor *Executor
	Builder  *manifest.Builder
	Console  *Console
	// WorkDir is the directory printed paths are relative to.
	WorkDir string
	// Force executes every task regardless of its manifest.
	Force  bool
	Logger *slog.Logger
}

// NewRunner wires a Runner. A nil logger discards.
func NewRunner(executor *Executor, builder *manifest.Builder, console *Console, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = logging.Discard()
	}
	if builder == nil {
		builder = manifest.NewBuilder(nil)
	}
	return &Runner{
		Executor: executor,
		Builder:  builder,
		Console:  console,
		WorkDir:  executor.RootDir,
		Logger:   logger,
	}
}

// Run satisfies task, executing it unless its inputs are unchanged since
// its last successful run.
//
// The returned error is a *TaskError when the command failed; its manifest
// has then been deleted so the next run is a miss. Other errors come from
// reading inputs or writing the manifest.
func (r *Runner) Run(ctx context.Context, task *Task) (*Outcome, error) {
	if task == nil {
		return nil, fmt.Errorf("task is nil")
	}
	out := &Outcome{Key: task.Key}

	if task.CacheDisabled {
		out.Reason = ReasonCacheDisabled
		return out, r.execute(ctx, task, out)
	}

	prev, hadPrev, err := task.Store.SetAside()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", task.Key, err)
	}
	current, err := r.Builder.Build(ctx, task.Inputs, prev)
	if err != nil {
		return nil, fmt.Errorf("%s: build manifest: %w", task.Key, err)
	}
	if err := task.Store.Write(current); err != nil {
		return nil, fmt.Errorf("%s: %w", task.Key, err)
	}
	r.Logger.Debug("manifest written", "task", task.Key, "records", len(current.Records), "path", task.Store.Path)

	switch {
	case r.Force:
		out.Reason = ReasonForced
		r.Console.Print(task.Key, r.Console.Gray("cache skipped, --force"))
	case !hadPrev:
		out.Reason = ReasonNoPreviousManifest
	default:
		changes := manifest.Compare(prev, current)
		if len(changes) == 0 {
			out.Cached = true
			r.Console.Print(task.Key, r.Console.Gray("input manifest saved: "+r.rel(task.Store.Path)))
			r.Console.Print(task.Key, "cache hit ⚡️")
			return out, nil
		}
		out.Reason = ReasonInputsChanged
		out.Changes = changes

		diffPath := r.rel(task.Store.DiffPath)
		all, preview := manifest.RenderChanges(changes, diffPath)
		if err := task.Store.WriteDiff(all); err != nil {
			r.Logger.Warn("could not write diff", "task", task.Key, "error", err)
		}
		r.Console.Print(task.Key, "cache miss, changes since last run:")
		for _, line := range preview {
			r.Console.Print(task.Key, r.Console.Gray(line))
		}
	}

	if err := r.execute(ctx, task, out); err != nil {
		if delErr := task.Store.Delete(); delErr != nil {
			r.Logger.Error("could not delete manifest of failed task", "task", task.Key, "error", delErr)
		}
		return out, err
	}
	r.Console.Print(task.Key, r.Console.Gray("input manifest saved: "+r.rel(task.Store.Path)))
	return out, nil
}

// execute runs the command and records its result in out.
func (r *Runner) execute(ctx context.Context, task *Task, out *Outcome) error {
	r.Console.Run(task.Key, task.Command)
	stdout, stderr := r.Console.Stdout(task.Key), r.Console.Stderr(task.Key)
	res, err := r.Executor.Execute(ctx, task, stdout, stderr)
	stdout.Flush()
	stderr.Flush()
	if err != nil {
		out.ExitCode = -1
		return &TaskError{Key: task.Key, Dir: task.Dir, ExitCode: -1, Err: err}
	}
	out.ExitCode = res.ExitCode
	out.Duration = res.Duration
	if res.ExitCode != 0 {
		return &TaskError{Key: task.Key, Dir: task.Dir, ExitCode: res.ExitCode}
	}
	r.Console.Printf(task.Key, "done in %s", r.Console.paint(fmt.Sprintf("%.2fs", res.Duration.Seconds()), prefixPalette[0]))
	return nil
}

func (r *Runner) rel(path string) string {
	if r.WorkDir == "" {
		return path
	}
	rel, err := filepath.Rel(r.WorkDir, path)
	if err != nil {
		return path
	}
	return rel
}
