package core

import (
	"lazyweave/internal/manifest"
)

// Task is a task instance: one named script in one workspace, resolved and
// ready to run.
type Task struct {
	// Key identifies the instance, e.g. "build::packages/core".
	Key string
	// Name is the script name shared by every instance of the task.
	Name string
	// Workspace is the owning workspace's package name.
	Workspace string
	// Dir is the absolute workspace directory the command runs in.
	Dir string

	// Command is the shell command, including any extra arguments.
	Command string

	// Parallel is false when instances of this task must not overlap.
	Parallel bool
	// CacheDisabled makes the task run unconditionally without a manifest.
	CacheDisabled bool

	// Inputs describes what the manifest observes.
	Inputs manifest.Spec
	// Store locates the manifest files of this instance.
	Store manifest.Store
}
