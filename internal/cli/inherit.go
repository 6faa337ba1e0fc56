package cli

import (
	"context"
	"fmt"
	"strings"

	"lazyweave/internal/config"
	"lazyweave/internal/core"
	"lazyweave/internal/logging"
)

// inherit runs the baseCommand of the package script that invoked lazy,
// identified by npm_lifecycle_event, in the current workspace. The
// process exits with the command's status.
func (a *app) inherit(ctx context.Context, args []string) error {
	name, ok := a.env.Lookup("npm_lifecycle_event")
	if !ok || name == "" {
		return &InvocationError{
			ExitCode: ExitTaskFailure,
			Message:  "No npm_lifecycle_event found. Did you run `lazy inherit` directly instead of via \"scripts\"?",
		}
	}

	logger := logging.New(a.env.Stderr, logging.DefaultLevel)
	cfg, err := config.FromDir(a.env.WorkDir, logger)
	if err != nil {
		return err
	}
	w := cfg.Project.Owning(a.env.WorkDir)
	tc, err := cfg.Task(w, name)
	if err != nil {
		return err
	}
	base, ok := tc.BaseCommand()
	if !ok {
		return &InvocationError{
			ExitCode: ExitTaskFailure,
			Message: fmt.Sprintf("No baseCommand found for task '%s'. Using 'lazy inherit' requires you to add a baseCommand for the relevant task in your lazy.config file!",
				name),
		}
	}

	command := strings.ReplaceAll(base, config.RootDirToken, cfg.Project.Root.Dir)
	if len(args) > 0 {
		command += " " + strings.Join(args, " ")
	}
	executor := core.NewExecutor(cfg.Project.Root.Dir, a.env.Environ, false)
	executor.Stdin = a.env.Stdin
	res, err := executor.Execute(ctx, &core.Task{
		Key:     tc.Key(),
		Name:    name,
		Dir:     w.Dir,
		Command: command,
	}, a.env.Stdout, a.env.Stderr)
	if err != nil {
		return &InvocationError{ExitCode: ExitTaskFailure, Message: fmt.Sprintf("%s: %v", name, err)}
	}
	if res.ExitCode != 0 {
		code := res.ExitCode
		if code < 0 {
			code = ExitTaskFailure
		}
		// the command has already reported its own failure
		return &InvocationError{ExitCode: code}
	}
	return nil
}
