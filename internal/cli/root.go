package cli

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"lazyweave/internal/dag"
)

// CLIResult is the outcome of one invocation.
type CLIResult struct {
	ExitCode int
	// GraphResult is the result of the last graph execution, if any ran.
	GraphResult *dag.GraphResult
}

// Run executes the command line args (without argv[0]) in env and returns
// the exit code together with the error that caused it, if any. Task output
// and operator messages go to env.Stdout and env.Stderr; the returned error
// has not been printed.
func Run(ctx context.Context, args []string, env Env) (CLIResult, error) {
	if err := env.validate(); err != nil {
		return CLIResult{ExitCode: ExitCode(err)}, err
	}
	env.WorkDir = filepath.Clean(env.WorkDir)

	a := &app{env: env}
	root := newRootCommand(a)
	root.SetArgs(args)
	root.SetIn(env.Stdin)
	root.SetOut(env.Stdout)
	root.SetErr(env.Stderr)

	err := root.ExecuteContext(ctx)
	if err != nil && !a.started {
		// cobra rejected the command line before any command ran
		if _, ok := err.(*InvocationError); !ok {
			err = &InvocationError{ExitCode: ExitInvalidInvocation, Message: err.Error()}
		}
	}
	return CLIResult{ExitCode: ExitCode(err), GraphResult: a.result}, err
}

// app carries state shared by the commands of one invocation.
type app struct {
	env     Env
	started bool
	result  *dag.GraphResult
}

func (a *app) settings(cmd *cobra.Command) (Settings, error) {
	return loadSettings(cmd.Flags(), a.env)
}

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "lazy",
		Short:         "Cached task runner for JavaScript monorepos",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return invalidInvocationf("%v", err)
	})
	registerSettingFlags(root.PersistentFlags())

	root.AddCommand(
		newRunCommand(a),
		newInheritCommand(a),
		newListCommand(a),
		newCleanCommand(a),
	)
	return root
}

type runFlags struct {
	force  bool
	watch  bool
	filter []string
}

func (f *runFlags) register(fs *pflag.FlagSet) {
	fs.BoolVar(&f.force, "force", false, "run every task even when its inputs are unchanged")
	fs.BoolVar(&f.watch, "watch", false, "re-run the tasks whenever a file in their workspaces changes")
	fs.StringSliceVar(&f.filter, "filter", nil, "only run in workspaces whose name or directory matches this glob (repeatable)")
}

func newRunCommand(a *app) *cobra.Command {
	var flags runFlags
	cmd := &cobra.Command{
		Use:   "run <task> [-- args...]",
		Short: "Run a task in every workspace that declares it",
		Long: `Run a task in every workspace that declares it, after the same task in
the workspace's dependencies. Tasks whose inputs have not changed since
their last successful run are skipped. Arguments after -- are appended to
the command of the requested task.`,
		Args: func(cmd *cobra.Command, args []string) error {
			dash := cmd.ArgsLenAtDash()
			named := len(args)
			if dash >= 0 {
				named = dash
			}
			if named != 1 {
				return invalidInvocationf("expected exactly one task name before --, got %d", named)
			}
			if strings.TrimSpace(args[0]) == "" {
				return invalidInvocationf("task name must not be empty")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			a.started = true
			s, err := a.settings(cmd)
			if err != nil {
				return err
			}
			var extra []string
			if dash := cmd.ArgsLenAtDash(); dash >= 0 {
				extra = args[dash:]
			}
			return a.runTask(cmd.Context(), args[0], runOptions{
				force:     flags.force,
				watch:     flags.watch,
				filter:    flags.filter,
				extraArgs: extra,
			}, s)
		},
	}
	flags.register(cmd.Flags())
	return cmd
}

func newInheritCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "inherit [args...]",
		Short: "Run the baseCommand configured for the current package script",
		Long: `Run the baseCommand configured for the package script that invoked it,
with any arguments appended. Meant to be used as a script body, e.g.
"test": "lazy inherit --coverage".`,
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a.started = true
			return a.inherit(cmd.Context(), args)
		},
	}
}

func newListCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List workspaces in dependency order",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a.started = true
			s, err := a.settings(cmd)
			if err != nil {
				return err
			}
			return a.list(s)
		},
	}
}

func newCleanCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: "Delete every stored input manifest and diff",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a.started = true
			s, err := a.settings(cmd)
			if err != nil {
				return err
			}
			return a.clean(s)
		},
	}
}

func noArgs(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return invalidInvocationf("%s takes no arguments, got %q", cmd.Name(), strings.Join(args, " "))
	}
	return nil
}

func resolveUnderWorkDir(workDir, p string) string {
	clean := filepath.Clean(p)
	if filepath.IsAbs(clean) {
		return clean
	}
	return filepath.Join(workDir, clean)
}
