package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"lazyweave/internal/config"
	"lazyweave/internal/core"
	"lazyweave/internal/dag"
	"lazyweave/internal/logging"
	"lazyweave/internal/manifest"
	"lazyweave/internal/runlog"
	"lazyweave/internal/trace"
	"lazyweave/internal/watch"
)

type runOptions struct {
	force     bool
	watch     bool
	filter    []string
	extraArgs []string
}

// session holds everything one `lazy run` needs across watch iterations.
type session struct {
	task     string
	settings Settings
	graph    *dag.TaskGraph
	runner   *core.Runner
	console  *core.Console
	runs     *runlog.Recorder
	logger   *slog.Logger
}

func (a *app) runTask(ctx context.Context, task string, opts runOptions, s Settings) error {
	logger := logging.New(a.env.Stderr, s.LogLevel)
	colored := logging.ColorEnabled(a.env.Stdout, s.NoColor, a.env.Environ)
	console := core.NewConsole(a.env.Stdout, a.env.Stderr, colored)

	cfg, err := config.FromDir(a.env.WorkDir, logger)
	if err != nil {
		return err
	}
	rootDir := cfg.Project.Root.Dir

	var runs *runlog.Recorder
	if store, err := runlog.NewStore(rootDir); err != nil {
		logger.Warn("run history disabled", "error", err)
	} else {
		runs = runlog.NewRecorder(store, logger)
	}

	g, err := dag.BuildPlan(cfg, dag.PlanOptions{
		Task:      task,
		Filter:    opts.filter,
		ExtraArgs: opts.extraArgs,
		Env:       a.env.Environ,
	})
	if err != nil {
		recordFailedStart(runs, task, err, logger)
		return err
	}
	logger.Debug("planned", "task", task, "instances", g.Len(), "graph_hash", g.Hash())

	runner := core.NewRunner(
		core.NewExecutor(rootDir, a.env.Environ, colored),
		manifest.NewBuilder(manifest.NewHasher(0)),
		console,
		logger,
	)
	runner.WorkDir = a.env.WorkDir
	runner.Force = opts.force

	sess := &session{
		task:     task,
		settings: s,
		graph:    g,
		runner:   runner,
		console:  console,
		runs:     runs,
		logger:   logger,
	}
	res, err := sess.once(ctx)
	a.result = res
	if !opts.watch {
		return err
	}

	// --force applies to the initial run; reruns are driven by changes.
	runner.Force = false
	return a.watchLoop(ctx, sess, err)
}

// once executes the graph a single time and records the run.
func (s *session) once(ctx context.Context) (*dag.GraphResult, error) {
	var run *runlog.Run
	if s.runs != nil {
		r, err := s.runs.Start(s.task)
		if err != nil {
			s.logger.Warn("could not record run", "error", err)
		} else {
			run = r
			run.GraphHash = s.graph.Hash().String()
		}
	}

	res, err := s.execute(ctx)
	if err == nil && !res.OK() {
		err = s.report(res)
	}

	if run != nil {
		if res != nil {
			run.Counts = stateCounts(res)
		}
		if ferr := s.runs.Finish(run, err); ferr != nil {
			s.logger.Warn("could not record run", "run", run.RunID, "error", ferr)
		}
	}
	return res, err
}

func (s *session) execute(ctx context.Context) (*dag.GraphResult, error) {
	ex, err := dag.NewExecutor(s.graph, s.runner)
	if err != nil {
		return nil, err
	}
	ex.Concurrency = s.settings.Concurrency
	ex.Logger = s.logger

	var rec *trace.Recorder
	if s.settings.TracePath != "" {
		rec = trace.NewRecorder()
		ex.Sink = rec
	}

	res, runErr := ex.Run(ctx)
	if rec != nil && res != nil {
		if err := rec.Trace(res.GraphHash.String()).WriteFile(s.settings.TracePath); err != nil {
			s.logger.Error("could not write trace", "path", s.settings.TracePath, "error", err)
		}
	}
	return res, runErr
}

// report prints the failed and skipped instances of res and returns the
// error ending the run.
func (s *session) report(res *dag.GraphResult) error {
	failed := res.Failed()
	for _, key := range failed {
		s.console.Fail(res.Errors[key].Error())
	}
	if skipped := res.Skipped(); len(skipped) > 0 {
		s.console.Fail(fmt.Sprintf("skipped because a dependency failed: %s", strings.Join(skipped, ", ")))
	}
	if len(failed) == 0 {
		return errTasksFailed
	}
	return fmt.Errorf("%w: %w", errTasksFailed, res.Errors[failed[0]])
}

// watchLoop re-runs the session after every burst of changes in the
// planned workspaces until ctx is done. Failed runs do not end the loop.
func (a *app) watchLoop(ctx context.Context, s *session, first error) error {
	if first != nil && errors.Is(first, context.Canceled) {
		return first
	}
	w, err := watch.New(watchDirs(s.graph), watch.WithLogger(s.logger))
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	defer w.Close()

	fmt.Fprintln(a.env.Stderr, s.console.Gray(fmt.Sprintf("watching %d directories for changes", len(w.Dirs()))))
	return w.Run(ctx, func(ctx context.Context, paths []string) error {
		s.logger.Info("changes detected", "paths", len(paths))
		res, err := s.once(ctx)
		a.result = res
		if err != nil && !errors.Is(err, errTasksFailed) && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
}

func watchDirs(g *dag.TaskGraph) []string {
	seen := make(map[string]bool)
	var dirs []string
	for _, n := range g.Nodes() {
		if !seen[n.Task.Dir] {
			seen[n.Task.Dir] = true
			dirs = append(dirs, n.Task.Dir)
		}
	}
	sort.Strings(dirs)
	return dirs
}

func stateCounts(res *dag.GraphResult) map[string]int {
	out := make(map[string]int)
	for st, n := range res.Counts() {
		out[strings.ToLower(string(st))] = n
	}
	return out
}

// recordFailedStart records a run that failed before any task was planned.
func recordFailedStart(runs *runlog.Recorder, task string, cause error, logger *slog.Logger) {
	if runs == nil {
		return
	}
	run, err := runs.Start(task)
	if err == nil {
		err = runs.Finish(run, cause)
	}
	if err != nil {
		logger.Warn("could not record run", "error", err)
	}
}
