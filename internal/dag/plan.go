package dag

import (
	"sort"
	"strings"

	"lazyweave/internal/config"
	"lazyweave/internal/core"
	"lazyweave/internal/glob"
	"lazyweave/internal/manifest"
	"lazyweave/internal/project"
)

// PlanOptions selects what BuildPlan schedules.
type PlanOptions struct {
	// Task is the requested task name.
	Task string
	// Filter restricts the requested instances to workspaces whose name or
	// root-relative directory matches one of the patterns. Empty selects
	// every workspace.
	Filter []string
	// ExtraArgs are appended to the command of every requested instance.
	ExtraArgs []string
	// Env is the environment snapshot envInputs are read from.
	Env []string
}

// BuildPlan derives the graph of task instances needed to run opts.Task.
//
// A top-level task has a single instance at the root. A dependent task has
// an instance in every selected workspace declaring the script; each depends
// on the nearest instances of the same task among its workspace's local
// dependencies. runsAfter predecessors are added with their own
// dependencies, recursively.
func BuildPlan(cfg *config.Config, opts PlanOptions) (*TaskGraph, error) {
	p := &planner{
		cfg:   cfg,
		proj:  cfg.Project,
		opts:  opts,
		env:   envMap(opts.Env),
		tasks: make(map[string]*core.Task),
		seen:  make(map[Edge]bool),
	}

	requested := p.requestedWorkspaces()
	if len(requested) == 0 {
		return nil, &GraphError{Kind: ErrNothingToRun, Msg: noInstancesMessage(opts)}
	}
	for _, w := range requested {
		if _, err := p.add(w, opts.Task); err != nil {
			return nil, err
		}
	}

	keys := make([]string, 0, len(p.tasks))
	for k := range p.tasks {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	tasks := make([]core.Task, 0, len(keys))
	for _, k := range keys {
		tasks = append(tasks, *p.tasks[k])
	}
	return NewTaskGraph(tasks, p.edges)
}

func noInstancesMessage(opts PlanOptions) string {
	if len(opts.Filter) > 0 {
		return "no workspace matching " + strings.Join(opts.Filter, ", ") + " has a script named '" + opts.Task + "'"
	}
	return "no workspace has a script named '" + opts.Task + "'"
}

type planner struct {
	cfg  *config.Config
	proj *project.Project
	opts PlanOptions
	env  map[string]string

	tasks map[string]*core.Task
	edges []Edge
	seen  map[Edge]bool
}

// requestedWorkspaces returns the workspaces the requested task runs in,
// in topological order.
func (p *planner) requestedWorkspaces() []*project.Workspace {
	if p.cfg.IsTopLevel(p.opts.Task) {
		return []*project.Workspace{p.proj.Root}
	}
	var out []*project.Workspace
	for _, w := range p.members() {
		if w.HasScript(p.opts.Task) && p.selected(w) {
			out = append(out, w)
		}
	}
	return out
}

// members returns the non-root workspaces in topological order. Root
// scripts typically invoke lazy itself, so the root never hosts a dependent
// instance.
func (p *planner) members() []*project.Workspace {
	all := p.proj.Workspaces()
	out := make([]*project.Workspace, 0, len(all))
	for _, w := range all {
		if w != p.proj.Root {
			out = append(out, w)
		}
	}
	return out
}

func (p *planner) selected(w *project.Workspace) bool {
	if len(p.opts.Filter) == 0 {
		return true
	}
	rel := p.proj.RelDir(w)
	for _, pat := range p.opts.Filter {
		if glob.Match(pat, w.Name, glob.Options{}) || glob.Match(pat, rel, glob.Options{Dot: true}) {
			return true
		}
	}
	return false
}

// add registers the instance of task name in w and its dependencies,
// returning its key. Instances are memoised before their dependencies are
// visited, so a dependency cycle becomes a graph edge cycle that
// NewTaskGraph reports.
func (p *planner) add(w *project.Workspace, name string) (string, error) {
	tc, err := p.cfg.Task(w, name)
	if err != nil {
		return "", err
	}
	key := tc.Key()
	if _, ok := p.tasks[key]; ok {
		return key, nil
	}

	command, err := tc.Command()
	if err != nil {
		return "", err
	}
	if name == p.opts.Task && len(p.opts.ExtraArgs) > 0 {
		command += " " + strings.Join(p.opts.ExtraArgs, " ")
	}

	cache := tc.Cache()
	base := p.cfg.BaseCache()
	task := &core.Task{
		Key:           key,
		Name:          name,
		Workspace:     w.Name,
		Dir:           w.Dir,
		Command:       command,
		Parallel:      tc.Parallel(),
		CacheDisabled: cache.Disabled,
		Store: manifest.Store{
			Path:     tc.ManifestPath(),
			PrevPath: tc.PrevManifestPath(),
			NextPath: tc.NextManifestPath(),
			DiffPath: tc.DiffPath(),
		},
	}
	if !cache.Disabled {
		task.Inputs = manifest.Spec{
			RootDir:    p.proj.Root.Dir,
			Dir:        w.Dir,
			Inputs:     manifest.Patterns{Include: cache.Inputs.Include, Exclude: cache.Inputs.Exclude},
			BaseInputs: manifest.Patterns{Include: base.Include, Exclude: base.Exclude},
			EnvInputs:  append(append([]string{}, cache.EnvInputs...), base.EnvInputs...),
			Env:        p.env,
			Command:    command,
		}
	}
	p.tasks[key] = task

	if tc.Execution() == config.ExecutionDependent {
		for _, dep := range p.nearestProviders(w, name) {
			depKey, err := p.link(dep, name, key)
			if err != nil {
				return "", err
			}
			if !cache.Disabled {
				up, err := p.upstream(dep, name, depKey, cache.InheritsInputFromDependencies, cache.UsesOutputFromDependencies)
				if err != nil {
					return "", err
				}
				task.Inputs.Upstreams = append(task.Inputs.Upstreams, up)
			}
		}
	}

	for _, ra := range tc.RunsAfter() {
		for _, pw := range p.predecessors(w, ra) {
			predKey, err := p.link(pw, ra.Task, key)
			if err != nil {
				return "", err
			}
			if !cache.Disabled {
				up, err := p.upstream(pw, ra.Task, predKey, ra.InheritsInput, ra.UsesOutput)
				if err != nil {
					return "", err
				}
				task.Inputs.Upstreams = append(task.Inputs.Upstreams, up)
			}
		}
	}
	return key, nil
}

// link adds the instance of name in w as a dependency of key.
func (p *planner) link(w *project.Workspace, name, key string) (string, error) {
	depKey, err := p.add(w, name)
	if err != nil {
		return "", err
	}
	e := Edge{From: depKey, To: key}
	if !p.seen[e] {
		p.seen[e] = true
		p.edges = append(p.edges, e)
	}
	return depKey, nil
}

func (p *planner) upstream(w *project.Workspace, name, key string, inheritsInput, usesOutput bool) (manifest.Upstream, error) {
	tc, err := p.cfg.Task(w, name)
	if err != nil {
		return manifest.Upstream{}, err
	}
	outputs := tc.Cache().Outputs
	return manifest.Upstream{
		Key:           key,
		InheritsInput: inheritsInput,
		ManifestPath:  tc.ManifestPath(),
		UsesOutput:    usesOutput,
		Dir:           w.Dir,
		Outputs:       manifest.Patterns{Include: outputs.Include, Exclude: outputs.Exclude},
	}, nil
}

// nearestProviders returns, for each local dependency of w, the dependency
// itself when it declares script name, or else its own nearest providers.
func (p *planner) nearestProviders(w *project.Workspace, name string) []*project.Workspace {
	seen := map[string]bool{w.Name: true}
	var out []*project.Workspace
	var walk func(ws *project.Workspace)
	walk = func(ws *project.Workspace) {
		for _, depName := range ws.LocalDependencyWorkspaceNames {
			if seen[depName] {
				continue
			}
			seen[depName] = true
			dep, ok := p.proj.Lookup(depName)
			if !ok || dep == p.proj.Root {
				continue
			}
			if dep.HasScript(name) {
				out = append(out, dep)
				continue
			}
			walk(dep)
		}
	}
	walk(w)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// predecessors resolves the workspaces whose instance of ra.Task must
// finish before the instance in w starts.
func (p *planner) predecessors(w *project.Workspace, ra config.RunsAfterEntry) []*project.Workspace {
	if p.cfg.IsTopLevel(ra.Task) {
		return []*project.Workspace{p.proj.Root}
	}

	var candidates []*project.Workspace
	switch ra.In {
	case config.ScopeSelfOnly:
		candidates = []*project.Workspace{w}
	case config.ScopeSelfAndDependencies:
		candidates = []*project.Workspace{w}
		for _, name := range p.proj.TransitiveDependencies(w) {
			if dep, ok := p.proj.Lookup(name); ok {
				candidates = append(candidates, dep)
			}
		}
	default:
		candidates = p.members()
	}

	var out []*project.Workspace
	for _, c := range candidates {
		if c != p.proj.Root && c.HasScript(ra.Task) {
			out = append(out, c)
		}
	}
	return out
}

func envMap(env []string) map[string]string {
	out := make(map[string]string, len(env))
	for _, kv := range env {
		name, value, ok := strings.Cut(kv, "=")
		if ok {
			out[name] = value
		}
	}
	return out
}
