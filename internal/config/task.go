package config

import (
	"path/filepath"
	"sort"
	"strings"

	"lazyweave/internal/glob"
	"lazyweave/internal/project"
)

// TaskConfig is the effective configuration of task Name in Workspace.
// It is a view over RootConfig; nothing is cached between calls except the
// merged ScriptConfig.
type TaskConfig struct {
	Workspace *project.Workspace
	Name      string

	cfg    *Config
	script ScriptConfig
}

// Task resolves the configuration of task name in workspace w, applying the
// single matching workspace override if any.
func (c *Config) Task(w *project.Workspace, name string) (*TaskConfig, error) {
	script, err := c.scriptConfigFor(w, name)
	if err != nil {
		return nil, err
	}
	return &TaskConfig{Workspace: w, Name: name, cfg: c, script: script}, nil
}

func (c *Config) scriptConfigFor(w *project.Workspace, name string) (ScriptConfig, error) {
	raw := c.rawScript(name)
	if raw == nil {
		return ScriptConfig{}, nil
	}
	if raw.Execution != nil && *raw.Execution == ExecutionTopLevel {
		return *raw, nil
	}
	if len(raw.WorkspaceOverrides) == 0 {
		return *raw, nil
	}

	patterns := make([]string, 0, len(raw.WorkspaceOverrides))
	for p := range raw.WorkspaceOverrides {
		patterns = append(patterns, p)
	}
	sort.Strings(patterns)

	var nameMatches, dirMatches []string
	for _, p := range patterns {
		if glob.Match(p, w.Name, glob.Options{}) {
			nameMatches = append(nameMatches, p)
		}
	}
	if len(nameMatches) > 1 {
		return ScriptConfig{}, c.multimatchError(w, name, nameMatches)
	}
	for _, p := range patterns {
		if glob.Match(c.rootRelativePattern(p), w.Dir, glob.Options{Dot: true}) {
			dirMatches = append(dirMatches, p)
		}
	}
	if len(dirMatches) > 1 {
		return ScriptConfig{}, c.multimatchError(w, name, dirMatches)
	}

	if len(nameMatches) == 0 && len(dirMatches) == 0 {
		return *raw, nil
	}
	if len(nameMatches) == 1 && len(dirMatches) == 1 && nameMatches[0] != dirMatches[0] {
		return ScriptConfig{}, c.multimatchError(w, name, append(nameMatches, dirMatches...))
	}

	match := ""
	if len(nameMatches) == 1 {
		match = nameMatches[0]
	} else {
		match = dirMatches[0]
	}
	return mergeScriptConfig(*raw, raw.WorkspaceOverrides[match]), nil
}

// rootRelativePattern anchors a directory pattern at the root, keeping a
// leading negation.
func (c *Config) rootRelativePattern(p string) string {
	neg := strings.HasPrefix(p, "!")
	body := strings.TrimPrefix(p, "!")
	if !filepath.IsAbs(body) {
		body = filepath.Join(c.Project.Root.Dir, body)
	}
	if neg {
		return "!" + body
	}
	return body
}

func (c *Config) multimatchError(w *project.Workspace, name string, patterns []string) error {
	uniq := make(map[string]struct{}, len(patterns))
	for _, p := range patterns {
		uniq[p] = struct{}{}
	}
	sorted := make([]string, 0, len(uniq))
	for p := range uniq {
		sorted = append(sorted, p)
	}
	sort.Strings(sorted)
	quoted := make([]string, len(sorted))
	for i, p := range sorted {
		quoted[i] = "'" + p + "'"
	}
	return errorf(ErrAmbiguousOverride,
		"Workspace '%s' matched multiple overrides for script \"%s\": [%s]\nPlease make sure that the workspace only matches one override.",
		c.Project.RelDir(w), name, strings.Join(quoted, ", "))
}

// mergeScriptConfig overlays every field set in override onto base. Maps and
// the cache spec are replaced whole, never merged key by key.
func mergeScriptConfig(base ScriptConfig, override *ScriptConfig) ScriptConfig {
	out := base
	if override == nil {
		return out
	}
	if override.Execution != nil {
		out.Execution = override.Execution
	}
	if override.BaseCommand != nil {
		out.BaseCommand = override.BaseCommand
	}
	if override.Parallel != nil {
		out.Parallel = override.Parallel
	}
	if override.RunsAfter != nil {
		out.RunsAfter = override.RunsAfter
	}
	if override.Cache != nil {
		out.Cache = override.Cache
	}
	out.WorkspaceOverrides = nil
	return out
}

// Execution defaults to dependent.
func (t *TaskConfig) Execution() Execution {
	if t.script.Execution == nil {
		return ExecutionDependent
	}
	return *t.script.Execution
}

func (t *TaskConfig) isTopLevel() bool { return t.Execution() == ExecutionTopLevel }

// BaseCommand returns the configured base command, if any.
func (t *TaskConfig) BaseCommand() (string, bool) {
	if t.script.BaseCommand == nil || *t.script.BaseCommand == "" {
		return "", false
	}
	return *t.script.BaseCommand, true
}

// Parallel reports whether instances of the task may overlap. Top-level
// tasks are never parallel.
func (t *TaskConfig) Parallel() bool {
	if t.isTopLevel() {
		return false
	}
	if t.script.Parallel == nil {
		return true
	}
	return *t.script.Parallel
}

// RunsAfterEntry is a resolved predecessor declaration.
type RunsAfterEntry struct {
	Task          string
	UsesOutput    bool
	InheritsInput bool
	In            Scope
}

// RunsAfter returns the predecessor declarations sorted by task name.
// Top-level tasks have none.
func (t *TaskConfig) RunsAfter() []RunsAfterEntry {
	if t.isTopLevel() || len(t.script.RunsAfter) == 0 {
		return nil
	}
	out := make([]RunsAfterEntry, 0, len(t.script.RunsAfter))
	for name, ra := range t.script.RunsAfter {
		e := RunsAfterEntry{Task: name, UsesOutput: true, InheritsInput: false, In: ScopeAllPackages}
		if ra.UsesOutput != nil {
			e.UsesOutput = *ra.UsesOutput
		}
		if ra.InheritsInput != nil {
			e.InheritsInput = *ra.InheritsInput
		}
		if ra.In != nil {
			e.In = *ra.In
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Task < out[j].Task })
	return out
}

// GlobSpec is a normalised include/exclude pair.
type GlobSpec struct {
	Include []string
	Exclude []string
}

// CacheSpec is the effective cache configuration. When Disabled is set the
// task always runs and the remaining fields are zero.
type CacheSpec struct {
	Disabled bool

	EnvInputs                     []string
	Inputs                        GlobSpec
	Outputs                       GlobSpec
	InheritsInputFromDependencies bool
	UsesOutputFromDependencies    bool
}

// Cache resolves the cache spec. <rootDir> in patterns is expanded.
func (t *TaskConfig) Cache() CacheSpec {
	raw := t.script.Cache
	if raw != nil && raw.Disabled {
		return CacheSpec{Disabled: true}
	}
	if raw == nil {
		raw = &CacheConfig{}
	}
	dependent := !t.isTopLevel()
	spec := CacheSpec{
		EnvInputs:                     append([]string{}, raw.EnvInputs...),
		Inputs:                        t.globSpec(raw.Inputs),
		Outputs:                       t.globSpec(raw.Outputs),
		InheritsInputFromDependencies: dependent,
		UsesOutputFromDependencies:    dependent,
	}
	if dependent && raw.InheritsInputFromDependencies != nil {
		spec.InheritsInputFromDependencies = *raw.InheritsInputFromDependencies
	}
	if dependent && raw.UsesOutputFromDependencies != nil {
		spec.UsesOutputFromDependencies = *raw.UsesOutputFromDependencies
	}
	return spec
}

func (t *TaskConfig) globSpec(g *GlobConfig) GlobSpec {
	spec := GlobSpec{Include: []string{"**/*"}, Exclude: []string{}}
	if g != nil {
		if g.Include != nil {
			spec.Include = g.Include
		}
		if g.Exclude != nil {
			spec.Exclude = g.Exclude
		}
	}
	return GlobSpec{
		Include: t.cfg.expandRootDir(spec.Include),
		Exclude: t.cfg.expandRootDir(spec.Exclude),
	}
}

// Command resolves the shell command for this workspace.
func (t *TaskConfig) Command() (string, error) {
	base, hasBase := t.BaseCommand()
	manifest := filepath.Join(t.Workspace.Dir, "package.json")

	var command string
	if t.isTopLevel() {
		if !hasBase {
			return "", errorf(ErrMissingBaseCommand,
				"Task '%s' is top-level but has no baseCommand configured in the lazy config file", t.Name)
		}
		command = base
	} else {
		command = t.Workspace.Scripts[t.Name]
		if command == "" {
			return "", errorf(ErrMissingCommand, "No command found for script %s in %s", t.Name, manifest)
		}
		if m, ok := ExtractInheritMatch(command); ok {
			if !hasBase {
				return "", errorf(ErrMissingBaseCommand,
					"Encountered 'lazy inherit' for scripts#%s in %s, but there is no baseCommand configured for the task '%s'",
					t.Name, manifest, t.Name)
			}
			command = m.Expand(base)
		}
	}
	return strings.ReplaceAll(command, RootDirToken, t.cfg.Project.Root.Dir), nil
}

// Key returns the task key of this instance.
func (t *TaskConfig) Key() string {
	key, err := t.cfg.TaskKey(t.Workspace.Dir, t.Name)
	if err != nil {
		return t.Name + "::" + t.Workspace.Dir
	}
	return key
}

// ManifestPath is where the input manifest of the last successful run lives.
func (t *TaskConfig) ManifestPath() string {
	return filepath.Join(t.Workspace.Dir, HiddenDir, "manifests", Slugify(t.Name))
}

// PrevManifestPath holds the previous manifest while a run is in progress.
func (t *TaskConfig) PrevManifestPath() string { return t.ManifestPath() + ".prev" }

// NextManifestPath is the staging file the current manifest is written to
// before being renamed into place.
func (t *TaskConfig) NextManifestPath() string { return t.ManifestPath() + ".next" }

// DiffPath is where the full change list of the last cache miss is kept.
func (t *TaskConfig) DiffPath() string {
	return filepath.Join(t.Workspace.Dir, HiddenDir, "diffs", Slugify(t.Name))
}
