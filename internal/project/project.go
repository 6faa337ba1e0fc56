package project

import (
	"errors"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"lazyweave/internal/glob"
	"lazyweave/internal/logging"
)

// Project is the hydrated workspace graph of a monorepo.
type Project struct {
	Root           *Workspace
	PackageManager PackageManager

	// byName and byDir exclude the root.
	byName map[string]*Workspace
	byDir  map[string]*Workspace
	sorted []*Workspace
}

// FromDir discovers the project containing dir.
func FromDir(dir string, logger *slog.Logger) (*Project, error) {
	if logger == nil {
		logger = logging.Discard()
	}
	rootDir, err := findRootDir(dir)
	if err != nil {
		return nil, err
	}
	root, err := loadWorkspace(rootDir, true)
	if err != nil {
		return nil, err
	}

	all := make(map[string]*Workspace)
	seenDirs := make(map[string]bool)
	if _, err := hydrateChildWorkspaces(root, all, seenDirs, logger); err != nil {
		return nil, err
	}
	hydrateLocalDependencies(all)

	pm, err := DetectPackageManager(rootDir)
	if err != nil {
		return nil, err
	}

	workspaces := make([]*Workspace, 0, len(all))
	for _, w := range all {
		workspaces = append(workspaces, w)
	}
	return New(all[root.Name], workspaces, pm)
}

func findDirectChildWorkspaces(w *Workspace, logger *slog.Logger) ([]*Workspace, error) {
	if len(w.ChildWorkspaceGlobs) == 0 {
		return nil, nil
	}
	dirs, err := glob.Glob(w.ChildWorkspaceGlobs, glob.Options{Cwd: w.Dir, Types: glob.TypesDirs})
	if err != nil {
		return nil, err
	}
	var out []*Workspace
	for _, dir := range dirs {
		if filepath.Clean(dir) == w.Dir {
			continue
		}
		child, err := loadWorkspace(dir, false)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				logger.Debug("skipping directory without package.json", "dir", dir)
				continue
			}
			return nil, err
		}
		out = append(out, child)
	}
	return out, nil
}

// hydrateChildWorkspaces registers w and its descendants depth first.
func hydrateChildWorkspaces(w *Workspace, all map[string]*Workspace, seenDirs map[string]bool, logger *slog.Logger) (*Workspace, error) {
	seenDirs[w.Dir] = true
	children, err := findDirectChildWorkspaces(w, logger)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(children))
	for _, c := range children {
		if seenDirs[c.Dir] {
			continue
		}
		hydrated, err := hydrateChildWorkspaces(c, all, seenDirs, logger)
		if err != nil {
			return nil, err
		}
		names = append(names, hydrated.Name)
	}
	w.ChildWorkspaceNames = names

	if existing, ok := all[w.Name]; ok {
		if existing.Dir != w.Dir {
			return nil, errorf(ErrDuplicateWorkspace,
				"Found multiple workspaces with the name '%s'. This is not allowed. Found in '%s' and '%s'",
				w.Name, existing.Dir, w.Dir)
		}
		return existing, nil
	}
	logger.Debug("discovered workspace", "name", w.Name, "dir", w.Dir)
	all[w.Name] = w
	return w, nil
}

func hydrateLocalDependencies(all map[string]*Workspace) {
	for _, w := range all {
		local := make([]string, 0, len(w.AllDependencyNames))
		for _, dep := range w.AllDependencyNames {
			if _, ok := all[dep]; ok && dep != w.Name {
				local = append(local, dep)
			}
		}
		sort.Strings(local)
		w.LocalDependencyWorkspaceNames = local
	}
}

// New assembles a Project from already hydrated workspaces. root must be
// present in workspaces or is added.
func New(root *Workspace, workspaces []*Workspace, pm PackageManager) (*Project, error) {
	if root == nil {
		return nil, errorf(ErrNoRootWorkspace, "Root workspace not found")
	}
	all := make(map[string]*Workspace, len(workspaces)+1)
	all[root.Name] = root
	for _, w := range workspaces {
		if existing, ok := all[w.Name]; ok && existing != w && existing.Dir != w.Dir {
			return nil, errorf(ErrDuplicateWorkspace,
				"Found multiple workspaces with the name '%s'. This is not allowed. Found in '%s' and '%s'",
				w.Name, existing.Dir, w.Dir)
		}
		if w.Name == root.Name {
			continue
		}
		all[w.Name] = w
	}

	sorted, err := topologicallySortWorkspaces(all)
	if err != nil {
		return nil, err
	}

	p := &Project{
		Root:           root,
		PackageManager: pm,
		byName:         make(map[string]*Workspace, len(all)-1),
		byDir:          make(map[string]*Workspace, len(all)-1),
		sorted:         sorted,
	}
	for name, w := range all {
		if name == root.Name {
			continue
		}
		p.byName[name] = w
		p.byDir[w.Dir] = w
	}
	return p, nil
}

// topologicallySortWorkspaces places every workspace after its local
// dependencies. Names are visited in sorted order so the result is stable.
func topologicallySortWorkspaces(all map[string]*Workspace) ([]*Workspace, error) {
	names := make([]string, 0, len(all))
	for name := range all {
		names = append(names, name)
	}
	sort.Strings(names)

	sorted := make([]*Workspace, 0, len(all))
	visited := make(map[string]bool, len(all))

	var visit func(name string, path []string) error
	visit = func(name string, path []string) error {
		if visited[name] {
			return nil
		}
		visited[name] = true
		w, ok := all[name]
		if !ok {
			return errorf(ErrUnknownWorkspace, "Could not find package %s. path: %s", name, strings.Join(path, " -> "))
		}
		for _, dep := range w.LocalDependencyWorkspaceNames {
			if err := visit(dep, append(append([]string(nil), path...), dep)); err != nil {
				return err
			}
		}
		sorted = append(sorted, w)
		return nil
	}

	for _, name := range names {
		if err := visit(name, []string{name}); err != nil {
			return nil, err
		}
	}
	return sorted, nil
}

// Workspaces returns every workspace, root included, in topological order.
func (p *Project) Workspaces() []*Workspace {
	return append([]*Workspace(nil), p.sorted...)
}

// WorkspaceByName looks up a non-root workspace.
func (p *Project) WorkspaceByName(name string) (*Workspace, error) {
	w, ok := p.byName[name]
	if !ok {
		return nil, errorf(ErrUnknownWorkspace, "Could not find workspace named %s", name)
	}
	return w, nil
}

// WorkspaceByDir looks up a non-root workspace by absolute directory.
func (p *Project) WorkspaceByDir(dir string) (*Workspace, error) {
	w, ok := p.byDir[filepath.Clean(dir)]
	if !ok {
		return nil, errorf(ErrUnknownWorkspace, "Could not find workspace at %s", dir)
	}
	return w, nil
}

// Lookup finds any workspace, root included, by name.
func (p *Project) Lookup(name string) (*Workspace, bool) {
	if name == p.Root.Name {
		return p.Root, true
	}
	w, ok := p.byName[name]
	return w, ok
}

// Owning returns the innermost workspace containing dir, falling back to
// the root.
func (p *Project) Owning(dir string) *Workspace {
	dir = filepath.Clean(dir)
	for cur := dir; ; cur = filepath.Dir(cur) {
		if w, ok := p.byDir[cur]; ok {
			return w
		}
		if cur == p.Root.Dir || filepath.Dir(cur) == cur {
			return p.Root
		}
	}
}

// RelDir returns w's directory relative to the root, slash separated.
// The root itself is ".".
func (p *Project) RelDir(w *Workspace) string {
	rel, err := filepath.Rel(p.Root.Dir, w.Dir)
	if err != nil {
		return w.Dir
	}
	return filepath.ToSlash(rel)
}

// TransitiveDependencies returns the names of every workspace w depends on,
// directly or indirectly, sorted.
func (p *Project) TransitiveDependencies(w *Workspace) []string {
	seen := make(map[string]bool)
	var walk func(ws *Workspace)
	walk = func(ws *Workspace) {
		for _, dep := range ws.LocalDependencyWorkspaceNames {
			if seen[dep] {
				continue
			}
			seen[dep] = true
			if d, ok := p.Lookup(dep); ok {
				walk(d)
			}
		}
	}
	walk(w)
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// WithoutIgnoredWorkspaces returns a project without the workspaces whose
// directories match ignorePatterns. Relative patterns resolve against the
// root directory. The root is never removed.
func (p *Project) WithoutIgnoredWorkspaces(ignorePatterns []string) (*Project, error) {
	if len(ignorePatterns) == 0 {
		return p, nil
	}
	patterns := make([]string, 0, len(ignorePatterns))
	for _, pat := range ignorePatterns {
		neg := strings.HasPrefix(pat, "!")
		body := strings.TrimPrefix(pat, "!")
		if !filepath.IsAbs(body) {
			body = filepath.Join(p.Root.Dir, body)
		}
		if neg {
			body = "!" + body
		}
		patterns = append(patterns, body)
	}

	ignored := make(map[string]bool)
	for dir, w := range p.byDir {
		if glob.MatchAny(patterns, dir, glob.Options{Dot: true}) {
			ignored[w.Name] = true
		}
	}
	if len(ignored) == 0 {
		return p, nil
	}

	kept := make([]*Workspace, 0, len(p.byName))
	for name, w := range p.byName {
		if ignored[name] {
			continue
		}
		kept = append(kept, withoutDeps(w, ignored))
	}
	return New(withoutDeps(p.Root, ignored), kept, p.PackageManager)
}

func withoutDeps(w *Workspace, ignored map[string]bool) *Workspace {
	cp := w.clone()
	deps := cp.LocalDependencyWorkspaceNames[:0]
	for _, dep := range w.LocalDependencyWorkspaceNames {
		if !ignored[dep] {
			deps = append(deps, dep)
		}
	}
	cp.LocalDependencyWorkspaceNames = deps
	children := cp.ChildWorkspaceNames[:0]
	for _, c := range w.ChildWorkspaceNames {
		if !ignored[c] {
			children = append(children, c)
		}
	}
	cp.ChildWorkspaceNames = children
	return cp
}
