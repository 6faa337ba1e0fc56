package project

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

const (
	manifestFile      = "package.json"
	pnpmWorkspaceFile = "pnpm-workspace.yaml"
)

// Workspace is a package directory participating in the project graph.
type Workspace struct {
	Name string
	// Dir is absolute and clean.
	Dir     string
	Scripts map[string]string

	ChildWorkspaceGlobs []string
	// AllDependencyNames is every declared dependency, sorted.
	AllDependencyNames []string

	// Populated during hydration.
	ChildWorkspaceNames           []string
	LocalDependencyWorkspaceNames []string
}

// HasScript reports whether the workspace declares script name.
func (w *Workspace) HasScript(name string) bool {
	_, ok := w.Scripts[name]
	return ok
}

func (w *Workspace) clone() *Workspace {
	cp := *w
	cp.ChildWorkspaceNames = append([]string(nil), w.ChildWorkspaceNames...)
	cp.LocalDependencyWorkspaceNames = append([]string(nil), w.LocalDependencyWorkspaceNames...)
	return &cp
}

type packageManifest struct {
	Name                 string            `json:"name"`
	Scripts              map[string]string `json:"scripts"`
	Workspaces           json.RawMessage   `json:"workspaces"`
	Dependencies         map[string]string `json:"dependencies"`
	DevDependencies      map[string]string `json:"devDependencies"`
	PeerDependencies     map[string]string `json:"peerDependencies"`
	OptionalDependencies map[string]string `json:"optionalDependencies"`
}

// workspaceGlobs accepts both `"workspaces": [...]` and
// `"workspaces": {"packages": [...]}`.
func (m *packageManifest) workspaceGlobs() ([]string, error) {
	if len(m.Workspaces) == 0 || string(m.Workspaces) == "null" {
		return nil, nil
	}
	var list []string
	if err := json.Unmarshal(m.Workspaces, &list); err == nil {
		return list, nil
	}
	var obj struct {
		Packages []string `json:"packages"`
	}
	if err := json.Unmarshal(m.Workspaces, &obj); err != nil {
		return nil, fmt.Errorf("workspaces must be an array or an object with packages: %w", err)
	}
	return obj.Packages, nil
}

func readPackageManifest(dir string) (*packageManifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, manifestFile))
	if err != nil {
		return nil, err
	}
	var m packageManifest
	if err := json.Unmarshal(jsonc.ToJSON(data), &m); err != nil {
		return nil, errorf(ErrInvalidManifest, "failed to parse %s: %v", filepath.Join(dir, manifestFile), err)
	}
	return &m, nil
}

func readPnpmWorkspaceGlobs(dir string) ([]string, error) {
	data, err := os.ReadFile(filepath.Join(dir, pnpmWorkspaceFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var doc struct {
		Packages []string `yaml:"packages"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errorf(ErrInvalidManifest, "failed to parse %s: %v", filepath.Join(dir, pnpmWorkspaceFile), err)
	}
	return doc.Packages, nil
}

// loadWorkspace reads the workspace descriptor in dir. A root workspace
// without a name is named after its directory.
func loadWorkspace(dir string, isRoot bool) (*Workspace, error) {
	m, err := readPackageManifest(dir)
	if err != nil {
		return nil, err
	}
	name := m.Name
	if name == "" {
		if !isRoot {
			return nil, errorf(ErrInvalidManifest, "%s has no name", filepath.Join(dir, manifestFile))
		}
		name = filepath.Base(dir)
	}

	globs, err := m.workspaceGlobs()
	if err != nil {
		return nil, errorf(ErrInvalidManifest, "%s: %v", filepath.Join(dir, manifestFile), err)
	}
	pnpmGlobs, err := readPnpmWorkspaceGlobs(dir)
	if err != nil {
		return nil, err
	}
	globs = append(globs, pnpmGlobs...)

	deps := make(map[string]struct{})
	for _, group := range []map[string]string{m.Dependencies, m.DevDependencies, m.PeerDependencies, m.OptionalDependencies} {
		for dep := range group {
			deps[dep] = struct{}{}
		}
	}
	allDeps := make([]string, 0, len(deps))
	for dep := range deps {
		allDeps = append(allDeps, dep)
	}
	sort.Strings(allDeps)

	scripts := m.Scripts
	if scripts == nil {
		scripts = map[string]string{}
	}

	return &Workspace{
		Name:                name,
		Dir:                 filepath.Clean(dir),
		Scripts:             scripts,
		ChildWorkspaceGlobs: globs,
		AllDependencyNames:  allDeps,
	}, nil
}

// declaresWorkspaces reports whether dir looks like a monorepo root.
func declaresWorkspaces(dir string) bool {
	if _, err := os.Stat(filepath.Join(dir, pnpmWorkspaceFile)); err == nil {
		return true
	}
	m, err := readPackageManifest(dir)
	if err != nil {
		return false
	}
	globs, err := m.workspaceGlobs()
	return err == nil && len(globs) > 0
}

// findRootDir walks up from dir to the nearest directory declaring child
// workspaces, falling back to the nearest directory with a package.json.
func findRootDir(dir string) (string, error) {
	dir = filepath.Clean(dir)
	nearest := ""
	for cur := dir; ; cur = filepath.Dir(cur) {
		if _, err := os.Stat(filepath.Join(cur, manifestFile)); err == nil {
			if nearest == "" {
				nearest = cur
			}
			if declaresWorkspaces(cur) {
				return cur, nil
			}
		}
		if filepath.Dir(cur) == cur {
			break
		}
	}
	if nearest == "" {
		return "", errorf(ErrNoRootWorkspace, "Could not find root workspace from directory %s", dir)
	}
	return nearest, nil
}
