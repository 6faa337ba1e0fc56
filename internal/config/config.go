package config

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"lazyweave/internal/logging"
	"lazyweave/internal/project"
)

const (
	// HiddenDir holds per-workspace and per-project state.
	HiddenDir = ".lazy"
	// RootDirToken is replaced by the absolute root directory in commands
	// and cache patterns.
	RootDirToken = "<rootDir>"
)

// Config binds a project to its root configuration.
type Config struct {
	Project  *project.Project
	Root     *RootConfig
	FilePath string
}

// New wraps an already loaded project and configuration.
func New(p *project.Project, root *RootConfig, filePath string) *Config {
	if root == nil {
		root = &RootConfig{}
	}
	return &Config{Project: p, Root: root, FilePath: filePath}
}

// FromDir discovers the project containing dir, loads its config file and
// removes ignored workspaces.
func FromDir(dir string, logger *slog.Logger) (*Config, error) {
	if logger == nil {
		logger = logging.Discard()
	}
	p, err := project.FromDir(dir, logger)
	if err != nil {
		return nil, err
	}
	loaded, err := Load(p.Root.Dir)
	if err != nil {
		return nil, err
	}
	p, err = p.WithoutIgnoredWorkspaces(loaded.Config.IgnoreWorkspaces)
	if err != nil {
		return nil, err
	}

	if loaded.FilePath == "" {
		logger.Info("No config files found, using default configuration.")
	} else {
		rel, err := filepath.Rel(p.Root.Dir, loaded.FilePath)
		if err != nil {
			rel = loaded.FilePath
		}
		logger.Info("Loaded config file: " + rel)
	}
	return New(p, loaded.Config, loaded.FilePath), nil
}

func (c *Config) rawScript(name string) *ScriptConfig {
	if c.Root == nil || c.Root.Scripts == nil {
		return nil
	}
	return c.Root.Scripts[name]
}

// IsTopLevel reports whether task name is configured as top-level.
func (c *Config) IsTopLevel(name string) bool {
	sc := c.rawScript(name)
	return sc != nil && sc.Execution != nil && *sc.Execution == ExecutionTopLevel
}

// TaskKey identifies a task instance: "<task>::<dir relative to root>", with
// the root itself rendered as <rootDir>.
func (c *Config) TaskKey(dir, name string) (string, error) {
	if !filepath.IsAbs(dir) {
		return "", fmt.Errorf("taskKey: taskDir must be absolute: %s", dir)
	}
	rel, err := filepath.Rel(c.Project.Root.Dir, dir)
	if err != nil {
		return "", fmt.Errorf("taskKey: %w", err)
	}
	if rel == "." {
		rel = RootDirToken
	}
	return name + "::" + filepath.ToSlash(rel), nil
}

// BaseCache is the resolved project-wide cache configuration.
type BaseCache struct {
	Include   []string
	Exclude   []string
	EnvInputs []string
}

// BaseCache resolves baseCacheConfig. By default every cached task depends
// on the lockfiles and the config file in the root.
func (c *Config) BaseCache() BaseCache {
	var raw BaseCacheConfig
	if c.Root != nil && c.Root.BaseCacheConfig != nil {
		raw = *c.Root.BaseCacheConfig
	}
	include := raw.Include
	if include == nil {
		include = []string{
			RootDirToken + "/{yarn.lock,pnpm-lock.yaml,package-lock.json}",
			RootDirToken + "/lazy.config.*",
		}
	}
	return BaseCache{
		Include:   c.expandRootDir(include),
		Exclude:   c.expandRootDir(raw.Exclude),
		EnvInputs: append([]string{}, raw.EnvInputs...),
	}
}

func (c *Config) expandRootDir(patterns []string) []string {
	out := make([]string, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, strings.ReplaceAll(p, RootDirToken, c.Project.Root.Dir))
	}
	return out
}
