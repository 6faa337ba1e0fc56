package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"lazyweave/internal/glob"
)

// configFilePattern locates root config files. Only data formats are
// accepted.
const configFilePattern = "lazy.config.{json,jsonc,yaml,yml,toml}"

// Loaded is the result of reading the root config file. FilePath is empty
// when no config file exists.
type Loaded struct {
	Config   *RootConfig
	FilePath string
}

// Load finds and decodes the config file in rootDir.
func Load(rootDir string) (*Loaded, error) {
	files, err := glob.Glob([]string{configFilePattern}, glob.Options{Cwd: rootDir})
	if err != nil {
		return nil, fmt.Errorf("locate config file: %w", err)
	}
	sort.Strings(files)

	if len(files) > 1 {
		names := make([]string, 0, len(files))
		for _, f := range files {
			names = append(names, filepath.Base(f))
		}
		return nil, &Error{
			Kind:   ErrMultipleConfigFiles,
			Msg:    fmt.Sprintf("Found multiple lazy config files in dir '%s'.", rootDir),
			Detail: "Remove all but one of the following files: " + strings.Join(names, ", "),
		}
	}
	if len(files) == 0 {
		return &Loaded{Config: &RootConfig{}}, nil
	}

	file := files[0]
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	cfg, err := Parse(filepath.Ext(file), data)
	if err != nil {
		return nil, &Error{
			Kind:   ErrInvalidConfig,
			Msg:    fmt.Sprintf("Failed reading config file at '%s'", file),
			Detail: err.Error(),
		}
	}
	return &Loaded{Config: cfg, FilePath: file}, nil
}

// Parse decodes config data in the format named by ext (".json", ".jsonc",
// ".yaml", ".yml" or ".toml") and validates it.
func Parse(ext string, data []byte) (*RootConfig, error) {
	var normalized []byte
	switch strings.ToLower(ext) {
	case ".json", ".jsonc":
		normalized = jsonc.ToJSON(data)
	case ".yaml", ".yml":
		var tree any
		if err := yaml.Unmarshal(data, &tree); err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
		b, err := treeToJSON(tree)
		if err != nil {
			return nil, err
		}
		normalized = b
	case ".toml":
		var tree map[string]any
		if err := toml.Unmarshal(data, &tree); err != nil {
			return nil, fmt.Errorf("parse toml: %w", err)
		}
		b, err := treeToJSON(tree)
		if err != nil {
			return nil, err
		}
		normalized = b
	default:
		return nil, fmt.Errorf("unsupported config format %q", ext)
	}

	var cfg RootConfig
	if len(strings.TrimSpace(string(normalized))) == 0 || strings.TrimSpace(string(normalized)) == "null" {
		return &cfg, nil
	}
	if err := decodeStrict(normalized, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// treeToJSON re-encodes a generic YAML or TOML document as JSON.
func treeToJSON(tree any) ([]byte, error) {
	v, err := normalizeTree(tree)
	if err != nil {
		return nil, err
	}
	return json.Marshal(v)
}

func normalizeTree(v any) (any, error) {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			n, err := normalizeTree(val)
			if err != nil {
				return nil, err
			}
			out[k] = n
		}
		return out, nil
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			key, ok := k.(string)
			if !ok {
				key = fmt.Sprint(k)
			}
			n, err := normalizeTree(val)
			if err != nil {
				return nil, err
			}
			out[key] = n
		}
		return out, nil
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			n, err := normalizeTree(val)
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	default:
		return v, nil
	}
}

// Validate checks enumerated values and structural constraints that the
// decoder cannot express.
func (c *RootConfig) Validate() error {
	names := make([]string, 0, len(c.Scripts))
	for name := range c.Scripts {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		sc := c.Scripts[name]
		if sc == nil {
			continue
		}
		if err := sc.validate("scripts." + name); err != nil {
			return err
		}
		patterns := make([]string, 0, len(sc.WorkspaceOverrides))
		for p := range sc.WorkspaceOverrides {
			patterns = append(patterns, p)
		}
		sort.Strings(patterns)
		for _, p := range patterns {
			o := sc.WorkspaceOverrides[p]
			if o == nil {
				continue
			}
			field := fmt.Sprintf("scripts.%s.workspaceOverrides[%q]", name, p)
			if len(o.WorkspaceOverrides) > 0 {
				return fmt.Errorf("%s: workspaceOverrides cannot be nested", field)
			}
			if o.Execution != nil && *o.Execution == ExecutionTopLevel {
				return fmt.Errorf("%s: an override cannot make a task top-level", field)
			}
			if err := o.validate(field); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *ScriptConfig) validate(field string) error {
	if s.Execution != nil {
		switch *s.Execution {
		case ExecutionDependent, ExecutionTopLevel:
		default:
			return fmt.Errorf("%s.execution: invalid value %q (expected dependent|top-level)", field, *s.Execution)
		}
	}
	for pred, ra := range s.RunsAfter {
		if ra.In == nil {
			continue
		}
		switch *ra.In {
		case ScopeAllPackages, ScopeSelfOnly, ScopeSelfAndDependencies:
		default:
			return fmt.Errorf("%s.runsAfter.%s.in: invalid value %q (expected all-packages|self-only|self-and-dependencies)", field, pred, *ra.In)
		}
	}
	return nil
}
