package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// Execution selects where a task's command comes from.
type Execution string

const (
	// ExecutionDependent runs the workspace's own script in every workspace
	// that declares it, after the same task in its dependencies.
	ExecutionDependent Execution = "dependent"
	// ExecutionTopLevel runs baseCommand once, in the root workspace.
	ExecutionTopLevel Execution = "top-level"
)

// Scope selects which instances of a runsAfter predecessor must finish first.
type Scope string

const (
	ScopeAllPackages         Scope = "all-packages"
	ScopeSelfOnly            Scope = "self-only"
	ScopeSelfAndDependencies Scope = "self-and-dependencies"
)

// cacheDisabledMarker is the literal that turns caching off for a task.
const cacheDisabledMarker = "none"

// RootConfig is the decoded lazy.config file.
type RootConfig struct {
	Scripts          map[string]*ScriptConfig `json:"scripts,omitempty"`
	IgnoreWorkspaces []string                 `json:"ignoreWorkspaces,omitempty"`
	BaseCacheConfig  *BaseCacheConfig         `json:"baseCacheConfig,omitempty"`
}

// ScriptConfig is the raw configuration of one task. Pointer fields are nil
// when the file does not mention them so that overrides can be merged field
// by field.
type ScriptConfig struct {
	Execution          *Execution               `json:"execution,omitempty"`
	BaseCommand        *string                  `json:"baseCommand,omitempty"`
	Parallel           *bool                    `json:"parallel,omitempty"`
	RunsAfter          map[string]RunsAfter     `json:"runsAfter,omitempty"`
	Cache              *CacheConfig             `json:"cache,omitempty"`
	WorkspaceOverrides map[string]*ScriptConfig `json:"workspaceOverrides,omitempty"`
}

// RunsAfter declares a predecessor task.
type RunsAfter struct {
	UsesOutput    *bool  `json:"usesOutput,omitempty"`
	InheritsInput *bool  `json:"inheritsInput,omitempty"`
	In            *Scope `json:"in,omitempty"`
}

// CacheConfig is either the literal "none" or a structured cache spec.
type CacheConfig struct {
	Disabled bool

	EnvInputs                     []string
	Inputs                        *GlobConfig
	Outputs                       *GlobConfig
	InheritsInputFromDependencies *bool
	UsesOutputFromDependencies    *bool
}

type cacheConfigObject struct {
	EnvInputs                     []string    `json:"envInputs,omitempty"`
	Inputs                        *GlobConfig `json:"inputs,omitempty"`
	Outputs                       *GlobConfig `json:"outputs,omitempty"`
	InheritsInputFromDependencies *bool       `json:"inheritsInputFromDependencies,omitempty"`
	UsesOutputFromDependencies    *bool       `json:"usesOutputFromDependencies,omitempty"`
}

func (c *CacheConfig) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s != cacheDisabledMarker {
			return fmt.Errorf("cache must be %q or an object, got %q", cacheDisabledMarker, s)
		}
		*c = CacheConfig{Disabled: true}
		return nil
	}
	var obj cacheConfigObject
	if err := decodeStrict(data, &obj); err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	*c = CacheConfig{
		EnvInputs:                     obj.EnvInputs,
		Inputs:                        obj.Inputs,
		Outputs:                       obj.Outputs,
		InheritsInputFromDependencies: obj.InheritsInputFromDependencies,
		UsesOutputFromDependencies:    obj.UsesOutputFromDependencies,
	}
	return nil
}

func (c CacheConfig) MarshalJSON() ([]byte, error) {
	if c.Disabled {
		return json.Marshal(cacheDisabledMarker)
	}
	return json.Marshal(cacheConfigObject{
		EnvInputs:                     c.EnvInputs,
		Inputs:                        c.Inputs,
		Outputs:                       c.Outputs,
		InheritsInputFromDependencies: c.InheritsInputFromDependencies,
		UsesOutputFromDependencies:    c.UsesOutputFromDependencies,
	})
}

// GlobConfig is either a list of include patterns or an object with
// include and exclude lists. A nil list means "not specified".
type GlobConfig struct {
	Include []string `json:"include,omitempty"`
	Exclude []string `json:"exclude,omitempty"`
}

func (g *GlobConfig) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var include []string
		if err := json.Unmarshal(data, &include); err != nil {
			return err
		}
		if include == nil {
			include = []string{}
		}
		*g = GlobConfig{Include: include, Exclude: []string{}}
		return nil
	}
	type plain GlobConfig
	var obj plain
	if err := decodeStrict(data, &obj); err != nil {
		return err
	}
	*g = GlobConfig(obj)
	return nil
}

// BaseCacheConfig applies to every cached task in the project.
type BaseCacheConfig struct {
	Include   []string `json:"include,omitempty"`
	Exclude   []string `json:"exclude,omitempty"`
	EnvInputs []string `json:"envInputs,omitempty"`
}

// decodeStrict decodes a single JSON value, rejecting unknown fields and
// trailing data.
func decodeStrict(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	var trailing any
	if err := dec.Decode(&trailing); err != io.EOF {
		if err == nil {
			return fmt.Errorf("trailing data")
		}
		return err
	}
	return nil
}
