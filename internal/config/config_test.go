package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lazyweave/internal/project"
)

func ptr[T any](v T) *T { return &v }

func testProject(t *testing.T) (*project.Project, map[string]*project.Workspace) {
	t.Helper()
	root := &project.Workspace{Name: "root", Dir: "/repo", Scripts: map[string]string{"lint": "eslint ."}}
	ws := map[string]*project.Workspace{
		"pkg-a": {Name: "pkg-a", Dir: "/repo/packages/pkg-a", Scripts: map[string]string{
			"test":  "NODE_ENV=test pkgmgr run lazy inherit --watch",
			"build": "tsc -p <rootDir>/tsconfig.json",
		}},
		"pkg-b": {Name: "pkg-b", Dir: "/repo/packages/pkg-b", Scripts: map[string]string{"test": "lazy inherit"}},
		"tool":  {Name: "tool", Dir: "/repo/tools/tool", Scripts: map[string]string{"build": "go build"}},
	}
	list := make([]*project.Workspace, 0, len(ws))
	for _, w := range ws {
		list = append(list, w)
	}
	p, err := project.New(root, list, project.PackageManagerPnpm)
	require.NoError(t, err)
	ws["root"] = root
	return p, ws
}

func TestTaskConfig_Defaults(t *testing.T) {
	p, ws := testProject(t)
	c := New(p, nil, "")

	tc, err := c.Task(ws["tool"], "build")
	require.NoError(t, err)
	assert.Equal(t, ExecutionDependent, tc.Execution())
	assert.True(t, tc.Parallel())
	assert.Empty(t, tc.RunsAfter())

	cache := tc.Cache()
	assert.False(t, cache.Disabled)
	assert.Equal(t, []string{"**/*"}, cache.Inputs.Include)
	assert.Empty(t, cache.Inputs.Exclude)
	assert.True(t, cache.InheritsInputFromDependencies)
	assert.True(t, cache.UsesOutputFromDependencies)

	cmd, err := tc.Command()
	require.NoError(t, err)
	assert.Equal(t, "go build", cmd)

	assert.Equal(t, "build::tools/tool", tc.Key())
	assert.Equal(t, "/repo/tools/tool/.lazy/manifests/build", tc.ManifestPath())
	assert.Equal(t, "/repo/tools/tool/.lazy/manifests/build.prev", tc.PrevManifestPath())
	assert.Equal(t, "/repo/tools/tool/.lazy/diffs/build", tc.DiffPath())
}

func TestTaskConfig_InheritanceSubstitution(t *testing.T) {
	p, ws := testProject(t)
	c := New(p, &RootConfig{Scripts: map[string]*ScriptConfig{
		"test": {BaseCommand: ptr("jest")},
	}}, "")

	tc, err := c.Task(ws["pkg-a"], "test")
	require.NoError(t, err)
	cmd, err := tc.Command()
	require.NoError(t, err)
	assert.Equal(t, "NODE_ENV=test jest --watch", cmd)

	tc, err = c.Task(ws["pkg-b"], "test")
	require.NoError(t, err)
	cmd, err = tc.Command()
	require.NoError(t, err)
	assert.Equal(t, "jest", cmd)
}

func TestTaskConfig_InheritWithoutBaseCommand(t *testing.T) {
	p, ws := testProject(t)
	c := New(p, nil, "")

	tc, err := c.Task(ws["pkg-b"], "test")
	require.NoError(t, err)
	_, err = tc.Command()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingBaseCommand)
	assert.Contains(t, err.Error(), "no baseCommand configured for the task 'test'")
}

func TestTaskConfig_MissingScript(t *testing.T) {
	p, ws := testProject(t)
	c := New(p, nil, "")

	tc, err := c.Task(ws["tool"], "test")
	require.NoError(t, err)
	_, err = tc.Command()
	assert.ErrorIs(t, err, ErrMissingCommand)
	assert.Contains(t, err.Error(), "No command found for script test in /repo/tools/tool/package.json")
}

func TestTaskConfig_RootDirSubstitution(t *testing.T) {
	p, ws := testProject(t)
	c := New(p, nil, "")

	tc, err := c.Task(ws["pkg-a"], "build")
	require.NoError(t, err)
	cmd, err := tc.Command()
	require.NoError(t, err)
	assert.Equal(t, "tsc -p /repo/tsconfig.json", cmd)
}

func TestTaskConfig_TopLevel(t *testing.T) {
	p, ws := testProject(t)
	c := New(p, &RootConfig{Scripts: map[string]*ScriptConfig{
		"format": {
			Execution:   ptr(ExecutionTopLevel),
			BaseCommand: ptr("prettier --write <rootDir>"),
			RunsAfter:   map[string]RunsAfter{"build": {}},
			WorkspaceOverrides: map[string]*ScriptConfig{
				"**": {Parallel: ptr(true)},
			},
		},
		"deploy": {Execution: ptr(ExecutionTopLevel)},
	}}, "")

	assert.True(t, c.IsTopLevel("format"))
	assert.False(t, c.IsTopLevel("build"))

	tc, err := c.Task(ws["root"], "format")
	require.NoError(t, err)
	assert.False(t, tc.Parallel())
	assert.Empty(t, tc.RunsAfter())
	assert.False(t, tc.Cache().InheritsInputFromDependencies)
	assert.False(t, tc.Cache().UsesOutputFromDependencies)
	assert.Equal(t, "format::<rootDir>", tc.Key())

	cmd, err := tc.Command()
	require.NoError(t, err)
	assert.Equal(t, "prettier --write /repo", cmd)

	deploy, err := c.Task(ws["root"], "deploy")
	require.NoError(t, err)
	_, err = deploy.Command()
	assert.ErrorIs(t, err, ErrMissingBaseCommand)
}

func TestTaskConfig_OverrideMultipleNameMatches(t *testing.T) {
	p, ws := testProject(t)
	c := New(p, &RootConfig{Scripts: map[string]*ScriptConfig{
		"test": {WorkspaceOverrides: map[string]*ScriptConfig{
			"pkg-a": {Parallel: ptr(false)},
			"pkg-*": {Parallel: ptr(true)},
		}},
	}}, "")

	_, err := c.Task(ws["pkg-a"], "test")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAmbiguousOverride)
	assert.Equal(t,
		"Workspace 'packages/pkg-a' matched multiple overrides for script \"test\": ['pkg-*', 'pkg-a']\n"+
			"Please make sure that the workspace only matches one override.",
		err.Error())

	// pkg-b only matches one pattern
	tc, err := c.Task(ws["pkg-b"], "test")
	require.NoError(t, err)
	assert.True(t, tc.Parallel())
}

func TestTaskConfig_OverrideNameAndDirDisagree(t *testing.T) {
	p, ws := testProject(t)
	c := New(p, &RootConfig{Scripts: map[string]*ScriptConfig{
		"build": {WorkspaceOverrides: map[string]*ScriptConfig{
			"tool":    {Parallel: ptr(false)},
			"tools/*": {Parallel: ptr(true)},
		}},
	}}, "")

	_, err := c.Task(ws["tool"], "build")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAmbiguousOverride)
	assert.Contains(t, err.Error(), "['tool', 'tools/*']")
}

func TestTaskConfig_OverrideMergesFieldByField(t *testing.T) {
	p, ws := testProject(t)
	c := New(p, &RootConfig{Scripts: map[string]*ScriptConfig{
		"build": {
			BaseCommand: ptr("tsc"),
			Parallel:    ptr(false),
			Cache: &CacheConfig{
				Inputs: &GlobConfig{Include: []string{"src/**/*"}},
			},
			RunsAfter: map[string]RunsAfter{"codegen": {In: ptr(ScopeSelfOnly)}},
			WorkspaceOverrides: map[string]*ScriptConfig{
				"packages/*": {Cache: &CacheConfig{Disabled: true}},
			},
		},
	}}, "")

	tc, err := c.Task(ws["pkg-a"], "build")
	require.NoError(t, err)
	assert.True(t, tc.Cache().Disabled)
	assert.False(t, tc.Parallel())
	base, ok := tc.BaseCommand()
	assert.True(t, ok)
	assert.Equal(t, "tsc", base)
	assert.Equal(t, []RunsAfterEntry{{Task: "codegen", UsesOutput: true, InheritsInput: false, In: ScopeSelfOnly}}, tc.RunsAfter())

	tool, err := c.Task(ws["tool"], "build")
	require.NoError(t, err)
	assert.False(t, tool.Cache().Disabled)
	assert.Equal(t, []string{"src/**/*"}, tool.Cache().Inputs.Include)
}

func TestBaseCache(t *testing.T) {
	p, _ := testProject(t)

	def := New(p, nil, "").BaseCache()
	assert.Equal(t, []string{
		"/repo/{yarn.lock,pnpm-lock.yaml,package-lock.json}",
		"/repo/lazy.config.*",
	}, def.Include)
	assert.Empty(t, def.Exclude)
	assert.Empty(t, def.EnvInputs)

	custom := New(p, &RootConfig{BaseCacheConfig: &BaseCacheConfig{
		Include:   []string{"<rootDir>/tsconfig.json"},
		EnvInputs: []string{"CI"},
	}}, "").BaseCache()
	assert.Equal(t, []string{"/repo/tsconfig.json"}, custom.Include)
	assert.Equal(t, []string{"CI"}, custom.EnvInputs)
}

func TestTaskKey(t *testing.T) {
	p, _ := testProject(t)
	c := New(p, nil, "")

	key, err := c.TaskKey("/repo", "build")
	require.NoError(t, err)
	assert.Equal(t, "build::<rootDir>", key)

	key, err = c.TaskKey("/repo/packages/pkg-a", "build")
	require.NoError(t, err)
	assert.Equal(t, "build::packages/pkg-a", key)

	_, err = c.TaskKey("packages/pkg-a", "build")
	assert.Error(t, err)
}

func TestExtractInheritMatch(t *testing.T) {
	cases := []struct {
		script string
		ok     bool
		env    string
		args   string
	}{
		{"lazy inherit", true, "", ""},
		{"lazy inherit --coverage", true, "", "--coverage"},
		{"yarn run -T lazy inherit", true, "", ""},
		{"A=1 B=2 pnpm run lazy inherit x y", true, "A=1 B=2", "x y"},
		{"jest", false, "", ""},
		{"echo lazy inherit", false, "", ""},
		{"lazy inheritance", false, "", ""},
	}
	for _, tc := range cases {
		m, ok := ExtractInheritMatch(tc.script)
		assert.Equal(t, tc.ok, ok, tc.script)
		assert.Equal(t, tc.env, m.EnvVars, tc.script)
		assert.Equal(t, tc.args, m.ExtraArgs, tc.script)
	}
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "build", Slugify("build"))
	assert.Equal(t, "test-unit", Slugify("test-unit"))

	assertDigested := func(name, base string) {
		t.Helper()
		got := Slugify(name)
		assert.True(t, strings.HasPrefix(got, base+"."), "%q -> %q", name, got)
		assert.Len(t, got, len(base)+1+slugDigestLen, name)
		assert.Equal(t, got, Slugify(name), "stable")
	}
	assertDigested("test:unit", "test-unit")
	assertDigested("buildAll", "build-all")
	assertDigested("lint --fix", "lint-fix")
	assertDigested("::", "task")
	assertDigested("构建", "task")
}

func TestSlugify_DistinctNamesNeverShareAFile(t *testing.T) {
	names := []string{
		"test:unit", "test-unit", "test_unit", "Test-Unit",
		"buildAll", "build-all", "build:all",
		"构建", "テスト", "::", "task",
		"lint", "lint --fix", "lint:fix",
	}
	seen := make(map[string]string, len(names))
	for _, name := range names {
		file := Slugify(name)
		if other, ok := seen[file]; ok {
			t.Fatalf("%q and %q share manifest file %q", other, name, file)
		}
		seen[file] = name
	}
}

func TestManifestPaths_DistinctPerTaskName(t *testing.T) {
	p, ws := testProject(t)
	cfg := New(p, &RootConfig{}, "")
	w := ws["pkg-a"]

	colon := &TaskConfig{cfg: cfg, Workspace: w, Name: "test:unit"}
	dash := &TaskConfig{cfg: cfg, Workspace: w, Name: "test-unit"}
	assert.NotEqual(t, colon.ManifestPath(), dash.ManifestPath())
	assert.NotEqual(t, colon.DiffPath(), dash.DiffPath())
	assert.Equal(t, filepath.Join(w.Dir, HiddenDir, "manifests", "test-unit"), dash.ManifestPath())
}

func TestParse_Formats(t *testing.T) {
	jsonc := []byte(`{
		// comments are allowed
		"scripts": {"build": {"cache": {"inputs": ["src/**/*"]}, "runsAfter": {"codegen": {"in": "self-only"}}}},
		"ignoreWorkspaces": ["examples/*"],
	}`)
	yml := []byte("scripts:\n  build:\n    cache:\n      inputs: ['src/**/*']\n    runsAfter:\n      codegen:\n        in: self-only\nignoreWorkspaces:\n  - examples/*\n")
	tml := []byte("ignoreWorkspaces = ['examples/*']\n[scripts.build.cache]\ninputs = ['src/**/*']\n[scripts.build.runsAfter.codegen]\nin = 'self-only'\n")

	for ext, data := range map[string][]byte{".jsonc": jsonc, ".yaml": yml, ".toml": tml} {
		cfg, err := Parse(ext, data)
		require.NoError(t, err, ext)
		assert.Equal(t, []string{"examples/*"}, cfg.IgnoreWorkspaces, ext)
		build := cfg.Scripts["build"]
		require.NotNil(t, build, ext)
		assert.Equal(t, []string{"src/**/*"}, build.Cache.Inputs.Include, ext)
		assert.Equal(t, []string{}, build.Cache.Inputs.Exclude, ext)
		assert.Equal(t, ScopeSelfOnly, *build.RunsAfter["codegen"].In, ext)
	}
}

func TestParse_CacheNone(t *testing.T) {
	cfg, err := Parse(".json", []byte(`{"scripts": {"dev": {"cache": "none"}}}`))
	require.NoError(t, err)
	assert.True(t, cfg.Scripts["dev"].Cache.Disabled)

	_, err = Parse(".json", []byte(`{"scripts": {"dev": {"cache": "off"}}}`))
	assert.Error(t, err)
}

func TestParse_Rejects(t *testing.T) {
	cases := map[string]string{
		"unknown field":     `{"scripts": {"build": {"paralel": true}}}`,
		"unknown cache key": `{"scripts": {"build": {"cache": {"input": []}}}}`,
		"bad execution":     `{"scripts": {"build": {"execution": "sometimes"}}}`,
		"bad scope":         `{"scripts": {"build": {"runsAfter": {"x": {"in": "everywhere"}}}}}`,
		"nested overrides":  `{"scripts": {"build": {"workspaceOverrides": {"a": {"workspaceOverrides": {"b": {}}}}}}}`,
	}
	for name, src := range cases {
		_, err := Parse(".json", []byte(src))
		assert.Error(t, err, name)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	loaded, err := Load(dir)
	require.NoError(t, err)
	assert.Empty(t, loaded.FilePath)
	assert.NotNil(t, loaded.Config)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "lazy.config.json"), []byte(`{"scripts": {"build": {}}}`), 0o644))
	loaded, err = Load(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "lazy.config.json"), loaded.FilePath)
	assert.Contains(t, loaded.Config.Scripts, "build")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "lazy.config.yaml"), []byte("scripts: {}\n"), 0o644))
	_, err = Load(dir)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMultipleConfigFiles)
	assert.Contains(t, err.Error(), "Found multiple lazy config files in dir")
	assert.Contains(t, err.Error(), "lazy.config.json, lazy.config.yaml")

	require.NoError(t, os.Remove(filepath.Join(dir, "lazy.config.yaml")))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "lazy.config.json"), []byte(`{"scripts": 3}`), 0o644))
	_, err = Load(dir)
	var cfgErr *Error
	require.True(t, errors.As(err, &cfgErr))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestFromDir_IgnoresWorkspaces(t *testing.T) {
	root := t.TempDir()
	write := func(rel, content string) {
		p := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	write("package.json", `{"name": "mono", "workspaces": ["packages/*", "examples/*"]}`)
	write("package-lock.json", `{}`)
	write("packages/a/package.json", `{"name": "a"}`)
	write("examples/demo/package.json", `{"name": "demo", "dependencies": {"a": "*"}}`)
	write("lazy.config.yml", "ignoreWorkspaces:\n  - examples/*\n")

	c, err := FromDir(root, nil)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "lazy.config.yml"), c.FilePath)
	_, ok := c.Project.Lookup("demo")
	assert.False(t, ok)
	_, ok = c.Project.Lookup("a")
	assert.True(t, ok)
}
