package dag

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lazyweave/internal/config"
	"lazyweave/internal/project"
)

func ptr[T any](v T) *T { return &v }

// planProject lays out
//
//	packages/core   build test
//	packages/utils        test   -> core
//	apps/app        build test   -> utils
//	apps/docs       build
func planProject(t *testing.T) *project.Project {
	t.Helper()
	root := &project.Workspace{Name: "root", Dir: "/repo", Scripts: map[string]string{"build": "lazy run build"}}
	list := []*project.Workspace{
		{Name: "core", Dir: "/repo/packages/core", Scripts: map[string]string{"build": "tsc -b", "test": "vitest run"}},
		{Name: "utils", Dir: "/repo/packages/utils", Scripts: map[string]string{"test": "vitest run"},
			LocalDependencyWorkspaceNames: []string{"core"}},
		{Name: "app", Dir: "/repo/apps/app", Scripts: map[string]string{"build": "vite build", "test": "vitest run"},
			LocalDependencyWorkspaceNames: []string{"utils"}},
		{Name: "docs", Dir: "/repo/apps/docs", Scripts: map[string]string{"build": "astro build"}},
	}
	p, err := project.New(root, list, project.PackageManagerPnpm)
	require.NoError(t, err)
	return p
}

func plan(t *testing.T, root *config.RootConfig, opts PlanOptions) *TaskGraph {
	t.Helper()
	g, err := BuildPlan(config.New(planProject(t), root, ""), opts)
	require.NoError(t, err)
	return g
}

func keys(g *TaskGraph) []string {
	var out []string
	for _, n := range g.Nodes() {
		out = append(out, n.Key)
	}
	return out
}

func TestBuildPlan_NearestProvidersLookThroughWorkspaces(t *testing.T) {
	g := plan(t, nil, PlanOptions{Task: "build"})

	assert.Equal(t, []string{"build::apps/app", "build::apps/docs", "build::packages/core"}, keys(g))
	assert.Equal(t, []Edge{{From: "build::packages/core", To: "build::apps/app"}}, g.Edges())
	assert.Equal(t, []string{"build::apps/docs", "build::packages/core", "build::apps/app"}, g.TopologicalOrder())

	app, ok := g.Node("build::apps/app")
	require.True(t, ok)
	assert.Equal(t, "build", app.Task.Name)
	assert.Equal(t, "app", app.Task.Workspace)
	assert.Equal(t, "/repo/apps/app", app.Task.Dir)
	assert.Equal(t, "vite build", app.Task.Command)
	assert.True(t, app.Task.Parallel)
	assert.Equal(t, "/repo/apps/app/.lazy/manifests/build", app.Task.Store.Path)
	assert.Equal(t, "/repo", app.Task.Inputs.RootDir)
	assert.Equal(t, "vite build", app.Task.Inputs.Command)
	assert.Equal(t, []string{"/repo/{yarn.lock,pnpm-lock.yaml,package-lock.json}", "/repo/lazy.config.*"},
		app.Task.Inputs.BaseInputs.Include)

	require.Len(t, app.Task.Inputs.Upstreams, 1)
	up := app.Task.Inputs.Upstreams[0]
	assert.Equal(t, "build::packages/core", up.Key)
	assert.True(t, up.InheritsInput)
	assert.True(t, up.UsesOutput)
	assert.Equal(t, "/repo/packages/core", up.Dir)
	assert.Equal(t, "/repo/packages/core/.lazy/manifests/build", up.ManifestPath)
	assert.Equal(t, []string{"**/*"}, up.Outputs.Include)
}

func TestBuildPlan_RootNeverHostsDependentInstance(t *testing.T) {
	g := plan(t, nil, PlanOptions{Task: "build"})
	_, ok := g.Node("build::<rootDir>")
	assert.False(t, ok)
}

func TestBuildPlan_TopLevelTask(t *testing.T) {
	g := plan(t, &config.RootConfig{Scripts: map[string]*config.ScriptConfig{
		"typecheck": {Execution: ptr(config.ExecutionTopLevel), BaseCommand: ptr("tsc -b <rootDir>")},
	}}, PlanOptions{Task: "typecheck"})

	require.Equal(t, []string{"typecheck::<rootDir>"}, keys(g))
	n, _ := g.Node("typecheck::<rootDir>")
	assert.Equal(t, "/repo", n.Task.Dir)
	assert.Equal(t, "tsc -b /repo", n.Task.Command)
	assert.False(t, n.Task.Parallel)
	assert.Empty(t, n.Task.Inputs.Upstreams)
}

func TestBuildPlan_RunsAfterScopes(t *testing.T) {
	cases := []struct {
		name  string
		scope *config.Scope
		preds map[string][]string
	}{
		{
			name: "all packages",
			preds: map[string][]string{
				"test::apps/app":       {"build::apps/app", "build::apps/docs", "build::packages/core", "test::packages/utils"},
				"test::packages/utils": {"build::apps/app", "build::apps/docs", "build::packages/core", "test::packages/core"},
				"test::packages/core":  {"build::apps/app", "build::apps/docs", "build::packages/core"},
			},
		},
		{
			name:  "self only",
			scope: ptr(config.ScopeSelfOnly),
			preds: map[string][]string{
				"test::apps/app":       {"build::apps/app", "test::packages/utils"},
				"test::packages/utils": {"test::packages/core"},
				"test::packages/core":  {"build::packages/core"},
			},
		},
		{
			name:  "self and dependencies",
			scope: ptr(config.ScopeSelfAndDependencies),
			preds: map[string][]string{
				"test::apps/app":       {"build::apps/app", "build::packages/core", "test::packages/utils"},
				"test::packages/utils": {"build::packages/core", "test::packages/core"},
				"test::packages/core":  {"build::packages/core"},
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			g := plan(t, &config.RootConfig{Scripts: map[string]*config.ScriptConfig{
				"test": {RunsAfter: map[string]config.RunsAfter{"build": {In: tc.scope}}},
			}}, PlanOptions{Task: "test"})
			for key, want := range tc.preds {
				assert.ElementsMatch(t, want, g.Dependencies(key), key)
			}
		})
	}
}

func TestBuildPlan_RunsAfterUpstreamFlags(t *testing.T) {
	g := plan(t, &config.RootConfig{Scripts: map[string]*config.ScriptConfig{
		"test": {
			RunsAfter: map[string]config.RunsAfter{"build": {In: ptr(config.ScopeSelfOnly), InheritsInput: ptr(true), UsesOutput: ptr(false)}},
			Cache:     &config.CacheConfig{InheritsInputFromDependencies: ptr(false)},
		},
	}}, PlanOptions{Task: "test"})

	n, ok := g.Node("test::apps/app")
	require.True(t, ok)
	require.Len(t, n.Task.Inputs.Upstreams, 2)

	byKey := map[string]bool{}
	for _, up := range n.Task.Inputs.Upstreams {
		byKey[up.Key] = true
		switch up.Key {
		case "test::packages/utils":
			assert.False(t, up.InheritsInput)
			assert.True(t, up.UsesOutput)
		case "build::apps/app":
			assert.True(t, up.InheritsInput)
			assert.False(t, up.UsesOutput)
		}
	}
	assert.True(t, byKey["test::packages/utils"] && byKey["build::apps/app"])
}

func TestBuildPlan_RunsAfterTopLevelPredecessor(t *testing.T) {
	g := plan(t, &config.RootConfig{Scripts: map[string]*config.ScriptConfig{
		"codegen": {Execution: ptr(config.ExecutionTopLevel), BaseCommand: ptr("gen")},
		"build":   {RunsAfter: map[string]config.RunsAfter{"codegen": {}}},
	}}, PlanOptions{Task: "build"})

	for _, key := range []string{"build::apps/app", "build::apps/docs", "build::packages/core"} {
		assert.Contains(t, g.Dependencies(key), "codegen::<rootDir>", key)
	}
}

func TestBuildPlan_Filter(t *testing.T) {
	g := plan(t, nil, PlanOptions{Task: "build", Filter: []string{"app"}})
	// core is still planned as a dependency of app
	assert.Equal(t, []string{"build::apps/app", "build::packages/core"}, keys(g))

	g = plan(t, nil, PlanOptions{Task: "build", Filter: []string{"apps/*"}})
	assert.Equal(t, []string{"build::apps/app", "build::apps/docs", "build::packages/core"}, keys(g))

	_, err := BuildPlan(config.New(planProject(t), nil, ""), PlanOptions{Task: "build", Filter: []string{"nope"}})
	assert.True(t, errors.Is(err, ErrNothingToRun))
	assert.Contains(t, err.Error(), "no workspace matching nope")
}

func TestBuildPlan_ExtraArgsChangeCommand(t *testing.T) {
	g := plan(t, nil, PlanOptions{Task: "build", ExtraArgs: []string{"--mode", "prod"}})
	n, _ := g.Node("build::apps/docs")
	assert.Equal(t, "astro build --mode prod", n.Task.Command)
	assert.Equal(t, "astro build --mode prod", n.Task.Inputs.Command)
}

func TestBuildPlan_ExtraArgsOnlyApplyToRequestedTask(t *testing.T) {
	g := plan(t, &config.RootConfig{Scripts: map[string]*config.ScriptConfig{
		"test": {RunsAfter: map[string]config.RunsAfter{"build": {In: ptr(config.ScopeSelfOnly)}}},
	}}, PlanOptions{Task: "test", ExtraArgs: []string{"--bail"}})

	n, _ := g.Node("test::apps/app")
	assert.Equal(t, "vitest run --bail", n.Task.Command)
	n, _ = g.Node("build::apps/app")
	assert.Equal(t, "vite build", n.Task.Command)
}

func TestBuildPlan_CacheDisabledAndEnvInputs(t *testing.T) {
	g := plan(t, &config.RootConfig{Scripts: map[string]*config.ScriptConfig{
		"build": {Cache: &config.CacheConfig{Disabled: true}},
		"test":  {Cache: &config.CacheConfig{EnvInputs: []string{"NODE_ENV"}}},
	}}, PlanOptions{Task: "build"})
	n, _ := g.Node("build::apps/app")
	assert.True(t, n.Task.CacheDisabled)
	assert.Empty(t, n.Task.Inputs.Upstreams)
	assert.Empty(t, n.Task.Inputs.RootDir)

	g = plan(t, &config.RootConfig{Scripts: map[string]*config.ScriptConfig{
		"test": {Cache: &config.CacheConfig{EnvInputs: []string{"NODE_ENV"}}},
	}}, PlanOptions{Task: "test", Env: []string{"NODE_ENV=production", "HOME=/home/me"}})
	n, _ = g.Node("test::packages/core")
	assert.Equal(t, []string{"NODE_ENV"}, n.Task.Inputs.EnvInputs)
	assert.Equal(t, "production", n.Task.Inputs.Env["NODE_ENV"])
}

func TestBuildPlan_RunsAfterCycle(t *testing.T) {
	_, err := BuildPlan(config.New(planProject(t), &config.RootConfig{Scripts: map[string]*config.ScriptConfig{
		"build": {RunsAfter: map[string]config.RunsAfter{"test": {In: ptr(config.ScopeSelfOnly)}}},
		"test":  {RunsAfter: map[string]config.RunsAfter{"build": {In: ptr(config.ScopeSelfOnly)}}},
	}}, ""), PlanOptions{Task: "build"})
	assert.True(t, errors.Is(err, ErrCycleFound), "got %v", err)
}

func TestBuildPlan_NothingToRun(t *testing.T) {
	_, err := BuildPlan(config.New(planProject(t), nil, ""), PlanOptions{Task: "deploy"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNothingToRun))
	assert.Equal(t, "nothing to run: no workspace has a script named 'deploy'", err.Error())
}

func TestBuildPlan_ConfigErrorsPropagate(t *testing.T) {
	root := &project.Workspace{Name: "root", Dir: "/repo"}
	p, err := project.New(root, []*project.Workspace{
		{Name: "a", Dir: "/repo/a", Scripts: map[string]string{"lint": "lazy inherit"}},
	}, project.PackageManagerNpm)
	require.NoError(t, err)

	_, err = BuildPlan(config.New(p, nil, ""), PlanOptions{Task: "lint"})
	assert.True(t, errors.Is(err, config.ErrMissingBaseCommand), "got %v", err)
}

func TestBuildPlan_Deterministic(t *testing.T) {
	a := plan(t, nil, PlanOptions{Task: "build"})
	b := plan(t, nil, PlanOptions{Task: "build"})
	assert.Equal(t, a.Hash(), b.Hash())
}
