// Package config loads the root lazy.config file and resolves the effective
// configuration of a task in a given workspace.
//
// Exactly one of lazy.config.{json,jsonc,yaml,yml,toml} may exist in the root
// directory; none means defaults. Every format is normalised to the same
// generic tree and decoded strictly into RootConfig.
//
// Resolution is a pure function of (workspace, task name, RootConfig):
// workspace overrides are matched by name and by directory, merged field by
// field over the task's base ScriptConfig, and the command is derived from
// the workspace script, with "lazy inherit" invocations expanded against the
// configured baseCommand.
package config
