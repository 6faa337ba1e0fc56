// Package project discovers the workspaces of a monorepo and orders them.
//
// Discovery starts at the root workspace and follows each workspace's child
// globs depth first. Hydration runs in two passes: the first registers every
// workspace by name and records structural children, the second narrows each
// workspace's declared dependencies to the names present in the project.
// The resulting Project is immutable; WithoutIgnoredWorkspaces returns a new
// one.
package project
