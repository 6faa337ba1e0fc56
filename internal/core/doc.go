// Package core runs a single task instance.
//
// A Task is one named script bound to one workspace, with its command and
// cache inputs fully resolved. The Runner applies the manifest protocol to
// decide whether the task must execute:
//
//  1. set the previous manifest aside
//  2. build and write the current manifest
//  3. compare the two; identical manifests are a cache hit
//  4. otherwise execute the command, deleting the manifest on failure
//
// The Executor runs commands through sh in the task's workspace directory,
// streaming output line by line through a Console that prefixes every line
// with the task key.
package core
