// Package dag schedules task instances.
//
// It is split into:
//   - an immutable TaskGraph of task instances keyed by task key, with a
//     stable GraphHash that does not depend on insertion order
//   - BuildPlan, which derives the graph for a requested task from the
//     workspace graph and the root configuration
//   - an Executor holding the mutable ExecutionState of one run, which
//     dispatches ready instances to a TaskRunner in (depth, key) order
//
// A failed instance is marked FAILED and every instance depending on it,
// directly or transitively, is SKIPPED. Independent instances keep running.
package dag
