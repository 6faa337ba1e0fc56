// Package runlog keeps a record of recent runs under <root>/.lazy/runs.
//
// Each run directory holds run.json (task, graph hash, timing, status and
// per-state counts) and, for runs that did not succeed, failure.json with the
// classified cause. Only the newest DefaultKeep runs are retained.
package runlog
