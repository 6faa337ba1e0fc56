package dag

import (
	"sort"

	"lazyweave/internal/core"
)

// GraphResult summarises one execution of a TaskGraph.
type GraphResult struct {
	GraphHash GraphHash

	// FinalState is the terminal state of each instance.
	FinalState ExecutionState

	// ExecutionOrder lists instances in the order they were dispatched.
	ExecutionOrder []string

	// Outcomes holds the runner's report for each dispatched instance.
	Outcomes map[string]*core.Outcome

	// Errors holds the failure of each FAILED instance.
	Errors map[string]error
}

// Failed returns the keys of failed instances, sorted.
func (r *GraphResult) Failed() []string {
	return r.keysIn(TaskFailed)
}

// Skipped returns the keys of skipped instances, sorted.
func (r *GraphResult) Skipped() []string {
	return r.keysIn(TaskSkipped)
}

// OK reports whether every instance completed or was cached.
func (r *GraphResult) OK() bool {
	for _, st := range r.FinalState {
		if !IsSuccessful(st) {
			return false
		}
	}
	return true
}

// Counts returns the number of instances per final state.
func (r *GraphResult) Counts() map[TaskState]int {
	out := make(map[TaskState]int)
	for _, st := range r.FinalState {
		out[st]++
	}
	return out
}

func (r *GraphResult) keysIn(s TaskState) []string {
	var out []string
	for k, st := range r.FinalState {
		if st == s {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}
