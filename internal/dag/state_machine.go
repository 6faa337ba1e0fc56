package dag

import (
	"container/heap"
	"fmt"
)

// IsTerminal reports whether the state is final.
func IsTerminal(s TaskState) bool {
	switch s {
	case TaskCompleted, TaskFailed, TaskSkipped, TaskCached:
		return true
	default:
		return false
	}
}

// IsSuccessful reports whether the state satisfies dependents.
func IsSuccessful(s TaskState) bool {
	return s == TaskCompleted || s == TaskCached
}

// Transition moves key from one state to another. The expected prior state
// makes lost updates observable; the map changes only on success.
func Transition(state ExecutionState, key string, from, to TaskState) error {
	cur, ok := state[key]
	if !ok {
		return fmt.Errorf("unknown task in state: %q", key)
	}
	if cur != from {
		return fmt.Errorf("invalid transition for %q: expected %s, got %s", key, from, cur)
	}
	if !isAllowedTransition(from, to) {
		return fmt.Errorf("disallowed transition for %q: %s -> %s", key, from, to)
	}
	state[key] = to
	return nil
}

// A cache hit is only known once the instance has built its manifest, so a
// RUNNING instance may end CACHED.
func isAllowedTransition(from, to TaskState) bool {
	switch from {
	case TaskPending:
		return to == TaskRunning || to == TaskSkipped
	case TaskRunning:
		return to == TaskCompleted || to == TaskCached || to == TaskFailed
	default:
		return false
	}
}

// FailAndPropagate marks key FAILED and every instance reachable from it
// SKIPPED, returning the newly skipped keys in canonical order.
//
// A RUNNING dependent means a dependency check was bypassed and is reported
// as an error.
func FailAndPropagate(g *TaskGraph, state ExecutionState, key string) ([]string, error) {
	if g == nil {
		return nil, fmt.Errorf("nil graph")
	}
	node, ok := g.nodesByKey[key]
	if !ok {
		return nil, fmt.Errorf("unknown task: %q", key)
	}
	cur, ok := state[key]
	if !ok {
		return nil, fmt.Errorf("unknown task in state: %q", key)
	}
	if cur != TaskRunning && cur != TaskFailed {
		return nil, fmt.Errorf("cannot fail %q from state %s", key, cur)
	}
	state[key] = TaskFailed

	visited := make([]bool, len(g.nodes))
	visited[node.canonicalIndex] = true
	hq := &intMinHeap{}
	for _, d := range g.outgoing[node.canonicalIndex] {
		heap.Push(hq, d)
	}

	var skipped []string
	for hq.Len() > 0 {
		u := heap.Pop(hq).(int)
		if visited[u] {
			continue
		}
		visited[u] = true

		k := g.nodes[u].Key
		switch state[k] {
		case TaskPending:
			state[k] = TaskSkipped
			skipped = append(skipped, k)
		case TaskRunning:
			return skipped, fmt.Errorf("invariant violation: dependent %q is RUNNING while %q failed", k, key)
		}
		for _, v := range g.outgoing[u] {
			if !visited[v] {
				heap.Push(hq, v)
			}
		}
	}
	return skipped, nil
}
