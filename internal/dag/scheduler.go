package dag

import (
	"sort"
)

// GetReadyTasks returns the keys of PENDING instances whose dependencies
// are all COMPLETED or CACHED, ordered by (depth, key).
//
// It does not mutate graph or state.
func GetReadyTasks(g *TaskGraph, state ExecutionState) []string {
	if g == nil {
		return nil
	}

	var ready []*TaskNode
	for _, node := range g.nodes {
		if state[node.Key] != TaskPending {
			continue
		}
		depsOK := true
		for _, p := range g.incoming[node.canonicalIndex] {
			if !IsSuccessful(state[g.nodes[p].Key]) {
				depsOK = false
				break
			}
		}
		if depsOK {
			ready = append(ready, node)
		}
	}

	sort.SliceStable(ready, func(i, j int) bool {
		// nodes are iterated in key order, so equal depths keep key order
		return g.depth[ready[i].canonicalIndex] < g.depth[ready[j].canonicalIndex]
	})

	keys := make([]string, len(ready))
	for i, n := range ready {
		keys[i] = n.Key
	}
	return keys
}
