package dag

import (
	"container/heap"
)

// validateAcyclic runs Kahn's algorithm; when it cannot order every node,
// one cycle is extracted for the error.
func (g *TaskGraph) validateAcyclic() error {
	if len(g.topoOrderIndices()) == len(g.nodes) {
		return nil
	}
	return cycleError(g.findCycle())
}

type intMinHeap []int

func (h intMinHeap) Len() int           { return len(h) }
func (h intMinHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h intMinHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *intMinHeap) Push(x any)        { *h = append(*h, x.(int)) }
func (h *intMinHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// topoOrderIndices orders node indices topologically. The ready queue is a
// min-heap over canonical indices, so ties resolve by key.
func (g *TaskGraph) topoOrderIndices() []int {
	indeg := append([]int(nil), g.indeg...)

	ready := &intMinHeap{}
	for i := range indeg {
		if indeg[i] == 0 {
			heap.Push(ready, i)
		}
	}

	out := make([]int, 0, len(indeg))
	for ready.Len() > 0 {
		n := heap.Pop(ready).(int)
		out = append(out, n)
		for _, m := range g.outgoing[n] {
			indeg[m]--
			if indeg[m] == 0 {
				heap.Push(ready, m)
			}
		}
	}
	return out
}

// findCycle returns one cycle as task keys, first key repeated at the end,
// e.g. [a b a]. The DFS visits nodes and edges in canonical order so the
// same graph always reports the same cycle.
func (g *TaskGraph) findCycle() []string {
	const (
		unvisited = iota
		onStack
		done
	)
	state := make([]int, len(g.nodes))
	parent := make([]int, len(g.nodes))
	for i := range parent {
		parent[i] = -1
	}

	var back []int
	var dfs func(u int) bool
	dfs = func(u int) bool {
		state[u] = onStack
		for _, v := range g.outgoing[u] {
			switch state[v] {
			case unvisited:
				parent[v] = u
				if dfs(v) {
					return true
				}
			case onStack:
				// back edge u -> v; walk parents from u to v
				back = append(back, v)
				for cur := u; cur != -1 && cur != v; cur = parent[cur] {
					back = append(back, cur)
				}
				back = append(back, v)
				return true
			}
		}
		state[u] = done
		return false
	}

	for i := range g.nodes {
		if state[i] == unvisited && dfs(i) {
			break
		}
	}
	if len(back) == 0 {
		return nil
	}

	out := make([]string, 0, len(back))
	for i := len(back) - 1; i >= 0; i-- {
		out = append(out, g.nodes[back[i]].Key)
	}
	return out
}
