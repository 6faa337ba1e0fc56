package dag

import (
	"sort"

	"lazyweave/internal/core"
)

type edgeIndex struct {
	from int
	to   int
}

// TaskGraph is an immutable, validated DAG of task instances.
//
// It is safe for concurrent read access.
type TaskGraph struct {
	nodesByKey map[string]*TaskNode
	nodes      []*TaskNode // sorted by key

	edges []edgeIndex // sorted

	outgoing [][]int // by canonical index, sorted ascending
	incoming [][]int // by canonical index, sorted ascending
	indeg    []int
	depth    []int // longest path from any root

	hash GraphHash
}

// NewTaskGraph builds and validates a TaskGraph.
//
// It rejects:
//   - an empty task list
//   - empty or duplicate task keys
//   - edges referencing unknown keys
//   - duplicate edges and self-loops
//   - any cycle
func NewTaskGraph(tasks []core.Task, edges []Edge) (*TaskGraph, error) {
	if len(tasks) == 0 {
		return nil, invalidf("no tasks")
	}

	nodesByKey := make(map[string]*TaskNode, len(tasks))
	nodes := make([]*TaskNode, 0, len(tasks))
	for _, t := range tasks {
		if t.Key == "" {
			return nil, invalidf("task key is required")
		}
		if _, exists := nodesByKey[t.Key]; exists {
			return nil, invalidf("duplicate task key: %q", t.Key)
		}
		node := &TaskNode{Key: t.Key, Task: t, DefinitionHash: computeTaskDefHash(t)}
		nodesByKey[t.Key] = node
		nodes = append(nodes, node)
	}

	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Key < nodes[j].Key })
	for i, n := range nodes {
		n.canonicalIndex = i
	}

	mapped := make([]edgeIndex, 0, len(edges))
	seen := make(map[edgeIndex]struct{}, len(edges))
	for _, e := range edges {
		from, okFrom := nodesByKey[e.From]
		to, okTo := nodesByKey[e.To]
		if !okFrom {
			return nil, invalidf("edge references unknown task (from): %q", e.From)
		}
		if !okTo {
			return nil, invalidf("edge references unknown task (to): %q", e.To)
		}
		if from == to {
			return nil, cycleError([]string{e.From, e.To})
		}

		pair := edgeIndex{from: from.canonicalIndex, to: to.canonicalIndex}
		if _, exists := seen[pair]; exists {
			return nil, invalidf("duplicate edge: %q -> %q", e.From, e.To)
		}
		seen[pair] = struct{}{}
		mapped = append(mapped, pair)
	}
	sort.Slice(mapped, func(i, j int) bool {
		a, b := mapped[i], mapped[j]
		if a.from != b.from {
			return a.from < b.from
		}
		return a.to < b.to
	})

	outgoing := make([][]int, len(nodes))
	incoming := make([][]int, len(nodes))
	indeg := make([]int, len(nodes))
	for _, e := range mapped {
		outgoing[e.from] = append(outgoing[e.from], e.to)
		incoming[e.to] = append(incoming[e.to], e.from)
		indeg[e.to]++
	}
	// edges are sorted by (from, to), so outgoing is already ascending
	for i := range incoming {
		sort.Ints(incoming[i])
	}

	g := &TaskGraph{
		nodesByKey: nodesByKey,
		nodes:      nodes,
		edges:      mapped,
		outgoing:   outgoing,
		incoming:   incoming,
		indeg:      indeg,
	}
	if err := g.validateAcyclic(); err != nil {
		return nil, err
	}
	g.depth = g.computeDepth()
	g.hash = g.computeGraphHash()
	return g, nil
}

// Hash returns the stable identity of the graph.
func (g *TaskGraph) Hash() GraphHash { return g.hash }

// Len returns the number of task instances.
func (g *TaskGraph) Len() int { return len(g.nodes) }

// Node returns a node by task key.
func (g *TaskGraph) Node(key string) (*TaskNode, bool) {
	n, ok := g.nodesByKey[key]
	return n, ok
}

// Nodes returns the nodes in key order.
func (g *TaskGraph) Nodes() []*TaskNode {
	out := make([]*TaskNode, len(g.nodes))
	copy(out, g.nodes)
	return out
}

// Edges returns the edges in canonical order.
func (g *TaskGraph) Edges() []Edge {
	out := make([]Edge, 0, len(g.edges))
	for _, e := range g.edges {
		out = append(out, Edge{From: g.nodes[e.from].Key, To: g.nodes[e.to].Key})
	}
	return out
}

// Dependencies returns the keys key directly depends on, sorted.
func (g *TaskGraph) Dependencies(key string) []string {
	n, ok := g.nodesByKey[key]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(g.incoming[n.canonicalIndex]))
	for _, p := range g.incoming[n.canonicalIndex] {
		out = append(out, g.nodes[p].Key)
	}
	return out
}

// Depth returns the length of the longest dependency chain leading to key.
func (g *TaskGraph) Depth(key string) (int, bool) {
	n, ok := g.nodesByKey[key]
	if !ok {
		return 0, false
	}
	return g.depth[n.canonicalIndex], true
}

func (g *TaskGraph) computeDepth() []int {
	depth := make([]int, len(g.nodes))
	for _, u := range g.topoOrderIndices() {
		d := 0
		for _, p := range g.incoming[u] {
			if depth[p]+1 > d {
				d = depth[p] + 1
			}
		}
		depth[u] = d
	}
	return depth
}

// TopologicalOrder returns the task keys in dependency order, breaking ties
// by key.
func (g *TaskGraph) TopologicalOrder() []string {
	order := g.topoOrderIndices()
	keys := make([]string, 0, len(order))
	for _, idx := range order {
		keys = append(keys, g.nodes[idx].Key)
	}
	return keys
}

func (g *TaskGraph) computeGraphHash() GraphHash {
	f := newFieldHasher()
	f.int(len(g.nodes))
	for _, n := range g.nodes {
		f.string(string(n.DefinitionHash))
	}
	f.int(len(g.edges))
	for _, e := range g.edges {
		f.int(e.from)
		f.int(e.to)
	}
	return GraphHash(f.sum())
}
