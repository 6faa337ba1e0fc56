package dag

import "lazyweave/internal/core"

// GraphHash is the identity of a TaskGraph, derived from the definitions of
// its instances and its edges. It is stable across insertion orders.
type GraphHash string

// TaskDefHash is the identity of one instance's definition: key, command,
// directory and cache inputs.
type TaskDefHash string

// Edge is a dependency: To runs only after From completed or was cached.
type Edge struct {
	From string
	To   string
}

// TaskNode is an immutable node of the TaskGraph.
type TaskNode struct {
	Key            string
	Task           core.Task
	DefinitionHash TaskDefHash
	canonicalIndex int
}

// CanonicalIndex returns the node's position in key order.
func (n *TaskNode) CanonicalIndex() int { return n.canonicalIndex }

func (h GraphHash) String() string { return string(h) }

func (h TaskDefHash) String() string { return string(h) }
