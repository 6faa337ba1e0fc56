package dag

import (
	"errors"
	"strings"
	"testing"

	"lazyweave/internal/core"
	"lazyweave/internal/manifest"
)

// tk builds a parallel task instance whose key is also its name.
func tk(key string) core.Task {
	return core.Task{Key: key, Name: key, Dir: "/repo/" + key, Command: "run-" + key, Parallel: true}
}

func TestGraphConstruction_SingleNode(t *testing.T) {
	g, err := NewTaskGraph([]core.Task{tk("A")}, nil)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if g.Hash() == "" {
		t.Fatalf("expected non-empty graph hash")
	}
	if got := g.TopologicalOrder(); len(got) != 1 || got[0] != "A" {
		t.Fatalf("unexpected topo order: %v", got)
	}
}

func TestGraphConstruction_IndependentNodesInKeyOrder(t *testing.T) {
	g, err := NewTaskGraph([]core.Task{tk("C"), tk("A"), tk("B")}, nil)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if got := strings.Join(g.TopologicalOrder(), ","); got != "A,B,C" {
		t.Fatalf("unexpected topo order: %s", got)
	}
}

func TestGraphConstruction_DiamondDependency(t *testing.T) {
	// A -> B, A -> C, B -> D, C -> D
	g, err := NewTaskGraph(
		[]core.Task{tk("A"), tk("B"), tk("C"), tk("D")},
		[]Edge{{From: "A", To: "B"}, {From: "A", To: "C"}, {From: "B", To: "D"}, {From: "C", To: "D"}},
	)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	if got := strings.Join(g.TopologicalOrder(), ","); got != "A,B,C,D" {
		t.Fatalf("unexpected topo order: %s", got)
	}
	if deps := g.Dependencies("D"); len(deps) != 2 || deps[0] != "B" || deps[1] != "C" {
		t.Fatalf("unexpected dependencies of D: %v", deps)
	}
	for key, want := range map[string]int{"A": 0, "B": 1, "C": 1, "D": 2} {
		if d, _ := g.Depth(key); d != want {
			t.Errorf("depth(%s) = %d, want %d", key, d, want)
		}
	}
}

func TestGraphHash_InvariantToInsertionOrder(t *testing.T) {
	a := tk("A")
	a.Inputs = manifest.Spec{EnvInputs: []string{"Z", "A"}}
	g1, err := NewTaskGraph([]core.Task{a, tk("B"), tk("C")}, []Edge{{From: "A", To: "B"}, {From: "A", To: "C"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	a2 := tk("A")
	a2.Inputs = manifest.Spec{EnvInputs: []string{"A", "Z"}}
	g2, err := NewTaskGraph([]core.Task{tk("C"), tk("B"), a2}, []Edge{{From: "A", To: "C"}, {From: "A", To: "B"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if g1.Hash() != g2.Hash() {
		t.Fatalf("expected equal graph hashes, got %s vs %s", g1.Hash(), g2.Hash())
	}
}

func TestGraphHash_ChangesWithCommand(t *testing.T) {
	g1, err := NewTaskGraph([]core.Task{tk("A")}, nil)
	if err != nil {
		t.Fatal(err)
	}
	changed := tk("A")
	changed.Command = "run-a --verbose"
	g2, err := NewTaskGraph([]core.Task{changed}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if g1.Hash() == g2.Hash() {
		t.Fatal("graph hash ignores the command")
	}
}

func TestGraphConstruction_Rejections(t *testing.T) {
	cases := []struct {
		name  string
		tasks []core.Task
		edges []Edge
		kind  error
	}{
		{"empty", nil, nil, ErrInvalidGraph},
		{"missing key", []core.Task{{Name: "x"}}, nil, ErrInvalidGraph},
		{"duplicate key", []core.Task{tk("A"), tk("A")}, nil, ErrInvalidGraph},
		{"unknown from", []core.Task{tk("A")}, []Edge{{From: "Z", To: "A"}}, ErrInvalidGraph},
		{"unknown to", []core.Task{tk("A")}, []Edge{{From: "A", To: "Z"}}, ErrInvalidGraph},
		{"duplicate edge", []core.Task{tk("A"), tk("B")}, []Edge{{From: "A", To: "B"}, {From: "A", To: "B"}}, ErrInvalidGraph},
		{"self loop", []core.Task{tk("A")}, []Edge{{From: "A", To: "A"}}, ErrCycleFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewTaskGraph(tc.tasks, tc.edges)
			if !errors.Is(err, tc.kind) {
				t.Fatalf("expected %v, got %v", tc.kind, err)
			}
		})
	}
}

func TestCycleDetection_IndirectCycleReportsPath(t *testing.T) {
	_, err := NewTaskGraph(
		[]core.Task{tk("A"), tk("B"), tk("C")},
		[]Edge{{From: "A", To: "B"}, {From: "B", To: "C"}, {From: "C", To: "A"}},
	)
	if !errors.Is(err, ErrCycleFound) {
		t.Fatalf("expected cycle error, got %v", err)
	}
	if !strings.Contains(err.Error(), "A -> B -> C -> A") {
		t.Fatalf("unexpected cycle message: %v", err)
	}
}
