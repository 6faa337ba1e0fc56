package dag

import (
	"reflect"
	"testing"

	"lazyweave/internal/core"
)

func TestStateMachine_Transitions_ValidAndInvalid(t *testing.T) {
	state := ExecutionState{"A": TaskPending}

	if err := Transition(state, "A", TaskPending, TaskRunning); err != nil {
		t.Fatalf("expected valid transition, got %v", err)
	}
	if err := Transition(state, "A", TaskRunning, TaskCompleted); err != nil {
		t.Fatalf("expected valid transition, got %v", err)
	}

	// Terminal -> RUNNING is forbidden.
	if err := Transition(state, "A", TaskCompleted, TaskRunning); err == nil {
		t.Fatalf("expected error")
	}

	// Expected prior state must match.
	state["A"] = TaskPending
	if err := Transition(state, "A", TaskRunning, TaskCompleted); err == nil {
		t.Fatalf("expected error for stale prior state")
	}

	// PENDING cannot jump to a result state.
	if err := Transition(state, "A", TaskPending, TaskCached); err == nil {
		t.Fatalf("expected error")
	}
	if state["A"] != TaskPending {
		t.Fatalf("state mutated by rejected transition: %s", state["A"])
	}

	if err := Transition(state, "missing", TaskPending, TaskRunning); err == nil {
		t.Fatalf("expected error for unknown key")
	}
}

func TestStateMachine_RunningMayEndCached(t *testing.T) {
	state := ExecutionState{"A": TaskRunning}
	if err := Transition(state, "A", TaskRunning, TaskCached); err != nil {
		t.Fatalf("expected valid transition, got %v", err)
	}
	if !IsTerminal(state["A"]) || !IsSuccessful(state["A"]) {
		t.Fatalf("CACHED must be terminal and successful")
	}
}

func TestFailurePropagation_CascadeMarksDownstreamSkipped(t *testing.T) {
	g, err := NewTaskGraph(
		[]core.Task{tk("A"), tk("B"), tk("C"), tk("D")},
		[]Edge{{From: "A", To: "B"}, {From: "B", To: "C"}},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	state := NewExecutionState(g)
	state["A"] = TaskRunning

	skipped, err := FailAndPropagate(g, state, "A")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := []string{"B", "C"}; !reflect.DeepEqual(skipped, want) {
		t.Fatalf("skipped mismatch: got %v want %v", skipped, want)
	}

	want := ExecutionState{"A": TaskFailed, "B": TaskSkipped, "C": TaskSkipped, "D": TaskPending}
	if !reflect.DeepEqual(state, want) {
		t.Fatalf("state mismatch: got %v want %v", state, want)
	}
}

func TestFailurePropagation_LeavesFinishedSiblingsAlone(t *testing.T) {
	// A -> C, B -> C: B already completed when A fails.
	g, err := NewTaskGraph(
		[]core.Task{tk("A"), tk("B"), tk("C")},
		[]Edge{{From: "A", To: "C"}, {From: "B", To: "C"}},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	state := ExecutionState{"A": TaskRunning, "B": TaskCompleted, "C": TaskPending}

	skipped, err := FailAndPropagate(g, state, "A")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(skipped, []string{"C"}) {
		t.Fatalf("skipped mismatch: %v", skipped)
	}
	if state["B"] != TaskCompleted {
		t.Fatalf("completed sibling changed to %s", state["B"])
	}
}

func TestFailurePropagation_RunningDependentIsInvariantViolation(t *testing.T) {
	g, err := NewTaskGraph([]core.Task{tk("A"), tk("B")}, []Edge{{From: "A", To: "B"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	state := ExecutionState{"A": TaskRunning, "B": TaskRunning}
	if _, err := FailAndPropagate(g, state, "A"); err == nil {
		t.Fatalf("expected invariant violation")
	}
}

func TestFailurePropagation_RejectsPendingTask(t *testing.T) {
	g, err := NewTaskGraph([]core.Task{tk("A")}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := FailAndPropagate(g, NewExecutionState(g), "A"); err == nil {
		t.Fatalf("expected error failing a PENDING task")
	}
}
