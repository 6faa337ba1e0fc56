package dag

// TaskState is the runtime state of a task instance within one run. It is
// kept apart from the immutable TaskGraph so a graph can be executed again,
// as watch mode does.
type TaskState string

const (
	TaskPending   TaskState = "PENDING"
	TaskRunning   TaskState = "RUNNING"
	TaskCompleted TaskState = "COMPLETED"
	TaskFailed    TaskState = "FAILED"
	TaskSkipped   TaskState = "SKIPPED"
	TaskCached    TaskState = "CACHED"
)

// ExecutionState maps task key to state.
type ExecutionState map[string]TaskState

// NewExecutionState returns a state with every instance of g PENDING.
func NewExecutionState(g *TaskGraph) ExecutionState {
	state := make(ExecutionState, len(g.nodes))
	for _, n := range g.nodes {
		state[n.Key] = TaskPending
	}
	return state
}

// Clone returns an independent copy.
func (s ExecutionState) Clone() ExecutionState {
	cp := make(ExecutionState, len(s))
	for k, v := range s {
		cp[k] = v
	}
	return cp
}

// AllTerminal reports whether every instance has finished.
func (s ExecutionState) AllTerminal() bool {
	for _, st := range s {
		if !IsTerminal(st) {
			return false
		}
	}
	return true
}
