package dag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"lazyweave/internal/core"
	"lazyweave/internal/logging"
	"lazyweave/internal/manifest"
	"lazyweave/internal/trace"
)

// TaskRunner satisfies a single task instance. A *core.TaskError marks a
// failed command; any error fails the instance.
type TaskRunner interface {
	Run(ctx context.Context, task *core.Task) (*core.Outcome, error)
}

// Executor runs a TaskGraph.
//
// Ready instances are dispatched in (depth, key) order to at most
// Concurrency goroutines. Keys are unique in a graph, so no two instances
// share a manifest. Instances of a task with Parallel unset never overlap.
type Executor struct {
	Graph  *TaskGraph
	Runner TaskRunner
	// Concurrency bounds running instances; <= 0 uses runtime.NumCPU.
	Concurrency int
	Sink        trace.Sink
	Logger      *slog.Logger

	mu    sync.Mutex
	state ExecutionState
}

// NewExecutor creates an executor with every instance PENDING.
func NewExecutor(g *TaskGraph, runner TaskRunner) (*Executor, error) {
	if g == nil {
		return nil, fmt.Errorf("nil graph")
	}
	if runner == nil {
		return nil, fmt.Errorf("nil runner")
	}
	return &Executor{
		Graph:  g,
		Runner: runner,
		Sink:   trace.NopSink{},
		Logger: logging.Discard(),
		state:  NewExecutionState(g),
	}, nil
}

// StateSnapshot returns a copy of the current execution state.
func (e *Executor) StateSnapshot() ExecutionState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Clone()
}

type workResult struct {
	key     string
	outcome *core.Outcome
	err     error
}

// Run executes the graph until every instance is terminal.
//
// A failed instance does not stop the run: its dependents are SKIPPED and
// independent instances continue. The returned error is reserved for
// cancellation and broken invariants; task failures are reported in the
// result. On cancellation, instances not yet dispatched are SKIPPED and the
// partial result is returned together with the error.
func (e *Executor) Run(ctx context.Context) (*GraphResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	limit := e.Concurrency
	if limit <= 0 {
		limit = runtime.NumCPU()
	}

	res := &GraphResult{
		GraphHash: e.Graph.Hash(),
		Outcomes:  make(map[string]*core.Outcome, e.Graph.Len()),
		Errors:    make(map[string]error),
	}
	done := make(chan workResult)
	inFlight := 0
	// task name -> an exclusive instance of it is running
	exclusive := make(map[string]bool)

	for {
		e.mu.Lock()
		if ctx.Err() == nil {
			for _, key := range GetReadyTasks(e.Graph, e.state) {
				if inFlight >= limit {
					break
				}
				task := e.Graph.nodesByKey[key].Task
				if !task.Parallel && exclusive[task.Name] {
					continue
				}
				if err := Transition(e.state, key, TaskPending, TaskRunning); err != nil {
					e.mu.Unlock()
					e.drain(done, inFlight)
					return nil, err
				}
				if !task.Parallel {
					exclusive[task.Name] = true
				}
				inFlight++
				res.ExecutionOrder = append(res.ExecutionOrder, key)
				e.Logger.Debug("dispatching task", "task", key)

				go func() {
					outcome, err := e.Runner.Run(ctx, &task)
					done <- workResult{key: key, outcome: outcome, err: err}
				}()
			}
		}
		if inFlight == 0 {
			e.mu.Unlock()
			break
		}
		e.mu.Unlock()

		r := <-done
		e.mu.Lock()
		inFlight--
		if err := e.complete(r, res, exclusive); err != nil {
			e.mu.Unlock()
			e.drain(done, inFlight)
			return nil, err
		}
		e.mu.Unlock()
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := ctx.Err(); err != nil {
		for _, n := range e.Graph.nodes {
			if e.state[n.Key] == TaskPending {
				e.state[n.Key] = TaskSkipped
				trace.SafeRecord(e.Sink, trace.TraceEvent{Kind: trace.EventTaskSkipped, TaskID: n.Key, Reason: trace.ReasonCancelled})
			}
		}
		res.FinalState = e.state.Clone()
		return res, fmt.Errorf("execution cancelled: %w", err)
	}
	if !e.state.AllTerminal() {
		return nil, fmt.Errorf("no ready tasks but graph not finished")
	}
	res.FinalState = e.state.Clone()
	return res, nil
}

// complete records a finished instance. e.mu must be held.
func (e *Executor) complete(r workResult, res *GraphResult, exclusive map[string]bool) error {
	task := e.Graph.nodesByKey[r.key].Task
	if !task.Parallel {
		exclusive[task.Name] = false
	}
	if r.outcome != nil {
		res.Outcomes[r.key] = r.outcome
		e.recordOutcome(r.key, r.outcome)
	}

	switch {
	case r.err == nil && r.outcome != nil && r.outcome.Cached:
		return Transition(e.state, r.key, TaskRunning, TaskCached)
	case r.err == nil:
		trace.SafeRecord(e.Sink, trace.TraceEvent{Kind: trace.EventTaskExecuted, TaskID: r.key})
		return Transition(e.state, r.key, TaskRunning, TaskCompleted)
	}

	res.Errors[r.key] = r.err
	reason := trace.ReasonExecutionError
	var taskErr *core.TaskError
	if errors.As(r.err, &taskErr) && taskErr.Err == nil {
		reason = trace.ReasonNonZeroExit
	}
	trace.SafeRecord(e.Sink, trace.TraceEvent{Kind: trace.EventTaskFailed, TaskID: r.key, Reason: reason})
	e.Logger.Debug("task failed", "task", r.key, "error", r.err)

	skipped, err := FailAndPropagate(e.Graph, e.state, r.key)
	for _, k := range skipped {
		trace.SafeRecord(e.Sink, trace.TraceEvent{Kind: trace.EventTaskSkipped, TaskID: k, Reason: trace.ReasonUpstreamFailed, CauseTaskID: r.key})
	}
	return err
}

func (e *Executor) recordOutcome(key string, o *core.Outcome) {
	if o.Cached {
		trace.SafeRecord(e.Sink, trace.TraceEvent{Kind: trace.EventTaskCached, TaskID: key})
		return
	}
	ev := trace.TraceEvent{Kind: trace.EventTaskInvalidated, TaskID: key}
	switch o.Reason {
	case core.ReasonNoPreviousManifest:
		ev.Reason = trace.ReasonNoPreviousManifest
	case core.ReasonInputsChanged:
		ev.Reason = trace.ReasonInputsChanged
		all, _ := manifest.RenderChanges(o.Changes, "")
		ev.Changes = all
	case core.ReasonCacheDisabled:
		ev.Reason = trace.ReasonCacheDisabled
	case core.ReasonForced:
		ev.Reason = trace.ReasonForced
	default:
		return
	}
	trace.SafeRecord(e.Sink, ev)
}

// drain waits for in-flight runners so none outlives Run.
func (e *Executor) drain(done <-chan workResult, n int) {
	for ; n > 0; n-- {
		<-done
	}
}
