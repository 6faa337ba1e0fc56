package trace

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// ExecutionTrace is the canonical record of what a run decided for each
// task instance: which were served from cache, which executed and why,
// which failed and which were skipped.
//
// The trace carries no timestamps, durations or error strings, so two runs
// making the same decisions produce byte-identical traces regardless of
// scheduling. Call Canonicalize before comparing traces.
type ExecutionTrace struct {
	GraphHash string
	Events    []TraceEvent
}

// TraceEventKind discriminates TraceEvent. The string values are part of
// the canonical bytes.
type TraceEventKind string

const (
	EventTaskInvalidated TraceEventKind = "TaskInvalidated"
	EventTaskCached      TraceEventKind = "TaskCached"
	EventTaskExecuted    TraceEventKind = "TaskExecuted"
	EventTaskFailed      TraceEventKind = "TaskFailed"
	EventTaskSkipped     TraceEventKind = "TaskSkipped"
)

// Reason codes.
const (
	ReasonNoPreviousManifest = "NoPreviousManifest"
	ReasonInputsChanged      = "InputsChanged"
	ReasonCacheDisabled      = "CacheDisabled"
	ReasonForced             = "Forced"
	ReasonNonZeroExit        = "NonZeroExit"
	ReasonExecutionError     = "ExecutionError"
	ReasonUpstreamFailed     = "UpstreamFailed"
	ReasonCancelled          = "Cancelled"
)

// TraceEvent is a single decision about one task instance.
type TraceEvent struct {
	Kind TraceEventKind

	// TaskID is the task key the event refers to.
	TaskID string

	// Reason is one of the Reason constants.
	Reason string

	// CauseTaskID names the failed upstream behind a skip.
	CauseTaskID string

	// Changes lists the rendered manifest changes behind an invalidation.
	Changes []string
}

// Validate checks that every event names its kind and task.
func (t *ExecutionTrace) Validate() error {
	if t == nil {
		return errors.New("trace is nil")
	}
	if t.GraphHash == "" {
		return errors.New("graphHash is required")
	}
	for i := range t.Events {
		e := t.Events[i]
		if e.Kind == "" {
			return fmt.Errorf("events[%d].kind is required", i)
		}
		if kindOrder(e.Kind) == unknownKindOrder {
			return fmt.Errorf("events[%d].kind %q is unknown", i, e.Kind)
		}
		if e.TaskID == "" {
			return fmt.Errorf("events[%d].taskId is required for kind %q", i, e.Kind)
		}
		for j, c := range e.Changes {
			if c == "" {
				return fmt.Errorf("events[%d].changes[%d] is empty", i, j)
			}
		}
	}
	return nil
}

// Canonicalize sorts changes within events and events by
// (taskId, kind, reason, causeTaskId, changes).
func (t *ExecutionTrace) Canonicalize() {
	if t == nil {
		return
	}
	for i := range t.Events {
		t.Events[i].Changes = sortedCopy(t.Events[i].Changes)
	}

	sort.SliceStable(t.Events, func(i, j int) bool {
		a := t.Events[i]
		b := t.Events[j]

		if a.TaskID != b.TaskID {
			return a.TaskID < b.TaskID
		}
		if kindOrder(a.Kind) != kindOrder(b.Kind) {
			return kindOrder(a.Kind) < kindOrder(b.Kind)
		}
		if a.Reason != b.Reason {
			return a.Reason < b.Reason
		}
		if a.CauseTaskID != b.CauseTaskID {
			return a.CauseTaskID < b.CauseTaskID
		}
		return lessStrings(a.Changes, b.Changes)
	})
}

const unknownKindOrder = 1000

func kindOrder(k TraceEventKind) int {
	switch k {
	case EventTaskInvalidated:
		return 10
	case EventTaskCached:
		return 20
	case EventTaskExecuted:
		return 30
	case EventTaskFailed:
		return 40
	case EventTaskSkipped:
		return 50
	default:
		return unknownKindOrder
	}
}

func sortedCopy(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	sort.Strings(out)
	return out
}

func lessStrings(a, b []string) bool {
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}

// CanonicalJSON returns the canonical JSON encoding of the trace without
// mutating t.
func (t ExecutionTrace) CanonicalJSON() ([]byte, error) {
	cp := ExecutionTrace{GraphHash: t.GraphHash, Events: make([]TraceEvent, len(t.Events))}
	copy(cp.Events, t.Events)
	cp.Canonicalize()
	if err := cp.Validate(); err != nil {
		return nil, err
	}
	// json.Marshal would re-escape '<' in keys such as "build::<rootDir>".
	return cp.MarshalJSON()
}

// Hash returns the trace hash of the canonical JSON bytes.
func (t ExecutionTrace) Hash() (string, error) {
	b, err := t.CanonicalJSON()
	if err != nil {
		return "", err
	}
	return ComputeTraceHash(b), nil
}

// WriteFile writes the canonical JSON of t to path, creating parent
// directories as needed.
func (t ExecutionTrace) WriteFile(path string) error {
	b, err := t.CanonicalJSON()
	if err != nil {
		return fmt.Errorf("encode trace: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("write trace: %w", err)
	}
	if err := os.WriteFile(path, append(b, '\n'), 0o644); err != nil {
		return fmt.Errorf("write trace: %w", err)
	}
	return nil
}

// MarshalJSON fixes the field order. It does not sort events.
func (t ExecutionTrace) MarshalJSON() ([]byte, error) {
	if t.GraphHash == "" {
		return nil, errors.New("graphHash is required")
	}
	var buf bytes.Buffer
	buf.WriteString(`{"graphHash":`)
	buf.Write(jsonValue(t.GraphHash))

	buf.WriteString(`,"events":[`)
	for i := range t.Events {
		if i > 0 {
			buf.WriteByte(',')
		}
		eb, err := t.Events[i].MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(eb)
	}
	buf.WriteString("]}")
	return buf.Bytes(), nil
}

// MarshalJSON fixes the field order and omits empty optional fields.
func (e TraceEvent) MarshalJSON() ([]byte, error) {
	if e.Kind == "" {
		return nil, errors.New("kind is required")
	}

	var buf bytes.Buffer
	buf.WriteString(`{"kind":`)
	buf.Write(jsonValue(string(e.Kind)))

	field := func(name, value string) {
		if value == "" {
			return
		}
		buf.WriteString(`,"` + name + `":`)
		buf.Write(jsonValue(value))
	}
	field("taskId", e.TaskID)
	field("reason", e.Reason)
	field("causeTaskId", e.CauseTaskID)

	if changes := sortedCopy(e.Changes); len(changes) > 0 {
		buf.WriteString(`,"changes":`)
		buf.Write(jsonValue(changes))
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// jsonValue encodes v without HTML escaping.
func jsonValue(v any) []byte {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n"))
}
