package trace

import (
	"bytes"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func TestCanonicalTraceStability_ByteForByte(t *testing.T) {
	trace1 := ExecutionTrace{
		GraphHash: "graph-abc",
		Events: []TraceEvent{
			{Kind: EventTaskExecuted, TaskID: "build::b"},
			{Kind: EventTaskCached, TaskID: "build::a"},
			{Kind: EventTaskSkipped, TaskID: "build::c", Reason: ReasonUpstreamFailed, CauseTaskID: "build::b"},
		},
	}

	trace2 := ExecutionTrace{
		GraphHash: "graph-abc",
		Events: []TraceEvent{
			{Kind: EventTaskSkipped, TaskID: "build::c", CauseTaskID: "build::b", Reason: ReasonUpstreamFailed},
			{Kind: EventTaskCached, TaskID: "build::a"},
			{Kind: EventTaskExecuted, TaskID: "build::b"},
		},
	}

	b1, err := trace1.CanonicalJSON()
	if err != nil {
		t.Fatalf("canonical json (1): %v", err)
	}
	b2, err := trace2.CanonicalJSON()
	if err != nil {
		t.Fatalf("canonical json (2): %v", err)
	}

	if !bytes.Equal(b1, b2) {
		t.Fatalf("expected identical bytes\n1=%s\n2=%s", string(b1), string(b2))
	}
}

func TestCanonicalOrdering_SortsByTaskIDThenKind(t *testing.T) {
	tr := ExecutionTrace{
		GraphHash: "graph-abc",
		Events: []TraceEvent{
			{Kind: EventTaskExecuted, TaskID: "b"},
			{Kind: EventTaskExecuted, TaskID: "a"},
			{Kind: EventTaskInvalidated, TaskID: "a", Reason: ReasonNoPreviousManifest},
		},
	}
	b, err := tr.CanonicalJSON()
	if err != nil {
		t.Fatalf("canonical json: %v", err)
	}
	expected := `{"graphHash":"graph-abc","events":[` +
		`{"kind":"TaskInvalidated","taskId":"a","reason":"NoPreviousManifest"},` +
		`{"kind":"TaskExecuted","taskId":"a"},` +
		`{"kind":"TaskExecuted","taskId":"b"}]}`
	if string(b) != expected {
		t.Fatalf("unexpected canonical bytes\nexpected=%s\nactual  =%s", expected, string(b))
	}
}

func TestHash_IgnoresInsertionOrder(t *testing.T) {
	tr1 := ExecutionTrace{
		GraphHash: "g",
		Events: []TraceEvent{
			{Kind: EventTaskExecuted, TaskID: "b"},
			{Kind: EventTaskCached, TaskID: "a"},
		},
	}
	tr2 := ExecutionTrace{
		GraphHash: "g",
		Events: []TraceEvent{
			{Kind: EventTaskCached, TaskID: "a"},
			{Kind: EventTaskExecuted, TaskID: "b"},
		},
	}

	h1, err := tr1.Hash()
	if err != nil {
		t.Fatalf("hash (1): %v", err)
	}
	h2, err := tr2.Hash()
	if err != nil {
		t.Fatalf("hash (2): %v", err)
	}
	if h1 != h2 {
		t.Fatalf("expected equal hash for equivalent traces, got %q != %q", h1, h2)
	}
	if len(h1) != 64 {
		t.Fatalf("hash length = %d, want 64 hex chars", len(h1))
	}
}

func TestEventChanges_SortedAndOmittedWhenEmpty(t *testing.T) {
	tr := ExecutionTrace{
		GraphHash: "g",
		Events: []TraceEvent{{
			Kind:    EventTaskInvalidated,
			TaskID:  "a",
			Reason:  ReasonInputsChanged,
			Changes: []string{"± changed file src/z.ts", "+ added file src/a.ts"},
		}},
	}
	b, err := tr.CanonicalJSON()
	if err != nil {
		t.Fatalf("canonical json: %v", err)
	}
	expected := `{"graphHash":"g","events":[{"kind":"TaskInvalidated","taskId":"a","reason":"InputsChanged","changes":["+ added file src/a.ts","± changed file src/z.ts"]}]}`
	if string(b) != expected {
		t.Fatalf("unexpected canonical bytes\nexpected=%s\nactual  =%s", expected, string(b))
	}

	tr2 := ExecutionTrace{GraphHash: "g", Events: []TraceEvent{{Kind: EventTaskCached, TaskID: "a", Changes: []string{}}}}
	b2, err := tr2.CanonicalJSON()
	if err != nil {
		t.Fatalf("canonical json: %v", err)
	}
	expected2 := `{"graphHash":"g","events":[{"kind":"TaskCached","taskId":"a"}]}`
	if string(b2) != expected2 {
		t.Fatalf("unexpected canonical bytes\nexpected=%s\nactual  =%s", expected2, string(b2))
	}
}

func TestValidate_RejectsIncompleteEvents(t *testing.T) {
	cases := []ExecutionTrace{
		{Events: []TraceEvent{{Kind: EventTaskCached, TaskID: "a"}}},
		{GraphHash: "g", Events: []TraceEvent{{TaskID: "a"}}},
		{GraphHash: "g", Events: []TraceEvent{{Kind: EventTaskCached}}},
		{GraphHash: "g", Events: []TraceEvent{{Kind: "Bogus", TaskID: "a"}}},
		{GraphHash: "g", Events: []TraceEvent{{Kind: EventTaskInvalidated, TaskID: "a", Changes: []string{""}}}},
	}
	for i, tr := range cases {
		if err := tr.Validate(); err == nil {
			t.Errorf("case %d: expected validation error", i)
		}
	}
}

func TestRecorder_ConcurrentRecordingIsCanonical(t *testing.T) {
	r := NewRecorder()
	var wg sync.WaitGroup
	for _, id := range []string{"d", "b", "a", "c"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			SafeRecord(r, TraceEvent{Kind: EventTaskExecuted, TaskID: id})
		}()
	}
	wg.Wait()

	tr := r.Trace("g")
	var got []string
	for _, e := range tr.Events {
		got = append(got, e.TaskID)
	}
	if len(got) != 4 || got[0] != "a" || got[1] != "b" || got[2] != "c" || got[3] != "d" {
		t.Fatalf("events not canonical: %v", got)
	}

	r.Reset()
	if n := len(r.Snapshot()); n != 0 {
		t.Fatalf("reset left %d events", n)
	}
}

type panickingSink struct{}

func (panickingSink) Record(TraceEvent) { panic("boom") }

func TestSafeRecord_IsInert(t *testing.T) {
	SafeRecord(nil, TraceEvent{Kind: EventTaskCached, TaskID: "a"})
	SafeRecord(panickingSink{}, TraceEvent{Kind: EventTaskCached, TaskID: "a"})
	SafeRecord(NopSink{}, TraceEvent{Kind: EventTaskCached, TaskID: "a"})
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "trace.json")
	tr := ExecutionTrace{GraphHash: "g", Events: []TraceEvent{{Kind: EventTaskCached, TaskID: "a"}}}
	if err := tr.WriteFile(path); err != nil {
		t.Fatalf("write: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"graphHash":"g","events":[{"kind":"TaskCached","taskId":"a"}]}`+"\n" {
		t.Fatalf("unexpected file contents %q", data)
	}
}

func TestCanonicalJSON_DoesNotEscapeRootDirToken(t *testing.T) {
	tr := ExecutionTrace{GraphHash: "g", Events: []TraceEvent{{Kind: EventTaskExecuted, TaskID: "lint::<rootDir>"}}}
	b, err := tr.CanonicalJSON()
	if err != nil {
		t.Fatalf("canonical json: %v", err)
	}
	if !bytes.Contains(b, []byte(`"taskId":"lint::<rootDir>"`)) {
		t.Fatalf("task key was escaped: %s", b)
	}
}
