package editor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"strings"
	"sync"
	"testing"

	"github.com/dgallion1/redraft/internal/chunker"
)

func chunkCfg(target, tolerance int) chunker.Config {
	return chunker.Config{TargetWords: target, Tolerance: tolerance}
}

// fakeClient records every request and answers via fn.
type fakeClient struct {
	name string
	fn   func(Request) (string, error)

	mu    sync.Mutex
	calls []Request
}

func (f *fakeClient) Name() string { return f.name }

func (f *fakeClient) Edit(_ context.Context, req Request) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()
	return f.fn(req)
}

func (f *fakeClient) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func succeedWith(out string) func(Request) (string, error) {
	return func(Request) (string, error) { return out, nil }
}

func failWith(err error) func(Request) (string, error) {
	return func(Request) (string, error) { return "", err }
}

func TestEditChunk_FirstBackendWins(t *testing.T) {
	a := &fakeClient{name: "a", fn: succeedWith("from a")}
	b := &fakeClient{name: "b", fn: succeedWith("from b")}
	d := NewDispatcher([]Client{a, b}, testLogger())

	out, err := d.EditChunk(context.Background(), "text", "instr", Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "from a" {
		t.Errorf("expected %q, got %q", "from a", out)
	}
	if b.callCount() != 0 {
		t.Errorf("second backend called %d times, expected 0", b.callCount())
	}
}

func TestEditChunk_FallsBackOnFailure(t *testing.T) {
	a := &fakeClient{name: "a", fn: failWith(&CallError{Backend: "a", StatusCode: 500, Message: "boom"})}
	b := &fakeClient{name: "b", fn: succeedWith("from b")}
	d := NewDispatcher([]Client{a, b}, testLogger())

	out, err := d.EditChunk(context.Background(), "text", "instr", Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "from b" {
		t.Errorf("expected fallback result %q, got %q", "from b", out)
	}
}

func TestEditChunk_EmptyOutputIsFailure(t *testing.T) {
	a := &fakeClient{name: "a", fn: succeedWith("   \n")}
	b := &fakeClient{name: "b", fn: succeedWith("real output")}
	d := NewDispatcher([]Client{a, b}, testLogger())

	out, err := d.EditChunk(context.Background(), "text", "instr", Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "real output" {
		t.Errorf("expected whitespace-only output to fall through, got %q", out)
	}
}

func TestEditChunk_ExhaustedCarriesLastError(t *testing.T) {
	errA := &CallError{Backend: "a", StatusCode: 500, Message: "a down"}
	errB := &CallError{Backend: "b", StatusCode: 429, Message: "b throttled"}
	d := NewDispatcher([]Client{
		&fakeClient{name: "a", fn: failWith(errA)},
		&fakeClient{name: "b", fn: failWith(errB)},
	}, testLogger())

	_, err := d.EditChunk(context.Background(), "text", "instr", Options{})
	var ex *ExhaustedError
	if !errors.As(err, &ex) {
		t.Fatalf("expected ExhaustedError, got %v", err)
	}
	if ex.Attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", ex.Attempts)
	}
	if !errors.Is(err, errB) {
		t.Errorf("expected the last backend's error, got %v", ex.Last)
	}
}

func TestEditChunk_NoBackends(t *testing.T) {
	d := NewDispatcher(nil, testLogger())
	_, err := d.EditChunk(context.Background(), "text", "instr", Options{})
	var ex *ExhaustedError
	if !errors.As(err, &ex) {
		t.Fatalf("expected ExhaustedError, got %v", err)
	}
	if ex.Attempts != 0 {
		t.Errorf("expected 0 attempts, got %d", ex.Attempts)
	}
}

func TestEditChunk_DefaultTemperature(t *testing.T) {
	a := &fakeClient{name: "a", fn: succeedWith("out")}
	d := NewDispatcher([]Client{a}, testLogger())

	if _, err := d.EditChunk(context.Background(), "text", "instr", Options{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := a.calls[0].Temperature; got != 0.7 {
		t.Errorf("expected default temperature 0.7, got %g", got)
	}
}

func TestEditVariations_DedupesIdenticalResults(t *testing.T) {
	a := &fakeClient{name: "a", fn: succeedWith("same answer")}
	d := NewDispatcher([]Client{a}, testLogger())

	out, err := d.EditVariations(context.Background(), "short text", "instr", Options{NumVariations: 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 || out[0] != "same answer" {
		t.Errorf("expected 1 deduplicated variation, got %v", out)
	}
	if a.callCount() != 3 {
		t.Errorf("expected 3 calls, got %d", a.callCount())
	}
}

func TestEditVariations_AscendingTemperatures(t *testing.T) {
	a := &fakeClient{name: "a", fn: func(req Request) (string, error) {
		return "at " + strings.Repeat("x", int(req.Temperature*10)), nil
	}}
	d := NewDispatcher([]Client{a}, testLogger())

	if _, err := d.EditVariations(context.Background(), "short text", "instr", Options{NumVariations: 3}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var temps []float64
	for _, c := range a.calls {
		temps = append(temps, c.Temperature)
	}
	want := []float64{0.6, 0.7, 0.8}
	if len(temps) != len(want) {
		t.Fatalf("expected %d calls, got %d", len(want), len(temps))
	}
	// Calls run concurrently, so match as a set.
	for _, w := range want {
		found := false
		for _, g := range temps {
			if math.Abs(g-w) < 1e-9 {
				found = true
			}
		}
		if !found {
			t.Errorf("no call at temperature %g; got %v", w, temps)
		}
	}
}

func TestEditVariations_ClampsToFive(t *testing.T) {
	n := 0
	var mu sync.Mutex
	a := &fakeClient{name: "a", fn: func(req Request) (string, error) {
		mu.Lock()
		n++
		out := strings.Repeat("v", n)
		mu.Unlock()
		return out, nil
	}}
	d := NewDispatcher([]Client{a}, testLogger())

	out, err := d.EditVariations(context.Background(), "short text", "instr", Options{NumVariations: 12})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 5 {
		t.Errorf("expected 5 variations after clamping, got %d", len(out))
	}
}

func TestEditVariations_LongInputFallsBackToSingleEdit(t *testing.T) {
	a := &fakeClient{name: "a", fn: succeedWith("single")}
	d := NewDispatcher([]Client{a}, testLogger())

	long := strings.Repeat("word ", 1001)
	out, err := d.EditVariations(context.Background(), long, "instr", Options{NumVariations: 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 {
		t.Errorf("expected a single candidate above the word limit, got %d", len(out))
	}
	if a.callCount() != 1 {
		t.Errorf("expected 1 call, got %d", a.callCount())
	}
}

func TestEditVariations_NextBackendOnlyWhenAllFail(t *testing.T) {
	a := &fakeClient{name: "a", fn: failWith(&CallError{Backend: "a", StatusCode: 503, Message: "down"})}
	b := &fakeClient{name: "b", fn: succeedWith("from b")}
	d := NewDispatcher([]Client{a, b}, testLogger())

	out, err := d.EditVariations(context.Background(), "short text", "instr", Options{NumVariations: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 || out[0] != "from b" {
		t.Errorf("expected second backend's result, got %v", out)
	}
	if a.callCount() != 2 {
		t.Errorf("expected 2 failed calls on the first backend, got %d", a.callCount())
	}
}

func TestEditVariations_PartialFailureStaysOnBackend(t *testing.T) {
	var mu sync.Mutex
	n := 0
	a := &fakeClient{name: "a", fn: func(req Request) (string, error) {
		mu.Lock()
		n++
		fail := n == 1
		mu.Unlock()
		if fail {
			return "", &CallError{Backend: "a", StatusCode: 500, Message: "flaky"}
		}
		return "survivor", nil
	}}
	b := &fakeClient{name: "b", fn: succeedWith("unused")}
	d := NewDispatcher([]Client{a, b}, testLogger())

	out, err := d.EditVariations(context.Background(), "short text", "instr", Options{NumVariations: 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 || out[0] != "survivor" {
		t.Errorf("expected surviving variations from the first backend, got %v", out)
	}
	if b.callCount() != 0 {
		t.Errorf("second backend called despite partial success")
	}
}

func TestRefine_ThreeStepsWithRisingTemperature(t *testing.T) {
	step := 0
	var mu sync.Mutex
	a := &fakeClient{name: "a", fn: func(req Request) (string, error) {
		mu.Lock()
		step++
		out := []string{"draft", "reviewed", "polished"}[step-1]
		mu.Unlock()
		return out, nil
	}}
	d := NewDispatcher([]Client{a}, testLogger())

	out, err := d.EditChunk(context.Background(), "text", "instr", Options{Refine: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "polished" {
		t.Errorf("expected final step output, got %q", out)
	}
	if len(a.calls) != 3 {
		t.Fatalf("expected 3 calls, got %d", len(a.calls))
	}

	wantTemps := []float64{0.7, 0.8, 0.9}
	for i, w := range wantTemps {
		if math.Abs(a.calls[i].Temperature-w) > 1e-9 {
			t.Errorf("step %d: temperature %g, want %g", i+1, a.calls[i].Temperature, w)
		}
	}
	// Later steps carry the previous output forward.
	if !strings.Contains(a.calls[1].Text, "draft") {
		t.Errorf("review step should see the draft, got %q", a.calls[1].Text)
	}
	if !strings.Contains(a.calls[2].Text, "reviewed") {
		t.Errorf("polish step should see the reviewed version, got %q", a.calls[2].Text)
	}
}

func TestRefine_TemperatureCappedAtOne(t *testing.T) {
	a := &fakeClient{name: "a", fn: succeedWith("out")}
	d := NewDispatcher([]Client{a}, testLogger())

	if _, err := d.EditChunk(context.Background(), "text", "instr", Options{Refine: true, BaseTemperature: 0.95}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, c := range a.calls {
		if c.Temperature > 1.0 {
			t.Errorf("step %d: temperature %g exceeds 1.0", i+1, c.Temperature)
		}
	}
}

func TestRefine_MidChainFailureFallsBack(t *testing.T) {
	step := 0
	var mu sync.Mutex
	a := &fakeClient{name: "a", fn: func(req Request) (string, error) {
		mu.Lock()
		step++
		s := step
		mu.Unlock()
		if s == 2 {
			return "", &CallError{Backend: "a", StatusCode: 500, Message: "review died"}
		}
		return "a step", nil
	}}
	b := &fakeClient{name: "b", fn: succeedWith("b result")}
	d := NewDispatcher([]Client{a, b}, testLogger())

	out, err := d.EditChunk(context.Background(), "text", "instr", Options{Refine: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "b result" {
		t.Errorf("expected full chain to restart on the next backend, got %q", out)
	}
	if b.callCount() != 3 {
		t.Errorf("expected 3 chain calls on the fallback backend, got %d", b.callCount())
	}
}

func TestEditDocument_ShortDocSingleCall(t *testing.T) {
	a := &fakeClient{name: "a", fn: succeedWith("edited short doc")}
	d := NewDispatcher([]Client{a}, testLogger())

	var started int
	out, results, err := d.EditDocument(context.Background(), "a short document", "instr", DocumentOptions{
		OnStart: func(n int) { started = n },
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "edited short doc" {
		t.Errorf("got %q", out)
	}
	if results != nil {
		t.Errorf("expected nil results for the single-call path, got %v", results)
	}
	if started != 1 {
		t.Errorf("OnStart got %d, want 1", started)
	}
	if a.callCount() != 1 {
		t.Errorf("expected 1 call, got %d", a.callCount())
	}
}

func TestEditDocument_ShortDocErrorSurfaces(t *testing.T) {
	a := &fakeClient{name: "a", fn: failWith(&CallError{Backend: "a", StatusCode: 500, Message: "down"})}
	d := NewDispatcher([]Client{a}, testLogger())

	_, _, err := d.EditDocument(context.Background(), "a short document", "instr", DocumentOptions{})
	var ex *ExhaustedError
	if !errors.As(err, &ex) {
		t.Fatalf("expected ExhaustedError for short docs, got %v", err)
	}
}

func TestEditDocument_LongDocChunksAndAggregates(t *testing.T) {
	a := &fakeClient{name: "a", fn: succeedWith("EDITED")}
	d := NewDispatcher([]Client{a}, testLogger())

	var sb strings.Builder
	for range 10 {
		sb.WriteString(strings.TrimSpace(strings.Repeat("steady ", 10)) + ".\n\n")
	}

	var total int
	var settled int
	var mu sync.Mutex
	out, results, err := d.EditDocument(context.Background(), sb.String(), "instr", DocumentOptions{
		Chunking:          chunkCfg(25, 5),
		LargeDocThreshold: 50,
		MaxConcurrent:     2,
		OnStart:           func(n int) { total = n },
		OnChunk: func(int, bool) {
			mu.Lock()
			settled++
			mu.Unlock()
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(results))
	}
	if total != len(results) {
		t.Errorf("OnStart reported %d chunks, results have %d", total, len(results))
	}
	if settled != len(results) {
		t.Errorf("OnChunk fired %d times for %d chunks", settled, len(results))
	}
	want := strings.Repeat("EDITED\n\n", len(results)-1) + "EDITED"
	if out != want {
		t.Errorf("aggregate mismatch:\ngot  %q\nwant %q", out, want)
	}
	for i, r := range results {
		if r.Index != i {
			t.Errorf("result %d has index %d", i, r.Index)
		}
		if r.Failed {
			t.Errorf("result %d unexpectedly failed", i)
		}
	}
}

func TestEditDocument_FailedChunkKeepsOriginalText(t *testing.T) {
	// Fail only the chunk containing the marker; everything else succeeds.
	a := &fakeClient{name: "a", fn: func(req Request) (string, error) {
		if strings.Contains(req.Text, "POISON") {
			return "", &CallError{Backend: "a", StatusCode: 500, Message: "bad chunk"}
		}
		return "EDITED", nil
	}}
	d := NewDispatcher([]Client{a}, testLogger())

	var sb strings.Builder
	for i := range 10 {
		if i == 4 {
			sb.WriteString("POISON " + strings.TrimSpace(strings.Repeat("steady ", 9)) + ".\n\n")
			continue
		}
		sb.WriteString(strings.TrimSpace(strings.Repeat("steady ", 10)) + ".\n\n")
	}

	out, results, err := d.EditDocument(context.Background(), sb.String(), "instr", DocumentOptions{
		Chunking:          chunkCfg(25, 5),
		LargeDocThreshold: 50,
	})
	if err != nil {
		t.Fatalf("fail-open should not surface an error, got %v", err)
	}

	failed := 0
	for _, r := range results {
		if r.Failed {
			failed++
			if !strings.Contains(r.Text, "POISON") {
				t.Errorf("failed chunk lost its original text: %q", r.Text)
			}
		}
	}
	if failed != 1 {
		t.Errorf("expected exactly 1 failed chunk, got %d", failed)
	}
	if !strings.Contains(out, "POISON") {
		t.Error("aggregate should carry the failed chunk's original text")
	}
	if !strings.Contains(out, "EDITED") {
		t.Error("aggregate should carry the successful chunks' edits")
	}
}

func TestAggregate_PreservesOrder(t *testing.T) {
	out := Aggregate([]ChunkResult{
		{Index: 0, Text: "first"},
		{Index: 1, Text: "second"},
		{Index: 2, Text: "third"},
	})
	if out != "first\n\nsecond\n\nthird" {
		t.Errorf("got %q", out)
	}
}
