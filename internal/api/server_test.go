package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dgallion1/redraft/internal/config"
	"github.com/dgallion1/redraft/internal/docstore"
	"github.com/dgallion1/redraft/internal/editor"
	"github.com/dgallion1/redraft/internal/pipeline"
)

const testAPIKey = "test-api-key"

type stubBackend struct {
	out string
}

func (s *stubBackend) Name() string { return "stub" }

func (s *stubBackend) Edit(context.Context, editor.Request) (string, error) {
	return s.out, nil
}

// fakeDocstore records draft and document writes.
type fakeDocstore struct {
	mu    sync.Mutex
	paths []string
}

func (f *fakeDocstore) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.paths = append(f.paths, r.Method+" "+r.URL.Path)
		f.mu.Unlock()
		if r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/drafts/") {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
}

func (f *fakeDocstore) saw(prefix string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.paths {
		if strings.HasPrefix(p, prefix) {
			return true
		}
	}
	return false
}

func newTestServer(t *testing.T, backendOut string) (*Server, *fakeDocstore) {
	t.Helper()

	fds := &fakeDocstore{}
	dsSrv := httptest.NewServer(fds.handler())
	t.Cleanup(dsSrv.Close)

	cfg := config.Config{
		RedraftAPIKey:          testAPIKey,
		WorkerCount:            1,
		MaxQueueSize:           10,
		MaxConcurrentChunks:    2,
		MaxUploadBytes:         1 << 20,
		TargetWords:            500,
		Tolerance:              100,
		LargeDocThresholdWords: 1000,
		JobTTL:                 time.Hour,
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	dispatcher := editor.NewDispatcher([]editor.Client{&stubBackend{out: backendOut}}, log)
	ds := docstore.NewClient(dsSrv.URL, "ds-key")

	orch := pipeline.NewOrchestrator(cfg, dispatcher, ds, log)
	orch.Start(context.Background())
	t.Cleanup(orch.Stop)

	return NewServer(orch, dispatcher, log, cfg), fds
}

func doJSON(t *testing.T, srv *Server, method, path string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+testAPIKey)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &m); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return m
}

func waitForStatus(t *testing.T, srv *Server, jobID string, want ...string) map[string]any {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		rec := doJSON(t, srv, http.MethodGet, "/api/edit/"+jobID+"/status", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("status poll returned %d: %s", rec.Code, rec.Body.String())
		}
		snap := decodeBody(t, rec)
		status, _ := snap["status"].(string)
		for _, w := range want {
			if status == w {
				return snap
			}
		}
		if status == "failed" {
			t.Fatalf("job failed: %s", rec.Body.String())
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("timed out waiting for job status")
	return nil
}

func TestHealth_Public(t *testing.T) {
	srv, _ := newTestServer(t, "x")
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestAuth_MissingKey(t *testing.T) {
	srv, _ := newTestServer(t, "x")
	req := httptest.NewRequest(http.MethodPost, "/api/edit", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without bearer token, got %d", rec.Code)
	}
}

func TestAuth_WrongKey(t *testing.T) {
	srv, _ := newTestServer(t, "x")
	req := httptest.NewRequest(http.MethodPost, "/api/edit", strings.NewReader(`{}`))
	req.Header.Set("Authorization", "Bearer wrong")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 with wrong token, got %d", rec.Code)
	}
}

func TestEdit_RequiresInstruction(t *testing.T) {
	srv, _ := newTestServer(t, "x")
	rec := doJSON(t, srv, http.MethodPost, "/api/edit", `{"text":"some text"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestEdit_FullReviewFlow(t *testing.T) {
	srv, fds := newTestServer(t, "Hello there. Goodbye world.")

	rec := doJSON(t, srv, http.MethodPost, "/api/edit",
		`{"text":"Hello world. Goodbye world.","instruction":"change the greeting"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decodeBody(t, rec)
	jobID, _ := resp["job_id"].(string)
	if jobID == "" {
		t.Fatal("expected a job id")
	}

	waitForStatus(t, srv, jobID, "completed")

	// One pending change group.
	rec = doJSON(t, srv, http.MethodGet, "/api/edit/"+jobID+"/changes", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("changes: %d: %s", rec.Code, rec.Body.String())
	}
	changes := decodeBody(t, rec)
	groups, _ := changes["groups"].([]any)
	if len(groups) != 1 {
		t.Fatalf("expected 1 change group, got %d", len(groups))
	}
	group := groups[0].(map[string]any)
	groupID, _ := group["id"].(string)
	if group["original_fragment"] != "world." || group["edited_fragment"] != "there." {
		t.Errorf("unexpected fragments: %v", group)
	}

	// Reject it: clean text returns to the original.
	rec = doJSON(t, srv, http.MethodPost, "/api/edit/"+jobID+"/changes/"+groupID+"/reject", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("reject: %d: %s", rec.Code, rec.Body.String())
	}
	rec = doJSON(t, srv, http.MethodGet, "/api/edit/"+jobID+"/clean", "")
	clean := decodeBody(t, rec)
	if clean["clean_text"] != "Hello world. Goodbye world." {
		t.Errorf("clean text after reject: %v", clean["clean_text"])
	}

	// Rejecting again is a no-op; accepting now conflicts.
	rec = doJSON(t, srv, http.MethodPost, "/api/edit/"+jobID+"/changes/"+groupID+"/reject", "")
	if rec.Code != http.StatusOK {
		t.Errorf("idempotent reject: expected 200, got %d", rec.Code)
	}
	rec = doJSON(t, srv, http.MethodPost, "/api/edit/"+jobID+"/changes/"+groupID+"/accept", "")
	if rec.Code != http.StatusConflict {
		t.Errorf("flip after reject: expected 409, got %d", rec.Code)
	}

	// Save persists to the docstore.
	rec = doJSON(t, srv, http.MethodPost, "/api/edit/"+jobID+"/save", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("save: %d: %s", rec.Code, rec.Body.String())
	}
	if !fds.saw("PUT /documents/") {
		t.Error("expected the clean text saved to the docstore")
	}
}

func TestEdit_AcceptAll(t *testing.T) {
	srv, _ := newTestServer(t, "Hello there. Goodbye world.")

	rec := doJSON(t, srv, http.MethodPost, "/api/edit",
		`{"text":"Hello world. Goodbye world.","instruction":"change the greeting"}`)
	jobID, _ := decodeBody(t, rec)["job_id"].(string)
	waitForStatus(t, srv, jobID, "completed")

	rec = doJSON(t, srv, http.MethodPost, "/api/edit/"+jobID+"/changes/accept_all", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("accept_all: %d", rec.Code)
	}
	counts := decodeBody(t, rec)
	if counts["accepted"].(float64) != 1 || counts["pending"].(float64) != 0 {
		t.Errorf("counts after accept_all: %v", counts)
	}

	rec = doJSON(t, srv, http.MethodGet, "/api/edit/"+jobID+"/clean", "")
	if got := decodeBody(t, rec)["clean_text"]; got != "Hello there. Goodbye world." {
		t.Errorf("clean text after accept_all: %v", got)
	}
}

func TestEdit_UnknownJob(t *testing.T) {
	srv, _ := newTestServer(t, "x")

	rec := doJSON(t, srv, http.MethodGet, "/api/edit/nonexistent/changes", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown job: expected 404, got %d", rec.Code)
	}
}

func TestVariations_Endpoint(t *testing.T) {
	srv, _ := newTestServer(t, "one consistent answer")

	rec := doJSON(t, srv, http.MethodPost, "/api/variations",
		`{"text":"short passage","instruction":"rephrase","num_variations":3}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decodeBody(t, rec)
	variations, _ := resp["variations"].([]any)
	if len(variations) != 1 {
		t.Errorf("expected identical variations deduplicated to 1, got %d", len(variations))
	}
}
