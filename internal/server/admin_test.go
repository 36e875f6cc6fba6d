package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// ---------------------------------------------------------------------------
// Fakes for admin endpoint tests
// ---------------------------------------------------------------------------

// fakeIngestor implements ingestor for tests.
type fakeIngestor struct {
	// n is the ingested count to report.
	n int
	// err is returned by Ingest when non-nil.
	err error
	// lastData records the payload of the most recent Ingest call.
	lastData []byte
}

func (f *fakeIngestor) Ingest(_ context.Context, data []byte) (int, error) {
	f.lastData = data
	if f.err != nil {
		return f.n, f.err
	}
	return f.n, nil
}

// fakeWorker implements feedWorker for tests.
type fakeWorker struct {
	running  bool
	count    uint64
	runErr   error
	flushErr error
	flushed  bool
	stopped  bool
}

func (f *fakeWorker) RunWorker(_ context.Context) error {
	if f.runErr != nil {
		return f.runErr
	}
	f.running = true
	return nil
}

func (f *fakeWorker) StopWorker() {
	f.running = false
	f.stopped = true
}

func (f *fakeWorker) Running() bool { return f.running }

func (f *fakeWorker) Count(_ context.Context) (uint64, error) { return f.count, nil }

func (f *fakeWorker) FlushToLongTerm(_ context.Context) error {
	if f.flushErr != nil {
		return f.flushErr
	}
	f.flushed = true
	return nil
}

// ---------------------------------------------------------------------------
// POST /api/admin/upload_json
// ---------------------------------------------------------------------------

func TestHandleUpload_Success(t *testing.T) {
	t.Parallel()

	ing := &fakeIngestor{n: 3}
	s := newTestServer()
	s.ingest = ing

	payload := `{"doc1":{"title":"Opening hours"},"doc2":"plain text","doc3":[1,2]}`
	req := httptest.NewRequest(http.MethodPost, "/api/admin/upload_json",
		strings.NewReader(payload))
	w := httptest.NewRecorder()

	s.handleUpload(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d — body: %s", w.Code, w.Body.String())
	}
	var resp uploadResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Ingested != 3 {
		t.Errorf("ingested: got %d, want 3", resp.Ingested)
	}
	if string(ing.lastData) != payload {
		t.Errorf("ingestor received %q", ing.lastData)
	}
}

func TestHandleUpload_EmptyBody(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	s.ingest = &fakeIngestor{}

	req := httptest.NewRequest(http.MethodPost, "/api/admin/upload_json", strings.NewReader(""))
	w := httptest.NewRecorder()

	s.handleUpload(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for empty body, got %d", w.Code)
	}
}

func TestHandleUpload_IngestError(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	s.ingest = &fakeIngestor{err: errors.New("payload must be a JSON object or array")}

	req := httptest.NewRequest(http.MethodPost, "/api/admin/upload_json",
		strings.NewReader(`"just a string"`))
	w := httptest.NewRecorder()

	s.handleUpload(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for ingest error, got %d", w.Code)
	}
	var resp errorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.Contains(resp.Error, "JSON object or array") {
		t.Errorf("error body: got %q", resp.Error)
	}
}

func TestHandleUpload_NotConfigured(t *testing.T) {
	t.Parallel()

	s := newTestServer()

	req := httptest.NewRequest(http.MethodPost, "/api/admin/upload_json",
		strings.NewReader(`{}`))
	w := httptest.NewRecorder()

	s.handleUpload(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 when ingestion is not wired, got %d", w.Code)
	}
}

// ---------------------------------------------------------------------------
// Worker control endpoints
// ---------------------------------------------------------------------------

func TestHandleWorkerStartStop(t *testing.T) {
	t.Parallel()

	wk := &fakeWorker{count: 7}
	s := newTestServer()
	s.worker = wk

	req := httptest.NewRequest(http.MethodPost, "/api/admin/worker/start", nil)
	w := httptest.NewRecorder()
	s.handleWorkerStart(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("start: expected 200, got %d", w.Code)
	}
	var resp workerStatusResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Running {
		t.Error("start: expected running:true")
	}
	if resp.Count != 7 {
		t.Errorf("start: count got %d, want 7", resp.Count)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/admin/worker/stop", nil)
	w = httptest.NewRecorder()
	s.handleWorkerStop(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("stop: expected 200, got %d", w.Code)
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Running {
		t.Error("stop: expected running:false")
	}
	if !wk.stopped {
		t.Error("stop: StopWorker was not called")
	}
}

func TestHandleWorkerStart_Error(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	s.worker = &fakeWorker{runErr: errors.New("no feed source configured")}

	req := httptest.NewRequest(http.MethodPost, "/api/admin/worker/start", nil)
	w := httptest.NewRecorder()
	s.handleWorkerStart(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", w.Code)
	}
}

func TestHandleWorkerFlush(t *testing.T) {
	t.Parallel()

	wk := &fakeWorker{}
	s := newTestServer()
	s.worker = wk

	req := httptest.NewRequest(http.MethodPost, "/api/admin/worker/flush", nil)
	w := httptest.NewRecorder()
	s.handleWorkerFlush(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !wk.flushed {
		t.Error("FlushToLongTerm was not called")
	}
}

func TestHandleWorkerStatus_NotConfigured(t *testing.T) {
	t.Parallel()

	s := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/api/admin/worker/status", nil)
	w := httptest.NewRecorder()
	s.handleWorkerStatus(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 when worker is not wired, got %d", w.Code)
	}
}

// ---------------------------------------------------------------------------
// Model endpoints
// ---------------------------------------------------------------------------

func TestHandleModelSet(t *testing.T) {
	t.Parallel()

	reg := &fakeRegistry{model: "llama3"}
	s := newTestServer()
	s.sessions = reg

	req := httptest.NewRequest(http.MethodPost, "/api/admin/model",
		strings.NewReader(`{"model":"qwen2"}`))
	w := httptest.NewRecorder()
	s.handleModelSet(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d — body: %s", w.Code, w.Body.String())
	}
	var resp modelResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Model != "qwen2" {
		t.Errorf("model: got %q, want qwen2", resp.Model)
	}
}

func TestHandleModelSet_Rejected(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	s.sessions = &fakeRegistry{setErr: errors.New("model must not be empty")}

	req := httptest.NewRequest(http.MethodPost, "/api/admin/model",
		strings.NewReader(`{"model":""}`))
	w := httptest.NewRecorder()
	s.handleModelSet(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestHandleModelGet(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	s.sessions = &fakeRegistry{model: "gpt-4o"}

	w := httptest.NewRecorder()
	s.handleModelGet(w, httptest.NewRequest(http.MethodGet, "/api/admin/model", nil))

	var resp modelResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Model != "gpt-4o" {
		t.Errorf("model: got %q", resp.Model)
	}
	if resp.Sessions != 1 {
		t.Errorf("sessions: got %d, want 1", resp.Sessions)
	}
}
