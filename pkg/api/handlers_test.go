package api_test

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/psantana5/hls-server/pkg/api"
	"github.com/psantana5/hls-server/pkg/logging"
	"github.com/psantana5/hls-server/pkg/models"
	"github.com/psantana5/hls-server/pkg/storage"
	"github.com/psantana5/hls-server/pkg/store"
)

// fakeSubmitter records submitted jobs without running anything.
type fakeSubmitter struct {
	mu   sync.Mutex
	reqs []models.JobRequest
	err  error
}

func (f *fakeSubmitter) Submit(req models.JobRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.reqs = append(f.reqs, req)
	return nil
}

func (f *fakeSubmitter) submitted() []models.JobRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.JobRequest, len(f.reqs))
	copy(out, f.reqs)
	return out
}

func quietLogger() *logging.Logger {
	l := logging.NewLogger(logging.ERROR, false)
	l.SetOutput(discard{})
	return l
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func newTestRouter(t *testing.T, s *store.JobStore, sub api.Submitter) (*mux.Router, *storage.Layout) {
	t.Helper()
	dir := t.TempDir()
	layout, err := storage.NewLayout(dir+"/uploads", dir+"/streams")
	if err != nil {
		t.Fatalf("Failed to create layout: %v", err)
	}

	handler := api.NewHandler(s, sub, layout, quietLogger(), 500*1024*1024)
	router := mux.NewRouter()
	handler.RegisterRoutes(router)
	return router, layout
}

func multipartBody(t *testing.T, field, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile(field, filename)
	if err != nil {
		t.Fatalf("Failed to create form file: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("Failed to write form file: %v", err)
	}
	writer.Close()
	return &buf, writer.FormDataContentType()
}

func TestProcessVideoAcceptsUpload(t *testing.T) {
	s := store.NewJobStore()
	sub := &fakeSubmitter{}
	router, _ := newTestRouter(t, s, sub)

	body, contentType := multipartBody(t, "video", "clip.mp4", []byte("fake video bytes"))
	req := httptest.NewRequest("POST", "/api/video/process", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("Expected status 202, got %d. Response: %s", w.Code, w.Body.String())
	}

	var resp models.SubmitResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if _, err := uuid.Parse(resp.JobID); err != nil {
		t.Errorf("Expected a UUID job id, got %q", resp.JobID)
	}

	reqs := sub.submitted()
	if len(reqs) != 1 {
		t.Fatalf("Expected 1 submitted job, got %d", len(reqs))
	}
	if reqs[0].ID != resp.JobID {
		t.Errorf("Submitted job id %q does not match response %q", reqs[0].ID, resp.JobID)
	}
	if !strings.HasPrefix(reqs[0].StreamURL, "/streams/") {
		t.Errorf("Expected stream URL under /streams/, got %q", reqs[0].StreamURL)
	}
	if !strings.Contains(reqs[0].InputPath, "clip.mp4") {
		t.Errorf("Expected input path to keep the original filename, got %q", reqs[0].InputPath)
	}

	// The upload must be on disk before the response goes out.
	if _, err := os.Stat(reqs[0].InputPath); err != nil {
		t.Errorf("Expected persisted upload at %s: %v", reqs[0].InputPath, err)
	}
}

func TestProcessVideoRejectsMissingFile(t *testing.T) {
	s := store.NewJobStore()
	router, _ := newTestRouter(t, s, &fakeSubmitter{})

	req := httptest.NewRequest("POST", "/api/video/process", strings.NewReader("not multipart"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

func TestProcessVideoRejectsEmptyFile(t *testing.T) {
	s := store.NewJobStore()
	router, _ := newTestRouter(t, s, &fakeSubmitter{})

	body, contentType := multipartBody(t, "video", "empty.mp4", nil)
	req := httptest.NewRequest("POST", "/api/video/process", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for empty upload, got %d", w.Code)
	}
}

func TestGetProgressUnknownJob(t *testing.T) {
	s := store.NewJobStore()
	router, _ := newTestRouter(t, s, &fakeSubmitter{})

	req := httptest.NewRequest("GET", "/api/video/progress/"+uuid.New().String(), nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var resp models.ProgressResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if !resp.InProgress || resp.Progress != 0 {
		t.Errorf("Expected inProgress=true progress=0, got %+v", resp)
	}
}

func TestGetProgressLiveJobWithEstimate(t *testing.T) {
	s := store.NewJobStore()
	router, _ := newTestRouter(t, s, &fakeSubmitter{})

	// Seed at t0, 50% at t0+10s: 5%/s, so 10 seconds remain.
	id := uuid.New().String()
	t0 := time.Now().Add(-10 * time.Second)
	if err := s.Create(id, t0); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	s.RecordProgress(id, 50, t0.Add(10*time.Second))

	req := httptest.NewRequest("GET", "/api/video/progress/"+id, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var resp models.ProgressResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if !resp.InProgress {
		t.Error("Expected inProgress=true")
	}
	if resp.Progress != 50 {
		t.Errorf("Expected progress 50, got %d", resp.Progress)
	}
	if resp.Remaining != "00:00:10" && resp.Remaining != "00:00:09" {
		t.Errorf("Expected ~10s remaining, got %q", resp.Remaining)
	}
}

func TestGetProgressDegradesWithoutEstimate(t *testing.T) {
	s := store.NewJobStore()
	router, _ := newTestRouter(t, s, &fakeSubmitter{})

	// Only the seed sample exists; estimation fails but the poll succeeds.
	id := uuid.New().String()
	if err := s.Create(id, time.Now()); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	req := httptest.NewRequest("GET", "/api/video/progress/"+id, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var resp models.ProgressResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if resp.Remaining != "00:00:00" {
		t.Errorf("Expected zeroed remaining on estimation failure, got %q", resp.Remaining)
	}
}

func TestGetProgressDeliversOutcomeOnce(t *testing.T) {
	s := store.NewJobStore()
	router, _ := newTestRouter(t, s, &fakeSubmitter{})

	id := uuid.New().String()
	if err := s.Create(id, time.Now()); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	s.Finish(id, models.Outcome{Success: true, StreamURL: "/streams/out.m3u8"})

	// First poll: the terminal outcome.
	req := httptest.NewRequest("GET", "/api/video/progress/"+id, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var outcome models.Outcome
	if err := json.Unmarshal(w.Body.Bytes(), &outcome); err != nil {
		t.Fatalf("Failed to parse outcome: %v", err)
	}
	if !outcome.Success || outcome.StreamURL != "/streams/out.m3u8" {
		t.Errorf("Unexpected outcome: %+v", outcome)
	}

	// Second poll: outcome is consumed, the job looks unknown.
	req = httptest.NewRequest("GET", "/api/video/progress/"+id, nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var resp models.ProgressResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if !resp.InProgress || resp.Progress != 0 {
		t.Errorf("Expected unknown-job response after outcome consumed, got %+v", resp)
	}
}

func TestSubmitFailureCleansUpUpload(t *testing.T) {
	s := store.NewJobStore()
	sub := &fakeSubmitter{err: store.ErrJobExists}
	router, layout := newTestRouter(t, s, sub)

	body, contentType := multipartBody(t, "video", "clip.mp4", []byte("bytes"))
	req := httptest.NewRequest("POST", "/api/video/process", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("Expected status 500, got %d", w.Code)
	}

	entries, err := os.ReadDir(layout.UploadDir)
	if err != nil {
		t.Fatalf("Failed to read upload dir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("Expected orphaned upload deleted, found %d files", len(entries))
	}
}

func TestCORSMiddleware(t *testing.T) {
	handler := api.CORSMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("OPTIONS", "/api/video/process", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("Expected 204 for preflight, got %d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("Expected allow-all CORS header")
	}
}
