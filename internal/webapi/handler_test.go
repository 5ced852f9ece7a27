package webapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"transcribecore/internal/database"
	"transcribecore/internal/jobstore"
	"transcribecore/internal/models"
	"transcribecore/internal/queue"
	"transcribecore/internal/repository"

	"github.com/gin-gonic/gin"
)

type noopProcessor struct{}

func (noopProcessor) Process(ctx context.Context, jobID string) {}

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dbPath := filepath.Join(t.TempDir(), "jobs.db")
	if err := database.Initialize(dbPath); err != nil {
		t.Fatalf("database.Initialize: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	repo := repository.NewJobRepository(database.DB)
	bus := jobstore.NewEventBus()
	t.Cleanup(bus.Close)
	store := jobstore.NewStore(repo, bus)

	q := queue.New(noopProcessor{}, 1)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	q.Start(ctx)

	return NewHandler(store, q, t.TempDir())
}

func TestSubmitJob_CreatesQueuedJob(t *testing.T) {
	h := newTestHandler(t)
	router := SetupRoutes(h)

	body := map[string]any{
		"source":      map[string]string{"kind": "upload", "value": "/tmp/song.wav"},
		"instruments": []string{"piano"},
	}
	payload, _ := json.Marshal(body)

	req := httptest.NewRequest(http.MethodPost, "/transcribe", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp transcribeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.JobID == "" {
		t.Fatal("expected non-empty job_id")
	}
	if resp.Status != string(models.StatusQueued) {
		t.Fatalf("expected status queued, got %s", resp.Status)
	}
	if resp.WebsocketURL != "/jobs/"+resp.JobID+"/stream" {
		t.Fatalf("unexpected websocket_url: %s", resp.WebsocketURL)
	}
}

func TestSubmitJob_MalformedRequestReturns400(t *testing.T) {
	h := newTestHandler(t)
	router := SetupRoutes(h)

	req := httptest.NewRequest(http.MethodPost, "/transcribe", bytes.NewReader([]byte(`{"source":{}}`)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestGetJob_UnknownIDReturns404(t *testing.T) {
	h := newTestHandler(t)
	router := SetupRoutes(h)

	req := httptest.NewRequest(http.MethodGet, "/jobs/does-not-exist", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestGetJob_RoundTripsSubmittedJob(t *testing.T) {
	h := newTestHandler(t)
	router := SetupRoutes(h)

	body := map[string]any{
		"source":      map[string]string{"kind": "upload", "value": "/tmp/song.wav"},
		"instruments": []string{"piano"},
	}
	payload, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, "/transcribe", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var submitResp transcribeResponse
	json.Unmarshal(rec.Body.Bytes(), &submitResp)

	getReq := httptest.NewRequest(http.MethodGet, "/jobs/"+submitResp.JobID, nil)
	getRec := httptest.NewRecorder()
	router.ServeHTTP(getRec, getReq)

	if getRec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", getRec.Code, getRec.Body.String())
	}

	var rec2 jobstore.Record
	if err := json.Unmarshal(getRec.Body.Bytes(), &rec2); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	if rec2.JobID != submitResp.JobID {
		t.Fatalf("expected job_id %s, got %s", submitResp.JobID, rec2.JobID)
	}
}

func TestGetArtifact_UnrecognizedFilenameReturns404(t *testing.T) {
	h := newTestHandler(t)
	router := SetupRoutes(h)

	req := httptest.NewRequest(http.MethodGet, "/jobs/some-job/artifact/piano.txt", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestHealthCheck(t *testing.T) {
	h := newTestHandler(t)
	router := SetupRoutes(h)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
