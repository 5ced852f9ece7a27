// Package webapi is the HTTP/WS surface of the core, implementing
// spec.md §6's literal endpoint set over gin, grounded on the teacher's
// internal/api handler/router shape.
package webapi

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"transcribecore/internal/jobstore"
	"transcribecore/internal/models"
	"transcribecore/internal/queue"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Handler holds the Job Store and queue the HTTP surface is a thin
// adapter over.
type Handler struct {
	store         *jobstore.Store
	q             *queue.Queue
	workspaceRoot string
}

// NewHandler constructs the webapi Handler.
func NewHandler(store *jobstore.Store, q *queue.Queue, workspaceRoot string) *Handler {
	return &Handler{store: store, q: q, workspaceRoot: workspaceRoot}
}

// Submit implements dropzone.Submitter so the watch-folder ingester
// reuses exactly the same create-then-enqueue path as POST /transcribe.
func (h *Handler) Submit(jobID string, sourcePath string, opts models.JobOptions) error {
	_, err := h.store.Create(context.Background(), jobID, models.SourceUpload, sourcePath, opts)
	if err != nil {
		return err
	}
	h.q.Enqueue(jobID)
	return nil
}

type transcribeRequest struct {
	Source struct {
		Kind  string `json:"kind" binding:"required,oneof=url upload"`
		Value string `json:"value" binding:"required"`
	} `json:"source" binding:"required"`
	Instruments []string `json:"instruments" binding:"required,min=1"`
	Options     struct {
		VocalSubstituteProgram int  `json:"vocal_substitute_program"`
		EnableTTA              bool `json:"enable_tta"`
		EnableRefiner          bool `json:"enable_refiner"`
		ParallelStems          bool `json:"parallel_stems"`
	} `json:"options"`
}

type transcribeResponse struct {
	JobID        string `json:"job_id"`
	Status       string `json:"status"`
	WebsocketURL string `json:"websocket_url"`
}

// SubmitJob handles POST /transcribe, per spec.md §6.
func (h *Handler) SubmitJob(c *gin.Context) {
	var req transcribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	jobID := uuid.New().String()
	opts := models.JobOptions{
		Instruments:            req.Instruments,
		VocalSubstituteProgram: req.Options.VocalSubstituteProgram,
		EnableTTA:              req.Options.EnableTTA,
		EnableRefiner:          req.Options.EnableRefiner,
		ParallelStems:          req.Options.ParallelStems,
	}

	if _, err := h.store.Create(c.Request.Context(), jobID, models.SourceKind(req.Source.Kind), req.Source.Value, opts); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create job"})
		return
	}
	h.q.Enqueue(jobID)

	c.JSON(http.StatusCreated, transcribeResponse{
		JobID:        jobID,
		Status:       string(models.StatusQueued),
		WebsocketURL: "/jobs/" + jobID + "/stream",
	})
}

// GetJob handles GET /jobs/{job_id}.
func (h *Handler) GetJob(c *gin.Context) {
	jobID := c.Param("job_id")
	rec, err := h.store.Get(c.Request.Context(), jobID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}
	c.JSON(http.StatusOK, rec)
}

// GetMetadata handles GET /jobs/{job_id}/metadata.
func (h *Handler) GetMetadata(c *gin.Context) {
	jobID := c.Param("job_id")
	rec, err := h.store.Get(c.Request.Context(), jobID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}
	c.JSON(http.StatusOK, rec.Metadata)
}

// GetArtifact handles GET /jobs/{job_id}/artifact/{instrument}.mid.
func (h *Handler) GetArtifact(c *gin.Context) {
	jobID := c.Param("job_id")
	filename := c.Param("filename")
	instrument := strings.TrimSuffix(filename, ".mid")
	if instrument == filename {
		c.JSON(http.StatusNotFound, gin.H{"error": "unrecognized artifact name"})
		return
	}

	rec, err := h.store.Get(c.Request.Context(), jobID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}

	ref, ok := rec.Artifacts[instrument]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "artifact not yet produced"})
		return
	}

	data, err := os.ReadFile(filepath.Clean(ref.MIDIPath))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "artifact file missing"})
		return
	}
	c.Data(http.StatusOK, "audio/midi", data)
}

// HealthCheck is a liveness probe endpoint, no auth required.
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
