package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/psantana5/hls-server/pkg/estimate"
	"github.com/psantana5/hls-server/pkg/logging"
	"github.com/psantana5/hls-server/pkg/models"
	"github.com/psantana5/hls-server/pkg/storage"
	"github.com/psantana5/hls-server/pkg/store"
)

// Submitter schedules a registered job for background execution.
type Submitter interface {
	Submit(req models.JobRequest) error
}

// CreatedRecorder counts accepted jobs for metrics.
type CreatedRecorder interface {
	RecordJobCreated()
}

// Handler serves the video API: upload-and-transcode submission and the
// progress poll endpoint.
type Handler struct {
	store          *store.JobStore
	runner         Submitter
	layout         *storage.Layout
	logger         *logging.Logger
	maxUploadBytes int64
	metrics        CreatedRecorder
}

// NewHandler creates the API handler.
func NewHandler(s *store.JobStore, r Submitter, layout *storage.Layout, logger *logging.Logger, maxUploadBytes int64) *Handler {
	return &Handler{
		store:          s,
		runner:         r,
		layout:         layout,
		logger:         logger,
		maxUploadBytes: maxUploadBytes,
	}
}

// SetMetrics attaches a metrics recorder for accepted jobs. Optional.
func (h *Handler) SetMetrics(m CreatedRecorder) {
	h.metrics = m
}

// RegisterRoutes registers all API routes, including static serving of the
// produced HLS streams.
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/video/process", h.ProcessVideo).Methods("POST")
	r.HandleFunc("/api/video/progress/{jobId}", h.GetProgress).Methods("GET")
	r.HandleFunc("/health", h.Health).Methods("GET")
	r.PathPrefix("/streams/").Handler(
		http.StripPrefix("/streams/", http.FileServer(http.Dir(h.layout.StreamDir))))
}

// ProcessVideo accepts a multipart video upload, persists it, registers a
// job and returns 202 with the job id. The transcode itself runs after the
// response is sent.
func (h *Handler) ProcessVideo(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	file, header, err := r.FormFile("video")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "please upload a video file"})
		return
	}
	defer file.Close()

	if header.Size == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "please upload a video file"})
		return
	}

	inputPath, err := h.layout.SaveUpload(header.Filename, file)
	if err != nil {
		h.logger.Error("Failed to persist upload", map[string]interface{}{"error": err.Error()})
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to store upload"})
		return
	}

	outputPath, streamURL := h.layout.StreamPaths()
	jobID := uuid.New().String()

	req := models.JobRequest{
		ID:         jobID,
		InputPath:  inputPath,
		OutputPath: outputPath,
		StreamURL:  streamURL,
	}
	if err := h.runner.Submit(req); err != nil {
		h.logger.Error("Failed to schedule job", map[string]interface{}{"job_id": jobID, "error": err.Error()})
		if delErr := h.layout.Delete(inputPath); delErr != nil {
			h.logger.Warn("Failed to delete orphaned upload", map[string]interface{}{"error": delErr.Error()})
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to schedule job"})
		return
	}

	if h.metrics != nil {
		h.metrics.RecordJobCreated()
	}
	h.logger.Info("Job accepted", map[string]interface{}{"job_id": jobID, "file": header.Filename})

	writeJSON(w, http.StatusAccepted, models.SubmitResponse{JobID: jobID})
}

// GetProgress resolves a job id to its terminal outcome (delivered exactly
// once) or a live-progress snapshot with a remaining-time estimate. Unknown
// ids report 0% in-progress: the job may simply not have ticked yet.
func (h *Handler) GetProgress(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["jobId"]

	if outcome, ok := h.store.TakeOutcome(jobID); ok {
		writeJSON(w, http.StatusOK, outcome)
		return
	}

	if pct, history, ok := h.store.PeekLive(jobID); ok {
		remaining := "00:00:00"
		result := estimate.EstimateRemaining(history)
		if result.Success {
			remaining = estimate.FormatHMS(result.Remaining)
			h.logger.Debug("Estimate", map[string]interface{}{
				"job_id":    jobID,
				"remaining": remaining,
				"eta":       result.Eta.Format("15:04:05"),
				"rate":      fmt.Sprintf("%.6f", result.RatePerSecond),
			})
		} else {
			h.logger.Debug("Cannot estimate", map[string]interface{}{
				"job_id": jobID,
				"reason": result.ErrorReason,
			})
		}
		writeJSON(w, http.StatusOK, models.ProgressResponse{
			InProgress: true,
			Progress:   pct,
			Remaining:  remaining,
		})
		return
	}

	writeJSON(w, http.StatusOK, models.ProgressResponse{InProgress: true, Progress: 0})
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
