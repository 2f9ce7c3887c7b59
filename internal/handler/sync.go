package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/buildpulse/buildpulse-go/internal/model"
	"github.com/buildpulse/buildpulse-go/internal/service"
	"github.com/go-chi/chi/v5"
)

// SyncHandler handles HTTP requests that synchronize a project's build history.
type SyncHandler struct {
	service *service.SyncService
}

// NewSyncHandler creates a new SyncHandler.
func NewSyncHandler(svc *service.SyncService) *SyncHandler {
	return &SyncHandler{service: svc}
}

// HandleSynchronize handles POST /api/v1/projects/{project_id}/synchronization requests.
func (h *SyncHandler) HandleSynchronize(w http.ResponseWriter, r *http.Request) {
	ts, err := h.service.Synchronize(r.Context(), chi.URLParam(r, "project_id"), nil)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, model.SyncResponse{SynchronizationTimestamp: &ts})
}

// HandleLastSync handles GET /api/v1/projects/{project_id}/synchronization requests.
func (h *SyncHandler) HandleLastSync(w http.ResponseWriter, r *http.Request) {
	ts, err := h.service.LastSyncTimestamp(r.Context(), chi.URLParam(r, "project_id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, model.SyncResponse{SynchronizationTimestamp: ts})
}

// HandleProgress handles GET /api/v1/projects/{project_id}/synchronization/progress
// requests. It runs a synchronization and streams it as server-sent events:
// "progress" per update, then a single "complete" or "error" event.
func (h *SyncHandler) HandleProgress(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	rc.Flush()

	send := func(event string, v any) {
		data, err := json.Marshal(v)
		if err != nil {
			slog.Error("encoding sse event", "event", event, "error", err)
			return
		}
		fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
		rc.Flush()
	}

	ts, err := h.service.Synchronize(r.Context(), chi.URLParam(r, "project_id"), func(p model.SyncProgress) {
		send("progress", p)
	})
	if err != nil {
		_, msg := serviceError(err)
		send("error", errorResponse(msg))
		return
	}

	send("complete", model.SyncResponse{SynchronizationTimestamp: &ts})
}
