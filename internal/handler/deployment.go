package handler

import (
	"net/http"
	"strconv"

	"github.com/buildpulse/buildpulse-go/internal/model"
	"github.com/buildpulse/buildpulse-go/internal/service"
	"github.com/go-chi/chi/v5"
)

// DeploymentHandler handles deployment frequency queries.
type DeploymentHandler struct {
	service *service.DeploymentService
}

// NewDeploymentHandler creates a new DeploymentHandler.
func NewDeploymentHandler(svc *service.DeploymentService) *DeploymentHandler {
	return &DeploymentHandler{service: svc}
}

// HandleCount handles GET /api/v1/pipelines/{pipeline_id}/deployments requests.
// startTime and endTime are epoch millis.
func (h *DeploymentHandler) HandleCount(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start, err := strconv.ParseInt(q.Get("startTime"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse("startTime must be epoch milliseconds"))
		return
	}
	end, err := strconv.ParseInt(q.Get("endTime"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse("endTime must be epoch milliseconds"))
		return
	}

	pipelineID := chi.URLParam(r, "pipeline_id")
	targetStage := q.Get("targetStage")

	count, err := h.service.CountDeployments(r.Context(), pipelineID, targetStage, start, end)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, model.DeploymentCountResponse{
		PipelineID:  pipelineID,
		TargetStage: targetStage,
		StartTime:   start,
		EndTime:     end,
		Count:       count,
	})
}
