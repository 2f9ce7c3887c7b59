package handler

import (
	"net/http"

	"github.com/buildpulse/buildpulse-go/internal/model"
	"github.com/buildpulse/buildpulse-go/internal/service"
	"github.com/go-chi/chi/v5"
)

// PipelineHandler handles HTTP requests for pipeline configurations.
type PipelineHandler struct {
	service *service.PipelineService
}

// NewPipelineHandler creates a new PipelineHandler.
func NewPipelineHandler(svc *service.PipelineService) *PipelineHandler {
	return &PipelineHandler{service: svc}
}

// HandleCreate handles POST /api/v1/projects/{project_id}/pipelines requests.
func (h *PipelineHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req model.PipelineRequest
	if !decodeBody(w, r, &req) {
		return
	}

	resp, err := h.service.Create(r.Context(), chi.URLParam(r, "project_id"), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, resp)
}

// HandleList handles GET /api/v1/projects/{project_id}/pipelines requests.
func (h *PipelineHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	pipelines, err := h.service.ListByProject(r.Context(), chi.URLParam(r, "project_id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, pipelines)
}

// HandleGet handles GET /api/v1/projects/{project_id}/pipelines/{pipeline_id} requests.
func (h *PipelineHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.Get(r.Context(), chi.URLParam(r, "project_id"), chi.URLParam(r, "pipeline_id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// HandleUpdate handles PUT /api/v1/projects/{project_id}/pipelines/{pipeline_id} requests.
func (h *PipelineHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req model.PipelineRequest
	if !decodeBody(w, r, &req) {
		return
	}

	resp, err := h.service.Update(r.Context(), chi.URLParam(r, "project_id"), chi.URLParam(r, "pipeline_id"), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// HandleDelete handles DELETE /api/v1/projects/{project_id}/pipelines/{pipeline_id} requests.
func (h *PipelineHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "project_id"), chi.URLParam(r, "pipeline_id")); err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleVerify handles POST /api/v1/pipelines/verify requests.
func (h *PipelineHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	var req model.PipelineRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.service.Verify(r.Context(), req); err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
