package handler

import (
	"net/http"

	"github.com/buildpulse/buildpulse-go/internal/model"
	"github.com/buildpulse/buildpulse-go/internal/service"
	"github.com/go-chi/chi/v5"
)

// ProjectHandler handles HTTP requests for projects.
type ProjectHandler struct {
	service *service.ProjectService
}

// NewProjectHandler creates a new ProjectHandler.
func NewProjectHandler(svc *service.ProjectService) *ProjectHandler {
	return &ProjectHandler{service: svc}
}

// HandleCreate handles POST /api/v1/projects requests.
func (h *ProjectHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req model.CreateProjectRequest
	if !decodeBody(w, r, &req) {
		return
	}

	resp, err := h.service.Create(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, resp)
}

// HandleList handles GET /api/v1/projects requests.
func (h *ProjectHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	projects, err := h.service.List(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, projects)
}

// HandleGet handles GET /api/v1/projects/{project_id} requests.
func (h *ProjectHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.Get(r.Context(), chi.URLParam(r, "project_id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}
