package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/buildpulse/buildpulse-go/internal/model"
	"github.com/buildpulse/buildpulse-go/internal/repository"
	"github.com/google/uuid"
)

var (
	ErrProjectNotFound     = errors.New("project not found")
	ErrProjectNameRequired = errors.New("project name cannot be empty")
)

// ProjectService handles project business logic.
type ProjectService struct {
	projects  repository.ProjectStore
	pipelines *PipelineService
}

// NewProjectService creates a new ProjectService.
func NewProjectService(projects repository.ProjectStore, pipelines *PipelineService) *ProjectService {
	return &ProjectService{projects: projects, pipelines: pipelines}
}

// Create verifies the first pipeline against its CI backend, then stores the
// pipeline and the project. The pipeline is written first so a failed write
// never leaves a project without its pipeline.
func (s *ProjectService) Create(ctx context.Context, req model.CreateProjectRequest) (model.ProjectResponse, error) {
	name := strings.TrimSpace(req.ProjectName)
	if name == "" {
		return model.ProjectResponse{}, ErrProjectNameRequired
	}
	if err := req.Pipeline.Validate(); err != nil {
		return model.ProjectResponse{}, err
	}
	if err := s.pipelines.Verify(ctx, req.Pipeline); err != nil {
		return model.ProjectResponse{}, err
	}

	project := model.Project{ID: uuid.NewString(), Name: name}
	pipeline, err := s.pipelines.save(ctx, req.Pipeline.ToPipeline(project.ID, uuid.NewString()))
	if err != nil {
		return model.ProjectResponse{}, err
	}

	if err := s.projects.Create(ctx, &project); err != nil {
		if derr := s.pipelines.pipelines.Delete(ctx, pipeline.ID); derr != nil {
			slog.Warn("failed to remove pipeline of unsaved project", "pipeline_id", pipeline.ID, "error", derr)
		}
		return model.ProjectResponse{}, err
	}

	return model.ProjectResponse{
		ID:        project.ID,
		Name:      project.Name,
		Pipelines: []model.PipelineResponse{pipeline.ToResponse()},
	}, nil
}

// Get returns a project with its pipelines.
func (s *ProjectService) Get(ctx context.Context, id string) (model.ProjectResponse, error) {
	project, err := s.projects.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrProjectNotFound) {
			return model.ProjectResponse{}, ErrProjectNotFound
		}
		return model.ProjectResponse{}, err
	}

	pipelines, err := s.pipelines.ListByProject(ctx, id)
	if err != nil {
		return model.ProjectResponse{}, err
	}

	return model.ProjectResponse{
		ID:                project.ID,
		Name:              project.Name,
		LastSyncTimestamp: project.LastSyncTimestamp,
		Pipelines:         pipelines,
	}, nil
}

// List returns every project without its pipelines.
func (s *ProjectService) List(ctx context.Context) ([]model.ProjectResponse, error) {
	projects, err := s.projects.List(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]model.ProjectResponse, 0, len(projects))
	for _, p := range projects {
		out = append(out, model.ProjectResponse{
			ID:                p.ID,
			Name:              p.Name,
			LastSyncTimestamp: p.LastSyncTimestamp,
		})
	}
	return out, nil
}
