package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/buildpulse/buildpulse-go/internal/model"
	"github.com/buildpulse/buildpulse-go/internal/provider"
	"github.com/buildpulse/buildpulse-go/internal/repository"
	"github.com/google/uuid"
)

var (
	ErrPipelineNotFound   = errors.New("pipeline not found")
	ErrVerificationFailed = errors.New("pipeline verification failed")
)

// PipelineService manages pipeline configurations of a project.
type PipelineService struct {
	projects  repository.ProjectStore
	pipelines repository.PipelineStore
	builds    repository.BuildStore
	providers *provider.Registry
}

// NewPipelineService creates a new PipelineService. pipelines is expected to
// be the encrypting decorator.
func NewPipelineService(
	projects repository.ProjectStore,
	pipelines repository.PipelineStore,
	builds repository.BuildStore,
	providers *provider.Registry,
) *PipelineService {
	return &PipelineService{
		projects:  projects,
		pipelines: pipelines,
		builds:    builds,
		providers: providers,
	}
}

// Verify checks that the CI backend accepts the connection described by req.
// The pipeline name is not required.
func (s *PipelineService) Verify(ctx context.Context, req model.PipelineRequest) error {
	if err := req.ValidateConnection(); err != nil {
		return err
	}

	adapter, err := s.providers.Get(req.Type)
	if err != nil {
		return err
	}
	if err := adapter.Verify(ctx, req.ToPipeline("", "")); err != nil {
		return fmt.Errorf("%w: %w", ErrVerificationFailed, err)
	}
	return nil
}

// Create verifies and stores a new pipeline of projectID.
func (s *PipelineService) Create(ctx context.Context, projectID string, req model.PipelineRequest) (model.PipelineResponse, error) {
	if err := s.requireProject(ctx, projectID); err != nil {
		return model.PipelineResponse{}, err
	}
	if err := req.Validate(); err != nil {
		return model.PipelineResponse{}, err
	}
	if err := s.Verify(ctx, req); err != nil {
		return model.PipelineResponse{}, err
	}

	p, err := s.save(ctx, req.ToPipeline(projectID, uuid.NewString()))
	if err != nil {
		return model.PipelineResponse{}, err
	}
	return p.ToResponse(), nil
}

// Update replaces the configuration of an existing pipeline. Pointing the
// pipeline at another backend type or URL drops the builds synchronized from
// the previous source, since build ids are only unique per remote job.
func (s *PipelineService) Update(ctx context.Context, projectID, pipelineID string, req model.PipelineRequest) (model.PipelineResponse, error) {
	existing, err := s.find(ctx, projectID, pipelineID)
	if err != nil {
		return model.PipelineResponse{}, err
	}
	if err := req.Validate(); err != nil {
		return model.PipelineResponse{}, err
	}
	if err := s.Verify(ctx, req); err != nil {
		return model.PipelineResponse{}, err
	}

	updated := req.ToPipeline(projectID, existing.ID)
	updated.CreatedAt = existing.CreatedAt
	if updated.Type != existing.Type || updated.URL != existing.URL {
		if err := s.builds.DeleteByPipelineID(ctx, existing.ID); err != nil {
			return model.PipelineResponse{}, fmt.Errorf("clearing builds of pipeline %s: %w", existing.ID, err)
		}
	}
	p, err := s.save(ctx, updated)
	if err != nil {
		return model.PipelineResponse{}, err
	}
	return p.ToResponse(), nil
}

// Get returns one pipeline of projectID.
func (s *PipelineService) Get(ctx context.Context, projectID, pipelineID string) (model.PipelineResponse, error) {
	p, err := s.find(ctx, projectID, pipelineID)
	if err != nil {
		return model.PipelineResponse{}, err
	}
	return p.ToResponse(), nil
}

// ListByProject returns every pipeline of projectID.
func (s *PipelineService) ListByProject(ctx context.Context, projectID string) ([]model.PipelineResponse, error) {
	pipelines, err := s.pipelines.FindByProjectID(ctx, projectID)
	if err != nil {
		return nil, err
	}

	out := make([]model.PipelineResponse, 0, len(pipelines))
	for _, p := range pipelines {
		out = append(out, p.ToResponse())
	}
	return out, nil
}

// Delete removes a pipeline and the builds synchronized from it.
func (s *PipelineService) Delete(ctx context.Context, projectID, pipelineID string) error {
	if _, err := s.find(ctx, projectID, pipelineID); err != nil {
		return err
	}
	if err := s.pipelines.Delete(ctx, pipelineID); err != nil {
		if errors.Is(err, repository.ErrPipelineNotFound) {
			return ErrPipelineNotFound
		}
		return err
	}
	return s.builds.DeleteByPipelineID(ctx, pipelineID)
}

// save hands the store a copy, since the encrypting store rewrites the
// secrets of the value it is given.
func (s *PipelineService) save(ctx context.Context, p model.Pipeline) (model.Pipeline, error) {
	stored := p
	if err := s.pipelines.Save(ctx, &stored); err != nil {
		return model.Pipeline{}, err
	}
	p.CreatedAt, p.UpdatedAt = stored.CreatedAt, stored.UpdatedAt
	return p, nil
}

func (s *PipelineService) find(ctx context.Context, projectID, pipelineID string) (*model.Pipeline, error) {
	p, err := s.pipelines.FindByID(ctx, pipelineID)
	if err != nil {
		if errors.Is(err, repository.ErrPipelineNotFound) {
			return nil, ErrPipelineNotFound
		}
		return nil, err
	}
	if p.ProjectID != projectID {
		return nil, ErrPipelineNotFound
	}
	return p, nil
}

func (s *PipelineService) requireProject(ctx context.Context, projectID string) error {
	if _, err := s.projects.FindByID(ctx, projectID); err != nil {
		if errors.Is(err, repository.ErrProjectNotFound) {
			return ErrProjectNotFound
		}
		return err
	}
	return nil
}
