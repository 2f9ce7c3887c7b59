package service

import (
	"context"
	"errors"
	"sort"

	"github.com/buildpulse/buildpulse-go/internal/model"
	"github.com/buildpulse/buildpulse-go/internal/repository"
)

var (
	ErrTargetStageRequired = errors.New("targetStage cannot be empty")
	ErrInvalidTimeRange    = errors.New("startTime must not be after endTime")
)

// DeploymentService derives deployment metrics from synchronized builds.
type DeploymentService struct {
	pipelines repository.PipelineStore
	builds    repository.BuildStore
}

// NewDeploymentService creates a new DeploymentService.
func NewDeploymentService(pipelines repository.PipelineStore, builds repository.BuildStore) *DeploymentService {
	return &DeploymentService{pipelines: pipelines, builds: builds}
}

// CountDeployments counts the builds of pipelineID started within
// [startTime, endTime] that succeeded, whose targetStage succeeded, and whose
// commit set differs from the build right before them. Re-runs of the same
// commits are one deployment.
func (s *DeploymentService) CountDeployments(ctx context.Context, pipelineID, targetStage string, startTime, endTime int64) (int, error) {
	if targetStage == "" {
		return 0, ErrTargetStageRequired
	}
	if startTime > endTime {
		return 0, ErrInvalidTimeRange
	}

	if _, err := s.pipelines.FindByID(ctx, pipelineID); err != nil {
		if errors.Is(err, repository.ErrPipelineNotFound) {
			return 0, ErrPipelineNotFound
		}
		return 0, err
	}

	builds, err := s.builds.FindByPipelineID(ctx, pipelineID)
	if err != nil {
		return 0, err
	}
	return countDeployments(builds, targetStage, startTime, endTime), nil
}

func countDeployments(builds []model.Build, targetStage string, startTime, endTime int64) int {
	sort.SliceStable(builds, func(i, j int) bool { return builds[i].Timestamp < builds[j].Timestamp })

	count := 0
	for i, b := range builds {
		if b.Timestamp < startTime || b.Timestamp > endTime {
			continue
		}
		if b.Result != model.StatusSuccess {
			continue
		}
		if stage, ok := b.StageByName(targetStage); !ok || stage.Status != model.StatusSuccess {
			continue
		}
		if i > 0 && model.SameCommits(builds[i-1], b) {
			continue
		}
		count++
	}
	return count
}
