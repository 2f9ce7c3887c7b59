package repository

import (
	"context"
	"errors"

	"github.com/buildpulse/buildpulse-go/internal/model"
)

var (
	ErrProjectNotFound  = errors.New("project not found")
	ErrPipelineNotFound = errors.New("pipeline not found")
)

// ProjectStore persists projects and their synchronization watermark.
type ProjectStore interface {
	Create(ctx context.Context, project *model.Project) error
	FindByID(ctx context.Context, id string) (*model.Project, error)
	List(ctx context.Context) ([]model.Project, error)
	// UpdateLastSyncTimestamp advances the watermark to ts unless the stored
	// value is already later, and returns the stored value.
	UpdateLastSyncTimestamp(ctx context.Context, id string, ts int64) (int64, error)
}

// PipelineStore persists pipeline configurations.
type PipelineStore interface {
	Save(ctx context.Context, pipeline *model.Pipeline) error
	SaveAll(ctx context.Context, pipelines []*model.Pipeline) error
	FindByID(ctx context.Context, id string) (*model.Pipeline, error)
	FindByProjectID(ctx context.Context, projectID string) ([]model.Pipeline, error)
	Delete(ctx context.Context, id string) error
}

// BuildStore persists normalized builds keyed by (pipeline id, build id).
type BuildStore interface {
	// UpsertAll inserts or overwrites every build of one pipeline. A build
	// already stored under the same id is replaced, never duplicated.
	UpsertAll(ctx context.Context, pipelineID string, builds []model.Build) error
	FindByPipelineID(ctx context.Context, pipelineID string) ([]model.Build, error)
	DeleteByPipelineID(ctx context.Context, pipelineID string) error
}

var (
	_ ProjectStore  = (*ProjectRepository)(nil)
	_ PipelineStore = (*PipelineRepository)(nil)
	_ PipelineStore = (*EncryptedPipelineStore)(nil)
	_ BuildStore    = (*BuildRepository)(nil)
)
