package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/buildpulse/buildpulse-go/internal/model"
	"github.com/buildpulse/buildpulse-go/internal/provider"
	"github.com/buildpulse/buildpulse-go/internal/repository"
	"golang.org/x/sync/errgroup"
)

// DefaultLookback bounds the window of a project's first synchronization.
const DefaultLookback = 14 * 24 * time.Hour

// SynchronizationError reports the first pipeline that failed during a
// synchronization pass.
type SynchronizationError struct {
	ProjectID  string
	PipelineID string
	Err        error
}

func (e *SynchronizationError) Error() string {
	return fmt.Sprintf("synchronization of project %s failed at pipeline %s: %v", e.ProjectID, e.PipelineID, e.Err)
}

func (e *SynchronizationError) Unwrap() error {
	return e.Err
}

// ProgressSink receives progress for every pipeline of a synchronization pass.
// Calls never overlap.
type ProgressSink func(model.SyncProgress)

// SyncOptions tunes a SyncService.
type SyncOptions struct {
	Lookback    time.Duration
	Concurrency int
}

// SyncService pulls build history for every pipeline of a project and merges
// it into the build store.
type SyncService struct {
	projects    repository.ProjectStore
	pipelines   repository.PipelineStore
	builds      repository.BuildStore
	providers   *provider.Registry
	lookback    time.Duration
	concurrency int
	logger      *slog.Logger
	now         func() time.Time
}

// NewSyncService creates a SyncService. pipelines must yield plaintext
// credentials, so it is normally the encrypting decorator.
func NewSyncService(
	projects repository.ProjectStore,
	pipelines repository.PipelineStore,
	builds repository.BuildStore,
	providers *provider.Registry,
	opts SyncOptions,
	logger *slog.Logger,
) *SyncService {
	if opts.Lookback <= 0 {
		opts.Lookback = DefaultLookback
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &SyncService{
		projects:    projects,
		pipelines:   pipelines,
		builds:      builds,
		providers:   providers,
		lookback:    opts.Lookback,
		concurrency: opts.Concurrency,
		logger:      logger,
		now:         time.Now,
	}
}

// Synchronize fetches builds started since the project's watermark (or within
// the lookback window on first sync) up to now for every pipeline of the
// project, upserts them, and only then advances the watermark to now. Any
// pipeline failure fails the whole pass and leaves the watermark untouched.
func (s *SyncService) Synchronize(ctx context.Context, projectID string, emit ProgressSink) (int64, error) {
	project, err := s.projects.FindByID(ctx, projectID)
	if err != nil {
		if errors.Is(err, repository.ErrProjectNotFound) {
			return 0, ErrProjectNotFound
		}
		return 0, err
	}

	until := s.now().UnixMilli()
	since := until - s.lookback.Milliseconds()
	if project.LastSyncTimestamp != nil {
		since = *project.LastSyncTimestamp
	}

	pipelines, err := s.pipelines.FindByProjectID(ctx, projectID)
	if err != nil {
		return 0, fmt.Errorf("loading pipelines of project %s: %w", projectID, err)
	}

	log := s.logger.With("project_id", projectID)
	log.Info("synchronization started", "since", since, "until", until, "pipelines", len(pipelines))

	var mu sync.Mutex
	forward := func(p model.Pipeline) provider.ProgressFunc {
		return func(processed, total int) {
			if emit == nil {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			emit(model.SyncProgress{
				PipelineID:   p.ID,
				PipelineName: p.Name,
				Progress:     processed,
				BatchSize:    total,
			})
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, p := range pipelines {
		g.Go(func() error {
			n, err := s.syncPipeline(gctx, p, since, until, forward(p))
			if err != nil {
				log.Error("pipeline synchronization failed", "pipeline_id", p.ID, "error", err)
				return &SynchronizationError{ProjectID: projectID, PipelineID: p.ID, Err: err}
			}
			log.Debug("pipeline synchronized", "pipeline_id", p.ID, "builds", n)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	stored, err := s.projects.UpdateLastSyncTimestamp(ctx, projectID, until)
	if err != nil {
		if errors.Is(err, repository.ErrProjectNotFound) {
			return 0, ErrProjectNotFound
		}
		return 0, fmt.Errorf("advancing watermark of project %s: %w", projectID, err)
	}

	log.Info("synchronization completed", "synchronization_timestamp", stored)
	return stored, nil
}

func (s *SyncService) syncPipeline(ctx context.Context, p model.Pipeline, since, until int64, progress provider.ProgressFunc) (int, error) {
	adapter, err := s.providers.Get(p.Type)
	if err != nil {
		return 0, err
	}

	since, err = s.reopenSince(ctx, p.ID, since)
	if err != nil {
		return 0, err
	}

	builds, err := adapter.FetchBuilds(ctx, p, since, until, progress)
	if err != nil {
		return 0, err
	}

	if err := s.builds.UpsertAll(ctx, p.ID, builds); err != nil {
		return 0, fmt.Errorf("storing builds: %w", err)
	}
	return len(builds), nil
}

// reopenSince moves since back to the oldest stored build that was still
// running when it was fetched, so its final result replaces the stale one.
func (s *SyncService) reopenSince(ctx context.Context, pipelineID string, since int64) (int64, error) {
	stored, err := s.builds.FindByPipelineID(ctx, pipelineID)
	if err != nil {
		return 0, fmt.Errorf("loading stored builds: %w", err)
	}
	for _, b := range stored {
		if b.Result == model.StatusInProgress && b.Timestamp < since {
			since = b.Timestamp
		}
	}
	return since, nil
}

// LastSyncTimestamp returns the project's watermark, or nil if it was never synchronized.
func (s *SyncService) LastSyncTimestamp(ctx context.Context, projectID string) (*int64, error) {
	project, err := s.projects.FindByID(ctx, projectID)
	if err != nil {
		if errors.Is(err, repository.ErrProjectNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, err
	}
	return project.LastSyncTimestamp, nil
}
