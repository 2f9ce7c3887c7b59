// Package memstore provides in-memory implementations of the repository
// stores. They are safe for concurrent use and back the "memory" store driver
// and the test suites.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/buildpulse/buildpulse-go/internal/model"
	"github.com/buildpulse/buildpulse-go/internal/repository"
)

var (
	_ repository.ProjectStore  = (*ProjectStore)(nil)
	_ repository.PipelineStore = (*PipelineStore)(nil)
	_ repository.BuildStore    = (*BuildStore)(nil)
)

// ProjectStore is an in-memory repository.ProjectStore.
type ProjectStore struct {
	mu       sync.RWMutex
	projects map[string]model.Project
}

// NewProjectStore creates an empty ProjectStore.
func NewProjectStore() *ProjectStore {
	return &ProjectStore{projects: make(map[string]model.Project)}
}

// Create stores a copy of p.
func (s *ProjectStore) Create(_ context.Context, p *model.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	stored := copyProject(*p)
	stored.CreatedAt, stored.UpdatedAt = now, now
	s.projects[p.ID] = stored
	return nil
}

// FindByID retrieves a project by ID.
func (s *ProjectStore) FindByID(_ context.Context, id string) (*model.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.projects[id]
	if !ok {
		return nil, repository.ErrProjectNotFound
	}
	out := copyProject(p)
	return &out, nil
}

// List retrieves all projects ordered by name.
func (s *ProjectStore) List(_ context.Context) ([]model.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Project, 0, len(s.projects))
	for _, p := range s.projects {
		out = append(out, copyProject(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// UpdateLastSyncTimestamp moves the watermark forward to ts and returns the
// stored value. A smaller ts leaves it in place.
func (s *ProjectStore) UpdateLastSyncTimestamp(_ context.Context, id string, ts int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.projects[id]
	if !ok {
		return 0, repository.ErrProjectNotFound
	}
	if p.LastSyncTimestamp == nil || *p.LastSyncTimestamp < ts {
		v := ts
		p.LastSyncTimestamp = &v
		p.UpdatedAt = time.Now().UTC()
		s.projects[id] = p
	}
	return *p.LastSyncTimestamp, nil
}

func copyProject(p model.Project) model.Project {
	if p.LastSyncTimestamp != nil {
		v := *p.LastSyncTimestamp
		p.LastSyncTimestamp = &v
	}
	return p
}

// PipelineStore is an in-memory repository.PipelineStore. It stores values
// exactly as given, so wrapping it with repository.EncryptedPipelineStore
// leaves ciphertext here.
type PipelineStore struct {
	mu        sync.RWMutex
	pipelines map[string]model.Pipeline
}

// NewPipelineStore creates an empty PipelineStore.
func NewPipelineStore() *PipelineStore {
	return &PipelineStore{pipelines: make(map[string]model.Pipeline)}
}

// Save inserts or replaces a pipeline.
func (s *PipelineStore) Save(_ context.Context, p *model.Pipeline) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.put(p)
	return nil
}

// SaveAll inserts or replaces every pipeline.
func (s *PipelineStore) SaveAll(_ context.Context, pipelines []*model.Pipeline) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range pipelines {
		s.put(p)
	}
	return nil
}

func (s *PipelineStore) put(p *model.Pipeline) {
	now := time.Now().UTC()
	stored := *p
	if existing, ok := s.pipelines[p.ID]; ok {
		stored.CreatedAt = existing.CreatedAt
	} else {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now
	s.pipelines[p.ID] = stored
}

// FindByID retrieves a pipeline by ID.
func (s *PipelineStore) FindByID(_ context.Context, id string) (*model.Pipeline, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.pipelines[id]
	if !ok {
		return nil, repository.ErrPipelineNotFound
	}
	return &p, nil
}

// FindByProjectID retrieves the pipelines of a project ordered by name.
func (s *PipelineStore) FindByProjectID(_ context.Context, projectID string) ([]model.Pipeline, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Pipeline
	for _, p := range s.pipelines {
		if p.ProjectID == projectID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Delete removes a pipeline by ID.
func (s *PipelineStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.pipelines[id]; !ok {
		return repository.ErrPipelineNotFound
	}
	delete(s.pipelines, id)
	return nil
}

// BuildStore is an in-memory repository.BuildStore keyed by pipeline then build id.
type BuildStore struct {
	mu     sync.RWMutex
	builds map[string]map[string]model.Build
}

// NewBuildStore creates an empty BuildStore.
func NewBuildStore() *BuildStore {
	return &BuildStore{builds: make(map[string]map[string]model.Build)}
}

// UpsertAll inserts or overwrites builds keyed by build ID.
func (s *BuildStore) UpsertAll(_ context.Context, pipelineID string, builds []model.Build) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byID, ok := s.builds[pipelineID]
	if !ok {
		byID = make(map[string]model.Build)
		s.builds[pipelineID] = byID
	}
	for _, b := range builds {
		b.PipelineID = pipelineID
		byID[b.ID] = copyBuild(b)
	}
	return nil
}

// FindByPipelineID retrieves the builds of a pipeline ordered by timestamp.
func (s *BuildStore) FindByPipelineID(_ context.Context, pipelineID string) ([]model.Build, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Build, 0, len(s.builds[pipelineID]))
	for _, b := range s.builds[pipelineID] {
		out = append(out, copyBuild(b))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	return out, nil
}

// DeleteByPipelineID removes every build of a pipeline.
func (s *BuildStore) DeleteByPipelineID(_ context.Context, pipelineID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.builds, pipelineID)
	return nil
}

// Count returns the number of stored builds across all pipelines.
func (s *BuildStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, byID := range s.builds {
		n += len(byID)
	}
	return n
}

func copyBuild(b model.Build) model.Build {
	b.Stages = append([]model.Stage(nil), b.Stages...)
	b.Commits = append([]model.Commit(nil), b.Commits...)
	return b
}
