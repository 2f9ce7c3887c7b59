package service

import (
	"context"
	"sync"
	"testing"

	"github.com/buildpulse/buildpulse-go/internal/model"
	"github.com/buildpulse/buildpulse-go/internal/provider"
	"github.com/buildpulse/buildpulse-go/internal/repository/memstore"
)

type fetchCall struct {
	pipeline     model.Pipeline
	since, until int64
}

// fakeProvider returns canned builds per pipeline id and reports progress one
// build at a time.
type fakeProvider struct {
	mu        sync.Mutex
	builds    map[string][]model.Build
	fail      map[string]error
	verifyErr error
	calls     []fetchCall
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		builds: make(map[string][]model.Build),
		fail:   make(map[string]error),
	}
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) FetchBuilds(ctx context.Context, p model.Pipeline, since, until int64, progress provider.ProgressFunc) ([]model.Build, error) {
	f.mu.Lock()
	f.calls = append(f.calls, fetchCall{pipeline: p, since: since, until: until})
	builds := append([]model.Build(nil), f.builds[p.ID]...)
	err := f.fail[p.ID]
	f.mu.Unlock()

	if err != nil {
		return nil, &provider.FetchError{Provider: f.Name(), PipelineID: p.ID, Err: err}
	}

	progress(0, len(builds))
	for i := range builds {
		progress(i+1, len(builds))
	}
	return builds, nil
}

func (f *fakeProvider) Verify(context.Context, model.Pipeline) error {
	return f.verifyErr
}

func (f *fakeProvider) fetchCalls() []fetchCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]fetchCall(nil), f.calls...)
}

type testStores struct {
	projects  *memstore.ProjectStore
	pipelines *memstore.PipelineStore
	builds    *memstore.BuildStore
}

func newTestStores() testStores {
	return testStores{
		projects:  memstore.NewProjectStore(),
		pipelines: memstore.NewPipelineStore(),
		builds:    memstore.NewBuildStore(),
	}
}

func newTestRegistry(p provider.Provider) *provider.Registry {
	r := provider.NewRegistry()
	r.Register(model.PipelineTypeJenkins, p)
	r.Register(model.PipelineTypeBamboo, p)
	return r
}

func seedProject(t testing.TB, stores testStores, id string, lastSync *int64, pipelineIDs ...string) {
	t.Helper()
	ctx := context.Background()
	if err := stores.projects.Create(ctx, &model.Project{ID: id, Name: id, LastSyncTimestamp: lastSync}); err != nil {
		t.Fatalf("seeding project: %v", err)
	}
	for _, pid := range pipelineIDs {
		p := &model.Pipeline{ID: pid, ProjectID: id, Name: "pipeline " + pid, Type: model.PipelineTypeJenkins, URL: "https://ci/job/" + pid, Username: "u", Credential: "c"}
		if err := stores.pipelines.Save(ctx, p); err != nil {
			t.Fatalf("seeding pipeline: %v", err)
		}
	}
}

func successfulBuild(id string, ts int64, commits ...string) model.Build {
	b := model.Build{
		ID:        id,
		Result:    model.StatusSuccess,
		Timestamp: ts,
		Stages:    []model.Stage{{Name: "deploy", Status: model.StatusSuccess}},
	}
	for _, c := range commits {
		b.Commits = append(b.Commits, model.Commit{CommitID: c})
	}
	return b
}
