package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/buildpulse/buildpulse-go/internal/crypto"
	"github.com/buildpulse/buildpulse-go/internal/model"
	"github.com/buildpulse/buildpulse-go/internal/provider"
	"github.com/buildpulse/buildpulse-go/internal/repository"
)

var syncTestNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestSyncService(stores testStores, pipelines repository.PipelineStore, fake *fakeProvider, concurrency int) *SyncService {
	svc := NewSyncService(
		stores.projects,
		pipelines,
		stores.builds,
		newTestRegistry(fake),
		SyncOptions{Lookback: DefaultLookback, Concurrency: concurrency},
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
	svc.now = func() time.Time { return syncTestNow }
	return svc
}

func TestSynchronize_FirstSyncUsesLookbackWindow(t *testing.T) {
	stores := newTestStores()
	seedProject(t, stores, "proj", nil, "p1")
	fake := newFakeProvider()
	fake.builds["p1"] = []model.Build{successfulBuild("1", syncTestNow.UnixMilli()-1000, "a")}
	svc := newTestSyncService(stores, stores.pipelines, fake, 2)

	ts, err := svc.Synchronize(context.Background(), "proj", nil)
	if err != nil {
		t.Fatalf("Synchronize() unexpected error: %v", err)
	}

	now := syncTestNow.UnixMilli()
	if ts != now {
		t.Errorf("expected timestamp %d, got %d", now, ts)
	}

	calls := fake.fetchCalls()
	if len(calls) != 1 {
		t.Fatalf("expected 1 fetch, got %d", len(calls))
	}
	if calls[0].since != now-DefaultLookback.Milliseconds() || calls[0].until != now {
		t.Errorf("unexpected window [%d, %d]", calls[0].since, calls[0].until)
	}

	last, err := svc.LastSyncTimestamp(context.Background(), "proj")
	if err != nil {
		t.Fatalf("LastSyncTimestamp() unexpected error: %v", err)
	}
	if last == nil || *last != now {
		t.Errorf("expected watermark %d, got %v", now, last)
	}
	if stores.builds.Count() != 1 {
		t.Errorf("expected 1 stored build, got %d", stores.builds.Count())
	}
}

func TestSynchronize_StartsFromWatermark(t *testing.T) {
	stores := newTestStores()
	previous := syncTestNow.Add(-time.Hour).UnixMilli()
	seedProject(t, stores, "proj", &previous, "p1")
	fake := newFakeProvider()
	svc := newTestSyncService(stores, stores.pipelines, fake, 1)

	ts, err := svc.Synchronize(context.Background(), "proj", nil)
	if err != nil {
		t.Fatalf("Synchronize() unexpected error: %v", err)
	}

	calls := fake.fetchCalls()
	if len(calls) != 1 || calls[0].since != previous {
		t.Errorf("expected fetch since %d, got %+v", previous, calls)
	}
	if ts <= previous {
		t.Errorf("expected watermark to advance past %d, got %d", previous, ts)
	}
}

func TestSynchronize_IsIdempotent(t *testing.T) {
	stores := newTestStores()
	seedProject(t, stores, "proj", nil, "p1", "p2")
	fake := newFakeProvider()
	base := syncTestNow.UnixMilli()
	fake.builds["p1"] = []model.Build{successfulBuild("1", base-3000, "a"), successfulBuild("2", base-2000, "b")}
	fake.builds["p2"] = []model.Build{successfulBuild("1", base-1000, "c")}
	svc := newTestSyncService(stores, stores.pipelines, fake, 2)

	first, err := svc.Synchronize(context.Background(), "proj", nil)
	if err != nil {
		t.Fatalf("first Synchronize() unexpected error: %v", err)
	}
	before, _ := stores.builds.FindByPipelineID(context.Background(), "p1")

	svc.now = func() time.Time { return syncTestNow.Add(time.Minute) }
	second, err := svc.Synchronize(context.Background(), "proj", nil)
	if err != nil {
		t.Fatalf("second Synchronize() unexpected error: %v", err)
	}
	after, _ := stores.builds.FindByPipelineID(context.Background(), "p1")

	if stores.builds.Count() != 3 {
		t.Errorf("expected 3 stored builds after re-sync, got %d", stores.builds.Count())
	}
	if len(before) != len(after) {
		t.Errorf("build set changed: %d -> %d", len(before), len(after))
	}
	if second <= first {
		t.Errorf("expected watermark to advance, got %d then %d", first, second)
	}
}

func TestSynchronize_RefetchesBuildsStillInProgress(t *testing.T) {
	stores := newTestStores()
	previous := syncTestNow.Add(-time.Hour).UnixMilli()
	seedProject(t, stores, "proj", &previous, "p1")
	running := model.Build{ID: "7", Result: model.StatusInProgress, Timestamp: previous - 5000}
	if err := stores.builds.UpsertAll(context.Background(), "p1", []model.Build{running}); err != nil {
		t.Fatalf("UpsertAll() unexpected error: %v", err)
	}

	fake := newFakeProvider()
	fake.builds["p1"] = []model.Build{successfulBuild("7", running.Timestamp, "a")}
	svc := newTestSyncService(stores, stores.pipelines, fake, 1)

	if _, err := svc.Synchronize(context.Background(), "proj", nil); err != nil {
		t.Fatalf("Synchronize() unexpected error: %v", err)
	}

	calls := fake.fetchCalls()
	if len(calls) != 1 || calls[0].since != running.Timestamp {
		t.Fatalf("expected window to start at the running build %d, got %+v", running.Timestamp, calls)
	}
	builds, _ := stores.builds.FindByPipelineID(context.Background(), "p1")
	if len(builds) != 1 || builds[0].Result != model.StatusSuccess {
		t.Errorf("expected the running build to be replaced by its final result, got %+v", builds)
	}
}

func TestSynchronize_FailureLeavesWatermarkUntouched(t *testing.T) {
	stores := newTestStores()
	previous := syncTestNow.Add(-time.Hour).UnixMilli()
	seedProject(t, stores, "proj", &previous, "good", "bad")
	fake := newFakeProvider()
	fake.builds["good"] = []model.Build{successfulBuild("1", previous+1, "a")}
	fake.fail["bad"] = provider.ErrUnauthorized
	svc := newTestSyncService(stores, stores.pipelines, fake, 1)

	_, err := svc.Synchronize(context.Background(), "proj", nil)

	var syncErr *SynchronizationError
	if !errors.As(err, &syncErr) {
		t.Fatalf("expected *SynchronizationError, got %v", err)
	}
	if syncErr.PipelineID != "bad" || syncErr.ProjectID != "proj" {
		t.Errorf("unexpected SynchronizationError fields: %+v", syncErr)
	}
	var fetchErr *provider.FetchError
	if !errors.As(err, &fetchErr) || !errors.Is(err, provider.ErrUnauthorized) {
		t.Errorf("expected wrapped FetchError with ErrUnauthorized, got %v", err)
	}

	last, _ := svc.LastSyncTimestamp(context.Background(), "proj")
	if last == nil || *last != previous {
		t.Errorf("expected watermark to stay %d, got %v", previous, last)
	}
}

func TestSynchronize_FirstSyncFailureKeepsWatermarkAbsent(t *testing.T) {
	stores := newTestStores()
	seedProject(t, stores, "proj", nil, "bad")
	fake := newFakeProvider()
	fake.fail["bad"] = provider.ErrTimeout
	svc := newTestSyncService(stores, stores.pipelines, fake, 1)

	if _, err := svc.Synchronize(context.Background(), "proj", nil); !errors.Is(err, provider.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}

	last, _ := svc.LastSyncTimestamp(context.Background(), "proj")
	if last != nil {
		t.Errorf("expected no watermark, got %d", *last)
	}
}

func TestSynchronize_ProjectNotFound(t *testing.T) {
	svc := newTestSyncService(newTestStores(), newTestStores().pipelines, newFakeProvider(), 1)

	if _, err := svc.Synchronize(context.Background(), "missing", nil); !errors.Is(err, ErrProjectNotFound) {
		t.Errorf("expected ErrProjectNotFound, got %v", err)
	}
	if _, err := svc.LastSyncTimestamp(context.Background(), "missing"); !errors.Is(err, ErrProjectNotFound) {
		t.Errorf("expected ErrProjectNotFound, got %v", err)
	}
}

func TestSynchronize_ProjectWithoutPipelinesAdvancesWatermark(t *testing.T) {
	stores := newTestStores()
	seedProject(t, stores, "proj", nil)
	svc := newTestSyncService(stores, stores.pipelines, newFakeProvider(), 1)

	ts, err := svc.Synchronize(context.Background(), "proj", nil)
	if err != nil {
		t.Fatalf("Synchronize() unexpected error: %v", err)
	}
	if ts != syncTestNow.UnixMilli() {
		t.Errorf("expected %d, got %d", syncTestNow.UnixMilli(), ts)
	}
}

func TestSynchronize_ForwardsProgressPerPipeline(t *testing.T) {
	stores := newTestStores()
	seedProject(t, stores, "proj", nil, "p1", "p2", "p3")
	fake := newFakeProvider()
	base := syncTestNow.UnixMilli()
	fake.builds["p1"] = []model.Build{successfulBuild("1", base-10), successfulBuild("2", base-5)}
	fake.builds["p2"] = []model.Build{successfulBuild("1", base-7)}
	svc := newTestSyncService(stores, stores.pipelines, fake, 3)

	var mu sync.Mutex
	inFlight := false
	byPipeline := make(map[string][]model.SyncProgress)
	emit := func(p model.SyncProgress) {
		mu.Lock()
		if inFlight {
			t.Error("progress sink called concurrently")
		}
		inFlight = true
		byPipeline[p.PipelineID] = append(byPipeline[p.PipelineID], p)
		inFlight = false
		mu.Unlock()
	}

	if _, err := svc.Synchronize(context.Background(), "proj", emit); err != nil {
		t.Fatalf("Synchronize() unexpected error: %v", err)
	}

	want := map[string]int{"p1": 2, "p2": 1, "p3": 0}
	for id, n := range want {
		events := byPipeline[id]
		if len(events) == 0 {
			t.Errorf("pipeline %s: no progress reported", id)
			continue
		}
		for i := 1; i < len(events); i++ {
			if events[i].Progress < events[i-1].Progress {
				t.Errorf("pipeline %s: progress decreased: %+v", id, events)
			}
		}
		last := events[len(events)-1]
		if last.Progress != n || last.BatchSize != n {
			t.Errorf("pipeline %s: expected final %d/%d, got %d/%d", id, n, n, last.Progress, last.BatchSize)
		}
		if last.PipelineName != "pipeline "+id {
			t.Errorf("pipeline %s: unexpected name %q", id, last.PipelineName)
		}
	}
}

func TestSynchronize_ProviderSeesPlaintextCredentials(t *testing.T) {
	stores := newTestStores()
	codec, err := crypto.NewAESCodec([]byte("0123456789abcdef0123456789abcdef"))
	if err != nil {
		t.Fatalf("NewAESCodec() unexpected error: %v", err)
	}
	encrypted := repository.NewEncryptedPipelineStore(stores.pipelines, codec)

	ctx := context.Background()
	if err := stores.projects.Create(ctx, &model.Project{ID: "proj", Name: "proj"}); err != nil {
		t.Fatalf("Create() unexpected error: %v", err)
	}
	p := &model.Pipeline{ID: "p1", ProjectID: "proj", Name: "app", Type: model.PipelineTypeJenkins, Username: "admin", Credential: "s3cret"}
	if err := encrypted.Save(ctx, p); err != nil {
		t.Fatalf("Save() unexpected error: %v", err)
	}

	fake := newFakeProvider()
	svc := newTestSyncService(stores, encrypted, fake, 1)
	if _, err := svc.Synchronize(ctx, "proj", nil); err != nil {
		t.Fatalf("Synchronize() unexpected error: %v", err)
	}

	calls := fake.fetchCalls()
	if len(calls) != 1 {
		t.Fatalf("expected 1 fetch, got %d", len(calls))
	}
	if calls[0].pipeline.Username != "admin" || calls[0].pipeline.Credential != "s3cret" {
		t.Errorf("provider received %q/%q, want plaintext", calls[0].pipeline.Username, calls[0].pipeline.Credential)
	}
}
