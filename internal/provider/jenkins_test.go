package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/buildpulse/buildpulse-go/internal/model"
)

type progressRecorder struct {
	processed []int
	totals    []int
}

func (r *progressRecorder) record(processed, total int) {
	r.processed = append(r.processed, processed)
	r.totals = append(r.totals, total)
}

func (r *progressRecorder) last() (int, int) {
	if len(r.processed) == 0 {
		return -1, -1
	}
	return r.processed[len(r.processed)-1], r.totals[len(r.totals)-1]
}

func newTestClient() *Client {
	return NewClient(nil, ClientOptions{Timeout: 2 * time.Second})
}

func newJenkinsServer(t *testing.T, builds func(base string) []map[string]any) *httptest.Server {
	t.Helper()

	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "admin" || pass != "token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		switch {
		case r.URL.Path == "/job/app/api/json":
			if r.URL.Query().Get("tree") == "name" {
				json.NewEncoder(w).Encode(map[string]string{"name": "app"})
				return
			}
			json.NewEncoder(w).Encode(map[string]any{"allBuilds": builds(srv.URL)})
		case strings.HasSuffix(r.URL.Path, "/wfapi/describe"):
			json.NewEncoder(w).Encode(map[string]any{
				"stages": []map[string]any{
					{"name": "build", "status": "SUCCESS", "startTimeMillis": 100, "durationMillis": 10, "pauseDurationMillis": 0},
					{"name": "deploy to prod", "status": "FAILED", "startTimeMillis": 110, "durationMillis": 5, "pauseDurationMillis": 1},
				},
			})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func jenkinsPipeline(url string) model.Pipeline {
	return model.Pipeline{ID: "pipe-1", Type: model.PipelineTypeJenkins, URL: url + "/job/app/", Username: "admin", Credential: "token"}
}

func TestJenkins_FetchBuildsWithinWindow(t *testing.T) {
	srv := newJenkinsServer(t, func(base string) []map[string]any {
		success, failure := "SUCCESS", "FAILURE"
		return []map[string]any{
			{"number": 3, "result": nil, "building": true, "timestamp": 3000, "duration": 0, "url": base + "/job/app/3/"},
			{"number": 2, "result": failure, "timestamp": 2000, "duration": 20, "url": base + "/job/app/2/",
				"changeSets": []map[string]any{{"items": []map[string]any{{"commitId": "b", "timestamp": 1900, "msg": "fix"}}}}},
			{"number": 1, "result": success, "timestamp": 1000, "duration": 10, "url": base + "/job/app/1/"},
		}
	})

	rec := &progressRecorder{}
	builds, err := NewJenkins(newTestClient()).FetchBuilds(context.Background(), jenkinsPipeline(srv.URL), 1500, 5000, rec.record)
	if err != nil {
		t.Fatalf("FetchBuilds() unexpected error: %v", err)
	}

	if len(builds) != 2 {
		t.Fatalf("expected 2 builds in window, got %d", len(builds))
	}
	if builds[0].ID != "3" || builds[0].Result != model.StatusInProgress {
		t.Errorf("unexpected first build: %+v", builds[0])
	}
	if builds[1].Result != model.StatusFailed || builds[1].PipelineID != "pipe-1" {
		t.Errorf("unexpected second build: %+v", builds[1])
	}
	if len(builds[1].Commits) != 1 || builds[1].Commits[0].CommitID != "b" {
		t.Errorf("expected commit b, got %+v", builds[1].Commits)
	}
	if len(builds[1].Stages) != 2 || builds[1].Stages[1].Status != model.StatusFailed {
		t.Errorf("unexpected stages: %+v", builds[1].Stages)
	}
	if builds[1].Stages[1].CompletedTimeMillis != 116 {
		t.Errorf("expected completed time 116, got %d", builds[1].Stages[1].CompletedTimeMillis)
	}

	if p, total := rec.last(); p != 2 || total != 2 {
		t.Errorf("expected final progress 2/2, got %d/%d", p, total)
	}
	for i := 1; i < len(rec.processed); i++ {
		if rec.processed[i] < rec.processed[i-1] {
			t.Errorf("progress decreased: %v", rec.processed)
		}
	}
}

func TestJenkins_FetchBuildsEmptyWindowReportsZero(t *testing.T) {
	srv := newJenkinsServer(t, func(base string) []map[string]any {
		return []map[string]any{{"number": 1, "result": "SUCCESS", "timestamp": 1000, "url": base + "/job/app/1/"}}
	})

	rec := &progressRecorder{}
	builds, err := NewJenkins(newTestClient()).FetchBuilds(context.Background(), jenkinsPipeline(srv.URL), 5000, 6000, rec.record)
	if err != nil {
		t.Fatalf("FetchBuilds() unexpected error: %v", err)
	}
	if len(builds) != 0 {
		t.Errorf("expected no builds, got %d", len(builds))
	}
	if p, total := rec.last(); p != 0 || total != 0 {
		t.Errorf("expected final progress 0/0, got %d/%d", p, total)
	}
}

func TestJenkins_FetchBuildsUnauthorized(t *testing.T) {
	srv := newJenkinsServer(t, func(string) []map[string]any { return nil })
	p := jenkinsPipeline(srv.URL)
	p.Credential = "wrong"

	_, err := NewJenkins(newTestClient()).FetchBuilds(context.Background(), p, 0, 1, nil)

	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected *FetchError, got %v", err)
	}
	if fetchErr.Provider != "jenkins" || fetchErr.PipelineID != "pipe-1" {
		t.Errorf("unexpected FetchError fields: %+v", fetchErr)
	}
	if !errors.Is(err, ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
}

func TestJenkins_FetchBuildsMalformedEntryFailsWholeFetch(t *testing.T) {
	srv := newJenkinsServer(t, func(base string) []map[string]any {
		return []map[string]any{
			{"number": 2, "result": "SUCCESS", "timestamp": 2000, "url": base + "/job/app/2/"},
			{"number": 1, "result": "SUCCESS", "url": base + "/job/app/1/"},
		}
	})

	_, err := NewJenkins(newTestClient()).FetchBuilds(context.Background(), jenkinsPipeline(srv.URL), 0, 5000, nil)
	if !errors.Is(err, ErrMalformedResponse) {
		t.Errorf("expected ErrMalformedResponse, got %v", err)
	}
}

func TestJenkins_FetchBuildsInvalidJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html>not json</html>")
	}))
	defer srv.Close()

	_, err := NewJenkins(newTestClient()).FetchBuilds(context.Background(), jenkinsPipeline(srv.URL), 0, 5000, nil)
	if !errors.Is(err, ErrMalformedResponse) {
		t.Errorf("expected ErrMalformedResponse, got %v", err)
	}
}

func TestJenkins_FetchBuildsTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	client := NewClient(nil, ClientOptions{Timeout: 50 * time.Millisecond})
	_, err := NewJenkins(client).FetchBuilds(context.Background(), jenkinsPipeline(srv.URL), 0, 5000, nil)

	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected *FetchError, got %v", err)
	}
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("expected ErrTimeout, got %v", err)
	}
}

func TestJenkins_InvalidURL(t *testing.T) {
	p := model.Pipeline{ID: "pipe-1", URL: "ftp://jenkins"}
	_, err := NewJenkins(newTestClient()).FetchBuilds(context.Background(), p, 0, 1, nil)
	if !errors.Is(err, ErrInvalidURL) {
		t.Errorf("expected ErrInvalidURL, got %v", err)
	}
}

func TestJenkins_Verify(t *testing.T) {
	srv := newJenkinsServer(t, func(string) []map[string]any { return nil })
	j := NewJenkins(newTestClient())

	if err := j.Verify(context.Background(), jenkinsPipeline(srv.URL)); err != nil {
		t.Errorf("Verify() unexpected error: %v", err)
	}

	bad := jenkinsPipeline(srv.URL)
	bad.Username = "someone"
	if err := j.Verify(context.Background(), bad); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("Verify() expected ErrUnauthorized, got %v", err)
	}
}

func TestJenkinsBuildStatus(t *testing.T) {
	str := func(s string) *string { return &s }
	tests := []struct {
		building bool
		result   *string
		want     model.BuildStatus
	}{
		{false, str("SUCCESS"), model.StatusSuccess},
		{false, str("FAILURE"), model.StatusFailed},
		{false, str("UNSTABLE"), model.StatusFailed},
		{false, str("ABORTED"), model.StatusAborted},
		{false, str("NOT_BUILT"), model.StatusOther},
		{false, nil, model.StatusInProgress},
		{true, str("SUCCESS"), model.StatusInProgress},
	}
	for _, tt := range tests {
		if got := jenkinsBuildStatus(tt.building, tt.result); got != tt.want {
			t.Errorf("jenkinsBuildStatus(%v, %v) = %s, want %s", tt.building, tt.result, got, tt.want)
		}
	}
}
