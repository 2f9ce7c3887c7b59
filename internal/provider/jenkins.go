package provider

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/buildpulse/buildpulse-go/internal/model"
)

const jenkinsBuildsTree = "allBuilds[building,number,result,timestamp,duration,url," +
	"changeSets[items[commitId,timestamp,msg,date]]]"

// Jenkins polls a Jenkins job: one call lists every build, then each build in
// the window is enriched with its pipeline stages.
type Jenkins struct {
	client *Client
}

func NewJenkins(client *Client) *Jenkins {
	return &Jenkins{client: client}
}

func (j *Jenkins) Name() string { return "jenkins" }

type jenkinsBuildList struct {
	AllBuilds []jenkinsBuild `json:"allBuilds"`
}

type jenkinsBuild struct {
	Building   bool               `json:"building"`
	Number     int                `json:"number"`
	Result     *string            `json:"result"`
	Timestamp  int64              `json:"timestamp"`
	Duration   int64              `json:"duration"`
	URL        string             `json:"url"`
	ChangeSets []jenkinsChangeSet `json:"changeSets"`
}

type jenkinsChangeSet struct {
	Items []jenkinsCommit `json:"items"`
}

type jenkinsCommit struct {
	CommitID  string `json:"commitId"`
	Timestamp int64  `json:"timestamp"`
	Message   string `json:"msg"`
	Date      string `json:"date"`
}

type jenkinsDescribe struct {
	Stages []jenkinsStage `json:"stages"`
}

type jenkinsStage struct {
	Name                string `json:"name"`
	Status              string `json:"status"`
	StartTimeMillis     int64  `json:"startTimeMillis"`
	DurationMillis      int64  `json:"durationMillis"`
	PauseDurationMillis int64  `json:"pauseDurationMillis"`
}

func (j *Jenkins) FetchBuilds(ctx context.Context, p model.Pipeline, since, until int64, progress ProgressFunc) ([]model.Build, error) {
	if progress == nil {
		progress = noopProgress
	}
	fail := func(err error) error {
		return &FetchError{Provider: j.Name(), PipelineID: p.ID, Err: err}
	}

	base, err := jenkinsBaseURL(p.URL)
	if err != nil {
		return nil, fail(err)
	}
	auth := basicAuth(p.Username, p.Credential)

	var list jenkinsBuildList
	if err := j.client.getJSON(ctx, base+"/api/json?tree="+jenkinsBuildsTree, auth, &list); err != nil {
		return nil, fail(err)
	}

	var inWindow []jenkinsBuild
	for _, b := range list.AllBuilds {
		if b.Number <= 0 || b.Timestamp <= 0 || b.URL == "" {
			return nil, fail(fmt.Errorf("%w: build entry missing number, timestamp or url", ErrMalformedResponse))
		}
		if b.Timestamp >= since && b.Timestamp <= until {
			inWindow = append(inWindow, b)
		}
	}

	total := len(inWindow)
	progress(0, total)

	builds := make([]model.Build, 0, total)
	for i, b := range inWindow {
		if err := ctx.Err(); err != nil {
			return nil, fail(classifyTransportError(ctx, err))
		}

		var describe jenkinsDescribe
		if err := j.client.getJSON(ctx, strings.TrimSuffix(b.URL, "/")+"/wfapi/describe", auth, &describe); err != nil {
			return nil, fail(fmt.Errorf("build %d stages: %w", b.Number, err))
		}

		builds = append(builds, b.toModel(p.ID, describe.Stages))
		progress(i+1, total)
	}

	return builds, nil
}

func (j *Jenkins) Verify(ctx context.Context, p model.Pipeline) error {
	base, err := jenkinsBaseURL(p.URL)
	if err != nil {
		return &FetchError{Provider: j.Name(), PipelineID: p.ID, Err: err}
	}

	var job struct {
		Name string `json:"name"`
	}
	if err := j.client.getJSON(ctx, base+"/api/json?tree=name", basicAuth(p.Username, p.Credential), &job); err != nil {
		return &FetchError{Provider: j.Name(), PipelineID: p.ID, Err: err}
	}
	return nil
}

func (b jenkinsBuild) toModel(pipelineID string, stages []jenkinsStage) model.Build {
	out := model.Build{
		ID:         strconv.Itoa(b.Number),
		PipelineID: pipelineID,
		Number:     b.Number,
		Result:     jenkinsBuildStatus(b.Building, b.Result),
		Duration:   b.Duration,
		Timestamp:  b.Timestamp,
		URL:        b.URL,
		Stages:     make([]model.Stage, 0, len(stages)),
	}

	for _, s := range stages {
		out.Stages = append(out.Stages, model.Stage{
			Name:                s.Name,
			Status:              jenkinsStageStatus(s.Status),
			StartTimeMillis:     s.StartTimeMillis,
			DurationMillis:      s.DurationMillis,
			PauseDurationMillis: s.PauseDurationMillis,
			CompletedTimeMillis: s.StartTimeMillis + s.DurationMillis + s.PauseDurationMillis,
		})
	}

	for _, cs := range b.ChangeSets {
		for _, c := range cs.Items {
			out.Commits = append(out.Commits, model.Commit{
				CommitID:  c.CommitID,
				Timestamp: c.Timestamp,
				Date:      c.Date,
				Message:   c.Message,
			})
		}
	}

	return out
}

func jenkinsBuildStatus(building bool, result *string) model.BuildStatus {
	if building || result == nil {
		return model.StatusInProgress
	}
	switch *result {
	case "SUCCESS":
		return model.StatusSuccess
	case "FAILURE", "UNSTABLE":
		return model.StatusFailed
	case "ABORTED":
		return model.StatusAborted
	default:
		return model.StatusOther
	}
}

func jenkinsStageStatus(status string) model.BuildStatus {
	switch status {
	case "SUCCESS":
		return model.StatusSuccess
	case "FAILED", "UNSTABLE":
		return model.StatusFailed
	case "ABORTED":
		return model.StatusAborted
	case "IN_PROGRESS":
		return model.StatusInProgress
	default:
		return model.StatusOther
	}
}

func jenkinsBaseURL(raw string) (string, error) {
	u := strings.TrimSuffix(strings.TrimSpace(raw), "/")
	if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
		return "", fmt.Errorf("%w: %q", ErrInvalidURL, raw)
	}
	return u, nil
}

func basicAuth(username, token string) func(*http.Request) {
	return func(r *http.Request) {
		r.SetBasicAuth(username, token)
	}
}
