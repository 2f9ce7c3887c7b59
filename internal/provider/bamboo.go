package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/buildpulse/buildpulse-go/internal/model"
)

// Bamboo pages through a Bamboo plan's results newest first, following the
// start-index continuation returned with each page, until a page reaches
// builds older than the window.
type Bamboo struct {
	client   *Client
	pageSize int
}

func NewBamboo(client *Client, pageSize int) *Bamboo {
	if pageSize <= 0 {
		pageSize = 25
	}
	return &Bamboo{client: client, pageSize: pageSize}
}

func (b *Bamboo) Name() string { return "bamboo" }

type bambooResultPage struct {
	Results struct {
		Size       int            `json:"size"`
		StartIndex int            `json:"start-index"`
		MaxResult  int            `json:"max-result"`
		Result     []bambooResult `json:"result"`
	} `json:"results"`
}

type bambooResult struct {
	Key              string `json:"key"`
	BuildNumber      int    `json:"buildNumber"`
	BuildState       string `json:"buildState"`
	LifeCycleState   string `json:"lifeCycleState"`
	BuildStartedTime string `json:"buildStartedTime"`
	BuildDuration    int64  `json:"buildDuration"`
	Link             struct {
		Href string `json:"href"`
	} `json:"link"`
	Stages struct {
		Stage []bambooStage `json:"stage"`
	} `json:"stages"`
	Changes struct {
		Change []bambooChange `json:"change"`
	} `json:"changes"`
}

type bambooStage struct {
	Name           string `json:"name"`
	State          string `json:"state"`
	LifeCycleState string `json:"lifeCycleState"`
}

type bambooChange struct {
	ChangesetID string `json:"changesetId"`
	Date        string `json:"date"`
	Comment     string `json:"comment"`
}

func (b *Bamboo) FetchBuilds(ctx context.Context, p model.Pipeline, since, until int64, progress ProgressFunc) ([]model.Build, error) {
	if progress == nil {
		progress = noopProgress
	}
	fail := func(err error) error {
		return &FetchError{Provider: b.Name(), PipelineID: p.ID, Err: err}
	}

	base, planKey, err := parseBambooURL(p.URL)
	if err != nil {
		return nil, fail(err)
	}
	auth := bearerAuth(p.Credential)

	var builds []model.Build
	next := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, fail(classifyTransportError(ctx, err))
		}

		var page bambooResultPage
		if err := b.client.getJSON(ctx, b.resultsURL(base, planKey, next), auth, &page); err != nil {
			return nil, fail(err)
		}

		reachedSince := false
		for _, r := range page.Results.Result {
			if isBambooQueued(r.LifeCycleState) {
				continue
			}
			started, err := parseBambooTime(r.BuildStartedTime)
			if err != nil || r.BuildNumber <= 0 {
				return nil, fail(fmt.Errorf("%w: result %q: missing build number or start time", ErrMalformedResponse, r.Key))
			}
			ts := started.UnixMilli()
			if ts < since {
				reachedSince = true
				break
			}
			if ts > until {
				continue
			}
			builds = append(builds, r.toModel(p.ID, ts))
		}

		fetched := page.Results.StartIndex + len(page.Results.Result)
		more := !reachedSince && len(page.Results.Result) > 0 && fetched < page.Results.Size
		if !more {
			break
		}

		total := len(builds) + min(b.pageSize, page.Results.Size-fetched)
		progress(len(builds), total)
		next = fetched
	}

	progress(len(builds), len(builds))
	return builds, nil
}

func (b *Bamboo) Verify(ctx context.Context, p model.Pipeline) error {
	base, planKey, err := parseBambooURL(p.URL)
	if err != nil {
		return &FetchError{Provider: b.Name(), PipelineID: p.ID, Err: err}
	}

	var plan struct {
		Key string `json:"key"`
	}
	if err := b.client.getJSON(ctx, base+"/rest/api/latest/plan/"+url.PathEscape(planKey)+".json", bearerAuth(p.Credential), &plan); err != nil {
		return &FetchError{Provider: b.Name(), PipelineID: p.ID, Err: err}
	}
	return nil
}

func (b *Bamboo) resultsURL(base, planKey string, startIndex int) string {
	q := url.Values{}
	q.Set("expand", "results.result.stages.stage,results.result.changes.change")
	q.Set("includeAllStates", "true")
	q.Set("max-result", strconv.Itoa(b.pageSize))
	q.Set("start-index", strconv.Itoa(startIndex))
	return base + "/rest/api/latest/result/" + url.PathEscape(planKey) + ".json?" + q.Encode()
}

func (r bambooResult) toModel(pipelineID string, timestamp int64) model.Build {
	out := model.Build{
		ID:         strconv.Itoa(r.BuildNumber),
		PipelineID: pipelineID,
		Number:     r.BuildNumber,
		Result:     bambooStatus(r.BuildState, r.LifeCycleState),
		Duration:   r.BuildDuration,
		Timestamp:  timestamp,
		URL:        r.Link.Href,
		Stages:     make([]model.Stage, 0, len(r.Stages.Stage)),
	}

	for _, s := range r.Stages.Stage {
		out.Stages = append(out.Stages, model.Stage{
			Name:   s.Name,
			Status: bambooStatus(s.State, s.LifeCycleState),
		})
	}

	for _, c := range r.Changes.Change {
		var ts int64
		if t, err := parseBambooTime(c.Date); err == nil {
			ts = t.UnixMilli()
		}
		out.Commits = append(out.Commits, model.Commit{
			CommitID:  c.ChangesetID,
			Timestamp: ts,
			Date:      c.Date,
			Message:   c.Comment,
		})
	}

	return out
}

func bambooStatus(state, lifeCycle string) model.BuildStatus {
	switch lifeCycle {
	case "InProgress", "Queued", "Pending":
		return model.StatusInProgress
	case "NotBuilt":
		return model.StatusAborted
	}
	switch state {
	case "Successful":
		return model.StatusSuccess
	case "Failed":
		return model.StatusFailed
	default:
		return model.StatusOther
	}
}

func isBambooQueued(lifeCycle string) bool {
	return lifeCycle == "Queued" || lifeCycle == "Pending"
}

var bambooTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000-0700",
	"2006-01-02T15:04:05-0700",
}

func parseBambooTime(s string) (time.Time, error) {
	var lastErr error
	for _, layout := range bambooTimeLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// parseBambooURL splits a plan URL such as https://bamboo.example.com/browse/PROJ-PLAN
// into the server base URL and the plan key.
func parseBambooURL(raw string) (string, string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidURL, raw)
	}

	prefix, planKey, found := strings.Cut(strings.TrimSuffix(u.Path, "/"), "/browse/")
	if !found || planKey == "" || strings.Contains(planKey, "/") {
		return "", "", fmt.Errorf("%w: expected .../browse/<plan key>, got %q", ErrInvalidURL, raw)
	}

	return u.Scheme + "://" + u.Host + prefix, planKey, nil
}

func bearerAuth(token string) func(*http.Request) {
	return func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+token)
	}
}
