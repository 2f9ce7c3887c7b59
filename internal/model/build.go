package model

import "sort"

// BuildStatus is the canonical outcome of a build or one of its stages.
type BuildStatus string

const (
	StatusSuccess    BuildStatus = "SUCCESS"
	StatusFailed     BuildStatus = "FAILED"
	StatusInProgress BuildStatus = "IN_PROGRESS"
	StatusAborted    BuildStatus = "ABORTED"
	StatusOther      BuildStatus = "OTHER"
)

// Stage is one step of a build run as reported by the CI backend.
type Stage struct {
	Name                string      `json:"name"`
	Status              BuildStatus `json:"status"`
	StartTimeMillis     int64       `json:"startTimeMillis"`
	DurationMillis      int64       `json:"durationMillis"`
	PauseDurationMillis int64       `json:"pauseDurationMillis"`
	CompletedTimeMillis int64       `json:"completedTimeMillis,omitempty"`
}

// Commit identifies a source change that was part of a build.
type Commit struct {
	CommitID  string `json:"commitId"`
	Timestamp int64  `json:"timestamp"`
	Date      string `json:"date,omitempty"`
	Message   string `json:"msg,omitempty"`
}

// Build is the normalized record of one CI run. ID is stable per remote run
// and unique within PipelineID.
type Build struct {
	ID         string      `json:"id"`
	PipelineID string      `json:"pipelineId"`
	Number     int         `json:"number"`
	Result     BuildStatus `json:"result"`
	Duration   int64       `json:"duration"`
	Timestamp  int64       `json:"timestamp"`
	URL        string      `json:"url"`
	Stages     []Stage     `json:"stages"`
	Commits    []Commit    `json:"changeSets"`
}

// StageByName returns the first stage with the given name.
func (b Build) StageByName(name string) (Stage, bool) {
	for _, s := range b.Stages {
		if s.Name == name {
			return s, true
		}
	}
	return Stage{}, false
}

// CommitIDs returns the sorted, de-duplicated commit identifiers of the build.
func (b Build) CommitIDs() []string {
	seen := make(map[string]struct{}, len(b.Commits))
	ids := make([]string, 0, len(b.Commits))
	for _, c := range b.Commits {
		if _, ok := seen[c.CommitID]; ok {
			continue
		}
		seen[c.CommitID] = struct{}{}
		ids = append(ids, c.CommitID)
	}
	sort.Strings(ids)
	return ids
}

// SameCommits reports whether two builds carry the same set of commits.
func SameCommits(a, b Build) bool {
	x, y := a.CommitIDs(), b.CommitIDs()
	if len(x) != len(y) {
		return false
	}
	for i := range x {
		if x[i] != y[i] {
			return false
		}
	}
	return true
}
