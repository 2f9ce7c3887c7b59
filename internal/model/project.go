package model

import "time"

// Project groups the pipelines whose build history is synchronized together.
// LastSyncTimestamp is epoch millis; nil means the project was never synchronized.
type Project struct {
	ID                string
	Name              string
	LastSyncTimestamp *int64
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// CreateProjectRequest represents a project creation request with its first pipeline.
type CreateProjectRequest struct {
	ProjectName string          `json:"projectName"`
	Pipeline    PipelineRequest `json:"pipeline"`
}

// ProjectResponse represents a project in API responses.
type ProjectResponse struct {
	ID                string             `json:"id"`
	Name              string             `json:"name"`
	LastSyncTimestamp *int64             `json:"synchronizationTimestamp"`
	Pipelines         []PipelineResponse `json:"pipelines,omitempty"`
}
