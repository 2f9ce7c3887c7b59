package model

import (
	"errors"
	"strings"
	"time"
)

// PipelineType selects the CI backend a pipeline is pulled from.
type PipelineType string

const (
	PipelineTypeJenkins PipelineType = "JENKINS"
	PipelineTypeBamboo  PipelineType = "BAMBOO"
)

var (
	ErrPipelineTypeInvalid  = errors.New("type only allow JENKINS and BAMBOO")
	ErrPipelineURLRequired  = errors.New("URL cannot be empty")
	ErrPipelineNameRequired = errors.New("pipeline name cannot be empty")
	ErrCredentialRequired   = errors.New("credential cannot be empty")
	ErrUsernameRequired     = errors.New("username cannot be empty")
	ErrConnectionMismatch   = errors.New("connection details do not match pipeline type")
)

// Valid reports whether t is one of the known backends.
func (t PipelineType) Valid() bool {
	return t == PipelineTypeJenkins || t == PipelineTypeBamboo
}

// Pipeline is the configuration needed to pull builds from one CI job or plan.
// Username and Credential are plaintext in memory and ciphertext at rest.
type Pipeline struct {
	ID         string
	ProjectID  string
	Name       string
	Type       PipelineType
	URL        string
	Username   string
	Credential string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// JenkinsConnection carries the connection info of a Jenkins job.
type JenkinsConnection struct {
	URL      string `json:"url"`
	Username string `json:"username"`
	Token    string `json:"credential"`
}

// BambooConnection carries the connection info of a Bamboo plan.
type BambooConnection struct {
	URL   string `json:"url"`
	Token string `json:"credential"`
}

// PipelineRequest is a pipeline definition tagged by Type. Exactly the
// connection matching Type must be set.
type PipelineRequest struct {
	Type    PipelineType       `json:"type"`
	Name    string             `json:"name"`
	Jenkins *JenkinsConnection `json:"jenkins,omitempty"`
	Bamboo  *BambooConnection  `json:"bamboo,omitempty"`
}

// Validate checks the pipeline name, the discriminant and the selected variant.
func (r PipelineRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return ErrPipelineNameRequired
	}
	return r.ValidateConnection()
}

// ValidateConnection checks only the discriminant and the selected variant.
func (r PipelineRequest) ValidateConnection() error {
	if !r.Type.Valid() {
		return ErrPipelineTypeInvalid
	}
	switch r.Type {
	case PipelineTypeJenkins:
		if r.Jenkins == nil || r.Bamboo != nil {
			return ErrConnectionMismatch
		}
		if strings.TrimSpace(r.Jenkins.URL) == "" {
			return ErrPipelineURLRequired
		}
		if r.Jenkins.Username == "" {
			return ErrUsernameRequired
		}
		if r.Jenkins.Token == "" {
			return ErrCredentialRequired
		}
	case PipelineTypeBamboo:
		if r.Bamboo == nil || r.Jenkins != nil {
			return ErrConnectionMismatch
		}
		if strings.TrimSpace(r.Bamboo.URL) == "" {
			return ErrPipelineURLRequired
		}
		if r.Bamboo.Token == "" {
			return ErrCredentialRequired
		}
	}
	return nil
}

// ToPipeline converts the request into a Pipeline owned by projectID.
// Validate must have succeeded.
func (r PipelineRequest) ToPipeline(projectID, pipelineID string) Pipeline {
	p := Pipeline{
		ID:        pipelineID,
		ProjectID: projectID,
		Name:      r.Name,
		Type:      r.Type,
	}
	switch r.Type {
	case PipelineTypeJenkins:
		p.URL = strings.TrimSpace(r.Jenkins.URL)
		p.Username = r.Jenkins.Username
		p.Credential = r.Jenkins.Token
	case PipelineTypeBamboo:
		p.URL = strings.TrimSpace(r.Bamboo.URL)
		p.Credential = r.Bamboo.Token
	}
	return p
}

// PipelineResponse represents a pipeline in API responses. The credential is never returned.
type PipelineResponse struct {
	ID        string       `json:"id"`
	ProjectID string       `json:"projectId"`
	Name      string       `json:"name"`
	Type      PipelineType `json:"type"`
	URL       string       `json:"url"`
	Username  string       `json:"username,omitempty"`
}

// ToResponse strips secrets from p.
func (p Pipeline) ToResponse() PipelineResponse {
	return PipelineResponse{
		ID:        p.ID,
		ProjectID: p.ProjectID,
		Name:      p.Name,
		Type:      p.Type,
		URL:       p.URL,
		Username:  p.Username,
	}
}
