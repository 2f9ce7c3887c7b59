// Package provider adapts CI backends to a single build-fetching contract.
package provider

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/buildpulse/buildpulse-go/internal/model"
)

var (
	ErrUnsupportedType   = errors.New("unsupported pipeline type")
	ErrUnauthorized      = errors.New("authentication rejected by CI backend")
	ErrUnexpectedStatus  = errors.New("unexpected response status")
	ErrMalformedResponse = errors.New("malformed response")
	ErrTimeout           = errors.New("request timed out")
	ErrInvalidURL        = errors.New("invalid pipeline URL")
)

// ProgressFunc receives the number of builds normalized so far and the
// expected total. It is called sequentially from the fetching goroutine.
type ProgressFunc func(processed, total int)

// Provider fetches build history from one kind of CI backend. Implementations
// never modify remote state.
type Provider interface {
	Name() string
	// FetchBuilds returns every build started within [since, until] (epoch
	// millis). The last progress report has processed == total == len(result).
	FetchBuilds(ctx context.Context, p model.Pipeline, since, until int64, progress ProgressFunc) ([]model.Build, error)
	// Verify checks that the pipeline is reachable with its credentials.
	Verify(ctx context.Context, p model.Pipeline) error
}

// FetchError is returned for any network, authentication, timeout or
// response-format failure talking to a CI backend.
type FetchError struct {
	Provider   string
	PipelineID string
	Err        error
}

func (e *FetchError) Error() string {
	if e.PipelineID == "" {
		return fmt.Sprintf("%s fetch failed: %v", e.Provider, e.Err)
	}
	return fmt.Sprintf("%s fetch failed for pipeline %s: %v", e.Provider, e.PipelineID, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Registry resolves the Provider for a pipeline type.
type Registry struct {
	mu        sync.RWMutex
	providers map[model.PipelineType]Provider
}

func NewRegistry() *Registry {
	return &Registry{providers: make(map[model.PipelineType]Provider)}
}

// Register installs p for t, replacing any previous provider.
func (r *Registry) Register(t model.PipelineType, p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[t] = p
}

// Get returns the provider registered for t.
func (r *Registry) Get(t model.PipelineType) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[t]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, t)
	}
	return p, nil
}

func noopProgress(int, int) {}
