package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// maxBodySize bounds a single CI backend response.
const maxBodySize = 32 << 20

// ClientOptions configures the HTTP client shared by adapters.
type ClientOptions struct {
	Timeout time.Duration
	RPS     float64
	Burst   int
}

// DefaultClientOptions returns conservative limits for CI backends.
func DefaultClientOptions() ClientOptions {
	return ClientOptions{
		Timeout: 30 * time.Second,
		RPS:     10,
		Burst:   5,
	}
}

// Client performs throttled, time-bounded JSON GETs.
type Client struct {
	http    *http.Client
	limiter *rate.Limiter
	timeout time.Duration
}

// NewClient creates a Client. A nil httpClient uses a fresh http.Client.
func NewClient(httpClient *http.Client, opts ClientOptions) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultClientOptions().Timeout
	}
	limit := rate.Inf
	if opts.RPS > 0 {
		limit = rate.Limit(opts.RPS)
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}

	return &Client{
		http:    httpClient,
		limiter: rate.NewLimiter(limit, opts.Burst),
		timeout: opts.Timeout,
	}
}

// getJSON decodes the JSON body of url into out. authorize may set headers.
func (c *Client) getJSON(ctx context.Context, url string, authorize func(*http.Request), out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return classifyTransportError(ctx, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	req.Header.Set("Accept", "application/json")
	if authorize != nil {
		authorize(req)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return classifyTransportError(ctx, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrUnauthorized, resp.Status)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return fmt.Errorf("%w: %s from %s", ErrUnexpectedStatus, resp.Status, req.URL.Path)
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodySize)).Decode(out); err != nil {
		if ctx.Err() != nil {
			return classifyTransportError(ctx, err)
		}
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	return nil
}

func classifyTransportError(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return err
}
