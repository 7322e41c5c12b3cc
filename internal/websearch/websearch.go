// Package websearch is a client for a JSON web-search API that takes a
// query and a freshness window and returns summarised results.
package websearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/newsdesk-io/newsdesk/pkg/protocol"
)

const (
	// DefaultURL is the Langsearch web-search endpoint.
	DefaultURL = "https://api.langsearch.com/v1/web-search"

	defaultCount   = 10
	defaultTimeout = 30 * time.Second
	maxBodySize    = 1 << 20
)

// Client posts search requests. It is safe for concurrent use.
type Client struct {
	url     string
	apiKey  string
	http    *http.Client
	limiter *rate.Limiter
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

// WithRateLimit allows rps searches per second. rps <= 0 disables limiting.
func WithRateLimit(rps float64, burst int) Option {
	return func(cl *Client) {
		if rps <= 0 {
			cl.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		cl.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// New creates a client. An empty url uses DefaultURL.
func New(url, apiKey string, opts ...Option) *Client {
	if url == "" {
		url = DefaultURL
	}
	c := &Client{
		url:    url,
		apiKey: apiKey,
		http:   &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type searchRequest struct {
	Query     string             `json:"query"`
	Freshness protocol.Freshness `json:"freshness"`
	Summary   bool               `json:"summary"`
	Count     int                `json:"count"`
}

// Search runs one query and returns the raw response body. An empty
// freshness is sent as noLimit.
func (c *Client) Search(ctx context.Context, query string, freshness protocol.Freshness) (string, error) {
	if freshness == "" {
		freshness = protocol.FreshnessNoLimit
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("websearch: rate limit: %w", err)
		}
	}

	payload, err := json.Marshal(searchRequest{Query: query, Freshness: freshness, Summary: true, Count: defaultCount})
	if err != nil {
		return "", fmt.Errorf("websearch: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("websearch: create request: %w", err)
	}
	req.Header.Set("Authorization", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("websearch: http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return "", fmt.Errorf("websearch: read response: %w", err)
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return "", fmt.Errorf("websearch: api error (status %d): %s", resp.StatusCode, string(body))
	}
	return string(body), nil
}
