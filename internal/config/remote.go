package config

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"
)

// RemoteOptions holds parameters for fetching config over HTTP.
type RemoteOptions struct {
	URL    string
	APIKey string // sent as a bearer token when set
	Client *http.Client
}

// LoadRemote fetches a JSON or YAML config document, fills defaults and
// validates it. The format follows the Content-Type, then the URL extension.
func LoadRemote(ctx context.Context, opts RemoteOptions) (*Config, error) {
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, opts.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("config: remote: create request: %w", err)
	}
	if opts.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+opts.APIKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("config: remote: fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("config: remote: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("config: remote: HTTP %d: %s", resp.StatusCode, string(body))
	}

	ext := path.Ext(req.URL.Path)
	if ct := resp.Header.Get("Content-Type"); strings.Contains(ct, "yaml") {
		ext = ".yaml"
	} else if strings.Contains(ct, "json") {
		ext = ".json"
	}

	cfg, err := parse(body, ext)
	if err != nil {
		return nil, fmt.Errorf("config: remote: parse: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: remote: %w", err)
	}
	return cfg, nil
}
