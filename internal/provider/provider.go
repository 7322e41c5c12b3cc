// Package provider adapts LLM chat APIs to a single text-in, text-out call.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/newsdesk-io/newsdesk/pkg/protocol"
)

// Provider sends a conversation to a model and returns its text reply.
// Implementations must be safe for concurrent use; one Provider is shared by
// every agent and researcher on the desk.
type Provider interface {
	Chat(ctx context.Context, req protocol.ChatRequest) (*protocol.ChatResponse, error)
	Name() string
}

// StatusError is returned when a chat API answers with a non-200 status.
type StatusError struct {
	Provider string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: api error (status %d): %s", e.Provider, e.Code, e.Body)
}

// Temporary reports whether the request may succeed if sent again later.
func (e *StatusError) Temporary() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

const defaultTimeout = 120 * time.Second

// postJSON sends body as JSON and decodes a 200 reply into out. Other
// statuses come back as *StatusError. Errors are prefixed with name.
func postJSON(ctx context.Context, client *http.Client, name, url string, header http.Header, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%s: marshal request: %w", name, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%s: create request: %w", name, err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: http request: %w", name, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: read response: %w", name, err)
	}
	if resp.StatusCode != http.StatusOK {
		return &StatusError{Provider: name, Code: resp.StatusCode, Body: string(raw)}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s: unmarshal response: %w", name, err)
	}
	return nil
}
