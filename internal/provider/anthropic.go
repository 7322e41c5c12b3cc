package provider

import (
	"cmp"
	"context"
	"net/http"
	"strings"

	"github.com/newsdesk-io/newsdesk/pkg/protocol"
)

const anthropicAPIVersion = "2023-06-01"

// max_tokens is mandatory on the Messages API.
const defaultAnthropicMaxTokens = 4096

// AnthropicProvider talks to the Anthropic Messages API with plain text
// blocks only.
type AnthropicProvider struct {
	client  *http.Client
	baseURL string
	apiKey  string
	model   string
}

// AnthropicOption configures an AnthropicProvider.
type AnthropicOption func(*AnthropicProvider)

// WithAnthropicBaseURL points the provider at a proxy or test server.
func WithAnthropicBaseURL(url string) AnthropicOption {
	return func(p *AnthropicProvider) { p.baseURL = strings.TrimRight(url, "/") }
}

// WithAnthropicModel sets the model used when a request names none.
func WithAnthropicModel(model string) AnthropicOption {
	return func(p *AnthropicProvider) { p.model = model }
}

// NewAnthropic returns a provider for api.anthropic.com.
func NewAnthropic(apiKey string, opts ...AnthropicOption) *AnthropicProvider {
	p := &AnthropicProvider{
		client:  &http.Client{Timeout: defaultTimeout},
		baseURL: "https://api.anthropic.com",
		apiKey:  apiKey,
		model:   "claude-sonnet-4-20250514",
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *AnthropicProvider) Name() string { return "anthropic" }

// Chat sends the conversation to /v1/messages. System messages become the
// top-level system field and the text blocks of the reply are joined.
func (p *AnthropicProvider) Chat(ctx context.Context, req protocol.ChatRequest) (*protocol.ChatResponse, error) {
	system, messages := toAnthropicMessages(req.Messages)
	body := anthropicRequest{
		Model:     cmp.Or(req.Model, p.model),
		Messages:  messages,
		System:    system,
		MaxTokens: defaultAnthropicMaxTokens,
	}
	if req.MaxTokens > 0 {
		body.MaxTokens = req.MaxTokens
	}
	if req.Temperature > 0 {
		body.Temperature = &req.Temperature
	}

	header := http.Header{}
	header.Set("x-api-key", p.apiKey)
	header.Set("anthropic-version", anthropicAPIVersion)
	var resp anthropicResponse
	if err := postJSON(ctx, p.client, p.Name(), p.baseURL+"/v1/messages", header, body, &resp); err != nil {
		return nil, err
	}
	return parseAnthropicResponse(&resp), nil
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	Messages    []anthropicMessage `json:"messages"`
	System      string             `json:"system,omitempty"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature *float64           `json:"temperature,omitempty"`
}

type anthropicMessage struct {
	Role    string      `json:"role"`
	Content []textBlock `json:"content"`
}

type textBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type anthropicResponse struct {
	Model      string         `json:"model"`
	Content    []textBlock    `json:"content"`
	Usage      anthropicUsage `json:"usage"`
	StopReason string         `json:"stop_reason"`
}

type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// toAnthropicMessages lifts system messages into the top-level field and
// merges consecutive same-role turns, which the Messages API rejects.
// Tool observations are sent as user turns, so merging is common.
func toAnthropicMessages(msgs []protocol.ChatMessage) (string, []anthropicMessage) {
	var system []string
	var out []anthropicMessage

	for _, m := range msgs {
		if m.Role == protocol.RoleSystem {
			system = append(system, m.Content)
			continue
		}
		block := textBlock{Type: "text", Text: m.Content}
		if n := len(out); n > 0 && out[n-1].Role == m.Role {
			out[n-1].Content = append(out[n-1].Content, block)
			continue
		}
		out = append(out, anthropicMessage{Role: m.Role, Content: []textBlock{block}})
	}

	return strings.Join(system, "\n\n"), out
}

func parseAnthropicResponse(resp *anthropicResponse) *protocol.ChatResponse {
	var content strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			content.WriteString(block.Text)
		}
	}
	return &protocol.ChatResponse{
		Content: content.String(),
		Model:   resp.Model,
		Usage: protocol.Usage{
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
		},
	}
}
