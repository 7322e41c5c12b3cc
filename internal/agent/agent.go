// Package agent runs the tool-calling conversation loop: ask the model, run
// any tagged tool calls it emits, feed the results back, and return the
// model's final answer.
package agent

import (
	"log/slog"

	"github.com/newsdesk-io/newsdesk/internal/history"
	"github.com/newsdesk-io/newsdesk/internal/provider"
	"github.com/newsdesk-io/newsdesk/internal/tool"
	"github.com/newsdesk-io/newsdesk/internal/toolcall"
	"github.com/newsdesk-io/newsdesk/pkg/protocol"
)

const (
	DefaultMaxTotalTokens    = 12000
	DefaultMaxResponseTokens = 8192
)

// ToolAgent owns one conversation. Build one per request; only the provider
// and registry are shared.
type ToolAgent struct {
	Provider          provider.Provider
	Tools             *tool.Registry
	Logger            *slog.Logger
	Model             string
	MaxTotalTokens    int
	MaxResponseTokens int
	Counter           history.Counter

	parser  *toolcall.Parser
	history []protocol.ChatMessage
}

// Option configures a ToolAgent.
type Option func(*ToolAgent)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *ToolAgent) { a.Logger = l }
}

// WithModel overrides the provider's default model.
func WithModel(model string) Option {
	return func(a *ToolAgent) { a.Model = model }
}

// WithTokenLimits sets the history budget and the response cap. Zero keeps
// the default.
func WithTokenLimits(total, response int) Option {
	return func(a *ToolAgent) {
		if total > 0 {
			a.MaxTotalTokens = total
		}
		if response > 0 {
			a.MaxResponseTokens = response
		}
	}
}

// WithCounter sets the token counter used for trimming.
func WithCounter(c history.Counter) Option {
	return func(a *ToolAgent) { a.Counter = c }
}

// New creates an agent whose history starts with the tool system prompt.
func New(prov provider.Provider, tools *tool.Registry, opts ...Option) *ToolAgent {
	a := &ToolAgent{
		Provider:          prov,
		Tools:             tools,
		Logger:            slog.Default(),
		MaxTotalTokens:    DefaultMaxTotalTokens,
		MaxResponseTokens: DefaultMaxResponseTokens,
		Counter:           history.DefaultCounter,
		parser:            toolcall.NewParser(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.history = []protocol.ChatMessage{{Role: protocol.RoleSystem, Content: BuildSystemPrompt(tools)}}
	return a
}

// Seed appends prior turns after the system prompt. Only user and
// assistant messages are kept so the system prompt stays first and unique
// and callers cannot inject other roles.
func (a *ToolAgent) Seed(msgs ...protocol.ChatMessage) {
	for _, m := range msgs {
		if m.Role != protocol.RoleUser && m.Role != protocol.RoleAssistant {
			continue
		}
		a.history = append(a.history, m)
	}
}

// History returns a copy of the conversation so far.
func (a *ToolAgent) History() []protocol.ChatMessage {
	return append([]protocol.ChatMessage(nil), a.history...)
}
