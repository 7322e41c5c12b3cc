// Package research answers questions with a retrieve, decide, search loop.
// The model sees local passages and may ask for a live web search before it
// commits to an answer.
package research

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/newsdesk-io/newsdesk/internal/history"
	"github.com/newsdesk-io/newsdesk/internal/provider"
	"github.com/newsdesk-io/newsdesk/pkg/protocol"
)

const (
	DefaultTopN          = 5
	DefaultMaxIterations = 5

	errorAnswer         = "An error occurred while processing your request. Please try again."
	invalidActionAnswer = "Invalid action. Please try again."
	giveUpAnswer        = "I could not find a reliable answer to your question. Please try rephrasing it."
	retryContext        = "No relevant information found. Please try again."
)

// Retriever returns the passages most relevant to a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topN int) ([]string, error)
}

// Searcher runs a live web search and returns the raw result body.
type Searcher interface {
	Search(ctx context.Context, query string, freshness protocol.Freshness) (string, error)
}

// Researcher runs the decision loop. Memory is shared across calls on the
// same Researcher.
type Researcher struct {
	Provider      provider.Provider
	Retriever     Retriever
	Searcher      Searcher
	Memory        *history.Memory
	Logger        *slog.Logger
	Model         string
	TopN          int
	MaxIterations int
	Now           func() time.Time
}

// Option configures a Researcher.
type Option func(*Researcher)

func WithLogger(l *slog.Logger) Option { return func(r *Researcher) { r.Logger = l } }
func WithModel(m string) Option { return func(r *Researcher) { r.Model = m } }
func WithTopN(n int) Option { return func(r *Researcher) { r.TopN = n } }
func WithMaxIterations(n int) Option { return func(r *Researcher) { r.MaxIterations = n } }
func WithMemory(m *history.Memory) Option { return func(r *Researcher) { r.Memory = m } }
func WithClock(now func() time.Time) Option { return func(r *Researcher) { r.Now = now } }

// New creates a Researcher. A nil retriever means no local context.
func New(prov provider.Provider, retriever Retriever, searcher Searcher, opts ...Option) *Researcher {
	r := &Researcher{
		Provider:      prov,
		Retriever:     retriever,
		Searcher:      searcher,
		Memory:        history.NewMemory(0),
		Logger:        slog.Default(),
		TopN:          DefaultTopN,
		MaxIterations: DefaultMaxIterations,
		Now:           time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Step records one DECIDE round for callers that want to trace the loop.
type Step struct {
	Decision protocol.Decision
	Searched bool
}

// Result is the outcome of Ask.
type Result struct {
	Answer string
	Steps  []Step
	Err    error
}

// Chat answers input and returns only the answer text.
func (r *Researcher) Chat(ctx context.Context, input string) string {
	return r.Ask(ctx, input).Answer
}

// Ask runs the loop to completion. Errors are logged and turned into a fixed
// apology; Result.Err keeps the cause.
func (r *Researcher) Ask(ctx context.Context, input string) Result {
	var res Result

	passages, err := r.retrieve(ctx, input)
	if err != nil {
		return r.fail(res, fmt.Errorf("research: retrieve: %w", err))
	}
	plan := strings.Join(passages, "\n") + "\n\n"
	memory := r.Memory.Transcript()

	maxIter := r.MaxIterations
	if maxIter <= 0 {
		maxIter = DefaultMaxIterations
	}

	for i := 0; i < maxIter; i++ {
		if err := ctx.Err(); err != nil {
			return r.fail(res, fmt.Errorf("research: %w", err))
		}

		resp, err := r.Provider.Chat(ctx, protocol.ChatRequest{
			Model: r.Model,
			Messages: []protocol.ChatMessage{
				{Role: protocol.RoleSystem, Content: BuildPrompt(r.Now(), plan, memory)},
				{Role: protocol.RoleUser, Content: input},
			},
		})
		if err != nil {
			return r.fail(res, fmt.Errorf("research: decide: %w", err))
		}

		d := ParseDecision(resp.Content)
		step := Step{Decision: d}
		r.Logger.Debug("research decision", "iteration", i+1, "action", d.Action, "freshness", d.Freshness)

		switch d.Action {
		case protocol.ActionAnswer:
			res.Steps = append(res.Steps, step)
			r.Memory.Add(input, d.Query)
			res.Answer = d.Query
			return res

		case protocol.ActionSearch:
			if d.IsRetry() {
				r.Logger.Warn("unparseable decision, asking again", "response", resp.Content)
				plan = retryContext
				res.Steps = append(res.Steps, step)
				continue
			}
			freshness := d.Freshness
			if freshness == "" {
				freshness = protocol.FreshnessNoLimit
			}
			results, err := r.search(ctx, d.Query, freshness)
			if err != nil {
				return r.fail(res, fmt.Errorf("research: search: %w", err))
			}
			step.Searched = true
			res.Steps = append(res.Steps, step)
			plan = "Web search results:\n" + results + "\n\n"

		default:
			res.Steps = append(res.Steps, step)
			res.Answer = invalidActionAnswer
			return res
		}
	}

	r.Logger.Warn("research gave up", "iterations", maxIter)
	res.Answer = giveUpAnswer
	return res
}

func (r *Researcher) retrieve(ctx context.Context, query string) ([]string, error) {
	if r.Retriever == nil {
		return nil, nil
	}
	topN := r.TopN
	if topN <= 0 {
		topN = DefaultTopN
	}
	return r.Retriever.Retrieve(ctx, query, topN)
}

func (r *Researcher) search(ctx context.Context, query string, freshness protocol.Freshness) (string, error) {
	if r.Searcher == nil {
		return "", fmt.Errorf("no web search configured")
	}
	r.Logger.Info("performing web search", "query", query, "freshness", freshness)
	return r.Searcher.Search(ctx, query, freshness)
}

func (r *Researcher) fail(res Result, err error) Result {
	r.Logger.Error("research failed", "error", err)
	res.Answer = errorAnswer
	res.Err = err
	return res
}
