package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/newsdesk-io/newsdesk/internal/history"
	"github.com/newsdesk-io/newsdesk/internal/toolcall"
	"github.com/newsdesk-io/newsdesk/pkg/protocol"
)

// finalAnswerInstruction is sent with the observations but never stored.
const finalAnswerInstruction = "Tool response has been recieved, provide a non-tool call response using the results to the query."

// Turn is the outcome of one Process call.
type Turn struct {
	Answer       string
	Calls        []protocol.ToolCall
	Observations protocol.Observations
	Failures     []toolcall.Failure
	// Degraded is set when the provider failed and Answer is an error text.
	Degraded bool
}

// Run processes a user message and returns only the answer text.
func (a *ToolAgent) Run(ctx context.Context, userMessage string) string {
	return a.Process(ctx, userMessage).Answer
}

// Process runs one turn: at most two model calls with a tool round between
// them. It never returns an error; failures surface as text in Answer.
func (a *ToolAgent) Process(ctx context.Context, userMessage string) Turn {
	a.history = append(a.history, protocol.ChatMessage{Role: protocol.RoleUser, Content: userMessage})

	first, err := a.chat(ctx, a.history)
	if err != nil {
		return a.degraded(err)
	}

	batch := a.parser.Parse(first)
	if batch.Empty() {
		a.history = append(a.history, protocol.ChatMessage{Role: protocol.RoleAssistant, Content: first})
		return Turn{Answer: first}
	}

	turn := Turn{Calls: batch.Calls, Failures: batch.Failures}
	turn.Observations = a.execute(ctx, batch)

	a.history = append(a.history, protocol.ChatMessage{
		Role:    protocol.RoleUser,
		Content: "Tool results: " + renderObservations(turn.Observations),
	})

	msgs := append(a.History(), protocol.ChatMessage{Role: protocol.RoleUser, Content: finalAnswerInstruction})
	answer, err := a.chat(ctx, msgs)
	if err != nil {
		d := a.degraded(err)
		turn.Answer, turn.Degraded = d.Answer, true
		return turn
	}
	a.history = append(a.history, protocol.ChatMessage{Role: protocol.RoleAssistant, Content: answer})
	turn.Answer = answer
	return turn
}

func (a *ToolAgent) chat(ctx context.Context, msgs []protocol.ChatMessage) (string, error) {
	req := protocol.ChatRequest{
		Model:     a.Model,
		Messages:  history.Trim(msgs, a.MaxTotalTokens, a.Counter),
		MaxTokens: a.MaxResponseTokens,
	}
	a.Logger.Debug("agent chat request",
		"provider", a.Provider.Name(),
		"messages", len(req.Messages),
		"dropped", len(msgs)-len(req.Messages),
	)
	resp, err := a.Provider.Chat(ctx, req)
	if err != nil {
		return "", err
	}
	a.Logger.Debug("agent chat response",
		"provider", a.Provider.Name(),
		"content_len", len(resp.Content),
		"tokens", resp.Usage.TotalTokens(),
	)
	return resp.Content, nil
}

func (a *ToolAgent) degraded(err error) Turn {
	a.Logger.Error("model request failed", "provider", a.Provider.Name(), "error", err)
	return Turn{
		Answer:   fmt.Sprintf("Error when waiting for request from model: %v. Please try again", err),
		Degraded: true,
	}
}

// execute runs every parsed call and records one observation per call ID.
// Malformed blocks are reported alongside the results of their siblings.
func (a *ToolAgent) execute(ctx context.Context, batch toolcall.Batch) protocol.Observations {
	obs := make(protocol.Observations, len(batch.Calls)+len(batch.Failures))

	for _, f := range batch.Failures {
		a.Logger.Warn("could not parse tool call", "call_id", f.ID, "raw", f.Raw, "error", f.Err)
		obs[f.ID] = protocol.ErrorObservation{Error: fmt.Sprintf("could not parse tool call: %v", f.Err)}
	}

	for _, res := range a.Tools.ExecuteBatch(ctx, batch.Calls) {
		if res.Err != nil {
			a.Logger.Warn("tool call failed", "tool", res.Call.Name, "call_id", res.Call.ID, "error", res.Err)
			obs[res.Call.ID] = protocol.ErrorObservation{Error: res.Err.Error()}
			continue
		}
		obs[res.Call.ID] = res.Value
	}
	return obs
}

// renderObservations indents the observations as JSON. Values that cannot
// be encoded are replaced by their printed form.
func renderObservations(obs protocol.Observations) string {
	b, err := json.MarshalIndent(obs, "", "  ")
	if err == nil {
		return string(b)
	}
	safe := make(map[string]any, len(obs))
	for id, v := range obs {
		if _, err := json.Marshal(v); err != nil {
			v = fmt.Sprintf("%v", v)
		}
		safe[id] = v
	}
	b, _ = json.MarshalIndent(safe, "", "  ")
	return string(b)
}
