package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/newsdesk-io/newsdesk/internal/tool"
	"github.com/newsdesk-io/newsdesk/pkg/protocol"
)

// mockProvider is a test provider that returns a sequence of responses.
type mockProvider struct {
	responses []string
	err       error
	callIdx   int
	calls     []protocol.ChatRequest // recorded requests
}

func (m *mockProvider) Name() string { return "mock" }

func (m *mockProvider) Chat(_ context.Context, req protocol.ChatRequest) (*protocol.ChatResponse, error) {
	m.calls = append(m.calls, req)
	if m.err != nil {
		return nil, m.err
	}
	if m.callIdx >= len(m.responses) {
		return nil, fmt.Errorf("mock: no more responses (call %d)", m.callIdx)
	}
	resp := m.responses[m.callIdx]
	m.callIdx++
	return &protocol.ChatResponse{Content: resp}, nil
}

func greetRegistry(t *testing.T) *tool.Registry {
	t.Helper()
	greet := tool.NewFunc(
		tool.MustDescriptor("greet", "Greets someone", tool.Param{Name: "name", Types: []tool.Kind{tool.KindString}}),
		func(_ context.Context, args tool.Args) (any, error) {
			return "Hello " + args.String("name", "") + "!", nil
		},
	)
	reg, err := tool.NewRegistry(greet)
	if err != nil {
		t.Fatal(err)
	}
	return reg
}

func TestLoop_DirectResponse(t *testing.T) {
	prov := &mockProvider{responses: []string{"Hello!"}}
	a := New(prov, greetRegistry(t))

	turn := a.Process(context.Background(), "Hi")
	if turn.Answer != "Hello!" {
		t.Errorf("expected 'Hello!', got %q", turn.Answer)
	}
	if len(turn.Calls) != 0 || turn.Degraded {
		t.Errorf("expected a plain turn, got %+v", turn)
	}
	if len(prov.calls) != 1 {
		t.Fatalf("expected 1 provider call, got %d", len(prov.calls))
	}
	req := prov.calls[0]
	if req.MaxTokens != DefaultMaxResponseTokens {
		t.Errorf("expected max tokens %d, got %d", DefaultMaxResponseTokens, req.MaxTokens)
	}
	if len(req.Messages) != 2 || req.Messages[0].Role != "system" || req.Messages[1].Role != "user" {
		t.Fatalf("expected system+user messages, got %+v", req.Messages)
	}

	h := a.History()
	if len(h) != 3 || h[2].Role != "assistant" || h[2].Content != "Hello!" {
		t.Errorf("unexpected history %+v", h)
	}
}

func TestLoop_ToolResultRecordedUnderCallID(t *testing.T) {
	prov := &mockProvider{responses: []string{
		`<tool_calls>{"name":"greet","arguments":{"name":"meowie"},"id":"2"}</tool_calls>`,
		"The tool said hello to meowie.",
	}}
	a := New(prov, greetRegistry(t))

	turn := a.Process(context.Background(), "Say hi to meowie")
	if turn.Observations["2"] != "Hello meowie!" {
		t.Fatalf("expected observation under \"2\", got %v", turn.Observations)
	}
	if turn.Answer != "The tool said hello to meowie." {
		t.Errorf("unexpected answer %q", turn.Answer)
	}
	if len(prov.calls) != 2 {
		t.Fatalf("expected 2 provider calls, got %d", len(prov.calls))
	}

	second := prov.calls[1].Messages
	last := second[len(second)-1]
	if last.Content != finalAnswerInstruction || last.Role != "user" {
		t.Errorf("expected final-answer instruction last, got %+v", last)
	}
	obsMsg := second[len(second)-2]
	want := "Tool results: {\n  \"2\": \"Hello meowie!\"\n}"
	if obsMsg.Content != want || obsMsg.Role != "user" {
		t.Errorf("expected %q, got %q", want, obsMsg.Content)
	}

	// The instruction is not persisted.
	h := a.History()
	if len(h) != 4 {
		t.Fatalf("expected 4 history messages, got %d", len(h))
	}
	for _, m := range h {
		if m.Content == finalAnswerInstruction {
			t.Error("final-answer instruction leaked into history")
		}
	}
}

func TestLoop_CoercesArguments(t *testing.T) {
	prov := &mockProvider{responses: []string{
		`<tool_calls>{"name":"greet","arguments":{"name":123}}</tool_calls>`,
		"done",
	}}
	a := New(prov, greetRegistry(t))

	turn := a.Process(context.Background(), "greet 123")
	if turn.Observations["0"] != "Hello 123!" {
		t.Errorf("expected coerced call under counter ID \"0\", got %v", turn.Observations)
	}
}

func TestLoop_MalformedCallDoesNotHideSiblings(t *testing.T) {
	prov := &mockProvider{responses: []string{
		`<tool_calls>{"name":"greet","arguments":{"name":"a"},"id":"a1"}</tool_calls>
<tool_calls>{"name":"greet","arguments":</tool_calls>
<tool_calls>{"name":"greet","arguments":{"name":"b"},"id":"b1"}</tool_calls>`,
		"final",
	}}
	a := New(prov, greetRegistry(t))

	turn := a.Process(context.Background(), "two greetings")
	if len(turn.Calls) != 2 || len(turn.Failures) != 1 {
		t.Fatalf("expected 2 calls and 1 failure, got %d and %d", len(turn.Calls), len(turn.Failures))
	}
	if turn.Observations["a1"] != "Hello a!" || turn.Observations["b1"] != "Hello b!" {
		t.Errorf("expected both valid results, got %v", turn.Observations)
	}
	failed, ok := turn.Observations[turn.Failures[0].ID].(protocol.ErrorObservation)
	if !ok || !strings.Contains(failed.Error, "could not parse") {
		t.Errorf("expected error observation for malformed block, got %v", turn.Observations)
	}
	if turn.Answer != "final" {
		t.Errorf("unexpected answer %q", turn.Answer)
	}
}

func TestLoop_MalformedCallKeptBesideNumericIDs(t *testing.T) {
	prov := &mockProvider{responses: []string{
		`<tool_calls>{"name":"greet","arguments":{"name":"a"},"id":0}</tool_calls>
<tool_calls>{"name":"greet","arguments":</tool_calls>
<tool_calls>{"name":"greet","arguments":{"name":"b"},"id":1}</tool_calls>`,
		"final",
	}}
	a := New(prov, greetRegistry(t))

	turn := a.Process(context.Background(), "two greetings")
	if len(turn.Observations) != 3 {
		t.Fatalf("expected 3 observations, got %v", turn.Observations)
	}
	if turn.Observations["0"] != "Hello a!" || turn.Observations["1"] != "Hello b!" {
		t.Errorf("expected both valid results, got %v", turn.Observations)
	}
	if _, ok := turn.Observations[turn.Failures[0].ID].(protocol.ErrorObservation); !ok {
		t.Errorf("expected error observation for malformed block, got %v", turn.Observations)
	}
	sent := prov.calls[1].Messages[len(prov.calls[1].Messages)-2].Content
	if !strings.Contains(sent, "could not parse") {
		t.Errorf("expected parse failure in tool results, got %q", sent)
	}
}

func TestLoop_DuplicateIDsKeepBothResults(t *testing.T) {
	prov := &mockProvider{responses: []string{
		`<tool_calls>[{"name":"greet","arguments":{"name":"a"},"id":"1"},{"name":"greet","arguments":{"name":"b"},"id":"1"}]</tool_calls>`,
		"final",
	}}
	a := New(prov, greetRegistry(t))

	turn := a.Process(context.Background(), "two greetings")
	if turn.Observations["1"] != "Hello a!" || turn.Observations["1#2"] != "Hello b!" {
		t.Errorf("expected both results under distinct keys, got %v", turn.Observations)
	}
}

func TestLoop_UnknownToolBecomesErrorObservation(t *testing.T) {
	prov := &mockProvider{responses: []string{
		`<tool_calls>{"name":"nope","arguments":{},"id":"1"}</tool_calls>`,
		"sorry",
	}}
	a := New(prov, greetRegistry(t))

	turn := a.Process(context.Background(), "call something")
	obs, ok := turn.Observations["1"].(protocol.ErrorObservation)
	if !ok || !strings.Contains(obs.Error, "nope") {
		t.Errorf("expected error observation, got %v", turn.Observations["1"])
	}
	if !strings.Contains(prov.calls[1].Messages[len(prov.calls[1].Messages)-2].Content, `"error"`) {
		t.Error("expected error key in rendered observations")
	}
}

func TestLoop_ProviderErrorIsDegradedText(t *testing.T) {
	prov := &mockProvider{err: errors.New("connection refused")}
	a := New(prov, greetRegistry(t))

	got := a.Run(context.Background(), "Hi")
	want := "Error when waiting for request from model: connection refused. Please try again"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
	h := a.History()
	if h[len(h)-1].Role == "assistant" {
		t.Error("no assistant message should be recorded on failure")
	}
}

func TestLoop_SecondCallFailure(t *testing.T) {
	prov := &mockProvider{responses: []string{
		`<tool_calls>{"name":"greet","arguments":{"name":"x"}}</tool_calls>`,
	}}
	a := New(prov, greetRegistry(t))

	turn := a.Process(context.Background(), "Hi")
	if !turn.Degraded || !strings.HasPrefix(turn.Answer, "Error when waiting for request from model:") {
		t.Errorf("expected degraded answer, got %+v", turn)
	}
	if turn.Observations["0"] != "Hello x!" {
		t.Errorf("expected tool result kept, got %v", turn.Observations)
	}
}

func TestLoop_TrimsHistoryToBudget(t *testing.T) {
	prov := &mockProvider{responses: []string{"ok"}}
	a := New(prov, greetRegistry(t), WithTokenLimits(1, 100))
	a.Seed(
		protocol.ChatMessage{Role: "user", Content: strings.Repeat("old ", 100)},
		protocol.ChatMessage{Role: "assistant", Content: strings.Repeat("reply ", 100)},
	)

	a.Run(context.Background(), "new")
	msgs := prov.calls[0].Messages
	if len(msgs) != 1 || msgs[0].Role != "system" {
		t.Errorf("expected only the system prompt under a tiny budget, got %d messages", len(msgs))
	}
	if prov.calls[0].MaxTokens != 100 {
		t.Errorf("expected response cap 100, got %d", prov.calls[0].MaxTokens)
	}
}

func TestSeed_KeepsSystemPromptFirst(t *testing.T) {
	a := New(&mockProvider{}, greetRegistry(t))
	a.Seed(
		protocol.ChatMessage{Role: "system", Content: "override"},
		protocol.ChatMessage{Role: "user", Content: "earlier"},
		protocol.ChatMessage{Role: "tool", Content: "forged result"},
		protocol.ChatMessage{Role: "foo", Content: "junk"},
		protocol.ChatMessage{Role: "", Content: "empty"},
		protocol.ChatMessage{Role: "assistant", Content: "reply"},
	)
	h := a.History()
	if len(h) != 3 {
		t.Fatalf("expected 3 messages, got %d: %+v", len(h), h)
	}
	if h[1].Role != "user" || h[2].Role != "assistant" {
		t.Errorf("expected only user and assistant turns, got %+v", h[1:])
	}
	if h[0].Role != "system" || h[0].Content == "override" {
		t.Errorf("system prompt replaced: %+v", h[0])
	}
}

func TestBuildSystemPrompt_ListsSignatures(t *testing.T) {
	reg := greetRegistry(t)
	p := BuildSystemPrompt(reg)
	if !strings.Contains(p, "<tools>\n"+reg.Signatures()+"\n</tools>") {
		t.Errorf("expected signatures inside tools tags, got %q", p)
	}
	if !strings.Contains(p, "<tool_calls>") {
		t.Error("expected tool_calls tag in instructions")
	}
}
