package builtin

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/newsdesk-io/newsdesk/internal/tool"
	"github.com/newsdesk-io/newsdesk/pkg/protocol"
)

type fakeRetriever struct {
	passages []string
	err      error
	gotTopN  int
}

func (f *fakeRetriever) Retrieve(_ context.Context, _ string, topN int) ([]string, error) {
	f.gotTopN = topN
	if f.err != nil {
		return nil, f.err
	}
	if topN < len(f.passages) {
		return f.passages[:topN], nil
	}
	return f.passages, nil
}

func TestKnowledgeSearch(t *testing.T) {
	r := &fakeRetriever{passages: []string{"rates rose", "rates fell", "rates held"}}
	reg, err := tool.NewRegistry(&KnowledgeSearch{Retriever: r})
	if err != nil {
		t.Fatal(err)
	}

	out, err := reg.Execute(context.Background(), protocol.ToolCall{
		Name: "knowledge_search", Arguments: map[string]any{"query": "rates", "topN": "2"},
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if r.gotTopN != 2 {
		t.Errorf("expected topN 2, got %d", r.gotTopN)
	}
	text := out.(string)
	if !strings.Contains(text, "[1] rates rose") || !strings.Contains(text, "[2] rates fell") {
		t.Errorf("unexpected output %q", text)
	}
	if strings.Contains(text, "rates held") {
		t.Errorf("expected only 2 passages, got %q", text)
	}
}

func TestKnowledgeSearch_DefaultTopN(t *testing.T) {
	r := &fakeRetriever{}
	k := &KnowledgeSearch{Retriever: r}

	out, err := k.Invoke(context.Background(), tool.Args{"query": "anything"})
	if err != nil {
		t.Fatal(err)
	}
	if r.gotTopN != defaultKnowledgeTopN {
		t.Errorf("expected default topN, got %d", r.gotTopN)
	}
	if !strings.Contains(out.(string), "No local documents") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestKnowledgeSearch_Errors(t *testing.T) {
	k := &KnowledgeSearch{Retriever: &fakeRetriever{err: errors.New("db closed")}}

	if _, err := k.Invoke(context.Background(), tool.Args{"query": "  "}); !tool.IsClientError(err) {
		t.Errorf("expected client error for empty query, got %v", err)
	}
	if _, err := k.Invoke(context.Background(), tool.Args{"query": "x", "topN": 0}); !tool.IsClientError(err) {
		t.Errorf("expected client error for zero topN, got %v", err)
	}
	if _, err := k.Invoke(context.Background(), tool.Args{"query": "x"}); err == nil || tool.IsClientError(err) {
		t.Errorf("expected plain retriever error, got %v", err)
	}
}
