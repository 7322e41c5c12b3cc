package builtin

import (
	"context"
	"fmt"
	"strings"

	"github.com/newsdesk-io/newsdesk/internal/tool"
)

const defaultKnowledgeTopN = 3

var knowledgeDescriptor = tool.MustDescriptor("knowledge_search",
	"Search the local document collection for passages relevant to a query.",
	tool.Param{Name: "query", Types: []tool.Kind{tool.KindString}, Description: "what to look for"},
	tool.Param{Name: "topN", Types: []tool.Kind{tool.KindInteger}, Optional: true,
		Description: "number of passages to return"},
)

// Retriever returns the passages most relevant to a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topN int) ([]string, error)
}

// KnowledgeSearch exposes a Retriever as a tool.
type KnowledgeSearch struct {
	Retriever Retriever
	TopN      int
}

func (k *KnowledgeSearch) Descriptor() tool.Descriptor { return knowledgeDescriptor }

func (k *KnowledgeSearch) Invoke(ctx context.Context, args tool.Args) (any, error) {
	query := strings.TrimSpace(args.String("query", ""))
	if query == "" {
		return nil, &tool.ClientError{Reason: "query must not be empty", Err: tool.ErrValidation}
	}
	topN := k.TopN
	if topN <= 0 {
		topN = defaultKnowledgeTopN
	}
	topN = args.Int("topN", topN)
	if topN <= 0 {
		return nil, &tool.ClientError{Reason: "topN must be positive", Err: tool.ErrValidation}
	}

	passages, err := k.Retriever.Retrieve(ctx, query, topN)
	if err != nil {
		return nil, fmt.Errorf("knowledge_search: %w", err)
	}
	if len(passages) == 0 {
		return fmt.Sprintf("No local documents matched %q.", query), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Local passages for %q:\n", query)
	for i, p := range passages {
		fmt.Fprintf(&sb, "\n[%d] %s\n", i+1, strings.TrimSpace(p))
	}
	return sb.String(), nil
}
