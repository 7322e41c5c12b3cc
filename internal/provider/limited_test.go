package provider

import (
	"context"
	"testing"
	"time"

	"github.com/newsdesk-io/newsdesk/pkg/protocol"
)

type countingProvider struct{ calls int }

func (c *countingProvider) Name() string { return "counting" }

func (c *countingProvider) Chat(context.Context, protocol.ChatRequest) (*protocol.ChatResponse, error) {
	c.calls++
	return &protocol.ChatResponse{Content: "ok"}, nil
}

func TestLimited_PassesThrough(t *testing.T) {
	inner := &countingProvider{}
	p := NewLimited(inner, 0, 0)
	for i := 0; i < 5; i++ {
		if _, err := p.Chat(context.Background(), protocol.ChatRequest{}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if inner.calls != 5 {
		t.Errorf("expected 5 calls, got %d", inner.calls)
	}
	if p.Name() != "counting" {
		t.Errorf("expected wrapped name, got %q", p.Name())
	}
}

func TestLimited_HonoursContext(t *testing.T) {
	inner := &countingProvider{}
	p := NewLimited(inner, 0.001, 1)

	// The first call takes the only token.
	if _, err := p.Chat(context.Background(), protocol.ChatRequest{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := p.Chat(ctx, protocol.ChatRequest{}); err == nil {
		t.Fatal("expected rate limit error")
	}
	if inner.calls != 1 {
		t.Errorf("expected 1 call to reach the provider, got %d", inner.calls)
	}
}
