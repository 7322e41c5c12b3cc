package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/newsdesk-io/newsdesk/pkg/protocol"
)

func TestAnthropicChat_TextResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "test-key" {
			t.Error("missing x-api-key header")
		}
		if r.Header.Get("anthropic-version") != anthropicAPIVersion {
			t.Error("missing anthropic-version header")
		}

		var req anthropicRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Model != "claude-sonnet-4-20250514" {
			t.Errorf("expected default model, got %s", req.Model)
		}
		if req.MaxTokens != 4096 {
			t.Errorf("expected default max_tokens 4096, got %d", req.MaxTokens)
		}

		resp := anthropicResponse{
			Content: []textBlock{{Type: "text", Text: "Hello"}, {Type: "text", Text: "!"}},
			Usage:   anthropicUsage{InputTokens: 10, OutputTokens: 5},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	p := NewAnthropic("test-key", WithAnthropicBaseURL(srv.URL))

	got, err := p.Chat(context.Background(), protocol.ChatRequest{
		Messages: []protocol.ChatMessage{{Role: "user", Content: "Hi"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Content != "Hello!" {
		t.Errorf("expected content 'Hello!', got %q", got.Content)
	}
	if got.Usage.PromptTokens != 10 || got.Usage.CompletionTokens != 5 {
		t.Errorf("unexpected usage %+v", got.Usage)
	}
}

func TestAnthropicChat_SystemPrompt(t *testing.T) {
	var capturedReq anthropicRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&capturedReq)
		json.NewEncoder(w).Encode(anthropicResponse{Content: []textBlock{{Type: "text", Text: "OK"}}})
	}))
	defer srv.Close()

	p := NewAnthropic("test-key", WithAnthropicBaseURL(srv.URL))

	_, err := p.Chat(context.Background(), protocol.ChatRequest{
		Messages: []protocol.ChatMessage{
			{Role: "system", Content: "You are a helpful assistant."},
			{Role: "user", Content: "Hi"},
		},
		MaxTokens: 100,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if capturedReq.System != "You are a helpful assistant." {
		t.Errorf("system = %q", capturedReq.System)
	}
	if len(capturedReq.Messages) != 1 {
		t.Fatalf("expected 1 message (system extracted), got %d", len(capturedReq.Messages))
	}
	if capturedReq.MaxTokens != 100 {
		t.Errorf("expected max_tokens 100, got %d", capturedReq.MaxTokens)
	}
}

func TestToAnthropicMessages_MergesConsecutiveRoles(t *testing.T) {
	system, msgs := toAnthropicMessages([]protocol.ChatMessage{
		{Role: "system", Content: "sys"},
		{Role: "user", Content: "question"},
		{Role: "assistant", Content: "<tool_calls>...</tool_calls>"},
		{Role: "user", Content: "Tool results: {}"},
		{Role: "user", Content: "now answer"},
	})
	if system != "sys" {
		t.Errorf("system = %q", system)
	}
	if len(msgs) != 3 {
		t.Fatalf("expected 3 merged messages, got %d", len(msgs))
	}
	if msgs[2].Role != "user" || len(msgs[2].Content) != 2 {
		t.Errorf("expected last user turn with 2 blocks, got %+v", msgs[2])
	}
}

func TestAnthropicChat_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"type":"invalid_request_error","message":"bad"}}`))
	}))
	defer srv.Close()

	_, err := NewAnthropic("k", WithAnthropicBaseURL(srv.URL)).Chat(context.Background(), protocol.ChatRequest{
		Messages: []protocol.ChatMessage{{Role: "user", Content: "Hi"}},
	})
	if err == nil {
		t.Fatal("expected error for 400 status")
	}
	var se *StatusError
	if !errors.As(err, &se) || se.Temporary() {
		t.Errorf("expected non-temporary *StatusError, got %v", err)
	}
}
