package builtin

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/newsdesk-io/newsdesk/internal/tool"
	"github.com/newsdesk-io/newsdesk/pkg/protocol"
)

func TestNewsSearch_Success(t *testing.T) {
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Write([]byte(`{"status":"ok","totalResults":2,"articles":[
			{"title":"Go 1.24 released","description":"New stuff","url":"https://go.dev/blog","source":{"name":"Go"}},
			{"title":"","description":"","url":"https://example.com"}
		]}`))
	}))
	defer server.Close()

	n := NewNewsSearch(server.URL, "secret")
	n.Now = func() time.Time { return time.Date(2024, 5, 2, 10, 0, 0, 0, time.UTC) }

	res, err := n.Invoke(context.Background(), tool.Args{"q": "golang", "searchIn": []any{"title", "content"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := res.(string)
	if !strings.HasPrefix(out, "Here are the latest news articles for the query golang:\n\n1. **Go 1.24 released**") {
		t.Errorf("unexpected output: %q", out)
	}
	if !strings.Contains(out, "2. **No Title**\n   No Description\n   https://example.com") {
		t.Errorf("expected defaults for empty fields, got %q", out)
	}
	for _, want := range []string{"apiKey=secret", "searchIn=title%2Ccontent", "language=en", "sortBy=publishedAt",
		"dateFrom=2024-05-01T10%3A00%3A00Z", "dateTo=2024-05-02T10%3A00%3A00Z"} {
		if !strings.Contains(gotQuery, want) {
			t.Errorf("expected %q in query %q", want, gotQuery)
		}
	}
}

func TestNewsSearch_NoArticles(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"ok","totalResults":0,"articles":[]}`))
	}))
	defer server.Close()

	res, err := NewNewsSearch(server.URL, "k").Invoke(context.Background(), tool.Args{"q": "nothing"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res != "There was no articles found for the query nothing. Please try again" {
		t.Errorf("unexpected output: %q", res)
	}
}

func TestNewsSearch_TransportErrorIsText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer server.Close()

	res, err := NewNewsSearch(server.URL, "k").Invoke(context.Background(), tool.Args{"q": "x"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(res.(string), "Error when using tool news_search:") {
		t.Errorf("unexpected output: %q", res)
	}
}

func TestNewsSearch_ThroughRegistryRejectsBadLanguage(t *testing.T) {
	reg, err := tool.NewRegistry(NewNewsSearch("http://unused.invalid", ""))
	if err != nil {
		t.Fatal(err)
	}
	_, err = reg.Execute(context.Background(), protocol.ToolCall{
		Name: "news_search", Arguments: map[string]any{"q": "x", "language": "klingon"},
	})
	if !tool.IsClientError(err) {
		t.Fatalf("expected client error, got %v", err)
	}
}

func TestWebFetch_HTML(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(`<!DOCTYPE html>
<html><head><title>Test Page</title></head>
<body><article><h1>Hello World</h1><p>This is a test article with some content.</p></article></body>
</html>`))
	}))
	defer server.Close()

	res, err := (&WebFetch{}).Invoke(context.Background(), tool.Args{"url": server.URL})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := res.(string)
	if !strings.Contains(out, "Test Page") {
		t.Errorf("expected title in output, got %q", out)
	}
	if !strings.Contains(out, "Words:") {
		t.Errorf("expected word count in output, got %q", out)
	}
}

func TestWebFetch_PlainText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("plain text content"))
	}))
	defer server.Close()

	res, err := (&WebFetch{}).Invoke(context.Background(), tool.Args{"url": server.URL})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res != "plain text content" {
		t.Errorf("expected 'plain text content', got %q", res)
	}
}

func TestWebFetch_InvalidURL(t *testing.T) {
	_, err := (&WebFetch{}).Invoke(context.Background(), tool.Args{"url": "not a url"})
	if !tool.IsClientError(err) {
		t.Fatalf("expected client error, got %v", err)
	}
}

func TestWebFetch_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err := (&WebFetch{}).Invoke(context.Background(), tool.Args{"url": server.URL})
	if err == nil {
		t.Fatal("expected error for 404")
	}
	if !strings.Contains(err.Error(), "404") {
		t.Errorf("expected 404 in error, got %q", err.Error())
	}
}
