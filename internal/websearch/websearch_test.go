package websearch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestSearch_SendsPayload(t *testing.T) {
	var got searchRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.Header.Get("Authorization") != "key-123" {
			t.Errorf("expected raw key in Authorization, got %q", r.Header.Get("Authorization"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		w.Write([]byte(`{"data":{"webPages":{"value":[]}}}`))
	}))
	defer srv.Close()

	body, err := New(srv.URL, "key-123").Search(context.Background(), "go news", "oneDay")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if body != `{"data":{"webPages":{"value":[]}}}` {
		t.Errorf("expected raw body, got %q", body)
	}
	if got.Query != "go news" || got.Freshness != "oneDay" || !got.Summary || got.Count != 10 {
		t.Errorf("unexpected payload %+v", got)
	}
}

func TestSearch_DefaultsFreshness(t *testing.T) {
	var got searchRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
	}))
	defer srv.Close()

	if _, err := New(srv.URL, "k").Search(context.Background(), "x", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Freshness != "noLimit" {
		t.Errorf("expected noLimit, got %q", got.Freshness)
	}
}

func TestSearch_ClientErrorBodyIsReturned(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"code":401,"msg":"bad key"}`))
	}))
	defer srv.Close()

	body, err := New(srv.URL, "bad").Search(context.Background(), "x", "noLimit")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if body != `{"code":401,"msg":"bad key"}` {
		t.Errorf("unexpected body %q", body)
	}
}

func TestSearch_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	if _, err := New(srv.URL, "k").Search(context.Background(), "x", "noLimit"); err == nil {
		t.Fatal("expected error for 502")
	}
}

func TestSearch_RateLimitHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	c := New(srv.URL, "k", WithRateLimit(0.001, 1))
	if _, err := c.Search(context.Background(), "x", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := c.Search(ctx, "y", ""); err == nil {
		t.Fatal("expected rate limit error")
	}
}
