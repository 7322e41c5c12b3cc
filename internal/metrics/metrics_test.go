package metrics

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/newsdesk-io/newsdesk/internal/tool"
)

func stub(name string, err error) tool.Tool {
	return tool.NewFunc(tool.MustDescriptor(name, "stub"), func(context.Context, tool.Args) (any, error) {
		if err != nil {
			return nil, err
		}
		return "ok", nil
	})
}

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(w.Body)
	if err != nil {
		t.Fatal(err)
	}
	return string(body)
}

func assertSample(t *testing.T, out, sample string) {
	t.Helper()
	if !strings.Contains(out, sample) {
		t.Errorf("missing sample %s", sample)
	}
}

func TestTools_CountsByOutcome(t *testing.T) {
	m := New()
	mw := m.Tools()

	ctx := context.Background()
	mw(stub("ok", nil)).Invoke(ctx, nil)
	mw(stub("ok", nil)).Invoke(ctx, nil)
	mw(stub("bad", &tool.ClientError{Reason: "nope", Err: tool.ErrValidation})).Invoke(ctx, nil)
	mw(stub("boom", errors.New("disk"))).Invoke(ctx, nil)

	out := scrape(t, m)
	assertSample(t, out, `newsdesk_tool_calls_total{status="success",tool="ok"} 2`)
	assertSample(t, out, `newsdesk_tool_calls_total{status="client_error",tool="bad"} 1`)
	assertSample(t, out, `newsdesk_tool_calls_total{status="system_error",tool="boom"} 1`)
	assertSample(t, out, `newsdesk_tool_duration_seconds_count{tool="ok"} 2`)
}

func TestTools_KeepsDescriptorAndResult(t *testing.T) {
	m := New()
	wrapped := m.Tools()(stub("greet", nil))
	if wrapped.Descriptor().Name != "greet" {
		t.Errorf("name = %q", wrapped.Descriptor().Name)
	}
	res, err := wrapped.Invoke(context.Background(), nil)
	if err != nil || res != "ok" {
		t.Errorf("Invoke = %v, %v", res, err)
	}
}

func TestObserveRequestAndIngested(t *testing.T) {
	m := New()
	m.ObserveRequest("POST /query", 200, 150*time.Millisecond)
	m.ObserveRequest("POST /query", 400, time.Millisecond)
	m.AddIngested("webhook", 3)
	m.AddIngested("documents", 0)

	out := scrape(t, m)
	assertSample(t, out, `newsdesk_http_requests_total{code="200",route="POST /query"} 1`)
	assertSample(t, out, `newsdesk_http_requests_total{code="400",route="POST /query"} 1`)
	assertSample(t, out, `newsdesk_http_request_duration_seconds_count{route="POST /query"} 2`)
	assertSample(t, out, `newsdesk_ingested_chunks_total{source="webhook"} 3`)
	if strings.Contains(out, `source="documents"`) {
		t.Error("zero ingest should not create a series")
	}
	assertSample(t, out, "go_goroutines")
}
