// Package metrics exposes Prometheus collectors for API requests, tool
// invocations and document ingestion.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/newsdesk-io/newsdesk/internal/tool"
)

// Metrics owns a registry and the newsdesk collectors.
type Metrics struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	toolCalls       *prometheus.CounterVec
	toolDuration    *prometheus.HistogramVec
	ingested        *prometheus.CounterVec
}

// New creates the collectors on a fresh registry, together with the Go and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "newsdesk_http_requests_total",
				Help: "Total number of API requests",
			},
			[]string{"route", "code"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "newsdesk_http_request_duration_seconds",
				Help:    "API request duration in seconds",
				Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
			},
			[]string{"route"},
		),
		toolCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "newsdesk_tool_calls_total",
				Help: "Total number of tool invocations",
			},
			[]string{"tool", "status"}, // status: success|client_error|system_error
		),
		toolDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "newsdesk_tool_duration_seconds",
				Help:    "Tool invocation duration in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"tool"},
		),
		ingested: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "newsdesk_ingested_chunks_total",
				Help: "Total number of chunks written to the vector store",
			},
			[]string{"source"}, // source: documents|webhook
		),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests,
		m.requestDuration,
		m.toolCalls,
		m.toolDuration,
		m.ingested,
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRequest records one API request. route is the mux pattern, never
// the raw path.
func (m *Metrics) ObserveRequest(route string, code int, d time.Duration) {
	m.requests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	m.requestDuration.WithLabelValues(route).Observe(d.Seconds())
}

// AddIngested counts chunks stored from source.
func (m *Metrics) AddIngested(source string, n int) {
	if n > 0 {
		m.ingested.WithLabelValues(source).Add(float64(n))
	}
}

// Tools returns a tool middleware that counts invocations by outcome.
func (m *Metrics) Tools() tool.Middleware {
	return func(next tool.Tool) tool.Tool {
		return &meteredTool{next: next, m: m}
	}
}

type meteredTool struct {
	next tool.Tool
	m    *Metrics
}

func (t *meteredTool) Descriptor() tool.Descriptor { return t.next.Descriptor() }

func (t *meteredTool) Invoke(ctx context.Context, args tool.Args) (any, error) {
	name := t.next.Descriptor().Name
	start := time.Now()
	res, err := t.next.Invoke(ctx, args)
	t.m.toolDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())

	status := "success"
	switch {
	case err == nil:
	case tool.IsClientError(err):
		status = "client_error"
	default:
		status = "system_error"
	}
	t.m.toolCalls.WithLabelValues(name, status).Inc()
	return res, err
}
