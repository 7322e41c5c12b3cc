package tool

import (
	"context"
	"log/slog"
	"time"
)

// Middleware wraps a Tool with cross-cutting behaviour.
type Middleware func(Tool) Tool

type callIDKey struct{}

// WithCallID attaches the model's call ID to ctx for middlewares to report.
func WithCallID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, callIDKey{}, id)
}

// CallID returns the call ID stored by WithCallID.
func CallID(ctx context.Context) string {
	id, _ := ctx.Value(callIDKey{}).(string)
	return id
}

// WithLogging logs every invocation with its duration and error.
func WithLogging(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next Tool) Tool {
		return &loggingTool{next: next, logger: logger}
	}
}

type loggingTool struct {
	next   Tool
	logger *slog.Logger
}

func (l *loggingTool) Descriptor() Descriptor { return l.next.Descriptor() }

func (l *loggingTool) Invoke(ctx context.Context, args Args) (any, error) {
	name := l.next.Descriptor().Name
	start := time.Now()
	res, err := l.next.Invoke(ctx, args)
	attrs := []any{"tool", name, "call_id", CallID(ctx), "duration", time.Since(start)}
	if err != nil {
		l.logger.Warn("tool failed", append(attrs, "error", err)...)
		return nil, err
	}
	l.logger.Info("tool done", attrs...)
	return res, nil
}

// WithTimeout bounds every invocation by d.
func WithTimeout(d time.Duration) Middleware {
	return func(next Tool) Tool {
		return &timeoutTool{next: next, d: d}
	}
}

type timeoutTool struct {
	next Tool
	d    time.Duration
}

func (t *timeoutTool) Descriptor() Descriptor { return t.next.Descriptor() }

func (t *timeoutTool) Invoke(ctx context.Context, args Args) (any, error) {
	if t.d <= 0 {
		return t.next.Invoke(ctx, args)
	}
	ctx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()
	return t.next.Invoke(ctx, args)
}
