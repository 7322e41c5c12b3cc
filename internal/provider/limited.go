package provider

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/newsdesk-io/newsdesk/pkg/protocol"
)

// Limited wraps a Provider with a token-bucket rate limit. Chat blocks
// until a token is available or ctx is done.
type Limited struct {
	next    Provider
	limiter *rate.Limiter
}

// NewLimited allows rps calls per second with the given burst. rps <= 0
// disables limiting.
func NewLimited(p Provider, rps float64, burst int) *Limited {
	if burst < 1 {
		burst = 1
	}
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}
	return &Limited{next: p, limiter: rate.NewLimiter(limit, burst)}
}

func (l *Limited) Name() string { return l.next.Name() }

func (l *Limited) Chat(ctx context.Context, req protocol.ChatRequest) (*protocol.ChatResponse, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%s: rate limit: %w", l.next.Name(), err)
	}
	return l.next.Chat(ctx, req)
}
