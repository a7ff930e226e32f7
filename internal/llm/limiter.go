package llm

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// LimiterConfig configures the client-side token-bucket limiter.
type LimiterConfig struct {
	// RequestsPerMinute is the sustained request rate.
	RequestsPerMinute float64
	// Burst is the maximum burst size above the sustained rate.
	Burst int
}

// DefaultLimiterConfig returns sensible defaults.
var DefaultLimiterConfig = LimiterConfig{
	RequestsPerMinute: 60,
	Burst:             10,
}

// LimitedOpener wraps a StreamOpener with token-bucket rate limiting.
// It throttles proactively; reactive cooldown advice after a provider
// 429 is handled separately via Cooldown.
type LimitedOpener struct {
	inner   StreamOpener
	limiter *rate.Limiter
}

// NewLimitedOpener wraps inner with rate limiting using cfg.
func NewLimitedOpener(inner StreamOpener, cfg LimiterConfig) (*LimitedOpener, error) {
	if cfg.RequestsPerMinute <= 0 {
		return nil, fmt.Errorf("rate limiter: RequestsPerMinute must be > 0")
	}
	if cfg.Burst <= 0 {
		return nil, fmt.Errorf("rate limiter: Burst must be > 0")
	}

	perSecond := rate.Limit(cfg.RequestsPerMinute / 60.0)

	return &LimitedOpener{
		inner:   inner,
		limiter: rate.NewLimiter(perSecond, cfg.Burst),
	}, nil
}

// OpenStream waits for a rate limit token then opens the stream.
func (l *LimitedOpener) OpenStream(ctx context.Context, turns []Turn, opts RequestOptions) (Stream, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait: %w", err)
	}
	return l.inner.OpenStream(ctx, turns, opts)
}
