// Package llm implements the resilient streaming completion client: it
// normalizes a multi-turn conversation into alternating user/assistant
// turns, issues a single streaming request against a provider, forwards
// fragments to a sink as they arrive, and retries the one failure mode
// where a stream ends without a valid final message. Rate-limit cooldown
// advice is derived separately from provider response headers.
package llm

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/sixtyoneeighty/gpt-pilot/internal/observability"
)

// defaultRetryDelay is the flat wait between attempts. It deliberately
// does not grow with the attempt count.
const defaultRetryDelay = 1 * time.Second

// ClientConfig configures the retry behavior of a Client.
type ClientConfig struct {
	// MaxRetries is the number of extra attempts after the first one.
	// Only incomplete-stream failures are retried.
	MaxRetries int
	// RetryDelay is the flat inter-attempt delay. Defaults to 1s.
	RetryDelay time.Duration
}

// DefaultClientConfig retries once with the flat default delay.
var DefaultClientConfig = ClientConfig{
	MaxRetries: 1,
	RetryDelay: defaultRetryDelay,
}

// Client wraps a streaming executor with bounded retry. Independent
// Complete calls share no mutable state and may run fully in parallel;
// the inter-attempt wait suspends only the calling request.
type Client struct {
	executor   *Executor
	maxRetries int
	retryDelay time.Duration
}

// NewClient creates a client over the given transport. The sink may be
// nil when the caller only wants the final result.
func NewClient(opener StreamOpener, sink Sink, cfg ClientConfig) *Client {
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = defaultRetryDelay
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}

	return &Client{
		executor:   NewExecutor(opener, sink),
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
	}
}

// Complete runs the conversation to completion, retrying incomplete
// streams up to the configured bound. Every attempt re-normalizes the
// conversation and replays the stream from scratch, so the sink may see
// fragments of a failed attempt again (see Sink). Any failure other
// than an incomplete stream propagates on first occurrence.
func (c *Client) Complete(ctx context.Context, convo *Convo, opts RequestOptions) (*CompletionResult, error) {
	if convo == nil {
		return nil, errors.New("conversation cannot be nil")
	}

	logger := observability.FromContext(ctx)

	attempts := c.maxRetries + 1
	var lastIncomplete *IncompleteStreamError

	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			logger.Warn("incomplete stream, retrying",
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", attempts),
			)
			select {
			case <-time.After(c.retryDelay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		result, err := c.executor.Execute(ctx, convo.Messages, opts)
		if err == nil {
			return result, nil
		}

		var incomplete *IncompleteStreamError
		if !errors.As(err, &incomplete) {
			return nil, err
		}
		lastIncomplete = incomplete
	}

	logger.Error("stream never completed", zap.Int("attempts", attempts))

	return nil, &IncompleteStreamError{
		Attempts: attempts,
		Cause:    lastIncomplete.Cause,
	}
}
