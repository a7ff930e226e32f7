package llm

import (
	"net/http"
	"strconv"
	"time"
)

// Rate limit headers returned by the Anthropic API. Amazon Bedrock may
// use different ones; this mirrors the Anthropic set until proven wrong.
const (
	headerTokensRemaining = "anthropic-ratelimit-tokens-remaining"
	headerTokensReset     = "anthropic-ratelimit-tokens-reset"
	headerRequestsReset   = "anthropic-ratelimit-requests-reset"
)

// fallbackCooldown is advised when a reset timestamp cannot be parsed.
const fallbackCooldown = 5 * time.Second

// Cooldown inspects the response headers of a rate-limited request and
// advises how long to wait before the next one. The second return value
// is false when the headers carry no rate limit information at all.
func Cooldown(headers http.Header) (time.Duration, bool) {
	return CooldownAt(headers, time.Now().UTC())
}

// CooldownAt is Cooldown evaluated against an explicit current time.
// When the token budget is exhausted the wait runs until the token
// reset; otherwise until the request-count reset. The result may be
// negative if the reset already passed; callers must clamp to zero.
func CooldownAt(headers http.Header, now time.Time) (time.Duration, bool) {
	remaining := headers.Get(headerTokensRemaining)
	if remaining == "" {
		return 0, false
	}

	resetHeader := headerRequestsReset
	if n, err := strconv.Atoi(remaining); err == nil && n == 0 {
		resetHeader = headerTokensReset
	}

	reset, err := time.Parse(time.RFC3339, headers.Get(resetHeader))
	if err != nil {
		return fallbackCooldown, true
	}

	return reset.Sub(now), true
}
