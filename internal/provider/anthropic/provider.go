// Package anthropic implements the streaming transport boundary against
// the Anthropic Messages API as exposed by Amazon Bedrock. It speaks the
// SSE wire protocol directly and converts message events into the
// fragment stream and finalization record the llm client consumes.
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sixtyoneeighty/gpt-pilot/internal/llm"
	"github.com/sixtyoneeighty/gpt-pilot/internal/observability"
)

const (
	providerName    = "bedrock"
	contentTypeJSON = "application/json"
	// Bedrock serves the Anthropic API under its own version tag.
	apiVersion = "bedrock-2023-05-31"
)

// Provider implements llm.Provider over the Bedrock Messages endpoint.
type Provider struct {
	apiKey   string
	endpoint string
	models   []string
	client   *http.Client
}

// NewProvider creates a new Bedrock provider.
func NewProvider(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("Anthropic API key is required")
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		return nil, errors.New("Anthropic base URL is required")
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout: time.Duration(cfg.ConnectTimeout) * time.Second,
		}).DialContext,
		ResponseHeaderTimeout: time.Duration(cfg.ReadTimeout) * time.Second,
	}

	return &Provider{
		apiKey:   cfg.APIKey,
		endpoint: baseURL + "/v1/messages",
		models:   cfg.Models,
		// No overall client timeout: the streaming body stays open
		// for the full generation.
		client: &http.Client{Transport: transport},
	}, nil
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return providerName
}

// Models returns the model identifiers this provider serves.
func (p *Provider) Models() []string {
	models := make([]string, len(p.models))
	copy(models, p.models)
	return models
}

type messagePayload struct {
	Model          string          `json:"model"`
	Messages       []wireMessage   `json:"messages"`
	MaxTokens      int             `json:"max_tokens"`
	Temperature    *float64        `json:"temperature,omitempty"`
	Stream         bool            `json:"stream"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

// OpenStream issues one streaming messages request. Error responses are
// returned as *APIError with the response headers attached, so callers
// observing a 429 can derive cooldown advice from them.
func (p *Provider) OpenStream(ctx context.Context, turns []llm.Turn, opts llm.RequestOptions) (llm.Stream, error) {
	payload := messagePayload{
		Model:       opts.Model,
		Messages:    make([]wireMessage, 0, len(turns)),
		MaxTokens:   opts.MaxOutputTokens,
		Temperature: opts.Temperature,
		Stream:      true,
	}
	for _, turn := range turns {
		payload.Messages = append(payload.Messages, wireMessage{Role: turn.Role, Content: turn.Content})
	}
	if opts.JSONMode {
		payload.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("construct request: %w", err)
	}
	req.Header.Set("Content-Type", contentTypeJSON)
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("x-api-key", p.apiKey)
	req.Header.Set("anthropic-version", apiVersion)

	observability.FromContext(ctx).Debug("calling Bedrock messages API",
		zap.String("model", opts.Model),
		zap.Int("messages", len(payload.Messages)),
	)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("bedrock request failed: %w", err)
	}

	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		return nil, parseAPIError(resp)
	}

	return &stream{
		body:    resp.Body,
		decoder: newSSEDecoder(resp.Body),
	}, nil
}

// Wire events for the streaming messages protocol. Unknown event types
// (pings, content_block_start/stop) are skipped.
type streamEvent struct {
	Type    string `json:"type"`
	Message struct {
		Usage usageBlock `json:"usage"`
	} `json:"message"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
	Usage usageBlock `json:"usage"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

type usageBlock struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// stream adapts the SSE event sequence to llm.Stream. The finalization
// record only exists once a message_stop event was seen; a body that
// ends without one leaves Final() empty, which the executor classifies
// as an incomplete stream.
type stream struct {
	body    io.ReadCloser
	decoder *sseDecoder

	current string
	text    strings.Builder
	usage   llm.Usage
	final   *llm.FinalMessage
	err     error
}

func (s *stream) Next() bool {
	if s.err != nil || s.final != nil {
		return false
	}

	for {
		data, err := s.decoder.NextData()
		if err == io.EOF {
			return false
		}
		if err != nil {
			s.err = err
			return false
		}

		var ev streamEvent
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			continue
		}

		switch ev.Type {
		case "message_start":
			s.usage.InputTokens = ev.Message.Usage.InputTokens
		case "content_block_delta":
			if ev.Delta.Type == "text_delta" && ev.Delta.Text != "" {
				s.current = ev.Delta.Text
				s.text.WriteString(ev.Delta.Text)
				return true
			}
		case "message_delta":
			if ev.Usage.OutputTokens > 0 {
				s.usage.OutputTokens = ev.Usage.OutputTokens
			}
		case "message_stop":
			s.final = &llm.FinalMessage{
				Content: []llm.ContentBlock{{Type: "text", Text: s.text.String()}},
				Usage:   s.usage,
			}
			return false
		case "error":
			if ev.Error != nil {
				s.err = fmt.Errorf("bedrock stream error: %s: %s", ev.Error.Type, ev.Error.Message)
			} else {
				s.err = errors.New("bedrock stream error")
			}
			return false
		}
	}
}

func (s *stream) Current() string {
	return s.current
}

func (s *stream) Err() error {
	return s.err
}

func (s *stream) Final() (*llm.FinalMessage, error) {
	return s.final, nil
}

func (s *stream) Close() error {
	return s.body.Close()
}

// APIError is a non-2xx response from the messages endpoint. Headers are
// preserved so rate limit metadata survives to the caller.
type APIError struct {
	StatusCode int
	Type       string
	Message    string
	Headers    http.Header
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("bedrock API error (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("bedrock API error (status %d)", e.StatusCode)
}

// RateLimited reports whether the provider asked us to back off.
func (e *APIError) RateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

func parseAPIError(resp *http.Response) *APIError {
	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header.Clone(),
	}

	var body struct {
		Error struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil {
		apiErr.Type = body.Error.Type
		apiErr.Message = body.Error.Message
	}

	return apiErr
}
