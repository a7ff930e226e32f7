// Package openai provides a streaming transport for the OpenAI API
// using the official SDK. It implements the llm.Provider interface and
// converts SDK stream chunks into the fragment stream and finalization
// record the llm client consumes.
package openai

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/ssestream"
	"github.com/openai/openai-go/shared"
	"go.uber.org/zap"

	"github.com/sixtyoneeighty/gpt-pilot/internal/llm"
	"github.com/sixtyoneeighty/gpt-pilot/internal/observability"
)

const providerName = "openai"

// Provider implements llm.Provider for OpenAI.
type Provider struct {
	client openai.Client
	models []string
}

// NewProvider creates a new OpenAI provider.
func NewProvider(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("OpenAI API key is required")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(time.Duration(cfg.Timeout)*time.Second))
	}

	return &Provider{
		client: openai.NewClient(opts...),
		models: cfg.Models,
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

// OpenStream issues one streaming chat completion request. Usage is
// requested on the final chunk so the finalization record carries real
// token counts.
func (p *Provider) OpenStream(ctx context.Context, turns []llm.Turn, opts llm.RequestOptions) (llm.Stream, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, len(turns))
	for i, turn := range turns {
		if turn.Role == llm.RoleAssistant {
			messages[i] = openai.AssistantMessage(turn.Content)
			continue
		}
		messages[i] = openai.UserMessage(turn.Content)
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(opts.Model),
		Messages: messages,
		StreamOptions: openai.ChatCompletionStreamOptionsParam{
			IncludeUsage: openai.Bool(true),
		},
	}
	if opts.MaxOutputTokens > 0 {
		params.MaxTokens = openai.Int(int64(opts.MaxOutputTokens))
	}
	if opts.Temperature != nil {
		params.Temperature = openai.Float(*opts.Temperature)
	}
	if opts.JSONMode {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}

	observability.FromContext(ctx).Debug("calling OpenAI streaming API",
		zap.String("model", opts.Model),
		zap.Int("messages", len(messages)),
	)

	return &stream{inner: p.client.Chat.Completions.NewStreaming(ctx, params)}, nil
}

// stream adapts the SDK chunk iterator to llm.Stream. With IncludeUsage
// the usage arrives on a trailing chunk after the finish reason, so the
// finalization record is only complete once both were seen.
type stream struct {
	inner *ssestream.Stream[openai.ChatCompletionChunk]

	current  string
	text     strings.Builder
	usage    llm.Usage
	sawUsage bool
	finished bool
}

func (s *stream) Next() bool {
	for s.inner.Next() {
		chunk := s.inner.Current()

		if chunk.Usage.TotalTokens > 0 {
			s.usage = llm.Usage{
				InputTokens:  int(chunk.Usage.PromptTokens),
				OutputTokens: int(chunk.Usage.CompletionTokens),
			}
			s.sawUsage = true
		}

		if len(chunk.Choices) == 0 {
			continue
		}
		if chunk.Choices[0].FinishReason != "" {
			s.finished = true
		}
		if delta := chunk.Choices[0].Delta.Content; delta != "" {
			s.current = delta
			s.text.WriteString(delta)
			return true
		}
	}
	return false
}

func (s *stream) Current() string {
	return s.current
}

func (s *stream) Err() error {
	if err := s.inner.Err(); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (s *stream) Final() (*llm.FinalMessage, error) {
	if !s.finished || !s.sawUsage {
		return nil, nil
	}
	return &llm.FinalMessage{
		Content: []llm.ContentBlock{{Type: "text", Text: s.text.String()}},
		Usage:   s.usage,
	}, nil
}

func (s *stream) Close() error {
	return s.inner.Close()
}
