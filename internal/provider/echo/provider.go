// Package echo provides a testing provider that streams back the input
// turns. It implements the llm.Provider interface without making
// external calls, producing deterministic fragments, usage counts and a
// finalization record for tests and development.
package echo

import (
	"context"
	"fmt"
	"strings"

	"github.com/sixtyoneeighty/gpt-pilot/internal/llm"
	"github.com/sixtyoneeighty/gpt-pilot/internal/observability"
)

const (
	providerName = "echo"
	modelName    = "echo4"
)

// Provider implements llm.Provider for echo testing.
type Provider struct {
	supportedModels map[string]bool
}

// NewProvider creates a new echo provider.
// No configuration is required as this provider operates entirely in-memory.
func NewProvider() *Provider {
	return &Provider{
		supportedModels: map[string]bool{
			modelName: true,
		},
	}
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return providerName
}

// Models returns the model identifiers this provider serves.
func (p *Provider) Models() []string {
	models := make([]string, 0, len(p.supportedModels))
	for model := range p.supportedModels {
		models = append(models, model)
	}
	return models
}

// OpenStream returns a scripted stream that replays the normalized turns
// word by word and finishes with word-count usage.
func (p *Provider) OpenStream(ctx context.Context, turns []llm.Turn, opts llm.RequestOptions) (llm.Stream, error) {
	if !p.supportedModels[opts.Model] {
		return nil, fmt.Errorf("model %s is not supported by echo provider", opts.Model)
	}

	observability.FromContext(ctx).Debug("streaming echo request")

	content := buildEchoContent(turns)
	words := strings.Fields(content)

	fragments := make([]string, 0, len(words))
	for i, word := range words {
		if i < len(words)-1 {
			word += " "
		}
		fragments = append(fragments, word)
	}

	return &stream{
		ctx:       ctx,
		fragments: fragments,
		usage: llm.Usage{
			InputTokens:  len(words),
			OutputTokens: len(words),
		},
	}, nil
}

// stream replays prepared fragments, honoring context cancellation.
type stream struct {
	ctx       context.Context
	fragments []string
	usage     llm.Usage
	pos       int
	current   string
	err       error
}

func (s *stream) Next() bool {
	if s.err != nil || s.pos >= len(s.fragments) {
		return false
	}
	if err := s.ctx.Err(); err != nil {
		s.err = err
		return false
	}
	s.current = s.fragments[s.pos]
	s.pos++
	return true
}

func (s *stream) Current() string {
	return s.current
}

func (s *stream) Err() error {
	return s.err
}

func (s *stream) Final() (*llm.FinalMessage, error) {
	return &llm.FinalMessage{
		Content: []llm.ContentBlock{{Type: "text", Text: strings.Join(s.fragments, "")}},
		Usage:   s.usage,
	}, nil
}

func (s *stream) Close() error {
	return nil
}

// buildEchoContent constructs the echo response from normalized turns.
func buildEchoContent(turns []llm.Turn) string {
	if len(turns) == 0 {
		return ""
	}

	var builder strings.Builder
	for _, turn := range turns {
		builder.WriteString(fmt.Sprintf("[%s]: %s\n", turn.Role, turn.Content))
	}
	return builder.String()
}
