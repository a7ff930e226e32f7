package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/sixtyoneeighty/gpt-pilot/internal/observability"
)

// Output token caps. Sonnet-family models accept a larger completion
// budget; the override is a literal substring match on the model
// identifier, not a general capability table.
const (
	defaultMaxOutputTokens = 4096
	sonnetMaxOutputTokens  = 8192
)

// resolveMaxOutputTokens returns the output cap for a model identifier.
func resolveMaxOutputTokens(model string) int {
	if strings.Contains(model, "sonnet") {
		return sonnetMaxOutputTokens
	}
	return defaultMaxOutputTokens
}

// Executor performs a single streaming completion attempt. It holds no
// mutable state between calls; concurrent Execute calls for independent
// conversations are safe.
type Executor struct {
	opener StreamOpener
	sink   Sink
}

// NewExecutor creates an executor over the given transport. The sink may
// be nil, in which case fragments are only accumulated.
func NewExecutor(opener StreamOpener, sink Sink) *Executor {
	return &Executor{
		opener: opener,
		sink:   sink,
	}
}

// Execute normalizes the conversation, opens one stream and drains it.
// Each fragment is appended to the running accumulator and then pushed
// to the sink before the next fragment is pulled, so the sink observes
// fragments in order and naturally throttles the transport. A stream
// that ends without a well-formed final message yields
// *IncompleteStreamError; all other transport failures pass through.
func (e *Executor) Execute(ctx context.Context, messages []Message, opts RequestOptions) (*CompletionResult, error) {
	turns, err := AdaptMessages(messages)
	if err != nil {
		return nil, err
	}

	if opts.MaxOutputTokens == 0 {
		opts.MaxOutputTokens = resolveMaxOutputTokens(opts.Model)
	}

	logger := observability.FromContext(ctx)
	logger.Debug("opening completion stream",
		zap.String("model", opts.Model),
		zap.Int("turns", len(turns)),
		zap.Int("max_output_tokens", opts.MaxOutputTokens),
	)

	stream, err := e.opener.OpenStream(ctx, turns, opts)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	var text strings.Builder
	for stream.Next() {
		fragment := stream.Current()
		text.WriteString(fragment)

		if pushErr := e.push(ctx, StreamChunk{Delta: fragment, Done: false}); pushErr != nil {
			return nil, fmt.Errorf("sink rejected fragment: %w", pushErr)
		}
	}

	if err := stream.Err(); err != nil {
		// A cancelled stream still delivers the end marker so
		// sink-side state machines are not left waiting.
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			_ = e.push(context.WithoutCancel(ctx), StreamChunk{Done: true})
		}
		return nil, err
	}

	final, err := stream.Final()
	if err != nil {
		return nil, err
	}
	if final == nil || final.Content == nil {
		logger.Debug("stream ended without a final message")
		return nil, &IncompleteStreamError{Cause: nil}
	}

	if pushErr := e.push(ctx, StreamChunk{Done: true}); pushErr != nil {
		return nil, fmt.Errorf("sink rejected end of stream: %w", pushErr)
	}

	logger.Debug("completion stream finished",
		zap.Int("input_tokens", final.Usage.InputTokens),
		zap.Int("output_tokens", final.Usage.OutputTokens),
	)

	return &CompletionResult{
		Text:         text.String(),
		InputTokens:  final.Usage.InputTokens,
		OutputTokens: final.Usage.OutputTokens,
	}, nil
}

func (e *Executor) push(ctx context.Context, chunk StreamChunk) error {
	if e.sink == nil {
		return nil
	}
	return e.sink.Push(ctx, chunk)
}
