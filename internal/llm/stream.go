package llm

import "context"

// RequestOptions carries the per-request parameters resolved by the caller.
type RequestOptions struct {
	// Model is the provider-side model identifier.
	Model string
	// Temperature overrides the provider default when non-nil.
	Temperature *float64
	// JSONMode asks the model for a JSON object response.
	JSONMode bool
	// MaxOutputTokens caps generated output. When zero the executor
	// resolves it from the model identifier.
	MaxOutputTokens int
}

// CompletionResult is the outcome of a successful streaming completion:
// all fragments concatenated in arrival order plus the usage counts from
// the final message. Callers either get a complete result or an error,
// never a partial one.
type CompletionResult struct {
	Text         string
	InputTokens  int
	OutputTokens int
}

// Usage tracks token consumption reported by the provider.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// ContentBlock is one block of the final message content.
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// FinalMessage is the finalization record a stream yields after its last
// fragment. A stream that ends without one, or with nil content, is
// treated as incomplete and retried.
type FinalMessage struct {
	Content []ContentBlock `json:"content"`
	Usage   Usage          `json:"usage"`
}

// StreamChunk is a single unit delivered to a Sink: either a text
// fragment, or the end-of-stream marker when Done is set.
type StreamChunk struct {
	Delta string `json:"delta"`
	Done  bool   `json:"done"`
}

// Sink receives streamed output as it arrives. Fragments are pushed in
// arrival order, one at a time; the next fragment is not pulled from the
// transport until Push returns, so a slow sink throttles the stream.
// A successful attempt ends with exactly one Done chunk.
//
// Retried attempts replay the stream from the beginning, so a sink may
// observe fragments of a failed attempt that are never withdrawn.
// Delivery of intermediate fragments is at-least-once; only the Done
// marker implies the preceding fragments form the complete response.
type Sink interface {
	Push(ctx context.Context, chunk StreamChunk) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, chunk StreamChunk) error

// Push calls f.
func (f SinkFunc) Push(ctx context.Context, chunk StreamChunk) error {
	return f(ctx, chunk)
}

// Stream is a single in-flight streaming response. Next advances to the
// following text fragment and reports whether one is available; Current
// returns it. After Next returns false, Err reports any transport error
// and Final returns the finalization record, when the provider sent one.
type Stream interface {
	Next() bool
	Current() string
	Err() error
	Final() (*FinalMessage, error)
	Close() error
}

// StreamOpener opens a streaming completion request against a provider.
// It is the transport boundary of the client: implementations yield zero
// or more fragments followed by either a final message or an error.
type StreamOpener interface {
	OpenStream(ctx context.Context, turns []Turn, opts RequestOptions) (Stream, error)
}

// Provider is a named StreamOpener advertising the models it serves.
type Provider interface {
	StreamOpener

	// Name returns the provider identifier.
	Name() string

	// Models returns the model identifiers this provider serves.
	Models() []string
}
