package llm_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sixtyoneeighty/gpt-pilot/internal/llm"
)

// scriptedStream is a mock implementation of llm.Stream for testing.
type scriptedStream struct {
	fragments []string
	streamErr error
	final     *llm.FinalMessage
	finalErr  error

	pos     int
	current string
	closed  bool
}

func (s *scriptedStream) Next() bool {
	if s.pos >= len(s.fragments) {
		return false
	}
	s.current = s.fragments[s.pos]
	s.pos++
	return true
}

func (s *scriptedStream) Current() string { return s.current }

func (s *scriptedStream) Err() error {
	if s.pos >= len(s.fragments) {
		return s.streamErr
	}
	return nil
}

func (s *scriptedStream) Final() (*llm.FinalMessage, error) { return s.final, s.finalErr }

func (s *scriptedStream) Close() error {
	s.closed = true
	return nil
}

// mockOpener is a mock implementation of llm.StreamOpener for testing.
type mockOpener struct {
	openFunc func(ctx context.Context, turns []llm.Turn, opts llm.RequestOptions) (llm.Stream, error)

	calls     int
	lastTurns []llm.Turn
	lastOpts  llm.RequestOptions
}

func (m *mockOpener) OpenStream(ctx context.Context, turns []llm.Turn, opts llm.RequestOptions) (llm.Stream, error) {
	m.calls++
	m.lastTurns = turns
	m.lastOpts = opts
	return m.openFunc(ctx, turns, opts)
}

// recordingSink collects every chunk it is pushed.
type recordingSink struct {
	chunks []llm.StreamChunk
	err    error
}

func (s *recordingSink) Push(_ context.Context, chunk llm.StreamChunk) error {
	if s.err != nil {
		return s.err
	}
	s.chunks = append(s.chunks, chunk)
	return nil
}

func finalMessage(text string, input, output int) *llm.FinalMessage {
	return &llm.FinalMessage{
		Content: []llm.ContentBlock{{Type: "text", Text: text}},
		Usage:   llm.Usage{InputTokens: input, OutputTokens: output},
	}
}

func TestExecutor_Execute(t *testing.T) {
	messages := []llm.Message{{Role: "user", Content: "Hello"}}

	t.Run("should accumulate fragments in order and report usage", func(t *testing.T) {
		opener := &mockOpener{
			openFunc: func(_ context.Context, _ []llm.Turn, _ llm.RequestOptions) (llm.Stream, error) {
				return &scriptedStream{
					fragments: []string{"Hel", "lo ", "world"},
					final:     finalMessage("Hello world", 12, 7),
				}, nil
			},
		}
		sink := &recordingSink{}
		executor := llm.NewExecutor(opener, sink)

		result, err := executor.Execute(context.Background(), messages, llm.RequestOptions{Model: "claude-3-haiku"})

		require.NoError(t, err)
		require.NotNil(t, result)
		require.Equal(t, "Hello world", result.Text)
		require.Equal(t, 12, result.InputTokens)
		require.Equal(t, 7, result.OutputTokens)

		require.Equal(t, []llm.StreamChunk{
			{Delta: "Hel"},
			{Delta: "lo "},
			{Delta: "world"},
			{Done: true},
		}, sink.chunks)
	})

	t.Run("should work without a sink", func(t *testing.T) {
		opener := &mockOpener{
			openFunc: func(_ context.Context, _ []llm.Turn, _ llm.RequestOptions) (llm.Stream, error) {
				return &scriptedStream{
					fragments: []string{"ok"},
					final:     finalMessage("ok", 1, 1),
				}, nil
			},
		}
		executor := llm.NewExecutor(opener, nil)

		result, err := executor.Execute(context.Background(), messages, llm.RequestOptions{Model: "m"})

		require.NoError(t, err)
		require.Equal(t, "ok", result.Text)
	})

	t.Run("should resolve the default output cap", func(t *testing.T) {
		opener := &mockOpener{
			openFunc: func(_ context.Context, _ []llm.Turn, _ llm.RequestOptions) (llm.Stream, error) {
				return &scriptedStream{final: finalMessage("", 0, 0)}, nil
			},
		}
		executor := llm.NewExecutor(opener, nil)

		_, err := executor.Execute(context.Background(), messages, llm.RequestOptions{Model: "anthropic.claude-3-haiku"})

		require.NoError(t, err)
		require.Equal(t, 4096, opener.lastOpts.MaxOutputTokens)
	})

	t.Run("should resolve the sonnet output cap", func(t *testing.T) {
		opener := &mockOpener{
			openFunc: func(_ context.Context, _ []llm.Turn, _ llm.RequestOptions) (llm.Stream, error) {
				return &scriptedStream{final: finalMessage("", 0, 0)}, nil
			},
		}
		executor := llm.NewExecutor(opener, nil)

		_, err := executor.Execute(context.Background(), messages, llm.RequestOptions{
			Model: "anthropic.claude-3-7-sonnet-20250219-v1:0",
		})

		require.NoError(t, err)
		require.Equal(t, 8192, opener.lastOpts.MaxOutputTokens)
	})

	t.Run("should keep an explicit output cap", func(t *testing.T) {
		opener := &mockOpener{
			openFunc: func(_ context.Context, _ []llm.Turn, _ llm.RequestOptions) (llm.Stream, error) {
				return &scriptedStream{final: finalMessage("", 0, 0)}, nil
			},
		}
		executor := llm.NewExecutor(opener, nil)

		_, err := executor.Execute(context.Background(), messages, llm.RequestOptions{
			Model:           "sonnet-like",
			MaxOutputTokens: 1024,
		})

		require.NoError(t, err)
		require.Equal(t, 1024, opener.lastOpts.MaxOutputTokens)
	})

	t.Run("should reject unsupported roles before opening a stream", func(t *testing.T) {
		opener := &mockOpener{
			openFunc: func(_ context.Context, _ []llm.Turn, _ llm.RequestOptions) (llm.Stream, error) {
				t.Fatal("stream must not be opened")
				return nil, nil
			},
		}
		sink := &recordingSink{}
		executor := llm.NewExecutor(opener, sink)

		result, err := executor.Execute(context.Background(), []llm.Message{
			{Role: "function", Content: "{}"},
		}, llm.RequestOptions{Model: "m"})

		require.Error(t, err)
		require.ErrorIs(t, err, llm.ErrUnsupportedRole)
		require.Nil(t, result)
		require.Zero(t, opener.calls)
		require.Empty(t, sink.chunks)
	})

	t.Run("should classify a missing final message as incomplete", func(t *testing.T) {
		opener := &mockOpener{
			openFunc: func(_ context.Context, _ []llm.Turn, _ llm.RequestOptions) (llm.Stream, error) {
				return &scriptedStream{
					fragments: []string{"partial "},
					final:     nil,
				}, nil
			},
		}
		sink := &recordingSink{}
		executor := llm.NewExecutor(opener, sink)

		result, err := executor.Execute(context.Background(), messages, llm.RequestOptions{Model: "m"})

		require.Error(t, err)
		var incomplete *llm.IncompleteStreamError
		require.ErrorAs(t, err, &incomplete)
		require.Nil(t, result)

		// The failed attempt delivered its fragments but no end marker.
		require.Equal(t, []llm.StreamChunk{{Delta: "partial "}}, sink.chunks)
	})

	t.Run("should classify a final message without content as incomplete", func(t *testing.T) {
		opener := &mockOpener{
			openFunc: func(_ context.Context, _ []llm.Turn, _ llm.RequestOptions) (llm.Stream, error) {
				return &scriptedStream{
					final: &llm.FinalMessage{Content: nil},
				}, nil
			},
		}
		executor := llm.NewExecutor(opener, nil)

		_, err := executor.Execute(context.Background(), messages, llm.RequestOptions{Model: "m"})

		var incomplete *llm.IncompleteStreamError
		require.ErrorAs(t, err, &incomplete)
	})

	t.Run("should propagate transport open errors unmodified", func(t *testing.T) {
		transportErr := errors.New("authentication failed")
		opener := &mockOpener{
			openFunc: func(_ context.Context, _ []llm.Turn, _ llm.RequestOptions) (llm.Stream, error) {
				return nil, transportErr
			},
		}
		sink := &recordingSink{}
		executor := llm.NewExecutor(opener, sink)

		result, err := executor.Execute(context.Background(), messages, llm.RequestOptions{Model: "m"})

		require.ErrorIs(t, err, transportErr)
		require.Nil(t, result)
		require.Empty(t, sink.chunks)
	})

	t.Run("should propagate mid-stream transport errors unmodified", func(t *testing.T) {
		transportErr := errors.New("connection reset")
		opener := &mockOpener{
			openFunc: func(_ context.Context, _ []llm.Turn, _ llm.RequestOptions) (llm.Stream, error) {
				return &scriptedStream{
					fragments: []string{"some "},
					streamErr: transportErr,
				}, nil
			},
		}
		sink := &recordingSink{}
		executor := llm.NewExecutor(opener, sink)

		_, err := executor.Execute(context.Background(), messages, llm.RequestOptions{Model: "m"})

		require.ErrorIs(t, err, transportErr)
		var incomplete *llm.IncompleteStreamError
		require.False(t, errors.As(err, &incomplete))
		// No end marker for an interrupted stream.
		require.Equal(t, []llm.StreamChunk{{Delta: "some "}}, sink.chunks)
	})

	t.Run("should deliver the end marker when the stream is cancelled", func(t *testing.T) {
		opener := &mockOpener{
			openFunc: func(_ context.Context, _ []llm.Turn, _ llm.RequestOptions) (llm.Stream, error) {
				return &scriptedStream{
					fragments: []string{"cut "},
					streamErr: context.Canceled,
				}, nil
			},
		}
		sink := &recordingSink{}
		executor := llm.NewExecutor(opener, sink)

		_, err := executor.Execute(context.Background(), messages, llm.RequestOptions{Model: "m"})

		require.ErrorIs(t, err, context.Canceled)
		require.Equal(t, []llm.StreamChunk{
			{Delta: "cut "},
			{Done: true},
		}, sink.chunks)
	})

	t.Run("should stop when the sink rejects a fragment", func(t *testing.T) {
		sinkErr := errors.New("client gone")
		opener := &mockOpener{
			openFunc: func(_ context.Context, _ []llm.Turn, _ llm.RequestOptions) (llm.Stream, error) {
				return &scriptedStream{
					fragments: []string{"a", "b"},
					final:     finalMessage("ab", 1, 1),
				}, nil
			},
		}
		executor := llm.NewExecutor(opener, &recordingSink{err: sinkErr})

		_, err := executor.Execute(context.Background(), messages, llm.RequestOptions{Model: "m"})

		require.ErrorIs(t, err, sinkErr)
	})

	t.Run("should pass normalized turns to the transport", func(t *testing.T) {
		opener := &mockOpener{
			openFunc: func(_ context.Context, _ []llm.Turn, _ llm.RequestOptions) (llm.Stream, error) {
				return &scriptedStream{final: finalMessage("", 0, 0)}, nil
			},
		}
		executor := llm.NewExecutor(opener, nil)

		_, err := executor.Execute(context.Background(), []llm.Message{
			{Role: "user", Content: "Hi"},
			{Role: "system", Content: "be nice"},
			{Role: "assistant", Content: "ok"},
		}, llm.RequestOptions{Model: "m"})

		require.NoError(t, err)
		require.Equal(t, []llm.Turn{
			{Role: "user", Content: "Hi\n\nbe nice"},
			{Role: "assistant", Content: "ok"},
		}, opener.lastTurns)
	})
}
