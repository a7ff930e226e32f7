package ui

import (
	"context"

	"github.com/sixtyoneeighty/gpt-pilot/internal/llm"
)

// StreamSink adapts the server's broadcast to the llm.Sink contract so
// completion output streams straight to every connected client. Since
// retried attempts replay the stream, clients may see fragments of a
// failed attempt again before the final one completes.
type StreamSink struct {
	server *Server
}

// NewStreamSink creates a sink broadcasting through the given server.
func NewStreamSink(server *Server) *StreamSink {
	return &StreamSink{server: server}
}

// Push broadcasts one chunk.
func (s *StreamSink) Push(ctx context.Context, chunk llm.StreamChunk) error {
	return s.server.SendStreamChunk(ctx, chunk.Delta, chunk.Done)
}
