// Package ui is the delivery layer: a web server that fans streamed
// completion output out to connected WebSocket clients and routes their
// answers back to pending questions.
package ui

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/sixtyoneeighty/gpt-pilot/internal/config"
	"github.com/sixtyoneeighty/gpt-pilot/internal/observability"
	"github.com/sixtyoneeighty/gpt-pilot/internal/ui/middleware"
)

// ErrClosed is returned when the server is not running or has no
// clients to talk to.
var ErrClosed = errors.New("ui server is closed")

// Server broadcasts messages to all connected WebSocket clients and
// resolves question/answer roundtrips.
type Server struct {
	config      config.ServerConfig
	middlewares middleware.Middleware
	upgrader    websocket.Upgrader

	mu          sync.Mutex
	sockets     map[*websocket.Conn]struct{}
	pending     map[string]chan UserInput
	questionSeq int64

	running atomic.Bool
	srv     *http.Server
}

// NewServer creates a new UI server (DI constructor).
func NewServer(cfg *config.ServerConfig, middlewares middleware.Middleware) *Server {
	return &Server{
		config:      *cfg,
		middlewares: middlewares,
		upgrader: websocket.Upgrader{
			// Cross-origin policy is enforced by the CORS middleware.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		sockets: make(map[*websocket.Conn]struct{}),
		pending: make(map[string]chan UserInput),
	}
}

// Start starts the UI server and blocks until it stops.
func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)

	// Only the header read is bounded. Read/write timeouts would sever
	// long-lived websocket connections.
	s.srv = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.config.Host, s.config.Port),
		Handler:           s.middlewares(mux),
		ReadHeaderTimeout: time.Duration(s.config.ReadHeaderTimeout) * time.Second,
	}

	s.running.Store(true)

	ctx := context.Background()
	observability.FromContext(ctx).Info("starting UI server",
		zap.String("host", s.config.Host),
		zap.Int("port", s.config.Port),
	)

	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.running.Store(false)
		return fmt.Errorf("ui server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server: pending questions are
// answered as cancelled, sockets are closed, then the listener stops.
func (s *Server) Shutdown(ctx context.Context) error {
	observability.FromContext(ctx).Info("shutting down UI server")

	s.running.Store(false)

	s.mu.Lock()
	for id, ch := range s.pending {
		ch <- UserInput{Cancelled: true}
		delete(s.pending, id)
	}
	for ws := range s.sockets {
		_ = ws.Close()
		delete(s.sockets, ws)
	}
	s.mu.Unlock()

	if s.srv == nil {
		return nil
	}

	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown ui server: %w", err)
	}

	return nil
}

// SendStreamChunk broadcasts one streamed output fragment; done marks
// the end of the stream.
func (s *Server) SendStreamChunk(ctx context.Context, chunk string, done bool) error {
	return s.broadcast(ctx, outboundMessage{
		Type:  MessageTypeStream,
		Chunk: chunk,
		Done:  done,
	})
}

// SendMessage broadcasts a complete display message.
func (s *Server) SendMessage(ctx context.Context, message string) error {
	return s.broadcast(ctx, outboundMessage{
		Type:    MessageTypeMessage,
		Message: message,
	})
}

// SendAppFinished notifies clients that the run is over.
func (s *Server) SendAppFinished(ctx context.Context) error {
	return s.broadcast(ctx, outboundMessage{Type: MessageTypeAppFinished})
}

// AskQuestion broadcasts a question and suspends until a client answers
// it, the context is cancelled, or the server shuts down (in which case
// the returned input is marked cancelled).
func (s *Server) AskQuestion(ctx context.Context, question string, buttons map[string]string, defaultAnswer string) (UserInput, error) {
	if !s.running.Load() {
		return UserInput{}, ErrClosed
	}

	s.mu.Lock()
	if len(s.sockets) == 0 {
		s.mu.Unlock()
		return UserInput{}, fmt.Errorf("no websocket connections available: %w", ErrClosed)
	}
	s.questionSeq++
	questionID := strconv.FormatInt(s.questionSeq, 10)
	answer := make(chan UserInput, 1)
	s.pending[questionID] = answer
	s.mu.Unlock()

	err := s.broadcast(ctx, outboundMessage{
		Type:       MessageTypeQuestion,
		QuestionID: questionID,
		Question:   question,
		Buttons:    buttons,
		Default:    defaultAnswer,
	})
	if err != nil {
		s.dropPending(questionID)
		return UserInput{}, err
	}

	select {
	case input := <-answer:
		return input, nil
	case <-ctx.Done():
		s.dropPending(questionID)
		return UserInput{}, ctx.Err()
	}
}

func (s *Server) dropPending(questionID string) {
	s.mu.Lock()
	delete(s.pending, questionID)
	s.mu.Unlock()
}

func (s *Server) broadcast(ctx context.Context, msg outboundMessage) error {
	if !s.running.Load() {
		return ErrClosed
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	logger := observability.FromContext(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.sockets) == 0 {
		logger.Warn("no websocket connections to broadcast to",
			zap.String("type", msg.Type))
	}

	for ws := range s.sockets {
		if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
			logger.Error("failed to send message to client", zap.Error(err))
		}
	}

	return nil
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := observability.FromContext(ctx)

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("websocket upgrade failed", zap.Error(err))
		return
	}

	s.mu.Lock()
	s.sockets[ws] = struct{}{}
	clients := len(s.sockets)
	s.mu.Unlock()

	logger.Info("websocket client connected", zap.Int("clients", clients))

	defer func() {
		s.mu.Lock()
		delete(s.sockets, ws)
		s.mu.Unlock()
		_ = ws.Close()
		logger.Info("websocket client disconnected")
	}()

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Error("websocket read failed", zap.Error(err))
			}
			return
		}

		var msg inboundMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			logger.Error("invalid JSON received", zap.Error(err))
			continue
		}

		if msg.Type != messageTypeResponse || msg.QuestionID == "" {
			continue
		}

		s.mu.Lock()
		answer, ok := s.pending[msg.QuestionID]
		delete(s.pending, msg.QuestionID)
		s.mu.Unlock()

		if !ok {
			logger.Warn("response for unknown question",
				zap.String("question_id", msg.QuestionID))
			continue
		}

		answer <- UserInput{
			Text:      msg.Text,
			Button:    msg.Button,
			Cancelled: msg.Cancelled,
		}
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(map[string]string{
		"status": "healthy",
	}); err != nil {
		// Already written status, can't change it.
		return
	}
}
