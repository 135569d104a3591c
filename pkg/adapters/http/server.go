package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pichlex/debitor"
	"github.com/pichlex/debitor/internal/logging"
	"github.com/pichlex/debitor/internal/presentation/graph"
	"github.com/pichlex/debitor/pkg/domain"
	dgraph "github.com/pichlex/debitor/pkg/graph"
	"github.com/pichlex/debitor/pkg/runner"
)

const maxBodyBytes = 1 << 16

// Service is the part of *debitor.Service the API needs.
type Service interface {
	Invoke(ctx context.Context, conversationID, text string, meta map[string]any) (*debitor.Reply, error)
	Graph() *dgraph.Graph
	ShardFor(conversationID string) int
	Session(ctx context.Context, conversationID string) (*domain.ConversationState, error)
	DeleteSession(ctx context.Context, conversationID string) error
	ListSessions(ctx context.Context) ([]debitor.SessionRef, error)
}

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	ThreadID string         `json:"thread_id"`
	Input    string         `json:"input"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// ChatResponse is the reply of POST /chat.
type ChatResponse struct {
	*debitor.Reply
	Output string `json:"output"`
}

// SessionResponse is the reply of GET /sessions/{id}.
type SessionResponse struct {
	ThreadID string                    `json:"thread_id"`
	Shard    int                       `json:"shard"`
	State    *domain.ConversationState `json:"state"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Server serves the HTTP API.
type Server struct {
	svc     Service
	streams *StreamManager
	logger  *slog.Logger
	metrics http.Handler
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMetrics mounts a Prometheus handler at /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// NewServer creates the API server.
func NewServer(svc Service, opts ...Option) *Server {
	s := &Server{svc: svc, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	s.streams = NewStreamManager(s.logger)
	return s
}

// Streams exposes the SSE fan-out.
func (s *Server) Streams() *StreamManager {
	return s.streams
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(enableCORS)

	r.Post("/chat", s.Chat)
	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	r.Get("/graph", s.GetGraph)
	r.Get("/sessions", s.ListSessions)
	r.Get("/sessions/{id}", s.GetSession)
	r.Delete("/sessions/{id}", s.DeleteSession)
	r.Get("/events", s.SubscribeEvents)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}
	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Chat handles POST /chat.
func (s *Server) Chat(w http.ResponseWriter, r *http.Request) {
	var body ChatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&body); err != nil {
		s.fail(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	threadID := strings.TrimSpace(body.ThreadID)
	if threadID == "" {
		s.fail(w, http.StatusBadRequest, errors.New("thread_id is required"))
		return
	}
	message, err := runner.CleanMessage(body.Input)
	if err != nil {
		s.fail(w, http.StatusBadRequest, fmt.Errorf("invalid input: %w", err))
		return
	}

	reply, err := s.svc.Invoke(r.Context(), threadID, message, body.Metadata)
	if err != nil {
		s.fail(w, statusFor(err), err)
		return
	}

	resp := ChatResponse{Reply: reply, Output: reply.Output()}
	if s.streams.Subscribers(threadID) > 0 {
		if data, err := json.Marshal(resp); err == nil {
			s.streams.Broadcast(threadID, string(data))
		}
	}
	s.respond(w, http.StatusOK, resp)
}

// statusFor maps a turn failure to an HTTP status.
func statusFor(err error) int {
	var persistErr *domain.PersistenceError
	switch {
	case errors.As(err, &persistErr),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// GetHealth handles GET /health.
func (s *Server) GetHealth(w http.ResponseWriter, _ *http.Request) {
	s.respond(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles GET /info.
func (s *Server) GetInfo(w http.ResponseWriter, _ *http.Request) {
	s.respond(w, http.StatusOK, map[string]string{
		"app":     "debitor",
		"version": strings.TrimSpace(debitor.Version),
	})
}

// GetGraph handles GET /graph. With format=mermaid it renders a flowchart,
// highlighting the last turn of thread_id when given.
func (s *Server) GetGraph(w http.ResponseWriter, r *http.Request) {
	nodes := s.svc.Graph().Describe()
	if r.URL.Query().Get("format") != "mermaid" {
		s.respond(w, http.StatusOK, nodes)
		return
	}

	var overlay *graph.Overlay
	if id := r.URL.Query().Get("thread_id"); id != "" {
		state, err := s.svc.Session(r.Context(), id)
		if err != nil {
			s.sessionError(w, err)
			return
		}
		overlay = &graph.Overlay{VisitedNodes: state.Scratch.Path, CurrentNode: state.Scratch.CurrentNode}
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(graph.GenerateMermaid(nodes, overlay)))
}

// ListSessions handles GET /sessions.
func (s *Server) ListSessions(w http.ResponseWriter, r *http.Request) {
	refs, err := s.svc.ListSessions(r.Context())
	if err != nil {
		s.fail(w, http.StatusServiceUnavailable, err)
		return
	}
	if refs == nil {
		refs = []debitor.SessionRef{}
	}
	s.respond(w, http.StatusOK, refs)
}

// GetSession handles GET /sessions/{id}.
func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	state, err := s.svc.Session(r.Context(), id)
	if err != nil {
		s.sessionError(w, err)
		return
	}
	s.respond(w, http.StatusOK, SessionResponse{ThreadID: id, Shard: s.svc.ShardFor(id), State: state})
}

// DeleteSession handles DELETE /sessions/{id}.
func (s *Server) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteSession(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.fail(w, http.StatusServiceUnavailable, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) sessionError(w http.ResponseWriter, err error) {
	if errors.Is(err, domain.ErrSessionNotFound) {
		s.fail(w, http.StatusNotFound, err)
		return
	}
	s.fail(w, http.StatusServiceUnavailable, err)
}

// SubscribeEvents handles GET /events (SSE). Every reply of the thread is
// pushed as one data frame.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.fail(w, http.StatusInternalServerError, errors.New("streaming not supported"))
		return
	}
	threadID := r.URL.Query().Get("thread_id")
	if threadID == "" {
		s.fail(w, http.StatusBadRequest, errors.New("thread_id is required"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, cancel := s.streams.Subscribe(threadID)
	defer cancel()
	s.logger.Info("SSE client subscribed", "thread_id", threadID)

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Info("SSE client disconnected", "thread_id", threadID)
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: reply\ndata: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

func (s *Server) respond(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Response encode failed", "err", err)
	}
}

func (s *Server) fail(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.logger.Error("Request failed", "status", status, "err", err)
	} else {
		s.logger.Warn("Request rejected", "status", status, "err", err)
	}
	s.respond(w, status, errorResponse{Error: err.Error()})
}
