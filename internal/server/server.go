// Package server exposes the retention assistant over HTTP.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/retention-intel/server/internal/agent/model"
	"github.com/retention-intel/server/internal/evaluation"
)

const defaultTimeout = 60 * time.Second

// ChatService runs chat turns and reads transcripts.
type ChatService interface {
	HandleTurn(ctx context.Context, req model.TurnRequest) (*model.TurnResponse, error)
	Transcript(ctx context.Context, conversationID string) (*model.ConversationHistory, error)
	ClearTranscript(ctx context.Context, conversationID string) error
}

// EvalReader reads stored evaluation results.
type EvalReader interface {
	ListMetrics(ctx context.Context, limit int) ([]model.EvalMetric, error)
	ListJudgeRuns(ctx context.Context, limit int) ([]model.JudgeRun, error)
}

// ScoringCatalog lists the available scoring functions.
type ScoringCatalog interface {
	List() ([]evaluation.Ref, error)
}

// SLA holds the thresholds reported next to metrics.
type SLA struct {
	Compliance   float64 `json:"compliance"`
	Completeness float64 `json:"completeness"`
}

// Server holds all dependencies for the HTTP API.
type Server struct {
	router    *chi.Mux
	chat      ChatService
	evals     EvalReader
	scoring   ScoringCatalog
	sla       SLA
	startTime time.Time
}

// Option configures the Server.
type Option func(*Server)

// WithEvalReader enables the metrics and judge-run endpoints.
func WithEvalReader(r EvalReader) Option {
	return func(s *Server) { s.evals = r }
}

// WithScoringCatalog enables the scoring-function listing.
func WithScoringCatalog(c ScoringCatalog) Option {
	return func(s *Server) { s.scoring = c }
}

// WithSLA sets the thresholds returned by the metrics endpoint.
func WithSLA(sla SLA) Option {
	return func(s *Server) { s.sla = sla }
}

// NewServer builds a Server around the chat service.
func NewServer(chat ChatService, opts ...Option) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		chat:      chat,
		startTime: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes returns the configured http.Handler. Chat routes carry no request
// timeout; the pipeline bounds its own model calls.
func (s *Server) Routes() http.Handler {
	r := s.router
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Post("/chat", s.handleChat)
		r.Post("/chat/stream", s.handleChatStream)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(defaultTimeout))
			r.Get("/metrics", s.handleMetrics)
			r.Get("/judge-runs", s.handleJudgeRuns)
			r.Get("/scoring-functions", s.handleScoringFunctions)
			r.Get("/conversations/{id}/messages", s.handleConversationMessages)
			r.Delete("/conversations/{id}/messages", s.handleClearConversation)
		})
	})

	return r
}
