// Package api exposes the assistant over a JSON HTTP surface.
//
// All routes live under /api/v1/rag. Error responses use a uniform envelope;
// mapping from domain errors to HTTP status codes happens only here.
package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/pedira/pedira/internal/assistant"
	"github.com/pedira/pedira/internal/feedback"
	"github.com/pedira/pedira/internal/i18n"
	"github.com/pedira/pedira/internal/log"
	"github.com/pedira/pedira/internal/vecstore"
)

// Asker is the question-answering dependency of the HTTP surface.
type Asker interface {
	Ask(ctx context.Context, req *assistant.QueryRequest) (*assistant.QueryResponse, error)
}

// FeedbackSink records caregiver feedback.
type FeedbackSink interface {
	Record(ctx context.Context, question, answer string, helpful bool, text string) (*feedback.Entry, error)
}

// ServerConfig configures the API server.
type ServerConfig struct {
	Logger    log.Logger
	Catalog   *i18n.Catalog
	Assistant Asker
	Feedback  FeedbackSink // Optional: nil disables the feedback route
	Index     vecstore.Index
	IndexName string
	ModelName string
	RateBurst int // 0 = default 60
}

// Server is the JSON API HTTP server.
type Server struct {
	handler http.Handler
}

// NewServer wires routes and middleware.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Assistant == nil {
		return nil, errors.New("assistant is required")
	}
	if cfg.Index == nil {
		return nil, errors.New("index is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}
	catalog := cfg.Catalog
	if catalog == nil {
		catalog = i18n.New("")
	}

	h := &handlers{
		logger:    logger,
		catalog:   catalog,
		assistant: cfg.Assistant,
		feedback:  cfg.Feedback,
		index:     cfg.Index,
		indexName: cfg.IndexName,
		modelName: cfg.ModelName,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/rag/health", h.health)
	mux.HandleFunc("POST /api/v1/rag/ask", h.ask)
	mux.HandleFunc("GET /api/v1/rag/topics", h.topics)
	if cfg.Feedback != nil {
		mux.HandleFunc("POST /api/v1/rag/feedback", h.postFeedback)
	}

	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 60
	}
	rl := newRateLimiter(1.0, burst)

	// Middleware stack, outermost first:
	//   Recovery → RequestID → Logging → RateLimit → Routes
	// RequestID runs before Logging so every access line carries request_id.
	var handler http.Handler = mux
	handler = rateLimitMiddleware(rl, logger, catalog.T("error.rate_limit"))(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = requestIDMiddleware()(handler)
	handler = recoveryMiddleware(logger, catalog.T("error.internal"))(handler)

	return &Server{handler: handler}, nil
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}
