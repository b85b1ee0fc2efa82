// Package server provides the HTTP API for Keiyaku.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/keiyakuhq/keiyaku/internal/answer"
	"github.com/keiyakuhq/keiyaku/internal/config"
	"github.com/keiyakuhq/keiyaku/internal/ingest"
	"github.com/keiyakuhq/keiyaku/internal/search"
	"github.com/keiyakuhq/keiyaku/internal/storage"
	"github.com/keiyakuhq/keiyaku/internal/vector"
)

// Server is the HTTP server for the Keiyaku API.
type Server struct {
	engine       *search.Engine
	answers      *answer.Service
	orchestrator *ingest.Orchestrator
	storage      storage.Storage
	vectorIndex  vector.Index
	config       *config.Config
	logger       *zap.Logger
	server       *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(
	engine *search.Engine,
	answers *answer.Service,
	orchestrator *ingest.Orchestrator,
	store storage.Storage,
	vectorIndex vector.Index,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	return &Server{
		engine:       engine,
		answers:      answers,
		orchestrator: orchestrator,
		storage:      store,
		vectorIndex:  vectorIndex,
		config:       cfg,
		logger:       logger,
	}
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))
	r.Use(middleware.Compress(5))

	r.Post("/api/v1/documents", s.handleIngest)
	r.Get("/api/v1/documents", s.handleListDocuments)
	r.Get("/api/v1/documents/{id}", s.handleGetDocument)
	r.Delete("/api/v1/documents/{id}", s.handleDeleteDocument)
	r.Post("/api/v1/documents/{id}/reprocess", s.handleReprocess)
	r.Post("/api/v1/reindex", s.handleReindex)
	r.Get("/api/v1/progress", s.handleProgress)
	r.Post("/api/v1/search", s.handleSearch)
	r.Post("/api/v1/answer", s.handleAnswer)
	r.Get("/api/v1/status", s.handleStatus)
	r.Get("/health", s.handleHealth)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.routes(),
	}
	s.logger.Info("starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
