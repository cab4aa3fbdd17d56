// Package server provides the HTTP API for chatdata.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/chatdata/internal/catalog"
	"github.com/hyperjump/chatdata/internal/chat"
	"github.com/hyperjump/chatdata/internal/config"
	"github.com/hyperjump/chatdata/internal/llm"
	"github.com/hyperjump/chatdata/internal/storage"
)

// Server is the HTTP server for the chatdata API.
type Server struct {
	catalog   *catalog.Service
	chat      *chat.Service
	generator llm.Generator
	store     *storage.Store
	config    *config.Config
	logger    *zap.Logger
	server    *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(
	cat *catalog.Service,
	chatSvc *chat.Service,
	generator llm.Generator,
	store *storage.Store,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		catalog:   cat,
		chat:      chatSvc,
		generator: generator,
		store:     store,
		config:    cfg,
		logger:    logger.Named("http"),
	}
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	timeout := s.config.Server.RequestTimeout
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	r.Use(middleware.Timeout(timeout))
	r.Use(middleware.Compress(5))

	r.Route("/api", func(r chi.Router) {
		r.Route("/datasources", func(r chi.Router) {
			r.Get("/", s.handleListDataSources)
			r.Post("/", s.handleCreateDataSource)
			r.Get("/{id}", s.handleGetDataSource)
			r.Put("/{id}", s.handleUpdateDataSource)
			r.Patch("/{id}", s.handleUpdateDataSource)
			r.Delete("/{id}", s.handleDeleteDataSource)
		})
		r.Get("/csv/{id}/preview", s.handleCSVPreview)
		r.Get("/csv/{id}/data", s.handleCSVData)
		r.Post("/upload", s.handleUpload)
		r.Post("/chat", s.handleChat)
		r.Post("/visualize", s.handleVisualize)
		r.Post("/export", s.handleExport)
		r.Get("/queries", s.handleListQueries)
		r.Get("/llm/check", s.handleLLMCheck)
		r.Get("/status", s.handleStatus)
	})
	r.Get("/health", s.handleHealth)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := s.config.Address()
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			s.logger.Debug("Request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("elapsed", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())))
		}()
		next.ServeHTTP(ww, r)
	})
}
