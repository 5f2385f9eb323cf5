// Package api exposes the knowledge base over HTTP: document
// ingestion, retrieval-grounded chat, conversation management, and
// prompt administration.
//
// File structure:
//   - server.go: HTTP server setup and lifecycle
//   - middleware.go: HTTP middleware (logging, recovery)
//   - health.go: health check endpoints (/health, /ready)
//   - chat.go: conversation and chat endpoints
//   - documents.go: document ingestion and management endpoints
//   - prompts.go: prompt management endpoints
//   - response.go: JSON response helpers and error status mapping
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/docent-ai/docent/internal/log"
)

const (
	// DefaultAddr is the default address for the HTTP server.
	DefaultAddr = "127.0.0.1:8080"

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout = 10 * time.Second

	// ReadHeaderTimeout is the timeout for reading request headers.
	ReadHeaderTimeout = 10 * time.Second

	// ReadTimeout is the maximum duration for reading the entire request.
	// Uploads and site crawls can run long.
	ReadTimeout = 2 * time.Minute

	// WriteTimeout is the maximum duration for writing the response.
	WriteTimeout = 5 * time.Minute

	// IdleTimeout is the maximum time to wait for the next request on
	// keep-alive connections.
	IdleTimeout = 120 * time.Second
)

// ServerConfig bundles Server construction parameters.
type ServerConfig struct {
	Answerer      Answerer
	Conversations ConversationStore
	Ingester      Ingester
	Prompts       PromptStore

	// Ready reports whether downstream dependencies are reachable.
	// Nil means /ready mirrors /health.
	Ready func(r *http.Request) error

	Logger log.Logger
}

// Server is the HTTP server for the knowledge base API.
type Server struct {
	mux    *http.ServeMux
	logger log.Logger
}

// NewServer creates a new HTTP server with all routes registered.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Answerer == nil || cfg.Conversations == nil || cfg.Ingester == nil || cfg.Prompts == nil {
		return nil, errors.New("answerer, conversations, ingester, and prompts are required")
	}
	if cfg.Logger == nil {
		return nil, errors.New("logger is required")
	}

	mux := http.NewServeMux()

	NewHealthHandler(cfg.Ready, cfg.Logger).RegisterRoutes(mux)
	NewChatHandler(cfg.Answerer, cfg.Conversations, cfg.Logger).RegisterRoutes(mux)
	NewDocumentHandler(cfg.Ingester, cfg.Logger).RegisterRoutes(mux)
	NewPromptHandler(cfg.Prompts, cfg.Logger).RegisterRoutes(mux)

	return &Server{mux: mux, logger: cfg.Logger}, nil
}

// Handler returns the HTTP handler with middleware applied.
// Middleware order: recovery → logging → handler
func (s *Server) Handler() http.Handler {
	return chain(s.mux, recoveryMiddleware(s.logger), loggingMiddleware(s.logger))
}

// Run starts the HTTP server and blocks until the context is cancelled,
// then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	if addr == "" {
		addr = DefaultAddr
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: ReadHeaderTimeout,
		ReadTimeout:       ReadTimeout,
		WriteTimeout:      WriteTimeout,
		IdleTimeout:       IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
