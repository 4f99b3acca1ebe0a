// Package api provides the HTTP front door for ragline.
//
// Endpoints:
//
//	POST /chat    - answer a query within a session
//	GET  /health  - liveness probe
//	GET  /ready   - readiness probe (pings the database)
//	GET  /metrics - Prometheus metrics
//
// File structure:
//   - server.go: HTTP server setup and lifecycle
//   - middleware.go: recovery and request logging
//   - chat.go: chat endpoint
//   - health.go: health check endpoints
//   - response.go: JSON response helpers
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ragline/ragline/internal/log"
	"github.com/ragline/ragline/internal/observability"
)

const (
	// DefaultAddr is the default address for the HTTP server.
	DefaultAddr = "127.0.0.1:8080"

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout = 10 * time.Second

	// ReadHeaderTimeout limits header reads to mitigate Slowloris-style
	// connection exhaustion.
	ReadHeaderTimeout = 10 * time.Second

	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout = 30 * time.Second

	// WriteTimeout is the maximum duration for writing the response.
	// Model invocations dominate; allow for slow generations.
	WriteTimeout = 2 * time.Minute

	// IdleTimeout is the keep-alive idle limit.
	IdleTimeout = 2 * time.Minute
)

// Server is the HTTP server for the ragline API.
type Server struct {
	mux    *http.ServeMux
	logger log.Logger

	chat   *ChatHandler
	health *HealthHandler
}

// NewServer creates an HTTP server with all routes registered.
func NewServer(answerer Answerer, pool *pgxpool.Pool, logger log.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		mux:    mux,
		logger: logger,
		chat:   NewChatHandler(answerer, logger.With("component", "chat_handler")),
		health: NewHealthHandler(pool, logger.With("component", "health_handler")),
	}

	s.chat.RegisterRoutes(mux)
	s.health.RegisterRoutes(mux)
	mux.Handle("GET /metrics", observability.MetricsHandler())

	return s
}

// Handler returns the HTTP handler with middleware applied.
// Middleware order: recovery -> logging -> handler.
func (s *Server) Handler() http.Handler {
	return chain(s.mux,
		recoveryMiddleware(s.logger),
		loggingMiddleware(s.logger))
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
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
