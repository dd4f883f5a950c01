// Package server hosts the HTTP + WebSocket API for the conversion engine.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/solvernet/intentbot/internal/domain"
	"github.com/solvernet/intentbot/internal/server/handler"
	"github.com/solvernet/intentbot/internal/server/middleware"
	"github.com/solvernet/intentbot/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, authentication is disabled
	RateLimit   int    // requests per second per client; 0 disables
}

// Handlers aggregates the HTTP handlers the server registers.
type Handlers struct {
	Health     *handler.HealthHandler
	Routes     *handler.RouteHandler
	Arbitrage  *handler.ArbHandler
	Quotes     *handler.QuoteHandler
	Executions *handler.ExecutionHandler
	Solvers    *handler.SolverHandler
}

// Server is the headless HTTP + WebSocket API server.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer registers all routes, wires the middleware chain, and attaches
// the WebSocket hub. The rate limiter may be nil.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health check.
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Route discovery and ranking.
	mux.HandleFunc("POST /api/routes/discover", handlers.Routes.Discover)

	// Arbitrage scanning and history.
	mux.HandleFunc("GET /api/arbitrage/scan", handlers.Arbitrage.Scan)
	mux.HandleFunc("GET /api/arbitrage/recent", handlers.Arbitrage.Recent)

	// Quote solicitation.
	mux.HandleFunc("POST /api/quotes/request", handlers.Quotes.Request)

	// Execution lifecycle.
	mux.HandleFunc("POST /api/executions", handlers.Executions.Start)
	mux.HandleFunc("GET /api/executions", handlers.Executions.List)
	mux.HandleFunc("GET /api/executions/{id}", handlers.Executions.Get)
	mux.HandleFunc("DELETE /api/executions/{id}", handlers.Executions.Cancel)

	// Solver registry.
	mux.HandleFunc("GET /api/solvers", handlers.Solvers.ListActive)
	mux.HandleFunc("POST /api/solvers", handlers.Solvers.Register)

	// Live event stream.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	var h http.Handler = mux
	h = middleware.Auth(cfg.APIKey)(h)
	if limiter != nil && cfg.RateLimit > 0 {
		h = middleware.RateLimit(limiter, cfg.RateLimit, time.Second)(h)
	}
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		mux:        mux,
		logger:     logger,
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// errors or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server, waiting for in-flight requests up
// to the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
