// Package server exposes the pool engine over HTTP and WebSocket.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Hurisoft/soccersm-pools/internal/domain"
	"github.com/Hurisoft/soccersm-pools/internal/server/handler"
	"github.com/Hurisoft/soccersm-pools/internal/server/middleware"
	"github.com/Hurisoft/soccersm-pools/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	AdminToken  string // if empty, admin endpoints are open
	RateLimit   int    // requests per minute per client; 0 disables limiting
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health *handler.HealthHandler
	Status *handler.StatusHandler
	Pools  *handler.PoolHandler
	Topics *handler.TopicHandler
	Oracle *handler.OracleHandler
}

// Server is the HTTP + WebSocket API server for the pool engine.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a new Server with all routes registered on the ServeMux.
// It wires up middleware (logging, CORS, rate limiting) and attaches the
// WebSocket hub. The limiter may be nil to disable rate limiting.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// --- Register routes ---

	// Health check and status (no auth required).
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)
	mux.HandleFunc("GET /api/status", handlers.Status.GetStatus)
	mux.HandleFunc("GET /api/params", handlers.Pools.GetParams)

	// Pool endpoints.
	mux.HandleFunc("GET /api/pools", handlers.Pools.ListPools)
	mux.HandleFunc("POST /api/pools", handlers.Pools.CreatePool)
	mux.HandleFunc("POST /api/pools/close", handlers.Pools.CloseMany)
	mux.HandleFunc("POST /api/pools/withdraw", handlers.Pools.WithdrawMany)
	mux.HandleFunc("GET /api/pools/{id}", handlers.Pools.GetPool)
	mux.HandleFunc("POST /api/pools/{id}/join", handlers.Pools.JoinPool)
	mux.HandleFunc("POST /api/pools/{id}/close", handlers.Pools.Close)
	mux.HandleFunc("POST /api/pools/{id}/withdraw", handlers.Pools.Withdraw)
	mux.HandleFunc("GET /api/pools/{id}/participants", handlers.Pools.ListParticipants)
	mux.HandleFunc("GET /api/pools/{id}/participants/{account}", handlers.Pools.GetParticipant)

	// Poll endpoints.
	mux.HandleFunc("POST /api/polls", handlers.Pools.CreatePoll)
	mux.HandleFunc("POST /api/polls/{id}/join", handlers.Pools.JoinPoll)

	// Topic endpoints. Mutations are owner operations and sit behind the
	// admin token.
	mux.HandleFunc("GET /api/topics", handlers.Topics.ListTopics)
	mux.HandleFunc("GET /api/topics/{id}", handlers.Topics.GetTopic)
	mux.Handle("POST /api/topics",
		middleware.Auth(cfg.AdminToken)(http.HandlerFunc(handlers.Topics.CreateTopic)))
	mux.Handle("PUT /api/topics/{id}/enabled",
		middleware.Auth(cfg.AdminToken)(http.HandlerFunc(handlers.Topics.SetTopicEnabled)))

	// Oracle endpoints. Ingestion and reporter management are admin surface.
	mux.HandleFunc("GET /api/oracle/data/{key}", handlers.Oracle.HasData)
	mux.Handle("POST /api/oracle/data",
		middleware.Auth(cfg.AdminToken)(http.HandlerFunc(handlers.Oracle.ProvideData)))
	mux.Handle("POST /api/oracle/reporters",
		middleware.Auth(cfg.AdminToken)(http.HandlerFunc(handlers.Oracle.AddReporter)))

	// Manual resolution is an owner action as well.
	mux.Handle("POST /api/pools/{id}/result",
		middleware.Auth(cfg.AdminToken)(http.HandlerFunc(handlers.Pools.SetManualResult)))

	// WebSocket endpoint.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Build the middleware chain.
	var h http.Handler = mux

	// Apply per-client rate limiting when a limiter is wired.
	if limiter != nil && cfg.RateLimit > 0 {
		h = middleware.RateLimit(limiter, cfg.RateLimit, time.Minute)(h)
	}

	// Apply request logging middleware.
	h = middleware.Logging(logger)(h)

	// Apply CORS middleware.
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
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
