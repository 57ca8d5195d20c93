package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hunchmarket/hunchd/internal/domain"
	"github.com/hunchmarket/hunchd/internal/metrics"
	"github.com/hunchmarket/hunchd/internal/server/handler"
	"github.com/hunchmarket/hunchd/internal/server/middleware"
	"github.com/hunchmarket/hunchd/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	// APIKey protects write endpoints. Plain key or bcrypt hash; empty
	// disables authentication.
	APIKey string

	RateLimit       int
	RateLimitWindow time.Duration
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health        *handler.HealthHandler
	Markets       *handler.MarketHandler
	Forecasts     *handler.ForecastHandler
	Resolutions   *handler.ResolutionHandler
	Users         *handler.UserHandler
	Leaderboard   *handler.LeaderboardHandler
	Notifications *handler.NotificationHandler
}

// Server is the HTTP + WebSocket API for the settlement service.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a Server with all routes registered on the ServeMux and
// the middleware chain (CORS, logging, metrics, rate limit, auth) applied.
// limiter and collector may be nil to disable the respective layers.
func NewServer(
	cfg Config,
	handlers Handlers,
	wsHub *ws.Hub,
	limiter domain.RateLimiter,
	collector *metrics.Collector,
	logger *slog.Logger,
) *Server {
	mux := http.NewServeMux()

	// Health check and metrics bypass authentication.
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)
	if collector != nil {
		mux.Handle("GET /metrics", collector.Handler())
	}

	// Market read surface.
	mux.HandleFunc("GET /api/markets", handlers.Markets.ListMarkets)
	mux.HandleFunc("GET /api/markets/{id}", handlers.Markets.GetMarket)
	mux.HandleFunc("GET /api/markets/{id}/resolution", handlers.Resolutions.GetResolution)

	// Settlement. Admin-only by way of the auth middleware.
	mux.HandleFunc("POST /api/markets/{id}/resolve", handlers.Resolutions.ResolveMarket)

	// Forecasts.
	mux.HandleFunc("POST /api/forecasts", handlers.Forecasts.PlaceForecast)
	mux.HandleFunc("GET /api/users/{id}/forecasts", handlers.Forecasts.ListUserForecasts)

	// Per-user scoring surfaces.
	mux.HandleFunc("GET /api/users/{id}/stats", handlers.Users.GetStats)
	mux.HandleFunc("GET /api/users/{id}/reputation", handlers.Users.GetReputation)
	mux.HandleFunc("GET /api/users/{id}/streaks", handlers.Users.GetStreaks)
	mux.HandleFunc("GET /api/users/{id}/notifications", handlers.Notifications.ListNotifications)

	// Leaderboard.
	mux.HandleFunc("GET /api/leaderboard", handlers.Leaderboard.GetLeaderboard)

	// Live events.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Build the middleware chain, innermost first.
	var h http.Handler = mux

	h = middleware.Auth(cfg.APIKey)(h)

	if limiter != nil && cfg.RateLimit > 0 {
		window := cfg.RateLimitWindow
		if window <= 0 {
			window = time.Minute
		}
		h = middleware.RateLimit(limiter, cfg.RateLimit, window)(h)
	}

	if collector != nil {
		h = collector.InstrumentHandler(h)
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
