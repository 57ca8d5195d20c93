package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hunchmarket/hunchd/internal/notify"
	"github.com/hunchmarket/hunchd/internal/outbox"
	"github.com/hunchmarket/hunchd/internal/server"
	"github.com/hunchmarket/hunchd/internal/server/handler"
	"github.com/hunchmarket/hunchd/internal/server/ws"
	"github.com/hunchmarket/hunchd/internal/service"
)

// ServeMode starts the HTTP API and WebSocket hub. Settlement notifications
// written to the outbox stream are left for a dispatch-mode process to drain.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting serve mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startHTTPServer(ctx, g, deps)
	return g.Wait()
}

// DispatchMode runs the outbox dispatcher that turns settlement batches into
// persisted user notifications, plus the cold-storage archiver when enabled.
func (a *App) DispatchMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting dispatch mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startDispatcher(ctx, g, deps)
	return g.Wait()
}

// FullMode runs the HTTP API, WebSocket hub, and outbox dispatcher in a
// single process.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startHTTPServer(ctx, g, deps)
	a.startDispatcher(ctx, g, deps)
	return g.Wait()
}

// startHTTPServer builds the service layer and adds the HTTP server and
// WebSocket hub goroutines to the given errgroup. The server is shut down
// gracefully when the context is cancelled.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	reputationSvc := service.NewReputationService(deps.ForecastStore, deps.UserStore, deps.ReputationStore, a.logger)
	streakSvc := service.NewStreakService(deps.ForecastStore, deps.UserStore, a.logger)
	resolutionSvc := service.NewResolutionService(
		deps.MarketStore,
		deps.ForecastStore,
		deps.ResolutionStore,
		deps.AuditStore,
		deps.LockManager,
		deps.SignalBus,
		deps.LeaderboardCache,
		deps.Archiver,
		reputationSvc,
		streakSvc,
		deps.Collector,
		deps.Notifier,
		a.logger,
		a.cfg.Resolution.HouseEdgeBps,
		a.cfg.Resolution.OutboxBatchSize,
	)
	marketSvc := service.NewMarketService(deps.MarketStore)
	forecastSvc := service.NewForecastService(deps.ForecastStore, a.logger)
	leaderboardSvc := service.NewLeaderboardService(deps.UserStore, deps.LeaderboardCache, a.logger)
	statsSvc := service.NewStatsService(deps.ForecastStore, deps.UserStore)

	handlers := server.Handlers{
		Health:        handler.NewHealthHandler(a.logger),
		Markets:       handler.NewMarketHandler(marketSvc, a.logger),
		Forecasts:     handler.NewForecastHandler(forecastSvc, a.logger),
		Resolutions:   handler.NewResolutionHandler(resolutionSvc, a.logger),
		Users:         handler.NewUserHandler(statsSvc, reputationSvc, streakSvc, a.logger),
		Leaderboard:   handler.NewLeaderboardHandler(leaderboardSvc, a.logger),
		Notifications: handler.NewNotificationHandler(deps.NotificationStore, a.logger),
	}

	hub := ws.NewHub(deps.SignalBus, a.logger, ws.Config{
		Mode:      a.cfg.Mode,
		StartedAt: time.Now().UTC(),
	})
	g.Go(func() error {
		return hub.Run(ctx)
	})

	srv := server.NewServer(
		server.Config{
			Port:            a.cfg.Server.Port,
			CORSOrigins:     a.cfg.Server.CORSOrigins,
			APIKey:          a.cfg.Server.APIKey,
			RateLimit:       a.cfg.Server.RateLimit,
			RateLimitWindow: a.cfg.Server.RateLimitWindow.Duration,
		},
		handlers,
		hub,
		deps.RateLimiter,
		deps.Collector,
		a.logger,
	)

	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}

// startDispatcher adds the outbox dispatcher goroutine, plus a periodic
// notification archival goroutine when archiving is configured.
func (a *App) startDispatcher(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	checkpoint := outbox.NewRedisCheckpointer(deps.RedisClient.Underlying())
	dispatcher := outbox.New(
		deps.SignalBus,
		deps.NotificationStore,
		checkpoint,
		deps.Collector,
		a.logger,
	)
	g.Go(func() error {
		return dispatcher.Run(ctx)
	})

	if !a.cfg.Archive.Enabled {
		return
	}
	if deps.Archiver == nil {
		a.logger.WarnContext(ctx, "archive.enabled is true but s3 is not configured, archiver disabled")
		return
	}

	interval := a.cfg.Archive.Interval.Duration
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	retention := time.Duration(a.cfg.Archive.RetentionDays) * 24 * time.Hour

	g.Go(func() error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				cutoff := time.Now().UTC().Add(-retention)
				moved, err := deps.Archiver.ArchiveNotifications(ctx, cutoff)
				if err != nil {
					a.logger.ErrorContext(ctx, "notification archival failed",
						slog.String("error", err.Error()),
					)
					if notifyErr := deps.Notifier.Notify(ctx, notify.EventError, "Archival failed",
						fmt.Sprintf("notification archival: %v", err)); notifyErr != nil {
						a.logger.WarnContext(ctx, "operator alert failed",
							slog.String("error", notifyErr.Error()),
						)
					}
					continue
				}
				if moved > 0 {
					a.logger.InfoContext(ctx, "archived old notifications",
						slog.Int64("count", moved),
						slog.Time("cutoff", cutoff),
					)
				}
			}
		}
	})
}
