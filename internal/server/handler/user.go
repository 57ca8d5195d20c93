package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hunchmarket/hunchd/internal/domain"
	"github.com/hunchmarket/hunchd/internal/service"
)

// StatsService defines what the user handler needs for the stats endpoint.
type StatsService interface {
	ForUser(ctx context.Context, userID string) (domain.UserStats, error)
}

// ReputationService defines what the user handler needs for the reputation
// endpoints.
type ReputationService interface {
	Compute(ctx context.Context, userID string) (float64, service.ReputationStats, error)
	History(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.ReputationSnapshot, error)
}

// StreakService defines what the user handler needs for the streaks
// endpoint.
type StreakService interface {
	Compute(ctx context.Context, userID string) (service.Streaks, error)
}

// UserHandler serves per-user stats, reputation, and streak endpoints.
type UserHandler struct {
	stats      StatsService
	reputation ReputationService
	streaks    StreakService
	logger     *slog.Logger
}

// NewUserHandler creates a UserHandler.
func NewUserHandler(stats StatsService, reputation ReputationService, streaks StreakService, logger *slog.Logger) *UserHandler {
	return &UserHandler{
		stats:      stats,
		reputation: reputation,
		streaks:    streaks,
		logger:     logger,
	}
}

// GetStats returns aggregate forecast stats for a user.
// GET /api/users/{id}/stats
func (h *UserHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing user id")
		return
	}

	stats, err := h.stats.ForUser(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get stats failed",
			slog.String("user_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get stats")
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

// GetReputation returns the user's current score plus snapshot history,
// newest first.
// GET /api/users/{id}/reputation
func (h *UserHandler) GetReputation(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing user id")
		return
	}

	score, stats, err := h.reputation.Compute(r.Context(), id)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: compute reputation failed",
			slog.String("user_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to compute reputation")
		return
	}

	history, err := h.reputation.History(r.Context(), id, parseListOpts(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: reputation history failed",
			slog.String("user_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to load reputation history")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"user_id":        id,
		"reputation":     score,
		"accuracy_score": stats.Accuracy(),
		"total_points":   stats.TotalPoints,
		"history":        history,
	})
}

// GetStreaks returns the user's current winning and activity streaks.
// GET /api/users/{id}/streaks
func (h *UserHandler) GetStreaks(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing user id")
		return
	}

	streaks, err := h.streaks.Compute(r.Context(), id)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: compute streaks failed",
			slog.String("user_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to compute streaks")
		return
	}

	writeJSON(w, http.StatusOK, streaks)
}
