package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/hunchmarket/hunchd/internal/domain"
	"github.com/hunchmarket/hunchd/internal/service"
)

// LeaderboardService defines what the leaderboard handler needs from the
// service layer.
type LeaderboardService interface {
	Top(ctx context.Context, board string, limit int) ([]domain.LeaderboardEntry, error)
}

// LeaderboardHandler serves the ranked leaderboard endpoint.
type LeaderboardHandler struct {
	boards LeaderboardService
	logger *slog.Logger
}

// NewLeaderboardHandler creates a LeaderboardHandler.
func NewLeaderboardHandler(boards LeaderboardService, logger *slog.Logger) *LeaderboardHandler {
	return &LeaderboardHandler{
		boards: boards,
		logger: logger,
	}
}

// GetLeaderboard returns the ranked board named by the "by" query parameter,
// reputation by default.
// GET /api/leaderboard?by=reputation|chips&limit=50
func (h *LeaderboardHandler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	board := r.URL.Query().Get("by")
	if board == "" {
		board = service.BoardReputation
	}
	if board != service.BoardReputation && board != service.BoardChips {
		writeError(w, http.StatusBadRequest, "unknown leaderboard")
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}

	entries, err := h.boards.Top(r.Context(), board, limit)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: leaderboard failed",
			slog.String("board", board),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to load leaderboard")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"board":   board,
		"entries": entries,
	})
}
