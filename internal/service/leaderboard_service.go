package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hunchmarket/hunchd/internal/domain"
)

// Leaderboard names. These double as cache keys.
const (
	BoardReputation = "reputation"
	BoardChips      = "chips"
)

const defaultBoardSize = 50

// LeaderboardService serves ranked boards through a read-through cache. A
// settlement invalidates both boards; between settlements the cached copy is
// served until its TTL lapses.
type LeaderboardService struct {
	users  domain.UserStore
	boards domain.LeaderboardCache
	logger *slog.Logger
}

// NewLeaderboardService creates a LeaderboardService.
func NewLeaderboardService(users domain.UserStore, boards domain.LeaderboardCache, logger *slog.Logger) *LeaderboardService {
	return &LeaderboardService{users: users, boards: boards, logger: logger}
}

// Top returns the ranked board with the given name, from cache when
// possible. Unknown board names are rejected.
func (s *LeaderboardService) Top(ctx context.Context, board string, limit int) ([]domain.LeaderboardEntry, error) {
	if board != BoardReputation && board != BoardChips {
		return nil, fmt.Errorf("leaderboard_service: unknown board %q", board)
	}
	if limit <= 0 || limit > defaultBoardSize {
		limit = defaultBoardSize
	}

	entries, err := s.boards.Get(ctx, board)
	if err == nil && len(entries) >= limit {
		return entries[:limit], nil
	}

	switch board {
	case BoardReputation:
		entries, err = s.users.ListTopByReputation(ctx, defaultBoardSize)
	case BoardChips:
		entries, err = s.users.ListTopByChips(ctx, defaultBoardSize)
	}
	if err != nil {
		return nil, fmt.Errorf("leaderboard_service: list %s: %w", board, err)
	}

	if cacheErr := s.boards.Set(ctx, board, entries); cacheErr != nil {
		s.logger.WarnContext(ctx, "leaderboard_service: cache set failed",
			slog.String("board", board),
			slog.String("error", cacheErr.Error()),
		)
	}

	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}
