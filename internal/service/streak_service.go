package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hunchmarket/hunchd/internal/domain"
)

// activityScanDays caps how far back the activity streak scan reaches. A
// streak longer than a year reports as 365.
const activityScanDays = 365

// WinningStreak counts consecutive wins from the newest resolved forecast
// backwards, stopping at the first loss. The input must be ordered newest
// first.
func WinningStreak(resolved []domain.Forecast) int {
	streak := 0
	for _, f := range resolved {
		if f.Status != domain.ForecastStatusWon {
			break
		}
		streak++
	}
	return streak
}

// ActivityStreak counts consecutive UTC days with at least one forecast,
// ending at now's day. days must be midnight-truncated UTC days ordered
// newest first; duplicates are not expected. A user with no forecast today
// has streak 0 regardless of earlier activity.
func ActivityStreak(days []time.Time, now time.Time) int {
	if len(days) == 0 {
		return 0
	}

	expect := now.UTC().Truncate(24 * time.Hour)
	streak := 0
	for _, day := range days {
		if !day.Equal(expect) {
			break
		}
		streak++
		if streak >= activityScanDays {
			break
		}
		expect = expect.AddDate(0, 0, -1)
	}
	return streak
}

// Streaks pairs the two counters.
type Streaks struct {
	Winning  int `json:"winning_streak"`
	Activity int `json:"activity_streak"`
}

// StreakService recomputes win and activity streaks from forecast history.
type StreakService struct {
	forecasts domain.ForecastStore
	users     domain.UserStore
	logger    *slog.Logger
	now       func() time.Time
}

// NewStreakService creates a StreakService with all required dependencies.
func NewStreakService(
	forecasts domain.ForecastStore,
	users domain.UserStore,
	logger *slog.Logger,
) *StreakService {
	return &StreakService{
		forecasts: forecasts,
		users:     users,
		logger:    logger,
		now:       time.Now,
	}
}

// Compute derives both streaks from the store without persisting them.
func (s *StreakService) Compute(ctx context.Context, userID string) (Streaks, error) {
	resolved, err := s.forecasts.ListResolvedByUser(ctx, userID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return Streaks{}, fmt.Errorf("streak_service: list resolved for %s: %w", userID, err)
	}

	now := s.now()
	since := now.UTC().AddDate(0, 0, -activityScanDays)
	days, err := s.forecasts.ActivityDays(ctx, userID, since)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return Streaks{}, fmt.Errorf("streak_service: activity days for %s: %w", userID, err)
	}

	return Streaks{
		Winning:  WinningStreak(resolved),
		Activity: ActivityStreak(days, now),
	}, nil
}

// Refresh recomputes both streaks and persists them on the user row.
func (s *StreakService) Refresh(ctx context.Context, userID string) (Streaks, error) {
	streaks, err := s.Compute(ctx, userID)
	if err != nil {
		return Streaks{}, err
	}

	if err := s.users.UpdateStreaks(ctx, userID, streaks.Winning, streaks.Activity); err != nil {
		return Streaks{}, fmt.Errorf("streak_service: update user %s: %w", userID, err)
	}

	s.logger.DebugContext(ctx, "streak_service: refreshed streaks",
		slog.String("user_id", userID),
		slog.Int("winning", streaks.Winning),
		slog.Int("activity", streaks.Activity),
	)

	return streaks, nil
}
