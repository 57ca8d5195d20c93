package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/hunchmarket/hunchd/internal/domain"
)

// StatsService aggregates a user's forecast history into display stats.
type StatsService struct {
	forecasts domain.ForecastStore
	users     domain.UserStore
}

// NewStatsService creates a StatsService.
func NewStatsService(forecasts domain.ForecastStore, users domain.UserStore) *StatsService {
	return &StatsService{forecasts: forecasts, users: users}
}

// ForUser computes stats over the user's entire forecast history. It
// returns domain.ErrNotFound when the user does not exist.
func (s *StatsService) ForUser(ctx context.Context, userID string) (domain.UserStats, error) {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return domain.UserStats{}, fmt.Errorf("stats_service: user %s: %w", userID, err)
	}

	fs, err := s.forecasts.ListByUser(ctx, userID, domain.ListOpts{})
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return domain.UserStats{}, fmt.Errorf("stats_service: list forecasts for %s: %w", userID, err)
	}

	st := domain.UserStats{UserID: userID}
	for _, f := range fs {
		st.TotalForecasts++
		st.TotalPoints += f.Points

		switch f.Status {
		case domain.ForecastStatusPending:
			st.PositionsValue += f.Points
		case domain.ForecastStatusWon:
			st.ResolvedForecasts++
			st.WonForecasts++
			if f.RewardAmount != nil {
				// Profit on a win is the share of the losing pool; the
				// principal merely comes back.
				win := *f.RewardAmount - f.Points
				st.ProfitLoss += win
				if st.BiggestWin == nil || win > *st.BiggestWin {
					w := win
					st.BiggestWin = &w
				}
			}
		case domain.ForecastStatusLost:
			st.ResolvedForecasts++
			st.LostForecasts++
			st.ProfitLoss -= f.Points
		}
	}

	if st.ResolvedForecasts > 0 {
		st.Accuracy = 100 * float64(st.WonForecasts) / float64(st.ResolvedForecasts)
	}

	return st, nil
}
