package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/google/uuid"

	"github.com/hunchmarket/hunchd/internal/domain"
)

// Reputation formula weights. Accuracy dominates; volume rewards sustained
// participation on a log scale that saturates around e^12-1 total points.
const (
	accuracyWeight   = 0.7
	volumeWeight     = 0.3
	volumeSaturation = 12.0
)

// ReputationStats are the aggregates the score is computed from.
type ReputationStats struct {
	ResolvedForecasts int
	WonForecasts      int
	TotalPoints       int64
}

// Accuracy returns the won/resolved ratio in [0, 1]. Users with no resolved
// forecasts score 0.
func (st ReputationStats) Accuracy() float64 {
	if st.ResolvedForecasts == 0 {
		return 0
	}
	return float64(st.WonForecasts) / float64(st.ResolvedForecasts)
}

// Score computes the 0-100 reputation score:
//
//	100 * (0.7*accuracy + 0.3*min(1, ln(1+totalPoints)/12))
//
// The result is clamped to [0, 100].
func Score(st ReputationStats) float64 {
	volume := math.Log(1+float64(st.TotalPoints)) / volumeSaturation
	if volume > 1 {
		volume = 1
	}
	score := 100 * (accuracyWeight*st.Accuracy() + volumeWeight*volume)
	return math.Min(100, math.Max(0, score))
}

// ReputationService recomputes user reputation scores from forecast history
// and maintains the append-only snapshot trail.
type ReputationService struct {
	forecasts  domain.ForecastStore
	users      domain.UserStore
	reputation domain.ReputationStore
	logger     *slog.Logger
}

// NewReputationService creates a ReputationService with all required
// dependencies.
func NewReputationService(
	forecasts domain.ForecastStore,
	users domain.UserStore,
	reputation domain.ReputationStore,
	logger *slog.Logger,
) *ReputationService {
	return &ReputationService{
		forecasts:  forecasts,
		users:      users,
		reputation: reputation,
		logger:     logger,
	}
}

// Compute derives the user's current stats and score from their resolved
// forecast history without persisting anything. A user with no history (or
// no user row at all) scores 0.
func (s *ReputationService) Compute(ctx context.Context, userID string) (float64, ReputationStats, error) {
	resolved, err := s.forecasts.ListResolvedByUser(ctx, userID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return 0, ReputationStats{}, fmt.Errorf("reputation_service: list resolved for %s: %w", userID, err)
	}

	var st ReputationStats
	for _, f := range resolved {
		st.ResolvedForecasts++
		st.TotalPoints += f.Points
		if f.Status == domain.ForecastStatusWon {
			st.WonForecasts++
		}
	}
	return Score(st), st, nil
}

// Refresh recomputes the user's score, appends a history snapshot, and
// updates the cached score on the user row. The snapshot is written first so
// the history never misses a recomputation even if the row update fails.
func (s *ReputationService) Refresh(ctx context.Context, userID string) (float64, error) {
	score, st, err := s.Compute(ctx, userID)
	if err != nil {
		return 0, err
	}

	snap := domain.ReputationSnapshot{
		ID:                  uuid.New().String(),
		UserID:              userID,
		Reputation:          score,
		AccuracyScore:       st.Accuracy(),
		TotalForecastPoints: st.TotalPoints,
	}
	if err := s.reputation.Append(ctx, snap); err != nil {
		return 0, fmt.Errorf("reputation_service: append snapshot for %s: %w", userID, err)
	}

	if err := s.users.UpdateReputation(ctx, userID, score); err != nil {
		return 0, fmt.Errorf("reputation_service: update user %s: %w", userID, err)
	}

	s.logger.InfoContext(ctx, "reputation_service: refreshed score",
		slog.String("user_id", userID),
		slog.Float64("reputation", score),
		slog.Int("resolved", st.ResolvedForecasts),
	)

	return score, nil
}

// History returns the user's reputation snapshots, newest first.
func (s *ReputationService) History(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.ReputationSnapshot, error) {
	snaps, err := s.reputation.ListByUser(ctx, userID, opts)
	if err != nil {
		return nil, fmt.Errorf("reputation_service: history for %s: %w", userID, err)
	}
	return snaps, nil
}
