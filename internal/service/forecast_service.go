package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/hunchmarket/hunchd/internal/domain"
)

// PlaceForecastRequest carries a new wager.
type PlaceForecastRequest struct {
	UserID    string `json:"-"`
	MarketID  string `json:"market_id"`
	OutcomeID string `json:"outcome_id"`
	Points    int64  `json:"points"`
}

// ForecastService handles forecast placement and listings. The store's
// placement transaction enforces the hard rules (market open, one forecast
// per user per market, sufficient chips); this layer validates the request
// shape.
type ForecastService struct {
	forecasts domain.ForecastStore
	logger    *slog.Logger
}

// NewForecastService creates a ForecastService.
func NewForecastService(forecasts domain.ForecastStore, logger *slog.Logger) *ForecastService {
	return &ForecastService{forecasts: forecasts, logger: logger}
}

// Place records a wager of chips on a market outcome. It returns
// domain.ErrAlreadyExists when the user already forecast this market and
// domain.ErrMarketNotOpen when the market no longer accepts wagers.
func (s *ForecastService) Place(ctx context.Context, req PlaceForecastRequest) (domain.Forecast, error) {
	if req.UserID == "" || req.MarketID == "" || req.OutcomeID == "" {
		return domain.Forecast{}, fmt.Errorf("forecast_service: user, market and outcome required")
	}
	if req.Points <= 0 {
		return domain.Forecast{}, fmt.Errorf("forecast_service: points must be positive, got %d", req.Points)
	}

	f := domain.Forecast{
		ID:        uuid.New().String(),
		UserID:    req.UserID,
		MarketID:  req.MarketID,
		OutcomeID: req.OutcomeID,
		Points:    req.Points,
		Status:    domain.ForecastStatusPending,
	}
	if err := s.forecasts.Create(ctx, f); err != nil {
		return domain.Forecast{}, fmt.Errorf("forecast_service: place on market %s: %w", req.MarketID, err)
	}

	s.logger.InfoContext(ctx, "forecast_service: forecast placed",
		slog.String("forecast_id", f.ID),
		slog.String("user_id", req.UserID),
		slog.String("market_id", req.MarketID),
		slog.Int64("points", req.Points),
	)

	return s.forecasts.GetByID(ctx, f.ID)
}

// ListByUser returns a user's forecasts, newest first.
func (s *ForecastService) ListByUser(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.Forecast, error) {
	fs, err := s.forecasts.ListByUser(ctx, userID, opts)
	if err != nil {
		return nil, fmt.Errorf("forecast_service: list for user %s: %w", userID, err)
	}
	return fs, nil
}

// ListByMarket returns every forecast on a market.
func (s *ForecastService) ListByMarket(ctx context.Context, marketID string) ([]domain.Forecast, error) {
	fs, err := s.forecasts.ListByMarket(ctx, marketID)
	if err != nil {
		return nil, fmt.Errorf("forecast_service: list for market %s: %w", marketID, err)
	}
	return fs, nil
}
