package service

import (
	"context"
	"fmt"

	"github.com/hunchmarket/hunchd/internal/domain"
)

// MarketView is a market plus its derived consensus percentages.
type MarketView struct {
	domain.Market
	Consensus map[string]float64 `json:"consensus"`
}

// MarketService handles the market read surface and creation.
type MarketService struct {
	markets domain.MarketStore
}

// NewMarketService creates a MarketService.
func NewMarketService(markets domain.MarketStore) *MarketService {
	return &MarketService{markets: markets}
}

// Create persists a new open market with its outcomes.
func (s *MarketService) Create(ctx context.Context, market domain.Market) error {
	if market.Title == "" {
		return fmt.Errorf("market_service: title required")
	}
	if len(market.Outcomes) < 2 {
		return fmt.Errorf("market_service: at least two outcomes required")
	}
	if err := s.markets.Create(ctx, market); err != nil {
		return fmt.Errorf("market_service: create %s: %w", market.ID, err)
	}
	return nil
}

// Get retrieves a market with its outcomes and consensus percentages.
func (s *MarketService) Get(ctx context.Context, id string) (MarketView, error) {
	m, err := s.markets.GetByID(ctx, id)
	if err != nil {
		return MarketView{}, fmt.Errorf("market_service: get %s: %w", id, err)
	}
	return MarketView{Market: m, Consensus: m.Consensus()}, nil
}

// ListOpen returns open markets.
func (s *MarketService) ListOpen(ctx context.Context, opts domain.ListOpts) ([]domain.Market, error) {
	markets, err := s.markets.ListOpen(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("market_service: list open: %w", err)
	}
	return markets, nil
}

// ListByStatus returns markets in the given lifecycle state.
func (s *MarketService) ListByStatus(ctx context.Context, status domain.MarketStatus, opts domain.ListOpts) ([]domain.Market, error) {
	markets, err := s.markets.ListByStatus(ctx, status, opts)
	if err != nil {
		return nil, fmt.Errorf("market_service: list by status %s: %w", status, err)
	}
	return markets, nil
}

// Count returns the total number of markets.
func (s *MarketService) Count(ctx context.Context) (int64, error) {
	count, err := s.markets.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("market_service: count: %w", err)
	}
	return count, nil
}
