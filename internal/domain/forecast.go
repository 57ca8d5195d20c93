package domain

import "time"

// ForecastStatus represents the lifecycle state of a forecast.
type ForecastStatus string

const (
	ForecastStatusPending ForecastStatus = "pending"
	ForecastStatusWon     ForecastStatus = "won"
	ForecastStatusLost    ForecastStatus = "lost"
)

// Resolved reports whether the status is a terminal win/loss state.
func (s ForecastStatus) Resolved() bool {
	return s == ForecastStatusWon || s == ForecastStatusLost
}

// Forecast is a user's wager of chips on one outcome of a market. At most
// one forecast exists per (user, market) pair. A forecast is created pending
// and transitions to won or lost exactly once, at resolution time.
type Forecast struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id"`
	MarketID  string         `json:"market_id"`
	OutcomeID string         `json:"outcome_id"`
	Points    int64          `json:"points"`
	Status    ForecastStatus `json:"status"`
	// RewardAmount is set only when the forecast wins: principal plus the
	// proportional share of the distributable losing pool.
	RewardAmount *int64    `json:"reward_amount,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
