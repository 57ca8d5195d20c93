package domain

import "time"

// User is the settlement-relevant subset of an account: the chip balance
// (mutated by resolution credits and purchase credits), the latest cached
// reputation score, and the derived streak counters.
type User struct {
	ID             string    `json:"id"`
	Username       string    `json:"username"`
	Chips          int64     `json:"chips"`
	Reputation     float64   `json:"reputation"`
	WinningStreak  int       `json:"winning_streak"`
	ActivityStreak int       `json:"activity_streak"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// ReputationSnapshot is one row of the append-only reputation time series.
// Each recomputation appends a new row; prior rows are never mutated, so the
// drift of a user's score stays auditable.
type ReputationSnapshot struct {
	ID                  string    `json:"id"`
	UserID              string    `json:"user_id"`
	Reputation          float64   `json:"reputation"`
	AccuracyScore       float64   `json:"accuracy_score"`
	TotalForecastPoints int64     `json:"total_forecast_points"`
	CreatedAt           time.Time `json:"created_at"`
}

// UserStats aggregates a user's forecast history for display.
type UserStats struct {
	UserID            string  `json:"user_id"`
	TotalForecasts    int     `json:"total_forecasts"`
	ResolvedForecasts int     `json:"resolved_forecasts"`
	WonForecasts      int     `json:"won_forecasts"`
	LostForecasts     int     `json:"lost_forecasts"`
	TotalPoints       int64   `json:"total_points"`
	Accuracy          float64 `json:"accuracy"` // percentage 0-100
	ProfitLoss        int64   `json:"profit_loss"`
	PositionsValue    int64   `json:"positions_value"` // pending forecast points
	BiggestWin        *int64  `json:"biggest_win,omitempty"`
}

// LeaderboardEntry is one row of a ranked leaderboard.
type LeaderboardEntry struct {
	Rank       int     `json:"rank"`
	UserID     string  `json:"user_id"`
	Username   string  `json:"username"`
	Chips      int64   `json:"chips"`
	Reputation float64 `json:"reputation"`
}
