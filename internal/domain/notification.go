package domain

import "time"

// NotificationKind discriminates user notification payloads.
type NotificationKind string

const (
	NotificationForecastWon  NotificationKind = "forecast_won"
	NotificationForecastLost NotificationKind = "forecast_lost"
)

// WonDetail is the payload attached to a forecast_won notification.
type WonDetail struct {
	MarketID       string `json:"market_id"`
	MarketTitle    string `json:"market_title"`
	WinningOutcome string `json:"winning_outcome"`
	ForecastPoints int64  `json:"forecast_points"`
	ChipsGained    int64  `json:"chips_gained"`
	RewardAmount   int64  `json:"reward_amount"`
}

// LostDetail is the payload attached to a forecast_lost notification.
type LostDetail struct {
	MarketID       string `json:"market_id"`
	MarketTitle    string `json:"market_title"`
	WinningOutcome string `json:"winning_outcome"`
	ForecastPoints int64  `json:"forecast_points"`
	ChipsLost      int64  `json:"chips_lost"`
}

// Notification is a user-facing settlement notice. Exactly one of Won or
// Lost is non-nil, matching Kind; keeping the payloads as separate typed
// structs rather than a free-form map makes the dispatcher's contract
// checkable at compile time.
type Notification struct {
	ID        string           `json:"id"`
	UserID    string           `json:"user_id"`
	Kind      NotificationKind `json:"kind"`
	Message   string           `json:"message"`
	Read      bool             `json:"read"`
	Won       *WonDetail       `json:"won,omitempty"`
	Lost      *LostDetail      `json:"lost,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}
