package domain

import "time"

// Resolution is the immutable record of declaring a market's winning
// outcome. Exactly one exists per resolved market; rows are never updated
// or deleted.
type Resolution struct {
	ID               string    `json:"id"`
	MarketID         string    `json:"market_id"`
	WinningOutcomeID string    `json:"winning_outcome_id"`
	ResolvedBy       string    `json:"resolved_by"`
	EvidenceURLs     []string  `json:"evidence_urls"`
	Note             string    `json:"note"`
	CreatedAt        time.Time `json:"created_at"`
}

// ForecastUpdate is one forecast's terminal state transition within a
// settlement.
type ForecastUpdate struct {
	ForecastID   string
	Status       ForecastStatus
	RewardAmount *int64 // nil for losing forecasts
}

// UserCredit is a chip balance delta applied to a user during settlement.
type UserCredit struct {
	UserID string
	Amount int64
}

// ResultKind discriminates per-user settlement results.
type ResultKind string

const (
	ResultKindWon  ResultKind = "won"
	ResultKindLost ResultKind = "lost"
)

// ForecastResult is a single user's settlement outcome, handed to the
// notification dispatcher after the settlement transaction commits. The
// Kind field selects which of the amount fields are meaningful: ChipsGained
// and RewardAmount for won, ChipsLost for lost.
type ForecastResult struct {
	UserID         string     `json:"user_id"`
	Kind           ResultKind `json:"kind"`
	ForecastPoints int64      `json:"forecast_points"`
	ChipsGained    int64      `json:"chips_gained,omitempty"`
	ChipsLost      int64      `json:"chips_lost,omitempty"`
	RewardAmount   int64      `json:"reward_amount,omitempty"`
}

// Settlement is the fully computed effect of resolving a market: the pool
// arithmetic plus every row mutation the settlement transaction must apply.
// It is produced by pure computation over a snapshot of the market's
// forecasts and applied atomically by the resolution store.
type Settlement struct {
	MarketID         string
	WinningOutcomeID string

	// WinningPool is the sum of points wagered on the winning outcome,
	// returned to winners as principal. LosingPool is the sum wagered on
	// every other outcome. Distributable is the losing pool after the house
	// edge is withheld.
	WinningPool   int64
	LosingPool    int64
	Distributable int64

	// HouseCut is every chip the house retains: the edge, floor-rounding
	// dust from proportional shares, and the entire distributable pool when
	// nobody forecast the winning outcome.
	HouseCut int64

	// NoWinners marks the degenerate case where the winning pool is zero.
	// The resolution is still recorded; no balances change.
	NoWinners bool

	Updates []ForecastUpdate
	Credits []UserCredit
	Results []ForecastResult
}

// ChipsPaid returns the total chips credited to winners.
func (s Settlement) ChipsPaid() int64 {
	var total int64
	for _, c := range s.Credits {
		total += c.Amount
	}
	return total
}

// ResolutionResult is returned to the caller of a resolve operation once the
// settlement transaction has committed.
type ResolutionResult struct {
	Resolution Resolution       `json:"resolution"`
	Settlement Settlement       `json:"-"`
	Results    []ForecastResult `json:"results"`

	WinningPool int64 `json:"winning_pool"`
	LosingPool  int64 `json:"losing_pool"`
	ChipsPaid   int64 `json:"chips_paid"`
	HouseCut    int64 `json:"house_cut"`
	NoWinners   bool  `json:"no_winners"`
	Winners     int   `json:"winners"`
	Losers      int   `json:"losers"`
}

// SettlementBatch is one outbox message: a bounded slice of per-user results
// for a resolved market, appended to the signal bus after commit and drained
// by the notification dispatcher.
type SettlementBatch struct {
	MarketID           string           `json:"market_id"`
	MarketTitle        string           `json:"market_title"`
	WinningOutcomeName string           `json:"winning_outcome_name"`
	Results            []ForecastResult `json:"results"`
	EmittedAt          time.Time        `json:"emitted_at"`
}
