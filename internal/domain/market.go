package domain

import "time"

// MarketStatus represents the lifecycle state of a market.
type MarketStatus string

const (
	MarketStatusOpen      MarketStatus = "open"
	MarketStatusResolved  MarketStatus = "resolved"
	MarketStatusCancelled MarketStatus = "cancelled"
)

// Market is a question with a discrete set of outcomes that users wager
// chips on. A market transitions open -> resolved exactly once; the
// resolutions table's unique market constraint enforces that.
type Market struct {
	ID        string       `json:"id"`
	Title     string       `json:"title"`
	Category  string       `json:"category,omitempty"`
	Status    MarketStatus `json:"status"`
	Outcomes  []Outcome    `json:"outcomes,omitempty"`
	EndsAt    time.Time    `json:"ends_at"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// Outcome is one possible result of a market. PointsTotal is the running sum
// of chips wagered on it; it only grows while the market is open and is
// frozen once the market resolves.
type Outcome struct {
	ID          string `json:"id"`
	MarketID    string `json:"market_id"`
	Name        string `json:"name"`
	PointsTotal int64  `json:"points_total"`
}

// HasOutcome reports whether the given outcome ID belongs to the market's
// outcome set.
func (m Market) HasOutcome(outcomeID string) bool {
	for _, o := range m.Outcomes {
		if o.ID == outcomeID {
			return true
		}
	}
	return false
}

// Consensus returns the percentage of total wagered points per outcome ID.
// Markets with no wagers yield an empty map.
func (m Market) Consensus() map[string]float64 {
	var total int64
	for _, o := range m.Outcomes {
		total += o.PointsTotal
	}
	if total == 0 {
		return map[string]float64{}
	}
	pct := make(map[string]float64, len(m.Outcomes))
	for _, o := range m.Outcomes {
		pct[o.ID] = 100 * float64(o.PointsTotal) / float64(total)
	}
	return pct
}
