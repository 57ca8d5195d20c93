package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// MarketStore persists markets and their outcomes.
type MarketStore interface {
	Create(ctx context.Context, market Market) error
	GetByID(ctx context.Context, id string) (Market, error)
	ListOpen(ctx context.Context, opts ListOpts) ([]Market, error)
	ListByStatus(ctx context.Context, status MarketStatus, opts ListOpts) ([]Market, error)
	Count(ctx context.Context) (int64, error)
}

// ForecastStore persists forecasts.
type ForecastStore interface {
	Create(ctx context.Context, f Forecast) error
	GetByID(ctx context.Context, id string) (Forecast, error)
	ListByMarket(ctx context.Context, marketID string) ([]Forecast, error)
	ListByUser(ctx context.Context, userID string, opts ListOpts) ([]Forecast, error)
	// ListResolvedByUser returns the user's won/lost forecasts ordered
	// newest first, the order the streak and reputation computations expect.
	ListResolvedByUser(ctx context.Context, userID string) ([]Forecast, error)
	// ActivityDays returns the distinct UTC days (midnight-truncated, newest
	// first) on which the user placed at least one forecast, at or after
	// since.
	ActivityDays(ctx context.Context, userID string, since time.Time) ([]time.Time, error)
}

// SettleFunc computes a settlement from a transaction-consistent snapshot of
// a market, its outcomes, and every forecast placed on it. It must be pure:
// the store calls it inside the settlement transaction.
type SettleFunc func(market Market, forecasts []Forecast) (Settlement, error)

// ResolutionStore persists resolutions and owns the atomic settlement
// transaction.
type ResolutionStore interface {
	// Resolve executes the whole settlement as one transaction: it locks the
	// market row, flips its status open -> resolved as the first durable
	// effect, snapshots the market's forecasts, invokes settle, inserts the
	// immutable resolution row, applies every forecast update and user
	// credit, and commits. A concurrent caller either blocks on the row lock
	// until the first transaction commits or fails with ErrAlreadyResolved;
	// partial application is impossible.
	Resolve(ctx context.Context, res Resolution, settle SettleFunc) (Settlement, error)
	GetByMarket(ctx context.Context, marketID string) (Resolution, error)
}

// UserStore persists users.
type UserStore interface {
	GetByID(ctx context.Context, id string) (User, error)
	UpdateStreaks(ctx context.Context, id string, winning, activity int) error
	UpdateReputation(ctx context.Context, id string, reputation float64) error
	ListTopByReputation(ctx context.Context, limit int) ([]LeaderboardEntry, error)
	ListTopByChips(ctx context.Context, limit int) ([]LeaderboardEntry, error)
}

// ReputationStore persists the append-only reputation time series.
type ReputationStore interface {
	Append(ctx context.Context, snap ReputationSnapshot) error
	ListByUser(ctx context.Context, userID string, opts ListOpts) ([]ReputationSnapshot, error)
}

// NotificationStore persists user notifications.
type NotificationStore interface {
	InsertBatch(ctx context.Context, notes []Notification) error
	ListByUser(ctx context.Context, userID string, opts ListOpts) ([]Notification, error)
	CountUnread(ctx context.Context, userID string) (int64, error)
	// ListBefore returns notifications created strictly before the cutoff,
	// for archival.
	ListBefore(ctx context.Context, before time.Time) ([]Notification, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}
