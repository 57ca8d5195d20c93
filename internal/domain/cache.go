package domain

import (
	"context"
	"time"
)

// LeaderboardCache is a read-through cache for ranked leaderboards. Entries
// carry a TTL; Invalidate drops a board explicitly when a settlement changes
// the underlying balances or scores.
type LeaderboardCache interface {
	Set(ctx context.Context, board string, entries []LeaderboardEntry) error
	Get(ctx context.Context, board string) ([]LeaderboardEntry, error)
	Invalidate(ctx context.Context, board string) error
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	Wait(ctx context.Context, key string) error
}

// LockManager provides distributed locking. The settlement path uses it as
// an advisory guard; the database uniqueness constraint on resolutions
// remains the authoritative double-resolution barrier.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// Stream and channel names shared by the settlement producer, the outbox
// dispatcher, and the WebSocket hub.
const (
	SettlementStream    = "settlements"
	ChannelMarketEvents = "events:markets"
	ChannelLeaderboard  = "events:leaderboard"
)

// StreamMessage represents a single entry from a durable stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// SignalBus provides pub/sub for live event fan-out and durable streams for
// the settlement notification outbox.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
}
