package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hunchmarket/hunchd/internal/domain"
	"github.com/redis/go-redis/v9"
)

const leaderboardTTL = 2 * time.Minute

// LeaderboardCache implements domain.LeaderboardCache using JSON-serialized
// entry slices. Boards are keyed by name ("reputation", "chips"); a
// settlement invalidates both since it moves chips and reputation at once.
//
// Key schema:
//
//	leaderboard:{board} - string value containing a JSON array of entries
type LeaderboardCache struct {
	rdb *redis.Client
}

// NewLeaderboardCache creates a LeaderboardCache backed by the given Client.
func NewLeaderboardCache(c *Client) *LeaderboardCache {
	return &LeaderboardCache{rdb: c.Underlying()}
}

func leaderboardKey(board string) string { return "leaderboard:" + board }

// Set stores a ranked board with a short TTL. Ranks are assigned by the
// store layer; the cache persists them as-is.
func (lc *LeaderboardCache) Set(ctx context.Context, board string, entries []domain.LeaderboardEntry) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("redis: marshal leaderboard %s: %w", board, err)
	}

	if err := lc.rdb.Set(ctx, leaderboardKey(board), data, leaderboardTTL).Err(); err != nil {
		return fmt.Errorf("redis: set leaderboard %s: %w", board, err)
	}
	return nil
}

// Get retrieves a board by name.
// It returns domain.ErrNotFound when the key does not exist or has expired.
func (lc *LeaderboardCache) Get(ctx context.Context, board string) ([]domain.LeaderboardEntry, error) {
	data, err := lc.rdb.Get(ctx, leaderboardKey(board)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("redis: get leaderboard %s: %w", board, err)
	}

	var entries []domain.LeaderboardEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("redis: unmarshal leaderboard %s: %w", board, err)
	}
	return entries, nil
}

// Invalidate removes a board from the cache.
func (lc *LeaderboardCache) Invalidate(ctx context.Context, board string) error {
	if err := lc.rdb.Del(ctx, leaderboardKey(board)).Err(); err != nil {
		return fmt.Errorf("redis: invalidate leaderboard %s: %w", board, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.LeaderboardCache = (*LeaderboardCache)(nil)
