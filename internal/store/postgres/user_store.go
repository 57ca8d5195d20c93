package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hunchmarket/hunchd/internal/domain"
)

// UserStore implements domain.UserStore using PostgreSQL.
type UserStore struct {
	pool *pgxpool.Pool
}

// NewUserStore creates a new UserStore.
func NewUserStore(pool *pgxpool.Pool) *UserStore {
	return &UserStore{pool: pool}
}

// GetByID retrieves a user by ID.
func (s *UserStore) GetByID(ctx context.Context, id string) (domain.User, error) {
	var u domain.User
	err := s.pool.QueryRow(ctx, `
		SELECT id, username, chips, reputation, winning_streak, activity_streak, created_at, updated_at
		FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.Username, &u.Chips, &u.Reputation,
		&u.WinningStreak, &u.ActivityStreak, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, domain.ErrNotFound
		}
		return domain.User{}, fmt.Errorf("postgres: get user %s: %w", id, err)
	}
	return u, nil
}

// UpdateStreaks stores freshly recomputed streak counters on the user row.
func (s *UserStore) UpdateStreaks(ctx context.Context, id string, winning, activity int) error {
	ct, err := s.pool.Exec(ctx, `
		UPDATE users SET winning_streak = $2, activity_streak = $3, updated_at = NOW()
		WHERE id = $1`, id, winning, activity)
	if err != nil {
		return fmt.Errorf("postgres: update streaks for %s: %w", id, err)
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// UpdateReputation stores the latest cached reputation score on the user row.
func (s *UserStore) UpdateReputation(ctx context.Context, id string, reputation float64) error {
	ct, err := s.pool.Exec(ctx, `
		UPDATE users SET reputation = $2, updated_at = NOW()
		WHERE id = $1`, id, reputation)
	if err != nil {
		return fmt.Errorf("postgres: update reputation for %s: %w", id, err)
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListTopByReputation returns the reputation leaderboard.
func (s *UserStore) ListTopByReputation(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	return s.listTop(ctx, "reputation DESC, chips DESC", limit)
}

// ListTopByChips returns the chip-balance leaderboard.
func (s *UserStore) ListTopByChips(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	return s.listTop(ctx, "chips DESC, reputation DESC", limit)
}

func (s *UserStore) listTop(ctx context.Context, order string, limit int) ([]domain.LeaderboardEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, username, chips, reputation
		FROM users ORDER BY `+order+` LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: leaderboard query: %w", err)
	}
	defer rows.Close()

	var entries []domain.LeaderboardEntry
	rank := 0
	for rows.Next() {
		var e domain.LeaderboardEntry
		if err := rows.Scan(&e.UserID, &e.Username, &e.Chips, &e.Reputation); err != nil {
			return nil, fmt.Errorf("postgres: scan leaderboard entry: %w", err)
		}
		rank++
		e.Rank = rank
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: leaderboard rows: %w", err)
	}
	return entries, nil
}
