package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hunchmarket/hunchd/internal/domain"
)

// ReputationStore implements domain.ReputationStore using PostgreSQL. The
// table is append-only: recomputations insert new rows and nothing ever
// updates or deletes an existing one.
type ReputationStore struct {
	pool *pgxpool.Pool
}

// NewReputationStore creates a new ReputationStore.
func NewReputationStore(pool *pgxpool.Pool) *ReputationStore {
	return &ReputationStore{pool: pool}
}

// Append inserts one reputation snapshot.
func (s *ReputationStore) Append(ctx context.Context, snap domain.ReputationSnapshot) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO reputation_history (id, user_id, reputation, accuracy_score, total_forecast_points)
		VALUES ($1, $2, $3, $4, $5)`,
		snap.ID, snap.UserID, snap.Reputation, snap.AccuracyScore, snap.TotalForecastPoints,
	)
	if err != nil {
		return fmt.Errorf("postgres: append reputation snapshot for %s: %w", snap.UserID, err)
	}
	return nil
}

// ListByUser returns a user's reputation history, newest first.
func (s *ReputationStore) ListByUser(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.ReputationSnapshot, error) {
	query := `
		SELECT id, user_id, reputation, accuracy_score, total_forecast_points, created_at
		FROM reputation_history WHERE user_id = $1 ORDER BY created_at DESC`
	args := []any{userID}
	if opts.Limit > 0 {
		query += ` LIMIT $2`
		args = append(args, opts.Limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list reputation history for %s: %w", userID, err)
	}
	defer rows.Close()

	var snaps []domain.ReputationSnapshot
	for rows.Next() {
		var snap domain.ReputationSnapshot
		if err := rows.Scan(&snap.ID, &snap.UserID, &snap.Reputation,
			&snap.AccuracyScore, &snap.TotalForecastPoints, &snap.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan reputation snapshot: %w", err)
		}
		snaps = append(snaps, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: reputation history rows: %w", err)
	}
	return snaps, nil
}
