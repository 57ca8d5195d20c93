package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hunchmarket/hunchd/internal/domain"
)

// NotificationStore implements domain.NotificationStore using PostgreSQL.
type NotificationStore struct {
	pool *pgxpool.Pool
}

// NewNotificationStore creates a new NotificationStore.
func NewNotificationStore(pool *pgxpool.Pool) *NotificationStore {
	return &NotificationStore{pool: pool}
}

// InsertBatch inserts notifications using a single pgx batch. The dispatcher
// calls this with bounded slices so no insert grows unbounded.
func (s *NotificationStore) InsertBatch(ctx context.Context, notes []domain.Notification) error {
	if len(notes) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, n := range notes {
		detail, err := marshalDetail(n)
		if err != nil {
			return err
		}
		batch.Queue(`
			INSERT INTO notifications (id, user_id, kind, message, read, detail)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (id) DO NOTHING`,
			n.ID, n.UserID, string(n.Kind), n.Message, n.Read, detail,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	for i := range notes {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: insert notification batch item %d: %w", i, err)
		}
	}
	return nil
}

// ListByUser returns a user's notifications, newest first.
func (s *NotificationStore) ListByUser(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.Notification, error) {
	query := notificationSelect + ` WHERE user_id = $1 ORDER BY created_at DESC`
	args := []any{userID}
	if opts.Limit > 0 {
		query += ` LIMIT $2`
		args = append(args, opts.Limit)
		if opts.Offset > 0 {
			query += ` OFFSET $3`
			args = append(args, opts.Offset)
		}
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list notifications for %s: %w", userID, err)
	}
	return collectNotifications(rows)
}

// CountUnread returns the number of unread notifications for a user.
func (s *NotificationStore) CountUnread(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND NOT read`, userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("postgres: count unread for %s: %w", userID, err)
	}
	return count, nil
}

// ListBefore returns notifications created strictly before the cutoff.
func (s *NotificationStore) ListBefore(ctx context.Context, before time.Time) ([]domain.Notification, error) {
	rows, err := s.pool.Query(ctx,
		notificationSelect+` WHERE created_at < $1 ORDER BY created_at`, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list notifications before %s: %w", before, err)
	}
	return collectNotifications(rows)
}

// DeleteBefore removes notifications created strictly before the cutoff and
// returns the number of rows deleted.
func (s *NotificationStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	ct, err := s.pool.Exec(ctx,
		`DELETE FROM notifications WHERE created_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete notifications before %s: %w", before, err)
	}
	return ct.RowsAffected(), nil
}

const notificationSelect = `
	SELECT id, user_id, kind, message, read, detail, created_at
	FROM notifications`

func marshalDetail(n domain.Notification) ([]byte, error) {
	switch n.Kind {
	case domain.NotificationForecastWon:
		if n.Won == nil {
			return nil, fmt.Errorf("postgres: notification %s: won payload missing", n.ID)
		}
		return json.Marshal(n.Won)
	case domain.NotificationForecastLost:
		if n.Lost == nil {
			return nil, fmt.Errorf("postgres: notification %s: lost payload missing", n.ID)
		}
		return json.Marshal(n.Lost)
	default:
		return nil, fmt.Errorf("postgres: notification %s: unknown kind %q", n.ID, n.Kind)
	}
}

func collectNotifications(rows pgx.Rows) ([]domain.Notification, error) {
	defer rows.Close()

	var notes []domain.Notification
	for rows.Next() {
		var n domain.Notification
		var kind string
		var detail []byte
		if err := rows.Scan(&n.ID, &n.UserID, &kind, &n.Message, &n.Read, &detail, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan notification: %w", err)
		}
		n.Kind = domain.NotificationKind(kind)
		switch n.Kind {
		case domain.NotificationForecastWon:
			n.Won = &domain.WonDetail{}
			if err := json.Unmarshal(detail, n.Won); err != nil {
				return nil, fmt.Errorf("postgres: unmarshal won detail: %w", err)
			}
		case domain.NotificationForecastLost:
			n.Lost = &domain.LostDetail{}
			if err := json.Unmarshal(detail, n.Lost); err != nil {
				return nil, fmt.Errorf("postgres: unmarshal lost detail: %w", err)
			}
		}
		notes = append(notes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: notification rows: %w", err)
	}
	return notes, nil
}
