package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hunchmarket/hunchd/internal/domain"
)

// ForecastStore implements domain.ForecastStore using PostgreSQL.
type ForecastStore struct {
	pool *pgxpool.Pool
}

// NewForecastStore creates a new ForecastStore.
func NewForecastStore(pool *pgxpool.Pool) *ForecastStore {
	return &ForecastStore{pool: pool}
}

const forecastCols = `id, user_id, market_id, outcome_id, points, status, reward_amount, created_at, updated_at`

func scanForecast(row pgx.Row) (domain.Forecast, error) {
	var f domain.Forecast
	var status string
	err := row.Scan(&f.ID, &f.UserID, &f.MarketID, &f.OutcomeID,
		&f.Points, &status, &f.RewardAmount, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return domain.Forecast{}, err
	}
	f.Status = domain.ForecastStatus(status)
	return f, nil
}

// Create inserts a forecast and bumps its outcome's running total in one
// transaction. The market must still be open; the row lock taken here
// serializes placement against settlement.
func (s *ForecastStore) Create(ctx context.Context, f domain.Forecast) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var status string
	err = tx.QueryRow(ctx,
		`SELECT status FROM markets WHERE id = $1 FOR UPDATE`, f.MarketID,
	).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("postgres: lock market %s: %w", f.MarketID, err)
	}
	if domain.MarketStatus(status) != domain.MarketStatusOpen {
		return domain.ErrMarketNotOpen
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO forecasts (id, user_id, market_id, outcome_id, points, status)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		f.ID, f.UserID, f.MarketID, f.OutcomeID, f.Points, string(f.Status),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("postgres: insert forecast %s: %w", f.ID, err)
	}

	ct, err := tx.Exec(ctx, `
		UPDATE outcomes SET points_total = points_total + $2
		WHERE id = $1 AND market_id = $3`,
		f.OutcomeID, f.Points, f.MarketID,
	)
	if err != nil {
		return fmt.Errorf("postgres: bump outcome %s: %w", f.OutcomeID, err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("postgres: outcome %s: %w", f.OutcomeID, domain.ErrInvalidOutcome)
	}

	// Wagered chips leave the balance at placement time.
	ct, err = tx.Exec(ctx, `
		UPDATE users SET chips = chips - $2, updated_at = NOW()
		WHERE id = $1 AND chips >= $2`,
		f.UserID, f.Points,
	)
	if err != nil {
		return fmt.Errorf("postgres: debit user %s: %w", f.UserID, err)
	}
	if ct.RowsAffected() == 0 {
		// Either the user row is missing or the balance cannot cover the
		// wager; both reject the forecast.
		return fmt.Errorf("postgres: debit user %s: %w", f.UserID, domain.ErrInsufficientChips)
	}

	return tx.Commit(ctx)
}

// GetByID retrieves a forecast by its primary key.
func (s *ForecastStore) GetByID(ctx context.Context, id string) (domain.Forecast, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+forecastCols+` FROM forecasts WHERE id = $1`, id)
	f, err := scanForecast(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Forecast{}, domain.ErrNotFound
		}
		return domain.Forecast{}, fmt.Errorf("postgres: get forecast %s: %w", id, err)
	}
	return f, nil
}

// ListByMarket returns every forecast on a market, oldest first.
func (s *ForecastStore) ListByMarket(ctx context.Context, marketID string) ([]domain.Forecast, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+forecastCols+` FROM forecasts
		WHERE market_id = $1 ORDER BY created_at`, marketID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list forecasts for market %s: %w", marketID, err)
	}
	return collectForecasts(rows)
}

// ListByUser returns a user's forecasts, newest first.
func (s *ForecastStore) ListByUser(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.Forecast, error) {
	query := `SELECT ` + forecastCols + ` FROM forecasts WHERE user_id = $1 ORDER BY created_at DESC`
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
		return nil, fmt.Errorf("postgres: list forecasts for user %s: %w", userID, err)
	}
	return collectForecasts(rows)
}

// ListResolvedByUser returns the user's won/lost forecasts, newest first.
func (s *ForecastStore) ListResolvedByUser(ctx context.Context, userID string) ([]domain.Forecast, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+forecastCols+` FROM forecasts
		WHERE user_id = $1 AND status IN ('won', 'lost')
		ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list resolved forecasts for %s: %w", userID, err)
	}
	return collectForecasts(rows)
}

// ActivityDays returns the distinct UTC days on which the user placed a
// forecast, newest first.
func (s *ForecastStore) ActivityDays(ctx context.Context, userID string, since time.Time) ([]time.Time, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT date_trunc('day', created_at AT TIME ZONE 'UTC') AS day
		FROM forecasts
		WHERE user_id = $1 AND created_at >= $2
		ORDER BY day DESC`, userID, since)
	if err != nil {
		return nil, fmt.Errorf("postgres: activity days for %s: %w", userID, err)
	}
	defer rows.Close()

	var days []time.Time
	for rows.Next() {
		var d time.Time
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("postgres: scan activity day: %w", err)
		}
		days = append(days, d.UTC())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: activity days rows: %w", err)
	}
	return days, nil
}

func collectForecasts(rows pgx.Rows) ([]domain.Forecast, error) {
	defer rows.Close()

	var forecasts []domain.Forecast
	for rows.Next() {
		f, err := scanForecast(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan forecast: %w", err)
		}
		forecasts = append(forecasts, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: forecast rows: %w", err)
	}
	return forecasts, nil
}
