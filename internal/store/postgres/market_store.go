package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hunchmarket/hunchd/internal/domain"
)

// MarketStore implements domain.MarketStore using PostgreSQL.
type MarketStore struct {
	pool *pgxpool.Pool
}

// NewMarketStore creates a new MarketStore backed by the given connection pool.
func NewMarketStore(pool *pgxpool.Pool) *MarketStore {
	return &MarketStore{pool: pool}
}

// Create inserts a market together with its outcomes in one transaction.
func (s *MarketStore) Create(ctx context.Context, m domain.Market) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO markets (id, title, category, status, ends_at)
		VALUES ($1, $2, $3, $4, $5)`,
		m.ID, m.Title, m.Category, string(m.Status), m.EndsAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("postgres: insert market %s: %w", m.ID, err)
	}

	for _, o := range m.Outcomes {
		_, err = tx.Exec(ctx, `
			INSERT INTO outcomes (id, market_id, name, points_total)
			VALUES ($1, $2, $3, $4)`,
			o.ID, m.ID, o.Name, o.PointsTotal,
		)
		if err != nil {
			return fmt.Errorf("postgres: insert outcome %s: %w", o.ID, err)
		}
	}

	return tx.Commit(ctx)
}

const marketCols = `id, title, category, status, ends_at, created_at, updated_at`

// scanMarket scans a single market row into a domain.Market.
func scanMarket(row pgx.Row) (domain.Market, error) {
	var m domain.Market
	var status string
	err := row.Scan(&m.ID, &m.Title, &m.Category, &status, &m.EndsAt, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return domain.Market{}, err
	}
	m.Status = domain.MarketStatus(status)
	return m, nil
}

// GetByID retrieves a market with its outcomes.
func (s *MarketStore) GetByID(ctx context.Context, id string) (domain.Market, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+marketCols+` FROM markets WHERE id = $1`, id)
	m, err := scanMarket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Market{}, domain.ErrNotFound
		}
		return domain.Market{}, fmt.Errorf("postgres: get market %s: %w", id, err)
	}

	outcomes, err := loadOutcomes(ctx, s.pool, id)
	if err != nil {
		return domain.Market{}, err
	}
	m.Outcomes = outcomes
	return m, nil
}

// ListOpen returns open markets with pagination and optional time filtering.
func (s *MarketStore) ListOpen(ctx context.Context, opts domain.ListOpts) ([]domain.Market, error) {
	return s.ListByStatus(ctx, domain.MarketStatusOpen, opts)
}

// ListByStatus returns markets in the given status, newest first.
func (s *MarketStore) ListByStatus(ctx context.Context, status domain.MarketStatus, opts domain.ListOpts) ([]domain.Market, error) {
	query := `SELECT ` + marketCols + ` FROM markets WHERE status = $1`
	args := []any{string(status)}
	argIdx := 2

	if opts.Since != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND created_at <= $%d", argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}

	query += " ORDER BY created_at DESC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list markets: %w", err)
	}
	defer rows.Close()

	var markets []domain.Market
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan market: %w", err)
		}
		markets = append(markets, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list markets rows: %w", err)
	}

	for i := range markets {
		outcomes, err := loadOutcomes(ctx, s.pool, markets[i].ID)
		if err != nil {
			return nil, err
		}
		markets[i].Outcomes = outcomes
	}
	return markets, nil
}

// Count returns the total number of markets.
func (s *MarketStore) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM markets").Scan(&count); err != nil {
		return 0, fmt.Errorf("postgres: count markets: %w", err)
	}
	return count, nil
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func loadOutcomes(ctx context.Context, q querier, marketID string) ([]domain.Outcome, error) {
	rows, err := q.Query(ctx, `
		SELECT id, market_id, name, points_total
		FROM outcomes WHERE market_id = $1 ORDER BY id`, marketID)
	if err != nil {
		return nil, fmt.Errorf("postgres: load outcomes for %s: %w", marketID, err)
	}
	defer rows.Close()

	var outcomes []domain.Outcome
	for rows.Next() {
		var o domain.Outcome
		if err := rows.Scan(&o.ID, &o.MarketID, &o.Name, &o.PointsTotal); err != nil {
			return nil, fmt.Errorf("postgres: scan outcome: %w", err)
		}
		outcomes = append(outcomes, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: load outcomes rows: %w", err)
	}
	return outcomes, nil
}
