package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hunchmarket/hunchd/internal/domain"
)

// ResolutionStore implements domain.ResolutionStore using PostgreSQL. It
// owns the settlement transaction: every row mutation a resolution implies
// commits atomically or not at all.
type ResolutionStore struct {
	pool *pgxpool.Pool
}

// NewResolutionStore creates a new ResolutionStore.
func NewResolutionStore(pool *pgxpool.Pool) *ResolutionStore {
	return &ResolutionStore{pool: pool}
}

// Resolve settles a market in a single transaction.
//
// The market row is locked with SELECT ... FOR UPDATE and its status flipped
// open -> resolved before anything else, which closes the window in which a
// concurrent forecast placement could slip past the settlement snapshot: the
// placement flow checks market status inside its own transaction and
// serializes on the same row lock. A second resolver blocks on the lock and
// then observes status != open, yielding ErrAlreadyResolved; the unique
// constraint on resolutions.market_id backstops the same guarantee.
func (s *ResolutionStore) Resolve(ctx context.Context, res domain.Resolution, settle domain.SettleFunc) (domain.Settlement, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.Settlement{}, fmt.Errorf("postgres: begin settlement: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Lock and load the market.
	row := tx.QueryRow(ctx, `SELECT `+marketCols+` FROM markets WHERE id = $1 FOR UPDATE`, res.MarketID)
	market, err := scanMarket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Settlement{}, domain.ErrNotFound
		}
		return domain.Settlement{}, fmt.Errorf("postgres: lock market %s: %w", res.MarketID, err)
	}
	switch market.Status {
	case domain.MarketStatusOpen:
	case domain.MarketStatusResolved:
		return domain.Settlement{}, domain.ErrAlreadyResolved
	default:
		return domain.Settlement{}, domain.ErrMarketNotOpen
	}

	outcomes, err := loadOutcomes(ctx, tx, res.MarketID)
	if err != nil {
		return domain.Settlement{}, err
	}
	market.Outcomes = outcomes

	// Flip status first: it is the first durable effect of the settlement
	// and freezes the outcome totals for any transaction that commits after
	// this one.
	ct, err := tx.Exec(ctx, `
		UPDATE markets SET status = 'resolved', updated_at = NOW()
		WHERE id = $1 AND status = 'open'`, res.MarketID)
	if err != nil {
		return domain.Settlement{}, fmt.Errorf("postgres: close market %s: %w", res.MarketID, err)
	}
	if ct.RowsAffected() == 0 {
		return domain.Settlement{}, domain.ErrAlreadyResolved
	}

	// Snapshot every forecast on the market within the transaction.
	forecasts, err := loadForecastsTx(ctx, tx, res.MarketID)
	if err != nil {
		return domain.Settlement{}, err
	}

	settlement, err := settle(market, forecasts)
	if err != nil {
		return domain.Settlement{}, err
	}

	evidence, err := json.Marshal(res.EvidenceURLs)
	if err != nil {
		return domain.Settlement{}, fmt.Errorf("postgres: marshal evidence: %w", err)
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO resolutions (id, market_id, winning_outcome_id, resolved_by, evidence_urls, note)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		res.ID, res.MarketID, res.WinningOutcomeID, res.ResolvedBy, evidence, res.Note,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Settlement{}, domain.ErrAlreadyResolved
		}
		return domain.Settlement{}, fmt.Errorf("postgres: insert resolution %s: %w", res.ID, err)
	}

	// Apply forecast transitions and winner credits as batches.
	batch := &pgx.Batch{}
	for _, u := range settlement.Updates {
		batch.Queue(`
			UPDATE forecasts SET status = $2, reward_amount = $3, updated_at = NOW()
			WHERE id = $1 AND status = 'pending'`,
			u.ForecastID, string(u.Status), u.RewardAmount,
		)
	}
	for _, c := range settlement.Credits {
		batch.Queue(`
			UPDATE users SET chips = chips + $2, updated_at = NOW()
			WHERE id = $1`,
			c.UserID, c.Amount,
		)
	}
	br := tx.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return domain.Settlement{}, fmt.Errorf("postgres: settlement batch item %d: %w", i, err)
		}
	}
	if err := br.Close(); err != nil {
		return domain.Settlement{}, fmt.Errorf("postgres: settlement batch close: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Settlement{}, fmt.Errorf("postgres: commit settlement for %s: %w", res.MarketID, err)
	}
	return settlement, nil
}

// GetByMarket retrieves the resolution for a market.
func (s *ResolutionStore) GetByMarket(ctx context.Context, marketID string) (domain.Resolution, error) {
	var r domain.Resolution
	var evidence []byte
	err := s.pool.QueryRow(ctx, `
		SELECT id, market_id, winning_outcome_id, resolved_by, evidence_urls, note, created_at
		FROM resolutions WHERE market_id = $1`, marketID,
	).Scan(&r.ID, &r.MarketID, &r.WinningOutcomeID, &r.ResolvedBy, &evidence, &r.Note, &r.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Resolution{}, domain.ErrNotFound
		}
		return domain.Resolution{}, fmt.Errorf("postgres: get resolution for %s: %w", marketID, err)
	}
	if err := json.Unmarshal(evidence, &r.EvidenceURLs); err != nil {
		return domain.Resolution{}, fmt.Errorf("postgres: unmarshal evidence for %s: %w", marketID, err)
	}
	return r, nil
}

// loadForecastsTx reads all forecasts on a market inside the settlement
// transaction.
func loadForecastsTx(ctx context.Context, tx pgx.Tx, marketID string) ([]domain.Forecast, error) {
	rows, err := tx.Query(ctx, `
		SELECT `+forecastCols+`
		FROM forecasts WHERE market_id = $1 ORDER BY created_at`, marketID)
	if err != nil {
		return nil, fmt.Errorf("postgres: snapshot forecasts for %s: %w", marketID, err)
	}
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
		return nil, fmt.Errorf("postgres: snapshot forecasts rows: %w", err)
	}
	return forecasts, nil
}
