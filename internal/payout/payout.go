// Package payout computes market settlements: pool partitioning, house edge
// withholding, and proportional distribution of the losing pool to winning
// forecasts. All functions are pure so the resolution store can invoke them
// inside the settlement transaction against a consistent snapshot.
package payout

import (
	"fmt"
	"math/big"

	"github.com/hunchmarket/hunchd/internal/domain"
)

// DefaultHouseEdgeBps is the fraction of the losing pool the house withholds
// before distribution, in basis points.
const DefaultHouseEdgeBps = 1000

// Build computes the settlement for declaring winningOutcomeID the winner of
// market, given a snapshot of every forecast placed on it.
//
// Winners are credited their principal plus a proportional share of the
// losing pool after the house edge: share = distributable * points /
// winningPool, floor-rounded. Rounding dust stays with the house. When
// nobody forecast the winning outcome the whole after-edge pool is forfeited
// to the house and the settlement is flagged NoWinners instead of dividing
// by zero.
func Build(market domain.Market, forecasts []domain.Forecast, winningOutcomeID string, houseEdgeBps int64) (domain.Settlement, error) {
	if market.Status != domain.MarketStatusOpen {
		if market.Status == domain.MarketStatusResolved {
			return domain.Settlement{}, domain.ErrAlreadyResolved
		}
		return domain.Settlement{}, domain.ErrMarketNotOpen
	}
	if !market.HasOutcome(winningOutcomeID) {
		return domain.Settlement{}, fmt.Errorf("payout: outcome %s: %w", winningOutcomeID, domain.ErrInvalidOutcome)
	}
	if houseEdgeBps < 0 || houseEdgeBps > 10_000 {
		return domain.Settlement{}, fmt.Errorf("payout: house edge %d bps out of range", houseEdgeBps)
	}

	var winners, losers []domain.Forecast
	var winningPool, losingPool int64
	for _, f := range forecasts {
		if f.Status != domain.ForecastStatusPending {
			// Settlement only ever runs once per market, so every forecast in
			// the snapshot is pending; anything else would be corrupt state.
			return domain.Settlement{}, fmt.Errorf("payout: forecast %s already %s", f.ID, f.Status)
		}
		if f.OutcomeID == winningOutcomeID {
			winners = append(winners, f)
			winningPool += f.Points
		} else {
			losers = append(losers, f)
			losingPool += f.Points
		}
	}

	distributable := losingPool * (10_000 - houseEdgeBps) / 10_000
	houseCut := losingPool - distributable

	s := domain.Settlement{
		MarketID:         market.ID,
		WinningOutcomeID: winningOutcomeID,
		WinningPool:      winningPool,
		LosingPool:       losingPool,
		Distributable:    distributable,
		HouseCut:         houseCut,
	}

	if winningPool == 0 {
		// Nobody holds the winning outcome: the after-edge pool has no one
		// to go to and is forfeited to the house. Distributable keeps the
		// forfeited amount so callers can report it separately from the edge.
		s.NoWinners = true
		s.HouseCut = losingPool
	}

	var distributed int64
	for _, f := range winners {
		share := proportionalShare(distributable, f.Points, winningPool)
		distributed += share
		reward := f.Points + share

		r := reward
		s.Updates = append(s.Updates, domain.ForecastUpdate{
			ForecastID:   f.ID,
			Status:       domain.ForecastStatusWon,
			RewardAmount: &r,
		})
		s.Credits = append(s.Credits, domain.UserCredit{UserID: f.UserID, Amount: reward})
		s.Results = append(s.Results, domain.ForecastResult{
			UserID:         f.UserID,
			Kind:           domain.ResultKindWon,
			ForecastPoints: f.Points,
			ChipsGained:    share,
			RewardAmount:   reward,
		})
	}

	// Floor rounding leaves dust behind; it is retained by the house, not
	// redistributed.
	if !s.NoWinners {
		s.HouseCut += distributable - distributed
	}

	for _, f := range losers {
		s.Updates = append(s.Updates, domain.ForecastUpdate{
			ForecastID: f.ID,
			Status:     domain.ForecastStatusLost,
		})
		s.Results = append(s.Results, domain.ForecastResult{
			UserID:         f.UserID,
			Kind:           domain.ResultKindLost,
			ForecastPoints: f.Points,
			ChipsLost:      f.Points,
		})
	}

	return s, nil
}

// proportionalShare returns floor(distributable * points / winningPool),
// computed with big integers so the intermediate product cannot overflow.
func proportionalShare(distributable, points, winningPool int64) int64 {
	if winningPool == 0 || distributable == 0 {
		return 0
	}
	n := new(big.Int).Mul(big.NewInt(distributable), big.NewInt(points))
	n.Quo(n, big.NewInt(winningPool))
	return n.Int64()
}
