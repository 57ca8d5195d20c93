package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hunchmarket/hunchd/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

type fakeMarketStore struct {
	markets map[string]domain.Market
}

func (s *fakeMarketStore) Create(_ context.Context, m domain.Market) error {
	if _, ok := s.markets[m.ID]; ok {
		return domain.ErrAlreadyExists
	}
	s.markets[m.ID] = m
	return nil
}

func (s *fakeMarketStore) GetByID(_ context.Context, id string) (domain.Market, error) {
	m, ok := s.markets[id]
	if !ok {
		return domain.Market{}, domain.ErrNotFound
	}
	return m, nil
}

func (s *fakeMarketStore) ListOpen(_ context.Context, _ domain.ListOpts) ([]domain.Market, error) {
	var out []domain.Market
	for _, m := range s.markets {
		if m.Status == domain.MarketStatusOpen {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *fakeMarketStore) ListByStatus(_ context.Context, status domain.MarketStatus, _ domain.ListOpts) ([]domain.Market, error) {
	var out []domain.Market
	for _, m := range s.markets {
		if m.Status == status {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *fakeMarketStore) Count(_ context.Context) (int64, error) {
	return int64(len(s.markets)), nil
}

type fakeForecastStore struct {
	forecasts []domain.Forecast
	// resolvedByUser and activityDays override derived queries when set.
	resolvedByUser map[string][]domain.Forecast
	activityDays   map[string][]time.Time
}

func (s *fakeForecastStore) Create(_ context.Context, f domain.Forecast) error {
	for _, existing := range s.forecasts {
		if existing.ID == f.ID {
			return domain.ErrAlreadyExists
		}
		if existing.UserID == f.UserID && existing.MarketID == f.MarketID {
			return domain.ErrAlreadyExists
		}
	}
	s.forecasts = append(s.forecasts, f)
	return nil
}

func (s *fakeForecastStore) GetByID(_ context.Context, id string) (domain.Forecast, error) {
	for _, f := range s.forecasts {
		if f.ID == id {
			return f, nil
		}
	}
	return domain.Forecast{}, domain.ErrNotFound
}

func (s *fakeForecastStore) ListByMarket(_ context.Context, marketID string) ([]domain.Forecast, error) {
	var out []domain.Forecast
	for _, f := range s.forecasts {
		if f.MarketID == marketID {
			out = append(out, f)
		}
	}
	return out, nil
}

func (s *fakeForecastStore) ListByUser(_ context.Context, userID string, _ domain.ListOpts) ([]domain.Forecast, error) {
	var out []domain.Forecast
	for _, f := range s.forecasts {
		if f.UserID == userID {
			out = append(out, f)
		}
	}
	return out, nil
}

func (s *fakeForecastStore) ListResolvedByUser(_ context.Context, userID string) ([]domain.Forecast, error) {
	if s.resolvedByUser != nil {
		return s.resolvedByUser[userID], nil
	}
	var out []domain.Forecast
	for _, f := range s.forecasts {
		if f.UserID == userID && f.Status.Resolved() {
			out = append(out, f)
		}
	}
	return out, nil
}

func (s *fakeForecastStore) ActivityDays(_ context.Context, userID string, _ time.Time) ([]time.Time, error) {
	return s.activityDays[userID], nil
}

type fakeUserStore struct {
	users map[string]domain.User

	reputationUpdates map[string]float64
	streakUpdates     map[string][2]int
	topByReputation   []domain.LeaderboardEntry
	topByChips        []domain.LeaderboardEntry
}

func (s *fakeUserStore) GetByID(_ context.Context, id string) (domain.User, error) {
	u, ok := s.users[id]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return u, nil
}

func (s *fakeUserStore) UpdateStreaks(_ context.Context, id string, winning, activity int) error {
	if s.streakUpdates == nil {
		s.streakUpdates = make(map[string][2]int)
	}
	s.streakUpdates[id] = [2]int{winning, activity}
	return nil
}

func (s *fakeUserStore) UpdateReputation(_ context.Context, id string, reputation float64) error {
	if s.reputationUpdates == nil {
		s.reputationUpdates = make(map[string]float64)
	}
	s.reputationUpdates[id] = reputation
	return nil
}

func (s *fakeUserStore) ListTopByReputation(_ context.Context, _ int) ([]domain.LeaderboardEntry, error) {
	return s.topByReputation, nil
}

func (s *fakeUserStore) ListTopByChips(_ context.Context, _ int) ([]domain.LeaderboardEntry, error) {
	return s.topByChips, nil
}

type fakeReputationStore struct {
	snaps []domain.ReputationSnapshot
}

func (s *fakeReputationStore) Append(_ context.Context, snap domain.ReputationSnapshot) error {
	s.snaps = append(s.snaps, snap)
	return nil
}

func (s *fakeReputationStore) ListByUser(_ context.Context, userID string, _ domain.ListOpts) ([]domain.ReputationSnapshot, error) {
	var out []domain.ReputationSnapshot
	for i := len(s.snaps) - 1; i >= 0; i-- {
		if s.snaps[i].UserID == userID {
			out = append(out, s.snaps[i])
		}
	}
	return out, nil
}

type fakeResolutionStore struct {
	markets   *fakeMarketStore
	forecasts *fakeForecastStore

	resolutions map[string]domain.Resolution
	resolveErr  error
}

func (s *fakeResolutionStore) Resolve(ctx context.Context, res domain.Resolution, settle domain.SettleFunc) (domain.Settlement, error) {
	if s.resolveErr != nil {
		return domain.Settlement{}, s.resolveErr
	}
	if s.resolutions == nil {
		s.resolutions = make(map[string]domain.Resolution)
	}
	if _, ok := s.resolutions[res.MarketID]; ok {
		return domain.Settlement{}, domain.ErrAlreadyResolved
	}

	market, err := s.markets.GetByID(ctx, res.MarketID)
	if err != nil {
		return domain.Settlement{}, err
	}
	snapshot, err := s.forecasts.ListByMarket(ctx, res.MarketID)
	if err != nil {
		return domain.Settlement{}, err
	}

	settlement, err := settle(market, snapshot)
	if err != nil {
		return domain.Settlement{}, err
	}

	market.Status = domain.MarketStatusResolved
	s.markets.markets[market.ID] = market
	s.resolutions[res.MarketID] = res
	for _, u := range settlement.Updates {
		for i := range s.forecasts.forecasts {
			if s.forecasts.forecasts[i].ID == u.ForecastID {
				s.forecasts.forecasts[i].Status = u.Status
				s.forecasts.forecasts[i].RewardAmount = u.RewardAmount
			}
		}
	}
	return settlement, nil
}

func (s *fakeResolutionStore) GetByMarket(_ context.Context, marketID string) (domain.Resolution, error) {
	res, ok := s.resolutions[marketID]
	if !ok {
		return domain.Resolution{}, domain.ErrNotFound
	}
	return res, nil
}

type fakeAuditStore struct {
	entries []domain.AuditEntry
}

func (s *fakeAuditStore) Log(_ context.Context, event string, detail map[string]any) error {
	s.entries = append(s.entries, domain.AuditEntry{Event: event, Detail: detail})
	return nil
}

func (s *fakeAuditStore) List(_ context.Context, _ domain.ListOpts) ([]domain.AuditEntry, error) {
	return s.entries, nil
}

type fakeLockManager struct {
	mu     sync.Mutex
	held   map[string]bool
	err    error
	unlock int
}

func (l *fakeLockManager) Acquire(_ context.Context, key string, _ time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, l.err
	}
	if l.held[key] {
		return nil, domain.ErrLockHeld
	}
	if l.held == nil {
		l.held = make(map[string]bool)
	}
	l.held[key] = true
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, key)
		l.unlock++
	}, nil
}

type fakeSignalBus struct {
	published map[string][][]byte
	streams   map[string][][]byte
}

func (b *fakeSignalBus) Publish(_ context.Context, channel string, payload []byte) error {
	if b.published == nil {
		b.published = make(map[string][][]byte)
	}
	b.published[channel] = append(b.published[channel], payload)
	return nil
}

func (b *fakeSignalBus) Subscribe(_ context.Context, _ string) (<-chan []byte, error) {
	ch := make(chan []byte)
	close(ch)
	return ch, nil
}

func (b *fakeSignalBus) StreamAppend(_ context.Context, stream string, payload []byte) error {
	if b.streams == nil {
		b.streams = make(map[string][][]byte)
	}
	b.streams[stream] = append(b.streams[stream], payload)
	return nil
}

func (b *fakeSignalBus) StreamRead(_ context.Context, stream string, _ string, _ int) ([]domain.StreamMessage, error) {
	var out []domain.StreamMessage
	for i, p := range b.streams[stream] {
		out = append(out, domain.StreamMessage{ID: fmt.Sprintf("%d-0", i+1), Payload: p})
	}
	return out, nil
}

type fakeLeaderboardCache struct {
	boards      map[string][]domain.LeaderboardEntry
	invalidated []string
}

func (c *fakeLeaderboardCache) Set(_ context.Context, board string, entries []domain.LeaderboardEntry) error {
	if c.boards == nil {
		c.boards = make(map[string][]domain.LeaderboardEntry)
	}
	c.boards[board] = entries
	return nil
}

func (c *fakeLeaderboardCache) Get(_ context.Context, board string) ([]domain.LeaderboardEntry, error) {
	entries, ok := c.boards[board]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return entries, nil
}

func (c *fakeLeaderboardCache) Invalidate(_ context.Context, board string) error {
	delete(c.boards, board)
	c.invalidated = append(c.invalidated, board)
	return nil
}
