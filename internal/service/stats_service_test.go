package service

import (
	"context"
	"errors"
	"testing"

	"github.com/hunchmarket/hunchd/internal/domain"
)

func TestStatsForUser(t *testing.T) {
	reward := int64(450) // 100 principal + 350 share
	forecasts := &fakeForecastStore{forecasts: []domain.Forecast{
		{ID: "f1", UserID: "alice", MarketID: "m1", Points: 100, Status: domain.ForecastStatusWon, RewardAmount: &reward},
		{ID: "f2", UserID: "alice", MarketID: "m2", Points: 200, Status: domain.ForecastStatusLost},
		{ID: "f3", UserID: "alice", MarketID: "m3", Points: 300, Status: domain.ForecastStatusPending},
		{ID: "f4", UserID: "bob", MarketID: "m1", Points: 999, Status: domain.ForecastStatusPending},
	}}
	users := &fakeUserStore{users: map[string]domain.User{"alice": {ID: "alice"}}}
	svc := NewStatsService(forecasts, users)

	st, err := svc.ForUser(context.Background(), "alice")
	if err != nil {
		t.Fatalf("ForUser: %v", err)
	}

	if st.TotalForecasts != 3 || st.ResolvedForecasts != 2 {
		t.Errorf("counts = %d total / %d resolved, want 3/2", st.TotalForecasts, st.ResolvedForecasts)
	}
	if st.WonForecasts != 1 || st.LostForecasts != 1 {
		t.Errorf("won/lost = %d/%d, want 1/1", st.WonForecasts, st.LostForecasts)
	}
	if st.TotalPoints != 600 {
		t.Errorf("total points = %d, want 600", st.TotalPoints)
	}
	if st.Accuracy != 50 {
		t.Errorf("accuracy = %v, want 50", st.Accuracy)
	}
	// Won 350 net, lost 200.
	if st.ProfitLoss != 150 {
		t.Errorf("profit/loss = %d, want 150", st.ProfitLoss)
	}
	if st.PositionsValue != 300 {
		t.Errorf("positions value = %d, want 300", st.PositionsValue)
	}
	if st.BiggestWin == nil || *st.BiggestWin != 350 {
		t.Errorf("biggest win = %v, want 350", st.BiggestWin)
	}
}

func TestStatsForUser_UnknownUser(t *testing.T) {
	svc := NewStatsService(&fakeForecastStore{}, &fakeUserStore{users: map[string]domain.User{}})

	_, err := svc.ForUser(context.Background(), "nobody")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestLeaderboardTop_CacheMissFillsCache(t *testing.T) {
	users := &fakeUserStore{topByReputation: []domain.LeaderboardEntry{
		{Rank: 1, UserID: "alice", Reputation: 90},
		{Rank: 2, UserID: "bob", Reputation: 80},
	}}
	cache := &fakeLeaderboardCache{}
	svc := NewLeaderboardService(users, cache, discardLogger())

	entries, err := svc.Top(context.Background(), BoardReputation, 2)
	if err != nil {
		t.Fatalf("Top: %v", err)
	}
	if len(entries) != 2 || entries[0].UserID != "alice" {
		t.Fatalf("entries = %+v", entries)
	}
	if _, ok := cache.boards[BoardReputation]; !ok {
		t.Error("cache not filled on miss")
	}
}

func TestLeaderboardTop_ServesFromCache(t *testing.T) {
	cache := &fakeLeaderboardCache{boards: map[string][]domain.LeaderboardEntry{
		BoardChips: {
			{Rank: 1, UserID: "carol", Chips: 5000},
			{Rank: 2, UserID: "dave", Chips: 4000},
		},
	}}
	// Store returns nothing: a hit must not touch it.
	svc := NewLeaderboardService(&fakeUserStore{}, cache, discardLogger())

	entries, err := svc.Top(context.Background(), BoardChips, 1)
	if err != nil {
		t.Fatalf("Top: %v", err)
	}
	if len(entries) != 1 || entries[0].UserID != "carol" {
		t.Fatalf("entries = %+v, want carol only", entries)
	}
}

func TestLeaderboardTop_UnknownBoard(t *testing.T) {
	svc := NewLeaderboardService(&fakeUserStore{}, &fakeLeaderboardCache{}, discardLogger())
	if _, err := svc.Top(context.Background(), "volume", 10); err == nil {
		t.Fatal("expected error for unknown board")
	}
}
