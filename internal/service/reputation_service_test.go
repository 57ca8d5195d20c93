package service

import (
	"context"
	"math"
	"testing"
	"testing/quick"

	"github.com/hunchmarket/hunchd/internal/domain"
)

func TestScore(t *testing.T) {
	tests := []struct {
		name string
		st   ReputationStats
		want float64
	}{
		{"no history", ReputationStats{}, 0},
		// Perfect accuracy with saturated volume hits the ceiling.
		{"perfect saturated", ReputationStats{ResolvedForecasts: 10, WonForecasts: 10, TotalPoints: 1_000_000}, 100},
		// All losses still earn the volume component.
		{"all losses", ReputationStats{ResolvedForecasts: 5, WonForecasts: 0, TotalPoints: 1_000_000}, 30},
		// 50% accuracy, no volume saturation: 100*(0.7*0.5 + 0.3*ln(101)/12).
		{"half accuracy", ReputationStats{ResolvedForecasts: 2, WonForecasts: 1, TotalPoints: 100},
			100 * (0.7*0.5 + 0.3*math.Log(101)/12)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Score(tt.st)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Fatalf("Score(%+v) = %v, want %v", tt.st, got, tt.want)
			}
		})
	}
}

func TestScore_Bounded(t *testing.T) {
	f := func(resolved, won uint8, points uint32) bool {
		st := ReputationStats{
			ResolvedForecasts: int(resolved),
			WonForecasts:      int(won) % (int(resolved) + 1),
			TotalPoints:       int64(points),
		}
		score := Score(st)
		return score >= 0 && score <= 100
	}
	if err := quick.Check(f, nil); err != nil {
		t.Fatal(err)
	}
}

func TestReputationCompute(t *testing.T) {
	forecasts := &fakeForecastStore{resolvedByUser: map[string][]domain.Forecast{
		"alice": {
			{ID: "f1", UserID: "alice", Points: 100, Status: domain.ForecastStatusWon},
			{ID: "f2", UserID: "alice", Points: 200, Status: domain.ForecastStatusLost},
			{ID: "f3", UserID: "alice", Points: 300, Status: domain.ForecastStatusWon},
		},
	}}
	svc := NewReputationService(forecasts, &fakeUserStore{}, &fakeReputationStore{}, discardLogger())

	score, st, err := svc.Compute(context.Background(), "alice")
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if st.ResolvedForecasts != 3 || st.WonForecasts != 2 || st.TotalPoints != 600 {
		t.Fatalf("stats = %+v", st)
	}
	want := Score(st)
	if score != want {
		t.Errorf("score = %v, want %v", score, want)
	}

	// Unknown user has no history and scores zero.
	score, st, err = svc.Compute(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("Compute unknown user: %v", err)
	}
	if score != 0 || st.ResolvedForecasts != 0 {
		t.Errorf("unknown user score = %v, stats = %+v", score, st)
	}
}

func TestReputationRefresh_AppendsSnapshot(t *testing.T) {
	forecasts := &fakeForecastStore{resolvedByUser: map[string][]domain.Forecast{
		"alice": {
			{ID: "f1", UserID: "alice", Points: 50, Status: domain.ForecastStatusWon},
		},
	}}
	users := &fakeUserStore{users: map[string]domain.User{"alice": {ID: "alice"}}}
	snaps := &fakeReputationStore{}
	svc := NewReputationService(forecasts, users, snaps, discardLogger())

	score, err := svc.Refresh(context.Background(), "alice")
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	if len(snaps.snaps) != 1 {
		t.Fatalf("snapshots = %d, want 1", len(snaps.snaps))
	}
	snap := snaps.snaps[0]
	if snap.UserID != "alice" || snap.Reputation != score || snap.TotalForecastPoints != 50 {
		t.Errorf("snapshot = %+v", snap)
	}
	if snap.AccuracyScore != 1 {
		t.Errorf("accuracy = %v, want 1", snap.AccuracyScore)
	}
	if users.reputationUpdates["alice"] != score {
		t.Errorf("user row update = %v, want %v", users.reputationUpdates["alice"], score)
	}

	// A second refresh appends rather than overwrites.
	if _, err := svc.Refresh(context.Background(), "alice"); err != nil {
		t.Fatalf("second Refresh: %v", err)
	}
	if len(snaps.snaps) != 2 {
		t.Errorf("snapshots after second refresh = %d, want 2", len(snaps.snaps))
	}
}

func TestReputationHistory_NewestFirst(t *testing.T) {
	snaps := &fakeReputationStore{snaps: []domain.ReputationSnapshot{
		{ID: "s1", UserID: "alice", Reputation: 10},
		{ID: "s2", UserID: "bob", Reputation: 50},
		{ID: "s3", UserID: "alice", Reputation: 20},
	}}
	svc := NewReputationService(&fakeForecastStore{}, &fakeUserStore{}, snaps, discardLogger())

	hist, err := svc.History(context.Background(), "alice", domain.ListOpts{})
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(hist) != 2 || hist[0].ID != "s3" || hist[1].ID != "s1" {
		t.Fatalf("history = %+v, want s3 then s1", hist)
	}
}
