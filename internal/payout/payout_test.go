package payout

import (
	"errors"
	"testing"
	"testing/quick"

	"github.com/hunchmarket/hunchd/internal/domain"
)

func openMarket() domain.Market {
	return domain.Market{
		ID:     "m1",
		Status: domain.MarketStatusOpen,
		Outcomes: []domain.Outcome{
			{ID: "yes", MarketID: "m1", Name: "Yes"},
			{ID: "no", MarketID: "m1", Name: "No"},
		},
	}
}

func pending(id, user, outcome string, points int64) domain.Forecast {
	return domain.Forecast{
		ID:        id,
		UserID:    user,
		MarketID:  "m1",
		OutcomeID: outcome,
		Points:    points,
		Status:    domain.ForecastStatusPending,
	}
}

func TestBuild_ProportionalDistribution(t *testing.T) {
	forecasts := []domain.Forecast{
		pending("f1", "alice", "yes", 100),
		pending("f2", "bob", "yes", 300),
		pending("f3", "carol", "no", 600),
		pending("f4", "dave", "no", 400),
	}

	s, err := Build(openMarket(), forecasts, "yes", 1000)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if s.WinningPool != 400 || s.LosingPool != 1000 {
		t.Fatalf("pools = %d/%d, want 400/1000", s.WinningPool, s.LosingPool)
	}
	if s.Distributable != 900 {
		t.Fatalf("distributable = %d, want 900", s.Distributable)
	}
	if s.HouseCut != 100 {
		t.Fatalf("house cut = %d, want 100", s.HouseCut)
	}

	rewards := map[string]int64{}
	for _, c := range s.Credits {
		rewards[c.UserID] = c.Amount
	}
	// alice: 100 + 900*100/400 = 325; bob: 300 + 900*300/400 = 975
	if rewards["alice"] != 325 {
		t.Errorf("alice reward = %d, want 325", rewards["alice"])
	}
	if rewards["bob"] != 975 {
		t.Errorf("bob reward = %d, want 975", rewards["bob"])
	}

	var won, lost int
	for _, r := range s.Results {
		switch r.Kind {
		case domain.ResultKindWon:
			won++
			if r.RewardAmount < r.ForecastPoints {
				t.Errorf("winner %s reward %d below principal %d", r.UserID, r.RewardAmount, r.ForecastPoints)
			}
		case domain.ResultKindLost:
			lost++
			if r.ChipsLost != r.ForecastPoints {
				t.Errorf("loser %s chips lost = %d, want %d", r.UserID, r.ChipsLost, r.ForecastPoints)
			}
		}
	}
	if won != 2 || lost != 2 {
		t.Errorf("results won/lost = %d/%d, want 2/2", won, lost)
	}
}

func TestBuild_FloorRoundingDustStaysWithHouse(t *testing.T) {
	forecasts := []domain.Forecast{
		pending("f1", "alice", "yes", 3),
		pending("f2", "bob", "yes", 7),
		pending("f3", "carol", "no", 995),
	}

	s, err := Build(openMarket(), forecasts, "yes", 1000)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	// distributable = floor(995 * 0.9) = 895
	// alice share = floor(895*3/10) = 268, bob share = floor(895*7/10) = 626
	// dust = 895 - 268 - 626 = 1
	if s.Distributable != 895 {
		t.Fatalf("distributable = %d, want 895", s.Distributable)
	}
	wantHouse := int64(995-895) + 1
	if s.HouseCut != wantHouse {
		t.Errorf("house cut = %d, want %d", s.HouseCut, wantHouse)
	}
	if got := s.ChipsPaid(); got != 3+268+7+626 {
		t.Errorf("chips paid = %d, want %d", got, 3+268+7+626)
	}
}

func TestBuild_NoWinners(t *testing.T) {
	forecasts := []domain.Forecast{
		pending("f1", "carol", "no", 600),
		pending("f2", "dave", "no", 400),
	}

	s, err := Build(openMarket(), forecasts, "yes", 1000)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if !s.NoWinners {
		t.Fatal("expected NoWinners to be set")
	}
	if len(s.Credits) != 0 {
		t.Errorf("expected no credits, got %d", len(s.Credits))
	}
	// Edge = 100, forfeited after-edge pool = 900, house keeps all 1000.
	if s.Distributable != 900 {
		t.Errorf("forfeited distributable = %d, want 900", s.Distributable)
	}
	if s.HouseCut != 1000 {
		t.Errorf("house cut = %d, want 1000", s.HouseCut)
	}
	for _, u := range s.Updates {
		if u.Status != domain.ForecastStatusLost {
			t.Errorf("forecast %s status = %s, want lost", u.ForecastID, u.Status)
		}
		if u.RewardAmount != nil {
			t.Errorf("forecast %s has reward amount in no-winner settlement", u.ForecastID)
		}
	}
}

func TestBuild_NoLosers(t *testing.T) {
	forecasts := []domain.Forecast{
		pending("f1", "alice", "yes", 250),
		pending("f2", "bob", "yes", 750),
	}

	s, err := Build(openMarket(), forecasts, "yes", 1000)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	// Nothing to distribute: everyone gets principal back.
	for _, r := range s.Results {
		if r.Kind != domain.ResultKindWon {
			t.Fatalf("unexpected loss result for %s", r.UserID)
		}
		if r.RewardAmount != r.ForecastPoints {
			t.Errorf("%s reward = %d, want principal %d", r.UserID, r.RewardAmount, r.ForecastPoints)
		}
	}
	if s.HouseCut != 0 {
		t.Errorf("house cut = %d, want 0", s.HouseCut)
	}
}

func TestBuild_EmptyMarket(t *testing.T) {
	s, err := Build(openMarket(), nil, "yes", 1000)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !s.NoWinners || s.HouseCut != 0 || len(s.Updates) != 0 {
		t.Errorf("empty market settlement = %+v", s)
	}
}

func TestBuild_Errors(t *testing.T) {
	resolved := openMarket()
	resolved.Status = domain.MarketStatusResolved
	cancelled := openMarket()
	cancelled.Status = domain.MarketStatusCancelled

	tests := []struct {
		name      string
		market    domain.Market
		forecasts []domain.Forecast
		outcome   string
		wantErr   error
	}{
		{"already resolved", resolved, nil, "yes", domain.ErrAlreadyResolved},
		{"cancelled", cancelled, nil, "yes", domain.ErrMarketNotOpen},
		{"foreign outcome", openMarket(), nil, "maybe", domain.ErrInvalidOutcome},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build(tt.market, tt.forecasts, tt.outcome, 1000)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Build error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestBuild_RejectsResolvedForecastInSnapshot(t *testing.T) {
	f := pending("f1", "alice", "yes", 100)
	f.Status = domain.ForecastStatusWon

	_, err := Build(openMarket(), []domain.Forecast{f}, "yes", 1000)
	if err == nil {
		t.Fatal("expected error for already-resolved forecast in snapshot")
	}
}

// TestBuild_Conservation checks that for arbitrary wager distributions every
// chip wagered is accounted for exactly once: total paid to winners plus the
// house cut equals the sum of both pools, and no winner receives less than
// their principal.
func TestBuild_Conservation(t *testing.T) {
	property := func(winPoints, losePoints []uint16, edgeBps uint16) bool {
		edge := int64(edgeBps) % 10_001

		var forecasts []domain.Forecast
		id := 0
		addForecast := func(outcome string, points uint16) {
			if points == 0 {
				return
			}
			id++
			forecasts = append(forecasts, domain.Forecast{
				ID:        string(rune('a' + id%26)),
				UserID:    string(rune('u')) + string(rune('a'+id%26)),
				MarketID:  "m1",
				OutcomeID: outcome,
				Points:    int64(points),
				Status:    domain.ForecastStatusPending,
			})
		}
		for _, p := range winPoints {
			addForecast("yes", p)
		}
		for _, p := range losePoints {
			addForecast("no", p)
		}

		s, err := Build(openMarket(), forecasts, "yes", edge)
		if err != nil {
			return false
		}

		paid := s.ChipsPaid()
		if paid+s.HouseCut != s.WinningPool+s.LosingPool {
			t.Logf("conservation violated: paid=%d house=%d pools=%d+%d",
				paid, s.HouseCut, s.WinningPool, s.LosingPool)
			return false
		}
		for _, r := range s.Results {
			if r.Kind == domain.ResultKindWon && r.RewardAmount < r.ForecastPoints {
				return false
			}
		}
		return paid <= s.WinningPool+s.Distributable
	}

	if err := quick.Check(property, &quick.Config{MaxCount: 200}); err != nil {
		t.Error(err)
	}
}
