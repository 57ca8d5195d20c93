package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/hunchmarket/hunchd/internal/domain"
)

type resolveFixture struct {
	markets     *fakeMarketStore
	forecasts   *fakeForecastStore
	resolutions *fakeResolutionStore
	audit       *fakeAuditStore
	locks       *fakeLockManager
	bus         *fakeSignalBus
	boards      *fakeLeaderboardCache
	users       *fakeUserStore
	svc         *ResolutionService
}

func newResolveFixture(batchSize int) *resolveFixture {
	markets := &fakeMarketStore{markets: map[string]domain.Market{
		"m1": {
			ID:     "m1",
			Title:  "Will it rain tomorrow?",
			Status: domain.MarketStatusOpen,
			Outcomes: []domain.Outcome{
				{ID: "yes", MarketID: "m1", Name: "Yes"},
				{ID: "no", MarketID: "m1", Name: "No"},
			},
		},
	}}
	forecasts := &fakeForecastStore{forecasts: []domain.Forecast{
		{ID: "f1", UserID: "alice", MarketID: "m1", OutcomeID: "yes", Points: 100, Status: domain.ForecastStatusPending},
		{ID: "f2", UserID: "bob", MarketID: "m1", OutcomeID: "yes", Points: 300, Status: domain.ForecastStatusPending},
		{ID: "f3", UserID: "carol", MarketID: "m1", OutcomeID: "no", Points: 1000, Status: domain.ForecastStatusPending},
	}}
	users := &fakeUserStore{users: map[string]domain.User{
		"alice": {ID: "alice"}, "bob": {ID: "bob"}, "carol": {ID: "carol"},
	}}
	f := &resolveFixture{
		markets:     markets,
		forecasts:   forecasts,
		resolutions: &fakeResolutionStore{markets: markets, forecasts: forecasts},
		audit:       &fakeAuditStore{},
		locks:       &fakeLockManager{},
		bus:         &fakeSignalBus{},
		boards:      &fakeLeaderboardCache{boards: map[string][]domain.LeaderboardEntry{"reputation": {}, "chips": {}}},
		users:       users,
	}
	reputation := NewReputationService(forecasts, users, &fakeReputationStore{}, discardLogger())
	streaks := NewStreakService(forecasts, users, discardLogger())
	f.svc = NewResolutionService(
		markets, forecasts, f.resolutions, f.audit, f.locks, f.bus, f.boards,
		nil, reputation, streaks, nil, nil, discardLogger(), 1000, batchSize,
	)
	return f
}

func validRequest() ResolveRequest {
	return ResolveRequest{
		MarketID:         "m1",
		WinningOutcomeID: "yes",
		ResolvedBy:       "admin",
		EvidenceURLs:     []string{"https://example.com/report"},
		Note:             "Official weather service confirmed rainfall.",
	}
}

func TestResolve_SettlesAndFansOut(t *testing.T) {
	f := newResolveFixture(0)

	result, err := f.svc.Resolve(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	if result.WinningPool != 400 || result.LosingPool != 1000 {
		t.Fatalf("pools = %d/%d, want 400/1000", result.WinningPool, result.LosingPool)
	}
	// 10% edge on 1000 leaves 900 to distribute; 400-point winning pool
	// divides it exactly.
	if result.ChipsPaid != 400+900 {
		t.Errorf("chips paid = %d, want 1300", result.ChipsPaid)
	}
	if result.Winners != 2 || result.Losers != 1 {
		t.Errorf("winners/losers = %d/%d, want 2/1", result.Winners, result.Losers)
	}

	// Market flipped to resolved.
	m, _ := f.markets.GetByID(context.Background(), "m1")
	if m.Status != domain.MarketStatusResolved {
		t.Errorf("market status = %s, want resolved", m.Status)
	}

	// Audit entry recorded.
	if len(f.audit.entries) != 1 || f.audit.entries[0].Event != "market_resolved" {
		t.Errorf("audit entries = %+v, want one market_resolved", f.audit.entries)
	}

	// One outbox batch with all three results.
	batches := f.bus.streams[domain.SettlementStream]
	if len(batches) != 1 {
		t.Fatalf("outbox batches = %d, want 1", len(batches))
	}
	var batch domain.SettlementBatch
	if err := json.Unmarshal(batches[0], &batch); err != nil {
		t.Fatalf("unmarshal batch: %v", err)
	}
	if batch.MarketTitle != "Will it rain tomorrow?" || batch.WinningOutcomeName != "Yes" {
		t.Errorf("batch header = %q/%q", batch.MarketTitle, batch.WinningOutcomeName)
	}
	if len(batch.Results) != 3 {
		t.Errorf("batch results = %d, want 3", len(batch.Results))
	}

	// Live event published.
	if len(f.bus.published[domain.ChannelMarketEvents]) != 1 {
		t.Errorf("published events = %d, want 1", len(f.bus.published[domain.ChannelMarketEvents]))
	}

	// Both leaderboards invalidated.
	if len(f.boards.invalidated) != 2 {
		t.Errorf("invalidated boards = %v, want reputation and chips", f.boards.invalidated)
	}

	// Reputation and streaks refreshed for every affected user.
	for _, user := range []string{"alice", "bob", "carol"} {
		if _, ok := f.users.reputationUpdates[user]; !ok {
			t.Errorf("no reputation update for %s", user)
		}
		if _, ok := f.users.streakUpdates[user]; !ok {
			t.Errorf("no streak update for %s", user)
		}
	}

	// Lock released.
	if f.locks.unlock != 1 {
		t.Errorf("unlock calls = %d, want 1", f.locks.unlock)
	}
}

func TestResolve_SecondCallAlreadyResolved(t *testing.T) {
	f := newResolveFixture(0)

	if _, err := f.svc.Resolve(context.Background(), validRequest()); err != nil {
		t.Fatalf("first Resolve: %v", err)
	}
	_, err := f.svc.Resolve(context.Background(), validRequest())
	if !errors.Is(err, domain.ErrAlreadyResolved) {
		t.Fatalf("second Resolve err = %v, want ErrAlreadyResolved", err)
	}
}

func TestResolve_LockHeld(t *testing.T) {
	f := newResolveFixture(0)
	f.locks.held = map[string]bool{"resolve:m1": true}

	_, err := f.svc.Resolve(context.Background(), validRequest())
	if !errors.Is(err, domain.ErrLockHeld) {
		t.Fatalf("err = %v, want ErrLockHeld", err)
	}
	if len(f.audit.entries) != 0 {
		t.Errorf("audit entries = %d, want none", len(f.audit.entries))
	}
}

func TestResolve_LockErrorProceeds(t *testing.T) {
	f := newResolveFixture(0)
	f.locks.err = errors.New("redis down")

	if _, err := f.svc.Resolve(context.Background(), validRequest()); err != nil {
		t.Fatalf("Resolve with broken lock backend: %v", err)
	}
}

func TestResolve_NoWinners(t *testing.T) {
	f := newResolveFixture(0)
	// Nobody forecast "no": resolving it forfeits the whole pool.
	f.forecasts.forecasts = []domain.Forecast{
		{ID: "f1", UserID: "alice", MarketID: "m1", OutcomeID: "yes", Points: 500, Status: domain.ForecastStatusPending},
	}

	req := validRequest()
	req.WinningOutcomeID = "no"
	result, err := f.svc.Resolve(context.Background(), req)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	if !result.NoWinners {
		t.Error("NoWinners = false, want true")
	}
	if result.ChipsPaid != 0 {
		t.Errorf("chips paid = %d, want 0", result.ChipsPaid)
	}
	if result.HouseCut != 500 {
		t.Errorf("house cut = %d, want 500", result.HouseCut)
	}
}

func TestResolve_OutboxChunking(t *testing.T) {
	f := newResolveFixture(2)

	if _, err := f.svc.Resolve(context.Background(), validRequest()); err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	// Three results with batch size 2 split into 2 + 1.
	batches := f.bus.streams[domain.SettlementStream]
	if len(batches) != 2 {
		t.Fatalf("outbox batches = %d, want 2", len(batches))
	}
	var sizes []int
	for _, raw := range batches {
		var b domain.SettlementBatch
		if err := json.Unmarshal(raw, &b); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		sizes = append(sizes, len(b.Results))
	}
	if sizes[0] != 2 || sizes[1] != 1 {
		t.Errorf("batch sizes = %v, want [2 1]", sizes)
	}
}

func TestValidateResolveRequest(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ResolveRequest)
		wantErr error
	}{
		{"valid", func(r *ResolveRequest) {}, nil},
		{"missing market", func(r *ResolveRequest) { r.MarketID = "" }, domain.ErrNotFound},
		{"missing outcome", func(r *ResolveRequest) { r.WinningOutcomeID = "" }, domain.ErrInvalidOutcome},
		{"no evidence", func(r *ResolveRequest) { r.EvidenceURLs = nil }, domain.ErrInvalidEvidence},
		{"ftp url", func(r *ResolveRequest) { r.EvidenceURLs = []string{"ftp://example.com/x"} }, domain.ErrInvalidEvidence},
		{"hostless url", func(r *ResolveRequest) { r.EvidenceURLs = []string{"https:///path"} }, domain.ErrInvalidEvidence},
		{"short note", func(r *ResolveRequest) { r.Note = "too short" }, domain.ErrInvalidEvidence},
		{"long note", func(r *ResolveRequest) { r.Note = strings.Repeat("x", 5001) }, domain.ErrInvalidEvidence},
		// Rune counting: 10 multi-byte characters are a valid note.
		{"multibyte note", func(r *ResolveRequest) { r.Note = strings.Repeat("é", 10) }, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(&req)
			err := validateResolveRequest(req)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("err = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestGetResolution(t *testing.T) {
	f := newResolveFixture(0)
	if _, err := f.svc.Resolve(context.Background(), validRequest()); err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	res, err := f.svc.GetResolution(context.Background(), "m1")
	if err != nil {
		t.Fatalf("GetResolution: %v", err)
	}
	if res.WinningOutcomeID != "yes" || res.ResolvedBy != "admin" {
		t.Errorf("resolution = %+v", res)
	}

	if _, err := f.svc.GetResolution(context.Background(), "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
