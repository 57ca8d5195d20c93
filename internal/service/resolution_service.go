package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/hunchmarket/hunchd/internal/domain"
	"github.com/hunchmarket/hunchd/internal/notify"
	"github.com/hunchmarket/hunchd/internal/payout"
)

const (
	resolveLockTTL = 30 * time.Second

	minEvidenceNote = 10
	maxEvidenceNote = 5000

	defaultOutboxBatchSize = 100
)

// SettlementObserver records settlement metrics. It is satisfied by
// *metrics.Collector; a nil observer disables recording.
type SettlementObserver interface {
	ObserveResolution(kind string, chipsPaid, houseCut int64)
}

// OperatorNotifier fans out operator alerts. Satisfied by *notify.Notifier;
// nil disables alerts.
type OperatorNotifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// ResolveRequest carries everything needed to declare a market's winning
// outcome.
type ResolveRequest struct {
	MarketID         string   `json:"-"`
	WinningOutcomeID string   `json:"winning_outcome_id"`
	ResolvedBy       string   `json:"-"`
	EvidenceURLs     []string `json:"evidence_urls"`
	Note             string   `json:"note"`
}

// ResolutionService orchestrates market settlement: it validates the
// request, runs the atomic settlement transaction through the store, and
// performs the post-commit fan-out (audit, metrics, notification outbox,
// live events, cache invalidation, score refresh).
type ResolutionService struct {
	markets     domain.MarketStore
	forecasts   domain.ForecastStore
	resolutions domain.ResolutionStore
	audit       domain.AuditStore
	locks       domain.LockManager
	bus         domain.SignalBus
	boards      domain.LeaderboardCache
	archiver    domain.Archiver
	reputation  *ReputationService
	streaks     *StreakService
	observer    SettlementObserver
	notifier    OperatorNotifier
	logger      *slog.Logger

	houseEdgeBps    int64
	outboxBatchSize int
}

// NewResolutionService creates a ResolutionService. archiver, observer and
// notifier may be nil; locks, bus, and boards must not be.
func NewResolutionService(
	markets domain.MarketStore,
	forecasts domain.ForecastStore,
	resolutions domain.ResolutionStore,
	audit domain.AuditStore,
	locks domain.LockManager,
	bus domain.SignalBus,
	boards domain.LeaderboardCache,
	archiver domain.Archiver,
	reputation *ReputationService,
	streaks *StreakService,
	observer SettlementObserver,
	notifier OperatorNotifier,
	logger *slog.Logger,
	houseEdgeBps int64,
	outboxBatchSize int,
) *ResolutionService {
	if houseEdgeBps <= 0 {
		houseEdgeBps = payout.DefaultHouseEdgeBps
	}
	if outboxBatchSize <= 0 {
		outboxBatchSize = defaultOutboxBatchSize
	}
	return &ResolutionService{
		markets:         markets,
		forecasts:       forecasts,
		resolutions:     resolutions,
		audit:           audit,
		locks:           locks,
		bus:             bus,
		boards:          boards,
		archiver:        archiver,
		reputation:      reputation,
		streaks:         streaks,
		observer:        observer,
		notifier:        notifier,
		logger:          logger,
		houseEdgeBps:    houseEdgeBps,
		outboxBatchSize: outboxBatchSize,
	}
}

// Resolve settles a market. The settlement transaction commits or nothing
// changes; everything after the commit is best-effort and logged rather than
// unwound. A second call for the same market returns
// domain.ErrAlreadyResolved.
func (s *ResolutionService) Resolve(ctx context.Context, req ResolveRequest) (domain.ResolutionResult, error) {
	if err := validateResolveRequest(req); err != nil {
		return domain.ResolutionResult{}, err
	}

	// Advisory lock keeps concurrent resolvers from burning a transaction
	// each; the unique constraint on resolutions remains the real barrier.
	unlock, err := s.locks.Acquire(ctx, "resolve:"+req.MarketID, resolveLockTTL)
	if err != nil {
		if errors.Is(err, domain.ErrLockHeld) {
			return domain.ResolutionResult{}, fmt.Errorf("resolution_service: market %s: %w", req.MarketID, domain.ErrLockHeld)
		}
		s.logger.WarnContext(ctx, "resolution_service: lock acquire failed, proceeding",
			slog.String("market_id", req.MarketID),
			slog.String("error", err.Error()),
		)
	} else {
		defer unlock()
	}

	res := domain.Resolution{
		ID:               uuid.New().String(),
		MarketID:         req.MarketID,
		WinningOutcomeID: req.WinningOutcomeID,
		ResolvedBy:       req.ResolvedBy,
		EvidenceURLs:     req.EvidenceURLs,
		Note:             req.Note,
	}

	settlement, err := s.resolutions.Resolve(ctx, res, func(market domain.Market, forecasts []domain.Forecast) (domain.Settlement, error) {
		return payout.Build(market, forecasts, req.WinningOutcomeID, s.houseEdgeBps)
	})
	if err != nil {
		return domain.ResolutionResult{}, fmt.Errorf("resolution_service: resolve market %s: %w", req.MarketID, err)
	}

	result := buildResult(res, settlement)

	s.logger.InfoContext(ctx, "resolution_service: market settled",
		slog.String("market_id", req.MarketID),
		slog.String("winning_outcome_id", req.WinningOutcomeID),
		slog.Int64("chips_paid", result.ChipsPaid),
		slog.Int64("house_cut", result.HouseCut),
		slog.Int("winners", result.Winners),
		slog.Int("losers", result.Losers),
		slog.Bool("no_winners", result.NoWinners),
	)

	s.afterCommit(ctx, res, settlement, result)

	return result, nil
}

// GetResolution returns the resolution record for a market.
func (s *ResolutionService) GetResolution(ctx context.Context, marketID string) (domain.Resolution, error) {
	res, err := s.resolutions.GetByMarket(ctx, marketID)
	if err != nil {
		return domain.Resolution{}, fmt.Errorf("resolution_service: get resolution for %s: %w", marketID, err)
	}
	return res, nil
}

// afterCommit runs the post-settlement fan-out. Every step is independent
// and best-effort: the settlement is already durable.
func (s *ResolutionService) afterCommit(ctx context.Context, res domain.Resolution, settlement domain.Settlement, result domain.ResolutionResult) {
	market, err := s.markets.GetByID(ctx, res.MarketID)
	if err != nil {
		s.logger.WarnContext(ctx, "resolution_service: market lookup after settle failed",
			slog.String("market_id", res.MarketID),
			slog.String("error", err.Error()),
		)
	}
	outcomeName := res.WinningOutcomeID
	for _, o := range market.Outcomes {
		if o.ID == res.WinningOutcomeID {
			outcomeName = o.Name
			break
		}
	}

	if err := s.audit.Log(ctx, "market_resolved", map[string]any{
		"market_id":          res.MarketID,
		"resolution_id":      res.ID,
		"winning_outcome_id": res.WinningOutcomeID,
		"resolved_by":        res.ResolvedBy,
		"winning_pool":       settlement.WinningPool,
		"losing_pool":        settlement.LosingPool,
		"chips_paid":         result.ChipsPaid,
		"house_cut":          settlement.HouseCut,
		"no_winners":         settlement.NoWinners,
		"winners":            result.Winners,
		"losers":             result.Losers,
	}); err != nil {
		s.logger.WarnContext(ctx, "resolution_service: audit log failed",
			slog.String("market_id", res.MarketID),
			slog.String("error", err.Error()),
		)
	}

	if s.observer != nil {
		kind := "paid"
		if settlement.NoWinners {
			kind = "no_winners"
		}
		s.observer.ObserveResolution(kind, result.ChipsPaid, settlement.HouseCut)
	}

	s.enqueueNotifications(ctx, market, outcomeName, settlement)

	s.publishEvent(ctx, market, res, result)

	for _, board := range []string{"reputation", "chips"} {
		if err := s.boards.Invalidate(ctx, board); err != nil {
			s.logger.WarnContext(ctx, "resolution_service: leaderboard invalidate failed",
				slog.String("board", board),
				slog.String("error", err.Error()),
			)
		}
	}

	if s.notifier != nil {
		title := fmt.Sprintf("Market resolved: %s", market.Title)
		msg := fmt.Sprintf("Winning outcome: %s. %d winners paid %d chips, house kept %d.",
			outcomeName, result.Winners, result.ChipsPaid, settlement.HouseCut)
		if err := s.notifier.Notify(ctx, notify.EventMarketResolved, title, msg); err != nil {
			s.logger.WarnContext(ctx, "resolution_service: operator notify failed",
				slog.String("market_id", res.MarketID),
				slog.String("error", err.Error()),
			)
		}
	}

	s.refreshAffectedUsers(ctx, settlement)

	if s.archiver != nil {
		s.archiveLedger(ctx, res)
	}
}

// archiveLedger exports the settled market's ledger to object storage.
func (s *ResolutionService) archiveLedger(ctx context.Context, res domain.Resolution) {
	forecasts, err := s.forecasts.ListByMarket(ctx, res.MarketID)
	if err != nil {
		s.logger.WarnContext(ctx, "resolution_service: ledger snapshot failed",
			slog.String("market_id", res.MarketID),
			slog.String("error", err.Error()),
		)
		return
	}
	path, err := s.archiver.ArchiveLedger(ctx, res.MarketID, res, forecasts)
	if err != nil {
		s.logger.WarnContext(ctx, "resolution_service: ledger archive failed",
			slog.String("market_id", res.MarketID),
			slog.String("error", err.Error()),
		)
		return
	}
	s.logger.InfoContext(ctx, "resolution_service: ledger archived",
		slog.String("market_id", res.MarketID),
		slog.String("path", path),
	)
}

// enqueueNotifications appends per-user settlement results to the durable
// outbox stream in bounded batches. The dispatcher turns them into
// notification rows out of band.
func (s *ResolutionService) enqueueNotifications(ctx context.Context, market domain.Market, outcomeName string, settlement domain.Settlement) {
	results := settlement.Results
	for len(results) > 0 {
		n := s.outboxBatchSize
		if n > len(results) {
			n = len(results)
		}
		batch := domain.SettlementBatch{
			MarketID:           settlement.MarketID,
			MarketTitle:        market.Title,
			WinningOutcomeName: outcomeName,
			Results:            results[:n],
			EmittedAt:          time.Now().UTC(),
		}
		results = results[n:]

		payload, err := json.Marshal(batch)
		if err != nil {
			s.logger.ErrorContext(ctx, "resolution_service: marshal outbox batch failed",
				slog.String("market_id", settlement.MarketID),
				slog.String("error", err.Error()),
			)
			continue
		}
		if err := s.bus.StreamAppend(ctx, domain.SettlementStream, payload); err != nil {
			s.logger.ErrorContext(ctx, "resolution_service: outbox append failed",
				slog.String("market_id", settlement.MarketID),
				slog.Int("batch_size", n),
				slog.String("error", err.Error()),
			)
		}
	}
}

// publishEvent pushes a market_resolved event to the live event channel for
// WebSocket fan-out.
func (s *ResolutionService) publishEvent(ctx context.Context, market domain.Market, res domain.Resolution, result domain.ResolutionResult) {
	event := map[string]any{
		"type":               "market_resolved",
		"market_id":          res.MarketID,
		"market_title":       market.Title,
		"winning_outcome_id": res.WinningOutcomeID,
		"chips_paid":         result.ChipsPaid,
		"winners":            result.Winners,
		"losers":             result.Losers,
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	if err := s.bus.Publish(ctx, domain.ChannelMarketEvents, payload); err != nil {
		s.logger.WarnContext(ctx, "resolution_service: event publish failed",
			slog.String("market_id", res.MarketID),
			slog.String("error", err.Error()),
		)
	}
}

// refreshAffectedUsers recomputes reputation and streaks for every user
// touched by the settlement. Failures are logged and skipped.
func (s *ResolutionService) refreshAffectedUsers(ctx context.Context, settlement domain.Settlement) {
	seen := make(map[string]bool, len(settlement.Results))
	for _, r := range settlement.Results {
		if seen[r.UserID] {
			continue
		}
		seen[r.UserID] = true

		if s.reputation != nil {
			if _, err := s.reputation.Refresh(ctx, r.UserID); err != nil {
				s.logger.WarnContext(ctx, "resolution_service: reputation refresh failed",
					slog.String("user_id", r.UserID),
					slog.String("error", err.Error()),
				)
			}
		}
		if s.streaks != nil {
			if _, err := s.streaks.Refresh(ctx, r.UserID); err != nil {
				s.logger.WarnContext(ctx, "resolution_service: streak refresh failed",
					slog.String("user_id", r.UserID),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

func buildResult(res domain.Resolution, settlement domain.Settlement) domain.ResolutionResult {
	result := domain.ResolutionResult{
		Resolution:  res,
		Settlement:  settlement,
		Results:     settlement.Results,
		WinningPool: settlement.WinningPool,
		LosingPool:  settlement.LosingPool,
		ChipsPaid:   settlement.ChipsPaid(),
		HouseCut:    settlement.HouseCut,
		NoWinners:   settlement.NoWinners,
	}
	for _, r := range settlement.Results {
		switch r.Kind {
		case domain.ResultKindWon:
			result.Winners++
		case domain.ResultKindLost:
			result.Losers++
		}
	}
	return result
}

// validateResolveRequest checks the evidence contract: at least one valid
// http(s) URL and a note between 10 and 5000 characters.
func validateResolveRequest(req ResolveRequest) error {
	if req.MarketID == "" {
		return fmt.Errorf("resolution_service: market id required: %w", domain.ErrNotFound)
	}
	if req.WinningOutcomeID == "" {
		return fmt.Errorf("resolution_service: winning outcome required: %w", domain.ErrInvalidOutcome)
	}
	if len(req.EvidenceURLs) == 0 {
		return fmt.Errorf("resolution_service: at least one evidence URL required: %w", domain.ErrInvalidEvidence)
	}
	for _, raw := range req.EvidenceURLs {
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("resolution_service: evidence URL %q: %w", raw, domain.ErrInvalidEvidence)
		}
	}
	if n := len([]rune(req.Note)); n < minEvidenceNote || n > maxEvidenceNote {
		return fmt.Errorf("resolution_service: note must be %d-%d characters: %w",
			minEvidenceNote, maxEvidenceNote, domain.ErrInvalidEvidence)
	}
	return nil
}
