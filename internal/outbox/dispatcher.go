// Package outbox drains settlement batches from the durable stream into
// user notification rows. Running it outside the settlement transaction
// keeps resolution latency independent of notification volume.
package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/hunchmarket/hunchd/internal/domain"
)

const (
	defaultPollInterval = 2 * time.Second
	defaultReadCount    = 10

	// checkpointKey stores the last stream ID whose batch was fully
	// persisted. Restart resumes after it.
	checkpointKey = "outbox:checkpoint"
)

// BatchObserver records dispatcher metrics. Satisfied by
// *metrics.Collector; nil disables recording.
type BatchObserver interface {
	ObserveOutboxBatch(result string)
	SetOutboxPending(n int)
}

// Checkpointer persists the dispatcher's stream position.
type Checkpointer interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

// RedisCheckpointer stores the checkpoint as a plain Redis key alongside the
// stream it tracks.
type RedisCheckpointer struct {
	rdb *redis.Client
}

// NewRedisCheckpointer wraps a raw redis client.
func NewRedisCheckpointer(rdb *redis.Client) *RedisCheckpointer {
	return &RedisCheckpointer{rdb: rdb}
}

// Get returns the stored checkpoint, or "" when none exists.
func (c *RedisCheckpointer) Get(ctx context.Context, key string) (string, error) {
	v, err := c.rdb.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", fmt.Errorf("outbox: get checkpoint: %w", err)
	}
	return v, nil
}

// Set stores the checkpoint.
func (c *RedisCheckpointer) Set(ctx context.Context, key, value string) error {
	if err := c.rdb.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("outbox: set checkpoint: %w", err)
	}
	return nil
}

// Dispatcher consumes settlement batches from the signal bus stream and
// bulk-inserts notification rows. Notification IDs are deterministic per
// (market, user) and the insert skips conflicts, so a crash between insert
// and checkpoint re-delivers the batch harmlessly.
type Dispatcher struct {
	bus        domain.SignalBus
	notes      domain.NotificationStore
	checkpoint Checkpointer
	observer   BatchObserver
	logger     *slog.Logger

	pollInterval time.Duration
	readCount    int
}

// New creates a Dispatcher. observer may be nil.
func New(
	bus domain.SignalBus,
	notes domain.NotificationStore,
	checkpoint Checkpointer,
	observer BatchObserver,
	logger *slog.Logger,
) *Dispatcher {
	return &Dispatcher{
		bus:          bus,
		notes:        notes,
		checkpoint:   checkpoint,
		observer:     observer,
		logger:       logger,
		pollInterval: defaultPollInterval,
		readCount:    defaultReadCount,
	}
}

// Run drains the stream until the context is cancelled. Transient errors
// are logged and retried on the next poll; the loop never exits on its own.
func (d *Dispatcher) Run(ctx context.Context) error {
	lastID, err := d.checkpoint.Get(ctx, checkpointKey)
	if err != nil {
		d.logger.WarnContext(ctx, "outbox: checkpoint load failed, starting from beginning",
			slog.String("error", err.Error()),
		)
	}
	if lastID == "" {
		lastID = "0"
	}

	d.logger.InfoContext(ctx, "outbox: dispatcher started",
		slog.String("stream", domain.SettlementStream),
		slog.String("last_id", lastID),
	)

	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.InfoContext(ctx, "outbox: dispatcher stopped")
			return ctx.Err()
		case <-ticker.C:
		}

		next, err := d.drainOnce(ctx, lastID)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			d.logger.ErrorContext(ctx, "outbox: drain failed",
				slog.String("last_id", lastID),
				slog.String("error", err.Error()),
			)
			continue
		}
		lastID = next
	}
}

// drainOnce reads up to readCount messages after lastID, persists each
// batch, and advances the checkpoint per fully persisted message. It
// returns the new lastID.
func (d *Dispatcher) drainOnce(ctx context.Context, lastID string) (string, error) {
	msgs, err := d.bus.StreamRead(ctx, domain.SettlementStream, lastID, d.readCount)
	if err != nil {
		return lastID, err
	}
	if d.observer != nil {
		d.observer.SetOutboxPending(len(msgs))
	}

	for _, msg := range msgs {
		if err := d.persistBatch(ctx, msg.Payload); err != nil {
			if d.observer != nil {
				d.observer.ObserveOutboxBatch("error")
			}
			// Stop at the failed message; it will be re-read next poll.
			return lastID, fmt.Errorf("persist batch %s: %w", msg.ID, err)
		}
		if d.observer != nil {
			d.observer.ObserveOutboxBatch("ok")
		}

		lastID = msg.ID
		if err := d.checkpoint.Set(ctx, checkpointKey, lastID); err != nil {
			d.logger.WarnContext(ctx, "outbox: checkpoint save failed",
				slog.String("last_id", lastID),
				slog.String("error", err.Error()),
			)
		}
	}

	if d.observer != nil {
		d.observer.SetOutboxPending(0)
	}
	return lastID, nil
}

// persistBatch turns one settlement batch into notification rows.
func (d *Dispatcher) persistBatch(ctx context.Context, payload []byte) error {
	var batch domain.SettlementBatch
	if err := json.Unmarshal(payload, &batch); err != nil {
		// Malformed payloads can never succeed; log and drop.
		d.logger.ErrorContext(ctx, "outbox: dropping malformed batch",
			slog.String("error", err.Error()),
		)
		return nil
	}

	notes := make([]domain.Notification, 0, len(batch.Results))
	for _, r := range batch.Results {
		notes = append(notes, BuildNotification(batch, r))
	}
	if len(notes) == 0 {
		return nil
	}

	if err := d.notes.InsertBatch(ctx, notes); err != nil {
		return err
	}

	d.logger.InfoContext(ctx, "outbox: batch dispatched",
		slog.String("market_id", batch.MarketID),
		slog.Int("notifications", len(notes)),
	)
	return nil
}

// BuildNotification renders one per-user settlement result as a
// notification row. The ID is derived from (market, user) so a re-delivered
// batch collides with the rows already inserted instead of duplicating them.
func BuildNotification(batch domain.SettlementBatch, r domain.ForecastResult) domain.Notification {
	n := domain.Notification{
		ID:     uuid.NewSHA1(uuid.NameSpaceOID, []byte("settlement:"+batch.MarketID+":"+r.UserID)).String(),
		UserID: r.UserID,
	}
	switch r.Kind {
	case domain.ResultKindWon:
		n.Kind = domain.NotificationForecastWon
		n.Message = fmt.Sprintf("Your forecast on %q won! You gained %d chips (%d returned).",
			batch.MarketTitle, r.ChipsGained, r.RewardAmount)
		n.Won = &domain.WonDetail{
			MarketID:       batch.MarketID,
			MarketTitle:    batch.MarketTitle,
			WinningOutcome: batch.WinningOutcomeName,
			ForecastPoints: r.ForecastPoints,
			ChipsGained:    r.ChipsGained,
			RewardAmount:   r.RewardAmount,
		}
	default:
		n.Kind = domain.NotificationForecastLost
		n.Message = fmt.Sprintf("Your forecast on %q missed. %q won; %d chips lost.",
			batch.MarketTitle, batch.WinningOutcomeName, r.ChipsLost)
		n.Lost = &domain.LostDetail{
			MarketID:       batch.MarketID,
			MarketTitle:    batch.MarketTitle,
			WinningOutcome: batch.WinningOutcomeName,
			ForecastPoints: r.ForecastPoints,
			ChipsLost:      r.ChipsLost,
		}
	}
	return n
}
