package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/fastygo/dashboard/domain"
	"github.com/fastygo/dashboard/internal/infrastructure/buffer"
	"github.com/fastygo/dashboard/repository"
)

// ConnectionHealth abstracts the connection monitor functionality.
type ConnectionHealth interface {
	IsOnline() bool
}

// ProcessorConfig controls how often the buffer is drained and how long items live.
type ProcessorConfig struct {
	Interval   time.Duration
	BatchSize  int
	MaxRetries int
	Retention  time.Duration
}

// BufferProcessor replays parked activity and profile writes into the primary stores.
type BufferProcessor struct {
	store    *buffer.Store
	monitor  ConnectionHealth
	users    repository.UserRepository
	activity repository.ActivityRepository
	logger   *zap.Logger
	cron     *cron.Cron
	cfg      ProcessorConfig
}

func NewBufferProcessor(
	store *buffer.Store,
	monitor ConnectionHealth,
	users repository.UserRepository,
	activity repository.ActivityRepository,
	logger *zap.Logger,
	cfg ProcessorConfig,
) *BufferProcessor {
	if cfg.Interval < time.Second {
		cfg.Interval = 30 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.Retention <= 0 {
		cfg.Retention = 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	bp := &BufferProcessor{
		store:    store,
		monitor:  monitor,
		users:    users,
		activity: activity,
		logger:   logger,
		cfg:      cfg,
		cron:     cron.New(cron.WithSeconds()),
	}

	schedule := fmt.Sprintf("@every %ds", int(cfg.Interval.Seconds()))
	_, _ = bp.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Interval)
		defer cancel()
		if err := bp.Drain(ctx); err != nil {
			bp.logger.Error("buffer drain failed", zap.Error(err))
		}
	})
	_, _ = bp.cron.AddFunc("@hourly", bp.expire)

	return bp
}

func (bp *BufferProcessor) Start() {
	if bp == nil || bp.cron == nil {
		return
	}
	bp.cron.Start()
	bp.logger.Info("buffer processor started", zap.Duration("interval", bp.cfg.Interval))
}

func (bp *BufferProcessor) Stop(ctx context.Context) {
	if bp == nil || bp.cron == nil {
		return
	}
	stopCtx := bp.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
	bp.logger.Info("buffer processor stopped")
}

// Drain replays one batch. It does nothing while the monitor reports offline.
func (bp *BufferProcessor) Drain(ctx context.Context) error {
	if bp == nil || bp.store == nil {
		return nil
	}
	if bp.monitor != nil && !bp.monitor.IsOnline() {
		bp.logger.Debug("skipping buffer drain (offline)")
		return nil
	}

	items, err := bp.store.GetBatch(bp.cfg.BatchSize)
	if err != nil {
		return err
	}

	replayed := 0
	for _, item := range items {
		if err := bp.replay(ctx, item); err != nil {
			bp.logger.Error("failed to replay buffer item",
				zap.String("item_id", item.ID),
				zap.String("entity", item.Entity),
				zap.Error(err))

			item.Retries++
			if item.Retries >= bp.cfg.MaxRetries {
				bp.logger.Warn("dropping buffer item (max retries reached)", zap.String("item_id", item.ID))
				_ = bp.store.Remove(item)
				continue
			}
			if err := bp.store.Requeue(item); err != nil {
				bp.logger.Error("failed to requeue buffer item", zap.Error(err))
			}
			continue
		}

		if err := bp.store.Remove(item); err != nil {
			bp.logger.Warn("failed to purge replayed buffer item", zap.Error(err))
		}
		replayed++
	}
	if replayed > 0 {
		bp.logger.Info("buffer drained", zap.Int("replayed", replayed), zap.Int("batch", len(items)))
	}
	return nil
}

// Park stores item for a later replay. Callers have already seen the primary write fail.
func (bp *BufferProcessor) Park(_ context.Context, item buffer.Item) error {
	if bp == nil || bp.store == nil {
		return fmt.Errorf("buffer processor not configured")
	}
	return bp.store.Enqueue(item)
}

// Size returns the number of buffered items.
func (bp *BufferProcessor) Size() int {
	if bp == nil || bp.store == nil {
		return 0
	}
	size, err := bp.store.Size()
	if err != nil {
		return 0
	}
	return size
}

func (bp *BufferProcessor) expire() {
	removed, err := bp.store.Cleanup(time.Now().Add(-bp.cfg.Retention))
	if err != nil {
		bp.logger.Error("buffer cleanup failed", zap.Error(err))
		return
	}
	if removed > 0 {
		bp.logger.Warn("expired buffered writes", zap.Int("removed", removed))
	}
}

func (bp *BufferProcessor) replay(ctx context.Context, item buffer.Item) error {
	switch item.Entity {
	case buffer.EntityActivity:
		var entry domain.ActivityLog
		if err := json.Unmarshal(item.Data, &entry); err != nil {
			return err
		}
		entry.ID = 0
		return bp.activity.Record(ctx, &entry)

	case buffer.EntityProfile:
		if item.Operation != buffer.OperationMergePreferences {
			return fmt.Errorf("unsupported operation %s", item.Operation)
		}
		var changes domain.PreferenceChanges
		if err := json.Unmarshal(item.Data, &changes); err != nil {
			return err
		}
		user, err := bp.users.FindByEmail(ctx, changes.Email)
		if err != nil {
			return err
		}
		user.MergePreferences(changes.Changes)
		return bp.users.Update(ctx, user)
	default:
		return fmt.Errorf("unsupported entity %s", item.Entity)
	}
}
