package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Sweeper periodically drops expired entries so memory is reclaimed for keys nobody reads again.
type Sweeper struct {
	cache    *Cache
	cron     *cron.Cron
	interval time.Duration
	logger   *zap.Logger
}

func NewSweeper(c *Cache, interval time.Duration, logger *zap.Logger) (*Sweeper, error) {
	if interval < time.Second {
		interval = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Sweeper{
		cache:    c,
		cron:     cron.New(cron.WithSeconds()),
		interval: interval,
		logger:   logger,
	}

	schedule := fmt.Sprintf("@every %ds", int(interval.Seconds()))
	if _, err := s.cron.AddFunc(schedule, func() { s.Sweep() }); err != nil {
		return nil, fmt.Errorf("schedule cache sweep %q: %w", schedule, err)
	}
	return s, nil
}

// Sweep runs one pass and returns the number of entries removed.
func (s *Sweeper) Sweep() int {
	if s == nil || s.cache == nil {
		return 0
	}
	removed := s.cache.SweepExpired()
	if removed > 0 {
		s.logger.Debug("cache sweep", zap.Int("removed", removed), zap.Int("size", s.cache.Size()))
	}
	return removed
}

func (s *Sweeper) Start() {
	if s == nil || s.cron == nil {
		return
	}
	s.cron.Start()
	s.logger.Info("cache sweeper started", zap.Duration("interval", s.interval))
}

func (s *Sweeper) Stop(ctx context.Context) {
	if s == nil || s.cron == nil {
		return
	}
	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
	s.logger.Info("cache sweeper stopped")
}
