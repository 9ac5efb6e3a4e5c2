package analytics

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/fastygo/dashboard/domain"
	"github.com/fastygo/dashboard/internal/cache"
	"github.com/fastygo/dashboard/pkg/logger"
	"github.com/fastygo/dashboard/repository"
	"github.com/fastygo/dashboard/usecase"
)

const (
	defaultStatsTTL = 5 * time.Minute
	topPages        = 5
	statsKeyPrefix  = "analytics"
)

type Config struct {
	Enabled  bool
	StatsTTL time.Duration
}

// Visit describes the request that produced an activity entry.
type Visit struct {
	IPAddress string
	UserAgent string
}

type UseCase struct {
	activity repository.ActivityRepository
	buffer   usecase.WriteBuffer
	enabled  bool
	logger   *zap.Logger

	userStats func(context.Context, string) (*domain.UserStats, error)
	appStats  func(context.Context, struct{}) (*domain.AppStats, error)
}

func New(activity repository.ActivityRepository, buffer usecase.WriteBuffer, c *cache.Cache, cfg Config, log *zap.Logger) *UseCase {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.StatsTTL == 0 {
		cfg.StatsTTL = defaultStatsTTL
	}

	uc := &UseCase{
		activity: activity,
		buffer:   buffer,
		enabled:  cfg.Enabled,
		logger:   log,
	}
	uc.userStats = cache.Memoize(c, "user_stats", uc.loadUserStats,
		cache.WithTTL(cfg.StatsTTL), cache.WithKeyPrefix(statsKeyPrefix))
	uc.appStats = cache.Memoize(c, "app_stats", uc.loadAppStats,
		cache.WithTTL(cfg.StatsTTL), cache.WithKeyPrefix(statsKeyPrefix))
	return uc
}

func (uc *UseCase) TrackPageView(ctx context.Context, email, page string, visit Visit) {
	uc.TrackAction(ctx, &domain.ActivityLog{
		UserEmail: email,
		Action:    domain.ActionPageView,
		Page:      page,
		IPAddress: visit.IPAddress,
		UserAgent: visit.UserAgent,
	})
}

// TrackAction logs entry and, when analytics are enabled, persists it.
// Failures are logged, never returned: tracking must not break a request.
func (uc *UseCase) TrackAction(ctx context.Context, entry *domain.ActivityLog) {
	if entry == nil || entry.Action == "" {
		return
	}
	entry.Touch()

	logger.Event(ctx, uc.logger, "user_action",
		zap.String("user", entry.UserEmail),
		zap.String("action", entry.Action),
		zap.String("page", entry.Page),
		zap.Any("details", entry.Details))

	if !uc.enabled {
		return
	}

	err := uc.activity.Record(ctx, entry)
	if err == nil {
		return
	}
	if uc.buffer != nil {
		bufErr := uc.buffer.BufferActivity(ctx, entry)
		if bufErr == nil {
			uc.logger.Warn("activity buffered due to repository error", zap.Error(err))
			return
		}
		err = bufErr
	}
	logger.Event(ctx, uc.logger, "analytics_error",
		zap.String("operation", "track_action"),
		zap.String("action", entry.Action),
		zap.Error(err))
}

// UserStats returns total actions and the most viewed pages for email.
// Results are cached for the configured stats TTL.
func (uc *UseCase) UserStats(ctx context.Context, email string) (*domain.UserStats, error) {
	return uc.userStats(ctx, email)
}

func (uc *UseCase) AppStats(ctx context.Context) (*domain.AppStats, error) {
	return uc.appStats(ctx, struct{}{})
}

func (uc *UseCase) Recent(ctx context.Context, limit int) ([]domain.ActivityLog, error) {
	return uc.activity.Recent(ctx, limit)
}

func (uc *UseCase) loadUserStats(ctx context.Context, email string) (*domain.UserStats, error) {
	stats, err := uc.activity.UserStats(ctx, email, topPages)
	if err != nil {
		logger.Event(ctx, uc.logger, "analytics_error", zap.String("operation", "user_stats"), zap.Error(err))
		return nil, err
	}
	return stats, nil
}

func (uc *UseCase) loadAppStats(ctx context.Context, _ struct{}) (*domain.AppStats, error) {
	stats, err := uc.activity.AppStats(ctx)
	if err != nil {
		logger.Event(ctx, uc.logger, "analytics_error", zap.String("operation", "app_stats"), zap.Error(err))
		return nil, err
	}
	return stats, nil
}
