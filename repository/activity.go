package repository

import (
	"context"

	"github.com/fastygo/dashboard/domain"
)

type ActivityRepository interface {
	Record(ctx context.Context, entry *domain.ActivityLog) error
	Recent(ctx context.Context, limit int) ([]domain.ActivityLog, error)
	UserStats(ctx context.Context, email string, topPages int) (*domain.UserStats, error)
	AppStats(ctx context.Context) (*domain.AppStats, error)
}
