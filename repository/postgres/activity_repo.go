package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fastygo/dashboard/domain"
	"github.com/fastygo/dashboard/repository"
)

type activityRepository struct {
	pool *pgxpool.Pool
}

// NewActivityRepository returns a Postgres-backed ActivityRepository.
func NewActivityRepository(pool *pgxpool.Pool) repository.ActivityRepository {
	return &activityRepository{pool: pool}
}

func (r *activityRepository) Record(ctx context.Context, entry *domain.ActivityLog) error {
	if entry == nil || entry.Action == "" {
		return domain.ErrInvalidPayload
	}
	entry.Touch()

	const query = `
	INSERT INTO activity_logs (user_email, action, page, details, timestamp, ip_address, user_agent)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	RETURNING id
	`

	return r.pool.QueryRow(ctx, query,
		entry.UserEmail,
		entry.Action,
		nullString(entry.Page),
		marshalMap(entry.Details),
		entry.Timestamp,
		nullString(entry.IPAddress),
		nullString(entry.UserAgent),
	).Scan(&entry.ID)
}

func (r *activityRepository) Recent(ctx context.Context, limit int) ([]domain.ActivityLog, error) {
	const query = `
	SELECT id, COALESCE(user_email, ''), action, COALESCE(page, ''), details, timestamp,
		COALESCE(ip_address, ''), COALESCE(user_agent, '')
	FROM activity_logs
	ORDER BY timestamp DESC
	LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, clampLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.ActivityLog
	for rows.Next() {
		var (
			entry   domain.ActivityLog
			details []byte
		)
		if err := rows.Scan(
			&entry.ID,
			&entry.UserEmail,
			&entry.Action,
			&entry.Page,
			&details,
			&entry.Timestamp,
			&entry.IPAddress,
			&entry.UserAgent,
		); err != nil {
			return nil, err
		}
		entry.Details = unmarshalMap(details)
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (r *activityRepository) UserStats(ctx context.Context, email string, topPages int) (*domain.UserStats, error) {
	stats := &domain.UserStats{Email: email, MostVisitedPages: []domain.PageCount{}}

	const totalQuery = `SELECT COUNT(id) FROM activity_logs WHERE user_email = $1`
	if err := r.pool.QueryRow(ctx, totalQuery, email).Scan(&stats.TotalActions); err != nil {
		return nil, err
	}

	const pagesQuery = `
	SELECT COALESCE(page, ''), COUNT(id)
	FROM activity_logs
	WHERE user_email = $1 AND action = $2
	GROUP BY page
	ORDER BY COUNT(id) DESC
	LIMIT $3
	`
	rows, err := r.pool.Query(ctx, pagesQuery, email, domain.ActionPageView, clampLimit(topPages))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var pc domain.PageCount
		if err := rows.Scan(&pc.Page, &pc.Count); err != nil {
			return nil, err
		}
		stats.MostVisitedPages = append(stats.MostVisitedPages, pc)
	}
	return stats, rows.Err()
}

func (r *activityRepository) AppStats(ctx context.Context) (*domain.AppStats, error) {
	const query = `
	SELECT
		(SELECT COUNT(id) FROM users),
		(SELECT COUNT(DISTINCT user_email) FROM activity_logs),
		(SELECT COUNT(id) FROM activity_logs)
	`
	var stats domain.AppStats
	if err := r.pool.QueryRow(ctx, query).Scan(&stats.TotalUsers, &stats.ActiveUsers, &stats.TotalActions); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &stats, nil
		}
		return nil, err
	}
	return &stats, nil
}
