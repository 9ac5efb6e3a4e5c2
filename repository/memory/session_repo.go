package memory

import (
	"context"
	"time"

	"github.com/fastygo/dashboard/domain"
	"github.com/fastygo/dashboard/internal/cache"
	"github.com/fastygo/dashboard/repository"
)

const sessionKeyPrefix = "session:"

// SessionRepository stores sessions in the process TTL cache; entries expire with the session.
type SessionRepository struct {
	cache *cache.Cache
	ttl   time.Duration
}

func NewSessionRepository(c *cache.Cache, ttl time.Duration) *SessionRepository {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SessionRepository{cache: c, ttl: ttl}
}

func (r *SessionRepository) Get(_ context.Context, id string) (*domain.Session, error) {
	value, ok := r.cache.Get(sessionKeyPrefix + id)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	session, ok := value.(domain.Session)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return &session, nil
}

func (r *SessionRepository) Save(_ context.Context, session *domain.Session) error {
	if session == nil || session.ID == "" {
		return domain.ErrInvalidPayload
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now()
	}
	if !session.ExpiresAt.After(session.CreatedAt) {
		session.ExpiresAt = session.CreatedAt.Add(r.ttl)
	}
	r.cache.Set(sessionKeyPrefix+session.ID, *session, time.Until(session.ExpiresAt))
	return nil
}

func (r *SessionRepository) Delete(_ context.Context, id string) error {
	r.cache.Invalidate(sessionKeyPrefix + id)
	return nil
}

func (r *SessionRepository) Extend(ctx context.Context, id string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = r.ttl
	}
	session, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	session.ExpiresAt = time.Now().Add(ttl)
	r.cache.Set(sessionKeyPrefix+id, *session, ttl)
	return nil
}

var _ repository.SessionRepository = (*SessionRepository)(nil)
