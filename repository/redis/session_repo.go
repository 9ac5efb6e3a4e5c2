package redis

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	redislib "github.com/redis/go-redis/v9"

	"github.com/fastygo/dashboard/domain"
	"github.com/fastygo/dashboard/repository"
)

const (
	keyPrefix = "session:"

	fieldClaims    = "claims"
	fieldMetadata  = "metadata"
	fieldCreatedAt = "created_at"
	fieldExpiresAt = "expires_at"
)

// sessionRepository keeps each session as a hash under session:<id>. The key
// expires at the session's expires_at so Redis evicts it without a sweeper.
type sessionRepository struct {
	client *redislib.Client
	ttl    time.Duration
	now    func() time.Time
}

func NewSessionRepository(client *redislib.Client, ttl time.Duration) repository.SessionRepository {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &sessionRepository{client: client, ttl: ttl, now: time.Now}
}

func (r *sessionRepository) Get(ctx context.Context, id string) (*domain.Session, error) {
	fields, err := r.client.HGetAll(ctx, keyPrefix+id).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, domain.ErrSessionNotFound
	}
	return decodeSession(id, fields)
}

func (r *sessionRepository) Save(ctx context.Context, session *domain.Session) error {
	if session == nil || session.ID == "" {
		return domain.ErrInvalidPayload
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = r.now()
	}
	if !session.ExpiresAt.After(session.CreatedAt) {
		session.ExpiresAt = session.CreatedAt.Add(r.ttl)
	}

	claims, err := json.Marshal(session.Claims)
	if err != nil {
		return err
	}
	metadata, err := json.Marshal(session.Metadata)
	if err != nil {
		return err
	}

	key := keyPrefix + session.ID
	_, err = r.client.TxPipelined(ctx, func(pipe redislib.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key,
			fieldClaims, claims,
			fieldMetadata, metadata,
			fieldCreatedAt, session.CreatedAt.UnixMilli(),
			fieldExpiresAt, session.ExpiresAt.UnixMilli(),
		)
		pipe.PExpireAt(ctx, key, session.ExpiresAt)
		return nil
	})
	return err
}

func (r *sessionRepository) Delete(ctx context.Context, id string) error {
	return r.client.Del(ctx, keyPrefix+id).Err()
}

// Extend moves both the stored expires_at and the key deadline. The key is
// watched so a concurrent logout is not resurrected.
func (r *sessionRepository) Extend(ctx context.Context, id string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = r.ttl
	}
	key := keyPrefix + id
	expiresAt := r.now().Add(ttl)

	err := r.client.Watch(ctx, func(tx *redislib.Tx) error {
		exists, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if exists == 0 {
			return domain.ErrSessionNotFound
		}
		_, err = tx.TxPipelined(ctx, func(pipe redislib.Pipeliner) error {
			pipe.HSet(ctx, key, fieldExpiresAt, expiresAt.UnixMilli())
			pipe.PExpireAt(ctx, key, expiresAt)
			return nil
		})
		return err
	}, key)
	if errors.Is(err, redislib.TxFailedErr) {
		return domain.ErrSessionNotFound
	}
	return err
}

func decodeSession(id string, fields map[string]string) (*domain.Session, error) {
	session := &domain.Session{ID: id}
	if raw := fields[fieldClaims]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &session.Claims); err != nil {
			return nil, err
		}
	}
	if raw := fields[fieldMetadata]; raw != "" && raw != "null" {
		if err := json.Unmarshal([]byte(raw), &session.Metadata); err != nil {
			return nil, err
		}
	}
	session.CreatedAt = millis(fields[fieldCreatedAt])
	session.ExpiresAt = millis(fields[fieldExpiresAt])
	return session, nil
}

func millis(raw string) time.Time {
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
