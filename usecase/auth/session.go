package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fastygo/dashboard/domain"
	"github.com/fastygo/dashboard/repository"
)

const defaultSessionTTL = 24 * time.Hour

// LoginResult is what a completed sign-in hands back to the transport layer.
type LoginResult struct {
	Session *domain.Session
	Role    domain.Role
}

type UseCase struct {
	users    repository.UserRepository
	sessions repository.SessionRepository
	gate     *Gate
	ttl      time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

func New(users repository.UserRepository, sessions repository.SessionRepository, gate *Gate, ttl time.Duration, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &UseCase{
		users:    users,
		sessions: sessions,
		gate:     gate,
		ttl:      ttl,
		logger:   logger,
		now:      time.Now,
	}
}

// Login opens a session for p, resolves its role (creating the user on first
// sight) and records the login on the user row.
func (uc *UseCase) Login(ctx context.Context, p *domain.Principal, metadata map[string]string) (*LoginResult, error) {
	session, err := uc.createSession(ctx, p, uc.ttl, metadata)
	if err != nil {
		return nil, err
	}

	role := uc.gate.ResolveRole(ctx, p)
	uc.touchUser(ctx, p)

	uc.logger.Info("user_login",
		zap.String("email", p.Email),
		zap.String("role", role.String()),
		zap.String("session_id", session.ID))
	return &LoginResult{Session: session, Role: role}, nil
}

func (uc *UseCase) CreateSession(ctx context.Context, p *domain.Principal, ttl time.Duration) (*domain.Session, error) {
	return uc.createSession(ctx, p, ttl, nil)
}

func (uc *UseCase) createSession(ctx context.Context, p *domain.Principal, ttl time.Duration, metadata map[string]string) (*domain.Session, error) {
	if p == nil || p.Email == "" {
		return nil, domain.ErrInvalidPayload
	}
	if ttl <= 0 {
		ttl = uc.ttl
	}

	now := uc.now()
	session := &domain.Session{
		ID:        uuid.NewString(),
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
		Metadata:  metadata,
	}
	session.Claims = sessionClaims(PrincipalClaims(p), session.ExpiresAt)

	if err := uc.sessions.Save(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

func (uc *UseCase) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	session, err := uc.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.IsExpired(uc.now()) {
		_ = uc.sessions.Delete(ctx, sessionID)
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}

func (uc *UseCase) RefreshSession(ctx context.Context, sessionID string, ttl time.Duration) (*domain.Session, error) {
	if ttl <= 0 {
		ttl = uc.ttl
	}
	session, err := uc.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := uc.sessions.Extend(ctx, sessionID, ttl); err != nil {
		return nil, err
	}
	session.ExpiresAt = uc.now().Add(ttl)
	session.Claims = sessionClaims(session.Claims, session.ExpiresAt)
	return session, nil
}

func (uc *UseCase) RevokeSession(ctx context.Context, sessionID string) error {
	return uc.sessions.Delete(ctx, sessionID)
}

// Identity loads the session as an identity for the gate. A missing or
// expired session yields nil, which the gate treats as anonymous.
func (uc *UseCase) Identity(ctx context.Context, sessionID string) Identity {
	if sessionID == "" {
		return nil
	}
	session, err := uc.GetSession(ctx, sessionID)
	if err != nil {
		if !domain.IsDomainError(err, domain.ErrCodeNotFound) {
			uc.logger.Warn("session_lookup_failed", zap.String("session_id", sessionID), zap.Error(err))
		}
		return nil
	}
	return NewClaimSet(sessionClaims(session.Claims, session.ExpiresAt))
}

// sessionClaims returns a copy of claims whose exp is the session deadline.
// The provider's id_token usually expires long before the session does.
func sessionClaims(claims map[string]any, expiresAt time.Time) map[string]any {
	out := make(map[string]any, len(claims)+1)
	for k, v := range claims {
		out[k] = v
	}
	out[ClaimExpiry] = expiresAt.Unix()
	return out
}

func (uc *UseCase) touchUser(ctx context.Context, p *domain.Principal) {
	user, err := uc.users.FindByEmail(ctx, p.Email)
	if err != nil {
		uc.logger.Warn("login_touch_skipped", zap.String("email", p.Email), zap.Error(err))
		return
	}
	now := uc.now()
	user.LastLogin = &now
	if p.Name != "" {
		user.Name = p.Name
	}
	if p.PictureURL != "" {
		user.PictureURL = p.PictureURL
	}
	if err := uc.users.Update(ctx, user); err != nil {
		uc.logger.Warn("login_touch_failed", zap.String("email", p.Email), zap.Error(err))
	}
}
