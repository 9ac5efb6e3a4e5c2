package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/dashboard/domain"
	"github.com/fastygo/dashboard/internal/cache"
	"github.com/fastygo/dashboard/repository/memory"
)

func newTestSessions(t *testing.T) (*UseCase, *memory.UserRepository) {
	t.Helper()
	users := memory.NewUserRepository()
	sessions := memory.NewSessionRepository(cache.New(), time.Hour)
	return New(users, sessions, newTestGate(users), time.Hour, nil), users
}

func TestLoginCreatesUserAndSession(t *testing.T) {
	ctx := context.Background()
	uc, users := newTestSessions(t)
	p := &domain.Principal{Email: "ann@example.com", SubjectID: "ann", Name: "Ann", PictureURL: "https://example.com/ann.png"}

	result, err := uc.Login(ctx, p, map[string]string{"ip": "10.0.0.1"})
	require.NoError(t, err)

	assert.Equal(t, domain.RoleUser, result.Role)
	assert.NotEmpty(t, result.Session.ID)
	assert.Equal(t, "10.0.0.1", result.Session.Metadata["ip"])

	stored, err := users.FindByEmail(ctx, "ann@example.com")
	require.NoError(t, err)
	require.NotNil(t, stored.LastLogin)
	assert.Equal(t, "Ann", stored.Name)

	id := uc.Identity(ctx, result.Session.ID)
	require.NotNil(t, id)
	assert.True(t, id.IsLoggedIn())
	email, ok := id.Claim(ClaimEmail)
	assert.True(t, ok)
	assert.Equal(t, "ann@example.com", email)
}

func TestSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	uc, _ := newTestSessions(t)
	p := &domain.Principal{Email: "bob@example.com", SubjectID: "bob"}

	session, err := uc.CreateSession(ctx, p, time.Minute)
	require.NoError(t, err)

	got, err := uc.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, session.ID, got.ID)

	refreshed, err := uc.RefreshSession(ctx, session.ID, 2*time.Hour)
	require.NoError(t, err)
	assert.True(t, refreshed.ExpiresAt.After(session.ExpiresAt))

	require.NoError(t, uc.RevokeSession(ctx, session.ID))
	_, err = uc.GetSession(ctx, session.ID)
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeNotFound))
	assert.Nil(t, uc.Identity(ctx, session.ID))
}

func TestExpiredSessionIsNotFound(t *testing.T) {
	ctx := context.Background()
	uc, _ := newTestSessions(t)

	session, err := uc.CreateSession(ctx, &domain.Principal{Email: "c@example.com"}, time.Minute)
	require.NoError(t, err)

	uc.now = func() time.Time { return time.Now().Add(2 * time.Minute) }

	_, err = uc.GetSession(ctx, session.ID)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	assert.Nil(t, uc.Identity(ctx, session.ID))
}

func TestCreateSessionRequiresEmail(t *testing.T) {
	uc, _ := newTestSessions(t)

	_, err := uc.CreateSession(context.Background(), &domain.Principal{SubjectID: "x"}, time.Minute)
	assert.ErrorIs(t, err, domain.ErrInvalidPayload)
}

func TestSessionOutlivesProviderToken(t *testing.T) {
	ctx := context.Background()
	users := memory.NewUserRepository()
	gate := newTestGate(users)
	uc := New(users, memory.NewSessionRepository(cache.New(), 24*time.Hour), gate, 24*time.Hour, nil)

	idTokenExpiry := time.Now().Add(time.Hour)
	result, err := uc.Login(ctx, &domain.Principal{Email: "dora@example.com", SubjectID: "dora", ExpiresAt: &idTokenExpiry}, nil)
	require.NoError(t, err)
	assert.Equal(t, result.Session.ExpiresAt.Unix(), result.Session.Claims[ClaimExpiry])

	later := time.Now().Add(2 * time.Hour)
	gate.now = func() time.Time { return later }
	uc.now = gate.now

	id := uc.Identity(ctx, result.Session.ID)
	require.NotNil(t, id)
	assert.NoError(t, gate.RequireAuthenticated(ctx, id, nil))
	assert.True(t, gate.CheckSession(id), "the session deadline governs, not the id_token's")

	refreshed, err := uc.RefreshSession(ctx, result.Session.ID, 48*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, refreshed.ExpiresAt.Unix(), refreshed.Claims[ClaimExpiry])

	id = uc.Identity(ctx, result.Session.ID)
	require.NotNil(t, id)
	assert.True(t, gate.CheckSession(id))

	gate.now = func() time.Time { return later.Add(72 * time.Hour) }
	assert.False(t, gate.CheckSession(id))
}
