package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"

	"github.com/fastygo/dashboard/domain"
	"github.com/fastygo/dashboard/internal/cache"
	"github.com/fastygo/dashboard/repository/memory"
	authUC "github.com/fastygo/dashboard/usecase/auth"
)

type fixture struct {
	gate     *authUC.Gate
	sessions *authUC.UseCase
	tokens   *authUC.Tokens
	users    *memory.UserRepository
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	users := memory.NewUserRepository()
	_, err := users.Insert(context.Background(), &domain.User{Email: "admin@example.com", GoogleSub: "adm", Role: domain.RoleAdmin})
	require.NoError(t, err)

	gate := authUC.NewGate(users, authUC.GateConfig{}, nil, nil)
	sessions := authUC.New(users, memory.NewSessionRepository(cache.New(), time.Hour), gate, time.Hour, nil)
	return fixture{
		gate:     gate,
		sessions: sessions,
		tokens:   authUC.NewTokens("secret", "dashboard", time.Hour),
		users:    users,
	}
}

func (f fixture) handler(ran *bool, roles ...domain.Role) fasthttp.RequestHandler {
	final := func(ctx *fasthttp.RequestCtx) {
		*ran = true
		caller, ok := CallerFrom(ctx)
		if ok {
			ctx.SetBodyString(caller.Principal.Email)
		}
		ctx.SetStatusCode(http.StatusOK)
	}
	guarded := Guard(f.gate, nil, "/auth/login", roles...)(final)
	return Identity(IdentityConfig{
		Sessions:   f.sessions,
		Tokens:     f.tokens,
		CookieName: "sid",
	})(guarded)
}

func decodeMeta(t *testing.T, ctx *fasthttp.RequestCtx) map[string]any {
	t.Helper()
	var body struct {
		Code string         `json:"code"`
		Meta map[string]any `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &body))
	return body.Meta
}

func TestGuardRejectsAnonymous(t *testing.T) {
	f := newFixture(t)
	ran := false
	ctx := &fasthttp.RequestCtx{}

	f.handler(&ran)(ctx)

	assert.False(t, ran)
	assert.Equal(t, http.StatusUnauthorized, ctx.Response.StatusCode())
	assert.Equal(t, "/auth/login", decodeMeta(t, ctx)["login_url"])
}

func TestGuardForbidsWrongRole(t *testing.T) {
	f := newFixture(t)
	token, _, err := f.tokens.Issue(&domain.Principal{Email: "plain@example.com", SubjectID: "p"}, "")
	require.NoError(t, err)

	ran := false
	ctx := &fasthttp.RequestCtx{}
	ctx.Request.Header.Set("Authorization", "Bearer "+token)

	f.handler(&ran, domain.RoleAdmin)(ctx)

	assert.False(t, ran)
	assert.Equal(t, http.StatusForbidden, ctx.Response.StatusCode())
	meta := decodeMeta(t, ctx)
	assert.Equal(t, "user", meta["role"])
	assert.Equal(t, []any{"admin"}, meta["required_roles"])
}

func TestGuardAdmitsSessionCookie(t *testing.T) {
	f := newFixture(t)
	login, err := f.sessions.Login(context.Background(), &domain.Principal{Email: "admin@example.com", SubjectID: "adm"}, nil)
	require.NoError(t, err)

	ran := false
	ctx := &fasthttp.RequestCtx{}
	ctx.Request.Header.SetCookie("sid", login.Session.ID)

	f.handler(&ran, domain.RoleAdmin)(ctx)

	assert.True(t, ran)
	assert.Equal(t, http.StatusOK, ctx.Response.StatusCode())
	assert.Equal(t, "admin@example.com", string(ctx.Response.Body()))
}

func TestGuardIgnoresInvalidToken(t *testing.T) {
	f := newFixture(t)
	ran := false
	ctx := &fasthttp.RequestCtx{}
	ctx.Request.Header.Set("Authorization", "Bearer nope")

	f.handler(&ran)(ctx)

	assert.False(t, ran)
	assert.Equal(t, http.StatusUnauthorized, ctx.Response.StatusCode())
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(1, 2)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.1"))
	assert.False(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.2"), "buckets are per client")

	now = now.Add(time.Second)
	assert.True(t, rl.Allow("10.0.0.1"))
}

func TestRateLimiterMiddleware(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	calls := 0
	h := rl.Middleware(func(*fasthttp.RequestCtx) { calls++ })

	first := &fasthttp.RequestCtx{}
	h(first)
	second := &fasthttp.RequestCtx{}
	h(second)

	assert.Equal(t, 1, calls)
	assert.Equal(t, http.StatusTooManyRequests, second.Response.StatusCode())
}
