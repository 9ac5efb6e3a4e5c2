package router

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"

	apiHandler "github.com/fastygo/dashboard/api/handler"
	"github.com/fastygo/dashboard/domain"
	"github.com/fastygo/dashboard/internal/cache"
	"github.com/fastygo/dashboard/internal/config"
	"github.com/fastygo/dashboard/internal/infrastructure/monitor"
	"github.com/fastygo/dashboard/internal/middleware"
	"github.com/fastygo/dashboard/pkg/httpcontext"
	"github.com/fastygo/dashboard/repository/memory"
	analyticsUC "github.com/fastygo/dashboard/usecase/analytics"
	authUC "github.com/fastygo/dashboard/usecase/auth"
	profileUC "github.com/fastygo/dashboard/usecase/profile"
)

type stack struct {
	handler  fasthttp.RequestHandler
	tokens   *authUC.Tokens
	sessions *authUC.UseCase
	users    *memory.UserRepository
}

func newStack(t *testing.T) stack {
	t.Helper()

	registry := prometheus.NewRegistry()
	c := cache.New(cache.WithMetrics(cache.NewMetrics(registry, "test")))
	users := memory.NewUserRepository()
	activity := memory.NewActivityRepository(users)
	_, err := users.Insert(context.Background(), &domain.User{Email: "root@example.com", GoogleSub: "root", Role: domain.RoleAdmin, IsActive: true})
	require.NoError(t, err)

	gate := authUC.NewGate(users, authUC.GateConfig{}, nil, authUC.NewMetrics(registry, "test"))
	tokens := authUC.NewTokens("secret", "dashboard", time.Hour)
	sessions := authUC.New(users, memory.NewSessionRepository(cache.New(), time.Hour), gate, time.Hour, nil)
	analytics := analyticsUC.New(activity, nil, c, analyticsUC.Config{Enabled: true, StatsTTL: time.Minute}, nil)
	profiles := profileUC.New(users, nil, nil)

	mon := monitor.New(monitor.Options{Cache: monitor.SizeFunc(c.Size)})
	mon.Refresh(context.Background())

	adapter := httpcontext.NewAdapter(time.Second)
	handlers := Handlers{
		Auth:      apiHandler.NewAuthHandler(sessions, gate, tokens, nil, analytics, apiHandler.CookieConfig{Name: "sid", TTL: time.Hour}, adapter, nil),
		Profile:   apiHandler.NewProfileHandler(profiles, adapter, nil),
		Analytics: apiHandler.NewAnalyticsHandler(analytics, adapter, nil),
		Admin:     apiHandler.NewAdminHandler(analytics, profiles, c, adapter, nil),
		Health:    apiHandler.NewHealthHandler(mon, config.DriverMemory, adapter, nil),
	}
	mw := Middlewares{
		Identity: middleware.Identity(middleware.IdentityConfig{
			Sessions:   sessions,
			Tokens:     tokens,
			CookieName: "sid",
			Adapter:    adapter,
		}),
		Authenticated: middleware.Guard(gate, adapter, "/auth/login"),
		Admin:         middleware.Guard(gate, adapter, "/auth/login", domain.RoleAdmin),
	}

	return stack{
		handler:  New(handlers, mw, registry),
		tokens:   tokens,
		sessions: sessions,
		users:    users,
	}
}

func (s stack) do(t *testing.T, method, path, email, body string) *fasthttp.RequestCtx {
	t.Helper()
	ctx := &fasthttp.RequestCtx{}
	ctx.Request.Header.SetMethod(method)
	ctx.Request.SetRequestURI(path)
	if email != "" {
		token, _, err := s.tokens.Issue(&domain.Principal{Email: email, SubjectID: email}, "")
		require.NoError(t, err)
		ctx.Request.Header.Set("Authorization", "Bearer "+token)
	}
	if body != "" {
		ctx.Request.Header.SetContentType("application/json")
		ctx.Request.SetBodyString(body)
	}
	s.handler(ctx)
	return ctx
}

func decodeData(t *testing.T, ctx *fasthttp.RequestCtx) map[string]any {
	t.Helper()
	var env struct {
		Data map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &env))
	return env.Data
}

func TestHealthAndMetrics(t *testing.T) {
	s := newStack(t)

	health := s.do(t, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, health.Response.StatusCode())
	assert.Equal(t, config.DriverMemory, decodeData(t, health)["driver"])

	metrics := s.do(t, http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusOK, metrics.Response.StatusCode())
	assert.True(t, strings.Contains(string(metrics.Response.Body()), "test_cache_"))
}

func TestMeForAnonymousAndUser(t *testing.T) {
	s := newStack(t)

	anon := s.do(t, http.MethodGet, "/api/v1/me", "", "")
	assert.Equal(t, http.StatusOK, anon.Response.StatusCode())
	assert.Equal(t, "anonymous", decodeData(t, anon)["role"])

	me := s.do(t, http.MethodGet, "/api/v1/me", "new@example.com", "")
	data := decodeData(t, me)
	assert.Equal(t, true, data["authenticated"])
	assert.Equal(t, "user", data["role"])
	assert.Equal(t, 2, s.users.Len(), "first sight creates the user")
}

func TestLoginWithoutProviderIsUnavailable(t *testing.T) {
	s := newStack(t)
	ctx := s.do(t, http.MethodGet, "/auth/login", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, ctx.Response.StatusCode())
}

func TestProtectedRoutes(t *testing.T) {
	s := newStack(t)

	tests := []struct {
		name   string
		method string
		path   string
		email  string
		body   string
		status int
	}{
		{"profile needs a session", http.MethodGet, "/api/v1/profile", "", "", http.StatusUnauthorized},
		{"admin stats need a session", http.MethodGet, "/api/v1/admin/stats", "", "", http.StatusUnauthorized},
		{"user cannot read admin stats", http.MethodGet, "/api/v1/admin/stats", "someone@example.com", "", http.StatusForbidden},
		{"admin reads admin stats", http.MethodGet, "/api/v1/admin/stats", "root@example.com", "", http.StatusOK},
		{"admin reads cache stats", http.MethodGet, "/api/v1/admin/cache", "root@example.com", "", http.StatusOK},
		{"user tracks activity", http.MethodPost, "/api/v1/activity", "someone@example.com", `{"action":"page_view","page":"home"}`, http.StatusAccepted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := s.do(t, tt.method, tt.path, tt.email, tt.body)
			assert.Equal(t, tt.status, ctx.Response.StatusCode(), string(ctx.Response.Body()))
		})
	}
}

func TestAdminSetsRole(t *testing.T) {
	s := newStack(t)
	s.do(t, http.MethodGet, "/api/v1/me", "someone@example.com", "")

	ctx := s.do(t, http.MethodPut, "/api/v1/admin/users/someone@example.com/role", "root@example.com", `{"role":"admin"}`)
	require.Equal(t, http.StatusOK, ctx.Response.StatusCode(), string(ctx.Response.Body()))

	promoted := s.do(t, http.MethodGet, "/api/v1/admin/stats", "someone@example.com", "")
	assert.Equal(t, http.StatusOK, promoted.Response.StatusCode())
}

func TestDefaultsDenyGuardedRoutes(t *testing.T) {
	h := New(Handlers{
		Health: apiHandler.NewHealthHandler(monitor.New(monitor.Options{}), config.DriverMemory, nil, nil),
	}, Middlewares{}, nil)

	ctx := &fasthttp.RequestCtx{}
	ctx.Request.Header.SetMethod(http.MethodGet)
	ctx.Request.SetRequestURI("/api/v1/admin/users")
	h(ctx)
	assert.Equal(t, http.StatusUnauthorized, ctx.Response.StatusCode())
}

func TestClearCacheKeepsSessions(t *testing.T) {
	s := newStack(t)
	login, err := s.sessions.Login(context.Background(), &domain.Principal{Email: "root@example.com", SubjectID: "root"}, nil)
	require.NoError(t, err)

	withCookie := func(method, path string) *fasthttp.RequestCtx {
		ctx := &fasthttp.RequestCtx{}
		ctx.Request.Header.SetMethod(method)
		ctx.Request.SetRequestURI(path)
		ctx.Request.Header.SetCookie("sid", login.Session.ID)
		s.handler(ctx)
		return ctx
	}

	stats := withCookie(http.MethodGet, "/api/v1/admin/cache")
	require.Equal(t, http.StatusOK, stats.Response.StatusCode())
	assert.EqualValues(t, 0, decodeData(t, stats)["size"], "sessions are not counted as cache entries")

	cleared := withCookie(http.MethodDelete, "/api/v1/admin/cache")
	require.Equal(t, http.StatusOK, cleared.Response.StatusCode())

	me := withCookie(http.MethodGet, "/api/v1/me")
	data := decodeData(t, me)
	assert.Equal(t, true, data["authenticated"])
	assert.Equal(t, "admin", data["role"])
}
