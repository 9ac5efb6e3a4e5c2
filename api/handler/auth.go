package handler

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/dashboard/api/transport"
	"github.com/fastygo/dashboard/domain"
	"github.com/fastygo/dashboard/internal/middleware"
	"github.com/fastygo/dashboard/internal/oauth"
	"github.com/fastygo/dashboard/pkg/httpcontext"
	analyticsUC "github.com/fastygo/dashboard/usecase/analytics"
	authUC "github.com/fastygo/dashboard/usecase/auth"
)

const stateCookie = "oauth_state"

// CookieConfig controls the session cookie written after login.
type CookieConfig struct {
	Name   string
	Secure bool
	TTL    time.Duration
}

type AuthHandler struct {
	baseHandler
	sessions  *authUC.UseCase
	gate      *authUC.Gate
	tokens    *authUC.Tokens
	provider  oauth.Provider
	analytics *analyticsUC.UseCase
	cookie    CookieConfig
}

// NewAuthHandler wires the login flow. provider may be nil when Google is not
// configured; the login endpoints then answer 503.
func NewAuthHandler(
	sessions *authUC.UseCase,
	gate *authUC.Gate,
	tokens *authUC.Tokens,
	provider oauth.Provider,
	analytics *analyticsUC.UseCase,
	cookie CookieConfig,
	adapter *httpcontext.Adapter,
	logger *zap.Logger,
) *AuthHandler {
	if cookie.Name == "" {
		cookie.Name = "dashboard_session"
	}
	if cookie.TTL <= 0 {
		cookie.TTL = 24 * time.Hour
	}
	return &AuthHandler{
		baseHandler: newBaseHandler(adapter, logger),
		sessions:    sessions,
		gate:        gate,
		tokens:      tokens,
		provider:    provider,
		analytics:   analytics,
		cookie:      cookie,
	}
}

// @Summary Start Google sign-in
// @Tags auth
// @Router /auth/login [get]
func (h *AuthHandler) Login(ctx *fasthttp.RequestCtx) {
	if h.provider == nil {
		h.respondError(ctx, domain.ErrLoginUnavailable)
		return
	}

	state := uuid.NewString()
	h.setCookie(ctx, stateCookie, state, 10*time.Minute)
	ctx.Redirect(h.provider.AuthCodeURL(state), http.StatusFound)
}

// @Summary Complete Google sign-in
// @Tags auth
// @Router /auth/callback [get]
func (h *AuthHandler) Callback(ctx *fasthttp.RequestCtx) {
	if h.provider == nil {
		h.respondError(ctx, domain.ErrLoginUnavailable)
		return
	}

	args := ctx.QueryArgs()
	if oauthErr := string(args.Peek("error")); oauthErr != "" {
		h.respondError(ctx, domain.NewError(domain.ErrCodeUnauthorized, "login cancelled: "+oauthErr))
		return
	}
	state := string(args.Peek("state"))
	if state == "" || state != string(ctx.Request.Header.Cookie(stateCookie)) {
		h.respondError(ctx, domain.NewError(domain.ErrCodeUnauthorized, "oauth state mismatch"))
		return
	}
	h.clearCookie(ctx, stateCookie)

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	principal, err := h.provider.Exchange(stdCtx, string(args.Peek("code")))
	if err != nil {
		h.logger.Warn("oauth exchange failed", zap.Error(err))
		h.respondError(ctx, err)
		return
	}

	visit := visitFrom(ctx)
	result, err := h.sessions.Login(stdCtx, principal, map[string]string{
		"ip":         visit.IPAddress,
		"user_agent": visit.UserAgent,
	})
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.setCookie(ctx, h.cookie.Name, result.Session.ID, h.cookie.TTL)

	resp := transport.LoginResponse{
		SessionID:      result.Session.ID,
		SessionExpires: result.Session.ExpiresAt,
		Email:          principal.Email,
		Role:           result.Role.String(),
	}
	if token, expires, err := h.tokens.Issue(principal, result.Role); err == nil {
		resp.Token, resp.TokenExpires = token, expires
	} else {
		h.logger.Warn("bearer token not issued", zap.Error(err))
	}

	h.track(stdCtx, principal.Email, domain.ActionLogin, visit)
	h.respondSuccess(ctx, http.StatusOK, resp)
}

// @Summary Sign out
// @Tags auth
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	email := ""
	if p, ok := h.gate.CurrentPrincipal(middleware.IdentityFrom(ctx)); ok {
		email = p.Email
	}
	if sessionID := string(ctx.Request.Header.Cookie(h.cookie.Name)); sessionID != "" {
		if err := h.sessions.RevokeSession(stdCtx, sessionID); err != nil {
			h.respondError(ctx, err)
			return
		}
	}
	h.clearCookie(ctx, h.cookie.Name)

	if email != "" {
		h.track(stdCtx, email, domain.ActionLogout, visitFrom(ctx))
	}
	h.respondSuccess(ctx, http.StatusOK, map[string]bool{"logged_out": true})
}

// @Summary Extend the current session
// @Tags auth
// @Router /auth/refresh [post]
func (h *AuthHandler) Refresh(ctx *fasthttp.RequestCtx) {
	var req transport.RefreshRequest
	if len(ctx.PostBody()) > 0 && !h.decode(ctx, &req) {
		return
	}
	if req.SessionID == "" {
		req.SessionID = string(ctx.Request.Header.Cookie(h.cookie.Name))
	}
	if req.SessionID == "" {
		h.respondError(ctx, domain.ErrInvalidPayload)
		return
	}

	ttl := h.cookie.TTL
	if req.TTL > 0 {
		ttl = time.Duration(req.TTL) * time.Second
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	session, err := h.sessions.RefreshSession(stdCtx, req.SessionID, ttl)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, map[string]any{
		"session_id": session.ID,
		"expires_at": session.ExpiresAt,
	})
}

// @Summary Describe the current caller
// @Tags auth
// @Router /api/v1/me [get]
func (h *AuthHandler) Me(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	id := middleware.IdentityFrom(ctx)
	p, ok := h.gate.CurrentPrincipal(id)
	if !ok || !h.gate.CheckSession(id) {
		h.respondSuccess(ctx, http.StatusOK, transport.MeResponse{Role: domain.RoleAnonymous.String()})
		return
	}
	h.respondSuccess(ctx, http.StatusOK, transport.MeResponse{
		Authenticated: true,
		Email:         p.Email,
		Name:          p.Name,
		Picture:       p.PictureURL,
		EmailVerified: p.EmailVerified,
		Role:          h.gate.ResolveRole(stdCtx, p).String(),
	})
}

func (h *AuthHandler) setCookie(ctx *fasthttp.RequestCtx, name, value string, ttl time.Duration) {
	c := fasthttp.AcquireCookie()
	defer fasthttp.ReleaseCookie(c)
	c.SetKey(name)
	c.SetValue(value)
	c.SetPath("/")
	c.SetHTTPOnly(true)
	c.SetSecure(h.cookie.Secure)
	c.SetSameSite(fasthttp.CookieSameSiteLaxMode)
	c.SetMaxAge(int(ttl.Seconds()))
	ctx.Response.Header.SetCookie(c)
}

func (h *AuthHandler) clearCookie(ctx *fasthttp.RequestCtx, name string) {
	ctx.Response.Header.DelClientCookie(name)
}
