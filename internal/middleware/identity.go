package middleware

import (
	"strings"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/dashboard/pkg/httpcontext"
	authUC "github.com/fastygo/dashboard/usecase/auth"
)

const (
	identityKey = "auth.identity"
	callerKey   = "auth.caller"
)

// IdentityConfig tells the identity middleware where credentials live.
type IdentityConfig struct {
	Sessions   *authUC.UseCase
	Tokens     *authUC.Tokens
	CookieName string
	Adapter    *httpcontext.Adapter
	Logger     *zap.Logger
}

// Identity resolves a bearer token or the session cookie into an identity
// and stores it on the request. It never rejects a request; guards decide.
func Identity(cfg IdentityConfig) func(fasthttp.RequestHandler) fasthttp.RequestHandler {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	adapter := cfg.Adapter
	if adapter == nil {
		adapter = httpcontext.NewAdapter(0)
	}

	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			if token := extractToken(ctx); token != "" && cfg.Tokens != nil {
				id, err := cfg.Tokens.Parse(token)
				if err != nil {
					logger.Debug("bearer token rejected", zap.Error(err))
				} else {
					ctx.SetUserValue(identityKey, authUC.Identity(id))
				}
				next(ctx)
				return
			}

			if sessionID := string(ctx.Request.Header.Cookie(cfg.CookieName)); sessionID != "" && cfg.Sessions != nil {
				stdCtx, cancel := adapter.Attach(ctx)
				id := cfg.Sessions.Identity(stdCtx, sessionID)
				cancel()
				if id != nil {
					ctx.SetUserValue(identityKey, id)
				}
			}
			next(ctx)
		}
	}
}

// IdentityFrom returns the identity attached by Identity, or nil for anonymous requests.
func IdentityFrom(ctx *fasthttp.RequestCtx) authUC.Identity {
	id, _ := ctx.UserValue(identityKey).(authUC.Identity)
	return id
}

// CallerFrom returns the caller a Guard admitted.
func CallerFrom(ctx *fasthttp.RequestCtx) (authUC.Caller, bool) {
	caller, ok := ctx.UserValue(callerKey).(authUC.Caller)
	return caller, ok
}

func extractToken(ctx *fasthttp.RequestCtx) string {
	header := string(ctx.Request.Header.Peek("Authorization"))
	if header == "" {
		return ""
	}
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return ""
}
