package middleware

import (
	"context"
	"net/http"

	"github.com/valyala/fasthttp"

	"github.com/fastygo/dashboard/api/transport"
	"github.com/fastygo/dashboard/domain"
	"github.com/fastygo/dashboard/pkg/httpcontext"
	authUC "github.com/fastygo/dashboard/usecase/auth"
)

// Guard admits the request only when the gate authorizes the caller for one
// of roles; with no roles any signed-in caller passes. Denied requests get a
// 401 with a login link or a 403 naming the caller's role, and next is not called.
func Guard(gate *authUC.Gate, adapter *httpcontext.Adapter, loginURL string, roles ...domain.Role) func(fasthttp.RequestHandler) fasthttp.RequestHandler {
	if adapter == nil {
		adapter = httpcontext.NewAdapter(0)
	}
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			stdCtx, cancel := adapter.Attach(ctx)
			caller, err := gate.Authorize(stdCtx, IdentityFrom(ctx), roles, denialWriter(ctx, loginURL))
			cancel()
			if err != nil {
				return
			}
			ctx.SetUserValue(callerKey, caller)
			next(ctx)
		}
	}
}

func denialWriter(ctx *fasthttp.RequestCtx, loginURL string) authUC.Effect {
	return func(_ context.Context, d *authUC.Denial) {
		var (
			status int
			code   domain.ErrorCode
			meta   transport.DenialMeta
		)
		switch d.Reason {
		case authUC.ReasonForbidden:
			status, code = http.StatusForbidden, domain.ErrCodeForbidden
			meta = transport.DenialMeta{
				Role:          d.Role.String(),
				RequiredRoles: domain.RoleStrings(d.Allowed),
			}
		default:
			status, code = http.StatusUnauthorized, domain.ErrCodeUnauthorized
			meta = transport.DenialMeta{LoginURL: loginURL}
			ctx.Response.Header.Set("WWW-Authenticate", `Bearer realm="dashboard"`)
		}

		ctx.Response.Header.SetContentType("application/json")
		ctx.SetStatusCode(status)
		ctx.SetBody(transport.NewError(string(code), d.Message, meta).Bytes())
	}
}
