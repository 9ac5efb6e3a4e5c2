package handler

import (
	"net/http"
	"net/url"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/dashboard/api/transport"
	"github.com/fastygo/dashboard/domain"
	"github.com/fastygo/dashboard/internal/cache"
	"github.com/fastygo/dashboard/internal/middleware"
	"github.com/fastygo/dashboard/pkg/httpcontext"
	"github.com/fastygo/dashboard/repository"
	analyticsUC "github.com/fastygo/dashboard/usecase/analytics"
	profileUC "github.com/fastygo/dashboard/usecase/profile"
)

// AdminHandler serves the admin-only endpoints. Routes are wrapped in an
// admin Guard, so handlers assume the caller is an admin.
type AdminHandler struct {
	baseHandler
	analytics *analyticsUC.UseCase
	profiles  *profileUC.UseCase
	cache     *cache.Cache
}

func NewAdminHandler(analytics *analyticsUC.UseCase, profiles *profileUC.UseCase, c *cache.Cache, adapter *httpcontext.Adapter, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		baseHandler: newBaseHandler(adapter, logger),
		analytics:   analytics,
		profiles:    profiles,
		cache:       c,
	}
}

// @Summary Application statistics
// @Tags admin
// @Router /api/v1/admin/stats [get]
func (h *AdminHandler) AppStats(ctx *fasthttp.RequestCtx) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	stats, err := h.analytics.AppStats(stdCtx)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, map[string]any{
		"total_users":     stats.TotalUsers,
		"active_users":    stats.ActiveUsers,
		"total_actions":   stats.TotalActions,
		"engagement_rate": stats.EngagementRate(),
	})
}

// @Summary List users
// @Tags admin
// @Router /api/v1/admin/users [get]
func (h *AdminHandler) ListUsers(ctx *fasthttp.RequestCtx) {
	args := ctx.QueryArgs()
	filter := repository.UserFilter{
		Role:   string(args.Peek("role")),
		Search: string(args.Peek("q")),
		Limit:  args.GetUintOrZero("limit"),
		Offset: args.GetUintOrZero("offset"),
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	users, err := h.profiles.ListUsers(stdCtx, filter)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondJSON(ctx, http.StatusOK, transport.NewSuccess(users, transport.PageMeta{
		Count:  len(users),
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}))
}

// @Summary Activity statistics for one user
// @Tags admin
// @Router /api/v1/admin/users/{email}/stats [get]
func (h *AdminHandler) UserStats(ctx *fasthttp.RequestCtx) {
	email, ok := h.emailParam(ctx)
	if !ok {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	stats, err := h.analytics.UserStats(stdCtx, email)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, stats)
}

// @Summary Change a user's role
// @Tags admin
// @Router /api/v1/admin/users/{email}/role [put]
func (h *AdminHandler) SetRole(ctx *fasthttp.RequestCtx) {
	email, ok := h.emailParam(ctx)
	if !ok {
		return
	}
	var req transport.RoleRequest
	if !h.decode(ctx, &req) {
		return
	}

	actor := ""
	if caller, ok := middleware.CallerFrom(ctx); ok {
		actor = caller.Principal.Email
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	user, err := h.profiles.SetRole(stdCtx, actor, email, domain.Role(req.Role))
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, user)
}

// @Summary Cache statistics
// @Tags admin
// @Router /api/v1/admin/cache [get]
func (h *AdminHandler) CacheStats(ctx *fasthttp.RequestCtx) {
	stats := h.cache.Stats()
	h.respondSuccess(ctx, http.StatusOK, map[string]any{
		"size":      stats.Size,
		"hits":      stats.Hits,
		"misses":    stats.Misses,
		"evictions": stats.Evictions,
		"hit_ratio": hitRatio(stats),
	})
}

// @Summary Drop every cached entry
// @Tags admin
// @Router /api/v1/admin/cache [delete]
func (h *AdminHandler) ClearCache(ctx *fasthttp.RequestCtx) {
	size := h.cache.Size()
	h.cache.Clear()
	h.logger.Info("cache cleared", zap.Int("entries", size))
	h.respondSuccess(ctx, http.StatusOK, map[string]int{"cleared": size})
}

func (h *AdminHandler) emailParam(ctx *fasthttp.RequestCtx) (string, bool) {
	raw, _ := ctx.UserValue("email").(string)
	email, err := url.PathUnescape(raw)
	if err != nil || email == "" {
		h.respondError(ctx, domain.NewError(domain.ErrCodeInvalid, "email path parameter is required"))
		return "", false
	}
	return email, true
}

func hitRatio(s cache.Stats) float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}
