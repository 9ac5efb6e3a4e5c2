package handler

import (
	"context"
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/dashboard/api/transport"
	"github.com/fastygo/dashboard/domain"
	"github.com/fastygo/dashboard/internal/middleware"
	"github.com/fastygo/dashboard/pkg/httpcontext"
	analyticsUC "github.com/fastygo/dashboard/usecase/analytics"
)

type AnalyticsHandler struct {
	baseHandler
	uc *analyticsUC.UseCase
}

func NewAnalyticsHandler(uc *analyticsUC.UseCase, adapter *httpcontext.Adapter, logger *zap.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{
		baseHandler: newBaseHandler(adapter, logger),
		uc:          uc,
	}
}

// @Summary Record a page view or action for the caller
// @Tags analytics
// @Router /api/v1/activity [post]
func (h *AnalyticsHandler) Track(ctx *fasthttp.RequestCtx) {
	caller, ok := middleware.CallerFrom(ctx)
	if !ok {
		h.respondError(ctx, domain.ErrUnauthorized)
		return
	}

	var req transport.ActivityRequest
	if !h.decode(ctx, &req) {
		return
	}
	if req.Action == "" {
		req.Action = domain.ActionPageView
	}
	if req.Action == domain.ActionPageView && req.Page == "" {
		h.respondError(ctx, domain.NewError(domain.ErrCodeInvalid, "page is required for page views"))
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	visit := visitFrom(ctx)
	h.uc.TrackAction(stdCtx, &domain.ActivityLog{
		UserEmail: caller.Principal.Email,
		Action:    req.Action,
		Page:      req.Page,
		Details:   req.Details,
		IPAddress: visit.IPAddress,
		UserAgent: visit.UserAgent,
	})
	h.respondSuccess(ctx, http.StatusAccepted, map[string]bool{"tracked": true})
}

// @Summary Activity statistics for the caller
// @Tags analytics
// @Router /api/v1/stats/me [get]
func (h *AnalyticsHandler) MyStats(ctx *fasthttp.RequestCtx) {
	caller, ok := middleware.CallerFrom(ctx)
	if !ok {
		h.respondError(ctx, domain.ErrUnauthorized)
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	stats, err := h.uc.UserStats(stdCtx, caller.Principal.Email)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, stats)
}

func visitFrom(ctx *fasthttp.RequestCtx) analyticsUC.Visit {
	return analyticsUC.Visit{
		IPAddress: httpcontext.ClientIP(ctx),
		UserAgent: string(ctx.Request.Header.UserAgent()),
	}
}

func (h *AuthHandler) track(ctx context.Context, email, action string, visit analyticsUC.Visit) {
	if h.analytics == nil {
		return
	}
	h.analytics.TrackAction(ctx, &domain.ActivityLog{
		UserEmail: email,
		Action:    action,
		IPAddress: visit.IPAddress,
		UserAgent: visit.UserAgent,
	})
}
