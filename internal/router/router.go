package router

import (
	"github.com/fasthttp/router"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"

	apiHandler "github.com/fastygo/dashboard/api/handler"
)

type Handlers struct {
	Auth      *apiHandler.AuthHandler
	Profile   *apiHandler.ProfileHandler
	Analytics *apiHandler.AnalyticsHandler
	Admin     *apiHandler.AdminHandler
	Health    *apiHandler.HealthHandler
}

type Middleware func(fasthttp.RequestHandler) fasthttp.RequestHandler

// Middlewares groups the wrappers the routes are composed with.
type Middlewares struct {
	// Identity runs on every request and only attaches the caller's identity.
	Identity Middleware
	// Authenticated admits any signed-in caller.
	Authenticated Middleware
	// Admin admits callers whose stored role is admin.
	Admin Middleware
	// LoginLimit throttles the sign-in endpoints.
	LoginLimit Middleware
}

// New registers every route. When gatherer is non-nil it is served on /metrics.
func New(handlers Handlers, mw Middlewares, gatherer prometheus.Gatherer) fasthttp.RequestHandler {
	mw = withDefaults(mw)
	r := router.New()

	r.GET("/health", handlers.Health.Check)
	if gatherer != nil {
		r.GET("/metrics", fasthttpadaptor.NewFastHTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	auth := r.Group("/auth")
	auth.GET("/login", mw.LoginLimit(handlers.Auth.Login))
	auth.GET("/callback", mw.LoginLimit(handlers.Auth.Callback))
	auth.POST("/logout", handlers.Auth.Logout)
	auth.POST("/refresh", mw.LoginLimit(handlers.Auth.Refresh))

	v1 := r.Group("/api/v1")
	v1.GET("/me", handlers.Auth.Me)

	v1.GET("/profile", mw.Authenticated(handlers.Profile.GetProfile))
	v1.PUT("/profile/preferences", mw.Authenticated(handlers.Profile.UpdatePreferences))

	v1.POST("/activity", mw.Authenticated(handlers.Analytics.Track))
	v1.GET("/stats/me", mw.Authenticated(handlers.Analytics.MyStats))

	admin := v1.Group("/admin")
	admin.GET("/stats", mw.Admin(handlers.Admin.AppStats))
	admin.GET("/users", mw.Admin(handlers.Admin.ListUsers))
	admin.GET("/users/{email}/stats", mw.Admin(handlers.Admin.UserStats))
	admin.PUT("/users/{email}/role", mw.Admin(handlers.Admin.SetRole))
	admin.GET("/cache", mw.Admin(handlers.Admin.CacheStats))
	admin.DELETE("/cache", mw.Admin(handlers.Admin.ClearCache))

	return mw.Identity(r.Handler)
}

func withDefaults(mw Middlewares) Middlewares {
	pass := func(next fasthttp.RequestHandler) fasthttp.RequestHandler { return next }
	deny := func(fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			ctx.Error(fasthttp.StatusMessage(fasthttp.StatusUnauthorized), fasthttp.StatusUnauthorized)
		}
	}
	if mw.Identity == nil {
		mw.Identity = pass
	}
	if mw.LoginLimit == nil {
		mw.LoginLimit = pass
	}
	if mw.Authenticated == nil {
		mw.Authenticated = deny
	}
	if mw.Admin == nil {
		mw.Admin = deny
	}
	return mw
}
