package main

import (
	"context"
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	apiHandler "github.com/fastygo/dashboard/api/handler"
	"github.com/fastygo/dashboard/domain"
	"github.com/fastygo/dashboard/internal/cache"
	"github.com/fastygo/dashboard/internal/config"
	"github.com/fastygo/dashboard/internal/infrastructure/buffer"
	"github.com/fastygo/dashboard/internal/infrastructure/monitor"
	pgInfra "github.com/fastygo/dashboard/internal/infrastructure/postgres"
	redisInfra "github.com/fastygo/dashboard/internal/infrastructure/redis"
	"github.com/fastygo/dashboard/internal/middleware"
	"github.com/fastygo/dashboard/internal/oauth"
	"github.com/fastygo/dashboard/internal/router"
	"github.com/fastygo/dashboard/internal/services"
	"github.com/fastygo/dashboard/internal/services/lifecycle"
	"github.com/fastygo/dashboard/pkg/httpcontext"
	"github.com/fastygo/dashboard/pkg/logger"
	"github.com/fastygo/dashboard/repository"
	"github.com/fastygo/dashboard/repository/memory"
	"github.com/fastygo/dashboard/repository/postgres"
	redisRepo "github.com/fastygo/dashboard/repository/redis"
	"github.com/fastygo/dashboard/usecase"
	analyticsUC "github.com/fastygo/dashboard/usecase/analytics"
	authUC "github.com/fastygo/dashboard/usecase/auth"
	profileUC "github.com/fastygo/dashboard/usecase/profile"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	zapLogger, err := logger.New(logger.Config{
		Level:    cfg.Logger.Level,
		Encoding: cfg.Logger.Encoding,
	})
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer zapLogger.Sync()

	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	manager := lifecycle.New(cfg.Context.ShutdownTimeout, zapLogger)
	manager.Listen(cancel)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	appCache := cache.New(
		cache.WithDefaultTTL(cfg.Cache.DefaultTTL),
		cache.WithMetrics(cache.NewMetrics(registry, cfg.Metrics.Namespace)),
	)
	startSweeper(manager, "cache_sweeper", appCache, cfg.Cache.SweepInterval, zapLogger)

	var (
		userRepo     repository.UserRepository
		activityRepo repository.ActivityRepository
		sessionRepo  repository.SessionRepository
		bufferStore  *buffer.Store
		monOpts      = monitor.Options{Cache: monitor.SizeFunc(appCache.Size), Logger: zapLogger}
	)

	switch cfg.Database.Driver {
	case config.DriverMemory:
		zapLogger.Warn("using in-memory storage; data is lost on restart")
		users := memory.NewUserRepository()
		userRepo = users
		activityRepo = memory.NewActivityRepository(users)
		// Sessions get their own cache so clearing the app cache does not sign everyone out.
		sessionCache := cache.New(cache.WithDefaultTTL(cfg.Auth.SessionTTL))
		startSweeper(manager, "session_sweeper", sessionCache, cfg.Cache.SweepInterval, zapLogger)
		sessionRepo = memory.NewSessionRepository(sessionCache, cfg.Auth.SessionTTL)

	default:
		if err := pgInfra.RunMigrations(cfg, zapLogger); err != nil {
			zapLogger.Fatal("migrations failed", zap.Error(err))
		}

		pool, err := pgInfra.NewPool(appCtx, cfg.Database, zapLogger)
		if err != nil {
			zapLogger.Fatal("postgres connection failed", zap.Error(err))
		}
		manager.Register("postgres", func(ctx context.Context) error {
			pgInfra.Close(pool, zapLogger)
			return nil
		})

		redisClient, err := redisInfra.NewClient(appCtx, cfg.Redis)
		if err != nil {
			zapLogger.Fatal("redis connection failed", zap.Error(err))
		}
		manager.Register("redis", func(ctx context.Context) error {
			return redisClient.Close()
		})

		bufferStore, err = buffer.Open(buffer.Config{Path: cfg.Buffer.Path, MaxSize: cfg.Buffer.MaxSize})
		if err != nil {
			zapLogger.Fatal("failed to open buffer store", zap.Error(err))
		}
		manager.Register("buffer", func(ctx context.Context) error {
			return bufferStore.Close()
		})

		userRepo = postgres.NewUserRepository(pool)
		activityRepo = postgres.NewActivityRepository(pool)
		sessionRepo = redisRepo.NewSessionRepository(redisClient, cfg.Auth.SessionTTL)

		monOpts.Postgres = monitor.PostgresProbe(pool)
		monOpts.Redis = monitor.RedisProbe(redisClient)
		monOpts.Buffer = bufferStore
	}

	mon := monitor.New(monOpts)
	mon.Start()
	manager.Register("monitor", func(ctx context.Context) error {
		mon.Stop()
		return nil
	})

	// Offline buffering only exists in front of Postgres.
	var writeBuffer usecase.WriteBuffer
	if bufferStore != nil {
		bufferProcessor := services.NewBufferProcessor(
			bufferStore,
			mon,
			userRepo,
			activityRepo,
			zapLogger,
			services.ProcessorConfig{
				Interval:   cfg.Buffer.SyncInterval,
				BatchSize:  cfg.Buffer.BatchSize,
				MaxRetries: cfg.Buffer.MaxRetry,
				Retention:  time.Duration(cfg.Buffer.RetentionHours) * time.Hour,
			},
		)
		bufferProcessor.Start()
		manager.Register("buffer_processor", func(ctx context.Context) error {
			bufferProcessor.Stop(ctx)
			return nil
		})
		writeBuffer = services.NewBufferBridge(bufferProcessor)
	}

	gate := authUC.NewGate(userRepo, authUC.GateConfig{
		AdminEmails:  cfg.Auth.AdminEmails,
		StoreTimeout: cfg.Auth.StoreTimeout,
	}, zapLogger, authUC.NewMetrics(registry, cfg.Metrics.Namespace))
	tokens := authUC.NewTokens(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.TTL)
	sessionUseCase := authUC.New(userRepo, sessionRepo, gate, cfg.Auth.SessionTTL, zapLogger)
	analyticsUseCase := analyticsUC.New(activityRepo, writeBuffer, appCache, analyticsUC.Config{
		Enabled:  cfg.Analytics.Enabled,
		StatsTTL: cfg.Cache.StatsTTL,
	}, zapLogger)
	profileUseCase := profileUC.New(userRepo, writeBuffer, zapLogger)

	var provider oauth.Provider
	if cfg.GoogleEnabled() {
		google, err := oauth.NewGoogle(appCtx, oauth.Config{
			ClientID:     cfg.Auth.GoogleClientID,
			ClientSecret: cfg.Auth.GoogleClientSecret,
			RedirectURL:  cfg.Auth.GoogleRedirectURL,
		})
		if err != nil {
			zapLogger.Error("google login disabled", zap.Error(err))
		} else {
			provider = google
		}
	} else {
		zapLogger.Warn("google oauth credentials missing; login endpoints answer 503")
	}

	ctxAdapter := httpcontext.NewAdapter(cfg.Context.RequestTimeout)

	handlers := router.Handlers{
		Auth: apiHandler.NewAuthHandler(sessionUseCase, gate, tokens, provider, analyticsUseCase, apiHandler.CookieConfig{
			Name:   cfg.Auth.CookieName,
			Secure: cfg.Auth.CookieSecure,
			TTL:    cfg.Auth.SessionTTL,
		}, ctxAdapter, zapLogger),
		Profile:   apiHandler.NewProfileHandler(profileUseCase, ctxAdapter, zapLogger),
		Analytics: apiHandler.NewAnalyticsHandler(analyticsUseCase, ctxAdapter, zapLogger),
		Admin:     apiHandler.NewAdminHandler(analyticsUseCase, profileUseCase, appCache, ctxAdapter, zapLogger),
		Health:    apiHandler.NewHealthHandler(mon, cfg.Database.Driver, ctxAdapter, zapLogger),
	}

	loginURL := cfg.HTTP.PublicBaseURL + "/auth/login"
	middlewares := router.Middlewares{
		Identity: middleware.Identity(middleware.IdentityConfig{
			Sessions:   sessionUseCase,
			Tokens:     tokens,
			CookieName: cfg.Auth.CookieName,
			Adapter:    ctxAdapter,
			Logger:     zapLogger,
		}),
		Authenticated: middleware.Guard(gate, ctxAdapter, loginURL),
		Admin:         middleware.Guard(gate, ctxAdapter, loginURL, domain.RoleAdmin),
		LoginLimit:    middleware.NewRateLimiter(cfg.Auth.LoginRate, cfg.Auth.LoginBurst).Middleware,
	}

	var gatherer prometheus.Gatherer
	if cfg.Metrics.Enabled {
		gatherer = registry
	}

	server := &fasthttp.Server{
		Handler:      router.New(handlers, middlewares, gatherer),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
		Concurrency:  cfg.HTTP.MaxConn,
		Name:         cfg.AppName,
	}

	go func() {
		zapLogger.Info("server started",
			zap.String("address", cfg.Address()),
			zap.String("driver", cfg.Database.Driver),
		)
		if err := server.ListenAndServe(cfg.Address()); err != nil {
			zapLogger.Fatal("server crashed", zap.Error(err))
		}
	}()

	manager.Register("http_server", func(ctx context.Context) error {
		return server.ShutdownWithContext(ctx)
	})

	<-appCtx.Done()

	if err := manager.Shutdown(context.Background()); err != nil {
		zapLogger.Error("graceful shutdown error", zap.Error(err))
	}
}

func startSweeper(manager *lifecycle.Manager, name string, c *cache.Cache, interval time.Duration, logger *zap.Logger) {
	sweeper, err := cache.NewSweeper(c, interval, logger)
	if err != nil {
		logger.Fatal("cache sweeper setup failed", zap.String("component", name), zap.Error(err))
	}
	sweeper.Start()
	manager.Register(name, func(ctx context.Context) error {
		sweeper.Stop(ctx)
		return nil
	})
}
