package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/meridian-hq/meridian/internal/app"
	"github.com/meridian-hq/meridian/internal/auth"
	"github.com/meridian-hq/meridian/internal/guard"
	"github.com/meridian-hq/meridian/internal/observability"
	"github.com/meridian-hq/meridian/internal/platform/cache"
	"github.com/meridian-hq/meridian/internal/platform/db"
	"github.com/meridian-hq/meridian/internal/policy"
	"github.com/meridian-hq/meridian/internal/session"
	"github.com/meridian-hq/meridian/internal/settings"
	"github.com/meridian-hq/meridian/internal/shared"
	"github.com/meridian-hq/meridian/jobs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	engine := policy.NewEngine(policy.WithDiagnostics(func(err policy.LookupError) {
		logger.Warn("policy lookup failed",
			slog.String("module", string(err.Module)),
			slog.String("role", string(err.Role)),
			slog.String("reason", err.Reason))
		metrics.CountPolicyLookupFailure()
	}))

	auditLogger := shared.NewAuditLogger(dbpool, logger)

	credStore := auth.NewPGCredentialStore(dbpool)
	identity := auth.NewDirectoryProvider(credStore, redisClient, cfg.IdentitySecret, cfg.CredentialTTL)
	profiles := auth.NewProfileRepository(dbpool)
	sessions := session.NewRedisStore(redisClient, cfg.SessionTimeout)

	gateway, err := auth.NewGateway(auth.GatewayConfig{
		Identity:       identity,
		Profiles:       profiles,
		Engine:         engine,
		Sessions:       sessions,
		Audit:          auditLogger,
		Metrics:        metrics,
		Logger:         logger,
		SystemDomain:   cfg.SystemDomain,
		SessionTimeout: cfg.SessionTimeout,
		TickInterval:   cfg.SessionTickInterval,
		OnWarning: func(sessionID string, remaining time.Duration) {
			logger.Info("session expiring soon",
				slog.String("session_id", sessionID),
				slog.Duration("remaining", remaining))
		},
	})
	if err != nil {
		logger.Error("build gateway", slog.Any("error", err))
		os.Exit(1)
	}

	authHandler := auth.NewHandler(logger, gateway, metrics)

	guardMW := guard.Middleware{Engine: engine, Logger: logger}
	settingsRepo := settings.NewRepository(dbpool)
	settingsService := settings.NewService(settingsRepo, auditLogger, logger)
	settingsHandler := settings.NewHandler(logger, settingsService, guardMW)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		Gateway:         gateway,
		AuthHandler:     authHandler,
		SettingsHandler: settingsHandler,
		JobHandler:      jobHandler,
		Metrics:         metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
	gateway.Shutdown(shutdownCtx)
}
