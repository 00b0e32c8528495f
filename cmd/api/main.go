// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Command api is the entry point for the gatekeep HTTP API server.
//
// # Startup Sequence
//
//  1. Load .env (local development) and configuration from the environment.
//  2. Initialize structured logger and error reporting.
//  3. Connect to PostgreSQL (pgxpool) and run migrations (idempotent).
//  4. Connect to Redis.
//  5. Build the token codec, hashers and the auth service.
//  6. Start HTTP server with graceful shutdown.
//
// No business logic lives here. All wiring is explicit constructor injection.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/taibuivan/gatekeep/internal/api"
	"github.com/taibuivan/gatekeep/internal/platform/config"
	"github.com/taibuivan/gatekeep/internal/platform/constants"
	"github.com/taibuivan/gatekeep/internal/platform/metrics"
	"github.com/taibuivan/gatekeep/internal/platform/migration"
	"github.com/taibuivan/gatekeep/internal/platform/observability"
	pgstore "github.com/taibuivan/gatekeep/internal/platform/postgres"
	redisstore "github.com/taibuivan/gatekeep/internal/platform/redis"
	"github.com/taibuivan/gatekeep/internal/platform/respond"
	"github.com/taibuivan/gatekeep/internal/platform/sec"
	"github.com/taibuivan/gatekeep/internal/system/audit"
	"github.com/taibuivan/gatekeep/internal/users/auth"
)

func main() {
	// ── 1. Configuration ──────────────────────────────────────────────────
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	log := newLogger(slog.LevelInfo)
	slog.SetDefault(log)

	cfg, err := config.Load()
	must(log, err, "load configuration")

	// ── 2. Logger & Error Reporting ───────────────────────────────────────
	if cfg.Debug {
		log = newLogger(slog.LevelDebug)
		slog.SetDefault(log)
		log.Debug("debug_logging_enabled")
	}
	respond.EnableDebug(cfg.Debug && cfg.IsDevelopment())

	must(log, observability.InitSentry(cfg.SentryDSN, cfg.Environment), "initialize sentry")
	defer observability.FlushSentry()

	log.Info("configuration_loaded",
		slog.String("environment", cfg.Environment),
		slog.String("port", cfg.ServerPort),
	)

	// Misconfiguration is caught quickly rather than hanging indefinitely.
	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	// ── 3. PostgreSQL ─────────────────────────────────────────────────────
	pool, err := pgstore.NewPool(startupCtx, cfg.DatabaseURL, log)
	must(log, err, "connect to postgres")
	defer func() {
		log.Info("closing_postgres_pool")
		pool.Close()
	}()

	must(log, migration.RunUp(cfg.DatabaseURL, cfg.MigrationPath, log), "run migrations")

	// ── 4. Redis ──────────────────────────────────────────────────────────
	rdb, err := redisstore.NewClient(startupCtx, cfg.RedisURL, log)
	must(log, err, "connect to redis")
	defer func() {
		log.Info("closing_redis_client")
		if cerr := rdb.Close(); cerr != nil {
			log.Error("redis_close_failed", slog.Any("error", cerr))
		}
	}()

	// ── 5. Security Primitives ────────────────────────────────────────────
	codec, err := sec.NewTokenCodec(sec.TokenCodecConfig{
		AccessSecret:  []byte(cfg.JWTAccessSecret),
		RefreshSecret: []byte(cfg.JWTRefreshSecret),
		AccessTTL:     cfg.AccessTokenTTL,
		RefreshTTL:    cfg.RefreshTokenTTL,
		Issuer:        constants.AuthIssuer,
	})
	must(log, err, "initialize token codec")

	passwords, err := sec.NewPasswordHasher(cfg.PasswordHasher)
	must(log, err, "initialize password hasher")

	tokenHasher, err := sec.NewTokenHasher([]byte(cfg.RefreshTokenHashKey))
	must(log, err, "initialize token hasher")

	// ── 6. Domain Wiring ──────────────────────────────────────────────────
	collector := metrics.New()

	dispatcher := audit.NewDispatcher(audit.NewPostgresSink(pool), cfg.AuditBufferSize, log)
	defer dispatcher.Close()
	collector.TrackAuditDropped(dispatcher.Dropped)

	accounts := auth.NewAccountRepository(pool)
	sessions := auth.NewSessionManager(accounts, tokenHasher, auth.SessionConfig{
		RefreshTTL:  cfg.RefreshTokenTTL,
		GracePeriod: cfg.RefreshGracePeriod,
	})

	authService, err := auth.NewService(auth.Deps{
		Accounts:  accounts,
		Roles:     auth.NewRoleRepository(pool),
		Sessions:  sessions,
		Codec:     codec,
		Passwords: passwords,
		Failures:  auth.NewFailureTracker(rdb, cfg.LoginFailureWindow),
		Audit:     dispatcher,
		Metrics:   collector,
	}, auth.Config{FailureThreshold: int64(cfg.LoginFailureThreshold)})
	must(log, err, "initialize auth service")

	// ── 7. HTTP Server ────────────────────────────────────────────────────
	liveness, readiness := api.NewHealthHandlers(api.HealthDependencies{
		CheckDatabase: func() error {
			return pgstore.Ping(context.Background(), pool)
		},
		CheckCache: func() error {
			return redisstore.Ping(context.Background(), rdb)
		},
	}, log)

	server := api.NewServer(cfg, log, collector, api.Handlers{
		Liveness:  liveness,
		Readiness: readiness,
		Auth:      auth.NewHandler(authService, codec, cfg.IsProduction()),
	})

	// ── 8. Graceful Shutdown ──────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case sig := <-quit:
		log.Info("shutdown_signal_received", slog.String("signal", sig.String()))
	case err := <-serverErr:
		log.Error("server_startup_failed", slog.Any("error", err))
	}

	log.Info("server_shutting_down", slog.Duration("timeout", constants.ShutdownTimeout))

	if err := server.Shutdown(constants.ShutdownTimeout); err != nil {
		log.Error("server_shutdown_failed", slog.Any("error", err))
		return
	}

	log.Info("server_stopped")
}

// newLogger builds the JSON logger tagged with the application name.
func newLogger(level slog.Level) *slog.Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	return slog.New(handler).With(slog.String("app", constants.AppName))
}

// must logs a structured fatal error and terminates the process if err is non-nil.
//
// It is limited to startup wiring. After startup, all errors are returned
// and handled explicitly.
func must(log *slog.Logger, err error, step string) {
	if err != nil {
		log.Error("startup_failed",
			slog.String("step", step),
			slog.Any("error", err),
		)
		os.Exit(1)
	}
}
