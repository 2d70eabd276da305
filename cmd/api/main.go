package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mertakgul/payflow/internal/api"
	"github.com/mertakgul/payflow/internal/auth"
	"github.com/mertakgul/payflow/internal/cache"
	"github.com/mertakgul/payflow/internal/config"
	"github.com/mertakgul/payflow/internal/db"
	"github.com/mertakgul/payflow/internal/logger"
	"github.com/mertakgul/payflow/internal/metrics"
	"github.com/mertakgul/payflow/internal/repository/postgres"
	"github.com/mertakgul/payflow/internal/scheduler"
	"github.com/mertakgul/payflow/internal/services"
	"github.com/mertakgul/payflow/internal/worker"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.Env)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("db connect", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	if os.Getenv("APP_MIGRATE") == "true" {
		if err := db.RunMigrations(ctx, pool); err != nil {
			log.Error("migrations", "err", err)
			os.Exit(1)
		}
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer func() { _ = rdb.Close() }()
	if err := rdb.Ping(ctx).Err(); err != nil {
		// the cache is optional; the store carries reads on its own
		log.Warn("redis unreachable, balance reads uncached", "addr", cfg.RedisAddr, "err", err)
	}

	metrics.Init()

	repos := postgres.NewRepositories(pool)
	wp := worker.NewPool(cfg.Workers)
	defer wp.Stop()

	acctCache := cache.NewAccounts(rdb, cfg.CacheTTL)
	tm := auth.NewTokenManager(cfg.AccessSecret, cfg.RefreshSecret, cfg.JWTIssuer, cfg.AccessTTL, cfg.RefreshTTL)

	userSvc := services.NewUserService(repos.Users)
	acctSvc := services.NewAccountService(repos.Accounts, repos.Transfers, repos.AuditLogs, acctCache, wp)

	growth := scheduler.NewGrowth(acctSvc, wp, cfg.GrowthInterval)
	if err := growth.Start(ctx); err != nil {
		log.Error("growth scheduler", "err", err)
		os.Exit(1)
	}
	defer growth.Stop()

	r := api.NewRouter(cfg, tm, userSvc, acctSvc)
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("server starting", "port", cfg.HTTPPort, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server", "err", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}
