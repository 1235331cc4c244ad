package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/factorysh/panem/internal/app/migrate"
	httpx "github.com/factorysh/panem/internal/http"
	"github.com/factorysh/panem/internal/repository"
	"github.com/factorysh/panem/internal/repository/memory"
	"github.com/factorysh/panem/internal/repository/postgres"
	"github.com/factorysh/panem/internal/service/project"
	"github.com/factorysh/panem/internal/service/webhook"
	"github.com/factorysh/panem/pkg/config"
	"github.com/factorysh/panem/pkg/logger"
)

const dbStartupInterval = 2 * time.Second

func main() {
	cfg := config.LoadServerConfig()
	log := logger.New("panemd", logger.ParseLevel(cfg.LogLevel))

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	events, err := config.LoadEventTable(cfg.EventsConfigPath)
	if err != nil {
		log.Error("failed to load events config", "path", cfg.EventsConfigPath, "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		log.Error("failed to open store", "driver", cfg.StoreDriver, "error", err)
		os.Exit(1)
	}
	defer closeStore()

	notifier, err := webhook.New(webhook.Config{
		URL:     cfg.WebhookURL,
		APIKey:  cfg.WebhookAPIKey,
		Timeout: cfg.WebhookTimeout,
	}, events, log, webhook.WithMetrics(webhook.NewMetrics(prometheus.DefaultRegisterer)))
	if err != nil {
		log.Error("failed to configure webhook", "error", err)
		os.Exit(1)
	}
	projectSvc := project.New(repo, notifier, log)

	var limiter httpx.RateLimiter
	if addr := strings.TrimSpace(cfg.RateLimitRedisAddr); addr != "" && cfg.RateLimitPerMinute > 0 {
		redisLimiter, err := httpx.NewRedisRateLimiter(ctx, addr, cfg.RateLimitRedisPass, cfg.RateLimitRedisDB, log)
		if err != nil {
			log.Warn("redis rate limiter unavailable, using in-process limiter", "error", err)
		} else {
			limiter = redisLimiter
		}
	}

	router := httpx.NewRouter(log, projectSvc, httpx.Options{
		APIKeyHash: cfg.APIKeyHash,
		Limiter:    limiter,
		RateLimit:  cfg.RateLimitPerMinute,
		Health:     repo.Ping,
	})
	defer router.Close()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errorCh := make(chan error, 1)
	go func() {
		log.Info("api server starting", "addr", cfg.Addr, "env", cfg.Environment, "store", cfg.StoreDriver)
		errorCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", "error", err)
		}
		log.Info("api server stopped")
	case err := <-errorCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}
}

// openStore returns the configured record store. The postgres store waits for
// the database and applies pending migrations first.
func openStore(ctx context.Context, cfg config.ServerConfig, log *slog.Logger) (repository.ProjectRepository, func(), error) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		log.Warn("using in-memory store, projects are lost on restart")
		return memory.New(), func() {}, nil
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}
	runner, err := migrate.New(pool, cfg.DatabaseURL, cfg.MigrationsDir, log)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("configure migrations: %w", err)
	}
	if err := runner.WaitReady(ctx, cfg.DBStartupAttempts, dbStartupInterval); err != nil {
		runner.Close()
		return nil, nil, err
	}
	if err := runner.Ensure(ctx); err != nil {
		runner.Close()
		return nil, nil, fmt.Errorf("apply migrations: %w", err)
	}
	return postgres.New(pool), runner.Close, nil
}
