package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/factorysh/panem/internal/app/migrate"
	"github.com/factorysh/panem/pkg/config"
	"github.com/factorysh/panem/pkg/logger"
)

func main() {
	command := flag.String("command", "up", "migrate command (up|status|down)")
	timeout := flag.Duration("timeout", time.Minute, "command timeout")
	target := flag.Int64("target", 0, "target version for down command (optional)")
	wait := flag.Int("wait", 1, "database ping attempts before giving up, two seconds apart")
	flag.Parse()

	cfg := config.LoadServerConfig()
	log := logger.New("migrate", logger.ParseLevel(cfg.LogLevel))
	if cfg.DatabaseURL == "" {
		log.Error("DATABASE_URL or POSTGRES_USER/POSTGRES_PASSWORD/POSTGRES_DB is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	runner, err := migrate.New(pool, cfg.DatabaseURL, cfg.MigrationsDir, log)
	if err != nil {
		log.Error("failed to configure migration runner", "error", err)
		os.Exit(1)
	}
	defer runner.Close()

	if err := runner.WaitReady(ctx, *wait, 2*time.Second); err != nil {
		log.Error("database unreachable", "error", err)
		os.Exit(1)
	}

	switch *command {
	case "up":
		err = runner.Ensure(ctx)
	case "status":
		err = runner.Status(ctx)
	case "down":
		err = runner.Down(ctx, *target)
	default:
		log.Error("unsupported command", "command", *command)
		os.Exit(1)
	}
	if err != nil {
		log.Error("migration command failed", "command", *command, "error", err)
		os.Exit(1)
	}

	log.Info("migration command completed", "command", *command)
}
