package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"tuition/internal/config"
	"tuition/internal/queue"
	"tuition/internal/store"
	"tuition/internal/tuition"
)

// Worker consumes reminder jobs published by the api and delivers them.
func main() {
	cfg := config.Load()
	logger := cfg.Logger()
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("worker failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.App, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.InProcessQueue() {
		logger.Warn("worker needs the redis queue and postgres store; in-memory backends are processed inside the api")
		return nil
	}

	db, err := store.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	redisClient, err := store.NewRedis(cfg.RedisURL)
	if err != nil {
		return err
	}
	defer redisClient.Close()
	if err := redisClient.Ping(ctx); err != nil {
		logger.Warn("redis not reachable yet; consumer will keep retrying", "error", err)
	}

	q := queue.NewRedisQueue(redisClient.Client, cfg.QueueKey)
	svc := tuition.NewService(tuition.NewRepository(db.Client), tuition.NewRedisCache(redisClient.Client, cfg.CacheTTL), nil, logger)

	return svc.RunReminderWorker(ctx, q)
}
