// cmd/historian is an asynchronous service that pops action records from a Redis queue and
// persists them to the game_history table.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jason-s-yu/tycoon/internal/cache"
	"github.com/jason-s-yu/tycoon/internal/config"
	"github.com/jason-s-yu/tycoon/internal/database"
	"github.com/jason-s-yu/tycoon/internal/historian"
	"github.com/sirupsen/logrus"
)

func main() {
	logger := logrus.New()
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("config: %v", err)
	}
	logger.SetLevel(cfg.LogLevel)
	if cfg.RedisAddr == "" {
		logger.Fatal("REDIS_ADDR is empty; the historian has nothing to consume")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := database.Open(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatalf("database: %v", err)
	}
	defer store.Close()

	client, err := cache.ConnectRedis(ctx, cfg.RedisAddr, cfg.RedisDB)
	if err != nil {
		logger.Fatalf("redis: %v", err)
	}
	defer client.Close()

	historian.New(client, store, cfg.Historian, logger).Run(ctx)
	logger.Info("historian stopped")
}
