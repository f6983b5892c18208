package main

import (
	"context"
	"os"
	"time"

	"crm/internal/cli"
	"crm/internal/log"
	"crm/internal/services"
	"crm/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), log.ComponentWorker)
	logger.Info("Starting billing-worker")

	cfg := cli.LoadAndValidateConfig(logger.Logger)

	ctx := context.Background()
	store := cli.InitStore(ctx, logger.Logger, cfg)
	defer store.Cleanup()

	rdb, err := cli.OpenRedis(ctx, cfg)
	if err != nil {
		logger.Error("Failed to connect to Redis", log.FieldError, err)
		os.Exit(1)
	}
	if rdb != nil {
		defer rdb.Close()
	}

	var biller worker.AutoBiller
	if cfg.AutoRun {
		publisher, err := cli.OpenAMQP(cfg)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, invoice events disabled", log.FieldError, err)
			publisher = nil
		}
		if publisher != nil {
			defer publisher.Close()
		}
		biller = cli.BillingEngine(cfg, store.Repository, rdb, publisher)
		if rdb == nil {
			logger.Warn("Automatic billing without Redis: claims are local to this process")
		}
	}

	// The sweeper drops the shared alert cache; a local cache would live in
	// another process and is left to expire.
	var invalidator worker.Invalidator
	if rdb != nil {
		invalidator = services.NewRedisAlertCache(rdb, cfg.AlertsCacheTTL)
	}

	sweeper := worker.NewSweeper(store.Repository, biller, invalidator, cfg.SweepInterval)

	runCtx, done := cli.GracefulShutdown(logger.Logger, 30*time.Second, nil)
	logger.Info("Billing sweeper configured",
		"interval", cfg.SweepInterval,
		"auto_billing", cfg.AutoRun)

	sweeper.Run(runCtx)

	cli.WaitForShutdown(runCtx, done)
	logger.Info("Billing-worker shutdown complete")
}
