package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"crm/internal/cache"
	"crm/internal/cli"
	apphttp "crm/internal/http"
	"crm/internal/log"
	"crm/internal/middleware/ratelimit"
	"crm/internal/services"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), log.ComponentApp)
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
		logger.Info("Redis enabled for alert cache and billing claims")
	}

	// Invoices are still generated without a broker; only the ledger sync is lost.
	publisher, err := cli.OpenAMQP(cfg)
	if err != nil {
		logger.Warn("Failed to initialize AMQP client, invoice events disabled", log.FieldError, err)
		publisher = nil
	}
	if publisher != nil {
		defer publisher.Close()
	}

	alertCache, cleaner := cli.AlertCache(cfg, rdb)
	cacheManager := cache.NewManager()
	if cleaner != nil {
		cacheManager.Register(cleaner)
		cacheManager.StartCleanup(time.Minute)
	}

	alerts, err := services.NewAlertService(store.Repository, cli.AlertConfig(cfg), alertCache)
	if err != nil {
		logger.Error("Invalid alert configuration", log.FieldError, err)
		os.Exit(1)
	}

	engine := cli.BillingEngine(cfg, store.Repository, rdb, publisher)
	engine.SetInvalidator(alerts)

	srv := apphttp.NewServer(apphttp.Options{
		Addr:      ":" + cfg.Port,
		DueDays:   cfg.DueDays,
		RateLimit: ratelimit.DefaultConfig(),
		Logger:    logger,
	}, store.Repository, engine, alerts)

	// Configure server timeouts and limits
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	runCtx, done := cli.GracefulShutdown(logger.Logger, 30*time.Second, func(shutdownCtx context.Context) {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		cacheManager.Stop()
	})

	refresher := services.NewAlertRefresher(alerts, cfg.AlertsPollInterval)
	go refresher.Run(runCtx)

	logger.Info("Starting crm server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"auto_billing", cfg.AutoRun)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(runCtx, done)
	logger.Info("Server stopped gracefully")
}
