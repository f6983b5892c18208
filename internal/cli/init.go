// Package cli provides common CLI initialization utilities.
// This package consolidates repeated initialization patterns across
// cmd/crm, cmd/crm-worker, and cmd/billing-worker.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"crm/internal/amqp"
	"crm/internal/backend"
	"crm/internal/cache"
	"crm/internal/config"
	"crm/internal/core"
	"crm/internal/log"
	"crm/internal/services"
)

// SetupLogger initializes structured logging at the given level for a
// component. An unknown level falls back to info with a warning.
// Returns the configured logger and sets it as the default logger.
func SetupLogger(level, component string) *log.Logger {
	lvl, err := log.ParseLevel(level)

	cfg := log.DefaultConfig()
	cfg.Level = lvl
	cfg.Component = component
	cfg.JSON = os.Getenv("LOG_FORMAT") == "json"

	logger := log.New(cfg)
	log.SetDefault(logger)
	if err != nil {
		logger.Warn("Invalid LOG_LEVEL, using info", log.FieldError, err)
	}
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *slog.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	return cfg
}

// InitStore opens the configured store and applies migrations.
// Returns the store or exits the process on failure.
func InitStore(ctx context.Context, logger *slog.Logger, cfg *config.Config) *backend.BackendResult {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	res, err := backend.NewFactory(logger).CreateBackend(ctx, bcfg)
	if err != nil {
		logger.Error("Failed to initialize store", log.FieldError, err, "backend", bcfg.Type)
		os.Exit(1)
	}
	return res
}

// OpenRedis returns a client for REDIS_URL, or nil when Redis is not
// configured. The connection is checked before returning.
func OpenRedis(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	if cfg.RedisURL == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// OpenAMQP connects to the broker, or returns nil when AMQP_URL is empty.
func OpenAMQP(cfg *config.Config) (*amqp.Client, error) {
	if cfg.AMQPURL == "" {
		return nil, nil
	}
	return amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
}

// RateTable builds the hourly rate table from configuration.
func RateTable(cfg *config.Config) services.RateTable {
	per := make(map[int64]core.Money, len(cfg.ProjectRates))
	for id, r := range cfg.ProjectRates {
		per[id] = r
	}
	return services.RateTable{Default: cfg.DefaultHourlyRate, PerProject: per}
}

// AlertConfig builds the alert windows and rule list from configuration.
func AlertConfig(cfg *config.Config) services.AlertConfig {
	ac := services.DefaultAlertConfig()
	ac.UpcomingDays = cfg.UpcomingDays
	ac.Thresholds = services.SuggestionThresholds{
		InactivityDays:     cfg.InactivityDays,
		ContractWindowDays: cfg.ContractWindowDays,
		StaleUnbilledDays:  cfg.StaleUnbilledDays,
	}
	if len(cfg.SuggestionRules) > 0 {
		ac.Rules = cfg.SuggestionRules
	}
	return ac
}

// AlertCache selects the Redis cache when a client is given, otherwise a
// process-local one. The returned Cleaner is nil for Redis, which expires
// keys itself.
func AlertCache(cfg *config.Config, rdb *redis.Client) (services.AlertCache, cache.Cleaner) {
	if rdb != nil {
		return services.NewRedisAlertCache(rdb, cfg.AlertsCacheTTL), nil
	}
	local := services.NewLocalAlertCache(cfg.AlertsCacheTTL)
	return local, local.Cleaner()
}

// BillingEngine wires the engine to the store, claim registry and optional
// event publisher. Claims are shared through Redis when rdb is set.
func BillingEngine(cfg *config.Config, store services.BillingStore, rdb *redis.Client, publisher *amqp.Client) *services.BillingEngine {
	var claims services.ClaimRegistry
	if rdb != nil {
		claims = services.NewRedisClaims(rdb, cfg.ClaimTTL)
	}
	var pub services.InvoicePublisher
	if publisher != nil {
		pub = publisher
	}
	return services.NewBillingEngine(store, RateTable(cfg), cfg.DueDays, claims, pub)
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that will be cancelled on shutdown signals,
// and a channel that signals when shutdown is complete.
func GracefulShutdown(logger *slog.Logger, timeout time.Duration, cleanup func(context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		cancel()
		if cleanup != nil {
			cleanup(shutdownCtx)
		}

		if shutdownCtx.Err() != nil {
			logger.Warn("Shutdown timeout reached")
		} else {
			logger.Info("Shutdown complete")
		}
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
