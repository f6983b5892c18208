package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"crm/internal/cli"
	"crm/internal/log"
	"crm/internal/sheets"
	gsheet "crm/internal/sheets/google"
	mem "crm/internal/sheets/memory"
	"crm/internal/worker"
)

type ledger interface {
	sheets.InvoiceLedger
	sheets.LedgerReader
}

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), log.ComponentWorker)
	logger.Info("Starting crm-worker")

	cfg := cli.LoadAndValidateConfig(logger.Logger)
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for crm-worker")
		os.Exit(1)
	}

	ctx := context.Background()
	store := cli.InitStore(ctx, logger.Logger, cfg)
	defer store.Cleanup()

	var invoiceLedger ledger
	if cfg.GoogleSpreadsheetID != "" {
		client, err := gsheet.NewFromEnv(ctx)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
			os.Exit(1)
		}
		invoiceLedger = client
		logger.Info("Google Sheets ledger enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		invoiceLedger = mem.New()
		logger.Info("Google Sheets disabled - no GOOGLE_SPREADSHEET_ID provided, using in-memory ledger")
	}

	rdb, err := cli.OpenRedis(ctx, cfg)
	if err != nil {
		logger.Error("Failed to connect to Redis", log.FieldError, err)
		os.Exit(1)
	}
	var dedupe worker.Deduper
	if rdb != nil {
		defer rdb.Close()
		dedupe = worker.NewRedisDeduper(rdb, cfg.DedupeTTL)
	}

	amqpClient, err := cli.OpenAMQP(cfg)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	invoiceWorker := worker.NewInvoiceWorker(store.Repository, invoiceLedger, dedupe)

	runCtx, done := cli.GracefulShutdown(logger.Logger, 30*time.Second, nil)

	// Catch up on invoices whose events were lost while the worker was down.
	if _, err := invoiceWorker.ReconcileLedger(runCtx, invoiceLedger, time.Now().Year()); err != nil {
		logger.Error("Startup ledger reconciliation failed", log.FieldError, err)
	}

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		return amqpClient.ConsumeInvoiceEvents(gctx, invoiceWorker.HandleInvoiceEvent)
	})
	g.Go(func() error {
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case now := <-ticker.C:
				if _, err := invoiceWorker.ReconcileLedger(gctx, invoiceLedger, now.Year()); err != nil {
					logger.Error("Periodic ledger reconciliation failed", log.FieldError, err)
				}
			}
		}
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", log.FieldError, err)
		os.Exit(1)
	}

	cli.WaitForShutdown(runCtx, done)
	logger.Info("Worker shutdown complete")
}
