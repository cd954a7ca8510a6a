package main

import (
	"context"
	"errors"
	"os"
	"time"

	"comparativo/internal/amqp"
	"comparativo/internal/cli"
	"comparativo/internal/config"
	gsheet "comparativo/internal/sheets/google"
	"comparativo/internal/storage"
	"comparativo/internal/worker"
)

func main() {
	envErr := cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
	if envErr != nil {
		logger.Warn("Ignoring unreadable .env file", "error", envErr)
	}
	logger.Info("Starting comparativo-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	if err := cfg.ValidateWorker(); err != nil {
		logger.Error("Worker configuration validation failed", "error", err)
		os.Exit(1)
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	// Google Sheets history
	initCtx, cancelInit := context.WithTimeout(ctx, 30*time.Second)
	sheetsClient, err := gsheet.New(initCtx, gsheet.Config{
		SpreadsheetID:      cfg.GoogleSpreadsheetID,
		SheetName:          cfg.GoogleSheetName,
		ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
		ServiceAccountFile: cfg.GoogleServiceAccountFile,
	})
	if err != nil {
		cancelInit()
		logger.Error("Failed to initialize Google Sheets client", "error", err)
		os.Exit(1)
	}
	if err := sheetsClient.EnsureHeader(initCtx); err != nil {
		// Not fatal: appends still work on a sheet with a custom header
		logger.Error("Failed to ensure history header", "error", err)
	}
	cancelInit()
	logger.Info("Google Sheets client initialized",
		"spreadsheet_id", cfg.GoogleSpreadsheetID,
		"sheet", cfg.GoogleSheetName)

	historyWorker := worker.NewHistoryWorker(sheetsClient, sheetsClient, 0)

	// Runs recorded by a SQLite backend are backfilled on startup and then
	// periodically, covering messages lost while the worker was down.
	var sqliteRepo *storage.SQLiteRepository
	if cfg.DataBackend == config.BackendSQLite {
		sqliteRepo = cli.InitSQLite(logger, cfg.SQLiteDBPath)
		defer sqliteRepo.Close()

		logger.Info("Performing startup history backfill...")
		if err := historyWorker.StartupBackfill(ctx, sqliteRepo); err != nil {
			logger.Error("Failed startup history backfill", "error", err)
		}
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	go func() {
		if err := amqpClient.ConsumeComparisonExecuted(ctx, historyWorker.HandleComparisonExecuted); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Message consumption failed", "error", err)
		}
	}()

	if sqliteRepo != nil && cfg.HistoryBackfillInterval > 0 {
		ticker := time.NewTicker(cfg.HistoryBackfillInterval)
		defer ticker.Stop()
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if err := historyWorker.StartupBackfill(ctx, sqliteRepo); err != nil {
						logger.Error("Periodic history backfill failed", "error", err)
					}
				}
			}
		}()
	}

	logger.Info("Worker started, waiting for comparison events",
		"exchange", cfg.AMQPExchange,
		"queue", cfg.AMQPQueue)

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped")
}
