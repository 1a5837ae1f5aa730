package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"tally/internal/amqp"
	"tally/internal/backend"
	"tally/internal/config"
	"tally/internal/export"
	applog "tally/internal/log"
	"tally/internal/services"
	"tally/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.New(applog.Config{
		Level:     slog.LevelInfo,
		Component: applog.ComponentWorker,
	})
	applog.SetDefault(logger)

	logger.Info("Starting tally-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	stores, err := backend.Open(backend.Config{
		Type:         backend.Type(cfg.DataBackend),
		SQLiteDBPath: cfg.SQLiteDBPath,
	}, logger.Logger)
	if err != nil {
		logger.Error("Failed to open storage backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer func() {
		if err := stores.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", "error", err)
		}
	}()

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPChangesQueue, cfg.AMQPEarnedQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The sheets export is optional; without it earned notifications are
	// consumed and dropped.
	var exporter worker.EarnedExporter
	if cfg.SheetsExportEnabled() {
		sheetsExporter, err := export.NewSheetsExporter(ctx, export.Options{
			SpreadsheetID:      cfg.GoogleSpreadsheetID,
			SheetName:          cfg.GoogleSheetName,
			ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
			ServiceAccountFile: cfg.GoogleServiceAccountFile,
		})
		if err != nil {
			logger.Error("Failed to initialize sheets exporter", "error", err)
			os.Exit(1)
		}
		exporter = sheetsExporter
		logger.Info("Sheets export enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		logger.Info("Sheets export disabled - no GOOGLE_SPREADSHEET_ID provided")
	}

	achievements := services.NewAchievementService(stores.Ledger, stores.Achievements, stores.Budgets, amqpClient)
	evalWorker := worker.NewEvalWorker(achievements, stores.Ledger, exporter, cfg.EvalBatchSize)

	// On startup, sweep once in case change messages were missed while down.
	logger.Info("Performing startup sweep...")
	if err := evalWorker.SweepAllUsers(ctx); err != nil {
		logger.Error("Startup sweep failed", "error", err)
		// Don't exit - continue with normal operation
	}

	go func() {
		if err := amqpClient.ConsumeLedgerChanges(ctx, func(msg *amqp.LedgerChangedMessage) error {
			return evalWorker.HandleLedgerChanged(ctx, msg)
		}); err != nil && err != context.Canceled {
			logger.Error("Ledger change consumption failed", "error", err)
			cancel()
		}
	}()

	go func() {
		if err := amqpClient.ConsumeAchievementEarned(ctx, func(msg *amqp.AchievementEarnedMessage) error {
			return evalWorker.HandleAchievementEarned(ctx, msg)
		}); err != nil && err != context.Canceled {
			logger.Error("Earned notification consumption failed", "error", err)
			cancel()
		}
	}()

	// Periodic sweep as backup for lost messages.
	ticker := time.NewTicker(cfg.EvalInterval)
	defer ticker.Stop()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := evalWorker.SweepAllUsers(ctx); err != nil {
					logger.Error("Periodic sweep failed", "error", err)
				}
			}
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("Context cancelled")
	}

	logger.Info("Shutting down worker...")
	cancel()

	// Give in-flight handlers a moment to finish before the deferred closes.
	time.Sleep(2 * time.Second)
	logger.Info("Worker shutdown complete")
}
