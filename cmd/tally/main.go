package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"tally/internal/amqp"
	"tally/internal/backend"
	"tally/internal/config"
	apphttp "tally/internal/http"
	applog "tally/internal/log"
	"tally/internal/services"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.New(applog.Config{
		Level:     slog.LevelInfo,
		Component: applog.ComponentApp,
	})
	applog.SetDefault(logger)

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

	// AMQP is optional; without it evaluation runs only on explicit requests
	// and the worker sweep.
	var publisher *amqp.Client
	if cfg.AMQPURL != "" {
		publisher, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPChangesQueue, cfg.AMQPEarnedQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, continuing without change events", "error", err)
			publisher = nil
		} else {
			defer publisher.Close()
		}
	}

	var changes services.ChangePublisher
	var notifier services.EarnedPublisher
	if publisher != nil {
		changes = publisher
		notifier = publisher
	}

	transactions := services.NewTransactionService(stores.Ledger, changes)
	budgets := services.NewBudgetService(stores.Budgets, stores.Ledger, changes)
	achievements := services.NewAchievementService(stores.Ledger, stores.Achievements, stores.Budgets, notifier)

	srv := apphttp.NewServer(":"+cfg.Port, logger.WithComponent(applog.ComponentHTTP), transactions, budgets, achievements)
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cancel()
	}()

	logger.Info("Starting tally server", "port", cfg.Port, "backend", cfg.DataBackend)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
