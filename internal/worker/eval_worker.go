// Package worker runs achievement evaluation off the request path, driven by
// ledger-change messages with a periodic sweep as backup.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"tally/internal/amqp"
	"tally/internal/services"
	"tally/internal/store"
)

// EarnedExporter mirrors earned achievements to an external sink. The Google
// Sheets exporter satisfies it.
type EarnedExporter interface {
	AppendEarned(ctx context.Context, userID, name, dateEarned string) error
}

// EvalWorker consumes ledger-change messages and re-evaluates the affected
// user's achievements.
type EvalWorker struct {
	achievements *services.AchievementService
	ledger       store.Ledger
	exporter     EarnedExporter // optional
	batchSize    int
}

func NewEvalWorker(achievements *services.AchievementService, ledger store.Ledger, exporter EarnedExporter, batchSize int) *EvalWorker {
	if batchSize < 1 {
		batchSize = 1
	}
	return &EvalWorker{
		achievements: achievements,
		ledger:       ledger,
		exporter:     exporter,
		batchSize:    batchSize,
	}
}

// HandleLedgerChanged processes a single ledger-change message.
func (w *EvalWorker) HandleLedgerChanged(ctx context.Context, msg *amqp.LedgerChangedMessage) error {
	slog.InfoContext(ctx, "Processing ledger change",
		"user_id", msg.UserID)

	earned, err := w.achievements.Evaluate(ctx, msg.UserID)
	if err != nil {
		return fmt.Errorf("evaluate user %s: %w", msg.UserID, err)
	}

	if len(earned) > 0 {
		slog.InfoContext(ctx, "Evaluation earned achievements",
			"user_id", msg.UserID,
			"count", len(earned))
	}
	return nil
}

// HandleAchievementEarned mirrors an earned notification to the configured
// exporter. Without an exporter the message is acknowledged and dropped.
func (w *EvalWorker) HandleAchievementEarned(ctx context.Context, msg *amqp.AchievementEarnedMessage) error {
	if w.exporter == nil {
		slog.WarnContext(ctx, "No exporter configured, skipping earned notification",
			"user_id", msg.UserID,
			"achievement", msg.Name)
		return nil
	}

	if err := w.exporter.AppendEarned(ctx, msg.UserID, msg.Name, msg.DateEarned); err != nil {
		return fmt.Errorf("export earned achievement: %w", err)
	}
	return nil
}

// SweepAllUsers re-evaluates every known user, up to the batch size per call.
// This is a backup mechanism in case change messages are lost.
func (w *EvalWorker) SweepAllUsers(ctx context.Context) error {
	users, err := w.ledger.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}
	if len(users) == 0 {
		return nil
	}
	if len(users) > w.batchSize {
		users = users[:w.batchSize]
	}

	slog.InfoContext(ctx, "Sweeping users", "count", len(users))

	errorCount := 0
	for _, userID := range users {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if _, err := w.achievements.Evaluate(ctx, userID); err != nil {
			slog.ErrorContext(ctx, "Failed to evaluate user during sweep",
				"user_id", userID,
				"error", err)
			errorCount++
		}
	}

	if errorCount > 0 {
		slog.WarnContext(ctx, "Sweep finished with errors",
			"total", len(users),
			"errors", errorCount)
	}
	return nil
}
