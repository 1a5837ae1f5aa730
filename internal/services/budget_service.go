package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"tally/internal/analytics"
	"tally/internal/core"
	"tally/internal/store"
)

// BudgetService manages the single budget range each user may have.
type BudgetService struct {
	budgets store.BudgetStore
	ledger  store.Ledger
	changes ChangePublisher // optional
}

func NewBudgetService(budgets store.BudgetStore, ledger store.Ledger, changes ChangePublisher) *BudgetService {
	return &BudgetService{
		budgets: budgets,
		ledger:  ledger,
		changes: changes,
	}
}

// Save validates and overwrites the user's budget, then publishes a change
// event so the budget-setup achievement is picked up.
func (s *BudgetService) Save(ctx context.Context, userID string, b core.Budget) error {
	if err := b.Validate(); err != nil {
		return err
	}
	if err := s.budgets.Save(ctx, userID, b); err != nil {
		return fmt.Errorf("save budget: %w", err)
	}

	if s.changes != nil {
		if err := s.changes.PublishLedgerChanged(ctx, userID); err != nil {
			slog.ErrorContext(ctx, "Failed to publish budget change",
				"user_id", userID,
				"error", err)
		}
	}
	return nil
}

// Get returns the user's budget, or nil when none is set.
func (s *BudgetService) Get(ctx context.Context, userID string) (*core.Budget, error) {
	b, err := s.budgets.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get budget: %w", err)
	}
	return b, nil
}

// Status classifies the current month's expense total against the budget.
func (s *BudgetService) Status(ctx context.Context, userID string, now time.Time) (string, error) {
	b, err := s.budgets.Get(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("get budget: %w", err)
	}
	if b == nil {
		return core.StatusNoBudget, nil
	}

	txs, err := s.ledger.ListAll(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("list transactions: %w", err)
	}

	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, -1)

	var spent []core.Transaction
	for _, tx := range analytics.FilterByDateRange(txs, start, end) {
		if tx.IsExpense {
			spent = append(spent, tx)
		}
	}
	return b.Status(analytics.TotalAmount(spent)), nil
}
