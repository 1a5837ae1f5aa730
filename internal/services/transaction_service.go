package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"tally/internal/analytics"
	"tally/internal/core"
	"tally/internal/store"
)

// ChangePublisher publishes ledger-change events that trigger achievement
// re-evaluation in the worker.
type ChangePublisher interface {
	PublishLedgerChanged(ctx context.Context, userID string) error
}

// TransactionService records ledger mutations and announces them.
type TransactionService struct {
	ledger  store.Ledger
	changes ChangePublisher // optional
}

func NewTransactionService(ledger store.Ledger, changes ChangePublisher) *TransactionService {
	return &TransactionService{
		ledger:  ledger,
		changes: changes,
	}
}

// Add saves a transaction and publishes a change event. A missing id and
// created-at are filled in here.
func (s *TransactionService) Add(ctx context.Context, tx core.Transaction) (string, error) {
	if tx.ID == "" {
		tx.ID = uuid.New().String()
	}
	if tx.CreatedAt == 0 {
		tx.CreatedAt = time.Now().UnixMilli()
	}

	id, err := s.ledger.Append(ctx, tx)
	if err != nil {
		return "", fmt.Errorf("save transaction: %w", err)
	}

	s.publishChange(ctx, tx.UserID)
	return id, nil
}

// Update replaces an existing transaction and publishes a change event.
func (s *TransactionService) Update(ctx context.Context, tx core.Transaction) error {
	if err := s.ledger.Update(ctx, tx); err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}

	s.publishChange(ctx, tx.UserID)
	return nil
}

// Delete removes a transaction and publishes a change event.
func (s *TransactionService) Delete(ctx context.Context, userID, id string) error {
	if err := s.ledger.Delete(ctx, userID, id); err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}

	s.publishChange(ctx, userID)
	return nil
}

// Get returns a single transaction by id.
func (s *TransactionService) Get(ctx context.Context, userID, id string) (core.Transaction, error) {
	txs, err := s.ledger.ListAll(ctx, userID)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	for _, tx := range txs {
		if tx.ID == id {
			return tx, nil
		}
	}
	return core.Transaction{}, fmt.Errorf("get transaction %s: %w", id, store.ErrNotFound)
}

// List returns all of a user's transactions.
func (s *TransactionService) List(ctx context.Context, userID string) ([]core.Transaction, error) {
	txs, err := s.ledger.ListAll(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return txs, nil
}

func (s *TransactionService) publishChange(ctx context.Context, userID string) {
	if s.changes == nil {
		slog.DebugContext(ctx, "No change publisher configured, skipping event")
		return
	}
	if err := s.changes.PublishLedgerChanged(ctx, userID); err != nil {
		// The local write already succeeded; the periodic sweep will pick
		// this user up even if the event is lost.
		slog.ErrorContext(ctx, "Failed to publish ledger change",
			"user_id", userID,
			"error", err)
	}
}

// MonthSummary is a compact spending overview for a specific year and month.
type MonthSummary struct {
	Year         int
	Month        int // 1-12
	Transactions int
	Expenses     decimal.Decimal
	Income       decimal.Decimal
	NetSavings   decimal.Decimal
	ByCategory   []analytics.CategoryTotal // expense categories, largest first
}

// Summary aggregates a user's transactions for one month.
func (s *TransactionService) Summary(ctx context.Context, userID string, year, month int) (MonthSummary, error) {
	summary := MonthSummary{Year: year, Month: month}

	txs, err := s.ledger.ListAll(ctx, userID)
	if err != nil {
		return summary, fmt.Errorf("list transactions: %w", err)
	}

	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, -1)
	inMonth := analytics.FilterByDateRange(txs, start, end)

	var expenses, income []core.Transaction
	for _, tx := range inMonth {
		if tx.IsExpense {
			expenses = append(expenses, tx)
		} else {
			income = append(income, tx)
		}
	}

	summary.Transactions = len(inMonth)
	summary.Expenses = analytics.TotalAmount(expenses)
	summary.Income = analytics.TotalAmount(income)
	summary.NetSavings = analytics.NetSavings(inMonth)
	summary.ByCategory = analytics.GroupByCategory(expenses)
	return summary, nil
}
