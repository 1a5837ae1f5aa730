// Package sqlite persists the ledger, achievement state and budgets in a
// local SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"tally/internal/achievement"
	"tally/internal/core"
	"tally/internal/store"
)

type Repository struct {
	db *sql.DB
}

var (
	_ store.Ledger           = (*Repository)(nil)
	_ store.AchievementStore = (*Repository)(nil)
	_ store.BudgetStore      = (*Repository)(nil)
)

func NewRepository(dbPath string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Append implements store.Ledger. A uuid is assigned when the transaction has
// no id yet.
func (r *Repository) Append(ctx context.Context, tx core.Transaction) (string, error) {
	if err := tx.Validate(); err != nil {
		return "", err
	}
	if tx.ID == "" {
		tx.ID = uuid.New().String()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO transactions (id, user_id, amount, description, category, date, is_expense, receipt_ref, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID, tx.UserID, tx.Amount.String(), tx.Description, tx.Category,
		tx.Date, boolToInt(tx.IsExpense), tx.ReceiptRef, tx.CreatedAt)
	if err != nil {
		return "", fmt.Errorf("insert transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction saved",
		"id", tx.ID,
		"user_id", tx.UserID,
		"amount", tx.Amount.String(),
		"category", tx.Category)

	return tx.ID, nil
}

func (r *Repository) Update(ctx context.Context, tx core.Transaction) error {
	if err := tx.Validate(); err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE transactions
		 SET amount = ?, description = ?, category = ?, date = ?, is_expense = ?, receipt_ref = ?
		 WHERE id = ? AND user_id = ?`,
		tx.Amount.String(), tx.Description, tx.Category, tx.Date,
		boolToInt(tx.IsExpense), tx.ReceiptRef, tx.ID, tx.UserID)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	return requireRow(res)
}

func (r *Repository) Delete(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM transactions WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	return requireRow(res)
}

func (r *Repository) ListAll(ctx context.Context, userID string) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, amount, description, category, date, is_expense, receipt_ref, created_at
		 FROM transactions WHERE user_id = ? ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var txs []core.Transaction
	for rows.Next() {
		var (
			tx        core.Transaction
			amount    string
			isExpense int
		)
		if err := rows.Scan(&tx.ID, &tx.UserID, &amount, &tx.Description,
			&tx.Category, &tx.Date, &isExpense, &tx.ReceiptRef, &tx.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		tx.IsExpense = isExpense != 0
		tx.Amount = parseAmount(ctx, tx.ID, amount)
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return txs, nil
}

func (r *Repository) ListUsers(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT user_id FROM transactions ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		users = append(users, userID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return users, nil
}

func (r *Repository) List(ctx context.Context, userID string) ([]achievement.State, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT name, is_earned, date_earned FROM achievements WHERE user_id = ? ORDER BY rowid`, userID)
	if err != nil {
		return nil, fmt.Errorf("list achievements: %w", err)
	}
	defer rows.Close()

	var states []achievement.State
	for rows.Next() {
		var (
			st     achievement.State
			earned int
		)
		if err := rows.Scan(&st.Name, &earned, &st.DateEarned); err != nil {
			return nil, fmt.Errorf("scan achievement: %w", err)
		}
		st.Earned = earned != 0
		states = append(states, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate achievements: %w", err)
	}
	return states, nil
}

// Initialize inserts one unearned record per definition. INSERT OR IGNORE on
// the (user_id, name) primary key makes concurrent bootstrap idempotent.
func (r *Repository) Initialize(ctx context.Context, userID string, defs []achievement.Definition) error {
	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin initialize: %w", err)
	}
	defer dbTx.Rollback()

	for _, def := range defs {
		if _, err := dbTx.ExecContext(ctx,
			`INSERT OR IGNORE INTO achievements (user_id, name, is_earned, date_earned)
			 VALUES (?, ?, 0, '')`, userID, def.Name); err != nil {
			return fmt.Errorf("initialize achievement %s: %w", def.Name, err)
		}
	}
	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("commit initialize: %w", err)
	}

	slog.InfoContext(ctx, "Achievement state initialized",
		"user_id", userID,
		"definitions", len(defs))
	return nil
}

func (r *Repository) UpdateState(ctx context.Context, userID string, st achievement.State) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE achievements SET is_earned = ?, date_earned = ? WHERE user_id = ? AND name = ?`,
		boolToInt(st.Earned), st.DateEarned, userID, st.Name)
	if err != nil {
		return fmt.Errorf("update achievement: %w", err)
	}
	return requireRow(res)
}

func (r *Repository) Get(ctx context.Context, userID string) (*core.Budget, error) {
	var minStr, maxStr string
	err := r.db.QueryRowContext(ctx,
		`SELECT min_budget, max_budget FROM budgets WHERE user_id = ?`, userID).
		Scan(&minStr, &maxStr)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get budget: %w", err)
	}

	b := core.Budget{
		Min: parseAmount(ctx, "budget:"+userID, minStr),
		Max: parseAmount(ctx, "budget:"+userID, maxStr),
	}
	return &b, nil
}

// Save overwrites the user's budget wholesale.
func (r *Repository) Save(ctx context.Context, userID string, b core.Budget) error {
	if err := b.Validate(); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO budgets (user_id, min_budget, max_budget) VALUES (?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET min_budget = excluded.min_budget, max_budget = excluded.max_budget`,
		userID, b.Min.String(), b.Max.String())
	if err != nil {
		return fmt.Errorf("save budget: %w", err)
	}

	slog.InfoContext(ctx, "Budget saved",
		"user_id", userID,
		"min", b.Min.String(),
		"max", b.Max.String())
	return nil
}

// parseAmount decodes a persisted decimal, degrading malformed values to zero
// instead of failing the whole read.
func parseAmount(ctx context.Context, ref, s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		slog.WarnContext(ctx, "Malformed persisted amount, defaulting to zero",
			"ref", ref, "value", s)
		return decimal.Zero
	}
	return d
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
