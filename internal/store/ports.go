// Package store defines the outbound ports the core depends on: the
// transaction ledger, the achievement state store and the budget store.
// Implementations live in the memory and sqlite subpackages.
package store

import (
	"context"
	"errors"

	"tally/internal/achievement"
	"tally/internal/core"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

type (
	// Ledger holds a user's transaction records.
	Ledger interface {
		Append(ctx context.Context, tx core.Transaction) (id string, err error)
		Update(ctx context.Context, tx core.Transaction) error
		Delete(ctx context.Context, userID, id string) error
		ListAll(ctx context.Context, userID string) ([]core.Transaction, error)
		// ListUsers returns the distinct user ids present in the ledger. Used
		// by the worker's periodic sweep.
		ListUsers(ctx context.Context) ([]string, error)
	}

	// AchievementStore holds per-user achievement state, one record per
	// catalog entry after initialization.
	AchievementStore interface {
		List(ctx context.Context, userID string) ([]achievement.State, error)
		// Initialize creates one unearned record per definition. It must be
		// idempotent: records that already exist are left untouched, so
		// concurrent bootstrap attempts are safe.
		Initialize(ctx context.Context, userID string, defs []achievement.Definition) error
		UpdateState(ctx context.Context, userID string, st achievement.State) error
	}

	// BudgetStore holds at most one budget per user.
	BudgetStore interface {
		// Get returns nil when the user has no budget.
		Get(ctx context.Context, userID string) (*core.Budget, error)
		Save(ctx context.Context, userID string, b core.Budget) error
	}
)
