// Package backend selects and wires a storage backend from configuration.
package backend

import (
	"fmt"
	"log/slog"

	"tally/internal/store"
	"tally/internal/store/memory"
	"tally/internal/store/sqlite"
)

// Type represents the storage backend kind.
type Type string

const (
	MemoryBackend Type = "memory"
	SQLiteBackend Type = "sqlite"
)

// IsValid returns true if the backend type is known.
func (t Type) IsValid() bool {
	switch t {
	case MemoryBackend, SQLiteBackend:
		return true
	default:
		return false
	}
}

// String implements fmt.Stringer.
func (t Type) String() string {
	return string(t)
}

// Config holds what backend creation needs.
type Config struct {
	Type         Type
	SQLiteDBPath string
}

// Stores bundles the three ports plus a cleanup function for whatever
// resources the backend holds.
type Stores struct {
	Ledger       store.Ledger
	Achievements store.AchievementStore
	Budgets      store.BudgetStore
	Cleanup      func() error
}

// Open creates the configured backend.
func Open(cfg Config, logger *slog.Logger) (*Stores, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if !cfg.Type.IsValid() {
		return nil, fmt.Errorf("invalid backend type: %s", cfg.Type)
	}

	switch cfg.Type {
	case SQLiteBackend:
		repo, err := sqlite.NewRepository(cfg.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("initialize sqlite repository: %w", err)
		}
		logger.Info("Initialized SQLite backend", "db_path", cfg.SQLiteDBPath)
		return &Stores{
			Ledger:       repo,
			Achievements: repo,
			Budgets:      repo,
			Cleanup:      repo.Close,
		}, nil
	default:
		mem := memory.New()
		logger.Info("Initialized memory backend")
		return &Stores{
			Ledger:       mem,
			Achievements: mem,
			Budgets:      mem,
			Cleanup:      func() error { return nil },
		}, nil
	}
}
