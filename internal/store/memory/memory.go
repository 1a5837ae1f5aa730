// Package memory provides mutex-guarded in-memory implementations of the
// store ports, used as the default backend and by tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"tally/internal/achievement"
	"tally/internal/core"
	"tally/internal/store"
)

// Store implements store.Ledger, store.AchievementStore and store.BudgetStore
// in memory.
type Store struct {
	mu           sync.Mutex
	seq          int
	transactions map[string][]core.Transaction   // by user id
	achievements map[string][]achievement.State  // by user id
	budgets      map[string]core.Budget          // by user id
}

var (
	_ store.Ledger           = (*Store)(nil)
	_ store.AchievementStore = (*Store)(nil)
	_ store.BudgetStore      = (*Store)(nil)
)

func New() *Store {
	return &Store{
		transactions: make(map[string][]core.Transaction),
		achievements: make(map[string][]achievement.State),
		budgets:      make(map[string]core.Budget),
	}
}

// Append stores the transaction, assigning a synthetic id when none is set.
func (s *Store) Append(_ context.Context, tx core.Transaction) (string, error) {
	if err := tx.Validate(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if tx.ID == "" {
		s.seq++
		tx.ID = fmt.Sprintf("mem:%d", s.seq)
	}
	s.transactions[tx.UserID] = append(s.transactions[tx.UserID], tx)
	return tx.ID, nil
}

func (s *Store) Update(_ context.Context, tx core.Transaction) error {
	if err := tx.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	txs := s.transactions[tx.UserID]
	for i := range txs {
		if txs[i].ID == tx.ID {
			txs[i] = tx
			return nil
		}
	}
	return store.ErrNotFound
}

func (s *Store) Delete(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	txs := s.transactions[userID]
	for i := range txs {
		if txs[i].ID == id {
			s.transactions[userID] = append(txs[:i], txs[i+1:]...)
			return nil
		}
	}
	return store.ErrNotFound
}

func (s *Store) ListAll(_ context.Context, userID string) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Transaction(nil), s.transactions[userID]...), nil
}

func (s *Store) ListUsers(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	users := make([]string, 0, len(s.transactions))
	for userID := range s.transactions {
		users = append(users, userID)
	}
	sort.Strings(users)
	return users, nil
}

func (s *Store) List(_ context.Context, userID string) ([]achievement.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]achievement.State(nil), s.achievements[userID]...), nil
}

// Initialize creates unearned records for definitions the user does not have
// yet. Existing records are never touched, so concurrent bootstrap is safe.
func (s *Store) Initialize(_ context.Context, userID string, defs []achievement.Definition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing := map[string]bool{}
	for _, st := range s.achievements[userID] {
		existing[st.Name] = true
	}
	for _, def := range defs {
		if existing[def.Name] {
			continue
		}
		s.achievements[userID] = append(s.achievements[userID], achievement.State{Name: def.Name})
	}
	return nil
}

// UpdateState implements store.AchievementStore.
func (s *Store) UpdateState(_ context.Context, userID string, st achievement.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	states := s.achievements[userID]
	for i := range states {
		if states[i].Name == st.Name {
			states[i] = st
			return nil
		}
	}
	return store.ErrNotFound
}

func (s *Store) Get(_ context.Context, userID string) (*core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.budgets[userID]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (s *Store) Save(_ context.Context, userID string, b core.Budget) error {
	if err := b.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.budgets[userID] = b
	return nil
}
