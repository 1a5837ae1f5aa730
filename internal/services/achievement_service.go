// Package services provides business logic and orchestration over the store
// ports: achievement evaluation, transaction recording and budget management.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"tally/internal/achievement"
	"tally/internal/analytics"
	"tally/internal/core"
	"tally/internal/store"
)

var (
	// ErrUnknownAchievement is returned when a name is not in the catalog.
	ErrUnknownAchievement = errors.New("unknown achievement")
	// ErrNotAwardable is returned when Award is called for an achievement
	// that only evaluation may earn.
	ErrNotAwardable = errors.New("achievement is not awardable")
)

// EarnedPublisher publishes newly-earned notifications. The AMQP client
// satisfies it; tests use an in-memory fake.
type EarnedPublisher interface {
	PublishAchievementEarned(ctx context.Context, userID, name, dateEarned string) error
}

// AchievementService decides which achievements a user has newly earned and
// persists each locked-to-earned transition exactly once.
type AchievementService struct {
	ledger   store.Ledger
	states   store.AchievementStore
	budgets  store.BudgetStore
	notifier EarnedPublisher // optional
	now      func() time.Time
}

func NewAchievementService(ledger store.Ledger, states store.AchievementStore, budgets store.BudgetStore, notifier EarnedPublisher) *AchievementService {
	return &AchievementService{
		ledger:   ledger,
		states:   states,
		budgets:  budgets,
		notifier: notifier,
		now:      time.Now,
	}
}

// metrics are the derived facts computed once per evaluation call.
type metrics struct {
	transactionCount  int
	expenseCategories int
	streak            int
	netSavings        decimal.Decimal
	hasReceipt        bool
	hasBudget         bool
}

// Evaluate loads a snapshot of the user's ledger, budget and achievement
// state, and transitions every locked achievement whose condition now holds.
// It returns the newly earned achievements, notifying once per entry.
//
// Repeated and concurrent calls are safe: earned records are skipped outright
// and the persisted flag is re-checked immediately before each write, so the
// worst case under a race is a duplicate write of the same terminal state.
func (s *AchievementService) Evaluate(ctx context.Context, userID string) ([]achievement.State, error) {
	if userID == "" {
		return nil, fmt.Errorf("evaluate achievements: %w", core.ErrEmptyUserID)
	}

	var (
		txs    []core.Transaction
		states []achievement.State
		budget *core.Budget
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if txs, err = s.ledger.ListAll(gctx, userID); err != nil {
			return fmt.Errorf("load transactions: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if states, err = s.states.List(gctx, userID); err != nil {
			return fmt.Errorf("load achievement state: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if budget, err = s.budgets.Get(gctx, userID); err != nil {
			return fmt.Errorf("load budget: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("evaluate achievements: %w", err)
	}

	catalog := achievement.Catalog()

	stateByName, err := s.bootstrapStates(ctx, userID, states, catalog)
	if err != nil {
		return nil, fmt.Errorf("evaluate achievements: %w", err)
	}

	m := metrics{
		transactionCount:  len(txs),
		expenseCategories: analytics.DistinctCategories(txs, true),
		streak:            analytics.Streak(txs),
		netSavings:        analytics.NetSavings(txs),
		hasReceipt:        analytics.HasReceipt(txs),
		hasBudget:         budget != nil,
	}

	var newlyEarned []achievement.State
	for _, def := range catalog {
		st, ok := stateByName[def.Name]
		if !ok {
			// Should not happen after bootstrap; treat as locked.
			st = achievement.State{Name: def.Name}
		}
		if st.Earned {
			continue
		}
		if !satisfied(def, m) {
			continue
		}

		earned, err := s.markEarned(ctx, userID, def.Name)
		if err != nil {
			// Per-record persistence: one failing achievement must not block
			// the rest of the evaluation.
			slog.ErrorContext(ctx, "Failed to persist earned achievement",
				"user_id", userID,
				"achievement", def.Name,
				"error", err)
			continue
		}
		if earned == nil {
			continue // lost the race, someone else earned it first
		}
		newlyEarned = append(newlyEarned, *earned)
	}

	return newlyEarned, nil
}

// AchievementStatus pairs a catalog entry with the user's progress on it.
type AchievementStatus struct {
	Definition achievement.Definition
	State      achievement.State
}

// Progress returns the full catalog in order with the user's state merged in,
// bootstrapping records on first access.
func (s *AchievementService) Progress(ctx context.Context, userID string) ([]AchievementStatus, error) {
	if userID == "" {
		return nil, fmt.Errorf("achievement progress: %w", core.ErrEmptyUserID)
	}

	states, err := s.states.List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("achievement progress: load state: %w", err)
	}

	catalog := achievement.Catalog()
	stateByName, err := s.bootstrapStates(ctx, userID, states, catalog)
	if err != nil {
		return nil, fmt.Errorf("achievement progress: %w", err)
	}

	out := make([]AchievementStatus, 0, len(catalog))
	for _, def := range catalog {
		st, ok := stateByName[def.Name]
		if !ok {
			st = achievement.State{Name: def.Name}
		}
		out = append(out, AchievementStatus{Definition: def, State: st})
	}
	return out, nil
}

// Award explicitly earns a single SPECIAL achievement, used for events the
// ledger cannot derive (viewing analytics, completing the profile). It shares
// the duplicate-prevention and notification path with Evaluate. The returned
// state is nil when the achievement was already earned.
func (s *AchievementService) Award(ctx context.Context, userID, name string) (*achievement.State, error) {
	def, ok := achievement.ByName(name)
	if !ok {
		return nil, fmt.Errorf("award achievement %q: %w", name, ErrUnknownAchievement)
	}
	// Everything else is earned by evaluation; allowing direct awards here
	// would bypass the metric thresholds.
	if def.Type != achievement.Special {
		return nil, fmt.Errorf("award achievement %q: %w", name, ErrNotAwardable)
	}

	states, err := s.states.List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("award achievement: load state: %w", err)
	}
	if _, err := s.bootstrapStates(ctx, userID, states, achievement.Catalog()); err != nil {
		return nil, fmt.Errorf("award achievement: %w", err)
	}

	earned, err := s.markEarned(ctx, userID, name)
	if err != nil {
		return nil, fmt.Errorf("award achievement: %w", err)
	}
	return earned, nil
}

// bootstrapStates lazily creates the per-user records the first time a user is
// evaluated, and backfills entries added to the catalog since the records were
// created. Persisted names no longer in the catalog are logged and skipped.
func (s *AchievementService) bootstrapStates(ctx context.Context, userID string, states []achievement.State, catalog []achievement.Definition) (map[string]achievement.State, error) {
	byName := make(map[string]achievement.State, len(states))
	for _, st := range states {
		if _, ok := achievement.ByName(st.Name); !ok {
			slog.WarnContext(ctx, "Persisted achievement not in catalog, skipping",
				"user_id", userID,
				"achievement", st.Name)
			continue
		}
		byName[st.Name] = st
	}

	missing := false
	for _, def := range catalog {
		if _, ok := byName[def.Name]; !ok {
			missing = true
			break
		}
	}
	if !missing {
		return byName, nil
	}

	// Initialize is idempotent, so a concurrent caller doing the same
	// bootstrap is harmless.
	if err := s.states.Initialize(ctx, userID, catalog); err != nil {
		return nil, fmt.Errorf("initialize achievement state: %w", err)
	}
	states, err := s.states.List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("reload achievement state: %w", err)
	}

	byName = make(map[string]achievement.State, len(states))
	for _, st := range states {
		byName[st.Name] = st
	}
	return byName, nil
}

// markEarned re-checks the persisted flag and performs the single
// locked-to-earned transition. It returns nil when the record was already
// earned, which minimizes duplicate notifications under concurrent calls.
func (s *AchievementService) markEarned(ctx context.Context, userID, name string) (*achievement.State, error) {
	states, err := s.states.List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("recheck achievement state: %w", err)
	}
	for _, st := range states {
		if st.Name == name && st.Earned {
			return nil, nil
		}
	}

	st := achievement.State{
		Name:       name,
		Earned:     true,
		DateEarned: core.FormatDay(s.now()),
	}
	if err := s.states.UpdateState(ctx, userID, st); err != nil {
		return nil, fmt.Errorf("persist earned achievement: %w", err)
	}

	slog.InfoContext(ctx, "Achievement earned",
		"user_id", userID,
		"achievement", name,
		"date_earned", st.DateEarned)

	s.notify(ctx, userID, st)
	return &st, nil
}

func (s *AchievementService) notify(ctx context.Context, userID string, st achievement.State) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.PublishAchievementEarned(ctx, userID, st.Name, st.DateEarned); err != nil {
		// The transition is already persisted; a lost notification is not
		// worth failing the evaluation over.
		slog.ErrorContext(ctx, "Failed to publish earned notification",
			"user_id", userID,
			"achievement", st.Name,
			"error", err)
	}
}

// satisfied checks one catalog entry against the computed metrics. All
// threshold comparisons are metric >= threshold.
func satisfied(def achievement.Definition, m metrics) bool {
	if def.Rule == achievement.RuleAllExpenseCategories {
		// The denominator is the live category catalog, not a literal count.
		return m.expenseCategories >= len(core.ExpenseCategories())
	}

	switch def.Type {
	case achievement.TransactionCount:
		return m.transactionCount >= def.Threshold
	case achievement.LoginStreak:
		return m.streak >= def.Threshold
	case achievement.CategoryComplete:
		return m.expenseCategories >= def.Threshold
	case achievement.SavingGoal:
		return m.netSavings.GreaterThanOrEqual(decimal.NewFromInt(int64(def.Threshold)))
	case achievement.BudgetStreak:
		// TODO: record per-day under-budget history so budget streaks can be
		// evaluated; until then these are never self-earned.
		return false
	case achievement.Special:
		switch def.Name {
		case achievement.FirstReceipt:
			return m.hasReceipt
		case achievement.BudgetSetup:
			return m.hasBudget
		default:
			// Earned explicitly through Award on UI events.
			return false
		}
	default:
		return false
	}
}
