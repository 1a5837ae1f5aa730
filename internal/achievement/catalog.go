// Package achievement defines the fixed achievement catalog and the per-user
// earned state persisted against it.
package achievement

type (
	// Type groups achievements by the metric that earns them.
	Type string

	// Rule selects how a definition's condition is checked. Most definitions
	// compare a metric against Threshold; CategoryMaster instead requires the
	// full expense-category catalog to have been used, which the original data
	// encoded as the sentinel threshold -1. The sentinel is kept in Threshold
	// for persisted-record compatibility but dispatch happens on Rule.
	Rule int

	// Definition is an immutable catalog entry. Name is the stable identity
	// persisted state is matched against.
	Definition struct {
		Name        string
		Description string
		Icon        string
		Type        Type
		Rule        Rule
		Threshold   int
	}

	// State is the persisted per-user record for one catalog entry. Earned
	// transitions false to true exactly once and never reverts; DateEarned is
	// a calendar day set iff Earned.
	State struct {
		Name       string
		Earned     bool
		DateEarned string
	}
)

const (
	TransactionCount Type = "TRANSACTION_COUNT"
	BudgetStreak     Type = "BUDGET_STREAK"
	SavingGoal       Type = "SAVING_GOAL"
	LoginStreak      Type = "LOGIN_STREAK"
	CategoryComplete Type = "CATEGORY_COMPLETE"
	Special          Type = "SPECIAL"
)

const (
	RuleThreshold Rule = iota
	RuleAllExpenseCategories
)

// Catalog entry names.
const (
	FirstTransaction    = "First Steps"
	TenTransactions     = "Getting Started"
	FiftyTransactions   = "Consistent Tracker"
	HundredTransactions = "Transaction Master"
	UnderBudgetWeek     = "Budget Master: Week"
	UnderBudgetMonth    = "Budget Master: Month"
	UnderBudgetQuarter  = "Budget Expert: Quarter"
	SavingStart         = "Saving Starter"
	SavingPro           = "Saving Pro"
	SavingExpert        = "Saving Expert"
	SavingMaster        = "Saving Master"
	ThreeDayStreak      = "Three-Day Streak"
	WeekStreak          = "Week Streak"
	MonthStreak         = "Monthly Dedication"
	CategoryExplorer    = "Category Explorer"
	CategoryMaster      = "Category Master"
	FirstReceipt        = "Record Keeper"
	BudgetSetup         = "Budget Planner"
	ExpenseAnalyzer     = "Data Analyst"
	ProfileComplete     = "Identity Set"
)

// catalog is the fixed, ordered list of definitions, grouped by type.
var catalog = []Definition{
	{Name: FirstTransaction, Description: "Record your first transaction", Icon: "edit", Type: TransactionCount, Threshold: 1},
	{Name: TenTransactions, Description: "Record 10 transactions", Icon: "history", Type: TransactionCount, Threshold: 10},
	{Name: FiftyTransactions, Description: "Record 50 transactions", Icon: "agenda", Type: TransactionCount, Threshold: 50},
	{Name: HundredTransactions, Description: "Record 100 transactions", Icon: "sort", Type: TransactionCount, Threshold: 100},

	{Name: UnderBudgetWeek, Description: "Stay under budget for a full week", Icon: "week", Type: BudgetStreak, Threshold: 7},
	{Name: UnderBudgetMonth, Description: "Stay under budget for a full month", Icon: "month", Type: BudgetStreak, Threshold: 30},
	{Name: UnderBudgetQuarter, Description: "Stay under budget for three months", Icon: "today", Type: BudgetStreak, Threshold: 90},

	{Name: SavingStart, Description: "Save your first R100", Icon: "save", Type: SavingGoal, Threshold: 100},
	{Name: SavingPro, Description: "Save R1000 total", Icon: "directions", Type: SavingGoal, Threshold: 1000},
	{Name: SavingExpert, Description: "Save R5000 total", Icon: "compass", Type: SavingGoal, Threshold: 5000},
	{Name: SavingMaster, Description: "Save R10000 total", Icon: "location", Type: SavingGoal, Threshold: 10000},

	{Name: ThreeDayStreak, Description: "Use the app for 3 consecutive days", Icon: "today", Type: LoginStreak, Threshold: 3},
	{Name: WeekStreak, Description: "Use the app for 7 consecutive days", Icon: "calendar", Type: LoginStreak, Threshold: 7},
	{Name: MonthStreak, Description: "Use the app for 30 consecutive days", Icon: "month", Type: LoginStreak, Threshold: 30},

	{Name: CategoryExplorer, Description: "Use 5 different expense categories", Icon: "sort", Type: CategoryComplete, Threshold: 5},
	{Name: CategoryMaster, Description: "Use all expense categories", Icon: "slideshow", Type: CategoryComplete, Rule: RuleAllExpenseCategories, Threshold: -1},

	{Name: FirstReceipt, Description: "Attach your first receipt photo", Icon: "camera", Type: Special, Threshold: 1},
	{Name: BudgetSetup, Description: "Set up your first budget", Icon: "manage", Type: Special, Threshold: 1},
	{Name: ExpenseAnalyzer, Description: "View your spending analytics for the first time", Icon: "report", Type: Special, Threshold: 1},
	{Name: ProfileComplete, Description: "Complete your user profile", Icon: "places", Type: Special, Threshold: 1},
}

// Catalog returns the full ordered catalog.
func Catalog() []Definition {
	out := make([]Definition, len(catalog))
	copy(out, catalog)
	return out
}

// ByName looks up a catalog entry by its stable name.
func ByName(name string) (Definition, bool) {
	for _, def := range catalog {
		if def.Name == name {
			return def, true
		}
	}
	return Definition{}, false
}
