package core

import "strings"

// Category is a transaction category with a display color.
type Category struct {
	Name      string
	Color     string // hex, e.g. "#FF5722"
	IsExpense bool
}

// categories is the fixed catalog, expense categories first.
var categories = []Category{
	{Name: "Food", Color: "#FF5722", IsExpense: true},
	{Name: "Housing", Color: "#E91E63", IsExpense: true},
	{Name: "Transportation", Color: "#9C27B0", IsExpense: true},
	{Name: "Utilities", Color: "#673AB7", IsExpense: true},
	{Name: "Entertainment", Color: "#3F51B5", IsExpense: true},
	{Name: "Healthcare", Color: "#2196F3", IsExpense: true},
	{Name: "Education", Color: "#03A9F4", IsExpense: true},
	{Name: "Shopping", Color: "#00BCD4", IsExpense: true},
	{Name: "Personal Care", Color: "#009688", IsExpense: true},
	{Name: "Travel", Color: "#4CAF50", IsExpense: true},
	{Name: "Debt", Color: "#8BC34A", IsExpense: true},
	{Name: "Gifts", Color: "#CDDC39", IsExpense: true},
	{Name: "Other Expense", Color: "#FFC107", IsExpense: true},

	{Name: "Salary", Color: "#4CAF50", IsExpense: false},
	{Name: "Business", Color: "#8BC34A", IsExpense: false},
	{Name: "Investments", Color: "#CDDC39", IsExpense: false},
	{Name: "Rental", Color: "#FFEB3B", IsExpense: false},
	{Name: "Refunds", Color: "#FFC107", IsExpense: false},
	{Name: "Gifts Received", Color: "#FF9800", IsExpense: false},
	{Name: "Other Income", Color: "#FF5722", IsExpense: false},
}

// AllCategories returns the full category catalog in declaration order.
func AllCategories() []Category {
	out := make([]Category, len(categories))
	copy(out, categories)
	return out
}

// ExpenseCategories returns the expense categories in declaration order.
func ExpenseCategories() []Category {
	var out []Category
	for _, c := range categories {
		if c.IsExpense {
			out = append(out, c)
		}
	}
	return out
}

// IncomeCategories returns the income categories in declaration order.
func IncomeCategories() []Category {
	var out []Category
	for _, c := range categories {
		if !c.IsExpense {
			out = append(out, c)
		}
	}
	return out
}

// CategoryByName finds a category by case-insensitive name. Unknown names fall
// back to "Other Expense" or "Other Income" depending on whether the name
// mentions an expense.
func CategoryByName(name string) Category {
	for _, c := range categories {
		if strings.EqualFold(c.Name, name) {
			return c
		}
	}
	if strings.Contains(strings.ToLower(name), "expense") {
		return CategoryByName("Other Expense")
	}
	return CategoryByName("Other Income")
}
