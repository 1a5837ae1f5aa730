package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DayFormat is the calendar-day format used everywhere a transaction date is
// stored or compared. Dates carry no time component.
const DayFormat = "2006-01-02"

type (
	// Transaction is a single income or expense record in a user's ledger.
	Transaction struct {
		ID          string
		Amount      decimal.Decimal
		Description string
		Category    string
		Date        string // calendar day, DayFormat
		IsExpense   bool
		ReceiptRef  string // opaque reference to an attached receipt, may be empty
		UserID      string
		CreatedAt   int64 // unix milliseconds
	}

	// Budget is a user's spending range. At most one exists per user and it is
	// overwritten wholesale on save.
	Budget struct {
		Min decimal.Decimal
		Max decimal.Decimal
	}
)

var (
	ErrInvalidAmount    = errors.New("amount must be positive")
	ErrInvalidDate      = errors.New("invalid date")
	ErrEmptyDescription = errors.New("empty description")
	ErrEmptyCategory    = errors.New("empty category")
	ErrEmptyUserID      = errors.New("empty user id")
	ErrInvalidBudget    = errors.New("minimum budget must be less than maximum budget")
)

// ParseDay parses a calendar-day string in DayFormat.
func ParseDay(s string) (time.Time, error) {
	t, err := time.Parse(DayFormat, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return t, nil
}

// FormatDay renders a time as a calendar-day string in DayFormat.
func FormatDay(t time.Time) string {
	return t.Format(DayFormat)
}

func (t Transaction) Validate() error {
	if !t.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if len(strings.TrimSpace(t.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(t.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	if strings.TrimSpace(t.Category) == "" {
		return ErrEmptyCategory
	}
	if strings.TrimSpace(t.UserID) == "" {
		return ErrEmptyUserID
	}
	if _, err := ParseDay(t.Date); err != nil {
		return err
	}
	return nil
}

// Day returns the transaction date as a time, or an error for malformed dates.
func (t Transaction) Day() (time.Time, error) {
	return ParseDay(t.Date)
}

// HasReceipt reports whether a receipt reference is attached.
func (t Transaction) HasReceipt() bool {
	return strings.TrimSpace(t.ReceiptRef) != ""
}

func (b Budget) Validate() error {
	if !b.Min.LessThan(b.Max) {
		return ErrInvalidBudget
	}
	return nil
}

// Budget status labels returned by Status.
const (
	StatusNoBudget     = "No budget set"
	StatusUnderBudget  = "Under Budget"
	StatusWithinBudget = "Within Budget"
	StatusOverBudget   = "Over Budget"
)

// Status classifies a spent total against the budget range.
func (b Budget) Status(spent decimal.Decimal) string {
	switch {
	case spent.LessThan(b.Min):
		return StatusUnderBudget
	case spent.GreaterThan(b.Max):
		return StatusOverBudget
	default:
		return StatusWithinBudget
	}
}
