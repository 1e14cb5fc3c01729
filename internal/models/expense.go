package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the textual form of a ledger entry's logical date.
const DateLayout = "2006-01-02"

// Expense represents a ledger entry. Income is recorded with a positive
// amount under an income category.
type Expense struct {
	ID          int64           `json:"id"`
	UserID      string          `json:"user_id"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	Category    Category        `json:"category"`
	Date        time.Time       `json:"date"`
	Timestamp   time.Time       `json:"timestamp"`
}

// DateString returns the logical date as YYYY-MM-DD.
func (e Expense) DateString() string {
	return e.Date.Format(DateLayout)
}

// IsIncome reports whether the entry is booked under an income category.
func (e Expense) IsIncome() bool {
	return e.Category.IsIncome()
}

// Budget is a user's monthly spending ceiling.
type Budget struct {
	UserID      string          `json:"user_id"`
	Amount      decimal.Decimal `json:"amount"`
	LastUpdated time.Time       `json:"last_updated"`
}

// Filter scopes expense queries to a calendar year or month. Zero fields are
// unset; a month without a year is ignored.
type Filter struct {
	Year  int `json:"year,omitempty"`
	Month int `json:"month,omitempty"`
}

// MonthFilter returns a filter for a single calendar month.
func MonthFilter(year int, month time.Month) Filter {
	return Filter{Year: year, Month: int(month)}
}

// HasMonth reports whether the filter selects a single month.
func (f Filter) HasMonth() bool {
	return f.Year > 0 && f.Month >= 1 && f.Month <= 12
}

// HasYear reports whether the filter selects at least a year.
func (f Filter) HasYear() bool {
	return f.Year > 0
}

// User represents a user account.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Session represents a user session.
type Session struct {
	Token     string    `json:"token"`
	UserID    int64     `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
}
