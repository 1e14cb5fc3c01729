package ledger

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"expense-ledger/internal/models"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFoundOrForbidden = errors.New("expense not found")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInvalidDate         = errors.New("invalid date")
	ErrEmptyDescription    = errors.New("description is required")
	ErrInvalidCategory     = errors.New("invalid category")
	ErrMissingUser         = errors.New("user is required")
)

var (
	// MinAmount is the smallest accepted ledger entry amount.
	MinAmount = decimal.New(1, -2)
	// MaxAmount is the largest amount stored exactly. Amounts are kept as
	// REAL, and values up to 15 significant digits survive the
	// float64 round trip.
	MaxAmount = decimal.RequireFromString("999999999999.99")
)

// amountScale is the number of decimal places an amount may carry.
const amountScale = 2

// checkStorable rejects amounts that would not read back unchanged.
func checkStorable(amount decimal.Decimal) error {
	if amount.GreaterThan(MaxAmount) {
		return fmt.Errorf("%w: must be at most %s", ErrInvalidAmount, MaxAmount.StringFixed(amountScale))
	}
	if !amount.Equal(amount.Round(amountScale)) {
		return fmt.Errorf("%w: at most %d decimal places", ErrInvalidAmount, amountScale)
	}
	return nil
}

// ParseAmount parses a user supplied amount such as "1250.50".
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("%w: empty", ErrInvalidAmount)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return d, nil
}

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(models.DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return t, nil
}

type entryInput struct {
	amount      decimal.Decimal
	description string
	category    models.Category
	date        time.Time
}

func validateEntry(userID string, amount decimal.Decimal, description, category string, date time.Time) (entryInput, error) {
	if userID == "" {
		return entryInput{}, ErrMissingUser
	}
	if amount.LessThan(MinAmount) {
		return entryInput{}, fmt.Errorf("%w: must be at least %s", ErrInvalidAmount, MinAmount.StringFixed(amountScale))
	}
	if err := checkStorable(amount); err != nil {
		return entryInput{}, err
	}
	description = strings.TrimSpace(description)
	if description == "" {
		return entryInput{}, ErrEmptyDescription
	}
	cat, err := models.ParseCategory(category)
	if err != nil {
		return entryInput{}, fmt.Errorf("%w: %q", ErrInvalidCategory, category)
	}
	if date.IsZero() {
		return entryInput{}, ErrInvalidDate
	}
	y, m, d := date.Date()
	return entryInput{
		amount:      amount,
		description: description,
		category:    cat,
		date:        time.Date(y, m, d, 0, 0, 0, 0, time.UTC),
	}, nil
}

// normalizeFilter collapses equivalent filters so they share a cache entry.
func normalizeFilter(f models.Filter) models.Filter {
	switch {
	case f.HasMonth():
		return f
	case f.HasYear():
		return models.Filter{Year: f.Year}
	default:
		return models.Filter{}
	}
}
