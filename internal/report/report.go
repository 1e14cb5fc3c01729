// Package report derives totals, category breakdowns and budget usage from
// a list of ledger entries. Every function is pure.
package report

import (
	"cmp"
	"slices"
	"time"

	"expense-ledger/internal/models"

	"github.com/shopspring/decimal"
)

// CategoryTotal is the summed amount booked under one category.
type CategoryTotal struct {
	Category models.Category
	Total    decimal.Decimal
	Count    int
}

// Total sums the amounts of expenses.
func Total(expenses []models.Expense) decimal.Decimal {
	sum := decimal.Zero
	for _, e := range expenses {
		sum = sum.Add(e.Amount)
	}
	return sum
}

// ByCategory groups expenses by category, largest total first. Equal totals
// keep the order in which their category first appeared.
func ByCategory(expenses []models.Expense) []CategoryTotal {
	index := make(map[models.Category]int)
	var out []CategoryTotal
	for _, e := range expenses {
		cat := models.NormalizeCategory(string(e.Category))
		i, ok := index[cat]
		if !ok {
			i = len(out)
			index[cat] = i
			out = append(out, CategoryTotal{Category: cat, Total: decimal.Zero})
		}
		out[i].Total = out[i].Total.Add(e.Amount)
		out[i].Count++
	}
	slices.SortStableFunc(out, func(a, b CategoryTotal) int {
		return b.Total.Cmp(a.Total)
	})
	return out
}

// Remaining is budget minus total, or invalid when no budget is set.
func Remaining(budget decimal.NullDecimal, total decimal.Decimal) decimal.NullDecimal {
	if !budget.Valid {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(budget.Decimal.Sub(total))
}

// PercentageUsed returns total as a percentage of budget. The result is not
// clamped, so overspending yields values above 100. Without a positive
// budget it is zero.
func PercentageUsed(budget decimal.NullDecimal, total decimal.Decimal) decimal.Decimal {
	if !budget.Valid || !budget.Decimal.IsPositive() {
		return decimal.Zero
	}
	return total.Div(budget.Decimal).Mul(decimal.NewFromInt(100))
}

// Band classifies budget usage for display.
type Band string

const (
	BandNormal  Band = "normal"
	BandWarning Band = "warning"
	BandOver    Band = "over"
)

var (
	warnAt = decimal.NewFromInt(75)
	overAt = decimal.NewFromInt(100)
)

// BandFor maps a usage percentage to its display band.
func BandFor(pct decimal.Decimal) Band {
	switch {
	case pct.GreaterThan(overAt):
		return BandOver
	case pct.GreaterThan(warnAt):
		return BandWarning
	default:
		return BandNormal
	}
}

// DisplayPercent clamps pct to 0..100 for a progress bar.
func DisplayPercent(pct decimal.Decimal) float64 {
	switch {
	case pct.IsNegative():
		return 0
	case pct.GreaterThan(overAt):
		return 100
	default:
		return pct.Round(1).InexactFloat64()
	}
}

// AvailablePeriods returns the distinct years present in all, ascending.
// With no history it returns the current year alone.
func AvailablePeriods(all []models.Expense, now time.Time) []int {
	var years []int
	for _, e := range all {
		if y := e.Date.Year(); !slices.Contains(years, y) {
			years = append(years, y)
		}
	}
	if len(years) == 0 {
		return []int{now.Year()}
	}
	slices.SortFunc(years, cmp.Compare[int])
	return years
}

// Summary describes a list of entries.
type Summary struct {
	Count    int
	Total    decimal.Decimal
	Average  decimal.Decimal
	Income   decimal.Decimal
	Spending decimal.Decimal
}

// Net is income minus spending.
func (s Summary) Net() decimal.Decimal {
	return s.Income.Sub(s.Spending)
}

// Summarize counts and totals expenses, splitting income categories from
// spending.
func Summarize(expenses []models.Expense) Summary {
	s := Summary{
		Count:    len(expenses),
		Total:    Total(expenses),
		Average:  decimal.Zero,
		Income:   decimal.Zero,
		Spending: decimal.Zero,
	}
	for _, e := range expenses {
		if e.IsIncome() {
			s.Income = s.Income.Add(e.Amount)
		} else {
			s.Spending = s.Spending.Add(e.Amount)
		}
	}
	if s.Count > 0 {
		s.Average = s.Total.Div(decimal.NewFromInt(int64(s.Count))).Round(2)
	}
	return s
}
