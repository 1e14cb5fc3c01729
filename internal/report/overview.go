package report

import (
	"expense-ledger/internal/models"

	"github.com/shopspring/decimal"
)

// Overview is everything the dashboard shows for one period.
type Overview struct {
	Filter     models.Filter
	Budget     decimal.NullDecimal
	Spent      decimal.Decimal
	Remaining  decimal.NullDecimal
	Percent    decimal.Decimal
	Band       Band
	Categories []CategoryTotal
	Summary    Summary
}

// BuildOverview computes the overview of expenses against budget, which may
// be nil. Budget usage is measured against the period total.
func BuildOverview(expenses []models.Expense, budget *models.Budget, f models.Filter) Overview {
	var b decimal.NullDecimal
	if budget != nil {
		b = decimal.NewNullDecimal(budget.Amount)
	}

	summary := Summarize(expenses)
	pct := PercentageUsed(b, summary.Total)
	return Overview{
		Filter:     f,
		Budget:     b,
		Spent:      summary.Total,
		Remaining:  Remaining(b, summary.Total),
		Percent:    pct,
		Band:       BandFor(pct),
		Categories: ByCategory(expenses),
		Summary:    summary,
	}
}
