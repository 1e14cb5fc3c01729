package handlers

import (
	"net/http"
	"strconv"
	"time"

	"expense-ledger/internal/models"
	"expense-ledger/internal/report"

	"github.com/shopspring/decimal"
)

// StatsCategoryItem represents a category with its spending statistics.
type StatsCategoryItem struct {
	Category   models.Category
	Total      decimal.Decimal
	Count      int
	Percentage float64
	Style      CategoryStyle
}

// StatsViewModel is the data passed to the statistics view template.
type StatsViewModel struct {
	Year           int
	Month          int
	MonthName      string
	Total          decimal.Decimal
	Categories     []StatsCategoryItem
	Expenses       []ExpenseItem
	PrevYear       int
	PrevMonth      int
	NextYear       int
	NextMonth      int
	IsCurrentMonth bool
}

var hundred = decimal.NewFromInt(100)

// Statistics renders the statistics page.
func (h *Handlers) Statistics(w http.ResponseWriter, r *http.Request) {
	// Get year and month from query params, default to current month
	now := h.now()
	year := now.Year()
	month := int(now.Month())

	if y, err := strconv.Atoi(r.URL.Query().Get("year")); err == nil && y > 0 {
		year = y
	}
	if m, err := strconv.Atoi(r.URL.Query().Get("month")); err == nil && m >= 1 && m <= 12 {
		month = m
	}

	expenses, err := h.ledger.GetExpenses(r.Context(), GetUserFromContext(r).Username, models.MonthFilter(year, time.Month(month)))
	if err != nil {
		h.serverError(w, r, "list expenses", err)
		return
	}

	total := report.Total(expenses)
	totals := report.ByCategory(expenses)
	categoryItems := make([]StatsCategoryItem, 0, len(totals))
	for _, ct := range totals {
		percentage := 0.0
		if total.IsPositive() {
			percentage = ct.Total.Div(total).Mul(hundred).Round(1).InexactFloat64()
		}
		categoryItems = append(categoryItems, StatsCategoryItem{
			Category:   ct.Category,
			Total:      ct.Total,
			Count:      ct.Count,
			Percentage: percentage,
			Style:      getCategoryStyle(ct.Category),
		})
	}

	expenseItems := make([]ExpenseItem, 0, len(expenses))
	for _, e := range expenses {
		expenseItems = append(expenseItems, ExpenseItem{Expense: e, Style: getCategoryStyle(e.Category)})
	}

	// Calculate previous and next month
	first := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	prevDate := first.AddDate(0, -1, 0)
	nextDate := first.AddDate(0, 1, 0)

	h.render(w, r, http.StatusOK, "stats.html", "Statistics", StatsViewModel{
		Year:           year,
		Month:          month,
		MonthName:      time.Month(month).String(),
		Total:          total,
		Categories:     categoryItems,
		Expenses:       expenseItems,
		PrevYear:       prevDate.Year(),
		PrevMonth:      int(prevDate.Month()),
		NextYear:       nextDate.Year(),
		NextMonth:      int(nextDate.Month()),
		IsCurrentMonth: year == now.Year() && month == int(now.Month()),
	})
}
