package handlers

import (
	"errors"
	"net/http"
	"sort"
	"strconv"
	"time"

	"expense-ledger/internal/ledger"
	"expense-ledger/internal/models"
	"expense-ledger/internal/report"

	"github.com/shopspring/decimal"
)

// ExpenseItem represents an expense in the list view.
type ExpenseItem struct {
	models.Expense
	Style CategoryStyle
}

// ExpenseGroup groups expenses by date.
type ExpenseGroup struct {
	Title string
	Date  string
	Total decimal.Decimal
	Items []ExpenseItem
}

// ListViewModel is the data passed to the dashboard template.
type ListViewModel struct {
	Filter         models.Filter
	PeriodLabel    string
	Overview       report.Overview
	DisplayPercent float64
	PercentLabel   string
	OverBudget     bool
	Groups         []ExpenseGroup
	Months         []Option
	Years          []Option
	BudgetAction   string
	BudgetError    string
}

// FormViewModel is the data passed to the create/edit form template.
type FormViewModel struct {
	IsEdit      bool
	Action      string
	Amount      string
	Description string
	Date        string
	Categories  []CategoryOption
	Error       string
}

// ListExpenses renders the dashboard for the selected period.
func (h *Handlers) ListExpenses(w http.ResponseWriter, r *http.Request) {
	h.renderDashboard(w, r, http.StatusOK, "")
}

func (h *Handlers) renderDashboard(w http.ResponseWriter, r *http.Request, status int, budgetErr string) {
	ctx := r.Context()
	userID := GetUserFromContext(r).Username
	now := h.now()
	f := periodFromQuery(r.URL.Query(), now)

	expenses, err := h.ledger.GetExpenses(ctx, userID, f)
	if err != nil {
		h.serverError(w, r, "list expenses", err)
		return
	}
	all, err := h.ledger.GetExpenses(ctx, userID, models.Filter{})
	if err != nil {
		h.serverError(w, r, "list all expenses", err)
		return
	}
	budget, err := h.ledger.GetBudget(ctx, userID)
	if err != nil {
		h.serverError(w, r, "get budget", err)
		return
	}

	overview := report.BuildOverview(expenses, budget, f)
	h.render(w, r, status, "list.html", "Dashboard", ListViewModel{
		Filter:         f,
		PeriodLabel:    periodLabel(f),
		Overview:       overview,
		DisplayPercent: report.DisplayPercent(overview.Percent),
		PercentLabel:   overview.Percent.StringFixed(0) + "%",
		OverBudget:     overview.Remaining.Valid && overview.Remaining.Decimal.IsNegative(),
		Groups:         groupByDate(expenses, now),
		Months:         monthOptions(f.Month),
		Years:          yearOptions(report.AvailablePeriods(all, now), f.Year),
		BudgetAction:   "/budget" + periodQuery(f),
		BudgetError:    budgetErr,
	})
}

func groupByDate(expenses []models.Expense, now time.Time) []ExpenseGroup {
	groupsMap := make(map[string]*ExpenseGroup)
	for _, e := range expenses {
		dateStr := e.DateString()
		group, ok := groupsMap[dateStr]
		if !ok {
			group = &ExpenseGroup{Date: dateStr, Title: formatGroupTitle(e.Date, now), Total: decimal.Zero}
			groupsMap[dateStr] = group
		}
		group.Total = group.Total.Add(e.Amount)
		group.Items = append(group.Items, ExpenseItem{Expense: e, Style: getCategoryStyle(e.Category)})
	}

	groups := make([]ExpenseGroup, 0, len(groupsMap))
	for _, g := range groupsMap {
		groups = append(groups, *g)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Date > groups[j].Date })
	return groups
}

// CreateExpenseForm renders the form to create a new expense.
func (h *Handlers) CreateExpenseForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "form.html", "New transaction", FormViewModel{
		Action:     "/expenses",
		Date:       h.now().Format(models.DateLayout),
		Categories: categoryOptions(models.CategoryFood),
	})
}

// EditExpenseForm renders the form to edit an existing expense.
func (h *Handlers) EditExpenseForm(w http.ResponseWriter, r *http.Request) {
	id, ok := expenseID(r)
	if !ok {
		http.Error(w, "Expense not found", http.StatusNotFound)
		return
	}

	expense, err := h.ledger.GetExpense(r.Context(), id, GetUserFromContext(r).Username)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFoundOrForbidden) {
			http.Error(w, "Expense not found", http.StatusNotFound)
			return
		}
		h.serverError(w, r, "get expense", err)
		return
	}

	h.render(w, r, http.StatusOK, "form.html", "Edit transaction", FormViewModel{
		IsEdit:      true,
		Action:      "/expenses/" + strconv.FormatInt(expense.ID, 10),
		Amount:      expense.Amount.StringFixed(2),
		Description: expense.Description,
		Date:        expense.DateString(),
		Categories:  categoryOptions(expense.Category),
	})
}

// expenseForm is the raw submission of the create/edit form.
type expenseForm struct {
	amount      string
	description string
	category    string
	date        string
}

func readExpenseForm(r *http.Request) (expenseForm, error) {
	if err := r.ParseForm(); err != nil {
		return expenseForm{}, err
	}
	return expenseForm{
		amount:      r.FormValue("amount"),
		description: r.FormValue("description"),
		category:    r.FormValue("category"),
		date:        r.FormValue("date"),
	}, nil
}

func (f expenseForm) viewModel(action string, isEdit bool, err error) FormViewModel {
	return FormViewModel{
		IsEdit:      isEdit,
		Action:      action,
		Amount:      f.amount,
		Description: f.description,
		Date:        f.date,
		Categories:  categoryOptions(models.NormalizeCategory(f.category)),
		Error:       capitalize(err.Error()),
	}
}

// CreateExpense handles the creation of a new expense.
func (h *Handlers) CreateExpense(w http.ResponseWriter, r *http.Request) {
	form, err := readExpenseForm(r)
	if err != nil {
		http.Error(w, "Invalid form submission", http.StatusBadRequest)
		return
	}

	_, err = h.saveExpense(r, 0, form)
	if err != nil {
		if isValidation(err) {
			h.render(w, r, http.StatusUnprocessableEntity, "form.html", "New transaction", form.viewModel("/expenses", false, err))
			return
		}
		h.serverError(w, r, "create expense", err)
		return
	}
	h.redirect(w, r, "/expenses")
}

// UpdateExpense handles the update of an existing expense.
func (h *Handlers) UpdateExpense(w http.ResponseWriter, r *http.Request) {
	id, ok := expenseID(r)
	if !ok {
		http.Error(w, "Expense not found", http.StatusNotFound)
		return
	}
	form, err := readExpenseForm(r)
	if err != nil {
		http.Error(w, "Invalid form submission", http.StatusBadRequest)
		return
	}

	_, err = h.saveExpense(r, id, form)
	switch {
	case err == nil:
		h.redirect(w, r, "/expenses")
	case errors.Is(err, ledger.ErrNotFoundOrForbidden):
		http.Error(w, "Expense not found", http.StatusNotFound)
	case isValidation(err):
		action := "/expenses/" + strconv.FormatInt(id, 10)
		h.render(w, r, http.StatusUnprocessableEntity, "form.html", "Edit transaction", form.viewModel(action, true, err))
	default:
		h.serverError(w, r, "update expense", err)
	}
}

// saveExpense inserts the form when id is zero and updates entry id
// otherwise.
func (h *Handlers) saveExpense(r *http.Request, id int64, form expenseForm) (int64, error) {
	amount, err := ledger.ParseAmount(form.amount)
	if err != nil {
		return 0, err
	}
	date, err := ledger.ParseDate(form.date)
	if err != nil {
		return 0, err
	}

	userID := GetUserFromContext(r).Username
	if id == 0 {
		return h.ledger.AddExpense(r.Context(), userID, amount, form.description, form.category, date)
	}
	return id, h.ledger.UpdateExpense(r.Context(), id, userID, amount, form.description, form.category, date)
}

// DeleteExpense permanently removes an expense.
func (h *Handlers) DeleteExpense(w http.ResponseWriter, r *http.Request) {
	id, ok := expenseID(r)
	if !ok {
		http.Error(w, "Expense not found", http.StatusNotFound)
		return
	}

	err := h.ledger.DeleteExpense(r.Context(), id, GetUserFromContext(r).Username)
	switch {
	case err == nil:
		h.redirect(w, r, "/expenses")
	case errors.Is(err, ledger.ErrNotFoundOrForbidden):
		http.Error(w, "Expense not found", http.StatusNotFound)
	default:
		h.serverError(w, r, "delete expense", err)
	}
}

// SetBudget replaces the user's monthly budget.
func (h *Handlers) SetBudget(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form submission", http.StatusBadRequest)
		return
	}

	amount, err := ledger.ParseAmount(r.PostFormValue("amount"))
	if err == nil {
		err = h.ledger.SetBudget(r.Context(), GetUserFromContext(r).Username, amount)
	}
	switch {
	case err == nil:
		h.redirect(w, r, "/expenses"+periodQuery(periodFromQuery(r.URL.Query(), h.now())))
	case errors.Is(err, ledger.ErrInvalidAmount):
		h.renderDashboard(w, r, http.StatusUnprocessableEntity, "Budget must be a positive amount.")
	default:
		h.serverError(w, r, "set budget", err)
	}
}

func expenseID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func isValidation(err error) bool {
	for _, target := range []error{
		ledger.ErrInvalidAmount,
		ledger.ErrInvalidDate,
		ledger.ErrEmptyDescription,
		ledger.ErrInvalidCategory,
		ledger.ErrMissingUser,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
