package ledger

import "time"

// ChangeKind identifies the mutation that produced a Change.
type ChangeKind int

const (
	ExpenseAdded ChangeKind = iota + 1
	ExpenseUpdated
	ExpenseDeleted
	BudgetSet
)

func (k ChangeKind) String() string {
	switch k {
	case ExpenseAdded:
		return "expense_added"
	case ExpenseUpdated:
		return "expense_updated"
	case ExpenseDeleted:
		return "expense_deleted"
	case BudgetSet:
		return "budget_set"
	default:
		return "unknown"
	}
}

// Change is emitted after every successful mutation of a user's ledger.
type Change struct {
	Kind   ChangeKind
	UserID string
	At     time.Time
}

// Subscribe registers fn to receive every Change. Listeners run
// synchronously on the mutating goroutine, after the write has committed and
// in registration order.
func (l *Ledger) Subscribe(fn func(Change)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.listeners = append(l.listeners, fn)
}

func (l *Ledger) emit(kind ChangeKind, userID string) {
	c := Change{Kind: kind, UserID: userID, At: l.now()}

	l.mu.RLock()
	listeners := l.listeners
	l.mu.RUnlock()

	for _, fn := range listeners {
		fn(c)
	}
}

// invalidate drops every cached read belonging to the changed user.
func (l *Ledger) invalidate(c Change) {
	l.expenses.DeleteFunc(func(k expenseKey) bool { return k.UserID == c.UserID })
	l.budgets.Delete(c.UserID)
	l.expenses.CleanExpired()
	l.budgets.CleanExpired()
}
