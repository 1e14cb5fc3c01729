// Package ledger owns a user's expense records and budget. Reads go through
// a short-lived cache that every write invalidates.
package ledger

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"expense-ledger/internal/cache"
	"expense-ledger/internal/models"
	"expense-ledger/internal/storage"

	"github.com/shopspring/decimal"
)

// DefaultTTL is the freshness window for cached reads.
const DefaultTTL = 30 * time.Second

// Store is the persistence the ledger is built on.
type Store interface {
	InsertExpense(ctx context.Context, e *models.Expense) (int64, error)
	GetExpense(ctx context.Context, id int64, userID string) (*models.Expense, error)
	UpdateExpense(ctx context.Context, e *models.Expense) error
	DeleteExpense(ctx context.Context, id int64, userID string) error
	ListExpenses(ctx context.Context, userID string, f models.Filter) ([]models.Expense, error)
	UpsertBudget(ctx context.Context, b *models.Budget) error
	GetBudget(ctx context.Context, userID string) (*models.Budget, error)
}

type expenseKey struct {
	UserID string
	Filter models.Filter
}

// Ledger is safe for concurrent use.
type Ledger struct {
	store    Store
	now      func() time.Time
	expenses *cache.TTL[expenseKey, []models.Expense]
	// budgets holds nil for users without a budget.
	budgets *cache.TTL[string, *models.Budget]

	mu        sync.RWMutex
	listeners []func(Change)
}

// New creates a ledger over store. A non-positive ttl uses DefaultTTL.
func New(store Store, ttl time.Duration) *Ledger {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	l := &Ledger{
		store:    store,
		now:      time.Now,
		expenses: cache.New[expenseKey, []models.Expense](ttl),
		budgets:  cache.New[string, *models.Budget](ttl),
	}
	l.Subscribe(l.invalidate)
	return l
}

// WithClock replaces the time source for timestamps and cache expiry.
func (l *Ledger) WithClock(now func() time.Time) *Ledger {
	l.now = now
	l.expenses.WithClock(now)
	l.budgets.WithClock(now)
	return l
}

// AddExpense records a new entry for userID and returns its id.
func (l *Ledger) AddExpense(ctx context.Context, userID string, amount decimal.Decimal, description, category string, date time.Time) (int64, error) {
	in, err := validateEntry(userID, amount, description, category, date)
	if err != nil {
		return 0, err
	}

	id, err := l.store.InsertExpense(ctx, &models.Expense{
		UserID:      userID,
		Amount:      in.amount,
		Description: in.description,
		Category:    in.category,
		Date:        in.date,
		Timestamp:   l.now(),
	})
	if err != nil {
		return 0, err
	}
	l.emit(ExpenseAdded, userID)
	return id, nil
}

// UpdateExpense rewrites an entry owned by userID. The id and creation
// timestamp do not change.
func (l *Ledger) UpdateExpense(ctx context.Context, id int64, userID string, amount decimal.Decimal, description, category string, date time.Time) error {
	in, err := validateEntry(userID, amount, description, category, date)
	if err != nil {
		return err
	}

	err = l.store.UpdateExpense(ctx, &models.Expense{
		ID:          id,
		UserID:      userID,
		Amount:      in.amount,
		Description: in.description,
		Category:    in.category,
		Date:        in.date,
	})
	if err != nil {
		return mapNotFound(err)
	}
	l.emit(ExpenseUpdated, userID)
	return nil
}

// DeleteExpense permanently removes an entry owned by userID.
func (l *Ledger) DeleteExpense(ctx context.Context, id int64, userID string) error {
	if userID == "" {
		return ErrMissingUser
	}
	if err := l.store.DeleteExpense(ctx, id, userID); err != nil {
		return mapNotFound(err)
	}
	l.emit(ExpenseDeleted, userID)
	return nil
}

// GetExpense returns a single entry owned by userID. It bypasses the cache
// so edit forms always show the stored row.
func (l *Ledger) GetExpense(ctx context.Context, id int64, userID string) (*models.Expense, error) {
	if userID == "" {
		return nil, ErrMissingUser
	}
	e, err := l.store.GetExpense(ctx, id, userID)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return e, nil
}

// GetExpenses returns the user's entries matching f, most recent first.
// The returned slice is owned by the caller. Concurrent callers share one
// load, so it runs detached from any single caller's cancellation.
func (l *Ledger) GetExpenses(ctx context.Context, userID string, f models.Filter) ([]models.Expense, error) {
	if userID == "" {
		return nil, ErrMissingUser
	}
	key := expenseKey{UserID: userID, Filter: normalizeFilter(f)}
	list, err := l.expenses.GetOrLoad(key, func() ([]models.Expense, error) {
		return l.store.ListExpenses(context.WithoutCancel(ctx), key.UserID, key.Filter)
	})
	if err != nil {
		return nil, err
	}
	out := slices.Clone(list)
	if out == nil {
		out = []models.Expense{}
	}
	return out, nil
}

// SetBudget replaces the user's monthly budget.
func (l *Ledger) SetBudget(ctx context.Context, userID string, amount decimal.Decimal) error {
	if userID == "" {
		return ErrMissingUser
	}
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if err := checkStorable(amount); err != nil {
		return err
	}
	err := l.store.UpsertBudget(ctx, &models.Budget{
		UserID:      userID,
		Amount:      amount,
		LastUpdated: l.now(),
	})
	if err != nil {
		return err
	}
	l.emit(BudgetSet, userID)
	return nil
}

// GetBudget returns the user's budget, or nil when none is set.
func (l *Ledger) GetBudget(ctx context.Context, userID string) (*models.Budget, error) {
	if userID == "" {
		return nil, ErrMissingUser
	}
	b, err := l.budgets.GetOrLoad(userID, func() (*models.Budget, error) {
		b, err := l.store.GetBudget(context.WithoutCancel(ctx), userID)
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return b, err
	})
	if err != nil || b == nil {
		return nil, err
	}
	cp := *b
	return &cp, nil
}

func mapNotFound(err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return ErrNotFoundOrForbidden
	}
	return err
}
