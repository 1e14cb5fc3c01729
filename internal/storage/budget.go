package storage

import (
	"context"
	"database/sql"
	"errors"

	"expense-ledger/internal/models"
)

// UpsertBudget writes the single budget row for b.UserID, replacing any
// existing one.
func (db *DB) UpsertBudget(ctx context.Context, b *models.Budget) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO budget (user_id, amount, last_updated) VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			amount = excluded.amount,
			last_updated = excluded.last_updated
	`, b.UserID, b.Amount, formatTime(b.LastUpdated))
	if err != nil {
		return storeErr("upsert budget", err)
	}
	return nil
}

// GetBudget returns the user's budget or ErrNotFound when none is set.
func (db *DB) GetBudget(ctx context.Context, userID string) (*models.Budget, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT user_id, amount, last_updated FROM budget WHERE user_id = ?",
		userID,
	)

	var (
		b       models.Budget
		updated string
		amount  float64
	)
	if err := row.Scan(&b.UserID, &amount, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, storeErr("get budget", err)
	}
	a, err := amountFromReal(amount)
	if err != nil {
		return nil, storeErr("get budget", err)
	}
	t, err := parseTime(updated)
	if err != nil {
		return nil, storeErr("get budget", err)
	}
	b.Amount = a
	b.LastUpdated = t
	return &b, nil
}
