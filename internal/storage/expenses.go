package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"expense-ledger/internal/models"

	"github.com/shopspring/decimal"
)

const expenseColumns = "id, user_id, amount, description, category, date, timestamp"

// InsertExpense stores a new ledger entry and returns its id. ID is ignored.
func (db *DB) InsertExpense(ctx context.Context, e *models.Expense) (int64, error) {
	res, err := db.conn.ExecContext(ctx,
		"INSERT INTO expenses (user_id, amount, description, category, date, timestamp) VALUES (?, ?, ?, ?, ?, ?)",
		e.UserID, e.Amount, e.Description, string(e.Category), e.DateString(), formatTime(e.Timestamp),
	)
	if err != nil {
		return 0, storeErr("insert expense", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, storeErr("insert expense", err)
	}
	return id, nil
}

// GetExpense retrieves a single expense owned by userID.
func (db *DB) GetExpense(ctx context.Context, id int64, userID string) (*models.Expense, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT "+expenseColumns+" FROM expenses WHERE id = ? AND user_id = ?",
		id, userID,
	)
	e, err := scanExpense(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, storeErr("get expense", err)
	}
	return e, nil
}

// UpdateExpense rewrites the mutable fields of the entry matching both e.ID
// and e.UserID. ErrNotFound covers a missing id and a foreign owner alike.
func (db *DB) UpdateExpense(ctx context.Context, e *models.Expense) error {
	res, err := db.conn.ExecContext(ctx,
		"UPDATE expenses SET amount = ?, description = ?, category = ?, date = ? WHERE id = ? AND user_id = ?",
		e.Amount, e.Description, string(e.Category), e.DateString(), e.ID, e.UserID,
	)
	if err != nil {
		return storeErr("update expense", err)
	}
	return requireAffected(res, "update expense")
}

// DeleteExpense permanently removes the entry matching id and userID.
func (db *DB) DeleteExpense(ctx context.Context, id int64, userID string) error {
	res, err := db.conn.ExecContext(ctx,
		"DELETE FROM expenses WHERE id = ? AND user_id = ?",
		id, userID,
	)
	if err != nil {
		return storeErr("delete expense", err)
	}
	return requireAffected(res, "delete expense")
}

// ListExpenses retrieves a user's expenses, most recent first. A filter with
// year and month selects that month; year alone selects the year.
func (db *DB) ListExpenses(ctx context.Context, userID string, f models.Filter) ([]models.Expense, error) {
	query := "SELECT " + expenseColumns + " FROM expenses WHERE user_id = ?"
	args := []any{userID}

	switch {
	case f.HasMonth():
		query += " AND substr(date, 1, 7) = ?"
		args = append(args, fmt.Sprintf("%04d-%02d", f.Year, f.Month))
	case f.HasYear():
		query += " AND substr(date, 1, 4) = ?"
		args = append(args, fmt.Sprintf("%04d", f.Year))
	}
	query += " ORDER BY timestamp DESC, id DESC"

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeErr("list expenses", err)
	}
	defer rows.Close()

	expenses := []models.Expense{}
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, storeErr("list expenses", err)
		}
		expenses = append(expenses, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list expenses", err)
	}
	return expenses, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanExpense(s scanner) (*models.Expense, error) {
	var (
		e                     models.Expense
		category, date, stamp string
		amount                float64
	)
	if err := s.Scan(&e.ID, &e.UserID, &amount, &e.Description, &category, &date, &stamp); err != nil {
		return nil, err
	}
	a, err := amountFromReal(amount)
	if err != nil {
		return nil, fmt.Errorf("expense %d: %w", e.ID, err)
	}
	d, err := time.Parse(models.DateLayout, date)
	if err != nil {
		return nil, fmt.Errorf("expense %d: bad date %q: %w", e.ID, date, err)
	}
	ts, err := parseTime(stamp)
	if err != nil {
		return nil, fmt.Errorf("expense %d: bad timestamp %q: %w", e.ID, stamp, err)
	}
	e.Amount = a
	e.Category = models.NormalizeCategory(category)
	e.Date = d
	e.Timestamp = ts
	return &e, nil
}

func requireAffected(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return storeErr(op, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// amountFromReal converts a stored REAL amount. Non-finite values come from
// rows written outside the ledger and are reported instead of decoded.
func amountFromReal(f float64) (decimal.Decimal, error) {
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return decimal.Zero, fmt.Errorf("amount %v is not finite", f)
	}
	return decimal.NewFromFloat(f), nil
}
