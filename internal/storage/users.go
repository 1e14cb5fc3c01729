package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"expense-ledger/internal/models"
)

// CreateUser creates a new user with the given username and password hash.
// A taken username yields ErrDuplicate.
func (db *DB) CreateUser(ctx context.Context, username, passwordHash string) (*models.User, error) {
	result, err := db.conn.ExecContext(ctx,
		"INSERT INTO users (username, password_hash, created_at) VALUES (?, ?, ?)",
		username, passwordHash, formatTime(time.Now()),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, storeErr("create user", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, storeErr("create user", err)
	}

	return db.GetUserByID(ctx, id)
}

// GetUserByID retrieves a user by ID.
func (db *DB) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT id, username, password_hash, created_at FROM users WHERE id = ?",
		id,
	)
	return scanUser(row, "get user")
}

// GetUserByUsername retrieves a user by username. The match is exact and
// case-sensitive.
func (db *DB) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT id, username, password_hash, created_at FROM users WHERE username = ?",
		username,
	)
	return scanUser(row, "get user by username")
}

// UserCount returns the number of users in the database.
func (db *DB) UserCount(ctx context.Context) (int, error) {
	var count int
	if err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		return 0, storeErr("count users", err)
	}
	return count, nil
}

func scanUser(row *sql.Row, op string) (*models.User, error) {
	var (
		u         models.User
		createdAt string
	)
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, storeErr(op, err)
	}
	t, err := parseTime(createdAt)
	if err != nil {
		return nil, storeErr(op, err)
	}
	u.CreatedAt = t
	return &u, nil
}
