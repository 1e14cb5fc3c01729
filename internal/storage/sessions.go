package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"expense-ledger/internal/models"
)

// CreateSession creates a new session for a user.
func (db *DB) CreateSession(ctx context.Context, token string, userID int64, expiresAt time.Time) error {
	_, err := db.conn.ExecContext(ctx,
		"INSERT INTO sessions (token, user_id, expires_at, last_activity) VALUES (?, ?, ?, ?)",
		token, userID, formatTime(expiresAt), formatTime(time.Now()),
	)
	if err != nil {
		return storeErr("create session", err)
	}
	return nil
}

// SessionInfo holds session validation data.
type SessionInfo struct {
	User         *models.User
	LastActivity time.Time
	ExpiresAt    time.Time
}

// ValidateSession checks if a session token is valid and returns the associated user.
func (db *DB) ValidateSession(ctx context.Context, token string) (*models.User, error) {
	info, err := db.ValidateSessionWithInfo(ctx, token)
	if err != nil {
		return nil, err
	}
	return info.User, nil
}

// ValidateSessionWithInfo checks if a session token is valid and returns session details.
// Unknown and expired tokens both yield ErrNotFound.
func (db *DB) ValidateSessionWithInfo(ctx context.Context, token string) (*SessionInfo, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT u.id, u.username, u.password_hash, u.created_at, s.last_activity, s.expires_at
		FROM sessions s
		JOIN users u ON s.user_id = u.id
		WHERE s.token = ? AND s.expires_at > ?
	`, token, formatTime(time.Now()))

	var (
		u                                 models.User
		createdAt, lastActivity, expireAt string
	)
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &createdAt, &lastActivity, &expireAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, storeErr("validate session", err)
	}

	info := &SessionInfo{User: &u}
	var err error
	if u.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, storeErr("validate session", err)
	}
	if info.LastActivity, err = parseTime(lastActivity); err != nil {
		return nil, storeErr("validate session", err)
	}
	if info.ExpiresAt, err = parseTime(expireAt); err != nil {
		return nil, storeErr("validate session", err)
	}
	return info, nil
}

// RenewSession updates the last_activity and expires_at for a session.
func (db *DB) RenewSession(ctx context.Context, token string, newExpiresAt time.Time) error {
	_, err := db.conn.ExecContext(ctx,
		"UPDATE sessions SET last_activity = ?, expires_at = ? WHERE token = ?",
		formatTime(time.Now()), formatTime(newExpiresAt), token,
	)
	if err != nil {
		return storeErr("renew session", err)
	}
	return nil
}

// DeleteSession removes a session by token.
func (db *DB) DeleteSession(ctx context.Context, token string) error {
	if _, err := db.conn.ExecContext(ctx, "DELETE FROM sessions WHERE token = ?", token); err != nil {
		return storeErr("delete session", err)
	}
	return nil
}

// CleanExpiredSessions removes all expired sessions and reports how many were dropped.
func (db *DB) CleanExpiredSessions(ctx context.Context) (int64, error) {
	res, err := db.conn.ExecContext(ctx, "DELETE FROM sessions WHERE expires_at <= ?", formatTime(time.Now()))
	if err != nil {
		return 0, storeErr("clean sessions", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
