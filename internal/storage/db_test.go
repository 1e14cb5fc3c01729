package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"expense-ledger/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func day(s string) time.Time {
	d, err := time.Parse(models.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return d
}

// DBTestSuite provides a test suite for ledger operations
type DBTestSuite struct {
	suite.Suite
	db  *DB
	ctx context.Context
}

// SetupTest runs before each test
func (suite *DBTestSuite) SetupTest() {
	db, err := NewDB(":memory:")
	require.NoError(suite.T(), err, "failed to create test database")
	suite.db = db
	suite.ctx = context.Background()
}

// TearDownTest runs after each test
func (suite *DBTestSuite) TearDownTest() {
	if suite.db != nil {
		suite.db.Close()
	}
}

func (suite *DBTestSuite) insert(user, amount, desc string, cat models.Category, date string, ts time.Time) int64 {
	id, err := suite.db.InsertExpense(suite.ctx, &models.Expense{
		UserID:      user,
		Amount:      dec(amount),
		Description: desc,
		Category:    cat,
		Date:        day(date),
		Timestamp:   ts,
	})
	require.NoError(suite.T(), err, "failed to insert expense: %s", desc)
	return id
}

func (suite *DBTestSuite) TestInsertAndGetExpense() {
	ts := time.Date(2024, 1, 15, 9, 30, 0, 123, time.UTC)
	id := suite.insert("alice", "10.50", "Lunch", models.CategoryFood, "2024-01-15", ts)

	e, err := suite.db.GetExpense(suite.ctx, id, "alice")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), id, e.ID)
	assert.Equal(suite.T(), "alice", e.UserID)
	assert.True(suite.T(), dec("10.50").Equal(e.Amount), "amount = %s", e.Amount)
	assert.Equal(suite.T(), "Lunch", e.Description)
	assert.Equal(suite.T(), models.CategoryFood, e.Category)
	assert.Equal(suite.T(), "2024-01-15", e.DateString())
	assert.True(suite.T(), ts.Equal(e.Timestamp), "timestamp = %s", e.Timestamp)
}

func (suite *DBTestSuite) TestGetExpenseOfOtherUser() {
	id := suite.insert("alice", "5", "Coffee", models.CategoryFood, "2024-01-15", time.Now())

	_, err := suite.db.GetExpense(suite.ctx, id, "bob")
	assert.ErrorIs(suite.T(), err, ErrNotFound)
}

func (suite *DBTestSuite) TestInsertMultipleExpensesWithSameTimestamp() {
	now := time.Now()

	first := suite.insert("alice", "10", "First", models.CategoryMisc, "2024-01-15", now)
	second := suite.insert("alice", "20", "Second", models.CategoryMisc, "2024-01-15", now)

	result, err := suite.db.ListExpenses(suite.ctx, "alice", models.Filter{})
	require.NoError(suite.T(), err)
	require.Len(suite.T(), result, 2)
	// Ties on timestamp fall back to the newer id.
	assert.Equal(suite.T(), second, result[0].ID)
	assert.Equal(suite.T(), first, result[1].ID)
}

func (suite *DBTestSuite) TestListExpensesOrderAndOwnership() {
	base := time.Now()

	suite.insert("alice", "20", "Bus", models.CategoryTransport, "2024-01-02", base.Add(time.Minute))
	suite.insert("alice", "5", "Coffee", models.CategoryFood, "2024-01-01", base.Add(2*time.Minute))
	suite.insert("bob", "99", "Not yours", models.CategoryFood, "2024-01-01", base.Add(4*time.Minute))
	suite.insert("alice", "15", "Snack", models.CategoryFood, "2024-01-03", base.Add(3*time.Minute))

	result, err := suite.db.ListExpenses(suite.ctx, "alice", models.Filter{})
	require.NoError(suite.T(), err)
	require.Len(suite.T(), result, 3, "expected 3 expenses")

	// Snack was added last with the latest timestamp
	assert.Equal(suite.T(), "Snack", result[0].Description)
	assert.Equal(suite.T(), "Coffee", result[1].Description)
	assert.Equal(suite.T(), "Bus", result[2].Description)
	for _, e := range result {
		assert.Equal(suite.T(), "alice", e.UserID)
	}
}

func (suite *DBTestSuite) TestListExpensesFilters() {
	now := time.Now()
	suite.insert("alice", "1", "January", models.CategoryFood, "2024-01-15", now)
	suite.insert("alice", "2", "February", models.CategoryFood, "2024-02-01", now.Add(time.Second))
	suite.insert("alice", "3", "New Year's Eve", models.CategoryFood, "2023-12-31", now.Add(2*time.Second))

	month, err := suite.db.ListExpenses(suite.ctx, "alice", models.Filter{Year: 2024, Month: 1})
	require.NoError(suite.T(), err)
	require.Len(suite.T(), month, 1)
	assert.Equal(suite.T(), "January", month[0].Description)

	year, err := suite.db.ListExpenses(suite.ctx, "alice", models.Filter{Year: 2024})
	require.NoError(suite.T(), err)
	require.Len(suite.T(), year, 2)
	assert.Equal(suite.T(), "February", year[0].Description)
	assert.Equal(suite.T(), "January", year[1].Description)

	// Month without a year is not a filter.
	all, err := suite.db.ListExpenses(suite.ctx, "alice", models.Filter{Month: 1})
	require.NoError(suite.T(), err)
	assert.Len(suite.T(), all, 3)
}

func (suite *DBTestSuite) TestListExpensesEmpty() {
	result, err := suite.db.ListExpenses(suite.ctx, "nobody", models.Filter{})
	require.NoError(suite.T(), err)
	assert.NotNil(suite.T(), result)
	assert.Empty(suite.T(), result)
}

func (suite *DBTestSuite) TestUpdateExpense() {
	ts := time.Now().Add(-time.Hour)
	id := suite.insert("alice", "10", "Lunch", models.CategoryFood, "2024-01-15", ts)

	err := suite.db.UpdateExpense(suite.ctx, &models.Expense{
		ID:          id,
		UserID:      "alice",
		Amount:      dec("12.75"),
		Description: "Dinner",
		Category:    models.CategoryEntertainment,
		Date:        day("2024-01-16"),
		Timestamp:   time.Now(),
	})
	require.NoError(suite.T(), err)

	e, err := suite.db.GetExpense(suite.ctx, id, "alice")
	require.NoError(suite.T(), err)
	assert.True(suite.T(), dec("12.75").Equal(e.Amount))
	assert.Equal(suite.T(), "Dinner", e.Description)
	assert.Equal(suite.T(), models.CategoryEntertainment, e.Category)
	assert.Equal(suite.T(), "2024-01-16", e.DateString())
	assert.True(suite.T(), ts.Equal(e.Timestamp), "timestamp must not change on update")
}

func (suite *DBTestSuite) TestUpdateExpenseOwnedByOtherUser() {
	id := suite.insert("bob", "10", "Bob's lunch", models.CategoryFood, "2024-01-15", time.Now())

	err := suite.db.UpdateExpense(suite.ctx, &models.Expense{
		ID:          id,
		UserID:      "alice",
		Amount:      dec("1"),
		Description: "hijacked",
		Category:    models.CategoryMisc,
		Date:        day("2024-01-15"),
	})
	assert.ErrorIs(suite.T(), err, ErrNotFound)

	e, err := suite.db.GetExpense(suite.ctx, id, "bob")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "Bob's lunch", e.Description)
	assert.True(suite.T(), dec("10").Equal(e.Amount))
}

func (suite *DBTestSuite) TestDeleteExpense() {
	keep := suite.insert("alice", "1", "Keep", models.CategoryFood, "2024-01-15", time.Now())
	drop := suite.insert("alice", "2", "Drop", models.CategoryFood, "2024-01-15", time.Now())

	require.NoError(suite.T(), suite.db.DeleteExpense(suite.ctx, drop, "alice"))
	assert.ErrorIs(suite.T(), suite.db.DeleteExpense(suite.ctx, drop, "alice"), ErrNotFound)

	result, err := suite.db.ListExpenses(suite.ctx, "alice", models.Filter{})
	require.NoError(suite.T(), err)
	require.Len(suite.T(), result, 1)
	assert.Equal(suite.T(), keep, result[0].ID)
}

func (suite *DBTestSuite) TestDeleteExpenseOwnedByOtherUser() {
	id := suite.insert("bob", "2", "Bob's", models.CategoryFood, "2024-01-15", time.Now())

	assert.ErrorIs(suite.T(), suite.db.DeleteExpense(suite.ctx, id, "alice"), ErrNotFound)
	_, err := suite.db.GetExpense(suite.ctx, id, "bob")
	assert.NoError(suite.T(), err)
}

func (suite *DBTestSuite) TestLegacyCategoryIsNormalized() {
	_, err := suite.db.conn.ExecContext(suite.ctx,
		"INSERT INTO expenses (user_id, amount, description, category, date, timestamp) VALUES (?, ?, ?, ?, ?, ?)",
		"alice", 3.5, "Old row", "groceries", "2024-01-01", formatTime(time.Now()),
	)
	require.NoError(suite.T(), err)

	result, err := suite.db.ListExpenses(suite.ctx, "alice", models.Filter{})
	require.NoError(suite.T(), err)
	require.Len(suite.T(), result, 1)
	assert.Equal(suite.T(), models.CategoryUncategorized, result[0].Category)
	assert.True(suite.T(), dec("3.5").Equal(result[0].Amount))
}

func (suite *DBTestSuite) TestBudgetUpsert() {
	_, err := suite.db.GetBudget(suite.ctx, "alice")
	assert.ErrorIs(suite.T(), err, ErrNotFound)

	first := time.Now().Add(-time.Hour)
	require.NoError(suite.T(), suite.db.UpsertBudget(suite.ctx, &models.Budget{UserID: "alice", Amount: dec("1000"), LastUpdated: first}))
	second := time.Now()
	require.NoError(suite.T(), suite.db.UpsertBudget(suite.ctx, &models.Budget{UserID: "alice", Amount: dec("1500"), LastUpdated: second}))

	b, err := suite.db.GetBudget(suite.ctx, "alice")
	require.NoError(suite.T(), err)
	assert.True(suite.T(), dec("1500").Equal(b.Amount))
	assert.True(suite.T(), second.Equal(b.LastUpdated))

	var rows int
	require.NoError(suite.T(), suite.db.conn.QueryRowContext(suite.ctx,
		"SELECT COUNT(*) FROM budget WHERE user_id = ?", "alice").Scan(&rows))
	assert.Equal(suite.T(), 1, rows)
}

func (suite *DBTestSuite) TestBudgetIsPerUser() {
	require.NoError(suite.T(), suite.db.UpsertBudget(suite.ctx, &models.Budget{UserID: "alice", Amount: dec("100"), LastUpdated: time.Now()}))

	_, err := suite.db.GetBudget(suite.ctx, "bob")
	assert.ErrorIs(suite.T(), err, ErrNotFound)
}

func (suite *DBTestSuite) TestNonFiniteAmountIsStoreError() {
	// 1e999 overflows to +Inf in a REAL column.
	_, err := suite.db.conn.ExecContext(suite.ctx,
		"INSERT INTO expenses (user_id, amount, description, category, date, timestamp) VALUES ('alice', 1e999, 'x', 'Food', '2024-03-01', '2024-03-01 00:00:00')")
	require.NoError(suite.T(), err)
	_, err = suite.db.conn.ExecContext(suite.ctx,
		"INSERT INTO budget (user_id, amount, last_updated) VALUES ('alice', -1e999, '2024-03-01 00:00:00')")
	require.NoError(suite.T(), err)

	var se *StoreError
	_, err = suite.db.ListExpenses(suite.ctx, "alice", models.Filter{})
	require.ErrorAs(suite.T(), err, &se)
	assert.Contains(suite.T(), err.Error(), "not finite")

	_, err = suite.db.GetBudget(suite.ctx, "alice")
	require.ErrorAs(suite.T(), err, &se)

	// the connection is still usable afterwards
	_, err = suite.db.ListExpenses(suite.ctx, "bob", models.Filter{})
	assert.NoError(suite.T(), err)
}

func (suite *DBTestSuite) TestLargestAmountRoundTrips() {
	id := suite.insert("alice", "999999999999.99", "big", models.CategorySavings, "2024-03-01", time.Now())
	e, err := suite.db.GetExpense(suite.ctx, id, "alice")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "999999999999.99", e.Amount.StringFixed(2))
}

// UserTestSuite covers the credential rows
type UserTestSuite struct {
	suite.Suite
	db  *DB
	ctx context.Context
}

func (suite *UserTestSuite) SetupTest() {
	db, err := NewDB(":memory:")
	require.NoError(suite.T(), err, "failed to create test database")
	suite.db = db
	suite.ctx = context.Background()
}

func (suite *UserTestSuite) TearDownTest() {
	if suite.db != nil {
		suite.db.Close()
	}
}

func (suite *UserTestSuite) TestCreateAndLookupUser() {
	u, err := suite.db.CreateUser(suite.ctx, "alice", "$2a$10$hash")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "alice", u.Username)
	assert.NotZero(suite.T(), u.ID)

	byName, err := suite.db.GetUserByUsername(suite.ctx, "alice")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), u.ID, byName.ID)
	assert.Equal(suite.T(), "$2a$10$hash", byName.PasswordHash)

	count, err := suite.db.UserCount(suite.ctx)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), 1, count)
}

func (suite *UserTestSuite) TestDuplicateUsername() {
	_, err := suite.db.CreateUser(suite.ctx, "alice", "first")
	require.NoError(suite.T(), err)

	_, err = suite.db.CreateUser(suite.ctx, "alice", "second")
	assert.ErrorIs(suite.T(), err, ErrDuplicate)

	u, err := suite.db.GetUserByUsername(suite.ctx, "alice")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "first", u.PasswordHash, "stored hash must not change")
}

func (suite *UserTestSuite) TestOnlyUniqueConstraintsAreDuplicates() {
	_, err := suite.db.CreateUser(suite.ctx, "alice", "h1")
	require.NoError(suite.T(), err)
	_, err = suite.db.conn.ExecContext(suite.ctx, "INSERT INTO users (username, password_hash) VALUES ('alice', 'h2')")
	assert.True(suite.T(), isUniqueViolation(err), "unique username")

	_, err = suite.db.conn.ExecContext(suite.ctx, "INSERT INTO users (username, password_hash) VALUES ('bob', NULL)")
	require.Error(suite.T(), err)
	assert.False(suite.T(), isUniqueViolation(err), "not null")

	err = suite.db.CreateSession(suite.ctx, "tok", 999, time.Now().Add(time.Hour))
	require.Error(suite.T(), err)
	assert.NotErrorIs(suite.T(), err, ErrDuplicate, "foreign key")
	var se *StoreError
	assert.ErrorAs(suite.T(), err, &se)
}

func (suite *UserTestSuite) TestUsernameIsCaseSensitive() {
	_, err := suite.db.CreateUser(suite.ctx, "alice", "h1")
	require.NoError(suite.T(), err)
	_, err = suite.db.CreateUser(suite.ctx, "Alice", "h2")
	require.NoError(suite.T(), err)

	_, err = suite.db.GetUserByUsername(suite.ctx, "ALICE")
	assert.ErrorIs(suite.T(), err, ErrNotFound)
}

// SessionTestSuite provides a test suite for session operations
type SessionTestSuite struct {
	suite.Suite
	db   *DB
	ctx  context.Context
	user *models.User
}

// SetupTest runs before each test
func (suite *SessionTestSuite) SetupTest() {
	db, err := NewDB(":memory:")
	require.NoError(suite.T(), err, "failed to create test database")
	suite.db = db
	suite.ctx = context.Background()

	user, err := suite.db.CreateUser(suite.ctx, "testuser", "$2a$10$hash")
	require.NoError(suite.T(), err, "failed to create test user")
	suite.user = user
}

// TearDownTest runs after each test
func (suite *SessionTestSuite) TearDownTest() {
	if suite.db != nil {
		suite.db.Close()
	}
}

func (suite *SessionTestSuite) TestCreateAndValidateSession() {
	expiresAt := time.Now().Add(30 * 24 * time.Hour)
	err := suite.db.CreateSession(suite.ctx, "token-1", suite.user.ID, expiresAt)
	require.NoError(suite.T(), err)

	sessionUser, err := suite.db.ValidateSession(suite.ctx, "token-1")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "testuser", sessionUser.Username)
}

func (suite *SessionTestSuite) TestValidateSessionWithInfo() {
	expiresAt := time.Now().Add(30 * 24 * time.Hour)
	err := suite.db.CreateSession(suite.ctx, "token-2", suite.user.ID, expiresAt)
	require.NoError(suite.T(), err)

	info, err := suite.db.ValidateSessionWithInfo(suite.ctx, "token-2")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "testuser", info.User.Username)

	timeSinceActivity := time.Since(info.LastActivity)
	assert.Less(suite.T(), timeSinceActivity, 5*time.Second, "LastActivity should be recent")
}

func (suite *SessionTestSuite) TestExpiredSession() {
	err := suite.db.CreateSession(suite.ctx, "stale", suite.user.ID, time.Now().Add(-time.Minute))
	require.NoError(suite.T(), err)

	_, err = suite.db.ValidateSession(suite.ctx, "stale")
	assert.ErrorIs(suite.T(), err, ErrNotFound)

	n, err := suite.db.CleanExpiredSessions(suite.ctx)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), int64(1), n)
}

func (suite *SessionTestSuite) TestRenewSession() {
	originalExpiry := time.Now().Add(30 * 24 * time.Hour)
	err := suite.db.CreateSession(suite.ctx, "token-3", suite.user.ID, originalExpiry)
	require.NoError(suite.T(), err)

	// Wait a moment to ensure timestamps differ
	time.Sleep(10 * time.Millisecond)

	originalInfo, err := suite.db.ValidateSessionWithInfo(suite.ctx, "token-3")
	require.NoError(suite.T(), err)

	newExpiry := time.Now().Add(60 * 24 * time.Hour)
	err = suite.db.RenewSession(suite.ctx, "token-3", newExpiry)
	require.NoError(suite.T(), err)

	updatedInfo, err := suite.db.ValidateSessionWithInfo(suite.ctx, "token-3")
	require.NoError(suite.T(), err)

	assert.True(suite.T(), updatedInfo.LastActivity.After(originalInfo.LastActivity),
		"LastActivity should be updated after renewal")
	assert.True(suite.T(), updatedInfo.ExpiresAt.After(originalInfo.ExpiresAt),
		"ExpiresAt should be extended after renewal")
}

func (suite *SessionTestSuite) TestDeleteSession() {
	expiresAt := time.Now().Add(30 * 24 * time.Hour)
	err := suite.db.CreateSession(suite.ctx, "token-4", suite.user.ID, expiresAt)
	require.NoError(suite.T(), err)

	_, err = suite.db.ValidateSession(suite.ctx, "token-4")
	require.NoError(suite.T(), err, "session should exist before deletion")

	err = suite.db.DeleteSession(suite.ctx, "token-4")
	require.NoError(suite.T(), err)

	_, err = suite.db.ValidateSession(suite.ctx, "token-4")
	assert.Error(suite.T(), err, "expected error after deleting session")
}

func TestNewDBPersistsToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	ctx := context.Background()

	db, err := NewDB(path)
	require.NoError(t, err)
	_, err = db.CreateUser(ctx, "alice", "h")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	// Reopening runs migrations again without error.
	db, err = NewDB(path)
	require.NoError(t, err)
	defer db.Close()

	count, err := db.UserCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestNewDBInvalidPath(t *testing.T) {
	_, err := NewDB(t.TempDir())
	assert.Error(t, err)
}

func TestStoreErrorUnwrap(t *testing.T) {
	cause := errors.New("disk I/O error")
	err := storeErr("list expenses", cause)

	var se *StoreError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "list expenses", se.Op)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "disk I/O error")
}

// Test suite runners
func TestDBSuite(t *testing.T) {
	suite.Run(t, new(DBTestSuite))
}

func TestUserSuite(t *testing.T) {
	suite.Run(t, new(UserTestSuite))
}

func TestSessionSuite(t *testing.T) {
	suite.Run(t, new(SessionTestSuite))
}
