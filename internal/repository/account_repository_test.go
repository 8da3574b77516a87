package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dat-nglt/cusc-schedule/internal/models"
	"github.com/dat-nglt/cusc-schedule/pkg/database"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	return sqlxdb, mock, func() {
		db.Close()
	}
}

var accountRowColumns = []string{"id", "email", "password_hash", "name", "role", "google_id", "status", "last_login", "created_at", "updated_at"}

func TestAccountCreateWritesAccountAndProfile(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAccountRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO accounts").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO students").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	hash := "hash"
	account := &models.Account{Email: "s@example.com", PasswordHash: &hash, Name: "Student", Role: models.RoleStudent}
	profile := &models.StudentProfile{StudentCode: "S001"}
	require.NoError(t, repo.Create(context.Background(), account, profile))

	assert.NotEmpty(t, account.ID)
	assert.Equal(t, account.ID, profile.AccountID)
	assert.Equal(t, models.AccountStatusActive, account.Status)
	assert.Same(t, profile, account.Profile.(*models.StudentProfile))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountCreateDuplicateEmailRollsBack(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAccountRepository(db)

	dup := &pq.Error{Code: "23505", Constraint: database.AccountsEmailConstraint}
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO accounts").WillReturnError(dup)
	mock.ExpectRollback()

	err := repo.Create(context.Background(), &models.Account{Email: "s@example.com", Name: "S", Role: models.RoleStudent}, &models.StudentProfile{StudentCode: "S001"})
	require.Error(t, err)
	assert.True(t, database.IsUniqueViolation(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountCreateProfileFailureRollsBack(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAccountRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO accounts").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO lecturers").WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectRollback()

	err := repo.Create(context.Background(), &models.Account{Email: "l@example.com", Name: "L", Role: models.RoleLecturer}, &models.LecturerProfile{LecturerCode: "L1"})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountFindByEmailLowercases(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAccountRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(accountRowColumns).
		AddRow("a1", "user@example.com", "hash", "User", string(models.RoleAdmin), nil, "active", now, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT " + accountColumns + " FROM accounts WHERE email = $1 LIMIT 1")).
		WithArgs("user@example.com").
		WillReturnRows(rows)

	account, err := repo.FindByEmail(context.Background(), "User@Example.com")
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", account.Email)
	assert.Equal(t, models.RoleAdmin, account.Role)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountFindByIDNotFound(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAccountRepository(db)

	mock.ExpectQuery("FROM accounts WHERE id = \\$1").WithArgs("missing").WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "missing")
	assert.True(t, errors.Is(err, sql.ErrNoRows))
}

func TestAccountLinkGoogleIDAlreadyLinked(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAccountRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE accounts SET google_id = $2, updated_at = $3 WHERE id = $1 AND google_id IS NULL")).
		WithArgs("a1", "g-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.LinkGoogleID(context.Background(), "a1", "g-1")
	assert.True(t, errors.Is(err, sql.ErrNoRows))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountSoftDeleteProfileDeactivates(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAccountRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE lecturers SET deleted_at = $2, updated_at = $2 WHERE account_id = $1 AND deleted_at IS NULL")).
		WithArgs("l1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE accounts SET status = $2")).
		WithArgs("l1", models.AccountStatusInactive, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.SoftDeleteProfile(context.Background(), "l1", models.RoleLecturer))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountSoftDeleteProfileMissing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAccountRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE students SET deleted_at").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.SoftDeleteProfile(context.Background(), "s1", models.RoleStudent)
	assert.True(t, errors.Is(err, sql.ErrNoRows))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountListWithFilters(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAccountRepository(db)

	role := models.RoleStudent
	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT "+accountColumns+" FROM accounts WHERE 1=1 AND role = $1 AND (LOWER(email) LIKE $2 OR LOWER(name) LIKE $2) ORDER BY created_at DESC LIMIT 20 OFFSET 0")).
		WithArgs(string(role), "%ann%").
		WillReturnRows(sqlmock.NewRows(accountRowColumns).AddRow("a1", "ann@example.com", nil, "Ann", "student", nil, "active", nil, now, now))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM accounts WHERE 1=1 AND role = $1")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	accounts, total, err := repo.List(context.Background(), models.AccountFilter{Role: &role, Search: "Ann"})
	require.NoError(t, err)
	assert.Len(t, accounts, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountAttachProfiles(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAccountRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM admins WHERE account_id = ANY($1) AND deleted_at IS NULL")).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"account_id", "admin_code", "department", "created_at", "updated_at", "deleted_at"}).
			AddRow("a1", "AD1", nil, now, now, nil))

	accounts := []models.Account{{ID: "a1", Role: models.RoleAdmin}}
	require.NoError(t, repo.AttachProfiles(context.Background(), accounts))
	profile, ok := accounts[0].Profile.(*models.AdminProfile)
	require.True(t, ok)
	assert.Equal(t, "AD1", profile.AdminCode)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountDeleteMissing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAccountRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM accounts WHERE id = $1")).WithArgs("nope").WillReturnResult(sqlmock.NewResult(0, 0))
	assert.True(t, errors.Is(repo.Delete(context.Background(), "nope"), sql.ErrNoRows))
}
