package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dat-nglt/cusc-schedule/internal/models"
)

func TestCreateWithFanOutToStudents(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewNotificationRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO notifications").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("FROM accounts a WHERE a.role = ANY($3)")).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	n := &models.Notification{Title: "Exam", Content: "Room changed", Type: models.NotificationSchedule, Recipients: models.RecipientsStudents}
	count, err := repo.CreateWithFanOut(context.Background(), n)
	require.NoError(t, err)
	assert.EqualValues(t, 3, count)
	assert.NotEmpty(t, n.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateWithFanOutToAllHasNoRoleFilter(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewNotificationRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO notifications").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("SELECT gen_random_uuid(), a.id, $1, FALSE, $2, $2 FROM accounts a")+"$").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 5))
	mock.ExpectCommit()

	count, err := repo.CreateWithFanOut(context.Background(), &models.Notification{Title: "t", Content: "c", Type: models.NotificationInfo, Recipients: models.RecipientsAll})
	require.NoError(t, err)
	assert.EqualValues(t, 5, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateWithFanOutRollsBackOnFailure(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewNotificationRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO notifications").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO user_notifications").WillReturnError(errors.New("boom"))
	mock.ExpectRollback()

	_, err := repo.CreateWithFanOut(context.Background(), &models.Notification{Title: "t", Content: "c", Type: models.NotificationInfo, Recipients: models.RecipientsAll})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkReadTransitions(t *testing.T) {
	const update = "UPDATE user_notifications SET is_read = TRUE, read_at = $3, updated_at = $3 WHERE account_id = $1 AND notification_id = $2 AND is_read = FALSE"
	const check = "SELECT EXISTS(SELECT 1 FROM user_notifications WHERE account_id = $1 AND notification_id = $2)"
	at := time.Now()

	t.Run("first read flips the row", func(t *testing.T) {
		db, mock, cleanup := newMock(t)
		defer cleanup()
		mock.ExpectExec(regexp.QuoteMeta(update)).WithArgs("a1", "n1", at).WillReturnResult(sqlmock.NewResult(0, 1))

		changed, err := NewNotificationRepository(db).MarkRead(context.Background(), "a1", "n1", at)
		require.NoError(t, err)
		assert.True(t, changed)
	})

	t.Run("second read is a no-op", func(t *testing.T) {
		db, mock, cleanup := newMock(t)
		defer cleanup()
		mock.ExpectExec(regexp.QuoteMeta(update)).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(regexp.QuoteMeta(check)).WithArgs("a1", "n1").WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

		changed, err := NewNotificationRepository(db).MarkRead(context.Background(), "a1", "n1", at)
		require.NoError(t, err)
		assert.False(t, changed)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("never delivered", func(t *testing.T) {
		db, mock, cleanup := newMock(t)
		defer cleanup()
		mock.ExpectExec(regexp.QuoteMeta(update)).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(regexp.QuoteMeta(check)).WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

		_, err := NewNotificationRepository(db).MarkRead(context.Background(), "a1", "n1", at)
		assert.True(t, errors.Is(err, sql.ErrNoRows))
	})
}

func TestListForAccountExcludesExpired(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewNotificationRepository(db)

	now := time.Now()
	cols := []string{"id", "title", "content", "type", "recipients", "created_by", "expires_at", "created_at", "updated_at", "is_read", "read_at"}
	mock.ExpectQuery(regexp.QuoteMeta("WHERE un.account_id = $1 AND (n.expires_at IS NULL OR n.expires_at > $2) AND un.is_read = FALSE ORDER BY n.created_at DESC LIMIT 20 OFFSET 0")).
		WithArgs("a1", now).
		WillReturnRows(sqlmock.NewRows(cols).AddRow("n1", "t", "c", "info", "all", nil, nil, now, now, false, nil))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM user_notifications un")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	items, total, err := repo.ListForAccount(context.Background(), "a1", models.NotificationFilter{UnreadOnly: true}, now)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 1, total)
	assert.False(t, items[0].IsRead)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecipientAddresses(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewNotificationRepository(db)

	mock.ExpectQuery("SELECT a.name, a.email FROM user_notifications").
		WithArgs("n1", string(models.AccountStatusActive)).
		WillReturnRows(sqlmock.NewRows([]string{"name", "email"}).AddRow("A", "a@example.com").AddRow("B", "b@example.com"))

	out, err := repo.RecipientAddresses(context.Background(), "n1")
	require.NoError(t, err)
	assert.Len(t, out, 2)
}
