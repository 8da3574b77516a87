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

func TestChangeRequestCreateForcesPending(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewChangeRequestRepository(db)

	mock.ExpectExec("INSERT INTO schedule_change_requests").WillReturnResult(sqlmock.NewResult(1, 1))

	req := &models.ScheduleChangeRequest{ClassScheduleID: "s1", LecturerID: "l1", RequestType: models.ChangeCancel, Reason: "sick", Status: models.ChangeRequestApproved}
	require.NoError(t, repo.Create(context.Background(), req))
	assert.Equal(t, models.ChangeRequestPending, req.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestChangeRequestReviewApprovesAndApplies(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewChangeRequestRepository(db)

	at := time.Now().UTC()
	room := "room-2"
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("WHERE id = $1 AND status = 'PENDING'")).
		WithArgs("cr1", string(models.ChangeRequestApproved), "admin-1", nil, at, at).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE class_schedules SET").
		WithArgs("s1", nil, nil, room, nil, nil, at).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.Review(context.Background(),
		ReviewParams{ID: "cr1", Status: models.ChangeRequestApproved, ReviewerID: "admin-1", ReviewedAt: at},
		&ScheduleChange{ScheduleID: "s1", RoomID: &room})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestChangeRequestReviewRejectLeavesApprovedAtNull(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewChangeRequestRepository(db)

	at := time.Now().UTC()
	note := "no room available"
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("WHERE id = $1 AND status = 'PENDING'")).
		WithArgs("cr1", string(models.ChangeRequestRejected), "admin-1", note, at, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.Review(context.Background(), ReviewParams{ID: "cr1", Status: models.ChangeRequestRejected, ReviewerID: "admin-1", Note: &note, ReviewedAt: at}, nil)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestChangeRequestReviewNotPending(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewChangeRequestRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE schedule_change_requests").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.Review(context.Background(), ReviewParams{ID: "cr1", Status: models.ChangeRequestApproved, ReviewerID: "a", ReviewedAt: time.Now()}, &ScheduleChange{ScheduleID: "s1"})
	assert.True(t, errors.Is(err, sql.ErrNoRows))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestChangeRequestCancelOnlyPendingOwned(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewChangeRequestRepository(db)

	at := time.Now()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE schedule_change_requests SET status = 'CANCELED', updated_at = $3 WHERE id = $1 AND lecturer_id = $2 AND status = 'PENDING'")).
		WithArgs("cr1", "l1", at).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Cancel(context.Background(), "cr1", "l1", at)
	assert.True(t, errors.Is(err, sql.ErrNoRows))
}

func TestChangeRequestListFilters(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewChangeRequestRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM schedule_change_requests WHERE status IN ($1) AND lecturer_id = $2 ORDER BY created_at DESC LIMIT 20 OFFSET 0")).
		WithArgs(string(models.ChangeRequestPending), "l1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "status"}).AddRow("cr1", "PENDING"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM schedule_change_requests WHERE status IN ($1) AND lecturer_id = $2")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	items, total, err := repo.List(context.Background(), models.ChangeRequestFilter{Status: []models.ChangeRequestStatus{models.ChangeRequestPending}, LecturerID: "l1"})
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestChangeRequestExpireStale(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewChangeRequestRepository(db)

	today := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec("SET status = 'EXPIRED'").WithArgs(today, sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := repo.ExpireStale(context.Background(), today)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}
