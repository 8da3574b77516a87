package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/dat-nglt/cusc-schedule/internal/models"
)

const changeRequestColumns = `id, class_schedule_id, lecturer_id, request_type, new_date, new_time_slot_id, new_room_id, substitute_lecturer_id,
	reason, status, reviewed_by, review_note, reviewed_at, approved_at, created_at, updated_at`

// ChangeRequestRepository persists schedule change requests.
type ChangeRequestRepository struct {
	db *sqlx.DB
}

// NewChangeRequestRepository constructs the repository.
func NewChangeRequestRepository(db *sqlx.DB) *ChangeRequestRepository {
	return &ChangeRequestRepository{db: db}
}

// Create inserts a new PENDING request.
func (r *ChangeRequestRepository) Create(ctx context.Context, req *models.ScheduleChangeRequest) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	req.Status = models.ChangeRequestPending
	req.CreatedAt = now
	req.UpdatedAt = now
	const query = `INSERT INTO schedule_change_requests
	(id, class_schedule_id, lecturer_id, request_type, new_date, new_time_slot_id, new_room_id, substitute_lecturer_id, reason, status, created_at, updated_at)
	VALUES (:id, :class_schedule_id, :lecturer_id, :request_type, :new_date, :new_time_slot_id, :new_room_id, :substitute_lecturer_id, :reason, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, req); err != nil {
		return fmt.Errorf("create change request: %w", err)
	}
	return nil
}

// GetByID fetches a change request by identifier.
func (r *ChangeRequestRepository) GetByID(ctx context.Context, id string) (*models.ScheduleChangeRequest, error) {
	query := fmt.Sprintf("SELECT %s FROM schedule_change_requests WHERE id = $1", changeRequestColumns)
	var req models.ScheduleChangeRequest
	if err := r.db.GetContext(ctx, &req, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get change request: %w", err)
	}
	return &req, nil
}

// List returns requests matching the filter, newest first.
func (r *ChangeRequestRepository) List(ctx context.Context, filter models.ChangeRequestFilter) ([]models.ScheduleChangeRequest, int, error) {
	var conditions []string
	var args []interface{}
	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.LecturerID != "" {
		args = append(args, filter.LecturerID)
		conditions = append(conditions, fmt.Sprintf("lecturer_id = $%d", len(args)))
	}
	if filter.ClassScheduleID != "" {
		args = append(args, filter.ClassScheduleID)
		conditions = append(conditions, fmt.Sprintf("class_schedule_id = $%d", len(args)))
	}
	base := " FROM schedule_change_requests"
	if len(conditions) > 0 {
		base += " WHERE " + strings.Join(conditions, " AND ")
	}
	page, size := models.NormalizePage(filter.Page, filter.PageSize)

	var items []models.ScheduleChangeRequest
	query := fmt.Sprintf("SELECT %s%s ORDER BY created_at DESC LIMIT %d OFFSET %d", changeRequestColumns, base, size, (page-1)*size)
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list change requests: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*)"+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count change requests: %w", err)
	}
	return items, total, nil
}

// ReviewParams groups the columns written by a review.
type ReviewParams struct {
	ID         string
	Status     models.ChangeRequestStatus
	ReviewerID string
	Note       *string
	ReviewedAt time.Time
}

// ScheduleChange lists the class schedule columns an approval overwrites.
// Nil fields keep their current value.
type ScheduleChange struct {
	ScheduleID   string
	ScheduleDate *time.Time
	TimeSlotID   *string
	RoomID       *string
	LecturerID   *string
	Status       *models.ClassScheduleStatus
}

// Review moves a PENDING request to the decided status and, when change is
// non-nil, applies it to the class schedule inside the same transaction. A
// request that is no longer PENDING yields sql.ErrNoRows.
func (r *ChangeRequestRepository) Review(ctx context.Context, params ReviewParams, change *ScheduleChange) (err error) {
	var approvedAt *time.Time
	if params.Status == models.ChangeRequestApproved {
		at := params.ReviewedAt
		approvedAt = &at
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin review change request: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const review = `UPDATE schedule_change_requests
	SET status = $2, reviewed_by = $3, review_note = $4, reviewed_at = $5, approved_at = $6, updated_at = $5
	WHERE id = $1 AND status = 'PENDING'`
	res, err := tx.ExecContext(ctx, review, params.ID, params.Status, params.ReviewerID, params.Note, params.ReviewedAt, approvedAt)
	if err != nil {
		return fmt.Errorf("review change request: %w", err)
	}
	if err = expectRows(res, "review change request"); err != nil {
		return err
	}

	if change != nil {
		const apply = `UPDATE class_schedules SET
	schedule_date = COALESCE($2, schedule_date),
	time_slot_id = COALESCE($3, time_slot_id),
	room_id = COALESCE($4, room_id),
	lecturer_id = COALESCE($5, lecturer_id),
	status = COALESCE($6, status),
	updated_at = $7
	WHERE id = $1`
		var status *string
		if change.Status != nil {
			s := string(*change.Status)
			status = &s
		}
		if _, err = tx.ExecContext(ctx, apply, change.ScheduleID, change.ScheduleDate, change.TimeSlotID, change.RoomID, change.LecturerID, status, params.ReviewedAt); err != nil {
			return fmt.Errorf("apply schedule change: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit review change request: %w", err)
	}
	return nil
}

// Cancel withdraws a PENDING request owned by lecturerID.
func (r *ChangeRequestRepository) Cancel(ctx context.Context, id, lecturerID string, at time.Time) error {
	const query = `UPDATE schedule_change_requests SET status = 'CANCELED', updated_at = $3 WHERE id = $1 AND lecturer_id = $2 AND status = 'PENDING'`
	res, err := r.db.ExecContext(ctx, query, id, lecturerID, at)
	if err != nil {
		return fmt.Errorf("cancel change request: %w", err)
	}
	return expectRows(res, "cancel change request")
}

// ExpireStale marks PENDING requests whose class date is before today as EXPIRED.
func (r *ChangeRequestRepository) ExpireStale(ctx context.Context, today time.Time) (int64, error) {
	const query = `UPDATE schedule_change_requests r SET status = 'EXPIRED', updated_at = $2
	FROM class_schedules s
	WHERE r.class_schedule_id = s.id AND r.status = 'PENDING' AND s.schedule_date < $1`
	res, err := r.db.ExecContext(ctx, query, today, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("expire change requests: %w", err)
	}
	return res.RowsAffected()
}
