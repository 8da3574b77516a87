package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/dat-nglt/cusc-schedule/internal/models"
)

const classScheduleColumns = `id, class_id, subject_id, lecturer_id, room_id, time_slot_id, schedule_date, status, note, created_at, updated_at`

const qualifiedScheduleColumns = `s.id, s.class_id, s.subject_id, s.lecturer_id, s.room_id, s.time_slot_id, s.schedule_date, s.status, s.note, s.created_at, s.updated_at`

// liveScheduleSource hides schedules whose class or subject was soft-deleted.
const liveScheduleSource = ` FROM class_schedules s
	JOIN classes c ON c.id = s.class_id AND c.deleted_at IS NULL
	JOIN subjects sub ON sub.id = s.subject_id AND sub.deleted_at IS NULL`

// ClassScheduleRepository provides persistence for class schedules.
type ClassScheduleRepository struct {
	db *sqlx.DB
}

// NewClassScheduleRepository creates a new class schedule repository.
func NewClassScheduleRepository(db *sqlx.DB) *ClassScheduleRepository {
	return &ClassScheduleRepository{db: db}
}

func scheduleConditions(filter models.ClassScheduleFilter, prefix string) (string, []interface{}) {
	var conditions []string
	var args []interface{}
	add := func(column string, value interface{}) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf("%s%s = $%d", prefix, column, len(args)))
	}
	if filter.ClassID != "" {
		add("class_id", filter.ClassID)
	}
	if filter.SubjectID != "" {
		add("subject_id", filter.SubjectID)
	}
	if filter.LecturerID != "" {
		add("lecturer_id", filter.LecturerID)
	}
	if filter.RoomID != "" {
		add("room_id", filter.RoomID)
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		conditions = append(conditions, fmt.Sprintf("%sschedule_date >= $%d", prefix, len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		conditions = append(conditions, fmt.Sprintf("%sschedule_date <= $%d", prefix, len(args)))
	}
	if len(conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

// List returns schedules with optional filtering and pagination, ordered by date.
func (r *ClassScheduleRepository) List(ctx context.Context, filter models.ClassScheduleFilter) ([]models.ClassSchedule, int, error) {
	where, args := scheduleConditions(filter, "s.")
	page, size := models.NormalizePage(filter.Page, filter.PageSize)

	query := fmt.Sprintf("SELECT %s%s%s ORDER BY s.schedule_date ASC, s.created_at ASC LIMIT %d OFFSET %d", qualifiedScheduleColumns, liveScheduleSource, where, size, (page-1)*size)
	var schedules []models.ClassSchedule
	if err := r.db.SelectContext(ctx, &schedules, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list class schedules: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*)"+liveScheduleSource+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count class schedules: %w", err)
	}
	return schedules, total, nil
}

// FindByID loads a schedule by id.
func (r *ClassScheduleRepository) FindByID(ctx context.Context, id string) (*models.ClassSchedule, error) {
	query := fmt.Sprintf("SELECT %s FROM class_schedules WHERE id = $1", classScheduleColumns)
	var sched models.ClassSchedule
	if err := r.db.GetContext(ctx, &sched, query, id); err != nil {
		return nil, err
	}
	return &sched, nil
}

// Create stores a new schedule record.
func (r *ClassScheduleRepository) Create(ctx context.Context, sched *models.ClassSchedule) error {
	return insertClassSchedule(ctx, r.db, sched)
}

// BulkCreate inserts many schedules within a transaction; one failure stores none.
func (r *ClassScheduleRepository) BulkCreate(ctx context.Context, schedules []models.ClassSchedule) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin bulk create class schedules: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for i := range schedules {
		if err = insertClassSchedule(ctx, tx, &schedules[i]); err != nil {
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit bulk create class schedules: %w", err)
	}
	return nil
}

func insertClassSchedule(ctx context.Context, exec sqlx.ExtContext, sched *models.ClassSchedule) error {
	if sched.ID == "" {
		sched.ID = uuid.NewString()
	}
	if sched.Status == "" {
		sched.Status = models.ClassScheduleScheduled
	}
	stamp(&sched.CreatedAt, &sched.UpdatedAt)
	const query = `INSERT INTO class_schedules (id, class_id, subject_id, lecturer_id, room_id, time_slot_id, schedule_date, status, note, created_at, updated_at)
	VALUES (:id, :class_id, :subject_id, :lecturer_id, :room_id, :time_slot_id, :schedule_date, :status, :note, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, exec, query, sched); err != nil {
		return fmt.Errorf("create class schedule: %w", err)
	}
	return nil
}

// Update overwrites a schedule.
func (r *ClassScheduleRepository) Update(ctx context.Context, sched *models.ClassSchedule) error {
	stamp(nil, &sched.UpdatedAt)
	const query = `UPDATE class_schedules SET class_id = :class_id, subject_id = :subject_id, lecturer_id = :lecturer_id, room_id = :room_id,
	time_slot_id = :time_slot_id, schedule_date = :schedule_date, status = :status, note = :note, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, sched)
	if err != nil {
		return fmt.Errorf("update class schedule: %w", err)
	}
	return expectRows(res, "update class schedule")
}

// Delete removes a schedule; its change requests cascade.
func (r *ClassScheduleRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM class_schedules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete class schedule: %w", err)
	}
	return expectRows(res, "delete class schedule")
}

// ScheduleReferences reports which rows a schedule points at are live.
// Lecturer is true when no lecturer was given.
type ScheduleReferences struct {
	Class    bool `db:"class_ok"`
	Subject  bool `db:"subject_ok"`
	Lecturer bool `db:"lecturer_ok"`
}

// LiveReferences checks that the class, subject and optional lecturer exist
// and are not soft-deleted.
func (r *ClassScheduleRepository) LiveReferences(ctx context.Context, classID, subjectID string, lecturerID *string) (ScheduleReferences, error) {
	const query = `SELECT
	EXISTS(SELECT 1 FROM classes WHERE id = $1 AND deleted_at IS NULL) AS class_ok,
	EXISTS(SELECT 1 FROM subjects WHERE id = $2 AND deleted_at IS NULL) AS subject_ok,
	($3::uuid IS NULL OR EXISTS(SELECT 1 FROM lecturers WHERE account_id = $3 AND deleted_at IS NULL)) AS lecturer_ok`
	var refs ScheduleReferences
	if err := r.db.GetContext(ctx, &refs, query, classID, subjectID, lecturerID); err != nil {
		return ScheduleReferences{}, fmt.Errorf("check class schedule references: %w", err)
	}
	return refs, nil
}

// SlotQuery identifies a lecturer's slot on a date. ExcludeID skips the
// schedule being edited.
type SlotQuery struct {
	LecturerID string
	TimeSlotID string
	Date       time.Time
	ExcludeID  string
}

// LecturerBusy reports whether the lecturer declared the slot unavailable,
// either weekly on that weekday or on that exact date.
func (r *ClassScheduleRepository) LecturerBusy(ctx context.Context, q SlotQuery) (bool, error) {
	const query = `SELECT EXISTS(
	SELECT 1 FROM busy_slots WHERE lecturer_id = $1 AND time_slot_id = $2 AND day_of_week = $3
	UNION ALL
	SELECT 1 FROM semester_busy_slots WHERE lecturer_id = $1 AND time_slot_id = $2 AND busy_date = $4)`
	var busy bool
	if err := r.db.GetContext(ctx, &busy, query, q.LecturerID, q.TimeSlotID, models.ISOWeekday(q.Date), q.Date); err != nil {
		return false, fmt.Errorf("check lecturer busy slots: %w", err)
	}
	return busy, nil
}

// LecturerDoubleBooked reports whether the lecturer already teaches a
// scheduled class in the same slot on the same date.
func (r *ClassScheduleRepository) LecturerDoubleBooked(ctx context.Context, q SlotQuery) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM class_schedules
	WHERE lecturer_id = $1 AND time_slot_id = $2 AND schedule_date = $3 AND status = 'scheduled' AND id <> $4)`
	exclude := q.ExcludeID
	if exclude == "" {
		exclude = "00000000-0000-0000-0000-000000000000"
	}
	var booked bool
	if err := r.db.GetContext(ctx, &booked, query, q.LecturerID, q.TimeSlotID, q.Date, exclude); err != nil {
		return false, fmt.Errorf("check lecturer double booking: %w", err)
	}
	return booked, nil
}

// Timetable returns schedules joined with display names, ordered for printing.
func (r *ClassScheduleRepository) Timetable(ctx context.Context, filter models.ClassScheduleFilter) ([]models.TimetableEntry, error) {
	where, args := scheduleConditions(filter, "s.")
	query := `SELECT s.schedule_date, ts.code AS slot_code, ts.start_time::text AS start_time, ts.end_time::text AS end_time,
	c.code AS class_code, sub.code AS subject_code, sub.name AS subject_name, a.name AS lecturer_name, rm.code AS room_code, s.status
	FROM class_schedules s
	JOIN classes c ON c.id = s.class_id AND c.deleted_at IS NULL
	JOIN subjects sub ON sub.id = s.subject_id AND sub.deleted_at IS NULL
	LEFT JOIN accounts a ON a.id = s.lecturer_id
	LEFT JOIN rooms rm ON rm.id = s.room_id
	LEFT JOIN time_slots ts ON ts.id = s.time_slot_id` + where + `
	ORDER BY s.schedule_date ASC, ts.start_time ASC NULLS LAST`
	var entries []models.TimetableEntry
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, fmt.Errorf("load timetable: %w", err)
	}
	return entries, nil
}
