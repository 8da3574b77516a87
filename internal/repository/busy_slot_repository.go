package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/dat-nglt/cusc-schedule/internal/models"
)

// BusySlotRepository stores lecturer unavailability, both weekly and per date.
type BusySlotRepository struct {
	db *sqlx.DB
}

// NewBusySlotRepository constructs the repository.
func NewBusySlotRepository(db *sqlx.DB) *BusySlotRepository {
	return &BusySlotRepository{db: db}
}

// ListWeekly returns a lecturer's weekly busy slots.
func (r *BusySlotRepository) ListWeekly(ctx context.Context, lecturerID string) ([]models.BusySlot, error) {
	const query = `SELECT id, lecturer_id, time_slot_id, day_of_week, reason, created_at, updated_at FROM busy_slots WHERE lecturer_id = $1 ORDER BY day_of_week ASC, created_at ASC`
	var items []models.BusySlot
	if err := r.db.SelectContext(ctx, &items, query, lecturerID); err != nil {
		return nil, fmt.Errorf("list busy slots: %w", err)
	}
	return items, nil
}

// CreateWeekly inserts a weekly busy slot.
func (r *BusySlotRepository) CreateWeekly(ctx context.Context, slot *models.BusySlot) error {
	if slot.ID == "" {
		slot.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	slot.CreatedAt = now
	slot.UpdatedAt = now
	const query = `INSERT INTO busy_slots (id, lecturer_id, time_slot_id, day_of_week, reason, created_at, updated_at) VALUES (:id, :lecturer_id, :time_slot_id, :day_of_week, :reason, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, slot); err != nil {
		return fmt.Errorf("create busy slot: %w", err)
	}
	return nil
}

// DeleteWeekly removes a weekly busy slot owned by lecturerID.
func (r *BusySlotRepository) DeleteWeekly(ctx context.Context, id, lecturerID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM busy_slots WHERE id = $1 AND lecturer_id = $2`, id, lecturerID)
	if err != nil {
		return fmt.Errorf("delete busy slot: %w", err)
	}
	return expectRows(res, "delete busy slot")
}

// ListDated returns a lecturer's dated busy slots, optionally within a semester.
func (r *BusySlotRepository) ListDated(ctx context.Context, lecturerID, semesterID string) ([]models.SemesterBusySlot, error) {
	query := `SELECT id, lecturer_id, semester_id, time_slot_id, busy_date, reason, created_at, updated_at FROM semester_busy_slots WHERE lecturer_id = $1`
	args := []interface{}{lecturerID}
	if semesterID != "" {
		query += ` AND semester_id = $2`
		args = append(args, semesterID)
	}
	query += ` ORDER BY busy_date ASC`
	var items []models.SemesterBusySlot
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, fmt.Errorf("list semester busy slots: %w", err)
	}
	return items, nil
}

// CreateDated inserts a busy slot on one date.
func (r *BusySlotRepository) CreateDated(ctx context.Context, slot *models.SemesterBusySlot) error {
	if slot.ID == "" {
		slot.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	slot.CreatedAt = now
	slot.UpdatedAt = now
	const query = `INSERT INTO semester_busy_slots (id, lecturer_id, semester_id, time_slot_id, busy_date, reason, created_at, updated_at) VALUES (:id, :lecturer_id, :semester_id, :time_slot_id, :busy_date, :reason, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, slot); err != nil {
		return fmt.Errorf("create semester busy slot: %w", err)
	}
	return nil
}

// DeleteDated removes a dated busy slot owned by lecturerID.
func (r *BusySlotRepository) DeleteDated(ctx context.Context, id, lecturerID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM semester_busy_slots WHERE id = $1 AND lecturer_id = $2`, id, lecturerID)
	if err != nil {
		return fmt.Errorf("delete semester busy slot: %w", err)
	}
	return expectRows(res, "delete semester busy slot")
}
