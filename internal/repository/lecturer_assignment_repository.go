package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/dat-nglt/cusc-schedule/internal/models"
)

// LecturerAssignmentRepository handles the lecturer-subject link table.
type LecturerAssignmentRepository struct {
	db *sqlx.DB
}

// NewLecturerAssignmentRepository constructs the repository.
func NewLecturerAssignmentRepository(db *sqlx.DB) *LecturerAssignmentRepository {
	return &LecturerAssignmentRepository{db: db}
}

// ListByLecturer returns the subjects a lecturer is assigned to.
func (r *LecturerAssignmentRepository) ListByLecturer(ctx context.Context, lecturerID string) ([]models.LecturerAssignment, error) {
	const query = `SELECT id, lecturer_id, subject_id, created_at, updated_at FROM lecturer_assignments WHERE lecturer_id = $1 ORDER BY created_at ASC`
	var items []models.LecturerAssignment
	if err := r.db.SelectContext(ctx, &items, query, lecturerID); err != nil {
		return nil, fmt.Errorf("list lecturer assignments: %w", err)
	}
	return items, nil
}

// Exists reports whether the lecturer is assigned to the subject.
func (r *LecturerAssignmentRepository) Exists(ctx context.Context, lecturerID, subjectID string) (bool, error) {
	var exists bool
	const query = `SELECT EXISTS(SELECT 1 FROM lecturer_assignments WHERE lecturer_id = $1 AND subject_id = $2)`
	if err := r.db.GetContext(ctx, &exists, query, lecturerID, subjectID); err != nil {
		return false, fmt.Errorf("check lecturer assignment: %w", err)
	}
	return exists, nil
}

// Create links a lecturer to a subject. A duplicate pair violates
// uq_lecturer_assignments_lecturer_id_subject_id.
func (r *LecturerAssignmentRepository) Create(ctx context.Context, a *models.LecturerAssignment) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now
	const query = `INSERT INTO lecturer_assignments (id, lecturer_id, subject_id, created_at, updated_at) VALUES (:id, :lecturer_id, :subject_id, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, a); err != nil {
		return fmt.Errorf("create lecturer assignment: %w", err)
	}
	return nil
}

// Delete unassigns a lecturer from a subject.
func (r *LecturerAssignmentRepository) Delete(ctx context.Context, lecturerID, subjectID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM lecturer_assignments WHERE lecturer_id = $1 AND subject_id = $2`, lecturerID, subjectID)
	if err != nil {
		return fmt.Errorf("delete lecturer assignment: %w", err)
	}
	return expectRows(res, "delete lecturer assignment")
}
