package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/dat-nglt/cusc-schedule/internal/models"
)

var semesterTable = tableSpec{
	name:          "semesters",
	columns:       "id, program_id, code, name, start_date, end_date, created_at, updated_at, deleted_at",
	soft:          true,
	parentColumn:  "program_id",
	searchColumns: []string{"code", "name"},
	sorts:         map[string]bool{"code": true, "start_date": true, "created_at": true},
	defaultSort:   "start_date",
}

// SemesterRepository manages persistence for semesters.
type SemesterRepository struct {
	db *sqlx.DB
}

// NewSemesterRepository constructs the repository.
func NewSemesterRepository(db *sqlx.DB) *SemesterRepository {
	return &SemesterRepository{db: db}
}

// List returns live semesters, optionally of one program.
func (r *SemesterRepository) List(ctx context.Context, filter models.AcademicFilter) ([]models.Semester, int, error) {
	var items []models.Semester
	total, err := semesterTable.list(ctx, r.db, filter, &items)
	return items, total, err
}

// FindByID returns a live semester.
func (r *SemesterRepository) FindByID(ctx context.Context, id string) (*models.Semester, error) {
	var s models.Semester
	if err := semesterTable.get(ctx, r.db, id, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Create inserts a semester.
func (r *SemesterRepository) Create(ctx context.Context, s *models.Semester) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	stamp(&s.CreatedAt, &s.UpdatedAt)
	return semesterTable.exec(ctx, r.db, "create", `INSERT INTO semesters (id, program_id, code, name, start_date, end_date, created_at, updated_at) VALUES (:id, :program_id, :code, :name, :start_date, :end_date, :created_at, :updated_at)`, s)
}

// Update modifies a live semester.
func (r *SemesterRepository) Update(ctx context.Context, s *models.Semester) error {
	stamp(nil, &s.UpdatedAt)
	return semesterTable.exec(ctx, r.db, "update", `UPDATE semesters SET program_id = :program_id, code = :code, name = :name, start_date = :start_date, end_date = :end_date, updated_at = :updated_at WHERE id = :id AND deleted_at IS NULL`, s)
}

// Delete soft deletes a semester.
func (r *SemesterRepository) Delete(ctx context.Context, id string) error {
	return semesterTable.remove(ctx, r.db, id)
}
