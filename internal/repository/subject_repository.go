package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/dat-nglt/cusc-schedule/internal/models"
)

var subjectTable = tableSpec{
	name:          "subjects",
	columns:       "id, semester_id, code, name, credits, theory_hours, practice_hours, created_at, updated_at, deleted_at",
	soft:          true,
	parentColumn:  "semester_id",
	searchColumns: []string{"code", "name"},
	sorts:         map[string]bool{"code": true, "name": true, "credits": true, "created_at": true},
	defaultSort:   "code",
}

// SubjectRepository manages persistence for subjects.
type SubjectRepository struct {
	db *sqlx.DB
}

// NewSubjectRepository constructs the repository.
func NewSubjectRepository(db *sqlx.DB) *SubjectRepository {
	return &SubjectRepository{db: db}
}

// List returns live subjects, optionally of one semester.
func (r *SubjectRepository) List(ctx context.Context, filter models.AcademicFilter) ([]models.Subject, int, error) {
	var items []models.Subject
	total, err := subjectTable.list(ctx, r.db, filter, &items)
	return items, total, err
}

// FindByID returns a live subject.
func (r *SubjectRepository) FindByID(ctx context.Context, id string) (*models.Subject, error) {
	var s models.Subject
	if err := subjectTable.get(ctx, r.db, id, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Create inserts a subject.
func (r *SubjectRepository) Create(ctx context.Context, s *models.Subject) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	stamp(&s.CreatedAt, &s.UpdatedAt)
	return subjectTable.exec(ctx, r.db, "create", `INSERT INTO subjects (id, semester_id, code, name, credits, theory_hours, practice_hours, created_at, updated_at) VALUES (:id, :semester_id, :code, :name, :credits, :theory_hours, :practice_hours, :created_at, :updated_at)`, s)
}

// Update modifies a live subject.
func (r *SubjectRepository) Update(ctx context.Context, s *models.Subject) error {
	stamp(nil, &s.UpdatedAt)
	return subjectTable.exec(ctx, r.db, "update", `UPDATE subjects SET semester_id = :semester_id, code = :code, name = :name, credits = :credits, theory_hours = :theory_hours, practice_hours = :practice_hours, updated_at = :updated_at WHERE id = :id AND deleted_at IS NULL`, s)
}

// Delete soft deletes a subject.
func (r *SubjectRepository) Delete(ctx context.Context, id string) error {
	return subjectTable.remove(ctx, r.db, id)
}
