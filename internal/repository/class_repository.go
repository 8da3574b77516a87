package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/dat-nglt/cusc-schedule/internal/models"
)

var classTable = tableSpec{
	name:          "classes",
	columns:       "id, program_id, code, name, cohort, student_count, created_at, updated_at, deleted_at",
	soft:          true,
	parentColumn:  "program_id",
	searchColumns: []string{"code", "name"},
	sorts:         map[string]bool{"code": true, "name": true, "cohort": true, "created_at": true},
	defaultSort:   "code",
}

// ClassRepository manages persistence for classes.
type ClassRepository struct {
	db *sqlx.DB
}

// NewClassRepository constructs a new class repository.
func NewClassRepository(db *sqlx.DB) *ClassRepository {
	return &ClassRepository{db: db}
}

// List returns live classes matching filter criteria.
func (r *ClassRepository) List(ctx context.Context, filter models.AcademicFilter) ([]models.Class, int, error) {
	var items []models.Class
	total, err := classTable.list(ctx, r.db, filter, &items)
	return items, total, err
}

// FindByID returns a live class record by ID.
func (r *ClassRepository) FindByID(ctx context.Context, id string) (*models.Class, error) {
	var c models.Class
	if err := classTable.get(ctx, r.db, id, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// Create inserts a class.
func (r *ClassRepository) Create(ctx context.Context, c *models.Class) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	stamp(&c.CreatedAt, &c.UpdatedAt)
	return classTable.exec(ctx, r.db, "create", `INSERT INTO classes (id, program_id, code, name, cohort, student_count, created_at, updated_at) VALUES (:id, :program_id, :code, :name, :cohort, :student_count, :created_at, :updated_at)`, c)
}

// Update modifies a live class.
func (r *ClassRepository) Update(ctx context.Context, c *models.Class) error {
	stamp(nil, &c.UpdatedAt)
	return classTable.exec(ctx, r.db, "update", `UPDATE classes SET program_id = :program_id, code = :code, name = :name, cohort = :cohort, student_count = :student_count, updated_at = :updated_at WHERE id = :id AND deleted_at IS NULL`, c)
}

// Delete soft deletes a class.
func (r *ClassRepository) Delete(ctx context.Context, id string) error {
	return classTable.remove(ctx, r.db, id)
}
