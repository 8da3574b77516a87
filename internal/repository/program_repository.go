package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/dat-nglt/cusc-schedule/internal/models"
)

var programTable = tableSpec{
	name:          "programs",
	columns:       "id, code, name, duration_years, created_at, updated_at",
	searchColumns: []string{"code", "name"},
	sorts:         map[string]bool{"code": true, "name": true, "created_at": true},
	defaultSort:   "code",
}

// ProgramRepository manages persistence for programs.
type ProgramRepository struct {
	db *sqlx.DB
}

// NewProgramRepository constructs a new program repository.
func NewProgramRepository(db *sqlx.DB) *ProgramRepository {
	return &ProgramRepository{db: db}
}

// List returns programs matching filter criteria.
func (r *ProgramRepository) List(ctx context.Context, filter models.AcademicFilter) ([]models.Program, int, error) {
	var items []models.Program
	total, err := programTable.list(ctx, r.db, filter, &items)
	return items, total, err
}

// FindByID returns a program by ID.
func (r *ProgramRepository) FindByID(ctx context.Context, id string) (*models.Program, error) {
	var p models.Program
	if err := programTable.get(ctx, r.db, id, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Create inserts a program.
func (r *ProgramRepository) Create(ctx context.Context, p *models.Program) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	stamp(&p.CreatedAt, &p.UpdatedAt)
	return programTable.exec(ctx, r.db, "create", `INSERT INTO programs (id, code, name, duration_years, created_at, updated_at) VALUES (:id, :code, :name, :duration_years, :created_at, :updated_at)`, p)
}

// Update modifies a program.
func (r *ProgramRepository) Update(ctx context.Context, p *models.Program) error {
	stamp(nil, &p.UpdatedAt)
	return programTable.exec(ctx, r.db, "update", `UPDATE programs SET code = :code, name = :name, duration_years = :duration_years, updated_at = :updated_at WHERE id = :id`, p)
}

// Delete hard deletes a program; its semesters and classes cascade.
func (r *ProgramRepository) Delete(ctx context.Context, id string) error {
	return programTable.remove(ctx, r.db, id)
}
