package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/dat-nglt/cusc-schedule/internal/models"
	appErrors "github.com/dat-nglt/cusc-schedule/pkg/errors"
)

type programRepository interface {
	List(ctx context.Context, filter models.AcademicFilter) ([]models.Program, int, error)
	FindByID(ctx context.Context, id string) (*models.Program, error)
	Create(ctx context.Context, p *models.Program) error
	Update(ctx context.Context, p *models.Program) error
	Delete(ctx context.Context, id string) error
}

// ProgramRequest creates or replaces a program.
type ProgramRequest struct {
	Code          string `json:"code" validate:"required,max=32"`
	Name          string `json:"name" validate:"required,max=255"`
	DurationYears int    `json:"duration_years" validate:"required,min=1,max=10"`
}

// ProgramService manages degree programs.
type ProgramService struct {
	repo      programRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewProgramService constructs ProgramService.
func NewProgramService(repo programRepository, validate *validator.Validate, logger *zap.Logger) *ProgramService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProgramService{repo: repo, validator: validate, logger: logger}
}

// List returns programs with pagination metadata.
func (s *ProgramService) List(ctx context.Context, filter models.AcademicFilter) ([]models.Program, *models.Pagination, error) {
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list programs")
	}
	return items, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns a program.
func (s *ProgramService) Get(ctx context.Context, id string) (*models.Program, error) {
	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "program")
	}
	return p, nil
}

// Create adds a program. A duplicate code yields 409.
func (s *ProgramService) Create(ctx context.Context, req ProgramRequest) (*models.Program, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.FromValidation(err, "invalid program payload")
	}
	p := &models.Program{Code: strings.TrimSpace(req.Code), Name: strings.TrimSpace(req.Name), DurationYears: req.DurationYears}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, mapWriteError(err, "failed to create program")
	}
	return p, nil
}

// Update replaces a program's fields.
func (s *ProgramService) Update(ctx context.Context, id string, req ProgramRequest) (*models.Program, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.FromValidation(err, "invalid program payload")
	}
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	p.Code = strings.TrimSpace(req.Code)
	p.Name = strings.TrimSpace(req.Name)
	p.DurationYears = req.DurationYears
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, mapWriteError(err, "failed to update program")
	}
	return p, nil
}

// Delete removes a program. Its semesters and classes go with it.
func (s *ProgramService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return lookupError(err, "program")
	}
	s.logger.Info("program deleted", zap.String("program_id", id))
	return nil
}
