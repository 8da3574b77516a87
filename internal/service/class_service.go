package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/dat-nglt/cusc-schedule/internal/models"
	appErrors "github.com/dat-nglt/cusc-schedule/pkg/errors"
)

type classRepository interface {
	List(ctx context.Context, filter models.AcademicFilter) ([]models.Class, int, error)
	FindByID(ctx context.Context, id string) (*models.Class, error)
	Create(ctx context.Context, c *models.Class) error
	Update(ctx context.Context, c *models.Class) error
	Delete(ctx context.Context, id string) error
}

// ClassRequest creates or replaces a class.
type ClassRequest struct {
	ProgramID    string  `json:"program_id" validate:"required,uuid"`
	Code         string  `json:"code" validate:"required,max=32"`
	Name         string  `json:"name" validate:"required,max=255"`
	Cohort       *string `json:"cohort" validate:"omitempty,max=16"`
	StudentCount int     `json:"student_count" validate:"min=0"`
}

// ClassService coordinates class operations.
type ClassService struct {
	repo      classRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewClassService constructs ClassService.
func NewClassService(repo classRepository, validate *validator.Validate, logger *zap.Logger) *ClassService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClassService{repo: repo, validator: validate, logger: logger}
}

// List returns live classes with pagination metadata.
func (s *ClassService) List(ctx context.Context, filter models.AcademicFilter) ([]models.Class, *models.Pagination, error) {
	classes, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list classes")
	}
	return classes, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns a live class.
func (s *ClassService) Get(ctx context.Context, id string) (*models.Class, error) {
	class, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "class")
	}
	return class, nil
}

// Create adds a new class.
func (s *ClassService) Create(ctx context.Context, req ClassRequest) (*models.Class, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.FromValidation(err, "invalid class payload")
	}
	class := &models.Class{}
	applyClass(class, req)
	if err := s.repo.Create(ctx, class); err != nil {
		return nil, mapWriteError(err, "failed to create class")
	}
	return class, nil
}

// Update modifies a class record.
func (s *ClassService) Update(ctx context.Context, id string, req ClassRequest) (*models.Class, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.FromValidation(err, "invalid class payload")
	}
	class, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	applyClass(class, req)
	if err := s.repo.Update(ctx, class); err != nil {
		return nil, mapWriteError(err, "failed to update class")
	}
	return class, nil
}

func applyClass(class *models.Class, req ClassRequest) {
	class.ProgramID = req.ProgramID
	class.Code = strings.TrimSpace(req.Code)
	class.Name = strings.TrimSpace(req.Name)
	class.Cohort = req.Cohort
	class.StudentCount = req.StudentCount
}

// Delete soft deletes a class. Students keep their class_id until the row is purged.
func (s *ClassService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return lookupError(err, "class")
	}
	s.logger.Info("class deleted", zap.String("class_id", id))
	return nil
}
