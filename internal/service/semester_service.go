package service

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/dat-nglt/cusc-schedule/internal/models"
	appErrors "github.com/dat-nglt/cusc-schedule/pkg/errors"
)

type semesterRepository interface {
	List(ctx context.Context, filter models.AcademicFilter) ([]models.Semester, int, error)
	FindByID(ctx context.Context, id string) (*models.Semester, error)
	Create(ctx context.Context, s *models.Semester) error
	Update(ctx context.Context, s *models.Semester) error
	Delete(ctx context.Context, id string) error
}

// SemesterRequest creates or replaces a semester.
type SemesterRequest struct {
	ProgramID string    `json:"program_id" validate:"required,uuid"`
	Code      string    `json:"code" validate:"required,max=32"`
	Name      string    `json:"name" validate:"required,max=255"`
	StartDate time.Time `json:"start_date" validate:"required"`
	EndDate   time.Time `json:"end_date" validate:"required,gtfield=StartDate"`
}

// SemesterService manages semesters.
type SemesterService struct {
	repo      semesterRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSemesterService constructs SemesterService.
func NewSemesterService(repo semesterRepository, validate *validator.Validate, logger *zap.Logger) *SemesterService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SemesterService{repo: repo, validator: validate, logger: logger}
}

// List returns live semesters, filtered by program when ParentID is set.
func (s *SemesterService) List(ctx context.Context, filter models.AcademicFilter) ([]models.Semester, *models.Pagination, error) {
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list semesters")
	}
	return items, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns a live semester.
func (s *SemesterService) Get(ctx context.Context, id string) (*models.Semester, error) {
	sem, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "semester")
	}
	return sem, nil
}

// Create adds a semester to a program.
func (s *SemesterService) Create(ctx context.Context, req SemesterRequest) (*models.Semester, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.FromValidation(err, "invalid semester payload")
	}
	sem := &models.Semester{}
	applySemester(sem, req)
	if err := s.repo.Create(ctx, sem); err != nil {
		return nil, mapWriteError(err, "failed to create semester")
	}
	return sem, nil
}

// Update replaces a live semester.
func (s *SemesterService) Update(ctx context.Context, id string, req SemesterRequest) (*models.Semester, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.FromValidation(err, "invalid semester payload")
	}
	sem, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	applySemester(sem, req)
	if err := s.repo.Update(ctx, sem); err != nil {
		return nil, mapWriteError(err, "failed to update semester")
	}
	return sem, nil
}

func applySemester(sem *models.Semester, req SemesterRequest) {
	sem.ProgramID = req.ProgramID
	sem.Code = strings.TrimSpace(req.Code)
	sem.Name = strings.TrimSpace(req.Name)
	sem.StartDate = req.StartDate
	sem.EndDate = req.EndDate
}

// Delete soft deletes a semester.
func (s *SemesterService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return lookupError(err, "semester")
	}
	return nil
}
