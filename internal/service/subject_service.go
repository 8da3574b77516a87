package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/dat-nglt/cusc-schedule/internal/models"
	appErrors "github.com/dat-nglt/cusc-schedule/pkg/errors"
)

type subjectRepository interface {
	List(ctx context.Context, filter models.AcademicFilter) ([]models.Subject, int, error)
	FindByID(ctx context.Context, id string) (*models.Subject, error)
	Create(ctx context.Context, s *models.Subject) error
	Update(ctx context.Context, s *models.Subject) error
	Delete(ctx context.Context, id string) error
}

// SubjectRequest creates or replaces a subject.
type SubjectRequest struct {
	SemesterID    string `json:"semester_id" validate:"required,uuid"`
	Code          string `json:"code" validate:"required,max=32"`
	Name          string `json:"name" validate:"required,max=255"`
	Credits       int    `json:"credits" validate:"min=0,max=20"`
	TheoryHours   int    `json:"theory_hours" validate:"min=0"`
	PracticeHours int    `json:"practice_hours" validate:"min=0"`
}

// SubjectService manages subjects.
type SubjectService struct {
	repo      subjectRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSubjectService constructs SubjectService.
func NewSubjectService(repo subjectRepository, validate *validator.Validate, logger *zap.Logger) *SubjectService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubjectService{repo: repo, validator: validate, logger: logger}
}

// List returns live subjects, filtered by semester when ParentID is set.
func (s *SubjectService) List(ctx context.Context, filter models.AcademicFilter) ([]models.Subject, *models.Pagination, error) {
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list subjects")
	}
	return items, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns a live subject.
func (s *SubjectService) Get(ctx context.Context, id string) (*models.Subject, error) {
	sub, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "subject")
	}
	return sub, nil
}

// Create adds a subject.
func (s *SubjectService) Create(ctx context.Context, req SubjectRequest) (*models.Subject, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.FromValidation(err, "invalid subject payload")
	}
	sub := &models.Subject{}
	applySubject(sub, req)
	if err := s.repo.Create(ctx, sub); err != nil {
		return nil, mapWriteError(err, "failed to create subject")
	}
	return sub, nil
}

// Update replaces a live subject.
func (s *SubjectService) Update(ctx context.Context, id string, req SubjectRequest) (*models.Subject, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.FromValidation(err, "invalid subject payload")
	}
	sub, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	applySubject(sub, req)
	if err := s.repo.Update(ctx, sub); err != nil {
		return nil, mapWriteError(err, "failed to update subject")
	}
	return sub, nil
}

func applySubject(sub *models.Subject, req SubjectRequest) {
	sub.SemesterID = req.SemesterID
	sub.Code = strings.TrimSpace(req.Code)
	sub.Name = strings.TrimSpace(req.Name)
	sub.Credits = req.Credits
	sub.TheoryHours = req.TheoryHours
	sub.PracticeHours = req.PracticeHours
}

// Delete soft deletes a subject.
func (s *SubjectService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return lookupError(err, "subject")
	}
	return nil
}
