package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/dat-nglt/cusc-schedule/internal/models"
	appErrors "github.com/dat-nglt/cusc-schedule/pkg/errors"
)

type lecturerAssignmentRepository interface {
	ListByLecturer(ctx context.Context, lecturerID string) ([]models.LecturerAssignment, error)
	Exists(ctx context.Context, lecturerID, subjectID string) (bool, error)
	Create(ctx context.Context, a *models.LecturerAssignment) error
	Delete(ctx context.Context, lecturerID, subjectID string) error
}

type busySlotRepository interface {
	ListWeekly(ctx context.Context, lecturerID string) ([]models.BusySlot, error)
	CreateWeekly(ctx context.Context, slot *models.BusySlot) error
	DeleteWeekly(ctx context.Context, id, lecturerID string) error
	ListDated(ctx context.Context, lecturerID, semesterID string) ([]models.SemesterBusySlot, error)
	CreateDated(ctx context.Context, slot *models.SemesterBusySlot) error
	DeleteDated(ctx context.Context, id, lecturerID string) error
}

type accountReader interface {
	FindByID(ctx context.Context, id string) (*models.Account, error)
}

// AssignSubjectRequest links a lecturer to a subject.
type AssignSubjectRequest struct {
	SubjectID string `json:"subject_id" validate:"required,uuid"`
}

// BusySlotRequest declares a weekly unavailability. DayOfWeek runs 1 (Monday) to 7.
type BusySlotRequest struct {
	TimeSlotID string  `json:"time_slot_id" validate:"required,uuid"`
	DayOfWeek  int     `json:"day_of_week" validate:"required,min=1,max=7"`
	Reason     *string `json:"reason" validate:"omitempty,max=255"`
}

// SemesterBusySlotRequest declares an unavailability on one date.
type SemesterBusySlotRequest struct {
	SemesterID string    `json:"semester_id" validate:"required,uuid"`
	TimeSlotID string    `json:"time_slot_id" validate:"required,uuid"`
	BusyDate   time.Time `json:"busy_date" validate:"required"`
	Reason     *string   `json:"reason" validate:"omitempty,max=255"`
}

// LecturerService manages what lecturers teach and when they are unavailable.
type LecturerService struct {
	accounts    accountReader
	assignments lecturerAssignmentRepository
	busy        busySlotRepository
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewLecturerService creates a service instance.
func NewLecturerService(accounts accountReader, assignments lecturerAssignmentRepository, busy busySlotRepository, validate *validator.Validate, logger *zap.Logger) *LecturerService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LecturerService{accounts: accounts, assignments: assignments, busy: busy, validator: validate, logger: logger}
}

func (s *LecturerService) ensureLecturer(ctx context.Context, lecturerID string) error {
	account, err := s.accounts.FindByID(ctx, lecturerID)
	if err != nil {
		return lookupError(err, "lecturer")
	}
	if account.Role != models.RoleLecturer {
		return appErrors.Clone(appErrors.ErrNotFound, "lecturer not found")
	}
	return nil
}

// ListAssignments returns the subjects a lecturer may teach.
func (s *LecturerService) ListAssignments(ctx context.Context, lecturerID string) ([]models.LecturerAssignment, error) {
	if err := s.ensureLecturer(ctx, lecturerID); err != nil {
		return nil, err
	}
	items, err := s.assignments.ListByLecturer(ctx, lecturerID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list assignments")
	}
	return items, nil
}

// Assign links a lecturer to a subject. Assigning the same pair twice is a conflict.
func (s *LecturerService) Assign(ctx context.Context, lecturerID string, req AssignSubjectRequest) (*models.LecturerAssignment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.FromValidation(err, "invalid assignment payload")
	}
	if err := s.ensureLecturer(ctx, lecturerID); err != nil {
		return nil, err
	}
	exists, err := s.assignments.Exists(ctx, lecturerID, req.SubjectID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to check assignment")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "lecturer already assigned to subject")
	}
	a := &models.LecturerAssignment{LecturerID: lecturerID, SubjectID: req.SubjectID}
	if err := s.assignments.Create(ctx, a); err != nil {
		// a concurrent assign can still lose on the unique index
		return nil, mapWriteError(err, "failed to create assignment")
	}
	s.logger.Info("lecturer assigned", zap.String("lecturer_id", lecturerID), zap.String("subject_id", req.SubjectID))
	return a, nil
}

// Unassign removes a lecturer-subject link.
func (s *LecturerService) Unassign(ctx context.Context, lecturerID, subjectID string) error {
	if err := s.assignments.Delete(ctx, lecturerID, subjectID); err != nil {
		return lookupError(err, "assignment")
	}
	return nil
}

// ListBusySlots returns a lecturer's weekly busy slots.
func (s *LecturerService) ListBusySlots(ctx context.Context, lecturerID string) ([]models.BusySlot, error) {
	items, err := s.busy.ListWeekly(ctx, lecturerID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list busy slots")
	}
	return items, nil
}

// AddBusySlot declares a weekly unavailability.
func (s *LecturerService) AddBusySlot(ctx context.Context, lecturerID string, req BusySlotRequest) (*models.BusySlot, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.FromValidation(err, "invalid busy slot payload")
	}
	slot := &models.BusySlot{LecturerID: lecturerID, TimeSlotID: req.TimeSlotID, DayOfWeek: req.DayOfWeek, Reason: req.Reason}
	if err := s.busy.CreateWeekly(ctx, slot); err != nil {
		return nil, mapWriteError(err, "failed to create busy slot")
	}
	return slot, nil
}

// RemoveBusySlot deletes one of the lecturer's weekly busy slots.
func (s *LecturerService) RemoveBusySlot(ctx context.Context, lecturerID, id string) error {
	if err := s.busy.DeleteWeekly(ctx, id, lecturerID); err != nil {
		return lookupError(err, "busy slot")
	}
	return nil
}

// ListSemesterBusySlots returns dated busy slots, optionally within one semester.
func (s *LecturerService) ListSemesterBusySlots(ctx context.Context, lecturerID, semesterID string) ([]models.SemesterBusySlot, error) {
	items, err := s.busy.ListDated(ctx, lecturerID, semesterID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list semester busy slots")
	}
	return items, nil
}

// AddSemesterBusySlot declares an unavailability on a single date.
func (s *LecturerService) AddSemesterBusySlot(ctx context.Context, lecturerID string, req SemesterBusySlotRequest) (*models.SemesterBusySlot, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.FromValidation(err, "invalid busy slot payload")
	}
	slot := &models.SemesterBusySlot{
		LecturerID: lecturerID,
		SemesterID: req.SemesterID,
		TimeSlotID: req.TimeSlotID,
		BusyDate:   truncateDay(req.BusyDate),
		Reason:     req.Reason,
	}
	if err := s.busy.CreateDated(ctx, slot); err != nil {
		return nil, mapWriteError(err, "failed to create semester busy slot")
	}
	return slot, nil
}

// RemoveSemesterBusySlot deletes one of the lecturer's dated busy slots.
func (s *LecturerService) RemoveSemesterBusySlot(ctx context.Context, lecturerID, id string) error {
	if err := s.busy.DeleteDated(ctx, id, lecturerID); err != nil {
		return lookupError(err, "busy slot")
	}
	return nil
}
