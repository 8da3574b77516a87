package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/dat-nglt/cusc-schedule/internal/models"
	"github.com/dat-nglt/cusc-schedule/internal/repository"
	appErrors "github.com/dat-nglt/cusc-schedule/pkg/errors"
)

type lecturerSlotChecker interface {
	LecturerBusy(ctx context.Context, q repository.SlotQuery) (bool, error)
	LecturerDoubleBooked(ctx context.Context, q repository.SlotQuery) (bool, error)
}

type classScheduleRepository interface {
	lecturerSlotChecker
	LiveReferences(ctx context.Context, classID, subjectID string, lecturerID *string) (repository.ScheduleReferences, error)
	List(ctx context.Context, filter models.ClassScheduleFilter) ([]models.ClassSchedule, int, error)
	FindByID(ctx context.Context, id string) (*models.ClassSchedule, error)
	Create(ctx context.Context, sched *models.ClassSchedule) error
	BulkCreate(ctx context.Context, schedules []models.ClassSchedule) error
	Update(ctx context.Context, sched *models.ClassSchedule) error
	Delete(ctx context.Context, id string) error
}

// ClassScheduleRequest creates or replaces a class schedule.
type ClassScheduleRequest struct {
	ClassID      string                     `json:"class_id" validate:"required,uuid"`
	SubjectID    string                     `json:"subject_id" validate:"required,uuid"`
	LecturerID   *string                    `json:"lecturer_id" validate:"omitempty,uuid"`
	RoomID       *string                    `json:"room_id" validate:"omitempty,uuid"`
	TimeSlotID   *string                    `json:"time_slot_id" validate:"omitempty,uuid"`
	ScheduleDate time.Time                  `json:"schedule_date" validate:"required"`
	Status       models.ClassScheduleStatus `json:"status" validate:"omitempty,oneof=scheduled canceled"`
	Note         *string                    `json:"note" validate:"omitempty,max=500"`
}

// BulkClassScheduleRequest holds multiple schedules for creation.
type BulkClassScheduleRequest struct {
	Items          []ClassScheduleRequest `json:"items" validate:"required,min=1,max=500,dive"`
	PartialOnError bool                   `json:"partial_on_error"`
}

// BulkClassScheduleResult summarises bulk creation results.
type BulkClassScheduleResult struct {
	Created   []models.ClassSchedule `json:"created"`
	Conflicts []ScheduleConflict     `json:"conflicts,omitempty"`
}

// ScheduleConflict explains why a lecturer cannot take a slot. Index is the
// position of the offending item in a bulk request.
type ScheduleConflict struct {
	Index      int       `json:"index"`
	Dimension  string    `json:"dimension"`
	LecturerID string    `json:"lecturer_id"`
	TimeSlotID string    `json:"time_slot_id"`
	Date       time.Time `json:"date"`
	Message    string    `json:"message"`
}

const (
	conflictBusy   = "BUSY"
	conflictBooked = "LECTURER"
)

type scheduleConflictError struct {
	Conflict ScheduleConflict
}

func (e *scheduleConflictError) Error() string { return e.Conflict.Message }

// ensureLecturerFree rejects a slot the lecturer declared busy or already teaches in.
func ensureLecturerFree(ctx context.Context, checker lecturerSlotChecker, q repository.SlotQuery) error {
	busy, err := checker.LecturerBusy(ctx, q)
	if err != nil {
		return appErrors.Internal(err, "failed to check lecturer availability")
	}
	if busy {
		return wrapConflict(conflictBusy, "lecturer is busy in that slot", q)
	}
	booked, err := checker.LecturerDoubleBooked(ctx, q)
	if err != nil {
		return appErrors.Internal(err, "failed to check lecturer availability")
	}
	if booked {
		return wrapConflict(conflictBooked, "lecturer already teaches in that slot", q)
	}
	return nil
}

func wrapConflict(dimension, message string, q repository.SlotQuery) error {
	domainErr := &scheduleConflictError{Conflict: ScheduleConflict{
		Dimension:  dimension,
		LecturerID: q.LecturerID,
		TimeSlotID: q.TimeSlotID,
		Date:       q.Date,
		Message:    message,
	}}
	return appErrors.Wrap(domainErr, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, message)
}

// ClassScheduleService coordinates scheduling logic.
type ClassScheduleService struct {
	repo      classScheduleRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewClassScheduleService instantiates ClassScheduleService.
func NewClassScheduleService(repo classScheduleRepository, validate *validator.Validate, logger *zap.Logger) *ClassScheduleService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClassScheduleService{repo: repo, validator: validate, logger: logger}
}

// List returns schedules with pagination metadata.
func (s *ClassScheduleService) List(ctx context.Context, filter models.ClassScheduleFilter) ([]models.ClassSchedule, *models.Pagination, error) {
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return nil, nil, appErrors.WithFields(appErrors.ErrValidation, map[string]string{"to": "must not be before from"})
	}
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list class schedules")
	}
	return items, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns a schedule.
func (s *ClassScheduleService) Get(ctx context.Context, id string) (*models.ClassSchedule, error) {
	sched, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "class schedule")
	}
	return sched, nil
}

// Create inserts a new schedule after checking the lecturer's availability.
func (s *ClassScheduleService) Create(ctx context.Context, req ClassScheduleRequest) (*models.ClassSchedule, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.FromValidation(err, "invalid class schedule payload")
	}
	if err := s.ensureReferences(ctx, req, ""); err != nil {
		return nil, err
	}
	sched := &models.ClassSchedule{}
	applyClassSchedule(sched, req)
	if err := s.ensureNoConflict(ctx, sched); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, sched); err != nil {
		return nil, mapWriteError(err, "failed to create class schedule")
	}
	return sched, nil
}

// Update replaces a schedule.
func (s *ClassScheduleService) Update(ctx context.Context, id string, req ClassScheduleRequest) (*models.ClassSchedule, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.FromValidation(err, "invalid class schedule payload")
	}
	sched, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.ensureReferences(ctx, req, ""); err != nil {
		return nil, err
	}
	applyClassSchedule(sched, req)
	if err := s.ensureNoConflict(ctx, sched); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, sched); err != nil {
		return nil, mapWriteError(err, "failed to update class schedule")
	}
	return sched, nil
}

// Delete removes a schedule entry together with its change requests.
func (s *ClassScheduleService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return lookupError(err, "class schedule")
	}
	return nil
}

// BulkCreate inserts multiple schedules. With PartialOnError the conflicting
// items are skipped and reported; otherwise any conflict aborts the batch.
func (s *ClassScheduleService) BulkCreate(ctx context.Context, req BulkClassScheduleRequest) (*BulkClassScheduleResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.FromValidation(err, "invalid bulk schedule payload")
	}

	var toCreate []models.ClassSchedule
	var conflicts []ScheduleConflict
	claimed := make(map[string]int)

	for i, item := range req.Items {
		if err := s.ensureReferences(ctx, item, fmt.Sprintf("items[%d].", i)); err != nil {
			return nil, err
		}
		sched := models.ClassSchedule{}
		applyClassSchedule(&sched, item)

		err := s.ensureNoConflict(ctx, &sched)
		if err == nil {
			if key, ok := slotKey(&sched); ok {
				if prev, dup := claimed[key]; dup {
					q := repository.SlotQuery{LecturerID: *sched.LecturerID, TimeSlotID: *sched.TimeSlotID, Date: sched.ScheduleDate}
					err = wrapConflict(conflictBooked, fmt.Sprintf("lecturer already teaches in that slot (item %d)", prev), q)
				} else {
					claimed[key] = i
				}
			}
		}
		if err != nil {
			var domainErr *scheduleConflictError
			if !errors.As(err, &domainErr) {
				return nil, err
			}
			if !req.PartialOnError {
				return nil, err
			}
			c := domainErr.Conflict
			c.Index = i
			conflicts = append(conflicts, c)
			continue
		}
		toCreate = append(toCreate, sched)
	}

	if len(toCreate) > 0 {
		if err := s.repo.BulkCreate(ctx, toCreate); err != nil {
			return nil, mapWriteError(err, "failed to bulk create class schedules")
		}
	}
	s.logger.Info("class schedules bulk created", zap.Int("created", len(toCreate)), zap.Int("conflicts", len(conflicts)))
	return &BulkClassScheduleResult{Created: toCreate, Conflicts: conflicts}, nil
}

// ensureReferences rejects a class, subject or lecturer that is unknown or
// soft-deleted.
func (s *ClassScheduleService) ensureReferences(ctx context.Context, req ClassScheduleRequest, fieldPrefix string) error {
	refs, err := s.repo.LiveReferences(ctx, req.ClassID, req.SubjectID, req.LecturerID)
	if err != nil {
		return appErrors.Internal(err, "failed to check class schedule references")
	}
	fields := make(map[string]string)
	if !refs.Class {
		fields[fieldPrefix+"class_id"] = "class not found"
	}
	if !refs.Subject {
		fields[fieldPrefix+"subject_id"] = "subject not found"
	}
	if !refs.Lecturer {
		fields[fieldPrefix+"lecturer_id"] = "lecturer not found"
	}
	if len(fields) > 0 {
		return appErrors.WithFields(appErrors.ErrValidation, fields)
	}
	return nil
}

func (s *ClassScheduleService) ensureNoConflict(ctx context.Context, sched *models.ClassSchedule) error {
	if _, ok := slotKey(sched); !ok {
		return nil
	}
	return ensureLecturerFree(ctx, s.repo, repository.SlotQuery{
		LecturerID: *sched.LecturerID,
		TimeSlotID: *sched.TimeSlotID,
		Date:       sched.ScheduleDate,
		ExcludeID:  sched.ID,
	})
}

// slotKey identifies the lecturer slot a scheduled class occupies.
func slotKey(sched *models.ClassSchedule) (string, bool) {
	if sched.Status == models.ClassScheduleCanceled || sched.LecturerID == nil || sched.TimeSlotID == nil {
		return "", false
	}
	return *sched.LecturerID + "|" + *sched.TimeSlotID + "|" + sched.ScheduleDate.Format("2006-01-02"), true
}

func applyClassSchedule(sched *models.ClassSchedule, req ClassScheduleRequest) {
	sched.ClassID = req.ClassID
	sched.SubjectID = req.SubjectID
	sched.LecturerID = req.LecturerID
	sched.RoomID = req.RoomID
	sched.TimeSlotID = req.TimeSlotID
	sched.ScheduleDate = truncateDay(req.ScheduleDate)
	sched.Status = req.Status
	if sched.Status == "" {
		sched.Status = models.ClassScheduleScheduled
	}
	sched.Note = req.Note
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
