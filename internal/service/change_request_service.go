package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/dat-nglt/cusc-schedule/internal/models"
	"github.com/dat-nglt/cusc-schedule/internal/repository"
	appErrors "github.com/dat-nglt/cusc-schedule/pkg/errors"
)

type changeRequestRepository interface {
	Create(ctx context.Context, req *models.ScheduleChangeRequest) error
	GetByID(ctx context.Context, id string) (*models.ScheduleChangeRequest, error)
	List(ctx context.Context, filter models.ChangeRequestFilter) ([]models.ScheduleChangeRequest, int, error)
	Review(ctx context.Context, params repository.ReviewParams, change *repository.ScheduleChange) error
	Cancel(ctx context.Context, id, lecturerID string, at time.Time) error
	ExpireStale(ctx context.Context, today time.Time) (int64, error)
}

// scheduleLookup is the slice of the class schedule repository the workflow needs.
type scheduleLookup interface {
	lecturerSlotChecker
	FindByID(ctx context.Context, id string) (*models.ClassSchedule, error)
}

// ChangeRequestService drives the schedule change request workflow.
type ChangeRequestService struct {
	repo      changeRequestRepository
	schedules scheduleLookup
	validator *validator.Validate
	logger    *zap.Logger
	metrics   *MetricsService
	now       func() time.Time
}

// NewChangeRequestService constructs the service.
func NewChangeRequestService(repo changeRequestRepository, schedules scheduleLookup, validate *validator.Validate, logger *zap.Logger, metrics *MetricsService) *ChangeRequestService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ChangeRequestService{
		repo:      repo,
		schedules: schedules,
		validator: validate,
		logger:    logger,
		metrics:   metrics,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Create files a PENDING request against a schedule the lecturer teaches.
func (s *ChangeRequestService) Create(ctx context.Context, req models.CreateChangeRequest, lecturerID string) (*models.ScheduleChangeRequest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.FromValidation(err, "invalid change request payload")
	}
	if err := requiredChangeFields(req, lecturerID); err != nil {
		return nil, err
	}

	schedule, err := s.schedules.FindByID(ctx, req.ClassScheduleID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class schedule not found")
		}
		return nil, appErrors.Internal(err, "failed to load class schedule")
	}
	if schedule.LecturerID == nil || *schedule.LecturerID != lecturerID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "schedule is not assigned to you")
	}
	if schedule.Status == models.ClassScheduleCanceled {
		return nil, appErrors.Clone(appErrors.ErrConflict, "class schedule is canceled")
	}

	cr := &models.ScheduleChangeRequest{
		ClassScheduleID:      req.ClassScheduleID,
		LecturerID:           lecturerID,
		RequestType:          req.RequestType,
		NewDate:              req.NewDate,
		NewTimeSlotID:        req.NewTimeSlotID,
		NewRoomID:            req.NewRoomID,
		SubstituteLecturerID: req.SubstituteLecturerID,
		Reason:               req.Reason,
	}
	if err := s.repo.Create(ctx, cr); err != nil {
		return nil, mapWriteError(err, "failed to create change request")
	}
	s.metrics.RecordChangeRequest(string(cr.Status))
	s.logger.Info("change request created",
		zap.String("request_id", cr.ID),
		zap.String("schedule_id", cr.ClassScheduleID),
		zap.String("type", string(cr.RequestType)))
	return cr, nil
}

func requiredChangeFields(req models.CreateChangeRequest, lecturerID string) error {
	fields := map[string]string{}
	switch req.RequestType {
	case models.ChangeReschedule:
		if req.NewDate == nil {
			fields["new_date"] = "is required"
		}
	case models.ChangeRoom:
		if req.NewRoomID == nil {
			fields["new_room_id"] = "is required"
		}
	case models.ChangeTime:
		if req.NewTimeSlotID == nil {
			fields["new_time_slot_id"] = "is required"
		}
	case models.ChangeSubstitute:
		switch {
		case req.SubstituteLecturerID == nil:
			fields["substitute_lecturer_id"] = "is required"
		case *req.SubstituteLecturerID == lecturerID:
			fields["substitute_lecturer_id"] = "must differ from the requester"
		}
	}
	if len(fields) > 0 {
		return appErrors.WithFields(appErrors.ErrValidation, fields)
	}
	return nil
}

// Get returns a request. Lecturers may only read their own.
func (s *ChangeRequestService) Get(ctx context.Context, id, callerID string, callerRole models.Role) (*models.ScheduleChangeRequest, error) {
	cr, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if callerRole == models.RoleLecturer && cr.LecturerID != callerID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "")
	}
	return cr, nil
}

// List returns requests newest first. Lecturers only see their own.
func (s *ChangeRequestService) List(ctx context.Context, filter models.ChangeRequestFilter, callerID string, callerRole models.Role) ([]models.ScheduleChangeRequest, *models.Pagination, error) {
	if callerRole == models.RoleLecturer {
		filter.LecturerID = callerID
	}
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list change requests")
	}
	return items, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Review approves or rejects a PENDING request. Approval rewrites the class
// schedule in the same transaction.
func (s *ChangeRequestService) Review(ctx context.Context, id string, req models.ReviewChangeRequest, reviewerID string) (*models.ScheduleChangeRequest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.FromValidation(err, "invalid review payload")
	}
	cr, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !models.CanTransition(cr.Status, req.Decision) {
		return nil, appErrors.Clone(appErrors.ErrConflict, "change request is no longer pending")
	}

	var change *repository.ScheduleChange
	if req.Decision == models.ChangeRequestApproved {
		if change, err = s.planChange(ctx, cr); err != nil {
			return nil, err
		}
	}

	now := s.now()
	params := repository.ReviewParams{ID: cr.ID, Status: req.Decision, ReviewerID: reviewerID, Note: req.Note, ReviewedAt: now}
	if err := s.repo.Review(ctx, params, change); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "change request is no longer pending")
		}
		return nil, appErrors.Internal(err, "failed to review change request")
	}

	cr.Status = req.Decision
	cr.ReviewedBy = &reviewerID
	cr.ReviewNote = req.Note
	cr.ReviewedAt = &now
	cr.UpdatedAt = now
	if req.Decision == models.ChangeRequestApproved {
		cr.ApprovedAt = &now
	}
	s.metrics.RecordChangeRequest(string(cr.Status))
	s.logger.Info("change request reviewed",
		zap.String("request_id", cr.ID),
		zap.String("decision", string(cr.Status)),
		zap.String("reviewer_id", reviewerID))
	return cr, nil
}

// planChange translates an approved request into schedule column updates
// and rejects approvals that would put a lecturer into a blocked slot.
func (s *ChangeRequestService) planChange(ctx context.Context, cr *models.ScheduleChangeRequest) (*repository.ScheduleChange, error) {
	schedule, err := s.schedules.FindByID(ctx, cr.ClassScheduleID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class schedule not found")
		}
		return nil, appErrors.Internal(err, "failed to load class schedule")
	}

	change := &repository.ScheduleChange{ScheduleID: schedule.ID}
	switch cr.RequestType {
	case models.ChangeCancel:
		status := models.ClassScheduleCanceled
		change.Status = &status
		return change, nil
	case models.ChangeRoom:
		change.RoomID = cr.NewRoomID
		return change, nil
	case models.ChangeReschedule:
		change.ScheduleDate = cr.NewDate
		change.TimeSlotID = cr.NewTimeSlotID
	case models.ChangeTime:
		change.TimeSlotID = cr.NewTimeSlotID
		change.ScheduleDate = cr.NewDate
	case models.ChangeSubstitute:
		change.LecturerID = cr.SubstituteLecturerID
	}

	lecturer := schedule.LecturerID
	if change.LecturerID != nil {
		lecturer = change.LecturerID
	}
	slot := schedule.TimeSlotID
	if change.TimeSlotID != nil {
		slot = change.TimeSlotID
	}
	date := schedule.ScheduleDate
	if change.ScheduleDate != nil {
		date = *change.ScheduleDate
	}
	if lecturer == nil || slot == nil {
		return change, nil
	}
	if err := ensureLecturerFree(ctx, s.schedules, repository.SlotQuery{LecturerID: *lecturer, TimeSlotID: *slot, Date: date, ExcludeID: schedule.ID}); err != nil {
		return nil, err
	}
	return change, nil
}

// Cancel withdraws a PENDING request; only its requester may do so.
func (s *ChangeRequestService) Cancel(ctx context.Context, id, lecturerID string) error {
	cr, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if cr.LecturerID != lecturerID {
		return appErrors.Clone(appErrors.ErrForbidden, "only the requester may cancel")
	}
	if !models.CanTransition(cr.Status, models.ChangeRequestCanceled) {
		return appErrors.Clone(appErrors.ErrConflict, "change request is no longer pending")
	}
	if err := s.repo.Cancel(ctx, id, lecturerID, s.now()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrConflict, "change request is no longer pending")
		}
		return appErrors.Internal(err, "failed to cancel change request")
	}
	s.metrics.RecordChangeRequest(string(models.ChangeRequestCanceled))
	return nil
}

// ExpireStale moves PENDING requests for past classes to EXPIRED.
func (s *ChangeRequestService) ExpireStale(ctx context.Context, today time.Time) (int64, error) {
	n, err := s.repo.ExpireStale(ctx, truncateDay(today))
	if err != nil {
		return 0, appErrors.Internal(err, "failed to expire change requests")
	}
	if n > 0 {
		s.logger.Info("change requests expired", zap.Int64("count", n))
	}
	return n, nil
}

func (s *ChangeRequestService) load(ctx context.Context, id string) (*models.ScheduleChangeRequest, error) {
	cr, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "change request not found")
		}
		return nil, appErrors.Internal(err, "failed to load change request")
	}
	return cr, nil
}
