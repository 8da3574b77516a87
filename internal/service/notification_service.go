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
	"github.com/dat-nglt/cusc-schedule/pkg/jobs"
)

// JobNotificationEmail is the job type that e-mails a notification to its recipients.
const JobNotificationEmail = "notification_email"

// NotificationEmailPayload identifies the notification to deliver.
type NotificationEmailPayload struct {
	NotificationID string
}

type notificationRepository interface {
	CreateWithFanOut(ctx context.Context, n *models.Notification) (int64, error)
	FindByID(ctx context.Context, id string) (*models.Notification, error)
	List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, int, error)
	ListForAccount(ctx context.Context, accountID string, filter models.NotificationFilter, now time.Time) ([]models.InboxItem, int, error)
	UnreadCount(ctx context.Context, accountID string, now time.Time) (int, error)
	MarkRead(ctx context.Context, accountID, notificationID string, at time.Time) (bool, error)
	MarkAllRead(ctx context.Context, accountID string, at time.Time) (int64, error)
	Delete(ctx context.Context, id string) error
	RecipientAddresses(ctx context.Context, notificationID string) ([]repository.RecipientAddress, error)
}

// jobDispatcher enqueues background work.
type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

// NotificationService broadcasts notifications and tracks per-account read state.
type NotificationService struct {
	repo       notificationRepository
	dispatcher jobDispatcher
	validator  *validator.Validate
	logger     *zap.Logger
	metrics    *MetricsService
	now        func() time.Time
}

// NewNotificationService constructs the service. dispatcher may be nil, in
// which case e-mail delivery is skipped.
func NewNotificationService(repo notificationRepository, dispatcher jobDispatcher, validate *validator.Validate, logger *zap.Logger, metrics *MetricsService) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &NotificationService{
		repo:       repo,
		dispatcher: dispatcher,
		validator:  validate,
		logger:     logger,
		metrics:    metrics,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Send stores a notification and delivers it to every account matching its
// recipients at this moment.
func (s *NotificationService) Send(ctx context.Context, req models.SendNotificationRequest, creatorID string) (*models.SendNotificationResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.FromValidation(err, "invalid notification payload")
	}
	if req.ExpiresAt != nil && !req.ExpiresAt.After(s.now()) {
		return nil, appErrors.WithFields(appErrors.ErrValidation, map[string]string{"expires_at": "must be in the future"})
	}

	n := &models.Notification{
		Title:      req.Title,
		Content:    req.Content,
		Type:       req.Type,
		Recipients: req.Recipients,
		CreatedBy:  optionalString(creatorID),
		ExpiresAt:  req.ExpiresAt,
	}
	count, err := s.repo.CreateWithFanOut(ctx, n)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to send notification")
	}
	s.metrics.RecordNotificationSent(count)
	s.logger.Info("notification sent",
		zap.String("notification_id", n.ID),
		zap.String("recipients", string(n.Recipients)),
		zap.Int64("count", count))

	if req.SendEmail && count > 0 && s.dispatcher != nil {
		job := jobs.Job{Type: JobNotificationEmail, Payload: NotificationEmailPayload{NotificationID: n.ID}}
		if err := s.dispatcher.Enqueue(job); err != nil {
			s.logger.Warn("failed to enqueue notification email", zap.String("notification_id", n.ID), zap.Error(err))
		}
	}

	return &models.SendNotificationResult{Notification: n, Recipients: count}, nil
}

// Get returns a notification by id.
func (s *NotificationService) Get(ctx context.Context, id string) (*models.Notification, error) {
	n, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "notification not found")
		}
		return nil, appErrors.Internal(err, "failed to load notification")
	}
	return n, nil
}

// List returns every notification, for administrators.
func (s *NotificationService) List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, *models.Pagination, error) {
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list notifications")
	}
	return items, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Inbox lists the caller's unexpired notifications with their read state.
func (s *NotificationService) Inbox(ctx context.Context, accountID string, filter models.NotificationFilter) ([]models.InboxItem, *models.Pagination, error) {
	items, total, err := s.repo.ListForAccount(ctx, accountID, filter, s.now())
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list notifications")
	}
	return items, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// UnreadCount counts the caller's unread, unexpired notifications.
func (s *NotificationService) UnreadCount(ctx context.Context, accountID string) (int, error) {
	n, err := s.repo.UnreadCount(ctx, accountID, s.now())
	if err != nil {
		return 0, appErrors.Internal(err, "failed to count notifications")
	}
	return n, nil
}

// MarkRead marks one notification read. Repeating the call keeps the first
// read_at and reports changed=false.
func (s *NotificationService) MarkRead(ctx context.Context, accountID, notificationID string) (bool, error) {
	changed, err := s.repo.MarkRead(ctx, accountID, notificationID, s.now())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, appErrors.Clone(appErrors.ErrNotFound, "notification not found")
		}
		return false, appErrors.Internal(err, "failed to mark notification read")
	}
	return changed, nil
}

// MarkAllRead marks every unread notification of the caller read.
func (s *NotificationService) MarkAllRead(ctx context.Context, accountID string) (int64, error) {
	n, err := s.repo.MarkAllRead(ctx, accountID, s.now())
	if err != nil {
		return 0, appErrors.Internal(err, "failed to mark notifications read")
	}
	return n, nil
}

// Delete removes a notification together with its delivery rows.
func (s *NotificationService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "notification not found")
		}
		return appErrors.Internal(err, "failed to delete notification")
	}
	return nil
}
