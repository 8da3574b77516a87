package service

import (
	"context"
	"fmt"
	"html"

	"go.uber.org/zap"

	"github.com/dat-nglt/cusc-schedule/internal/models"
	"github.com/dat-nglt/cusc-schedule/internal/repository"
	"github.com/dat-nglt/cusc-schedule/pkg/jobs"
	"github.com/dat-nglt/cusc-schedule/pkg/mail"
)

type notificationMailSource interface {
	FindByID(ctx context.Context, id string) (*models.Notification, error)
	RecipientAddresses(ctx context.Context, notificationID string) ([]repository.RecipientAddress, error)
}

// NotificationMailer delivers notification e-mails from the job queue.
type NotificationMailer struct {
	repo    notificationMailSource
	mailer  mail.Mailer
	logger  *zap.Logger
	metrics *MetricsService
}

// NewNotificationMailer constructs the job handler.
func NewNotificationMailer(repo notificationMailSource, mailer mail.Mailer, logger *zap.Logger, metrics *MetricsService) *NotificationMailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationMailer{repo: repo, mailer: mailer, logger: logger, metrics: metrics}
}

// Handle implements jobs.Handler for JobNotificationEmail.
func (m *NotificationMailer) Handle(ctx context.Context, job jobs.Job) (err error) {
	defer func() { m.metrics.RecordJob(job.Type, err) }()

	payload, ok := job.Payload.(NotificationEmailPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T", job.Payload)
	}

	n, err := m.repo.FindByID(ctx, payload.NotificationID)
	if err != nil {
		return fmt.Errorf("load notification %s: %w", payload.NotificationID, err)
	}
	recipients, err := m.repo.RecipientAddresses(ctx, n.ID)
	if err != nil {
		return err
	}
	if len(recipients) == 0 {
		return nil
	}

	to := make([]mail.Address, len(recipients))
	for i, r := range recipients {
		to[i] = mail.Address{Name: r.Name, Email: r.Email}
	}
	msg := mail.Message{
		To:      to,
		Subject: fmt.Sprintf("[%s] %s", n.Type, n.Title),
		Text:    n.Content,
		HTML:    "<p>" + html.EscapeString(n.Content) + "</p>",
	}
	if err = m.mailer.Send(ctx, msg); err != nil {
		return fmt.Errorf("send notification %s: %w", n.ID, err)
	}
	m.logger.Info("notification emailed", zap.String("notification_id", n.ID), zap.Int("recipients", len(to)))
	return nil
}
