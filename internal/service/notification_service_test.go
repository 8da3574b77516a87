package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dat-nglt/cusc-schedule/internal/models"
	"github.com/dat-nglt/cusc-schedule/internal/repository"
	appErrors "github.com/dat-nglt/cusc-schedule/pkg/errors"
	"github.com/dat-nglt/cusc-schedule/pkg/jobs"
	"github.com/dat-nglt/cusc-schedule/pkg/mail"
)

type inboxRow struct {
	isRead bool
	readAt *time.Time
}

// stubNotificationRepo fans out over a fixed account roster.
type stubNotificationRepo struct {
	roster        map[string]models.Role
	notifications map[string]*models.Notification
	inbox         map[string]map[string]*inboxRow // account -> notification -> state
	addresses     []repository.RecipientAddress
	failCreate    bool
}

func newStubNotificationRepo(roster map[string]models.Role) *stubNotificationRepo {
	return &stubNotificationRepo{
		roster:        roster,
		notifications: map[string]*models.Notification{},
		inbox:         map[string]map[string]*inboxRow{},
	}
}

func (r *stubNotificationRepo) CreateWithFanOut(_ context.Context, n *models.Notification) (int64, error) {
	if r.failCreate {
		return 0, errors.New("db down")
	}
	n.ID = "n-" + n.Title
	r.notifications[n.ID] = n
	roles := n.Recipients.Roles()
	var count int64
	for id, role := range r.roster {
		if len(roles) > 0 && roles[0] != role {
			continue
		}
		if r.inbox[id] == nil {
			r.inbox[id] = map[string]*inboxRow{}
		}
		r.inbox[id][n.ID] = &inboxRow{}
		count++
	}
	return count, nil
}

func (r *stubNotificationRepo) FindByID(_ context.Context, id string) (*models.Notification, error) {
	if n, ok := r.notifications[id]; ok {
		return n, nil
	}
	return nil, sql.ErrNoRows
}

func (r *stubNotificationRepo) List(context.Context, models.NotificationFilter) ([]models.Notification, int, error) {
	var out []models.Notification
	for _, n := range r.notifications {
		out = append(out, *n)
	}
	return out, len(out), nil
}

func (r *stubNotificationRepo) ListForAccount(_ context.Context, accountID string, filter models.NotificationFilter, now time.Time) ([]models.InboxItem, int, error) {
	var out []models.InboxItem
	for id, row := range r.inbox[accountID] {
		n := r.notifications[id]
		if n.ExpiresAt != nil && !n.ExpiresAt.After(now) {
			continue
		}
		if filter.UnreadOnly && row.isRead {
			continue
		}
		out = append(out, models.InboxItem{Notification: *n, IsRead: row.isRead, ReadAt: row.readAt})
	}
	return out, len(out), nil
}

func (r *stubNotificationRepo) UnreadCount(_ context.Context, accountID string, now time.Time) (int, error) {
	items, _, _ := r.ListForAccount(context.Background(), accountID, models.NotificationFilter{UnreadOnly: true}, now)
	return len(items), nil
}

func (r *stubNotificationRepo) MarkRead(_ context.Context, accountID, notificationID string, at time.Time) (bool, error) {
	row, ok := r.inbox[accountID][notificationID]
	if !ok {
		return false, sql.ErrNoRows
	}
	if row.isRead {
		return false, nil
	}
	row.isRead = true
	row.readAt = &at
	return true, nil
}

func (r *stubNotificationRepo) MarkAllRead(_ context.Context, accountID string, at time.Time) (int64, error) {
	var n int64
	for _, row := range r.inbox[accountID] {
		if !row.isRead {
			row.isRead = true
			row.readAt = &at
			n++
		}
	}
	return n, nil
}

func (r *stubNotificationRepo) Delete(_ context.Context, id string) error {
	if _, ok := r.notifications[id]; !ok {
		return sql.ErrNoRows
	}
	delete(r.notifications, id)
	for _, rows := range r.inbox {
		delete(rows, id)
	}
	return nil
}

func (r *stubNotificationRepo) RecipientAddresses(context.Context, string) ([]repository.RecipientAddress, error) {
	return r.addresses, nil
}

type recordingDispatcher struct {
	jobs []jobs.Job
	err  error
}

func (d *recordingDispatcher) Enqueue(job jobs.Job) error {
	d.jobs = append(d.jobs, job)
	return d.err
}

type recordingMailer struct {
	sent []mail.Message
}

func (m *recordingMailer) Send(_ context.Context, msg mail.Message) error {
	m.sent = append(m.sent, msg)
	return nil
}

func newNotificationFixture(now time.Time) (*NotificationService, *stubNotificationRepo, *recordingDispatcher) {
	repo := newStubNotificationRepo(map[string]models.Role{
		"s1": models.RoleStudent,
		"s2": models.RoleStudent,
		"s3": models.RoleStudent,
		"l1": models.RoleLecturer,
	})
	dispatcher := &recordingDispatcher{}
	svc := NewNotificationService(repo, dispatcher, nil, nil, nil)
	svc.now = func() time.Time { return now }
	return svc, repo, dispatcher
}

func TestSendFansOutToStudents(t *testing.T) {
	now := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	svc, repo, dispatcher := newNotificationFixture(now)

	res, err := svc.Send(context.Background(), models.SendNotificationRequest{
		Title: "Exam", Content: "Room A1", Type: models.NotificationSchedule, Recipients: models.RecipientsStudents,
	}, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.Recipients)
	require.NotNil(t, res.Notification.CreatedBy)
	assert.Equal(t, "admin-1", *res.Notification.CreatedBy)
	assert.Empty(t, dispatcher.jobs)

	for _, id := range []string{"s1", "s2", "s3"} {
		count, err := svc.UnreadCount(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	}
	assert.Empty(t, repo.inbox["l1"])
}

func TestSendValidatesPayload(t *testing.T) {
	now := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	svc, repo, _ := newNotificationFixture(now)

	_, err := svc.Send(context.Background(), models.SendNotificationRequest{Title: "x", Content: "y", Type: "gossip", Recipients: models.RecipientsAll}, "")
	assert.Equal(t, 400, appErrors.FromError(err).Status)

	past := now.Add(-time.Minute)
	_, err = svc.Send(context.Background(), models.SendNotificationRequest{
		Title: "x", Content: "y", Type: models.NotificationInfo, Recipients: models.RecipientsAll, ExpiresAt: &past,
	}, "")
	appErr := appErrors.FromError(err)
	assert.Equal(t, 400, appErr.Status)
	assert.Contains(t, appErr.Fields, "expires_at")
	assert.Empty(t, repo.notifications)
}

func TestSendEnqueuesEmailBestEffort(t *testing.T) {
	now := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	svc, _, dispatcher := newNotificationFixture(now)
	dispatcher.err = jobs.ErrQueueStopped

	res, err := svc.Send(context.Background(), models.SendNotificationRequest{
		Title: "Holiday", Content: "No classes", Type: models.NotificationInfo, Recipients: models.RecipientsAll, SendEmail: true,
	}, "")
	require.NoError(t, err)
	assert.Equal(t, int64(4), res.Recipients)
	require.Len(t, dispatcher.jobs, 1)
	assert.Equal(t, JobNotificationEmail, dispatcher.jobs[0].Type)
	assert.Equal(t, NotificationEmailPayload{NotificationID: res.Notification.ID}, dispatcher.jobs[0].Payload)
}

func TestSendStorageFailureIsInternal(t *testing.T) {
	svc, repo, _ := newNotificationFixture(time.Now())
	repo.failCreate = true
	_, err := svc.Send(context.Background(), models.SendNotificationRequest{
		Title: "x", Content: "y", Type: models.NotificationInfo, Recipients: models.RecipientsAll,
	}, "")
	assert.Equal(t, 500, appErrors.FromError(err).Status)
}

func TestMarkReadKeepsFirstTimestamp(t *testing.T) {
	now := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	svc, repo, _ := newNotificationFixture(now)
	res, err := svc.Send(context.Background(), models.SendNotificationRequest{
		Title: "Exam", Content: "c", Type: models.NotificationInfo, Recipients: models.RecipientsStudents,
	}, "")
	require.NoError(t, err)
	id := res.Notification.ID

	changed, err := svc.MarkRead(context.Background(), "s1", id)
	require.NoError(t, err)
	assert.True(t, changed)
	first := *repo.inbox["s1"][id].readAt

	svc.now = func() time.Time { return now.Add(time.Hour) }
	changed, err = svc.MarkRead(context.Background(), "s1", id)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, first, *repo.inbox["s1"][id].readAt)

	_, err = svc.MarkRead(context.Background(), "l1", id)
	assert.Equal(t, 404, appErrors.FromError(err).Status)
}

func TestInboxHidesExpired(t *testing.T) {
	now := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	svc, _, _ := newNotificationFixture(now)
	soon := now.Add(time.Hour)
	_, err := svc.Send(context.Background(), models.SendNotificationRequest{
		Title: "Short", Content: "c", Type: models.NotificationWarning, Recipients: models.RecipientsLecturers, ExpiresAt: &soon,
	}, "")
	require.NoError(t, err)

	items, page, err := svc.Inbox(context.Background(), "l1", models.NotificationFilter{})
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, 1, page.TotalCount)

	svc.now = func() time.Time { return now.Add(2 * time.Hour) }
	items, _, err = svc.Inbox(context.Background(), "l1", models.NotificationFilter{})
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestMarkAllReadAndDelete(t *testing.T) {
	svc, repo, _ := newNotificationFixture(time.Now())
	for _, title := range []string{"a", "b"} {
		_, err := svc.Send(context.Background(), models.SendNotificationRequest{
			Title: title, Content: "c", Type: models.NotificationInfo, Recipients: models.RecipientsAll,
		}, "")
		require.NoError(t, err)
	}
	n, err := svc.MarkAllRead(context.Background(), "s2")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	require.NoError(t, svc.Delete(context.Background(), "n-a"))
	assert.NotContains(t, repo.inbox["s1"], "n-a")
	assert.Equal(t, 404, appErrors.FromError(svc.Delete(context.Background(), "n-a")).Status)
	_, err = svc.Get(context.Background(), "n-a")
	assert.Equal(t, 404, appErrors.FromError(err).Status)
}

func TestNotificationMailerSendsToRecipients(t *testing.T) {
	repo := newStubNotificationRepo(nil)
	repo.notifications["n-1"] = &models.Notification{ID: "n-1", Title: "Room change", Content: "<b>A2</b>", Type: models.NotificationSchedule}
	repo.addresses = []repository.RecipientAddress{{Name: "An", Email: "an@cusc.vn"}, {Name: "Binh", Email: "binh@cusc.vn"}}
	mailer := &recordingMailer{}
	handler := NewNotificationMailer(repo, mailer, nil, nil)

	err := handler.Handle(context.Background(), jobs.Job{Type: JobNotificationEmail, Payload: NotificationEmailPayload{NotificationID: "n-1"}})
	require.NoError(t, err)
	require.Len(t, mailer.sent, 1)
	msg := mailer.sent[0]
	assert.Len(t, msg.To, 2)
	assert.Equal(t, "[schedule] Room change", msg.Subject)
	assert.Equal(t, "<p>&lt;b&gt;A2&lt;/b&gt;</p>", msg.HTML)

	err = handler.Handle(context.Background(), jobs.Job{Type: JobNotificationEmail, Payload: "bogus"})
	assert.Error(t, err)
	err = handler.Handle(context.Background(), jobs.Job{Type: JobNotificationEmail, Payload: NotificationEmailPayload{NotificationID: "gone"}})
	assert.ErrorIs(t, err, sql.ErrNoRows)
}
