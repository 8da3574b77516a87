package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/dat-nglt/cusc-schedule/internal/models"
)

const notificationColumns = `id, title, content, type, recipients, created_by, expires_at, created_at, updated_at`

// NotificationRepository persists notifications and their per-account fan-out.
type NotificationRepository struct {
	db *sqlx.DB
}

// NewNotificationRepository constructs the repository.
func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// CreateWithFanOut inserts the notification and one unread user_notifications
// row for every account matching its recipients at this instant. Accounts
// created later never receive it.
func (r *NotificationRepository) CreateWithFanOut(ctx context.Context, n *models.Notification) (count int64, err error) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	n.CreatedAt = now
	n.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin send notification: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const insert = `INSERT INTO notifications (id, title, content, type, recipients, created_by, expires_at, created_at, updated_at) VALUES (:id, :title, :content, :type, :recipients, :created_by, :expires_at, :created_at, :updated_at)`
	if _, err = sqlx.NamedExecContext(ctx, tx, insert, n); err != nil {
		return 0, fmt.Errorf("create notification: %w", err)
	}

	fanOut := `INSERT INTO user_notifications (id, account_id, notification_id, is_read, created_at, updated_at)
SELECT gen_random_uuid(), a.id, $1, FALSE, $2, $2 FROM accounts a`
	args := []interface{}{n.ID, now}
	if roles := n.Recipients.Roles(); len(roles) > 0 {
		fanOut += ` WHERE a.role = ANY($3)`
		args = append(args, pq.Array(roleStrings(roles)))
	}
	res, err := tx.ExecContext(ctx, fanOut, args...)
	if err != nil {
		return 0, fmt.Errorf("fan out notification: %w", err)
	}
	if count, err = res.RowsAffected(); err != nil {
		return 0, fmt.Errorf("fan out rows: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit send notification: %w", err)
	}
	return count, nil
}

func roleStrings(roles []models.Role) []string {
	out := make([]string, len(roles))
	for i, r := range roles {
		out[i] = string(r)
	}
	return out
}

// FindByID returns a notification by identifier.
func (r *NotificationRepository) FindByID(ctx context.Context, id string) (*models.Notification, error) {
	query := fmt.Sprintf("SELECT %s FROM notifications WHERE id = $1", notificationColumns)
	var n models.Notification
	if err := r.db.GetContext(ctx, &n, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find notification: %w", err)
	}
	return &n, nil
}

// List returns every notification (admin view), newest first.
func (r *NotificationRepository) List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, int, error) {
	base := ` FROM notifications WHERE 1=1`
	var args []interface{}
	if filter.Type != nil {
		args = append(args, *filter.Type)
		base += fmt.Sprintf(" AND type = $%d", len(args))
	}
	if filter.Recipients != nil {
		args = append(args, *filter.Recipients)
		base += fmt.Sprintf(" AND recipients = $%d", len(args))
	}
	page, size := models.NormalizePage(filter.Page, filter.PageSize)

	var items []models.Notification
	query := fmt.Sprintf("SELECT %s%s ORDER BY created_at DESC LIMIT %d OFFSET %d", notificationColumns, base, size, (page-1)*size)
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list notifications: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*)"+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count notifications: %w", err)
	}
	return items, total, nil
}

// ListForAccount returns the account's inbox excluding expired notifications.
func (r *NotificationRepository) ListForAccount(ctx context.Context, accountID string, filter models.NotificationFilter, now time.Time) ([]models.InboxItem, int, error) {
	base := ` FROM user_notifications un JOIN notifications n ON n.id = un.notification_id
WHERE un.account_id = $1 AND (n.expires_at IS NULL OR n.expires_at > $2)`
	args := []interface{}{accountID, now}
	if filter.UnreadOnly {
		base += " AND un.is_read = FALSE"
	}
	if filter.Type != nil {
		args = append(args, *filter.Type)
		base += fmt.Sprintf(" AND n.type = $%d", len(args))
	}
	page, size := models.NormalizePage(filter.Page, filter.PageSize)

	cols := "n.id, n.title, n.content, n.type, n.recipients, n.created_by, n.expires_at, n.created_at, n.updated_at, un.is_read, un.read_at"
	query := fmt.Sprintf("SELECT %s%s ORDER BY n.created_at DESC LIMIT %d OFFSET %d", cols, base, size, (page-1)*size)
	var items []models.InboxItem
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list inbox: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*)"+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count inbox: %w", err)
	}
	return items, total, nil
}

// UnreadCount counts unread, unexpired notifications of an account.
func (r *NotificationRepository) UnreadCount(ctx context.Context, accountID string, now time.Time) (int, error) {
	const query = `SELECT COUNT(*) FROM user_notifications un JOIN notifications n ON n.id = un.notification_id
WHERE un.account_id = $1 AND un.is_read = FALSE AND (n.expires_at IS NULL OR n.expires_at > $2)`
	var count int
	if err := r.db.GetContext(ctx, &count, query, accountID, now); err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return count, nil
}

// MarkRead flips one unread row to read. It returns false without error when
// the row was already read, and sql.ErrNoRows when the account never
// received the notification.
func (r *NotificationRepository) MarkRead(ctx context.Context, accountID, notificationID string, at time.Time) (bool, error) {
	const update = `UPDATE user_notifications SET is_read = TRUE, read_at = $3, updated_at = $3 WHERE account_id = $1 AND notification_id = $2 AND is_read = FALSE`
	res, err := r.db.ExecContext(ctx, update, accountID, notificationID, at)
	if err != nil {
		return false, fmt.Errorf("mark notification read: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark notification read rows: %w", err)
	}
	if rows > 0 {
		return true, nil
	}

	var exists bool
	const check = `SELECT EXISTS(SELECT 1 FROM user_notifications WHERE account_id = $1 AND notification_id = $2)`
	if err := r.db.GetContext(ctx, &exists, check, accountID, notificationID); err != nil {
		return false, fmt.Errorf("check user notification: %w", err)
	}
	if !exists {
		return false, sql.ErrNoRows
	}
	return false, nil
}

// MarkAllRead marks every unread row of the account as read.
func (r *NotificationRepository) MarkAllRead(ctx context.Context, accountID string, at time.Time) (int64, error) {
	const query = `UPDATE user_notifications SET is_read = TRUE, read_at = $2, updated_at = $2 WHERE account_id = $1 AND is_read = FALSE`
	res, err := r.db.ExecContext(ctx, query, accountID, at)
	if err != nil {
		return 0, fmt.Errorf("mark all read: %w", err)
	}
	return res.RowsAffected()
}

// Delete removes a notification; its user_notifications rows cascade.
func (r *NotificationRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM notifications WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete notification: %w", err)
	}
	return expectRows(res, "delete notification")
}

// RecipientAddresses lists name and e-mail of every active recipient of a notification.
func (r *NotificationRepository) RecipientAddresses(ctx context.Context, notificationID string) ([]RecipientAddress, error) {
	const query = `SELECT a.name, a.email FROM user_notifications un JOIN accounts a ON a.id = un.account_id
WHERE un.notification_id = $1 AND a.status = $2 ORDER BY a.email`
	var out []RecipientAddress
	if err := r.db.SelectContext(ctx, &out, query, notificationID, models.AccountStatusActive); err != nil {
		return nil, fmt.Errorf("list notification recipients: %w", err)
	}
	return out, nil
}

// RecipientAddress is a mail target resolved from the fan-out rows.
type RecipientAddress struct {
	Name  string `db:"name"`
	Email string `db:"email"`
}
