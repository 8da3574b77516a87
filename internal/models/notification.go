package models

import "time"

// NotificationType classifies a notification for display.
type NotificationType string

const (
	NotificationInfo     NotificationType = "info"
	NotificationWarning  NotificationType = "warning"
	NotificationSchedule NotificationType = "schedule"
	NotificationSystem   NotificationType = "system"
)

// NotificationRecipients selects which accounts receive a notification.
type NotificationRecipients string

const (
	RecipientsAll              NotificationRecipients = "all"
	RecipientsStudents         NotificationRecipients = "students"
	RecipientsLecturers        NotificationRecipients = "lecturers"
	RecipientsTrainingOfficers NotificationRecipients = "training_officers"
	RecipientsAdmins           NotificationRecipients = "admins"
)

// Roles returns the account roles covered by r; nil means every role.
func (r NotificationRecipients) Roles() []Role {
	switch r {
	case RecipientsStudents:
		return []Role{RoleStudent}
	case RecipientsLecturers:
		return []Role{RoleLecturer}
	case RecipientsTrainingOfficers:
		return []Role{RoleTrainingOfficer}
	case RecipientsAdmins:
		return []Role{RoleAdmin}
	default:
		return nil
	}
}

// Notification is a broadcast unit.
type Notification struct {
	ID         string                 `db:"id" json:"id"`
	Title      string                 `db:"title" json:"title"`
	Content    string                 `db:"content" json:"content"`
	Type       NotificationType       `db:"type" json:"type"`
	Recipients NotificationRecipients `db:"recipients" json:"recipients"`
	CreatedBy  *string                `db:"created_by" json:"created_by,omitempty"`
	ExpiresAt  *time.Time             `db:"expires_at" json:"expires_at,omitempty"`
	CreatedAt  time.Time              `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time              `db:"updated_at" json:"updated_at"`
}

// UserNotification is the per-account read state of a notification.
type UserNotification struct {
	ID             string     `db:"id" json:"id"`
	AccountID      string     `db:"account_id" json:"account_id"`
	NotificationID string     `db:"notification_id" json:"notification_id"`
	IsRead         bool       `db:"is_read" json:"is_read"`
	ReadAt         *time.Time `db:"read_at" json:"read_at,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
}

// InboxItem joins a notification with the caller's read state.
type InboxItem struct {
	Notification
	IsRead bool       `db:"is_read" json:"is_read"`
	ReadAt *time.Time `db:"read_at" json:"read_at,omitempty"`
}

// SendNotificationRequest creates and fans out a notification.
type SendNotificationRequest struct {
	Title      string                 `json:"title" validate:"required,max=255"`
	Content    string                 `json:"content" validate:"required"`
	Type       NotificationType       `json:"type" validate:"required,oneof=info warning schedule system"`
	Recipients NotificationRecipients `json:"recipients" validate:"required,oneof=all students lecturers training_officers admins"`
	ExpiresAt  *time.Time             `json:"expires_at,omitempty"`
	SendEmail  bool                   `json:"send_email"`
}

// SendNotificationResult reports the created notification and its fan-out size.
type SendNotificationResult struct {
	Notification *Notification `json:"notification"`
	Recipients   int64         `json:"recipient_count"`
}

// NotificationFilter constrains listings.
type NotificationFilter struct {
	Type       *NotificationType
	Recipients *NotificationRecipients
	UnreadOnly bool
	Page       int
	PageSize   int
}
