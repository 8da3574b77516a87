package models

import "time"

// ChangeRequestType enumerates what a lecturer may ask to change.
type ChangeRequestType string

const (
	ChangeReschedule ChangeRequestType = "reschedule"
	ChangeCancel     ChangeRequestType = "cancel"
	ChangeRoom       ChangeRequestType = "room_change"
	ChangeTime       ChangeRequestType = "time_change"
	ChangeSubstitute ChangeRequestType = "substitute"
)

// ChangeRequestStatus captures workflow states for schedule change requests.
type ChangeRequestStatus string

const (
	ChangeRequestPending  ChangeRequestStatus = "PENDING"
	ChangeRequestApproved ChangeRequestStatus = "APPROVED"
	ChangeRequestRejected ChangeRequestStatus = "REJECTED"
	ChangeRequestCanceled ChangeRequestStatus = "CANCELED"
	ChangeRequestExpired  ChangeRequestStatus = "EXPIRED"
)

// Terminal reports whether no further transition is allowed from s.
func (s ChangeRequestStatus) Terminal() bool {
	return s != ChangeRequestPending
}

// CanTransition reports whether a request may move from one status to another.
// Only PENDING has outgoing edges; every other status is absorbing.
func CanTransition(from, to ChangeRequestStatus) bool {
	if from != ChangeRequestPending {
		return false
	}
	switch to {
	case ChangeRequestApproved, ChangeRequestRejected, ChangeRequestCanceled, ChangeRequestExpired:
		return true
	}
	return false
}

// ScheduleChangeRequest is a lecturer's request to alter a class schedule.
type ScheduleChangeRequest struct {
	ID                   string              `db:"id" json:"id"`
	ClassScheduleID      string              `db:"class_schedule_id" json:"class_schedule_id"`
	LecturerID           string              `db:"lecturer_id" json:"lecturer_id"`
	RequestType          ChangeRequestType   `db:"request_type" json:"request_type"`
	NewDate              *time.Time          `db:"new_date" json:"new_date,omitempty"`
	NewTimeSlotID        *string             `db:"new_time_slot_id" json:"new_time_slot_id,omitempty"`
	NewRoomID            *string             `db:"new_room_id" json:"new_room_id,omitempty"`
	SubstituteLecturerID *string             `db:"substitute_lecturer_id" json:"substitute_lecturer_id,omitempty"`
	Reason               string              `db:"reason" json:"reason"`
	Status               ChangeRequestStatus `db:"status" json:"status"`
	ReviewedBy           *string             `db:"reviewed_by" json:"reviewed_by,omitempty"`
	ReviewNote           *string             `db:"review_note" json:"review_note,omitempty"`
	ReviewedAt           *time.Time          `db:"reviewed_at" json:"reviewed_at,omitempty"`
	ApprovedAt           *time.Time          `db:"approved_at" json:"approved_at,omitempty"`
	CreatedAt            time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time           `db:"updated_at" json:"updated_at"`
}

// ChangeRequestFilter constrains listing queries.
type ChangeRequestFilter struct {
	Status          []ChangeRequestStatus
	LecturerID      string
	ClassScheduleID string
	Page            int
	PageSize        int
}

// CreateChangeRequest is submitted by a lecturer.
type CreateChangeRequest struct {
	ClassScheduleID      string            `json:"class_schedule_id" validate:"required,uuid"`
	RequestType          ChangeRequestType `json:"request_type" validate:"required,oneof=reschedule cancel room_change time_change substitute"`
	NewDate              *time.Time        `json:"new_date,omitempty"`
	NewTimeSlotID        *string           `json:"new_time_slot_id,omitempty" validate:"omitempty,uuid"`
	NewRoomID            *string           `json:"new_room_id,omitempty" validate:"omitempty,uuid"`
	SubstituteLecturerID *string           `json:"substitute_lecturer_id,omitempty" validate:"omitempty,uuid"`
	Reason               string            `json:"reason" validate:"required,max=1000"`
}

// ReviewChangeRequest approves or rejects a pending request.
type ReviewChangeRequest struct {
	Decision ChangeRequestStatus `json:"decision" validate:"required,oneof=APPROVED REJECTED"`
	Note     *string             `json:"note,omitempty" validate:"omitempty,max=1000"`
}
