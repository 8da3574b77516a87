package models

import "time"

// ClassScheduleStatus tracks whether an occurrence still takes place.
type ClassScheduleStatus string

const (
	ClassScheduleScheduled ClassScheduleStatus = "scheduled"
	ClassScheduleCanceled  ClassScheduleStatus = "canceled"
)

// ClassSchedule binds class, subject, lecturer, room and slot on a date.
// Lecturer, room and slot become nil when their rows are deleted.
type ClassSchedule struct {
	ID           string              `db:"id" json:"id"`
	ClassID      string              `db:"class_id" json:"class_id"`
	SubjectID    string              `db:"subject_id" json:"subject_id"`
	LecturerID   *string             `db:"lecturer_id" json:"lecturer_id,omitempty"`
	RoomID       *string             `db:"room_id" json:"room_id,omitempty"`
	TimeSlotID   *string             `db:"time_slot_id" json:"time_slot_id,omitempty"`
	ScheduleDate time.Time           `db:"schedule_date" json:"schedule_date"`
	Status       ClassScheduleStatus `db:"status" json:"status"`
	Note         *string             `db:"note" json:"note,omitempty"`
	CreatedAt    time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time           `db:"updated_at" json:"updated_at"`
}

// ClassScheduleFilter describes query params for listing schedules.
type ClassScheduleFilter struct {
	ClassID    string
	SubjectID  string
	LecturerID string
	RoomID     string
	From       *time.Time
	To         *time.Time
	Page       int
	PageSize   int
}

// TimetableEntry is a schedule row joined with display names for export.
type TimetableEntry struct {
	ScheduleDate time.Time           `db:"schedule_date"`
	SlotCode     *string             `db:"slot_code"`
	StartTime    *string             `db:"start_time"`
	EndTime      *string             `db:"end_time"`
	ClassCode    string              `db:"class_code"`
	SubjectCode  string              `db:"subject_code"`
	SubjectName  string              `db:"subject_name"`
	LecturerName *string             `db:"lecturer_name"`
	RoomCode     *string             `db:"room_code"`
	Status       ClassScheduleStatus `db:"status"`
}

// LecturerAssignment links a lecturer to a subject they may teach.
type LecturerAssignment struct {
	ID         string    `db:"id" json:"id"`
	LecturerID string    `db:"lecturer_id" json:"lecturer_id"`
	SubjectID  string    `db:"subject_id" json:"subject_id"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// BusySlot is a weekly recurring unavailability. DayOfWeek runs 1 (Monday) to 7.
type BusySlot struct {
	ID         string    `db:"id" json:"id"`
	LecturerID string    `db:"lecturer_id" json:"lecturer_id"`
	TimeSlotID string    `db:"time_slot_id" json:"time_slot_id"`
	DayOfWeek  int       `db:"day_of_week" json:"day_of_week"`
	Reason     *string   `db:"reason" json:"reason,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// SemesterBusySlot is a one-off unavailability on a date within a semester.
type SemesterBusySlot struct {
	ID         string    `db:"id" json:"id"`
	LecturerID string    `db:"lecturer_id" json:"lecturer_id"`
	SemesterID string    `db:"semester_id" json:"semester_id"`
	TimeSlotID string    `db:"time_slot_id" json:"time_slot_id"`
	BusyDate   time.Time `db:"busy_date" json:"busy_date"`
	Reason     *string   `db:"reason" json:"reason,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// ISOWeekday maps a date to 1 (Monday) .. 7 (Sunday).
func ISOWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}
