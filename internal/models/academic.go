package models

import "time"

// Program is a degree programme.
type Program struct {
	ID            string    `db:"id" json:"id"`
	Code          string    `db:"code" json:"code"`
	Name          string    `db:"name" json:"name"`
	DurationYears int       `db:"duration_years" json:"duration_years"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// Semester belongs to a program.
type Semester struct {
	ID        string     `db:"id" json:"id"`
	ProgramID string     `db:"program_id" json:"program_id"`
	Code      string     `db:"code" json:"code"`
	Name      string     `db:"name" json:"name"`
	StartDate time.Time  `db:"start_date" json:"start_date"`
	EndDate   time.Time  `db:"end_date" json:"end_date"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt *time.Time `db:"deleted_at" json:"-"`
}

// Subject is taught within a semester.
type Subject struct {
	ID            string     `db:"id" json:"id"`
	SemesterID    string     `db:"semester_id" json:"semester_id"`
	Code          string     `db:"code" json:"code"`
	Name          string     `db:"name" json:"name"`
	Credits       int        `db:"credits" json:"credits"`
	TheoryHours   int        `db:"theory_hours" json:"theory_hours"`
	PracticeHours int        `db:"practice_hours" json:"practice_hours"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt     *time.Time `db:"deleted_at" json:"-"`
}

// Class is a cohort group inside a program.
type Class struct {
	ID           string     `db:"id" json:"id"`
	ProgramID    string     `db:"program_id" json:"program_id"`
	Code         string     `db:"code" json:"code"`
	Name         string     `db:"name" json:"name"`
	Cohort       *string    `db:"cohort" json:"cohort,omitempty"`
	StudentCount int        `db:"student_count" json:"student_count"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt    *time.Time `db:"deleted_at" json:"-"`
}

// RoomType classifies rooms.
type RoomType string

const (
	RoomTheory RoomType = "theory"
	RoomLab    RoomType = "lab"
	RoomHall   RoomType = "hall"
)

// Room is a physical teaching space.
type Room struct {
	ID        string    `db:"id" json:"id"`
	Code      string    `db:"code" json:"code"`
	Name      string    `db:"name" json:"name"`
	Capacity  int       `db:"capacity" json:"capacity"`
	RoomType  RoomType  `db:"room_type" json:"room_type"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// TimeSlot is a named teaching period. Times are HH:MM:SS strings.
type TimeSlot struct {
	ID        string    `db:"id" json:"id"`
	Code      string    `db:"code" json:"code"`
	StartTime string    `db:"start_time" json:"start_time"`
	EndTime   string    `db:"end_time" json:"end_time"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// AcademicFilter is shared by the academic listings. ParentID narrows to a
// program (semesters, classes) or semester (subjects).
type AcademicFilter struct {
	ParentID  string
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
