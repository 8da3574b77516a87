package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Profile is the role specific extension of an Account. Exactly one variant
// exists per account and its Role always equals the account's role.
type Profile interface {
	Role() Role
	profile()
}

// StudentProfile lives in the students table.
type StudentProfile struct {
	AccountID      string     `db:"account_id" json:"account_id"`
	StudentCode    string     `db:"student_code" json:"student_code" validate:"required,max=32"`
	ClassID        *string    `db:"class_id" json:"class_id,omitempty" validate:"omitempty,uuid"`
	GPA            *float64   `db:"gpa" json:"gpa,omitempty" validate:"omitempty,gte=0,lte=4"`
	EnrollmentDate *time.Time `db:"enrollment_date" json:"enrollment_date,omitempty"`
	Phone          *string    `db:"phone" json:"phone,omitempty"`
	Address        *string    `db:"address" json:"address,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt      *time.Time `db:"deleted_at" json:"-"`
}

// LecturerProfile lives in the lecturers table.
type LecturerProfile struct {
	AccountID    string     `db:"account_id" json:"account_id"`
	LecturerCode string     `db:"lecturer_code" json:"lecturer_code" validate:"required,max=32"`
	Department   *string    `db:"department" json:"department,omitempty"`
	Degree       *string    `db:"degree" json:"degree,omitempty"`
	HireDate     *time.Time `db:"hire_date" json:"hire_date,omitempty"`
	Phone        *string    `db:"phone" json:"phone,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt    *time.Time `db:"deleted_at" json:"-"`
}

// AdminProfile lives in the admins table.
type AdminProfile struct {
	AccountID  string     `db:"account_id" json:"account_id"`
	AdminCode  string     `db:"admin_code" json:"admin_code" validate:"required,max=32"`
	Department *string    `db:"department" json:"department,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt  *time.Time `db:"deleted_at" json:"-"`
}

// TrainingOfficerProfile lives in the training_officers table.
type TrainingOfficerProfile struct {
	AccountID  string     `db:"account_id" json:"account_id"`
	StaffCode  string     `db:"staff_code" json:"staff_code" validate:"required,max=32"`
	Department *string    `db:"department" json:"department,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt  *time.Time `db:"deleted_at" json:"-"`
}

func (*StudentProfile) Role() Role         { return RoleStudent }
func (*LecturerProfile) Role() Role        { return RoleLecturer }
func (*AdminProfile) Role() Role           { return RoleAdmin }
func (*TrainingOfficerProfile) Role() Role { return RoleTrainingOfficer }

func (*StudentProfile) profile()         {}
func (*LecturerProfile) profile()        {}
func (*AdminProfile) profile()           {}
func (*TrainingOfficerProfile) profile() {}

// NewProfile returns an empty profile variant for role.
func NewProfile(role Role) (Profile, error) {
	switch role {
	case RoleStudent:
		return &StudentProfile{}, nil
	case RoleLecturer:
		return &LecturerProfile{}, nil
	case RoleAdmin:
		return &AdminProfile{}, nil
	case RoleTrainingOfficer:
		return &TrainingOfficerProfile{}, nil
	default:
		return nil, fmt.Errorf("unknown role %q", role)
	}
}

// DecodeProfile decodes raw JSON into the variant selected by role.
func DecodeProfile(role Role, raw json.RawMessage) (Profile, error) {
	p, err := NewProfile(role)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 || string(raw) == "null" {
		return p, nil
	}
	if err := json.Unmarshal(raw, p); err != nil {
		return nil, fmt.Errorf("decode %s profile: %w", role, err)
	}
	return p, nil
}

// SetProfileAccount stamps the owning account id on any variant.
func SetProfileAccount(p Profile, accountID string) {
	switch v := p.(type) {
	case *StudentProfile:
		v.AccountID = accountID
	case *LecturerProfile:
		v.AccountID = accountID
	case *AdminProfile:
		v.AccountID = accountID
	case *TrainingOfficerProfile:
		v.AccountID = accountID
	}
}
